package room

import (
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/palemoky/mafia-night/internal/apperrors"
	"github.com/palemoky/mafia-night/internal/game/rule"
	"github.com/palemoky/mafia-night/internal/protocol"
	"github.com/palemoky/mafia-night/internal/protocol/codec"
)

// actionRoles 行动对应的身份
var actionRoles = map[NightAction]rule.Role{
	ActionKill:        rule.RoleMafia,
	ActionSave:        rule.RoleDoctor,
	ActionInvestigate: rule.RoleDetective,
}

// SubmitNightAction 提交夜间行动
// 校验失败不修改任何状态；所有需要行动的人都提交后立即结算。
func (r *Room) SubmitNightAction(connID string, action NightAction, targetID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := r.playerByConnLocked(connID)
	if err != nil {
		return err
	}
	if r.phase != PhaseNight || r.resolved {
		return apperrors.ErrWrongPhase
	}
	if !p.Alive {
		return apperrors.ErrPlayerDead
	}
	role, ok := actionRoles[action]
	if !ok {
		return apperrors.ErrInvalidAction
	}
	if p.Role != role {
		return apperrors.ErrWrongRole
	}
	if r.night.acted[p.ID] {
		return apperrors.ErrAlreadyActed
	}
	target, ok := r.players[targetID]
	if !ok {
		return apperrors.ErrInvalidTarget
	}
	if !target.Alive {
		return apperrors.ErrTargetDead
	}
	if action == ActionKill && target.ID == p.ID {
		return apperrors.ErrSelfTarget
	}

	r.night.acted[p.ID] = true
	p.send(codec.MustNewMessage(protocol.MsgActionAck, protocol.ActionAckPayload{
		Action:   string(action),
		TargetID: target.ID,
	}))

	switch action {
	case ActionKill:
		r.night.mafiaVotes = append(r.night.mafiaVotes, rule.MafiaVote{VoterID: p.ID, TargetID: target.ID})
		r.broadcastMafiaLocked(codec.MustNewMessage(protocol.MsgMafiaVote, protocol.MafiaVotePayload{
			VoterID:  p.ID,
			TargetID: target.ID,
		}))
	case ActionSave:
		r.night.doctorSave = target.ID
	case ActionInvestigate:
		r.night.investigate = target.ID
		// 查验结果只发给侦探本人
		p.send(codec.MustNewMessage(protocol.MsgDetectiveResult, protocol.DetectiveResultPayload{
			TargetID:   target.ID,
			TargetName: target.Name,
			IsMafia:    target.Role.IsMafia(),
		}))
	}

	log.Debug().Str("room", r.Code).Str("player", p.ID).Str("action", string(action)).Msg("🌙 夜间行动")
	r.touchLocked()

	if r.allNightActedLocked() {
		r.resolveNightLocked()
	}
	return nil
}

// SubmitDayVote 提交白天投票，重复投票覆盖之前的选择
func (r *Room) SubmitDayVote(connID, targetID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := r.playerByConnLocked(connID)
	if err != nil {
		return err
	}
	if r.phase != PhaseVote || r.resolved {
		return apperrors.ErrWrongPhase
	}
	if !p.Alive {
		return apperrors.ErrPlayerDead
	}
	target, ok := r.players[targetID]
	if !ok {
		return apperrors.ErrInvalidTarget
	}
	if !target.Alive {
		return apperrors.ErrTargetDead
	}
	if target.ID == p.ID {
		return apperrors.ErrSelfTarget
	}

	r.votes[p.ID] = target.ID
	r.broadcastLocked(codec.MustNewMessage(protocol.MsgVoteProgress, protocol.VoteProgressPayload{
		Voted: r.votedCountLocked(),
		Alive: r.aliveCountLocked(),
	}))
	r.touchLocked()

	if r.allVotedLocked() {
		r.resolveVoteLocked()
	}
	return nil
}

// SendChat 发送聊天消息
// 大厅和结束阶段所有人可见；白天存活玩家对全房间发言，出局玩家只能对出局玩家发言；
// 夜晚只有存活杀手可以发言，且只有存活杀手可见。
func (r *Room) SendChat(connID, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := r.playerByConnLocked(connID)
	if err != nil {
		return err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if limit := r.settings.ChatMaxRunes; limit > 0 && utf8.RuneCountInString(text) > limit {
		text = string([]rune(text)[:limit])
	}

	var channel string
	switch {
	case !r.phase.InMatch():
		channel = ChannelRoom
	case r.phase == PhaseNight:
		if !p.Alive || !p.Role.IsMafia() {
			return apperrors.ErrChatClosed
		}
		channel = ChannelMafia
	case !p.Alive:
		channel = ChannelDead
	default:
		channel = ChannelRoom
	}

	if p.chat != nil && !p.chat.Allow() {
		return apperrors.ErrRateLimited
	}

	msg := codec.MustNewMessage(protocol.MsgChat, protocol.ChatMessagePayload{
		FromID:   p.ID,
		FromName: p.Name,
		Text:     text,
		Channel:  channel,
	})
	switch channel {
	case ChannelMafia:
		r.broadcastMafiaLocked(msg)
	case ChannelDead:
		r.broadcastDeadLocked(msg)
	default:
		r.broadcastLocked(msg)
	}
	r.touchLocked()
	return nil
}
