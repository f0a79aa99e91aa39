package room

import (
	"github.com/rs/zerolog/log"

	"github.com/palemoky/mafia-night/internal/apperrors"
	"github.com/palemoky/mafia-night/internal/game/rule"
	"github.com/palemoky/mafia-night/internal/protocol"
	"github.com/palemoky/mafia-night/internal/protocol/codec"
)

// StartGame 房主开始游戏
func (r *Room) StartGame(connID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := r.playerByConnLocked(connID)
	if err != nil {
		return err
	}
	if p.ID != r.hostID {
		return apperrors.ErrNotHost
	}
	if r.phase != PhaseLobby {
		return apperrors.ErrGameStarted
	}
	if n := len(r.players); n < r.settings.MinPlayers || n > r.settings.MaxPlayers {
		return apperrors.ErrPlayerCount
	}

	roles := rule.AssignRoles(r.order, r.shuffle)
	for id, role := range roles {
		pl := r.players[id]
		pl.Role = role
		pl.Alive = true
	}
	r.started = true
	r.winner = rule.TeamNone
	r.round = 0

	// 大厅中掉线的玩家改用对局等待时长
	for _, id := range r.order {
		if pl := r.players[id]; !pl.Connected {
			r.armGraceLocked(pl, r.settings.MatchGrace)
		}
	}

	for _, id := range r.order {
		pl := r.players[id]
		pl.send(codec.MustNewMessage(protocol.MsgGameStarted, protocol.GameStartedPayload{
			Role:      string(pl.Role),
			Teammates: r.teammatesLocked(pl),
			Phase:     string(PhaseNight),
			Round:     1,
		}))
	}

	log.Info().Str("room", r.Code).Int("players", len(r.players)).Msg("🎮 游戏开始")
	r.enterNightLocked()
	return nil
}

// setPhaseLocked 切换阶段并广播
func (r *Room) setPhaseLocked(phase Phase) {
	r.phase = phase
	r.resolved = false
	r.touchLocked()

	r.broadcastLocked(codec.MustNewMessage(protocol.MsgPhaseChanged, protocol.PhaseChangedPayload{
		Phase:      string(phase),
		Round:      r.round,
		DurationMs: r.settings.phaseDuration(phase).Milliseconds(),
	}))
	r.mirrorLocked()

	log.Debug().Str("room", r.Code).Str("phase", string(phase)).Int("round", r.round).Msg("🔄 阶段切换")
}

// --- 夜晚 ---

func (r *Room) enterNightLocked() {
	r.cancelTimerLocked()
	r.round++
	r.night = nightState{acted: make(map[string]bool)}
	r.setPhaseLocked(PhaseNight)
	r.armTimerLocked(r.settings.NightDuration, r.resolveNightLocked)
}

// allNightActedLocked 所有存活杀手已投票，且存活的医生、侦探都已行动
func (r *Room) allNightActedLocked() bool {
	for _, s := range rule.AliveSeats(r.seatsLocked()) {
		switch s.Role {
		case rule.RoleMafia, rule.RoleDoctor, rule.RoleDetective:
			if !r.night.acted[s.ID] {
				return false
			}
		}
	}
	return true
}

func (r *Room) resolveNightLocked() {
	if r.phase != PhaseNight || r.resolved {
		return
	}
	// 先取消计时器，保证每个夜晚只结算一次
	r.cancelTimerLocked()
	r.resolved = true

	res := rule.ResolveNight(r.seatsLocked(), rule.NightInput{
		Round:       r.round,
		MafiaVotes:  r.night.mafiaVotes,
		DoctorSave:  r.night.doctorSave,
		Investigate: r.night.investigate,
	}, r.settings.Policy)

	targetName := ""
	if t, ok := r.players[res.TargetID]; ok {
		targetName = t.Name
	}
	r.broadcastLocked(codec.MustNewMessage(protocol.MsgNightResult, protocol.NightResultPayload{
		Round:     r.round,
		Outcome:   string(res.Outcome),
		VictimID:  res.KilledID,
		Narration: rule.Narrate(res.Outcome, targetName),
		Cutscene:  res.Cutscene,
	}))

	if victim, ok := r.players[res.KilledID]; ok {
		r.eliminateLocked(victim, rule.CauseNightKill)
	}

	log.Info().Str("room", r.Code).Int("round", r.round).Str("outcome", string(res.Outcome)).Msg("🌙 夜晚结算")

	if r.checkWinLocked() {
		return
	}

	delay := r.settings.NightResultDelay
	if res.Cutscene != "" {
		delay = r.settings.CutsceneDelay
	}
	r.armTimerLocked(delay, r.enterDayLocked)
}

// --- 白天 ---

func (r *Room) enterDayLocked() {
	r.cancelTimerLocked()
	r.votes = make(map[string]string)
	r.setPhaseLocked(PhaseDay)
	r.armTimerLocked(r.settings.DayDuration, r.enterVoteLocked)
}

// SkipDiscussion 房主跳过讨论直接投票
func (r *Room) SkipDiscussion(connID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := r.playerByConnLocked(connID)
	if err != nil {
		return err
	}
	if p.ID != r.hostID {
		return apperrors.ErrNotHost
	}
	if r.phase != PhaseDay {
		return apperrors.ErrWrongPhase
	}
	r.enterVoteLocked()
	return nil
}

// --- 投票 ---

func (r *Room) enterVoteLocked() {
	r.cancelTimerLocked()
	r.votes = make(map[string]string)
	r.setPhaseLocked(PhaseVote)
	r.armTimerLocked(r.settings.VoteDuration, r.resolveVoteLocked)
}

// votedCountLocked 已投票的存活玩家数
func (r *Room) votedCountLocked() int {
	n := 0
	for voter := range r.votes {
		if p, ok := r.players[voter]; ok && p.Alive {
			n++
		}
	}
	return n
}

func (r *Room) allVotedLocked() bool {
	return r.votedCountLocked() == r.aliveCountLocked()
}

func (r *Room) resolveVoteLocked() {
	if r.phase != PhaseVote || r.resolved {
		return
	}
	r.cancelTimerLocked()
	r.resolved = true

	lynchedID, ok := rule.ResolveDayVote(r.seatsLocked(), r.votes, r.settings.Policy)
	payload := protocol.VoteResultPayload{Round: r.round, Narration: rule.NarrateLynch("")}
	var lynched *Player
	if ok {
		lynched = r.players[lynchedID]
		payload.LynchedID = lynchedID
		payload.Narration = rule.NarrateLynch(lynched.Name)
	}
	r.broadcastLocked(codec.MustNewMessage(protocol.MsgVoteResult, payload))

	if lynched != nil {
		r.eliminateLocked(lynched, rule.CauseLynch)
	}

	log.Info().Str("room", r.Code).Int("round", r.round).Str("lynched", lynchedID).Msg("🗳️ 投票结算")

	if r.checkWinLocked() {
		return
	}
	r.armTimerLocked(r.settings.VoteResultDelay, r.enterNightLocked)
}

// --- 出局与胜负 ---

// eliminateLocked 玩家出局并广播
func (r *Room) eliminateLocked(p *Player, cause rule.Cause) {
	if !p.Alive {
		return
	}
	p.Alive = false
	r.broadcastLocked(codec.MustNewMessage(protocol.MsgPlayerEliminated, protocol.PlayerEliminatedPayload{
		PlayerID:   p.ID,
		PlayerName: p.Name,
		Cause:      string(cause),
		Narration:  rule.NarrateCause(cause),
	}))
	r.touchLocked()
}

// checkWinLocked 检查胜负，分出胜负时结束游戏并返回 true
func (r *Room) checkWinLocked() bool {
	if !r.phase.InMatch() {
		return false
	}
	winner := rule.CheckWinCondition(r.seatsLocked())
	if winner == rule.TeamNone {
		return false
	}
	r.endGameLocked(winner)
	return true
}

// advanceIfDoneLocked 有玩家离开或出局后重新检查是否可以提前结算
func (r *Room) advanceIfDoneLocked() {
	if r.resolved {
		return
	}
	switch r.phase {
	case PhaseNight:
		if r.allNightActedLocked() {
			r.resolveNightLocked()
		}
	case PhaseVote:
		if r.allVotedLocked() {
			r.resolveVoteLocked()
		}
	}
}

func (r *Room) endGameLocked(winner rule.Team) {
	r.cancelTimerLocked()
	r.winner = winner

	reveal := make([]protocol.RoleReveal, 0, len(r.order))
	for _, id := range r.order {
		p := r.players[id]
		reveal = append(reveal, protocol.RoleReveal{
			PlayerID:   p.ID,
			PlayerName: p.Name,
			Role:       string(p.Role),
			Alive:      p.Alive,
		})
	}

	r.setPhaseLocked(PhaseEnded)
	r.resolved = true
	r.broadcastLocked(codec.MustNewMessage(protocol.MsgGameEnded, protocol.GameEndedPayload{
		Winner: string(winner),
		Round:  r.round,
		Roles:  reveal,
	}))
	r.recordLocked(winner)
	r.broadcastRosterLocked()

	log.Info().Str("room", r.Code).Str("winner", string(winner)).Int("round", r.round).Msg("🏆 游戏结束")
}

// RestartGame 房主在对局结束后把房间重置回大厅
// 断线等待已结束的玩家被移出房间，仍在等待中的玩家改用大厅等待时长。
func (r *Room) RestartGame(connID string) error {
	r.mu.Lock()
	departures, err := r.restartLocked(connID)
	r.mu.Unlock()

	for _, d := range departures {
		r.registry.afterDeparture(r, d)
	}
	return err
}

func (r *Room) restartLocked(connID string) ([]departure, error) {
	p, err := r.playerByConnLocked(connID)
	if err != nil {
		return nil, err
	}
	if p.ID != r.hostID {
		return nil, apperrors.ErrNotHost
	}
	if r.phase != PhaseEnded {
		return nil, apperrors.ErrWrongPhase
	}

	r.cancelTimerLocked()
	for _, pl := range r.players {
		pl.Role = rule.RoleNone
		pl.Alive = true
	}
	r.round = 0
	r.started = false
	r.winner = rule.TeamNone
	r.night = nightState{}
	r.votes = make(map[string]string)
	r.setPhaseLocked(PhaseLobby)

	var departures []departure
	for _, id := range append([]string(nil), r.order...) {
		pl := r.players[id]
		switch {
		case pl.Connected:
		case pl.graceOver():
			log.Info().Str("room", r.Code).Str("player", pl.Name).Msg("⌛ 断线玩家已超时，重开时移出房间")
			departures = append(departures, r.departLocked(pl))
		default:
			r.armGraceLocked(pl, r.settings.LobbyGrace)
		}
	}
	r.broadcastRosterLocked()
	return departures, nil
}
