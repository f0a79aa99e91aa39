package room

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/palemoky/mafia-night/internal/apperrors"
	"github.com/palemoky/mafia-night/internal/game/rule"
	"github.com/palemoky/mafia-night/internal/protocol"
	"github.com/palemoky/mafia-night/internal/protocol/codec"
	"github.com/palemoky/mafia-night/internal/types"
)

// departure 玩家离开房间后需要在房间锁外处理的信息
type departure struct {
	sessionID string
	empty     bool
}

// leave 主动离开：立即移除玩家
func (r *Room) leave(connID string) (departure, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := r.playerByConnLocked(connID)
	if err != nil {
		return departure{}, err
	}
	log.Info().Str("room", r.Code).Str("player", p.Name).Msg("👋 玩家离开房间")
	return r.departLocked(p), nil
}

// departLocked 移除玩家并处理房主、胜负和提前结算
func (r *Room) departLocked(p *Player) departure {
	wasAlive := p.Alive
	d := departure{sessionID: p.SessionID}
	d.empty = r.removePlayerLocked(p)
	if d.empty {
		r.cancelTimerLocked()
		return d
	}

	if r.phase.InMatch() && wasAlive {
		r.broadcastLocked(codec.MustNewMessage(protocol.MsgPlayerEliminated, protocol.PlayerEliminatedPayload{
			PlayerID:   p.ID,
			PlayerName: p.Name,
			Cause:      string(rule.CauseForcedDisconnect),
			Narration:  rule.NarrateCause(rule.CauseForcedDisconnect),
		}))
		if !r.checkWinLocked() {
			r.advanceIfDoneLocked()
		}
	}
	r.broadcastRosterLocked()
	return d
}

// disconnect 连接断开：进入断线等待，不移除玩家
func (r *Room) disconnect(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := r.playerByConnLocked(connID)
	if err != nil || !p.Connected {
		return
	}

	grace := r.settings.graceFor(r.phase)
	p.Connected = false
	p.Client = nil
	p.DisconnectedAt = time.Now()

	// 房主掉线时临时移交，重连后收回
	if r.hostID == p.ID {
		for _, id := range r.order {
			if other := r.players[id]; other.Connected {
				if r.originalHostID == "" {
					r.originalHostID = p.ID
				}
				r.hostID = other.ID
				break
			}
		}
	}

	r.armGraceLocked(p, grace)

	r.broadcastLocked(codec.MustNewMessage(protocol.MsgPlayerOffline, protocol.PlayerOfflinePayload{
		PlayerID:   p.ID,
		PlayerName: p.Name,
		GraceMs:    grace.Milliseconds(),
	}))
	r.broadcastRosterLocked()
	r.touchLocked()

	log.Info().Str("room", r.Code).Str("player", p.Name).Dur("grace", grace).Msg("📴 玩家掉线")
}

// armGraceLocked 重新开始断线等待计时
func (r *Room) armGraceLocked(p *Player, grace time.Duration) {
	p.stopGrace()
	p.graceDeadline = time.Now().Add(grace)
	p.graceExpired = false

	epoch := p.graceEpoch
	playerID := p.ID
	p.graceTimer = time.AfterFunc(grace, func() {
		r.expireGrace(playerID, epoch)
	})
}

// graceOver 断线等待是否已经结束
func (p *Player) graceOver() bool {
	return !p.Connected && (p.graceExpired || time.Now().After(p.graceDeadline))
}

// expireGrace 断线等待超时
// 大厅和结束阶段移除玩家；对局中判定出局并重新检查胜负。
func (r *Room) expireGrace(playerID string, epoch uint64) {
	r.mu.Lock()
	p, ok := r.players[playerID]
	if r.closed || !ok || p.Connected || p.graceEpoch != epoch {
		r.mu.Unlock()
		return
	}
	p.graceTimer = nil
	p.graceExpired = true

	if !r.phase.InMatch() {
		log.Info().Str("room", r.Code).Str("player", p.Name).Msg("⌛ 断线超时，移出房间")
		d := r.departLocked(p)
		r.mu.Unlock()
		r.registry.afterDeparture(r, d)
		return
	}

	log.Info().Str("room", r.Code).Str("player", p.Name).Msg("⌛ 断线超时，判定出局")
	if p.Alive {
		r.eliminateLocked(p, rule.CauseForcedDisconnect)
		if !r.checkWinLocked() {
			r.advanceIfDoneLocked()
		}
		r.broadcastRosterLocked()
	}
	r.mu.Unlock()
}

// reconnect 使用会话 ID 重连，替换连接并恢复私有状态
func (r *Room) reconnect(playerID, sessionID string, client types.ClientInterface) (*Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, apperrors.ErrRoomNotFound
	}
	p, ok := r.players[playerID]
	if !ok || p.SessionID != sessionID {
		return nil, apperrors.ErrSessionUnknown
	}
	if p.graceOver() {
		return nil, apperrors.ErrReconnectExpired
	}

	if p.Connected && p.Client != nil && p.Client.GetID() != client.GetID() {
		// 同一会话的旧连接被新连接顶替
		p.Client.SetRoom("")
	}
	p.stopGrace()
	p.ConnID = client.GetID()
	p.Client = client
	p.Connected = true
	p.DisconnectedAt = time.Time{}
	p.graceDeadline = time.Time{}
	client.SetRoom(r.Code)

	if r.originalHostID == p.ID {
		r.hostID = p.ID
		r.originalHostID = ""
	}

	p.send(codec.MustNewMessage(protocol.MsgReconnected, protocol.ReconnectedPayload{
		RoomCode:  r.Code,
		PlayerID:  p.ID,
		Role:      string(p.Role),
		Alive:     p.Alive,
		Phase:     string(r.phase),
		Round:     r.round,
		HostID:    r.hostID,
		Players:   r.rosterForLocked(p.ID),
		Teammates: r.teammatesLocked(p),
	}))
	r.broadcastExceptLocked(p.ID, codec.MustNewMessage(protocol.MsgPlayerOnline, protocol.PlayerOnlinePayload{
		PlayerID:   p.ID,
		PlayerName: p.Name,
	}))
	r.broadcastRosterLocked()
	r.touchLocked()

	log.Info().Str("room", r.Code).Str("player", p.Name).Msg("📶 玩家重连")
	return p, nil
}
