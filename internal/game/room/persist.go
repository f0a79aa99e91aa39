package room

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/palemoky/mafia-night/internal/game/rule"
	"github.com/palemoky/mafia-night/internal/protocol"
	"github.com/palemoky/mafia-night/internal/protocol/codec"
	"github.com/palemoky/mafia-night/internal/server/storage"
)

const storeTimeout = 5 * time.Second

// Mirror 房间快照镜像（不含身份和会话 ID）
type Mirror interface {
	SaveRoom(ctx context.Context, code string, data *storage.RoomData) error
	DeleteRoom(ctx context.Context, code string) error
}

// Recorder 对局结果记录
type Recorder interface {
	RecordMatch(ctx context.Context, code string, winner string, results []storage.MatchResult) error
}

// mirrorOp data 为空表示删除
type mirrorOp struct {
	code string
	data *storage.RoomData
}

// mirrorLoop 按顺序写入镜像，保证删除不会被更早的保存覆盖
func (rg *Registry) mirrorLoop() {
	for {
		select {
		case op := <-rg.mirrorCh:
			rg.applyMirror(op)
		case <-rg.stopCh:
			return
		}
	}
}

func (rg *Registry) applyMirror(op mirrorOp) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	var err error
	if op.data == nil {
		err = rg.mirror.DeleteRoom(ctx, op.code)
	} else {
		err = rg.mirror.SaveRoom(ctx, op.code, op.data)
	}
	if err != nil {
		log.Error().Err(err).Str("room", op.code).Msg("❌ 房间镜像写入失败")
	}
}

func (rg *Registry) enqueueMirror(op mirrorOp) {
	if rg == nil || rg.mirror == nil {
		return
	}
	select {
	case rg.mirrorCh <- op:
	case <-rg.stopCh:
	default:
		log.Warn().Str("room", op.code).Msg("⚠️ 房间镜像队列已满，丢弃本次写入")
	}
}

// mirrorLocked 保存当前房间快照
func (r *Room) mirrorLocked() {
	if r.registry == nil || r.registry.mirror == nil || r.closed {
		return
	}
	r.registry.enqueueMirror(mirrorOp{code: r.Code, data: r.snapshotLocked()})
}

// snapshotLocked 可公开的房间快照
func (r *Room) snapshotLocked() *storage.RoomData {
	data := &storage.RoomData{
		Code:      r.Code,
		Phase:     string(r.phase),
		Round:     r.round,
		HostID:    r.hostID,
		Players:   make([]storage.PlayerData, 0, len(r.order)),
		CreatedAt: r.CreatedAt.Unix(),
		UpdatedAt: r.lastActivity.Unix(),
	}
	for _, id := range r.order {
		p := r.players[id]
		data.Players = append(data.Players, storage.PlayerData{
			ID:        p.ID,
			Name:      p.Name,
			Avatar:    p.Avatar,
			Alive:     p.Alive,
			Connected: p.Connected,
		})
	}
	return data
}

// recordLocked 把对局结果交给记录器，不等待写入完成
func (r *Room) recordLocked(winner rule.Team) {
	if r.registry == nil || r.registry.recorder == nil {
		return
	}
	results := make([]storage.MatchResult, 0, len(r.order))
	for _, id := range r.order {
		p := r.players[id]
		results = append(results, storage.MatchResult{
			DisplayName: p.Name,
			Role:        string(p.Role),
			Team:        string(p.Role.Team()),
			IsWinner:    p.Role.Team() == winner,
			Survived:    p.Alive,
		})
	}

	rec, code := r.registry.recorder, r.Code
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		if err := rec.RecordMatch(ctx, code, string(winner), results); err != nil {
			log.Error().Err(err).Str("room", code).Msg("❌ 对局结果记录失败")
		}
	}()
}

// sendJoinedLocked 创建/加入成功后给本人下发会话信息
func (r *Room) sendJoinedLocked(p *Player, created bool) {
	msgType := protocol.MsgRoomJoined
	if created {
		msgType = protocol.MsgRoomCreated
	}
	p.send(codec.MustNewMessage(msgType, protocol.RoomJoinedPayload{
		RoomCode:  r.Code,
		PlayerID:  p.ID,
		SessionID: p.SessionID,
		HostID:    r.hostID,
		Players:   r.rosterForLocked(p.ID),
	}))
}
