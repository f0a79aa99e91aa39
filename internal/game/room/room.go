package room

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/palemoky/mafia-night/internal/apperrors"
	"github.com/palemoky/mafia-night/internal/game/rule"
	"github.com/palemoky/mafia-night/internal/protocol"
	"github.com/palemoky/mafia-night/internal/protocol/codec"
	"github.com/palemoky/mafia-night/internal/types"
)

// nightState 夜间行动汇总，每个夜晚重置
type nightState struct {
	mafiaVotes  []rule.MafiaVote
	doctorSave  string
	investigate string
	acted       map[string]bool
}

// Room 游戏房间
// 所有状态变更都在 mu 下完成，同一时刻最多一个阶段计时器。
type Room struct {
	Code      string
	CreatedAt time.Time

	mu sync.Mutex

	phase   Phase
	round   int
	started bool
	winner  rule.Team

	players map[string]*Player // 玩家 ID -> 玩家
	order   []string           // 加入顺序

	hostID         string
	originalHostID string // 房主掉线期间暂存

	night    nightState
	votes    map[string]string // 投票者 -> 目标
	resolved bool              // 当前阶段已结算，等待下一阶段

	lastActivity time.Time
	timer        *time.Timer
	timerFn      func()
	timerEpoch   uint64
	closed       bool

	settings Settings
	shuffle  rule.Shuffler
	registry *Registry
}

func newRoom(code string, settings Settings, registry *Registry) *Room {
	var shuffle rule.Shuffler
	if registry != nil {
		shuffle = registry.shuffle
	}
	now := time.Now()
	return &Room{
		Code:         code,
		CreatedAt:    now,
		phase:        PhaseLobby,
		players:      make(map[string]*Player),
		votes:        make(map[string]string),
		lastActivity: now,
		settings:     settings,
		shuffle:      shuffle,
		registry:     registry,
	}
}

// --- 只读访问 ---

// Phase 当前阶段
func (r *Room) Phase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

// Round 当前回合
func (r *Room) Round() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.round
}

// HostID 当前房主
func (r *Room) HostID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hostID
}

// PlayerCount 玩家数量
func (r *Room) PlayerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players)
}

// Winner 获胜阵营，未结束时为空
func (r *Room) Winner() rule.Team {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.winner
}

// IsActive 是否有进行中的对局
func (r *Room) IsActive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase.InMatch()
}

// LastActivity 最后活跃时间
func (r *Room) LastActivity() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastActivity
}

func (r *Room) touchLocked() {
	r.lastActivity = time.Now()
}

// --- 玩家管理 ---

// addPlayerLocked 校验并加入玩家，第一个玩家成为房主
func (r *Room) addPlayerLocked(client types.ClientInterface, rawName, avatar string) (*Player, error) {
	if r.closed {
		return nil, apperrors.ErrRoomNotFound
	}
	if r.phase != PhaseLobby {
		return nil, apperrors.ErrGameStarted
	}
	if len(r.players) >= r.settings.MaxPlayers {
		return nil, apperrors.ErrRoomFull
	}
	name, ok := SanitizeName(rawName)
	if !ok {
		return nil, apperrors.ErrNameInvalid
	}
	key := nameKey(name)
	for _, p := range r.players {
		if nameKey(p.Name) == key {
			return nil, apperrors.ErrNameTaken
		}
	}

	p := &Player{
		ID:        uuid.NewString(),
		SessionID: generateSessionID(),
		ConnID:    client.GetID(),
		Name:      name,
		Avatar:    avatar,
		Client:    client,
		Alive:     true,
		Connected: true,
		chat:      rate.NewLimiter(rate.Limit(r.settings.ChatPerSecond), r.settings.ChatBurst),
	}
	r.players[p.ID] = p
	r.order = append(r.order, p.ID)
	if r.hostID == "" {
		r.hostID = p.ID
	}
	client.SetRoom(r.Code)
	r.touchLocked()
	return p, nil
}

// removePlayerLocked 移除玩家，必要时移交房主，返回房间是否已空
func (r *Room) removePlayerLocked(p *Player) bool {
	p.stopGrace()
	delete(r.players, p.ID)
	for i, id := range r.order {
		if id == p.ID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	if p.Client != nil && p.Client.GetRoom() == r.Code {
		p.Client.SetRoom("")
	}

	if r.originalHostID == p.ID {
		r.originalHostID = ""
	}
	if r.hostID == p.ID {
		r.hostID = ""
		r.promoteHostLocked()
	}
	delete(r.votes, p.ID)
	r.touchLocked()
	return len(r.players) == 0
}

// promoteHostLocked 选第一个在线玩家当房主，都不在线则选第一个玩家
func (r *Room) promoteHostLocked() {
	for _, id := range r.order {
		if r.players[id].Connected {
			r.hostID = id
			return
		}
	}
	if len(r.order) > 0 {
		r.hostID = r.order[0]
	}
}

func (r *Room) playerByConnLocked(connID string) (*Player, error) {
	for _, p := range r.players {
		if p.ConnID == connID {
			return p, nil
		}
	}
	return nil, apperrors.ErrNotInRoom
}

func (r *Room) seatsLocked() []rule.Seat {
	seats := make([]rule.Seat, 0, len(r.players))
	for _, id := range r.order {
		seats = append(seats, r.players[id].seat())
	}
	return seats
}

func (r *Room) aliveCountLocked() int {
	return len(rule.AliveSeats(r.seatsLocked()))
}

// --- 视图 ---

// rosterForLocked 玩家列表，只有 viewer 自己能看到身份
func (r *Room) rosterForLocked(viewerID string) []protocol.PlayerInfo {
	infos := make([]protocol.PlayerInfo, 0, len(r.order))
	for _, id := range r.order {
		p := r.players[id]
		info := protocol.PlayerInfo{
			ID:        p.ID,
			Name:      p.Name,
			Avatar:    p.Avatar,
			Alive:     p.Alive,
			Connected: p.Connected,
			IsHost:    p.ID == r.hostID,
		}
		if p.ID == viewerID {
			info.Role = string(p.Role)
		}
		infos = append(infos, info)
	}
	return infos
}

// teammatesLocked 杀手同伴（不含自己），非杀手返回 nil
func (r *Room) teammatesLocked(p *Player) []protocol.PlayerInfo {
	if !p.Role.IsMafia() {
		return nil
	}
	var mates []protocol.PlayerInfo
	for _, id := range r.order {
		m := r.players[id]
		if m.ID == p.ID || !m.Role.IsMafia() {
			continue
		}
		mates = append(mates, protocol.PlayerInfo{
			ID:        m.ID,
			Name:      m.Name,
			Avatar:    m.Avatar,
			Alive:     m.Alive,
			Connected: m.Connected,
			IsHost:    m.ID == r.hostID,
			Role:      string(m.Role),
		})
	}
	return mates
}

// --- 消息发送 ---

// broadcastLocked 发给房间内所有在线玩家
func (r *Room) broadcastLocked(msg *protocol.Message) {
	for _, id := range r.order {
		r.players[id].send(msg)
	}
}

// broadcastExceptLocked 发给除指定玩家外的所有在线玩家
func (r *Room) broadcastExceptLocked(exceptID string, msg *protocol.Message) {
	for _, id := range r.order {
		if id != exceptID {
			r.players[id].send(msg)
		}
	}
}

// broadcastMafiaLocked 只发给存活杀手
func (r *Room) broadcastMafiaLocked(msg *protocol.Message) {
	for _, s := range rule.AliveMafia(r.seatsLocked()) {
		r.players[s.ID].send(msg)
	}
}

// broadcastDeadLocked 只发给出局玩家
func (r *Room) broadcastDeadLocked(msg *protocol.Message) {
	for _, id := range r.order {
		if p := r.players[id]; !p.Alive {
			p.send(msg)
		}
	}
}

// broadcastRosterLocked 每个玩家收到各自视角的玩家列表
func (r *Room) broadcastRosterLocked() {
	for _, id := range r.order {
		p := r.players[id]
		p.send(codec.MustNewMessage(protocol.MsgRosterUpdate, protocol.RosterPayload{
			RoomCode: r.Code,
			HostID:   r.hostID,
			Phase:    string(r.phase),
			Players:  r.rosterForLocked(p.ID),
		}))
	}
	r.mirrorLocked()
}

// --- 计时器 ---

// armTimerLocked 取消旧计时器后设置新计时器
// 回调在锁内执行，且只在计时器未被取消、房间未关闭时执行。
func (r *Room) armTimerLocked(d time.Duration, fire func()) {
	r.cancelTimerLocked()
	epoch := r.timerEpoch
	cb := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.closed || r.timerEpoch != epoch {
			log.Debug().Str("room", r.Code).Msg("⏱️ 过期计时器已忽略")
			return
		}
		// 每个回调最多执行一次
		r.timer, r.timerFn = nil, nil
		r.timerEpoch++
		fire()
	}
	r.timer = time.AfterFunc(d, cb)
	r.timerFn = cb
}

func (r *Room) cancelTimerLocked() {
	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer, r.timerFn = nil, nil
	r.timerEpoch++
}

// HasPendingTimer 是否有等待中的阶段计时器
func (r *Room) HasPendingTimer() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.timer != nil
}

// close 关闭房间：取消全部计时器并通知玩家
func (r *Room) close(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	r.cancelTimerLocked()

	msg := codec.MustNewMessage(protocol.MsgRoomClosed, protocol.RoomClosedPayload{
		RoomCode: r.Code,
		Reason:   reason,
	})
	for _, p := range r.players {
		p.stopGrace()
		p.send(msg)
		if p.Client != nil && p.Client.GetRoom() == r.Code {
			p.Client.SetRoom("")
		}
	}
}
