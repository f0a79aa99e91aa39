package room

import (
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/palemoky/mafia-night/internal/apperrors"
	"github.com/palemoky/mafia-night/internal/game/rule"
	"github.com/palemoky/mafia-night/internal/types"
)

const (
	roomCodeLength = 6                                  // 房间号长度
	roomCodeChars  = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789" // 去掉易混淆的 0/O/1/I
)

// Session 会话 ID 到当前连接的映射
type Session struct {
	ConnID   string
	RoomCode string
	PlayerID string
}

// Registry 房间注册表
// 房间和会话的增删都在 mu 下串行化；持有房间锁时不能再获取 mu。
type Registry struct {
	settings Settings
	mirror   Mirror
	recorder Recorder
	codeGen  func() string
	shuffle  rule.Shuffler

	rooms    map[string]*Room
	sessions map[string]Session
	mu       sync.RWMutex

	mirrorCh chan mirrorOp
	stopCh   chan struct{}
	stopOnce sync.Once
}

// Option 注册表选项
type Option func(*Registry)

// WithMirror 设置房间快照镜像
func WithMirror(m Mirror) Option {
	return func(rg *Registry) { rg.mirror = m }
}

// WithRecorder 设置对局结果记录器
func WithRecorder(rec Recorder) Option {
	return func(rg *Registry) { rg.recorder = rec }
}

// WithCodeGenerator 替换房间号生成函数
func WithCodeGenerator(gen func() string) Option {
	return func(rg *Registry) { rg.codeGen = gen }
}

// WithShuffler 替换身份分配时的洗牌函数
func WithShuffler(s rule.Shuffler) Option {
	return func(rg *Registry) { rg.shuffle = s }
}

// NewRegistry 创建房间注册表并启动空闲清理协程
func NewRegistry(settings Settings, opts ...Option) *Registry {
	rg := &Registry{
		settings: settings,
		codeGen:  randomRoomCode,
		rooms:    make(map[string]*Room),
		sessions: make(map[string]Session),
		mirrorCh: make(chan mirrorOp, 256),
		stopCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(rg)
	}

	if rg.settings.SweepInterval <= 0 {
		rg.settings.SweepInterval = DefaultSettings().SweepInterval
	}

	go rg.sweepLoop()
	if rg.mirror != nil {
		go rg.mirrorLoop()
	}
	return rg
}

// Close 停止后台协程
func (rg *Registry) Close() {
	rg.stopOnce.Do(func() { close(rg.stopCh) })
}

// Settings 当前参数
func (rg *Registry) Settings() Settings {
	return rg.settings
}

// Create 创建房间，创建者成为房主
func (rg *Registry) Create(client types.ClientInterface, name, avatar string) (*Room, *Player, error) {
	rg.mu.Lock()
	code := rg.generateRoomCode()
	room := newRoom(code, rg.settings, rg)

	room.mu.Lock()
	p, err := room.addPlayerLocked(client, name, avatar)
	if err != nil {
		room.mu.Unlock()
		rg.mu.Unlock()
		return nil, nil, err
	}
	rg.rooms[code] = room
	rg.sessions[p.SessionID] = Session{ConnID: p.ConnID, RoomCode: code, PlayerID: p.ID}
	rg.mu.Unlock()

	room.sendJoinedLocked(p, true)
	room.broadcastRosterLocked()
	room.mu.Unlock()

	log.Info().Str("room", code).Str("player", p.Name).Msg("🏠 房间已创建")
	return room, p, nil
}

// Join 加入房间
func (rg *Registry) Join(code string, client types.ClientInterface, name, avatar string) (*Room, *Player, error) {
	room, err := rg.Get(code)
	if err != nil {
		return nil, nil, err
	}

	room.mu.Lock()
	p, err := room.addPlayerLocked(client, name, avatar)
	if err != nil {
		room.mu.Unlock()
		return nil, nil, err
	}
	room.sendJoinedLocked(p, false)
	room.broadcastRosterLocked()
	room.mu.Unlock()

	rg.RegisterSession(p.SessionID, Session{ConnID: p.ConnID, RoomCode: room.Code, PlayerID: p.ID})

	log.Info().Str("room", room.Code).Str("player", p.Name).Msg("👤 玩家加入房间")
	return room, p, nil
}

// Get 获取房间，房间号大小写不敏感
func (rg *Registry) Get(code string) (*Room, error) {
	rg.mu.RLock()
	defer rg.mu.RUnlock()
	room, ok := rg.rooms[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return nil, apperrors.ErrRoomNotFound
	}
	return room, nil
}

// Delete 删除房间并取消其计时器，房间不存在时什么也不做
func (rg *Registry) Delete(code string) {
	rg.deleteWithReason(code, "房间已关闭")
}

func (rg *Registry) deleteWithReason(code, reason string) {
	rg.mu.Lock()
	room, ok := rg.rooms[code]
	if !ok {
		rg.mu.Unlock()
		return
	}
	delete(rg.rooms, code)
	for id, s := range rg.sessions {
		if s.RoomCode == code {
			delete(rg.sessions, id)
		}
	}
	rg.mu.Unlock()

	room.close(reason)
	rg.enqueueMirror(mirrorOp{code: code})
	log.Info().Str("room", code).Str("reason", reason).Msg("🏠 房间已删除")
}

// RegisterSession 注册或更新会话
func (rg *Registry) RegisterSession(sessionID string, s Session) {
	rg.mu.Lock()
	defer rg.mu.Unlock()
	rg.sessions[sessionID] = s
}

// RemoveSession 删除会话
func (rg *Registry) RemoveSession(sessionID string) {
	rg.mu.Lock()
	defer rg.mu.Unlock()
	delete(rg.sessions, sessionID)
}

// LookupSession 查找会话
func (rg *Registry) LookupSession(sessionID string) (Session, bool) {
	rg.mu.RLock()
	defer rg.mu.RUnlock()
	s, ok := rg.sessions[sessionID]
	return s, ok
}

// Leave 主动离开房间
func (rg *Registry) Leave(client types.ClientInterface) error {
	room, err := rg.Get(client.GetRoom())
	if err != nil {
		return apperrors.ErrNotInRoom
	}
	d, err := room.leave(client.GetID())
	if err != nil {
		return err
	}
	rg.afterDeparture(room, d)
	return nil
}

// Disconnect 连接断开通知
func (rg *Registry) Disconnect(client types.ClientInterface) {
	room, err := rg.Get(client.GetRoom())
	if err != nil {
		return
	}
	room.disconnect(client.GetID())
}

// Reconnect 断线重连
func (rg *Registry) Reconnect(code, sessionID string, client types.ClientInterface) (*Room, *Player, error) {
	s, ok := rg.LookupSession(sessionID)
	if !ok || !strings.EqualFold(s.RoomCode, strings.TrimSpace(code)) {
		return nil, nil, apperrors.ErrSessionUnknown
	}
	room, err := rg.Get(s.RoomCode)
	if err != nil {
		return nil, nil, err
	}
	p, err := room.reconnect(s.PlayerID, sessionID, client)
	if err != nil {
		return nil, nil, err
	}
	s.ConnID = client.GetID()
	rg.RegisterSession(sessionID, s)
	return room, p, nil
}

// afterDeparture 在房间锁外清理会话，房间空了就删除
func (rg *Registry) afterDeparture(room *Room, d departure) {
	if rg == nil {
		return
	}
	if d.sessionID != "" {
		rg.RemoveSession(d.sessionID)
	}
	if d.empty {
		rg.removeIfEmpty(room)
	}
}

// removeIfEmpty 再次确认房间为空后删除，避免与并发加入冲突
func (rg *Registry) removeIfEmpty(room *Room) {
	rg.mu.Lock()
	room.mu.Lock()
	if len(room.players) > 0 || rg.rooms[room.Code] != room {
		room.mu.Unlock()
		rg.mu.Unlock()
		return
	}
	room.closed = true
	room.cancelTimerLocked()
	delete(rg.rooms, room.Code)
	room.mu.Unlock()
	rg.mu.Unlock()

	rg.enqueueMirror(mirrorOp{code: room.Code})
	log.Info().Str("room", room.Code).Msg("🏠 房间已解散")
}

// Count 房间数量
func (rg *Registry) Count() int {
	rg.mu.RLock()
	defer rg.mu.RUnlock()
	return len(rg.rooms)
}

// ActiveGamesCount 进行中的对局数量
func (rg *Registry) ActiveGamesCount() int {
	rg.mu.RLock()
	defer rg.mu.RUnlock()

	count := 0
	for _, room := range rg.rooms {
		if room.IsActive() {
			count++
		}
	}
	return count
}

// generateRoomCode 生成未被占用的房间号，调用方持有 mu
func (rg *Registry) generateRoomCode() string {
	for {
		code := rg.codeGen()
		if _, exists := rg.rooms[code]; !exists {
			return code
		}
	}
}

func randomRoomCode() string {
	code := make([]byte, roomCodeLength)
	for i := range code {
		code[i] = roomCodeChars[rand.IntN(len(roomCodeChars))]
	}
	return string(code)
}

// sweepLoop 定期清理空闲房间
func (rg *Registry) sweepLoop() {
	ticker := time.NewTicker(rg.settings.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rg.sweep(time.Now())
		case <-rg.stopCh:
			return
		}
	}
}

// sweep 删除空闲超过阈值的房间
func (rg *Registry) sweep(now time.Time) int {
	rg.mu.RLock()
	var idle []string
	for code, room := range rg.rooms {
		if now.Sub(room.LastActivity()) > rg.settings.IdleThreshold {
			idle = append(idle, code)
		}
	}
	rg.mu.RUnlock()

	for _, code := range idle {
		rg.deleteWithReason(code, "房间长时间无活动已关闭")
	}
	if len(idle) > 0 {
		log.Info().Int("count", len(idle)).Msg("🧹 已清理空闲房间")
	}
	return len(idle)
}
