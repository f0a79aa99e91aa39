//go:build !production

package room

import (
	"time"

	"github.com/palemoky/mafia-night/internal/game/rule"
)

// TestSettings 测试参数：计时器默认不会自然触发，由测试显式推进
func TestSettings() Settings {
	s := DefaultSettings()
	s.NightDuration = time.Hour
	s.DayDuration = time.Hour
	s.VoteDuration = time.Hour
	s.NightResultDelay = time.Hour
	s.CutsceneDelay = time.Hour
	s.VoteResultDelay = time.Hour
	s.LobbyGrace = time.Hour
	s.MatchGrace = time.Hour
	s.SweepInterval = time.Hour
	s.ChatPerSecond = 1000
	s.ChatBurst = 1000
	return s
}

// KeepOrder 不打乱顺序：按加入顺序依次为杀手、医生、侦探、平民
func KeepOrder([]string) {}

// PlayerView 玩家状态快照
type PlayerView struct {
	ID        string
	Name      string
	ConnID    string
	Role      rule.Role
	Alive     bool
	Connected bool
}

// PlayerView 读取玩家状态
func (r *Room) PlayerView(id string) (PlayerView, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[id]
	if !ok {
		return PlayerView{}, false
	}
	return PlayerView{
		ID:        p.ID,
		Name:      p.Name,
		ConnID:    p.ConnID,
		Role:      p.Role,
		Alive:     p.Alive,
		Connected: p.Connected,
	}, true
}

// PlayerIDs 按加入顺序返回玩家 ID
func (r *Room) PlayerIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

// FirePendingTimer 立即执行等待中的阶段计时器，没有时返回 false
func (r *Room) FirePendingTimer() bool {
	r.mu.Lock()
	fn := r.timerFn
	r.mu.Unlock()
	if fn == nil {
		return false
	}
	fn()
	return true
}

// pendingTimerFn 当前计时器回调，用于模拟与提前结算同时发生
func (r *Room) pendingTimerFn() func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.timerFn
}
