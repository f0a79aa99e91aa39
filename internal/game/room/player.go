package room

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/time/rate"

	"github.com/palemoky/mafia-night/internal/game/rule"
	"github.com/palemoky/mafia-night/internal/protocol"
	"github.com/palemoky/mafia-night/internal/types"
)

const (
	nameMinRunes = 3
	nameMaxRunes = 16
)

// Player 房间中的玩家
type Player struct {
	ID        string // 公开 ID，作为行动和投票目标
	SessionID string // 重连凭证，只发给本人
	ConnID    string // 当前连接 ID，重连后变化
	Name      string
	Avatar    string
	Client    types.ClientInterface

	Role      rule.Role
	Alive     bool
	Connected bool

	DisconnectedAt time.Time
	graceDeadline  time.Time
	graceExpired   bool
	graceTimer     *time.Timer
	graceEpoch     uint64

	chat *rate.Limiter
}

func (p *Player) send(msg *protocol.Message) {
	if p.Connected && p.Client != nil {
		p.Client.SendMessage(msg)
	}
}

func (p *Player) seat() rule.Seat {
	return rule.Seat{ID: p.ID, Role: p.Role, Alive: p.Alive}
}

func (p *Player) stopGrace() {
	if p.graceTimer != nil {
		p.graceTimer.Stop()
		p.graceTimer = nil
	}
	p.graceEpoch++
}

// SanitizeName 规范化昵称：NFKC、去除控制字符和首尾空白
// 返回规范化后的昵称，不满足 3-16 个字符时返回 false
func SanitizeName(raw string) (string, bool) {
	name := norm.NFKC.String(raw)
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	name = strings.Join(strings.Fields(name), " ")

	n := utf8.RuneCountInString(name)
	if n < nameMinRunes || n > nameMaxRunes {
		return "", false
	}
	return name, true
}

// nameKey 昵称比较键（大小写不敏感）
func nameKey(name string) string {
	// Caser 有状态，不能跨 goroutine 共享
	return cases.Fold().String(name)
}

// generateSessionID 生成会话 ID
func generateSessionID() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
