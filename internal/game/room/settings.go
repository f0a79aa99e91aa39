package room

import (
	"time"

	"github.com/palemoky/mafia-night/internal/game/rule"
)

// Settings 房间和对局参数
type Settings struct {
	MinPlayers int
	MaxPlayers int

	NightDuration time.Duration
	DayDuration   time.Duration
	VoteDuration  time.Duration

	NightResultDelay time.Duration // 夜晚结算后进入白天的等待
	CutsceneDelay    time.Duration // 有过场动画时的等待
	VoteResultDelay  time.Duration // 投票结算后进入夜晚的等待

	LobbyGrace time.Duration // 大厅断线等待
	MatchGrace time.Duration // 对局中断线等待

	SweepInterval time.Duration
	IdleThreshold time.Duration

	ChatPerSecond float64
	ChatBurst     int
	ChatMaxRunes  int

	Policy rule.Policy
}

// DefaultSettings 默认参数
func DefaultSettings() Settings {
	return Settings{
		MinPlayers:       4,
		MaxPlayers:       12,
		NightDuration:    30 * time.Second,
		DayDuration:      60 * time.Second,
		VoteDuration:     30 * time.Second,
		NightResultDelay: 3 * time.Second,
		CutsceneDelay:    8 * time.Second,
		VoteResultDelay:  5 * time.Second,
		LobbyGrace:       10 * time.Second,
		MatchGrace:       60 * time.Second,
		SweepInterval:    time.Minute,
		IdleThreshold:    30 * time.Minute,
		ChatPerSecond:    1,
		ChatBurst:        5,
		ChatMaxRunes:     200,
		Policy:           rule.DefaultPolicy(),
	}
}

// phaseDuration 阶段的名义时长，lobby/ended 为 0
func (s Settings) phaseDuration(p Phase) time.Duration {
	switch p {
	case PhaseNight:
		return s.NightDuration
	case PhaseDay:
		return s.DayDuration
	case PhaseVote:
		return s.VoteDuration
	}
	return 0
}

// graceFor 断线等待时长：对局中更长
func (s Settings) graceFor(p Phase) time.Duration {
	if p.InMatch() {
		return s.MatchGrace
	}
	return s.LobbyGrace
}
