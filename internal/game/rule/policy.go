package rule

import (
	"fmt"
	"math/rand/v2"
)

// KillTieBreak 杀手投票平票策略
type KillTieBreak string

const (
	KillTieFirstVote KillTieBreak = "first_vote" // 平票时取最先被投的目标
	KillTieNoKill    KillTieBreak = "no_kill"    // 平票时当晚无人被刀
)

// LynchTieBreak 白天投票平票策略
type LynchTieBreak string

const (
	LynchTieNoElimination LynchTieBreak = "no_elimination" // 平票无人出局
	LynchTieRandom        LynchTieBreak = "random"         // 平票随机出局一人
)

// Policy 结算策略
type Policy struct {
	KillTie  KillTieBreak
	LynchTie LynchTieBreak
	// Pick 返回 [0, n) 的下标，仅随机平票策略使用
	Pick func(n int) int
}

// DefaultPolicy 默认策略
func DefaultPolicy() Policy {
	return Policy{
		KillTie:  KillTieFirstVote,
		LynchTie: LynchTieNoElimination,
		Pick:     rand.IntN,
	}
}

func (p Policy) pick(n int) int {
	if p.Pick == nil {
		return rand.IntN(n)
	}
	return p.Pick(n)
}

// ParseKillTieBreak 解析杀手平票策略，空字符串返回默认值
func ParseKillTieBreak(s string) (KillTieBreak, error) {
	switch KillTieBreak(s) {
	case "", KillTieFirstVote:
		return KillTieFirstVote, nil
	case KillTieNoKill:
		return KillTieNoKill, nil
	}
	return "", fmt.Errorf("unknown kill tie break %q", s)
}

// ParseLynchTieBreak 解析白天平票策略，空字符串返回默认值
func ParseLynchTieBreak(s string) (LynchTieBreak, error) {
	switch LynchTieBreak(s) {
	case "", LynchTieNoElimination:
		return LynchTieNoElimination, nil
	case LynchTieRandom:
		return LynchTieRandom, nil
	}
	return "", fmt.Errorf("unknown lynch tie break %q", s)
}
