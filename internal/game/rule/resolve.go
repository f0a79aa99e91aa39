package rule

import "slices"

// Outcome 夜晚结算结果
type Outcome string

const (
	OutcomeNoAction Outcome = "no_action" // 无人被刀
	OutcomeKilled   Outcome = "killed"    // 目标死亡
	OutcomeSaved    Outcome = "saved"     // 目标被医生救下
)

// Cause 出局原因
type Cause string

const (
	CauseNightKill        Cause = "night_kill"
	CauseLynch            Cause = "lynch"
	CauseForcedDisconnect Cause = "forced_disconnect"
)

// MafiaVote 一张杀手投票，按提交顺序保存
type MafiaVote struct {
	VoterID  string
	TargetID string
}

// NightInput 夜晚行动汇总
type NightInput struct {
	Round       int
	MafiaVotes  []MafiaVote
	DoctorSave  string
	Investigate string
}

// NightResult 夜晚结算
type NightResult struct {
	Outcome  Outcome
	TargetID string // 被刀目标，无人被刀时为空
	KilledID string // 实际死亡的玩家
	Saved    bool
	Cutscene string // 仅在有刀人行为时选择
}

// ResolveNight 结算夜晚
// 死亡玩家的投票以及投给死亡玩家的票都不计入。
func ResolveNight(seats []Seat, in NightInput, policy Policy) NightResult {
	alive := aliveIndex(seats)

	var order []string
	counts := make(map[string]int)
	for _, v := range in.MafiaVotes {
		if !alive[v.VoterID] || !alive[v.TargetID] {
			continue
		}
		if counts[v.TargetID] == 0 {
			order = append(order, v.TargetID)
		}
		counts[v.TargetID]++
	}

	target := pickKillTarget(order, counts, policy.KillTie)
	if target == "" {
		return NightResult{Outcome: OutcomeNoAction}
	}

	res := NightResult{TargetID: target}
	if in.DoctorSave != "" && in.DoctorSave == target {
		res.Outcome = OutcomeSaved
		res.Saved = true
		res.Cutscene = pickCutscene(savedCutscenes, in.Round)
		return res
	}
	res.Outcome = OutcomeKilled
	res.KilledID = target
	res.Cutscene = pickCutscene(killCutscenes, in.Round)
	return res
}

// order 是目标首次被投的顺序，平票时按它取第一个
func pickKillTarget(order []string, counts map[string]int, tie KillTieBreak) string {
	best, top := "", 0
	tied := false
	for _, id := range order {
		switch c := counts[id]; {
		case c > top:
			best, top, tied = id, c, false
		case c == top:
			tied = true
		}
	}
	if tied && tie == KillTieNoKill {
		return ""
	}
	return best
}

// ResolveDayVote 结算白天投票
// 只统计存活玩家投给存活玩家的票，严格多数才出局。
func ResolveDayVote(seats []Seat, votes map[string]string, policy Policy) (string, bool) {
	alive := aliveIndex(seats)

	counts := make(map[string]int)
	for voter, target := range votes {
		if !alive[voter] || !alive[target] {
			continue
		}
		counts[target]++
	}
	if len(counts) == 0 {
		return "", false
	}

	top := 0
	var leaders []string
	for id, c := range counts {
		switch {
		case c > top:
			top = c
			leaders = []string{id}
		case c == top:
			leaders = append(leaders, id)
		}
	}

	if len(leaders) == 1 {
		return leaders[0], true
	}
	if policy.LynchTie == LynchTieRandom {
		slices.Sort(leaders)
		return leaders[policy.pick(len(leaders))], true
	}
	return "", false
}

// CheckWinCondition 判断胜负，未分胜负返回 TeamNone
func CheckWinCondition(seats []Seat) Team {
	mafia, town := 0, 0
	for _, s := range seats {
		if !s.Alive {
			continue
		}
		if s.Role.IsMafia() {
			mafia++
		} else {
			town++
		}
	}
	switch {
	case mafia == 0:
		return TeamTown
	case mafia >= town:
		return TeamMafia
	}
	return TeamNone
}

// AliveSeats 存活玩家
func AliveSeats(seats []Seat) []Seat {
	out := make([]Seat, 0, len(seats))
	for _, s := range seats {
		if s.Alive {
			out = append(out, s)
		}
	}
	return out
}

// AliveMafia 存活杀手
func AliveMafia(seats []Seat) []Seat {
	out := make([]Seat, 0, len(seats))
	for _, s := range seats {
		if s.Alive && s.Role.IsMafia() {
			out = append(out, s)
		}
	}
	return out
}

func aliveIndex(seats []Seat) map[string]bool {
	idx := make(map[string]bool, len(seats))
	for _, s := range seats {
		if s.Alive {
			idx[s.ID] = true
		}
	}
	return idx
}
