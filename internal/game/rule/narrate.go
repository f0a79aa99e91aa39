package rule

import "fmt"

var (
	killCutscenes  = []string{"alley", "rooftop", "library", "docks"}
	savedCutscenes = []string{"hospital", "intervention"}
)

// pickCutscene 按回合号轮换，同一回合结果固定
func pickCutscene(variants []string, round int) string {
	if len(variants) == 0 {
		return ""
	}
	idx := round % len(variants)
	if idx < 0 {
		idx += len(variants)
	}
	return variants[idx]
}

// Narrate 夜晚结算旁白
func Narrate(outcome Outcome, victimName string) string {
	switch outcome {
	case OutcomeKilled:
		return fmt.Sprintf("天亮了，%s 昨晚没能活下来。", victimName)
	case OutcomeSaved:
		return fmt.Sprintf("天亮了，%s 遭到袭击，但医生及时赶到救下了他们。", victimName)
	default:
		return "天亮了，昨晚是个平安夜。"
	}
}

// NarrateLynch 投票结算旁白，name 为空表示无人出局
func NarrateLynch(name string) string {
	if name == "" {
		return "投票没有结果，今天无人出局。"
	}
	return fmt.Sprintf("小镇做出了决定，%s 被放逐了。", name)
}

// NarrateCause 出局原因描述
func NarrateCause(cause Cause) string {
	switch cause {
	case CauseNightKill:
		return "夜间遇害"
	case CauseLynch:
		return "被投票放逐"
	case CauseForcedDisconnect:
		return "断线超时出局"
	}
	return ""
}
