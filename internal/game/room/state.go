package room

// Phase 房间阶段
type Phase string

const (
	PhaseLobby Phase = "lobby" // 等待开始
	PhaseNight Phase = "night" // 夜晚行动
	PhaseDay   Phase = "day"   // 白天讨论
	PhaseVote  Phase = "vote"  // 白天投票
	PhaseEnded Phase = "ended" // 对局结束
)

// InMatch 是否处于对局中（夜晚、白天、投票）
func (p Phase) InMatch() bool {
	switch p {
	case PhaseNight, PhaseDay, PhaseVote:
		return true
	}
	return false
}

// NightAction 夜间行动类型
type NightAction string

const (
	ActionKill        NightAction = "kill"
	ActionSave        NightAction = "save"
	ActionInvestigate NightAction = "investigate"
)

// 聊天频道
const (
	ChannelRoom  = "room"
	ChannelMafia = "mafia"
	ChannelDead  = "dead"
)
