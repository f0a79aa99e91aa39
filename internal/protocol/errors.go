package protocol

// 错误码
const (
	ErrCodeUnknown    = 1000
	ErrCodeInvalidMsg = 1001
	ErrCodeRateLimit  = 1002 // 速率限制

	ErrCodeRoomNotFound = 2001
	ErrCodeRoomFull     = 2002
	ErrCodeNotInRoom    = 2003
	ErrCodeGameStarted  = 2004 // 游戏已开始
	ErrCodeNameInvalid  = 2005
	ErrCodeNameTaken    = 2006
	ErrCodeNotHost      = 2007
	ErrCodePlayerCount  = 2008

	ErrCodeWrongPhase    = 3001
	ErrCodeWrongRole     = 3002
	ErrCodePlayerDead    = 3003
	ErrCodeAlreadyActed  = 3004
	ErrCodeInvalidTarget = 3005
	ErrCodeTargetDead    = 3006
	ErrCodeSelfTarget    = 3007
	ErrCodeInvalidAction = 3008
	ErrCodeChatClosed    = 3009

	ErrCodeSessionUnknown   = 4001
	ErrCodeReconnectExpired = 4002

	ErrCodeServerMaintenance = 5003 // 服务器维护中
)

// ErrorMessages 错误码对应的消息
var ErrorMessages = map[int]string{
	ErrCodeUnknown:           "未知错误",
	ErrCodeInvalidMsg:        "无效的消息格式",
	ErrCodeRateLimit:         "请求过于频繁",
	ErrCodeRoomNotFound:      "房间不存在",
	ErrCodeRoomFull:          "房间已满",
	ErrCodeNotInRoom:         "您不在房间中",
	ErrCodeGameStarted:       "游戏已开始",
	ErrCodeNameInvalid:       "昵称需为 3-16 个字符",
	ErrCodeNameTaken:         "昵称已被占用",
	ErrCodeNotHost:           "只有房主可以执行该操作",
	ErrCodePlayerCount:       "玩家人数不符合要求",
	ErrCodeWrongPhase:        "当前阶段不能执行该操作",
	ErrCodeWrongRole:         "您的身份不能执行该操作",
	ErrCodePlayerDead:        "出局玩家不能执行该操作",
	ErrCodeAlreadyActed:      "本轮您已经行动过了",
	ErrCodeInvalidTarget:     "目标玩家不存在",
	ErrCodeTargetDead:        "目标玩家已出局",
	ErrCodeSelfTarget:        "不能选择自己",
	ErrCodeInvalidAction:     "未知的行动类型",
	ErrCodeChatClosed:        "当前无法发言",
	ErrCodeSessionUnknown:    "会话不存在",
	ErrCodeReconnectExpired:  "重连已超时",
	ErrCodeServerMaintenance: "服务器维护中",
}
