package protocol

// --- 客户端请求 Payloads ---

// ReconnectPayload 断线重连请求
type ReconnectPayload struct {
	RoomCode  string `json:"room_code"`
	SessionID string `json:"session_id"` // 创建/加入房间时下发的会话 ID
}

// PingPayload 心跳请求
type PingPayload struct {
	Timestamp int64 `json:"timestamp"` // 客户端时间戳（毫秒）
}

// CreateRoomPayload 创建房间请求
type CreateRoomPayload struct {
	DisplayName string `json:"display_name"`
	Avatar      string `json:"avatar"`
}

// JoinRoomPayload 加入房间请求
type JoinRoomPayload struct {
	RoomCode    string `json:"room_code"`
	DisplayName string `json:"display_name"`
	Avatar      string `json:"avatar"`
}

// RoomPayload 只携带房间号的请求（开始/重开/离开/跳过讨论）
type RoomPayload struct {
	RoomCode string `json:"room_code"`
}

// NightActionPayload 夜间行动请求
type NightActionPayload struct {
	RoomCode string `json:"room_code"`
	Action   string `json:"action"` // kill/save/investigate
	TargetID string `json:"target_id"`
}

// DayVotePayload 白天投票请求
type DayVotePayload struct {
	RoomCode string `json:"room_code"`
	TargetID string `json:"target_id"`
}

// ChatPayload 聊天请求
type ChatPayload struct {
	RoomCode string `json:"room_code"`
	Text     string `json:"text"`
}

// GetStatsPayload 获取个人统计请求
type GetStatsPayload struct {
	DisplayName string `json:"display_name"`
}

// GetLeaderboardPayload 获取排行榜请求
type GetLeaderboardPayload struct {
	Type  string `json:"type"` // total/daily/weekly
	Limit int    `json:"limit"`
}

// --- 服务端响应 Payloads ---

// ConnectedPayload 连接成功响应
type ConnectedPayload struct {
	ConnectionID string `json:"connection_id"`
}

// PongPayload 心跳响应
type PongPayload struct {
	ClientTimestamp int64 `json:"client_timestamp"` // 客户端发送的时间戳
	ServerTimestamp int64 `json:"server_timestamp"` // 服务器时间戳（毫秒）
	Online          int   `json:"online"`           // 在线连接数
}

// RoomJoinedPayload 创建/加入房间成功响应（仅发给本人）
type RoomJoinedPayload struct {
	RoomCode  string       `json:"room_code"`
	PlayerID  string       `json:"player_id"`
	SessionID string       `json:"session_id"`
	HostID    string       `json:"host_id"`
	Players   []PlayerInfo `json:"players"`
}

// RosterPayload 玩家列表
type RosterPayload struct {
	RoomCode string       `json:"room_code"`
	HostID   string       `json:"host_id"`
	Phase    string       `json:"phase"`
	Players  []PlayerInfo `json:"players"`
}

// PlayerOfflinePayload 玩家掉线通知
type PlayerOfflinePayload struct {
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
	GraceMs    int64  `json:"grace_ms"` // 等待重连时长（毫秒）
}

// PlayerOnlinePayload 玩家上线通知
type PlayerOnlinePayload struct {
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
}

// RoomClosedPayload 房间关闭通知
type RoomClosedPayload struct {
	RoomCode string `json:"room_code"`
	Reason   string `json:"reason"`
}

// GameStartedPayload 游戏开始（仅发给本人）
type GameStartedPayload struct {
	Role      string       `json:"role"`
	Teammates []PlayerInfo `json:"teammates,omitempty"` // 仅杀手可见
	Phase     string       `json:"phase"`
	Round     int          `json:"round"`
}

// PhaseChangedPayload 阶段切换
type PhaseChangedPayload struct {
	Phase      string `json:"phase"`
	Round      int    `json:"round"`
	DurationMs int64  `json:"duration_ms"`
}

// ActionAckPayload 夜间行动受理
type ActionAckPayload struct {
	Action   string `json:"action"`
	TargetID string `json:"target_id"`
}

// MafiaVotePayload 杀手内部投票同步
type MafiaVotePayload struct {
	VoterID  string `json:"voter_id"`
	TargetID string `json:"target_id"`
}

// DetectiveResultPayload 查验结果
type DetectiveResultPayload struct {
	TargetID   string `json:"target_id"`
	TargetName string `json:"target_name"`
	IsMafia    bool   `json:"is_mafia"`
}

// NightResultPayload 夜晚结算
type NightResultPayload struct {
	Round     int    `json:"round"`
	Outcome   string `json:"outcome"` // no_action/killed/saved
	VictimID  string `json:"victim_id,omitempty"`
	Narration string `json:"narration"`
	Cutscene  string `json:"cutscene,omitempty"`
}

// VoteProgressPayload 投票进度（不公开投票对象）
type VoteProgressPayload struct {
	Voted int `json:"voted"`
	Alive int `json:"alive"`
}

// VoteResultPayload 投票结算
type VoteResultPayload struct {
	Round     int    `json:"round"`
	LynchedID string `json:"lynched_id,omitempty"`
	Narration string `json:"narration"`
}

// PlayerEliminatedPayload 玩家出局
type PlayerEliminatedPayload struct {
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
	Cause      string `json:"cause"` // night_kill/lynch/forced_disconnect
	Narration  string `json:"narration"`
}

// GameEndedPayload 游戏结束
type GameEndedPayload struct {
	Winner string       `json:"winner"` // town/mafia
	Round  int          `json:"round"`
	Roles  []RoleReveal `json:"roles"`
}

// RoleReveal 结束时公开的身份
type RoleReveal struct {
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
	Role       string `json:"role"`
	Alive      bool   `json:"alive"`
}

// ReconnectedPayload 重连成功响应（仅发给本人）
type ReconnectedPayload struct {
	RoomCode  string       `json:"room_code"`
	PlayerID  string       `json:"player_id"`
	Role      string       `json:"role,omitempty"`
	Alive     bool         `json:"alive"`
	Phase     string       `json:"phase"`
	Round     int          `json:"round"`
	HostID    string       `json:"host_id"`
	Players   []PlayerInfo `json:"players"`
	Teammates []PlayerInfo `json:"teammates,omitempty"`
}

// ChatMessagePayload 聊天消息
type ChatMessagePayload struct {
	FromID   string `json:"from_id"`
	FromName string `json:"from_name"`
	Text     string `json:"text"`
	Channel  string `json:"channel"` // room/mafia/dead
}

// StatsResultPayload 个人统计结果
type StatsResultPayload struct {
	DisplayName string  `json:"display_name"`
	TotalGames  int     `json:"total_games"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	MafiaGames  int     `json:"mafia_games"`
	MafiaWins   int     `json:"mafia_wins"`
	TownGames   int     `json:"town_games"`
	TownWins    int     `json:"town_wins"`
	Score       int     `json:"score"`
	Rank        int64   `json:"rank"`
	WinRate     float64 `json:"win_rate"`
}

// LeaderboardResultPayload 排行榜结果
type LeaderboardResultPayload struct {
	Type    string             `json:"type"`
	Entries []LeaderboardEntry `json:"entries"`
}

// LeaderboardEntry 排行榜条目
type LeaderboardEntry struct {
	Rank        int     `json:"rank"`
	DisplayName string  `json:"display_name"`
	Score       int     `json:"score"`
	Wins        int     `json:"wins"`
	WinRate     float64 `json:"win_rate"`
}

// ErrorPayload 错误响应
type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// --- 通用数据结构 ---

// PlayerInfo 玩家信息（Role 只对本人填写）
type PlayerInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Avatar    string `json:"avatar"`
	Alive     bool   `json:"alive"`
	Connected bool   `json:"connected"`
	IsHost    bool   `json:"is_host"`
	Role      string `json:"role,omitempty"`
}
