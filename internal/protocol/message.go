package protocol

import "encoding/json"

// Message 基础消息结构
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// MessageType 消息类型
type MessageType string

// 客户端 → 服务端 消息类型
const (
	// 连接操作
	MsgReconnect MessageType = "reconnect" // 断线重连
	MsgPing      MessageType = "ping"      // 心跳 ping

	// 房间操作
	MsgCreateRoom  MessageType = "create_room"  // 创建房间
	MsgJoinRoom    MessageType = "join_room"    // 加入房间
	MsgLeaveRoom   MessageType = "leave_room"   // 离开房间
	MsgStartGame   MessageType = "start_game"   // 房主开始游戏
	MsgRestartGame MessageType = "restart_game" // 房主在结束后重开

	// 游戏操作
	MsgNightAction    MessageType = "night_action"    // 夜间行动（刀人/救人/查验）
	MsgDayVote        MessageType = "day_vote"        // 白天投票
	MsgSkipDiscussion MessageType = "skip_discussion" // 房主跳过讨论
	MsgChat           MessageType = "chat"            // 聊天消息

	// 排行榜
	MsgGetStats       MessageType = "get_stats"       // 获取个人统计
	MsgGetLeaderboard MessageType = "get_leaderboard" // 获取排行榜
)

// 服务端 → 客户端 消息类型
const (
	// 连接相关
	MsgConnected     MessageType = "connected"      // 连接成功
	MsgReconnected   MessageType = "reconnected"    // 重连成功
	MsgPong          MessageType = "pong"           // 心跳 pong
	MsgPlayerOffline MessageType = "player_offline" // 玩家掉线通知
	MsgPlayerOnline  MessageType = "player_online"  // 玩家上线通知

	// 房间相关
	MsgRoomCreated  MessageType = "room_created"  // 房间创建成功
	MsgRoomJoined   MessageType = "room_joined"   // 加入房间成功
	MsgRosterUpdate MessageType = "roster_update" // 玩家列表更新
	MsgRoomClosed   MessageType = "room_closed"   // 房间已关闭

	// 游戏流程
	MsgGameStarted      MessageType = "game_started"      // 游戏开始（私有：身份）
	MsgPhaseChanged     MessageType = "phase_changed"     // 阶段切换
	MsgActionAck        MessageType = "action_ack"        // 夜间行动已受理（私有）
	MsgMafiaVote        MessageType = "mafia_vote"        // 杀手内部投票同步（仅杀手）
	MsgDetectiveResult  MessageType = "detective_result"  // 查验结果（仅侦探）
	MsgNightResult      MessageType = "night_result"      // 夜晚结算
	MsgVoteProgress     MessageType = "vote_progress"     // 投票进度
	MsgVoteResult       MessageType = "vote_result"       // 投票结算
	MsgPlayerEliminated MessageType = "player_eliminated" // 玩家出局
	MsgGameEnded        MessageType = "game_ended"        // 游戏结束（公开身份）

	// 排行榜
	MsgStatsResult       MessageType = "stats_result"       // 个人统计结果
	MsgLeaderboardResult MessageType = "leaderboard_result" // 排行榜结果

	// 错误
	MsgError MessageType = "error" // 错误消息
)
