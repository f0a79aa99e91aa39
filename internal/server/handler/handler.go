package handler

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/palemoky/mafia-night/internal/apperrors"
	"github.com/palemoky/mafia-night/internal/game/room"
	"github.com/palemoky/mafia-night/internal/protocol"
	"github.com/palemoky/mafia-night/internal/protocol/codec"
	"github.com/palemoky/mafia-night/internal/server/storage"
	"github.com/palemoky/mafia-night/internal/types"
)

// Leaderboard 排行榜查询
type Leaderboard interface {
	GetPlayerStats(ctx context.Context, name string) (*storage.PlayerStats, error)
	GetPlayerRank(ctx context.Context, name string) (int64, error)
	GetLeaderboard(ctx context.Context, boardType string, limit int) ([]storage.LeaderboardEntry, error)
}

// HandlerDeps 处理器依赖
type HandlerDeps struct {
	Server      types.ServerInterface
	Registry    *room.Registry
	Leaderboard Leaderboard // 未配置 Redis 时为空
}

// Handler 消息处理器
type Handler struct {
	server      types.ServerInterface
	registry    *room.Registry
	leaderboard Leaderboard
	handlers    map[protocol.MessageType]handlerFunc
}

// handlerFunc 统一的处理器函数签名
type handlerFunc func(client types.ClientInterface, msg *protocol.Message)

// NewHandler 创建处理器
func NewHandler(deps HandlerDeps) *Handler {
	h := &Handler{
		server:      deps.Server,
		registry:    deps.Registry,
		leaderboard: deps.Leaderboard,
	}
	h.initHandlers()
	return h
}

// initHandlers 初始化消息处理器映射
func (h *Handler) initHandlers() {
	h.handlers = map[protocol.MessageType]handlerFunc{
		// 连接操作
		protocol.MsgPing:      h.handlePing,
		protocol.MsgReconnect: h.handleReconnect,

		// 房间操作
		protocol.MsgCreateRoom:  h.handleCreateRoom,
		protocol.MsgJoinRoom:    h.handleJoinRoom,
		protocol.MsgLeaveRoom:   func(c types.ClientInterface, _ *protocol.Message) { h.handleLeaveRoom(c) },
		protocol.MsgStartGame:   h.handleStartGame,
		protocol.MsgRestartGame: h.handleRestartGame,

		// 游戏操作
		protocol.MsgNightAction:    h.handleNightAction,
		protocol.MsgDayVote:        h.handleDayVote,
		protocol.MsgSkipDiscussion: h.handleSkipDiscussion,
		protocol.MsgChat:           h.handleChat,

		// 信息查询
		protocol.MsgGetStats:       h.handleGetStats,
		protocol.MsgGetLeaderboard: h.handleGetLeaderboard,
	}
}

// Handle 处理消息
func (h *Handler) Handle(client types.ClientInterface, msg *protocol.Message) {
	if handler, ok := h.handlers[msg.Type]; ok {
		handler(client, msg)
		return
	}

	log.Warn().
		Str("type", string(msg.Type)).
		Str("client", client.GetID()).
		Int("payload_bytes", len(msg.Payload)).
		Msg("⚠️ 未知消息类型")
	client.SendMessage(codec.NewErrorMessage(protocol.ErrCodeInvalidMsg))
}

// sendError 把错误转换成错误消息发给客户端
func sendError(client types.ClientInterface, err error) {
	code := apperrors.CodeOf(err)
	if code == protocol.ErrCodeUnknown {
		log.Error().Err(err).Str("client", client.GetID()).Msg("❌ 处理请求失败")
	}
	client.SendMessage(codec.NewErrorMessage(code))
}

// parse 解析 payload，失败时回复格式错误
func parse[T any](client types.ClientInterface, msg *protocol.Message) (*T, bool) {
	payload, err := codec.ParsePayload[T](msg)
	if err != nil {
		client.SendMessage(codec.NewErrorMessage(protocol.ErrCodeInvalidMsg))
		return nil, false
	}
	return payload, true
}
