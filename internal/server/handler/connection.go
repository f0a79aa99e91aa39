package handler

import (
	"time"

	"github.com/palemoky/mafia-night/internal/protocol"
	"github.com/palemoky/mafia-night/internal/protocol/codec"
	"github.com/palemoky/mafia-night/internal/types"
)

// handlePing 处理心跳消息
func (h *Handler) handlePing(client types.ClientInterface, msg *protocol.Message) {
	payload, err := codec.ParsePayload[protocol.PingPayload](msg)
	if err != nil {
		return
	}

	client.SendMessage(codec.MustNewMessage(protocol.MsgPong, protocol.PongPayload{
		ClientTimestamp: payload.Timestamp,
		ServerTimestamp: time.Now().UnixMilli(),
		Online:          h.server.GetOnlineCount(),
	}))
}

// handleReconnect 使用会话 ID 回到原房间，成功消息由房间下发
func (h *Handler) handleReconnect(client types.ClientInterface, msg *protocol.Message) {
	payload, ok := parse[protocol.ReconnectPayload](client, msg)
	if !ok {
		return
	}
	if payload.SessionID == "" || payload.RoomCode == "" {
		client.SendMessage(codec.NewErrorMessage(protocol.ErrCodeInvalidMsg))
		return
	}

	if _, _, err := h.registry.Reconnect(payload.RoomCode, payload.SessionID, client); err != nil {
		sendError(client, err)
	}
}
