package handler

import (
	"github.com/palemoky/mafia-night/internal/protocol"
	"github.com/palemoky/mafia-night/internal/types"
)

// handleChat 处理聊天消息，频道由房间按阶段和存活状态决定
func (h *Handler) handleChat(client types.ClientInterface, msg *protocol.Message) {
	payload, ok := parse[protocol.ChatPayload](client, msg)
	if !ok {
		return
	}
	r, err := h.currentRoom(client, payload.RoomCode)
	if err != nil {
		sendError(client, err)
		return
	}
	if err := r.SendChat(client.GetID(), payload.Text); err != nil {
		sendError(client, err)
	}
}
