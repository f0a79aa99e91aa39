package handler

import (
	"strings"

	"github.com/palemoky/mafia-night/internal/apperrors"
	"github.com/palemoky/mafia-night/internal/game/room"
	"github.com/palemoky/mafia-night/internal/protocol"
	"github.com/palemoky/mafia-night/internal/protocol/codec"
	"github.com/palemoky/mafia-night/internal/types"
)

// handleCreateRoom 处理创建房间
func (h *Handler) handleCreateRoom(client types.ClientInterface, msg *protocol.Message) {
	if h.server.IsMaintenanceMode() {
		client.SendMessage(codec.NewErrorMessageWithText(
			protocol.ErrCodeServerMaintenance, "服务器维护中，暂停创建房间"))
		return
	}

	payload, ok := parse[protocol.CreateRoomPayload](client, msg)
	if !ok {
		return
	}

	// 如果已在房间中，先离开
	if client.GetRoom() != "" {
		_ = h.registry.Leave(client)
	}

	if _, _, err := h.registry.Create(client, payload.DisplayName, payload.Avatar); err != nil {
		sendError(client, err)
	}
}

// handleJoinRoom 处理加入房间
func (h *Handler) handleJoinRoom(client types.ClientInterface, msg *protocol.Message) {
	if h.server.IsMaintenanceMode() {
		client.SendMessage(codec.NewErrorMessageWithText(
			protocol.ErrCodeServerMaintenance, "服务器维护中，暂停加入房间"))
		return
	}

	payload, ok := parse[protocol.JoinRoomPayload](client, msg)
	if !ok {
		return
	}

	if current := client.GetRoom(); current != "" {
		if strings.EqualFold(current, strings.TrimSpace(payload.RoomCode)) {
			return
		}
		_ = h.registry.Leave(client)
	}

	if _, _, err := h.registry.Join(payload.RoomCode, client, payload.DisplayName, payload.Avatar); err != nil {
		sendError(client, err)
	}
}

// handleLeaveRoom 处理离开房间
func (h *Handler) handleLeaveRoom(client types.ClientInterface) {
	if err := h.registry.Leave(client); err != nil {
		sendError(client, err)
	}
}

// handleStartGame 房主开始游戏
func (h *Handler) handleStartGame(client types.ClientInterface, msg *protocol.Message) {
	h.withRoom(client, msg, func(r *room.Room) error {
		return r.StartGame(client.GetID())
	})
}

// handleRestartGame 房主重开
func (h *Handler) handleRestartGame(client types.ClientInterface, msg *protocol.Message) {
	h.withRoom(client, msg, func(r *room.Room) error {
		return r.RestartGame(client.GetID())
	})
}

// withRoom 找到客户端所在房间后执行操作
// payload 中带了房间号时必须与当前房间一致。
func (h *Handler) withRoom(client types.ClientInterface, msg *protocol.Message, fn func(*room.Room) error) {
	payload, ok := parse[protocol.RoomPayload](client, msg)
	if !ok {
		return
	}
	r, err := h.currentRoom(client, payload.RoomCode)
	if err != nil {
		sendError(client, err)
		return
	}
	if err := fn(r); err != nil {
		sendError(client, err)
	}
}

func (h *Handler) currentRoom(client types.ClientInterface, code string) (*room.Room, error) {
	current := client.GetRoom()
	if current == "" {
		return nil, apperrors.ErrNotInRoom
	}
	if code = strings.TrimSpace(code); code != "" && !strings.EqualFold(code, current) {
		return nil, apperrors.ErrNotInRoom
	}
	r, err := h.registry.Get(current)
	if err != nil {
		return nil, apperrors.ErrNotInRoom
	}
	return r, nil
}
