package handler

import (
	"github.com/palemoky/mafia-night/internal/game/room"
	"github.com/palemoky/mafia-night/internal/protocol"
	"github.com/palemoky/mafia-night/internal/types"
)

// handleNightAction 处理夜间行动
func (h *Handler) handleNightAction(client types.ClientInterface, msg *protocol.Message) {
	payload, ok := parse[protocol.NightActionPayload](client, msg)
	if !ok {
		return
	}
	r, err := h.currentRoom(client, payload.RoomCode)
	if err != nil {
		sendError(client, err)
		return
	}
	if err := r.SubmitNightAction(client.GetID(), room.NightAction(payload.Action), payload.TargetID); err != nil {
		sendError(client, err)
	}
}

// handleDayVote 处理白天投票
func (h *Handler) handleDayVote(client types.ClientInterface, msg *protocol.Message) {
	payload, ok := parse[protocol.DayVotePayload](client, msg)
	if !ok {
		return
	}
	r, err := h.currentRoom(client, payload.RoomCode)
	if err != nil {
		sendError(client, err)
		return
	}
	if err := r.SubmitDayVote(client.GetID(), payload.TargetID); err != nil {
		sendError(client, err)
	}
}

// handleSkipDiscussion 房主跳过讨论
func (h *Handler) handleSkipDiscussion(client types.ClientInterface, msg *protocol.Message) {
	h.withRoom(client, msg, func(r *room.Room) error {
		return r.SkipDiscussion(client.GetID())
	})
}
