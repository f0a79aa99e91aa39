package handler

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/palemoky/mafia-night/internal/game/room"
	"github.com/palemoky/mafia-night/internal/protocol"
	"github.com/palemoky/mafia-night/internal/protocol/codec"
	"github.com/palemoky/mafia-night/internal/server/storage"
	"github.com/palemoky/mafia-night/internal/types"
)

const (
	queryTimeout       = 3 * time.Second
	defaultBoardLimit  = 10
	maxBoardLimit      = 50
	leaderboardOffline = "排行榜未启用"
)

// --- 排行榜处理 ---

// handleGetStats 获取个人统计
func (h *Handler) handleGetStats(client types.ClientInterface, msg *protocol.Message) {
	if h.leaderboard == nil {
		client.SendMessage(codec.NewErrorMessageWithText(protocol.ErrCodeUnknown, leaderboardOffline))
		return
	}
	payload, ok := parse[protocol.GetStatsPayload](client, msg)
	if !ok {
		return
	}
	name, valid := room.SanitizeName(payload.DisplayName)
	if !valid {
		client.SendMessage(codec.NewErrorMessage(protocol.ErrCodeNameInvalid))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	stats, err := h.leaderboard.GetPlayerStats(ctx, name)
	if err != nil {
		log.Error().Err(err).Str("name", name).Msg("❌ 获取统计失败")
		client.SendMessage(codec.NewErrorMessageWithText(protocol.ErrCodeUnknown, "获取统计失败"))
		return
	}
	if stats == nil {
		// 没有统计数据，返回空数据
		client.SendMessage(codec.MustNewMessage(protocol.MsgStatsResult, protocol.StatsResultPayload{
			DisplayName: name,
			Rank:        -1,
		}))
		return
	}

	rank, err := h.leaderboard.GetPlayerRank(ctx, name)
	if err != nil {
		rank = -1
	}

	client.SendMessage(codec.MustNewMessage(protocol.MsgStatsResult, protocol.StatsResultPayload{
		DisplayName: stats.DisplayName,
		TotalGames:  stats.TotalGames,
		Wins:        stats.Wins,
		Losses:      stats.Losses,
		MafiaGames:  stats.MafiaGames,
		MafiaWins:   stats.MafiaWins,
		TownGames:   stats.TownGames,
		TownWins:    stats.TownWins,
		Score:       stats.Score,
		Rank:        rank,
		WinRate:     stats.WinRate(),
	}))
}

// handleGetLeaderboard 获取排行榜
func (h *Handler) handleGetLeaderboard(client types.ClientInterface, msg *protocol.Message) {
	if h.leaderboard == nil {
		client.SendMessage(codec.NewErrorMessageWithText(protocol.ErrCodeUnknown, leaderboardOffline))
		return
	}

	payload, err := codec.ParsePayload[protocol.GetLeaderboardPayload](msg)
	if err != nil {
		payload = &protocol.GetLeaderboardPayload{}
	}
	boardType := normalizeBoardType(payload.Type)
	limit := payload.Limit
	if limit <= 0 || limit > maxBoardLimit {
		limit = defaultBoardLimit
	}

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	entries, err := h.leaderboard.GetLeaderboard(ctx, boardType, limit)
	if err != nil {
		log.Error().Err(err).Str("board", boardType).Msg("❌ 获取排行榜失败")
		client.SendMessage(codec.NewErrorMessageWithText(protocol.ErrCodeUnknown, "获取排行榜失败"))
		return
	}

	protocolEntries := make([]protocol.LeaderboardEntry, 0, len(entries))
	for _, entry := range entries {
		protocolEntries = append(protocolEntries, protocol.LeaderboardEntry{
			Rank:        entry.Rank,
			DisplayName: entry.DisplayName,
			Score:       entry.Score,
			Wins:        entry.Wins,
			WinRate:     entry.WinRate,
		})
	}

	client.SendMessage(codec.MustNewMessage(protocol.MsgLeaderboardResult, protocol.LeaderboardResultPayload{
		Type:    boardType,
		Entries: protocolEntries,
	}))
}

func normalizeBoardType(t string) string {
	switch t = strings.ToLower(strings.TrimSpace(t)); t {
	case storage.BoardDaily, storage.BoardWeekly:
		return t
	}
	return storage.BoardTotal
}
