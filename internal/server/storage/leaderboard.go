package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// Redis key
	playerStatsKey    = "player:stats:"
	leaderboardKey    = "leaderboard:score"
	dailyLeaderboard  = "leaderboard:daily:"
	weeklyLeaderboard = "leaderboard:weekly:"
	roomHistoryKey    = "room:history:"

	roomHistoryLimit      = 20
	roomHistoryExpiration = 7 * 24 * time.Hour
)

// 排行榜类型
const (
	BoardTotal  = "total"
	BoardDaily  = "daily"
	BoardWeekly = "weekly"
)

// MatchResult 单个玩家的对局结果
type MatchResult struct {
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	Team        string `json:"team"`
	IsWinner    bool   `json:"is_winner"`
	Survived    bool   `json:"survived"`
}

// MatchRecord 一局对局的历史记录
type MatchRecord struct {
	RoomCode string        `json:"room_code"`
	Winner   string        `json:"winner"`
	EndedAt  int64         `json:"ended_at"`
	Results  []MatchResult `json:"results"`
}

// PlayerStats 玩家统计数据，按昵称记录
type PlayerStats struct {
	DisplayName string `json:"display_name"`

	TotalGames int `json:"total_games"`
	Wins       int `json:"wins"`
	Losses     int `json:"losses"`

	// 杀手/好人阵营分开统计
	MafiaGames int `json:"mafia_games"`
	MafiaWins  int `json:"mafia_wins"`
	TownGames  int `json:"town_games"`
	TownWins   int `json:"town_wins"`

	Score int `json:"score"`

	CurrentStreak int `json:"current_streak"` // 正数为连胜，负数为连败
	MaxWinStreak  int `json:"max_win_streak"`

	LastPlayedAt int64 `json:"last_played_at"`
	CreatedAt    int64 `json:"created_at"`
}

// WinRate 胜率（百分比）
func (s *PlayerStats) WinRate() float64 {
	if s.TotalGames == 0 {
		return 0
	}
	return float64(s.Wins) / float64(s.TotalGames) * 100
}

// 积分规则
const (
	WinAsMafia  = 30  // 杀手获胜
	WinAsTown   = 15  // 好人获胜
	LoseAsMafia = -10 // 杀手失败
	LoseAsTown  = -5  // 好人失败

	// 连胜加成
	StreakBonus3  = 5
	StreakBonus5  = 10
	StreakBonus10 = 20
)

// LeaderboardEntry 排行榜条目
type LeaderboardEntry struct {
	Rank        int
	DisplayName string
	Score       int
	Wins        int
	WinRate     float64
}

// LeaderboardManager 排行榜管理器
type LeaderboardManager struct {
	redis *redis.Client
}

// NewLeaderboardManager 创建排行榜管理器
func NewLeaderboardManager(client *redis.Client) *LeaderboardManager {
	return &LeaderboardManager{redis: client}
}

// statsMember 昵称在排行榜中的成员名（大小写不敏感）
func statsMember(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// GetPlayerStats 获取玩家统计，不存在时返回 nil
func (lm *LeaderboardManager) GetPlayerStats(ctx context.Context, name string) (*PlayerStats, error) {
	data, err := lm.redis.Get(ctx, playerStatsKey+statsMember(name)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var stats PlayerStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// SavePlayerStats 保存玩家统计
func (lm *LeaderboardManager) SavePlayerStats(ctx context.Context, stats *PlayerStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return lm.redis.Set(ctx, playerStatsKey+statsMember(stats.DisplayName), data, 0).Err()
}

func (lm *LeaderboardManager) getOrCreateStats(ctx context.Context, name string) (*PlayerStats, error) {
	stats, err := lm.GetPlayerStats(ctx, name)
	if err != nil {
		return nil, err
	}
	if stats == nil {
		stats = &PlayerStats{
			DisplayName: name,
			CreatedAt:   time.Now().Unix(),
		}
	}
	return stats, nil
}

// updateTeamStats 更新阵营统计并返回基础积分变化
func updateTeamStats(stats *PlayerStats, isMafia, isWinner bool) int {
	switch {
	case isMafia && isWinner:
		stats.MafiaGames++
		stats.MafiaWins++
		return WinAsMafia
	case isMafia:
		stats.MafiaGames++
		return LoseAsMafia
	case isWinner:
		stats.TownGames++
		stats.TownWins++
		return WinAsTown
	default:
		stats.TownGames++
		return LoseAsTown
	}
}

// updateWinLossStats 更新胜负统计和连胜/连败
func updateWinLossStats(stats *PlayerStats, isWinner bool) {
	if isWinner {
		stats.Wins++
		stats.CurrentStreak = max(1, stats.CurrentStreak+1)
	} else {
		stats.Losses++
		stats.CurrentStreak = min(-1, stats.CurrentStreak-1)
	}
	stats.MaxWinStreak = max(stats.MaxWinStreak, stats.CurrentStreak)
}

func calculateStreakBonus(streak int) int {
	switch {
	case streak >= 10:
		return StreakBonus10
	case streak >= 5:
		return StreakBonus5
	case streak >= 3:
		return StreakBonus3
	default:
		return 0
	}
}

// RecordGameResult 记录单个玩家的对局结果
func (lm *LeaderboardManager) RecordGameResult(ctx context.Context, name string, isMafia, isWinner bool) error {
	stats, err := lm.getOrCreateStats(ctx, name)
	if err != nil {
		return err
	}

	stats.DisplayName = name
	stats.TotalGames++
	stats.LastPlayedAt = time.Now().Unix()

	scoreChange := updateTeamStats(stats, isMafia, isWinner)
	updateWinLossStats(stats, isWinner)
	scoreChange += calculateStreakBonus(stats.CurrentStreak)
	stats.Score = max(0, stats.Score+scoreChange)

	if err := lm.SavePlayerStats(ctx, stats); err != nil {
		return err
	}
	return lm.UpdateLeaderboard(ctx, stats)
}

// RecordMatch 记录一局对局：每个玩家的统计，以及房间历史
func (lm *LeaderboardManager) RecordMatch(ctx context.Context, roomCode, winner string, results []MatchResult) error {
	var errs []error
	for _, res := range results {
		if err := lm.RecordGameResult(ctx, res.DisplayName, res.Team == "mafia", res.IsWinner); err != nil {
			errs = append(errs, fmt.Errorf("记录 %s 失败: %w", res.DisplayName, err))
		}
	}

	record, err := json.Marshal(MatchRecord{
		RoomCode: roomCode,
		Winner:   winner,
		EndedAt:  time.Now().Unix(),
		Results:  results,
	})
	if err != nil {
		return errors.Join(append(errs, err)...)
	}

	key := roomHistoryKey + roomCode
	pipe := lm.redis.TxPipeline()
	pipe.LPush(ctx, key, record)
	pipe.LTrim(ctx, key, 0, roomHistoryLimit-1)
	pipe.Expire(ctx, key, roomHistoryExpiration)
	if _, err := pipe.Exec(ctx); err != nil {
		errs = append(errs, fmt.Errorf("写入房间历史失败: %w", err))
	}
	return errors.Join(errs...)
}

// GetRoomHistory 获取房间最近的对局记录（新的在前）
func (lm *LeaderboardManager) GetRoomHistory(ctx context.Context, roomCode string, limit int) ([]MatchRecord, error) {
	raw, err := lm.redis.LRange(ctx, roomHistoryKey+roomCode, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	records := make([]MatchRecord, 0, len(raw))
	for _, item := range raw {
		var rec MatchRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func boardKey(boardType string, now time.Time) string {
	switch boardType {
	case BoardDaily:
		return dailyLeaderboard + now.Format("2006-01-02")
	case BoardWeekly:
		year, week := now.ISOWeek()
		return fmt.Sprintf("%s%d-W%02d", weeklyLeaderboard, year, week)
	}
	return leaderboardKey
}

// UpdateLeaderboard 更新总榜、日榜和周榜
func (lm *LeaderboardManager) UpdateLeaderboard(ctx context.Context, stats *PlayerStats) error {
	now := time.Now()
	member := statsMember(stats.DisplayName)
	z := redis.Z{Score: float64(stats.Score), Member: member}

	pipe := lm.redis.TxPipeline()
	pipe.ZAdd(ctx, leaderboardKey, z)

	dailyKey := boardKey(BoardDaily, now)
	pipe.ZAdd(ctx, dailyKey, z)
	pipe.Expire(ctx, dailyKey, 48*time.Hour)

	weeklyKey := boardKey(BoardWeekly, now)
	pipe.ZAdd(ctx, weeklyKey, z)
	pipe.Expire(ctx, weeklyKey, 8*24*time.Hour)

	_, err := pipe.Exec(ctx)
	return err
}

// GetLeaderboard 获取排行榜（从高到低）
func (lm *LeaderboardManager) GetLeaderboard(ctx context.Context, boardType string, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	results, err := lm.redis.ZRevRangeWithScores(ctx, boardKey(boardType, time.Now()), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]LeaderboardEntry, 0, len(results))
	for i, result := range results {
		member, _ := result.Member.(string)
		stats, err := lm.GetPlayerStats(ctx, member)
		if err != nil || stats == nil {
			continue
		}
		entries = append(entries, LeaderboardEntry{
			Rank:        i + 1,
			DisplayName: stats.DisplayName,
			Score:       int(result.Score),
			Wins:        stats.Wins,
			WinRate:     stats.WinRate(),
		})
	}
	return entries, nil
}

// GetPlayerRank 获取玩家总榜排名，未上榜返回 -1
func (lm *LeaderboardManager) GetPlayerRank(ctx context.Context, name string) (int64, error) {
	rank, err := lm.redis.ZRevRank(ctx, leaderboardKey, statsMember(name)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return -1, nil
		}
		return -1, err
	}
	return rank + 1, nil
}
