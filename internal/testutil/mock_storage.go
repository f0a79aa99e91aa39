//go:build !production

package testutil

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/palemoky/mafia-night/internal/server/storage"
)

// MockLeaderboard 排行榜 mock
type MockLeaderboard struct {
	mock.Mock
}

func (m *MockLeaderboard) RecordMatch(ctx context.Context, code, winner string, results []storage.MatchResult) error {
	args := m.Called(ctx, code, winner, results)
	return args.Error(0)
}

func (m *MockLeaderboard) GetPlayerStats(ctx context.Context, name string) (*storage.PlayerStats, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.PlayerStats), args.Error(1)
}

func (m *MockLeaderboard) GetPlayerRank(ctx context.Context, name string) (int64, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLeaderboard) GetLeaderboard(ctx context.Context, boardType string, limit int) ([]storage.LeaderboardEntry, error) {
	args := m.Called(ctx, boardType, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]storage.LeaderboardEntry), args.Error(1)
}

// MemoryMirror 内存中的房间镜像，记录写入顺序
type MemoryMirror struct {
	mu      sync.Mutex
	rooms   map[string]*storage.RoomData
	deleted []string
}

// NewMemoryMirror 创建内存镜像
func NewMemoryMirror() *MemoryMirror {
	return &MemoryMirror{rooms: make(map[string]*storage.RoomData)}
}

func (m *MemoryMirror) SaveRoom(_ context.Context, code string, data *storage.RoomData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rooms[code] = data
	return nil
}

func (m *MemoryMirror) DeleteRoom(_ context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rooms, code)
	m.deleted = append(m.deleted, code)
	return nil
}

// Room 当前镜像中的房间，不存在时返回 nil
func (m *MemoryMirror) Room(code string) *storage.RoomData {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rooms[code]
}

// Deleted 被删除过的房间号
func (m *MemoryMirror) Deleted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.deleted...)
}
