package room

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/palemoky/mafia-night/internal/server/storage"
	"github.com/palemoky/mafia-night/internal/testutil"
)

const waitFor = 2 * time.Second
const tick = 5 * time.Millisecond

// harness 一个房间加 n 个按顺序加入的玩家
// 默认不打乱身份：0 号起依次为杀手、医生、侦探（5 人及以上），其余为平民。
type harness struct {
	t        *testing.T
	reg      *Registry
	room     *Room
	clients  []*testutil.RecordingClient
	ids      []string
	sessions []string
}

func newHarness(t *testing.T, n int, opts ...Option) *harness {
	return newHarnessWith(t, TestSettings(), n, opts...)
}

func newHarnessWith(t *testing.T, s Settings, n int, opts ...Option) *harness {
	t.Helper()
	opts = append([]Option{WithShuffler(KeepOrder)}, opts...)
	reg := NewRegistry(s, opts...)
	h := &harness{t: t, reg: reg}

	for i := range n {
		c := testutil.NewRecordingClient(fmt.Sprintf("conn-%d", i))
		name := fmt.Sprintf("Player%d", i)

		var (
			room *Room
			p    *Player
			err  error
		)
		if i == 0 {
			room, p, err = reg.Create(c, name, "")
		} else {
			room, p, err = reg.Join(h.room.Code, c, name, "")
		}
		require.NoError(t, err)

		h.room = room
		h.clients = append(h.clients, c)
		h.ids = append(h.ids, p.ID)
		h.sessions = append(h.sessions, p.SessionID)
	}

	t.Cleanup(func() {
		if h.room != nil {
			reg.Delete(h.room.Code)
		}
		reg.Close()
	})
	return h
}

func (h *harness) conn(i int) string {
	return h.clients[i].GetID()
}

func (h *harness) start() {
	h.t.Helper()
	require.NoError(h.t, h.room.StartGame(h.conn(0)))
}

func (h *harness) act(i int, action NightAction, target int) error {
	return h.room.SubmitNightAction(h.conn(i), action, h.ids[target])
}

func (h *harness) vote(i, target int) error {
	return h.room.SubmitDayVote(h.conn(i), h.ids[target])
}

// advance 立即触发当前阶段计时器
func (h *harness) advance() {
	h.t.Helper()
	require.True(h.t, h.room.FirePendingTimer(), "no pending timer")
}

// toVote 从夜晚结算后推进到投票阶段，房主必须在线
func (h *harness) toVote() {
	h.t.Helper()
	h.advance()
	require.Equal(h.t, PhaseDay, h.room.Phase())
	require.NoError(h.t, h.room.SkipDiscussion(h.conn(0)))
	require.Equal(h.t, PhaseVote, h.room.Phase())
}

func (h *harness) alive(i int) bool {
	h.t.Helper()
	v, ok := h.room.PlayerView(h.ids[i])
	require.True(h.t, ok)
	return v.Alive
}

func (h *harness) resetAll() {
	for _, c := range h.clients {
		c.Reset()
	}
}

type recordedMatch struct {
	code    string
	winner  string
	results []storage.MatchResult
}

// chanRecorder 把记录的对局结果写入 channel
type chanRecorder chan recordedMatch

func (c chanRecorder) RecordMatch(_ context.Context, code, winner string, results []storage.MatchResult) error {
	c <- recordedMatch{code: code, winner: winner, results: results}
	return nil
}
