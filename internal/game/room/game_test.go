package room

import (
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palemoky/mafia-night/internal/apperrors"
	"github.com/palemoky/mafia-night/internal/game/rule"
	"github.com/palemoky/mafia-night/internal/protocol"
	"github.com/palemoky/mafia-night/internal/testutil"
)

func TestStartGame_Validation(t *testing.T) {
	h := newHarness(t, 3)

	assert.ErrorIs(t, h.room.StartGame("unknown"), apperrors.ErrNotInRoom)
	assert.ErrorIs(t, h.room.StartGame(h.conn(1)), apperrors.ErrNotHost)
	assert.ErrorIs(t, h.room.StartGame(h.conn(0)), apperrors.ErrPlayerCount)
	assert.Equal(t, PhaseLobby, h.room.Phase())
	assert.False(t, h.room.HasPendingTimer())
}

func TestStartGame_AssignsRolesPrivately(t *testing.T) {
	h := newHarness(t, 8)
	h.start()

	assert.Equal(t, PhaseNight, h.room.Phase())
	assert.Equal(t, 1, h.room.Round())
	assert.True(t, h.room.HasPendingTimer())

	expected := []rule.Role{
		rule.RoleMafia, rule.RoleMafia, rule.RoleDoctor, rule.RoleDetective,
		rule.RoleCitizen, rule.RoleCitizen, rule.RoleCitizen, rule.RoleCitizen,
	}
	for i, c := range h.clients {
		started := testutil.LastPayload[protocol.GameStartedPayload](t, c, protocol.MsgGameStarted)
		assert.Equal(t, string(expected[i]), started.Role, "player %d", i)
		assert.Equal(t, 1, started.Round)
		assert.Equal(t, 1, c.Count(protocol.MsgGameStarted))

		phase := testutil.LastPayload[protocol.PhaseChangedPayload](t, c, protocol.MsgPhaseChanged)
		assert.Equal(t, string(PhaseNight), phase.Phase)
		assert.Equal(t, time.Hour.Milliseconds(), phase.DurationMs)
	}

	mafia := testutil.LastPayload[protocol.GameStartedPayload](t, h.clients[0], protocol.MsgGameStarted)
	require.Len(t, mafia.Teammates, 1)
	assert.Equal(t, h.ids[1], mafia.Teammates[0].ID)

	citizen := testutil.LastPayload[protocol.GameStartedPayload](t, h.clients[5], protocol.MsgGameStarted)
	assert.Empty(t, citizen.Teammates)

	assert.ErrorIs(t, h.room.StartGame(h.conn(0)), apperrors.ErrGameStarted)
}

func TestStartGame_RandomRoleCounts(t *testing.T) {
	h := newHarness(t, 5, WithShuffler(nil))
	h.start()

	counts := make(map[rule.Role]int)
	for _, id := range h.room.PlayerIDs() {
		v, ok := h.room.PlayerView(id)
		require.True(t, ok)
		counts[v.Role]++
	}
	assert.Equal(t, map[rule.Role]int{
		rule.RoleMafia:     1,
		rule.RoleDoctor:    1,
		rule.RoleDetective: 1,
		rule.RoleCitizen:   2,
	}, counts)
}

func TestNightAction_Validation(t *testing.T) {
	h := newHarness(t, 5)

	assert.ErrorIs(t, h.act(0, ActionKill, 3), apperrors.ErrWrongPhase)
	h.start()

	tests := []struct {
		name     string
		conn     string
		action   NightAction
		target   string
		expected error
	}{
		{"not in room", "unknown", ActionKill, h.ids[3], apperrors.ErrNotInRoom},
		{"unknown action", h.conn(0), "poison", h.ids[3], apperrors.ErrInvalidAction},
		{"citizen cannot kill", h.conn(3), ActionKill, h.ids[4], apperrors.ErrWrongRole},
		{"detective cannot save", h.conn(2), ActionSave, h.ids[4], apperrors.ErrWrongRole},
		{"unknown target", h.conn(0), ActionKill, "ghost", apperrors.ErrInvalidTarget},
		{"mafia cannot kill self", h.conn(0), ActionKill, h.ids[0], apperrors.ErrSelfTarget},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, h.room.SubmitNightAction(tt.conn, tt.action, tt.target), tt.expected)
		})
	}

	// 医生可以救自己，但每晚只能行动一次
	require.NoError(t, h.act(1, ActionSave, 1))
	assert.ErrorIs(t, h.act(1, ActionSave, 4), apperrors.ErrAlreadyActed)

	assert.Equal(t, 0, h.clients[0].Count(protocol.MsgNightResult))
	assert.Equal(t, 1, h.clients[1].Count(protocol.MsgActionAck))
}

func TestNightAction_PrivateMessages(t *testing.T) {
	h := newHarness(t, 8)
	h.start()
	h.resetAll()

	require.NoError(t, h.act(0, ActionKill, 4))
	ack := testutil.LastPayload[protocol.ActionAckPayload](t, h.clients[0], protocol.MsgActionAck)
	assert.Equal(t, string(ActionKill), ack.Action)
	assert.Equal(t, h.ids[4], ack.TargetID)

	for i, c := range h.clients {
		want := 0
		if i < 2 {
			want = 1
		}
		assert.Equal(t, want, c.Count(protocol.MsgMafiaVote), "player %d", i)
	}
	vote := testutil.LastPayload[protocol.MafiaVotePayload](t, h.clients[1], protocol.MsgMafiaVote)
	assert.Equal(t, h.ids[0], vote.VoterID)
	assert.Equal(t, h.ids[4], vote.TargetID)

	require.NoError(t, h.act(3, ActionInvestigate, 1))
	for i, c := range h.clients {
		want := 0
		if i == 3 {
			want = 1
		}
		assert.Equal(t, want, c.Count(protocol.MsgDetectiveResult), "player %d", i)
	}
	result := testutil.LastPayload[protocol.DetectiveResultPayload](t, h.clients[3], protocol.MsgDetectiveResult)
	assert.Equal(t, h.ids[1], result.TargetID)
	assert.Equal(t, "Player1", result.TargetName)
	assert.True(t, result.IsMafia)
}

func TestNight_ResolvesEarlyWhenAllActed(t *testing.T) {
	h := newHarness(t, 5)
	h.start()

	require.NoError(t, h.act(0, ActionKill, 3))
	require.NoError(t, h.act(1, ActionSave, 4))
	assert.Equal(t, 0, h.clients[0].Count(protocol.MsgNightResult))
	require.NoError(t, h.act(2, ActionInvestigate, 0))

	for _, c := range h.clients {
		assert.Equal(t, 1, c.Count(protocol.MsgNightResult))
	}
	res := testutil.LastPayload[protocol.NightResultPayload](t, h.clients[0], protocol.MsgNightResult)
	assert.Equal(t, string(rule.OutcomeKilled), res.Outcome)
	assert.Equal(t, h.ids[3], res.VictimID)
	assert.Equal(t, 1, res.Round)
	assert.NotEmpty(t, res.Cutscene)
	assert.Contains(t, res.Narration, "Player3")

	elim := testutil.LastPayload[protocol.PlayerEliminatedPayload](t, h.clients[0], protocol.MsgPlayerEliminated)
	assert.Equal(t, h.ids[3], elim.PlayerID)
	assert.Equal(t, string(rule.CauseNightKill), elim.Cause)
	assert.Equal(t, "夜间遇害", elim.Narration)
	assert.False(t, h.alive(3))

	// 结算后仍停留在夜晚，等待进入白天
	assert.Equal(t, PhaseNight, h.room.Phase())
	assert.ErrorIs(t, h.act(0, ActionKill, 4), apperrors.ErrWrongPhase)

	h.advance()
	assert.Equal(t, PhaseDay, h.room.Phase())
	assert.Equal(t, 1, h.room.Round())
	phase := testutil.LastPayload[protocol.PhaseChangedPayload](t, h.clients[4], protocol.MsgPhaseChanged)
	assert.Equal(t, string(PhaseDay), phase.Phase)
}

func TestNight_DoctorSave(t *testing.T) {
	h := newHarness(t, 5)
	h.start()

	require.NoError(t, h.act(0, ActionKill, 3))
	require.NoError(t, h.act(1, ActionSave, 3))
	require.NoError(t, h.act(2, ActionInvestigate, 4))

	res := testutil.LastPayload[protocol.NightResultPayload](t, h.clients[3], protocol.MsgNightResult)
	assert.Equal(t, string(rule.OutcomeSaved), res.Outcome)
	assert.Empty(t, res.VictimID)
	assert.NotEmpty(t, res.Cutscene)
	assert.True(t, h.alive(3))
	assert.Equal(t, 0, h.clients[0].Count(protocol.MsgPlayerEliminated))
}

func TestNight_TimerResolvesWithoutActions(t *testing.T) {
	s := TestSettings()
	s.NightDuration = 20 * time.Millisecond
	h := newHarnessWith(t, s, 4)
	h.start()

	assert.Eventually(t, func() bool {
		return h.clients[1].Count(protocol.MsgNightResult) == 1
	}, waitFor, tick)

	res := testutil.LastPayload[protocol.NightResultPayload](t, h.clients[1], protocol.MsgNightResult)
	assert.Equal(t, string(rule.OutcomeNoAction), res.Outcome)
	assert.Empty(t, res.VictimID)
	assert.Empty(t, res.Cutscene)
	for i := range h.clients {
		assert.True(t, h.alive(i))
	}
}

func TestNight_TimerAndLastActionResolveOnce(t *testing.T) {
	for range 50 {
		h := newHarness(t, 4)
		h.start()

		fire := h.room.pendingTimerFn()
		require.NotNil(t, fire)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			fire()
		}()
		go func() {
			defer wg.Done()
			_ = h.act(0, ActionKill, 1)
		}()
		wg.Wait()

		assert.Equal(t, 1, h.clients[2].Count(protocol.MsgNightResult))
		assert.Equal(t, PhaseNight, h.room.Phase())
	}
}

func TestNight_StaleTimerIsIgnored(t *testing.T) {
	h := newHarness(t, 4)
	h.start()

	stale := h.room.pendingTimerFn()
	require.NotNil(t, stale)
	require.NoError(t, h.act(0, ActionKill, 1))

	stale()
	assert.Equal(t, 1, h.clients[2].Count(protocol.MsgNightResult))
	assert.Equal(t, PhaseNight, h.room.Phase())
	assert.True(t, h.room.HasPendingTimer())
}

func TestDay_SkipDiscussion(t *testing.T) {
	h := newHarness(t, 4)
	h.start()

	assert.ErrorIs(t, h.room.SkipDiscussion(h.conn(0)), apperrors.ErrWrongPhase)
	require.NoError(t, h.act(0, ActionKill, 1))
	h.advance()

	assert.ErrorIs(t, h.room.SkipDiscussion(h.conn(2)), apperrors.ErrNotHost)
	require.NoError(t, h.room.SkipDiscussion(h.conn(0)))
	assert.Equal(t, PhaseVote, h.room.Phase())
	assert.ErrorIs(t, h.room.SkipDiscussion(h.conn(0)), apperrors.ErrWrongPhase)
}

func TestDay_TimerMovesToVote(t *testing.T) {
	h := newHarness(t, 4)
	h.start()
	require.NoError(t, h.act(0, ActionKill, 1))
	h.advance()
	require.Equal(t, PhaseDay, h.room.Phase())

	h.advance()
	assert.Equal(t, PhaseVote, h.room.Phase())
}

func TestVote_ValidationAndProgress(t *testing.T) {
	h := newHarness(t, 5)
	h.start()
	require.NoError(t, h.act(0, ActionKill, 3))
	require.NoError(t, h.act(1, ActionSave, 4))
	require.NoError(t, h.act(2, ActionInvestigate, 0))
	h.toVote()

	assert.ErrorIs(t, h.vote(3, 0), apperrors.ErrPlayerDead)
	assert.ErrorIs(t, h.vote(0, 3), apperrors.ErrTargetDead)
	assert.ErrorIs(t, h.vote(0, 0), apperrors.ErrSelfTarget)
	assert.ErrorIs(t, h.room.SubmitDayVote(h.conn(0), "ghost"), apperrors.ErrInvalidTarget)
	assert.ErrorIs(t, h.room.SubmitDayVote("unknown", h.ids[1]), apperrors.ErrNotInRoom)

	require.NoError(t, h.vote(1, 0))
	progress := testutil.LastPayload[protocol.VoteProgressPayload](t, h.clients[3], protocol.MsgVoteProgress)
	assert.Equal(t, protocol.VoteProgressPayload{Voted: 1, Alive: 4}, progress)

	// 重复投票覆盖，不增加进度
	require.NoError(t, h.vote(1, 2))
	progress = testutil.LastPayload[protocol.VoteProgressPayload](t, h.clients[3], protocol.MsgVoteProgress)
	assert.Equal(t, protocol.VoteProgressPayload{Voted: 1, Alive: 4}, progress)

	require.NoError(t, h.vote(0, 1))
	require.NoError(t, h.vote(2, 0))
	assert.Equal(t, 0, h.clients[0].Count(protocol.MsgVoteResult))
	require.NoError(t, h.vote(4, 0))

	res := testutil.LastPayload[protocol.VoteResultPayload](t, h.clients[4], protocol.MsgVoteResult)
	assert.Equal(t, h.ids[0], res.LynchedID)
	assert.Contains(t, res.Narration, "Player0")

	elim := testutil.LastPayload[protocol.PlayerEliminatedPayload](t, h.clients[4], protocol.MsgPlayerEliminated)
	assert.Equal(t, h.ids[0], elim.PlayerID)
	assert.Equal(t, string(rule.CauseLynch), elim.Cause)
	assert.Equal(t, "被投票放逐", elim.Narration)

	assert.Equal(t, PhaseEnded, h.room.Phase())
	assert.Equal(t, rule.TeamTown, h.room.Winner())
	assert.False(t, h.room.HasPendingTimer())

	ended := testutil.LastPayload[protocol.GameEndedPayload](t, h.clients[3], protocol.MsgGameEnded)
	assert.Equal(t, string(rule.TeamTown), ended.Winner)
	require.Len(t, ended.Roles, 5)
	assert.Equal(t, string(rule.RoleMafia), ended.Roles[0].Role)
	assert.False(t, ended.Roles[3].Alive)
}

func TestVote_TieEliminatesNobody(t *testing.T) {
	h := newHarness(t, 4)
	h.start()
	require.NoError(t, h.act(0, ActionKill, 1))
	h.toVote()

	require.NoError(t, h.vote(0, 2))
	require.NoError(t, h.vote(2, 3))
	require.NoError(t, h.vote(3, 0))

	res := testutil.LastPayload[protocol.VoteResultPayload](t, h.clients[0], protocol.MsgVoteResult)
	assert.Empty(t, res.LynchedID)
	assert.True(t, h.alive(0))
	assert.True(t, h.alive(2))
	assert.True(t, h.alive(3))

	h.advance()
	assert.Equal(t, PhaseNight, h.room.Phase())
	assert.Equal(t, 2, h.room.Round())
}

func TestVote_TimerResolvesPartialVotes(t *testing.T) {
	h := newHarness(t, 4)
	h.start()
	require.NoError(t, h.act(0, ActionKill, 1))
	h.toVote()

	require.NoError(t, h.vote(0, 2))
	h.advance()

	res := testutil.LastPayload[protocol.VoteResultPayload](t, h.clients[0], protocol.MsgVoteResult)
	assert.Equal(t, h.ids[2], res.LynchedID)
	assert.False(t, h.alive(2))
	// 1 名杀手对 1 名平民，杀手获胜
	assert.Equal(t, PhaseEnded, h.room.Phase())
	assert.Equal(t, rule.TeamMafia, h.room.Winner())
}

func TestGame_MafiaWinsAfterNightKill(t *testing.T) {
	h := newHarness(t, 4)
	h.start()
	require.NoError(t, h.act(0, ActionKill, 1))
	h.toVote()
	require.NoError(t, h.vote(0, 2))
	require.NoError(t, h.vote(2, 3))
	require.NoError(t, h.vote(3, 0))
	h.advance()
	require.Equal(t, PhaseNight, h.room.Phase())

	assert.ErrorIs(t, h.act(1, ActionKill, 2), apperrors.ErrPlayerDead)
	assert.ErrorIs(t, h.act(0, ActionKill, 1), apperrors.ErrTargetDead)
	require.NoError(t, h.act(0, ActionKill, 2))

	assert.Equal(t, PhaseEnded, h.room.Phase())
	assert.Equal(t, rule.TeamMafia, h.room.Winner())
	ended := testutil.LastPayload[protocol.GameEndedPayload](t, h.clients[1], protocol.MsgGameEnded)
	assert.Equal(t, string(rule.TeamMafia), ended.Winner)
	assert.Equal(t, 2, ended.Round)
}

func TestGame_RecordsMatchOnEnd(t *testing.T) {
	rec := make(chanRecorder, 1)
	h := newHarness(t, 4, WithRecorder(rec))
	h.start()
	require.NoError(t, h.act(0, ActionKill, 1))
	h.toVote()
	require.NoError(t, h.vote(0, 2))
	require.NoError(t, h.vote(3, 2))
	require.NoError(t, h.vote(2, 3))

	select {
	case m := <-rec:
		assert.Equal(t, h.room.Code, m.code)
		assert.Equal(t, string(rule.TeamMafia), m.winner)
		require.Len(t, m.results, 4)
		assert.Equal(t, "Player0", m.results[0].DisplayName)
		assert.Equal(t, string(rule.TeamMafia), m.results[0].Team)
		assert.True(t, m.results[0].IsWinner)
		assert.True(t, m.results[0].Survived)
		assert.False(t, m.results[1].IsWinner)
		assert.False(t, m.results[1].Survived)
	case <-time.After(waitFor):
		t.Fatal("match was not recorded")
	}
}

func TestRestartGame(t *testing.T) {
	h := newHarness(t, 4)
	assert.ErrorIs(t, h.room.RestartGame(h.conn(0)), apperrors.ErrWrongPhase)

	h.start()
	require.NoError(t, h.act(0, ActionKill, 1))
	h.toVote()
	require.NoError(t, h.vote(0, 2))
	require.NoError(t, h.vote(3, 2))
	require.NoError(t, h.vote(2, 3))
	require.Equal(t, PhaseEnded, h.room.Phase())

	assert.ErrorIs(t, h.room.RestartGame(h.conn(1)), apperrors.ErrNotHost)
	require.NoError(t, h.room.RestartGame(h.conn(0)))

	assert.Equal(t, PhaseLobby, h.room.Phase())
	assert.Equal(t, 0, h.room.Round())
	assert.Equal(t, rule.TeamNone, h.room.Winner())
	for _, id := range h.ids {
		v, ok := h.room.PlayerView(id)
		require.True(t, ok)
		assert.True(t, v.Alive)
		assert.Equal(t, rule.RoleNone, v.Role)
	}

	h.start()
	assert.Equal(t, PhaseNight, h.room.Phase())
	assert.Equal(t, 1, h.room.Round())
}

func TestChat_Channels(t *testing.T) {
	h := newHarness(t, 8)

	// 大厅：所有人可见，空消息忽略，超长截断
	require.NoError(t, h.room.SendChat(h.conn(1), "hello"))
	for _, c := range h.clients {
		msg := testutil.LastPayload[protocol.ChatMessagePayload](t, c, protocol.MsgChat)
		assert.Equal(t, ChannelRoom, msg.Channel)
		assert.Equal(t, "hello", msg.Text)
		assert.Equal(t, h.ids[1], msg.FromID)
	}
	require.NoError(t, h.room.SendChat(h.conn(1), "   "))
	assert.Equal(t, 1, h.clients[0].Count(protocol.MsgChat))

	require.NoError(t, h.room.SendChat(h.conn(2), strings.Repeat("好", 250)))
	long := testutil.LastPayload[protocol.ChatMessagePayload](t, h.clients[0], protocol.MsgChat)
	assert.Equal(t, 200, utf8.RuneCountInString(long.Text))

	// 夜晚：只有存活杀手能发言，且只有杀手可见
	h.start()
	h.resetAll()
	assert.ErrorIs(t, h.room.SendChat(h.conn(4), "hi"), apperrors.ErrChatClosed)
	require.NoError(t, h.room.SendChat(h.conn(0), "target 4"))
	for i, c := range h.clients {
		want := 0
		if i < 2 {
			want = 1
		}
		assert.Equal(t, want, c.Count(protocol.MsgChat), "player %d", i)
	}
	assert.Equal(t, ChannelMafia, testutil.LastPayload[protocol.ChatMessagePayload](t, h.clients[1], protocol.MsgChat).Channel)

	require.NoError(t, h.act(0, ActionKill, 4))
	require.NoError(t, h.act(1, ActionKill, 4))
	require.NoError(t, h.act(2, ActionSave, 5))
	require.NoError(t, h.act(3, ActionInvestigate, 6))
	require.False(t, h.alive(4))
	h.advance()
	h.resetAll()

	// 白天：出局玩家只能在出局频道发言
	require.NoError(t, h.room.SendChat(h.conn(4), "boo"))
	for i, c := range h.clients {
		want := 0
		if i == 4 {
			want = 1
		}
		assert.Equal(t, want, c.Count(protocol.MsgChat), "player %d", i)
	}
	assert.Equal(t, ChannelDead, testutil.LastPayload[protocol.ChatMessagePayload](t, h.clients[4], protocol.MsgChat).Channel)

	require.NoError(t, h.room.SendChat(h.conn(5), "who?"))
	for _, c := range h.clients {
		msg := testutil.LastPayload[protocol.ChatMessagePayload](t, c, protocol.MsgChat)
		assert.Equal(t, "who?", msg.Text)
		assert.Equal(t, ChannelRoom, msg.Channel)
	}
}

func TestChat_RateLimited(t *testing.T) {
	s := TestSettings()
	s.ChatPerSecond = 0.001
	s.ChatBurst = 1
	h := newHarnessWith(t, s, 2)

	require.NoError(t, h.room.SendChat(h.conn(0), "first"))
	assert.ErrorIs(t, h.room.SendChat(h.conn(0), "second"), apperrors.ErrRateLimited)
	assert.NoError(t, h.room.SendChat(h.conn(1), "other player"))
}
