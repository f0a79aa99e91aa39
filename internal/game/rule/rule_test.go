package rule

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("p%d", i+1)
	}
	return out
}

func seats(roles map[string]Role, dead ...string) []Seat {
	isDead := make(map[string]bool)
	for _, id := range dead {
		isDead[id] = true
	}
	out := make([]Seat, 0, len(roles))
	for id, r := range roles {
		out = append(out, Seat{ID: id, Role: r, Alive: !isDead[id]})
	}
	return out
}

func TestAssignRoles_Counts(t *testing.T) {
	t.Parallel()

	for n := 4; n <= 12; n++ {
		t.Run(fmt.Sprintf("%d players", n), func(t *testing.T) {
			t.Parallel()

			players := ids(n)
			roles := AssignRoles(players, nil)
			require.Len(t, roles, n)

			count := map[Role]int{}
			for _, id := range players {
				r, ok := roles[id]
				require.True(t, ok, "player %s has no role", id)
				count[r]++
			}

			assert.Equal(t, max(1, n/4), count[RoleMafia])
			if n >= SpecialRolesMinPlayers {
				assert.Equal(t, 1, count[RoleDoctor])
				assert.Equal(t, 1, count[RoleDetective])
			} else {
				assert.Zero(t, count[RoleDoctor])
				assert.Zero(t, count[RoleDetective])
			}
			assert.Equal(t, n, count[RoleMafia]+count[RoleDoctor]+count[RoleDetective]+count[RoleCitizen])
		})
	}
}

func TestAssignRoles_UsesShuffleOrder(t *testing.T) {
	t.Parallel()

	players := ids(5)
	reverse := func(s []string) {
		for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
			s[i], s[j] = s[j], s[i]
		}
	}

	roles := AssignRoles(players, reverse)
	assert.Equal(t, RoleMafia, roles["p5"])
	assert.Equal(t, RoleDoctor, roles["p4"])
	assert.Equal(t, RoleDetective, roles["p3"])
	assert.Equal(t, RoleCitizen, roles["p2"])
	assert.Equal(t, RoleCitizen, roles["p1"])

	// 入参不被修改
	assert.Equal(t, ids(5), players)
}

func TestAssignRoles_Random(t *testing.T) {
	t.Parallel()

	players := ids(8)
	first := AssignRoles(players, nil)
	differs := false
	for range 50 {
		next := AssignRoles(players, nil)
		for id, r := range next {
			if first[id] != r {
				differs = true
			}
		}
		if differs {
			break
		}
	}
	assert.True(t, differs, "50 assignments were identical")
}

func TestRoleTeam(t *testing.T) {
	t.Parallel()

	assert.Equal(t, TeamMafia, RoleMafia.Team())
	assert.Equal(t, TeamTown, RoleDoctor.Team())
	assert.Equal(t, TeamTown, RoleDetective.Team())
	assert.Equal(t, TeamTown, RoleCitizen.Team())
	assert.Equal(t, TeamNone, RoleNone.Team())
}

var sixRoles = map[string]Role{
	"A": RoleMafia,
	"B": RoleMafia,
	"C": RoleMafia,
	"X": RoleCitizen,
	"Y": RoleDoctor,
	"Z": RoleDetective,
}

func TestResolveNight_Plurality(t *testing.T) {
	t.Parallel()

	res := ResolveNight(seats(sixRoles), NightInput{
		Round: 1,
		MafiaVotes: []MafiaVote{
			{VoterID: "A", TargetID: "X"},
			{VoterID: "B", TargetID: "X"},
			{VoterID: "C", TargetID: "Y"},
		},
	}, DefaultPolicy())

	assert.Equal(t, OutcomeKilled, res.Outcome)
	assert.Equal(t, "X", res.TargetID)
	assert.Equal(t, "X", res.KilledID)
	assert.False(t, res.Saved)
	assert.NotEmpty(t, res.Cutscene)
}

func TestResolveNight_TieFirstVote(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		votes []MafiaVote
		want  string
	}{
		{"X first", []MafiaVote{{"A", "X"}, {"B", "Y"}}, "X"},
		{"Y first", []MafiaVote{{"B", "Y"}, {"A", "X"}}, "Y"},
		{"later target overtakes", []MafiaVote{{"A", "Y"}, {"B", "X"}, {"C", "X"}}, "X"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res := ResolveNight(seats(sixRoles), NightInput{Round: 1, MafiaVotes: tt.votes}, DefaultPolicy())
			assert.Equal(t, tt.want, res.KilledID)
		})
	}
}

func TestResolveNight_TieNoKill(t *testing.T) {
	t.Parallel()

	policy := DefaultPolicy()
	policy.KillTie = KillTieNoKill

	res := ResolveNight(seats(sixRoles), NightInput{
		Round:      1,
		MafiaVotes: []MafiaVote{{"A", "X"}, {"B", "Y"}},
	}, policy)
	assert.Equal(t, OutcomeNoAction, res.Outcome)
	assert.Empty(t, res.KilledID)
	assert.Empty(t, res.Cutscene)
}

func TestResolveNight_DoctorSave(t *testing.T) {
	t.Parallel()

	res := ResolveNight(seats(sixRoles), NightInput{
		Round:      2,
		MafiaVotes: []MafiaVote{{"A", "Z"}},
		DoctorSave: "Z",
	}, DefaultPolicy())

	assert.Equal(t, OutcomeSaved, res.Outcome)
	assert.True(t, res.Saved)
	assert.Equal(t, "Z", res.TargetID)
	assert.Empty(t, res.KilledID)
	assert.NotEmpty(t, res.Cutscene)
}

func TestResolveNight_SaveOtherHasNoEffect(t *testing.T) {
	t.Parallel()

	res := ResolveNight(seats(sixRoles), NightInput{
		Round:      1,
		MafiaVotes: []MafiaVote{{"A", "Z"}},
		DoctorSave: "X",
	}, DefaultPolicy())
	assert.Equal(t, OutcomeKilled, res.Outcome)
	assert.Equal(t, "Z", res.KilledID)
}

func TestResolveNight_NoVotes(t *testing.T) {
	t.Parallel()

	res := ResolveNight(seats(sixRoles), NightInput{Round: 1, DoctorSave: "X"}, DefaultPolicy())
	assert.Equal(t, OutcomeNoAction, res.Outcome)
	assert.False(t, res.Saved)
	assert.Empty(t, res.Cutscene)
}

func TestResolveNight_IgnoresDeadVotersAndTargets(t *testing.T) {
	t.Parallel()

	res := ResolveNight(seats(sixRoles, "B", "Y"), NightInput{
		Round: 1,
		MafiaVotes: []MafiaVote{
			{"B", "X"}, // 投票者已死
			{"A", "Y"}, // 目标已死
			{"C", "Z"},
		},
	}, DefaultPolicy())
	assert.Equal(t, "Z", res.KilledID)
}

func TestResolveNight_CutsceneDeterministic(t *testing.T) {
	t.Parallel()

	in := NightInput{Round: 3, MafiaVotes: []MafiaVote{{"A", "X"}}}
	first := ResolveNight(seats(sixRoles), in, DefaultPolicy())
	second := ResolveNight(seats(sixRoles), in, DefaultPolicy())
	assert.Equal(t, first.Cutscene, second.Cutscene)
}

func TestResolveDayVote(t *testing.T) {
	t.Parallel()

	three := map[string]Role{"X": RoleMafia, "Y": RoleCitizen, "W": RoleCitizen}

	tests := []struct {
		name   string
		dead   []string
		votes  map[string]string
		want   string
		wantOK bool
	}{
		{"plurality", nil, map[string]string{"X": "Y", "Y": "X", "W": "X"}, "X", true},
		{"tie with abstain", nil, map[string]string{"X": "Y", "Y": "X"}, "", false},
		{"no votes", nil, map[string]string{}, "", false},
		{"dead voter ignored", []string{"W"}, map[string]string{"X": "Y", "Y": "X", "W": "X"}, "", false},
		{"dead target ignored", []string{"W"}, map[string]string{"X": "W", "Y": "X"}, "X", true},
		{"single vote", nil, map[string]string{"Y": "X"}, "X", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := ResolveDayVote(seats(three, tt.dead...), tt.votes, DefaultPolicy())
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveDayVote_RandomTieBreak(t *testing.T) {
	t.Parallel()

	three := map[string]Role{"X": RoleMafia, "Y": RoleCitizen, "W": RoleCitizen}
	policy := Policy{
		KillTie:  KillTieFirstVote,
		LynchTie: LynchTieRandom,
		Pick:     func(n int) int { return n - 1 },
	}

	got, ok := ResolveDayVote(seats(three), map[string]string{"X": "Y", "Y": "X"}, policy)
	require.True(t, ok)
	// 平票者排序后为 [X, Y]，Pick 取最后一个
	assert.Equal(t, "Y", got)
}

func TestCheckWinCondition(t *testing.T) {
	t.Parallel()

	roles := map[string]Role{
		"M1": RoleMafia,
		"D":  RoleDoctor,
		"S":  RoleDetective,
		"C1": RoleCitizen,
		"C2": RoleCitizen,
	}

	tests := []struct {
		name string
		dead []string
		want Team
	}{
		{"start", nil, TeamNone},
		{"after night kill", []string{"S"}, TeamNone},
		{"mafia lynched", []string{"M1"}, TeamTown},
		{"parity", []string{"S", "D", "C1"}, TeamMafia},
		{"one step before parity", []string{"S", "D"}, TeamNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, CheckWinCondition(seats(roles, tt.dead...)))
		})
	}
}

func TestAliveFilters(t *testing.T) {
	t.Parallel()

	s := seats(sixRoles, "A", "X")
	assert.Len(t, AliveSeats(s), 4)

	mafia := AliveMafia(s)
	require.Len(t, mafia, 2)
	for _, m := range mafia {
		assert.True(t, m.Alive)
		assert.Equal(t, RoleMafia, m.Role)
	}
}

func TestParseTieBreaks(t *testing.T) {
	t.Parallel()

	k, err := ParseKillTieBreak("")
	require.NoError(t, err)
	assert.Equal(t, KillTieFirstVote, k)

	k, err = ParseKillTieBreak("no_kill")
	require.NoError(t, err)
	assert.Equal(t, KillTieNoKill, k)

	_, err = ParseKillTieBreak("coin_flip")
	assert.Error(t, err)

	l, err := ParseLynchTieBreak("random")
	require.NoError(t, err)
	assert.Equal(t, LynchTieRandom, l)

	_, err = ParseLynchTieBreak("revote")
	assert.Error(t, err)
}

func TestNarrate(t *testing.T) {
	t.Parallel()

	assert.Contains(t, Narrate(OutcomeKilled, "Alice"), "Alice")
	assert.Contains(t, Narrate(OutcomeSaved, "Bob"), "Bob")
	assert.NotEmpty(t, Narrate(OutcomeNoAction, ""))
	assert.Contains(t, NarrateLynch("Carol"), "Carol")
	assert.NotEqual(t, NarrateLynch(""), NarrateLynch("Carol"))
}
