package room

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palemoky/mafia-night/internal/game/rule"
	"github.com/palemoky/mafia-night/internal/protocol"
	"github.com/palemoky/mafia-night/internal/testutil"
)

// 五人房间第一夜：杀手刀侦探，医生救了别人，侦探查验杀手，天亮后进入白天
func TestScenario_FivePlayerFirstNight(t *testing.T) {
	s := TestSettings()
	s.NightResultDelay = 10 * time.Millisecond
	s.CutsceneDelay = 10 * time.Millisecond
	reg := NewRegistry(s, fixedCode("ABC123"))
	t.Cleanup(func() {
		reg.Delete("ABC123")
		reg.Close()
	})

	var clients []*testutil.RecordingClient
	for i := range 5 {
		c := testutil.NewRecordingClient(fmt.Sprintf("conn-%d", i))
		name := fmt.Sprintf("Villager%d", i)
		var err error
		if i == 0 {
			_, _, err = reg.Create(c, name, "")
		} else {
			_, _, err = reg.Join("abc123", c, name, "")
		}
		require.NoError(t, err)
		clients = append(clients, c)
	}

	room, err := reg.Get("ABC123")
	require.NoError(t, err)
	require.NoError(t, room.StartGame("conn-0"))

	byRole := make(map[rule.Role][]PlayerView)
	for _, id := range room.PlayerIDs() {
		v, ok := room.PlayerView(id)
		require.True(t, ok)
		byRole[v.Role] = append(byRole[v.Role], v)
	}
	require.Len(t, byRole[rule.RoleMafia], 1)
	require.Len(t, byRole[rule.RoleDoctor], 1)
	require.Len(t, byRole[rule.RoleDetective], 1)
	require.Len(t, byRole[rule.RoleCitizen], 2)

	mafia := byRole[rule.RoleMafia][0]
	doctor := byRole[rule.RoleDoctor][0]
	detective := byRole[rule.RoleDetective][0]
	citizen := byRole[rule.RoleCitizen][0]

	require.NoError(t, room.SubmitNightAction(mafia.ConnID, ActionKill, detective.ID))
	require.NoError(t, room.SubmitNightAction(doctor.ConnID, ActionSave, citizen.ID))
	require.NoError(t, room.SubmitNightAction(detective.ConnID, ActionInvestigate, mafia.ID))

	for _, c := range clients {
		if c.GetID() == detective.ConnID {
			found := testutil.LastPayload[protocol.DetectiveResultPayload](t, c, protocol.MsgDetectiveResult)
			assert.True(t, found.IsMafia)
			assert.Equal(t, mafia.ID, found.TargetID)
		} else {
			assert.Equal(t, 0, c.Count(protocol.MsgDetectiveResult))
		}

		res := testutil.LastPayload[protocol.NightResultPayload](t, c, protocol.MsgNightResult)
		assert.Equal(t, string(rule.OutcomeKilled), res.Outcome)
		assert.Equal(t, detective.ID, res.VictimID)
		assert.Equal(t, 1, c.Count(protocol.MsgNightResult))
		assert.Equal(t, 0, c.Count(protocol.MsgGameEnded))
	}

	v, _ := room.PlayerView(detective.ID)
	assert.False(t, v.Alive)

	assert.Eventually(t, func() bool {
		return room.Phase() == PhaseDay
	}, waitFor, tick)
	assert.Equal(t, 1, room.Round())
	assert.Equal(t, rule.TeamNone, room.Winner())
}
