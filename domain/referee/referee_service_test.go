package referee

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/fbot-vsss/client/pkg/protocol"
	"github.com/fbot-vsss/client/pkg/snapshot"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefereeServiceDefaults(t *testing.T) {
	s := NewRefereeService(snapshot.New(protocol.RefereeCommand{}, nil))

	assert.Equal(t, protocol.FoulFreeKick, s.Foul())
	assert.Equal(t, protocol.ColorBlue, s.TeamColor())
	assert.Equal(t, protocol.NoQuadrant, s.Quadrant())
	assert.Equal(t, protocol.NoHalf, s.GameHalf())
	assert.Zero(t, s.Timestamp())
}

func TestRefereeServiceAccessors(t *testing.T) {
	store := snapshot.New(protocol.RefereeCommand{}, nil)
	s := NewRefereeService(store)

	store.Replace(protocol.RefereeCommand{
		Foul:         6,
		TeamColor:    protocol.ColorYellow,
		FoulQuadrant: protocol.Quadrant4,
		Timestamp:    12.5,
		GameHalf:     protocol.SecondHalf,
	})

	assert.Equal(t, protocol.FoulGameOn, s.Foul())
	assert.Equal(t, protocol.ColorYellow, s.TeamColor())
	assert.Equal(t, protocol.Quadrant4, s.Quadrant())
	assert.Equal(t, protocol.SecondHalf, s.GameHalf())
	assert.Equal(t, 12.5, s.Timestamp())

	store.Replace(protocol.RefereeCommand{Foul: 42})
	assert.Equal(t, protocol.FoulFreeKick, s.Foul())
	assert.Equal(t, int32(42), s.Snapshot().Foul)
}

func TestGetStateHandler(t *testing.T) {
	store := snapshot.New(protocol.RefereeCommand{}, nil)
	store.Replace(protocol.RefereeCommand{Foul: 7, TeamColor: protocol.ColorNone, GameHalf: protocol.FirstHalf})

	app := fiber.New()
	app.Get("/referee", NewRefereeService(store).GetStateHandler)

	resp, err := app.Test(httptest.NewRequest("GET", "/referee", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "HALT", body["foul"])
	assert.Equal(t, float64(7), body["foul_code"])
	assert.Equal(t, "NONE", body["teamcolor"])
	assert.Equal(t, "NO_QUADRANT", body["quadrant"])
	assert.Equal(t, "FIRST_HALF", body["half"])
}
