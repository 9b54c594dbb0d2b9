package output

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikey-austin/zonectl/internal/core"
	"github.com/mikey-austin/zonectl/pkg/zones"
)

func TestHumanStatus(t *testing.T) {
	vol := 0.42
	muted := true
	var buf bytes.Buffer
	err := HumanPrinter{Out: &buf}.Print(core.StatusResult{
		Player: zones.PlayerSnapshot{
			Name:     "Kitchen",
			Status:   "playing",
			Volume:   &vol,
			Muted:    &muted,
			Progress: 65,
			Duration: 3700,
			Repeat:   "all",
			MediaInfo: []zones.MediaInfoItem{
				{Attr: "media_title", Text: "Song"},
				{Attr: "media_season", Prefix: "S", Text: "2"},
			},
		},
		Zone: zones.ZoneSnapshot{
			RoomName: "Kitchen",
			Members:  []zones.MemberSnapshot{{ID: "media_player.lounge", Name: "Lounge"}},
		},
	})
	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "Kitchen  [playing]")
	assert.Contains(t, out, "Song - S2")
	assert.Contains(t, out, "01:05 / 01:01:40")
	assert.Contains(t, out, "vol 42% (muted)")
	assert.Contains(t, out, "repeat all")
	assert.Contains(t, out, "zone: Kitchen + Lounge")
}

func TestHumanDevicesMarksSelection(t *testing.T) {
	var buf bytes.Buffer
	err := HumanPrinter{Out: &buf}.Print(core.DevicesResult{
		Selected: "media_player.kitchen",
		Devices: []core.DeviceSummary{
			{ID: "media_player.kitchen", Name: "Kitchen", Status: "paused", LeaderID: "media_player.kitchen", Present: true},
			{ID: "media_player.gone"},
		},
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "*")
	assert.Contains(t, buf.String(), "missing")
}

func TestHumanZonesTable(t *testing.T) {
	var buf bytes.Buffer
	err := HumanPrinter{Out: &buf}.Print(core.ZonesResult{Zones: []zones.ZoneSnapshot{
		{LeaderID: "media_player.kitchen", RoomName: "Kitchen", Status: "playing",
			Members: []zones.MemberSnapshot{{ID: "media_player.lounge", Name: "Lounge"}}},
	}})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Kitchen")
	assert.Contains(t, buf.String(), "Lounge")
}

func TestJSONPrinter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, JSONPrinter{Out: &buf}.Print(core.CommandResult{PlayerID: "media_player.kitchen", Calls: []string{"media_player.media_play media_player.kitchen"}}))

	var decoded core.CommandResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "media_player.kitchen", decoded.PlayerID)
}
