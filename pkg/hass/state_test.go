package hass

import (
	"encoding/json"
	"testing"
)

func TestEntityStateDecode(t *testing.T) {
	payload := []byte(`{
		"entity_id": "media_player.living_room",
		"state": "playing",
		"attributes": {
			"friendly_name": "Living Room",
			"volume_level": 0.35,
			"is_volume_muted": false,
			"media_season": 2,
			"media_episode": "7",
			"media_position_updated_at": "2024-05-01T10:00:00.123456+00:00",
			"entity_picture_local": null,
			"sonos_group": ["media_player.living_room", "media_player.kitchen"],
			"supported_features": 4127295
		}
	}`)

	var state EntityState
	if err := json.Unmarshal(payload, &state); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if state.Domain() != DomainMediaPlayer {
		t.Fatalf("domain = %s", state.Domain())
	}
	if state.Attributes.VolumeLevel == nil || *state.Attributes.VolumeLevel != 0.35 {
		t.Fatalf("expected volume level")
	}
	if state.Attributes.IsVolumeMuted == nil || *state.Attributes.IsVolumeMuted {
		t.Fatalf("expected muted=false present")
	}
	if state.Attributes.Shuffle != nil {
		t.Fatalf("expected shuffle absent")
	}
	if state.Attributes.MediaSeason != "2" || state.Attributes.MediaEpisode != "7" {
		t.Fatalf("season/episode = %q/%q", state.Attributes.MediaSeason, state.Attributes.MediaEpisode)
	}
	if state.Attributes.MediaPositionUpdatedAt == nil {
		t.Fatalf("expected updated at")
	}
	if len(state.Attributes.Group()) != 2 {
		t.Fatalf("expected sonos group")
	}
}

func TestGroupFallsBackToGroupMembers(t *testing.T) {
	attrs := Attributes{GroupMembers: []string{"media_player.a", "media_player.b"}}
	if got := attrs.Group(); len(got) != 2 || got[0] != "media_player.a" {
		t.Fatalf("group = %v", got)
	}
}

func TestFeatureHas(t *testing.T) {
	var flags Feature = FeaturePause | FeatureVolumeSet
	if flags.Has(FeaturePreviousTrack) {
		t.Fatalf("previous track should be unsupported")
	}
	flags = flags.With(FeaturePreviousTrack)
	if !flags.Has(FeaturePreviousTrack) {
		t.Fatalf("previous track should be supported")
	}
	if !flags.Has(FeaturePause) || !flags.Has(FeatureVolumeSet) {
		t.Fatalf("other bits changed")
	}
}

func TestParseService(t *testing.T) {
	domain, service, err := ParseService("script.good_night")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if domain != "script" || service != "good_night" {
		t.Fatalf("got %s.%s", domain, service)
	}
	if _, _, err := ParseService("nodot"); err == nil {
		t.Fatalf("expected error")
	}
}
