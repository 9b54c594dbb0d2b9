package hass

import (
	"fmt"
	"strings"
)

// Service names used by the controller.
const (
	ServiceVolumeMute         = "volume_mute"
	ServiceVolumeSet          = "volume_set"
	ServiceVolumeUp           = "volume_up"
	ServiceVolumeDown         = "volume_down"
	ServiceShuffleSet         = "shuffle_set"
	ServiceRepeatSet          = "repeat_set"
	ServiceSelectSource       = "select_source"
	ServiceSelectSoundMode    = "select_sound_mode"
	ServicePlayMedia          = "play_media"
	ServiceMediaPlay          = "media_play"
	ServiceMediaPause         = "media_pause"
	ServiceMediaPlayPause     = "media_play_pause"
	ServiceMediaStop          = "media_stop"
	ServiceMediaNextTrack     = "media_next_track"
	ServiceMediaPreviousTrack = "media_previous_track"
	ServiceMediaSeek          = "media_seek"

	DomainSonos   = "sonos"
	DomainScript  = "script"
	ServiceJoin   = "join"
	ServiceUnjoin = "unjoin"
)

// ServiceCall is one POST /api/services/{domain}/{service} invocation.
type ServiceCall struct {
	Domain  string         `json:"domain"`
	Service string         `json:"service"`
	Data    map[string]any `json:"data,omitempty"`
}

// Name returns "domain.service".
func (c ServiceCall) Name() string {
	return c.Domain + "." + c.Service
}

// EntityID returns the entity_id the call targets, if any.
func (c ServiceCall) EntityID() string {
	id, _ := c.Data["entity_id"].(string)
	return id
}

// ParseService splits "domain.service".
func ParseService(name string) (string, string, error) {
	domain, service, ok := strings.Cut(strings.TrimSpace(name), ".")
	if !ok || domain == "" || service == "" {
		return "", "", fmt.Errorf("invalid service %q: want domain.service", name)
	}
	return domain, service, nil
}
