package hass

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// DomainMediaPlayer is the entity domain for playback devices.
const DomainMediaPlayer = "media_player"

// Entity states reported by media players.
const (
	StatePlaying     = "playing"
	StatePaused      = "paused"
	StateIdle        = "idle"
	StateStandby     = "standby"
	StateUnavailable = "unavailable"
	StateOff         = "off"
	StateOn          = "on"
)

// Repeat modes reported in the repeat attribute.
const (
	RepeatOff = "off"
	RepeatAll = "all"
	RepeatOne = "one"
)

// EntityState is a single entity as returned by GET /api/states.
type EntityState struct {
	EntityID    string     `json:"entity_id"`
	State       string     `json:"state"`
	Attributes  Attributes `json:"attributes"`
	LastChanged time.Time  `json:"last_changed"`
	LastUpdated time.Time  `json:"last_updated"`
}

// Domain returns the entity domain (the part before the dot).
func (e EntityState) Domain() string {
	domain, _, _ := strings.Cut(e.EntityID, ".")
	return domain
}

// Attributes holds the media_player attributes the controller reads.
// Pointer fields distinguish an absent attribute from its zero value.
type Attributes struct {
	FriendlyName           string     `json:"friendly_name,omitempty"`
	Icon                   string     `json:"icon,omitempty"`
	SupportedFeatures      Feature    `json:"supported_features,omitempty"`
	VolumeLevel            *float64   `json:"volume_level,omitempty"`
	IsVolumeMuted          *bool      `json:"is_volume_muted,omitempty"`
	Shuffle                *bool      `json:"shuffle,omitempty"`
	Repeat                 *string    `json:"repeat,omitempty"`
	MediaContentType       string     `json:"media_content_type,omitempty"`
	MediaDuration          *float64   `json:"media_duration,omitempty"`
	MediaPosition          *float64   `json:"media_position,omitempty"`
	MediaPositionUpdatedAt *time.Time `json:"media_position_updated_at,omitempty"`
	MediaTitle             FlexString `json:"media_title,omitempty"`
	MediaArtist            FlexString `json:"media_artist,omitempty"`
	MediaSeriesTitle       FlexString `json:"media_series_title,omitempty"`
	MediaSeason            FlexString `json:"media_season,omitempty"`
	MediaEpisode           FlexString `json:"media_episode,omitempty"`
	AppName                FlexString `json:"app_name,omitempty"`
	SourceList             []string   `json:"source_list,omitempty"`
	Source                 string     `json:"source,omitempty"`
	SoundModeList          []string   `json:"sound_mode_list,omitempty"`
	SoundMode              string     `json:"sound_mode,omitempty"`
	EntityPicture          string     `json:"entity_picture,omitempty"`
	EntityPictureLocal     string     `json:"entity_picture_local,omitempty"`
	SonosGroup             []string   `json:"sonos_group,omitempty"`
	GroupMembers           []string   `json:"group_members,omitempty"`
}

// Group returns the grouping attribute, preferring the Sonos-specific one.
func (a Attributes) Group() []string {
	if len(a.SonosGroup) > 0 {
		return a.SonosGroup
	}
	return a.GroupMembers
}

// FlexString decodes attributes that integrations report either as a
// string or as a number (media_season, media_episode).
type FlexString string

// UnmarshalJSON accepts strings, numbers and null.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

// String returns the raw text.
func (f FlexString) String() string {
	return string(f)
}
