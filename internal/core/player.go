package core

import (
	"time"

	"github.com/mikey-austin/zonectl/pkg/hass"
)

// ArtworkNone disables artwork.
const ArtworkNone = "none"

// DefaultJumpAmount is the seek step in seconds when none is configured.
const DefaultJumpAmount = 10

// PlayerOptions are the presentation settings that influence derived
// state and command planning.
type PlayerOptions struct {
	VolumeStep float64 // percent; <= 0 uses native volume_up/down
	IdleAfter  float64 // minutes; <= 0 disables idle tracking
	JumpAmount float64 // seconds
	Artwork    string
}

// MediaInfoItem is one displayed metadata field.
type MediaInfoItem struct {
	Attr   string
	Prefix string
	Text   string
}

// Player is the derived read-only view of one device.
type Player struct {
	state  DeviceState
	zones  Zones
	lookup StateLookup
	opts   PlayerOptions
	now    func() time.Time

	idle   bool
	active bool
}

// NewPlayer builds the view of state within the resolved zones. lookup
// provides the states of other group members.
func NewPlayer(state DeviceState, zones Zones, lookup StateLookup, opts PlayerOptions, now func() time.Time) *Player {
	if now == nil {
		now = time.Now
	}
	if lookup == nil {
		lookup = func(string) (DeviceState, bool) { return DeviceState{}, false }
	}
	p := &Player{
		state:  state,
		zones:  zones,
		lookup: lookup,
		opts:   opts,
		now:    now,
	}
	p.active = p.isActive()
	return p
}

// ID returns the device id.
func (p *Player) ID() string { return p.state.ID }

// Name returns the display name.
func (p *Player) Name() string { return p.state.DisplayName }

// State returns the wrapped snapshot.
func (p *Player) State() DeviceState { return p.state }

// Status returns the raw playback status.
func (p *Player) Status() PlaybackStatus { return p.state.Status }

// Icon returns the device icon.
func (p *Player) Icon() string { return p.state.Icon }

// IsPlaying reports the playing status.
func (p *Player) IsPlaying() bool { return p.state.Status == StatusPlaying }

// IsPaused reports the paused status.
func (p *Player) IsPaused() bool { return p.state.Status == StatusPaused }

// IsIdleState reports the device's own idle status, which is distinct
// from the time-derived Idle flag.
func (p *Player) IsIdleState() bool { return p.state.Status == StatusIdle }

// IsStandby reports the standby status.
func (p *Player) IsStandby() bool { return p.state.Status == StatusStandby }

// IsUnavailable reports the unavailable status.
func (p *Player) IsUnavailable() bool { return p.state.Status == StatusUnavailable }

// IsOff reports the off status.
func (p *Player) IsOff() bool { return p.state.Status == StatusOff }

// Idle reports the time-derived idle flag.
func (p *Player) Idle() bool { return p.idle }

// Active reports whether the device is on, reachable and not idle.
func (p *Player) Active() bool { return p.active }

func (p *Player) isActive() bool {
	return !p.IsOff() && !p.IsUnavailable() && !p.idle
}

// TrackIdle reports whether idle detection applies: a threshold is
// configured, the device is powered and reachable, it is not playing and
// it has reported a position timestamp.
func (p *Player) TrackIdle() bool {
	return p.opts.IdleAfter > 0 &&
		!p.IsOff() &&
		!p.IsUnavailable() &&
		!p.IsPlaying() &&
		!p.state.PositionUpdatedAt.IsZero()
}

// CheckIdleAfter sets the idle flag from the time elapsed since the last
// position update and recomputes Active.
func (p *Player) CheckIdleAfter(minutes float64) bool {
	elapsed := p.now().Sub(p.state.PositionUpdatedAt).Seconds()
	p.idle = elapsed > minutes*60
	p.active = p.isActive()
	return p.idle
}

// CheckIdle is the timer entry point. It applies the configured threshold
// when idle tracking applies and clears the flag otherwise.
func (p *Player) CheckIdle() bool {
	if !p.TrackIdle() {
		p.idle = false
		p.active = p.isActive()
		return false
	}
	return p.CheckIdleAfter(p.opts.IdleAfter)
}

// Shuffle returns the shuffle flag, false when absent.
func (p *Player) Shuffle() bool { return p.state.Shuffle.Or(false) }

// Repeat returns the repeat mode, off when absent.
func (p *Player) Repeat() RepeatMode { return p.state.Repeat.Or(RepeatOff) }

// Muted returns the mute flag, false when absent.
func (p *Player) Muted() bool { return p.state.Muted.Or(false) }

// Volume returns the volume level, 0 when absent.
func (p *Player) Volume() float64 { return p.state.Volume.Or(0) }

// Content returns the media content type.
func (p *Player) Content() string {
	if p.state.Media.ContentType == "" {
		return "none"
	}
	return p.state.Media.ContentType
}

// Duration returns the media duration in seconds, 0 when unknown.
func (p *Player) Duration() float64 { return p.state.Duration.Or(0) }

// Position returns the stored position in seconds.
func (p *Player) Position() float64 { return p.state.Position.Or(0) }

// UpdatedAt returns the time the position was reported.
func (p *Player) UpdatedAt() time.Time { return p.state.PositionUpdatedAt }

// Progress returns the position extrapolated to now while playing.
func (p *Player) Progress() float64 {
	if !p.IsPlaying() || p.state.PositionUpdatedAt.IsZero() {
		return p.Position()
	}
	return p.Position() + p.now().Sub(p.state.PositionUpdatedAt).Seconds()
}

// HasProgress reports whether a progress bar can be shown.
func (p *Player) HasProgress() bool {
	return !p.idle &&
		p.state.Duration.Present &&
		p.state.Position.Present &&
		!p.state.PositionUpdatedAt.IsZero()
}

// Sources returns the selectable sources.
func (p *Player) Sources() []string { return p.state.Sources }

// Source returns the current source.
func (p *Player) Source() string { return p.state.Source }

// SoundModes returns the selectable sound modes.
func (p *Player) SoundModes() []string { return p.state.SoundModes }

// SoundMode returns the current sound mode.
func (p *Player) SoundMode() string { return p.state.SoundMode }

// Picture returns the local picture reference, else the remote one.
func (p *Player) Picture() string {
	if p.state.PictureLocal != "" {
		return p.state.PictureLocal
	}
	return p.state.Picture
}

// PictureIsLocal reports whether Picture is relative to the HA server.
func (p *Player) PictureIsLocal() bool {
	return p.state.PictureLocal != ""
}

// HasArtwork reports whether artwork should be shown.
func (p *Player) HasArtwork() bool {
	return p.Picture() != "" &&
		p.opts.Artwork != ArtworkNone &&
		p.active &&
		!p.idle
}

// MediaInfo returns the non-empty metadata fields in display order.
func (p *Player) MediaInfo() []MediaInfoItem {
	m := p.state.Media
	fields := []MediaInfoItem{
		{Attr: "media_title", Text: m.Title},
		{Attr: "media_artist", Text: m.Artist},
		{Attr: "media_series_title", Text: m.SeriesTitle},
		{Attr: "media_season", Prefix: "S", Text: m.Season},
		{Attr: "media_episode", Prefix: "E", Text: m.Episode},
		{Attr: "app_name", Text: m.AppName},
	}
	out := make([]MediaInfoItem, 0, len(fields))
	for _, f := range fields {
		if f.Text != "" {
			out = append(out, f)
		}
	}
	return out
}

// SupportsPrev reports the previous-track feature bit.
func (p *Player) SupportsPrev() bool { return p.state.Features.Has(hass.FeaturePreviousTrack) }

// SupportsNext reports the next-track feature bit.
func (p *Player) SupportsNext() bool { return p.state.Features.Has(hass.FeatureNextTrack) }

// SupportsSeek reports the seek feature bit.
func (p *Player) SupportsSeek() bool { return p.state.Features.Has(hass.FeatureSeek) }

// SupportsPause reports the pause feature bit.
func (p *Player) SupportsPause() bool { return p.state.Features.Has(hass.FeaturePause) }

// SupportsSelectSource reports the select-source feature bit.
func (p *Player) SupportsSelectSource() bool {
	return p.state.Features.Has(hass.FeatureSelectSource)
}

// SupportsGrouping reports the grouping feature bit.
func (p *Player) SupportsGrouping() bool { return p.state.Features.Has(hass.FeatureGrouping) }

// SupportsShuffle reports whether the shuffle attribute is present.
func (p *Player) SupportsShuffle() bool { return p.state.Shuffle.Present }

// SupportsRepeat reports whether the repeat attribute is present.
func (p *Player) SupportsRepeat() bool { return p.state.Repeat.Present }

// SupportsMute reports whether the mute attribute is present.
func (p *Player) SupportsMute() bool { return p.state.Muted.Present }

// SupportsVolumeSet reports whether the volume attribute is present.
func (p *Player) SupportsVolumeSet() bool { return p.state.Volume.Present }

// Capabilities returns every capability predicate by name.
func (p *Player) Capabilities() map[string]bool {
	return map[string]bool{
		"prev":         p.SupportsPrev(),
		"next":         p.SupportsNext(),
		"seek":         p.SupportsSeek(),
		"pause":        p.SupportsPause(),
		"selectSource": p.SupportsSelectSource(),
		"grouping":     p.SupportsGrouping(),
		"shuffle":      p.SupportsShuffle(),
		"repeat":       p.SupportsRepeat(),
		"mute":         p.SupportsMute(),
		"volumeSet":    p.SupportsVolumeSet(),
	}
}

// Group returns the group member ids, leader first.
func (p *Player) Group() []string { return p.state.GroupMembers }

// GroupCount returns the number of devices in the group.
func (p *Player) GroupCount() int { return len(p.state.GroupMembers) }

// IsGrouped reports whether the device shares a group.
func (p *Player) IsGrouped() bool { return len(p.state.GroupMembers) > 1 }

// Leader returns the group leader id.
func (p *Player) Leader() string {
	if len(p.state.GroupMembers) == 0 {
		return p.state.ID
	}
	return p.state.GroupMembers[0]
}

// IsLeader reports whether the device leads its group.
func (p *Player) IsLeader() bool { return p.Leader() == p.state.ID }

// Zones returns the resolved zones the view was built against.
func (p *Player) Zones() Zones { return p.zones }

// Zone returns the zone the device belongs to.
func (p *Player) Zone() (Zone, bool) { return p.zones.ZoneOf(p.state.ID) }

// SpeakerName returns the recorded name of a device.
func (p *Player) SpeakerName(id string) string {
	if name := p.zones.SpeakerName(id); name != "" {
		return name
	}
	if state, ok := p.lookup(id); ok {
		return state.DisplayName
	}
	return ""
}

// MemberVolume returns the volume of a group member.
func (p *Player) MemberVolume(id string) Optional[float64] {
	state, ok := p.member(id)
	if !ok {
		return Optional[float64]{}
	}
	return state.Volume
}

// MemberMuted returns the mute flag of a group member.
func (p *Player) MemberMuted(id string) Optional[bool] {
	state, ok := p.member(id)
	if !ok {
		return Optional[bool]{}
	}
	return state.Muted
}

func (p *Player) member(id string) (DeviceState, bool) {
	if id == p.state.ID {
		return p.state, true
	}
	return p.lookup(id)
}
