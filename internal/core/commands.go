package core

import (
	"math"

	"github.com/mikey-austin/zonectl/pkg/hass"
)

const entityIDKey = "entity_id"

// call plans domain.service with entity_id set to target, or to the
// acting device when target is empty.
func (p *Player) call(domain, service, target string, data map[string]any) hass.ServiceCall {
	c := hass.ServiceCall{Domain: domain, Service: service, Data: make(map[string]any, len(data)+1)}
	for k, v := range data {
		c.Data[k] = v
	}
	if target == "" {
		target = p.state.ID
	}
	c.Data[entityIDKey] = target
	return c
}

func (p *Player) mediaCall(service string, data map[string]any) hass.ServiceCall {
	return p.call(hass.DomainMediaPlayer, service, "", data)
}

// targetCall plans a media_player call against another device.
func (p *Player) targetCall(service, target string, data map[string]any) hass.ServiceCall {
	return p.call(hass.DomainMediaPlayer, service, target, data)
}

// targets returns the whole group when member is empty, else the member.
func (p *Player) targets(member string) []string {
	if member != "" {
		return []string{member}
	}
	if len(p.state.GroupMembers) == 0 {
		return []string{p.state.ID}
	}
	return p.state.GroupMembers
}

// PlayPause toggles playback with a single transport command.
func (p *Player) PlayPause() []hass.ServiceCall {
	return []hass.ServiceCall{p.mediaCall(hass.ServiceMediaPlayPause, nil)}
}

// PlayStop starts playback when stopped and stops it when playing.
func (p *Player) PlayStop() []hass.ServiceCall {
	if p.IsPlaying() {
		return []hass.ServiceCall{p.mediaCall(hass.ServiceMediaStop, nil)}
	}
	return []hass.ServiceCall{p.mediaCall(hass.ServiceMediaPlay, nil)}
}

// Play plans media_play.
func (p *Player) Play() []hass.ServiceCall {
	return []hass.ServiceCall{p.mediaCall(hass.ServiceMediaPlay, nil)}
}

// Pause plans media_pause.
func (p *Player) Pause() []hass.ServiceCall {
	return []hass.ServiceCall{p.mediaCall(hass.ServiceMediaPause, nil)}
}

// Stop plans media_stop.
func (p *Player) Stop() []hass.ServiceCall {
	return []hass.ServiceCall{p.mediaCall(hass.ServiceMediaStop, nil)}
}

// Next plans media_next_track.
func (p *Player) Next() []hass.ServiceCall {
	return []hass.ServiceCall{p.mediaCall(hass.ServiceMediaNextTrack, nil)}
}

// Prev plans media_previous_track.
func (p *Player) Prev() []hass.ServiceCall {
	return []hass.ServiceCall{p.mediaCall(hass.ServiceMediaPreviousTrack, nil)}
}

// Seek plans media_seek to an absolute position in seconds.
func (p *Player) Seek(position float64) []hass.ServiceCall {
	return []hass.ServiceCall{p.mediaCall(hass.ServiceMediaSeek, map[string]any{
		"seek_position": math.Max(position, 0),
	})}
}

// JumpTarget returns the seek position for a relative jump. The result
// is never negative and never exceeds a known, non-zero duration.
func (p *Player) JumpTarget(amount float64) float64 {
	pos := p.Progress() + amount
	ceiling := pos
	if d, ok := p.state.Duration.Get(); ok && d > 0 {
		ceiling = d
	}
	return math.Max(math.Min(math.Max(pos, 0), ceiling), 0)
}

// Jump seeks relative to the extrapolated position. A zero amount uses
// the configured jump amount.
func (p *Player) Jump(amount float64) []hass.ServiceCall {
	if amount == 0 {
		amount = p.JumpAmount()
	}
	return p.Seek(p.JumpTarget(amount))
}

// JumpAmount returns the configured jump step in seconds.
func (p *Player) JumpAmount() float64 {
	if p.opts.JumpAmount > 0 {
		return p.opts.JumpAmount
	}
	return DefaultJumpAmount
}

// ToggleMute flips mute on the whole group, or on one member. Each
// target gets the negation of its own muted flag.
func (p *Player) ToggleMute(member string) []hass.ServiceCall {
	targets := p.targets(member)
	calls := make([]hass.ServiceCall, 0, len(targets))
	for _, id := range targets {
		muted := p.MemberMuted(id).Or(false)
		calls = append(calls, p.targetCall(hass.ServiceVolumeMute, id, map[string]any{
			"is_volume_muted": !muted,
		}))
	}
	return calls
}

// VolumeUp raises the volume of the whole group, or of one member.
func (p *Player) VolumeUp(member string) []hass.ServiceCall {
	return p.volumeStep(member, 1)
}

// VolumeDown lowers the volume of the whole group, or of one member.
func (p *Player) VolumeDown(member string) []hass.ServiceCall {
	return p.volumeStep(member, -1)
}

// volumeStep synthesizes volume_set from the configured step for
// group-wide nudges on devices that report a volume. A named member
// always gets the native command.
func (p *Player) volumeStep(member string, dir float64) []hass.ServiceCall {
	native := hass.ServiceVolumeUp
	if dir < 0 {
		native = hass.ServiceVolumeDown
	}
	if member != "" {
		return []hass.ServiceCall{p.targetCall(native, member, nil)}
	}

	targets := p.targets("")
	calls := make([]hass.ServiceCall, 0, len(targets))
	for _, id := range targets {
		vol, ok := p.MemberVolume(id).Get()
		if !ok || p.opts.VolumeStep <= 0 {
			calls = append(calls, p.targetCall(native, id, nil))
			continue
		}
		calls = append(calls, p.targetCall(hass.ServiceVolumeSet, id, map[string]any{
			"volume_level": clampVolume(vol + dir*p.opts.VolumeStep/100),
		}))
	}
	return calls
}

// SetVolume sets an absolute volume on the whole group, or on one member.
func (p *Player) SetVolume(level float64, member string) []hass.ServiceCall {
	level = clampVolume(level)
	targets := p.targets(member)
	calls := make([]hass.ServiceCall, 0, len(targets))
	for _, id := range targets {
		calls = append(calls, p.targetCall(hass.ServiceVolumeSet, id, map[string]any{
			"volume_level": level,
		}))
	}
	return calls
}

func clampVolume(v float64) float64 {
	v = math.Round(v*10000) / 10000
	return math.Min(math.Max(v, 0), 1)
}

// ToggleShuffle flips shuffle on the acting device.
func (p *Player) ToggleShuffle() []hass.ServiceCall {
	return []hass.ServiceCall{p.mediaCall(hass.ServiceShuffleSet, map[string]any{
		"shuffle": !p.Shuffle(),
	})}
}

// ToggleRepeat advances the repeat mode of the acting device.
func (p *Player) ToggleRepeat() []hass.ServiceCall {
	return []hass.ServiceCall{p.mediaCall(hass.ServiceRepeatSet, map[string]any{
		"repeat": string(NextRepeat(p.Repeat())),
	})}
}

// SelectSource plans select_source.
func (p *Player) SelectSource(source string) []hass.ServiceCall {
	return []hass.ServiceCall{p.mediaCall(hass.ServiceSelectSource, map[string]any{
		"source": source,
	})}
}

// SelectSoundMode plans select_sound_mode.
func (p *Player) SelectSoundMode(mode string) []hass.ServiceCall {
	return []hass.ServiceCall{p.mediaCall(hass.ServiceSelectSoundMode, map[string]any{
		"sound_mode": mode,
	})}
}

// PlayMedia plans play_media.
func (p *Player) PlayMedia(contentID, contentType string) []hass.ServiceCall {
	if contentType == "" {
		contentType = "music"
	}
	return []hass.ServiceCall{p.mediaCall(hass.ServicePlayMedia, map[string]any{
		"media_content_id":   contentID,
		"media_content_type": contentType,
	})}
}

// Join adds members to the acting device's group.
func (p *Player) Join(members ...string) []hass.ServiceCall {
	calls := make([]hass.ServiceCall, 0, len(members))
	for _, id := range members {
		if id == p.state.ID {
			continue
		}
		calls = append(calls, p.call(hass.DomainSonos, hass.ServiceJoin, id, map[string]any{
			"master": p.state.ID,
		}))
	}
	return calls
}

// Unjoin removes members from their group. With no members the acting
// device leaves.
func (p *Player) Unjoin(members ...string) []hass.ServiceCall {
	if len(members) == 0 {
		members = []string{p.state.ID}
	}
	calls := make([]hass.ServiceCall, 0, len(members))
	for _, id := range members {
		calls = append(calls, p.call(hass.DomainSonos, hass.ServiceUnjoin, id, nil))
	}
	return calls
}

// CallScript runs script.<name> with the acting device as entity_id.
func (p *Player) CallScript(name string, data map[string]any) []hass.ServiceCall {
	return []hass.ServiceCall{p.call(hass.DomainScript, name, "", data)}
}

// CallService plans an arbitrary "domain.service" call. data may name its
// own entity_id; otherwise the acting device is used.
func (p *Player) CallService(name string, data map[string]any) ([]hass.ServiceCall, error) {
	domain, service, err := hass.ParseService(name)
	if err != nil {
		return nil, err
	}
	target, _ := data[entityIDKey].(string)
	rest := make(map[string]any, len(data))
	for k, v := range data {
		if k != entityIDKey {
			rest[k] = v
		}
	}
	return []hass.ServiceCall{p.call(domain, service, target, rest)}, nil
}
