package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mikey-austin/zonectl/internal/ports"
	"github.com/mikey-austin/zonectl/pkg/hass"
	"github.com/mikey-austin/zonectl/pkg/zones"
)

// Service orchestrates zone use cases for the CLI and the daemon.
type Service struct {
	States    ports.StateSource
	Commander Commander
	Resolver  Resolver
	Clock     ports.Clock
	Config    Config
}

// Snapshot is one refresh: every device state and the zones resolved
// from them.
type Snapshot struct {
	States States
	IDs    []string
	Zones  Zones
	At     time.Time
}

// Player builds the view of one device in the snapshot.
func (s Snapshot) Player(id string, opts PlayerOptions, now func() time.Time) (*Player, bool) {
	state, ok := s.States[id]
	if !ok {
		return nil, false
	}
	return NewPlayer(state, s.Zones, s.States.Lookup, opts, now), true
}

// Snapshot reads every device state and resolves zones.
func (s Service) Snapshot(ctx context.Context) (Snapshot, error) {
	entities, err := s.States.States(ctx)
	if err != nil {
		return Snapshot{}, WrapError(ExitUnavailable, "read states", err)
	}
	states := StatesFromEntities(entities)
	ids := s.Resolver.DeviceIDs(states)
	return Snapshot{
		States: states,
		IDs:    ids,
		Zones:  ResolveZones(ids, states.Lookup),
		At:     s.now(),
	}, nil
}

// Zones returns the resolved zones in configured order.
func (s Service) Zones(ctx context.Context) (ZonesResult, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return ZonesResult{}, err
	}
	out := make([]zones.ZoneSnapshot, 0, snap.Zones.Len())
	for _, zone := range snap.Zones.List() {
		out = append(out, ZoneSnapshot(zone, snap.At))
	}
	return ZonesResult{Zones: out}, nil
}

// Devices lists the configured devices with their zone leader.
func (s Service) Devices(ctx context.Context) (DevicesResult, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return DevicesResult{}, err
	}
	result := DevicesResult{Devices: make([]DeviceSummary, 0, len(snap.IDs))}
	seen := make(map[string]bool, len(snap.IDs))
	for _, id := range snap.IDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		summary := DeviceSummary{ID: id, Name: snap.Zones.SpeakerName(id)}
		if state, ok := snap.States[id]; ok {
			summary.Present = true
			summary.Name = state.DisplayName
			summary.Status = string(state.Status)
		}
		if zone, ok := snap.Zones.ZoneOf(id); ok {
			summary.LeaderID = zone.LeaderID
		}
		result.Devices = append(result.Devices, summary)
	}
	if sel := s.Resolver.Selection; sel != nil {
		if id, ok, err := sel.Selected(); err == nil && ok {
			result.Selected = id
		}
	}
	return result, nil
}

// Player resolves a selector and builds its view from a fresh snapshot.
func (s Service) Player(ctx context.Context, selector string) (*Player, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return s.playerIn(snap, selector)
}

func (s Service) playerIn(snap Snapshot, selector string) (*Player, error) {
	id, err := s.Resolver.ResolvePlayer(selector, snap.States)
	if err != nil {
		return nil, err
	}
	p, ok := snap.Player(id, s.Config.Player, s.now)
	if !ok {
		return nil, &CLIError{Code: ExitUnavailable, Msg: fmt.Sprintf("no state for %s", id)}
	}
	p.CheckIdle()
	return p, nil
}

// Status returns the derived view of one device and its zone.
func (s Service) Status(ctx context.Context, selector string) (StatusResult, error) {
	p, err := s.Player(ctx, selector)
	if err != nil {
		return StatusResult{}, err
	}
	result := StatusResult{Player: PlayerSnapshot(p, s.now())}
	if zone, ok := p.Zone(); ok {
		result.Zone = ZoneSnapshot(zone, s.now())
	}
	return result, nil
}

// Select records the last selected device.
func (s Service) Select(ctx context.Context, selector string) (string, error) {
	if s.Resolver.Selection == nil {
		return "", &CLIError{Code: ExitRuntime, Msg: "selection store not configured"}
	}
	if strings.TrimSpace(selector) == "" {
		if err := s.Resolver.Selection.Clear(); err != nil {
			return "", WrapError(ExitRuntime, "clear selection", err)
		}
		return "", nil
	}
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return "", err
	}
	id, err := s.Resolver.ResolvePlayer(selector, snap.States)
	if err != nil {
		return "", err
	}
	if err := s.Resolver.Selection.Select(id); err != nil {
		return "", WrapError(ExitRuntime, "store selection", err)
	}
	return id, nil
}

// planFunc plans service calls for a resolved player.
type planFunc func(p *Player, snap Snapshot) ([]hass.ServiceCall, error)

// run resolves selector, plans calls with plan and dispatches them.
func (s Service) run(ctx context.Context, ev Interaction, selector string, plan planFunc) (CommandResult, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return CommandResult{}, err
	}
	p, err := s.playerIn(snap, selector)
	if err != nil {
		return CommandResult{}, err
	}
	if p.IsUnavailable() {
		return CommandResult{}, &CLIError{Code: ExitUnavailable, Msg: fmt.Sprintf("%s is unavailable", p.ID())}
	}
	calls, err := plan(p, snap)
	if err != nil {
		return CommandResult{}, err
	}
	result := CommandResult{PlayerID: p.ID(), Calls: make([]string, 0, len(calls))}
	for _, call := range calls {
		result.Calls = append(result.Calls, call.Name()+" "+call.EntityID())
	}
	if err := s.Commander.Send(ctx, ev, calls); err != nil {
		return result, WrapError(ExitRuntime, "dispatch", err)
	}
	return result, nil
}

func plain(fn func(p *Player) []hass.ServiceCall) planFunc {
	return func(p *Player, _ Snapshot) ([]hass.ServiceCall, error) {
		return fn(p), nil
	}
}

func unsupported(p *Player, what string) error {
	return &CLIError{Code: ExitUnsupported, Msg: fmt.Sprintf("%s does not support %s", p.ID(), what)}
}

// PlayPause toggles playback.
func (s Service) PlayPause(ctx context.Context, ev Interaction, selector string) (CommandResult, error) {
	return s.run(ctx, ev, selector, plain((*Player).PlayPause))
}

// PlayStop starts or stops playback.
func (s Service) PlayStop(ctx context.Context, ev Interaction, selector string) (CommandResult, error) {
	return s.run(ctx, ev, selector, plain((*Player).PlayStop))
}

// Play starts playback.
func (s Service) Play(ctx context.Context, ev Interaction, selector string) (CommandResult, error) {
	return s.run(ctx, ev, selector, plain((*Player).Play))
}

// Pause pauses playback.
func (s Service) Pause(ctx context.Context, ev Interaction, selector string) (CommandResult, error) {
	return s.run(ctx, ev, selector, func(p *Player, _ Snapshot) ([]hass.ServiceCall, error) {
		if !p.SupportsPause() {
			return nil, unsupported(p, "pause")
		}
		return p.Pause(), nil
	})
}

// Stop stops playback.
func (s Service) Stop(ctx context.Context, ev Interaction, selector string) (CommandResult, error) {
	return s.run(ctx, ev, selector, plain((*Player).Stop))
}

// Next skips to the next track.
func (s Service) Next(ctx context.Context, ev Interaction, selector string) (CommandResult, error) {
	return s.run(ctx, ev, selector, func(p *Player, _ Snapshot) ([]hass.ServiceCall, error) {
		if !p.SupportsNext() {
			return nil, unsupported(p, "next track")
		}
		return p.Next(), nil
	})
}

// Prev skips to the previous track.
func (s Service) Prev(ctx context.Context, ev Interaction, selector string) (CommandResult, error) {
	return s.run(ctx, ev, selector, func(p *Player, _ Snapshot) ([]hass.ServiceCall, error) {
		if !p.SupportsPrev() {
			return nil, unsupported(p, "previous track")
		}
		return p.Prev(), nil
	})
}

// Seek seeks to an absolute position in seconds.
func (s Service) Seek(ctx context.Context, ev Interaction, selector string, position float64) (CommandResult, error) {
	return s.run(ctx, ev, selector, func(p *Player, _ Snapshot) ([]hass.ServiceCall, error) {
		if !p.SupportsSeek() {
			return nil, unsupported(p, "seek")
		}
		return p.Seek(position), nil
	})
}

// Jump seeks relative to the current position. Zero uses the configured
// jump amount.
func (s Service) Jump(ctx context.Context, ev Interaction, selector string, amount float64) (CommandResult, error) {
	return s.run(ctx, ev, selector, func(p *Player, _ Snapshot) ([]hass.ServiceCall, error) {
		if !p.SupportsSeek() {
			return nil, unsupported(p, "seek")
		}
		return p.Jump(amount), nil
	})
}

// VolumeUp raises the group volume, or one member's.
func (s Service) VolumeUp(ctx context.Context, ev Interaction, selector, member string) (CommandResult, error) {
	return s.run(ctx, ev, selector, func(p *Player, snap Snapshot) ([]hass.ServiceCall, error) {
		id, err := s.resolveMember(p, snap, member)
		if err != nil {
			return nil, err
		}
		return p.VolumeUp(id), nil
	})
}

// VolumeDown lowers the group volume, or one member's.
func (s Service) VolumeDown(ctx context.Context, ev Interaction, selector, member string) (CommandResult, error) {
	return s.run(ctx, ev, selector, func(p *Player, snap Snapshot) ([]hass.ServiceCall, error) {
		id, err := s.resolveMember(p, snap, member)
		if err != nil {
			return nil, err
		}
		return p.VolumeDown(id), nil
	})
}

// SetVolume sets the group volume, or one member's. level is in [0,1].
func (s Service) SetVolume(ctx context.Context, ev Interaction, selector string, level float64, member string) (CommandResult, error) {
	if level < 0 || level > 1 {
		return CommandResult{}, &CLIError{Code: ExitUsage, Msg: "volume must be between 0 and 1"}
	}
	return s.run(ctx, ev, selector, func(p *Player, snap Snapshot) ([]hass.ServiceCall, error) {
		id, err := s.resolveMember(p, snap, member)
		if err != nil {
			return nil, err
		}
		return p.SetVolume(level, id), nil
	})
}

// ToggleMute flips mute on the group, or one member.
func (s Service) ToggleMute(ctx context.Context, ev Interaction, selector, member string) (CommandResult, error) {
	return s.run(ctx, ev, selector, func(p *Player, snap Snapshot) ([]hass.ServiceCall, error) {
		id, err := s.resolveMember(p, snap, member)
		if err != nil {
			return nil, err
		}
		return p.ToggleMute(id), nil
	})
}

// ToggleShuffle flips shuffle.
func (s Service) ToggleShuffle(ctx context.Context, ev Interaction, selector string) (CommandResult, error) {
	return s.run(ctx, ev, selector, func(p *Player, _ Snapshot) ([]hass.ServiceCall, error) {
		if !p.SupportsShuffle() {
			return nil, unsupported(p, "shuffle")
		}
		return p.ToggleShuffle(), nil
	})
}

// ToggleRepeat advances the repeat mode.
func (s Service) ToggleRepeat(ctx context.Context, ev Interaction, selector string) (CommandResult, error) {
	return s.run(ctx, ev, selector, func(p *Player, _ Snapshot) ([]hass.ServiceCall, error) {
		if !p.SupportsRepeat() {
			return nil, unsupported(p, "repeat")
		}
		return p.ToggleRepeat(), nil
	})
}

// SelectSource switches the input source.
func (s Service) SelectSource(ctx context.Context, ev Interaction, selector, source string) (CommandResult, error) {
	return s.run(ctx, ev, selector, func(p *Player, _ Snapshot) ([]hass.ServiceCall, error) {
		name, err := matchOption(source, p.Sources(), "source")
		if err != nil {
			return nil, err
		}
		return p.SelectSource(name), nil
	})
}

// SelectSoundMode switches the sound mode.
func (s Service) SelectSoundMode(ctx context.Context, ev Interaction, selector, mode string) (CommandResult, error) {
	return s.run(ctx, ev, selector, func(p *Player, _ Snapshot) ([]hass.ServiceCall, error) {
		name, err := matchOption(mode, p.SoundModes(), "sound mode")
		if err != nil {
			return nil, err
		}
		return p.SelectSoundMode(name), nil
	})
}

// PlayMedia starts a media item.
func (s Service) PlayMedia(ctx context.Context, ev Interaction, selector, contentID, contentType string) (CommandResult, error) {
	if strings.TrimSpace(contentID) == "" {
		return CommandResult{}, &CLIError{Code: ExitUsage, Msg: "content id required"}
	}
	return s.run(ctx, ev, selector, func(p *Player, _ Snapshot) ([]hass.ServiceCall, error) {
		return p.PlayMedia(contentID, contentType), nil
	})
}

// Join groups members under the selected player.
func (s Service) Join(ctx context.Context, ev Interaction, selector string, members []string) (CommandResult, error) {
	if len(members) == 0 {
		return CommandResult{}, &CLIError{Code: ExitUsage, Msg: "at least one member required"}
	}
	return s.run(ctx, ev, selector, func(p *Player, snap Snapshot) ([]hass.ServiceCall, error) {
		ids, err := s.resolveAll(snap, members)
		if err != nil {
			return nil, err
		}
		return p.Join(ids...), nil
	})
}

// Unjoin removes members from their groups. With no members the selected
// player leaves its group.
func (s Service) Unjoin(ctx context.Context, ev Interaction, selector string, members []string) (CommandResult, error) {
	return s.run(ctx, ev, selector, func(p *Player, snap Snapshot) ([]hass.ServiceCall, error) {
		ids, err := s.resolveAll(snap, members)
		if err != nil {
			return nil, err
		}
		return p.Unjoin(ids...), nil
	})
}

// CallService invokes an arbitrary "domain.service" for the player.
func (s Service) CallService(ctx context.Context, ev Interaction, selector, name string, data map[string]any) (CommandResult, error) {
	return s.run(ctx, ev, selector, func(p *Player, _ Snapshot) ([]hass.ServiceCall, error) {
		calls, err := p.CallService(name, data)
		if err != nil {
			return nil, WrapError(ExitUsage, "service", err)
		}
		return calls, nil
	})
}

// Execute maps a wire command onto the matching use case.
func (s Service) Execute(ctx context.Context, cmd zones.CommandEnvelope) (CommandResult, error) {
	if err := zones.ValidateCommandEnvelope(cmd); err != nil {
		return CommandResult{}, WrapError(ExitUsage, "invalid command", err)
	}

	switch cmd.Type {
	case zones.CmdPlayPause, zones.CmdPlayStop, zones.CmdPlay, zones.CmdPause,
		zones.CmdStop, zones.CmdNext, zones.CmdPrev,
		zones.CmdToggleShuffle, zones.CmdToggleRepeat:
		var body zones.PlayerBody
		if err := decodeBody(cmd, &body); err != nil {
			return CommandResult{}, err
		}
		return s.simple(ctx, cmd.Type, body.PlayerID)
	case zones.CmdSeek:
		var body zones.SeekBody
		if err := decodeBody(cmd, &body); err != nil {
			return CommandResult{}, err
		}
		return s.Seek(ctx, nil, body.PlayerID, body.Position)
	case zones.CmdJump:
		var body zones.JumpBody
		if err := decodeBody(cmd, &body); err != nil {
			return CommandResult{}, err
		}
		return s.Jump(ctx, nil, body.PlayerID, body.Amount)
	case zones.CmdVolumeUp, zones.CmdVolumeDown, zones.CmdToggleMute:
		var body zones.MemberBody
		if err := decodeBody(cmd, &body); err != nil {
			return CommandResult{}, err
		}
		switch cmd.Type {
		case zones.CmdVolumeUp:
			return s.VolumeUp(ctx, nil, body.PlayerID, body.Member)
		case zones.CmdVolumeDown:
			return s.VolumeDown(ctx, nil, body.PlayerID, body.Member)
		default:
			return s.ToggleMute(ctx, nil, body.PlayerID, body.Member)
		}
	case zones.CmdSetVolume:
		var body zones.SetVolumeBody
		if err := decodeBody(cmd, &body); err != nil {
			return CommandResult{}, err
		}
		return s.SetVolume(ctx, nil, body.PlayerID, body.Volume, body.Member)
	case zones.CmdSelectSource:
		var body zones.SourceBody
		if err := decodeBody(cmd, &body); err != nil {
			return CommandResult{}, err
		}
		return s.SelectSource(ctx, nil, body.PlayerID, body.Source)
	case zones.CmdSelectSoundMode:
		var body zones.SoundModeBody
		if err := decodeBody(cmd, &body); err != nil {
			return CommandResult{}, err
		}
		return s.SelectSoundMode(ctx, nil, body.PlayerID, body.SoundMode)
	case zones.CmdPlayMedia:
		var body zones.PlayMediaBody
		if err := decodeBody(cmd, &body); err != nil {
			return CommandResult{}, err
		}
		return s.PlayMedia(ctx, nil, body.PlayerID, body.ContentID, body.ContentType)
	case zones.CmdJoin, zones.CmdUnjoin:
		var body zones.GroupBody
		if err := decodeBody(cmd, &body); err != nil {
			return CommandResult{}, err
		}
		if cmd.Type == zones.CmdJoin {
			return s.Join(ctx, nil, body.PlayerID, body.Members)
		}
		return s.Unjoin(ctx, nil, body.PlayerID, body.Members)
	case zones.CmdCallService:
		var body zones.ServiceBody
		if err := decodeBody(cmd, &body); err != nil {
			return CommandResult{}, err
		}
		return s.CallService(ctx, nil, body.PlayerID, body.Service, body.Data)
	default:
		return CommandResult{}, &CLIError{Code: ExitUsage, Msg: fmt.Sprintf("unsupported command %q", cmd.Type)}
	}
}

func (s Service) simple(ctx context.Context, cmdType string, selector string) (CommandResult, error) {
	switch cmdType {
	case zones.CmdPlayPause:
		return s.PlayPause(ctx, nil, selector)
	case zones.CmdPlayStop:
		return s.PlayStop(ctx, nil, selector)
	case zones.CmdPlay:
		return s.Play(ctx, nil, selector)
	case zones.CmdPause:
		return s.Pause(ctx, nil, selector)
	case zones.CmdStop:
		return s.Stop(ctx, nil, selector)
	case zones.CmdNext:
		return s.Next(ctx, nil, selector)
	case zones.CmdPrev:
		return s.Prev(ctx, nil, selector)
	case zones.CmdToggleShuffle:
		return s.ToggleShuffle(ctx, nil, selector)
	default:
		return s.ToggleRepeat(ctx, nil, selector)
	}
}

func decodeBody(cmd zones.CommandEnvelope, v any) error {
	if err := json.Unmarshal(cmd.Body, v); err != nil {
		return WrapError(ExitUsage, "decode body", err)
	}
	return nil
}

// resolveMember resolves a member selector and checks it belongs to the
// player's group.
func (s Service) resolveMember(p *Player, snap Snapshot, member string) (string, error) {
	member = strings.TrimSpace(member)
	if member == "" {
		return "", nil
	}
	id, err := resolveSelector(member, p.Group(), snap.States, s.Resolver.Config.Aliases)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s Service) resolveAll(snap Snapshot, selectors []string) ([]string, error) {
	ids := make([]string, 0, len(selectors))
	for _, sel := range selectors {
		sel = strings.TrimSpace(sel)
		if sel == "" {
			continue
		}
		id, err := resolveSelector(sel, s.Resolver.DeviceIDs(snap.States), snap.States, s.Resolver.Config.Aliases)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func matchOption(value string, options []string, what string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", &CLIError{Code: ExitUsage, Msg: what + " required"}
	}
	if len(options) == 0 {
		return value, nil
	}
	for _, option := range options {
		if strings.EqualFold(option, value) {
			return option, nil
		}
	}
	return "", &CLIError{Code: ExitNotFound, Msg: fmt.Sprintf("unknown %s %q: %s", what, value, strings.Join(options, ", "))}
}

func (s Service) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock.Now()
}
