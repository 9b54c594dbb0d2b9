package core

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/mikey-austin/zonectl/pkg/hass"
	"github.com/mikey-austin/zonectl/pkg/zones"
)

type stubClock struct{}

func (stubClock) Now() time.Time { return testNow }

type stubStates struct {
	entities []hass.EntityState
	err      error
}

func (s stubStates) States(ctx context.Context) ([]hass.EntityState, error) {
	return s.entities, s.err
}

func entity(id, name, state string, group []string, features hass.Feature) hass.EntityState {
	return hass.EntityState{
		EntityID: id,
		State:    state,
		Attributes: hass.Attributes{
			FriendlyName:      name,
			SonosGroup:        group,
			SupportedFeatures: features,
		},
	}
}

func newTestService(entities ...hass.EntityState) (Service, *recordingDispatcher) {
	dispatcher := &recordingDispatcher{}
	return Service{
		States:    stubStates{entities: entities},
		Commander: Commander{Dispatcher: dispatcher},
		Resolver:  Resolver{Selection: &memorySelection{}},
		Clock:     stubClock{},
	}, dispatcher
}

func kitchenGroup() []hass.EntityState {
	group := []string{"media_player.kitchen", "media_player.lounge"}
	vol := 0.5
	muted := false
	kitchen := entity("media_player.kitchen", "Kitchen", "playing", group, hass.FeatureSeek|hass.FeatureNextTrack)
	kitchen.Attributes.VolumeLevel = &vol
	kitchen.Attributes.IsVolumeMuted = &muted
	lounge := entity("media_player.lounge", "Lounge", "playing", group, 0)
	lounge.Attributes.IsVolumeMuted = &muted
	study := entity("media_player.study", "Study", "unavailable", nil, 0)
	light := hass.EntityState{EntityID: "light.desk", State: "on"}
	return []hass.EntityState{kitchen, lounge, study, light}
}

func TestServiceZones(t *testing.T) {
	service, _ := newTestService(kitchenGroup()...)

	result, err := service.Zones(context.Background())
	if err != nil {
		t.Fatalf("Zones: %v", err)
	}
	if len(result.Zones) != 2 {
		t.Fatalf("expected kitchen zone and study placeholder, got %+v", result.Zones)
	}
	kitchen := result.Zones[0]
	if kitchen.LeaderID != "media_player.kitchen" || len(kitchen.Members) != 1 || kitchen.Members[0].Name != "Lounge" {
		t.Fatalf("unexpected kitchen zone: %+v", kitchen)
	}
	if result.Zones[1].LeaderID != "media_player.study" || result.Zones[1].Status != "" {
		t.Fatalf("unexpected placeholder: %+v", result.Zones[1])
	}
}

func TestServiceZonesRespectsConfiguredEntities(t *testing.T) {
	service, _ := newTestService(kitchenGroup()...)
	service.Resolver.Config.Entities = []string{"media_player.study", "media_player.kitchen"}

	result, err := service.Zones(context.Background())
	if err != nil {
		t.Fatalf("Zones: %v", err)
	}
	if result.Zones[0].LeaderID != "media_player.study" {
		t.Fatalf("expected configured order")
	}
}

func TestServiceToggleMuteDispatchesPerMember(t *testing.T) {
	service, dispatcher := newTestService(kitchenGroup()...)
	ev := &stopEvent{}

	result, err := service.ToggleMute(context.Background(), ev, "kitchen", "")
	if err != nil {
		t.Fatalf("ToggleMute: %v", err)
	}
	if !ev.stopped {
		t.Fatalf("expected propagation stopped")
	}
	if len(result.Calls) != 2 || len(dispatcher.recorded()) != 2 {
		t.Fatalf("expected 2 calls, got %+v", result)
	}

	_, err = service.ToggleMute(context.Background(), nil, "kitchen", "Lounge")
	if err != nil {
		t.Fatalf("ToggleMute member: %v", err)
	}
	last := dispatcher.recorded()[2]
	if last.EntityID() != "media_player.lounge" {
		t.Fatalf("expected member call, got %+v", last)
	}

	_, err = service.ToggleMute(context.Background(), nil, "kitchen", "study")
	if ExitCode(err) != ExitNotFound {
		t.Fatalf("expected member outside group to fail, got %v", err)
	}
}

func TestServiceCapabilityChecks(t *testing.T) {
	service, dispatcher := newTestService(kitchenGroup()...)

	if _, err := service.Prev(context.Background(), nil, "kitchen"); ExitCode(err) != ExitUnsupported {
		t.Fatalf("expected unsupported prev, got %v", err)
	}
	if _, err := service.Next(context.Background(), nil, "kitchen"); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if _, err := service.ToggleShuffle(context.Background(), nil, "kitchen"); ExitCode(err) != ExitUnsupported {
		t.Fatalf("expected unsupported shuffle, got %v", err)
	}
	if _, err := service.Play(context.Background(), nil, "study"); ExitCode(err) != ExitUnavailable {
		t.Fatalf("expected unavailable, got %v", err)
	}
	if len(dispatcher.recorded()) != 1 {
		t.Fatalf("only next should dispatch")
	}
}

func TestServiceSelectFeedsResolver(t *testing.T) {
	service, dispatcher := newTestService(kitchenGroup()...)

	id, err := service.Select(context.Background(), "Lounge")
	if err != nil || id != "media_player.lounge" {
		t.Fatalf("Select: %q %v", id, err)
	}
	if _, err := service.PlayPause(context.Background(), nil, ""); err != nil {
		t.Fatalf("PlayPause: %v", err)
	}
	if got := dispatcher.recorded()[0].EntityID(); got != "media_player.lounge" {
		t.Fatalf("expected selected device, got %s", got)
	}

	devices, err := service.Devices(context.Background())
	if err != nil {
		t.Fatalf("Devices: %v", err)
	}
	if devices.Selected != "media_player.lounge" || len(devices.Devices) != 3 {
		t.Fatalf("unexpected devices: %+v", devices)
	}
}

func TestServiceStatus(t *testing.T) {
	service, _ := newTestService(kitchenGroup()...)

	status, err := service.Status(context.Background(), "media_player.lounge")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Zone.LeaderID != "media_player.kitchen" {
		t.Fatalf("expected kitchen zone, got %+v", status.Zone)
	}
	if status.Player.Muted == nil || *status.Player.Muted {
		t.Fatalf("expected mute flag")
	}
	if status.Player.Volume != nil {
		t.Fatalf("lounge reports no volume")
	}
}

func TestServiceExecute(t *testing.T) {
	service, dispatcher := newTestService(kitchenGroup()...)
	service.Config.Player.VolumeStep = 10

	cmd, err := zones.NewCommand(zones.CmdVolumeUp, zones.MemberBody{PlayerID: "kitchen"})
	if err != nil {
		t.Fatalf("NewCommand: %v", err)
	}
	cmd.ID = "cmd-1"
	result, err := service.Execute(context.Background(), cmd)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.PlayerID != "media_player.kitchen" {
		t.Fatalf("unexpected player: %s", result.PlayerID)
	}
	byID := callsByEntity(dispatcher.recorded())
	if byID["media_player.kitchen"].Data["volume_level"] != 0.6 {
		t.Fatalf("expected stepped volume, got %+v", byID["media_player.kitchen"])
	}
	if byID["media_player.lounge"].Service != hass.ServiceVolumeUp {
		t.Fatalf("expected native volume_up for lounge")
	}

	cmd, _ = zones.NewCommand(zones.CmdJoin, zones.GroupBody{PlayerID: "kitchen", Members: []string{"study"}})
	cmd.ID = "cmd-2"
	if _, err := service.Execute(context.Background(), cmd); err != nil {
		t.Fatalf("Execute join: %v", err)
	}
	join := dispatcher.recorded()[2]
	if join.Name() != "sonos.join" || join.EntityID() != "media_player.study" || join.Data["master"] != "media_player.kitchen" {
		t.Fatalf("unexpected join: %+v", join)
	}

	bad := zones.CommandEnvelope{ID: "cmd-3", Type: "player.bogus", Body: json.RawMessage(`{}`)}
	if _, err := service.Execute(context.Background(), bad); ExitCode(err) != ExitUsage {
		t.Fatalf("expected usage error, got %v", err)
	}
}

func TestServiceStateSourceFailure(t *testing.T) {
	service := Service{States: stubStates{err: errors.New("down")}}
	if _, err := service.Zones(context.Background()); ExitCode(err) != ExitUnavailable {
		t.Fatalf("expected unavailable, got %v", err)
	}
}
