package core

import (
	"reflect"
	"testing"
)

func device(id, name string, status PlaybackStatus, group ...string) DeviceState {
	if len(group) == 0 {
		group = []string{id}
	}
	return DeviceState{ID: id, DisplayName: name, Status: status, GroupMembers: group}
}

func TestResolveZonesCollapsesGroup(t *testing.T) {
	group := []string{"a", "b", "c"}
	states := States{
		"a": device("a", "Kitchen", StatusPlaying, group...),
		"b": device("b", "Lounge", StatusPlaying, group...),
		"c": device("c", "Study", StatusPlaying, group...),
	}

	zones := ResolveZones([]string{"a", "b", "c"}, states.Lookup)
	if zones.Len() != 1 {
		t.Fatalf("expected 1 zone, got %d", zones.Len())
	}
	zone, ok := zones.Get("a")
	if !ok {
		t.Fatalf("expected zone keyed by leader")
	}
	want := map[string]string{"b": "Lounge", "c": "Study"}
	if !reflect.DeepEqual(zone.Members, want) {
		t.Fatalf("unexpected members: %v", zone.Members)
	}
	if zone.RoomName != "Kitchen" || zone.Status != StatusPlaying {
		t.Fatalf("unexpected zone header: %+v", zone)
	}
	if !reflect.DeepEqual(zone.MemberIDs(), []string{"b", "c"}) {
		t.Fatalf("unexpected member order: %v", zone.MemberIDs())
	}
	if _, ok := zones.Get("b"); ok {
		t.Fatalf("member b must not be a zone")
	}
	if _, ok := zones.Get("c"); ok {
		t.Fatalf("member c must not be a zone")
	}
}

func TestResolveZonesMemberBeforeLeader(t *testing.T) {
	group := []string{"a", "b"}
	states := States{
		"a": device("a", "Kitchen", StatusPaused, group...),
		"b": device("b", "Lounge", StatusPaused, group...),
	}

	zones := ResolveZones([]string{"b", "a"}, states.Lookup)
	if got := zones.LeaderIDs(); !reflect.DeepEqual(got, []string{"a"}) {
		t.Fatalf("unexpected leaders: %v", got)
	}
	if zones.SpeakerName("b") != "Lounge" {
		t.Fatalf("expected speaker name for member")
	}
}

func TestResolveZonesSingletonsKeepInputOrder(t *testing.T) {
	states := States{
		"x": device("x", "X", StatusIdle),
		"y": device("y", "Y", StatusOff),
	}

	zones := ResolveZones([]string{"y", "x", "y"}, states.Lookup)
	if got := zones.LeaderIDs(); !reflect.DeepEqual(got, []string{"y", "x"}) {
		t.Fatalf("unexpected order: %v", got)
	}
	zone, _ := zones.Get("x")
	if zone.Size() != 1 || len(zone.Members) != 0 {
		t.Fatalf("expected singleton zone: %+v", zone)
	}
}

func TestResolveZonesUnavailableKeepsPlaceholder(t *testing.T) {
	states := States{
		"a": device("a", "Kitchen", StatusUnavailable, "a", "b"),
		"b": device("b", "Lounge", StatusPlaying, "b"),
	}

	zones := ResolveZones([]string{"a", "b", "ghost"}, states.Lookup)
	zone, ok := zones.Get("a")
	if !ok {
		t.Fatalf("expected placeholder for unavailable device")
	}
	if zone.RoomName != "" || zone.Status != "" || len(zone.Members) != 0 {
		t.Fatalf("placeholder must stay empty: %+v", zone)
	}
	if zones.SpeakerName("a") != "Kitchen" {
		t.Fatalf("expected speaker name recorded for unavailable device")
	}
	if _, ok := zones.Get("ghost"); !ok {
		t.Fatalf("expected placeholder for absent device")
	}
	if zones.SpeakerName("ghost") != "" {
		t.Fatalf("absent device has no speaker name")
	}
}

func TestResolveZonesSkipsMissingMembers(t *testing.T) {
	states := States{
		"a": device("a", "Kitchen", StatusPlaying, "a", "gone", "b"),
		"b": device("b", "", StatusPlaying, "a", "gone", "b"),
	}

	zones := ResolveZones([]string{"a", "b"}, states.Lookup)
	zone, _ := zones.Get("a")
	want := map[string]string{"b": ""}
	if !reflect.DeepEqual(zone.Members, want) {
		t.Fatalf("unexpected members: %v", zone.Members)
	}
}

func TestResolveZonesKeysAreLeadersOrSingletons(t *testing.T) {
	states := States{
		"a": device("a", "A", StatusPlaying, "a", "b"),
		"b": device("b", "B", StatusPlaying, "a", "b"),
		"c": device("c", "C", StatusPaused, "d", "c"),
		"d": device("d", "D", StatusPaused, "d", "c"),
		"e": device("e", "E", StatusIdle),
	}
	ids := []string{"a", "b", "c", "d", "e"}

	zones := ResolveZones(ids, states.Lookup)
	for _, id := range zones.LeaderIDs() {
		state := states[id]
		if len(state.GroupMembers) > 1 && state.GroupMembers[0] != id {
			t.Fatalf("zone %s is a non-leader member", id)
		}
	}
	for _, id := range ids {
		state := states[id]
		if len(state.GroupMembers) > 1 && state.GroupMembers[0] != id {
			if _, ok := zones.Get(id); ok {
				t.Fatalf("member %s has its own zone", id)
			}
		}
	}
	if zone, ok := zones.ZoneOf("c"); !ok || zone.LeaderID != "d" {
		t.Fatalf("expected c to belong to d")
	}
}
