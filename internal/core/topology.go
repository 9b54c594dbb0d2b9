package core

// Zone is an independent playback group keyed by its leader.
type Zone struct {
	LeaderID string
	RoomName string
	Members  map[string]string
	Status   PlaybackStatus

	memberOrder []string
}

// MemberIDs returns the non-leader members in group order.
func (z Zone) MemberIDs() []string {
	return append([]string(nil), z.memberOrder...)
}

// Size returns the number of devices in the zone, leader included.
func (z Zone) Size() int {
	return len(z.Members) + 1
}

// Zones is the result of one resolution pass.
type Zones struct {
	order        []string
	byID         map[string]Zone
	speakerNames map[string]string
}

// Get returns the zone led by id.
func (z Zones) Get(id string) (Zone, bool) {
	zone, ok := z.byID[id]
	return zone, ok
}

// Len returns the number of zones.
func (z Zones) Len() int {
	return len(z.byID)
}

// LeaderIDs returns the zone keys in input order.
func (z Zones) LeaderIDs() []string {
	out := make([]string, 0, len(z.byID))
	seen := make(map[string]bool, len(z.byID))
	for _, id := range z.order {
		if _, ok := z.byID[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// List returns the zones in input order.
func (z Zones) List() []Zone {
	ids := z.LeaderIDs()
	out := make([]Zone, 0, len(ids))
	for _, id := range ids {
		out = append(out, z.byID[id])
	}
	return out
}

// SpeakerName returns the display name recorded for id when its zone
// entry was first created.
func (z Zones) SpeakerName(id string) string {
	return z.speakerNames[id]
}

// ZoneOf returns the zone a device belongs to, as leader or member.
func (z Zones) ZoneOf(id string) (Zone, bool) {
	if zone, ok := z.byID[id]; ok {
		return zone, true
	}
	for _, zone := range z.byID {
		if _, ok := zone.Members[id]; ok {
			return zone, true
		}
	}
	return Zone{}, false
}

// ResolveZones partitions the given devices into zones.
//
// Each id gets a placeholder zone on first sight. Devices whose state is
// absent or unavailable keep the placeholder untouched. A group leader
// collects the display names of its members; a non-leader member of a
// larger group loses its own entry. Member ids without state are skipped.
func ResolveZones(ids []string, lookup StateLookup) Zones {
	zones := Zones{
		order:        make([]string, 0, len(ids)),
		byID:         make(map[string]Zone, len(ids)),
		speakerNames: make(map[string]string, len(ids)),
	}

	for _, id := range ids {
		state, ok := lookup(id)
		if _, exists := zones.byID[id]; !exists {
			zones.byID[id] = Zone{LeaderID: id, Members: map[string]string{}}
			zones.order = append(zones.order, id)
			if ok {
				zones.speakerNames[id] = state.DisplayName
			} else {
				zones.speakerNames[id] = ""
			}
		}

		if !ok || state.IsUnavailable() {
			continue
		}

		zone := zones.byID[id]
		zone.Status = state.Status
		zone.RoomName = state.DisplayName

		group := state.GroupMembers
		switch {
		case len(group) > 1 && group[0] == id:
			members := make(map[string]string, len(group)-1)
			order := make([]string, 0, len(group)-1)
			for _, memberID := range group {
				if memberID == id {
					continue
				}
				member, found := lookup(memberID)
				if !found {
					continue
				}
				if _, dup := members[memberID]; !dup {
					order = append(order, memberID)
				}
				members[memberID] = member.DisplayName
			}
			zone.Members = members
			zone.memberOrder = order
			zones.byID[id] = zone
		case len(group) > 1:
			delete(zones.byID, id)
		default:
			zones.byID[id] = zone
		}
	}

	return zones
}
