package core

import (
	"time"

	"github.com/mikey-austin/zonectl/pkg/zones"
)

// ZonesResult lists the resolved zones.
type ZonesResult struct {
	Zones []zones.ZoneSnapshot `json:"zones"`
}

// DevicesResult lists every configured device.
type DevicesResult struct {
	Devices  []DeviceSummary `json:"devices"`
	Selected string          `json:"selected,omitempty"`
}

// DeviceSummary is one row of the device listing.
type DeviceSummary struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Status   string `json:"status"`
	LeaderID string `json:"leaderId,omitempty"`
	Present  bool   `json:"present"`
}

// StatusResult holds the derived view of one device.
type StatusResult struct {
	Player zones.PlayerSnapshot `json:"player"`
	Zone   zones.ZoneSnapshot   `json:"zone"`
}

// CommandResult reports the service calls a command dispatched.
type CommandResult struct {
	PlayerID string   `json:"playerId"`
	Calls    []string `json:"calls"`
}

// ZoneSnapshot converts a zone to its wire form.
func ZoneSnapshot(z Zone, now time.Time) zones.ZoneSnapshot {
	members := make([]zones.MemberSnapshot, 0, len(z.Members))
	for _, id := range z.MemberIDs() {
		members = append(members, zones.MemberSnapshot{ID: id, Name: z.Members[id]})
	}
	return zones.ZoneSnapshot{
		LeaderID: z.LeaderID,
		RoomName: z.RoomName,
		Status:   string(z.Status),
		Members:  members,
		TS:       now.Unix(),
	}
}

// PlayerSnapshot converts a player view to its wire form.
func PlayerSnapshot(p *Player, now time.Time) zones.PlayerSnapshot {
	info := p.MediaInfo()
	media := make([]zones.MediaInfoItem, 0, len(info))
	for _, item := range info {
		media = append(media, zones.MediaInfoItem{Attr: item.Attr, Prefix: item.Prefix, Text: item.Text})
	}
	state := p.State()
	snap := zones.PlayerSnapshot{
		ID:        p.ID(),
		Name:      p.Name(),
		Status:    string(p.Status()),
		Active:    p.Active(),
		Idle:      p.Idle(),
		Volume:    state.Volume.Ptr(),
		Muted:     state.Muted.Ptr(),
		Shuffle:   state.Shuffle.Ptr(),
		Progress:  p.Progress(),
		Duration:  p.Duration(),
		Source:    p.Source(),
		Sources:   p.Sources(),
		MediaInfo: media,
		Group:     p.Group(),
		Caps:      p.Capabilities(),
		TS:        now.Unix(),
	}
	if state.Repeat.Present {
		snap.Repeat = string(state.Repeat.Value)
	}
	if p.HasArtwork() {
		snap.Picture = p.Picture()
	}
	return snap
}
