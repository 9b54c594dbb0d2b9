package core

import (
	"sort"
	"time"

	"github.com/mikey-austin/zonectl/pkg/hass"
)

// Optional is a value with an explicit presence flag.
type Optional[T any] struct {
	Value   T
	Present bool
}

// Some returns a present Optional.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Value: v, Present: true}
}

// Get returns the value and whether it is present.
func (o Optional[T]) Get() (T, bool) {
	return o.Value, o.Present
}

// Or returns the value when present, def otherwise.
func (o Optional[T]) Or(def T) T {
	if o.Present {
		return o.Value
	}
	return def
}

// Ptr returns a pointer to the value, or nil when absent.
func (o Optional[T]) Ptr() *T {
	if !o.Present {
		return nil
	}
	v := o.Value
	return &v
}

func fromPtr[T any](p *T) Optional[T] {
	if p == nil {
		return Optional[T]{}
	}
	return Some(*p)
}

// PlaybackStatus is the raw state a device reports.
type PlaybackStatus string

// Known playback statuses. Other values are passed through unchanged.
const (
	StatusPlaying     PlaybackStatus = hass.StatePlaying
	StatusPaused      PlaybackStatus = hass.StatePaused
	StatusIdle        PlaybackStatus = hass.StateIdle
	StatusStandby     PlaybackStatus = hass.StateStandby
	StatusUnavailable PlaybackStatus = hass.StateUnavailable
	StatusOff         PlaybackStatus = hass.StateOff
)

// RepeatMode is the repeat setting of a device.
type RepeatMode string

// Repeat modes in cycle order.
const (
	RepeatOff RepeatMode = hass.RepeatOff
	RepeatAll RepeatMode = hass.RepeatAll
	RepeatOne RepeatMode = hass.RepeatOne
)

// repeatCycle is the order ToggleRepeat advances through.
var repeatCycle = []RepeatMode{RepeatOff, RepeatAll, RepeatOne}

// NextRepeat returns the mode following m in the cycle off, all, one.
// Unknown modes restart the cycle at all.
func NextRepeat(m RepeatMode) RepeatMode {
	for i, mode := range repeatCycle {
		if mode == m {
			return repeatCycle[(i+1)%len(repeatCycle)]
		}
	}
	return RepeatAll
}

// MediaMetadata describes what a device is playing.
type MediaMetadata struct {
	Title       string
	Artist      string
	SeriesTitle string
	Season      string
	Episode     string
	AppName     string
	ContentType string
}

// DeviceState is a read-only snapshot of one device.
type DeviceState struct {
	ID                string
	DisplayName       string
	Status            PlaybackStatus
	Volume            Optional[float64]
	Muted             Optional[bool]
	Shuffle           Optional[bool]
	Repeat            Optional[RepeatMode]
	Position          Optional[float64]
	PositionUpdatedAt time.Time
	Duration          Optional[float64]
	Features          hass.Feature
	GroupMembers      []string
	Sources           []string
	Source            string
	SoundModes        []string
	SoundMode         string
	Media             MediaMetadata
	Picture           string
	PictureLocal      string
	Icon              string
}

// DeviceFromEntity converts a Home Assistant entity into a DeviceState.
// A missing grouping attribute is reported as a group of one.
func DeviceFromEntity(e hass.EntityState) DeviceState {
	attr := e.Attributes
	group := append([]string(nil), attr.Group()...)
	if len(group) == 0 {
		group = []string{e.EntityID}
	}

	var repeat Optional[RepeatMode]
	if attr.Repeat != nil {
		repeat = Some(RepeatMode(*attr.Repeat))
	}
	var updatedAt time.Time
	if attr.MediaPositionUpdatedAt != nil {
		updatedAt = *attr.MediaPositionUpdatedAt
	}

	return DeviceState{
		ID:                e.EntityID,
		DisplayName:       attr.FriendlyName,
		Status:            PlaybackStatus(e.State),
		Volume:            fromPtr(attr.VolumeLevel),
		Muted:             fromPtr(attr.IsVolumeMuted),
		Shuffle:           fromPtr(attr.Shuffle),
		Repeat:            repeat,
		Position:          fromPtr(attr.MediaPosition),
		PositionUpdatedAt: updatedAt,
		Duration:          fromPtr(attr.MediaDuration),
		Features:          attr.SupportedFeatures,
		GroupMembers:      group,
		Sources:           attr.SourceList,
		Source:            attr.Source,
		SoundModes:        attr.SoundModeList,
		SoundMode:         attr.SoundMode,
		Media: MediaMetadata{
			Title:       attr.MediaTitle.String(),
			Artist:      attr.MediaArtist.String(),
			SeriesTitle: attr.MediaSeriesTitle.String(),
			Season:      attr.MediaSeason.String(),
			Episode:     attr.MediaEpisode.String(),
			AppName:     attr.AppName.String(),
			ContentType: attr.MediaContentType,
		},
		Picture:      attr.EntityPicture,
		PictureLocal: attr.EntityPictureLocal,
		Icon:         attr.Icon,
	}
}

// IsUnavailable reports whether the device is unreachable.
func (d DeviceState) IsUnavailable() bool {
	return d.Status == StatusUnavailable
}

// IsLeader reports whether the device leads a group of more than one.
func (d DeviceState) IsLeader() bool {
	return len(d.GroupMembers) > 1 && d.GroupMembers[0] == d.ID
}

// StateLookup returns the state of a device, if known.
type StateLookup func(id string) (DeviceState, bool)

// States is a device-id keyed snapshot.
type States map[string]DeviceState

// Lookup implements StateLookup.
func (s States) Lookup(id string) (DeviceState, bool) {
	state, ok := s[id]
	return state, ok
}

// StatesFromEntities converts every media_player entity.
func StatesFromEntities(entities []hass.EntityState) States {
	out := make(States, len(entities))
	for _, e := range entities {
		if e.Domain() != hass.DomainMediaPlayer {
			continue
		}
		out[e.EntityID] = DeviceFromEntity(e)
	}
	return out
}

// IDs returns the device ids of the snapshot, sorted.
func (s States) IDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
