package zones

// Command types accepted by the zone controller.
const (
	CmdPlayPause       = "player.playPause"
	CmdPlayStop        = "player.playStop"
	CmdPlay            = "player.play"
	CmdPause           = "player.pause"
	CmdStop            = "player.stop"
	CmdNext            = "player.next"
	CmdPrev            = "player.prev"
	CmdSeek            = "player.seek"
	CmdJump            = "player.jump"
	CmdVolumeUp        = "player.volumeUp"
	CmdVolumeDown      = "player.volumeDown"
	CmdSetVolume       = "player.setVolume"
	CmdToggleMute      = "player.toggleMute"
	CmdToggleShuffle   = "player.toggleShuffle"
	CmdToggleRepeat    = "player.toggleRepeat"
	CmdSelectSource    = "player.selectSource"
	CmdSelectSoundMode = "player.selectSoundMode"
	CmdPlayMedia       = "player.playMedia"
	CmdJoin            = "player.join"
	CmdUnjoin          = "player.unjoin"
	CmdCallService     = "player.callService"
)

// KnownCommand reports whether cmdType is a supported command.
func KnownCommand(cmdType string) bool {
	switch cmdType {
	case CmdPlayPause, CmdPlayStop, CmdPlay, CmdPause, CmdStop, CmdNext, CmdPrev:
		return true
	case CmdSeek, CmdJump:
		return true
	case CmdVolumeUp, CmdVolumeDown, CmdSetVolume, CmdToggleMute:
		return true
	case CmdToggleShuffle, CmdToggleRepeat:
		return true
	case CmdSelectSource, CmdSelectSoundMode, CmdPlayMedia:
		return true
	case CmdJoin, CmdUnjoin, CmdCallService:
		return true
	default:
		return false
	}
}

// PlayerBody addresses a player without arguments.
type PlayerBody struct {
	PlayerID string `json:"playerId"`
}

// MemberBody addresses a player and optionally one group member.
type MemberBody struct {
	PlayerID string `json:"playerId"`
	Member   string `json:"member,omitempty"`
}

// SetVolumeBody is the payload for player.setVolume.
type SetVolumeBody struct {
	PlayerID string  `json:"playerId"`
	Volume   float64 `json:"volume"`
	Member   string  `json:"member,omitempty"`
}

// SeekBody is the payload for player.seek.
type SeekBody struct {
	PlayerID string  `json:"playerId"`
	Position float64 `json:"position"`
}

// JumpBody is the payload for player.jump. Amount is in seconds.
type JumpBody struct {
	PlayerID string  `json:"playerId"`
	Amount   float64 `json:"amount"`
}

// SourceBody is the payload for player.selectSource.
type SourceBody struct {
	PlayerID string `json:"playerId"`
	Source   string `json:"source"`
}

// SoundModeBody is the payload for player.selectSoundMode.
type SoundModeBody struct {
	PlayerID  string `json:"playerId"`
	SoundMode string `json:"soundMode"`
}

// PlayMediaBody is the payload for player.playMedia.
type PlayMediaBody struct {
	PlayerID    string `json:"playerId"`
	ContentID   string `json:"contentId"`
	ContentType string `json:"contentType"`
}

// GroupBody is the payload for player.join and player.unjoin.
type GroupBody struct {
	PlayerID string   `json:"playerId"`
	Members  []string `json:"members"`
}

// ServiceBody is the payload for player.callService.
type ServiceBody struct {
	PlayerID string         `json:"playerId"`
	Service  string         `json:"service"`
	Data     map[string]any `json:"data,omitempty"`
}
