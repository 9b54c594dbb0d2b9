package zones

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// BaseTopic is the default MQTT topic prefix for the protocol.
const BaseTopic = "zones/v1"

// Reply error codes.
const (
	CodeInvalid     = "INVALID"
	CodeNotFound    = "NOT_FOUND"
	CodeUnsupported = "UNSUPPORTED"
	CodeUnavailable = "UNAVAILABLE"
	CodeInternal    = "INTERNAL"
)

// CommandEnvelope is the common controller command envelope for MQTT.
type CommandEnvelope struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	TS      int64           `json:"ts"`
	From    string          `json:"from"`
	ReplyTo string          `json:"replyTo,omitempty"`
	Body    json.RawMessage `json:"body"`
}

// ReplyEnvelope is the response envelope for commands.
type ReplyEnvelope struct {
	ID   string          `json:"id"`
	Type string          `json:"type"`
	OK   bool            `json:"ok"`
	TS   int64           `json:"ts"`
	Body json.RawMessage `json:"body,omitempty"`
	Err  *ReplyError     `json:"err,omitempty"`
}

// ReplyError describes an error response.
type ReplyError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Presence describes the controller presence payload.
type Presence struct {
	NodeID  string   `json:"nodeId"`
	Kind    string   `json:"kind"`
	Name    string   `json:"name"`
	Zones   []string `json:"zones"`
	Players []string `json:"players"`
	TS      int64    `json:"ts"`
}

// ZoneSnapshot is the retained state of one zone.
type ZoneSnapshot struct {
	LeaderID string           `json:"leaderId"`
	RoomName string           `json:"roomName"`
	Status   string           `json:"status"`
	Members  []MemberSnapshot `json:"members"`
	TS       int64            `json:"ts"`
}

// MemberSnapshot names a non-leader member of a zone.
type MemberSnapshot struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// PlayerSnapshot is the retained derived view of one device.
type PlayerSnapshot struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Status    string          `json:"status"`
	Active    bool            `json:"active"`
	Idle      bool            `json:"idle"`
	Volume    *float64        `json:"volume,omitempty"`
	Muted     *bool           `json:"muted,omitempty"`
	Shuffle   *bool           `json:"shuffle,omitempty"`
	Repeat    string          `json:"repeat,omitempty"`
	Progress  float64         `json:"progress"`
	Duration  float64         `json:"duration,omitempty"`
	Source    string          `json:"source,omitempty"`
	Sources   []string        `json:"sources,omitempty"`
	MediaInfo []MediaInfoItem `json:"mediaInfo,omitempty"`
	Picture   string          `json:"picture,omitempty"`
	Group     []string        `json:"group"`
	Caps      map[string]bool `json:"caps"`
	TS        int64           `json:"ts"`
}

// MediaInfoItem is one displayed metadata field.
type MediaInfoItem struct {
	Attr   string `json:"attr"`
	Prefix string `json:"prefix,omitempty"`
	Text   string `json:"text"`
}

// NewCommand builds a command envelope with a JSON body.
func NewCommand(cmdType string, body any) (CommandEnvelope, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return CommandEnvelope{}, fmt.Errorf("marshal body: %w", err)
	}

	return CommandEnvelope{
		Type: cmdType,
		Body: payload,
	}, nil
}

// ValidateCommandEnvelope validates required fields.
func ValidateCommandEnvelope(cmd CommandEnvelope) error {
	if strings.TrimSpace(cmd.ID) == "" {
		return errors.New("id is required")
	}
	if strings.TrimSpace(cmd.Type) == "" {
		return errors.New("type is required")
	}
	if !KnownCommand(cmd.Type) {
		return fmt.Errorf("unknown command type %q", cmd.Type)
	}
	if len(cmd.Body) == 0 {
		return errors.New("body is required")
	}
	return nil
}

// TopicPresence builds the presence topic for a node.
func TopicPresence(topicBase, nodeID string) string {
	return fmt.Sprintf("%s/node/%s/presence", topicBase, nodeID)
}

// TopicState builds the state topic for a node.
func TopicState(topicBase, nodeID string) string {
	return fmt.Sprintf("%s/node/%s/state", topicBase, nodeID)
}

// TopicCommands builds the command topic for a node.
func TopicCommands(topicBase, nodeID string) string {
	return fmt.Sprintf("%s/node/%s/cmd", topicBase, nodeID)
}

// TopicZone builds the retained topic for a zone snapshot.
func TopicZone(topicBase, leaderID string) string {
	return fmt.Sprintf("%s/zone/%s", topicBase, leaderID)
}

// TopicPlayer builds the retained topic for a player snapshot.
func TopicPlayer(topicBase, playerID string) string {
	return fmt.Sprintf("%s/player/%s", topicBase, playerID)
}

// TopicReply builds the reply topic for a controller instance.
func TopicReply(topicBase, controllerID string) string {
	return fmt.Sprintf("%s/reply/%s", topicBase, controllerID)
}

// TopicArtwork builds the retained topic for a player's artwork.
func TopicArtwork(topicBase, playerID string) string {
	return fmt.Sprintf("%s/player/%s/artwork", topicBase, playerID)
}

// ArtworkSnapshot is the retained artwork of one player. Image is a data URI,
// or the picture URL when Fallback is set. An empty Image means no artwork.
type ArtworkSnapshot struct {
	PlayerID string `json:"playerId"`
	Ref      string `json:"ref,omitempty"`
	Image    string `json:"image,omitempty"`
	Fallback bool   `json:"fallback,omitempty"`
	TS       int64  `json:"ts"`
}
