package zonebridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mikey-austin/zonectl/internal/adapters/artwork"
	"github.com/mikey-austin/zonectl/internal/adapters/homeassistant"
	"github.com/mikey-austin/zonectl/internal/core"
	"github.com/mikey-austin/zonectl/internal/ports"
	"github.com/mikey-austin/zonectl/pkg/hass"
	"github.com/mikey-austin/zonectl/pkg/zones"
)

// mqttClient abstracts MQTT operations.
type mqttClient interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
	Subscribe(topic string, qos byte, handler paho.MessageHandler) error
	Unsubscribe(topic string) error
}

// eventSource delivers Home Assistant state changes until ctx is done or
// the connection drops.
type eventSource interface {
	Run(ctx context.Context, handler homeassistant.StateHandler) error
}

// Config configures the zone bridge.
type Config struct {
	NodeID       string
	TopicBase    string
	Name         string
	PollInterval time.Duration
	IdleCheck    time.Duration
	Artwork      bool
	Reconnect    time.Duration
}

// Deps are the collaborators the bridge drives.
type Deps struct {
	Service  core.Service
	Events   eventSource
	Fetcher  ports.ArtworkFetcher
	Resolver artwork.Resolver
}

// Module republishes Home Assistant zones over MQTT and executes zone
// commands received on the node command topic.
type Module struct {
	log    *zap.Logger
	client mqttClient
	config Config
	deps   Deps

	refreshCh chan struct{}

	mu        sync.Mutex
	snap      core.Snapshot
	hasSnap   bool
	published map[string]string
	trackers  map[string]*artwork.Tracker
}

// NewModule creates a zone bridge module.
func NewModule(log *zap.Logger, client mqttClient, cfg Config, deps Deps) (*Module, error) {
	if client == nil {
		return nil, errors.New("mqtt client is required")
	}
	if deps.Service.States == nil {
		return nil, errors.New("state source is required")
	}
	if cfg.NodeID == "" {
		return nil, errors.New("node_id is required")
	}
	if cfg.TopicBase == "" {
		cfg.TopicBase = zones.BaseTopic
	}
	if cfg.Name == "" {
		cfg.Name = cfg.NodeID
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	if cfg.IdleCheck <= 0 {
		cfg.IdleCheck = time.Minute
	}
	if cfg.Reconnect <= 0 {
		cfg.Reconnect = 5 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Module{
		log:       log,
		client:    client,
		config:    cfg,
		deps:      deps,
		refreshCh: make(chan struct{}, 1),
		published: map[string]string{},
		trackers:  map[string]*artwork.Tracker{},
	}, nil
}

// Run starts the bridge.
func (m *Module) Run(ctx context.Context) error {
	m.log.Info("starting zone bridge",
		zap.String("node_id", m.config.NodeID),
		zap.Duration("poll", m.config.PollInterval),
		zap.Duration("idle_check", m.config.IdleCheck),
	)

	cmdTopic := zones.TopicCommands(m.config.TopicBase, m.config.NodeID)
	handler := func(_ paho.Client, msg paho.Message) { m.handleMessage(ctx, msg) }
	if err := m.client.Subscribe(cmdTopic, 1, handler); err != nil {
		return fmt.Errorf("subscribe cmd: %w", err)
	}
	defer m.client.Unsubscribe(cmdTopic)

	if err := m.Refresh(ctx); err != nil {
		m.log.Warn("initial refresh failed", zap.Error(err))
	}

	if m.deps.Events != nil {
		go m.watchEvents(ctx)
	}

	sched := cron.New()
	if _, err := sched.AddFunc(fmt.Sprintf("@every %s", m.config.IdleCheck), m.CheckIdle); err != nil {
		return fmt.Errorf("schedule idle check: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	ticker := time.NewTicker(m.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-m.refreshCh:
		}
		if err := m.Refresh(ctx); err != nil {
			m.log.Debug("refresh failed", zap.Error(err))
		}
	}
}

// Trigger schedules a refresh. Pending triggers coalesce.
func (m *Module) Trigger() {
	select {
	case m.refreshCh <- struct{}{}:
	default:
	}
}

func (m *Module) watchEvents(ctx context.Context) {
	for {
		err := m.deps.Events.Run(ctx, func(data hass.StateChangedData) {
			m.log.Debug("state changed", zap.String("entity_id", data.EntityID))
			if inv, ok := m.deps.Service.States.(interface{ Invalidate() }); ok {
				inv.Invalidate()
			}
			m.Trigger()
		})
		if ctx.Err() != nil {
			return
		}
		if errors.Is(err, homeassistant.ErrAuthInvalid) {
			m.log.Error("event stream stopped", zap.Error(err))
			return
		}
		m.log.Warn("event stream disconnected", zap.Error(err), zap.Duration("retry", m.config.Reconnect))

		timer := time.NewTimer(m.config.Reconnect)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		m.Trigger()
	}
}

// Refresh reads all states, resolves zones and publishes what changed.
func (m *Module) Refresh(ctx context.Context) error {
	snap, err := m.deps.Service.Snapshot(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.snap = snap
	m.hasSnap = true
	m.mu.Unlock()

	m.publishSnapshot(ctx, snap, m.now())
	return nil
}

// CheckIdle re-derives every player from the last snapshot at the current
// time so idle transitions are published without a state change.
func (m *Module) CheckIdle() {
	m.mu.Lock()
	snap, ok := m.snap, m.hasSnap
	m.mu.Unlock()
	if !ok {
		return
	}
	now := m.now()
	for _, id := range snap.IDs {
		p, ok := snap.Player(id, m.deps.Service.Config.Player, m.now)
		if !ok {
			continue
		}
		p.CheckIdle()
		m.publishJSON(zones.TopicPlayer(m.config.TopicBase, id), core.PlayerSnapshot(p, now))
	}
}

func (m *Module) publishSnapshot(ctx context.Context, snap core.Snapshot, now time.Time) {
	seen := map[string]bool{}

	leaders := snap.Zones.LeaderIDs()
	for _, zone := range snap.Zones.List() {
		topic := zones.TopicZone(m.config.TopicBase, zone.LeaderID)
		seen[topic] = true
		m.publishJSON(topic, core.ZoneSnapshot(zone, now))
	}

	players := make([]string, 0, len(snap.IDs))
	for _, id := range snap.IDs {
		p, ok := snap.Player(id, m.deps.Service.Config.Player, m.now)
		if !ok {
			continue
		}
		p.CheckIdle()
		players = append(players, id)
		topic := zones.TopicPlayer(m.config.TopicBase, id)
		seen[topic] = true
		m.publishJSON(topic, core.PlayerSnapshot(p, now))
		if m.config.Artwork {
			seen[zones.TopicArtwork(m.config.TopicBase, id)] = true
			m.tracker(id).Update(ctx, p.Picture(), p.HasArtwork())
		}
	}

	m.publishJSON(zones.TopicPresence(m.config.TopicBase, m.config.NodeID), zones.Presence{
		NodeID:  m.config.NodeID,
		Kind:    "zone_controller",
		Name:    m.config.Name,
		Zones:   leaders,
		Players: players,
		TS:      now.Unix(),
	})
	seen[zones.TopicPresence(m.config.TopicBase, m.config.NodeID)] = true

	m.clearStale(seen)
}

func (m *Module) tracker(id string) *artwork.Tracker {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trackers[id]
	if !ok {
		topic := zones.TopicArtwork(m.config.TopicBase, id)
		t = artwork.NewTracker(m.deps.Fetcher, m.deps.Resolver, func(res artwork.Result) {
			m.publishJSON(topic, zones.ArtworkSnapshot{
				PlayerID: id,
				Ref:      res.Ref,
				Image:    res.Image,
				Fallback: res.Fallback,
				TS:       m.now().Unix(),
			})
		}, m.log.With(zap.String("player", id)))
		m.trackers[id] = t
	}
	return t
}

// publishJSON publishes v retained when its content, ignoring the
// timestamp, differs from the last publish on topic.
func (m *Module) publishJSON(topic string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		m.log.Warn("marshal failed", zap.String("topic", topic), zap.Error(err))
		return
	}
	key := contentKey(payload)

	m.mu.Lock()
	if m.published[topic] == key {
		m.mu.Unlock()
		return
	}
	m.published[topic] = key
	m.mu.Unlock()

	if err := m.client.Publish(topic, 1, true, payload); err != nil {
		m.log.Debug("publish failed", zap.String("topic", topic), zap.Error(err))
		m.mu.Lock()
		delete(m.published, topic)
		m.mu.Unlock()
	}
}

// clearStale removes retained messages for zones and players that are gone.
func (m *Module) clearStale(seen map[string]bool) {
	m.mu.Lock()
	stale := make([]string, 0)
	for topic := range m.published {
		if !seen[topic] {
			stale = append(stale, topic)
			delete(m.published, topic)
		}
	}
	m.mu.Unlock()

	for _, topic := range stale {
		if err := m.client.Publish(topic, 1, true, nil); err != nil {
			m.log.Debug("clear retained failed", zap.String("topic", topic), zap.Error(err))
		}
	}
}

func contentKey(payload []byte) string {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return string(payload)
	}
	delete(fields, "ts")
	out, err := json.Marshal(fields)
	if err != nil {
		return string(payload)
	}
	return string(out)
}

func (m *Module) handleMessage(ctx context.Context, msg paho.Message) {
	var cmd zones.CommandEnvelope
	if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
		m.log.Debug("invalid command payload", zap.Error(err))
		return
	}

	result, err := m.deps.Service.Execute(ctx, cmd)
	reply := zones.ReplyEnvelope{ID: cmd.ID, Type: "ack", OK: true, TS: m.now().Unix()}
	if err != nil {
		m.log.Debug("command failed", zap.String("cmd_type", cmd.Type), zap.String("cmd_id", cmd.ID), zap.Error(err))
		reply.Type = "error"
		reply.OK = false
		reply.Err = &zones.ReplyError{Code: core.ReplyCodeForError(err), Message: err.Error()}
	} else {
		body, merr := json.Marshal(result)
		if merr == nil {
			reply.Body = body
		}
		m.Trigger()
	}

	m.publishReply(cmd.ReplyTo, reply)
}

func (m *Module) publishReply(replyTo string, reply zones.ReplyEnvelope) {
	if replyTo == "" {
		return
	}
	payload, err := json.Marshal(reply)
	if err != nil {
		return
	}
	if err := m.client.Publish(replyTo, 1, false, payload); err != nil {
		m.log.Debug("reply failed", zap.String("topic", replyTo), zap.Error(err))
	}
}

func (m *Module) now() time.Time {
	if m.deps.Service.Clock == nil {
		return time.Now()
	}
	return m.deps.Service.Clock.Now()
}
