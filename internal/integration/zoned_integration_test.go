//go:build integration
// +build integration

package integration

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/mikey-austin/zonectl/internal/adapters/clock"
	"github.com/mikey-austin/zonectl/internal/adapters/homeassistant"
	"github.com/mikey-austin/zonectl/internal/adapters/idgen"
	"github.com/mikey-austin/zonectl/internal/adapters/mqtt"
	"github.com/mikey-austin/zonectl/internal/adapters/mqttserver"
	"github.com/mikey-austin/zonectl/internal/core"
	embeddedmqtt "github.com/mikey-austin/zonectl/internal/modules/embedded_mqtt"
	zonebridge "github.com/mikey-austin/zonectl/internal/modules/zone_bridge"
	"github.com/mikey-austin/zonectl/pkg/zones"
)

const statesJSON = `[
	{"entity_id":"media_player.kitchen","state":"playing","attributes":{"friendly_name":"Kitchen","sonos_group":["media_player.kitchen","media_player.lounge"],"supported_features":65535,"is_volume_muted":false}},
	{"entity_id":"media_player.lounge","state":"playing","attributes":{"friendly_name":"Lounge","sonos_group":["media_player.kitchen","media_player.lounge"],"is_volume_muted":true}},
	{"entity_id":"media_player.study","state":"unavailable","attributes":{"friendly_name":"Study"}}
]`

type fakeHass struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeHass) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bearer integration" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/api/states":
		_, _ = io.WriteString(w, statesJSON)
	case r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, "/api/services/"):
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.calls = append(f.calls, strings.TrimPrefix(r.URL.Path, "/api/services/")+" "+asString(body["entity_id"]))
		f.mu.Unlock()
		_, _ = io.WriteString(w, "[]")
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeHass) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

type integrationOptions struct {
	allowAnonymous bool
	username       string
	password       string
}

type integrationHarness struct {
	ctx       context.Context
	logger    *zap.Logger
	brokerURL string
	nodeID    string
	hass      *fakeHass
	client    *mqtt.Client
}

func TestZoneBridgeIntegration(t *testing.T) {
	h := setupIntegration(t)

	snapshots, err := h.client.ListZones(h.ctx)
	if err != nil {
		t.Fatalf("list zones: %v", err)
	}
	if len(snapshots) != 2 {
		t.Fatalf("expected kitchen and study zones, got %+v", snapshots)
	}
	var kitchen zones.ZoneSnapshot
	for _, z := range snapshots {
		if z.LeaderID == "media_player.kitchen" {
			kitchen = z
		}
	}
	if len(kitchen.Members) != 1 || kitchen.Members[0].Name != "Lounge" {
		t.Fatalf("unexpected kitchen zone: %+v", kitchen)
	}

	cmd, err := zones.NewCommand(zones.CmdToggleMute, zones.MemberBody{PlayerID: "kitchen"})
	if err != nil {
		t.Fatalf("new command: %v", err)
	}
	reply := publishCommand(t, h, decorateCommand(cmd))
	if !reply.OK {
		t.Fatalf("expected ok reply, got %+v", reply.Err)
	}
	var result core.CommandResult
	if err := json.Unmarshal(reply.Body, &result); err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	if result.PlayerID != "media_player.kitchen" || len(result.Calls) != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}
	calls := h.hass.recorded()
	if len(calls) != 2 {
		t.Fatalf("expected mute per member, got %v", calls)
	}

	cmd, _ = zones.NewCommand(zones.CmdPlay, zones.PlayerBody{PlayerID: "garage"})
	reply = publishCommand(t, h, decorateCommand(cmd))
	if reply.OK || reply.Err == nil || reply.Err.Code != zones.CodeNotFound {
		t.Fatalf("expected NOT_FOUND, got %+v", reply)
	}
	err = core.ErrorForReplyCode(reply.Err.Code, reply.Err.Message)
	if core.ExitCode(err) != core.ExitNotFound {
		t.Fatalf("unexpected exit code %d", core.ExitCode(err))
	}

	cmd, _ = zones.NewCommand(zones.CmdPlay, zones.PlayerBody{PlayerID: "study"})
	reply = publishCommand(t, h, decorateCommand(cmd))
	if reply.OK || reply.Err == nil || reply.Err.Code != zones.CodeUnavailable {
		t.Fatalf("expected UNAVAILABLE, got %+v", reply)
	}
}

func TestEmbeddedMQTTAuth(t *testing.T) {
	h := setupIntegrationWithOptions(t, integrationOptions{
		allowAnonymous: false,
		username:       "zoneuser",
		password:       "zonepass",
	})

	_, err := mqtt.NewClient(mqtt.Options{
		BrokerURL: h.brokerURL,
		ClientID:  "zonectl-int-unauth-" + idgen.Generator{}.NewID(),
		TopicBase: zones.BaseTopic,
		Timeout:   500 * time.Millisecond,
	})
	if err == nil {
		t.Fatalf("expected unauthenticated connection to fail")
	}

	if _, err := h.client.ListPresence(h.ctx); err != nil {
		t.Fatalf("authenticated list presence: %v", err)
	}
}

func setupIntegration(t *testing.T) *integrationHarness {
	return setupIntegrationWithOptions(t, integrationOptions{allowAnonymous: true})
}

func setupIntegrationWithOptions(t *testing.T, opts integrationOptions) *integrationHarness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	logger := testLogger(t)
	listen := freeListenAddr(t)
	brokerURL := embeddedmqtt.BrokerURL(listen, false)

	mqttModule, err := embeddedmqtt.NewModule(logger, embeddedmqtt.Config{
		Listen:         listen,
		AllowAnonymous: opts.allowAnonymous,
		Username:       opts.username,
		Password:       opts.password,
	})
	if err != nil {
		t.Fatalf("embedded mqtt module: %v", err)
	}
	runModule(t, ctx, "embedded_mqtt", mqttModule.Run)
	waitForBrokerReady(t, listen)

	hass := &fakeHass{}
	server := httptest.NewServer(hass)
	t.Cleanup(server.Close)
	ha, err := homeassistant.NewClient(homeassistant.Options{URL: server.URL, Token: "integration", Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("hass client: %v", err)
	}

	serverClient := waitForMQTTServerClient(t, brokerURL, opts.username, opts.password)
	nodeID := "zoned-integration-" + idgen.Generator{}.NewID()
	service := core.Service{
		States:    ha,
		Commander: core.Commander{Dispatcher: ha, Log: logger},
		Resolver:  core.Resolver{},
		Clock:     clock.Clock{},
	}
	bridge, err := zonebridge.NewModule(logger, serverClient, zonebridge.Config{
		NodeID:       nodeID,
		TopicBase:    zones.BaseTopic,
		Name:         "integration",
		PollInterval: time.Second,
	}, zonebridge.Deps{Service: service})
	if err != nil {
		t.Fatalf("zone bridge module: %v", err)
	}
	runModule(t, ctx, "zone_bridge", bridge.Run)

	client := waitForMQTTClient(t, brokerURL, opts.username, opts.password)
	waitForPresence(t, client, nodeID)
	return &integrationHarness{
		ctx:       ctx,
		logger:    logger,
		brokerURL: brokerURL,
		nodeID:    nodeID,
		hass:      hass,
		client:    client,
	}
}

func runModule(t *testing.T, ctx context.Context, name string, run func(context.Context) error) {
	t.Helper()
	errCh := make(chan error, 1)
	go func() {
		errCh <- run(ctx)
	}()
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Fatalf("%s module failed: %v", name, err)
		}
	default:
	}
	t.Cleanup(func() {
		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, context.Canceled) {
				t.Errorf("%s module failed: %v", name, err)
			}
		case <-time.After(200 * time.Millisecond):
		}
	})
}

func waitForMQTTClient(t *testing.T, brokerURL string, username string, password string) *mqtt.Client {
	t.Helper()
	gen := idgen.Generator{}
	var lastErr error
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		client, err := mqtt.NewClient(mqtt.Options{
			BrokerURL: brokerURL,
			ClientID:  "zonectl-int-" + gen.NewID(),
			TopicBase: zones.BaseTopic,
			Timeout:   2 * time.Second,
			Username:  username,
			Password:  password,
		})
		if err == nil {
			t.Cleanup(client.Close)
			return client
		}
		lastErr = err
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("connect zonectl client: %v", lastErr)
	return nil
}

func waitForMQTTServerClient(t *testing.T, brokerURL string, username string, password string) *mqttserver.Client {
	t.Helper()
	gen := idgen.Generator{}
	var lastErr error
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		client, err := mqttserver.NewClient(mqttserver.Options{
			BrokerURL: brokerURL,
			ClientID:  "zoned-int-" + gen.NewID(),
			Timeout:   2 * time.Second,
			Username:  username,
			Password:  password,
		})
		if err == nil {
			t.Cleanup(func() { client.Close(100) })
			return client
		}
		lastErr = err
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("connect mqtt server client: %v", lastErr)
	return nil
}

func waitForPresence(t *testing.T, client *mqtt.Client, nodeID string) {
	t.Helper()
	deadline := time.Now().Add(4 * time.Second)
	for time.Now().Before(deadline) {
		presence, err := client.ListPresence(context.Background())
		if err == nil {
			for _, p := range presence {
				if p.NodeID == nodeID {
					return
				}
			}
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for presence: %s", nodeID)
}

func freeListenAddr(t *testing.T) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		if errors.Is(err, syscall.EPERM) || strings.Contains(err.Error(), "operation not permitted") {
			t.Skip("network listen not permitted in this environment")
		}
		t.Fatalf("listen: %v", err)
	}
	addr := listener.Addr().String()
	if err := listener.Close(); err != nil {
		t.Fatalf("close listener: %v", err)
	}
	return addr
}

func waitForBrokerReady(t *testing.T, listen string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	var lastErr error
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", listen, 200*time.Millisecond)
		if err == nil {
			_ = conn.Close()
			return
		}
		if errors.Is(err, syscall.EPERM) || strings.Contains(err.Error(), "operation not permitted") {
			t.Skip("network dial not permitted in this environment")
		}
		lastErr = err
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("broker not ready: %v", lastErr)
}

func publishCommand(t *testing.T, h *integrationHarness, cmd zones.CommandEnvelope) zones.ReplyEnvelope {
	t.Helper()
	ctx, cancel := context.WithTimeout(h.ctx, 3*time.Second)
	defer cancel()
	h.logger.Debug("publish command", zap.String("type", cmd.Type), zap.String("id", cmd.ID), zap.String("node", h.nodeID))
	reply, err := h.client.PublishCommand(ctx, h.nodeID, cmd)
	if err != nil {
		t.Fatalf("publish command: %v", err)
	}
	return reply
}

func decorateCommand(cmd zones.CommandEnvelope) zones.CommandEnvelope {
	cmd.ID = idgen.Generator{}.NewID()
	cmd.TS = time.Now().Unix()
	cmd.From = "integration"
	return cmd
}

func testLogger(t *testing.T) *zap.Logger {
	level := zap.InfoLevel
	if v := os.Getenv("ZONED_INTEGRATION_DEBUG"); v == "1" || strings.EqualFold(v, "true") {
		level = zap.DebugLevel
	}
	return zaptest.NewLogger(t, zaptest.Level(level))
}
