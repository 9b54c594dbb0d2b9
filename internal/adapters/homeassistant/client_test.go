package homeassistant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikey-austin/zonectl/pkg/hass"
)

const statesJSON = `[
  {"entity_id": "media_player.kitchen", "state": "playing",
   "attributes": {"friendly_name": "Kitchen", "volume_level": 0.4, "sonos_group": ["media_player.kitchen"], "supported_features": 48}},
  {"entity_id": "light.desk", "state": "on", "attributes": {}}
]`

func newTestClient(t *testing.T, handler http.Handler, ttl time.Duration) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient(Options{URL: srv.URL + "/", Token: "secret", CacheTTL: ttl})
	require.NoError(t, err)
	return client, srv
}

func TestNewClientRequiresConfig(t *testing.T) {
	_, err := NewClient(Options{URL: "http://ha"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestStatesSendsBearerAndCaches(t *testing.T) {
	var hits atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/api/states", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(statesJSON))
	}), time.Minute)

	states, err := client.States(context.Background())
	require.NoError(t, err)
	require.Len(t, states, 2)
	assert.Equal(t, "Kitchen", states[0].Attributes.FriendlyName)
	assert.True(t, states[0].Attributes.SupportedFeatures.Has(hass.FeatureNextTrack))

	_, err = client.States(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())

	client.Invalidate()
	_, err = client.States(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestStatesErrorStatus(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}), 0)

	_, err := client.States(context.Background())
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusUnauthorized, statusErr.Code)
}

func TestCallServicePostsData(t *testing.T) {
	var got map[string]any
	var path string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte("[]"))
	}), 0)

	err := client.CallService(context.Background(), hass.ServiceCall{
		Domain:  "media_player",
		Service: "volume_set",
		Data:    map[string]any{"entity_id": "media_player.kitchen", "volume_level": 0.55},
	})
	require.NoError(t, err)
	assert.Equal(t, "/api/services/media_player/volume_set", path)
	assert.Equal(t, "media_player.kitchen", got["entity_id"])
	assert.Equal(t, 0.55, got["volume_level"])
}

func TestCallServiceWithoutEntityID(t *testing.T) {
	var got map[string]any
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}), 0)

	err := client.CallService(context.Background(), hass.ServiceCall{Domain: "script", Service: "bedtime"})
	require.NoError(t, err)
	_, ok := got["entity_id"]
	assert.False(t, ok)
}

func TestCallServiceFailure(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad", http.StatusBadRequest)
	}), 0)

	err := client.CallService(context.Background(), hass.ServiceCall{Domain: "media_player", Service: "media_play"})
	assert.Error(t, err)
}

func TestFetchBinaryResolvesLocalPictures(t *testing.T) {
	client, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/media_player_proxy/media_player.kitchen", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte{0x89, 'P', 'N', 'G'})
	}), 0)

	assert.Equal(t, srv.URL+"/x.jpg", client.ResolveURL("x.jpg"))
	data, contentType, err := client.FetchBinary(context.Background(), "/api/media_player_proxy/media_player.kitchen")
	require.NoError(t, err)
	assert.Equal(t, "image/png", contentType)
	assert.Len(t, data, 4)
}

func TestFetchBinaryOmitsTokenForOtherHosts(t *testing.T) {
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte("jpg"))
	}))
	defer remote.Close()
	client, _ := newTestClient(t, http.NotFoundHandler(), 0)

	data, _, err := client.FetchBinary(context.Background(), remote.URL+"/cover.jpg")
	require.NoError(t, err)
	assert.Equal(t, "jpg", string(data))
}
