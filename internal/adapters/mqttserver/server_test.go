package mqttserver

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTLSConfigEmpty(t *testing.T) {
	cfg, err := TLSConfig("", "", "")
	require.NoError(t, err)
	assert.Nil(t, cfg)
}

func TestTLSConfigRequiresPair(t *testing.T) {
	_, err := TLSConfig("", "cert.pem", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "both tls cert and key")
}

func TestTLSConfigMissingCA(t *testing.T) {
	_, err := TLSConfig(t.TempDir()+"/missing.pem", "", "")
	require.Error(t, err)
}

func TestTruncatePayload(t *testing.T) {
	assert.Equal(t, "abc", truncatePayload([]byte("abc")))
	long := strings.Repeat("x", 3000)
	got := truncatePayload([]byte(long))
	assert.Len(t, got, 2048+3)
	assert.True(t, strings.HasSuffix(got, "..."))
}
