package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "drey.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
version: "1.0"
signing_secret: test-secret
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "default", cfg.Instance)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "redis://localhost:6379", cfg.RedisURL)
	assert.Equal(t, 4, cfg.Queue.Partitions)
	assert.Equal(t, 256, cfg.Queue.Depth)
	assert.Equal(t, 10*time.Second, cfg.Extraction.Timeout)

	assert.Equal(t, 24, cfg.Thresholds.OwnershipTimeoutHours)
	assert.Equal(t, 3, cfg.Thresholds.ClarificationMaxLoops)
	assert.Equal(t, 4, cfg.Thresholds.ResponseTimeoutHours)
	assert.Equal(t, 0.7, cfg.Thresholds.GapSeverityCutoff)
	assert.Equal(t, 48, cfg.Thresholds.ResolutionStallHours)
	assert.Equal(t, 300, cfg.Thresholds.ReplayWindowSeconds)

	assert.Equal(t, 72, cfg.GapDetection.OwnershipRampHours)
	assert.Equal(t, 0.6, cfg.GapDetection.ContextSeverity)
	assert.Equal(t, 10, cfg.GapDetection.SimilarityWindow)
	assert.Equal(t, 100, cfg.GapDetection.SimilarityPrefix)
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
version: "1.0"
instance: prod
listen_addr: ":9000"
redis_url: redis://redis:6379/2
signing_secret: prod-secret
queue:
  partitions: 8
  depth: 1024
extraction:
  timeout: 5s
thresholds:
  ownership_timeout_hours: 12
  clarification_max_loops: 5
  response_timeout_hours: 2
  gap_severity_cutoff: 0.9
gap_detection:
  ownership_ramp_hours: 48
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.Instance)
	assert.Equal(t, 8, cfg.Queue.Partitions)
	assert.Equal(t, 5*time.Second, cfg.Extraction.Timeout)
	assert.Equal(t, 12*time.Hour, cfg.Thresholds.OwnershipTimeout())
	assert.Equal(t, 2*time.Hour, cfg.Thresholds.ResponseTimeout())
	assert.Equal(t, 48*time.Hour, cfg.Thresholds.ResolutionStall())
	assert.Equal(t, 5, cfg.Thresholds.ClarificationMaxLoops)
	assert.Equal(t, 0.9, cfg.Thresholds.GapSeverityCutoff)
	assert.Equal(t, 48, cfg.GapDetection.OwnershipRampHours)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing version",
			yaml:    "signing_secret: s\n",
			wantErr: "unsupported version",
		},
		{
			name:    "missing signing secret",
			yaml:    "version: \"1.0\"\n",
			wantErr: "signing_secret is required",
		},
		{
			name:    "negative partitions",
			yaml:    "version: \"1.0\"\nsigning_secret: s\nqueue:\n  partitions: -1\n",
			wantErr: "queue.partitions",
		},
		{
			name:    "severity cutoff above one",
			yaml:    "version: \"1.0\"\nsigning_secret: s\nthresholds:\n  gap_severity_cutoff: 1.5\n",
			wantErr: "gap_severity_cutoff",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DREY_SIGNING_SECRET", "env-secret")
	t.Setenv("REDIS_URL", "redis://override:6379")
	t.Setenv("DREY_INSTANCE_NAME", "staging")

	path := writeConfig(t, `
version: "1.0"
instance: file-instance
signing_secret: file-secret
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env-secret", cfg.SigningSecret)
	assert.Equal(t, "redis://override:6379", cfg.RedisURL)
	assert.Equal(t, "staging", cfg.Instance)
}
