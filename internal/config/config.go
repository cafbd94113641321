package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the top-level drey.yml configuration.
type Config struct {
	Version       string       `yaml:"version"`
	Instance      string       `yaml:"instance"`
	ListenAddr    string       `yaml:"listen_addr"`
	RedisURL      string       `yaml:"redis_url"`
	SigningSecret string       `yaml:"signing_secret"`
	Queue         QueueConfig  `yaml:"queue"`
	Extraction    Extraction   `yaml:"extraction"`
	Thresholds    Thresholds   `yaml:"thresholds"`
	GapDetection  GapDetection `yaml:"gap_detection"`
}

// QueueConfig sizes the partitioned processing queue.
type QueueConfig struct {
	Partitions int `yaml:"partitions"` // Consumer partitions keyed by conversation (default 4)
	Depth      int `yaml:"depth"`      // Buffered events per partition (default 256)
}

// Extraction bounds the external signal extraction call.
type Extraction struct {
	Timeout time.Duration `yaml:"timeout"` // Per-message analysis deadline (default 10s)
}

// Thresholds are the named decision-engine and verifier thresholds. They are
// configuration, not constants baked into logic.
type Thresholds struct {
	OwnershipTimeoutHours int     `yaml:"ownership_timeout_hours"` // Rule 1: unowned question stall (default 24)
	ClarificationMaxLoops int     `yaml:"clarification_max_loops"` // Rule 2: clarification loop cap (default 3)
	ResponseTimeoutHours  int     `yaml:"response_timeout_hours"`  // Rule 3: unanswered question stall (default 4)
	GapSeverityCutoff     float64 `yaml:"gap_severity_cutoff"`     // Rule 4: severity flagging bar (default 0.7)
	ResolutionStallHours  int     `yaml:"resolution_stall_hours"`  // Coarse pre-filter for in_progress (default 48)
	ReplayWindowSeconds   int     `yaml:"replay_window_seconds"`   // Webhook timestamp freshness (default 300)
}

// GapDetection tunes the gap detector's scan.
type GapDetection struct {
	OwnershipRampHours int     `yaml:"ownership_ramp_hours"` // Hours until ownership severity caps at 1.0 (default 72)
	ContextSeverity    float64 `yaml:"context_severity"`     // Fixed severity for repeated-context gaps (default 0.6)
	SimilarityWindow   int     `yaml:"similarity_window"`    // Most recent messages scanned for repeats (default 10)
	SimilarityPrefix   int     `yaml:"similarity_prefix"`    // Compared prefix length in characters (default 100)
}

// Validate performs strict validation on the configuration and applies
// defaults for unset fields.
func (c *Config) Validate() error {
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}
	if c.Instance == "" {
		c.Instance = "default"
	}
	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}
	if c.RedisURL == "" {
		c.RedisURL = "redis://localhost:6379"
	}
	if c.SigningSecret == "" {
		return fmt.Errorf("signing_secret is required (set in drey.yml or DREY_SIGNING_SECRET)")
	}

	if c.Queue.Partitions == 0 {
		c.Queue.Partitions = 4
	}
	if c.Queue.Partitions < 1 {
		return fmt.Errorf("queue.partitions must be >= 1, got %d", c.Queue.Partitions)
	}
	if c.Queue.Depth == 0 {
		c.Queue.Depth = 256
	}
	if c.Queue.Depth < 1 {
		return fmt.Errorf("queue.depth must be >= 1, got %d", c.Queue.Depth)
	}

	if c.Extraction.Timeout == 0 {
		c.Extraction.Timeout = 10 * time.Second
	}
	if c.Extraction.Timeout < 0 {
		return fmt.Errorf("extraction.timeout must be positive, got %s", c.Extraction.Timeout)
	}

	if err := c.Thresholds.validate(); err != nil {
		return err
	}
	return c.GapDetection.validate()
}

func (t *Thresholds) validate() error {
	if t.OwnershipTimeoutHours == 0 {
		t.OwnershipTimeoutHours = 24
	}
	if t.ClarificationMaxLoops == 0 {
		t.ClarificationMaxLoops = 3
	}
	if t.ResponseTimeoutHours == 0 {
		t.ResponseTimeoutHours = 4
	}
	if t.GapSeverityCutoff == 0 {
		t.GapSeverityCutoff = 0.7
	}
	if t.ResolutionStallHours == 0 {
		t.ResolutionStallHours = 48
	}
	if t.ReplayWindowSeconds == 0 {
		t.ReplayWindowSeconds = 300
	}

	if t.OwnershipTimeoutHours < 0 || t.ClarificationMaxLoops < 0 ||
		t.ResponseTimeoutHours < 0 || t.ResolutionStallHours < 0 || t.ReplayWindowSeconds < 0 {
		return fmt.Errorf("thresholds must be non-negative")
	}
	if t.GapSeverityCutoff <= 0 || t.GapSeverityCutoff > 1 {
		return fmt.Errorf("thresholds.gap_severity_cutoff must be in (0,1], got %v", t.GapSeverityCutoff)
	}
	return nil
}

func (g *GapDetection) validate() error {
	if g.OwnershipRampHours == 0 {
		g.OwnershipRampHours = 72
	}
	if g.ContextSeverity == 0 {
		g.ContextSeverity = 0.6
	}
	if g.SimilarityWindow == 0 {
		g.SimilarityWindow = 10
	}
	if g.SimilarityPrefix == 0 {
		g.SimilarityPrefix = 100
	}

	if g.OwnershipRampHours < 1 {
		return fmt.Errorf("gap_detection.ownership_ramp_hours must be >= 1, got %d", g.OwnershipRampHours)
	}
	if g.ContextSeverity <= 0 || g.ContextSeverity > 1 {
		return fmt.Errorf("gap_detection.context_severity must be in (0,1], got %v", g.ContextSeverity)
	}
	if g.SimilarityWindow < 1 || g.SimilarityPrefix < 1 {
		return fmt.Errorf("gap_detection similarity window and prefix must be >= 1")
	}
	return nil
}

// OwnershipTimeout returns the rule 1 stall threshold as a duration.
func (t Thresholds) OwnershipTimeout() time.Duration {
	return time.Duration(t.OwnershipTimeoutHours) * time.Hour
}

// ResponseTimeout returns the rule 3 stall threshold as a duration.
func (t Thresholds) ResponseTimeout() time.Duration {
	return time.Duration(t.ResponseTimeoutHours) * time.Hour
}

// ResolutionStall returns the coarse in_progress stall threshold as a duration.
func (t Thresholds) ResolutionStall() time.Duration {
	return time.Duration(t.ResolutionStallHours) * time.Hour
}

// ReplayWindow returns the webhook freshness window as a duration.
func (t Thresholds) ReplayWindow() time.Duration {
	return time.Duration(t.ReplayWindowSeconds) * time.Second
}

// Load reads drey.yml from the specified path, applies environment variable
// overrides, and validates the result. A local .env file is loaded first so
// development secrets stay out of the config file.
func Load(path string) (*Config, error) {
	// Best effort - a missing .env is the normal production case.
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyEnvOverrides lets the environment win over file values for the fields
// that differ between deployments.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DREY_INSTANCE_NAME"); v != "" {
		cfg.Instance = v
	}
	if v := os.Getenv("DREY_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.RedisURL = v
	}
	if v := os.Getenv("DREY_SIGNING_SECRET"); v != "" {
		cfg.SigningSecret = v
	}
}
