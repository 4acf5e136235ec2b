// Package config loads process configuration from the environment,
// grounded on the teacher's env-driven config (loaded via
// github.com/caarlos0/env/v11 under a PICOCLAW_ prefix); this module
// uses the same library under a DOCFLOW_ prefix (spec §7.1).
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the process-wide configuration, loaded once at startup.
type Config struct {
	WorkspaceRoot          string        `env:"WORKSPACE_ROOT,required"`
	CheckpointDir          string        `env:"CHECKPOINT_DIR" envDefault:"./data/checkpoints"`
	AuditDBPath            string        `env:"AUDIT_DB_PATH" envDefault:"./data/audit.db"`
	MaxQueueLen            int           `env:"MAX_QUEUE_LEN" envDefault:"200"`
	PayloadTruncateBytes   int           `env:"PAYLOAD_TRUNCATE_BYTES" envDefault:"8192"`
	RenderCircuitThreshold int           `env:"RENDER_CIRCUIT_THRESHOLD" envDefault:"3"`
	RenderCircuitCooldownMS int          `env:"RENDER_CIRCUIT_COOLDOWN_MS" envDefault:"30000"`
	IdleReclaimMS          int           `env:"IDLE_RECLAIM_MS" envDefault:"1800000"`
	IdleReclaimIntervalCron string       `env:"IDLE_RECLAIM_INTERVAL_CRON" envDefault:"*/5 * * * *"`
	CheckpointIntervalCron string        `env:"CHECKPOINT_INTERVAL_CRON" envDefault:"* * * * *"`
	HistoryDepth           int           `env:"HISTORY_DEPTH" envDefault:"50"`
	RetryMaxAttempts       int           `env:"RETRY_MAX_ATTEMPTS" envDefault:"3"`
	RetryBaseBackoffMS     int           `env:"RETRY_BASE_BACKOFF_MS" envDefault:"100"`
	RetryMaxBackoffMS      int           `env:"RETRY_MAX_BACKOFF_MS" envDefault:"5000"`
	ListenAddr             string        `env:"LISTEN_ADDR" envDefault:":8420"`
	APIKey                 string        `env:"API_KEY"`
	OAuthTokenURL          string        `env:"OAUTH_TOKEN_URL"`
	OAuthClientID          string        `env:"OAUTH_CLIENT_ID"`
	OAuthClientSecret      string        `env:"OAUTH_CLIENT_SECRET"`
	PolicyURL              string        `env:"POLICY_URL"`
}

// Load reads configuration from the environment with a DOCFLOW_ prefix,
// applying the "secure-by-default" pattern for APIKey: if unset, a
// random key is generated and printed once, grounded directly on
// pkg/api/server.go's NewServer auto-generated-key banner.
func Load() (*Config, error) {
	cfg := &Config{}
	opts := env.Options{Prefix: "DOCFLOW_"}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if cfg.APIKey == "" {
		raw := make([]byte, 24)
		if _, err := rand.Read(raw); err == nil {
			cfg.APIKey = hex.EncodeToString(raw)
			printGeneratedKeyBanner(cfg.APIKey)
		}
	}
	return cfg, nil
}

func printGeneratedKeyBanner(key string) {
	fmt.Println()
	fmt.Println("+----------------------------------------------------------+")
	fmt.Println("|              DOCFLOW API KEY (session token)             |")
	fmt.Printf("|  %-56s  |\n", key)
	fmt.Println("|  Set DOCFLOW_API_KEY to make this permanent.              |")
	fmt.Println("+----------------------------------------------------------+")
	fmt.Println()
}

// RenderCircuitCooldown returns RenderCircuitCooldownMS as a Duration.
func (c *Config) RenderCircuitCooldown() time.Duration {
	return time.Duration(c.RenderCircuitCooldownMS) * time.Millisecond
}

// IdleReclaim returns IdleReclaimMS as a Duration.
func (c *Config) IdleReclaim() time.Duration {
	return time.Duration(c.IdleReclaimMS) * time.Millisecond
}

// RetryBaseBackoff returns RetryBaseBackoffMS as a Duration.
func (c *Config) RetryBaseBackoff() time.Duration {
	return time.Duration(c.RetryBaseBackoffMS) * time.Millisecond
}

// RetryMaxBackoff returns RetryMaxBackoffMS as a Duration.
func (c *Config) RetryMaxBackoff() time.Duration {
	return time.Duration(c.RetryMaxBackoffMS) * time.Millisecond
}
