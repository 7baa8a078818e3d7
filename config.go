package edgetill

import (
	"errors"
	"math"
	"time"
)

// Config carries all tunables for the engine. Construct it once, hand it
// to the [Builder], and treat it as immutable afterwards.
type Config struct {
	Session  SessionConfig
	Business BusinessConfig
	Sync     SyncConfig
	Remote   RemoteConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls the encrypted session vault and refresh cadence.
type SessionConfig struct {
	// VaultKey seals the session record at rest. Must be 32 bytes.
	VaultKey []byte
	// VaultPath is the file location for the default file vault. Ignored
	// when a custom vault is injected.
	VaultPath string
	// RedisPrefix namespaces keys when a redis vault is used.
	RedisPrefix string
	// DefaultTTL is the token lifetime assumed when neither the identity
	// provider nor the token's own claims carry an expiry.
	DefaultTTL time.Duration
	// RefreshInterval is the cadence of the background refresh loop.
	RefreshInterval time.Duration
}

/*
====================================
BUSINESS CONFIG
====================================
*/

// BusinessConfig scopes the device to one business and branch. Local
// overrides and scans are recorded against this scope.
type BusinessConfig struct {
	BusinessID string
	BranchID   string
}

/*
====================================
SYNC CONFIG
====================================
*/

// SyncConfig controls the queue and the reconciler.
type SyncConfig struct {
	// MaxRetries caps automatic publish attempts per queue item.
	MaxRetries int
	// Interval is the periodic reconciliation timer.
	Interval time.Duration
	// BackoffBase is the first automatic retry delay for a failed item;
	// each subsequent failure doubles it up to BackoffMax.
	BackoffBase time.Duration
	// BackoffMax bounds the exponential backoff.
	BackoffMax time.Duration
	// JitterRange randomizes each backoff by ±JitterRange to keep a
	// fleet of devices from thundering at the ledger together.
	JitterRange time.Duration
}

/*
====================================
REMOTE CONFIG
====================================
*/

// RemoteConfig bounds all remote calls: identity provider, role
// authority, and ledger publish. A timeout is treated exactly like
// being offline.
type RemoteConfig struct {
	Timeout time.Duration
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process metrics counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

func defaultConfig() Config {
	return Config{
		Session: SessionConfig{
			RedisPrefix:     "et",
			DefaultTTL:      24 * time.Hour,
			RefreshInterval: 5 * time.Minute,
		},
		Sync: SyncConfig{
			MaxRetries:  3,
			Interval:    30 * time.Second,
			BackoffBase: 2 * time.Second,
			BackoffMax:  5 * time.Minute,
			JitterRange: 500 * time.Millisecond,
		},
		Remote: RemoteConfig{
			Timeout: 5 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Session.VaultKey = cloneBytes(cfg.Session.VaultKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	// Session
	if c.Session.DefaultTTL <= 0 {
		return errors.New("Session DefaultTTL must be > 0")
	}
	if c.Session.RefreshInterval <= 0 {
		return errors.New("Session RefreshInterval must be > 0")
	}

	// Sync
	if c.Sync.MaxRetries <= 0 {
		return errors.New("Sync MaxRetries must be > 0")
	}
	if c.Sync.Interval <= 0 {
		return errors.New("Sync Interval must be > 0")
	}
	if c.Sync.BackoffBase <= 0 {
		return errors.New("Sync BackoffBase must be > 0")
	}
	if c.Sync.BackoffMax < c.Sync.BackoffBase {
		return errors.New("Sync BackoffMax must be >= BackoffBase")
	}
	if c.Sync.JitterRange < 0 {
		return errors.New("Sync JitterRange must be >= 0")
	}
	if c.Sync.JitterRange > time.Duration((math.MaxInt64-1)/2) {
		return errors.New("Sync JitterRange is too large")
	}

	// Remote
	if c.Remote.Timeout <= 0 {
		return errors.New("Remote Timeout must be > 0")
	}

	// Business
	if c.Business.BusinessID == "" {
		return errors.New("Business BusinessID is required")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}
