package edgetill

import (
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	cfg := defaultConfig()
	cfg.Business.BusinessID = "biz-1"
	return cfg
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults with business", func(*Config) {}, ""},
		{"zero default ttl", func(c *Config) { c.Session.DefaultTTL = 0 }, "DefaultTTL"},
		{"zero refresh interval", func(c *Config) { c.Session.RefreshInterval = 0 }, "RefreshInterval"},
		{"zero max retries", func(c *Config) { c.Sync.MaxRetries = 0 }, "MaxRetries"},
		{"negative sync interval", func(c *Config) { c.Sync.Interval = -time.Second }, "Interval"},
		{"zero backoff base", func(c *Config) { c.Sync.BackoffBase = 0 }, "BackoffBase"},
		{"max below base", func(c *Config) {
			c.Sync.BackoffBase = time.Minute
			c.Sync.BackoffMax = time.Second
		}, "BackoffMax"},
		{"negative jitter", func(c *Config) { c.Sync.JitterRange = -time.Second }, "JitterRange"},
		{"zero remote timeout", func(c *Config) { c.Remote.Timeout = 0 }, "Timeout"},
		{"missing business id", func(c *Config) { c.Business.BusinessID = "" }, "BusinessID"},
		{"audit enabled without buffer", func(c *Config) {
			c.Audit.Enabled = true
			c.Audit.BufferSize = 0
		}, "BufferSize"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("Validate accepted a broken config")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestCloneConfigDetachesVaultKey(t *testing.T) {
	cfg := validConfig()
	cfg.Session.VaultKey = make([]byte, 32)

	clone := cloneConfig(cfg)
	clone.Session.VaultKey[0] = 0xFF

	if cfg.Session.VaultKey[0] != 0 {
		t.Error("mutating the clone's key changed the original")
	}
}
