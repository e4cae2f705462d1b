package config

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{"CH_HOST", "CH_PORT", "CH_DATABASE", "CH_USER", "CH_TOKEN", "TRANSFER_WORKERS", "FAILED_RETENTION"} {
		t.Setenv(key, "")
	}

	cfg := LoadConfig()

	if cfg.Conn.Host != DefaultCHHost {
		t.Errorf("Host = %q, want %q", cfg.Conn.Host, DefaultCHHost)
	}
	if cfg.Conn.Port != DefaultCHPort {
		t.Errorf("Port = %d, want %d", cfg.Conn.Port, DefaultCHPort)
	}
	if cfg.Conn.User != DefaultCHUser {
		t.Errorf("User = %q, want %q", cfg.Conn.User, DefaultCHUser)
	}
	if cfg.Workers != DefaultWorkers {
		t.Errorf("Workers = %d, want %d", cfg.Workers, DefaultWorkers)
	}
	if cfg.FailedRetention != DefaultFailedRetention {
		t.Errorf("FailedRetention = %v, want %v", cfg.FailedRetention, DefaultFailedRetention)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() on defaults returned %v", err)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("CH_HOST", "ch.internal")
	t.Setenv("CH_PORT", "8443")
	t.Setenv("CH_SECURE", "true")
	t.Setenv("CH_TIMEOUT", "5s")
	t.Setenv("TRANSFER_WORKERS", "2")

	cfg := LoadConfig()

	if cfg.Conn.Host != "ch.internal" || cfg.Conn.Port != 8443 {
		t.Errorf("unexpected endpoint %s", cfg.Conn.Addr())
	}
	if got := cfg.Conn.BaseURL(); got != "https://ch.internal:8443" {
		t.Errorf("BaseURL() = %q", got)
	}
	if cfg.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", cfg.Timeout)
	}
	if cfg.Workers != 2 {
		t.Errorf("Workers = %d, want 2", cfg.Workers)
	}
}

func TestInvalidPortFallsBackToDefault(t *testing.T) {
	t.Setenv("CH_PORT", "not-a-number")
	cfg := LoadConfig()
	if cfg.Conn.Port != DefaultCHPort {
		t.Errorf("Port = %d, want default %d", cfg.Conn.Port, DefaultCHPort)
	}
}

func TestValidate(t *testing.T) {
	valid := Config{
		Conn:      Connection{Host: "localhost", Port: 8123, Database: "default", User: "default"},
		MaxConns:  1,
		Workers:   1,
		UploadDir: "uploads",
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"port zero", func(c *Config) { c.Conn.Port = 0 }, true},
		{"port too high", func(c *Config) { c.Conn.Port = 70000 }, true},
		{"blank host", func(c *Config) { c.Conn.Host = "  " }, true},
		{"blank database", func(c *Config) { c.Conn.Database = "" }, true},
		{"blank user", func(c *Config) { c.Conn.User = "" }, true},
		{"no workers", func(c *Config) { c.Workers = 0 }, true},
		{"negative queue", func(c *Config) { c.QueueSize = -1 }, true},
		{"no upload dir", func(c *Config) { c.UploadDir = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestWithDefaults(t *testing.T) {
	d := Connection{Host: "ch.internal", Port: 8443, Database: "db", User: "u", Token: "server-secret", Secure: true}

	tests := []struct {
		name string
		conn Connection
		want Connection
	}{
		{
			name: "empty request inherits everything",
			conn: Connection{},
			want: d,
		},
		{
			name: "same endpoint keeps request credentials",
			conn: Connection{Host: "ch.internal", User: "alice", Token: "alice-token"},
			want: Connection{Host: "ch.internal", Port: 8443, Database: "db", User: "alice", Token: "alice-token", Secure: true},
		},
		{
			name: "foreign host never receives server credentials",
			conn: Connection{Host: "attacker.example", Port: 80},
			want: Connection{Host: "attacker.example", Port: 80, Database: "db"},
		},
		{
			name: "foreign port on default host",
			conn: Connection{Port: 9000},
			want: Connection{Host: "ch.internal", Port: 9000, Database: "db"},
		},
		{
			name: "foreign host keeps its own secure flag",
			conn: Connection{Host: "other", User: "bob", Token: "t", Secure: true},
			want: Connection{Host: "other", Port: 8443, Database: "db", User: "bob", Token: "t", Secure: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.conn.WithDefaults(d)
			if got != tt.want {
				t.Errorf("WithDefaults() = %+v, want %+v", got, tt.want)
			}
		})
	}

	if got := (Connection{}).WithDefaults(d).BaseURL(); got != "https://ch.internal:8443" {
		t.Errorf("BaseURL() = %q, want https://ch.internal:8443", got)
	}
}
