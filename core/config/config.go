package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultCHHost     = "localhost"
	DefaultCHPort     = 8123
	DefaultCHUser     = "default"
	DefaultCHDatabase = "default"
	DefaultCHTimeout  = 60 * time.Second
	DefaultCHMaxConns = 10

	DefaultServerAddr         = ":8080"
	DefaultUploadDir          = "uploads"
	DefaultWorkers            = 4
	DefaultQueueSize          = 64
	DefaultFailedRetention    = time.Hour
	DefaultSweepSchedule      = "@every 1m"
	DefaultCompletedRetention = 0
)

// Connection identifies one analytical-store endpoint.
// It is built per request and never cached.
type Connection struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Database string `json:"database"`
	User     string `json:"user"`
	Token    string `json:"jwtToken"`
	Secure   bool   `json:"secure,omitempty"`
}

// Config holds the store defaults plus the server and worker settings.
type Config struct {
	Conn Connection

	Timeout  time.Duration
	MaxConns int

	ServerAddr string
	UploadDir  string

	Workers            int
	QueueSize          int
	CompletedRetention time.Duration
	FailedRetention    time.Duration
	SweepSchedule      string
}

// LoadConfig loads configuration from environment variables and .env file.
// Returns a Config struct with default values for missing settings.
func LoadConfig() Config {

	_ = godotenv.Load()

	return Config{
		Conn: Connection{
			Host:     getEnvOrDefault("CH_HOST", DefaultCHHost),
			Port:     getEnvOrDefaultInt("CH_PORT", DefaultCHPort),
			Database: getEnvOrDefault("CH_DATABASE", DefaultCHDatabase),
			User:     getEnvOrDefault("CH_USER", DefaultCHUser),
			Token:    os.Getenv("CH_TOKEN"),
			Secure:   getEnvOrDefaultBool("CH_SECURE", false),
		},
		Timeout:            getEnvOrDefaultDuration("CH_TIMEOUT", DefaultCHTimeout),
		MaxConns:           getEnvOrDefaultInt("CH_MAX_CONNS", DefaultCHMaxConns),
		ServerAddr:         getEnvOrDefault("SERVER_ADDR", DefaultServerAddr),
		UploadDir:          getEnvOrDefault("UPLOAD_DIR", DefaultUploadDir),
		Workers:            getEnvOrDefaultInt("TRANSFER_WORKERS", DefaultWorkers),
		QueueSize:          getEnvOrDefaultInt("TRANSFER_QUEUE", DefaultQueueSize),
		CompletedRetention: getEnvOrDefaultDuration("COMPLETED_RETENTION", DefaultCompletedRetention),
		FailedRetention:    getEnvOrDefaultDuration("FAILED_RETENTION", DefaultFailedRetention),
		SweepSchedule:      getEnvOrDefault("SWEEP_SCHEDULE", DefaultSweepSchedule),
	}
}

// Validate checks that the connection has usable values.
func (c Connection) Validate() error {

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("CH_PORT must be a valid port number (1-65535)")
	}

	if strings.TrimSpace(c.Host) == "" {
		return fmt.Errorf("CH_HOST cannot be empty or contain only whitespace")
	}

	if strings.TrimSpace(c.Database) == "" {
		return fmt.Errorf("CH_DATABASE cannot be empty or contain only whitespace")
	}

	if strings.TrimSpace(c.User) == "" {
		return fmt.Errorf("CH_USER cannot be empty or contain only whitespace")
	}

	return nil
}

// Validate checks that the configuration has valid values.
// Returns an error if any required field is invalid or empty.
func (c Config) Validate() error {
	if err := c.Conn.Validate(); err != nil {
		return err
	}

	if c.Workers < 1 {
		return fmt.Errorf("TRANSFER_WORKERS must be at least 1")
	}

	if c.QueueSize < 0 {
		return fmt.Errorf("TRANSFER_QUEUE cannot be negative")
	}

	if c.MaxConns < 1 {
		return fmt.Errorf("CH_MAX_CONNS must be at least 1")
	}

	if strings.TrimSpace(c.UploadDir) == "" {
		return fmt.Errorf("UPLOAD_DIR cannot be empty")
	}

	return nil
}

// BaseURL returns the HTTP endpoint of the store, e.g. http://localhost:8123.
func (c Connection) BaseURL() string {
	scheme := "http"
	if c.Secure {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.Host, c.Port)
}

// Addr returns host:port.
func (c Connection) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// WithDefaults fills empty fields from d. Used when a request omits values
// the server was configured with. Credentials (User, Token) and Secure are
// inherited only when the resulting endpoint is d's own host and port, so a
// request naming another host never receives the server's credentials.
func (c Connection) WithDefaults(d Connection) Connection {
	if c.Host == "" {
		c.Host = d.Host
	}
	if c.Port == 0 {
		c.Port = d.Port
	}
	if c.Database == "" {
		c.Database = d.Database
	}
	if c.Host != d.Host || c.Port != d.Port {
		return c
	}
	if c.User == "" {
		c.User = d.User
	}
	if c.Token == "" {
		c.Token = d.Token
	}
	if d.Secure {
		c.Secure = true
	}
	return c
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		p, err := strconv.Atoi(value)
		if err == nil {
			return p
		}
	}
	return defaultValue
}

func getEnvOrDefaultBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvOrDefaultDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return defaultValue
}
