// Package config holds the root configuration for the paperforge gateway.
package config

import (
	"os"
	"path/filepath"
	"sync"
)

// DefaultDataDirName is the project-relative data root when PA_DATA_PATH is unset.
const DefaultDataDirName = "pa_data"

// Config is the root configuration.
type Config struct {
	Gateway   GatewayConfig   `json:"gateway"`
	Data      DataConfig      `json:"data"`
	Database  DatabaseConfig  `json:"database"`
	Sandbox   SandboxConfig   `json:"sandbox"`
	Agents    AgentsConfig    `json:"agents"`
	Context   ContextConfig   `json:"context"`
	Janitor   JanitorConfig   `json:"janitor,omitempty"`
	Telemetry TelemetryConfig `json:"telemetry,omitempty"`

	mu sync.RWMutex
}

// GatewayConfig configures the WebSocket gateway.
type GatewayConfig struct {
	Host           string   `json:"host"`
	Port           int      `json:"port"`
	AllowedOrigins []string `json:"allowed_origins,omitempty"`
	// RateLimitRPM limits problem frames per connection per minute.
	// 0 = disabled.
	RateLimitRPM int `json:"rate_limit_rpm,omitempty"`
	// PingInterval is the server-side heartbeat interval in seconds.
	PingIntervalSec int `json:"ping_interval_sec,omitempty"`
}

// DataConfig configures the on-disk data root.
// Layout: <dir>/workspaces/<work_id>/, <dir>/templates/.
type DataConfig struct {
	Dir string `json:"dir,omitempty"` // default: ./pa_data, env PA_DATA_PATH wins
}

// DatabaseConfig configures the sqlite store for model configs, works
// metadata, and auth tokens.
type DatabaseConfig struct {
	Path string `json:"path,omitempty"` // default: <data>/paperforge.db
}

// SandboxConfig configures the Python execution sandbox.
type SandboxConfig struct {
	PythonBin  string `json:"python_bin,omitempty"`  // default: python3
	TimeoutSec int    `json:"timeout_sec,omitempty"` // wall-clock cap, default 60
	MaxOutput  int    `json:"max_output,omitempty"`  // stdout/stderr cap in bytes
}

// AgentsConfig bounds the agent loops.
type AgentsConfig struct {
	MaxCodeIterations   int `json:"max_code_iterations,omitempty"`   // default 50
	MaxWriterIterations int `json:"max_writer_iterations,omitempty"` // default 100
	TaskTimeoutMin      int `json:"task_timeout_min,omitempty"`      // per-task cap, default 10
	MaxTokens           int `json:"max_tokens,omitempty"`            // LLM max_tokens option
	Temperature         float64 `json:"temperature,omitempty"`
}

// ContextConfig bounds conversation size before compression kicks in.
type ContextConfig struct {
	MaxTokens   int `json:"max_tokens,omitempty"`   // default 20000
	MaxMessages int `json:"max_messages,omitempty"` // default 50
}

// JanitorConfig configures periodic cleanup of terminal task records and
// workspace temp dirs.
type JanitorConfig struct {
	Schedule    string `json:"schedule,omitempty"`      // cron expression, default "*/10 * * * *"
	GraceMin    int    `json:"grace_min,omitempty"`     // keep terminal tasks this long, default 30
	TempMaxAgeH int    `json:"temp_max_age_h,omitempty"` // delete temp/ files older than this, default 24
}

// TelemetryConfig configures the optional OTLP trace exporter.
type TelemetryConfig struct {
	Enabled     bool   `json:"enabled,omitempty"`
	Endpoint    string `json:"endpoint,omitempty"` // host:port
	Insecure    bool   `json:"insecure,omitempty"`
	ServiceName string `json:"service_name,omitempty"`
}

// DataDir returns the expanded data root.
func (c *Config) DataDir() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.Data.Dir != "" {
		return ExpandHome(c.Data.Dir)
	}
	wd, _ := os.Getwd()
	return filepath.Join(wd, DefaultDataDirName)
}

// DatabasePath returns the sqlite file path.
func (c *Config) DatabasePath() string {
	c.mu.RLock()
	p := c.Database.Path
	c.mu.RUnlock()
	if p != "" {
		return ExpandHome(p)
	}
	return filepath.Join(c.DataDir(), "paperforge.db")
}

// WorkspacesDir returns the root directory holding all per-work workspaces.
func (c *Config) WorkspacesDir() string {
	return filepath.Join(c.DataDir(), "workspaces")
}

// TemplatesDir returns the directory holding seed templates.
func (c *Config) TemplatesDir() string {
	return filepath.Join(c.DataDir(), "templates")
}

// ExpandHome replaces a leading ~ with the user home directory.
func ExpandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, _ := os.UserHomeDir()
	if len(path) > 1 && path[1] == '/' {
		return home + path[1:]
	}
	return home
}
