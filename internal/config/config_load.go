package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/titanous/json5"
)

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Host:            "0.0.0.0",
			Port:            18900,
			RateLimitRPM:    20,
			PingIntervalSec: 30,
		},
		Sandbox: SandboxConfig{
			PythonBin:  "python3",
			TimeoutSec: 60,
			MaxOutput:  256 * 1024,
		},
		Agents: AgentsConfig{
			MaxCodeIterations:   50,
			MaxWriterIterations: 100,
			TaskTimeoutMin:      10,
			MaxTokens:           8192,
			Temperature:         0.7,
		},
		Context: ContextConfig{
			MaxTokens:   20000,
			MaxMessages: 50,
		},
		Janitor: JanitorConfig{
			Schedule:    "*/10 * * * *",
			GraceMin:    30,
			TempMaxAgeH: 24,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "paperforge",
		},
	}
}

// Load reads config from a JSON5 file, then overlays env vars.
// A missing file is not an error; defaults apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides overlays env vars onto the config.
// Env vars take precedence over file values.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	envStr("PA_DATA_PATH", &c.Data.Dir)
	envStr("PAPERFORGE_DB", &c.Database.Path)
	envStr("PAPERFORGE_HOST", &c.Gateway.Host)
	envStr("PAPERFORGE_PYTHON", &c.Sandbox.PythonBin)

	if v := os.Getenv("PAPERFORGE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			c.Gateway.Port = port
		}
	}

	envStr("PAPERFORGE_TELEMETRY_ENDPOINT", &c.Telemetry.Endpoint)
	if v := os.Getenv("PAPERFORGE_TELEMETRY_ENABLED"); v != "" {
		c.Telemetry.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("PAPERFORGE_TELEMETRY_INSECURE"); v != "" {
		c.Telemetry.Insecure = v == "true" || v == "1"
	}
}
