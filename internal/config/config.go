package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the settings required to boot the graph engine.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
	Rules     RulesConfig     `yaml:"rules"`
	Sessions  SessionsConfig  `yaml:"sessions"`
	Graph     GraphConfig     `yaml:"graph"`
	Layout    LayoutConfig    `yaml:"layout"`
	Stream    StreamConfig    `yaml:"stream"`
}

// ServerConfig controls HTTP listener behaviour.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// TelemetryConfig configures access to the trace backend.
type TelemetryConfig struct {
	BaseURL    string        `yaml:"baseURL"`
	TracesPath string        `yaml:"tracesPath"`
	Timeout    time.Duration `yaml:"timeout"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// RulesConfig controls advice rule-pack loading for failure clusters.
type RulesConfig struct {
	Path string `yaml:"path"`
}

// SessionsConfig controls the in-memory session store.
type SessionsConfig struct {
	TTL           time.Duration `yaml:"ttl"`
	SweepInterval time.Duration `yaml:"sweepInterval"`
}

// GraphConfig carries canvas dimensions and playback defaults seeded into
// every new session.
type GraphConfig struct {
	CanvasWidth   float64 `yaml:"canvasWidth"`
	CanvasHeight  float64 `yaml:"canvasHeight"`
	PlaybackSpeed float64 `yaml:"playbackSpeed"`
}

// LayoutConfig tunes the force simulation loop.
type LayoutConfig struct {
	TickRate time.Duration `yaml:"tickRate"`
	Budget   time.Duration `yaml:"budget"`
}

// StreamConfig limits websocket position streaming.
type StreamConfig struct {
	FrameRate  time.Duration `yaml:"frameRate"`
	BurstLimit int           `yaml:"burstLimit"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("ROOTGRAPH_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":8080",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
		},
		Telemetry: TelemetryConfig{
			TracesPath: "/api/v1/telemetry/traces",
			Timeout:    5 * time.Second,
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
		Rules:   RulesConfig{Path: "configs/rules/default.yaml"},
		Sessions: SessionsConfig{
			TTL:           30 * time.Minute,
			SweepInterval: time.Minute,
		},
		Graph: GraphConfig{
			CanvasWidth:   800,
			CanvasHeight:  600,
			PlaybackSpeed: 1,
		},
		Layout: LayoutConfig{
			TickRate: 16 * time.Millisecond,
			Budget:   5 * time.Second,
		},
		Stream: StreamConfig{
			FrameRate:  50 * time.Millisecond,
			BurstLimit: 5,
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ROOTGRAPH_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("ROOTGRAPH_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("ROOTGRAPH_TELEMETRY_BASE_URL"); v != "" {
		cfg.Telemetry.BaseURL = v
	}
	if v := os.Getenv("ROOTGRAPH_TELEMETRY_TRACES_PATH"); v != "" {
		cfg.Telemetry.TracesPath = v
	}
	if v := os.Getenv("ROOTGRAPH_TELEMETRY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Telemetry.Timeout = d
		}
	}
	if v := os.Getenv("ROOTGRAPH_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("ROOTGRAPH_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("ROOTGRAPH_RULES_PATH"); v != "" {
		cfg.Rules.Path = v
	}
	if v := os.Getenv("ROOTGRAPH_SESSION_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Sessions.TTL = d
		}
	}
	if v := os.Getenv("ROOTGRAPH_SESSION_SWEEP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Sessions.SweepInterval = d
		}
	}
	if v := os.Getenv("ROOTGRAPH_CANVAS_WIDTH"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.Graph.CanvasWidth = f
		}
	}
	if v := os.Getenv("ROOTGRAPH_CANVAS_HEIGHT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.Graph.CanvasHeight = f
		}
	}
	if v := os.Getenv("ROOTGRAPH_PLAYBACK_SPEED"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.Graph.PlaybackSpeed = f
		}
	}
	if v := os.Getenv("ROOTGRAPH_LAYOUT_TICK_RATE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Layout.TickRate = d
		}
	}
	if v := os.Getenv("ROOTGRAPH_LAYOUT_BUDGET"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Layout.Budget = d
		}
	}
	if v := os.Getenv("ROOTGRAPH_STREAM_FRAME_RATE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Stream.FrameRate = d
		}
	}
	if v := os.Getenv("ROOTGRAPH_STREAM_BURST_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Stream.BurstLimit = n
		}
	}
}
