package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	World   WorldConfig   `toml:"world"`
	Loop    LoopConfig    `toml:"loop"`
	Data    DataConfig    `toml:"data"`
	Logging LoggingConfig `toml:"logging"`
	Metrics MetricsConfig `toml:"metrics"`
}

type WorldConfig struct {
	Capacity      int `toml:"capacity"`       // max entities, tables and behaviors per world
	TableCapacity int `toml:"table_capacity"` // default for tables without their own limit
}

type LoopConfig struct {
	TickRate time.Duration `toml:"tick_rate"`
	MaxTicks uint64        `toml:"max_ticks"` // 0 = run until interrupted
}

type DataConfig struct {
	SchemaFile string `toml:"schema_file"`
	ScriptsDir string `toml:"scripts_dir"`
}

type LoggingConfig struct {
	Level      string `toml:"level"`
	Format     string `toml:"format"`      // "json" or "console"
	Caller     bool   `toml:"caller"`      // annotate entries with file:line
	Color      bool   `toml:"color"`       // console only
	TimeLayout string `toml:"time_layout"` // console only
}

type MetricsConfig struct {
	Enabled     bool   `toml:"enabled"`
	BindAddress string `toml:"bind_address"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := defaults()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config { return defaults() }

func (c *Config) validate() error {
	if c.Loop.TickRate <= 0 {
		return fmt.Errorf("loop.tick_rate must be positive, got %s", c.Loop.TickRate)
	}
	if c.World.Capacity < 0 || c.World.TableCapacity < 0 {
		return fmt.Errorf("world capacities must not be negative")
	}
	return nil
}

func defaults() *Config {
	return &Config{
		World: WorldConfig{
			Capacity:      1000,
			TableCapacity: 1000,
		},
		Loop: LoopConfig{
			TickRate: 200 * time.Millisecond,
		},
		Data: DataConfig{
			SchemaFile: "data/schema.yaml",
			ScriptsDir: "scripts",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			Color:      true,
			TimeLayout: "15:04:05",
		},
		Metrics: MetricsConfig{
			Enabled:     false,
			BindAddress: "127.0.0.1:9100",
		},
	}
}
