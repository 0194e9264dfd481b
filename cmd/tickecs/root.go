package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/l1jgo/tickecs/internal/config"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "tickecs",
		Short:         "Run and inspect tick-driven entity worlds.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(), newSchemaCmd())
	return root
}

// newLogger builds the process logger from the [logging] section.
func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	return loggerConfig(cfg).Build()
}

// loggerConfig maps the [logging] section onto a zap config. An unparsable
// level falls back to info.
func loggerConfig(cfg config.LoggingConfig) zap.Config {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.Format != "json" {
		zapCfg = consoleConfig(cfg)
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.DisableCaller = !cfg.Caller
	return zapCfg
}

func consoleConfig(cfg config.LoggingConfig) zap.Config {
	c := zap.NewDevelopmentConfig()
	c.DisableStacktrace = true
	c.EncoderConfig.ConsoleSeparator = "  "
	c.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	if cfg.Color {
		c.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	if cfg.TimeLayout != "" {
		c.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(cfg.TimeLayout)
	}
	return c
}
