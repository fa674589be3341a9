// Package logging builds the zap logger shared by the CLI and MCP server.
package logging

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ersonp/lore-novel/internal/infrastructure/config"
)

// New builds a logger from the log section of the config. Stdout carries
// command output and the MCP transport, so logs default to stderr.
func New(cfg config.LogConfig) (*zap.Logger, error) {
	level := zap.NewAtomicLevel()
	name := strings.ToLower(strings.TrimSpace(cfg.Level))
	if name == "" {
		name = "info"
	}
	if err := level.UnmarshalText([]byte(name)); err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level %q, using info: %v\n", cfg.Level, err)
		level.SetLevel(zap.InfoLevel)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	encoding := strings.ToLower(cfg.Encoding)
	if encoding != "json" {
		encoding = "console"
	}

	outputPath := cfg.OutputPath
	if outputPath == "" {
		outputPath = "stderr"
	}

	zapConfig := zap.Config{
		Level:             level,
		DisableCaller:     true,
		DisableStacktrace: true,
		Encoding:          encoding,
		EncoderConfig:     encoderCfg,
		OutputPaths:       []string{outputPath},
		ErrorOutputPaths:  []string{"stderr"},
	}

	logger, err := zapConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return logger, nil
}
