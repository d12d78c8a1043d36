// Package logging builds the zap logger shared by the kernel, the
// inspection API, the manifest watcher and the container itself.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a production logger for env "production", a no-op logger
// for "testing" and a development logger otherwise. An empty level keeps
// the preset's default.
func New(env, level string) (*zap.Logger, error) {
	var cfg zap.Config
	switch env {
	case "testing":
		return zap.NewNop(), nil
	case "production":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
	}

	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("logging: %w", err)
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("logging: building logger: %w", err)
	}
	return logger, nil
}
