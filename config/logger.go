package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger logs JSON to stderr and to a daily file under Log.Dir.
// An empty Log.Dir keeps logs on stderr only.
func NewLogger(cfg *Configuration) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Log.Level, err)
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zcfg.OutputPaths = []string{"stderr"}

	if cfg.Log.Dir != "" {
		if err := os.MkdirAll(cfg.Log.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("cannot create log dir: %w", err)
		}
		logFile := filepath.Join(cfg.Log.Dir, fmt.Sprintf("log_%s.txt", time.Now().Format("2006-01-02")))
		zcfg.OutputPaths = append(zcfg.OutputPaths, logFile)
	}

	return zcfg.Build()
}
