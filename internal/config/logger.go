package config

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger returns the program logger: a zap console logger writing to
// stderr. stdout stays free for the MCP stdio transport.
func NewLogger(level string) (*zap.Logger, error) {
	var lvl zapcore.Level
	switch level {
	case "none":
		return zap.NewNop(), nil
	case "debug":
		lvl = zapcore.DebugLevel
	case "", "info", "normal":
		lvl = zapcore.InfoLevel
	default:
		return nil, fmt.Errorf("unknown log level %q", level)
	}

	ec := zap.NewDevelopmentEncoderConfig()
	ec.EncodeCaller = nil
	ec.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(ec), zapcore.Lock(os.Stderr), zap.NewAtomicLevelAt(lvl))
	return zap.New(core), nil
}
