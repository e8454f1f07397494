package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is the process-wide logger. It is a no-op until Init runs.
var Log = zap.NewNop()

// Init initializes global logger with level and encoding from config.
func Init(level, encoding string) {
	var lvl zapcore.Level
	switch level {
	case "debug":
		lvl = zap.DebugLevel
	case "info":
		lvl = zap.InfoLevel
	case "warn":
		lvl = zap.WarnLevel
	case "error":
		lvl = zap.ErrorLevel
	default:
		lvl = zap.InfoLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	if encoding != "console" {
		encoding = "json"
	} else {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	cfg := zap.Config{
		Encoding:         encoding,
		Level:            zap.NewAtomicLevelAt(lvl),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
		EncoderConfig:    encCfg,
	}

	l, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	Log = l
	zap.ReplaceGlobals(l)
}

// Named returns a child of the global logger.
func Named(name string) *zap.Logger { return Log.Named(name) }
