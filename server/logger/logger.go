package logger

import (
	"log"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LOG_LEVEL_ENV overrides the default (debug) level, e.g. RELIEF_LOG_LEVEL=warn.
const LOG_LEVEL_ENV = "RELIEF_LOG_LEVEL"

// level is shared by every logger built with NewLogger, so SetLevel applies
// to loggers created at package init as well.
var level = zap.NewAtomicLevelAt(levelFromEnv())

func NewLogger() *zap.SugaredLogger {
	config := zap.NewDevelopmentConfig()
	config.Level = level
	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

	logger, err := config.Build()
	if err != nil {
		log.Panic(err)
	}

	// flushes buffer, if any
	defer logger.Sync()

	return logger.Sugar()
}

// SetLevel changes the level of all loggers. Unknown names are ignored.
func SetLevel(name string) {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(name))); err != nil {
		return
	}
	level.SetLevel(l)
}

func levelFromEnv() zapcore.Level {
	l := zapcore.DebugLevel
	if name := os.Getenv(LOG_LEVEL_ENV); name != "" {
		_ = l.UnmarshalText([]byte(strings.ToLower(name)))
	}
	return l
}
