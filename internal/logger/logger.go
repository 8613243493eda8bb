package logger

import (
	"io"
	"log"
	"os"
	"strings"

	charmlog "github.com/charmbracelet/log"
)

// Config holds the logger configuration
type Config struct {
	Level  string
	JSON   bool
	Output io.Writer
}

// ParseLevel maps a level name to a charm level, defaulting to info.
func ParseLevel(level string) charmlog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return charmlog.DebugLevel
	case "warn", "warning":
		return charmlog.WarnLevel
	case "error":
		return charmlog.ErrorLevel
	default:
		return charmlog.InfoLevel
	}
}

// New builds the process logger.
func New(cfg Config) *charmlog.Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	logger := charmlog.NewWithOptions(cfg.Output, charmlog.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
		Level:           ParseLevel(cfg.Level),
	})
	if cfg.JSON {
		logger.SetFormatter(charmlog.JSONFormatter)
	} else {
		logger.SetFormatter(charmlog.TextFormatter)
	}
	return logger
}

// Setup builds the process logger and routes the standard library's
// default logger through it.
func Setup(cfg Config) *charmlog.Logger {
	logger := New(cfg)
	log.SetFlags(0)
	log.SetPrefix("")
	log.SetOutput(logger.StandardLog().Writer())
	return logger
}

// Standard returns a *log.Logger for a component. Lines are emitted at
// info level with the component as prefix.
func Standard(logger *charmlog.Logger, component string) *log.Logger {
	return logger.WithPrefix(component).StandardLog(charmlog.StandardLogOptions{
		ForceLevel: charmlog.InfoLevel,
	})
}
