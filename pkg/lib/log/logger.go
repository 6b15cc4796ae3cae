package log

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
)

func NewLogger(cfg *Config) (*zerolog.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}

	switch cfg.Format {
	case FormatConsole:
		l := zerolog.New(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}).Level(level).With().Timestamp().Logger()
		return &l, nil
	default:
		l := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
		return &l, nil
	}
}

func parseLevel(level Level) (zerolog.Level, error) {
	switch level {
	case LevelTrace:
		return zerolog.TraceLevel, nil
	case LevelDebug:
		return zerolog.DebugLevel, nil
	case LevelInfo:
		return zerolog.InfoLevel, nil
	case LevelWarn:
		return zerolog.WarnLevel, nil
	case LevelError:
		return zerolog.ErrorLevel, nil
	case LevelFatal:
		return zerolog.FatalLevel, nil
	default:
		return 0, fmt.Errorf("invalid log level: %s", level)
	}
}
