package log

import (
	"log/slog"
	"strings"

	apperrors "github.com/olusolaa/cost-parker/internal/errors"
)

type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// ParseLevel accepts the level names case-insensitively. An empty string is
// info.
func ParseLevel(s string) (Level, error) {
	l := Level(strings.ToLower(strings.TrimSpace(s)))
	if l == "" {
		return LevelInfo, nil
	}
	if _, err := l.slog(); err != nil {
		return "", err
	}
	return l, nil
}

func (l Level) slog() (slog.Level, error) {
	switch l {
	case LevelDebug:
		return slog.LevelDebug, nil
	case LevelInfo, "":
		return slog.LevelInfo, nil
	case LevelWarn:
		return slog.LevelWarn, nil
	case LevelError:
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, apperrors.NewUserFacing(apperrors.CodeConfigValidation,
			"unsupported log level \""+string(l)+"\"",
			"Use one of debug, info, warn or error.")
	}
}

type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

func (f Format) valid() bool {
	return f == FormatText || f == FormatJSON || f == ""
}

// Config selects verbosity and encoding. Logs always go to stderr unless the
// caller picks another writer; stdout is reserved for the report.
type Config struct {
	Level  Level  `yaml:"level" mapstructure:"level"`
	Format Format `yaml:"format" mapstructure:"format"`
}

func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Format: FormatText,
	}
}

func (c Config) Validate() error {
	if _, err := c.Level.slog(); err != nil {
		return err
	}
	if !c.Format.valid() {
		return apperrors.NewUserFacing(apperrors.CodeConfigValidation,
			"unsupported log format \""+string(c.Format)+"\"",
			"Use text or json.")
	}
	return nil
}
