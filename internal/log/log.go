package log

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/olusolaa/cost-parker/internal/core/ports"
	apperrors "github.com/olusolaa/cost-parker/internal/errors"
)

// redactedKeys are field names whose values never reach the log output.
var redactedKeys = []string{"secret", "token", "password", "credential"}

type slogAdapter struct {
	logger *slog.Logger
}

// NewLogger builds a logger writing to stderr.
func NewLogger(cfg Config) (ports.Logger, error) {
	return NewLoggerTo(cfg, os.Stderr)
}

// NewLoggerTo builds a logger writing to w.
func NewLoggerTo(cfg Config, w io.Writer) (ports.Logger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	level, _ := cfg.Level.slog()
	opts := &slog.HandlerOptions{Level: level, ReplaceAttr: redact}

	var handler slog.Handler
	if cfg.Format == FormatJSON {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return &slogAdapter{logger: slog.New(handler)}, nil
}

// Nop returns a logger that discards everything.
func Nop() ports.Logger {
	return &slogAdapter{logger: slog.New(slog.DiscardHandler)}
}

func redact(_ []string, a slog.Attr) slog.Attr {
	key := strings.ToLower(a.Key)
	for _, k := range redactedKeys {
		if strings.Contains(key, k) {
			return slog.String(a.Key, "[REDACTED]")
		}
	}
	return a
}

// errorAttrs flattens an AppError into error_code, error_retryable and either
// the wrapped cause or the message.
func errorAttrs(err error) []slog.Attr {
	if err == nil {
		return nil
	}
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		return []slog.Attr{slog.String("error", err.Error())}
	}

	attrs := []slog.Attr{
		slog.String("error_code", string(appErr.Code)),
		slog.Bool("error_retryable", appErr.Code.Retryable()),
	}
	if appErr.InternalDetails != "" {
		attrs = append(attrs, slog.String("error_details", appErr.InternalDetails))
	}
	if appErr.WrappedError != nil {
		attrs = append(attrs, slog.String("error", appErr.Message+": "+appErr.WrappedError.Error()))
	} else {
		attrs = append(attrs, slog.String("error", appErr.Message))
	}
	return attrs
}

func (s *slogAdapter) log(ctx context.Context, level slog.Level, err error, format string, args ...any) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !s.logger.Enabled(ctx, level) {
		return
	}

	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	s.logger.LogAttrs(ctx, level, msg, errorAttrs(err)...)
}

func (s *slogAdapter) Debugf(ctx context.Context, format string, args ...any) {
	s.log(ctx, slog.LevelDebug, nil, format, args...)
}

func (s *slogAdapter) Infof(ctx context.Context, format string, args ...any) {
	s.log(ctx, slog.LevelInfo, nil, format, args...)
}

func (s *slogAdapter) Warnf(ctx context.Context, format string, args ...any) {
	s.log(ctx, slog.LevelWarn, nil, format, args...)
}

func (s *slogAdapter) Errorf(ctx context.Context, err error, format string, args ...any) {
	s.log(ctx, slog.LevelError, err, format, args...)
}

// WithFields adds fields in key order so repeated runs produce identical
// lines.
func (s *slogAdapter) WithFields(fields map[string]any) ports.Logger {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	attrs := make([]any, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, fields[k]))
	}
	return &slogAdapter{logger: s.logger.With(attrs...)}
}
