package json

import (
	"context"
	"fmt"
	"io"
	"os"

	jsoniter "github.com/json-iterator/go"

	"github.com/olusolaa/cost-parker/internal/core/domain"
	"github.com/olusolaa/cost-parker/internal/core/ports"
	"github.com/olusolaa/cost-parker/internal/errors"
	"github.com/olusolaa/cost-parker/internal/reporting"
)

const ReporterTypeJSON = "json"

var api = jsoniter.ConfigCompatibleWithStandardLibrary

type Config struct {
	Compact bool `yaml:"compact" mapstructure:"compact"`
}

type Reporter struct {
	config Config
	writer io.Writer
	logger ports.Logger
}

type Option func(*Reporter)

func WithWriter(w io.Writer) Option {
	return func(r *Reporter) {
		if w != nil {
			r.writer = w
		}
	}
}

func NewReporter(cfg Config, logger ports.Logger, opts ...Option) (*Reporter, error) {
	r := &Reporter{
		config: cfg,
		writer: os.Stdout,
		logger: logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *Reporter) Report(ctx context.Context, report *domain.OperationReport) error {
	if ctx.Err() != nil {
		r.logger.Warnf(ctx, "JSON report generation cancelled.")
		return ctx.Err()
	}
	if report == nil {
		return errors.New(errors.CodeInternal, "cannot render a nil report")
	}

	if err := r.write(ctx, reporting.NewDocument(report), "report"); err != nil {
		fmt.Fprintf(r.writer, "{\"error\": \"failed to generate JSON report: %v\"}\n", err)
		return err
	}
	r.logger.Debugf(ctx, "JSON report successfully generated.")
	return nil
}

func (r *Reporter) ReportHistory(ctx context.Context, entries []reporting.HistoryEntry) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if entries == nil {
		entries = []reporting.HistoryEntry{}
	}
	return r.write(ctx, entries, "history")
}

func (r *Reporter) ReportBackups(ctx context.Context, backups []domain.Backup) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return r.write(ctx, reporting.NewBackups(backups), "backup list")
}

func (r *Reporter) write(ctx context.Context, v any, what string) error {
	var (
		data []byte
		err  error
	)
	if r.config.Compact {
		data, err = api.Marshal(v)
	} else {
		data, err = api.MarshalIndent(v, "", "  ")
	}
	if err != nil {
		r.logger.Errorf(ctx, err, "Failed to encode JSON %s", what)
		return errors.Wrap(err, errors.CodeInternal, "failed to encode JSON "+what)
	}
	if _, err := r.writer.Write(append(data, '\n')); err != nil {
		return errors.Wrap(err, errors.CodeInternal, "failed to write JSON "+what)
	}
	return nil
}
