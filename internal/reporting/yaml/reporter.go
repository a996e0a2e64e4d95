package yaml

import (
	"context"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/olusolaa/cost-parker/internal/core/domain"
	"github.com/olusolaa/cost-parker/internal/core/ports"
	"github.com/olusolaa/cost-parker/internal/errors"
	"github.com/olusolaa/cost-parker/internal/reporting"
)

const ReporterTypeYAML = "yaml"

type Reporter struct {
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

func NewReporter(logger ports.Logger, opts ...Option) (*Reporter, error) {
	r := &Reporter{writer: os.Stdout, logger: logger}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *Reporter) Report(ctx context.Context, report *domain.OperationReport) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if report == nil {
		return errors.New(errors.CodeInternal, "cannot render a nil report")
	}

	return r.write(ctx, reporting.NewDocument(report), "report")
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
	enc := yaml.NewEncoder(r.writer)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		r.logger.Errorf(ctx, err, "Failed to encode YAML %s", what)
		return errors.Wrap(err, errors.CodeInternal, "failed to encode YAML "+what)
	}
	if err := enc.Close(); err != nil {
		return errors.Wrap(err, errors.CodeInternal, "failed to flush YAML "+what)
	}
	return nil
}
