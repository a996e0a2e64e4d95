package ports

import "context"

//go:generate mockery --name Logger --output ./mocks --outpkg mocks --case underscore

// Logger is the structured logger every component receives at construction.
// Drivers attach resource_kind and resource_id; infrastructure attaches
// component. Errorf flattens AppErrors into error_code fields.
type Logger interface {
	Debugf(ctx context.Context, format string, args ...any)
	Infof(ctx context.Context, format string, args ...any)
	Warnf(ctx context.Context, format string, args ...any)
	Errorf(ctx context.Context, err error, format string, args ...any)
	// WithFields returns a child logger; the receiver is not modified.
	WithFields(fields map[string]any) Logger
}
