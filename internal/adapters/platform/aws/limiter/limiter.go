package limiter

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/olusolaa/cost-parker/internal/core/ports"
)

const (
	DefaultRPS = 10
	MinRPS     = 1
	MaxRPS     = 100
)

// APILimiter paces every AWS API call issued by one provider. All drivers
// built by the provider share the same instance.
type APILimiter struct {
	limiter *rate.Limiter
	logger  ports.Logger
	rps     int
}

// New builds a limiter allowing rps calls per second with a burst of rps.
// Out-of-range values fall back to DefaultRPS.
func New(rps int, logger ports.Logger) *APILimiter {
	value := DefaultRPS
	if rps >= MinRPS && rps <= MaxRPS {
		value = rps
	} else if rps != 0 {
		logger.Warnf(context.Background(), "Invalid AWS API RPS configured (%d), using default %d RPS. Valid range: %d-%d.", rps, DefaultRPS, MinRPS, MaxRPS)
	}
	logger.Debugf(context.Background(), "AWS API rate limiter: %d RPS", value)
	return &APILimiter{
		limiter: rate.NewLimiter(rate.Limit(value), value),
		logger:  logger,
		rps:     value,
	}
}

// Unlimited never blocks; used by tests.
func Unlimited(logger ports.Logger) *APILimiter {
	return &APILimiter{limiter: rate.NewLimiter(rate.Inf, 0), logger: logger}
}

func (l *APILimiter) RPS() int {
	return l.rps
}

func (l *APILimiter) Wait(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		if ctx.Err() == nil {
			l.logger.Warnf(ctx, "Error waiting for AWS API rate limiter: %v", err)
		}
		return err
	}
	return nil
}
