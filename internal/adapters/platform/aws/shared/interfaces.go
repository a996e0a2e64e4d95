package shared

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// RateLimiter paces control-plane calls. One limiter is shared by every
// driver of a run so a stop over many resources stays under the account's
// request quota.
type RateLimiter interface {
	Wait(ctx context.Context) error
}

// ErrorHandler turns an SDK error into an AppError whose code the retry
// policy and the report understand. resourceID is the parked resource, not
// the member being called.
type ErrorHandler interface {
	Handle(ctx context.Context, service, operation, resourceID string, err error) error
}

// IdentityClient resolves the account a run acts on.
type IdentityClient interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}
