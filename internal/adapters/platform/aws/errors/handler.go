package errors

import (
	"context"
	stderrs "errors"
	"fmt"
	"strings"

	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/olusolaa/cost-parker/internal/errors"
)

var (
	throttleCodes = map[string]struct{}{
		"ThrottlingException":                    {},
		"Throttling":                             {},
		"ThrottledException":                     {},
		"TooManyRequestsException":               {},
		"RequestLimitExceeded":                   {},
		"LimitExceededException":                 {},
		"ProvisionedThroughputExceededException": {},
		"SlowDown":                               {},
	}
	unavailableCodes = map[string]struct{}{
		"ServiceUnavailable":          {},
		"ServiceUnavailableException": {},
		"InternalError":               {},
		"InternalFailure":             {},
		"InternalServerError":         {},
		"RequestTimeout":              {},
		"RequestTimeoutException":     {},
		"ServiceException":            {},
	}
	// Lambda's ResourceConflictException means an update is still in
	// progress on the function, so it is busy rather than a conflict.
	busyCodes = map[string]struct{}{
		"ResourceInUseException":      {},
		"PriorRequestNotComplete":     {},
		"ResourceConflictException":   {},
		"OperationAbortedException":   {},
		"ResourceContentionFault":     {},
		"InvalidStateTransitionFault": {},
	}
	// conflictCodes report that someone else changed the resource since it
	// was described. They are surfaced, never retried.
	conflictCodes = map[string]struct{}{
		"ConflictException":               {},
		"ConcurrentModification":          {},
		"ConcurrentModificationException": {},
		"TransactionConflictException":    {},
	}
	permissionCodes = map[string]struct{}{
		"AccessDenied":                {},
		"AccessDeniedException":       {},
		"UnauthorizedOperation":       {},
		"UnrecognizedClientException": {},
		"InvalidClientTokenId":        {},
		"ExpiredToken":                {},
		"ExpiredTokenException":       {},
		"AuthFailure":                 {},
		"KMSAccessDeniedException":    {},
	}
	notFoundCodes = map[string]struct{}{
		"ResourceNotFoundException": {},
		"ResourceNotFound":          {},
		"NotFoundException":         {},
		"NoSuchKey":                 {},
		"NoSuchBucket":              {},
		"NotFound":                  {},
	}
	invalidCodes = map[string]struct{}{
		"InvalidArgumentException":       {},
		"InvalidParameterValueException": {},
		"InvalidParameterValue":          {},
		"InvalidParameterCombination":    {},
		"ValidationException":            {},
		"ValidationError":                {},
	}
)

// HandleAWSError classifies an AWS SDK error into the application taxonomy.
// service and operation name the failed call; resourceID is the resource it
// targeted. ctx is the caller's context, used to tell a cancellation apart
// from a per-call timeout.
func HandleAWSError(ctx context.Context, service, operation, resourceID string, err error) error {
	if err == nil {
		return nil
	}

	target := fmt.Sprintf("%s %s on '%s'", service, operation, resourceID)

	if ctx != nil && ctx.Err() != nil {
		return errors.Cancelled(ctx.Err(), "%s cancelled", target)
	}
	if stderrs.Is(err, context.Canceled) {
		return errors.Cancelled(err, "%s cancelled", target)
	}

	var appErr *errors.AppError
	if stderrs.As(err, &appErr) {
		return err
	}

	code := CodeFor(err)
	var msg string
	switch code {
	case errors.CodeThrottled:
		msg = fmt.Sprintf("%s was throttled", target)
	case errors.CodeUnavailable:
		msg = fmt.Sprintf("%s: service unavailable", target)
	case errors.CodeResourceBusy:
		msg = fmt.Sprintf("%s: resource busy", target)
	case errors.CodeConflict:
		return errors.WrapUserFacing(err, code, fmt.Sprintf("%s: resource changed by another actor", target),
			"Run status to see the current configuration, then re-run the command.")
	case errors.CodePlatformAuthError:
		return errors.WrapUserFacing(err, code, fmt.Sprintf("%s: permission denied", target),
			"Check the IAM permissions of the configured AWS profile.")
	case errors.CodeResourceNotFound:
		msg = fmt.Sprintf("%s: resource not found", target)
	case errors.CodeInvalidTarget:
		msg = fmt.Sprintf("%s: request rejected", target)
	default:
		msg = fmt.Sprintf("%s failed", target)
	}
	return errors.WrapWithCode(err, code, msg)
}

// CodeFor maps a raw SDK error to a code without wrapping it.
func CodeFor(err error) errors.Code {
	if err == nil {
		return errors.CodeUnknown
	}
	if stderrs.Is(err, context.DeadlineExceeded) {
		return errors.CodeUnavailable
	}

	if code := apiErrorCode(err); code != "" {
		if _, ok := throttleCodes[code]; ok {
			return errors.CodeThrottled
		}
		if _, ok := unavailableCodes[code]; ok {
			return errors.CodeUnavailable
		}
		if _, ok := busyCodes[code]; ok {
			return errors.CodeResourceBusy
		}
		if _, ok := conflictCodes[code]; ok {
			return errors.CodeConflict
		}
		if _, ok := permissionCodes[code]; ok || strings.HasPrefix(code, "AccessDenied") {
			return errors.CodePlatformAuthError
		}
		if _, ok := notFoundCodes[code]; ok || strings.HasSuffix(code, ".NotFound") {
			return errors.CodeResourceNotFound
		}
		if _, ok := invalidCodes[code]; ok {
			if IsMissingResourceMessage(err) {
				return errors.CodeResourceNotFound
			}
			return errors.CodeInvalidTarget
		}
	}

	var apiErr smithy.APIError
	if stderrs.As(err, &apiErr) && apiErr.ErrorFault() == smithy.FaultServer {
		return errors.CodeUnavailable
	}

	var statusErr interface{ HTTPStatusCode() int }
	if stderrs.As(err, &statusErr) {
		switch status := statusErr.HTTPStatusCode(); {
		case status == 429:
			return errors.CodeThrottled
		case status >= 500:
			return errors.CodeUnavailable
		}
	}

	var sendErr *smithyhttp.RequestSendError
	if stderrs.As(err, &sendErr) {
		return errors.CodeUnavailable
	}

	return errors.CodePlatformAPIError
}

// IsMissingResourceMessage reports whether a validation error is the SageMaker
// way of saying the resource does not exist.
func IsMissingResourceMessage(err error) bool {
	var apiErr smithy.APIError
	if !stderrs.As(err, &apiErr) {
		return false
	}
	msg := apiErr.ErrorMessage()
	return strings.Contains(msg, "Could not find") || strings.Contains(msg, "does not exist")
}

func apiErrorCode(err error) string {
	var apiErr smithy.APIError
	if stderrs.As(err, &apiErr) && apiErr != nil {
		return apiErr.ErrorCode()
	}
	return ""
}

// DefaultErrorHandler implements shared.ErrorHandler.
type DefaultErrorHandler struct{}

func (d *DefaultErrorHandler) Handle(ctx context.Context, service, operation, resourceID string, err error) error {
	return HandleAWSError(ctx, service, operation, resourceID, err)
}
