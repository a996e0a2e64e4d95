package errors

type Code string

const (
	CodeUnknown          Code = "UNKNOWN"
	CodeInternal         Code = "INTERNAL_ERROR"
	CodeConfigValidation Code = "CONFIG_VALIDATION_ERROR"
	CodeConfigReadError  Code = "CONFIG_READ_ERROR"
	CodeConfigParseError Code = "CONFIG_PARSE_ERROR"
	CodePlatformAPIError Code = "PLATFORM_API_ERROR"
	CodeNotImplemented   Code = "NOT_IMPLEMENTED"

	// Remote API failure taxonomy
	CodeUnavailable       Code = "UNAVAILABLE"
	CodeThrottled         Code = "THROTTLED"
	CodeResourceBusy      Code = "RESOURCE_BUSY"
	CodeConflict          Code = "CONFLICT"
	CodeResourceNotFound  Code = "RESOURCE_NOT_FOUND"
	CodeInvalidTarget     Code = "INVALID_TARGET"
	CodePlatformAuthError Code = "PERMISSION_DENIED"
	CodeCancelled         Code = "CANCELLED"

	// Lifecycle state store
	CodeStateNotFound   Code = "STATE_NOT_FOUND"
	CodeStateCorrupt    Code = "STATE_CORRUPT"
	CodeStateWriteError Code = "STATE_WRITE_ERROR"
	CodeStateLocked     Code = "STATE_LOCKED"

	// Inventory discovery
	CodeInventoryReadError  Code = "INVENTORY_READ_ERROR"
	CodeInventoryParseError Code = "INVENTORY_PARSE_ERROR"
)

func (c Code) String() string {
	return string(c)
}

// Retryable reports whether a failure with this code may succeed on a later attempt.
func (c Code) Retryable() bool {
	switch c {
	case CodeUnavailable, CodeThrottled, CodeResourceBusy:
		return true
	default:
		return false
	}
}
