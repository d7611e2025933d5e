package engine

import "fmt"

const (
	CodeValidation       = "VALIDATION"
	CodeOverlayNotFound  = "OVERLAY_NOT_FOUND"
	CodeAPIUnavailable   = "API_UNAVAILABLE"
	CodeEvalFailure      = "EVAL_FAILURE"
	CodeEvalTimeout      = "EVAL_TIMEOUT"
	CodeCDPUnavailable   = "CDP_UNAVAILABLE"
	CodeCloudUnavailable = "CLOUD_UNAVAILABLE"
)

// CodedError is a typed error used for stable API mapping.
type CodedError struct {
	Code    string
	Message string
	Cause   error
}

func (e *CodedError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
}

func (e *CodedError) Unwrap() error { return e.Cause }

// NewError builds a CodedError with an optional cause.
func NewError(code, msg string, cause error) error {
	return &CodedError{Code: code, Message: msg, Cause: cause}
}
