package media

import "fmt"

// RecordingError represents a domain-specific error
type RecordingError struct {
	Code    string
	Message string
	Cause   error
}

func (e *RecordingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *RecordingError) Unwrap() error {
	return e.Cause
}

// Error codes
const (
	ErrCodePermissionDenied    = "PERMISSION_DENIED"
	ErrCodeDeviceUnavailable   = "DEVICE_UNAVAILABLE"
	ErrCodeInitialization      = "INITIALIZATION_ERROR"
	ErrCodeSourceSwitchTimeout = "SOURCE_SWITCH_TIMEOUT"
	ErrCodeEncodeBackpressure  = "ENCODE_BACKPRESSURE"
	ErrCodeAlreadyFinalized    = "ALREADY_FINALIZED"
	ErrCodeInvalidState        = "INVALID_STATE"
	ErrCodeTranscode           = "TRANSCODE_ERROR"
	ErrCodeUpload              = "UPLOAD_ERROR"
	ErrCodeOther               = "OTHER"
)

// NewRecordingError creates a new recording error
func NewRecordingError(code, message string, cause error) *RecordingError {
	return &RecordingError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}
