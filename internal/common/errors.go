package common

import "fmt"

const (
	ReasonLocked           = "locked"
	ReasonInvalidPin       = "invalid_pin"
	ReasonExpiredCode      = "expired_code"
	ReasonInvalidCode      = "invalid_code"
	ReasonAlreadySigned    = "already_signed"
	ReasonInvalidStatus    = "invalid_status"
	ReasonBadSignature     = "bad_signature"
	ReasonExpiredSignature = "expired_signature"
	ReasonRateLimited      = "rate_limited"
	ReasonSessionRequired  = "session_required"
	ReasonPinNotConfigured = "pin_not_configured"
	ReasonTOTPNotEnabled   = "totp_not_enabled"
	ReasonSetupExpired     = "setup_expired"
	ReasonNotFound         = "not_found"
	ReasonInvalidRequest   = "invalid_request"
)

// BusinessError is a rule violation reported to clients with a machine-readable reason.
type BusinessError struct {
	Reason  string
	Message string
}

func (e *BusinessError) Error() string {
	if e.Message == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}

func (e *BusinessError) Is(target error) bool {
	t, ok := target.(*BusinessError)
	return ok && t.Reason == e.Reason
}

func NewBusinessError(reason, message string) *BusinessError {
	return &BusinessError{Reason: reason, Message: message}
}

// FieldError describes one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// ValidationError is returned when a request body does not match its expected shape.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "invalid request"
	}
	return "invalid request: " + e.Fields[0].Field + " " + e.Fields[0].Message
}

func (e *ValidationError) Add(field, reason, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Reason: reason, Message: message})
}

// Err returns nil when no field was rejected.
func (e *ValidationError) Err() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}
