package entity

import "errors"

// ReasonCode explains why a token failed validation. Codes are stable and
// returned to the registration form so it can render a specific message.
type ReasonCode string

const (
	ReasonNotFound      ReasonCode = "NOT_FOUND"
	ReasonInactive      ReasonCode = "INACTIVE"
	ReasonExpired       ReasonCode = "EXPIRED"
	ReasonExhausted     ReasonCode = "EXHAUSTED"
	ReasonInvalidFormat ReasonCode = "INVALID_FORMAT"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrDuplicateToken       = errors.New("token code already exists")
	ErrGenerationExhausted  = errors.New("token generation attempts exhausted")
	ErrAlreadyDeactivated   = errors.New("token already deactivated")
	ErrAlreadyProcessed     = errors.New("registration already processed")
	ErrConcurrentExhaustion = errors.New("token exhausted by concurrent submission")
	ErrInvalidReason        = errors.New("rejection reason must not be empty")
	ErrEmptyBatch           = errors.New("batch contains no ids")
	ErrDuplicateBatchIds    = errors.New("batch contains duplicate ids")
	ErrUnauthorized         = errors.New("unauthorized access")
)

// ValidationError carries the reason a token was refused. Submission paths
// wrap it so callers can separate bad credentials from store failures.
type ValidationError struct {
	Reason ReasonCode
}

func (e *ValidationError) Error() string {
	return "token validation failed: " + string(e.Reason)
}

// AsValidationError unwraps err into a *ValidationError if there is one.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
