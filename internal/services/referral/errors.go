package referral

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a referral validation failure
type ErrorCode string

const (
	CodeInvalidCode          ErrorCode = "INVALID_CODE"
	CodeExpiredCode          ErrorCode = "EXPIRED_CODE"
	CodeSelfReferral         ErrorCode = "SELF_REFERRAL"
	CodeAlreadyConverted     ErrorCode = "ALREADY_CONVERTED"
	CodeMaxReferralsExceeded ErrorCode = "MAX_REFERRALS_EXCEEDED"
	CodeNotEligible          ErrorCode = "NOT_ELIGIBLE"
)

// ErrCodeSpaceExhausted is returned when the code generator fails to find
// a free code within the configured attempt ceiling.
var ErrCodeSpaceExhausted = errors.New("referral code generation exhausted maximum attempts")

// ValidationError is a recoverable-by-caller validation failure, distinct
// from transport-level failures. Callers map the code to a 4xx response.
type ValidationError struct {
	Code    ErrorCode
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newValidationError(code ErrorCode, message string) *ValidationError {
	return &ValidationError{Code: code, Message: message}
}

// IsValidationCode reports whether err is a ValidationError with the given code
func IsValidationCode(err error, code ErrorCode) bool {
	var verr *ValidationError
	return errors.As(err, &verr) && verr.Code == code
}

// FraudError is raised when a conversion attempt scores in the critical
// risk tier. It carries the score and flags for the caller to surface.
type FraudError struct {
	Score int
	Flags []string
}

func (e *FraudError) Error() string {
	return fmt.Sprintf("conversion rejected by fraud detection (score %d, flags %v)", e.Score, e.Flags)
}
