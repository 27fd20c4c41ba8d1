package common

import "errors"

type Code string

const (
	CodeValidation              Code = "validation"
	CodeNotFound                Code = "not_found"
	CodeConflict                Code = "conflict"
	CodeForbidden               Code = "forbidden"
	CodeUnauthorized            Code = "unauthorized"
	CodeDuplicateApplication    Code = "duplicate_application"
	CodeInvalidToken            Code = "invalid_token"
	CodeTokenExpired            Code = "token_expired"
	CodeTokenAlreadyUsed        Code = "token_already_used"
	CodeInvalidApplicationState Code = "invalid_application_state"
	CodeInvalidEmail            Code = "invalid_email"
	CodeAlreadyVerified         Code = "already_verified"
	CodeRateLimited             Code = "rate_limited"
	CodeCannotReview            Code = "cannot_review_application"
	CodeCannotDecide            Code = "cannot_decide_application"
	CodeProvisioningFailed      Code = "school_provisioning_failed"
	CodeServiceUnavailable      Code = "service_unavailable"
	CodeInternal                Code = "internal"
)

// Error is the coded error carried across service boundaries. The HTTP layer
// translates codes to statuses; everything without a code is an internal error.
type Error struct {
	Code    Code
	Message string
	Cause   error

	// RetryAfterSeconds is set only for CodeRateLimited.
	RetryAfterSeconds int
}

func NewError(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

func NewRateLimitedError(message string, retryAfterSeconds int) *Error {
	if retryAfterSeconds < 1 {
		retryAfterSeconds = 1
	}
	return &Error{Code: CodeRateLimited, Message: message, RetryAfterSeconds: retryAfterSeconds}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func Is(err error, code Code) bool {
	return CodeOf(err) == code
}

func CodeOf(err error) Code {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}
	return CodeInternal
}

// RetryAfterOf returns the retry-after hint for rate-limit errors, 0 otherwise.
func RetryAfterOf(err error) int {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.RetryAfterSeconds
	}
	return 0
}
