package errors

import (
	stderrors "errors"
	"fmt"
)

// Error codes shared by the signer, the availability calculator and the
// carrier-facing services.
const (
	CodeSigningInput      = 40001
	CodeAvailabilityInput = 40002
	CodeValidation        = 40003
	CodeCarrierAuth       = 40101
	CodeSessionMissing    = 40102
	CodeNotRegistered     = 40301
	CodeNotFound          = 40401
	CodeConflict          = 40901
	CodeRateLimited       = 42901
	CodeInternal          = 50001
	CodeCarrierFailure    = 50201
	CodeShopifyFailure    = 50202
	CodeUnavailable       = 50301
)

type DomainError struct {
	Code      int
	Message   string
	Details   string
	Retryable bool
	Cause     error

	// Fields holds per-field validation messages.
	Fields map[string]string
	// RawBody is the carrier's error payload, passed through unchanged.
	RawBody []byte
}

func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%d] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Cause
}

func (e *DomainError) WithRetryable(retryable bool) *DomainError {
	e.Retryable = retryable
	return e
}

func (e *DomainError) WithCause(cause error) *DomainError {
	e.Cause = cause
	return e
}

func (e *DomainError) WithFields(fields map[string]string) *DomainError {
	e.Fields = fields
	return e
}

func (e *DomainError) WithRawBody(body []byte) *DomainError {
	e.RawBody = body
	return e
}

func NewDomainError(code int, message, details string) *DomainError {
	return &DomainError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: false,
	}
}

func WrapDomainError(err error, code int, message, details string) *DomainError {
	return &DomainError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: false,
		Cause:     err,
	}
}

// As returns the first DomainError in err's chain.
func As(err error) (*DomainError, bool) {
	var domainErr *DomainError
	if stderrors.As(err, &domainErr) {
		return domainErr, true
	}
	return nil, false
}

func IsDomainError(err error) bool {
	_, ok := As(err)
	return ok
}

// HasCode reports whether err carries a DomainError with the given code.
func HasCode(err error, code int) bool {
	domainErr, ok := As(err)
	return ok && domainErr.Code == code
}

func GetHTTPStatus(err error) int {
	domainErr, ok := As(err)
	if !ok {
		return 500
	}

	switch domainErr.Code {
	case CodeSigningInput, CodeAvailabilityInput:
		return 400
	case CodeValidation:
		return 422
	case CodeCarrierAuth, CodeSessionMissing:
		return 401
	case CodeNotRegistered:
		return 403
	case CodeNotFound:
		return 404
	case CodeConflict:
		return 409
	case CodeRateLimited:
		return 429
	case CodeCarrierFailure, CodeShopifyFailure:
		return 502
	case CodeUnavailable:
		return 503
	default:
		return 500
	}
}
