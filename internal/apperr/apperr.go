package apperr

import (
	"errors"
	"net/http"
)

// Code identifies a failure class surfaced to API clients.
type Code string

const (
	CodeInputValidation      Code = "INPUT_VALIDATION"
	CodeUnauthenticated      Code = "UNAUTHENTICATED"
	CodeInvalidToken         Code = "INVALID_TOKEN"
	CodeInvalidKeyFormat     Code = "INVALID_KEY_FORMAT"
	CodeKeyNotFound          Code = "KEY_NOT_FOUND"
	CodeNoEmail              Code = "NO_EMAIL"
	CodeProviderUnavailable  Code = "PROVIDER_UNAVAILABLE"
	CodeTenantRequired       Code = "TENANT_REQUIRED"
	CodeForbidden            Code = "FORBIDDEN"
	CodeWalletNotFound       Code = "WALLET_NOT_FOUND"
	CodeAccountNotFound      Code = "ACCOUNT_NOT_FOUND"
	CodeLedgerRejected       Code = "LEDGER_REJECTED"
	CodeLedgerUnavailable    Code = "LEDGER_UNAVAILABLE"
	CodeWalletCreationFailed Code = "WALLET_CREATION_FAILED"
	CodeCipherFailure        Code = "CIPHER_FAILURE"
	CodeOTPInvalid           Code = "OTP_INVALID"
	CodeIdempotencyConflict  Code = "IDEMPOTENCY_CONFLICT"
	CodeInternal             Code = "INTERNAL"
)

var httpStatusMap = map[Code]int{
	CodeInputValidation:      http.StatusBadRequest,
	CodeTenantRequired:       http.StatusBadRequest,
	CodeUnauthenticated:      http.StatusUnauthorized,
	CodeInvalidToken:         http.StatusUnauthorized,
	CodeInvalidKeyFormat:     http.StatusUnauthorized,
	CodeKeyNotFound:          http.StatusUnauthorized,
	CodeOTPInvalid:           http.StatusUnauthorized,
	CodeNoEmail:              http.StatusForbidden,
	CodeForbidden:            http.StatusForbidden,
	CodeIdempotencyConflict:  http.StatusConflict,
	CodeWalletNotFound:       http.StatusNotFound,
	CodeAccountNotFound:      http.StatusBadGateway,
	CodeLedgerRejected:       http.StatusBadGateway,
	CodeLedgerUnavailable:    http.StatusBadGateway,
	CodeWalletCreationFailed: http.StatusBadGateway,
	CodeProviderUnavailable:  http.StatusServiceUnavailable,
	CodeCipherFailure:        http.StatusInternalServerError,
	CodeInternal:             http.StatusInternalServerError,
}

// Error is a classified failure. Message is client-safe; the wrapped cause
// is kept for errors.Is/As and server-side logging only.
type Error struct {
	Code    Code
	Message string
	cause   error
}

// New creates a classified error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates a classified error that keeps cause in the chain.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Status returns the HTTP status for the error's code.
func (e *Error) Status() int {
	return HTTPStatus(e.Code)
}

// FromError extracts a classified error from err's chain.
func FromError(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HTTPStatus maps a code to its HTTP status, defaulting to 500.
func HTTPStatus(code Code) int {
	if status, ok := httpStatusMap[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	appErr, ok := FromError(err)
	return ok && appErr.Code == code
}
