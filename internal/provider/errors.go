package provider

import "fmt"

// Code is a machine-readable provider error code.
type Code string

const (
	CodeNotInitialized    Code = "NOT_INITIALIZED"
	CodeUserExists        Code = "USER_EXISTS"
	CodeRoleNotFound      Code = "ROLE_NOT_FOUND"
	CodeUserCreateFailed  Code = "USER_CREATION_FAILED"
	CodeUserDropFailed    Code = "USER_DROP_FAILED"
	CodeUserListFailed    Code = "USER_LIST_FAILED"
	CodeCleanupFailed     Code = "CLEANUP_FAILED"
	CodeProviderNotFound  Code = "PROVIDER_NOT_FOUND"
	CodeProviderInitError Code = "PROVIDER_INIT_ERROR"
	CodeRolePackError     Code = "ROLE_PACK_ERROR"
	CodeNotImplemented    Code = "NOT_IMPLEMENTED"
	CodeInternal          Code = "INTERNAL_ERROR"
)

// Error is the typed error every provider operation raises on failure.
// It carries a stable code, a human message, a retryability flag, and the
// engine tag, so callers can decide retry policy without parsing
// engine-specific error text.
type Error struct {
	Code      Code
	Message   string
	Retryable bool
	Engine    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("[%s/%s] %s", e.Engine, e.Code, e.Message)
}

// NewError builds a provider Error.
func NewError(engine string, code Code, retryable bool, format string, args ...interface{}) *Error {
	return &Error{
		Engine:    engine,
		Code:      code,
		Retryable: retryable,
		Message:   fmt.Sprintf(format, args...),
	}
}
