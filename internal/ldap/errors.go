package ldap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// Sentinel errors for conditions that are never retried.
var (
	// ErrNotFound indicates the requested principal does not exist.
	ErrNotFound = errors.New("directory: principal not found")

	// ErrMalformedRequest indicates a caller bug (for example an empty
	// username) detected before any network call.
	ErrMalformedRequest = errors.New("directory: malformed request")
)

// Category classifies a directory error.
type Category string

const (
	CategoryConnection     Category = "connection"
	CategoryAuthentication Category = "authentication"
	CategoryPermission     Category = "permission"
	CategoryNotFound       Category = "not_found"
	CategoryConflict       Category = "conflict"
	CategoryValidation     Category = "validation"
	CategoryUnknown        Category = "unknown"
)

// OpError wraps a failed directory operation with its category, the LDAP
// result code when one is available, and a retryability flag. Only
// connection-class failures are retryable; everything else indicates a
// condition that will not improve by contacting another controller.
type OpError struct {
	Op        string
	Endpoint  string
	Category  Category
	Code      uint16
	Retryable bool
	Err       error
}

func (e *OpError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "directory %s failed", e.Op)
	if e.Code > 0 {
		fmt.Fprintf(&b, " (code %d)", e.Code)
	}
	if e.Endpoint != "" {
		fmt.Fprintf(&b, " [%s]", e.Endpoint)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *OpError) Unwrap() error { return e.Err }

// IsRetryable reports whether the failure may succeed against another
// controller.
func (e *OpError) IsRetryable() bool { return e.Retryable }

// wrapOp builds an OpError from an underlying failure, deriving the category
// and retryability from the LDAP result code when present and from the error
// text otherwise.
func wrapOp(op, endpoint string, err error) error {
	if err == nil {
		return nil
	}

	// Sentinels and already-wrapped errors pass through untouched so
	// callers can match them with errors.Is.
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrMalformedRequest) {
		return err
	}
	var oe *OpError
	if errors.As(err, &oe) {
		return err
	}

	wrapped := &OpError{Op: op, Endpoint: endpoint, Err: err}

	var le *ldap.Error
	if errors.As(err, &le) {
		wrapped.Code = le.ResultCode
		wrapped.Category = categorizeCode(le.ResultCode)
		wrapped.Retryable = isCodeRetryable(le.ResultCode)
		return wrapped
	}

	wrapped.Category = categorizeGeneric(err)
	wrapped.Retryable = wrapped.Category == CategoryConnection
	return wrapped
}

// categorizeCode maps an LDAP result code to an error category.
func categorizeCode(code uint16) Category {
	switch code {
	case ldap.LDAPResultInvalidCredentials,
		ldap.LDAPResultInappropriateAuthentication,
		ldap.LDAPResultStrongAuthRequired:
		return CategoryAuthentication

	case ldap.LDAPResultInsufficientAccessRights,
		ldap.LDAPResultUnwillingToPerform:
		return CategoryPermission

	case ldap.LDAPResultNoSuchObject,
		ldap.LDAPResultNoSuchAttribute,
		ldap.LDAPResultUndefinedAttributeType:
		return CategoryNotFound

	case ldap.LDAPResultEntryAlreadyExists,
		ldap.LDAPResultAttributeOrValueExists:
		return CategoryConflict

	case ldap.LDAPResultInvalidAttributeSyntax,
		ldap.LDAPResultConstraintViolation,
		ldap.LDAPResultInvalidDNSyntax,
		ldap.LDAPResultFilterError:
		return CategoryValidation

	case ldap.LDAPResultServerDown,
		ldap.LDAPResultUnavailable,
		ldap.LDAPResultBusy,
		ldap.LDAPResultTimeLimitExceeded,
		ldap.LDAPResultConnectError,
		ldap.LDAPResultProtocolError:
		return CategoryConnection

	default:
		return CategoryUnknown
	}
}

// isCodeRetryable reports whether an LDAP result code indicates a transient
// condition worth another attempt.
func isCodeRetryable(code uint16) bool {
	switch code {
	case ldap.LDAPResultBusy,
		ldap.LDAPResultUnavailable,
		ldap.LDAPResultServerDown,
		ldap.LDAPResultTimeLimitExceeded,
		ldap.LDAPResultConnectError:
		return true
	default:
		return false
	}
}

// categorizeGeneric classifies a non-LDAP error by its text. Network-level
// failures from the dialer arrive here.
func categorizeGeneric(err error) Category {
	s := strings.ToLower(err.Error())
	switch {
	case strings.Contains(s, "connect"),
		strings.Contains(s, "network"),
		strings.Contains(s, "timeout"),
		strings.Contains(s, "broken pipe"),
		strings.Contains(s, "refused"),
		strings.Contains(s, "no such host"),
		strings.Contains(s, "i/o"):
		return CategoryConnection
	case strings.Contains(s, "credentials"),
		strings.Contains(s, "password"):
		return CategoryAuthentication
	case strings.Contains(s, "permission"),
		strings.Contains(s, "access denied"):
		return CategoryPermission
	default:
		return CategoryUnknown
	}
}

// IsRetryable reports whether an error should trigger another attempt
// against a (possibly different) controller. Caller bugs, missing
// principals, and context cancellation are never retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrMalformedRequest) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var oe *OpError
	if errors.As(err, &oe) {
		return oe.Retryable
	}
	var le *ldap.Error
	if errors.As(err, &le) {
		return isCodeRetryable(le.ResultCode)
	}
	return categorizeGeneric(err) == CategoryConnection
}

// ErrorCategory returns the category of an error.
func ErrorCategory(err error) Category {
	if err == nil {
		return CategoryUnknown
	}
	if errors.Is(err, ErrNotFound) {
		return CategoryNotFound
	}
	var oe *OpError
	if errors.As(err, &oe) {
		return oe.Category
	}
	var le *ldap.Error
	if errors.As(err, &le) {
		return categorizeCode(le.ResultCode)
	}
	return categorizeGeneric(err)
}

// UnavailableError reports that every configured attempt against the
// directory failed. It carries the number of attempts made and wraps the
// last underlying cause. Idempotent reads are safe to retry at a higher
// layer; this adapter does not retry again.
type UnavailableError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("directory unavailable: %s failed after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// IsUnavailable reports whether err represents exhausted directory attempts.
func IsUnavailable(err error) bool {
	var ue *UnavailableError
	return errors.As(err, &ue)
}
