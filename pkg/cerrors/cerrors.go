package cerrors

import (
	"fmt"

	"github.com/palantir/stacktrace"
)

type ErrorType string

const (
	ErrorTypeNonUserFriendly ErrorType = "NON_USER_FRIENDLY_ERROR"
	ErrorTypeGeneric         ErrorType = "GENERIC_ERROR"
	// ErrorTypeTransient covers expected steady-state conditions (slow sync,
	// reorg propagation timeouts); never counted toward the failure verdict
	ErrorTypeTransient ErrorType = "TRANSIENT_ERROR"
	// ErrorTypeActionFailed covers an individual action's RPC failure; logged
	// with action context, the scheduler proceeds to the next iteration
	ErrorTypeActionFailed ErrorType = "ACTION_FAILED_ERROR"
	// ErrorTypeCritical covers consensus-level failures (tip divergence,
	// residual disconnection, mempool backlog); fails the run verdict
	ErrorTypeCritical ErrorType = "CRITICAL_ERROR"
	// ErrorTypeFatal aborts the chaos loop (bring-up failure, cancellation)
	ErrorTypeFatal           ErrorType = "FATAL_ERROR"
	ErrorTypeTimeout         ErrorType = "TIMEOUT"
	ErrorTypeNodeQuery       ErrorType = "NODE_QUERY_ERROR"
	ErrorTypeTargetSelection ErrorType = "TARGET_SELECTION_ERROR"
)

// Error is the common typed error carried across action boundaries
type Error struct {
	ErrorCode ErrorType
	Phase     string
	Target    string
	Reason    string
}

func (e Error) Error() string {
	switch {
	case e.Phase != "" && e.Target != "":
		return fmt.Sprintf("[%s]: target '%s', %s", e.Phase, e.Target, e.Reason)
	case e.Phase != "":
		return fmt.Sprintf("[%s]: %s", e.Phase, e.Reason)
	case e.Target != "":
		return fmt.Sprintf("target '%s', %s", e.Target, e.Reason)
	default:
		return e.Reason
	}
}

func (e Error) UserFriendly() bool {
	return true
}

func (e Error) ErrorType() ErrorType {
	return e.ErrorCode
}

type userFriendly interface {
	UserFriendly() bool
	ErrorType() ErrorType
}

// IsUserFriendly returns true if err is marked as safe to present in the fail step
func IsUserFriendly(err error) bool {
	ufe, ok := err.(userFriendly)
	return ok && ufe.UserFriendly()
}

// GetErrorType returns the type of error if the error is user-friendly
func GetErrorType(err error) ErrorType {
	if ufe, ok := err.(userFriendly); ok {
		return ufe.ErrorType()
	}
	return ErrorTypeNonUserFriendly
}

// GetRootCauseAndErrorCode unwraps the stacktrace chain down to the root cause
func GetRootCauseAndErrorCode(err error) (string, ErrorType) {
	rootCause := stacktrace.RootCause(err)
	errorType := GetErrorType(rootCause)
	if !IsUserFriendly(rootCause) {
		return err.Error(), errorType
	}
	return rootCause.Error(), errorType
}

// Classify resolves the taxonomy bucket of an arbitrary wrapped error.
// Unknown error values are treated as action-local failures.
func Classify(err error) ErrorType {
	if err == nil {
		return ""
	}
	errorType := GetErrorType(stacktrace.RootCause(err))
	if errorType == ErrorTypeNonUserFriendly {
		return ErrorTypeActionFailed
	}
	return errorType
}

// IsTransient reports whether err resolves to an expected, recoverable condition
func IsTransient(err error) bool {
	t := Classify(err)
	return t == ErrorTypeTransient || t == ErrorTypeTimeout
}

// IsFatal reports whether err must abort the chaos loop
func IsFatal(err error) bool {
	return Classify(err) == ErrorTypeFatal
}

// IsCritical reports whether err fails the run verdict
func IsCritical(err error) bool {
	return Classify(err) == ErrorTypeCritical
}
