package appointment

import (
	"errors"
	"fmt"
	"strings"
)

const (
	CodeValidation     = "VALIDATION_ERROR"
	CodeNotFound       = "NOT_FOUND"
	CodeBusinessRule   = "BUSINESS_RULE_VIOLATION"
	CodeInfrastructure = "INFRASTRUCTURE_ERROR"
)

var (
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrCountryMismatch        = errors.New("message country does not match processor country")
	ErrInvalidStatus          = errors.New("invalid appointment status")
)

// ValidationError reports bad input. Never retried.
type ValidationError struct {
	Field       string
	Constraints []string
	Message     string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Code() string { return CodeValidation }

func newValidationError(field, message string, constraints ...string) *ValidationError {
	return &ValidationError{Field: field, Constraints: constraints, Message: message}
}

// NotFoundError reports an unknown resource id.
type NotFoundError struct {
	ResourceType string
	ResourceID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with id %q not found", e.ResourceType, e.ResourceID)
}

func (e *NotFoundError) Code() string { return CodeNotFound }

// BusinessRuleError reports a violated domain rule such as an illegal state
// transition. Cause, when set, is a sentinel usable with errors.Is.
type BusinessRuleError struct {
	Rule    string
	Message string
	Cause   error
}

func (e *BusinessRuleError) Error() string {
	return e.Message
}

func (e *BusinessRuleError) Unwrap() error { return e.Cause }

func (e *BusinessRuleError) Code() string { return CodeBusinessRule }

// InfrastructureError reports an unavailable store or messaging service.
// Stages always propagate it so the delivery mechanism redelivers.
type InfrastructureError struct {
	Service string
	Op      string
	Err     error
}

func (e *InfrastructureError) Error() string {
	return fmt.Sprintf("%s: %s: %v", strings.ToLower(e.Service), e.Op, e.Err)
}

func (e *InfrastructureError) Unwrap() error { return e.Err }

func (e *InfrastructureError) Code() string { return CodeInfrastructure }

// Infra wraps err as an InfrastructureError unless it already carries a
// domain error, which is returned unchanged.
func Infra(service, op string, err error) error {
	if err == nil {
		return nil
	}
	if IsDomainError(err) {
		return err
	}
	return &InfrastructureError{Service: service, Op: op, Err: err}
}

// IsDomainError reports whether err is one of the typed errors of this package.
func IsDomainError(err error) bool {
	var (
		ve *ValidationError
		nf *NotFoundError
		br *BusinessRuleError
		ie *InfrastructureError
	)
	return errors.As(err, &ve) || errors.As(err, &nf) || errors.As(err, &br) || errors.As(err, &ie)
}

// IsPermanent reports whether redelivering the message that produced err can
// never succeed.
func IsPermanent(err error) bool {
	var (
		ve *ValidationError
		br *BusinessRuleError
	)
	return errors.As(err, &ve) || errors.As(err, &br)
}

// ErrorCode returns the taxonomy code for err, or "" if err is not typed.
func ErrorCode(err error) string {
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		return coded.Code()
	}
	return ""
}
