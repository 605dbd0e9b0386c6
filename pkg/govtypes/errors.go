// Package govtypes holds the types shared across the policy, analyzer,
// orchestrator, versioning, history and coordinator packages: the error
// taxonomy, Finding, and ValidationReport.
package govtypes

import (
	"errors"
	"fmt"
)

// ErrorKind is the stable classification of a core failure, per the
// error taxonomy (InvalidContract, PolicyCatalogError, ...).
type ErrorKind string

const (
	KindInvalidContract      ErrorKind = "InvalidContract"
	KindPolicyCatalogError   ErrorKind = "PolicyCatalogError"
	KindRuleEvaluationError  ErrorKind = "RuleEvaluationInternal"
	KindSemanticUnavailable  ErrorKind = "SemanticUnavailable"
	KindHistoryConflict      ErrorKind = "HistoryConflict"
	KindHistoryIO            ErrorKind = "HistoryIO"
	KindDeadlineExceeded     ErrorKind = "DeadlineExceeded"
)

// CoreError is the single error type surfaced across package boundaries.
// It carries a stable Kind, a human Message, and dataset/version context
// so callers never have to parse error strings to decide recoverability.
type CoreError struct {
	Kind    ErrorKind
	Message string
	Dataset string
	Version string
	Cause   error
}

func (e *CoreError) Error() string {
	if e.Dataset != "" {
		if e.Version != "" {
			return fmt.Sprintf("%s: %s [dataset=%s version=%s]", e.Kind, e.Message, e.Dataset, e.Version)
		}
		return fmt.Sprintf("%s: %s [dataset=%s]", e.Kind, e.Message, e.Dataset)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *CoreError) Unwrap() error { return e.Cause }

// Is supports errors.Is(err, &CoreError{Kind: KindX}) style matching on Kind alone.
func (e *CoreError) Is(target error) bool {
	t, ok := target.(*CoreError)
	if !ok {
		return false
	}
	if t.Kind == "" {
		return false
	}
	return e.Kind == t.Kind
}

// NewError constructs a CoreError of the given kind.
func NewError(kind ErrorKind, dataset, version, message string, cause error) *CoreError {
	return &CoreError{Kind: kind, Message: message, Dataset: dataset, Version: version, Cause: cause}
}

// IsKind reports whether err is a CoreError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var ce *CoreError
	if !errors.As(err, &ce) {
		return false
	}
	return ce.Kind == kind
}
