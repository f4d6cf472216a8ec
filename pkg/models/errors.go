package models

import (
	"errors"
	"fmt"
)

// FaultKind categorizes failures crossing component boundaries.
type FaultKind string

// Fault kinds.
const (
	FaultBadSource         FaultKind = "bad_source"
	FaultTransientExternal FaultKind = "transient_external"
	FaultPermanentExternal FaultKind = "permanent_external"
	FaultPolicyDenied      FaultKind = "policy_denied"
	FaultTruncated         FaultKind = "truncated"
	FaultPartialSuccess    FaultKind = "partial_success"
	FaultInternalInvariant FaultKind = "internal_invariant"
)

// Fault wraps an error with its kind and the operation that produced it.
type Fault struct {
	Kind FaultKind
	Op   string
	Err  error
}

func (f *Fault) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("%s: %s", f.Op, f.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", f.Op, f.Kind, f.Err)
}

func (f *Fault) Unwrap() error { return f.Err }

// NewFault wraps err with a kind and operation name.
func NewFault(kind FaultKind, op string, err error) *Fault {
	return &Fault{Kind: kind, Op: op, Err: err}
}

// Faultf creates a fault from a formatted message.
func Faultf(kind FaultKind, op, format string, args ...any) *Fault {
	return &Fault{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the fault kind of err, or "" if err carries none.
func KindOf(err error) FaultKind {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}
	return ""
}

// IsTransient reports whether err should be retried by the caller's
// local retry policy.
func IsTransient(err error) bool {
	return KindOf(err) == FaultTransientExternal
}
