package access

import (
	"courseoj/pkg/errors"
)

// Decision is the outcome of a single guard predicate.
type Decision struct {
	Allowed bool
	Code    errors.ErrorCode
	Reason  string
}

// Allow returns a passing decision.
func Allow() Decision {
	return Decision{Allowed: true}
}

// Deny returns a failing decision with the code and reason to surface.
func Deny(code errors.ErrorCode, reason string) Decision {
	return Decision{Allowed: false, Code: code, Reason: reason}
}

// Predicate checks one access rule for a caller. Predicates are composed
// into an ordered chain evaluated before a handler runs.
type Predicate func(caller Caller) Decision

// Evaluate runs predicates in order and returns an error for the first
// deny, or nil if every predicate allows.
func Evaluate(caller Caller, predicates ...Predicate) error {
	for _, p := range predicates {
		if d := p(caller); !d.Allowed {
			return errors.New(d.Code).WithMessage(d.Reason)
		}
	}
	return nil
}

// RequireCapability builds a predicate that denies callers whose role
// does not hold the capability.
func RequireCapability(cap Capability) Predicate {
	return func(caller Caller) Decision {
		if !Allows(caller.Role, cap) {
			return Deny(errors.InsufficientPermission, "role "+string(caller.Role)+" lacks "+string(cap))
		}
		return Allow()
	}
}

// RequireVisible builds a predicate enforcing the problem visibility
// policy: elevated roles see everything, members only published problems.
func RequireVisible(published bool) Predicate {
	return func(caller Caller) Decision {
		if caller.Role.Elevated() || published {
			return Allow()
		}
		return Deny(errors.ProblemAccessDenied, "problem is not published")
	}
}
