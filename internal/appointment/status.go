package appointment

import (
	"fmt"
	"strings"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// transitions is the complete lifecycle. Anything not listed is illegal.
var transitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusCompleted, StatusFailed},
	StatusFailed:     {StatusPending},
	StatusCompleted:  {},
	StatusCancelled:  {},
}

var descriptions = map[Status]string{
	StatusPending:    "appointment waiting to be processed",
	StatusProcessing: "appointment being processed by its country pipeline",
	StatusCompleted:  "appointment confirmed",
	StatusFailed:     "appointment processing failed",
	StatusCancelled:  "appointment cancelled",
}

// ParseStatus converts a stored or wire value into a Status.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := transitions[s]; !ok {
		return "", &BusinessRuleError{
			Rule:    "InvalidStatus",
			Message: fmt.Sprintf("status %q is not valid", raw),
			Cause:   ErrInvalidStatus,
		}
	}
	return s, nil
}

// CanTransition is a pure lookup in the transition table.
func CanTransition(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// TransitionTo returns the target status if the edge exists.
func (s Status) TransitionTo(to Status) (Status, error) {
	if !CanTransition(s, to) {
		allowed := make([]string, 0, len(transitions[s]))
		for _, a := range transitions[s] {
			allowed = append(allowed, string(a))
		}
		list := strings.Join(allowed, ", ")
		if list == "" {
			list = "none"
		}
		return s, &BusinessRuleError{
			Rule:    "InvalidStateTransition",
			Message: fmt.Sprintf("cannot change status from %q to %q (allowed: %s)", s, to, list),
			Cause:   ErrInvalidStateTransition,
		}
	}
	return to, nil
}

// IsFinal reports whether no transition leaves s.
func (s Status) IsFinal() bool {
	return len(transitions[s]) == 0
}

func (s Status) Description() string {
	return descriptions[s]
}

func (s Status) String() string {
	return string(s)
}
