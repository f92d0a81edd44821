package types

import "fmt"

// Priority of an approval
type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// IsValid checks if the priority is valid
func (p Priority) IsValid() bool {
	switch p {
	case PriorityUrgent, PriorityNormal, PriorityLow:
		return true
	default:
		return false
	}
}

// Normalize treats an empty priority as normal.
func (p Priority) Normalize() Priority {
	if p == "" {
		return PriorityNormal
	}
	return p
}

// String returns the string representation of the priority
func (p Priority) String() string {
	return string(p)
}

// ParsePriority parses a string into a Priority. Empty input yields PriorityNormal.
func ParsePriority(s string) (Priority, error) {
	p := Priority(s).Normalize()
	if !p.IsValid() {
		return "", fmt.Errorf("invalid priority: %s", s)
	}
	return p, nil
}
