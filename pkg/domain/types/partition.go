package types

import "fmt"

// PartitionKey names the vulnerability attribute every member of one approval
// must share.
type PartitionKey string

const (
	PartitionKeySource        PartitionKey = "source"
	PartitionKeyProjectNumber PartitionKey = "project_number"
)

// IsValid checks if the partition key is supported
func (k PartitionKey) IsValid() bool {
	switch k {
	case PartitionKeySource, PartitionKeyProjectNumber:
		return true
	default:
		return false
	}
}

// String returns the string representation of the partition key
func (k PartitionKey) String() string {
	return string(k)
}

// ParsePartitionKey parses a string into a PartitionKey
func ParsePartitionKey(s string) (PartitionKey, error) {
	k := PartitionKey(s)
	if !k.IsValid() {
		return "", fmt.Errorf("invalid partition key: %s", s)
	}
	return k, nil
}

// StatusDisplay selects how approval statuses are rendered to clients
type StatusDisplay string

const (
	StatusDisplayLabel StatusDisplay = "label"
	StatusDisplayCode  StatusDisplay = "code"
)

// IsValid checks if the status display is supported
func (d StatusDisplay) IsValid() bool {
	return d == StatusDisplayLabel || d == StatusDisplayCode
}
