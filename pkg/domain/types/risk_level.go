package types

import "fmt"

// RiskLevel is the severity of a vulnerability
type RiskLevel string

const (
	RiskLevelCritical RiskLevel = "critical"
	RiskLevelHigh     RiskLevel = "high"
	RiskLevelMedium   RiskLevel = "medium"
	RiskLevelLow      RiskLevel = "low"
)

// AllRiskLevels returns all risk levels from most to least severe
func AllRiskLevels() []RiskLevel {
	return []RiskLevel{
		RiskLevelCritical,
		RiskLevelHigh,
		RiskLevelMedium,
		RiskLevelLow,
	}
}

// IsValid checks if the risk level is valid
func (r RiskLevel) IsValid() bool {
	return r.Severity() > 0
}

// Severity orders risk levels; higher is more severe, 0 for unknown values.
func (r RiskLevel) Severity() int {
	switch r {
	case RiskLevelCritical:
		return 4
	case RiskLevelHigh:
		return 3
	case RiskLevelMedium:
		return 2
	case RiskLevelLow:
		return 1
	default:
		return 0
	}
}

// String returns the string representation of the risk level
func (r RiskLevel) String() string {
	return string(r)
}

// ParseRiskLevel parses a string into a RiskLevel
func ParseRiskLevel(s string) (RiskLevel, error) {
	level := RiskLevel(s)
	if !level.IsValid() {
		return "", fmt.Errorf("invalid risk level: %s", s)
	}
	return level, nil
}
