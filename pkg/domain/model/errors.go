package model

import "github.com/m-mizutani/goerr/v2"

var (
	ErrInvalidRecord = goerr.New("invalid record")
)

// Context keys for error values
const (
	ApprovalIDKey       = "approval_id"
	VulnerabilityIDKey  = "vulnerability_id"
	VulnerabilityIDsKey = "vulnerability_ids"
)
