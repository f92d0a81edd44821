package interfaces

import (
	"strings"

	"github.com/secmon-lab/vulnapproval/pkg/domain/model"
	"github.com/secmon-lab/vulnapproval/pkg/domain/types"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Page is a 1-based page request
type Page struct {
	Number int
	Size   int
}

// Normalize fills defaults and clamps the page size
func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = DefaultPage
	}
	if p.Size < 1 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

// Offset returns the number of records to skip
func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

// Slice returns the page window of items
func Slice[T any](items []T, p Page) []T {
	start := p.Offset()
	if start >= len(items) {
		return nil
	}
	end := min(start+p.Size, len(items))
	return items[start:end]
}

// ListVulnerabilityOption is a functional option for filtering vulnerabilities in List
type ListVulnerabilityOption func(*listVulnerabilityConfig)

type listVulnerabilityConfig struct {
	search         string
	riskLevel      *types.RiskLevel
	status         *types.VulnerabilityStatus
	unassignedOnly bool
	page           Page
}

// WithSearch filters by a case-insensitive substring of name, source or description
func WithSearch(s string) ListVulnerabilityOption {
	return func(c *listVulnerabilityConfig) {
		c.search = strings.TrimSpace(s)
	}
}

// WithRiskLevel filters vulnerabilities by risk level
func WithRiskLevel(level types.RiskLevel) ListVulnerabilityOption {
	return func(c *listVulnerabilityConfig) {
		c.riskLevel = &level
	}
}

// WithVulnerabilityStatus filters vulnerabilities by display status
func WithVulnerabilityStatus(status types.VulnerabilityStatus) ListVulnerabilityOption {
	return func(c *listVulnerabilityConfig) {
		c.status = &status
	}
}

// WithUnassignedOnly keeps only vulnerabilities not attached to any approval
func WithUnassignedOnly() ListVulnerabilityOption {
	return func(c *listVulnerabilityConfig) {
		c.unassignedOnly = true
	}
}

// WithVulnerabilityPage selects the page to return
func WithVulnerabilityPage(p Page) ListVulnerabilityOption {
	return func(c *listVulnerabilityConfig) {
		c.page = p
	}
}

// BuildListVulnerabilityConfig builds a listVulnerabilityConfig from options
func BuildListVulnerabilityConfig(opts ...ListVulnerabilityOption) *listVulnerabilityConfig {
	cfg := &listVulnerabilityConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	cfg.page = cfg.page.Normalize()
	return cfg
}

// Search returns the search text, or empty if not set
func (c *listVulnerabilityConfig) Search() string {
	return c.search
}

// RiskLevel returns the risk level filter value, or nil if not set
func (c *listVulnerabilityConfig) RiskLevel() *types.RiskLevel {
	return c.riskLevel
}

// Status returns the status filter value, or nil if not set
func (c *listVulnerabilityConfig) Status() *types.VulnerabilityStatus {
	return c.status
}

// UnassignedOnly reports whether assigned vulnerabilities are excluded
func (c *listVulnerabilityConfig) UnassignedOnly() bool {
	return c.unassignedOnly
}

// Page returns the normalized page request
func (c *listVulnerabilityConfig) Page() Page {
	return c.page
}

// Match applies every filter except paging to v. Stores that cannot express a
// filter natively use it after fetching.
func (c *listVulnerabilityConfig) Match(v *model.Vulnerability) bool {
	if c.riskLevel != nil && v.RiskLevel != *c.riskLevel {
		return false
	}
	if c.status != nil && v.Status != *c.status {
		return false
	}
	if c.unassignedOnly && v.Assigned() {
		return false
	}
	if c.search != "" {
		q := strings.ToLower(c.search)
		if !strings.Contains(strings.ToLower(v.Name), q) &&
			!strings.Contains(strings.ToLower(v.Source), q) &&
			!strings.Contains(strings.ToLower(v.Description), q) {
			return false
		}
	}
	return true
}

// ListApprovalOption is a functional option for filtering approvals in List
type ListApprovalOption func(*listApprovalConfig)

type listApprovalConfig struct {
	status *types.ApprovalStatus
	page   Page
}

// WithApprovalStatus filters approvals by status
func WithApprovalStatus(status types.ApprovalStatus) ListApprovalOption {
	return func(c *listApprovalConfig) {
		c.status = &status
	}
}

// WithApprovalPage selects the page to return
func WithApprovalPage(p Page) ListApprovalOption {
	return func(c *listApprovalConfig) {
		c.page = p
	}
}

// BuildListApprovalConfig builds a listApprovalConfig from options
func BuildListApprovalConfig(opts ...ListApprovalOption) *listApprovalConfig {
	cfg := &listApprovalConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	cfg.page = cfg.page.Normalize()
	return cfg
}

// Status returns the status filter value, or nil if not set
func (c *listApprovalConfig) Status() *types.ApprovalStatus {
	return c.status
}

// Page returns the normalized page request
func (c *listApprovalConfig) Page() Page {
	return c.page
}

// Match applies the status filter to a
func (c *listApprovalConfig) Match(a *model.Approval) bool {
	return c.status == nil || a.Status == *c.status
}
