package memory

import (
	"sync"

	"github.com/secmon-lab/vulnapproval/pkg/domain/interfaces"
	"github.com/secmon-lab/vulnapproval/pkg/domain/model"
)

// Fault operations passed to a FaultFunc
const (
	OpPutApproval      = "put_approval"
	OpPutVulnerability = "put_vulnerability"
	OpAppendAuditEntry = "append_audit_entry"
	OpCommit           = "commit"
)

// FaultFunc is consulted before each transactional write and before commit.
// A non-nil return aborts the transaction with that error.
type FaultFunc func(op, key string) error

// Option configures Memory
type Option func(*Memory)

// WithFault installs a fault injection hook
func WithFault(f FaultFunc) Option {
	return func(m *Memory) {
		m.fault = f
	}
}

// Memory is an in-process record store. State lives in the instance; two
// instances never share data.
type Memory struct {
	mu              sync.RWMutex
	vulnerabilities map[model.VulnerabilityID]*model.Vulnerability
	approvals       map[model.ApprovalID]*model.Approval
	auditEntries    map[model.ApprovalID][]*model.AuditEntry
	auditIDs        map[model.AuditEntryID]struct{}

	locks *keyLocks
	fault FaultFunc
}

var _ interfaces.Repository = &Memory{}

func New(opts ...Option) *Memory {
	m := &Memory{
		vulnerabilities: make(map[model.VulnerabilityID]*model.Vulnerability),
		approvals:       make(map[model.ApprovalID]*model.Approval),
		auditEntries:    make(map[model.ApprovalID][]*model.AuditEntry),
		auditIDs:        make(map[model.AuditEntryID]struct{}),
		locks:           newKeyLocks(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) Vulnerability() interfaces.VulnerabilityRepository {
	return &vulnerabilityRepository{store: m}
}

func (m *Memory) Approval() interfaces.ApprovalRepository {
	return &approvalRepository{store: m}
}

func (m *Memory) AuditEntry() interfaces.AuditEntryRepository {
	return &auditEntryRepository{store: m}
}

func (m *Memory) Close() error {
	return nil
}

func (m *Memory) inject(op, key string) error {
	if m.fault == nil {
		return nil
	}
	return m.fault(op, key)
}
