package cache

import (
	"context"
	"sync"
	"time"

	"github.com/secmon-lab/vulnapproval/pkg/domain/interfaces"
	"github.com/secmon-lab/vulnapproval/pkg/domain/model"
)

// Memory is a process-local approval detail cache with a fixed TTL
type Memory struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[model.ApprovalID]memoryEntry
	gens    map[model.ApprovalID]uint64
}

type memoryEntry struct {
	detail    *model.ApprovalDetail
	expiresAt time.Time
}

var _ interfaces.ApprovalCache = &Memory{}

func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[model.ApprovalID]memoryEntry),
		gens:    make(map[model.ApprovalID]uint64),
	}
}

func (c *Memory) Get(ctx context.Context, id model.ApprovalID) (*model.ApprovalDetail, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	if !ok {
		return nil, nil
	}
	if c.ttl > 0 && !c.now().Before(e.expiresAt) {
		delete(c.entries, id)
		return nil, nil
	}
	return copyDetail(e.detail), nil
}

func (c *Memory) Generation(ctx context.Context, id model.ApprovalID) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[id], nil
}

func (c *Memory) Put(ctx context.Context, detail *model.ApprovalDetail, gen uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gens[detail.Approval.ID] != gen {
		return nil
	}
	c.entries[detail.Approval.ID] = memoryEntry{
		detail:    copyDetail(detail),
		expiresAt: c.now().Add(c.ttl),
	}
	return nil
}

func (c *Memory) Invalidate(ctx context.Context, ids ...model.ApprovalID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, id := range ids {
		c.gens[id]++
		delete(c.entries, id)
	}
	return nil
}

func copyDetail(d *model.ApprovalDetail) *model.ApprovalDetail {
	out := &model.ApprovalDetail{
		Approval:   d.Approval.Clone(),
		Members:    make([]*model.Vulnerability, len(d.Members)),
		AuditTrail: make([]*model.AuditEntry, len(d.AuditTrail)),
	}
	for i, v := range d.Members {
		out.Members[i] = v.Clone()
	}
	for i, e := range d.AuditTrail {
		copied := *e
		out.AuditTrail[i] = &copied
	}
	return out
}

// Nop disables caching
type Nop struct{}

var _ interfaces.ApprovalCache = Nop{}

func (Nop) Get(ctx context.Context, id model.ApprovalID) (*model.ApprovalDetail, error) {
	return nil, nil
}

func (Nop) Generation(ctx context.Context, id model.ApprovalID) (uint64, error) {
	return 0, nil
}

func (Nop) Put(ctx context.Context, detail *model.ApprovalDetail, gen uint64) error {
	return nil
}

func (Nop) Invalidate(ctx context.Context, ids ...model.ApprovalID) error {
	return nil
}
