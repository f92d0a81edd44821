package usecase

import (
	"time"

	"github.com/secmon-lab/vulnapproval/pkg/domain/interfaces"
	"github.com/secmon-lab/vulnapproval/pkg/domain/types"
	"github.com/secmon-lab/vulnapproval/pkg/service/cache"
)

// DefaultAutoCloseNote is appended to an approval's comments when its last member is removed
const DefaultAutoCloseNote = "all vulnerabilities disposed, approval closed automatically"

type UseCases struct {
	repo          interfaces.Repository
	cache         interfaces.ApprovalCache
	clock         func() time.Time
	partitionKey  types.PartitionKey
	retry         RetryPolicy
	autoCloseNote string

	Approval      *ApprovalUseCase
	Vulnerability *VulnerabilityUseCase
}

type Option func(*UseCases)

// WithCache sets the read-side approval cache. Without it reads always hit the store.
func WithCache(c interfaces.ApprovalCache) Option {
	return func(uc *UseCases) {
		uc.cache = c
	}
}

// WithClock replaces time.Now, mainly for tests
func WithClock(clock func() time.Time) Option {
	return func(uc *UseCases) {
		uc.clock = clock
	}
}

// WithPartitionKey selects the vulnerability attribute all members of an approval must share
func WithPartitionKey(key types.PartitionKey) Option {
	return func(uc *UseCases) {
		uc.partitionKey = key
	}
}

// WithRetryPolicy sets how transient store failures are retried
func WithRetryPolicy(p RetryPolicy) Option {
	return func(uc *UseCases) {
		uc.retry = p
	}
}

// WithAutoCloseNote overrides the comment appended on auto-close
func WithAutoCloseNote(note string) Option {
	return func(uc *UseCases) {
		uc.autoCloseNote = note
	}
}

func New(repo interfaces.Repository, opts ...Option) *UseCases {
	uc := &UseCases{
		repo:          repo,
		cache:         cache.Nop{},
		clock:         time.Now,
		partitionKey:  types.PartitionKeySource,
		retry:         DefaultRetryPolicy(),
		autoCloseNote: DefaultAutoCloseNote,
	}

	for _, opt := range opts {
		opt(uc)
	}

	runner := newTxRunner(repo, uc.cache, uc.retry)
	uc.Approval = &ApprovalUseCase{
		repo:          repo,
		cache:         uc.cache,
		tx:            runner,
		audit:         newAuditWriter(uc.clock),
		partitionKey:  uc.partitionKey,
		autoCloseNote: uc.autoCloseNote,
	}
	uc.Vulnerability = &VulnerabilityUseCase{repo: repo}

	return uc
}
