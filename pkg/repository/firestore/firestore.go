package firestore

import (
	"context"
	"errors"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/vulnapproval/pkg/domain/interfaces"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type Firestore struct {
	client           *firestore.Client
	collectionPrefix string
	maxAttempts      int
}

var _ interfaces.Repository = &Firestore{}

type Option func(*Firestore)

func WithCollectionPrefix(prefix string) Option {
	return func(f *Firestore) {
		f.collectionPrefix = prefix
	}
}

// WithMaxAttempts sets how many times the client itself retries an aborted transaction
func WithMaxAttempts(n int) Option {
	return func(f *Firestore) {
		f.maxAttempts = n
	}
}

func New(ctx context.Context, projectID, databaseID string, opts ...Option) (*Firestore, error) {
	if databaseID == "" {
		databaseID = firestore.DefaultDatabaseID
	}

	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("projectID", projectID),
			goerr.V("databaseID", databaseID))
	}

	f := &Firestore{client: client}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

func (f *Firestore) Vulnerability() interfaces.VulnerabilityRepository {
	return &vulnerabilityRepository{store: f}
}

func (f *Firestore) Approval() interfaces.ApprovalRepository {
	return &approvalRepository{store: f}
}

func (f *Firestore) AuditEntry() interfaces.AuditEntryRepository {
	return &auditEntryRepository{store: f}
}

func (f *Firestore) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

// Collection names before prefixing
const (
	CollectionVulnerabilities = "vulnerabilities"
	CollectionApprovals       = "approvals"
	CollectionAuditEntries    = "audit_entries"
)

// CollectionName applies prefix to a top level collection name
func CollectionName(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "_" + name
}

func (f *Firestore) collection(name string) *firestore.CollectionRef {
	return f.client.Collection(CollectionName(f.collectionPrefix, name))
}

func (f *Firestore) vulnerabilities() *firestore.CollectionRef {
	return f.collection(CollectionVulnerabilities)
}

func (f *Firestore) approvals() *firestore.CollectionRef {
	return f.collection(CollectionApprovals)
}

// auditEntries returns the subcollection path: approvals/{approvalID}/audit_entries
func (f *Firestore) auditEntries(approvalID string) *firestore.CollectionRef {
	return f.approvals().Doc(approvalID).Collection(CollectionAuditEntries)
}

func (f *Firestore) RunTransaction(ctx context.Context, fn interfaces.TxFunc) error {
	var opts []firestore.TransactionOption
	if f.maxAttempts > 0 {
		opts = append(opts, firestore.MaxAttempts(f.maxAttempts))
	}

	err := f.client.RunTransaction(ctx, func(ctx context.Context, ftx *firestore.Transaction) error {
		return fn(ctx, newTransaction(f, ftx))
	}, opts...)
	if err != nil {
		return classify(err)
	}
	return nil
}

// classify maps gRPC failures onto store error kinds. Errors returned by the
// transaction body pass through unchanged.
func classify(err error) error {
	if errors.Is(err, interfaces.ErrNotFound) || errors.Is(err, interfaces.ErrAlreadyExists) {
		return err
	}

	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
		return goerr.Wrap(interfaces.ErrStoreUnavailable, err.Error())
	case codes.Aborted, codes.FailedPrecondition:
		return goerr.Wrap(interfaces.ErrTransactionFailed, err.Error())
	case codes.AlreadyExists:
		return goerr.Wrap(interfaces.ErrAlreadyExists, err.Error())
	default:
		return err
	}
}
