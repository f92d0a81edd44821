package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	_ "embed"
	"errors"

	"github.com/lib/pq"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/vulnapproval/pkg/domain/interfaces"
)

//go:embed schema.sql
var schemaSQL string

// Postgres is a record store on PostgreSQL. Rows touched by a transaction are
// locked with SELECT ... FOR UPDATE until commit.
type Postgres struct {
	db *sql.DB
}

var _ interfaces.Repository = &Postgres{}

// New opens a connection pool for dsn and verifies it
func New(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open postgres")
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, goerr.Wrap(classify(err), "failed to connect to postgres")
	}

	return &Postgres{db: db}, nil
}

// NewWithDB wraps an existing pool
func NewWithDB(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Migrate creates the tables and indexes if they do not exist
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schemaSQL); err != nil {
		return goerr.Wrap(classify(err), "failed to apply schema")
	}
	return nil
}

// Schema returns the DDL applied by Migrate
func Schema() string {
	return schemaSQL
}

func (p *Postgres) Vulnerability() interfaces.VulnerabilityRepository {
	return &vulnerabilityRepository{db: p.db}
}

func (p *Postgres) Approval() interfaces.ApprovalRepository {
	return &approvalRepository{db: p.db}
}

func (p *Postgres) AuditEntry() interfaces.AuditEntryRepository {
	return &auditEntryRepository{db: p.db}
}

func (p *Postgres) Close() error {
	if p.db == nil {
		return nil
	}
	return p.db.Close()
}

func (p *Postgres) RunTransaction(ctx context.Context, fn interfaces.TxFunc) error {
	sqlTx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return goerr.Wrap(classify(err), "failed to begin transaction")
	}
	defer func() { _ = sqlTx.Rollback() }()

	if err := fn(ctx, &transaction{tx: sqlTx}); err != nil {
		return classify(err)
	}

	if err := sqlTx.Commit(); err != nil {
		err = classify(err)
		if !interfaces.IsTransient(err) {
			err = goerr.Wrap(interfaces.ErrTransactionFailed, "failed to commit transaction",
				goerr.V("cause", err.Error()))
		}
		return err
	}
	return nil
}

// classify maps driver failures onto store error kinds. Errors that are not
// driver failures pass through unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == "40001", pqErr.Code == "40P01":
			return goerr.Wrap(interfaces.ErrTransactionFailed, pqErr.Message,
				goerr.V("pq_code", string(pqErr.Code)))
		case pqErr.Code == "23505":
			return goerr.Wrap(interfaces.ErrAlreadyExists, pqErr.Message,
				goerr.V("constraint", pqErr.Constraint))
		case pqErr.Code.Class() == "08", pqErr.Code.Class() == "57":
			return goerr.Wrap(interfaces.ErrStoreUnavailable, pqErr.Message,
				goerr.V("pq_code", string(pqErr.Code)))
		}
		return err
	}

	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return goerr.Wrap(interfaces.ErrStoreUnavailable, err.Error())
	}
	return err
}
