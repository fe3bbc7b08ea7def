package database

import (
	"context"
	"database/sql"

	"github.com/Zubair-mohamed/myclinic-backend/internal/domain/repositories"
	"github.com/Zubair-mohamed/myclinic-backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/Zubair-mohamed/myclinic-backend/pkg/errors"
	"github.com/lib/pq"
)

// execer is the statement target shared by *sql.DB and *sql.Tx
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// unitOfWork is the concrete handle handed out by the TxManager
type unitOfWork struct {
	tx *sql.Tx
}

// TxManager opens atomic units of work on the PostgreSQL connection
type TxManager struct {
	client *postgres.Client
}

// NewTxManager creates a new transaction manager
func NewTxManager(client *postgres.Client) repositories.TxManager {
	return &TxManager{client: client}
}

// WithinTx runs fn inside a transaction. Any error from fn rolls the whole
// unit back; a panic rolls back and re-panics.
func (m *TxManager) WithinTx(ctx context.Context, fn func(uow repositories.UnitOfWork) error) error {
	tx, err := m.client.BeginTx(ctx)
	if err != nil {
		return apperrors.NewInternalError("failed to begin transaction", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&unitOfWork{tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewInternalError("failed to commit transaction", err)
	}
	return nil
}

// execerFrom returns the statement target for a unit of work, falling back
// to the base connection when uow is nil.
func execerFrom(client *postgres.Client, uow repositories.UnitOfWork) execer {
	if u, ok := uow.(*unitOfWork); ok && u != nil && u.tx != nil {
		return u.tx
	}
	return client.DB()
}

// isUniqueViolation reports whether err is a PostgreSQL unique constraint
// violation, optionally on a specific constraint name.
func isUniqueViolation(err error, constraint string) bool {
	pqErr, ok := err.(*pq.Error)
	if !ok {
		return false
	}
	if pqErr.Code != "23505" {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}
