package repositories

import "context"

// UnitOfWork is an opaque handle to an in-flight atomic unit of work.
// Repository mutations that receive a non-nil handle join it; the caller
// (via TxManager) controls commit and rollback. A nil handle means the
// operation runs against the base connection in its own implicit unit.
type UnitOfWork interface{}

// TxManager opens atomic units of work. The function either returns nil and
// the unit commits, or returns an error and every mutation inside rolls back.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(uow UnitOfWork) error) error
}
