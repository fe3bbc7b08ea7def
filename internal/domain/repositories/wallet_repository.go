package repositories

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/Zubair-mohamed/myclinic-backend/internal/domain/entities"
)

// WalletRepository defines the interface for wallet and ledger storage
type WalletRepository interface {
	// GetByUserID retrieves a user's wallet, or nil if none exists yet
	GetByUserID(ctx context.Context, userID string) (*entities.Wallet, error)

	// GetByUserIDForUpdate retrieves the wallet row locked for the duration
	// of the unit of work, serializing concurrent balance mutations.
	GetByUserIDForUpdate(ctx context.Context, uow UnitOfWork, userID string) (*entities.Wallet, error)

	// Create inserts a lazily-created wallet
	Create(ctx context.Context, uow UnitOfWork, wallet *entities.Wallet) error

	// UpdateBalance persists a new balance for the wallet
	UpdateBalance(ctx context.Context, uow UnitOfWork, walletID string, balance decimal.Decimal) error

	// CreateTransaction inserts an immutable ledger entry
	CreateTransaction(ctx context.Context, uow UnitOfWork, txn *entities.Transaction) error

	// ListTransactions retrieves a user's ledger entries, newest first
	ListTransactions(ctx context.Context, userID string, filter TransactionFilter) ([]*entities.Transaction, error)
}

// TransactionFilter defines filters for listing ledger entries
type TransactionFilter struct {
	Category entities.TransactionCategory
	Limit    int
	Offset   int
}
