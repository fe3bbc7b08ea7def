package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/Zubair-mohamed/myclinic-backend/internal/domain/entities"
	"github.com/Zubair-mohamed/myclinic-backend/internal/domain/repositories"
	"github.com/Zubair-mohamed/myclinic-backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/Zubair-mohamed/myclinic-backend/pkg/errors"
	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/shopspring/decimal"
)

// WalletAdapter implements the WalletRepository interface
type WalletAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewWalletAdapter creates a new wallet adapter
func NewWalletAdapter(client *postgres.Client) repositories.WalletRepository {
	return &WalletAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

const walletSelect = `
	SELECT id, user_id, balance, currency, created_at, updated_at
	FROM wallets WHERE user_id = $1`

// GetByUserID retrieves a user's wallet, or nil if none exists yet
func (a *WalletAdapter) GetByUserID(ctx context.Context, userID string) (*entities.Wallet, error) {
	wallet, err := scanWalletRow(a.client.DB().QueryRowContext(ctx, walletSelect, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get wallet", err)
	}
	return wallet, nil
}

// GetByUserIDForUpdate retrieves the wallet row locked until the unit of
// work commits or rolls back. All balance mutations funnel through here.
func (a *WalletAdapter) GetByUserIDForUpdate(ctx context.Context, uow repositories.UnitOfWork, userID string) (*entities.Wallet, error) {
	wallet, err := scanWalletRow(execerFrom(a.client, uow).QueryRowContext(ctx, walletSelect+" FOR UPDATE", userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to lock wallet", err)
	}
	return wallet, nil
}

// Create inserts a lazily-created wallet
func (a *WalletAdapter) Create(ctx context.Context, uow repositories.UnitOfWork, wallet *entities.Wallet) error {
	record := goqu.Record{
		"id":         wallet.ID,
		"user_id":    wallet.UserID,
		"balance":    wallet.Balance,
		"currency":   wallet.Currency,
		"created_at": wallet.CreatedAt,
		"updated_at": wallet.UpdatedAt,
	}

	query, args, err := a.db.Insert("wallets").Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	_, err = execerFrom(a.client, uow).ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err, "") {
			return apperrors.NewConflictError("wallet already exists for user")
		}
		return apperrors.NewInternalError("failed to create wallet", err)
	}

	return nil
}

// UpdateBalance persists a new balance for the wallet
func (a *WalletAdapter) UpdateBalance(ctx context.Context, uow repositories.UnitOfWork, walletID string, balance decimal.Decimal) error {
	query, args, err := a.db.Update("wallets").
		Set(goqu.Record{
			"balance":    balance,
			"updated_at": time.Now(),
		}).
		Where(goqu.Ex{"id": walletID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build balance update query", err)
	}

	result, err := execerFrom(a.client, uow).ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update wallet balance", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError("wallet not found")
	}

	return nil
}

// CreateTransaction inserts an immutable ledger entry
func (a *WalletAdapter) CreateTransaction(ctx context.Context, uow repositories.UnitOfWork, txn *entities.Transaction) error {
	record := goqu.Record{
		"id":           txn.ID,
		"wallet_id":    txn.WalletID,
		"user_id":      txn.UserID,
		"hospital_id":  txn.HospitalID,
		"direction":    txn.Direction,
		"amount":       txn.Amount,
		"category":     txn.Category,
		"status":       txn.Status,
		"description":  txn.Description,
		"reference_id": txn.ReferenceID,
		"created_at":   txn.CreatedAt,
	}

	query, args, err := a.db.Insert("transactions").Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := execerFrom(a.client, uow).ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to create transaction", err)
	}

	return nil
}

// ListTransactions retrieves a user's ledger entries, newest first
func (a *WalletAdapter) ListTransactions(ctx context.Context, userID string, filter repositories.TransactionFilter) ([]*entities.Transaction, error) {
	ds := a.db.Select(
		"id", "wallet_id", "user_id", "hospital_id", "direction", "amount",
		"category", "status", "description", "reference_id", "created_at",
	).From("transactions").
		Where(goqu.Ex{"user_id": userID})

	if filter.Category != "" {
		ds = ds.Where(goqu.Ex{"category": filter.Category})
	}

	ds = ds.Order(goqu.I("created_at").Desc())

	if filter.Limit > 0 {
		ds = ds.Limit(uint(filter.Limit))
	}
	if filter.Offset > 0 {
		ds = ds.Offset(uint(filter.Offset))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build list query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list transactions", err)
	}
	defer rows.Close()

	var transactions []*entities.Transaction
	for rows.Next() {
		txn := &entities.Transaction{}
		var hospitalID sql.NullString

		err := rows.Scan(
			&txn.ID,
			&txn.WalletID,
			&txn.UserID,
			&hospitalID,
			&txn.Direction,
			&txn.Amount,
			&txn.Category,
			&txn.Status,
			&txn.Description,
			&txn.ReferenceID,
			&txn.CreatedAt,
		)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan transaction", err)
		}

		if hospitalID.Valid {
			txn.HospitalID = &hospitalID.String
		}

		transactions = append(transactions, txn)
	}

	return transactions, nil
}

func scanWalletRow(row rowScanner) (*entities.Wallet, error) {
	wallet := &entities.Wallet{}
	err := row.Scan(
		&wallet.ID,
		&wallet.UserID,
		&wallet.Balance,
		&wallet.Currency,
		&wallet.CreatedAt,
		&wallet.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return wallet, nil
}
