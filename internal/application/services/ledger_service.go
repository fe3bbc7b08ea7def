package services

import (
	"context"
	"time"

	"github.com/Zubair-mohamed/myclinic-backend/internal/domain/entities"
	"github.com/Zubair-mohamed/myclinic-backend/internal/domain/repositories"
	apperrors "github.com/Zubair-mohamed/myclinic-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ApplyInput describes one ledger mutation
type ApplyInput struct {
	UserID      string
	Amount      decimal.Decimal
	Direction   entities.TransactionDirection
	Category    entities.TransactionCategory
	Description string
	ReferenceID string
	HospitalID  *string
}

// LedgerService moves money against per-user wallets. Every balance
// mutation in the system funnels through Apply; nothing else touches
// wallet balances.
type LedgerService struct {
	walletRepo repositories.WalletRepository
	txManager  repositories.TxManager
	currency   string
}

// NewLedgerService creates a new ledger service
func NewLedgerService(walletRepo repositories.WalletRepository, txManager repositories.TxManager, currency string) *LedgerService {
	return &LedgerService{
		walletRepo: walletRepo,
		txManager:  txManager,
		currency:   currency,
	}
}

// Apply credits or debits the user's wallet and writes the paired ledger
// entry as one atomic unit. If uow is non-nil the operation joins the
// caller's unit of work; otherwise it opens and owns its own.
func (s *LedgerService) Apply(ctx context.Context, uow repositories.UnitOfWork, in ApplyInput) (*entities.Transaction, error) {
	if uow != nil {
		return s.apply(ctx, uow, in)
	}

	var txn *entities.Transaction
	err := s.txManager.WithinTx(ctx, func(u repositories.UnitOfWork) error {
		applied, err := s.apply(ctx, u, in)
		if err != nil {
			return err
		}
		txn = applied
		return nil
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

func (s *LedgerService) apply(ctx context.Context, uow repositories.UnitOfWork, in ApplyInput) (*entities.Transaction, error) {
	if in.UserID == "" {
		return nil, apperrors.NewValidationError("user id is required")
	}
	if !in.Amount.IsPositive() {
		return nil, apperrors.NewValidationError("amount must be positive")
	}
	if in.Direction != entities.TransactionCredit && in.Direction != entities.TransactionDebit {
		return nil, apperrors.NewValidationError("direction must be credit or debit")
	}

	wallet, err := s.walletRepo.GetByUserIDForUpdate(ctx, uow, in.UserID)
	if err != nil {
		return nil, err
	}
	if wallet == nil {
		if in.Direction == entities.TransactionDebit {
			return nil, apperrors.NewInsufficientFundsError("wallet balance cannot cover the debit")
		}
		wallet, err = s.createWallet(ctx, uow, in.UserID)
		if err != nil {
			return nil, err
		}
	}

	var balance decimal.Decimal
	switch in.Direction {
	case entities.TransactionCredit:
		balance = wallet.Balance.Add(in.Amount)
	case entities.TransactionDebit:
		if wallet.Balance.LessThan(in.Amount) {
			return nil, apperrors.NewInsufficientFundsError("wallet balance cannot cover the debit")
		}
		balance = wallet.Balance.Sub(in.Amount)
	}

	if err := s.walletRepo.UpdateBalance(ctx, uow, wallet.ID, balance); err != nil {
		return nil, err
	}

	txn := &entities.Transaction{
		ID:          uuid.New().String(),
		WalletID:    wallet.ID,
		UserID:      in.UserID,
		HospitalID:  in.HospitalID,
		Direction:   in.Direction,
		Amount:      in.Amount,
		Category:    in.Category,
		Status:      entities.TransactionStatusCompleted,
		Description: in.Description,
		ReferenceID: in.ReferenceID,
		CreatedAt:   time.Now(),
	}
	if err := s.walletRepo.CreateTransaction(ctx, uow, txn); err != nil {
		return nil, err
	}

	return txn, nil
}

func (s *LedgerService) createWallet(ctx context.Context, uow repositories.UnitOfWork, userID string) (*entities.Wallet, error) {
	now := time.Now()
	wallet := &entities.Wallet{
		ID:        uuid.New().String(),
		UserID:    userID,
		Balance:   decimal.Zero,
		Currency:  s.currency,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.walletRepo.Create(ctx, uow, wallet); err != nil {
		return nil, err
	}
	return wallet, nil
}

// EnsureWallet returns the user's wallet, creating it (optionally with an
// initial balance credit) on first need.
func (s *LedgerService) EnsureWallet(ctx context.Context, userID string, initialBalance decimal.Decimal) (*entities.Wallet, error) {
	wallet, err := s.walletRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if wallet != nil {
		return wallet, nil
	}

	err = s.txManager.WithinTx(ctx, func(uow repositories.UnitOfWork) error {
		created, err := s.createWallet(ctx, uow, userID)
		if err != nil {
			return err
		}
		wallet = created

		if initialBalance.IsPositive() {
			if _, err := s.apply(ctx, uow, ApplyInput{
				UserID:      userID,
				Amount:      initialBalance,
				Direction:   entities.TransactionCredit,
				Category:    entities.CategoryInitialBalance,
				Description: "initial wallet balance",
			}); err != nil {
				return err
			}
			wallet.Balance = initialBalance
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return wallet, nil
}

// Deposit credits the user's wallet with a staff-recorded deposit
func (s *LedgerService) Deposit(ctx context.Context, userID string, amount decimal.Decimal, description string) (*entities.Transaction, error) {
	return s.Apply(ctx, nil, ApplyInput{
		UserID:      userID,
		Amount:      amount,
		Direction:   entities.TransactionCredit,
		Category:    entities.CategoryDeposit,
		Description: description,
	})
}

// AdminCredit credits the user's wallet with an administrative adjustment
func (s *LedgerService) AdminCredit(ctx context.Context, userID string, amount decimal.Decimal, description string) (*entities.Transaction, error) {
	return s.Apply(ctx, nil, ApplyInput{
		UserID:      userID,
		Amount:      amount,
		Direction:   entities.TransactionCredit,
		Category:    entities.CategoryAdminCredit,
		Description: description,
	})
}

// Balance returns the user's wallet. A user who has never held money gets
// a zero-balance view without a wallet row being created.
func (s *LedgerService) Balance(ctx context.Context, userID string) (*entities.Wallet, error) {
	wallet, err := s.walletRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if wallet == nil {
		return &entities.Wallet{
			UserID:   userID,
			Balance:  decimal.Zero,
			Currency: s.currency,
		}, nil
	}
	return wallet, nil
}

// History returns the user's ledger entries, newest first
func (s *LedgerService) History(ctx context.Context, userID string, filter repositories.TransactionFilter) ([]*entities.Transaction, error) {
	return s.walletRepo.ListTransactions(ctx, userID, filter)
}
