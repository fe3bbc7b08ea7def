package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet holds one patient's internal ledger balance
type Wallet struct {
	ID        string          `json:"id" db:"id"`
	UserID    string          `json:"user_id" db:"user_id"`
	Balance   decimal.Decimal `json:"balance" db:"balance"`
	Currency  string          `json:"currency" db:"currency"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// TransactionDirection is the sign of a ledger entry
type TransactionDirection string

const (
	TransactionCredit TransactionDirection = "credit"
	TransactionDebit  TransactionDirection = "debit"
)

// TransactionCategory classifies a ledger entry
type TransactionCategory string

const (
	CategoryAppointmentFee TransactionCategory = "appointment_fee"
	CategoryRefund         TransactionCategory = "refund"
	CategoryDeposit        TransactionCategory = "deposit"
	CategoryAdminCredit    TransactionCategory = "admin_credit"
	CategoryInitialBalance TransactionCategory = "initial_balance"
)

// TransactionStatus is carried for audit compatibility; entries are written
// only once their balance mutation commits, so it is always completed.
type TransactionStatus string

const (
	TransactionStatusCompleted TransactionStatus = "completed"
)

// Transaction is an immutable ledger entry. The sum of a wallet's signed
// transaction amounts always equals its current balance.
type Transaction struct {
	ID          string               `json:"id" db:"id"`
	WalletID    string               `json:"wallet_id" db:"wallet_id"`
	UserID      string               `json:"user_id" db:"user_id"`
	HospitalID  *string              `json:"hospital_id,omitempty" db:"hospital_id"`
	Direction   TransactionDirection `json:"direction" db:"direction"`
	Amount      decimal.Decimal      `json:"amount" db:"amount"`
	Category    TransactionCategory  `json:"category" db:"category"`
	Status      TransactionStatus    `json:"status" db:"status"`
	Description string               `json:"description" db:"description"`
	ReferenceID string               `json:"reference_id,omitempty" db:"reference_id"`
	CreatedAt   time.Time            `json:"created_at" db:"created_at"`
}

// SignedAmount returns the amount with debit entries negated
func (t *Transaction) SignedAmount() decimal.Decimal {
	if t.Direction == TransactionDebit {
		return t.Amount.Neg()
	}
	return t.Amount
}
