package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/Zubair-mohamed/myclinic-backend/internal/domain/entities"
	"github.com/Zubair-mohamed/myclinic-backend/internal/domain/repositories"
	"github.com/shopspring/decimal"
)

// LedgerService defines the wallet operations the API exposes
type LedgerService interface {
	Balance(ctx context.Context, userID string) (*entities.Wallet, error)
	History(ctx context.Context, userID string, filter repositories.TransactionFilter) ([]*entities.Transaction, error)
	Deposit(ctx context.Context, userID string, amount decimal.Decimal, description string) (*entities.Transaction, error)
	AdminCredit(ctx context.Context, userID string, amount decimal.Decimal, description string) (*entities.Transaction, error)
}

// UserDirectory resolves the acting caller for role checks
type UserDirectory interface {
	GetByID(ctx context.Context, id string) (*entities.User, error)
}

// WalletHandler handles wallet requests
type WalletHandler struct {
	ledger    LedgerService
	directory UserDirectory
}

// NewWalletHandler creates a new wallet handler
func NewWalletHandler(ledger LedgerService, directory UserDirectory) *WalletHandler {
	return &WalletHandler{
		ledger:    ledger,
		directory: directory,
	}
}

// Balance handles GET /api/patients/{id}/wallet
func (h *WalletHandler) Balance(w http.ResponseWriter, r *http.Request) {
	wallet, err := h.ledger.Balance(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, wallet)
}

// Transactions handles GET /api/patients/{id}/wallet/transactions
func (h *WalletHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := repositories.TransactionFilter{
		Category: entities.TransactionCategory(query.Get("category")),
	}
	if limit := query.Get("limit"); limit != "" {
		if parsed, err := parsePositiveInt(limit); err == nil {
			filter.Limit = parsed
		}
	}

	transactions, err := h.ledger.History(r.Context(), r.PathValue("id"), filter)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	if transactions == nil {
		transactions = []*entities.Transaction{}
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": transactions,
		"count":        len(transactions),
	})
}

type creditRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

// Deposit handles POST /api/patients/{id}/wallet/deposit (staff only)
func (h *WalletHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, entities.RoleStaff, entities.RoleManager, entities.RoleAdmin) {
		return
	}

	var req creditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	txn, err := h.ledger.Deposit(r.Context(), r.PathValue("id"), req.Amount, req.Description)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, txn)
}

// AdminCredit handles POST /api/patients/{id}/wallet/credit (admin only)
func (h *WalletHandler) AdminCredit(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, entities.RoleAdmin) {
		return
	}

	var req creditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	txn, err := h.ledger.AdminCredit(r.Context(), r.PathValue("id"), req.Amount, req.Description)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, txn)
}

func (h *WalletHandler) requireRole(w http.ResponseWriter, r *http.Request, roles ...entities.UserRole) bool {
	actor := actorID(r)
	if actor == "" {
		respondWithError(w, http.StatusUnauthorized, "X-Actor-ID header is required")
		return false
	}

	user, err := h.directory.GetByID(r.Context(), actor)
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, "unknown actor")
		return false
	}
	for _, role := range roles {
		if user.Role == role {
			return true
		}
	}
	respondWithError(w, http.StatusUnauthorized, "caller role may not perform this operation")
	return false
}
