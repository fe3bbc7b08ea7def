package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Zubair-mohamed/myclinic-backend/internal/api/handlers"
	"github.com/Zubair-mohamed/myclinic-backend/internal/domain/entities"
	"github.com/Zubair-mohamed/myclinic-backend/internal/domain/repositories"
	apperrors "github.com/Zubair-mohamed/myclinic-backend/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

type stubLedgerService struct {
	wallet       *entities.Wallet
	transactions []*entities.Transaction
	deposited    []decimal.Decimal
	credited     []decimal.Decimal
	err          error
}

func (s *stubLedgerService) Balance(ctx context.Context, userID string) (*entities.Wallet, error) {
	return s.wallet, s.err
}

func (s *stubLedgerService) History(ctx context.Context, userID string, filter repositories.TransactionFilter) ([]*entities.Transaction, error) {
	return s.transactions, s.err
}

func (s *stubLedgerService) Deposit(ctx context.Context, userID string, amount decimal.Decimal, description string) (*entities.Transaction, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.deposited = append(s.deposited, amount)
	return &entities.Transaction{ID: "txn-1", UserID: userID, Amount: amount}, nil
}

func (s *stubLedgerService) AdminCredit(ctx context.Context, userID string, amount decimal.Decimal, description string) (*entities.Transaction, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.credited = append(s.credited, amount)
	return &entities.Transaction{ID: "txn-2", UserID: userID, Amount: amount}, nil
}

type stubUserDirectory struct {
	users map[string]*entities.User
}

func (s *stubUserDirectory) GetByID(ctx context.Context, id string) (*entities.User, error) {
	if user, ok := s.users[id]; ok {
		return user, nil
	}
	return nil, apperrors.NewNotFoundError("user not found")
}

func directoryWith(roles map[string]entities.UserRole) *stubUserDirectory {
	users := make(map[string]*entities.User, len(roles))
	for id, role := range roles {
		users[id] = &entities.User{ID: id, Role: role}
	}
	return &stubUserDirectory{users: users}
}

func TestWalletHandler_Balance(t *testing.T) {
	service := &stubLedgerService{
		wallet: &entities.Wallet{UserID: "patient-1", Balance: decimal.NewFromInt(120), Currency: "EGP"},
	}
	handler := handlers.NewWalletHandler(service, directoryWith(nil))

	req := httptest.NewRequest("GET", "/api/patients/patient-1/wallet", nil)
	req.SetPathValue("id", "patient-1")
	w := httptest.NewRecorder()

	handler.Balance(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response entities.Wallet
	err := json.NewDecoder(w.Body).Decode(&response)
	assert.NoError(t, err)
	assert.True(t, response.Balance.Equal(decimal.NewFromInt(120)))
}

func TestWalletHandler_Transactions_Empty(t *testing.T) {
	handler := handlers.NewWalletHandler(&stubLedgerService{}, directoryWith(nil))

	req := httptest.NewRequest("GET", "/api/patients/patient-1/wallet/transactions", nil)
	req.SetPathValue("id", "patient-1")
	w := httptest.NewRecorder()

	handler.Transactions(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	err := json.NewDecoder(w.Body).Decode(&response)
	assert.NoError(t, err)
	assert.Equal(t, float64(0), response["count"])
	assert.NotNil(t, response["transactions"])
}

func TestWalletHandler_Deposit_StaffAllowed(t *testing.T) {
	service := &stubLedgerService{}
	handler := handlers.NewWalletHandler(service, directoryWith(map[string]entities.UserRole{
		"staff-1": entities.RoleStaff,
	}))

	body := `{"amount":"50","description":"front desk top-up"}`
	req := httptest.NewRequest("POST", "/api/patients/patient-1/wallet/deposit", strings.NewReader(body))
	req.SetPathValue("id", "patient-1")
	req.Header.Set("X-Actor-ID", "staff-1")
	w := httptest.NewRecorder()

	handler.Deposit(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Len(t, service.deposited, 1)
	assert.True(t, service.deposited[0].Equal(decimal.NewFromInt(50)))
}

func TestWalletHandler_Deposit_PatientForbidden(t *testing.T) {
	service := &stubLedgerService{}
	handler := handlers.NewWalletHandler(service, directoryWith(map[string]entities.UserRole{
		"patient-1": entities.RolePatient,
	}))

	body := `{"amount":"50"}`
	req := httptest.NewRequest("POST", "/api/patients/patient-1/wallet/deposit", strings.NewReader(body))
	req.SetPathValue("id", "patient-1")
	req.Header.Set("X-Actor-ID", "patient-1")
	w := httptest.NewRecorder()

	handler.Deposit(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, service.deposited)
}

func TestWalletHandler_Deposit_MissingActor(t *testing.T) {
	service := &stubLedgerService{}
	handler := handlers.NewWalletHandler(service, directoryWith(nil))

	body := `{"amount":"50"}`
	req := httptest.NewRequest("POST", "/api/patients/patient-1/wallet/deposit", strings.NewReader(body))
	req.SetPathValue("id", "patient-1")
	w := httptest.NewRecorder()

	handler.Deposit(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWalletHandler_AdminCredit_StaffForbidden(t *testing.T) {
	service := &stubLedgerService{}
	handler := handlers.NewWalletHandler(service, directoryWith(map[string]entities.UserRole{
		"staff-1": entities.RoleStaff,
		"admin-1": entities.RoleAdmin,
	}))

	body := `{"amount":"25","description":"goodwill"}`
	req := httptest.NewRequest("POST", "/api/patients/patient-1/wallet/credit", strings.NewReader(body))
	req.SetPathValue("id", "patient-1")
	req.Header.Set("X-Actor-ID", "staff-1")
	w := httptest.NewRecorder()

	handler.AdminCredit(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, service.credited)

	// Same request from an admin goes through
	req = httptest.NewRequest("POST", "/api/patients/patient-1/wallet/credit", strings.NewReader(body))
	req.SetPathValue("id", "patient-1")
	req.Header.Set("X-Actor-ID", "admin-1")
	w = httptest.NewRecorder()

	handler.AdminCredit(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Len(t, service.credited, 1)
}

func TestWalletHandler_Deposit_NonPositiveAmount(t *testing.T) {
	service := &stubLedgerService{
		err: apperrors.NewValidationError("amount must be positive"),
	}
	handler := handlers.NewWalletHandler(service, directoryWith(map[string]entities.UserRole{
		"staff-1": entities.RoleStaff,
	}))

	body := `{"amount":"-5"}`
	req := httptest.NewRequest("POST", "/api/patients/patient-1/wallet/deposit", strings.NewReader(body))
	req.SetPathValue("id", "patient-1")
	req.Header.Set("X-Actor-ID", "staff-1")
	w := httptest.NewRecorder()

	handler.Deposit(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
