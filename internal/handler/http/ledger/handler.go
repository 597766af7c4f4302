package ledger_http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"ledger/internal/app/reports"
	"ledger/internal/domain"
	"ledger/internal/handler/validation"
)

type Ledger interface {
	CreateUser(ctx context.Context, name, email string) (int64, error)
	CreateAccount(ctx context.Context, userID int64, initialBalance decimal.Decimal) (int64, error)
	Deposit(ctx context.Context, accountID int64, amount decimal.Decimal) (decimal.Decimal, error)
	Withdraw(ctx context.Context, accountID int64, amount decimal.Decimal) (decimal.Decimal, error)
	GetBalance(ctx context.Context, accountID int64) (decimal.Decimal, error)
}

type AccountQuerier interface {
	ListAccounts(ctx context.Context) ([]reports.AccountView, error)
}

type LedgerHandler struct {
	ledger  Ledger
	reports AccountQuerier
	logger  *zap.Logger
}

func NewLedgerHandler(l Ledger, q AccountQuerier, logger *zap.Logger) *LedgerHandler {
	return &LedgerHandler{ledger: l, reports: q, logger: logger}
}

// moneyText accepts an amount either as a JSON string or as a bare JSON number
// and keeps its exact decimal text.
type moneyText string

func (m *moneyText) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" {
		*m = ""
		return nil
	}
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = unquoted
	}
	*m = moneyText(s)
	return nil
}

type CreateUserRequest struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required"`
}

type CreateAccountRequest struct {
	UserID         int64     `json:"user_id" validate:"required,gt=0"`
	InitialBalance moneyText `json:"initial_balance"`
}

type AmountRequest struct {
	Amount moneyText `json:"amount" validate:"required"`
}

type UserResponse struct {
	ID int64 `json:"id"`
}

type AccountResponse struct {
	ID      int64  `json:"id"`
	UserID  int64  `json:"user_id"`
	Balance string `json:"balance"`
}

type BalanceResponse struct {
	AccountID int64  `json:"account_id"`
	Balance   string `json:"balance"`
}

type AccountViewResponse struct {
	UserID    int64   `json:"user_id"`
	Name      string  `json:"name"`
	Email     string  `json:"email"`
	AccountID *int64  `json:"account_id"`
	Balance   *string `json:"balance"`
}

func (h *LedgerHandler) CreateUserHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if !h.decode(w, r, &req) {
		return
	}

	userID, err := h.ledger.CreateUser(r.Context(), req.Name, req.Email)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, UserResponse{ID: userID})
}

func (h *LedgerHandler) CreateAccountHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if !h.decode(w, r, &req) {
		return
	}

	initial := decimal.Zero
	if req.InitialBalance != "" {
		var err error
		if initial, err = domain.ParseMoney("initial_balance", string(req.InitialBalance)); err != nil {
			h.respondError(w, err)
			return
		}
	}

	accountID, err := h.ledger.CreateAccount(r.Context(), req.UserID, initial)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, AccountResponse{
		ID:      accountID,
		UserID:  req.UserID,
		Balance: domain.FormatMoney(initial),
	})
}

func (h *LedgerHandler) GetBalanceHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.accountID(w, r)
	if !ok {
		return
	}

	balance, err := h.ledger.GetBalance(r.Context(), accountID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, BalanceResponse{AccountID: accountID, Balance: domain.FormatMoney(balance)})
}

func (h *LedgerHandler) DepositHandler(w http.ResponseWriter, r *http.Request) {
	h.moveMoney(w, r, h.ledger.Deposit)
}

func (h *LedgerHandler) WithdrawHandler(w http.ResponseWriter, r *http.Request) {
	h.moveMoney(w, r, h.ledger.Withdraw)
}

func (h *LedgerHandler) moveMoney(
	w http.ResponseWriter,
	r *http.Request,
	op func(context.Context, int64, decimal.Decimal) (decimal.Decimal, error),
) {
	accountID, ok := h.accountID(w, r)
	if !ok {
		return
	}
	var req AmountRequest
	if !h.decode(w, r, &req) {
		return
	}
	amount, err := domain.ParseMoney("amount", string(req.Amount))
	if err != nil {
		h.respondError(w, err)
		return
	}

	balance, err := op(r.Context(), accountID, amount)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, BalanceResponse{AccountID: accountID, Balance: domain.FormatMoney(balance)})
}

func (h *LedgerHandler) ListAccountsHandler(w http.ResponseWriter, r *http.Request) {
	views, err := h.reports.ListAccounts(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}

	resp := make([]AccountViewResponse, 0, len(views))
	for _, v := range views {
		item := AccountViewResponse{
			UserID:    v.UserID,
			Name:      v.Name,
			Email:     v.Email,
			AccountID: v.AccountID,
		}
		if v.Balance != nil {
			balance := domain.FormatMoney(*v.Balance)
			item.Balance = &balance
		}
		resp = append(resp, item)
	}
	h.respondJSON(w, http.StatusOK, resp)
}

func (h *LedgerHandler) accountID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	idStr := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		h.logger.Warn("Invalid account id in path", zap.String("id", idStr))
		h.respondError(w, domain.NewValidationError("account_id", "must be a positive integer"))
		return 0, false
	}
	return id, true
}

func (h *LedgerHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.logger.Warn("Invalid request body", zap.String("path", r.URL.Path), zap.Error(err))
		h.respondJSON(w, http.StatusBadRequest, ErrorResponse{
			Code:    domain.CodeValidation,
			Message: "Invalid request body",
		})
		return false
	}
	if fieldErrors := validation.Struct(dst); fieldErrors != nil {
		h.respondJSON(w, http.StatusBadRequest, ErrorResponse{
			Code:    domain.CodeValidation,
			Message: "Invalid request data",
			Details: fieldErrors,
		})
		return false
	}
	return true
}

func (h *LedgerHandler) respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("Failed to write JSON response", zap.Error(err))
	}
}
