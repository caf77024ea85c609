// Package handlers provides HTTP handlers for the account ledger.
package handlers

import (
	"net/http"
	"time"

	"github.com/aristath/tradejournal/internal/auth"
	"github.com/aristath/tradejournal/internal/domain"
	"github.com/aristath/tradejournal/internal/modules/ledger"
	"github.com/aristath/tradejournal/internal/utils"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Handler handles account HTTP requests
type Handler struct {
	ledger *ledger.Service
	log    zerolog.Logger
}

// NewHandler creates a new account handler
func NewHandler(svc *ledger.Service, log zerolog.Logger) *Handler {
	return &Handler{
		ledger: svc,
		log:    log.With().Str("handler", "account").Logger(),
	}
}

type accountResponse struct {
	*domain.Account
	Onboarded bool `json:"onboarded"`
}

type balanceRequest struct {
	StartingBalance *decimal.Decimal `json:"starting_balance" validate:"required"`
	Currency        string           `json:"currency" validate:"omitempty,len=3,alpha"`
}

type expenseRequest struct {
	Year   int              `json:"year" validate:"required,min=1970,max=9999"`
	Month  int              `json:"month" validate:"required,min=1,max=12"`
	Amount *decimal.Decimal `json:"amount" validate:"required"`
}

func (h *Handler) currency(code string) domain.Currency {
	if code == "" {
		return domain.Currency(h.ledger.Policy().DefaultCurrency)
	}
	return domain.Currency(code)
}

// HandleGetAccount handles GET /api/account
func (h *Handler) HandleGetAccount(w http.ResponseWriter, r *http.Request) {
	acc, err := h.ledger.GetAccount(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		utils.WriteError(w, h.log, err)
		return
	}
	utils.WriteData(w, h.log, http.StatusOK, accountResponse{Account: acc, Onboarded: acc.Onboarded()})
}

// HandleOnboarding handles POST /api/account/onboarding
func (h *Handler) HandleOnboarding(w http.ResponseWriter, r *http.Request) {
	var req balanceRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, h.log, err)
		return
	}
	acc, err := h.ledger.SaveOnboarding(r.Context(), auth.UserID(r.Context()), *req.StartingBalance, h.currency(req.Currency))
	if err != nil {
		utils.WriteError(w, h.log, err)
		return
	}
	utils.WriteData(w, h.log, http.StatusOK, accountResponse{Account: acc, Onboarded: true})
}

// HandleReset handles POST /api/account/reset
func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	var req balanceRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, h.log, err)
		return
	}
	acc, err := h.ledger.ResetAccount(r.Context(), auth.UserID(r.Context()), *req.StartingBalance, h.currency(req.Currency))
	if err != nil {
		utils.WriteError(w, h.log, err)
		return
	}
	utils.WriteData(w, h.log, http.StatusOK, accountResponse{Account: acc, Onboarded: true})
}

// HandleAddExpense handles POST /api/account/expenses
func (h *Handler) HandleAddExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, h.log, err)
		return
	}
	month := time.Month(req.Month)
	total, err := h.ledger.AddMonthExpense(r.Context(), auth.UserID(r.Context()), req.Year, month, *req.Amount)
	if err != nil {
		utils.WriteError(w, h.log, err)
		return
	}
	utils.WriteData(w, h.log, http.StatusOK, map[string]interface{}{
		"month": domain.MonthKey(req.Year, month),
		"total": total,
	})
}

// HandleReconcile handles GET /api/account/reconcile. It never writes.
func (h *Handler) HandleReconcile(w http.ResponseWriter, r *http.Request) {
	rec, err := h.ledger.Reconcile(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		utils.WriteError(w, h.log, err)
		return
	}
	utils.WriteData(w, h.log, http.StatusOK, map[string]interface{}{
		"reconciliation": rec,
		"balanced":       rec.Balanced(),
	})
}
