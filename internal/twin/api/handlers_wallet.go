package api

import (
	"encoding/json"
	"net/http"

	"github.com/wondertwin-ai/lotterykit/internal/twin/store"
	"github.com/wondertwin-ai/lotterykit/pkg/twincore"
)

// WalletBalance handles GET /user/wallet.
func (h *Handler) WalletBalance(w http.ResponseWriter, r *http.Request) {
	twincore.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"balance": h.store.Balance(userID(r)),
	})
}

// WalletTransactions handles GET /user/wallet/transactions.
func (h *Handler) WalletTransactions(w http.ResponseWriter, r *http.Request) {
	twincore.JSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"transactions": h.store.TransactionsFor(userID(r)),
	})
}

// RecordTransaction handles POST /user/purchase. The transaction is stored
// and echoed back; the balance is not touched.
func (h *Handler) RecordTransaction(w http.ResponseWriter, r *http.Request) {
	var tx store.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		twincore.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if tx.Type != store.TransactionCredit && tx.Type != store.TransactionDebit {
		twincore.Error(w, http.StatusBadRequest, "type must be credit or debit")
		return
	}
	tx = h.store.RecordTransaction(userID(r), tx)
	twincore.JSON(w, http.StatusCreated, map[string]any{
		"success":     true,
		"transaction": tx,
	})
}

// AdminCreditWallet handles POST /admin/wallet/credit. The user is found by
// phone and registered if unknown.
func (h *Handler) AdminCreditWallet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Phone       string  `json:"phone"`
		CountryCode string  `json:"countryCode"`
		Amount      float64 `json:"amount"`
		Description string  `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		twincore.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Phone == "" {
		twincore.Error(w, http.StatusBadRequest, "phone is required")
		return
	}
	if req.Description == "" {
		req.Description = "Wallet top-up"
	}
	u := h.store.EnsureUser(req.Phone, req.CountryCode)
	tx, err := h.store.Credit(u.ID, req.Amount, req.Description)
	if err != nil {
		twincore.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	twincore.JSON(w, http.StatusOK, map[string]any{
		"user_id":     u.ID,
		"balance":     h.store.Balance(u.ID),
		"transaction": tx,
	})
}
