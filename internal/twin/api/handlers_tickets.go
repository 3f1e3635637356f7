package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/wondertwin-ai/lotterykit/internal/twin/store"
	"github.com/wondertwin-ai/lotterykit/pkg/twincore"
)

type purchaseRequest struct {
	LotteryID string   `json:"lottery_id"`
	Numbers   []string `json:"custom_ticket_numbers"`
}

// UserTickets handles GET /user/tickets.
func (h *Handler) UserTickets(w http.ResponseWriter, r *http.Request) {
	twincore.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"tickets": h.store.TicketsFor(userID(r)),
	})
}

// Lotteries handles GET /lottery.
func (h *Handler) Lotteries(w http.ResponseWriter, r *http.Request) {
	twincore.JSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"lotteries": h.store.Lotteries.List(),
	})
}

// TicketsByLottery handles GET /ticket/lottery/{id}.
func (h *Handler) TicketsByLottery(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := h.store.Lotteries.Get(id); !ok {
		twincore.Error(w, http.StatusNotFound, "Lottery not found")
		return
	}
	twincore.JSON(w, http.StatusOK, h.store.TicketsForLottery(id))
}

// PurchaseTicket handles POST /ticket/purchase.
func (h *Handler) PurchaseTicket(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		twincore.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.LotteryID == "" {
		twincore.Error(w, http.StatusBadRequest, "lottery_id is required")
		return
	}

	uid := userID(r)
	tickets, balance, err := h.store.Purchase(uid, req.LotteryID, req.Numbers)
	switch {
	case errors.Is(err, store.ErrLotteryNotFound):
		twincore.Error(w, http.StatusNotFound, "Lottery not found")
		return
	case errors.Is(err, store.ErrInsufficientFunds):
		twincore.Error(w, http.StatusPaymentRequired, "Insufficient wallet balance")
		return
	case errors.Is(err, store.ErrNumberTaken):
		twincore.Error(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, store.ErrNoNumbers):
		twincore.Error(w, http.StatusBadRequest, "custom_ticket_numbers must not be empty")
		return
	case err != nil:
		twincore.Error(w, http.StatusInternalServerError, "Failed to purchase ticket")
		return
	}

	h.log.WithFields(logrus.Fields{
		"user_id":    uid,
		"lottery_id": req.LotteryID,
		"count":      len(tickets),
	}).Info("tickets purchased")

	twincore.JSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "Tickets purchased successfully",
		"tickets": tickets,
		"balance": balance,
	})
}

// AdminCreateLottery handles POST /admin/lotteries.
func (h *Handler) AdminCreateLottery(w http.ResponseWriter, r *http.Request) {
	var lot store.Lottery
	if err := json.NewDecoder(r.Body).Decode(&lot); err != nil {
		twincore.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if lot.ID == "" {
		lot.ID = h.store.Lotteries.NextID()
	}
	if lot.Price <= 0 {
		twincore.Error(w, http.StatusBadRequest, "price must be positive")
		return
	}
	h.store.Lotteries.Put(lot.ID, lot)
	twincore.JSON(w, http.StatusCreated, lot)
}
