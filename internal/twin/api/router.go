// Package api implements the lottery backend's HTTP API for the twin.
package api

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/wondertwin-ai/lotterykit/internal/logging"
	"github.com/wondertwin-ai/lotterykit/internal/twin/store"
	"github.com/wondertwin-ai/lotterykit/pkg/twincore"
)

// Options tune the handler. Zero values take defaults.
type Options struct {
	// TokenTTL is the lifetime of issued bearer tokens. Default 24h.
	TokenTTL time.Duration
	// OTPEvery and OTPBurst throttle /otp/sendOtp per phone number.
	// Defaults: one every 20s, burst 3.
	OTPEvery time.Duration
	OTPBurst int
	Logger   logrus.FieldLogger
}

// Handler holds all API handler state.
type Handler struct {
	store  *store.MemoryStore
	mw     *twincore.Middleware
	tokens *TokenManager
	log    logrus.FieldLogger

	otpEvery time.Duration
	otpBurst int
	limMu    sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewHandler creates a new API handler.
func NewHandler(s *store.MemoryStore, mw *twincore.Middleware, opts Options) (*Handler, error) {
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 24 * time.Hour
	}
	if opts.OTPEvery <= 0 {
		opts.OTPEvery = 20 * time.Second
	}
	if opts.OTPBurst <= 0 {
		opts.OTPBurst = 3
	}
	tokens, err := NewTokenManager(opts.TokenTTL, s.Clock.Now)
	if err != nil {
		return nil, err
	}
	return &Handler{
		store:    s,
		mw:       mw,
		tokens:   tokens,
		log:      logging.OrDiscard(opts.Logger),
		otpEvery: opts.OTPEvery,
		otpBurst: opts.OTPBurst,
		limiters: make(map[string]*rate.Limiter),
	}, nil
}

// Tokens returns the handler's token manager.
func (h *Handler) Tokens() *TokenManager {
	return h.tokens
}

// Routes mounts the lottery API routes and admin extras.
func (h *Handler) Routes(r chi.Router) {
	// Public endpoints
	r.Group(func(r chi.Router) {
		r.Use(h.mw.FaultInjection)
		r.Post("/otp/sendOtp", h.SendOTP)
		r.Post("/user/login", h.UserLogin)
		r.Post("/retailer/login", h.RetailerLogin)
		r.Get("/lottery", h.Lotteries)
		r.Get("/ticket/lottery/{id}", h.TicketsByLottery)
		r.Get("/retailer/store/{slug}", h.RetailerBySlug)
	})

	// Endpoints that require a user bearer token
	r.Group(func(r chi.Router) {
		r.Use(h.requireUser)
		r.Use(h.mw.FaultInjection)
		r.Get("/user/tickets", h.UserTickets)
		r.Post("/ticket/purchase", h.PurchaseTicket)
		r.Post("/user/purchase", h.RecordTransaction)
		r.Get("/user/wallet", h.WalletBalance)
		r.Get("/user/wallet/transactions", h.WalletTransactions)
	})

	// Admin extras (no auth, same as the shared admin plane)
	r.Get("/admin/otp", h.AdminGetOTP)
	r.Post("/admin/wallet/credit", h.AdminCreditWallet)
	r.Post("/admin/lotteries", h.AdminCreateLottery)
}

type ctxKey int

const claimsKey ctxKey = iota

// requireUser validates the bearer token and stores its claims in the
// request context. Retailer tokens are rejected.
func (h *Handler) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		raw := strings.TrimPrefix(auth, "Bearer ")
		if auth == "" || raw == auth || raw == "" {
			twincore.Error(w, http.StatusUnauthorized, "Authorization token missing")
			return
		}
		claims, err := h.tokens.Verify(raw)
		if err != nil {
			twincore.Error(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		if claims.Kind != KindUser {
			twincore.Error(w, http.StatusForbidden, "User token required")
			return
		}
		if _, ok := h.store.Users.Get(claims.Subject); !ok {
			twincore.Error(w, http.StatusUnauthorized, "User not found")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
	})
}

func userID(r *http.Request) string {
	claims, _ := r.Context().Value(claimsKey).(*Claims)
	if claims == nil {
		return ""
	}
	return claims.Subject
}

// allowOTP reports whether another code may be sent to phone right now.
func (h *Handler) allowOTP(phone string) bool {
	h.limMu.Lock()
	lim, ok := h.limiters[phone]
	if !ok {
		lim = rate.NewLimiter(rate.Every(h.otpEvery), h.otpBurst)
		h.limiters[phone] = lim
	}
	h.limMu.Unlock()
	return lim.Allow()
}

// ResetLimits forgets all OTP throttling state.
func (h *Handler) ResetLimits() {
	h.limMu.Lock()
	defer h.limMu.Unlock()
	h.limiters = make(map[string]*rate.Limiter)
}

// Snapshot returns the twin state for the admin plane.
func (h *Handler) Snapshot() any {
	return h.store.Snapshot()
}

// LoadState replaces the twin state from a JSON body.
func (h *Handler) LoadState(data []byte) error {
	return h.store.LoadState(data)
}

// Reset clears the twin state and OTP throttling.
func (h *Handler) Reset() {
	h.store.Reset()
	h.ResetLimits()
}
