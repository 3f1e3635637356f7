package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/wondertwin-ai/lotterykit/internal/twin/store"
	"github.com/wondertwin-ai/lotterykit/pkg/twincore"
)

type sendOTPRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	CountryCode string `json:"countryCode"`
}

type loginRequest struct {
	Phone       string `json:"phone"`
	OTP         string `json:"otp"`
	CountryCode string `json:"countryCode"`
}

// SendOTP handles POST /otp/sendOtp.
func (h *Handler) SendOTP(w http.ResponseWriter, r *http.Request) {
	var req sendOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		twincore.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.PhoneNumber == "" {
		twincore.Error(w, http.StatusBadRequest, "Phone number is required")
		return
	}

	phone, cc := store.NormalizePhone(req.PhoneNumber, req.CountryCode)
	if !h.allowOTP(cc + phone) {
		twincore.Error(w, http.StatusTooManyRequests, "Too many OTP requests, please try again later")
		return
	}

	otp, err := h.store.IssueOTP(phone, cc)
	if err != nil {
		twincore.Error(w, http.StatusInternalServerError, "Failed to send OTP")
		return
	}
	h.log.WithFields(logrus.Fields{"phone": cc + phone, "otp_id": otp.ID}).Info("otp issued")

	twincore.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "OTP sent successfully",
	})
}

// UserLogin handles POST /user/login. Unknown phones are registered.
func (h *Handler) UserLogin(w http.ResponseWriter, r *http.Request) {
	req, ok := h.verifyLogin(w, r)
	if !ok {
		return
	}
	u := h.store.EnsureUser(req.Phone, req.CountryCode)
	token, err := h.tokens.Issue(KindUser, u.ID, u.CountryCode+u.PhoneNumber)
	if err != nil {
		twincore.Error(w, http.StatusInternalServerError, "Failed to login")
		return
	}
	twincore.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"token":   token,
		"user":    u,
	})
}

// RetailerLogin handles POST /retailer/login. Only seeded retailers may log in.
func (h *Handler) RetailerLogin(w http.ResponseWriter, r *http.Request) {
	req, ok := h.verifyLogin(w, r)
	if !ok {
		return
	}
	ret, err := h.store.RetailerByPhone(req.Phone, req.CountryCode)
	if err != nil {
		twincore.Error(w, http.StatusNotFound, "Retailer not found")
		return
	}
	token, err := h.tokens.Issue(KindRetailer, ret.ID, ret.CountryCode+ret.PhoneNumber)
	if err != nil {
		twincore.Error(w, http.StatusInternalServerError, "Login failed")
		return
	}
	twincore.JSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"token":    token,
		"retailer": ret,
	})
}

// verifyLogin decodes a login body and consumes its OTP. It writes the error
// response itself and reports false on failure.
func (h *Handler) verifyLogin(w http.ResponseWriter, r *http.Request) (loginRequest, bool) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		twincore.Error(w, http.StatusBadRequest, "Invalid request body")
		return req, false
	}
	if req.Phone == "" || req.OTP == "" {
		twincore.Error(w, http.StatusBadRequest, "Phone and OTP are required")
		return req, false
	}
	switch err := h.store.VerifyOTP(req.Phone, req.CountryCode, req.OTP); {
	case errors.Is(err, store.ErrOTPExpired):
		twincore.Error(w, http.StatusUnauthorized, "OTP has expired")
		return req, false
	case err != nil:
		twincore.Error(w, http.StatusUnauthorized, "Invalid OTP")
		return req, false
	}
	return req, true
}

// AdminGetOTP handles GET /admin/otp?phone={phone}. It returns the latest
// code issued to the phone, which may be given with or without its country
// code.
func (h *Handler) AdminGetOTP(w http.ResponseWriter, r *http.Request) {
	phone := r.URL.Query().Get("phone")
	if phone == "" {
		twincore.Error(w, http.StatusBadRequest, "phone query parameter is required")
		return
	}
	otp, ok := h.store.LatestOTP(phone)
	if !ok {
		twincore.Error(w, http.StatusNotFound, "No OTP issued for "+phone)
		return
	}
	twincore.JSON(w, http.StatusOK, map[string]any{
		"phone":      otp.CountryCode + otp.PhoneNumber,
		"code":       otp.Code,
		"used":       otp.Used,
		"expires_at": otp.ExpiresAt,
	})
}
