// Package client provides the HTTP client for the lottery backend API.
//
// Every method performs exactly one HTTP call. Failures come back as *Error;
// nothing is retried.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/wondertwin-ai/lotterykit/internal/logging"
	"github.com/wondertwin-ai/lotterykit/internal/metrics"
	"github.com/wondertwin-ai/lotterykit/internal/principal"
)

// DefaultTimeout bounds a single backend call when Config.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// maxBody caps how much of a response body is read.
const maxBody = 8 << 20

// Operation names, used in errors, logs and metrics.
const (
	OpSendOTP            = "otp.send"
	OpUserLogin          = "user.login"
	OpRetailerLogin      = "retailer.login"
	OpUserTickets        = "user.tickets"
	OpLotteries          = "lottery.list"
	OpLotteryTickets     = "ticket.lottery"
	OpPurchaseTicket     = "ticket.purchase"
	OpRecordTransaction  = "user.purchase"
	OpWalletBalance      = "wallet.balance"
	OpWalletTransactions = "wallet.transactions"
	OpRetailerBySlug     = "retailer.store"
)

// fallbacks are shown when the backend gives no message of its own.
var fallbacks = map[string]string{
	OpSendOTP:            "Failed to send OTP",
	OpUserLogin:          "Failed to login",
	OpRetailerLogin:      "Login failed",
	OpUserTickets:        "Failed to fetch purchased tickets",
	OpLotteries:          "Failed to fetch lotteries",
	OpLotteryTickets:     "Failed to fetch tickets",
	OpPurchaseTicket:     "Failed to purchase ticket",
	OpRecordTransaction:  "Failed to record transaction",
	OpWalletBalance:      "Failed to fetch wallet balance",
	OpWalletTransactions: "Failed to fetch wallet transactions",
	OpRetailerBySlug:     "Failed to fetch retailer",
}

// Config holds client configuration.
type Config struct {
	// BaseURL is the API root, e.g. http://localhost:4000/api/v1.
	BaseURL string
	// OTPURL is the API root used for /otp/sendOtp. Empty means BaseURL.
	OTPURL     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     logrus.FieldLogger
	Metrics    *metrics.Client
}

// Client talks to the lottery backend.
type Client struct {
	baseURL string
	otpURL  string
	http    *http.Client
	log     logrus.FieldLogger
	metrics *metrics.Client
}

// New creates a Client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	otpURL := cfg.OTPURL
	if otpURL == "" {
		otpURL = cfg.BaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		otpURL:  strings.TrimSuffix(otpURL, "/"),
		http:    httpClient,
		log:     logging.OrDiscard(cfg.Logger),
		metrics: cfg.Metrics,
	}, nil
}

// SendOTP asks the backend to text a one-time password to the phone number.
func (c *Client) SendOTP(ctx context.Context, req OTPRequest) error {
	_, err := c.do(ctx, OpSendOTP, http.MethodPost, c.otpURL+"/otp/sendOtp", "", req)
	return err
}

// Login exchanges phone + OTP for a token and profile of the given principal.
func (c *Client) Login(ctx context.Context, kind principal.Kind, creds Credentials) (*LoginResponse, error) {
	op, path, profileField := OpUserLogin, "/user/login", "user"
	if kind == principal.Retailer {
		op, path, profileField = OpRetailerLogin, "/retailer/login", "retailer"
	}

	body, err := c.do(ctx, op, http.MethodPost, c.baseURL+path, "", creds)
	if err != nil {
		return nil, err
	}

	res := gjson.ParseBytes(body)
	token := res.Get("token").String()
	profile := res.Get(profileField)
	if token == "" || !profile.IsObject() {
		return nil, c.malformed(op, body, "response missing token or "+profileField)
	}

	out := &LoginResponse{Token: token}
	if kind == principal.Retailer {
		out.Retailer = &RetailerProfile{}
		err = json.Unmarshal([]byte(profile.Raw), out.Retailer)
	} else {
		out.User = &UserProfile{}
		err = json.Unmarshal([]byte(profile.Raw), out.User)
	}
	if err != nil {
		return nil, c.malformed(op, body, err.Error())
	}
	return out, nil
}

// UserTickets lists the signed-in user's tickets.
func (c *Client) UserTickets(ctx context.Context, token string) ([]Ticket, error) {
	body, err := c.do(ctx, OpUserTickets, http.MethodGet, c.baseURL+"/user/tickets", token, nil)
	if err != nil {
		return nil, err
	}
	var out []Ticket
	if err := decodeList(body, &out, "tickets", "data"); err != nil {
		return nil, c.malformed(OpUserTickets, body, err.Error())
	}
	return out, nil
}

// Lotteries lists the lottery catalog. No auth.
func (c *Client) Lotteries(ctx context.Context) ([]Lottery, error) {
	body, err := c.do(ctx, OpLotteries, http.MethodGet, c.baseURL+"/lottery", "", nil)
	if err != nil {
		return nil, err
	}
	var out []Lottery
	if err := decodeList(body, &out, "lotteries", "data"); err != nil {
		return nil, c.malformed(OpLotteries, body, err.Error())
	}
	return out, nil
}

// TicketsByLottery lists the tickets sold for a lottery. No auth.
func (c *Client) TicketsByLottery(ctx context.Context, lotteryID string) ([]Ticket, error) {
	if lotteryID == "" {
		return nil, &Error{Op: OpLotteryTickets, Message: "lottery id is required"}
	}
	endpoint := c.baseURL + "/ticket/lottery/" + url.PathEscape(lotteryID)
	body, err := c.do(ctx, OpLotteryTickets, http.MethodGet, endpoint, "", nil)
	if err != nil {
		return nil, err
	}
	var out []Ticket
	if err := decodeList(body, &out, "tickets", "data"); err != nil {
		return nil, c.malformed(OpLotteryTickets, body, err.Error())
	}
	return out, nil
}

// PurchaseTicket buys tickets with the given custom numbers.
func (c *Client) PurchaseTicket(ctx context.Context, token string, req PurchaseRequest) (*PurchaseResult, error) {
	body, err := c.do(ctx, OpPurchaseTicket, http.MethodPost, c.baseURL+"/ticket/purchase", token, req)
	if err != nil {
		return nil, err
	}
	out := &PurchaseResult{Raw: json.RawMessage(body)}
	if gjson.ValidBytes(body) && gjson.ParseBytes(body).IsObject() {
		// Best effort: unknown shapes still come back through Raw.
		_ = json.Unmarshal(body, out)
		out.Raw = json.RawMessage(body)
	}
	return out, nil
}

// RecordTransaction posts a transaction record and returns the backend's echo.
func (c *Client) RecordTransaction(ctx context.Context, token string, tx any) (json.RawMessage, error) {
	body, err := c.do(ctx, OpRecordTransaction, http.MethodPost, c.baseURL+"/user/purchase", token, tx)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

// WalletBalance fetches the signed-in user's balance.
func (c *Client) WalletBalance(ctx context.Context, token string) (float64, error) {
	body, err := c.do(ctx, OpWalletBalance, http.MethodGet, c.baseURL+"/user/wallet", token, nil)
	if err != nil {
		return 0, err
	}
	res := gjson.ParseBytes(body)
	switch {
	case res.Type == gjson.Number:
		return res.Float(), nil
	case res.Get("balance").Exists():
		return res.Get("balance").Float(), nil
	case res.Get("wallet.balance").Exists():
		return res.Get("wallet.balance").Float(), nil
	}
	return 0, c.malformed(OpWalletBalance, body, "response has no balance")
}

// WalletTransactions fetches the signed-in user's wallet history.
func (c *Client) WalletTransactions(ctx context.Context, token string) ([]Transaction, error) {
	body, err := c.do(ctx, OpWalletTransactions, http.MethodGet, c.baseURL+"/user/wallet/transactions", token, nil)
	if err != nil {
		return nil, err
	}
	var out []Transaction
	if err := decodeList(body, &out, "transactions", "data"); err != nil {
		return nil, c.malformed(OpWalletTransactions, body, err.Error())
	}
	return out, nil
}

// RetailerBySlug resolves a storefront's retailer profile by its public slug.
func (c *Client) RetailerBySlug(ctx context.Context, slug string) (*RetailerProfile, error) {
	if slug == "" {
		return nil, &Error{Op: OpRetailerBySlug, Message: "store id is required"}
	}
	endpoint := c.baseURL + "/retailer/store/" + url.PathEscape(slug)
	body, err := c.do(ctx, OpRetailerBySlug, http.MethodGet, endpoint, "", nil)
	if err != nil {
		return nil, err
	}
	res := gjson.ParseBytes(body)
	raw := body
	if r := res.Get("retailer"); r.IsObject() {
		raw = []byte(r.Raw)
	}
	var out RetailerProfile
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, c.malformed(OpRetailerBySlug, body, err.Error())
	}
	return &out, nil
}

// do performs one request and returns the body of a 2xx response.
// A non-empty token is sent as a bearer credential; authenticated
// operations must pass one.
func (c *Client) do(ctx context.Context, op, method, endpoint, token string, payload any) (body []byte, err error) {
	start := time.Now()
	defer func() {
		c.metrics.Observe(op, err, time.Since(start))
	}()

	if requiresAuth(op) && token == "" {
		return nil, &Error{Op: op, Message: fallbacks[op], Err: ErrNoToken}
	}

	var reader io.Reader
	if payload != nil {
		data, merr := json.Marshal(payload)
		if merr != nil {
			return nil, &Error{Op: op, Message: fallbacks[op], Err: fmt.Errorf("encoding request: %w", merr)}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, &Error{Op: op, Message: fallbacks[op], Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.WithFields(logrus.Fields{"op": op, "error": err}).Debug("backend call failed")
		return nil, &Error{Op: op, Message: fallbacks[op], Err: err}
	}
	defer resp.Body.Close()

	body, err = io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, &Error{Op: op, Status: resp.StatusCode, Message: fallbacks[op], Err: fmt.Errorf("reading response: %w", err)}
	}

	c.log.WithFields(logrus.Fields{
		"op":       op,
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	}).Debug("backend call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := backendMessage(body)
		if msg == "" {
			msg = fallbacks[op]
		}
		return nil, &Error{Op: op, Status: resp.StatusCode, Message: msg, Payload: body}
	}
	return body, nil
}

func (c *Client) malformed(op string, body []byte, reason string) error {
	return &Error{
		Op:      op,
		Message: fallbacks[op],
		Payload: body,
		Err:     fmt.Errorf("malformed response: %s", reason),
	}
}

func requiresAuth(op string) bool {
	switch op {
	case OpUserTickets, OpPurchaseTicket, OpRecordTransaction, OpWalletBalance, OpWalletTransactions:
		return true
	}
	return false
}

// decodeList decodes a list response that is either a bare array or an
// object wrapping the array under one of keys. Empty bodies and JSON null
// decode as an empty list.
func decodeList[T any](body []byte, out *[]T, keys ...string) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		*out = []T{}
		return nil
	}
	if !gjson.ValidBytes(trimmed) {
		return errors.New("invalid JSON")
	}
	res := gjson.ParseBytes(trimmed)
	raw := ""
	if res.IsArray() {
		raw = res.Raw
	} else {
		for _, k := range keys {
			if v := res.Get(k); v.IsArray() {
				raw = v.Raw
				break
			}
		}
	}
	if raw == "" {
		return fmt.Errorf("expected a list under %s", strings.Join(keys, " or "))
	}
	list := []T{}
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return err
	}
	*out = list
	return nil
}
