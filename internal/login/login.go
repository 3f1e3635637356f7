// Package login drives the two-phase OTP sign-in: request a code for a
// phone number, then submit the code as either an end user or a retailer.
package login

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/wondertwin-ai/lotterykit/internal/client"
	"github.com/wondertwin-ai/lotterykit/internal/logging"
	"github.com/wondertwin-ai/lotterykit/internal/persist"
	"github.com/wondertwin-ai/lotterykit/internal/principal"
)

// DefaultCountryCode is used when RequestOTP is given none.
const DefaultCountryCode = "+91"

var (
	// ErrInvalidState is returned when an action does not fit the current phase.
	ErrInvalidState = errors.New("login: invalid state")
	// ErrBusy is returned when a request is already in flight.
	ErrBusy = errors.New("login: request in progress")
	// ErrPhoneRequired is returned by RequestOTP for an empty phone number.
	ErrPhoneRequired = errors.New("login: phone number is required")
	// ErrOTPRequired is returned by Submit for an empty code.
	ErrOTPRequired = errors.New("login: otp is required")
)

// Phase is the controller's position in the flow.
type Phase int

const (
	AwaitingPhone Phase = iota
	AwaitingOtp
)

func (p Phase) String() string {
	if p == AwaitingOtp {
		return "awaiting_otp"
	}
	return "awaiting_phone"
}

// API is the part of the backend client the controller calls.
type API interface {
	SendOTP(ctx context.Context, req client.OTPRequest) error
	Login(ctx context.Context, kind principal.Kind, creds client.Credentials) (*client.LoginResponse, error)
}

// UserSink receives a signed-in user. The session store satisfies it.
type UserSink interface {
	SignIn(token string, profile client.UserProfile) error
}

// RetailerSink receives a signed-in retailer. The retailer store satisfies it.
type RetailerSink interface {
	SignIn(token string, profile client.RetailerProfile) error
}

// Principal is the actor that signed in. Exactly one of User and Retailer
// is set, matching Kind.
type Principal struct {
	Kind     principal.Kind
	User     *client.UserProfile
	Retailer *client.RetailerProfile
}

// Result is the outcome of a successful Submit.
type Result struct {
	Principal Principal
	// Redirect is the landing route for the principal.
	Redirect string
}

// pending is the phone awaiting a code, kept in storage so the flow can span
// processes.
type pending struct {
	Phone       string `json:"phone"`
	CountryCode string `json:"countryCode"`
}

// Controller is one login flow. It is safe for concurrent use; a second
// request while one is in flight fails with ErrBusy.
type Controller struct {
	api       API
	users     UserSink
	retailers RetailerSink
	storage   persist.Storage
	log       logrus.FieldLogger

	mu      sync.Mutex
	phase   Phase
	pending pending
	busy    bool
}

// New creates a Controller. storage may be nil, in which case the pending
// phone lives only in memory. A pending phone found in storage resumes the
// flow at AwaitingOtp.
func New(api API, users UserSink, retailers RetailerSink, storage persist.Storage, logger logrus.FieldLogger) *Controller {
	c := &Controller{
		api:       api,
		users:     users,
		retailers: retailers,
		storage:   storage,
		log:       logging.OrDiscard(logger).WithField("component", "login"),
	}
	if storage != nil {
		var p pending
		if persist.GetJSON(storage, persist.KeyPendingLogin, &p) && p.Phone != "" {
			c.pending = p
			c.phase = AwaitingOtp
		}
	}
	return c
}

// Phase returns the current phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Phone returns the phone number and country code awaiting a code.
func (c *Controller) Phone() (phone, countryCode string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending.Phone, c.pending.CountryCode
}

// RequestOTP asks the backend to send a code to phone. It may be called in
// either phase; requesting again resends to the new number. On failure the
// phase is unchanged.
func (c *Controller) RequestOTP(ctx context.Context, phone, countryCode string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return ErrPhoneRequired
	}
	if countryCode == "" {
		countryCode = DefaultCountryCode
	}
	if err := c.acquire(); err != nil {
		return err
	}
	defer c.release()

	if err := c.api.SendOTP(ctx, client.OTPRequest{PhoneNumber: phone, CountryCode: countryCode}); err != nil {
		c.log.WithError(err).Warn("otp request failed")
		return err
	}

	next := pending{Phone: phone, CountryCode: countryCode}
	if c.storage != nil {
		if err := persist.SetJSON(c.storage, persist.KeyPendingLogin, next); err != nil {
			return err
		}
	}
	c.mu.Lock()
	c.pending = next
	c.phase = AwaitingOtp
	c.mu.Unlock()
	c.log.Info("otp sent")
	return nil
}

// Submit verifies otp for the pending phone as the given principal kind. On
// success the token and profile are committed into the matching store and
// the flow ends. On failure the controller stays in AwaitingOtp.
func (c *Controller) Submit(ctx context.Context, kind principal.Kind, otp string) (*Result, error) {
	otp = strings.TrimSpace(otp)
	if otp == "" {
		return nil, ErrOTPRequired
	}
	if err := c.acquire(); err != nil {
		return nil, err
	}
	defer c.release()

	c.mu.Lock()
	phase, p := c.phase, c.pending
	c.mu.Unlock()
	if phase != AwaitingOtp {
		return nil, fmt.Errorf("%w: no code has been requested", ErrInvalidState)
	}

	log := c.log.WithField("principal", kind.String())
	resp, err := c.api.Login(ctx, kind, client.Credentials{Phone: p.Phone, OTP: otp, CountryCode: p.CountryCode})
	if err != nil {
		log.WithError(err).Warn("login failed")
		return nil, err
	}

	res, err := c.commit(kind, resp)
	if err != nil {
		return nil, err
	}
	if err := c.clearPending(); err != nil {
		log.WithError(err).Warn("clearing pending login failed")
	}
	log.Info("signed in")
	return res, nil
}

// Reset returns the flow to AwaitingPhone, forgetting the pending phone.
func (c *Controller) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return ErrBusy
	}
	if c.storage != nil {
		if err := c.storage.Remove(persist.KeyPendingLogin); err != nil {
			return fmt.Errorf("removing %s: %w", persist.KeyPendingLogin, err)
		}
	}
	c.pending = pending{}
	c.phase = AwaitingPhone
	return nil
}

func (c *Controller) commit(kind principal.Kind, resp *client.LoginResponse) (*Result, error) {
	switch kind {
	case principal.Retailer:
		if resp.Retailer == nil {
			return nil, fmt.Errorf("login: response carries no retailer profile")
		}
		if err := c.retailers.SignIn(resp.Token, *resp.Retailer); err != nil {
			return nil, err
		}
		return &Result{
			Principal: Principal{Kind: kind, Retailer: resp.Retailer},
			Redirect:  RetailerDashboard(resp.Retailer.ID),
		}, nil
	default:
		if resp.User == nil {
			return nil, fmt.Errorf("login: response carries no user profile")
		}
		if err := c.users.SignIn(resp.Token, *resp.User); err != nil {
			return nil, err
		}
		return &Result{
			Principal: Principal{Kind: principal.User, User: resp.User},
			Redirect:  "/",
		}, nil
	}
}

func (c *Controller) clearPending() error {
	c.mu.Lock()
	c.pending = pending{}
	c.phase = AwaitingPhone
	c.mu.Unlock()
	if c.storage == nil {
		return nil
	}
	return c.storage.Remove(persist.KeyPendingLogin)
}

func (c *Controller) acquire() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return ErrBusy
	}
	c.busy = true
	return nil
}

func (c *Controller) release() {
	c.mu.Lock()
	c.busy = false
	c.mu.Unlock()
}

// RetailerDashboard is the landing route for a signed-in retailer.
func RetailerDashboard(id string) string {
	return "/retailer/dashboard/?retailer_id=" + url.QueryEscape(id)
}
