// Package app wires the lottery state core from a config: the two storage
// backings, the API client, the session, retailer, wallet and catalog
// stores, and the login flow. An App is passed explicitly to whatever drives it.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/wondertwin-ai/lotterykit/internal/catalog"
	"github.com/wondertwin-ai/lotterykit/internal/client"
	"github.com/wondertwin-ai/lotterykit/internal/config"
	"github.com/wondertwin-ai/lotterykit/internal/logging"
	"github.com/wondertwin-ai/lotterykit/internal/login"
	"github.com/wondertwin-ai/lotterykit/internal/metrics"
	"github.com/wondertwin-ai/lotterykit/internal/persist"
	"github.com/wondertwin-ai/lotterykit/internal/retailer"
	"github.com/wondertwin-ai/lotterykit/internal/session"
	"github.com/wondertwin-ai/lotterykit/internal/wallet"
)

// File names used by the file storage driver.
const (
	CookieFile = "cookies.json"
	LocalFile  = "local.json"
)

// Options override parts of the wiring, mostly for tests.
type Options struct {
	Logger     logrus.FieldLogger
	HTTPClient *http.Client
	// Cookies and Local replace the configured storage driver when both
	// are set. The App does not close them.
	Cookies persist.Storage
	Local   persist.Storage
}

// App is the application context.
type App struct {
	Config   *config.Config
	Log      logrus.FieldLogger
	Client   *client.Client
	Metrics  *metrics.Client
	Cookies  persist.Storage
	Local    persist.Storage
	Session  *session.Store
	Retailer *retailer.Store
	Wallet   *wallet.Store
	Catalog  *catalog.Store
	Login    *login.Controller

	closers []func() error
}

// New builds an App from cfg.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	log := logging.OrDiscard(opts.Logger)

	a := &App{Config: cfg, Log: log, Metrics: metrics.NewClient()}
	if opts.Cookies != nil && opts.Local != nil {
		a.Cookies, a.Local = opts.Cookies, opts.Local
	} else if err := a.openStorage(ctx); err != nil {
		return nil, err
	}

	c, err := client.New(client.Config{
		BaseURL:    cfg.APIURL,
		OTPURL:     cfg.OTPURL,
		Timeout:    cfg.Timeout,
		HTTPClient: opts.HTTPClient,
		Logger:     log,
		Metrics:    a.Metrics,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Client = c

	a.Session = session.New(a.Cookies, c, log)
	a.Retailer = retailer.New(a.Cookies, c, log)
	a.Wallet = wallet.New(a.Local, c, a.Session, log)
	a.Login = login.New(c, a.Session, a.Retailer, a.Local, log)
	a.Catalog = catalog.New(c, log)
	return a, nil
}

func (a *App) openStorage(ctx context.Context) error {
	st := a.Config.Storage
	switch st.Driver {
	case config.DriverMemory:
		a.Cookies, a.Local = persist.NewMemory(), persist.NewMemory()

	case config.DriverRedis:
		prefix := strings.TrimSuffix(st.Redis.Prefix, ":")
		cookies, err := persist.DialRedis(ctx, st.Redis.Addr, st.Redis.Password, st.Redis.DB,
			persist.RedisOptions{Prefix: prefix + ":cookie:", TTL: st.CookieMaxAge})
		if err != nil {
			return err
		}
		a.closers = append(a.closers, cookies.Close)
		local, err := persist.DialRedis(ctx, st.Redis.Addr, st.Redis.Password, st.Redis.DB,
			persist.RedisOptions{Prefix: prefix + ":local:"})
		if err != nil {
			a.Close()
			return err
		}
		a.closers = append(a.closers, local.Close)
		a.Cookies, a.Local = cookies, local

	default:
		cookies, err := persist.OpenCookies(filepath.Join(st.Dir, CookieFile), persist.CookieOptions{MaxAge: st.CookieMaxAge})
		if err != nil {
			return err
		}
		local, err := persist.OpenLocalStorage(filepath.Join(st.Dir, LocalFile))
		if err != nil {
			return err
		}
		a.Cookies, a.Local = cookies, local
	}
	a.Log.WithField("driver", st.Driver).Debug("storage opened")
	return nil
}

// Logout signs out whichever principal is signed in. Both the user and the
// retailer keys are removed, so the next New hydrates signed out. Wallet
// data in local storage is kept.
func (a *App) Logout() error {
	return errors.Join(a.Session.Logout(), a.Retailer.Logout())
}

// Close releases the storage backings.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
