// Package twincore provides the base HTTP server, flags, middleware chain and
// response helpers for the lottery twin.
package twincore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/wondertwin-ai/lotterykit/internal/logging"
)

// Config holds the twin's runtime configuration.
type Config struct {
	Name     string
	Port     int
	Latency  time.Duration
	FailRate float64
	SeedFile string
	Verbose  bool
	OTPTTL   time.Duration
}

// ParseFlags parses the common twin flags from args (without the program
// name). PORT in the environment is used when --port is not given.
func ParseFlags(name string, args []string) (*Config, error) {
	cfg := &Config{Name: name}
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.IntVar(&cfg.Port, "port", 0, "HTTP listen port")
	fs.DurationVar(&cfg.Latency, "latency", 0, "base simulated latency")
	fs.Float64Var(&cfg.FailRate, "fail-rate", 0, "random failure rate 0.0-1.0")
	fs.StringVar(&cfg.SeedFile, "seed-file", "", "path to JSON fixture for initial state")
	fs.BoolVarP(&cfg.Verbose, "verbose", "v", false, "log every request")
	fs.DurationVar(&cfg.OTPTTL, "otp-ttl", 10*time.Minute, "lifetime of issued OTP codes")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if cfg.FailRate < 0 || cfg.FailRate > 1 {
		return nil, fmt.Errorf("--fail-rate must be between 0.0 and 1.0")
	}
	if cfg.Port == 0 {
		if p := os.Getenv("PORT"); p != "" {
			port, err := strconv.Atoi(p)
			if err != nil {
				return nil, fmt.Errorf("invalid PORT %q: %w", p, err)
			}
			cfg.Port = port
		}
	}
	return cfg, nil
}

// Twin wraps a chi router with the common middleware and lifecycle.
type Twin struct {
	Config   *Config
	Router   *chi.Mux
	Logger   *logrus.Logger
	Registry *prometheus.Registry
	mw       *Middleware
	mu       sync.RWMutex
}

// New creates a Twin. A nil logger logs JSON to stdout.
func New(cfg *Config, logger *logrus.Logger) *Twin {
	if logger == nil {
		level := "info"
		if cfg.Verbose {
			level = "debug"
		}
		l, err := logging.New(level, logging.FormatJSON, os.Stdout)
		if err != nil {
			l = logging.Discard()
		}
		logger = l
	}

	registry := prometheus.NewRegistry()
	mw := NewMiddleware(cfg, logger, registry)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(mw.CORS)
	r.Use(mw.RequestLog)
	r.Use(mw.LatencyInjection)
	r.Use(mw.RandomFailure)

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	return &Twin{
		Config:   cfg,
		Router:   r,
		Logger:   logger,
		Registry: registry,
		mw:       mw,
	}
}

// Middleware returns the middleware instance (fault registry, request log).
func (t *Twin) Middleware() *Middleware {
	return t.mw
}

// GetConfig returns the runtime configuration for the admin plane.
func (t *Twin) GetConfig() map[string]any {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return map[string]any{
		"name":      t.Config.Name,
		"port":      t.Config.Port,
		"latency":   t.Config.Latency.String(),
		"fail_rate": t.Config.FailRate,
		"verbose":   t.Config.Verbose,
	}
}

// Serve listens on the configured port until ctx is done, then shuts down
// gracefully.
func (t *Twin) Serve(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", t.Config.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      t.Router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		t.Logger.WithFields(logrus.Fields{"name": t.Config.Name, "addr": addr}).Info("starting twin")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("serving %s: %w", addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	t.Logger.WithField("name", t.Config.Name).Info("shutting down twin")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// ServeHTTP lets a Twin be used directly with httptest.
func (t *Twin) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	t.Router.ServeHTTP(w, r)
}

// JSON writes v as a JSON response with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

// Error writes the backend's error shape: {"success":false,"message":...}.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]any{
		"success": false,
		"message": message,
	})
}
