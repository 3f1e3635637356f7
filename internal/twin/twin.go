// Package twin assembles the lottery backend twin: the shared twin core, the
// lottery API handlers and the admin plane on one router.
package twin

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/wondertwin-ai/lotterykit/internal/twin/api"
	"github.com/wondertwin-ai/lotterykit/internal/twin/store"
	"github.com/wondertwin-ai/lotterykit/pkg/admin"
	"github.com/wondertwin-ai/lotterykit/pkg/twincore"
)

// Server is a fully wired twin.
type Server struct {
	*twincore.Twin
	Store *store.MemoryStore
	API   *api.Handler
}

// New builds a twin from cfg. The state is seeded from cfg.SeedFile when set,
// otherwise from the built-in demo catalog when seed is true.
func New(cfg *twincore.Config, logger *logrus.Logger, seed bool, opts api.Options) (*Server, error) {
	t := twincore.New(cfg, logger)

	s := store.New()
	if cfg.OTPTTL > 0 {
		s.OTPTTL = cfg.OTPTTL
	}
	switch {
	case cfg.SeedFile != "":
		data, err := os.ReadFile(cfg.SeedFile)
		if err != nil {
			return nil, fmt.Errorf("reading seed file: %w", err)
		}
		if err := s.LoadState(data); err != nil {
			return nil, fmt.Errorf("loading seed file %s: %w", cfg.SeedFile, err)
		}
	case seed:
		s.Seed()
	}

	if opts.Logger == nil {
		opts.Logger = t.Logger
	}
	h, err := api.NewHandler(s, t.Middleware(), opts)
	if err != nil {
		return nil, err
	}
	h.Routes(t.Router)
	admin.NewHandler(h, t.Middleware(), s.Clock).Routes(t.Router)

	return &Server{Twin: t, Store: s, API: h}, nil
}
