// lotto is a terminal client for the lottery storefront: OTP sign-in for
// users and retailers, tickets, the cart, purchases and the wallet.
//
// Usage:
//
//	lotto otp <phone>                      Request a login code
//	lotto login <otp> [--retailer]         Sign in with the code
//	lotto logout                           Sign out
//	lotto whoami                           Show the signed-in principal
//	lotto lotteries                        List the lottery catalog
//	lotto tickets                          List your tickets
//	lotto lottery <id>                     List tickets sold for a lottery
//	lotto cart list|add|remove|clear       Manage the cart
//	lotto purchase <lottery> <numbers...>  Buy tickets
//	lotto wallet [--transactions]          Show the wallet
//	lotto store <slug>                     Look up a retailer storefront
//	lotto config show                      Print the effective config
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/wondertwin-ai/lotterykit/internal/app"
	"github.com/wondertwin-ai/lotterykit/internal/client"
	"github.com/wondertwin-ai/lotterykit/internal/config"
	"github.com/wondertwin-ai/lotterykit/internal/logging"
	"github.com/wondertwin-ai/lotterykit/internal/principal"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "lotto: %s\n", describe(err))
		os.Exit(1)
	}
}

// describe prefers the backend's own message for API failures.
func describe(err error) string {
	var apiErr *client.Error
	if errors.As(err, &apiErr) {
		if errors.Is(err, client.ErrNoToken) {
			return "not signed in (run 'lotto otp <phone>' then 'lotto login <code>')"
		}
		return apiErr.Message
	}
	return err.Error()
}

type globalFlags struct {
	configPath string
	apiURL     string
	verbose    bool
}

func run(ctx context.Context, argv []string, stdout, stderr io.Writer) error {
	var g globalFlags
	fs := pflag.NewFlagSet("lotto", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.SetInterspersed(false)
	fs.StringVar(&g.configPath, "config", "", "path to config file (default ~/.lotto/config.yaml)")
	fs.StringVar(&g.apiURL, "api-url", "", "override the API base URL")
	fs.BoolVarP(&g.verbose, "verbose", "v", false, "log debug output to stderr")
	fs.Usage = func() { printUsage(stderr) }
	if err := fs.Parse(argv); err != nil {
		return err
	}

	args := fs.Args()
	if len(args) == 0 {
		printUsage(stderr)
		return fmt.Errorf("no command given")
	}
	cmd, args := args[0], args[1:]

	switch cmd {
	case "help":
		printUsage(stdout)
		return nil
	case "version":
		fmt.Fprintf(stdout, "lotto version %s\n", version)
		return nil
	}

	cfg, err := loadConfig(g)
	if err != nil {
		return err
	}
	if cmd == "config" {
		return cmdConfig(stdout, cfg, args)
	}

	level := cfg.LogLevel
	if g.verbose {
		level = "debug"
	}
	logger, err := logging.New(level, cfg.LogFormat, stderr)
	if err != nil {
		return err
	}

	a, err := app.New(ctx, cfg, app.Options{Logger: logger})
	if err != nil {
		return err
	}
	defer a.Close()

	c := &cli{app: a, out: stdout, errOut: stderr}
	switch cmd {
	case "otp":
		return c.otp(ctx, args)
	case "login":
		return c.login(ctx, args)
	case "logout":
		return c.logout()
	case "whoami":
		return c.whoami()
	case "lotteries":
		return c.lotteries(ctx)
	case "tickets":
		return c.tickets(ctx)
	case "lottery":
		return c.lottery(ctx, args)
	case "cart":
		return c.cart(args)
	case "purchase":
		return c.purchase(ctx, args)
	case "wallet":
		return c.wallet(ctx, args)
	case "store":
		return c.store(ctx, args)
	default:
		printUsage(stderr)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func loadConfig(g globalFlags) (*config.Config, error) {
	path := g.configPath
	if path == "" {
		if p := os.Getenv("LOTTO_CONFIG"); p != "" {
			path = p
		} else {
			p, err := config.Path()
			if err != nil {
				return nil, err
			}
			path = p
		}
	}
	cfg, err := config.LoadFrom(path)
	if err != nil {
		return nil, err
	}
	if g.apiURL != "" {
		cfg.APIURL = g.apiURL
	}
	return cfg, nil
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `lotto - lottery storefront CLI %s

Usage:
  lotto [--config <path>] [--api-url <url>] [-v] <command> [arguments]

Commands:
  otp <phone> [--country-code +91]      Request a login code
  login <otp> [--retailer]              Sign in with the code
  logout                                Sign out
  whoami                                Show the signed-in user or retailer
  lotteries                             List the lottery catalog
  tickets                               List your tickets
  lottery <id>                          List tickets sold for a lottery
  cart list                             Show the cart
  cart add <id> [--lottery l] [--number n] [--price p]
  cart remove <id>                      Remove a cart entry
  cart clear                            Empty the cart
  purchase <lottery> <numbers...>       Buy tickets
  wallet [--transactions]               Show balance (and history)
  store <slug>                          Look up a retailer storefront
  config show                           Print the effective config
  version                               Print the lotto version

Environment:
  LOTTO_CONFIG      Override the config file path
  LOTTO_API_URL     Override the API base URL (any config key has a LOTTO_ form)
`, version)
}

// ---------------------------------------------------------------------------
// lotto config
// ---------------------------------------------------------------------------

func cmdConfig(w io.Writer, cfg *config.Config, args []string) error {
	if len(args) == 0 || args[0] != "show" {
		return fmt.Errorf("usage: lotto config show")
	}
	redacted := *cfg
	if redacted.Storage.Redis.Password != "" {
		redacted.Storage.Redis.Password = "********"
	}
	data, err := yaml.Marshal(&redacted)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// cli runs the commands that need the application context.
type cli struct {
	app    *app.App
	out    io.Writer
	errOut io.Writer
}

func (c *cli) flags(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet("lotto "+name, pflag.ContinueOnError)
	fs.SetOutput(c.errOut)
	return fs
}

// ---------------------------------------------------------------------------
// lotto otp / login / logout / whoami
// ---------------------------------------------------------------------------

func (c *cli) otp(ctx context.Context, args []string) error {
	fs := c.flags("otp")
	countryCode := fs.String("country-code", "", "country calling code (default +91)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: lotto otp <phone> [--country-code +91]")
	}
	if err := c.app.Login.RequestOTP(ctx, fs.Arg(0), *countryCode); err != nil {
		return err
	}
	phone, cc := c.app.Login.Phone()
	fmt.Fprintf(c.out, "Code sent to %s %s. Run 'lotto login <code>' to sign in.\n", cc, phone)
	return nil
}

func (c *cli) login(ctx context.Context, args []string) error {
	fs := c.flags("login")
	asRetailer := fs.Bool("retailer", false, "sign in as a retailer")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: lotto login <otp> [--retailer]")
	}
	kind := principal.User
	if *asRetailer {
		kind = principal.Retailer
	}

	res, err := c.app.Login.Submit(ctx, kind, fs.Arg(0))
	if err != nil {
		return err
	}
	switch res.Principal.Kind {
	case principal.Retailer:
		fmt.Fprintf(c.out, "Signed in as retailer %s (%s).\n", res.Principal.Retailer.BrandName, res.Principal.Retailer.ID)
	default:
		fmt.Fprintf(c.out, "Signed in as %s.\n", displayName(*res.Principal.User))
	}
	fmt.Fprintf(c.out, "Landing page: %s\n", res.Redirect)
	return nil
}

func (c *cli) logout() error {
	if err := c.app.Logout(); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "Signed out.")
	return nil
}

func (c *cli) whoami() error {
	if c.app.Session.Authenticated() {
		p, _ := c.app.Session.Profile()
		fmt.Fprintf(c.out, "User:  %s\n", displayName(p))
		if p.Email != "" {
			fmt.Fprintf(c.out, "Email: %s\n", p.Email)
		}
		fmt.Fprintf(c.out, "Phone: %s\n", p.PhoneNumber)
		return nil
	}
	if c.app.Retailer.Authenticated() {
		p, _ := c.app.Retailer.Profile()
		fmt.Fprintf(c.out, "Retailer: %s\n", p.BrandName)
		fmt.Fprintf(c.out, "ID:       %s\n", p.ID)
		fmt.Fprintf(c.out, "Store:    %s\n", p.UniqueID)
		return nil
	}
	fmt.Fprintln(c.out, "Not signed in.")
	return nil
}

func displayName(p client.UserProfile) string {
	if p.Name != "" {
		return p.Name
	}
	return p.PhoneNumber
}

// ---------------------------------------------------------------------------
// lotto lotteries / tickets / lottery
// ---------------------------------------------------------------------------

func (c *cli) lotteries(ctx context.Context) error {
	lots, err := c.app.Catalog.FetchAll(ctx)
	if err != nil {
		return err
	}
	if len(lots) == 0 {
		fmt.Fprintln(c.out, "No lotteries.")
		return nil
	}
	fmt.Fprintf(c.out, "%-14s %-20s %9s  %s\n", "ID", "NAME", "PRICE", "DRAW")
	for _, l := range lots {
		fmt.Fprintf(c.out, "%-14s %-20s %9.2f  %s\n", l.ID, l.Name, l.Price, l.DrawDate)
	}
	return nil
}

func (c *cli) tickets(ctx context.Context) error {
	tickets, err := c.app.Session.GetUserTickets(ctx)
	if err != nil {
		return err
	}
	c.printTickets(tickets)
	return nil
}

func (c *cli) lottery(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: lotto lottery <id>")
	}
	tickets, err := c.app.Session.FetchTicketsByLotteryID(ctx, args[0])
	if err != nil {
		return err
	}
	c.printTickets(tickets)
	return nil
}

func (c *cli) printTickets(tickets []client.Ticket) {
	if len(tickets) == 0 {
		fmt.Fprintln(c.out, "No tickets.")
		return
	}
	fmt.Fprintf(c.out, "%-12s %-14s %-10s %9s  %s\n", "ID", "LOTTERY", "NUMBER", "PRICE", "STATUS")
	for _, t := range tickets {
		fmt.Fprintf(c.out, "%-12s %-14s %-10s %9.2f  %s\n", t.ID, t.LotteryID, t.Number, t.Price, t.Status)
	}
}

// ---------------------------------------------------------------------------
// lotto cart
// ---------------------------------------------------------------------------

func (c *cli) cart(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: lotto cart <list|add|remove|clear>")
	}
	switch args[0] {
	case "list":
		c.printTickets(c.app.Session.Cart())
		return nil
	case "add":
		return c.cartAdd(args[1:])
	case "remove":
		if len(args) != 2 {
			return fmt.Errorf("usage: lotto cart remove <id>")
		}
		if err := c.app.Session.RemoveFromCart(args[1]); err != nil {
			return err
		}
		fmt.Fprintf(c.out, "Removed %s. %d item(s) in cart.\n", args[1], len(c.app.Session.Cart()))
		return nil
	case "clear":
		if err := c.app.Session.ClearCart(); err != nil {
			return err
		}
		fmt.Fprintln(c.out, "Cart cleared.")
		return nil
	default:
		return fmt.Errorf("unknown cart subcommand %q (expected list, add, remove, or clear)", args[0])
	}
}

func (c *cli) cartAdd(args []string) error {
	fs := c.flags("cart add")
	lotteryID := fs.String("lottery", "", "lottery id")
	number := fs.String("number", "", "ticket number")
	price := fs.Float64("price", 0, "ticket price")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: lotto cart add <id> [--lottery l] [--number n] [--price p]")
	}
	t := client.Ticket{ID: fs.Arg(0), LotteryID: *lotteryID, Number: *number, Price: *price}
	if err := c.app.Session.AddToCart(t); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Added %s. %d item(s) in cart.\n", t.ID, len(c.app.Session.Cart()))
	return nil
}

// ---------------------------------------------------------------------------
// lotto purchase
// ---------------------------------------------------------------------------

func (c *cli) purchase(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: lotto purchase <lottery> <numbers...>")
	}
	req := client.PurchaseRequest{LotteryID: args[0], Tickets: args[1:]}
	res, err := c.app.Session.PurchaseTicket(ctx, req)
	if err != nil {
		return err
	}

	msg := res.Message
	if msg == "" {
		msg = "Purchase complete"
	}
	fmt.Fprintln(c.out, msg+".")
	if len(res.Tickets) > 0 {
		c.printTickets(res.Tickets)
	}
	if res.Balance != nil {
		if err := c.app.Wallet.SetBalance(*res.Balance); err != nil {
			return err
		}
		fmt.Fprintf(c.out, "Balance: %.2f\n", *res.Balance)
	}
	return nil
}

// ---------------------------------------------------------------------------
// lotto wallet
// ---------------------------------------------------------------------------

func (c *cli) wallet(ctx context.Context, args []string) error {
	fs := c.flags("wallet")
	withHistory := fs.Bool("transactions", false, "also list wallet transactions")
	if err := fs.Parse(args); err != nil {
		return err
	}

	bal, err := c.app.Wallet.GetWalletBalance(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Balance: %.2f\n", bal)
	if !*withHistory {
		return nil
	}

	txs, err := c.app.Wallet.GetWalletTransactions(ctx)
	if err != nil {
		return err
	}
	if len(txs) == 0 {
		fmt.Fprintln(c.out, "No transactions.")
		return nil
	}
	fmt.Fprintln(c.out)
	fmt.Fprintf(c.out, "%-22s %-7s %10s  %s\n", "TIME", "TYPE", "AMOUNT", "DESCRIPTION")
	for _, tx := range txs {
		fmt.Fprintf(c.out, "%-22s %-7s %10.2f  %s\n", tx.Timestamp, tx.Type, tx.Amount, tx.Description)
	}
	return nil
}

// ---------------------------------------------------------------------------
// lotto store
// ---------------------------------------------------------------------------

func (c *cli) store(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: lotto store <slug>")
	}
	p, err := c.app.Retailer.FetchBySlug(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Store:    %s\n", p.BrandName)
	fmt.Fprintf(c.out, "ID:       %s\n", p.ID)
	if p.Logo != "" {
		fmt.Fprintf(c.out, "Logo:     %s\n", p.Logo)
	}
	if len(p.Customization) > 0 {
		data, err := json.Marshal(p.Customization)
		if err == nil {
			fmt.Fprintf(c.out, "Branding: %s\n", strings.TrimSpace(string(data)))
		}
	}
	return nil
}
