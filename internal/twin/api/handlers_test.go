package api_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/wondertwin-ai/lotterykit/internal/logging"
	"github.com/wondertwin-ai/lotterykit/internal/twin"
	"github.com/wondertwin-ai/lotterykit/internal/twin/api"
	"github.com/wondertwin-ai/lotterykit/pkg/testutil"
	"github.com/wondertwin-ai/lotterykit/pkg/twincore"
)

const testPhone = "9876543210"

func setupLottery(t *testing.T) (*twin.Server, *testutil.TwinClient, *testutil.AdminClient) {
	t.Helper()
	cfg := &twincore.Config{Name: "twin-lottery-test"}
	srv, err := twin.New(cfg, logging.Discard(), true, api.Options{})
	if err != nil {
		t.Fatalf("twin.New: %v", err)
	}
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	tc := testutil.NewTwinClient(t, ts)
	return srv, tc, testutil.NewAdminClient(tc)
}

// login runs the OTP flow for a user and returns the bearer token.
func login(t *testing.T, tc *testutil.TwinClient, ac *testutil.AdminClient, phone string) string {
	t.Helper()
	tc.Post("/otp/sendOtp", map[string]string{"phoneNumber": phone, "countryCode": "+91"}).
		AssertStatus(http.StatusOK)
	code := ac.OTP(phone)
	var out struct {
		Token string `json:"token"`
	}
	tc.Post("/user/login", map[string]string{"phone": phone, "otp": code, "countryCode": "+91"}).
		AssertStatus(http.StatusOK).
		JSON(&out)
	if out.Token == "" {
		t.Fatal("login returned no token")
	}
	return out.Token
}

// --- OTP & login ---

func TestSendOTPRequiresPhone(t *testing.T) {
	_, tc, _ := setupLottery(t)
	tc.Post("/otp/sendOtp", map[string]string{"countryCode": "+91"}).
		AssertStatus(http.StatusBadRequest).
		AssertBodyContains("Phone number is required")
}

func TestSendOTPThrottled(t *testing.T) {
	_, tc, ac := setupLottery(t)
	for i := 0; i < 3; i++ {
		tc.Post("/otp/sendOtp", map[string]string{"phoneNumber": testPhone}).AssertStatus(http.StatusOK)
	}
	tc.Post("/otp/sendOtp", map[string]string{"phoneNumber": testPhone}).
		AssertStatus(http.StatusTooManyRequests)

	// Other numbers are throttled independently.
	tc.Post("/otp/sendOtp", map[string]string{"phoneNumber": "9000000000"}).AssertStatus(http.StatusOK)

	// Reset clears the throttle.
	ac.Reset().AssertStatus(http.StatusOK)
	tc.Post("/otp/sendOtp", map[string]string{"phoneNumber": testPhone}).AssertStatus(http.StatusOK)
}

func TestUserLoginFlow(t *testing.T) {
	srv, tc, ac := setupLottery(t)
	tc.Post("/otp/sendOtp", map[string]string{"phoneNumber": testPhone, "countryCode": "+91"}).
		AssertStatus(http.StatusOK)

	tc.Post("/user/login", map[string]string{"phone": testPhone, "otp": "xxxxxx"}).
		AssertStatus(http.StatusUnauthorized).
		AssertBodyContains("Invalid OTP")

	code := ac.OTP("+91" + testPhone)
	m := tc.Post("/user/login", map[string]string{"phone": testPhone, "otp": code, "countryCode": "+91"}).
		AssertStatus(http.StatusOK).
		JSONMap()
	user, ok := m["user"].(map[string]any)
	if !ok || user["phoneNumber"] != testPhone {
		t.Fatalf("unexpected user: %v", m["user"])
	}
	claims, err := srv.API.Tokens().Verify(m["token"].(string))
	if err != nil {
		t.Fatalf("issued token does not verify: %v", err)
	}
	if claims.Kind != api.KindUser {
		t.Errorf("expected user token, got %q", claims.Kind)
	}

	// The code is consumed.
	tc.Post("/user/login", map[string]string{"phone": testPhone, "otp": code, "countryCode": "+91"}).
		AssertStatus(http.StatusUnauthorized)
}

func TestLoginExpiredOTP(t *testing.T) {
	_, tc, ac := setupLottery(t)
	tc.Post("/otp/sendOtp", map[string]string{"phoneNumber": testPhone}).AssertStatus(http.StatusOK)
	code := ac.OTP(testPhone)
	ac.AdvanceTime("11m").AssertStatus(http.StatusOK)
	tc.Post("/user/login", map[string]string{"phone": testPhone, "otp": code}).
		AssertStatus(http.StatusUnauthorized).
		AssertBodyContains("expired")
}

func TestRetailerLogin(t *testing.T) {
	srv, tc, ac := setupLottery(t)

	tc.Post("/otp/sendOtp", map[string]string{"phoneNumber": "9000000001"}).AssertStatus(http.StatusOK)
	m := tc.Post("/retailer/login", map[string]string{"phone": "9000000001", "otp": ac.OTP("9000000001")}).
		AssertStatus(http.StatusOK).
		JSONMap()
	ret := m["retailer"].(map[string]any)
	if ret["_id"] != "ret_demo" || ret["uniqueId"] != "lucky-corner" {
		t.Errorf("unexpected retailer: %v", ret)
	}

	// Retailer tokens cannot call user endpoints.
	tc.WithToken(m["token"].(string)).Get("/user/wallet").AssertStatus(http.StatusForbidden)

	// Unknown retailers are rejected after OTP verification.
	tc.Post("/otp/sendOtp", map[string]string{"phoneNumber": "9111111111"}).AssertStatus(http.StatusOK)
	tc.Post("/retailer/login", map[string]string{"phone": "9111111111", "otp": ac.OTP("9111111111")}).
		AssertStatus(http.StatusNotFound)
	if srv.Store.Users.Len() != 0 {
		t.Error("retailer login must not register users")
	}
}

// --- Authenticated endpoints ---

func TestAuthRequired(t *testing.T) {
	_, tc, _ := setupLottery(t)
	for _, path := range []string{"/user/tickets", "/user/wallet", "/user/wallet/transactions"} {
		tc.Get(path).AssertStatus(http.StatusUnauthorized)
	}
	tc.WithToken("not-a-jwt").Get("/user/wallet").
		AssertStatus(http.StatusUnauthorized).
		AssertBodyContains("Invalid or expired token")
}

func TestTokenExpiresWithSimulatedTime(t *testing.T) {
	_, tc, ac := setupLottery(t)
	token := login(t, tc, ac, testPhone)
	tc.WithToken(token).Get("/user/wallet").AssertStatus(http.StatusOK)
	ac.AdvanceTime("25h").AssertStatus(http.StatusOK)
	tc.WithToken(token).Get("/user/wallet").AssertStatus(http.StatusUnauthorized)
}

func TestPurchaseFlow(t *testing.T) {
	_, tc, ac := setupLottery(t)
	token := login(t, tc, ac, testPhone)
	user := tc.WithToken(token)

	user.Post("/ticket/purchase", map[string]any{"lottery_id": "daily-draw", "custom_ticket_numbers": []string{"42"}}).
		AssertStatus(http.StatusPaymentRequired)

	ac.Post("/admin/wallet/credit", map[string]any{"phone": testPhone, "amount": 100}).
		AssertStatus(http.StatusOK)

	var bal struct {
		Balance float64 `json:"balance"`
	}
	user.Get("/user/wallet").AssertStatus(http.StatusOK).JSON(&bal)
	if bal.Balance != 100 {
		t.Fatalf("expected balance 100, got %v", bal.Balance)
	}

	m := user.Post("/ticket/purchase", map[string]any{"lottery_id": "daily-draw", "custom_ticket_numbers": []string{"42"}}).
		AssertStatus(http.StatusCreated).
		JSONMap()
	if m["balance"] != float64(50) {
		t.Errorf("expected balance 50 after purchase, got %v", m["balance"])
	}

	user.Post("/ticket/purchase", map[string]any{"lottery_id": "daily-draw", "custom_ticket_numbers": []string{"42"}}).
		AssertStatus(http.StatusConflict)
	user.Post("/ticket/purchase", map[string]any{"lottery_id": "nope", "custom_ticket_numbers": []string{"1"}}).
		AssertStatus(http.StatusNotFound)

	var tickets struct {
		Tickets []map[string]any `json:"tickets"`
	}
	user.Get("/user/tickets").AssertStatus(http.StatusOK).JSON(&tickets)
	if len(tickets.Tickets) != 1 || tickets.Tickets[0]["ticket_number"] != "42" {
		t.Errorf("unexpected tickets: %v", tickets.Tickets)
	}

	var byLottery []map[string]any
	tc.Get("/ticket/lottery/daily-draw").AssertStatus(http.StatusOK).JSON(&byLottery)
	if len(byLottery) != 1 {
		t.Errorf("expected 1 ticket for lottery, got %d", len(byLottery))
	}
	tc.Get("/ticket/lottery/missing").AssertStatus(http.StatusNotFound)

	var txs struct {
		Transactions []map[string]any `json:"transactions"`
	}
	user.Get("/user/wallet/transactions").AssertStatus(http.StatusOK).JSON(&txs)
	if len(txs.Transactions) != 2 || txs.Transactions[1]["type"] != "debit" {
		t.Errorf("expected credit then debit, got %v", txs.Transactions)
	}
}

func TestRecordTransaction(t *testing.T) {
	_, tc, ac := setupLottery(t)
	user := tc.WithToken(login(t, tc, ac, testPhone))

	user.Post("/user/purchase", map[string]any{"amount": 10, "type": "refund"}).
		AssertStatus(http.StatusBadRequest)

	m := user.Post("/user/purchase", map[string]any{"amount": 10, "type": "debit", "description": "cart checkout"}).
		AssertStatus(http.StatusCreated).
		JSONMap()
	tx := m["transaction"].(map[string]any)
	if tx["id"] == "" || tx["description"] != "cart checkout" {
		t.Errorf("unexpected echo: %v", tx)
	}

	var bal struct {
		Balance float64 `json:"balance"`
	}
	user.Get("/user/wallet").JSON(&bal)
	if bal.Balance != 0 {
		t.Errorf("recording must not change balance, got %v", bal.Balance)
	}
}

func TestListLotteries(t *testing.T) {
	_, tc, _ := setupLottery(t)
	var out struct {
		Success   bool `json:"success"`
		Lotteries []struct {
			ID    string  `json:"id"`
			Price float64 `json:"price"`
		} `json:"lotteries"`
	}
	tc.Get("/lottery").AssertStatus(http.StatusOK).JSON(&out)
	if !out.Success || len(out.Lotteries) != 2 {
		t.Fatalf("unexpected catalog: %+v", out)
	}
	if out.Lotteries[0].ID != "daily-draw" || out.Lotteries[1].ID != "mega-jackpot" {
		t.Errorf("want seed order, got %+v", out.Lotteries)
	}

	tc.Post("/admin/lotteries", map[string]any{"id": "weekly", "name": "Weekly", "price": 25}).
		AssertStatus(http.StatusCreated)
	tc.Get("/lottery").AssertStatus(http.StatusOK).JSON(&out)
	if len(out.Lotteries) != 3 || out.Lotteries[2].ID != "weekly" {
		t.Errorf("created lottery not listed: %+v", out.Lotteries)
	}
}

func TestRetailerBySlug(t *testing.T) {
	_, tc, _ := setupLottery(t)
	m := tc.Get("/retailer/store/lucky-corner").AssertStatus(http.StatusOK).JSONMap()
	if m["retailer"].(map[string]any)["brandName"] != "Lucky Corner" {
		t.Errorf("unexpected retailer: %v", m)
	}
	tc.Get("/retailer/store/nope").AssertStatus(http.StatusNotFound).AssertBodyContains("Store not found")
}

// --- Admin & faults ---

func TestFaultInjectionOnAPI(t *testing.T) {
	_, tc, ac := setupLottery(t)
	user := tc.WithToken(login(t, tc, ac, testPhone))

	ac.InjectFault("/user/wallet", map[string]any{"status_code": 503, "body": `{"message":"wallet down"}`}).
		AssertStatus(http.StatusOK)
	user.Get("/user/wallet").AssertStatus(http.StatusServiceUnavailable).AssertBodyContains("wallet down")

	ac.RemoveFault("/user/wallet").AssertStatus(http.StatusOK)
	user.Get("/user/wallet").AssertStatus(http.StatusOK)
}

func TestAdminOTPNotFound(t *testing.T) {
	_, tc, _ := setupLottery(t)
	tc.Get("/admin/otp?phone=123").AssertStatus(http.StatusNotFound)
	tc.Get("/admin/otp").AssertStatus(http.StatusBadRequest)
}

func TestAdminCreateLottery(t *testing.T) {
	srv, tc, _ := setupLottery(t)
	tc.Post("/admin/lotteries", map[string]any{"id": "weekly", "name": "Weekly", "price": 0}).
		AssertStatus(http.StatusBadRequest)
	tc.Post("/admin/lotteries", map[string]any{"id": "weekly", "name": "Weekly", "price": 25}).
		AssertStatus(http.StatusCreated)
	if _, ok := srv.Store.Lotteries.Get("weekly"); !ok {
		t.Error("lottery not stored")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	_, tc, _ := setupLottery(t)
	tc.Get("/retailer/store/lucky-corner").AssertStatus(http.StatusOK)
	tc.Get("/metrics").
		AssertStatus(http.StatusOK).
		AssertBodyContains(`lotto_twin_requests_total{method="GET",route="/retailer/store/{slug}",status="200"} 1`)
}

func TestTokenManager(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m, err := api.NewTokenManager(time.Hour, func() time.Time { return now })
	if err != nil {
		t.Fatalf("NewTokenManager: %v", err)
	}
	tok, err := m.Issue(api.KindRetailer, "ret_1", "+919000000001")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	claims, err := m.Verify(tok)
	if err != nil || claims.Subject != "ret_1" || claims.Kind != api.KindRetailer {
		t.Fatalf("Verify: %+v %v", claims, err)
	}

	other, _ := api.NewTokenManager(time.Hour, func() time.Time { return now })
	if _, err := other.Verify(tok); err == nil {
		t.Error("token signed with another secret must not verify")
	}

	now = now.Add(2 * time.Hour)
	if _, err := m.Verify(tok); err == nil {
		t.Error("expired token must not verify")
	}
}
