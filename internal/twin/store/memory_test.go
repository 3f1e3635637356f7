package store

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		phone, cc         string
		wantPhone, wantCC string
	}{
		{"98765 43210", "", "9876543210", "+91"},
		{"+919876543210", "+91", "9876543210", "+91"},
		{"555-0100", "1", "5550100", "+1"},
	}
	for _, tt := range tests {
		p, cc := NormalizePhone(tt.phone, tt.cc)
		if p != tt.wantPhone || cc != tt.wantCC {
			t.Errorf("NormalizePhone(%q, %q) = %q, %q; want %q, %q", tt.phone, tt.cc, p, cc, tt.wantPhone, tt.wantCC)
		}
	}
}

func TestOTPLifecycle(t *testing.T) {
	s := New()
	o, err := s.IssueOTP("9876543210", "+91")
	if err != nil {
		t.Fatalf("IssueOTP: %v", err)
	}
	if len(o.Code) != 6 {
		t.Fatalf("expected 6-digit code, got %q", o.Code)
	}

	latest, ok := s.LatestOTP("+919876543210")
	if !ok || latest.Code != o.Code {
		t.Fatalf("LatestOTP by full number: %+v ok=%v", latest, ok)
	}

	if err := s.VerifyOTP("9876543210", "+91", "000000x"); !errors.Is(err, ErrOTPInvalid) {
		t.Errorf("expected ErrOTPInvalid, got %v", err)
	}
	if err := s.VerifyOTP("9876543210", "", o.Code); err != nil {
		t.Fatalf("VerifyOTP: %v", err)
	}
	if err := s.VerifyOTP("9876543210", "+91", o.Code); !errors.Is(err, ErrOTPInvalid) {
		t.Errorf("code must be single use, got %v", err)
	}
}

func TestOTPReissueInvalidatesOld(t *testing.T) {
	s := New()
	first, _ := s.IssueOTP("9000000000", "")
	second, _ := s.IssueOTP("9000000000", "")
	if first.Code != second.Code {
		if err := s.VerifyOTP("9000000000", "", first.Code); !errors.Is(err, ErrOTPInvalid) {
			t.Errorf("old code should be invalid, got %v", err)
		}
	}
	if err := s.VerifyOTP("9000000000", "", second.Code); err != nil {
		t.Errorf("latest code should verify: %v", err)
	}
}

func TestOTPExpiry(t *testing.T) {
	s := New()
	s.OTPTTL = time.Minute
	o, _ := s.IssueOTP("9000000000", "")
	s.Clock.Advance(2 * time.Minute)
	if err := s.VerifyOTP("9000000000", "", o.Code); !errors.Is(err, ErrOTPExpired) {
		t.Errorf("expected ErrOTPExpired, got %v", err)
	}
}

func TestEnsureUserIsIdempotent(t *testing.T) {
	s := New()
	s.StartingBalance = 500
	a := s.EnsureUser("9000000000", "+91")
	b := s.EnsureUser("+919000000000", "+91")
	if a.ID != b.ID {
		t.Fatalf("expected same user, got %s and %s", a.ID, b.ID)
	}
	if got := s.Balance(a.ID); got != 500 {
		t.Errorf("expected starting balance 500, got %v", got)
	}
	if txs := s.TransactionsFor(a.ID); len(txs) != 1 || txs[0].Type != TransactionCredit {
		t.Errorf("expected one credit transaction, got %+v", txs)
	}
}

func TestPurchase(t *testing.T) {
	s := New()
	s.Seed()
	u := s.EnsureUser("9000000000", "")
	if _, err := s.Credit(u.ID, 120, "top up"); err != nil {
		t.Fatalf("Credit: %v", err)
	}

	tickets, balance, err := s.Purchase(u.ID, "daily-draw", []string{"111", "222"})
	if err != nil {
		t.Fatalf("Purchase: %v", err)
	}
	if len(tickets) != 2 || balance != 20 {
		t.Fatalf("expected 2 tickets and balance 20, got %d and %v", len(tickets), balance)
	}
	if got := s.TicketsFor(u.ID); len(got) != 2 {
		t.Errorf("expected 2 owned tickets, got %d", len(got))
	}
	txs := s.TransactionsFor(u.ID)
	if last := txs[len(txs)-1]; last.Type != TransactionDebit || last.Amount != 100 {
		t.Errorf("expected debit of 100, got %+v", last)
	}

	if _, _, err := s.Purchase(u.ID, "daily-draw", []string{"111"}); !errors.Is(err, ErrNumberTaken) {
		t.Errorf("expected ErrNumberTaken, got %v", err)
	}
	if _, _, err := s.Purchase(u.ID, "daily-draw", []string{"333"}); !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("expected ErrInsufficientFunds, got %v", err)
	}
	if _, _, err := s.Purchase(u.ID, "nope", []string{"1"}); !errors.Is(err, ErrLotteryNotFound) {
		t.Errorf("expected ErrLotteryNotFound, got %v", err)
	}
	if _, _, err := s.Purchase(u.ID, "daily-draw", nil); !errors.Is(err, ErrNoNumbers) {
		t.Errorf("expected ErrNoNumbers, got %v", err)
	}
	if got := s.Balance(u.ID); got != 20 {
		t.Errorf("failed purchases must not debit, balance %v", got)
	}
}

func TestPurchaseDuplicateNumbersInRequest(t *testing.T) {
	s := New()
	s.Seed()
	u := s.EnsureUser("9000000000", "")
	s.Credit(u.ID, 1000, "top up")
	if _, _, err := s.Purchase(u.ID, "daily-draw", []string{"7", "7"}); !errors.Is(err, ErrNumberTaken) {
		t.Errorf("expected ErrNumberTaken, got %v", err)
	}
	if n := len(s.TicketsForLottery("daily-draw")); n != 0 {
		t.Errorf("no ticket should be issued, got %d", n)
	}
}

func TestRetailerLookup(t *testing.T) {
	s := New()
	s.Seed()
	r, err := s.RetailerBySlug("lucky-corner")
	if err != nil || r.ID != "ret_demo" {
		t.Fatalf("RetailerBySlug: %+v %v", r, err)
	}
	if _, err := s.RetailerByPhone("9000000001", "+91"); err != nil {
		t.Errorf("RetailerByPhone: %v", err)
	}
	if _, err := s.RetailerBySlug("missing"); !errors.Is(err, ErrRetailerNotFound) {
		t.Errorf("expected ErrRetailerNotFound, got %v", err)
	}
}

func TestRecordTransaction(t *testing.T) {
	s := New()
	u := s.EnsureUser("9000000000", "")
	tx := s.RecordTransaction(u.ID, Transaction{Amount: 10, Type: TransactionDebit, Description: "cart"})
	if tx.ID == "" || tx.Timestamp == "" || tx.UserID != u.ID {
		t.Errorf("expected filled-in transaction, got %+v", tx)
	}
	if s.Balance(u.ID) != 0 {
		t.Error("recording must not change the balance")
	}
}

func TestSnapshotLoadReset(t *testing.T) {
	s := New()
	s.Seed()
	s.EnsureUser("9000000000", "")

	data, err := json.Marshal(s.Snapshot())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	other := New()
	if err := other.LoadState(data); err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if other.Users.Len() != 1 || other.Lotteries.Len() != 2 {
		t.Errorf("unexpected loaded state: users=%d lotteries=%d", other.Users.Len(), other.Lotteries.Len())
	}

	if err := other.LoadState([]byte(`{"lotteries":{}}`)); err != nil {
		t.Fatalf("partial LoadState: %v", err)
	}
	if other.Lotteries.Len() != 0 || other.Users.Len() != 1 {
		t.Errorf("partial load should only replace named tables")
	}

	other.Reset()
	if other.Users.Len() != 0 || other.Retailers.Len() != 0 {
		t.Error("Reset should clear all tables")
	}
}
