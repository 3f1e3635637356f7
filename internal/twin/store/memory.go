package store

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	pkgstore "github.com/wondertwin-ai/lotterykit/pkg/store"
)

// Errors returned by MemoryStore operations.
var (
	ErrOTPInvalid        = errors.New("invalid OTP")
	ErrOTPExpired        = errors.New("OTP has expired")
	ErrRetailerNotFound  = errors.New("retailer not found")
	ErrLotteryNotFound   = errors.New("lottery not found")
	ErrInsufficientFunds = errors.New("insufficient wallet balance")
	ErrNumberTaken       = errors.New("ticket number already sold")
	ErrNoNumbers         = errors.New("at least one ticket number is required")
)

// MemoryStore holds all lottery twin state in memory.
type MemoryStore struct {
	Users        *pkgstore.Table[User]
	Retailers    *pkgstore.Table[Retailer]
	Lotteries    *pkgstore.Table[Lottery]
	Tickets      *pkgstore.Table[Ticket]
	Wallets      *pkgstore.Table[Wallet]
	Transactions *pkgstore.Table[Transaction]
	OTPs         *pkgstore.Table[OTP]
	Clock        *pkgstore.Clock

	// OTPTTL is how long an issued code stays valid. Default 10 minutes.
	OTPTTL time.Duration
	// StartingBalance is credited to a user's wallet on first login.
	StartingBalance float64

	// mu serializes operations spanning several tables (purchase, credit).
	mu sync.Mutex
}

// New creates a MemoryStore with empty state.
func New() *MemoryStore {
	return &MemoryStore{
		Users:        pkgstore.New[User]("usr"),
		Retailers:    pkgstore.New[Retailer]("ret"),
		Lotteries:    pkgstore.New[Lottery]("lot"),
		Tickets:      pkgstore.New[Ticket]("tkt"),
		Wallets:      pkgstore.New[Wallet]("wal"),
		Transactions: pkgstore.New[Transaction]("txn"),
		OTPs:         pkgstore.New[OTP]("otp"),
		Clock:        pkgstore.NewClock(),
		OTPTTL:       10 * time.Minute,
	}
}

// Seed loads a small demo catalog: two lotteries and one retailer.
func (s *MemoryStore) Seed() {
	draw := s.Clock.Now().Add(7 * 24 * time.Hour).Format(time.RFC3339)
	s.Lotteries.Put("daily-draw", Lottery{ID: "daily-draw", Name: "Daily Draw", Price: 50, DrawDate: draw})
	s.Lotteries.Put("mega-jackpot", Lottery{ID: "mega-jackpot", Name: "Mega Jackpot", Price: 200, DrawDate: draw})
	s.Retailers.Put("ret_demo", Retailer{
		ID:          "ret_demo",
		BrandName:   "Lucky Corner",
		UniqueID:    "lucky-corner",
		PhoneNumber: "9000000001",
		CountryCode: DefaultCountryCode,
		Customization: map[string]any{
			"primaryColor": "#1f6feb",
		},
	})
}

type snapshot struct {
	Users        map[string]User        `json:"users"`
	Retailers    map[string]Retailer    `json:"retailers"`
	Lotteries    map[string]Lottery     `json:"lotteries"`
	Tickets      map[string]Ticket      `json:"tickets"`
	Wallets      map[string]Wallet      `json:"wallets"`
	Transactions map[string]Transaction `json:"transactions"`
	OTPs         map[string]OTP         `json:"otps"`
}

// Snapshot returns the full state as a JSON-serializable value.
func (s *MemoryStore) Snapshot() any {
	return snapshot{
		Users:        s.Users.Snapshot(),
		Retailers:    s.Retailers.Snapshot(),
		Lotteries:    s.Lotteries.Snapshot(),
		Tickets:      s.Tickets.Snapshot(),
		Wallets:      s.Wallets.Snapshot(),
		Transactions: s.Transactions.Snapshot(),
		OTPs:         s.OTPs.Snapshot(),
	}
}

// LoadState replaces the tables present in the JSON body. Tables the body
// does not mention are left alone.
func (s *MemoryStore) LoadState(data []byte) error {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if snap.Users != nil {
		s.Users.Load(snap.Users)
	}
	if snap.Retailers != nil {
		s.Retailers.Load(snap.Retailers)
	}
	if snap.Lotteries != nil {
		s.Lotteries.Load(snap.Lotteries)
	}
	if snap.Tickets != nil {
		s.Tickets.Load(snap.Tickets)
	}
	if snap.Wallets != nil {
		s.Wallets.Load(snap.Wallets)
	}
	if snap.Transactions != nil {
		s.Transactions.Load(snap.Transactions)
	}
	if snap.OTPs != nil {
		s.OTPs.Load(snap.OTPs)
	}
	return nil
}

// Reset clears all state.
func (s *MemoryStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Users.Reset()
	s.Retailers.Reset()
	s.Lotteries.Reset()
	s.Tickets.Reset()
	s.Wallets.Reset()
	s.Transactions.Reset()
	s.OTPs.Reset()
	s.Clock.Reset()
}

// NormalizePhone strips formatting from a phone number and defaults the
// country code.
func NormalizePhone(phone, countryCode string) (string, string) {
	phone = strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(phone))
	countryCode = strings.TrimSpace(countryCode)
	if countryCode == "" {
		countryCode = DefaultCountryCode
	}
	if !strings.HasPrefix(countryCode, "+") {
		countryCode = "+" + countryCode
	}
	return strings.TrimPrefix(phone, countryCode), countryCode
}

// IssueOTP creates a fresh 6-digit code for the phone. Earlier unused codes
// for the same phone stop being valid.
func (s *MemoryStore) IssueOTP(phone, countryCode string) (OTP, error) {
	phone, countryCode = NormalizePhone(phone, countryCode)
	code, err := generateCode(6)
	if err != nil {
		return OTP{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.OTPs.Filter(func(_ string, o OTP) bool {
		return !o.Used && o.PhoneNumber == phone && o.CountryCode == countryCode
	}) {
		s.OTPs.Update(o.ID, func(o *OTP) error {
			o.Used = true
			return nil
		})
	}

	o := OTP{
		ID:          s.OTPs.NextID(),
		PhoneNumber: phone,
		CountryCode: countryCode,
		Code:        code,
		ExpiresAt:   s.Clock.Now().Add(s.OTPTTL),
	}
	s.OTPs.Put(o.ID, o)
	return o, nil
}

// LatestOTP returns the most recent code issued to phone.
func (s *MemoryStore) LatestOTP(phone string) (OTP, bool) {
	phone = strings.TrimSpace(phone)
	return s.OTPs.Find(func(_ string, o OTP) bool { return o.Matches(phone) })
}

// VerifyOTP consumes the pending code for the phone if it matches.
func (s *MemoryStore) VerifyOTP(phone, countryCode, code string) error {
	phone, countryCode = NormalizePhone(phone, countryCode)

	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.OTPs.Find(func(_ string, o OTP) bool {
		return !o.Used && o.PhoneNumber == phone && o.CountryCode == countryCode
	})
	if !ok || o.Code != strings.TrimSpace(code) {
		return ErrOTPInvalid
	}
	if s.Clock.Now().After(o.ExpiresAt) {
		return ErrOTPExpired
	}
	s.OTPs.Update(o.ID, func(o *OTP) error {
		o.Used = true
		return nil
	})
	return nil
}

// EnsureUser returns the user with the phone, creating the user and an
// empty wallet on first sight.
func (s *MemoryStore) EnsureUser(phone, countryCode string) User {
	phone, countryCode = NormalizePhone(phone, countryCode)

	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.Users.Find(func(_ string, u User) bool {
		return u.PhoneNumber == phone && u.CountryCode == countryCode
	}); ok {
		return u
	}

	now := s.Clock.Now()
	u := User{
		ID:          s.Users.NextID(),
		PhoneNumber: phone,
		CountryCode: countryCode,
		CreatedAt:   now.Format(time.RFC3339),
	}
	s.Users.Put(u.ID, u)
	s.Wallets.Put(u.ID, Wallet{UserID: u.ID})
	if s.StartingBalance > 0 {
		s.creditLocked(u.ID, s.StartingBalance, "Welcome bonus", now)
	}
	return u
}

// RetailerByPhone finds a seeded retailer by phone.
func (s *MemoryStore) RetailerByPhone(phone, countryCode string) (Retailer, error) {
	phone, countryCode = NormalizePhone(phone, countryCode)
	r, ok := s.Retailers.Find(func(_ string, r Retailer) bool {
		return r.PhoneNumber == phone && (r.CountryCode == "" || r.CountryCode == countryCode)
	})
	if !ok {
		return Retailer{}, ErrRetailerNotFound
	}
	return r, nil
}

// RetailerBySlug finds a retailer by its public unique id.
func (s *MemoryStore) RetailerBySlug(slug string) (Retailer, error) {
	r, ok := s.Retailers.Find(func(_ string, r Retailer) bool { return r.UniqueID == slug })
	if !ok {
		return Retailer{}, ErrRetailerNotFound
	}
	return r, nil
}

// Balance returns the user's wallet balance.
func (s *MemoryStore) Balance(userID string) float64 {
	w, _ := s.Wallets.Get(userID)
	return w.Balance
}

// TransactionsFor lists a user's wallet history, oldest first.
func (s *MemoryStore) TransactionsFor(userID string) []Transaction {
	return s.Transactions.Filter(func(_ string, t Transaction) bool { return t.UserID == userID })
}

// TicketsFor lists the tickets a user owns.
func (s *MemoryStore) TicketsFor(userID string) []Ticket {
	return s.Tickets.Filter(func(_ string, t Ticket) bool { return t.OwnerID == userID })
}

// TicketsForLottery lists the tickets sold for a lottery.
func (s *MemoryStore) TicketsForLottery(lotteryID string) []Ticket {
	return s.Tickets.Filter(func(_ string, t Ticket) bool { return t.LotteryID == lotteryID })
}

// Credit adds amount to the user's wallet and records a credit transaction.
func (s *MemoryStore) Credit(userID string, amount float64, description string) (Transaction, error) {
	if amount <= 0 {
		return Transaction{}, fmt.Errorf("credit amount must be positive, got %v", amount)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.Users.Get(userID); !ok {
		return Transaction{}, fmt.Errorf("user %s not found", userID)
	}
	return s.creditLocked(userID, amount, description, s.Clock.Now()), nil
}

func (s *MemoryStore) creditLocked(userID string, amount float64, description string, now time.Time) Transaction {
	w, _ := s.Wallets.Get(userID)
	w.UserID = userID
	w.Balance += amount
	s.Wallets.Put(userID, w)

	tx := Transaction{
		ID:          uuid.NewString(),
		UserID:      userID,
		Amount:      amount,
		Type:        TransactionCredit,
		Description: description,
		Timestamp:   now.Format(time.RFC3339),
	}
	s.Transactions.Put(tx.ID, tx)
	return tx
}

// Purchase buys one ticket per number for the user, debiting the wallet.
// Either every ticket is issued or none is.
func (s *MemoryStore) Purchase(userID, lotteryID string, numbers []string) ([]Ticket, float64, error) {
	if len(numbers) == 0 {
		return nil, 0, ErrNoNumbers
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	lot, ok := s.Lotteries.Get(lotteryID)
	if !ok {
		return nil, 0, ErrLotteryNotFound
	}

	sold := make(map[string]bool)
	for _, t := range s.TicketsForLottery(lotteryID) {
		sold[t.Number] = true
	}
	for _, n := range numbers {
		if sold[n] {
			return nil, 0, fmt.Errorf("%w: %s", ErrNumberTaken, n)
		}
		sold[n] = true
	}

	total := lot.Price * float64(len(numbers))
	w, _ := s.Wallets.Get(userID)
	if w.Balance < total {
		return nil, w.Balance, ErrInsufficientFunds
	}

	now := s.Clock.Now().Format(time.RFC3339)
	w.UserID = userID
	w.Balance -= total
	s.Wallets.Put(userID, w)

	tickets := make([]Ticket, 0, len(numbers))
	for _, n := range numbers {
		t := Ticket{
			ID:          s.Tickets.NextID(),
			LotteryID:   lotteryID,
			Number:      n,
			Price:       lot.Price,
			Status:      TicketStatusActive,
			DrawDate:    lot.DrawDate,
			PurchasedAt: now,
			OwnerID:     userID,
		}
		s.Tickets.Put(t.ID, t)
		tickets = append(tickets, t)
	}

	tx := Transaction{
		ID:          uuid.NewString(),
		UserID:      userID,
		Amount:      total,
		Type:        TransactionDebit,
		Description: fmt.Sprintf("Purchased %d ticket(s) for %s", len(numbers), lot.Name),
		Timestamp:   now,
	}
	s.Transactions.Put(tx.ID, tx)
	return tickets, w.Balance, nil
}

// RecordTransaction stores a client-reported transaction for the user
// without touching the balance. Missing id and timestamp are filled in.
func (s *MemoryStore) RecordTransaction(userID string, tx Transaction) Transaction {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.Timestamp == "" {
		tx.Timestamp = s.Clock.Now().Format(time.RFC3339)
	}
	tx.UserID = userID
	s.Transactions.Put(tx.ID, tx)
	return tx
}

// generateCode generates a random numeric code of the given length.
func generateCode(length int) (string, error) {
	var b strings.Builder
	for range length {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("generating code: %w", err)
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}
