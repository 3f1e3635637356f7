// Package store defines the lottery twin's state types and in-memory store.
package store

import "time"

// DefaultCountryCode is assumed when a request omits the country code.
const DefaultCountryCode = "+91"

// User is an end user, created on first successful OTP login.
type User struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Email       string   `json:"email"`
	PhoneNumber string   `json:"phoneNumber"`
	CountryCode string   `json:"countryCode"`
	Gender      string   `json:"gender,omitempty"`
	Address     *Address `json:"address,omitempty"`
	CreatedAt   string   `json:"created_at"`
}

// Address is a user's postal address.
type Address struct {
	City    string `json:"city"`
	State   string `json:"state"`
	Country string `json:"country"`
	Pincode string `json:"pincode"`
}

// Retailer is a storefront owner. Retailers are seeded, never self-registered.
type Retailer struct {
	ID            string         `json:"_id"`
	BrandName     string         `json:"brandName"`
	Logo          string         `json:"logo,omitempty"`
	UniqueID      string         `json:"uniqueId"`
	PhoneNumber   string         `json:"phoneNumber"`
	CountryCode   string         `json:"countryCode"`
	Customization map[string]any `json:"customization,omitempty"`
}

// Lottery is a draw tickets can be bought for.
type Lottery struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	DrawDate string  `json:"draw_date"`
}

// Ticket statuses.
const (
	TicketStatusActive = "active"
	TicketStatusWon    = "won"
	TicketStatusLost   = "lost"
)

// Ticket is a purchased ticket.
type Ticket struct {
	ID          string  `json:"id"`
	LotteryID   string  `json:"lottery_id"`
	Number      string  `json:"ticket_number"`
	Price       float64 `json:"price"`
	Status      string  `json:"status"`
	DrawDate    string  `json:"draw_date,omitempty"`
	PurchasedAt string  `json:"purchased_at"`
	OwnerID     string  `json:"owner_id"`
}

// Transaction types.
const (
	TransactionCredit = "credit"
	TransactionDebit  = "debit"
)

// Transaction is a wallet history entry.
type Transaction struct {
	ID          string  `json:"id"`
	UserID      string  `json:"user_id"`
	Amount      float64 `json:"amount"`
	Type        string  `json:"type"`
	Description string  `json:"description"`
	Timestamp   string  `json:"timestamp"`
}

// Wallet holds a user's balance.
type Wallet struct {
	UserID  string  `json:"user_id"`
	Balance float64 `json:"balance"`
}

// OTP is an issued one-time password.
type OTP struct {
	ID          string    `json:"id"`
	PhoneNumber string    `json:"phoneNumber"`
	CountryCode string    `json:"countryCode"`
	Code        string    `json:"code"`
	ExpiresAt   time.Time `json:"expires_at"`
	Used        bool      `json:"used"`
}

// Matches reports whether the code was issued to phone, given either bare or
// with its country code prefix.
func (o OTP) Matches(phone string) bool {
	return o.PhoneNumber == phone || o.CountryCode+o.PhoneNumber == phone
}
