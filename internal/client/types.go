package client

import "encoding/json"

// Address is the optional postal address on a user profile.
type Address struct {
	City    string `json:"city"`
	State   string `json:"state"`
	Country string `json:"country"`
	Pincode string `json:"pincode"`
}

// UserProfile is the end user's profile as returned by /user/login.
type UserProfile struct {
	Name        string   `json:"name"`
	Email       string   `json:"email"`
	PhoneNumber string   `json:"phoneNumber"`
	Gender      string   `json:"gender,omitempty"`
	Address     *Address `json:"address,omitempty"`
}

// RetailerProfile is a retailer's storefront profile. UniqueID is the public
// slug used to resolve a storefront's branding.
type RetailerProfile struct {
	ID            string         `json:"_id"`
	BrandName     string         `json:"brandName,omitempty"`
	Logo          string         `json:"logo,omitempty"`
	UniqueID      string         `json:"uniqueId,omitempty"`
	PhoneNumber   string         `json:"phoneNumber,omitempty"`
	Customization map[string]any `json:"customization,omitempty"`
	Extra         Extra          `json:"-"`
}

// Ticket is a lottery ticket, either owned by the user, listed for a lottery
// or sitting in the cart. Members the backend sends beyond these are kept in
// Extra.
type Ticket struct {
	ID          string  `json:"id"`
	LotteryID   string  `json:"lottery_id,omitempty"`
	Number      string  `json:"ticket_number,omitempty"`
	Price       float64 `json:"price,omitempty"`
	Status      string  `json:"status,omitempty"`
	DrawDate    string  `json:"draw_date,omitempty"`
	PurchasedAt string  `json:"purchased_at,omitempty"`
	Extra       Extra   `json:"-"`
}

// Lottery is one draw in the catalog. The backend may key it by "id" or
// "_id"; either fills ID.
type Lottery struct {
	ID       string  `json:"id"`
	Name     string  `json:"name,omitempty"`
	Price    float64 `json:"price,omitempty"`
	DrawDate string  `json:"draw_date,omitempty"`
	Extra    Extra   `json:"-"`
}

// Transaction types.
const (
	TransactionCredit = "credit"
	TransactionDebit  = "debit"
)

// Transaction is one wallet history entry.
type Transaction struct {
	ID          string  `json:"id"`
	Amount      float64 `json:"amount"`
	Type        string  `json:"type"`
	Description string  `json:"description"`
	Timestamp   string  `json:"timestamp"`
}

// OTPRequest is the body of POST /otp/sendOtp.
type OTPRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	CountryCode string `json:"countryCode"`
}

// Credentials is the body of POST /user/login and /retailer/login.
type Credentials struct {
	Phone       string `json:"phone"`
	OTP         string `json:"otp"`
	CountryCode string `json:"countryCode,omitempty"`
}

// LoginResponse carries the token and the profile of whichever principal
// logged in. Exactly one of User and Retailer is set.
type LoginResponse struct {
	Token    string
	User     *UserProfile
	Retailer *RetailerProfile
}

// PurchaseRequest is the body of POST /ticket/purchase.
type PurchaseRequest struct {
	LotteryID string   `json:"lottery_id"`
	Tickets   []string `json:"custom_ticket_numbers"`
}

// PurchaseResult is the backend's answer to a purchase. Raw holds the
// complete response body for callers that need more than the typed fields.
type PurchaseResult struct {
	Message string          `json:"message,omitempty"`
	Tickets []Ticket        `json:"tickets,omitempty"`
	Balance *float64        `json:"balance,omitempty"`
	Raw     json.RawMessage `json:"-"`
}
