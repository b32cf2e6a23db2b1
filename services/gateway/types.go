package gateway

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Registration status codes returned by customer/getRegisterStatus.
const (
	RegistrationPending    = 0
	RegistrationRegistered = 1
)

// Payment status codes returned by payment/getStatus.
const (
	PaymentPending   = 1
	PaymentPaid      = 2
	PaymentRejected  = 3
	PaymentCancelled = 4
)

// Subscription status codes returned by subscription/get.
const (
	SubscriptionInactive  = 0
	SubscriptionActive    = 1
	SubscriptionTrial     = 2
	SubscriptionCancelled = 4
)

// dateLayout is the gateway's timestamp format, in UTC.
const dateLayout = "2006-01-02 15:04:05"

// FlexInt accepts a JSON number, a quoted number or a boolean (as 1/0). The
// gateway is not consistent about which one it sends.
type FlexInt int64

func (f *FlexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = 0
		return nil
	}
	s := strings.Trim(string(b), `"`)
	switch s {
	case "", "false":
		*f = 0
		return nil
	case "true":
		*f = 1
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		*f = FlexInt(n)
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("gateway: %q is not a number", s)
	}
	*f = FlexInt(v)
	return nil
}

type Customer struct {
	CustomerID string  `json:"customerId"`
	Name       string  `json:"name"`
	Email      string  `json:"email"`
	ExternalID string  `json:"externalId"`
	Status     FlexInt `json:"status"`
}

type CustomerList struct {
	Total   FlexInt    `json:"total"`
	HasMore FlexInt    `json:"hasMore"`
	Data    []Customer `json:"data"`
}

// Redirect is an out-of-band flow the user completes at the gateway.
type Redirect struct {
	Token       string  `json:"token"`
	URL         string  `json:"url"`
	FlowOrder   FlexInt `json:"flowOrder,omitempty"`
	RedirectURL string  `json:"-"`
}

type RegistrationStatus struct {
	Status          FlexInt `json:"status"`
	CustomerID      string  `json:"customerId"`
	CreditCardType  string  `json:"creditCardType"`
	Last4CardDigits string  `json:"last4CardDigits"`
}

func (r *RegistrationStatus) Registered() bool {
	return r.Status == RegistrationRegistered
}

type PaymentRequest struct {
	CommerceOrder   string
	Subject         string
	Currency        string
	Amount          int64
	Email           string
	URLConfirmation string
	URLReturn       string
}

type PaymentStatus struct {
	FlowOrder      FlexInt `json:"flowOrder"`
	CommerceOrder  string  `json:"commerceOrder"`
	Status         FlexInt `json:"status"`
	Subject        string  `json:"subject"`
	Currency       string  `json:"currency"`
	Amount         FlexInt `json:"amount"`
	Payer          string  `json:"payer"`
	SubscriptionID string  `json:"subscriptionId"`
	CustomerID     string  `json:"customerId"`
	PaymentData    struct {
		Date  string `json:"date"`
		Media string `json:"media"`
	} `json:"paymentData"`
}

func (p *PaymentStatus) Paid() bool {
	return p.Status == PaymentPaid
}

// IsSubscriptionCharge reports whether the payment is a recurring plan charge
// rather than a one-off payment.
func (p *PaymentStatus) IsSubscriptionCharge() bool {
	return p.SubscriptionID != ""
}

// PaidAt is the gateway's payment timestamp, when it sent a readable one.
func (p *PaymentStatus) PaidAt() (time.Time, bool) {
	if p.PaymentData.Date == "" {
		return time.Time{}, false
	}
	t, err := parseDate(p.PaymentData.Date)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

type Subscription struct {
	SubscriptionID  string  `json:"subscriptionId"`
	PlanID          string  `json:"planId"`
	PlanName        string  `json:"plan_name"`
	CustomerID      string  `json:"customerId"`
	Status          FlexInt `json:"status"`
	Morose          FlexInt `json:"morose"`
	PeriodStart     string  `json:"period_start"`
	PeriodEnd       string  `json:"period_end"`
	NextInvoiceDate string  `json:"next_invoice_date"`
}

// PaidThrough returns the end of the current paid period when the
// subscription is active and up to date.
func (s *Subscription) PaidThrough() (time.Time, bool) {
	if s.Status != SubscriptionActive && s.Status != SubscriptionTrial {
		return time.Time{}, false
	}
	if s.Morose != 0 {
		return time.Time{}, false
	}
	end := s.PeriodEnd
	if end == "" {
		end = s.NextInvoiceDate
	}
	t, err := parseDate(end)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.ParseInLocation(dateLayout, s, time.UTC); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02", s, time.UTC)
}

type PlanRequest struct {
	PlanID        string
	Name          string
	Amount        int64
	Interval      int
	IntervalCount int
	TrialDays     int
	URLCallback   string
}

type Plan struct {
	PlanID        string  `json:"planId"`
	Name          string  `json:"name"`
	Currency      string  `json:"currency"`
	Amount        FlexInt `json:"amount"`
	Interval      FlexInt `json:"interval"`
	IntervalCount FlexInt `json:"interval_count"`
	Status        FlexInt `json:"status"`
}

// APIError is a non-2xx answer from the gateway.
type APIError struct {
	HTTPStatus int     `json:"-"`
	Endpoint   string  `json:"-"`
	Code       FlexInt `json:"code"`
	Message    string  `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway %s failed: status=%d code=%d message=%q", e.Endpoint, e.HTTPStatus, e.Code, e.Message)
}
