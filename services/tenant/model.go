package tenant

import (
	"time"
)

type PlanType string

const (
	PlanSemillero       PlanType = "SEMILLERO"
	PlanProfesional     PlanType = "PROFESIONAL"
	PlanAltoRendimiento PlanType = "ALTO_RENDIMIENTO"
)

// Plans lists the tiers from lowest to highest.
var Plans = []PlanType{PlanSemillero, PlanProfesional, PlanAltoRendimiento}

func (p PlanType) Valid() bool {
	for _, known := range Plans {
		if p == known {
			return true
		}
	}
	return false
}

type SubscriptionStatus string

const (
	Active    SubscriptionStatus = "ACTIVE"
	Suspended SubscriptionStatus = "SUSPENDED"
	Cancelled SubscriptionStatus = "CANCELLED"
)

func (s SubscriptionStatus) String() string {
	switch s {
	case Active, Suspended, Cancelled:
		return string(s)
	default:
		return ""
	}
}

// Mode decides whether the platform bills the tenant at all.
type Mode string

const (
	Commercial    Mode = "COMMERCIAL"
	Institutional Mode = "INSTITUTIONAL"
)

func (m Mode) Valid() bool {
	return m == Commercial || m == Institutional
}

type Tenant struct {
	ID                    string             `gorm:"column:id;primaryKey" json:"id"`
	Name                  string             `gorm:"column:name;not null" json:"name"`
	Slug                  string             `gorm:"column:slug;uniqueIndex;not null" json:"slug"`
	PlanType              PlanType           `gorm:"column:plan_type;type:varchar(32);not null" json:"planType"`
	SubscriptionStatus    SubscriptionStatus `gorm:"column:subscription_status;type:varchar(16);index;not null" json:"subscriptionStatus"`
	Mode                  Mode               `gorm:"column:mode;type:varchar(16);not null" json:"mode"`
	NextBillingDate       time.Time          `gorm:"column:next_billing_date;index" json:"nextBillingDate"`
	GatewayCustomerID     string             `gorm:"column:gateway_customer_id;index" json:"-"`
	GatewaySubscriptionID string             `gorm:"column:gateway_subscription_id;index" json:"-"`
	HasPaymentMethod      bool               `gorm:"column:has_payment_method" json:"hasPaymentMethod"`
	CardBrand             string             `gorm:"column:card_brand" json:"cardBrand,omitempty"`
	CardLast4             string             `gorm:"column:card_last4" json:"cardLast4,omitempty"`
	CreatedAt             time.Time          `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt             time.Time          `gorm:"column:updated_at" json:"updatedAt"`
}

// Billable reports whether the billing sweeps apply to the tenant.
func (t *Tenant) Billable() bool {
	return t.Mode == Commercial
}
