package finance

import "time"

type FeeStatus string

const (
	FeePending FeeStatus = "PENDING"
	FeeOverdue FeeStatus = "OVERDUE"
	FeePaid    FeeStatus = "PAID"
	FeeWaived  FeeStatus = "WAIVED"
)

var FeeStatuses = []FeeStatus{FeePending, FeeOverdue, FeePaid, FeeWaived}

// Terminal reports whether no further transition is allowed.
func (s FeeStatus) Terminal() bool {
	return s == FeePaid || s == FeeWaived
}

// MonthlyFee is one player's obligation for one period. Amounts are whole
// pesos.
type MonthlyFee struct {
	ID            string     `gorm:"column:id;primaryKey" json:"id"`
	TenantID      string     `gorm:"column:tenant_id;index;not null" json:"tenantId"`
	PlayerID      string     `gorm:"column:player_id;uniqueIndex:idx_fee_player_period,priority:1;not null" json:"playerId"`
	Period        string     `gorm:"column:period;uniqueIndex:idx_fee_player_period,priority:2;type:char(7);not null" json:"period"`
	Amount        int64      `gorm:"column:amount;not null" json:"amount"`
	DueDate       time.Time  `gorm:"column:due_date;index" json:"dueDate"`
	Status        FeeStatus  `gorm:"column:status;type:varchar(16);index;not null" json:"status"`
	CommerceOrder *string    `gorm:"column:commerce_order;uniqueIndex" json:"commerceOrder,omitempty"`
	PaidAt        *time.Time `gorm:"column:paid_at" json:"paidAt,omitempty"`
	CreatedAt     time.Time  `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt     time.Time  `gorm:"column:updated_at" json:"updatedAt"`
}

// StatusTotal is the per-status line of a tenant summary.
type StatusTotal struct {
	Status FeeStatus `json:"status"`
	Count  int64     `json:"count"`
	Amount int64     `json:"amount"`
}

type Summary struct {
	TenantID string        `json:"tenantId"`
	Totals   []StatusTotal `json:"totals"`
}
