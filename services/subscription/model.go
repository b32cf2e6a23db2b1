package subscription

import (
	"time"

	"gorm.io/datatypes"
)

type EventKind string

const (
	KindRegistration EventKind = "REGISTRATION"
	KindPayment      EventKind = "PAYMENT"
)

// Outcome is what applying a gateway confirmation did.
type Outcome string

const (
	Applied   Outcome = "applied"
	Duplicate Outcome = "duplicate"
	Ignored   Outcome = "ignored"
	Unmatched Outcome = "unmatched"
)

// GatewayEvent records a confirmation token that has been applied. The
// unique (kind, token) pair is what makes replays no-ops.
type GatewayEvent struct {
	ID          string         `gorm:"column:id;primaryKey"`
	Kind        EventKind      `gorm:"column:kind;type:varchar(16);uniqueIndex:idx_gateway_event_token,priority:1;not null"`
	Token       string         `gorm:"column:token;uniqueIndex:idx_gateway_event_token,priority:2;not null"`
	TenantID    string         `gorm:"column:tenant_id;index"`
	Result      string         `gorm:"column:result"`
	Payload     datatypes.JSON `gorm:"column:payload"`
	ProcessedAt time.Time      `gorm:"column:processed_at"`
}
