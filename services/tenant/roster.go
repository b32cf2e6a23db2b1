package tenant

import "time"

// ResourceKind names a plan-limited resource.
type ResourceKind string

const (
	ResourcePlayer   ResourceKind = "PLAYER"
	ResourceCategory ResourceKind = "CATEGORY"
	ResourceCoach    ResourceKind = "COACH"
)

var ResourceKinds = []ResourceKind{ResourcePlayer, ResourceCategory, ResourceCoach}

// The roster tables below carry only the columns billing and quotas read.
// Their full shape belongs to the roster module.

type Player struct {
	ID          string    `gorm:"column:id;primaryKey"`
	TenantID    string    `gorm:"column:tenant_id;index;not null"`
	FullName    string    `gorm:"column:full_name"`
	Scholarship bool      `gorm:"column:scholarship;default:false"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}

type Category struct {
	ID        string    `gorm:"column:id;primaryKey"`
	TenantID  string    `gorm:"column:tenant_id;index;not null"`
	Name      string    `gorm:"column:name"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

type Coach struct {
	ID        string    `gorm:"column:id;primaryKey"`
	TenantID  string    `gorm:"column:tenant_id;index;not null"`
	UserID    string    `gorm:"column:user_id;index"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func tableFor(kind ResourceKind) (any, bool) {
	switch kind {
	case ResourcePlayer:
		return &Player{}, true
	case ResourceCategory:
		return &Category{}, true
	case ResourceCoach:
		return &Coach{}, true
	default:
		return nil, false
	}
}
