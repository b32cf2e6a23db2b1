package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/juancristobaldev/lanovena-api/pkg/errutil"

	"gorm.io/gorm"
)

type User struct {
	ID           string    `gorm:"column:id;primaryKey" json:"id"`
	Email        string    `gorm:"column:email;uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"column:password_hash;not null" json:"-"`
	FullName     string    `gorm:"column:full_name" json:"fullName"`
	Phone        string    `gorm:"column:phone" json:"phone,omitempty"`
	Role         Role      `gorm:"column:role;type:varchar(16);not null" json:"role"`
	TenantID     string    `gorm:"column:tenant_id;index" json:"tenantId,omitempty"`
	IsActive     bool      `gorm:"column:is_active;default:true" json:"isActive"`
	CreatedAt    time.Time `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt    time.Time `gorm:"column:updated_at" json:"updatedAt"`
}

type UserStore struct {
	db *gorm.DB
}

func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) Create(ctx context.Context, u *User) error {
	return s.db.WithContext(ctx).Create(u).Error
}

func (s *UserStore) Get(ctx context.Context, id string) (*User, error) {
	return s.findOne(ctx, "id = ?", id)
}

func (s *UserStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	return s.findOne(ctx, "email = ?", normalizeEmail(email))
}

// BindTenant sets the tenant of a user that has none. It reports false when
// the user is missing or already bound.
func (s *UserStore) BindTenant(ctx context.Context, id, tenantID string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&User{}).
		Where("id = ? AND (tenant_id = '' OR tenant_id IS NULL)", id).
		Updates(map[string]any{"tenant_id": tenantID, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return false, fmt.Errorf("bind user tenant: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *UserStore) findOne(ctx context.Context, query string, args ...any) (*User, error) {
	var u User
	err := s.db.WithContext(ctx).Where(query, args...).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errutil.NotFound("user not found", nil)
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &u, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
