package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/juancristobaldev/lanovena-api/pkg/errutil"
	"github.com/juancristobaldev/lanovena-api/pkg/logger"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const minPasswordLen = 8

type Service struct {
	users  *UserStore
	tokens *Tokens
	node   *snowflake.Node
	cost   int
}

type ServiceParams struct {
	fx.In
	DB     *gorm.DB
	Tokens *Tokens
	Node   *snowflake.Node
}

func NewService(p ServiceParams) *Service {
	return &Service{
		users:  NewUserStore(p.DB),
		tokens: p.Tokens,
		node:   p.Node,
		cost:   bcrypt.DefaultCost,
	}
}

type RegisterRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	FullName string `json:"fullName" binding:"required"`
	Phone    string `json:"phone"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	AccessToken string   `json:"accessToken"`
	Identity    Identity `json:"identity"`
	User        *User    `json:"user"`
}

// Register creates a DIRECTOR account and signs it in. The account holds no
// tenant until the top role binds it with AssignTenant.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	zapLog := logger.FromContext(ctx)

	email := normalizeEmail(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, errutil.ValidationFailed("a valid email is required", nil)
	}
	if len(req.Password) < minPasswordLen {
		return nil, errutil.ValidationFailed("password is too short", nil)
	}

	_, err := s.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, errutil.Conflict("email already registered", nil)
	case !errors.Is(err, errutil.ErrNotFound):
		zapLog.Error("failed query user by email", zap.Error(err))
		return nil, errutil.Internal("failed to check existing user", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, errutil.Internal("failed to hash password", err)
	}

	u := &User{
		ID:           s.node.Generate().String(),
		Email:        email,
		PasswordHash: string(hash),
		FullName:     strings.TrimSpace(req.FullName),
		Phone:        req.Phone,
		Role:         RoleDirector,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, u); err != nil {
		zapLog.Error("failed to create user", zap.Error(err))
		return nil, errutil.Internal("failed to create user", err)
	}

	zapLog.Info("user registered", zap.String("user_id", u.ID))
	return s.respond(u, false)
}

// Login fails the same way for an unknown email, a wrong password and an
// inactive account.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	u, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil && !errors.Is(err, errutil.ErrNotFound) {
		return nil, errutil.Internal("failed to load user", err)
	}
	if u == nil || !u.IsActive || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
		return nil, errutil.InvalidCredential("invalid email or password", nil)
	}
	return s.respond(u, false)
}

// Impersonate issues a token for target on behalf of the top role. The
// token is flagged but does not name the actor.
func (s *Service) Impersonate(ctx context.Context, actor *Identity, targetID string) (*AuthResponse, error) {
	if actor == nil || actor.Role != TopRole() {
		return nil, errutil.InsufficientRole("only the top role can impersonate",
			errutil.WithDetails(errutil.Detail{Field: "required_roles", Message: string(TopRole())}))
	}

	target, err := s.users.Get(ctx, targetID)
	if err != nil {
		if errors.Is(err, errutil.ErrNotFound) {
			return nil, errutil.NotFound("impersonation target not found", nil)
		}
		return nil, errutil.Internal("failed to load impersonation target", err)
	}

	logger.FromContext(ctx).Info("impersonation token issued",
		zap.String("actor_id", actor.SubjectID), zap.String("target_id", target.ID))
	return s.respond(target, true)
}

// AssignTenant binds an unbound user to tenantID. The tenant must already
// exist; the caller checks that. A user keeps its first tenant, so binding
// again answers Conflict. The new tenant shows up in the next token.
func (s *Service) AssignTenant(ctx context.Context, actor *Identity, userID, tenantID string) (*User, error) {
	if actor == nil || actor.Role != TopRole() {
		return nil, errutil.InsufficientRole("only the top role can bind users to a tenant",
			errutil.WithDetails(errutil.Detail{Field: "required_roles", Message: string(TopRole())}))
	}
	if strings.TrimSpace(tenantID) == "" {
		return nil, errutil.ValidationFailed("tenantId is required", nil)
	}

	u, err := s.users.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, errutil.ErrNotFound) {
			return nil, errutil.NotFound("user not found", nil)
		}
		return nil, errutil.Internal("failed to load user", err)
	}
	if u.Role == TopRole() {
		return nil, errutil.ValidationFailed("the top role is not bound to a tenant", nil)
	}

	ok, err := s.users.BindTenant(ctx, u.ID, tenantID)
	if err != nil {
		logger.FromContext(ctx).Error("failed to bind user tenant", zap.Error(err))
		return nil, errutil.Internal("failed to bind user tenant", err)
	}
	if !ok {
		return nil, errutil.Conflict("user is already bound to a tenant", nil)
	}

	logger.FromContext(ctx).Info("user bound to tenant",
		zap.String("actor_id", actor.SubjectID), zap.String("user_id", u.ID), zap.String("tenant_id", tenantID))
	u.TenantID = tenantID
	return u, nil
}

func (s *Service) Me(ctx context.Context) (*Identity, error) {
	id, ok := IdentityFromContext(ctx)
	if !ok {
		return nil, errutil.MissingCredential("no identity on request")
	}
	return id, nil
}

func (s *Service) respond(u *User, impersonated bool) (*AuthResponse, error) {
	raw, id, err := s.tokens.Issue(Identity{
		SubjectID:    u.ID,
		Email:        u.Email,
		Role:         u.Role,
		TenantID:     u.TenantID,
		Impersonated: impersonated,
	})
	if err != nil {
		return nil, err
	}
	return &AuthResponse{AccessToken: raw, Identity: id, User: u}, nil
}
