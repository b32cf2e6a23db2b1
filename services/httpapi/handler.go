package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/juancristobaldev/lanovena-api/pkg/errutil"
	"github.com/juancristobaldev/lanovena-api/pkg/task"
	"github.com/juancristobaldev/lanovena-api/services/auth"
	"github.com/juancristobaldev/lanovena-api/services/billing"
	"github.com/juancristobaldev/lanovena-api/services/finance"
	"github.com/juancristobaldev/lanovena-api/services/gateway"
	"github.com/juancristobaldev/lanovena-api/services/quota"
	"github.com/juancristobaldev/lanovena-api/services/scheduler"
	"github.com/juancristobaldev/lanovena-api/services/subscription"
	"github.com/juancristobaldev/lanovena-api/services/tenant"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"go.uber.org/fx"
)

const defaultRunsLimit = 20

// Handler exposes the domain services over HTTP. Every route except login,
// register and the gateway callbacks passes through the Guard.
type Handler struct {
	auth     *auth.Service
	guard    *auth.Guard
	tenants  *tenant.Service
	quota    *quota.Enforcer
	subs     *subscription.Service
	fees     *finance.Service
	sweeps   *scheduler.Scheduler
	webhooks *billing.Webhooks
	enqueuer task.Enqueuer
}

type HandlerParams struct {
	fx.In
	Auth      *auth.Service
	Guard     *auth.Guard
	Tenants   *tenant.Service
	Quota     *quota.Enforcer
	Subs      *subscription.Service
	Fees      *finance.Service
	Scheduler *scheduler.Scheduler
	Webhooks  *billing.Webhooks
	Enqueuer  task.Enqueuer `optional:"true"`
}

func NewHandler(p HandlerParams) *Handler {
	return &Handler{
		auth:     p.Auth,
		guard:    p.Guard,
		tenants:  p.Tenants,
		quota:    p.Quota,
		subs:     p.Subs,
		fees:     p.Fees,
		sweeps:   p.Scheduler,
		webhooks: p.Webhooks,
		enqueuer: p.Enqueuer,
	}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	g := h.guard

	a := r.Group("/auth")
	a.POST("/login", h.Login)
	a.POST("/register", h.Register)
	a.GET("/me", g.Require(auth.OpMe), h.Me)
	a.POST("/impersonate", g.Require(auth.OpImpersonate), h.Impersonate)

	t := r.Group("/tenant")
	t.GET("/usage", g.Require(auth.OpTenantUsage), h.Usage)
	t.GET("/features/:feature", g.Require(auth.OpTenantFeature), h.Feature)
	t.POST("/quota/:kind/check", g.Require(auth.OpQuotaCheck), h.QuotaCheck)

	b := r.Group("/billing")
	b.POST("/card", g.Require(auth.OpRegisterCard), h.RegisterCard)
	b.POST("/subscription", g.Require(auth.OpSubscribe), h.Subscribe)

	f := r.Group("/finance")
	f.GET("/summary", g.Require(auth.OpFinanceSummary), h.FinanceSummary)
	f.POST("/fees/generate", g.Require(auth.OpFeesGenerate), h.GenerateFees)
	f.GET("/fees/:id", g.Require(auth.OpFinanceSummary), h.GetFee)
	f.POST("/fees/:id/pay", g.Require(auth.OpFeePay), h.PayFee)
	f.POST("/fees/:id/waive", g.Require(auth.OpFeeWaive), h.WaiveFee)
	f.POST("/fees/:id/checkout", g.Require(auth.OpFeeCheckout), h.CheckoutFee)

	adm := r.Group("/admin")
	adm.POST("/tenants", g.Require(auth.OpAdminTenants), h.CreateTenant)
	adm.POST("/tenants/:id/plan", g.Require(auth.OpAdminTenants), h.ChangePlan)
	adm.POST("/tenants/:id/mode", g.Require(auth.OpAdminTenants), h.SwitchMode)
	adm.POST("/tenants/:id/cancel", g.Require(auth.OpAdminTenants), h.CancelSubscription)
	adm.POST("/tenants/:id/reactivate", g.Require(auth.OpAdminTenants), h.ReactivateSubscription)
	adm.POST("/users/:id/tenant", g.Require(auth.OpAdminTenants), h.AssignUserTenant)
	adm.POST("/sweeps/:name", g.Require(auth.OpAdminSweeps), h.TriggerSweep)
	adm.GET("/sweeps/:name/runs", g.Require(auth.OpAdminSweeps), h.SweepRuns)

	h.webhooks.RegisterRoutes(r)
}

func fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

func bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		fail(c, errutil.BadRequest("invalid request body", err))
		return false
	}
	return true
}

// tenantScope resolves the tenant a request acts on. It is the tenant bound
// to the token; the top role, which may hold no tenant, names one with the
// tenantId query parameter.
func tenantScope(c *gin.Context) (string, bool) {
	id, ok := auth.CurrentIdentity(c)
	if !ok {
		fail(c, errutil.MissingCredential("no identity on request"))
		return "", false
	}

	if id.Role == auth.TopRole() {
		if q := strings.TrimSpace(c.Query("tenantId")); q != "" {
			return q, true
		}
	}
	if id.TenantID != "" {
		return id.TenantID, true
	}

	if id.Role == auth.TopRole() {
		fail(c, errutil.BadRequest("tenantId is required", nil))
	} else {
		fail(c, errutil.Forbidden("identity is not bound to a tenant", nil))
	}
	return "", false
}

func redirect(r *gateway.Redirect) gin.H {
	return gin.H{"token": r.Token, "redirectUrl": r.RedirectURL}
}

func (h *Handler) Login(c *gin.Context) {
	var req auth.LoginRequest
	if !bind(c, &req) {
		return
	}
	resp, err := h.auth.Login(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) Register(c *gin.Context) {
	var req auth.RegisterRequest
	if !bind(c, &req) {
		return
	}
	resp, err := h.auth.Register(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) Me(c *gin.Context) {
	id, err := h.auth.Me(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, id)
}

type impersonateRequest struct {
	UserID string `json:"userId" binding:"required"`
}

func (h *Handler) Impersonate(c *gin.Context) {
	var req impersonateRequest
	if !bind(c, &req) {
		return
	}
	actor, _ := auth.CurrentIdentity(c)
	resp, err := h.auth.Impersonate(c.Request.Context(), actor, req.UserID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) Usage(c *gin.Context) {
	tenantID, ok := tenantScope(c)
	if !ok {
		return
	}
	usage, err := h.quota.Usage(c.Request.Context(), tenantID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, usage)
}

func (h *Handler) Feature(c *gin.Context) {
	tenantID, ok := tenantScope(c)
	if !ok {
		return
	}
	feature := c.Param("feature")
	allowed, err := h.quota.CheckFeature(c.Request.Context(), tenantID, feature)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"feature": feature, "allowed": allowed})
}

func (h *Handler) QuotaCheck(c *gin.Context) {
	tenantID, ok := tenantScope(c)
	if !ok {
		return
	}

	kind := tenant.ResourceKind(strings.ToUpper(c.Param("kind")))
	known := false
	for _, k := range tenant.ResourceKinds {
		if k == kind {
			known = true
			break
		}
	}
	if !known {
		fail(c, errutil.ValidationFailed("unknown resource kind", nil,
			errutil.WithDetails(errutil.Detail{Field: "kind", Message: c.Param("kind")})))
		return
	}

	if err := h.quota.Check(c.Request.Context(), tenantID, kind); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"resource": kind, "allowed": true})
}

type registerCardRequest struct {
	Email string `json:"email" binding:"required"`
}

func (h *Handler) RegisterCard(c *gin.Context) {
	tenantID, ok := tenantScope(c)
	if !ok {
		return
	}
	var req registerCardRequest
	if !bind(c, &req) {
		return
	}
	r, err := h.subs.RegisterCard(c.Request.Context(), tenantID, req.Email)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, redirect(r))
}

type planRequest struct {
	Plan tenant.PlanType `json:"plan" binding:"required"`
}

func (h *Handler) Subscribe(c *gin.Context) {
	tenantID, ok := tenantScope(c)
	if !ok {
		return
	}
	var req planRequest
	if !bind(c, &req) {
		return
	}
	t, err := h.subs.Subscribe(c.Request.Context(), tenantID, req.Plan)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *Handler) FinanceSummary(c *gin.Context) {
	tenantID, ok := tenantScope(c)
	if !ok {
		return
	}
	sum, err := h.fees.Summary(c.Request.Context(), tenantID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

type generateRequest struct {
	Year   int   `json:"year" binding:"required"`
	Month  int   `json:"month" binding:"required"`
	Amount int64 `json:"amount" binding:"required"`
}

func (h *Handler) GenerateFees(c *gin.Context) {
	tenantID, ok := tenantScope(c)
	if !ok {
		return
	}
	var req generateRequest
	if !bind(c, &req) {
		return
	}
	n, err := h.fees.GenerateForPeriod(c.Request.Context(), tenantID, req.Year, req.Month, req.Amount)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"created": n})
}

func (h *Handler) GetFee(c *gin.Context) {
	tenantID, ok := tenantScope(c)
	if !ok {
		return
	}
	fee, err := h.fees.Get(c.Request.Context(), tenantID, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, fee)
}

func (h *Handler) PayFee(c *gin.Context) {
	tenantID, ok := tenantScope(c)
	if !ok {
		return
	}
	fee, err := h.fees.MarkPaid(c.Request.Context(), tenantID, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, fee)
}

func (h *Handler) WaiveFee(c *gin.Context) {
	tenantID, ok := tenantScope(c)
	if !ok {
		return
	}
	fee, err := h.fees.Waive(c.Request.Context(), tenantID, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, fee)
}

type checkoutRequest struct {
	Email string `json:"email" binding:"required"`
}

func (h *Handler) CheckoutFee(c *gin.Context) {
	tenantID, ok := tenantScope(c)
	if !ok {
		return
	}
	var req checkoutRequest
	if !bind(c, &req) {
		return
	}
	r, err := h.fees.Checkout(c.Request.Context(), tenantID, c.Param("id"), req.Email)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, redirect(r))
}

func (h *Handler) CreateTenant(c *gin.Context) {
	var req tenant.CreateRequest
	if !bind(c, &req) {
		return
	}
	t, err := h.tenants.Create(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

type assignTenantRequest struct {
	TenantID string `json:"tenantId" binding:"required"`
}

func (h *Handler) AssignUserTenant(c *gin.Context) {
	var req assignTenantRequest
	if !bind(c, &req) {
		return
	}
	ctx := c.Request.Context()
	if _, err := h.tenants.Get(ctx, req.TenantID); err != nil {
		fail(c, err)
		return
	}
	actor, _ := auth.CurrentIdentity(c)
	u, err := h.auth.AssignTenant(ctx, actor, c.Param("id"), req.TenantID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *Handler) ChangePlan(c *gin.Context) {
	var req planRequest
	if !bind(c, &req) {
		return
	}
	t, err := h.tenants.ChangePlan(c.Request.Context(), c.Param("id"), req.Plan)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

type modeRequest struct {
	Mode tenant.Mode `json:"mode" binding:"required"`
}

func (h *Handler) SwitchMode(c *gin.Context) {
	var req modeRequest
	if !bind(c, &req) {
		return
	}
	t, err := h.tenants.SwitchMode(c.Request.Context(), c.Param("id"), req.Mode)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *Handler) CancelSubscription(c *gin.Context) {
	t, err := h.subs.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *Handler) ReactivateSubscription(c *gin.Context) {
	t, err := h.subs.Reactivate(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// TriggerSweep runs a sweep inline, or on the worker when async=true.
func (h *Handler) TriggerSweep(c *gin.Context) {
	name := c.Param("name")
	if c.Query("async") == "true" {
		h.queueSweep(c, name)
		return
	}

	report, err := h.sweeps.Trigger(c.Request.Context(), name)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sweep": name, "report": report})
}

func (h *Handler) queueSweep(c *gin.Context, name string) {
	if !slices.Contains(h.sweeps.Names(), name) {
		fail(c, errutil.NotFound(fmt.Sprintf("unknown sweep %q", name), nil))
		return
	}
	if h.enqueuer == nil {
		fail(c, errutil.ServiceUnavailable("task queue is not configured", nil))
		return
	}

	t, err := scheduler.NewSweepTask(name, time.Now())
	if err != nil {
		fail(c, err)
		return
	}
	if _, err := h.enqueuer.Enqueue(c.Request.Context(), t); err != nil && !errors.Is(err, asynq.ErrTaskIDConflict) {
		fail(c, errutil.ServiceUnavailable("failed to queue sweep", err))
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"sweep": name, "queued": true})
}

func (h *Handler) SweepRuns(c *gin.Context) {
	limit := defaultRunsLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			fail(c, errutil.BadRequest("limit must be a positive integer", err))
			return
		}
		limit = n
	}

	runs, err := h.sweeps.Runs(c.Request.Context(), c.Param("name"), limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}
