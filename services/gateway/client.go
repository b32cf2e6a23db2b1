package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/juancristobaldev/lanovena-api/pkg/config"
	"github.com/juancristobaldev/lanovena-api/pkg/errutil"
	"github.com/juancristobaldev/lanovena-api/pkg/logger"
	"github.com/juancristobaldev/lanovena-api/pkg/metrics"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

//go:generate mockgen -source=client.go -destination=mock_client.go -package=gateway

const (
	defaultTimeout  = 15 * time.Second
	defaultCurrency = "CLP"

	// duplicateCustomerCode is what customer/create answers for a known externalId.
	duplicateCustomerCode = 501

	customerPageSize = 100
	maxCustomerPages = 50
)

// Client is the subset of the payment gateway API the billing core uses.
// Every call is one HTTP exchange bounded by the configured timeout; the
// client never retries.
type Client interface {
	CreateCustomer(ctx context.Context, name, email, externalID string) (*Customer, error)
	FindCustomer(ctx context.Context, name, externalID string) (*Customer, error)
	RegisterPaymentInstrument(ctx context.Context, customerID string) (*Redirect, error)
	GetRegistrationStatus(ctx context.Context, token string) (*RegistrationStatus, error)
	CreatePayment(ctx context.Context, req PaymentRequest) (*Redirect, error)
	GetPaymentStatus(ctx context.Context, token string) (*PaymentStatus, error)
	CreateSubscription(ctx context.Context, customerID, planID string) (*Subscription, error)
	GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error)
	CancelSubscription(ctx context.Context, subscriptionID string) (*Subscription, error)
	CreatePlan(ctx context.Context, req PlanRequest) (*Plan, error)
	GetPlan(ctx context.Context, planID string) (*Plan, error)
}

type HTTPClient struct {
	rc             *resty.Client
	signer         *Signer
	apiKey         string
	registerReturn string
	paymentReturn  string
	paymentConfirm string
}

func NewHTTPClient(cfg *config.Config, signer *Signer) (*HTTPClient, error) {
	gw := cfg.Gateway
	if gw.BaseURL == "" {
		return nil, errutil.Configuration("gateway base url is not set", nil)
	}

	timeout := gw.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	rc := resty.NewWithClient(&http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}).
		SetBaseURL(strings.TrimRight(gw.BaseURL, "/")).
		SetRetryCount(0).
		SetHeader("Accept", "application/json")

	return &HTTPClient{
		rc:             rc,
		signer:         signer,
		apiKey:         gw.APIKey,
		registerReturn: gw.RegisterReturn,
		paymentReturn:  gw.PaymentReturn,
		paymentConfirm: gw.PaymentConfirm,
	}, nil
}

// IsDuplicateCustomer reports whether err is the gateway refusing to create a
// customer that already exists.
func IsDuplicateCustomer(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == duplicateCustomerCode || strings.Contains(strings.ToLower(apiErr.Message), "already exist")
}

func (c *HTTPClient) CreateCustomer(ctx context.Context, name, email, externalID string) (*Customer, error) {
	var out Customer
	err := c.send(ctx, http.MethodPost, "/customer/create", map[string]string{
		"name":       name,
		"email":      email,
		"externalId": externalID,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// FindCustomer pages through customer/list filtered by name and returns the
// customer carrying externalID. NotFound when no page has it.
func (c *HTTPClient) FindCustomer(ctx context.Context, name, externalID string) (*Customer, error) {
	for page := 0; page < maxCustomerPages; page++ {
		var out CustomerList
		err := c.send(ctx, http.MethodGet, "/customer/list", map[string]string{
			"start":  strconv.Itoa(page * customerPageSize),
			"limit":  strconv.Itoa(customerPageSize),
			"filter": name,
		}, &out)
		if err != nil {
			return nil, err
		}
		for i := range out.Data {
			if out.Data[i].ExternalID == externalID {
				return &out.Data[i], nil
			}
		}
		if out.HasMore == 0 || len(out.Data) == 0 {
			break
		}
	}
	return nil, errutil.NotFound(fmt.Sprintf("gateway customer %s not found", externalID), nil)
}

func (c *HTTPClient) RegisterPaymentInstrument(ctx context.Context, customerID string) (*Redirect, error) {
	var out Redirect
	err := c.send(ctx, http.MethodPost, "/customer/register", map[string]string{
		"customerId": customerID,
		"url_return": c.registerReturn,
	}, &out)
	if err != nil {
		return nil, err
	}
	out.RedirectURL = redirectURL(out.URL, out.Token)
	return &out, nil
}

func (c *HTTPClient) GetRegistrationStatus(ctx context.Context, token string) (*RegistrationStatus, error) {
	var out RegistrationStatus
	if err := c.send(ctx, http.MethodGet, "/customer/getRegisterStatus", map[string]string{"token": token}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) CreatePayment(ctx context.Context, req PaymentRequest) (*Redirect, error) {
	if req.Currency == "" {
		req.Currency = defaultCurrency
	}
	if req.URLConfirmation == "" {
		req.URLConfirmation = c.paymentConfirm
	}
	if req.URLReturn == "" {
		req.URLReturn = c.paymentReturn
	}

	var out Redirect
	err := c.send(ctx, http.MethodPost, "/payment/create", map[string]string{
		"commerceOrder":   req.CommerceOrder,
		"subject":         req.Subject,
		"currency":        req.Currency,
		"amount":          strconv.FormatInt(req.Amount, 10),
		"email":           req.Email,
		"urlConfirmation": req.URLConfirmation,
		"urlReturn":       req.URLReturn,
	}, &out)
	if err != nil {
		return nil, err
	}
	out.RedirectURL = redirectURL(out.URL, out.Token)
	return &out, nil
}

func (c *HTTPClient) GetPaymentStatus(ctx context.Context, token string) (*PaymentStatus, error) {
	var out PaymentStatus
	if err := c.send(ctx, http.MethodGet, "/payment/getStatus", map[string]string{"token": token}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) CreateSubscription(ctx context.Context, customerID, planID string) (*Subscription, error) {
	var out Subscription
	err := c.send(ctx, http.MethodPost, "/subscription/create", map[string]string{
		"customerId": customerID,
		"planId":     planID,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error) {
	var out Subscription
	if err := c.send(ctx, http.MethodGet, "/subscription/get", map[string]string{"subscriptionId": subscriptionID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) CancelSubscription(ctx context.Context, subscriptionID string) (*Subscription, error) {
	var out Subscription
	err := c.send(ctx, http.MethodPost, "/subscription/cancel", map[string]string{
		"subscriptionId": subscriptionID,
		"at_period_end":  "0",
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) CreatePlan(ctx context.Context, req PlanRequest) (*Plan, error) {
	if req.IntervalCount <= 0 {
		req.IntervalCount = 1
	}
	params := map[string]string{
		"planId":            req.PlanID,
		"name":              req.Name,
		"currency":          defaultCurrency,
		"amount":            strconv.FormatInt(req.Amount, 10),
		"interval":          strconv.Itoa(req.Interval),
		"interval_count":    strconv.Itoa(req.IntervalCount),
		"trial_period_days": strconv.Itoa(req.TrialDays),
	}
	if req.URLCallback != "" {
		params["urlCallback"] = req.URLCallback
	}

	var out Plan
	if err := c.send(ctx, http.MethodPost, "/plans/create", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) GetPlan(ctx context.Context, planID string) (*Plan, error) {
	var out Plan
	if err := c.send(ctx, http.MethodGet, "/plans/get", map[string]string{"planId": planID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// send adds the api key, signs, performs the exchange and decodes a 2xx body
// into out. Transport failures and 5xx answers are GatewayUnavailable; other
// non-2xx answers carry an *APIError.
func (c *HTTPClient) send(ctx context.Context, method, endpoint string, params map[string]string, out any) error {
	zapLog := logger.FromContext(ctx).With(zap.String("endpoint", endpoint))
	start := time.Now()
	outcome := "ok"
	defer func() {
		metrics.GatewayRequestDuration.WithLabelValues(endpoint, outcome).Observe(time.Since(start).Seconds())
	}()

	signed := make(map[string]string, len(params)+2)
	for k, v := range params {
		signed[k] = v
	}
	signed["apiKey"] = c.apiKey
	signed[SignatureParam] = c.signer.Sign(signed)

	req := c.rc.R().SetContext(ctx)
	var (
		resp *resty.Response
		err  error
	)
	if method == http.MethodGet {
		resp, err = req.SetQueryParams(signed).Get(endpoint)
	} else {
		resp, err = req.SetFormData(signed).Post(endpoint)
	}
	if err != nil {
		outcome = "unavailable"
		zapLog.Warn("gateway call failed", zap.Error(err))
		return errutil.GatewayUnavailable(fmt.Sprintf("gateway %s unreachable", endpoint), err)
	}

	if resp.IsError() {
		apiErr := &APIError{HTTPStatus: resp.StatusCode(), Endpoint: endpoint}
		_ = json.Unmarshal(resp.Body(), apiErr)

		if resp.StatusCode() >= http.StatusInternalServerError {
			outcome = "unavailable"
			zapLog.Warn("gateway server error", zap.Int("status", resp.StatusCode()), zap.String("message", apiErr.Message))
			return errutil.GatewayUnavailable(fmt.Sprintf("gateway %s failed", endpoint), apiErr)
		}

		outcome = "rejected"
		zapLog.Warn("gateway rejected request", zap.Int("status", resp.StatusCode()),
			zap.Int64("code", int64(apiErr.Code)), zap.String("message", apiErr.Message))
		return errutil.BadGateway(fmt.Sprintf("gateway %s rejected the request", endpoint), apiErr)
	}

	if err := json.Unmarshal(resp.Body(), out); err != nil {
		outcome = "decode_error"
		return errutil.BadGateway(fmt.Sprintf("gateway %s returned an unreadable body", endpoint), err)
	}
	return nil
}

func redirectURL(base, token string) string {
	if base == "" || token == "" {
		return ""
	}
	return base + "?token=" + token
}
