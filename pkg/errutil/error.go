package errutil

import (
	"fmt"
	"net/url"
	"strings"
)

// Reasons identify a failure inside a CoreStatus class. Two errors with the
// same reason match under errors.Is.
const (
	ReasonMissingCredential  = "MISSING_CREDENTIAL"
	ReasonInvalidCredential  = "INVALID_CREDENTIAL"
	ReasonInsufficientRole   = "INSUFFICIENT_ROLE"
	ReasonQuotaExceeded      = "QUOTA_EXCEEDED"
	ReasonConfiguration      = "CONFIGURATION_ERROR"
	ReasonInvalidSignature   = "INVALID_SIGNATURE"
	ReasonGatewayUnavailable = "GATEWAY_UNAVAILABLE"
	ReasonNotFound           = "NOT_FOUND"
	ReasonInvalidTransition  = "INVALID_TRANSITION"
)

var (
	ErrMissingCredential  = BaseError{Code: StatusUnauthorized, Reason: ReasonMissingCredential, Message: "missing credential"}
	ErrInvalidCredential  = BaseError{Code: StatusUnauthorized, Reason: ReasonInvalidCredential, Message: "invalid credential"}
	ErrInsufficientRole   = BaseError{Code: StatusForbidden, Reason: ReasonInsufficientRole, Message: "insufficient role"}
	ErrQuotaExceeded      = BaseError{Code: StatusForbidden, Reason: ReasonQuotaExceeded, Message: "quota exceeded"}
	ErrConfiguration      = BaseError{Code: StatusInternal, Reason: ReasonConfiguration, Message: "configuration error"}
	ErrInvalidSignature   = BaseError{Code: StatusBadRequest, Reason: ReasonInvalidSignature, Message: "invalid signature"}
	ErrGatewayUnavailable = BaseError{Code: StatusServiceUnavailable, Reason: ReasonGatewayUnavailable, Message: "payment gateway unavailable"}
	ErrNotFound           = BaseError{Code: StatusNotFound, Reason: ReasonNotFound, Message: "not found"}
	ErrInvalidTransition  = BaseError{Code: StatusUnprocessableEntity, Reason: ReasonInvalidTransition, Message: "invalid state transition"}
)

type Detail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type BaseError struct {
	Code    CoreStatus `json:"code"`
	Reason  string     `json:"reason,omitempty"`
	Message string     `json:"message"`
	Details []Detail   `json:"details,omitempty"`
	Err     error      `json:"-"`
}

func (e BaseError) Status() CoreStatus {
	return e.Code
}

// Is matches on Reason when the target carries one, otherwise on Code.
func (e BaseError) Is(target error) bool {
	t, ok := target.(BaseError)
	if !ok {
		return false
	}
	if t.Reason != "" {
		return e.Reason == t.Reason
	}
	return t.Code != "" && e.Code == t.Code
}

func (e BaseError) URL() string {
	values := url.Values{}

	values.Set("error_code", string(e.Code))
	values.Set("error_message", e.Message)
	if e.Reason != "" {
		values.Set("error_reason", e.Reason)
	}

	for _, d := range e.Details {
		values.Set("details["+strings.TrimSpace(d.Field)+"]", d.Message)
	}

	return values.Encode()
}

func (e BaseError) JSON() interface{} {
	return map[string]interface{}{
		"error": map[string]interface{}{
			"code":    e.Code,
			"reason":  e.Reason,
			"message": e.Message,
			"details": e.Details,
		},
	}
}

func (e BaseError) Unwrap() error {
	return e.Err
}

func (e BaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s", e.Code, e.messageWithErr())
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e BaseError) messageWithErr() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Detail returns the message of the first detail with the given field.
func (e BaseError) Detail(field string) (string, bool) {
	for _, d := range e.Details {
		if d.Field == field {
			return d.Message, true
		}
	}
	return "", false
}

type Option func(*BaseError)

func WithDetails(details ...Detail) Option {
	return func(be *BaseError) { be.Details = append(be.Details, details...) }
}

func WithErr(err error) Option {
	return func(be *BaseError) { be.Err = err }
}

func WithReason(reason string) Option {
	return func(be *BaseError) { be.Reason = reason }
}

func New(code CoreStatus, message string, opts ...Option) error {
	be := BaseError{Code: code, Message: message}
	for _, opt := range opts {
		opt(&be)
	}
	return be
}

// From derives a new error from a sentinel, keeping its code and reason.
func From(sentinel BaseError, message string, opts ...Option) error {
	be := BaseError{Code: sentinel.Code, Reason: sentinel.Reason, Message: message}
	if be.Message == "" {
		be.Message = sentinel.Message
	}
	for _, opt := range opts {
		opt(&be)
	}
	return be
}

func MissingCredential(msg string) error {
	return From(ErrMissingCredential, msg)
}

func InvalidCredential(msg string, err error) error {
	return From(ErrInvalidCredential, msg, WithErr(err))
}

func InsufficientRole(msg string, options ...Option) error {
	return From(ErrInsufficientRole, msg, options...)
}

func Configuration(msg string, err error, options ...Option) error {
	return From(ErrConfiguration, msg, append(options, WithErr(err))...)
}

func InvalidSignature(msg string) error {
	return From(ErrInvalidSignature, msg)
}

func GatewayUnavailable(msg string, err error) error {
	return From(ErrGatewayUnavailable, msg, WithErr(err))
}

func InvalidTransition(msg string, options ...Option) error {
	return From(ErrInvalidTransition, msg, options...)
}

func NotFound(msg string, err error, options ...Option) error {
	return From(ErrNotFound, msg, append(options, WithErr(err))...)
}

func UnprocessableEntity(msg string, err error, options ...Option) error {
	return New(StatusUnprocessableEntity, msg, append(options, WithErr(err))...)
}

func Conflict(msg string, err error, options ...Option) error {
	return New(StatusConflict, msg, append(options, WithErr(err))...)
}

func BadRequest(msg string, err error, options ...Option) error {
	return New(StatusBadRequest, msg, append(options, WithErr(err))...)
}

func ValidationFailed(msg string, err error, options ...Option) error {
	return New(StatusValidationFailed, msg, append(options, WithErr(err))...)
}

func Internal(msg string, err error, options ...Option) error {
	return New(StatusInternal, msg, append(options, WithErr(err))...)
}

func Forbidden(msg string, err error, options ...Option) error {
	return New(StatusForbidden, msg, append(options, WithErr(err))...)
}

func BadGateway(msg string, err error, options ...Option) error {
	return New(StatusBadGateway, msg, append(options, WithErr(err))...)
}

func ServiceUnavailable(msg string, err error, options ...Option) error {
	return New(StatusServiceUnavailable, msg, append(options, WithErr(err))...)
}
