package errutil

import (
	"context"
	"errors"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const errorDomain = "lanovena.api"

// GRPCCode converts the CoreStatus to its closest gRPC status code equivalent.
func (s CoreStatus) GRPCCode() codes.Code {
	switch s {
	case StatusUnauthorized:
		return codes.Unauthenticated
	case StatusForbidden:
		return codes.PermissionDenied
	case StatusNotFound:
		return codes.NotFound
	case StatusTimeout, StatusGatewayTimeout:
		return codes.DeadlineExceeded
	case StatusUnprocessableEntity:
		return codes.FailedPrecondition
	case StatusUnsupportedMediaType, StatusBadRequest, StatusValidationFailed:
		return codes.InvalidArgument
	case StatusConflict:
		return codes.AlreadyExists
	case StatusTooManyRequests:
		return codes.ResourceExhausted
	case StatusClientClosedRequest:
		return codes.Canceled
	case StatusNotImplemented:
		return codes.Unimplemented
	case StatusBadGateway, StatusServiceUnavailable:
		return codes.Unavailable
	case StatusInternal:
		return codes.Internal
	default:
		return codes.Unknown
	}
}

// ToGRPCError normalises a domain error into a gRPC status error. The reason
// and details travel as an ErrorInfo so clients can branch without parsing
// the message.
func ToGRPCError(err error) error {
	if err == nil {
		return nil
	}

	if _, ok := status.FromError(err); ok {
		return err
	}

	if errors.Is(err, context.Canceled) {
		return status.Error(codes.Canceled, err.Error())
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return status.Error(codes.DeadlineExceeded, err.Error())
	}

	var base BaseError
	if errors.As(err, &base) {
		st := status.New(base.Code.GRPCCode(), base.Message)
		if base.Reason == "" {
			return st.Err()
		}

		metadata := make(map[string]string, len(base.Details))
		for _, d := range base.Details {
			metadata[d.Field] = d.Message
		}

		withInfo, derr := st.WithDetails(&errdetails.ErrorInfo{
			Reason:   base.Reason,
			Domain:   errorDomain,
			Metadata: metadata,
		})
		if derr != nil {
			return st.Err()
		}
		return withInfo.Err()
	}

	var coder interface{ Status() CoreStatus }
	if errors.As(err, &coder) {
		return status.Error(coder.Status().GRPCCode(), err.Error())
	}

	return status.Error(codes.Internal, err.Error())
}
