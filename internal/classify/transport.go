package classify

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"syscall"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// grpcHTTPStatus follows the grpc-gateway code to status table.
var grpcHTTPStatus = map[codes.Code]int{
	codes.Canceled:           499,
	codes.Unknown:            http.StatusInternalServerError,
	codes.InvalidArgument:    http.StatusBadRequest,
	codes.DeadlineExceeded:   http.StatusGatewayTimeout,
	codes.NotFound:           http.StatusNotFound,
	codes.AlreadyExists:      http.StatusConflict,
	codes.PermissionDenied:   http.StatusForbidden,
	codes.Unauthenticated:    http.StatusUnauthorized,
	codes.ResourceExhausted:  http.StatusTooManyRequests,
	codes.FailedPrecondition: http.StatusBadRequest,
	codes.Aborted:            http.StatusConflict,
	codes.OutOfRange:         http.StatusBadRequest,
	codes.Unimplemented:      http.StatusNotImplemented,
	codes.Internal:           http.StatusInternalServerError,
	codes.Unavailable:        http.StatusServiceUnavailable,
	codes.DataLoss:           http.StatusInternalServerError,
}

func fieldsFromError(err error) Fields {
	if inner, ok := As(err); ok && inner != nil {
		return Fields{
			Code:       inner.code,
			StatusCode: inner.statusCode,
			Message:    inner.message,
			RetryAfter: inner.retryAfter,
		}
	}

	var f Fields

	if st, ok := status.FromError(err); ok && st.Code() != codes.OK {
		f.Code = StringCode(st.Code().String())
		f.StatusCode = grpcHTTPStatus[st.Code()]
		f.Message = st.Message()
		for _, d := range st.Details() {
			switch detail := d.(type) {
			case *errdetails.ErrorInfo:
				if detail.GetReason() != "" {
					f.Code = StringCode(detail.GetReason())
				}
			case *errdetails.RetryInfo:
				f.RetryAfter = detail.GetRetryDelay().AsDuration()
			}
		}
		return f
	}

	var pgErr *pgconn.PgError
	var pqErr *pq.Error
	switch {
	case errors.As(err, &pgErr) && pgErr != nil:
		f.Code = StringCode(pgErr.Code)
		f.Message = pgErr.Message
	case errors.As(err, &pqErr) && pqErr != nil:
		f.Code = StringCode(string(pqErr.Code))
		f.Message = pqErr.Message
	}

	var coder ErrorCoder
	if f.Code.IsZero() && errors.As(err, &coder) {
		f.Code = StringCode(coder.ErrorCode())
	}
	var sc StatusCoder
	if errors.As(err, &sc) {
		f.StatusCode = sc.StatusCode()
	}
	if f.Message == "" {
		f.Message = err.Error()
	}
	return f
}

// fallbackCategory classifies Go errors that carried neither an override
// match nor an HTTP status.
func fallbackCategory(err error) (Category, bool) {
	if state := sqlState(err); state != "" {
		return sqlStateCategory(state), true
	}

	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) {
		return CategoryNetwork, true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return CategoryNetwork, true
	}
	return CategoryUnknown, false
}

func sqlState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil {
		return pgErr.Code
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr != nil {
		return string(pqErr.Code)
	}
	return ""
}

// sqlStateCategory maps SQLSTATE classes onto the taxonomy.
func sqlStateCategory(state string) Category {
	if state == "42501" {
		return CategoryAuthorization
	}
	if len(state) < 2 {
		return CategoryUnknown
	}
	switch state[:2] {
	case "08":
		return CategoryNetwork
	case "28":
		return CategoryAuthentication
	case "22", "23", "42":
		return CategoryValidation
	case "40", "53", "57", "58":
		return CategoryServer
	default:
		return CategoryUnknown
	}
}
