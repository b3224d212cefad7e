package apperr

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Order ledger errors
	CodeInvalidTransition Code = "INVALID_TRANSITION"
	CodeStaleOrderState   Code = "STALE_ORDER_STATE"
	CodeOrderCancelled    Code = "ORDER_CANCELLED"

	// Split errors
	CodeSplitMismatch  Code = "SPLIT_MISMATCH"
	CodeSplitSealed    Code = "SPLIT_SEALED"
	CodeNotImplemented Code = "NOT_IMPLEMENTED"

	// Payment errors
	CodeAlreadyPaid Code = "ALREADY_PAID"
	CodeLinkExpired Code = "LINK_EXPIRED"

	// Session/membership errors
	CodeForbidden     Code = "FORBIDDEN"
	CodeSessionClosed Code = "SESSION_CLOSED"

	// Auth errors
	CodeUnauthenticated Code = "UNAUTHENTICATED"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
	CodeConflict Code = "CONFLICT"

	// Validation errors
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeInvalidArgument, CodeSplitMismatch, CodeNotImplemented:
		return http.StatusBadRequest

	case CodeUnauthenticated:
		return http.StatusUnauthorized

	case CodeForbidden:
		return http.StatusForbidden

	case CodeNotFound:
		return http.StatusNotFound

	// State doesn't allow the operation right now; the client must
	// re-fetch current state before retrying.
	case CodeInvalidTransition,
		CodeStaleOrderState,
		CodeOrderCancelled,
		CodeAlreadyPaid,
		CodeLinkExpired,
		CodeSessionClosed,
		CodeSplitSealed:
		return http.StatusConflict

	case CodeConflict:
		return http.StatusConflict

	default:
		return http.StatusInternalServerError
	}
}
