// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/odyssey-erp/po-console/internal/shared"
)

// Sentinel errors shared by handlers.
var (
	ErrBadRequest = errors.New("bad request")
	ErrConflict   = errors.New("conflict")
	ErrForbidden  = errors.New("forbidden")
)

type fieldErrorer interface {
	FieldErrors() map[string]string
}

type clearAfterer interface {
	ClearAfterMillis() int64
}

type upstreamError interface {
	UpstreamStatus() int
}

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	var fe fieldErrorer
	if errors.As(err, &fe) && len(fe.FieldErrors()) > 0 {
		problem := ProblemDetail{
			Title:  "Validation Failed",
			Status: http.StatusUnprocessableEntity,
			Detail: shared.UserSafeMessage(shared.ErrValidation),
			Fields: fe.FieldErrors(),
		}
		var ca clearAfterer
		if errors.As(err, &ca) {
			problem.ClearAfterMS = ca.ClearAfterMillis()
		}
		JSON(w, problem.Status, problem)
		return
	}
	switch {
	case errors.Is(err, shared.ErrUnauthenticated):
		Problem(w, http.StatusUnauthorized, "Unauthorized", shared.UserSafeMessage(err))
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrIdempotencyConflict), errors.Is(err, ErrConflict):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, shared.ErrValidation), errors.Is(err, ErrBadRequest):
		Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
	case errors.Is(err, ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	default:
		var up upstreamError
		if errors.As(err, &up) {
			if up.UpstreamStatus() == http.StatusNotFound {
				Problem(w, http.StatusNotFound, "Not Found", err.Error())
				return
			}
			Problem(w, http.StatusBadGateway, "Upstream Error", err.Error())
			return
		}
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
