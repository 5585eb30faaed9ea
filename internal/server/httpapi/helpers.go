package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/passport/internal/common"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

type errorBody struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, code int, detail string) {
	writeJSONStatus(w, code, errorBody{Detail: detail})
}

func tooMany(w http.ResponseWriter, retryAfterSeconds int) {
	if retryAfterSeconds > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	}
	writeDetail(w, http.StatusTooManyRequests, "too many requests")
}

// decodeJSON reads a JSON body into v. Unknown fields are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// statusFor maps a service error to an HTTP status and a client-safe detail.
// Internal and integrity failures never leak their cause.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrorValidation):
		return http.StatusBadRequest, clientMessage(err, common.ErrorValidation)
	case errors.Is(err, common.ErrRefreshTokenExpired):
		return http.StatusUnauthorized, common.ErrRefreshTokenExpired.Error()
	case errors.Is(err, common.ErrorUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired),
		errors.Is(err, common.ErrAccountLocked):
		return http.StatusUnauthorized, "authentication failed"
	case errors.Is(err, common.ErrorForbidden):
		return http.StatusForbidden, clientMessage(err, common.ErrorForbidden)
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, common.ErrConflict):
		return http.StatusConflict, clientMessage(err, common.ErrConflict)
	case errors.Is(err, common.ErrInvalidStateTransition):
		return http.StatusConflict, common.ErrInvalidStateTransition.Error()
	case errors.Is(err, common.ErrExternalService):
		return http.StatusBadGateway, common.ErrExternalService.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// clientMessage returns the wrapped message when err was built with
// fmt.Errorf("%w: ...", sentinel), and the sentinel text otherwise.
func clientMessage(err, sentinel error) string {
	msg := err.Error()
	if i := strings.Index(msg, sentinel.Error()+": "); i >= 0 {
		return msg[i+len(sentinel.Error())+2:]
	}
	return sentinel.Error()
}
