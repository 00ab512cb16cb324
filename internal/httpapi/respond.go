package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/OmorFaruk63/blogauth"
	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"
)

const maxJSONBodyBytes = 1 << 20

type errorBody struct {
	Error    string            `json:"error"`
	Fields   map[string]string `json:"fields,omitempty"`
	Redirect string            `json:"redirect,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Error: message})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return false
	}
	return true
}

// fail maps engine errors that every endpoint shares. Anything unexpected is
// logged, reported to Sentry and hidden behind a 500.
func (a *api) fail(w http.ResponseWriter, r *http.Request, err error) {
	var verr *blogauth.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: "validation failed", Fields: verr.Fields})
	case errors.Is(err, blogauth.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "too many requests, try later")
	case errors.Is(err, blogauth.ErrEngineNotReady):
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
	default:
		if hub := sentry.GetHubFromContext(r.Context()); hub != nil {
			hub.CaptureException(err)
		} else {
			sentry.CaptureException(err)
		}
		a.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func retryAfterSeconds(until, now time.Time) int {
	secs := int(until.Sub(now).Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}
