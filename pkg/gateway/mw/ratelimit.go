package mw

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/pitchdrill/pitchdrill/pkg/core"
	"github.com/pitchdrill/pitchdrill/pkg/gateway/auth"
	"github.com/pitchdrill/pitchdrill/pkg/gateway/ratelimit"
)

// RateLimit enforces the per-user fixed windows. Health checks and
// CORS preflights are never counted.
func RateLimit(limiter *ratelimit.Limiter, next http.Handler) http.Handler {
	if limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" || r.URL.Path == "/readyz" {
			next.ServeHTTP(w, r)
			return
		}
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		principal := ""
		if p, ok := auth.PrincipalFrom(r.Context()); ok {
			principal = p.UserID
		}

		dec := limiter.Check(principal, time.Now())
		if dec.Limited {
			reqID, _ := RequestIDFrom(r.Context())
			if dec.RetryAfter > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(dec.RetryAfter)))
			}
			msg := "rate limit exceeded"
			if dec.Window != "" {
				msg = fmt.Sprintf("rate limit exceeded for the %s window", dec.Window)
			}
			writeJSONError(w, http.StatusTooManyRequests, &core.Error{
				Type:       core.ErrRateLimit,
				Message:    msg,
				Param:      dec.Window,
				RequestID:  reqID,
				RetryAfter: dec.RetryAfter,
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func retryAfterSeconds(d time.Duration) int {
	return int(math.Ceil(d.Seconds()))
}
