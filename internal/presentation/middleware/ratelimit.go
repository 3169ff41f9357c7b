package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimiter limits requests per caller: the identity from UserIDHeader when
// present, the client IP otherwise. Must run after Identity.
func RateLimiter(requestsPerSecond int) func(http.Handler) http.Handler {
	return httprate.Limit(requestsPerSecond, time.Second, httprate.WithKeyFuncs(callerKey))
}

func callerKey(r *http.Request) (string, error) {
	if id := UserIDFromContext(r.Context()); id != "" {
		return "user:" + id, nil
	}
	ip, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + ip, nil
}
