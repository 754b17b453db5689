package dispatch

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"http-bridge/bridge/dispatch/domain"
)

type KeyFunc func(r *http.Request) string

// GuardOptions configura o limite por chamador da API do bridge.
type GuardOptions struct {
	Store              domain.LimiterStore
	KeyFn              KeyFunc
	KeyHeader          string
	TrustXForwardedFor bool
	RetryAfter         time.Duration
}

// CallerKey identifica o chamador: header configurado, depois o primeiro IP do
// X-Forwarded-For (se confiável), depois RemoteAddr.
func CallerKey(keyHeader string, trustXFF bool) KeyFunc {
	return func(r *http.Request) string {
		if keyHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(keyHeader)); v != "" {
				return v
			}
		}
		if trustXFF {
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				first, _, _ := strings.Cut(xff, ",")
				if ip := strings.TrimSpace(first); ip != "" {
					return ip
				}
			}
		}
		host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
		if err == nil && host != "" {
			return host
		}
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return "unknown"
	}
}

// Guard rejeita com 429 o chamador que passou do limite. Sem Store, não faz nada.
func Guard(opts GuardOptions) func(next http.Handler) http.Handler {
	if opts.RetryAfter <= 0 {
		opts.RetryAfter = time.Second
	}
	if opts.KeyFn == nil {
		opts.KeyFn = CallerKey(opts.KeyHeader, opts.TrustXForwardedFor)
	}
	retryAfter := strconv.Itoa(int(opts.RetryAfter.Seconds()))
	if retryAfter == "0" {
		retryAfter = "1"
	}

	return func(next http.Handler) http.Handler {
		if opts.Store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lim := opts.Store.Get(domain.Key(opts.KeyFn(r)))
			if lim != nil && !lim.Allow() {
				w.Header().Set("Retry-After", retryAfter)
				writeError(w, http.StatusTooManyRequests, http.StatusText(http.StatusTooManyRequests))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
