package middleware

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	goSession "github.com/MrEthical07/goSession"
)

// Authenticator resolves a bearer credential to an identity.
// *goSession.Engine satisfies it.
type Authenticator interface {
	Authenticate(ctx context.Context, credential string) (goSession.Identity, error)
}

// Authenticate installs the caller identity on the request context when the
// bearer credential resolves. It never rejects a request: a missing,
// malformed or unresolvable credential, an error, or a panic inside the
// authenticator all leave the request anonymous. next is called exactly once.
func Authenticate(a Authenticator, logger goSession.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = goSession.NopLogger{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if token, ok := BearerToken(r); ok && a != nil {
				if id, err := safeAuthenticate(ctx, a, token); err == nil {
					ctx = goSession.WithIdentity(ctx, id)
				} else if !errors.Is(err, goSession.ErrUnauthenticated) {
					logger.Warn(ctx, "goSession: authentication error", "error", err, "path", r.URL.Path)
				}
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func safeAuthenticate(ctx context.Context, a Authenticator, token string) (id goSession.Identity, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			id = goSession.Identity{}
			err = fmt.Errorf("authenticator panicked: %v", rec)
		}
	}()
	return a.Authenticate(ctx, token)
}

// ClientIP attaches the caller IP to the request context for rate limiting
// and audit. With trustProxy the rightmost X-Forwarded-For entry wins, which
// is the address the trusted proxy itself appended; entries to its left are
// client supplied. Otherwise, or when that entry is not an IP, the
// connection address is used.
func ClientIP(trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := remoteIP(r.RemoteAddr)
			if trustProxy {
				if fwd := forwardedIP(r.Header.Values("X-Forwarded-For")); fwd != "" {
					ip = fwd
				}
			}
			next.ServeHTTP(w, r.WithContext(goSession.WithClientIP(r.Context(), ip)))
		})
	}
}

func forwardedIP(values []string) string {
	if len(values) == 0 {
		return ""
	}
	last := values[len(values)-1]
	if i := strings.LastIndexByte(last, ','); i >= 0 {
		last = last[i+1:]
	}
	last = strings.TrimSpace(last)
	if net.ParseIP(last) == nil {
		return ""
	}
	return last
}

func remoteIP(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
