package httpx

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"
)

type identityContextKey string

const contextKeyIdentity identityContextKey = "account-identity"

// Identity is the per-request projection of an authenticated user. The
// password hash never crosses into it.
type Identity struct {
	ID       string
	Username string
	Email    string
	IsAdmin  bool
}

// authenticate verifies the session cookie, loads the referenced user
// and attaches the identity to the request context. Missing, forged and
// expired tokens, and tokens referencing deleted accounts, all produce
// the same 401 outcome.
func (r *Router) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		token, ok := r.cookies.extract(req)
		if !ok {
			writeError(w, http.StatusUnauthorized, "not authorized, no token")
			return
		}
		user, err := r.auth.Authorize(req.Context(), token)
		if err != nil {
			r.logger.Warn("token validation failed", "error", err, "path", req.URL.Path)
			writeError(w, http.StatusUnauthorized, "not authorized, token failed")
			return
		}
		identity := Identity{
			ID:       user.ID,
			Username: user.Username,
			Email:    user.Email,
			IsAdmin:  user.IsAdmin,
		}
		ctx := context.WithValue(req.Context(), contextKeyIdentity, identity)
		next.ServeHTTP(w, req.WithContext(ctx))
	})
}

// requireAdmin gates a route on the identity's admin flag. Pure
// predicate; no store access.
func (r *Router) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		identity, ok := identityFromContext(req.Context())
		if !ok || !identity.IsAdmin {
			writeError(w, http.StatusUnauthorized, "not authorized as an admin")
			return
		}
		next.ServeHTTP(w, req)
	})
}

// identityFromContext extracts the authenticated identity from context.
func identityFromContext(ctx context.Context) (Identity, bool) {
	value := ctx.Value(contextKeyIdentity)
	if value == nil {
		return Identity{}, false
	}
	identity, ok := value.(Identity)
	return identity, ok
}

// logRequests emits one structured log line per request.
func (r *Router) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next.ServeHTTP(recorder, req)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		fields := []any{
			"method", req.Method,
			"path", req.URL.Path,
			"status", status,
			"bytes", recorder.bytes,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if ip := clientIP(req); ip != "" {
			fields = append(fields, "ip", ip)
		}
		if reqID := strings.TrimSpace(req.Header.Get("X-Request-ID")); reqID != "" {
			fields = append(fields, "request_id", reqID)
		}

		switch {
		case status >= http.StatusInternalServerError:
			r.logger.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			r.logger.Warn("http_request", fields...)
		default:
			r.logger.Info("http_request", fields...)
		}
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func clientIP(req *http.Request) string {
	if forwarded := strings.TrimSpace(req.Header.Get("X-Forwarded-For")); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(req.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(req.RemoteAddr)
	}
	return host
}
