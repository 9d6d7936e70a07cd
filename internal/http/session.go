package httpx

import (
	"net/http"
	"time"
)

// sessionCookieName is fixed wire behavior; clients hold the token under
// this name.
const sessionCookieName = "jwt"

// sessionCookie binds the session token to the transport. The cookie is
// HTTP-only always and Secure outside development; its lifetime matches
// the token validity window.
type sessionCookie struct {
	ttl    time.Duration
	secure bool
}

func newSessionCookie(ttl time.Duration, secure bool) sessionCookie {
	return sessionCookie{ttl: ttl, secure: secure}
}

// attach sets the session cookie carrying token.
func (sc sessionCookie) attach(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(sc.ttl),
		HttpOnly: true,
		Secure:   sc.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// clear overwrites the session cookie with an immediately expired empty
// value so the client drops it.
func (sc sessionCookie) clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   sc.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// extract reads the session token from the request, if present.
func (sc sessionCookie) extract(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}
