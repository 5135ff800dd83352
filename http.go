package members

import (
	"time"

	"github.com/goliatone/go-router"
)

// CookieAuthorization is the name of the authorization cookie.
const CookieAuthorization = "members_authorization"

// CookieTransitional is the name of the cookie carrying an encoded
// transitional registration payload across the register form round trip.
const CookieTransitional = "members_transitional"

// DefaultCookieDuration is the fixed lifetime of the authorization cookie.
const DefaultCookieDuration = 24 * time.Hour

// SessionWriter owns the response side of the session contract: after the
// handler completes, the authorization cookie is either set fresh or actively
// cleared. It is never left stale.
type SessionWriter struct {
	cookieName     string
	cookieDuration time.Duration
	Logger         Logger
}

// NewSessionWriter creates a SessionWriter with the fixed 24h cookie lifetime.
func NewSessionWriter(cookieName string) *SessionWriter {
	if cookieName == "" {
		cookieName = CookieAuthorization
	}
	return &SessionWriter{
		cookieName:     cookieName,
		cookieDuration: DefaultCookieDuration,
		Logger:         defLogger{},
	}
}

// WriteAuthorizationCookie applies the set-or-clear rule for the session's
// authorization state. Call it once per request, after the handler ran.
func (w *SessionWriter) WriteAuthorizationCookie(c router.Context, session *Session) {
	if session == nil || !session.HasAuthorization() {
		w.clearCookie(c, w.cookieName)
		return
	}

	record := session.GetAuthorization()
	if record.Cookie == "" {
		w.clearCookie(c, w.cookieName)
		return
	}

	w.setCookie(c, record.Cookie, w.cookieDuration)
}

// ReadAuthorizationCookie returns the raw authorization cookie value, empty
// when the request carries none.
func (w *SessionWriter) ReadAuthorizationCookie(c router.Context) string {
	return c.Cookies(w.cookieName)
}

// WriteTransitionalCookie stores an encoded transitional registration payload
// so the register form can pick it up on the next request.
func (w *SessionWriter) WriteTransitionalCookie(c router.Context, encoded string, ttl time.Duration) {
	c.Cookie(&router.Cookie{
		Name:     CookieTransitional,
		Value:    encoded,
		Expires:  time.Now().Add(ttl),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (w *SessionWriter) setCookie(c router.Context, val string, duration time.Duration) {
	c.Cookie(&router.Cookie{
		Name:     w.cookieName,
		Value:    val,
		Expires:  time.Now().Add(duration),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (w *SessionWriter) clearCookie(c router.Context, name string) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}
