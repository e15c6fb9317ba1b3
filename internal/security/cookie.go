package security

import (
	"net/http"
	"strings"
	"time"
)

// SessionCookieName is the single cookie this service sets.
const SessionCookieName = "credlock_session"

// CookieManager owns the attributes of the session cookie: httpOnly always,
// Secure and SameSite per deployment config.
type CookieManager struct {
	Domain   string
	Secure   bool
	SameSite http.SameSite
}

func NewCookieManager(domain string, secure bool, sameSite string) *CookieManager {
	mode := http.SameSiteLaxMode
	switch strings.ToLower(sameSite) {
	case "strict":
		mode = http.SameSiteStrictMode
	case "none":
		mode = http.SameSiteNoneMode
	}
	return &CookieManager{Domain: domain, Secure: secure, SameSite: mode}
}

// SetSessionCookie installs the sealed session token.
func (m *CookieManager) SetSessionCookie(w http.ResponseWriter, token string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Domain:   m.Domain,
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.Secure,
		SameSite: m.SameSite,
	})
}

// ClearSessionCookie expires the session cookie immediately.
func (m *CookieManager) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   m.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.Secure,
		SameSite: m.SameSite,
	})
}

// GetCookie returns the named cookie value or "".
func GetCookie(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
