package auth

import (
	"net/http"
	"time"
)

const csrfCookieName = "csrf_token"

type CookieOpts struct {
	Name   string
	Domain string
	Path   string
	Secure bool
	TTL    time.Duration
}

func (o CookieOpts) setRefresh(w http.ResponseWriter, raw string) {
	http.SetCookie(w, &http.Cookie{
		Name:     o.Name,
		Value:    raw,
		Path:     o.Path,
		Domain:   o.Domain,
		HttpOnly: true,
		Secure:   o.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(o.TTL.Seconds()),
		Expires:  time.Now().Add(o.TTL).UTC(),
	})
}

func (o CookieOpts) clearRefresh(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     o.Name,
		Value:    "",
		Path:     o.Path,
		Domain:   o.Domain,
		HttpOnly: true,
		Secure:   o.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
	})
}

func (o CookieOpts) readRefresh(r *http.Request) string {
	c, err := r.Cookie(o.Name)
	if err != nil {
		return ""
	}
	return c.Value
}

// The CSRF cookie must stay readable by the frontend so it can echo it
// back in the header.
func (o CookieOpts) setCSRF(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		Domain:   o.Domain,
		Secure:   o.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}
