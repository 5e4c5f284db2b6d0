package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

const tokenCookie = "ragroute_token"

// BearerAuth rejects requests whose Authorization header does not carry
// token.
func BearerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || !tokenMatches(got, token) {
				w.Header().Set("WWW-Authenticate", `Bearer realm="ragroute"`)
				httpError(w, http.StatusUnauthorized, "authentication_error", "invalid or missing bearer token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func tokenMatches(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

// hasTokenCookie reports whether the browser already proved it knows token.
func hasTokenCookie(r *http.Request, token string) bool {
	c, err := r.Cookie(tokenCookie)
	return err == nil && tokenMatches(c.Value, token)
}

// formAuthorized checks a form submission against token. The token may come
// from the form's token field, which then sets a cookie so later
// submissions need not repeat it, or from that cookie.
func formAuthorized(w http.ResponseWriter, r *http.Request, token string) bool {
	if hasTokenCookie(r, token) {
		return true
	}
	if !tokenMatches(r.PostFormValue("token"), token) {
		return false
	}
	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	return true
}
