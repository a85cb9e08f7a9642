package token

import (
	"fmt"
	"net/http"
)

// CookieName returns the per-resource session cookie name. Scoping the name
// and path to one resource keeps a token for course A from ever riding
// along on requests for course B.
func CookieName(resourceID int64) string {
	return fmt.Sprintf("course_access_%d", resourceID)
}

// CookiePath returns the path the session cookie is scoped to.
func CookiePath(resourceID int64) string {
	return fmt.Sprintf("/protected/%d", resourceID)
}

// NewCookie wraps a minted token in the resource-scoped session cookie.
func NewCookie(resourceID int64, tok string) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName(resourceID),
		Value:    tok,
		Path:     CookiePath(resourceID),
		MaxAge:   int(Lifetime.Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	}
}
