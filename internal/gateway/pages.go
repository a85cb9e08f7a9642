package gateway

import (
	"fmt"
	"html/template"
	"net/http"
)

// The gateway emits only these two minimal page shells; everything else
// about presentation lives with the frontend.

const challengeHTML = `<!doctype html>
<html lang="en">
<head><meta charset="utf-8"><title>Sign in required</title></head>
<body>
<h1>Sign in to access this course</h1>
<p>Enter the email address and access code you enrolled with.</p>
<form method="post" action="/auth/login" data-resource-id="%d">
<label>Email <input type="email" name="identity" required></label>
<label>Access code <input type="password" name="secret" required></label>
<button type="submit">Continue</button>
</form>
</body>
</html>`

const unavailableHTML = `<!doctype html>
<html lang="en">
<head><meta charset="utf-8"><title>Temporarily unavailable</title></head>
<body>
<h1>Course content is temporarily unavailable</h1>
<p>We could not reach the content service. Please try again in a few minutes.</p>
<p>If the problem persists, contact %s.</p>
</body>
</html>`

func writeChallengePage(w http.ResponseWriter, resourceID int64) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, challengeHTML, resourceID)
}

func writeUnavailablePage(w http.ResponseWriter, contact string) {
	if contact == "" {
		contact = "support"
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusServiceUnavailable)
	fmt.Fprintf(w, unavailableHTML, template.HTMLEscapeString(contact))
}
