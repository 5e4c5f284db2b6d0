package api

import (
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/ragroute/internal/router"
)

const sessionCookie = "ragroute_session"

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>ragroute</title>
<style>
body { font-family: sans-serif; max-width: 48rem; margin: 2rem auto; padding: 0 1rem; }
input[type=text] { width: 70%; padding: .4rem; }
pre { white-space: pre-wrap; background: #f6f6f6; padding: .8rem; }
</style>
</head>
<body>
<h1>AI Assistant</h1>
<form method="post" action="/ask">
<input type="text" name="query" placeholder="Enter your question:" value="{{.Query}}" autofocus>
{{if .TokenRequired}}<input type="password" name="token" placeholder="API token">
{{end}}<button type="submit">Ask AI</button>
</form>
{{if .Output}}
<h2>Response from AI:</h2>
{{range .Output}}<pre>{{.}}</pre>
{{end}}{{end}}
</body>
</html>
`))

type pageData struct {
	Query         string
	Output        []string
	TokenRequired bool
}

// handleIndex serves the empty form. With a token configured the form asks
// for it until the browser holds the token cookie.
func handleIndex(token string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		renderPage(w, pageData{TokenRequired: token != "" && !hasTokenCookie(r, token)})
	}
}

// handleFormAsk answers a form submission. Blank input renders the empty
// form without calling the router; failures are shown in the output area.
// With a token configured, submissions without it are refused with 401.
func handleFormAsk(a Asker, token string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		if err := r.ParseForm(); err != nil {
			renderPage(w, pageData{Output: []string{"Error: " + err.Error()}})
			return
		}
		if token != "" && !formAuthorized(w, r, token) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.WriteHeader(http.StatusUnauthorized)
			renderPage(w, pageData{Output: []string{"Error: invalid or missing API token"}, TokenRequired: true})
			return
		}
		query := strings.TrimSpace(r.PostFormValue("query"))
		if query == "" {
			renderPage(w, pageData{})
			return
		}

		id := browserSession(w, r)
		turn, err := a.Ask(r.Context(), id, query)
		if err != nil {
			slog.Warn("ask failed", "session_id", id, "error", err)
			renderPage(w, pageData{Query: query, Output: []string{"Error: " + err.Error()}})
			return
		}
		renderPage(w, pageData{Query: query, Output: turnOutput(turn)})
	}
}

// turnOutput lists the texts of the exchange: the question, then the reply.
func turnOutput(t router.Turn) []string {
	return []string{t.Query, t.Reply.Content}
}

// browserSession returns the session id carried by the cookie, issuing a
// new one on first visit.
func browserSession(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	id := uuid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(30 * 24 * time.Hour),
	})
	return id
}

func renderPage(w http.ResponseWriter, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplate.Execute(w, data); err != nil {
		slog.Error("rendering page", "error", err)
	}
}
