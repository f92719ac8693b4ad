// Package web serves the dashboard used to submit report jobs by hand.
package web

import (
	"crypto/subtle"
	"embed"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

//go:embed templates/*.html
var templates embed.FS

type Options struct {
	Username string
	Password string
	// APIBase is the prefix of the job API as seen from the browser.
	APIBase string
}

type Web struct {
	tpl      *template.Template
	username string
	password string
	apiBase  string
	router   chi.Router
}

func New(opts Options) *Web {
	if opts.APIBase == "" {
		opts.APIBase = "/reports"
	}
	w := &Web{
		tpl:      template.Must(template.ParseFS(templates, "templates/*.html")),
		username: opts.Username,
		password: opts.Password,
		apiBase:  opts.APIBase,
	}
	r := chi.NewRouter()
	r.Get("/login", w.handleLogin)
	r.Post("/login", w.handleLogin)
	r.Get("/logout", w.handleLogout)
	r.Get("/", w.requireAuth(w.handleDashboard))
	w.router = r
	return w
}

func (w *Web) ServeHTTP(wr http.ResponseWriter, r *http.Request) { w.router.ServeHTTP(wr, r) }

func (w *Web) render(wr http.ResponseWriter, name string, data any) {
	wr.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := w.tpl.ExecuteTemplate(wr, name, data); err != nil {
		log.Error().Err(err).Str("template", name).Msg("render failed")
	}
}

// requireAuth is a no-op when no credentials are configured.
func (w *Web) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(wr http.ResponseWriter, r *http.Request) {
		if w.username == "" {
			next(wr, r)
			return
		}
		c, err := r.Cookie("auth")
		if err != nil || c.Value != "1" {
			http.Redirect(wr, r, "login", http.StatusSeeOther)
			return
		}
		next(wr, r)
	}
}

func (w *Web) handleLogin(wr http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		w.render(wr, "login.html", map[string]any{"Error": r.URL.Query().Get("error")})
	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			http.Redirect(wr, r, "login?error=invalid+form", http.StatusSeeOther)
			return
		}
		if w.username != "" && equal(r.Form.Get("username"), w.username) && equal(r.Form.Get("password"), w.password) {
			http.SetCookie(wr, &http.Cookie{Name: "auth", Value: "1", Path: "/", HttpOnly: true, SameSite: http.SameSiteLaxMode})
			http.Redirect(wr, r, "./", http.StatusSeeOther)
			return
		}
		http.Redirect(wr, r, "login?error=invalid+credentials", http.StatusSeeOther)
	}
}

func (w *Web) handleLogout(wr http.ResponseWriter, r *http.Request) {
	http.SetCookie(wr, &http.Cookie{Name: "auth", Value: "", Path: "/", MaxAge: -1})
	http.Redirect(wr, r, "login", http.StatusSeeOther)
}

func (w *Web) handleDashboard(wr http.ResponseWriter, r *http.Request) {
	w.render(wr, "dashboard.html", map[string]any{
		"Username": w.username,
		"APIBase":  w.apiBase,
	})
}

func equal(a, b string) bool { return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1 }
