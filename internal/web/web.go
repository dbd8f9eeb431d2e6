// Package web serves the browser pages: login, logout and the live home list.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/smartmarks/internal/auth"
	"github.com/starford/smartmarks/internal/bookmarkservice"
	"github.com/starford/smartmarks/internal/models"
)

//go:embed templates/*.html static/*
var assets embed.FS

const homeLimit = 1000

// Config collects what the pages need. OAuth is nil unless auth mode is oauth.
type Config struct {
	Service *bookmarkservice.Service
	Gate    *auth.Gate
	OAuth   *auth.OAuth
	Logger  *slog.Logger
}

// Pages renders the HTML routes.
type Pages struct {
	svc    *bookmarkservice.Service
	gate   *auth.Gate
	oauth  *auth.OAuth
	logger *slog.Logger
	tmpl   *template.Template
	now    func() time.Time
}

// New parses the embedded templates.
func New(cfg Config) (*Pages, error) {
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"shortDate": func(t time.Time) string { return t.Local().Format("Jan 2") },
	}).ParseFS(assets, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("web: parse templates: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pages{
		svc:    cfg.Service,
		gate:   cfg.Gate,
		oauth:  cfg.OAuth,
		logger: logger,
		tmpl:   tmpl,
		now:    time.Now,
	}, nil
}

// Mount registers the page, auth flow and static routes on r.
func (p *Pages) Mount(r chi.Router) {
	static, _ := fs.Sub(assets, "static")
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))

	r.Get("/login", p.login)
	r.Post("/auth/logout", auth.Logout)
	if p.gate.Mode() == auth.ModeToken {
		r.Post("/auth/token", p.gate.TokenLogin)
	}
	if p.oauth != nil {
		r.Get("/auth/login", p.oauth.Login)
		r.Get("/auth/callback", p.oauth.Callback)
	}

	r.With(p.gate.RequirePage).Get("/", p.home)
}

type loginData struct {
	Mode  string
	Error string
}

var loginErrors = map[string]string{
	"token":  "That token is not valid.",
	"denied": "Sign-in was cancelled.",
}

func (p *Pages) login(w http.ResponseWriter, r *http.Request) {
	if p.gate.Mode() == auth.ModeDisabled {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	if _, ok := p.gate.Identify(r); ok {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	data := loginData{Mode: string(p.gate.Mode())}
	if code := r.URL.Query().Get("error"); code != "" {
		data.Error = loginErrors[code]
		if data.Error == "" {
			data.Error = "Sign-in failed. Please try again."
		}
	}
	p.render(w, "login.html", data)
}

type homeData struct {
	Greeting  string
	Name      string
	Email     string
	CanLogout bool
	Bookmarks []bookmarkView
	// Initial seeds the page script; it is the same shape the feed sends.
	Initial []models.Bookmark
}

type bookmarkView struct {
	models.Bookmark
	Domain  string
	Favicon string
}

func (p *Pages) home(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	items, _, err := p.svc.List(r.Context(), id.Subject, "", homeLimit)
	if err != nil {
		p.logger.Error("home: list bookmarks", slog.String("error", err.Error()))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	views := make([]bookmarkView, len(items))
	for i, b := range items {
		views[i] = bookmarkView{Bookmark: b, Domain: b.Domain(), Favicon: b.FaviconURL()}
	}
	name := id.Name
	if name == "" {
		name = "User"
	}
	p.render(w, "home.html", homeData{
		Greeting:  Greeting(p.now()),
		Name:      name,
		Email:     id.Email,
		CanLogout: p.gate.Mode() != auth.ModeDisabled,
		Bookmarks: views,
		Initial:   items,
	})
}

// Greeting picks the salutation for the hour of t.
func Greeting(t time.Time) string {
	switch h := t.Hour(); {
	case h < 12:
		return "Good morning"
	case h < 18:
		return "Good afternoon"
	default:
		return "Good evening"
	}
}

func (p *Pages) render(w http.ResponseWriter, name string, data any) {
	var buf bytes.Buffer
	if err := p.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		p.logger.Error("render page", slog.String("page", name), slog.String("error", err.Error()))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}
