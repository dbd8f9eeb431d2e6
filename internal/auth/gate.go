package auth

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

// Mode selects how requests are authenticated.
type Mode string

const (
	ModeDisabled Mode = "disabled" // every request is the local owner
	ModeToken    Mode = "token"    // shared bearer token, or a session issued after entering it
	ModeOAuth    Mode = "oauth"    // OAuth2 login, then session cookie or bearer session token
)

// Gate identifies requests and guards routes.
type Gate struct {
	mode       Mode
	token      string
	localOwner string
	sessions   *Sessions
}

// NewGate creates a gate. sessions may be nil in disabled mode.
func NewGate(mode Mode, token, localOwner string, sessions *Sessions) *Gate {
	if localOwner == "" {
		localOwner = "local"
	}
	return &Gate{mode: mode, token: token, localOwner: localOwner, sessions: sessions}
}

// Mode returns the configured mode.
func (g *Gate) Mode() Mode { return g.mode }

// Sessions returns the session manager, or nil.
func (g *Gate) Sessions() *Sessions { return g.sessions }

// Local returns the identity used in disabled and token modes.
func (g *Gate) Local() Identity { return Identity{Subject: g.localOwner} }

// CheckToken reports whether tok is the shared token of token mode.
func (g *Gate) CheckToken(tok string) bool {
	return g.mode == ModeToken && g.token != "" &&
		subtle.ConstantTimeCompare([]byte(tok), []byte(g.token)) == 1
}

// Identify resolves the request's identity from the Authorization header or
// the session cookie.
func (g *Gate) Identify(r *http.Request) (Identity, bool) {
	if g.mode == ModeDisabled {
		return g.Local(), true
	}

	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		tok := strings.TrimPrefix(h, "Bearer ")
		if g.CheckToken(tok) {
			return g.Local(), true
		}
		if g.sessions != nil {
			if id, err := g.sessions.Parse(tok); err == nil {
				return id, true
			}
		}
		return Identity{}, false
	}

	if g.sessions != nil {
		if c, err := r.Cookie(SessionCookie); err == nil {
			if id, err := g.sessions.Parse(c.Value); err == nil {
				return id, true
			}
		}
	}
	return Identity{}, false
}

// RequireAPI rejects unauthenticated requests with a JSON 401.
func (g *Gate) RequireAPI(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := g.Identify(r)
		if !ok {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// RequirePage redirects unauthenticated visitors to /login.
func (g *Gate) RequirePage(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := g.Identify(r)
		if !ok {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// TokenLogin exchanges the shared token, posted as a form field, for a
// session cookie so browsers can use token mode.
func (g *Gate) TokenLogin(w http.ResponseWriter, r *http.Request) {
	if g.sessions == nil || !g.CheckToken(r.PostFormValue("token")) {
		http.Redirect(w, r, "/login?error=token", http.StatusSeeOther)
		return
	}
	if err := g.sessions.SetCookie(w, r, g.Local()); err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
