package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

const (
	stateCookie    = "smartmarks_oauth_state"
	verifierCookie = "smartmarks_oauth_verifier"
)

// Google endpoints, used when none are configured.
const (
	GoogleAuthURL     = "https://accounts.google.com/o/oauth2/v2/auth"
	GoogleTokenURL    = "https://oauth2.googleapis.com/token"
	GoogleUserinfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
)

// OAuthConfig describes the identity provider.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	UserinfoURL  string
	RedirectURL  string
	Scopes       []string
}

// OAuth runs the authorization-code flow and turns the provider's user into
// a session cookie.
type OAuth struct {
	cfg         *oauth2.Config
	userinfoURL string
	sessions    *Sessions
	logger      *slog.Logger
}

// NewOAuth builds the flow handlers. Empty URLs default to Google.
func NewOAuth(c OAuthConfig, sessions *Sessions, logger *slog.Logger) *OAuth {
	if c.AuthURL == "" {
		c.AuthURL = GoogleAuthURL
	}
	if c.TokenURL == "" {
		c.TokenURL = GoogleTokenURL
	}
	if c.UserinfoURL == "" {
		c.UserinfoURL = GoogleUserinfoURL
	}
	if len(c.Scopes) == 0 {
		c.Scopes = []string{"openid", "email", "profile"}
	}
	return &OAuth{
		cfg: &oauth2.Config{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			RedirectURL:  c.RedirectURL,
			Scopes:       c.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   c.AuthURL,
				TokenURL:  c.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		userinfoURL: c.UserinfoURL,
		sessions:    sessions,
		logger:      logger,
	}
}

// Login redirects to the provider with a fresh state and PKCE verifier.
func (o *OAuth) Login(w http.ResponseWriter, r *http.Request) {
	state := oauth2.GenerateVerifier()
	verifier := oauth2.GenerateVerifier()
	setFlowCookie(w, r, stateCookie, state)
	setFlowCookie(w, r, verifierCookie, verifier)

	url := o.cfg.AuthCodeURL(state, oauth2.AccessTypeOnline, oauth2.S256ChallengeOption(verifier))
	http.Redirect(w, r, url, http.StatusFound)
}

// Callback checks state, exchanges the code, reads the user, and starts a
// session.
func (o *OAuth) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	state, err := r.Cookie(stateCookie)
	if err != nil || state.Value == "" || q.Get("state") != state.Value {
		http.Error(w, "invalid state parameter", http.StatusBadRequest)
		return
	}
	verifier, err := r.Cookie(verifierCookie)
	if err != nil {
		http.Error(w, "missing verifier", http.StatusBadRequest)
		return
	}
	clearFlowCookie(w, stateCookie)
	clearFlowCookie(w, verifierCookie)

	code := q.Get("code")
	if code == "" {
		o.logger.Warn("oauth: authorization failed",
			slog.String("error", q.Get("error")),
			slog.String("description", q.Get("error_description")))
		http.Redirect(w, r, "/login?error=denied", http.StatusFound)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	tok, err := o.cfg.Exchange(ctx, code, oauth2.VerifierOption(verifier.Value))
	if err != nil {
		o.logger.Error("oauth: token exchange failed", slog.String("error", err.Error()))
		http.Error(w, "token exchange failed", http.StatusBadGateway)
		return
	}

	id, err := o.fetchIdentity(ctx, tok)
	if err != nil {
		o.logger.Error("oauth: userinfo failed", slog.String("error", err.Error()))
		http.Error(w, "could not read user", http.StatusBadGateway)
		return
	}

	if err := o.sessions.SetCookie(w, r, id); err != nil {
		o.logger.Error("oauth: issue session failed", slog.String("error", err.Error()))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	o.logger.Info("oauth: signed in", slog.String("sub", id.Subject))
	http.Redirect(w, r, "/", http.StatusFound)
}

func (o *OAuth) fetchIdentity(ctx context.Context, tok *oauth2.Token) (Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.userinfoURL, nil)
	if err != nil {
		return Identity{}, err
	}
	resp, err := o.cfg.Client(ctx, tok).Do(req)
	if err != nil {
		return Identity{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Identity{}, fmt.Errorf("userinfo status %d", resp.StatusCode)
	}

	var id Identity
	if err := json.NewDecoder(resp.Body).Decode(&id); err != nil {
		return Identity{}, fmt.Errorf("decode userinfo: %w", err)
	}
	if id.Subject == "" {
		return Identity{}, fmt.Errorf("userinfo without subject")
	}
	return id, nil
}

// Logout ends the session.
func Logout(w http.ResponseWriter, r *http.Request) {
	ClearCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func setFlowCookie(w http.ResponseWriter, r *http.Request, name, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/auth",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearFlowCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{Name: name, Value: "", Path: "/auth", MaxAge: -1, HttpOnly: true})
}
