package auth

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// SessionCookie holds the signed session token for browser clients.
	SessionCookie = "smartmarks_session"

	defaultSessionTTL = 7 * 24 * time.Hour
	sessionIssuer     = "smartmarks"
)

// ErrInvalidSession is returned for missing, expired, or forged tokens.
var ErrInvalidSession = errors.New("invalid session")

type sessionClaims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Sessions issues and verifies HS256 session tokens.
type Sessions struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSessions creates a session manager. A zero ttl means seven days.
func NewSessions(secret string, ttl time.Duration) (*Sessions, error) {
	if len(secret) < 16 {
		return nil, fmt.Errorf("auth: session secret must be at least 16 bytes")
	}
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &Sessions{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// TTL returns the lifetime of issued tokens.
func (s *Sessions) TTL() time.Duration { return s.ttl }

// Issue signs a token for id.
func (s *Sessions) Issue(id Identity) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.ttl)
	claims := &sessionClaims{
		Email: id.Email,
		Name:  id.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.Subject,
			Issuer:    sessionIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign session: %w", err)
	}
	return signed, exp, nil
}

// Parse verifies token and returns the identity it carries.
func (s *Sessions) Parse(token string) (Identity, error) {
	claims := &sessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithIssuer(sessionIssuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return Identity{}, ErrInvalidSession
	}
	return Identity{Subject: claims.Subject, Email: claims.Email, Name: claims.Name}, nil
}

// SetCookie issues a token for id and stores it in the session cookie.
func (s *Sessions) SetCookie(w http.ResponseWriter, r *http.Request, id Identity) error {
	token, exp, err := s.Issue(id)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  exp,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// ClearCookie expires the session cookie.
func ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
