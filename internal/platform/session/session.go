package session

import (
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// CookieName is the session cookie set on the first vote interaction.
const CookieName = "voting_session"

// DefaultTTL matches the 30-day session validity window.
const DefaultTTL = 30 * 24 * time.Hour

type claims struct {
	SessionID string `json:"session_id"`
	jwt.RegisteredClaims
}

// Manager resolves the opaque session identity carried in a signed,
// http-only cookie. It never rejects a request: a missing, expired or
// tampered token simply yields a freshly minted session.
type Manager struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

func NewManager(secret, issuer string, ttl time.Duration) *Manager {
	if issuer == "" {
		issuer = "realtime-voting"
	}
	if ttl == 0 {
		ttl = DefaultTTL
	}
	return &Manager{secret: []byte(secret), issuer: issuer, ttl: ttl}
}

// Resolve returns the session ID for the request and whether it was
// minted just now. When isNew is true the caller must persist it with
// Issue before writing the response body.
func (m *Manager) Resolve(r *http.Request) (sessionID string, isNew bool) {
	c, err := r.Cookie(CookieName)
	if err == nil {
		if id, err := m.parse(c.Value); err == nil {
			return id, false
		}
	}
	return uuid.NewString(), true
}

// Issue writes the signed session cookie for sessionID on the response.
func (m *Manager) Issue(w http.ResponseWriter, sessionID string) error {
	token, err := m.sign(sessionID)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.ttl / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (m *Manager) sign(sessionID string) (string, error) {
	cl := claims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    m.issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, cl)
	return token.SignedString(m.secret)
}

func (m *Manager) parse(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
		}
		return m.secret, nil
	})
	if err != nil {
		return "", err
	}

	cl, ok := token.Claims.(*claims)
	if !ok || cl.SessionID == "" {
		return "", fmt.Errorf("invalid session token")
	}
	return cl.SessionID, nil
}
