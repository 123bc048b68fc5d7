package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"go-chat-stream/internal/infrastructure/logger"
)

// SessionCookieName carries the signed session token.
const SessionCookieName = "chat_session"

// ErrUnauthorized is the single rejection for every authentication
// failure. Missing, malformed, tampered, and expired credentials are
// deliberately indistinguishable to the client.
var ErrUnauthorized = errors.New("unauthorized")

// Identity is the authenticated principal attached to a connection.
type Identity struct {
	Username string
	Role     string
	Status   string
}

// IsAdmin reports whether the identity carries the admin role.
func (i Identity) IsAdmin() bool {
	return i.Role == "admin"
}

type sessionClaims struct {
	Role   string `json:"role"`
	Status string `json:"status"`
	jwt.RegisteredClaims
}

// TokenAuthenticator issues and verifies HS256 session tokens carried in
// a cookie. Verification runs before any connection is registered with
// the hub; HMAC comparison inside the jwt library is constant-time.
type TokenAuthenticator struct {
	secret []byte
	ttl    time.Duration
	logger logger.Logger
}

func NewTokenAuthenticator(secret string, ttl time.Duration, log logger.Logger) *TokenAuthenticator {
	return &TokenAuthenticator{
		secret: []byte(secret),
		ttl:    ttl,
		logger: log.WithField("component", "auth"),
	}
}

// IssueToken signs a session token for an approved login.
func (a *TokenAuthenticator) IssueToken(username, role, status string) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		Role:   role,
		Status: status,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Authenticate extracts the session cookie from r and verifies it. Any
// failure yields ErrUnauthorized with no further detail.
func (a *TokenAuthenticator) Authenticate(r *http.Request) (Identity, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return Identity{}, ErrUnauthorized
	}
	return a.VerifyToken(cookie.Value)
}

// VerifyToken checks signature, expiry, and account status on a raw token.
func (a *TokenAuthenticator) VerifyToken(token string) (Identity, error) {
	var claims sessionClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		a.logger.Debugf("token rejected: %v", err)
		return Identity{}, ErrUnauthorized
	}

	if claims.Status != "approved" {
		return Identity{}, ErrUnauthorized
	}

	return Identity{
		Username: claims.Subject,
		Role:     claims.Role,
		Status:   claims.Status,
	}, nil
}

// SessionCookie wraps a signed token for the Set-Cookie header.
func (a *TokenAuthenticator) SessionCookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(a.ttl / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// ExpiredSessionCookie clears the session cookie on logout.
func (a *TokenAuthenticator) ExpiredSessionCookie() *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}
