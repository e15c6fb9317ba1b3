package security

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/credlock/credlock/internal/domain"
)

// SessionUser is the minimal projection of a User carried by the session
// cookie. It is everything the session endpoint echoes back; no digest or
// credential material ever rides along.
type SessionUser struct {
	ID    uint   `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sessionClaims struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// SessionManager seals and opens session tokens. Tokens are HS256-signed
// compact JWTs; tampering or expiry surfaces as an open error, never a
// partially trusted session.
type SessionManager struct {
	secret []byte
	ttl    time.Duration
}

func NewSessionManager(secret string, ttl time.Duration) *SessionManager {
	return &SessionManager{secret: []byte(secret), ttl: ttl}
}

// TTL returns the configured session lifetime, used to size the cookie.
func (m *SessionManager) TTL() time.Duration { return m.ttl }

// Issue seals {id, email, name} plus an expiry into a session token.
func (m *SessionManager) Issue(user *domain.User) (string, time.Time, error) {
	now := time.Now().UTC()
	expires := now.Add(m.ttl)
	claims := sessionClaims{
		Email: user.Email,
		Name:  user.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session token: %w", err)
	}
	return token, expires, nil
}

// Open validates a sealed token and returns the session user. Any failure
// (bad signature, wrong algorithm, expired) is a single opaque error.
func (m *SessionManager) Open(token string) (*SessionUser, error) {
	var claims sessionClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("invalid session token")
	}
	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid session subject")
	}
	return &SessionUser{ID: uint(id), Email: claims.Email, Name: claims.Name}, nil
}
