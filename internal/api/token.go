package api

import (
	"fmt"
	"time"

	"github.com/dgrijalva/jwt-go"

	"github.com/victornm/quizdesk/internal/errors"
)

const defaultTokenTTL = 24 * time.Hour

var ErrInvalidToken = errors.New(errors.CodeUnauthenticated, errors.WithMessagef("invalid or expired session token"))

type claims struct {
	SessionID string `json:"sid"`
	jwt.StandardClaims
}

// Tokens issues and checks HS256 signed session tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(secret string, ttl time.Duration) *Tokens {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (t *Tokens) Issue(sessionID string) (string, error) {
	now := t.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		SessionID: sessionID,
		StandardClaims: jwt.StandardClaims{
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(t.ttl).Unix(),
		},
	})

	s, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return s, nil
}

// Parse returns the session id of a valid token.
func (t *Tokens) Parse(token string) (string, error) {
	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil {
		return "", errors.New(errors.CodeUnauthenticated,
			errors.WithMessagef("%s", ErrInvalidToken.Message),
			errors.WithCause(err),
		)
	}
	if c.SessionID == "" {
		return "", ErrInvalidToken
	}

	return c.SessionID, nil
}
