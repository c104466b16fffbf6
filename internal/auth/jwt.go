package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingSecret = errors.New("jwt auth secret is not configured")
	ErrInvalidToken  = errors.New("invalid token")
)

// DefaultTTL is how long issued tokens stay valid.
const DefaultTTL = 72 * time.Hour

// Signer issues and verifies HS256 tokens with the JWT_AUTH_SECRET key.
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSigner returns a signer for secret. A non-positive ttl uses DefaultTTL.
func NewSigner(secret string, ttl time.Duration) *Signer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Signer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// GenerateToken creates a signed token whose subject is userID.
func (s *Signer) GenerateToken(userID int64) (string, error) {
	if len(s.secret) == 0 {
		return "", ErrMissingSecret
	}

	now := s.now()
	claims := jwt.MapClaims{
		"sub": userID,
		"exp": now.Add(s.ttl).Unix(),
		"iat": now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses tokenString and returns the user ID in its subject.
func (s *Signer) ValidateToken(tokenString string) (int64, error) {
	if len(s.secret) == 0 {
		return 0, ErrMissingSecret
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return 0, ErrInvalidToken
	}

	// JSON numbers decode as float64.
	sub, ok := claims["sub"].(float64)
	if !ok {
		return 0, fmt.Errorf("%w: invalid subject claim", ErrInvalidToken)
	}
	return int64(sub), nil
}
