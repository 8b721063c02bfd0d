package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "tributaria"

// Claims carries the registered claims plus the owning user.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"uid"`
}

// Tokens issues and verifies session tokens.
type Tokens struct {
	Secret []byte
	TTL    time.Duration
	Now    func() time.Time
}

func (t *Tokens) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}
	return time.Now()
}

// Issue signs a new token for userID.
func (t *Tokens) Issue(userID string) (string, *Claims, error) {
	now := t.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.TTL)),
		},
		UserID: userID,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.Secret)
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

// Parse verifies signature and expiry and returns the claims.
func (t *Tokens) Parse(token string) (*Claims, error) {
	return t.parse(token,
		jwt.WithTimeFunc(t.now),
		jwt.WithIssuer(issuer),
	)
}

// ParseUnverifiedExpiry verifies the signature only, accepting expired
// tokens. Sign-out uses it so an expired cookie can still be cleared.
func (t *Tokens) ParseUnverifiedExpiry(token string) (*Claims, error) {
	return t.parse(token, jwt.WithoutClaimsValidation())
}

func (t *Tokens) parse(token string, opts ...jwt.ParserOption) (*Claims, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return t.Secret, nil
	}, opts...)
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.UserID == "" || claims.ID == "" || claims.ExpiresAt == nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
