// Package token issues and verifies the signed bearer tokens handed out at
// login. Access tokens are self-contained; refresh tokens are additionally
// tracked server side so they can be revoked.
package token

import (
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/micronest/micronest-api/internal/config"
)

type Type string

const (
	TypeAccess  Type = "access"
	TypeRefresh Type = "refresh"
)

const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 30 * 24 * time.Hour
	DefaultIssuer     = "micronest-api"
)

var (
	ErrMalformedToken   = errors.New("malformed token")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrWrongTokenType   = errors.New("wrong token type")
	ErrTokenExpired     = errors.New("token expired")
)

type Claims struct {
	UserID    uint `json:"user_id"`
	TokenType Type `json:"token_type"`
	jwt.RegisteredClaims
}

type Codec struct {
	secret []byte
	issuer string
	ttl    map[Type]time.Duration
	parser *jwt.Parser
	now    func() time.Time
}

func NewCodec(cfg *config.AuthConfig) *Codec {
	accessTTL := cfg.AccessTokenDuration
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTTL
	}
	refreshTTL := cfg.RefreshTokenDuration
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTTL
	}
	issuer := cfg.Issuer
	if issuer == "" {
		issuer = DefaultIssuer
	}

	return &Codec{
		secret: []byte(cfg.JWTSecret),
		issuer: issuer,
		ttl: map[Type]time.Duration{
			TypeAccess:  accessTTL,
			TypeRefresh: refreshTTL,
		},
		// Claims are checked by hand in Verify so the failure order stays
		// type before expiry.
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
		),
		now: time.Now,
	}
}

// WithClock replaces the time source. Used by tests to move past expiry.
func (c *Codec) WithClock(now func() time.Time) *Codec {
	c.now = now
	return c
}

func (c *Codec) TTL(typ Type) time.Duration {
	return c.ttl[typ]
}

// Issue signs a new token of the given type for userID and returns it along
// with the claims it carries.
func (c *Codec) Issue(userID uint, typ Type) (string, *Claims, error) {
	ttl, ok := c.ttl[typ]
	if !ok {
		return "", nil, ErrWrongTokenType
	}

	now := c.now().UTC()
	claims := &Claims{
		UserID:    userID,
		TokenType: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   strconv.FormatUint(uint64(userID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

// Verify checks the signature before anything in the payload is looked at,
// then the token type, then expiry.
func (c *Codec) Verify(tokenString string, expected Type) (*Claims, error) {
	parts := strings.Split(tokenString, ".")
	if len(parts) != 3 {
		return nil, ErrMalformedToken
	}

	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, ErrMalformedToken
	}
	if err := jwt.SigningMethodHS256.Verify(parts[0]+"."+parts[1], sig, c.secret); err != nil {
		return nil, ErrInvalidSignature
	}

	claims := &Claims{}
	_, err = c.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return c.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
			return nil, ErrInvalidSignature
		default:
			return nil, ErrMalformedToken
		}
	}

	if claims.UserID == 0 {
		return nil, ErrMalformedToken
	}
	if claims.TokenType != expected {
		return nil, ErrWrongTokenType
	}
	if claims.ExpiresAt == nil || claims.ExpiresAt.Time.Before(c.now()) {
		return nil, ErrTokenExpired
	}

	return claims, nil
}
