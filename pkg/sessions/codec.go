package sessions

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	jwxjwt "github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/tendant/simple-trust/pkg/errors"
)

// Binding is what a session token is bound to. A session stays valid only
// while both versions still match the stored user and device.
type Binding struct {
	UserID             uuid.UUID `json:"uid"`
	UserTokenVersion   int       `json:"uver"`
	DeviceID           string    `json:"did"`
	DeviceTokenVersion int       `json:"dver"`
}

// Claims is the JWT payload of a session token
type Claims struct {
	Binding
	jwt.RegisteredClaims
}

// Codec mints and parses HS256 session tokens
type Codec struct {
	secret   []byte
	issuer   string
	audience string
	expiry   time.Duration
	now      func() time.Time
}

// NewCodec creates a codec. Tokens expire after expiry.
func NewCodec(secret, issuer, audience string, expiry time.Duration) *Codec {
	return &Codec{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: audience,
		expiry:   expiry,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Encode signs a token for b and returns it with its expiry
func (c *Codec) Encode(b Binding) (string, time.Time, error) {
	now := c.now()
	claims := Claims{
		Binding: b,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   b.UserID.String(),
			Issuer:    c.issuer,
			Audience:  jwt.ClaimStrings{c.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now.Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.expiry)),
			ID:        uuid.NewString(),
		},
	}

	ss, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		slog.Error("Failed to sign session token", "err", err)
		return "", time.Time{}, errors.InternalWrap(err, "failed to sign session token")
	}
	return ss, claims.ExpiresAt.Time, nil
}

// Decode verifies the signature, expiry, issuer and audience of tokenStr.
// Any failure is TokenInvalid.
func (c *Codec) Decode(tokenStr string) (Binding, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithAudience(c.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		slog.Debug("Rejected session token", "err", err)
		return Binding{}, errors.TokenInvalid(fmt.Sprintf("invalid session token: %v", err))
	}
	if err := claims.Binding.validate(); err != nil {
		return Binding{}, err
	}
	return claims.Binding, nil
}

// JWTAuth returns the verifier used by the HTTP middleware. It checks the
// same key, issuer and audience as Decode.
func (c *Codec) JWTAuth() *jwtauth.JWTAuth {
	return jwtauth.New(jwt.SigningMethodHS256.Alg(), c.secret, nil,
		jwxjwt.WithIssuer(c.issuer),
		jwxjwt.WithAudience(c.audience),
		jwxjwt.WithClock(jwxjwt.ClockFunc(c.now)),
	)
}

func (b Binding) validate() error {
	if b.UserID == uuid.Nil || b.DeviceID == "" {
		return errors.TokenInvalid("session token is missing its binding")
	}
	if b.UserTokenVersion < 0 || b.DeviceTokenVersion < 0 {
		return errors.TokenInvalid("session token has invalid versions")
	}
	return nil
}
