package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"gin-gorm-user-service/internal/domain"
)

// TokenTTL is the fixed validity window of every minted token.
const TokenTTL = time.Hour

type Claims struct {
	Name  string      `json:"name"`
	Email string      `json:"email"`
	Role  domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// Principal converts verified claims into the caller identity used by the access policy.
func (c *Claims) Principal() (domain.Principal, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil || id == 0 {
		return domain.Principal{}, fmt.Errorf("invalid subject %q", c.Subject)
	}
	if !c.Role.Valid() {
		return domain.Principal{}, fmt.Errorf("%w: %q", domain.ErrInvalidRole, c.Role)
	}
	return domain.Principal{UserID: uint(id), Roles: []domain.Role{c.Role}}, nil
}

// JWTer mints and verifies HS256 bearer tokens. It is immutable after construction.
type JWTer struct {
	secret   []byte
	issuer   string
	audience string
	now      func() time.Time
}

func NewJWTer(secret, issuer, audience string) (*JWTer, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: jwt signing key is not set", domain.ErrConfiguration)
	}
	return &JWTer{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: audience,
		now:      time.Now,
	}, nil
}

func (j *JWTer) Mint(u *domain.User) (string, error) {
	if u == nil {
		return "", fmt.Errorf("%w: nil user", domain.ErrConfiguration)
	}
	switch {
	case u.FullName == "":
		return "", fmt.Errorf("%w: user %d has no name", domain.ErrConfiguration, u.ID)
	case u.Email == "":
		return "", fmt.Errorf("%w: user %d has no email", domain.ErrConfiguration, u.ID)
	case !u.Role.Valid():
		return "", fmt.Errorf("%w: user %d has role %q", domain.ErrConfiguration, u.ID, u.Role)
	}

	now := j.now()
	claims := Claims{
		Name:  u.FullName,
		Email: u.Email,
		Role:  u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(u.ID), 10),
			Issuer:    j.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
		},
	}
	if j.audience != "" {
		claims.Audience = jwt.ClaimStrings{j.audience}
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.secret)
}

func (j *JWTer) Parse(tokenStr string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(60 * time.Second),
		jwt.WithTimeFunc(j.now),
	}
	if j.issuer != "" {
		opts = append(opts, jwt.WithIssuer(j.issuer))
	}
	if j.audience != "" {
		opts = append(opts, jwt.WithAudience(j.audience))
	}

	t, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return j.secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if c, ok := t.Claims.(*Claims); ok && t.Valid {
		return c, nil
	}
	return nil, errors.New("invalid token")
}
