package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sonetyo/ledger/internal/domain/ledger"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token has expired")
)

// DefaultIssuer is used when none is configured.
const DefaultIssuer = "sonetyo-ledger"

// Claims carries the ledger identity as the token subject.
type Claims struct {
	jwt.RegisteredClaims
}

// JWTResolver issues and validates HS256 bearer tokens whose subject is a
// ledger identity.
type JWTResolver struct {
	signingKey []byte
	issuer     string
	now        func() time.Time
}

func NewJWTResolver(signingKey, issuer string) *JWTResolver {
	if issuer == "" {
		issuer = DefaultIssuer
	}
	return &JWTResolver{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		now:        time.Now,
	}
}

// Issue signs a token for identity valid for ttl.
func (r *JWTResolver) Issue(identity ledger.Identity, ttl time.Duration) (string, error) {
	if identity.IsZero() {
		return "", ledger.ErrInvalidIdentity
	}
	now := r.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.String(),
			Issuer:    r.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	})
	return token.SignedString(r.signingKey)
}

// ResolveIdentity validates token and returns its subject.
func (r *JWTResolver) ResolveIdentity(_ context.Context, token string) (ledger.Identity, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return r.signingKey, nil
	},
		jwt.WithIssuer(r.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(r.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return "", ErrInvalidToken
	}
	identity, err := ledger.ParseIdentity(claims.Subject)
	if err != nil {
		return "", ErrInvalidToken
	}
	return identity, nil
}
