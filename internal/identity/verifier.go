package identity

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tutorly/tutorly-backend/internal/httpx"
	"github.com/tutorly/tutorly-backend/internal/policy"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// accessClaims is the shape of the provider's access token payload.
type accessClaims struct {
	Email        string       `json:"email"`
	UserMetadata UserMetadata `json:"user_metadata"`
	jwt.RegisteredClaims
}

// Verifier validates provider-issued access tokens locally, without a
// network round trip per request.
type Verifier struct {
	secret []byte
}

func NewVerifier(jwtSecret string) *Verifier {
	return &Verifier{secret: []byte(jwtSecret)}
}

// VerifyToken parses and validates a bearer token and returns the caller's
// identity. Role tags are converted to typed roles here and nowhere else.
// Roles are carried in the token, re-issued per session, so permissions are
// never cached in-process across requests.
func (v *Verifier) VerifyToken(token string) (Identity, error) {
	parsed, err := jwt.ParseWithClaims(token, &accessClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, httpx.Unauthorized("Token expired")
		}
		return Identity{}, httpx.Unauthorized("Invalid token")
	}

	claims, ok := parsed.Claims.(*accessClaims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return Identity{}, httpx.Unauthorized("Invalid token")
	}

	return Identity{
		UserID: claims.Subject,
		Email:  claims.Email,
		Name:   claims.UserMetadata.Name,
		Roles:  policy.ParseTags(claims.UserMetadata.Role),
	}, nil
}
