package middleware

import (
	"errors"
	"fmt"
	"time"

	users "github.com/AdamBeresnev/bracket-engine/internal/user"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

// Claims are issued by the external auth service. The subject is the user id.
type Claims struct {
	Name string     `json:"name"`
	Role users.Role `json:"role"`
	jwt.RegisteredClaims
}

type TokenVerifier struct {
	secret []byte
}

func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret)}
}

func (v *TokenVerifier) Verify(tokenString string) (*Claims, uuid.UUID, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("invalid token: %w", err)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, uuid.Nil, errors.New("invalid token: subject is not a user id")
	}
	if claims.Role == "" {
		claims.Role = users.RolePlayer
	}
	return claims, userID, nil
}

// Issue signs a token the same way the auth service does. Used by local
// tooling and tests.
func (v *TokenVerifier) Issue(userID uuid.UUID, name string, role users.Role, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Name: name,
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
