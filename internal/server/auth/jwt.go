// Package auth issues and verifies the HS256 access/refresh JWTs and the
// one-time tokens embedded in password reset and email verification links.
package auth

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/apikit/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Claims holds the registered claims (exp, iat, jti) plus the token type
// and the owning user.
type Claims struct {
	jwt.RegisteredClaims
	TokenType string `json:"token_type"`
	UserID    string `json:"user_id"`
}

// IssuedToken is a signed token together with the claims callers need to
// record it.
type IssuedToken struct {
	Token     string
	JTI       string
	ExpiresAt time.Time
}

// now is a seam for tests.
var now = time.Now

// GenerateToken signs a token of the given type for userID, valid for validityDuration.
func GenerateToken(tokenType, userID string, secretKey []byte, validityDuration time.Duration) (*IssuedToken, error) {
	issuedAt := now()
	expiresAt := issuedAt.Add(validityDuration)
	jti := uuid.NewString()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		TokenType: tokenType,
		UserID:    userID,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return nil, err
	}

	return &IssuedToken{Token: tokenString, JTI: jti, ExpiresAt: expiresAt}, nil
}

// ParseToken verifies signature, expiry and type. It returns
// common.ErrTokenExpired, common.ErrWrongTokenType or common.ErrInvalidToken.
func ParseToken(tokenString string, secretKey []byte, expectedType string) (*Claims, error) {
	claims, err := ParseUntyped(tokenString, secretKey)
	if err != nil {
		return nil, err
	}

	if claims.TokenType != expectedType {
		return nil, common.ErrWrongTokenType
	}

	return claims, nil
}

// ParseUntyped verifies signature and expiry of either token type.
func ParseUntyped(tokenString string, secretKey []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}

	if !token.Valid || claims.UserID == "" || claims.ID == "" {
		return nil, common.ErrInvalidToken
	}

	switch claims.TokenType {
	case TokenTypeAccess, TokenTypeRefresh:
	default:
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}

// GetUserIDFromToken returns the user id of a valid access token.
func GetUserIDFromToken(tokenString string, secretKey []byte) (string, error) {
	claims, err := ParseToken(tokenString, secretKey, TokenTypeAccess)
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}
