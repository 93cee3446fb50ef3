package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/apikit/internal/common"
	"github.com/dmitrijs2005/apikit/internal/server/apierr"
	"github.com/dmitrijs2005/apikit/internal/server/models"
	"github.com/gin-gonic/gin"
)

// TokenAuthenticator resolves bearer tokens. *services.AuthService implements it.
type TokenAuthenticator interface {
	UserFromAccessToken(ctx context.Context, token string) (*models.User, error)
}

const bearerPrefix = "Bearer"

// Authenticate attaches the caller to the context when the request carries
// a bearer token. Requests without one stay anonymous; a bad token fails
// the request even on public endpoints.
func Authenticate(a TokenAuthenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}

		parts := strings.Fields(header)
		if len(parts) == 0 || parts[0] != bearerPrefix {
			c.Next()
			return
		}
		if len(parts) != 2 {
			abort(c, apierr.AuthenticationFailed("Authorization header must contain two space-delimited values"))
			return
		}

		user, err := a.UserFromAccessToken(c.Request.Context(), parts[1])
		if err != nil {
			abort(c, authError(err))
			return
		}

		c.Set(userKey, user)
		c.Next()
	}
}

func authError(err error) error {
	switch {
	case errors.Is(err, common.ErrInactiveUser):
		return apierr.New(http.StatusUnauthorized, "User is inactive").With("code", "user_inactive")
	case errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired),
		errors.Is(err, common.ErrWrongTokenType):
		return apierr.InvalidToken("Given token not valid for any token type")
	default:
		return err
	}
}

// permission guards an action. It returns nil to let the request through.
type permission func(c *gin.Context) error

func allowAny(*gin.Context) error { return nil }

func isAuthenticated(c *gin.Context) error {
	if currentUser(c) == nil {
		return apierr.NotAuthenticated()
	}
	return nil
}

func abort(c *gin.Context, err error) {
	c.Error(err)
	c.Abort()
}
