package httpapi

import (
	"context"

	"github.com/dmitrijs2005/apikit/internal/server/models"
	"github.com/gin-gonic/gin"
)

const (
	requestIDKey = "request_id"
	userKey      = "user"
	validatedKey = "validatedData"
)

type ctxKey struct{ name string }

var requestIDCtxKey = ctxKey{"request_id"}

// RequestID returns the correlation id stored by RequestResponse.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDCtxKey).(string)
	return id
}

func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDCtxKey, id)
}

// currentUser is the authenticated caller or nil for anonymous requests.
func currentUser(c *gin.Context) *models.User {
	v, ok := c.Get(userKey)
	if !ok {
		return nil
	}
	u, _ := v.(*models.User)
	return u
}

// validated returns the request body bound by the action middleware.
func validated[T any](c *gin.Context) T {
	v, _ := c.Get(validatedKey)
	t, _ := v.(T)
	return t
}
