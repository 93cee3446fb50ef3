package httpapi

import (
	"github.com/gin-gonic/gin"
)

// action describes how a controller action is guarded and what body it
// takes. input is nil for actions without a body.
type action struct {
	permission permission
	input      func() any
}

// actionTable maps action names to their guard and input.
type actionTable map[string]action

// guard returns the middleware for the named action: permission check,
// then body binding. The bound value is read back with validated[T].
func (t actionTable) guard(name string) gin.HandlerFunc {
	a, ok := t[name]
	if !ok {
		panic("httpapi: unknown action " + name)
	}

	return func(c *gin.Context) {
		if a.permission != nil {
			if err := a.permission(c); err != nil {
				abort(c, err)
				return
			}
		}

		if a.input != nil {
			req := a.input()
			if err := bindJSON(c, req); err != nil {
				abort(c, err)
				return
			}
			c.Set(validatedKey, req)
		}

		c.Next()
	}
}
