package httpapi

import (
	"errors"
	"io"
	"net/http"

	"github.com/dmitrijs2005/apikit/internal/common"
	"github.com/dmitrijs2005/apikit/internal/logging"
	"github.com/dmitrijs2005/apikit/internal/server/apierr"
	"github.com/dmitrijs2005/apikit/internal/server/envelope"
	"github.com/gin-gonic/gin"
)

const (
	msgValidation       = "Validation error"
	msgNotFound         = "Resource not found"
	msgPermissionDenied = "Permission denied"
)

// TranslateErrors turns the last error a handler recorded with c.Error
// into an error envelope. Errors it does not recognize become a plain-text
// 500 with no envelope.
func TranslateErrors(l logging.Logger) gin.HandlerFunc {
	logger := l.With("module", "errors")

	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err

		if c.Writer.Written() {
			logger.Warn(c.Request.Context(), "error after response was written", "error", err)
			return
		}

		env, ok := translate(err)
		if !ok {
			logger.Error(c.Request.Context(), "unhandled error",
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"request_id", RequestID(c.Request.Context()),
				"error", err,
			)
			internalError(c)
			return
		}

		c.JSON(env.Code, env)
	}
}

// translate maps err to an envelope. The precedence is validation,
// not found, permission denied, then typed API errors.
func translate(err error) (envelope.Envelope, bool) {
	var verr *apierr.ValidationError
	if errors.As(err, &verr) {
		msg := verr.Detail
		if msg == "" {
			msg = msgValidation
		}
		return envelope.Error(http.StatusBadRequest, msg, verr.Fields), true
	}

	if errors.Is(err, common.ErrorNotFound) {
		return envelope.Error(http.StatusNotFound, msgNotFound, nil), true
	}

	if errors.Is(err, common.ErrorPermissionDenied) {
		return envelope.Error(http.StatusForbidden, msgPermissionDenied, nil), true
	}

	var aerr *apierr.Error
	if errors.As(err, &aerr) {
		var fields any
		if len(aerr.Fields) > 0 {
			m := make(map[string]any, len(aerr.Fields))
			for k, v := range aerr.Fields {
				m[k] = v
			}
			fields = m
		}
		return envelope.Error(aerr.Status, aerr.Detail, fields), true
	}

	return envelope.Envelope{}, false
}

// internalError writes the opaque 500 used for unknown failures and panics.
func internalError(c *gin.Context) {
	c.String(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
}

// Recovery logs a panic and answers with internalError.
func Recovery(l logging.Logger) gin.HandlerFunc {
	logger := l.With("module", "recovery")
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, p any) {
		logger.Error(c.Request.Context(), "panic recovered",
			"path", c.Request.URL.Path,
			"request_id", RequestID(c.Request.Context()),
			"panic", p,
		)
		internalError(c)
		c.Abort()
	})
}
