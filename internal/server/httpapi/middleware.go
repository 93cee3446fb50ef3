package httpapi

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/apikit/internal/logging"
	"github.com/dmitrijs2005/apikit/internal/server/envelope"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	HeaderRequestID       = "X-Request-ID"
	HeaderRequestDuration = "X-Request-Duration"
)

// DefaultSkipPrefixes are paths whose JSON responses are never enveloped.
var DefaultSkipPrefixes = []string{"/admin/", "/api/docs/"}

// bufferedWriter holds the downstream response so it can be rewritten
// before anything reaches the client.
type bufferedWriter struct {
	gin.ResponseWriter
	body    bytes.Buffer
	status  int
	written bool
}

func newBufferedWriter(w gin.ResponseWriter) *bufferedWriter {
	return &bufferedWriter{ResponseWriter: w, status: http.StatusOK}
}

func (w *bufferedWriter) WriteHeader(code int) {
	if code > 0 && !w.written {
		w.status = code
	}
}

func (w *bufferedWriter) WriteHeaderNow() {
	w.written = true
}

func (w *bufferedWriter) Write(b []byte) (int, error) {
	w.written = true
	return w.body.Write(b)
}

func (w *bufferedWriter) WriteString(s string) (int, error) {
	w.written = true
	return w.body.WriteString(s)
}

func (w *bufferedWriter) Status() int { return w.status }

func (w *bufferedWriter) Size() int {
	if !w.written {
		return -1
	}
	return w.body.Len()
}

func (w *bufferedWriter) Written() bool { return w.written }

// Flush is a no-op: the body is released once the chain returns.
func (w *bufferedWriter) Flush() {}

// RequestResponse tags each request with a correlation id, logs it, and
// normalizes JSON response bodies into envelopes, except below skipPrefixes.
func RequestResponse(l logging.Logger, skipPrefixes ...string) gin.HandlerFunc {
	logger := l.With("module", "http")

	return func(c *gin.Context) {
		start := time.Now()
		id := uuid.NewString()

		c.Set(requestIDKey, id)
		c.Request = c.Request.WithContext(withRequestID(c.Request.Context(), id))
		ctx := c.Request.Context()

		method, path := c.Request.Method, c.Request.URL.Path
		logger.Info(ctx, "request", "method", method, "path", path, "request_id", id)

		orig := c.Writer
		bw := newBufferedWriter(orig)
		c.Writer = bw

		c.Next()

		c.Writer = orig

		duration := time.Since(start).Milliseconds()
		h := orig.Header()
		h.Set(HeaderRequestID, id)
		h.Set(HeaderRequestDuration, strconv.FormatInt(duration, 10))

		body := bw.body.Bytes()
		if isJSON(h.Get("Content-Type")) && !skipped(path, skipPrefixes) {
			body = envelope.Normalize(body, bw.status)
			if h.Get("Content-Length") != "" {
				h.Set("Content-Length", strconv.Itoa(len(body)))
			}
		}

		logger.Info(ctx, "response",
			"method", method,
			"path", path,
			"request_id", id,
			"status", bw.status,
			"duration_ms", duration,
		)

		orig.WriteHeader(bw.status)
		if len(body) > 0 {
			if _, err := orig.Write(body); err != nil {
				logger.Warn(ctx, "error writing response", "request_id", id, "error", err)
			}
		} else {
			orig.WriteHeaderNow()
		}
	}
}

func isJSON(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "application/json")
}

func skipped(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
