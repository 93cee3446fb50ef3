package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/dmitrijs2005/apikit/internal/logging"
	"github.com/dmitrijs2005/apikit/internal/server/envelope"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func middlewareEngine() *gin.Engine {
	r := gin.New()
	r.Use(RequestResponse(logging.Discard(), DefaultSkipPrefixes...))
	r.GET("/raw", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"a": 1})
	})
	r.GET("/wrapped", func(c *gin.Context) {
		c.JSON(http.StatusOK, envelope.Success(gin.H{"a": 1}, "ok"))
	})
	r.GET("/failed", func(c *gin.Context) {
		c.JSON(http.StatusConflict, gin.H{"detail": "taken"})
	})
	r.GET("/text", func(c *gin.Context) {
		c.String(http.StatusOK, "plain")
	})
	r.GET("/empty", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	r.GET("/api/docs/schema", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"openapi": "3.0"})
	})
	r.GET("/ctx", func(c *gin.Context) {
		c.String(http.StatusOK, RequestID(c.Request.Context()))
	})
	return r
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestRequestResponse_Headers(t *testing.T) {
	rec := get(middlewareEngine(), "/ctx")

	id := rec.Header().Get(HeaderRequestID)
	_, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, id, rec.Body.String(), "id is propagated through the request context")

	ms, err := strconv.Atoi(rec.Header().Get(HeaderRequestDuration))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, ms, 0)
}

func TestRequestResponse_WrapsRawJSON(t *testing.T) {
	rec := get(middlewareEngine(), "/raw")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"success","code":200,"data":{"a":1}}`, rec.Body.String())
}

func TestRequestResponse_WrapsRawErrors(t *testing.T) {
	rec := get(middlewareEngine(), "/failed")

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"status":"error","code":409,"message":"taken"}`, rec.Body.String())
}

func TestRequestResponse_LeavesEnvelopesAlone(t *testing.T) {
	r := middlewareEngine()
	rec := get(r, "/wrapped")

	assert.JSONEq(t, `{"status":"success","code":200,"data":{"a":1},"message":"ok"}`, rec.Body.String())

	// A second pass over an enveloped body is byte-identical.
	again := envelope.Normalize(rec.Body.Bytes(), rec.Code)
	assert.Equal(t, rec.Body.Bytes(), again)
}

func TestRequestResponse_Passthrough(t *testing.T) {
	r := middlewareEngine()

	rec := get(r, "/text")
	assert.Equal(t, "plain", rec.Body.String())

	rec = get(r, "/api/docs/schema")
	assert.JSONEq(t, `{"openapi":"3.0"}`, rec.Body.String())

	rec = get(r, "/empty")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.Bytes())
	assert.NotEmpty(t, rec.Header().Get(HeaderRequestID))
}

func TestIsJSON(t *testing.T) {
	assert.True(t, isJSON("application/json; charset=utf-8"))
	assert.True(t, isJSON(" Application/JSON"))
	assert.False(t, isJSON("text/plain"))
	assert.False(t, isJSON(""))
}
