package httpapi

import (
	"context"
	"net/http"

	"github.com/dmitrijs2005/apikit/internal/server/apierr"
	"github.com/dmitrijs2005/apikit/internal/server/envelope"
	"github.com/gin-gonic/gin"
)

// APIInfo is the body of the API root.
type APIInfo struct {
	Name        string            `json:"name"`
	Version     string            `json:"version"`
	Description string            `json:"description"`
	Endpoints   map[string]string `json:"endpoints"`
}

var apiInfo = APIInfo{
	Name:        "apikit API",
	Version:     "1.0.0",
	Description: "A reusable REST API backend scaffold with JWT authentication and user management.",
	Endpoints: map[string]string{
		"users": "/api/v1/users/",
		"auth":  "/api/v1/auth/",
		"docs":  "/api/docs/",
	},
}

func apiRoot(c *gin.Context) {
	c.JSON(http.StatusOK, envelope.Success(apiInfo, ""))
}

// Pinger reports database reachability. *sql.DB implements it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

func healthz(p Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := p.PingContext(c.Request.Context()); err != nil {
			c.Error(apierr.New(http.StatusServiceUnavailable, "Database unavailable"))
			return
		}
		c.JSON(http.StatusOK, envelope.Success(gin.H{"database": "ok"}, ""))
	}
}
