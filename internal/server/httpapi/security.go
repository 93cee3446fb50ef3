package httpapi

import (
	"net"
	"net/http"
	"slices"
	"strings"

	"github.com/dmitrijs2005/apikit/internal/server/apierr"
	"github.com/gin-gonic/gin"
)

// AllowedHosts rejects requests whose Host header matches none of hosts.
// "*" matches anything and a leading dot matches a domain and its
// subdomains.
func AllowedHosts(hosts []string) gin.HandlerFunc {
	patterns := make([]string, 0, len(hosts))
	for _, h := range hosts {
		patterns = append(patterns, strings.ToLower(strings.TrimSpace(h)))
	}

	return func(c *gin.Context) {
		host := requestHost(c.Request)
		if hostAllowed(host, patterns) {
			c.Next()
			return
		}
		c.Error(apierr.BadRequest("Invalid HTTP_HOST header: '" + c.Request.Host + "'."))
		c.Abort()
	}
}

func requestHost(r *http.Request) string {
	host := r.Host
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
		if strings.Contains(host, ":") {
			host = "[" + host + "]"
		}
	}
	return strings.ToLower(host)
}

func hostAllowed(host string, patterns []string) bool {
	for _, p := range patterns {
		switch {
		case p == "*":
			return true
		case strings.HasPrefix(p, "."):
			if host == p[1:] || strings.HasSuffix(host, p) {
				return true
			}
		case host == p:
			return true
		}
	}
	return false
}

const (
	corsAllowMethods = "DELETE, GET, OPTIONS, PATCH, POST, PUT"
	corsAllowHeaders = "Accept, Accept-Encoding, Authorization, Content-Type, Origin, User-Agent, X-CSRFToken, X-Requested-With"
	corsMaxAge       = "86400"
)

// CORS answers preflight requests and decorates responses for allowed
// origins. Requests from other origins pass through without CORS headers,
// so the browser blocks them. "*" allows every origin.
func CORS(origins []string) gin.HandlerFunc {
	allowAll := slices.Contains(origins, "*")

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" {
			c.Next()
			return
		}

		h := c.Writer.Header()
		h.Add("Vary", "Origin")

		if !allowAll && !slices.Contains(origins, origin) {
			c.Next()
			return
		}

		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Credentials", "true")

		if c.Request.Method == http.MethodOptions && c.GetHeader("Access-Control-Request-Method") != "" {
			h.Set("Access-Control-Allow-Methods", corsAllowMethods)
			h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
			h.Set("Access-Control-Max-Age", corsMaxAge)
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	}
}
