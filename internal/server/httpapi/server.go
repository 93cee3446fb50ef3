// Package httpapi is the REST layer: the gin engine, its middleware chain
// and the auth and users controllers.
package httpapi

import (
	"github.com/dmitrijs2005/apikit/internal/logging"
	"github.com/dmitrijs2005/apikit/internal/server/apierr"
	"github.com/gin-gonic/gin"
)

// APIPrefix is where every versioned route is mounted.
const APIPrefix = "/api/v1"

// Options wires the router. Limiter may be nil, which disables throttling.
type Options struct {
	Logger       logging.Logger
	Auth         AuthServicer
	Users        UserServicer
	DB           Pinger
	Limiter      RateLimiter
	AllowedHosts []string
	CORSOrigins  []string

	// Global applies to every route, Sensitive additionally to the
	// credential endpoints.
	Global    ThrottlePolicy
	Sensitive ThrottlePolicy
}

// NewRouter builds the engine. The order of the chain matters: errors
// raised by host checks, authentication and throttling must pass through
// TranslateErrors, and every body through RequestResponse.
func NewRouter(o Options) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	_ = r.SetTrustedProxies(nil)

	r.Use(
		RequestResponse(o.Logger, DefaultSkipPrefixes...),
		Recovery(o.Logger),
		CORS(o.CORSOrigins),
		TranslateErrors(o.Logger),
		AllowedHosts(o.AllowedHosts),
		Authenticate(o.Auth),
		Throttle(o.Limiter, o.Global, o.Logger),
	)

	r.NoRoute(func(c *gin.Context) {
		c.Error(apierr.NotFound("Not found."))
	})
	r.NoMethod(func(c *gin.Context) {
		c.Error(apierr.MethodNotAllowed(c.Request.Method))
	})

	r.GET("/healthz", healthz(o.DB))

	api := r.Group(APIPrefix)
	api.GET("/", apiRoot)

	sensitive := Throttle(o.Limiter, o.Sensitive, o.Logger)
	ah := NewAuthHandler(o.Auth)
	authGroup := api.Group("/auth")
	for _, rt := range ah.routes() {
		handlers := []gin.HandlerFunc{authActions.guard(rt.action), rt.handler}
		if sensitiveAuthActions[rt.action] {
			handlers = append([]gin.HandlerFunc{sensitive}, handlers...)
		}
		authGroup.Handle(rt.method, rt.path, handlers...)
	}

	uc := NewUsersController(o.Users)
	mount(api.Group("/users"), userActions, uc.routes())

	return r
}
