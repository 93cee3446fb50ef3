package httpapi

import (
	"github.com/gin-gonic/gin"
)

// Capability interfaces a resource controller may implement. resourceRoutes
// mounts only the routes a controller supports.
type (
	Listable interface {
		List(c *gin.Context)
	}
	Retrievable interface {
		Retrieve(c *gin.Context)
	}
	Creatable interface {
		Create(c *gin.Context)
	}
	Updatable interface {
		Update(c *gin.Context)
	}
	Deletable interface {
		Destroy(c *gin.Context)
	}
)

// route is one entry of the routing table.
type route struct {
	method  string
	path    string
	action  string
	handler gin.HandlerFunc
}

// resourceRoutes builds the collection and detail routes of controller,
// with paths relative to the resource group ("/" and "/:id/").
func resourceRoutes(controller any) []route {
	var routes []route
	if r, ok := controller.(Listable); ok {
		routes = append(routes, route{"GET", "/", "list", r.List})
	}
	if r, ok := controller.(Creatable); ok {
		routes = append(routes, route{"POST", "/", "create", r.Create})
	}
	if r, ok := controller.(Retrievable); ok {
		routes = append(routes, route{"GET", "/:id/", "retrieve", r.Retrieve})
	}
	if r, ok := controller.(Updatable); ok {
		routes = append(routes,
			route{"PUT", "/:id/", "update", r.Update},
			route{"PATCH", "/:id/", "partial_update", r.Update},
		)
	}
	if r, ok := controller.(Deletable); ok {
		routes = append(routes, route{"DELETE", "/:id/", "destroy", r.Destroy})
	}
	return routes
}

// mount registers routes on g, each behind its action guard.
func mount(g *gin.RouterGroup, actions actionTable, routes []route) {
	for _, r := range routes {
		g.Handle(r.method, r.path, actions.guard(r.action), r.handler)
	}
}
