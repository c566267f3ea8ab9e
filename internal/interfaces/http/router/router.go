package router

import (
	"github.com/gin-gonic/gin"
)

// access is the role gate in front of a route
type access int

const (
	open access = iota
	readOnly
	operatorOnly
)

// route is one entry of a route table
type route struct {
	method string
	path   string
	access access
	handle gin.HandlerFunc
}

// table is a set of routes sharing a path prefix
type table struct {
	prefix string
	routes []route
}

// gates maps each access level to the middleware enforcing it
type gates map[access]gin.HandlerFunc

// mount registers every route of t under parent, putting the route's gate
// in front of its handler
func (g gates) mount(parent *gin.RouterGroup, t table) {
	group := parent.Group(t.prefix)
	for _, r := range t.routes {
		handlers := make([]gin.HandlerFunc, 0, 2)
		if gate := g[r.access]; gate != nil {
			handlers = append(handlers, gate)
		}
		group.Handle(r.method, r.path, append(handlers, r.handle)...)
	}
}
