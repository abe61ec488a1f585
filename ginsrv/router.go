// Package ginsrv builds gin engines from a route table and provides the
// middlewares shared by the HTTP servers.
package ginsrv

import "github.com/gin-gonic/gin"

type Route struct {
	Method  string
	Path    string
	Handler gin.HandlerFunc

	// Middlewares run for this route only, after the router's.
	Middlewares []gin.HandlerFunc
}

// SetupRouter registers middlewares in reverse order: the last one given is
// the outermost.
func SetupRouter(routes []Route, middlewares ...gin.HandlerFunc) *gin.Engine {
	router := gin.New()

	for i := len(middlewares) - 1; i >= 0; i-- {
		router.Use(middlewares[i])
	}

	for _, route := range routes {
		handlers := append(append([]gin.HandlerFunc{}, route.Middlewares...), route.Handler)
		router.Handle(route.Method, route.Path, handlers...)
	}

	return router
}
