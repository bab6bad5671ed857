package app

import (
	"github.com/gorilla/mux"
)

// Option configures the environment run by Run().
type Option func(o *opts)

type opts struct {
	configPath string
	middleware []mux.MiddlewareFunc
}

// WithConfigPath loads config from path instead of the -config flag, for
// callers that own flag parsing.
func WithConfigPath(path string) Option {
	return func(o *opts) {
		o.configPath = path
	}
}

// WithMiddleware wraps the app's HTTP handler with the provided middleware.
//
// Middleware is evaluated in addition order, and runs before the app's own
// handler.
func WithMiddleware(middleware mux.MiddlewareFunc) Option {
	return func(o *opts) {
		o.middleware = append(o.middleware, middleware)
	}
}
