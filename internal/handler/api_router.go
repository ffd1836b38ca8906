package handler

import (
	"fmt"
	"headless-cms/internal/middleware"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// Endpoint is a group of API routes mounted under a name.
type Endpoint interface {
	Routes(r chi.Router, wrap func(middleware.AppHandler) http.Handler)
}

type namedEndpoint struct {
	name     string
	endpoint Endpoint
}

// APIRouter is the explicit table of API endpoints, built at startup and
// mounted under a common prefix.
type APIRouter struct {
	prefix    string
	wrap      func(middleware.AppHandler) http.Handler
	endpoints []namedEndpoint
}

// NewAPIRouter creates an empty APIRouter. wrap turns endpoint handlers into
// http.Handlers, normally the Error middleware.
func NewAPIRouter(prefix string, wrap func(middleware.AppHandler) http.Handler) *APIRouter {
	return &APIRouter{prefix: "/" + strings.Trim(prefix, "/"), wrap: wrap}
}

// Register adds an endpoint under name. Names must be unique.
func (a *APIRouter) Register(name string, e Endpoint) error {
	name = strings.Trim(name, "/")
	if name == "" {
		return fmt.Errorf("endpoint name must not be empty")
	}
	for _, ne := range a.endpoints {
		if ne.name == name {
			return fmt.Errorf("endpoint %q is already registered", name)
		}
	}
	a.endpoints = append(a.endpoints, namedEndpoint{name: name, endpoint: e})
	return nil
}

// Path returns the mount path of the named endpoint, with trailing slash.
func (a *APIRouter) Path(name string) string {
	return a.prefix + "/" + strings.Trim(name, "/") + "/"
}

// Names lists the registered endpoints in registration order.
func (a *APIRouter) Names() []string {
	names := make([]string, 0, len(a.endpoints))
	for _, ne := range a.endpoints {
		names = append(names, ne.name)
	}
	return names
}

// Mount attaches every registered endpoint to r.
func (a *APIRouter) Mount(r chi.Router) {
	for _, ne := range a.endpoints {
		sub := chi.NewRouter()
		ne.endpoint.Routes(sub, a.wrap)
		r.Mount(a.prefix+"/"+ne.name, sub)
	}
}
