package core

import "context"

// EndpointProvider provides a list of endpoints to register dynamically
type EndpointProvider interface {
	GetEndpoints() []Endpoint
}

type Endpoint struct {
	Path     string
	Method   string
	Handler  func(ctx *RequestContext) error
	Metadata EndpointMetadata
}

type EndpointMetadata struct {
	OperationID string
	Description string
	// RequiresSession routes are refused for anonymous requests before the
	// handler runs.
	RequiresSession bool
}

// RequestContext is built once per request by the HTTP adapter and handed
// to the endpoint handler. Session is nil for anonymous requests.
type RequestContext struct {
	// Framework-agnostic context
	Request any // could be *http.Request, fiber.Ctx, etc
	Context context.Context
	Session *SessionData
}

// ErrorResponse represents an error response structure
type ErrorResponse struct {
	Error string `json:"error"`
}
