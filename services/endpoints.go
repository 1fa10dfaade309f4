package services

import (
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/lborres/bantay/core"
)

// Operation IDs shared by the route table and the HTTP adapters.
const (
	OpHome          = "home"
	OpDashboard     = "dashboard"
	OpRegisterForm  = "registerForm"
	OpRegister      = "register"
	OpLoginForm     = "loginForm"
	OpLogin         = "login"
	OpLogout        = "logout"
	OpProfile       = "getProfile"
	OpUploadPicture = "uploadProfilePicture"
	OpEditProfile   = "editProfile"
	OpDeleteProfile = "deleteProfile"
)

// BaseEndpoints returns the framework-agnostic route table. Handlers are nil;
// each HTTP adapter supplies its own by OperationID.
func BaseEndpoints() []core.Endpoint {
	return []core.Endpoint{
		{
			Path:   "/",
			Method: http.MethodGet,
			Metadata: core.EndpointMetadata{
				OperationID: OpHome,
				Description: "Home page",
			},
		},
		{
			Path:   "/dashboard",
			Method: http.MethodGet,
			Metadata: core.EndpointMetadata{
				OperationID:     OpDashboard,
				Description:     "Landing page after login",
				RequiresSession: true,
			},
		},
		{
			Path:   "/register",
			Method: http.MethodGet,
			Metadata: core.EndpointMetadata{
				OperationID: OpRegisterForm,
				Description: "Render the registration form",
			},
		},
		{
			Path:   "/register",
			Method: http.MethodPost,
			Metadata: core.EndpointMetadata{
				OperationID: OpRegister,
				Description: "Create an account from username, email, password and optional picture",
			},
		},
		{
			Path:   "/login",
			Method: http.MethodGet,
			Metadata: core.EndpointMetadata{
				OperationID: OpLoginForm,
				Description: "Render the login form",
			},
		},
		{
			Path:   "/login",
			Method: http.MethodPost,
			Metadata: core.EndpointMetadata{
				OperationID: OpLogin,
				Description: "Authenticate with email and password and start a session",
			},
		},
		{
			Path:   "/logout",
			Method: http.MethodGet,
			Metadata: core.EndpointMetadata{
				OperationID: OpLogout,
				Description: "Destroy the current session",
			},
		},
		{
			Path:   "/profile",
			Method: http.MethodGet,
			Metadata: core.EndpointMetadata{
				OperationID:     OpProfile,
				Description:     "Show the signed-in user's profile",
				RequiresSession: true,
			},
		},
		{
			Path:   "/upload-profile",
			Method: http.MethodPost,
			Metadata: core.EndpointMetadata{
				OperationID:     OpUploadPicture,
				Description:     "Replace the profile picture",
				RequiresSession: true,
			},
		},
		{
			Path:   "/profile/edit",
			Method: http.MethodPost,
			Metadata: core.EndpointMetadata{
				OperationID:     OpEditProfile,
				Description:     "Partially update username, email and picture",
				RequiresSession: true,
			},
		},
		{
			Path:   "/profile/delete",
			Method: http.MethodPost,
			Metadata: core.EndpointMetadata{
				OperationID:     OpDeleteProfile,
				Description:     "Delete the account and all of its sessions",
				RequiresSession: true,
			},
		},
	}
}

// EndpointRegistry holds endpoints keyed by "METHOD:PATH" and refuses
// duplicates.
type EndpointRegistry struct {
	endpoints map[string]*core.Endpoint
}

// NewEndpointRegistry returns a registry preloaded with BaseEndpoints.
func NewEndpointRegistry() *EndpointRegistry {
	reg := &EndpointRegistry{
		endpoints: make(map[string]*core.Endpoint),
	}
	// the base table has no duplicates
	_ = reg.Extend(BaseEndpoints())
	return reg
}

func endpointKey(method, path string) string {
	return strings.ToUpper(method) + ":" + path
}

// Extend registers additional endpoints. Nothing is registered if any of
// them conflicts with an existing endpoint or with another in the batch.
func (r *EndpointRegistry) Extend(endpoints []core.Endpoint) error {
	seen := make(map[string]bool, len(endpoints))
	for i := range endpoints {
		ep := &endpoints[i]
		key := endpointKey(ep.Method, ep.Path)

		if _, exists := r.endpoints[key]; exists {
			return fmt.Errorf("endpoint conflict: %s %s already registered", ep.Method, ep.Path)
		}
		if seen[key] {
			return fmt.Errorf("duplicate endpoint: %s %s", ep.Method, ep.Path)
		}
		seen[key] = true
	}

	for i := range endpoints {
		ep := endpoints[i]
		r.endpoints[endpointKey(ep.Method, ep.Path)] = &ep
	}
	return nil
}

// Lookup returns the endpoint for method and path, if registered.
func (r *EndpointRegistry) Lookup(method, path string) (*core.Endpoint, bool) {
	ep, ok := r.endpoints[endpointKey(method, path)]
	return ep, ok
}

// Endpoints returns all registered endpoints ordered by path, then method.
func (r *EndpointRegistry) Endpoints() []*core.Endpoint {
	result := make([]*core.Endpoint, 0, len(r.endpoints))
	for _, ep := range r.endpoints {
		result = append(result, ep)
	}
	slices.SortFunc(result, func(a, b *core.Endpoint) int {
		if c := strings.Compare(a.Path, b.Path); c != 0 {
			return c
		}
		return strings.Compare(a.Method, b.Method)
	})
	return result
}
