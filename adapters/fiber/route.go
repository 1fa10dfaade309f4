// Package fiber serves the account pages over Fiber: HTML forms, a session
// cookie and the uploaded pictures.
package fiber

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/static"

	"github.com/lborres/bantay/core"
	"github.com/lborres/bantay/internal/logging"
	"github.com/lborres/bantay/services"
)

const (
	CookieName          = "bantay_session"
	DefaultCookieMaxAge = 24 * time.Hour
)

type Config struct {
	// CookieMaxAge should match the session lifetime.
	CookieMaxAge time.Duration
	CookieSecure bool

	// UploadDir is served under UploadURLPrefix. Leave empty when pictures
	// live elsewhere, e.g. in S3.
	UploadDir       string
	UploadURLPrefix string

	Logger logging.Logger
}

type Adapter struct {
	app    *fiber.App
	config Config
	log    logging.Logger
}

var _ core.HTTPAdapter = (*Adapter)(nil)

func New(app *fiber.App, config Config) *Adapter {
	if config.CookieMaxAge <= 0 {
		config.CookieMaxAge = DefaultCookieMaxAge
	}
	if config.UploadURLPrefix == "" {
		config.UploadURLPrefix = "/uploads"
	}
	log := config.Logger
	if log == nil {
		log = logging.Nop()
	}
	return &Adapter{app: app, config: config, log: log.With("component", "http")}
}

// RegisterRoutes mounts every base endpoint. A route marked RequiresSession
// is refused for anonymous requests before its handler runs.
func (a *Adapter) RegisterRoutes(auth core.AuthProvider, profiles core.ProfileProvider) error {
	a.app.Use(recover.New())

	if a.config.UploadDir != "" {
		prefix := "/" + strings.Trim(a.config.UploadURLPrefix, "/")
		a.app.Use(prefix, static.New(a.config.UploadDir))
	}

	handlers := a.handlers(auth, profiles)
	for _, ep := range services.NewEndpointRegistry().Endpoints() {
		h, ok := handlers[ep.Metadata.OperationID]
		if !ok {
			return fmt.Errorf("no handler for %s %s (%s)", ep.Method, ep.Path, ep.Metadata.OperationID)
		}
		ep.Handler = h
		a.app.Add([]string{ep.Method}, ep.Path, a.loadSession(auth), a.endpoint(ep))
	}

	return nil
}

func (a *Adapter) handlers(auth core.AuthProvider, profiles core.ProfileProvider) map[string]func(*core.RequestContext) error {
	return map[string]func(*core.RequestContext) error{
		services.OpHome:          a.handleHome,
		services.OpDashboard:     a.handleDashboard,
		services.OpRegisterForm:  a.handleRegisterForm,
		services.OpRegister:      a.handleRegister(auth),
		services.OpLoginForm:     a.handleLoginForm,
		services.OpLogin:         a.handleLogin(auth),
		services.OpLogout:        a.handleLogout(auth),
		services.OpProfile:       a.handleProfile(profiles),
		services.OpUploadPicture: a.handleUploadPicture(profiles),
		services.OpEditProfile:   a.handleEditProfile(profiles),
		services.OpDeleteProfile: a.handleDeleteProfile(profiles),
	}
}
