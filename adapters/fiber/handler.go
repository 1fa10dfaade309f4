package fiber

import (
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/lborres/bantay/core"
)

func fiberCtx(ctx *core.RequestContext) fiber.Ctx {
	return ctx.Request.(fiber.Ctx)
}

func currentUser(ctx *core.RequestContext) *core.PublicUser {
	if ctx.Session == nil {
		return nil
	}
	return ctx.Session.User
}

// pictureField is the multipart field carrying a profile picture.
const pictureField = "profilePicture"

// formValue copies the value out of the request buffer, which fasthttp
// reuses once the handler returns.
func formValue(c fiber.Ctx, key string) string {
	return strings.Clone(c.FormValue(key))
}

// formFile returns the uploaded file for field, or nil when none was sent.
func formFile(c fiber.Ctx, field string) *multipart.FileHeader {
	file, err := c.FormFile(field)
	if err != nil {
		return nil
	}
	return file
}

func (a *Adapter) handleHome(ctx *core.RequestContext) error {
	return render(fiberCtx(ctx), http.StatusOK, "home", page{Title: "Home", User: currentUser(ctx)})
}

func (a *Adapter) handleDashboard(ctx *core.RequestContext) error {
	return render(fiberCtx(ctx), http.StatusOK, "dashboard", page{Title: "Dashboard", User: currentUser(ctx)})
}

func (a *Adapter) handleRegisterForm(ctx *core.RequestContext) error {
	return render(fiberCtx(ctx), http.StatusOK, "register", page{Title: "Register", User: currentUser(ctx)})
}

func (a *Adapter) handleLoginForm(ctx *core.RequestContext) error {
	return render(fiberCtx(ctx), http.StatusOK, "login", page{Title: "Login", User: currentUser(ctx)})
}

// handleRegister creates the account and sends the user to the login form.
// Input problems re-render the form with the message.
func (a *Adapter) handleRegister(auth core.AuthProvider) func(*core.RequestContext) error {
	return func(ctx *core.RequestContext) error {
		c := fiberCtx(ctx)

		input := core.RegisterInput{
			Username: formValue(c, "username"),
			Email:    formValue(c, "email"),
			Password: formValue(c, "password"),
			Picture:  formFile(c, pictureField),
		}

		if _, err := auth.Register(ctx.Context, input); err != nil {
			if isFormError(err) {
				return render(c, http.StatusOK, "register", page{Title: "Register", Error: userMessage(err)})
			}
			a.logFailure(c, err)
			return render(c, http.StatusInternalServerError, "register", page{Title: "Register", Error: serverErrorMessage})
		}

		return c.Redirect().To("/login")
	}
}

// handleLogin sets the session cookie on success. Bad credentials and
// throttled attempts re-render the form.
func (a *Adapter) handleLogin(auth core.AuthProvider) func(*core.RequestContext) error {
	return func(ctx *core.RequestContext) error {
		c := fiberCtx(ctx)

		result, err := auth.Login(ctx.Context, core.LoginInput{
			Email:     formValue(c, "email"),
			Password:  formValue(c, "password"),
			IPAddress: strings.Clone(c.IP()),
			UserAgent: strings.Clone(c.Get(fiber.HeaderUserAgent)),
		})
		if err != nil {
			if isFormError(err) {
				return render(c, http.StatusOK, "login", page{Title: "Login", Error: userMessage(err)})
			}
			a.logFailure(c, err)
			return render(c, http.StatusInternalServerError, "login", page{Title: "Login", Error: serverErrorMessage})
		}

		a.setSessionCookie(c, result.Token)
		return c.Redirect().To("/dashboard")
	}
}

func (a *Adapter) handleLogout(auth core.AuthProvider) func(*core.RequestContext) error {
	return func(ctx *core.RequestContext) error {
		c := fiberCtx(ctx)

		if err := auth.Logout(ctx.Context, extractToken(c)); err != nil {
			return err
		}

		a.clearSessionCookie(c)
		return c.Redirect().To("/login")
	}
}

func (a *Adapter) handleProfile(profiles core.ProfileProvider) func(*core.RequestContext) error {
	return func(ctx *core.RequestContext) error {
		profile, err := profiles.GetProfile(ctx.Context, ctx.Session)
		if err != nil {
			return err
		}
		return render(fiberCtx(ctx), http.StatusOK, "profile", page{
			Title:   "Profile",
			User:    currentUser(ctx),
			Profile: profile,
		})
	}
}

func (a *Adapter) handleUploadPicture(profiles core.ProfileProvider) func(*core.RequestContext) error {
	return func(ctx *core.RequestContext) error {
		c := fiberCtx(ctx)

		if _, err := profiles.ReplacePicture(ctx.Context, ctx.Session, formFile(c, pictureField)); err != nil {
			return err
		}
		return c.Redirect().To("/profile")
	}
}

func (a *Adapter) handleEditProfile(profiles core.ProfileProvider) func(*core.RequestContext) error {
	return func(ctx *core.RequestContext) error {
		c := fiberCtx(ctx)

		_, err := profiles.UpdateProfile(ctx.Context, ctx.Session, core.UpdateProfileInput{
			Username: formValue(c, "username"),
			Email:    formValue(c, "email"),
			Picture:  formFile(c, pictureField),
		})
		if err != nil {
			return err
		}
		return c.Redirect().To("/profile")
	}
}

func (a *Adapter) handleDeleteProfile(profiles core.ProfileProvider) func(*core.RequestContext) error {
	return func(ctx *core.RequestContext) error {
		c := fiberCtx(ctx)

		if err := profiles.DeleteProfile(ctx.Context, ctx.Session); err != nil {
			return err
		}

		a.clearSessionCookie(c)
		return c.Redirect().To("/register")
	}
}

func (a *Adapter) setSessionCookie(c fiber.Ctx, token string) {
	c.Cookie(&fiber.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(a.config.CookieMaxAge.Seconds()),
		HTTPOnly: true,
		Secure:   a.config.CookieSecure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func (a *Adapter) clearSessionCookie(c fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   a.config.CookieSecure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}
