package fiber

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	"github.com/gofiber/fiber/v3"

	"github.com/lborres/bantay/core"
)

//go:embed views/*.html
var viewsFS embed.FS

var views = template.Must(template.ParseFS(viewsFS, "views/*.html"))

// page is the data every view receives. User is the signed-in user, if any.
type page struct {
	Title   string
	User    *core.PublicUser
	Error   string
	Profile *core.PublicUser
}

func render(c fiber.Ctx, status int, name string, data page) error {
	var buf bytes.Buffer
	if err := views.ExecuteTemplate(&buf, name+".html", data); err != nil {
		return fmt.Errorf("%w: failed to render %s: %w", core.ErrInternal, name, err)
	}

	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Status(status).Send(buf.Bytes())
}
