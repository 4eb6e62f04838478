// handlers/client.go - Browser routes, not-found handling and the error handler
package handlers

import (
	"path/filepath"
	"strings"

	"studyhub/utils"

	"github.com/gofiber/fiber/v2"
)

// ClientRoutes are the navigation paths the single-page client owns. Each
// one is answered with index.html and routed in the browser.
var ClientRoutes = []string{
	"/",
	"/auth",
	"/course/:id",
	"/lesson/:id",
	"/profile",
	"/practice",
	"/community",
	"/enem",
	"/subjects",
}

func serveFile(path string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendFile(path)
	}
}

// RegisterClientRoutes mounts the client routes and the legacy
// /mathematics alias.
func RegisterClientRoutes(app *fiber.App, staticDir string) {
	index := filepath.Join(staticDir, "index.html")
	for _, route := range ClientRoutes {
		app.Get(route, serveFile(index))
	}
	app.Get("/mathematics", func(c *fiber.Ctx) error {
		return c.Redirect("/subjects", fiber.StatusMovedPermanently)
	})
}

// NotFound is the last handler in the chain. API paths get the JSON error
// envelope; everything else gets index.html with a 404 so the client can
// render its own not-found page.
func NotFound(staticDir string) fiber.Handler {
	index := filepath.Join(staticDir, "index.html")
	return func(c *fiber.Ctx) error {
		path := c.Path()
		if strings.HasPrefix(path, "/api/") || path == "/api" || strings.HasPrefix(path, "/functions/") {
			return utils.JSONError(c, fiber.StatusNotFound, "Route not found")
		}
		c.Status(fiber.StatusNotFound)
		if err := c.SendFile(index); err != nil {
			return utils.JSONError(c, fiber.StatusNotFound, "Page not found")
		}
		return nil
	}
}

// ErrorHandler renders errors that escape handlers. Internal messages are
// hidden in production.
func ErrorHandler(production bool) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "Internal Server Error"

		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
			message = e.Message
		}

		if production && code == fiber.StatusInternalServerError {
			message = "An error occurred. Please try again later."
		}
		return utils.JSONError(c, code, message)
	}
}
