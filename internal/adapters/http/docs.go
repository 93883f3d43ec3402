package http

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/gofiber/fiber/v2"
)

const swaggerUIHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>SchoolMaps Proximity API</title>
  <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({url: '/docs/openapi.json', dom_id: '#swagger-ui', deepLinking: true});
  </script>
</body>
</html>`

// loadAPIDoc reads and validates the OpenAPI document at path.
func loadAPIDoc(path string) (raw, asJSON []byte, err error) {
	raw, err = os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	loader := &openapi3.Loader{IsExternalRefsAllowed: false}
	doc, err := loader.LoadFromData(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, nil, fmt.Errorf("validate %s: %w", path, err)
	}
	asJSON, err = doc.MarshalJSON()
	if err != nil {
		return nil, nil, err
	}
	return raw, asJSON, nil
}

// SetupDocs serves Swagger UI at /docs and the OpenAPI document at
// /docs/openapi.yaml and /docs/openapi.json. The document is loaded once;
// if it is missing or invalid the routes answer 404.
func SetupDocs(app *fiber.App, specPath string) {
	raw, asJSON, err := loadAPIDoc(specPath)
	if err != nil {
		slog.Warn("api docs disabled", "path", specPath, "error", err)
	}

	serve := func(data []byte, contentType string) fiber.Handler {
		return func(c *fiber.Ctx) error {
			if data == nil {
				return errNotFound(c, "api documentation not available")
			}
			c.Set(fiber.HeaderContentType, contentType)
			return c.Send(data)
		}
	}

	app.Get("/docs", serve([]byte(swaggerUIHTML), fiber.MIMETextHTMLCharsetUTF8))
	app.Get("/docs/openapi.yaml", serve(raw, "application/yaml"))
	app.Get("/docs/openapi.json", serve(asJSON, fiber.MIMEApplicationJSON))
}
