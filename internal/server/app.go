package server

import (
	"errors"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/static"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/orbit-hub/orbit/internal/config"
)

// AssetHandler describes the component that serves mirrored asset paths. It
// calls c.Next() for anything it does not serve, so tests can inject fakes.
type AssetHandler interface {
	Handle(fiber.Ctx) error
}

// AssetHandlerFunc adapts a function to the AssetHandler interface.
type AssetHandlerFunc func(fiber.Ctx) error

// Handle makes AssetHandlerFunc satisfy AssetHandler.
func (f AssetHandlerFunc) Handle(c fiber.Ctx) error {
	return f(c)
}

// AppOptions controls how the application half of the gateway behaves.
type AppOptions struct {
	Logger       *logrus.Logger
	Assets       AssetHandler
	StaticDir    string
	NotFoundPage string
	Routes       []config.RouteConfig
	Redirects    []config.RedirectConfig
	AllowOrigins []string
	// Diagnostics mounts /-/ routes ahead of the static tree and the 404 fallback.
	Diagnostics func(fiber.Router)
}

const contextKeyRequestID = "_orbit_request_id"

// NewApp builds the Fiber application that receives all non-tunnel traffic.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Assets == nil {
		return nil, errors.New("asset handler is required")
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
		ErrorHandler:  errorHandler(opts.Logger, opts.NotFoundPage),
	})

	app.Use(recover.New())
	app.Use(requestContextMiddleware())
	if len(opts.AllowOrigins) > 0 {
		app.Use(cors.New(cors.Config{AllowOrigins: opts.AllowOrigins}))
	}

	if opts.Diagnostics != nil {
		opts.Diagnostics(app)
	}

	for _, redirect := range opts.Redirects {
		app.Get(redirect.Path, redirectHandler(redirect, opts.Logger))
	}

	app.Use(fiber.Handler(opts.Assets.Handle))

	if opts.StaticDir != "" {
		app.Use(static.New(opts.StaticDir))
	}

	for _, route := range opts.Routes {
		app.Get(route.Path, pageHandler(opts.StaticDir, route.File))
	}

	app.Use(func(c fiber.Ctx) error {
		return renderPage(c, fiber.StatusNotFound, opts.NotFoundPage)
	})

	return app, nil
}

// requestContextMiddleware 为每个请求生成请求 ID 并回写 X-Request-ID。
func requestContextMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)
		return c.Next()
	}
}

// RequestID returns the request identifier stored by the request middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}

func pageHandler(staticDir, file string) fiber.Handler {
	target := filepath.Join(staticDir, filepath.FromSlash(strings.TrimPrefix(file, "/")))
	return func(c fiber.Ctx) error {
		return c.SendFile(target)
	}
}

func redirectHandler(redirect config.RedirectConfig, logger *logrus.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		target := expandTarget(redirect.Target, c.Route().Params, c.Params)
		logger.WithFields(logrus.Fields{
			"action":     "redirect",
			"path":       c.Path(),
			"target":     target,
			"request_id": RequestID(c),
		}).Debug("redirect")
		return c.Redirect().Status(fiber.StatusFound).To(target)
	}
}

// expandTarget 用路径参数替换模板中的 :name 片段，长参数名优先避免前缀冲突。
func expandTarget(template string, names []string, value func(key string, defaultValue ...string) string) string {
	ordered := append([]string(nil), names...)
	sort.Slice(ordered, func(i, j int) bool {
		return len(ordered[i]) > len(ordered[j])
	})
	for _, name := range ordered {
		if name == "" || name == "*" || name == "+" {
			continue
		}
		template = strings.ReplaceAll(template, ":"+name, url.PathEscape(value(name)))
	}
	return template
}

// renderPage 以给定状态码返回 page 文件；文件缺失时退回纯文本状态描述。
func renderPage(c fiber.Ctx, status int, page string) error {
	c.Status(status)
	if page != "" {
		if info, err := os.Stat(page); err == nil && !info.IsDir() {
			return c.SendFile(page)
		}
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.SendString(http.StatusText(status))
}

func errorHandler(logger *logrus.Logger, page string) fiber.ErrorHandler {
	return func(c fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			status = fiberErr.Code
		}

		fields := logrus.Fields{
			"action": "request_error",
			"path":   c.Path(),
			"status": status,
		}
		if reqID := RequestID(c); reqID != "" {
			fields["request_id"] = reqID
		}
		entry := logger.WithFields(fields).WithError(err)
		if status >= fiber.StatusInternalServerError {
			entry.Error("request_failed")
		} else {
			entry.Warn("request_rejected")
		}

		if status == fiber.StatusNotFound || status >= fiber.StatusInternalServerError {
			return renderPage(c, status, page)
		}
		return c.Status(status).SendString(err.Error())
	}
}
