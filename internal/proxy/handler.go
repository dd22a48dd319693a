package proxy

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/orbit-hub/orbit/internal/logging"
	"github.com/orbit-hub/orbit/internal/server"
)

const (
	headerCacheHit   = "X-Orbit-Cache-Hit"
	assetFailureBody = "Error fetching the asset"
)

// Handler 将 Mirror 暴露为 Fiber handler：命中或回源成功时直接响应，
// NotHandled 时调用 c.Next() 交给静态资源与 404 处理。
type Handler struct {
	mirror *Mirror
	logger *logrus.Logger
}

// NewHandler constructs a mirror handler with a shared logger.
func NewHandler(m *Mirror, logger *logrus.Logger) *Handler {
	return &Handler{
		mirror: m,
		logger: logger,
	}
}

// Handle 实现 server.AssetHandler。
func (h *Handler) Handle(c fiber.Ctx) error {
	method := c.Method()
	if method != http.MethodGet && method != http.MethodHead {
		return c.Next()
	}
	reqPath := c.Path()
	if !h.mirror.Handles(reqPath) {
		return c.Next()
	}

	started := time.Now()
	requestID := server.RequestID(c)
	result := h.mirror.Fetch(c.Context(), reqPath)
	h.logResult(reqPath, requestID, result, started)

	switch result.Outcome {
	case OutcomeServed:
		c.Set(fiber.HeaderContentType, result.ContentType)
		c.Set(headerCacheHit, boolHeader(result.CacheHit))
		return c.Status(fiber.StatusOK).Send(result.Body)
	case OutcomeFailed:
		c.Set(fiber.HeaderContentType, fiber.MIMETextHTML)
		return c.Status(result.Status).SendString(assetFailureBody)
	default:
		return c.Next()
	}
}

func (h *Handler) logResult(reqPath, requestID string, result Result, started time.Time) {
	fields := logging.MirrorFields(reqPath, result.Upstream, result.CacheHit, requestID)
	fields["outcome"] = result.Outcome.String()
	fields["upstream_status"] = result.UpstreamStatus
	fields["shared"] = result.Shared
	fields["elapsed_ms"] = time.Since(started).Milliseconds()

	switch result.Outcome {
	case OutcomeFailed:
		if result.Err != nil {
			fields["error"] = result.Err.Error()
		}
		h.logger.WithFields(fields).Error("mirror_failed")
	case OutcomeServed:
		fields["size"] = logging.Size(len(result.Body))
		h.logger.WithFields(fields).Info("mirror_complete")
	default:
		h.logger.WithFields(fields).Info("mirror_fallthrough")
	}
}

func boolHeader(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
