package routes

import (
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/pascaldekloe/metrics"

	"github.com/orbit-hub/orbit/internal/cache"
	"github.com/orbit-hub/orbit/internal/mirror"
	"github.com/orbit-hub/orbit/internal/proxy"
)

// RegisterMirrorRoutes 暴露 /-/mirrors 诊断接口与 /-/metrics 计数导出，供运维查询镜像映射与缓存状态。
func RegisterMirrorRoutes(r fiber.Router, m *proxy.Mirror) {
	if r == nil || m == nil {
		return
	}

	r.Get("/-/mirrors", func(c fiber.Ctx) error {
		return c.JSON(mirrorsPayload{
			Name:       m.Name(),
			Mappings:   m.Mappings(),
			TTLSeconds: int64(m.TTL().Seconds()),
			Strategy:   m.StrategyName(),
			Cache:      m.StoreStats(),
			Stats:      m.Stats(),
		})
	})

	r.Get("/-/mirrors/resolve", func(c fiber.Ctx) error {
		path := strings.TrimSpace(c.Query("path"))
		if path == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "path_required"})
		}
		origin, matched := m.Resolve(path)
		return c.JSON(resolvePayload{Path: path, Origin: origin, Matched: matched})
	})

	r.Get("/-/metrics", adaptor.HTTPHandlerFunc(metrics.ServeHTTP))
}

type mirrorsPayload struct {
	Name       string           `json:"name"`
	Mappings   []mirror.Mapping `json:"mappings"`
	TTLSeconds int64            `json:"ttl_seconds"`
	Strategy   string           `json:"strategy"`
	Cache      cache.StoreStats `json:"cache"`
	Stats      proxy.Stats      `json:"stats"`
}

type resolvePayload struct {
	Path    string `json:"path"`
	Origin  string `json:"origin,omitempty"`
	Matched bool   `json:"matched"`
}
