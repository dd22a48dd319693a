package server

import (
	"bytes"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"

	"github.com/orbit-hub/orbit/internal/config"
)

func TestAppServesAssetAndSetsRequestID(t *testing.T) {
	app := newTestApp(t, AppOptions{
		Assets: AssetHandlerFunc(func(c fiber.Ctx) error {
			if c.Path() != "/e/1/foo.png" {
				return c.Next()
			}
			if RequestID(c) == "" {
				t.Errorf("asset handler 应能读取请求 ID")
			}
			c.Set(fiber.HeaderContentType, "image/png")
			return c.Status(fiber.StatusOK).Send([]byte("png-bytes"))
		}),
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/e/1/foo.png", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get(fiber.HeaderContentType); ct != "image/png" {
		t.Fatalf("unexpected content type %s", ct)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}
}

func TestAppFallsThroughToNotFoundPage(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "404.html"), "<h1>lost</h1>")

	app := newTestApp(t, AppOptions{
		StaticDir:    dir,
		NotFoundPage: filepath.Join(dir, "404.html"),
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/e/1/missing.png", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !bytes.Contains(body, []byte("lost")) {
		t.Fatalf("应渲染 404 页面，得到 %s", string(body))
	}
}

func TestAppNotFoundWithoutPageFile(t *testing.T) {
	app := newTestApp(t, AppOptions{NotFoundPage: filepath.Join(t.TempDir(), "absent.html")})

	resp, err := app.Test(httptest.NewRequest("GET", "/nothing", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "Not Found" {
		t.Fatalf("页面缺失时应退回状态描述，得到 %s", string(body))
	}
}

func TestAppServesStaticTreeAndRouteTable(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "style.css"), "body{}")
	writeFile(t, filepath.Join(dir, "b.html"), "<p>page b</p>")

	app := newTestApp(t, AppOptions{
		StaticDir: dir,
		Routes:    []config.RouteConfig{{Path: "/b", File: "b.html"}},
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/style.css", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("静态文件应返回 200，得到 %d", resp.StatusCode)
	}

	resp, err = app.Test(httptest.NewRequest("GET", "/b", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != fiber.StatusOK || !bytes.Contains(body, []byte("page b")) {
		t.Fatalf("路由表页面异常: status=%d body=%s", resp.StatusCode, string(body))
	}
}

func TestAppRedirectExpandsParams(t *testing.T) {
	app := newTestApp(t, AppOptions{
		Redirects: []config.RedirectConfig{{
			Path:   "/assets/media/:sub_dir/:filename",
			Target: "https://cdn.example.com/media/:sub_dir/:filename",
		}},
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/assets/media/icons/logo.png", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusFound {
		t.Fatalf("expected 302, got %d", resp.StatusCode)
	}
	if loc := resp.Header.Get(fiber.HeaderLocation); loc != "https://cdn.example.com/media/icons/logo.png" {
		t.Fatalf("unexpected location %s", loc)
	}
}

func TestAppDiagnosticsMountedBeforeFallback(t *testing.T) {
	app := newTestApp(t, AppOptions{
		Diagnostics: func(r fiber.Router) {
			r.Get("/-/ping", func(c fiber.Ctx) error {
				return c.SendString("pong")
			})
		},
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/-/ping", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("诊断路由不应被 404 兜底覆盖，得到 %d", resp.StatusCode)
	}
}

func TestAppRecoversFromPanic(t *testing.T) {
	app := newTestApp(t, AppOptions{
		Assets: AssetHandlerFunc(func(c fiber.Ctx) error {
			panic("boom")
		}),
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/e/1/x.png", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusInternalServerError {
		t.Fatalf("panic 应转换为 500，得到 %d", resp.StatusCode)
	}
}

func TestAppCORSForConfiguredOrigins(t *testing.T) {
	app := newTestApp(t, AppOptions{AllowOrigins: []string{"https://game.example"}})

	req := httptest.NewRequest("GET", "/anything", nil)
	req.Header.Set("Origin", "https://game.example")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if got := resp.Header.Get(fiber.HeaderAccessControlAllowOrigin); got != "https://game.example" {
		t.Fatalf("expected CORS header, got %q", got)
	}
}

func TestNewAppRequiresDependencies(t *testing.T) {
	if _, err := NewApp(AppOptions{Assets: AssetHandlerFunc(nextHandler)}); err == nil {
		t.Fatalf("缺少 logger 应报错")
	}
	if _, err := NewApp(AppOptions{Logger: logrus.New()}); err == nil {
		t.Fatalf("缺少 asset handler 应报错")
	}
}

func TestRequestIDReadsLocals(t *testing.T) {
	app := fiber.New()
	ctx := app.AcquireCtx(new(fasthttp.RequestCtx))
	defer app.ReleaseCtx(ctx)

	if RequestID(ctx) != "" {
		t.Fatalf("未设置时应返回空字符串")
	}
	ctx.Locals(contextKeyRequestID, "req-1")
	if RequestID(ctx) != "req-1" {
		t.Fatalf("应读取中间件写入的请求 ID")
	}
}

func TestExpandTargetPrefersLongerNames(t *testing.T) {
	values := map[string]string{"sub": "short", "sub_dir": "a b"}
	got := expandTarget("https://cdn/:sub_dir/:sub", []string{"sub", "sub_dir"}, func(key string, _ ...string) string {
		return values[key]
	})
	if got != "https://cdn/a%20b/short" {
		t.Fatalf("unexpected expansion %s", got)
	}
}

func newTestApp(t *testing.T, opts AppOptions) *fiber.App {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	opts.Logger = logger
	if opts.Assets == nil {
		opts.Assets = AssetHandlerFunc(nextHandler)
	}

	app, err := NewApp(opts)
	if err != nil {
		t.Fatalf("failed to create app: %v", err)
	}
	return app
}

func nextHandler(c fiber.Ctx) error {
	return c.Next()
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("写入文件失败: %v", err)
	}
}
