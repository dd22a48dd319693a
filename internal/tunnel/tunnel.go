package tunnel

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/orbit-hub/orbit/internal/logging"
	"github.com/orbit-hub/orbit/internal/server"
	"github.com/orbit-hub/orbit/internal/version"
)

// HeaderTarget 携带 HTTP 转发的目标绝对 URL。
const HeaderTarget = "X-Tunnel-URL"

// Options 控制隧道端点。
type Options struct {
	Prefix string
	Client *http.Client
	Logger *logrus.Logger
	// AllowHosts 限制 HTTP 转发与 TCP 桥接的目标主机；为空时不限制。
	// 支持 "*.example.com" 形式匹配子域名。
	AllowHosts  []string
	DialTimeout time.Duration
}

// Server 实现 server.TunnelHandler。
type Server struct {
	prefix   string
	client   *http.Client
	logger   *logrus.Logger
	dialer   *net.Dialer
	upgrader websocket.Upgrader
	allow    hostPolicy
	http     http.Handler
}

// NewServer 校验依赖并构建隧道端点。
func NewServer(opts Options) (*Server, error) {
	if !strings.HasPrefix(opts.Prefix, "/") || !strings.HasSuffix(opts.Prefix, "/") {
		return nil, errors.New("tunnel prefix must start and end with /")
	}
	if opts.Client == nil {
		return nil, errors.New("http client is required")
	}
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	timeout := opts.DialTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	srv := &Server{
		prefix: opts.Prefix,
		client: opts.Client,
		logger: opts.Logger,
		dialer: &net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second},
		upgrader: websocket.Upgrader{
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
			HandshakeTimeout: 10 * time.Second,
			CheckOrigin:      func(r *http.Request) bool { return true },
		},
		allow: newHostPolicy(opts.AllowHosts),
	}
	srv.http = srv.newHTTPApp()
	return srv, nil
}

// newHTTPApp 用 Fiber cors 中间件包裹普通 HTTP 交换，再经 adaptor 挂回 net/http。
func (s *Server) newHTTPApp() http.Handler {
	app := fiber.New(fiber.Config{BodyLimit: 32 << 20})
	app.Use(cors.New(cors.Config{
		AllowOriginsFunc: func(string) bool { return true },
		AllowMethods: []string{
			fiber.MethodGet, fiber.MethodHead, fiber.MethodPost, fiber.MethodPut,
			fiber.MethodPatch, fiber.MethodDelete, fiber.MethodOptions,
		},
	}))
	app.Use(adaptor.HTTPHandlerFunc(s.serveExchange))
	return adaptor.FiberApp(app)
}

// Prefix 返回隧道挂载的路径前缀。
func (s *Server) Prefix() string {
	return s.prefix
}

// ShouldRoute 仅依据路径前缀判断是否属于隧道流量。
func (s *Server) ShouldRoute(r *http.Request) bool {
	return r != nil && r.URL != nil && strings.HasPrefix(r.URL.Path, s.prefix)
}

// RouteRequest 处理普通 HTTP 交换：根路径返回清单，其余请求按 X-Tunnel-URL 转发。
func (s *Server) RouteRequest(w http.ResponseWriter, r *http.Request) {
	s.http.ServeHTTP(w, r)
}

func (s *Server) serveExchange(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.URL.Path == s.prefix {
		s.writeManifest(w)
		return
	}
	s.relay(w, r)
}

type manifest struct {
	Versions   []string `json:"versions"`
	Language   string   `json:"language"`
	Server     string   `json:"server"`
	MountPoint string   `json:"mount_point"`
}

func (s *Server) writeManifest(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, manifest{
		Versions:   []string{"v1"},
		Language:   "Go",
		Server:     version.Full(),
		MountPoint: s.prefix,
	})
}

func (s *Server) relay(w http.ResponseWriter, r *http.Request) {
	fields := logging.ExchangeFields("tunnel_relay", r.RemoteAddr, r.URL.Path)

	target, err := parseTarget(r.Header.Get(HeaderTarget))
	if err != nil {
		s.logger.WithFields(fields).WithError(err).Warn("tunnel_bad_target")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_target"})
		return
	}
	fields["target"] = target.String()
	if !s.allow.permits(target.Hostname()) {
		s.logger.WithFields(fields).Warn("tunnel_target_denied")
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "target_not_allowed"})
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), r.Method, target.String(), r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}
	server.CopyHeaders(req.Header, r.Header)
	req.Header.Del(HeaderTarget)
	req.Header.Del("Origin")
	req.Host = target.Host

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.WithFields(fields).WithError(err).Error("tunnel_relay_failed")
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "upstream_failed"})
		return
	}
	defer resp.Body.Close()

	copyResponseHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)
	written, err := io.Copy(w, resp.Body)
	fields["upstream_status"] = resp.StatusCode
	fields["size"] = logging.Size(int(written))
	if err != nil {
		s.logger.WithFields(fields).WithError(err).Warn("tunnel_relay_interrupted")
		return
	}
	s.logger.WithFields(fields).Debug("tunnel_relay_complete")
}

func parseTarget(raw string) (*url.URL, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, errors.New("missing " + HeaderTarget)
	}
	target, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if target.Scheme != "http" && target.Scheme != "https" {
		return nil, errors.New("target must be http or https")
	}
	if target.Host == "" {
		return nil, errors.New("target host required")
	}
	return target, nil
}

// copyResponseHeaders 透传上游响应头，CORS 头由本端中间件统一生成。
func copyResponseHeaders(dst, src http.Header) {
	for key, values := range src {
		if strings.HasPrefix(http.CanonicalHeaderKey(key), "Access-Control-") {
			continue
		}
		if server.IsHopByHopHeader(key) {
			continue
		}
		for _, value := range values {
			dst.Add(key, value)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
