package server

import (
	"errors"
	"net"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/orbit-hub/orbit/internal/logging"
)

// TunnelHandler is the opaque tunneling capability. ShouldRoute must be a
// pure predicate over the request; the dispatcher never interprets it.
type TunnelHandler interface {
	ShouldRoute(r *http.Request) bool
	RouteRequest(w http.ResponseWriter, r *http.Request)
	RouteUpgrade(r *http.Request, conn net.Conn, head []byte)
}

// Exchange is one inbound request cycle: a StandardExchange or an UpgradeExchange.
type Exchange interface {
	exchange()
}

// StandardExchange is an ordinary request with its response sink.
type StandardExchange struct {
	Writer  http.ResponseWriter
	Request *http.Request
}

// UpgradeExchange is a protocol-upgrade handshake. Conn has already been
// hijacked from the HTTP server; Head holds bytes the server had buffered
// past the request headers.
type UpgradeExchange struct {
	Request *http.Request
	Conn    net.Conn
	Head    []byte
}

func (StandardExchange) exchange() {}
func (UpgradeExchange) exchange()  {}

// Dispatcher 是共享监听端口上的唯一入口，按隧道/应用两条通道分发，每次交换无状态。
type Dispatcher struct {
	tunnel TunnelHandler
	app    http.Handler
	logger *logrus.Logger
}

// NewDispatcher 校验依赖并构建 Dispatcher。
func NewDispatcher(tunnel TunnelHandler, app http.Handler, logger *logrus.Logger) (*Dispatcher, error) {
	if tunnel == nil {
		return nil, errors.New("tunnel handler is required")
	}
	if app == nil {
		return nil, errors.New("application handler is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	return &Dispatcher{tunnel: tunnel, app: app, logger: logger}, nil
}

// ServeHTTP 将 net/http 的请求包装为 Exchange；升级握手会先劫持底层连接。
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !IsUpgradeRequest(r) {
		d.Dispatch(StandardExchange{Writer: w, Request: r})
		return
	}

	hijacker, ok := w.(http.Hijacker)
	if !ok {
		d.logger.WithFields(logging.ExchangeFields("upgrade_hijack", r.RemoteAddr, r.URL.Path)).
			Error("response writer does not support hijacking")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	conn, rw, err := hijacker.Hijack()
	if err != nil {
		d.logger.WithFields(logging.ExchangeFields("upgrade_hijack", r.RemoteAddr, r.URL.Path)).
			WithError(err).Error("hijack failed")
		return
	}

	var head []byte
	if rw != nil && rw.Reader.Buffered() > 0 {
		head = make([]byte, rw.Reader.Buffered())
		if _, err := rw.Reader.Read(head); err != nil {
			conn.Close()
			return
		}
	}

	d.Dispatch(UpgradeExchange{Request: r, Conn: conn, Head: head})
}

// Dispatch 对交换做穷尽的分支处理。非隧道的升级握手直接关闭连接，不写任何字节。
func (d *Dispatcher) Dispatch(ex Exchange) {
	switch ex := ex.(type) {
	case StandardExchange:
		if d.tunnel.ShouldRoute(ex.Request) {
			d.tunnel.RouteRequest(ex.Writer, ex.Request)
			return
		}
		d.app.ServeHTTP(ex.Writer, ex.Request)
	case UpgradeExchange:
		if d.tunnel.ShouldRoute(ex.Request) {
			d.tunnel.RouteUpgrade(ex.Request, ex.Conn, ex.Head)
			return
		}
		d.logger.WithFields(logging.ExchangeFields("upgrade_rejected", ex.Request.RemoteAddr, ex.Request.URL.Path)).
			Warn("upgrade_rejected")
		_ = ex.Conn.Close()
	default:
		d.logger.WithField("action", "dispatch").Errorf("unknown exchange type %T", ex)
	}
}
