package tunnel

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/orbit-hub/orbit/internal/logging"
)

// RemoteParam 指定 websocket 需要桥接的 TCP 目标（host:port）。
const RemoteParam = "remote"

// RouteUpgrade 接管已被 dispatcher 劫持的连接，完成 websocket 握手后
// 将二进制帧与 remote 指定的 TCP 连接双向转发。
func (s *Server) RouteUpgrade(r *http.Request, conn net.Conn, head []byte) {
	fields := logging.ExchangeFields("tunnel_upgrade", r.RemoteAddr, r.URL.Path)

	remote := r.URL.Query().Get(RemoteParam)
	if remote == "" {
		s.logger.WithFields(fields).Warn("tunnel_remote_missing")
		writeRawStatus(conn, http.StatusBadRequest)
		conn.Close()
		return
	}
	host, _, err := net.SplitHostPort(remote)
	if err != nil {
		s.logger.WithFields(fields).WithError(err).Warn("tunnel_remote_invalid")
		writeRawStatus(conn, http.StatusBadRequest)
		conn.Close()
		return
	}
	fields["remote_target"] = remote
	if !s.allow.permits(host) {
		s.logger.WithFields(fields).Warn("tunnel_remote_denied")
		writeRawStatus(conn, http.StatusForbidden)
		conn.Close()
		return
	}

	rw := newHijackedResponse(conn, head)
	ws, err := s.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		// Upgrade 失败时已写出错误响应
		s.logger.WithFields(fields).WithError(err).Warn("tunnel_handshake_failed")
		conn.Close()
		return
	}
	defer ws.Close()

	target, err := s.dialer.DialContext(r.Context(), "tcp", remote)
	if err != nil {
		s.logger.WithFields(fields).WithError(err).Error("tunnel_dial_failed")
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "dial failed"),
			time.Now().Add(time.Second))
		return
	}
	defer target.Close()

	start := time.Now()
	sent, received := bridge(ws, target)
	fields["sent"] = logging.Size(int(sent))
	fields["received"] = logging.Size(int(received))
	fields["elapsed_ms"] = time.Since(start).Milliseconds()
	s.logger.WithFields(fields).Debug("tunnel_closed")
}

// bridge 在 websocket 与 TCP 之间复制数据，任一方向结束即关闭两端。
func bridge(ws *websocket.Conn, target net.Conn) (sent, received int64) {
	var (
		once sync.Once
		wg   sync.WaitGroup
	)
	closeBoth := func() {
		once.Do(func() {
			ws.Close()
			target.Close()
		})
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		defer closeBoth()
		for {
			mt, payload, err := ws.ReadMessage()
			if err != nil {
				return
			}
			if mt != websocket.BinaryMessage && mt != websocket.TextMessage {
				continue
			}
			n, err := target.Write(payload)
			sent += int64(n)
			if err != nil {
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		defer closeBoth()
		buf := make([]byte, 32*1024)
		for {
			n, err := target.Read(buf)
			if n > 0 {
				if werr := ws.WriteMessage(websocket.BinaryMessage, buf[:n]); werr != nil {
					return
				}
				received += int64(n)
			}
			if err != nil {
				return
			}
		}
	}()
	wg.Wait()
	return sent, received
}

func writeRawStatus(conn net.Conn, status int) {
	_ = conn.SetWriteDeadline(time.Now().Add(time.Second))
	_, _ = fmt.Fprintf(conn, "HTTP/1.1 %d %s\r\nConnection: close\r\n\r\n", status, http.StatusText(status))
}

// hijackedResponse 让 websocket.Upgrader 在已劫持的连接上完成握手。
type hijackedResponse struct {
	conn   net.Conn
	head   []byte
	header http.Header
	used   bool
}

func newHijackedResponse(conn net.Conn, head []byte) *hijackedResponse {
	return &hijackedResponse{conn: conn, head: head, header: make(http.Header)}
}

func (h *hijackedResponse) Header() http.Header {
	return h.header
}

func (h *hijackedResponse) Write(p []byte) (int, error) {
	return h.conn.Write(p)
}

// WriteHeader 仅在握手失败时调用，直接输出最简状态行。
func (h *hijackedResponse) WriteHeader(status int) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "HTTP/1.1 %d %s\r\n", status, http.StatusText(status))
	for key := range h.header {
		buf.WriteString(key + ": " + h.header.Get(key) + "\r\n")
	}
	buf.WriteString("\r\n")
	_, _ = h.conn.Write(buf.Bytes())
}

func (h *hijackedResponse) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h.used {
		return nil, nil, errors.New("connection already hijacked")
	}
	h.used = true
	conn := net.Conn(h.conn)
	if len(h.head) > 0 {
		conn = &prefixConn{Conn: h.conn, reader: io.MultiReader(bytes.NewReader(h.head), h.conn)}
	}
	brw := bufio.NewReadWriter(bufio.NewReader(conn), bufio.NewWriter(conn))
	return conn, brw, nil
}

// prefixConn 先回放劫持时已缓冲的字节，再读取底层连接。
type prefixConn struct {
	net.Conn
	reader io.Reader
}

func (p *prefixConn) Read(b []byte) (int, error) {
	return p.reader.Read(b)
}
