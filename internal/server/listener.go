package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

const shutdownGrace = 10 * time.Second

// Serve 在 port 上监听并把所有交换交给 handler，ctx 取消后优雅关闭。
func Serve(ctx context.Context, port int, handler http.Handler, logger *logrus.Logger) error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("listen on port %d: %w", port, err)
	}
	return ServeListener(ctx, listener, handler, logger)
}

// ServeListener 与 Serve 相同，但复用调用方创建的 listener，便于测试绑定随机端口。
func ServeListener(ctx context.Context, listener net.Listener, handler http.Handler, logger *logrus.Logger) error {
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 30 * time.Second,
	}

	logger.WithFields(logrus.Fields{
		"action": "listen",
		"addr":   listener.Addr().String(),
	}).Info("gateway listening")

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	logger.WithField("action", "shutdown").Info("gateway shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
