package workers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// Server is the part of the HTTP server the worker drives.
type Server interface {
	Start() error
	Shutdown(ctx context.Context) error
}

// HTTPServerWorker serves until the context is canceled, then shuts the server down
// gracefully within shutdownTimeout.
type HTTPServerWorker struct {
	log             *slog.Logger
	server          Server
	shutdownTimeout time.Duration
}

func NewHTTPServerWorker(log *slog.Logger, server Server, shutdownTimeout time.Duration) *HTTPServerWorker {
	return &HTTPServerWorker{log: log, server: server, shutdownTimeout: shutdownTimeout}
}

func (w *HTTPServerWorker) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- w.server.Start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	w.log.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.shutdownTimeout)
	defer cancel()
	if err := w.server.Shutdown(shutdownCtx); err != nil {
		w.log.Error("HTTP server shutdown failed", "error", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		w.log.Debug("HTTP server stopped", "error", err)
	}
	return nil
}
