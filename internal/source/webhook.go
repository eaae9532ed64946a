package source

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// DecodeFunc turns an incoming webhook request into a raw payload. A
// decode failure drops the request; it never fails the HTTP exchange.
type DecodeFunc func(r *http.Request) (any, error)

// Handler returns an HTTP handler that packages request bodies into the
// push source. The handler runs no business logic and always answers
// 200: webhook acknowledgment is fire and forget.
func (p *PushSource) Handler(decode DecodeFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload, err := decode(r)
		if err != nil {
			slog.Debug("Webhook payload dropped", "source", p.name, "error", err)
			w.WriteHeader(http.StatusOK)
			return
		}

		if err := p.Submit(r.Context(), payload); err != nil {
			slog.Debug("Webhook submit failed", "source", p.name, "error", err)
		}

		w.WriteHeader(http.StatusOK)
	})
}

// WebhookServer owns the HTTP listener for webhook sources. It is a
// transport collaborator: the pipeline never sees it.
type WebhookServer struct {
	server *http.Server
}

// NewWebhookServer builds a server on port serving handler at every path.
func NewWebhookServer(port int, handler http.Handler) *WebhookServer {
	return &WebhookServer{
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: handler,
		},
	}
}

// Start serves until ctx is canceled, then shuts down gracefully.
func (s *WebhookServer) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Webhook server listening", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	}
}

// Stop shuts the listener down. Safe to call more than once.
func (s *WebhookServer) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
