// Package gateway exposes the HTTP ingress for the bot core: platform
// webhooks, a health endpoint, and a WebSocket event stream.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hermodbot/hermod/pkg/adapter"
	"github.com/hermodbot/hermod/pkg/dispatch"
	boterrors "github.com/hermodbot/hermod/pkg/errors"
	"github.com/hermodbot/hermod/pkg/logger"
)

const maxWebhookBody = 1 << 20 // 1 MiB

// Dispatcher is the slice of the orchestrator the gateway needs.
type Dispatcher interface {
	Adapter(key string) (adapter.Adapter, bool)
	Handle(ctx context.Context, adapterKey string, req *adapter.Request) (*dispatch.Result, error)
}

// Server is the webhook ingress HTTP server.
type Server struct {
	dispatcher Dispatcher
	hub        *WSHub
	server     *http.Server
	addr       string
}

// NewServer creates a gateway server. hub may be nil to disable the
// WebSocket stream.
func NewServer(addr string, d Dispatcher, hub *WSHub) *Server {
	return &Server{dispatcher: d, hub: hub, addr: addr}
}

// Hub returns the WebSocket hub, or nil when disabled.
func (s *Server) Hub() *WSHub { return s.hub }

// Start begins listening and blocks until the context is canceled or the
// listener fails.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /webhooks/{provider}", s.handleWebhook)
	if s.hub != nil {
		mux.HandleFunc("GET /ws", s.hub.HandleWebSocket)
	}

	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	logger.InfoC("gateway", "Listening", "addr", s.addr)

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutCtx)
	case err := <-errCh:
		return fmt.Errorf("gateway listen: %w", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	provider := r.PathValue("provider")

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	req := &adapter.Request{
		Method: r.Method,
		Header: r.Header,
		Body:   body,
	}

	// Endpoint verification handshakes (e.g. Slack URL verification) are
	// answered before dispatch.
	if a, ok := s.dispatcher.Adapter(provider); ok {
		if ch, ok := a.(adapter.Challenger); ok {
			if resp, handled := ch.HandleChallenge(req); handled {
				w.Header().Set("Content-Type", "text/plain")
				w.WriteHeader(http.StatusOK)
				w.Write(resp)
				return
			}
		}
	}

	result, err := s.dispatcher.Handle(r.Context(), provider, req)
	if err != nil {
		status := http.StatusInternalServerError
		var adapterErr *dispatch.AdapterError
		if errors.As(err, &adapterErr) {
			status = http.StatusBadRequest
		}
		if code, ok := boterrors.CodeOf(err); ok {
			switch code {
			case boterrors.CodeProviderNotFound:
				status = http.StatusNotFound
			case boterrors.CodeInvalidContent, boterrors.CodeContentTypeNotSupported:
				status = http.StatusBadRequest
			}
		}
		logger.WarnCF("gateway", "Webhook dispatch failed", map[string]any{
			"provider": provider,
			"status":   status,
			"error":    err.Error(),
		})
		writeError(w, status, err.Error())
		return
	}

	if result.Ignored {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, result.Status, map[string]any{"status": "processed"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}
