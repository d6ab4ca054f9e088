package transport

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sonetyo/ledger/internal/domain/ledger"
	"github.com/sonetyo/ledger/internal/mcp"
)

// RPCHandler handles JSON-RPC method dispatch.
type RPCHandler interface {
	Handle(ctx context.Context, caller ledger.Identity, method string, params json.RawMessage) (any, error)
}

// Options wires the HTTP surface. Auth, MCP and Metrics are optional.
type Options struct {
	Handler RPCHandler
	Auth    func(http.Handler) http.Handler
	MCP     http.Handler
	Metrics http.Handler
	Logger  *slog.Logger
}

// Server wires HTTP handlers.
type Server struct {
	handler RPCHandler
	logger  *slog.Logger
}

// NewServer creates an HTTP server router with middleware.
func NewServer(opts Options) *chi.Mux {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	srv := &Server{handler: opts.Handler, logger: logger}

	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)

	r.Get("/health", srv.handleHealth)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Group(func(r chi.Router) {
		if opts.Auth != nil {
			r.Use(opts.Auth)
		}
		r.Post("/rpc", srv.handleRPC)
		if opts.MCP != nil {
			r.Handle("/mcp", opts.MCP)
		}
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	req, err := ParseRequest(r.Body)
	if err != nil {
		if errors.Is(err, errParse) {
			WriteError(w, nil, ErrParseCode, "parse error", nil)
			return
		}
		WriteError(w, req.ID, ErrInvalidReq, "invalid request", nil)
		return
	}

	caller, _ := IdentityFromContext(r.Context())

	result, err := s.handler.Handle(r.Context(), caller, req.Method, req.Params)
	if err != nil {
		s.writeHandlerError(w, r, req, err)
		return
	}

	WriteResult(w, req.ID, result)
}

func (s *Server) writeHandlerError(w http.ResponseWriter, r *http.Request, req Request, err error) {
	if apiErr := mcp.MapError(err); apiErr != nil {
		WriteError(w, req.ID, ErrDomain, apiErr.Message, apiErr)
		return
	}
	switch {
	case errors.Is(err, mcp.ErrInvalidParams):
		WriteError(w, req.ID, ErrInvalidParams, err.Error(), nil)
	case errors.Is(err, mcp.ErrUnknownMethod):
		WriteError(w, req.ID, ErrMethodNotFound, err.Error(), nil)
	case errors.Is(err, mcp.ErrUnauthorized), errors.Is(err, ErrUnauthorized):
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	default:
		requestID, _ := RequestIDFromContext(r.Context())
		s.logger.Error("rpc failed", "method", req.Method, "request_id", requestID, "error", err)
		WriteError(w, req.ID, ErrInternal, "internal error", nil)
	}
}
