// Package server exposes the evaluation worker over a WebSocket endpoint.
// Each connection is one evaluation session: JSON requests name an action
// and carry a page document, responses carry the evaluated tree, the paths
// whose values changed, and any per-binding errors.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vk/bindflow/internal/ctxlog"
	"github.com/vk/bindflow/internal/entity"
	"github.com/vk/bindflow/internal/evaluator"
	"github.com/vk/bindflow/internal/worker"
)

const (
	actionEvalTree   = "eval_tree"
	actionUpdateTree = "update_tree"
	actionRestart    = "restart"
)

type request struct {
	Action string          `json:"action"`
	Page   json.RawMessage `json:"page,omitempty"`
}

type response struct {
	Tree         json.RawMessage       `json:"tree,omitempty"`
	UpdatedPaths []string              `json:"updatedPaths,omitempty"`
	Errors       []evaluator.EvalError `json:"errors,omitempty"`
	Error        string                `json:"error,omitempty"`
}

// Handler upgrades HTTP requests to WebSocket evaluation sessions. Each
// connection owns its own worker, so concurrent sessions never share
// evaluator state or cancel each other's passes.
type Handler struct {
	upgrader websocket.Upgrader
}

// NewHandler returns a handler serving evaluation sessions.
func NewHandler() *Handler {
	return &Handler{}
}

func (h *Handler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	logger := ctxlog.FromContext(r.Context())

	conn, err := h.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		logger.Warn("WebSocket upgrade failed.", "error", err)
		return
	}
	defer conn.Close()
	logger.Debug("Evaluation session opened.", "remote", conn.RemoteAddr().String())

	wk := worker.New()
	wk.Start(r.Context())
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = wk.Shutdown(shutdownCtx)
	}()

	for {
		var req request
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("Evaluation session read failed.", "error", err)
			}
			return
		}

		resp := handle(r.Context(), wk, req)
		if err := conn.WriteJSON(resp); err != nil {
			logger.Warn("Evaluation session write failed.", "error", err)
			return
		}
	}
}

func handle(ctx context.Context, wk *worker.Worker, req request) response {
	switch req.Action {
	case actionRestart:
		if err := wk.Restart(ctx); err != nil {
			return response{Error: err.Error()}
		}
		return response{}
	case actionEvalTree, actionUpdateTree:
		page, err := entity.DecodePage(bytes.NewReader(req.Page))
		if err != nil {
			return response{Error: fmt.Sprintf("invalid page: %v", err)}
		}

		var res *evaluator.Result
		if req.Action == actionEvalTree {
			res, err = wk.EvalTree(ctx, page)
		} else {
			res, err = wk.UpdateTree(ctx, page)
		}
		if err != nil {
			return response{Error: err.Error()}
		}

		treeJSON, err := res.Tree.JSON()
		if err != nil {
			return response{Error: fmt.Sprintf("encoding tree: %v", err)}
		}
		return response{Tree: treeJSON, UpdatedPaths: res.UpdatedPaths, Errors: res.Errors}
	default:
		return response{Error: fmt.Sprintf("unknown action %q", req.Action)}
	}
}

// Server runs the evaluation endpoint on a listen address until its context
// is cancelled.
type Server struct {
	httpSrv *http.Server
}

// New returns a server for addr.
func New(addr string) *Server {
	mux := http.NewServeMux()
	mux.Handle("/", NewHandler())
	return &Server{
		httpSrv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Evaluation server listening.", "addr", s.httpSrv.Addr)
		errCh <- s.httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("evaluation server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("evaluation server shutdown: %w", err)
	}
	logger.Info("Evaluation server stopped.")
	return nil
}
