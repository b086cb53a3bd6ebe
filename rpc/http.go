package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/erikrakuscek/escrow-ethereum/core"
	"github.com/erikrakuscek/escrow-ethereum/observability"
	"github.com/erikrakuscek/escrow-ethereum/rpc/modules"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
	requestIDHeader = "X-Request-ID"
	metricsModule   = "rpc"
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeRateLimited    = -32020
)

// Config tunes the server. A zero RequestsPerMinute disables rate limiting.
type Config struct {
	RequestsPerMinute int
	Burst             int
	Auth              AuthConfig
	Logger            *slog.Logger
}

type Server struct {
	node    *core.Node
	logger  *slog.Logger
	limiter *sourceLimiter
	auth    *bearerAuth
	escrow  *modules.EscrowModule
	account *modules.AccountsModule
	router  chi.Router
	httpSrv *http.Server
}

// NewServer wires the JSON-RPC handlers for node. history backs
// escrow_listEvents and may be nil.
func NewServer(node *core.Node, history modules.EventHistory, cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		node:    node,
		logger:  logger,
		limiter: newSourceLimiter(cfg.RequestsPerMinute, cfg.Burst),
		auth:    newBearerAuth(cfg.Auth),
		escrow:  modules.NewEscrowModule(node, history),
		account: modules.NewAccountsModule(node),
	}
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestID)
	r.Method(http.MethodPost, "/", otelhttp.NewHandler(http.HandlerFunc(s.handle), "escrow.rpc"))
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	s.router = r
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start(addr string) error {
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.logger.Info("starting JSON-RPC server", slog.String("address", addr))
	err := s.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops a server started with Start.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	count, err := s.node.EscrowCount()
	if err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"status": "ok", "escrows": count})
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeModuleError(w http.ResponseWriter, id interface{}, err *modules.ModuleError) {
	writeError(w, err.HTTPStatus, id, err.Code, err.Message, err.Data)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

// statusRecorder captures the JSON-RPC error code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// handle is the main request handler that routes to specific handlers.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	start := time.Now()
	recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	code := s.dispatch(recorder, r, req)
	observability.ModuleMetrics().Observe(metricsModule, req.Method, code, time.Since(start))
	s.logger.Debug("rpc request",
		slog.String("requestId", w.Header().Get(requestIDHeader)),
		slog.String("method", req.Method),
		slog.Int("status", recorder.status),
		slog.Int("code", code),
		slog.Duration("duration", time.Since(start)))
}

// dispatch runs the handler for req.Method and returns the JSON-RPC error
// code it answered with, or zero on success.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, req *RPCRequest) int {
	var (
		result interface{}
		modErr *modules.ModuleError
	)
	switch req.Method {
	case "escrow_submitCall":
		return s.handleSubmitCall(w, r, req)
	case "escrow_get":
		result, modErr = s.escrow.Get(req.Params)
	case "escrow_count":
		result, modErr = s.escrow.Count()
	case "escrow_listEvents":
		result, modErr = s.escrow.ListEvents(r.Context(), req.Params)
	case "escrow_listEventsByType":
		result, modErr = s.escrow.ListEventsByType(r.Context(), req.Params)
	case "escrow_vault":
		result = s.escrow.Vault()
	case "registry_resolve":
		result, modErr = s.escrow.Resolve(req.Params)
	case "account_nonce":
		result, modErr = s.account.Nonce(req.Params)
	case "account_balance":
		result, modErr = s.account.Balance(req.Params)
	case "token_balanceOf":
		result, modErr = s.account.TokenBalance(req.Params)
	case "token_allowance":
		result, modErr = s.account.TokenAllowance(req.Params)
	case "token_ownerOf":
		result, modErr = s.account.TokenOwnerOf(req.Params)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("method %s not found", req.Method), nil)
		return codeMethodNotFound
	}
	if modErr != nil {
		writeModuleError(w, req.ID, modErr)
		return modErr.Code
	}
	writeResult(w, req.ID, result)
	return 0
}
