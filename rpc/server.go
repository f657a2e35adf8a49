package rpc

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"bountychain/core/events"
	"bountychain/native/bounty"
	"bountychain/observability/metrics"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeRateLimited    = -32020

	codeNotFound          = -32040
	codeForbidden         = -32041
	codeInvalidState      = -32042
	codeConflict          = -32043
	codeInsufficientFunds = -32044
)

// errorCode maps engine sentinels onto stable JSON-RPC error codes so clients
// can branch without string matching.
func errorCode(err error) int {
	switch {
	case errors.Is(err, bounty.ErrBountyNotFound), errors.Is(err, bounty.ErrSubmissionNotFound):
		return codeNotFound
	case errors.Is(err, bounty.ErrUnauthorizedCreator), errors.Is(err, bounty.ErrUnauthorizedHunter):
		return codeForbidden
	case errors.Is(err, bounty.ErrBountyNotOpen), errors.Is(err, bounty.ErrBountyNotInReview),
		errors.Is(err, bounty.ErrBountyNotApproved), errors.Is(err, bounty.ErrBountyClosed),
		errors.Is(err, bounty.ErrDeadlineNotPassed), errors.Is(err, bounty.ErrDeadlineNotReached),
		errors.Is(err, bounty.ErrFinalizeNotReady):
		return codeInvalidState
	case errors.Is(err, bounty.ErrBountyExists), errors.Is(err, bounty.ErrSubmissionExists),
		errors.Is(err, bounty.ErrAlreadyWinner), errors.Is(err, bounty.ErrWinnersQuotaMet),
		errors.Is(err, bounty.ErrHunterAssigned):
		return codeConflict
	case errors.Is(err, bounty.ErrInsufficientPool), errors.Is(err, bounty.ErrPayoutExceedsCap):
		return codeInsufficientFunds
	case errors.Is(err, bounty.ErrInvalidAmount), errors.Is(err, bounty.ErrInvalidDeadline),
		errors.Is(err, bounty.ErrQuotaNotSingle), errors.Is(err, bounty.ErrReportTooLong),
		errors.Is(err, bounty.ErrReportRequired), errors.Is(err, bounty.ErrInvalidSeverity),
		errors.Is(err, bounty.ErrInvalidSubmissionID), errors.Is(err, bounty.ErrContentRefTooLong),
		errors.Is(err, bounty.ErrDescriptionTooLong), errors.Is(err, bounty.ErrSubmissionMismatch),
		errors.Is(err, bounty.ErrInvalidVault):
		return codeInvalidParams
	default:
		return codeServerError
	}
}

// ServerConfig carries the knobs the RPC layer needs from the node
// configuration.
type ServerConfig struct {
	AuthToken    string
	RateLimitRPS int
}

type Server struct {
	engine  *bounty.Engine
	buffer  *events.Buffer
	logger  *slog.Logger
	metrics *metrics.BountyMetrics

	authToken string
	limit     rate.Limit
	burst     int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewServer(engine *bounty.Engine, buffer *events.Buffer, logger *slog.Logger, cfg ServerConfig) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	rps := cfg.RateLimitRPS
	if rps <= 0 {
		rps = 50
	}
	return &Server{
		engine:    engine,
		buffer:    buffer,
		logger:    logger,
		metrics:   metrics.Bounty(),
		authToken: strings.TrimSpace(cfg.AuthToken),
		limit:     rate.Limit(rps),
		burst:     rps,
		limiters:  make(map[string]*rate.Limiter),
	}
}

// Handler returns the HTTP handler serving the JSON-RPC endpoint. Exposed so
// tests can drive the server through httptest without binding a port.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	return mux
}

// Start serves JSON-RPC requests until the listener fails.
func (s *Server) Start(addr string) error {
	s.logger.Info("starting JSON-RPC server", "addr", addr)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
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

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) writeEngineError(w http.ResponseWriter, id interface{}, method string, err error) {
	code := errorCode(err)
	status := http.StatusOK
	switch code {
	case codeUnauthorized:
		status = http.StatusUnauthorized
	case codeInvalidParams:
		status = http.StatusBadRequest
	}
	s.logger.Warn("rpc call failed", "method", method, "err", err)
	writeError(w, status, id, code, err.Error(), nil)
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.authToken == "" {
		return &RPCError{Code: codeUnauthorized, Message: "RPC authentication token not configured"}
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing Authorization header"}
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return &RPCError{Code: codeUnauthorized, Message: "Authorization header must use Bearer scheme"}
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "invalid RPC credentials"}
	}
	return nil
}

func (s *Server) limiterFor(source string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	limiter, ok := s.limiters[source]
	if !ok {
		limiter = rate.NewLimiter(s.limit, s.burst)
		s.limiters[source] = limiter
	}
	return limiter
}

func requestSource(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// handle is the main request handler that routes to specific handlers.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	if !s.limiterFor(requestSource(r)).Allow() {
		writeError(w, http.StatusTooManyRequests, nil, codeRateLimited, "rate limit exceeded", nil)
		return
	}

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

	handler, needsAuth := s.route(req.Method)
	if handler == nil {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", req.Method)
		return
	}
	if needsAuth {
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
	}
	handler(w, req)
}

type handlerFunc func(http.ResponseWriter, *RPCRequest)

// route returns the handler for a method and whether the method mutates
// state, which requires bearer authentication.
func (s *Server) route(method string) (handlerFunc, bool) {
	switch method {
	case "bounty_create":
		return s.handleCreate, true
	case "bounty_submitWork":
		return s.handleSubmitWork, true
	case "bounty_rejectWork":
		return s.handleRejectWork, true
	case "bounty_approve":
		return s.handleApprove, true
	case "bounty_claim":
		return s.handleClaim, true
	case "bounty_cancel":
		return s.handleCancel, true
	case "bounty_cancelEmergency":
		return s.handleCancelEmergency, true
	case "bounty_autoRelease":
		return s.handleAutoRelease, true
	case "bounty_recordSubmission":
		return s.handleRecordSubmission, true
	case "bounty_vote":
		return s.handleVote, true
	case "bounty_selectWinner":
		return s.handleSelectWinner, true
	case "bounty_finalize":
		return s.handleFinalize, true
	case "bounty_get":
		return s.handleGet, false
	case "bounty_getSubmission":
		return s.handleGetSubmission, false
	case "bounty_poolBalance":
		return s.handlePoolBalance, false
	case "bounty_listEvents":
		return s.handleListEvents, false
	default:
		return nil, false
	}
}
