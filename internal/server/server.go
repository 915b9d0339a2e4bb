package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/copyleftdev/calclab/internal/config"
	apperrors "github.com/copyleftdev/calclab/internal/errors"
	"github.com/copyleftdev/calclab/internal/expr"
	"github.com/copyleftdev/calclab/internal/logging"
	"github.com/copyleftdev/calclab/internal/task"
)

// maxBodyBytes bounds request bodies; function text is limited far below it.
const maxBodyBytes = 1 << 20

// RunIDHeader carries the identifier assigned to each task run.
const RunIDHeader = "X-Run-ID"

// Logger defines the logging interface used by the server
type Logger interface {
	Debug(msg string, fields ...map[string]interface{})
	Info(msg string, fields ...map[string]interface{})
	Warn(msg string, fields ...map[string]interface{})
	Error(msg string, fields ...map[string]interface{})
	Fatal(msg string, fields ...map[string]interface{})
	WithFields(fields map[string]interface{}) *logging.Logger
}

// Server exposes the task runner over HTTP and JSON-RPC 2.0.
// Tasks run synchronously on the request goroutine.
type Server struct {
	cfg     *config.Config
	logger  Logger
	runner  *task.Runner
	metrics *Metrics
}

// NewServer creates a new server instance with the given config and logger
func NewServer(cfg *config.Config, logger Logger, runner *task.Runner, metrics *Metrics) *Server {
	return &Server{
		cfg:     cfg,
		logger:  logger,
		runner:  runner,
		metrics: metrics,
	}
}

func (s *Server) RegisterRoutes(r chi.Router) {
	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/tasks", s.handleTask)
		r.Get("/functions", s.handleFunctions)
	})

	// JSON-RPC 2.0 endpoint
	r.Post("/rpc", s.handleJSONRPC)
}

// FunctionList is the body of GET /api/v1/functions.
type FunctionList struct {
	Functions []string `json:"functions"`
	Constants []string `json:"constants"`
}

func functionList() FunctionList {
	return FunctionList{Functions: expr.Builtins(), Constants: expr.Constants()}
}

// runTask executes req, records metrics and logs the outcome under a fresh
// run id.
func (s *Server) runTask(r *http.Request, req task.Request) (string, *task.Result, error) {
	runID := uuid.NewString()
	label := "invalid"
	if kind, err := task.ParseKind(req.Task); err == nil {
		label = string(kind)
	}

	start := time.Now()
	res, err := s.runner.Handle(req)
	elapsed := time.Since(start)
	s.metrics.observe(label, outcome(err), elapsed)

	fields := map[string]interface{}{
		"run_id":      runID,
		"task":        label,
		"function":    req.Func,
		"duration_ms": float64(elapsed.Microseconds()) / 1000.0,
	}
	log := s.requestLogger(r)
	if err != nil {
		fields["kind"] = apperrors.KindOf(err).String()
		if e, ok := apperrors.As(err); ok {
			for k, v := range e.Fields() {
				fields[k] = v
			}
		}
		fields["error"] = err.Error()
		log.Warn("Task rejected", fields)
		return runID, nil, err
	}
	log.Info("Task completed", fields)
	return runID, res, nil
}

func (s *Server) requestLogger(r *http.Request) Logger {
	if l, ok := logging.Lookup(r.Context()); ok {
		return l.Logger
	}
	return s.logger
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return apperrors.KindOf(err).String()
}

// httpStatus maps an error kind to an HTTP status code.
func httpStatus(err error) int {
	switch apperrors.KindOf(err) {
	case apperrors.KindValidation, apperrors.KindParse:
		return http.StatusBadRequest
	case apperrors.KindEvaluation, apperrors.KindConvergence:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// ErrorBody is the JSON body of a failed HTTP request.
type ErrorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", map[string]interface{}{"error": err.Error()})
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	msg := err.Error()
	if httpStatus(err) == http.StatusInternalServerError {
		msg = http.StatusText(http.StatusInternalServerError)
	}
	s.writeJSON(w, httpStatus(err), ErrorBody{Error: msg, Kind: apperrors.KindOf(err).String()})
}

// handleTask handles POST /api/v1/tasks.
func (s *Server) handleTask(w http.ResponseWriter, r *http.Request) {
	var req task.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.writeError(w, apperrors.Wrap(err, apperrors.KindValidation, "invalid request body"))
		return
	}

	runID, res, err := s.runTask(r, req)
	w.Header().Set(RunIDHeader, runID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

// handleFunctions handles GET /api/v1/functions.
func (s *Server) handleFunctions(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, functionList())
}

// JSON-RPC 2.0 error codes.
const (
	rpcParseError     = -32700
	rpcInvalidRequest = -32600
	rpcMethodNotFound = -32601
	rpcInvalidParams  = -32602
	rpcInternalError  = -32603
	rpcServerError    = -32000
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type rpcResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *rpcError   `json:"error,omitempty"`
}

// rpcCode maps an error kind to a JSON-RPC error code.
func rpcCode(err error) int {
	switch apperrors.KindOf(err) {
	case apperrors.KindValidation, apperrors.KindParse:
		return rpcInvalidParams
	case apperrors.KindEvaluation, apperrors.KindConvergence:
		return rpcServerError
	default:
		return rpcInternalError
	}
}

// handleJSONRPC handles JSON-RPC 2.0 requests
func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	var request rpcRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&request); err != nil {
		s.respondWithError(w, rpcParseError, "Parse error", nil, nil)
		return
	}

	// Validate JSON-RPC 2.0 request
	if request.JSONRPC != "2.0" || request.Method == "" {
		s.respondWithError(w, rpcInvalidRequest, "Invalid Request", request.ID, nil)
		return
	}

	switch request.Method {
	case "task.run":
		req, err := decodeTaskParams(request.Params)
		if err != nil {
			s.respondWithError(w, rpcInvalidParams, err.Error(), request.ID, map[string]string{"kind": apperrors.KindValidation.String()})
			return
		}
		runID, res, err := s.runTask(r, req)
		w.Header().Set(RunIDHeader, runID)
		if err != nil {
			msg := err.Error()
			if rpcCode(err) == rpcInternalError {
				msg = "Internal error"
			}
			s.respondWithError(w, rpcCode(err), msg, request.ID, map[string]string{
				"kind":  apperrors.KindOf(err).String(),
				"runId": runID,
			})
			return
		}
		s.respond(w, request.ID, res)
	case "functions.list":
		s.respond(w, request.ID, functionList())
	default:
		s.respondWithError(w, rpcMethodNotFound, "Method not found", request.ID, nil)
	}
}

// decodeTaskParams accepts params as a request object or as a one-element
// array holding it.
func decodeTaskParams(raw json.RawMessage) (task.Request, error) {
	var req task.Request
	if len(raw) == 0 {
		return req, fmt.Errorf("missing required parameters")
	}
	if raw[0] == '[' {
		var list []task.Request
		if err := json.Unmarshal(raw, &list); err != nil {
			return req, fmt.Errorf("invalid parameters: %v", err)
		}
		if len(list) != 1 {
			return req, fmt.Errorf("expected exactly one task, got %d", len(list))
		}
		return list[0], nil
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		return req, fmt.Errorf("invalid parameters: %v", err)
	}
	return req, nil
}

func (s *Server) respond(w http.ResponseWriter, id interface{}, result interface{}) {
	s.writeJSON(w, http.StatusOK, rpcResponse{JSONRPC: "2.0", ID: id, Result: result})
}

// respondWithError sends a JSON-RPC 2.0 error response
func (s *Server) respondWithError(w http.ResponseWriter, code int, message string, id interface{}, data interface{}) {
	s.logger.Debug("JSON-RPC error", map[string]interface{}{
		"code":    code,
		"message": message,
	})
	s.writeJSON(w, http.StatusOK, rpcResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &rpcError{Code: code, Message: message, Data: data},
	})
}

// Close releases server resources. Runs are synchronous, so there is nothing
// left to cancel once the HTTP server has drained.
func (s *Server) Close() error {
	s.logger.Info("Server closed")
	return nil
}
