package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/copyleftdev/shakelines/internal/config"
	"github.com/copyleftdev/shakelines/internal/logging"
	"github.com/copyleftdev/shakelines/internal/shaker"
	"github.com/copyleftdev/shakelines/internal/shaker/jsengine"
	"github.com/copyleftdev/shakelines/internal/shaker/permute"
)

// Logger defines the logging interface used by the server
type Logger interface {
	Debug(msg string, fields ...map[string]interface{})
	Info(msg string, fields ...map[string]interface{})
	Warn(msg string, fields ...map[string]interface{})
	Error(msg string, fields ...map[string]interface{})
	Fatal(msg string, fields ...map[string]interface{})
	WithFields(fields map[string]interface{}) *logging.Logger
}

// Job statuses.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// JSON-RPC 2.0 error codes.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
)

var (
	errJobNotFound = errors.New("job not found")
	errNotRunning  = errors.New("job is not running")
)

// paramsError marks an error caused by the caller's parameters.
type paramsError struct{ err error }

func (e *paramsError) Error() string { return e.err.Error() }
func (e *paramsError) Unwrap() error { return e.err }

// JobState tracks one search job. Fields are guarded by Server.jobsMu.
type JobState struct {
	ID          string
	Status      string
	StartTime   time.Time
	EndTime     *time.Time
	LastUpdated time.Time
	Explored    int
	Total       float64
	Report      *shaker.Report
	Err         error
	CancelFunc  context.CancelFunc
}

// Progress is the explored fraction of all orderings.
func (j *JobState) Progress() float64 {
	if j.Status == StatusCompleted {
		return 1
	}
	if j.Total <= 0 || math.IsInf(j.Total, 1) {
		return 0
	}
	return float64(j.Explored) / j.Total
}

// Server exposes line-permutation searches as background jobs over REST and
// JSON-RPC 2.0.
type Server struct {
	cfg    *config.Config
	logger Logger
	zap    *zap.Logger

	newEvaluator func() shaker.Evaluator
	equality     shaker.Equality

	jobs   map[string]*JobState
	jobsMu sync.RWMutex
	slots  chan struct{}
	wg     sync.WaitGroup
}

// NewServer creates a server instance with the given config and logger.
func NewServer(cfg *config.Config, logger Logger) (*Server, error) {
	equality, err := shaker.EqualityByName(cfg.Shake.Equality)
	if err != nil {
		return nil, err
	}

	maxJobs := cfg.Shake.MaxJobs
	if maxJobs < 1 {
		maxJobs = 1
	}

	return &Server{
		cfg:          cfg,
		logger:       logger,
		zap:          logging.NewZapLogger(logger.WithFields(map[string]interface{}{"component": "shaker"})),
		newEvaluator: jsengine.Factory(jsengine.Config{CallTimeout: cfg.Shake.CallTimeout}),
		equality:     equality,
		jobs:         make(map[string]*JobState),
		slots:        make(chan struct{}, maxJobs),
	}, nil
}

// RegisterRoutes mounts the API on r.
func (s *Server) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/shake", s.handleShake)
		r.Get("/status/{id}", s.handleStatus)
		r.Delete("/shake/{id}", s.handleCancel)
	})

	r.Post("/rpc", s.handleJSONRPC)
}

type rpcRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      interface{}       `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params,omitempty"`
}

type idParams struct {
	JobID string `json:"job_id"`
}

// handleJSONRPC handles JSON-RPC 2.0 requests
func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	log := s.requestLogger(r)

	var request rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.respondWithError(w, log, codeParseError, "Parse error", nil)
		return
	}

	if request.JSONRPC != "2.0" {
		s.respondWithError(w, log, codeInvalidRequest, "Invalid Request", request.ID)
		return
	}

	var result interface{}
	var err error

	switch request.Method {
	case "shake.start":
		var p shaker.Request
		if err = decodeParams(request.Params, &p); err == nil {
			result, err = s.startJob(log, p)
		}
	case "shake.status":
		var p idParams
		if err = decodeParams(request.Params, &p); err == nil {
			result, err = s.jobStatus(p.JobID)
		}
	case "shake.cancel":
		var p idParams
		if err = decodeParams(request.Params, &p); err == nil {
			err = s.cancelJob(log, p.JobID)
			result = map[string]string{"status": "cancellation requested"}
		}
	default:
		s.respondWithError(w, log, codeMethodNotFound, "Method not found", request.ID)
		return
	}

	if err != nil {
		var pe *paramsError
		if errors.As(err, &pe) {
			s.respondWithError(w, log, codeInvalidParams, err.Error(), request.ID)
		} else {
			s.respondWithError(w, log, codeServerError, err.Error(), request.ID)
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      request.ID,
		"result":  result,
	})
}

// decodeParams decodes the first positional parameter into v.
func decodeParams(params []json.RawMessage, v interface{}) error {
	if len(params) == 0 {
		return &paramsError{errors.New("missing required parameters")}
	}
	if err := json.Unmarshal(params[0], v); err != nil {
		return &paramsError{fmt.Errorf("invalid parameter format: %v", err)}
	}
	return nil
}

// startJob validates req and starts a search in the background.
func (s *Server) startJob(log Logger, req shaker.Request) (map[string]interface{}, error) {
	id := uuid.NewString()
	lines := shaker.SplitLines(req.Code)
	state := &JobState{
		ID:          id,
		Status:      StatusPending,
		StartTime:   time.Now(),
		LastUpdated: time.Now(),
		Total:       permute.Count(len(lines)),
	}

	sh, err := shaker.New(s.newEvaluator(), shaker.Config{
		Iterations: s.cfg.Shake.Iterations,
		MaxLines:   s.cfg.Shake.MaxLines,
		Equality:   s.equality,
		Logger:     s.zap.With(zap.String("job_id", id)),
		Observer:   func(shaker.CandidateResult) { s.recordCandidate(state) },
	})
	if err != nil {
		return nil, err
	}
	if err := sh.Validate(req); err != nil {
		return nil, &paramsError{err}
	}

	ctx, cancel := context.WithCancel(context.Background())
	state.CancelFunc = cancel

	s.jobsMu.Lock()
	s.jobs[id] = state
	s.jobsMu.Unlock()

	log.Info("Job accepted", map[string]interface{}{
		"job_id": id,
		"lines":  len(lines),
	})

	s.wg.Add(1)
	go s.runJob(ctx, state, sh, req)

	return map[string]interface{}{
		"job_id": id,
		"status": StatusPending,
	}, nil
}

func (s *Server) recordCandidate(state *JobState) {
	s.jobsMu.Lock()
	state.Explored++
	state.LastUpdated = time.Now()
	s.jobsMu.Unlock()
}

// runJob waits for a free slot and runs the search.
func (s *Server) runJob(ctx context.Context, state *JobState, sh *shaker.Shaker, req shaker.Request) {
	defer s.wg.Done()
	defer state.CancelFunc()

	select {
	case s.slots <- struct{}{}:
		defer func() { <-s.slots }()
	case <-ctx.Done():
		s.finishJob(state, nil, ctx.Err())
		return
	}

	s.jobsMu.Lock()
	if state.Status == StatusPending {
		state.Status = StatusRunning
		state.LastUpdated = time.Now()
	}
	s.jobsMu.Unlock()

	report, err := sh.Run(ctx, req)
	s.finishJob(state, report, err)
}

func (s *Server) finishJob(state *JobState, report *shaker.Report, err error) {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	state.Report = report
	switch {
	case state.Status == StatusCancelled:
	case errors.Is(err, context.Canceled):
		state.Status = StatusCancelled
	case err != nil:
		state.Status = StatusFailed
		state.Err = err
		s.logger.Error("Job failed", map[string]interface{}{
			"job_id": state.ID,
			"error":  err.Error(),
		})
	default:
		state.Status = StatusCompleted
	}

	now := time.Now()
	if state.EndTime == nil {
		state.EndTime = &now
	}
	state.LastUpdated = now
}

// jobStatus returns the current status and, once available, the report.
func (s *Server) jobStatus(id string) (map[string]interface{}, error) {
	if id == "" {
		return nil, &paramsError{errors.New("job_id is required")}
	}

	s.jobsMu.RLock()
	defer s.jobsMu.RUnlock()

	state, ok := s.jobs[id]
	if !ok {
		return nil, errJobNotFound
	}

	response := map[string]interface{}{
		"job_id":      state.ID,
		"status":      state.Status,
		"progress":    state.Progress(),
		"explored":    state.Explored,
		"start_time":  state.StartTime.Format(time.RFC3339),
		"last_update": state.LastUpdated.Format(time.RFC3339),
	}
	if state.EndTime != nil {
		response["end_time"] = state.EndTime.Format(time.RFC3339)
	}
	if state.Report != nil {
		response["report"] = state.Report
	}
	if state.Err != nil {
		response["error"] = state.Err.Error()
	}
	return response, nil
}

// cancelJob cancels a pending or running job.
func (s *Server) cancelJob(log Logger, id string) error {
	if id == "" {
		return &paramsError{errors.New("job_id is required")}
	}

	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	state, ok := s.jobs[id]
	if !ok {
		return errJobNotFound
	}
	switch state.Status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return fmt.Errorf("%w: status is %s", errNotRunning, state.Status)
	}

	markCancelled(state)
	log.Info("Job cancelled", map[string]interface{}{"job_id": id})
	return nil
}

// markCancelled cancels a job that has not finished. Callers hold jobsMu.
func markCancelled(state *JobState) {
	switch state.Status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return
	}
	state.CancelFunc()
	state.Status = StatusCancelled
	now := time.Now()
	state.EndTime = &now
	state.LastUpdated = now
}

// respondWithError sends a JSON-RPC 2.0 error response
func (s *Server) respondWithError(w http.ResponseWriter, log Logger, code int, message string, id interface{}) {
	log.Warn("RPC error", map[string]interface{}{
		"code":    code,
		"message": message,
	})

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jsonrpc": "2.0",
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
		},
		"id": id,
	})
}

// requestLogger returns the request-scoped logger stored by
// logging.Middleware, falling back to the server's logger.
func (s *Server) requestLogger(r *http.Request) Logger {
	if l := logging.FromContext(r.Context()); l != nil {
		return l
	}
	return s.logger
}

// Close cancels all jobs and waits for them to stop.
func (s *Server) Close() error {
	s.jobsMu.Lock()
	for _, job := range s.jobs {
		markCancelled(job)
	}
	s.jobsMu.Unlock()

	s.wg.Wait()
	return nil
}

// handleShake handles POST /api/v1/shake
func (s *Server) handleShake(w http.ResponseWriter, r *http.Request) {
	var req shaker.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": fmt.Sprintf("invalid request body: %v", err),
		})
		return
	}

	result, err := s.startJob(s.requestLogger(r), req)
	if err != nil {
		status := http.StatusInternalServerError
		var pe *paramsError
		if errors.As(err, &pe) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusAccepted, result)
}

// handleStatus handles GET /api/v1/status/{id}
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	result, err := s.jobStatus(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleCancel handles DELETE /api/v1/shake/{id}
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	err := s.cancelJob(s.requestLogger(r), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, errJobNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case err != nil:
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": "cancellation requested"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
