package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dvloznov/money-mirror/internal/api/middleware"
	"github.com/dvloznov/money-mirror/internal/domain"
	"github.com/dvloznov/money-mirror/internal/jobs"
	"github.com/dvloznov/money-mirror/internal/logger"
	"github.com/dvloznov/money-mirror/internal/pipeline"
)

// Runner executes one processing run.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// ProcessRequest is the body of /process-data and /process-data/async.
type ProcessRequest struct {
	Institution    string   `json:"institution"`
	FilePaths      []string `json:"file_paths"`
	ForceReprocess bool     `json:"force_reprocess"`
	AuthToken      string   `json:"auth_token,omitempty"`
}

// ProcessResponse is the body of a successful synchronous run.
type ProcessResponse struct {
	Status  string           `json:"status"`
	Message string           `json:"message"`
	Result  *pipeline.Result `json:"result"`
}

// ProcessHandler serves the processing endpoints.
type ProcessHandler struct {
	runner    Runner
	publisher jobs.Publisher
	tokens    middleware.TokenValidator
}

// NewProcessHandler creates a process handler. publisher may be nil when
// async processing is not offered.
func NewProcessHandler(runner Runner, publisher jobs.Publisher, tokens middleware.TokenValidator) *ProcessHandler {
	return &ProcessHandler{
		runner:    runner,
		publisher: publisher,
		tokens:    tokens,
	}
}

// Process handles POST /process-data.
func (h *ProcessHandler) Process(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	result, err := h.runner.Run(ctx, req)
	if err != nil {
		if errors.Is(err, pipeline.ErrInvalidRequest) {
			middleware.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		var storeErr *domain.StoreError
		if errors.As(err, &storeErr) {
			log.Error().Err(err).Str("op", storeErr.Op).Msg("Store failure during processing")
		} else {
			log.Error().Err(err).Msg("Processing failed")
		}
		middleware.WriteError(w, http.StatusInternalServerError, "Processing failed: "+err.Error())
		return
	}

	middleware.WriteJSON(w, http.StatusOK, ProcessResponse{
		Status:  "success",
		Message: summarize(result),
		Result:  result,
	})
}

// ProcessAsync handles POST /process-data/async.
func (h *ProcessHandler) ProcessAsync(w http.ResponseWriter, r *http.Request) {
	if h.publisher == nil {
		middleware.WriteError(w, http.StatusNotImplemented, "Async processing is not enabled")
		return
	}

	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	job := &jobs.ProcessJob{
		Institution:    req.Institution,
		FilePaths:      req.FilePaths,
		ForceReprocess: req.ForceReprocess,
	}
	log := logger.FromContext(r.Context())
	if err := h.publisher.PublishProcess(r.Context(), job); err != nil {
		log.Error().Err(err).Msg("Failed to enqueue processing job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue processing job")
		return
	}

	log.Info().Str("job_id", job.JobID).Msg("Processing job enqueued")
	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.JobID,
		"status": string(job.Status),
	})
}

// decode reads and validates the request body, writing the error response
// itself when it fails.
func (h *ProcessHandler) decode(w http.ResponseWriter, r *http.Request) (pipeline.Request, bool) {
	var body ProcessRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return pipeline.Request{}, false
	}

	if h.tokens != nil && h.tokens.Enabled() {
		token := body.AuthToken
		if token == "" {
			token = middleware.BearerToken(r)
		}
		if _, err := h.tokens.ValidateToken(token); err != nil {
			log := logger.FromContext(r.Context())
			log.Warn().Err(err).Msg("Rejected request token")
			middleware.WriteError(w, http.StatusUnauthorized, "Invalid or missing auth token")
			return pipeline.Request{}, false
		}
	}

	inst, err := domain.ParseInstitution(body.Institution)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return pipeline.Request{}, false
	}

	req := pipeline.Request{
		Institution:    inst,
		FilePaths:      body.FilePaths,
		ForceReprocess: body.ForceReprocess,
	}
	if err := req.Validate(); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return pipeline.Request{}, false
	}
	return req, true
}

func summarize(r *pipeline.Result) string {
	parts := []string{
		fmt.Sprintf("processed %d file(s)", r.FilesProcessed),
		fmt.Sprintf("inserted %d row(s)", r.RowsInserted),
		fmt.Sprintf("classified %d new description(s)", r.NewCategories),
	}
	if r.FilesSkipped > 0 {
		parts = append(parts, fmt.Sprintf("skipped %d already processed", r.FilesSkipped))
	}
	if r.FilesFailed > 0 {
		parts = append(parts, fmt.Sprintf("%d file(s) failed", r.FilesFailed))
	}
	return strings.Join(parts, ", ")
}
