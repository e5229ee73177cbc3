package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/helixir/evidence-aggregation-service/internal/domain"
)

// Request validation constants.
const (
	minQueryLength     = 3
	maxQueryLength     = 10000
	maxRequestBodySize = 1 << 20 // 1 MB limit for request bodies
)

var validate = validator.New()

// searchRequest is the JSON request body for a search.
type searchRequest struct {
	Query             string `json:"query" validate:"required,min=3,max=10000"`
	TargetResultCount int    `json:"target_result_count,omitempty" validate:"omitempty,min=1,max=100"`
	TimeBudgetMS      int    `json:"time_budget_ms,omitempty" validate:"omitempty,min=100,max=120000"`
}

// handleSearch handles POST /api/v1/search. It runs the aggregation
// pipeline and returns the ranked records with per-run diagnostics.
//
// A run that ends with no results or an expired time budget is still a
// successful HTTP exchange: the outcome field carries the condition and the
// diagnostics explain it.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var req searchRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}

	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	timeBudget := time.Duration(req.TimeBudgetMS) * time.Millisecond

	result, err := s.search.Search(ctx, req.Query, req.TargetResultCount, timeBudget)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, domainResultToResponse(result))
	case errors.Is(err, domain.ErrNoResults), errors.Is(err, domain.ErrDeadlineExceeded):
		// The result still carries diagnostics for these outcomes.
		writeJSON(w, http.StatusOK, domainResultToResponse(result))
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error().Err(err).Msg("search failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// validationMessage turns a validator error into a stable client-facing
// message naming the first offending field.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request"
	}
	fe := verrs[0]
	switch fe.Field() {
	case "Query":
		switch fe.Tag() {
		case "required":
			return "query is required"
		case "min":
			return fmt.Sprintf("query must be at least %d characters", minQueryLength)
		case "max":
			return fmt.Sprintf("query must be at most %d characters", maxQueryLength)
		}
	case "TargetResultCount":
		return "target_result_count must be between 1 and 100"
	case "TimeBudgetMS":
		return "time_budget_ms must be between 100 and 120000"
	}
	return "invalid request"
}
