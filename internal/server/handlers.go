package server

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/agbru/fibsquares/internal/config"
	apperrors "github.com/agbru/fibsquares/internal/errors"
	"github.com/agbru/fibsquares/internal/fibonacci"
	"github.com/agbru/fibsquares/internal/logging"
)

// handleHealth responds to health check requests.
// It returns a 200 OK status with a JSON payload indicating the service is healthy.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeErrorResponse(w, r, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	response := map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
	}
	s.writeJSONResponse(w, http.StatusOK, response)
}

// handleAlgorithms returns the registered strategy names as a JSON array.
func (s *Server) handleAlgorithms(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeErrorResponse(w, r, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	response := map[string]any{
		"algorithms": s.factory.List(),
	}
	s.writeJSONResponse(w, http.StatusOK, response)
}

// handleSumSquares serves GET /sumsquares?n=&m=&algo=.
func (s *Server) handleSumSquares(w http.ResponseWriter, r *http.Request) {
	s.handleResidue(w, r, fibonacci.OperationSumSquaresMod, "n", s.service.SumSquares)
}

// handleFibMod serves GET /fibmod?k=&m=&algo=.
func (s *Server) handleFibMod(w http.ResponseWriter, r *http.Request) {
	s.handleResidue(w, r, fibonacci.OperationFibonacciMod, "k", s.service.FibonacciMod)
}

type residueFunc func(ctx context.Context, algo string, index *big.Int, m uint64) (uint64, error)

// handleResidue parses the index, modulus and algorithm, runs the
// calculation under the request timeout and writes a Response.
//
// Validation failures are answered with 400. Calculation failures are
// reported inside a 200 Response, except timeouts which map to 504.
func (s *Server) handleResidue(w http.ResponseWriter, r *http.Request, operation, indexParam string, run residueFunc) {
	if r.Method != http.MethodGet {
		s.writeErrorResponse(w, r, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	query := r.URL.Query()
	rawIndex := query.Get(indexParam)
	index, err := parseIndexParam(indexParam, rawIndex)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	m, err := s.parseModulusParam(query.Get("m"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	algo := query.Get("algo")
	if algo == "" {
		algo = s.defaultAlgo()
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeouts.RequestTimeout)
	defer cancel()

	start := time.Now()
	result, err := run(ctx, algo, index, m)
	duration := time.Since(start)

	if err != nil && (apperrors.IsValidationError(err) || apperrors.IsContextError(err)) {
		s.writeError(w, r, err)
		return
	}

	resp := Response{
		Operation: operation,
		Index:     rawIndex,
		Modulus:   m,
		Algorithm: algo,
		Duration:  duration.String(),
	}
	if err != nil {
		s.logger.Error("calculation failed", err,
			logging.String("operation", operation), logging.String("algo", algo))
		resp.Error = err.Error()
	} else {
		resp.Result = &result
	}
	s.writeJSONResponse(w, http.StatusOK, resp)
}

// handlePeriod serves GET /period?m=.
func (s *Server) handlePeriod(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeErrorResponse(w, r, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	m, err := s.parseModulusParam(r.URL.Query().Get("m"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeouts.RequestTimeout)
	defer cancel()

	period, err := s.service.Period(ctx, m)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSONResponse(w, http.StatusOK, PeriodResponse{Modulus: m, Period: period})
}

// defaultAlgo is the strategy for requests that omit algo. A request runs
// a single strategy, so "all" falls back to the reference scan.
func (s *Server) defaultAlgo() string {
	if s.cfg.Algo == "" || s.cfg.Algo == config.AlgoAll {
		return fibonacci.AlgoPisano
	}
	return s.cfg.Algo
}

// parseIndexParam parses a required non-negative index of any size.
func parseIndexParam(name, raw string) (*big.Int, error) {
	if raw == "" {
		return nil, apperrors.NewValidationError(name, "missing '"+name+"' parameter", nil)
	}
	index, err := fibonacci.ParseIndex(raw)
	if err != nil {
		return nil, apperrors.NewValidationError(name, err.Error(), raw)
	}
	return index, nil
}

// parseModulusParam parses m, falling back to the configured modulus. Range
// checks are left to the service.
func (s *Server) parseModulusParam(raw string) (uint64, error) {
	if raw == "" {
		return s.cfg.Modulus, nil
	}
	m, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, apperrors.NewValidationError("modulus", "modulus must be a positive integer", raw)
	}
	return m, nil
}

// writeJSONResponse writes data as JSON with the correct content type.
func (s *Server) writeJSONResponse(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode JSON response", err)
	}
}

// writeErrorResponse writes a standardized error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, r *http.Request, statusCode int, message string) {
	s.writeJSONResponse(w, statusCode, ErrorResponse{
		Error:     http.StatusText(statusCode),
		Message:   message,
		RequestID: RequestIDFromContext(r.Context()),
	})
}

// writeError maps an error to its HTTP status: 400 for validation errors,
// 504 for timeouts, 503 when the request was canceled, 500 otherwise.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var vErr apperrors.ValidationError
	switch {
	case errors.As(err, &vErr):
		s.writeJSONResponse(w, http.StatusBadRequest, ErrorResponse{
			Error:     http.StatusText(http.StatusBadRequest),
			Message:   vErr.Message,
			Field:     vErr.Field,
			RequestID: RequestIDFromContext(r.Context()),
		})
	case errors.Is(err, context.DeadlineExceeded):
		s.writeErrorResponse(w, r, http.StatusGatewayTimeout, "calculation timed out")
	case apperrors.IsContextError(err):
		s.writeErrorResponse(w, r, http.StatusServiceUnavailable, "calculation canceled")
	default:
		s.logger.Error("request failed", err, logging.String("path", r.URL.Path))
		s.writeErrorResponse(w, r, http.StatusInternalServerError, err.Error())
	}
}
