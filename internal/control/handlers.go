package control

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/vietddude/gqlgate/internal/core/domain"
	"github.com/vietddude/gqlgate/internal/infra/rpc"
)

const maxRequestBody = 1 << 20

type graphQLRequest struct {
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables"`
	OperationName string         `json:"operationName"`
}

type batchRequest struct {
	Items []domain.BatchItem `json:"items"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleGraphQL forwards one GraphQL request through the shared client.
func (g *Gateway) handleGraphQL(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	var req graphQLRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return
	}
	if req.Query == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "query is required"})
		return
	}

	data, err := g.client.ExecuteItem(r.Context(), domain.BatchItem{
		Document:      req.Query,
		Variables:     req.Variables,
		OperationName: req.OperationName,
	})
	if err != nil {
		writeJSON(w, statusFor(err), errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]json.RawMessage{"data": data})
}

// handleBatch runs a batch; failed items come back as null.
func (g *Gateway) handleBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	var req batchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	results, err := g.client.BatchQuery(r.Context(), req.Items)
	if err != nil {
		writeJSON(w, statusFor(err), errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string][]json.RawMessage{"results": results})
}

// handleFailures lists recently journaled failures.
func (g *Gateway) handleFailures(w http.ResponseWriter, r *http.Request) {
	if g.journal == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "failure journal disabled"})
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid limit"})
			return
		}
		limit = n
	}

	entries, err := g.journal.Recent(r.Context(), limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func statusFor(err error) int {
	var rle *rpc.RateLimitError
	if errors.As(err, &rle) || errors.Is(err, rpc.ErrLimiterReset) {
		return http.StatusTooManyRequests
	}
	return http.StatusBadGateway
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
