package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/workerbridge/workerbridge/internal/bridge"
	"github.com/workerbridge/workerbridge/internal/queue"
)

// maxOperationBody bounds one POST /api/v1/operations request body.
const maxOperationBody = 1 << 20

// Handler is the HTTP handler for the bridge's status and submission
// endpoints.
type Handler struct {
	bridge *bridge.Bridge
	mux    *http.ServeMux
}

// New creates a Handler wired to b and registers all routes.
func New(b *bridge.Bridge) http.Handler {
	h := &Handler{bridge: b, mux: http.NewServeMux()}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/queue", h.queue)
	h.mux.HandleFunc("/api/v1/stats", h.stats)
	h.mux.HandleFunc("/api/v1/operations", h.operations)
	h.mux.HandleFunc("/metrics", h.metrics)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// health returns GET /api/v1/health — connection state and derived grade.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, h.bridge.Health())
}

// queue returns GET /api/v1/queue — backpressure queue length and kinds.
func (h *Handler) queue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, h.bridge.QueueStatus())
}

// stats returns GET /api/v1/stats — the health monitor snapshot.
func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, h.bridge.Metrics())
}

// operations handles POST /api/v1/operations — submits one operation to
// the worker and blocks until it settles. The response mirrors the
// operation's outcome: worker data on success, a mapped error otherwise.
func (h *Handler) operations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxOperationBody))
	if err != nil {
		jsonErr(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}
	var req OperationRequest
	if err := json.Unmarshal(body, &req); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	if req.Kind == "" {
		jsonErr(w, http.StatusBadRequest, "kind is required")
		return
	}

	data, err := h.bridge.Send(r.Context(), req.Kind, req.Payload)
	if err != nil {
		code, msg := mapSendError(err)
		jsonErr(w, code, msg)
		return
	}
	jsonResp(w, http.StatusOK, OperationResponse{Kind: req.Kind, Data: data})
}

// mapSendError translates a Send failure to an HTTP status.
func mapSendError(err error) (int, string) {
	var terr *bridge.TimeoutError
	if errors.As(err, &terr) {
		return http.StatusGatewayTimeout, terr.Error()
	}
	var werr *bridge.WorkerError
	if errors.As(err, &werr) {
		return http.StatusBadGateway, werr.Error()
	}
	var serr *bridge.ShutdownError
	if errors.As(err, &serr) {
		return http.StatusServiceUnavailable, serr.Error()
	}
	if errors.Is(err, queue.ErrFull) {
		return http.StatusServiceUnavailable, err.Error()
	}
	return http.StatusInternalServerError, err.Error()
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
