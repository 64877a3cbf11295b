// Package httpapi exposes the RPC endpoint and its sibling routes.
package httpapi

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/plusmaps/atlas/internal/app/metrics"
	apperrors "github.com/plusmaps/atlas/internal/errors"
	"github.com/plusmaps/atlas/internal/middleware"
	"github.com/plusmaps/atlas/internal/platform/database"
	"github.com/plusmaps/atlas/internal/rpc"
	"github.com/plusmaps/atlas/pkg/logger"
)

// handler bundles the HTTP endpoints around the dispatcher.
type handler struct {
	dispatcher *rpc.Dispatcher
	db         *database.Manager
	log        *logger.Logger
}

// NewHandler returns the core router: POST /rpc, GET /health, GET /metrics,
// and an envelope-shaped 404 for everything else. Cross-cutting middleware
// (CORS, tracing, transport rate limiting) is wrapped around this handler by
// the caller.
func NewHandler(dispatcher *rpc.Dispatcher, db *database.Manager, log *logger.Logger) http.Handler {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	h := &handler{dispatcher: dispatcher, db: db, log: log}

	r := mux.NewRouter()
	r.Use(middleware.MetricsMiddleware())
	r.HandleFunc("/rpc", h.rpc).Methods(http.MethodPost)
	r.HandleFunc("/health", h.health).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	// Unknown paths and wrong methods both get the flat JSON 404, so the
	// endpoint surface looks uniform to clients.
	r.NotFoundHandler = http.HandlerFunc(h.notFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(h.notFound)

	return r
}

// rpc serves one request envelope. A request only reaches the dispatcher
// once a database handle is confirmed; the single-attempt zero-delay budget
// keeps a dead database from stalling the caller.
func (h *handler) rpc(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.db.Ensure(ctx, 1, 0); err != nil {
		h.log.WithError(err).Warn("rejecting rpc request, database unavailable")
		writeFailure(w, err)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeFailure(w, apperrors.MalformedRequest("Invalid JSON body"))
		return
	}

	resp, err := h.dispatcher.Dispatch(ctx, body)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("OK"))
}

func (h *handler) notFound(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusNotFound, rpc.Failure("Not Found"))
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeFailure renders a pre-dispatch error with the status its kind maps to.
func writeFailure(w http.ResponseWriter, err error) {
	writeJSON(w, apperrors.HTTPStatusOf(err), rpc.Failure(err.Error()))
}
