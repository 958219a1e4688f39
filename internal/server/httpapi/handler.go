// Package httpapi is the HTTP front end: it turns requests into api.Command
// values, dispatches them and writes each api.Result back as JSON.
package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/pulsekeeper/internal/logging"
	"github.com/dmitrijs2005/pulsekeeper/internal/server/api"
	"github.com/dmitrijs2005/pulsekeeper/internal/server/metrics"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-Id"

// maxBodyBytes caps request bodies; anything longer is treated as malformed.
const maxBodyBytes = 1 << 20

var emptyObject = json.RawMessage("{}")

// Dispatcher executes a Command. *api.Router implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, cmd api.Command) api.Result
}

type handler struct {
	dispatcher Dispatcher
	log        logging.Logger
}

// NewHandler builds the chi router: request ids, request logging, panic
// recovery and metrics around a catch-all route that feeds the dispatcher.
// The metrics endpoint is served at /metrics.
func NewHandler(d Dispatcher, m *metrics.Metrics, log logging.Logger) http.Handler {
	if log == nil {
		log = logging.Nop{}
	}
	h := &handler{dispatcher: d, log: log.With("module", "http")}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(h.logRequests)
	r.Use(middleware.Recoverer)
	if m != nil {
		r.Use(m.InstrumentHandler)
		r.Handle("/metrics", m.Handler())
	}
	r.HandleFunc("/*", h.serve)
	return r
}

// NewServer wraps handler in an http.Server with conservative timeouts.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

func (h *handler) serve(w http.ResponseWriter, r *http.Request) {
	res := h.dispatcher.Dispatch(r.Context(), commandFromRequest(r))

	payload := res.Payload
	if payload == nil {
		payload = emptyObject
	}
	body, err := json.Marshal(payload)
	if err != nil {
		h.log.Error(r.Context(), "encoding response", "error", err)
		res.StatusCode = http.StatusInternalServerError
		body, _ = json.Marshal(api.ErrorPayload{Error: "Internal server error"})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(res.StatusCode)
	_, _ = w.Write(body)
}

// commandFromRequest normalises r. Only the first value of repeated query
// parameters and headers is kept. A missing or unparsable body becomes {}.
func commandFromRequest(r *http.Request) api.Command {
	query := make(map[string]string, len(r.URL.Query()))
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			query[k] = v[0]
		}
	}

	headers := make(map[string]string, len(r.Header))
	for k, v := range r.Header {
		if len(v) > 0 {
			headers[strings.ToLower(k)] = v[0]
		}
	}

	return api.Command{
		Path:    strings.Trim(r.URL.Path, "/"),
		Method:  strings.ToUpper(r.Method),
		Query:   query,
		Headers: headers,
		Body:    readBody(r),
	}
}

func readBody(r *http.Request) json.RawMessage {
	if r.Body == nil {
		return emptyObject
	}
	b, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil || len(b) > maxBodyBytes || !json.Valid(b) {
		return emptyObject
	}
	return b
}

// requestID tags the request context with an id, reusing a well-formed
// incoming X-Request-Id, and echoes it in the response.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logging.WithRequestID(r.Context(), id)))
	})
}

func (h *handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		h.log.Info(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
		)
	})
}
