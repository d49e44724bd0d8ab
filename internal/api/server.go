// Package api exposes the review operations over HTTP as JSON. The caller's
// identity is taken from the X-Actor header and resolved through the roster
// by the service; authentication happens in front of this server.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sells-group/herbarium-review/internal/model"
	"github.com/sells-group/herbarium-review/internal/resilience"
	"github.com/sells-group/herbarium-review/internal/review"
)

// ActorHeader carries the authenticated actor id.
const ActorHeader = "X-Actor"

// Server routes HTTP requests to a review.Service.
type Server struct {
	svc    *review.Service
	router chi.Router
}

// NewServer builds the router. corsOrigins may be empty.
func NewServer(svc *review.Service, corsOrigins []string) *Server {
	s := &Server{svc: svc}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	if len(corsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", ActorHeader},
			MaxAge:         300,
		}))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/specimens", s.ingest)
		r.Route("/specimens/{id}", func(r chi.Router) {
			r.Get("/", s.getRecord)
			r.Get("/actions", s.allowedActions)
			r.Get("/assessment", s.assess)
			r.Post("/corrections", s.applyCorrection)
			r.Post("/transitions", s.transition)
			r.Post("/assign", s.assign)
			r.Post("/export", s.markExported)
			r.Post("/reopen", s.reopen)
			r.Post("/flag", s.flag)
			r.Delete("/flag", s.unflag)
			r.Post("/revalidate", s.revalidate)
			r.Post("/sync", s.sync)
		})
		r.Get("/queue", s.queue)
		r.Get("/queue.xlsx", s.queueReport)
		r.Get("/stats", s.statistics)
	})

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

type errorBody struct {
	Error      string          `json:"error"`
	Kind       model.ErrorKind `json:"kind,omitempty"`
	SpecimenID string          `json:"specimen_id,omitempty"`
}

// statusFor maps engine errors to HTTP statuses.
func statusFor(err error) int {
	switch model.KindOf(err) {
	case model.KindNotFound:
		return http.StatusNotFound
	case model.KindAlreadyExists, model.KindVersionConflict,
		model.KindIllegalTransition, model.KindNotReadyForExport:
		return http.StatusConflict
	case model.KindInvalidCorrection:
		return http.StatusBadRequest
	case model.KindUnauthorizedActor:
		return http.StatusForbidden
	}

	var ue *resilience.UpstreamError
	switch {
	case errors.Is(err, review.ErrInvalidPayload):
		return http.StatusBadRequest
	case errors.Is(err, resilience.ErrBreakerOpen), errors.As(err, &ue):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	body := errorBody{Error: err.Error()}

	var me *model.Error
	if errors.As(err, &me) {
		body.Kind = me.Kind
		body.SpecimenID = me.SpecimenID
	}
	if status == http.StatusInternalServerError {
		// Storage details stay in the log.
		zap.L().Error("api: internal error", zap.Error(err))
		body.Error = "internal error"
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg})
}
