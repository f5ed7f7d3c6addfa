package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/faaxis/advisor-calc/internal/calculator"
	"github.com/faaxis/advisor-calc/internal/firm"
	"github.com/faaxis/advisor-calc/internal/model"
	"github.com/faaxis/advisor-calc/internal/registry"
)

// maxBodyBytes caps calculator request bodies.
const maxBodyBytes = 1 << 20

type routerOptions struct {
	AllowedOrigins []string
	RateLimitRPS   float64 // 0 disables limiting
	RateLimitBurst int
	Timeout        time.Duration
}

type api struct {
	svc *calculator.Service
}

// buildRouter wires the HTTP API around svc.
func buildRouter(svc *calculator.Service, opts routerOptions) http.Handler {
	a := &api{svc: svc}
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	if opts.Timeout > 0 {
		r.Use(middleware.Timeout(opts.Timeout))
	}

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		if opts.RateLimitRPS > 0 {
			r.Use(rateLimit(rate.NewLimiter(rate.Limit(opts.RateLimitRPS), max(opts.RateLimitBurst, 1))))
		}
		r.Post("/calculate", a.handleCalculate)
		r.Get("/firms", a.handleListFirms)
		r.Get("/firms/normalize", handleNormalizeFirm)
		r.Get("/firms/{firm}", a.handleGetFirm)
	})

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *api) handleCalculate(w http.ResponseWriter, r *http.Request) {
	var req calculator.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if req.Advisor == nil {
		writeError(w, http.StatusBadRequest, "advisor is required", nil)
		return
	}

	res, err := a.svc.Calculate(r.Context(), req)
	if err != nil {
		writeCalcError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type firmsResponse struct {
	TakenAt time.Time        `json:"takenAt"`
	Firms   []model.FirmDeal `json:"firms"`
}

func (a *api) handleListFirms(w http.ResponseWriter, r *http.Request) {
	snap, err := a.svc.Snapshot(r.Context())
	if err != nil {
		writeCalcError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, firmsResponse{TakenAt: snap.TakenAt, Firms: snap.Deals()})
}

type firmResponse struct {
	Deal       model.FirmDeal        `json:"deal"`
	Parameters []model.FirmParameter `json:"parameters"`
}

func (a *api) handleGetFirm(w http.ResponseWriter, r *http.Request) {
	snap, err := a.svc.Snapshot(r.Context())
	if err != nil {
		writeCalcError(w, r, err)
		return
	}

	name := chi.URLParam(r, "firm")
	deal, ok := snap.GetDeal(name)
	if !ok {
		writeError(w, http.StatusNotFound, "firm not found", nil)
		return
	}
	params := snap.GetParameters(deal.Key)
	if params == nil {
		params = []model.FirmParameter{}
	}
	writeJSON(w, http.StatusOK, firmResponse{Deal: deal, Parameters: params})
}

type normalizeResponse struct {
	Name        string `json:"name"`
	Key         string `json:"key"`
	DisplayName string `json:"displayName"`
	Matched     bool   `json:"matched"`
}

func handleNormalizeFirm(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}
	key, matched := firm.Lookup(name)
	writeJSON(w, http.StatusOK, normalizeResponse{
		Name:        name,
		Key:         key,
		DisplayName: firm.DisplayName(key),
		Matched:     matched,
	})
}

type errorResponse struct {
	Error  string             `json:"error"`
	Fields []model.FieldError `json:"fields,omitempty"`
}

// writeCalcError maps service errors onto status codes: 422 for invalid
// input with the rejected fields, 503 when firm data cannot be read.
func writeCalcError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *model.ValidationError
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusUnprocessableEntity, "invalid input", ve.Fields)
	case errors.Is(err, registry.ErrDataUnavailable):
		writeError(w, http.StatusServiceUnavailable, "firm data unavailable", nil)
	default:
		zap.L().Error("api: request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", w.Header().Get("X-Request-ID")),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal error", nil)
	}
}

func writeError(w http.ResponseWriter, status int, msg string, fields []model.FieldError) {
	writeJSON(w, status, errorResponse{Error: msg, Fields: fields})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

// requestID propagates X-Request-ID, generating one when absent.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Info("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", ww.Header().Get("X-Request-ID")),
		)
	})
}

func rateLimit(l *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow() {
				w.Header().Set("Retry-After", "1")
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
