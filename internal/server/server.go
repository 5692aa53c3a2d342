// Package server exposes batch resolution and address maintenance over HTTP.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/geolote/internal/resolver"
	"github.com/sells-group/geolote/internal/sheet"
	"github.com/sells-group/geolote/internal/store"
	"github.com/sells-group/geolote/pkg/geocode"
)

// DefaultMaxUploadBytes caps multipart uploads.
const DefaultMaxUploadBytes = 20 << 20

// Config configures the HTTP surface.
type Config struct {
	CORSOrigins    []string
	MaxUploadBytes int64
	Sheet          sheet.Options
	MaxRows        int
}

// Server wires handlers to the resolver, the geocode client used for manual
// searches, and an optional store.
type Server struct {
	cfg      Config
	resolver *resolver.Resolver
	client   geocode.Client
	store    store.Store
	router   chi.Router
}

// New builds the router. st may be nil, in which case results are not
// persisted and POST /addresses answers 503.
func New(cfg Config, res *resolver.Resolver, client geocode.Client, st store.Store) *Server {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"*"}
	}

	s := &Server{cfg: cfg, resolver: res, client: client, store: st}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Requested-With"},
		ExposedHeaders: []string{"Content-Disposition", "X-Batch-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Post("/upload", s.handleUpload)
	r.Post("/addresses", s.handleSaveAddress)
	r.Post("/salvar_endereco_editado", s.handleSaveAddress)
	r.Get("/geocode", s.handleGeocode)
	r.Get("/normalize", s.handleNormalize)

	s.router = r
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("write response failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
