package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/tgdrive/dropshare/internal/chizap"
	"github.com/tgdrive/dropshare/internal/config"
	"github.com/tgdrive/dropshare/internal/middleware"
	"github.com/tgdrive/dropshare/pkg/services"
	"go.uber.org/zap"
)

const limiterIdleTTL = 10 * time.Minute

func NewRouter(conf *config.ServerCmdConfig, files *services.FileService, lg *zap.Logger) http.Handler {
	h := &Handler{files: files, uploads: conf.Uploads}

	var limiter *middleware.Limiter
	if conf.Uploads.Rate > 0 {
		limiter = middleware.NewLimiter(conf.Uploads.Rate, conf.Uploads.Burst, limiterIdleTTL)
	}

	mux := chi.NewRouter()

	mux.Use(chimiddleware.RequestID)
	mux.Use(chimiddleware.Recoverer)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: conf.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "HEAD", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition", "Content-Length", "ETag"},
		MaxAge:         86400,
	}))
	mux.Use(chimiddleware.RealIP)
	mux.Use(middleware.InjectLogger(lg))
	mux.Use(chizap.New(lg, &chizap.Config{
		TimeFormat:   time.RFC3339,
		UTC:          true,
		SkipPrefixes: []string{"/healthz"},
	}))

	mux.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody(http.StatusNotFound))
	})
	mux.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody(http.StatusMethodNotAllowed))
	})

	mux.Get("/healthz", h.health)
	mux.Get("/version", h.version)

	mux.With(middleware.RateLimit(limiter, func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, services.TooManyRequests())
	})).Post("/upload", h.upload)

	mux.Route("/file/{id}", func(r chi.Router) {
		r.Get("/info", h.info)
		r.Get("/", h.direct)
		r.Post("/", h.download)
		r.Post("/unlock", h.unlock)
	})

	return mux
}
