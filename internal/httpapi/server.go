package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/belkahq/belka/internal/config"
	"github.com/belkahq/belka/internal/store"
	"github.com/belkahq/belka/internal/swaggerui"
)

// Repository is the slice of the relational store the handlers use.
type Repository interface {
	CreateImage(ctx context.Context, userID string, in store.ImageCreate) (*store.Image, error)
	GetImage(ctx context.Context, userID, id string) (*store.Image, error)
	ListImages(ctx context.Context, userID string) ([]store.Image, error)
	ListImagesByTag(ctx context.Context, userID, tag string) ([]store.Image, error)
	UpdateImage(ctx context.Context, userID, id string, upd store.ImageUpdate) (*store.Image, error)
	DeleteImage(ctx context.Context, userID, id string) error
	UpsertTags(ctx context.Context, userID string, names []string) ([]string, error)
	ListTags(ctx context.Context, userID, query string, limit int) ([]store.Tag, error)
	TagUsage(ctx context.Context, userID string) ([]store.TagUsage, error)
	CleanupUnusedTags(ctx context.Context, userID string) (int, error)
	DeleteTag(ctx context.Context, userID, name string) error
	Ping(ctx context.Context) error
}

// ObjectStore is the slice of the blob layer the handlers use. SignedURL
// failures degrade to an absent URL at every call site.
type ObjectStore interface {
	Put(ctx context.Context, path string, data []byte, contentType, cacheControl string) error
	SignedURL(ctx context.Context, path string, expiry time.Duration) (string, error)
	Remove(ctx context.Context, path string) error
	EnsureBucket(ctx context.Context) error
}

// Thumbnailer derives the preset renditions of an uploaded original.
type Thumbnailer interface {
	Generate(ctx context.Context, data []byte, ownerID, storedName string) (map[string]string, error)
}

type Server struct {
	cfg     *config.Config
	repo    Repository
	blob    ObjectStore
	thumbs  Thumbnailer
	apiKeys *APIKeyStore
	logger  *slog.Logger
}

var (
	openapiOnce sync.Once
	openapiData []byte
	openapiErr  error
)

func loadOpenAPI() ([]byte, error) {
	openapiOnce.Do(func() {
		path := filepath.Clean("openapi.yaml")
		openapiData, openapiErr = os.ReadFile(path)
	})
	return openapiData, openapiErr
}

func NewRouter(cfg *config.Config, repo Repository, objects ObjectStore, thumbs Thumbnailer, apiKeys *APIKeyStore, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stdout, nil))
	}
	s := &Server{cfg: cfg, repo: repo, blob: objects, thumbs: thumbs, apiKeys: apiKeys, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(loggingMiddleware(logger))

	if len(cfg.CORSAllowedOrigins) > 0 {
		c := cors.New(cors.Options{
			AllowedOrigins:   cfg.CORSAllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"X-Api-Key", "Content-Type", "Accept"},
			AllowCredentials: true,
		})
		r.Use(c.Handler)
	}

	r.Get("/healthz", s.GetHealthz)
	r.Get("/readyz", s.GetReadyz)
	r.Get(cfg.OpenAPIPath, s.serveOpenAPI)
	r.Mount(cfg.SwaggerUIPath, swaggerui.Handler(cfg.OpenAPIPath))

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware())
		r.Get("/api/images", s.ListImages)
		r.Post("/api/images", s.UploadImage)
		r.Get("/api/images/{id}", s.GetImage)
		r.Put("/api/images/{id}", s.UpdateImage)
		r.Delete("/api/images/{id}", s.DeleteImage)
		r.Get("/api/tags", s.ListTags)
		r.Get("/api/tags/stats", s.TagStats)
		r.Post("/api/tags/cleanup", s.CleanupTags)
		r.Delete("/api/tags/{name}", s.DeleteTag)
	})

	return r
}

func (s *Server) serveOpenAPI(w http.ResponseWriter, _ *http.Request) {
	data, err := loadOpenAPI()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "unable to load openapi.yaml", map[string]any{"error": err.Error()})
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

type health struct {
	Status string `json:"status"`
}

func (s *Server) GetHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, health{Status: "ok"})
}

func (s *Server) GetReadyz(w http.ResponseWriter, _ *http.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.repo.Ping(ctx); err != nil {
		writeError(w, http.StatusServiceUnavailable, "not_ready", "database unreachable", map[string]any{"error": err.Error()})
		return
	}
	if err := s.blob.EnsureBucket(ctx); err != nil {
		writeError(w, http.StatusServiceUnavailable, "not_ready", "object storage unreachable", map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, health{Status: "ok"})
}

type apiError struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Details *map[string]any `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string, details map[string]any) {
	e := apiError{Code: code, Message: message}
	if details != nil {
		e.Details = &details
	}
	writeJSON(w, status, e)
}

func loggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Info("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start).String())
		})
	}
}
