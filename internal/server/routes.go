package server

import (
	"log/slog"
	"net/http"
)

// Config contains server configuration options.
type Config struct {
	// AllowedOrigins is the list of allowed CORS origins.
	AllowedOrigins []string
	// AssetsRoot is the local directory served under /assets/.
	AssetsRoot string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		AllowedOrigins: []string{"*"},
		AssetsRoot:     "assets",
	}
}

// NewRouter creates a new HTTP router with all routes configured.
// It uses Go 1.22+ ServeMux with method-based routing.
func NewRouter(h *Handlers, logger *slog.Logger, cfg Config) http.Handler {
	mux := http.NewServeMux()

	// Register routes with method-based patterns (Go 1.22+)
	mux.HandleFunc("GET /healthz", h.Health)
	mux.HandleFunc("POST /api/videos", h.CreateVideo)
	mux.HandleFunc("GET /api/videos", h.ListVideos)
	mux.HandleFunc("GET /api/videos/{videoID}", h.GetVideo)
	mux.HandleFunc("DELETE /api/videos/{videoID}", h.DeleteVideo)
	mux.HandleFunc("POST /api/videos/{videoID}/upload", h.UploadVideo)
	mux.HandleFunc("POST /api/videos/{videoID}/thumbnail", h.UploadThumbnail)

	// Locally stored thumbnails
	mux.Handle("GET /assets/", http.StripPrefix("/assets/", http.FileServer(http.Dir(cfg.AssetsRoot))))

	// Apply middleware chain
	chain := ChainMiddleware(
		RecoveryMiddleware(logger),
		LoggingMiddleware(logger),
		CORSMiddleware(cfg.AllowedOrigins),
	)

	return chain(mux)
}
