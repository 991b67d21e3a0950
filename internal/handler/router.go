package handler

import (
	"log/slog"
	"net/http"

	"noteenvelope-sync/internal/middleware"
	"noteenvelope-sync/pkg/response"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

type Handlers struct {
	Notes     *NoteHandler
	Envelopes *EnvelopeHandler
	Labels    *LabelHandler
	Sync      *SyncHandler
	Transfer  *TransferHandler
}

type RouterConfig struct {
	APIToken       string
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
	Logger  *slog.Logger
}

// NewRouter builds the local HTTP API of a device.
func NewRouter(h Handlers, cfg RouterConfig) http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.LoggerMiddleware(cfg.Logger))

	r.HandleFunc("/health", healthHandler("noteenvelope")).Methods("GET")
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics).Methods("GET")
	}

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.TokenMiddleware(cfg.APIToken))

	api.HandleFunc("/notes", h.Notes.List).Methods("GET")
	api.HandleFunc("/notes", h.Notes.Create).Methods("POST")
	api.HandleFunc("/notes/{id}", h.Notes.Get).Methods("GET")
	api.HandleFunc("/notes/{id}", h.Notes.Update).Methods("PUT")
	api.HandleFunc("/notes/{id}", h.Notes.Delete).Methods("DELETE")
	api.HandleFunc("/notes/{id}/versions", h.Notes.ListVersions).Methods("GET")
	api.HandleFunc("/notes/{id}/versions/{version}/restore", h.Notes.RestoreVersion).Methods("POST")
	api.HandleFunc("/notes/{id}/comments", h.Notes.AddComment).Methods("POST")
	api.HandleFunc("/notes/{id}/comments/{commentId}", h.Notes.DeleteComment).Methods("DELETE")

	api.HandleFunc("/envelopes", h.Envelopes.List).Methods("GET")
	api.HandleFunc("/envelopes", h.Envelopes.Create).Methods("POST")
	api.HandleFunc("/envelopes/{id}", h.Envelopes.Get).Methods("GET")
	api.HandleFunc("/envelopes/{id}", h.Envelopes.Update).Methods("PUT")
	api.HandleFunc("/envelopes/{id}", h.Envelopes.Delete).Methods("DELETE")

	api.HandleFunc("/labels", h.Labels.List).Methods("GET")
	api.HandleFunc("/labels", h.Labels.Create).Methods("POST")
	api.HandleFunc("/labels/{id}", h.Labels.Update).Methods("PUT")
	api.HandleFunc("/labels/{id}", h.Labels.Delete).Methods("DELETE")

	api.HandleFunc("/devices", h.Sync.ListDevices).Methods("GET")
	api.HandleFunc("/sync/status", h.Sync.Status).Methods("GET")
	api.HandleFunc("/sync/settings", h.Sync.UpdateSettings).Methods("PUT")
	api.HandleFunc("/sync/conflicts", h.Sync.ListConflicts).Methods("GET")
	api.HandleFunc("/sync/notices", h.Sync.ListNotices).Methods("GET")

	api.HandleFunc("/export", h.Transfer.Export).Methods("GET")
	api.HandleFunc("/import", h.Transfer.Import).Methods("POST")

	c := cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: cfg.AllowedMethods,
		AllowedHeaders: cfg.AllowedHeaders,
	})
	return c.Handler(r)
}

// NewRelayRouter builds the relay server's router.
func NewRelayRouter(relay *RelayHandler, logger *slog.Logger) http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.LoggerMiddleware(logger))
	r.HandleFunc("/health", healthHandler("noteenvelope-relay")).Methods("GET")
	r.HandleFunc("/ws", relay.HandleConnection)
	return r
}

func healthHandler(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response.Success(w, map[string]string{"status": "healthy", "service": name})
	}
}
