package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/neurosurf/neurosurf/internal/middleware"
)

// StatusProvider reports backend health for the /api/status endpoint.
type StatusProvider struct {
	Hub       *Hub
	Model     string
	ModelUp   func() bool
	MemoryUp  func() bool
	SandboxOn bool
}

// Routes assembles the chi router: health, status, and the realtime
// endpoint.
func Routes(ws *WSHandler, status StatusProvider, allowedOrigin string) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS([]string{allowedOrigin}))

	r.Get("/api/status", func(w http.ResponseWriter, req *http.Request) {
		payload := map[string]any{
			"sessions": status.Hub.Count(),
			"model":    status.Model,
			"sandbox":  status.SandboxOn,
		}
		if status.ModelUp != nil {
			payload["model_available"] = status.ModelUp()
		}
		if status.MemoryUp != nil {
			payload["memory_available"] = status.MemoryUp()
		}
		writeJSON(w, http.StatusOK, payload)
	})

	r.Get("/ws", ws.ServeHTTP)

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}
