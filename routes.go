package offlinecache

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// ControlPrefix is the path prefix of the lifecycle control endpoints.
// Requests below it are never forwarded to the origin.
const ControlPrefix = "/.offline-cache"

type statusResponse struct {
	State       State    `json:"state"`
	Current     []string `json:"current"`
	Generations []string `json:"generations"`
}

// Routes returns a handler with the lifecycle control endpoints mounted next to the interceptor:
//
//	GET  /.offline-cache/status    lifecycle state and existing generations
//	POST /.offline-cache/install   pre-cache the manifest
//	POST /.offline-cache/activate  delete stale generations
//
// Every other request is intercepted.
func (a *OfflineCache) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)

	r.Route(ControlPrefix, func(r chi.Router) {
		r.Get("/status", a.handleStatus)
		r.Post("/install", a.handleLifecycle(InstallEvent{}))
		r.Post("/activate", a.handleLifecycle(ActivateEvent{}))
	})
	r.Handle("/*", a)
	return r
}

func (a *OfflineCache) handleStatus(w http.ResponseWriter, r *http.Request) {
	names, err := a.registry.Names(r.Context())
	if err != nil {
		a.log.Error().Err(err).Msg("Could not list generations")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{
		State:       a.State(),
		Current:     a.generations.Names(),
		Generations: names,
	})
}

func (a *OfflineCache) handleLifecycle(event Event) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reply, err := a.Dispatch(r.Context(), event)
		if err != nil {
			a.log.Error().Err(err).Str("event", event.eventName()).Msg("Lifecycle event failed")
			writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error(), "report": reply.Report})
			return
		}
		writeJSON(w, http.StatusOK, reply.Report)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
