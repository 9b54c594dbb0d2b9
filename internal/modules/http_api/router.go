package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// NewRouter builds the API routes.
func NewRouter(log *zap.Logger, deps Deps) *mux.Router {
	h := &handlers{log: log, deps: deps}

	r := mux.NewRouter()
	r.Use(logging(log))
	r.Use(recovery(log))

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", h.health).Methods(http.MethodGet)
	api.HandleFunc("/zones", h.listZones).Methods(http.MethodGet)
	api.HandleFunc("/players", h.listPlayers).Methods(http.MethodGet)
	api.HandleFunc("/players/{id}", h.getPlayer).Methods(http.MethodGet)
	api.HandleFunc("/players/{id}/artwork", h.getArtwork).Methods(http.MethodGet)
	api.HandleFunc("/players/{id}/commands/{type}", h.postCommand).Methods(http.MethodPost)

	return r
}
