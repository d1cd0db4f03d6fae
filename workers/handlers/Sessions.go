package handlers

import (
	"net/http"

	"github.com/go-chi/chi"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"gonuorbit/redis"
)

func GetSessionsByStatus(w http.ResponseWriter, r *http.Request) {
	status := chi.URLParam(r, "status")

	sessions, err := redis.FindSessionsByStatus(status)
	if errors.Is(err, redis.ErrUnknownStatus) {
		responseError(w, "unknown session status", "status", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Error().Err(err).Str("status", status).Msg("Error listing sessions")
		responseJSON(w, nil, http.StatusInternalServerError)
		return
	}

	responseJSON(w, sessions, http.StatusOK)
}

func GetSession(w http.ResponseWriter, r *http.Request) {
	rec, err := redis.GetSession(chi.URLParam(r, "id"))
	if err != nil {
		log.Error().Err(err).Msg("Error reading session")
		responseJSON(w, nil, http.StatusInternalServerError)
		return
	}
	if rec == nil {
		responseError(w, "session not found", "id", http.StatusNotFound)
		return
	}

	responseJSON(w, rec, http.StatusOK)
}

func GetRunEvents(w http.ResponseWriter, r *http.Request) {
	events, err := redis.GetRunEvents(chi.URLParam(r, "runId"))
	if err != nil {
		log.Error().Err(err).Msg("Error reading flow run")
		responseJSON(w, nil, http.StatusInternalServerError)
		return
	}
	if len(events) == 0 {
		responseError(w, "flow run not found", "runId", http.StatusNotFound)
		return
	}

	responseJSON(w, events, http.StatusOK)
}
