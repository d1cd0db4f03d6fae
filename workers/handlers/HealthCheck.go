package handlers

import (
	"net/http"

	"github.com/rs/zerolog/log"
)

// HealthCheck reports ok while the journal store answers.
func (e *Env) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if e.Ping != nil {
		if err := e.Ping(); err != nil {
			log.Error().Err(err).Msg("Health check failed")
			responseError(w, "journal store unavailable", "", http.StatusServiceUnavailable)
			return
		}
	}
	responseJSON(w, &APIResponse{
		Status: "ok",
	}, http.StatusOK)
}
