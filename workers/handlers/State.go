package handlers

import (
	"net/http"
)

func State(w http.ResponseWriter, r *http.Request) {
	responseJSON(w, &APIStateResponse{
		Status:  "ok",
		Message: "nuorbit",
	}, http.StatusOK)
}
