package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// State reports whether the backend answers.
func (a *API) State(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.Store.Ping(ctx); err != nil {
		a.Logger.Warn("state check failed", zap.Error(err))
		responseJSON(w, &APIStateResponse{
			Status:  "error",
			Message: "storage unavailable",
		}, http.StatusServiceUnavailable)
		return
	}

	responseJSON(w, &APIStateResponse{
		Status: "ok",
	}, http.StatusOK)
}
