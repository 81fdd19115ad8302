package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"swapnet/coordinator"
	"swapnet/redis"

	"go.uber.org/zap"
)

// API holds what the HTTP handlers need; methods are mounted by workers.
type API struct {
	Coordinator *coordinator.SwapCoordinator
	Store       *redis.SwapStore
	Logger      *zap.Logger
}

func responseJSON(w http.ResponseWriter, data interface{}, code int) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(data)
}

func responseError(w http.ResponseWriter, field, message string, code int) {
	responseJSON(w, &APIResponse{
		Status:  "error",
		Field:   field,
		Message: message,
	}, code)
}

// decodeBody reads a JSON body into dst, answering 400 itself on failure.
func (a *API) decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		a.Logger.Warn("error reading request body", zap.Error(err))
		responseError(w, "", "Error reading request body", http.StatusBadRequest)
		return false
	}

	if err := json.Unmarshal(body, dst); err != nil {
		a.Logger.Warn("error unmarshalling request body", zap.Error(err))
		responseError(w, "", "Cannot unmarshal input JSON", http.StatusBadRequest)
		return false
	}
	return true
}

// storeFailure maps store errors to a status code
func (a *API) storeFailure(w http.ResponseWriter, msg string, err error) {
	a.Logger.Error(msg, zap.Error(err))
	switch {
	case errors.Is(err, redis.ErrInvalidKey):
		responseError(w, "", msg, http.StatusBadRequest)
	case errors.Is(err, redis.ErrCorrupt):
		responseError(w, "", msg+": stored value is corrupt", http.StatusInternalServerError)
	default:
		responseError(w, "", msg, http.StatusServiceUnavailable)
	}
}
