package handlers

import (
	"net/http"

	"github.com/go-chi/chi"
)

func (a *API) GetHotkeyStats(w http.ResponseWriter, r *http.Request) {
	hotkey := chi.URLParam(r, "hotkey")

	fields, err := a.Store.HotkeyStats(r.Context(), hotkey)
	if err != nil {
		a.storeFailure(w, "Error reading stats", err)
		return
	}
	responseJSON(w, &APIStatResponse{Status: "ok", Hotkey: hotkey, Fields: fields}, http.StatusOK)
}

// GetTotalStat answers 0 for fields never written
func (a *API) GetTotalStat(w http.ResponseWriter, r *http.Request) {
	hotkey, field := chi.URLParam(r, "hotkey"), chi.URLParam(r, "field")

	total, err := a.Store.TotalStat(r.Context(), hotkey, field)
	if err != nil {
		a.storeFailure(w, "Error reading stat", err)
		return
	}
	responseJSON(w, &APIStatResponse{Status: "ok", Hotkey: hotkey, Field: field, Total: &total}, http.StatusOK)
}

func (a *API) GetWeeklyStat(w http.ResponseWriter, r *http.Request) {
	hotkey, field := chi.URLParam(r, "hotkey"), chi.URLParam(r, "field")

	weekly, err := a.Store.WeeklyStat(r.Context(), hotkey, field)
	if err != nil {
		a.storeFailure(w, "Error reading stat", err)
		return
	}
	responseJSON(w, &APIStatResponse{Status: "ok", Hotkey: hotkey, Field: field, Weekly: weekly}, http.StatusOK)
}
