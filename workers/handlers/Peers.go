package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// GetPeers previews the usable peer set; ?hotkeys=a,b skips ranking.
func (a *API) GetPeers(w http.ResponseWriter, r *http.Request) {
	var hotkeys []string
	if q := r.URL.Query().Get("hotkeys"); q != "" {
		hotkeys = strings.Split(q, ",")
	}

	usable, err := a.Coordinator.UsablePeers(r.Context(), hotkeys)
	if err != nil {
		a.Logger.Error("error selecting peers", zap.Error(err))
		responseError(w, "", "Membership unavailable", http.StatusServiceUnavailable)
		return
	}
	responseJSON(w, &APIPeersResponse{Status: "ok", Peers: usable}, http.StatusOK)
}
