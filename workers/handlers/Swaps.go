package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"swapnet/coordinator"
	"swapnet/types"

	"github.com/go-chi/chi"
	"go.uber.org/zap"
)

// RequestSwap stores the swap and dispatches it to sampled peers.
func (a *API) RequestSwap(w http.ResponseWriter, r *http.Request) {
	var req SwapRequestBody
	if !a.decodeBody(w, r, &req) {
		return
	}

	if strings.TrimSpace(req.SwapID) == "" {
		responseError(w, "swap_id", "No swap id provided", http.StatusBadRequest)
		return
	}
	if req.ChainName == "" {
		responseError(w, "chain_name", "Chain not provided", http.StatusBadRequest)
		return
	}

	res, err := a.Coordinator.RequestSwap(r.Context(), coordinator.SwapSubmission{
		ChainName: req.ChainName,
		SwapID:    req.SwapID,
		Output:    req.Output,
		Info:      req.Info,
		Hotkeys:   req.Hotkeys,
	})
	if err != nil {
		a.storeFailure(w, "Error requesting swap", err)
		return
	}

	a.Logger.Info("swap requested",
		zap.String("swap_id", res.SwapID),
		zap.Bool("skipped", res.Skipped),
		zap.Int("outcomes", len(res.Outcomes)))
	responseJSON(w, res, http.StatusOK)
}

func (a *API) ListSwaps(w http.ResponseWriter, r *http.Request) {
	ids, err := a.Store.ListSwapIDs(r.Context())
	if err != nil {
		a.storeFailure(w, "Error listing swaps", err)
		return
	}
	responseJSON(w, &APISwapListResponse{Status: "ok", SwapIDs: ids}, http.StatusOK)
}

func (a *API) GetSwap(w http.ResponseWriter, r *http.Request) {
	swapID := types.NormalizeSwapID(chi.URLParam(r, "swapID"))

	info, found, err := a.Store.RetrieveSwap(r.Context(), swapID)
	if err != nil {
		a.storeFailure(w, "Error reading swap", err)
		return
	}
	if !found {
		responseError(w, "swap_id", "Swap not found", http.StatusNotFound)
		return
	}

	responseJSON(w, &APISwapResponse{Status: "ok", SwapID: swapID, Info: rawInfo(info)}, http.StatusOK)
}

func (a *API) DeleteSwap(w http.ResponseWriter, r *http.Request) {
	if err := a.Store.DeleteSwap(r.Context(), chi.URLParam(r, "swapID")); err != nil {
		a.storeFailure(w, "Error deleting swap", err)
		return
	}
	responseJSON(w, &APIResponse{Status: "ok"}, http.StatusOK)
}

// RecordWinner is called once the swap contract has picked a winner.
func (a *API) RecordWinner(w http.ResponseWriter, r *http.Request) {
	var req WinnerBody
	if !a.decodeBody(w, r, &req) {
		return
	}
	if req.Account == "" {
		responseError(w, "account", "No winner account provided", http.StatusBadRequest)
		return
	}

	res, err := a.Coordinator.RecordWinner(r.Context(), chi.URLParam(r, "swapID"), req.Account)
	switch {
	case errors.Is(err, coordinator.ErrSwapNotFound):
		responseError(w, "swap_id", "Swap not found", http.StatusNotFound)
		return
	case errors.Is(err, coordinator.ErrUnboundAccount):
		responseError(w, "account", "No hotkey bound to winner account", http.StatusUnprocessableEntity)
		return
	case err != nil:
		a.storeFailure(w, "Error recording winner", err)
		return
	}

	responseJSON(w, res, http.StatusOK)
}

// swap info is opaque; non-JSON blobs are returned as a JSON string
func rawInfo(info []byte) json.RawMessage {
	if len(info) == 0 {
		return nil
	}
	if json.Valid(info) {
		return info
	}
	quoted, _ := json.Marshal(string(info))
	return quoted
}
