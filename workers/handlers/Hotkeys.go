package handlers

import (
	"net/http"

	"swapnet/types"

	ethav "github.com/KOREAN139/ethereum-address-validator"
	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi"
	"go.uber.org/zap"
)

func validAccount(account string) bool {
	return common.IsHexAddress(account) && ethav.Validate(common.HexToAddress(account).Hex()) == nil
}

// StoreHotkey binds an EVM account to the hotkey that will be credited for it.
func (a *API) StoreHotkey(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	if !validAccount(account) {
		a.Logger.Warn("invalid account address", zap.String("account", account))
		responseError(w, "account", "No ethereum address or invalid address provided", http.StatusBadRequest)
		return
	}

	var req HotkeyBody
	if !a.decodeBody(w, r, &req) {
		return
	}
	if req.Hotkey == "" {
		responseError(w, "hotkey", "No hotkey provided", http.StatusBadRequest)
		return
	}

	if err := a.Store.StoreHotkey(r.Context(), account, req.Hotkey); err != nil {
		a.storeFailure(w, "Error binding hotkey", err)
		return
	}

	a.Logger.Info("hotkey bound", zap.String("account", account), zap.String("hotkey", req.Hotkey))
	responseJSON(w, &APIHotkeyResponse{Status: "ok", Account: types.NormalizeAccount(account), Hotkey: req.Hotkey}, http.StatusOK)
}

func (a *API) GetHotkey(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")

	hotkey, found, err := a.Store.RetrieveHotkey(r.Context(), account)
	if err != nil {
		a.storeFailure(w, "Error reading hotkey", err)
		return
	}
	if !found {
		responseError(w, "account", "No hotkey bound", http.StatusNotFound)
		return
	}

	responseJSON(w, &APIHotkeyResponse{Status: "ok", Account: types.NormalizeAccount(account), Hotkey: hotkey}, http.StatusOK)
}

func (a *API) DeleteHotkey(w http.ResponseWriter, r *http.Request) {
	if err := a.Store.DeleteHotkey(r.Context(), chi.URLParam(r, "account")); err != nil {
		a.storeFailure(w, "Error deleting hotkey", err)
		return
	}
	responseJSON(w, &APIResponse{Status: "ok"}, http.StatusOK)
}
