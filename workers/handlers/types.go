package handlers

import (
	"encoding/json"

	"swapnet/types"
)

type APIResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Field   string `json:"field"`
}

type APIStateResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// SwapRequestBody is what the swap form posts once the swap exists on chain
type SwapRequestBody struct {
	ChainName string          `json:"chain_name"`
	SwapID    string          `json:"swap_id"`
	Output    bool            `json:"output"`
	Info      json.RawMessage `json:"info,omitempty"`
	Hotkeys   []string        `json:"hotkeys,omitempty"`
}

type APISwapResponse struct {
	Status string          `json:"status"`
	SwapID string          `json:"swap_id"`
	Info   json.RawMessage `json:"info,omitempty"`
}

type APISwapListResponse struct {
	Status  string   `json:"status"`
	SwapIDs []string `json:"swap_ids"`
}

type WinnerBody struct {
	Account string `json:"account"`
}

type HotkeyBody struct {
	Hotkey string `json:"hotkey"`
}

type APIHotkeyResponse struct {
	Status  string `json:"status"`
	Account string `json:"account"`
	Hotkey  string `json:"hotkey"`
}

type APIStatResponse struct {
	Status string              `json:"status"`
	Hotkey string              `json:"hotkey"`
	Field  string              `json:"field,omitempty"`
	Total  *int64              `json:"total,omitempty"`
	Weekly types.WeeklyHistory `json:"weekly,omitempty"`
	Fields map[string]string   `json:"fields,omitempty"`
}

type APIPeersResponse struct {
	Status string       `json:"status"`
	Peers  []types.Peer `json:"peers"`
}
