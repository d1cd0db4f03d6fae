package handlers

import (
	"gonuorbit/sdk"
	"gonuorbit/types"
)

type APIResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Field   string `json:"field,omitempty"`
}

type APIStateResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// FlowRunRequest starts one payment flow. providerCallId, when present,
// overrides the configured default.
type FlowRunRequest struct {
	sdk.SessionRequest
	// TransferTxHash skips the server-side transfer when the payer already paid.
	TransferTxHash string `json:"transferTxHash"`
}

type FlowRunResponse struct {
	Status  string                `json:"status"`
	Message string                `json:"message,omitempty"`
	RunID   string                `json:"runId"`
	Events  []types.FlowEventType `json:"events"`
	Result  *sdk.FlowResult       `json:"result,omitempty"`
}

// CheckoutRequest describes the checkout page to open. priceUsd wins over
// the free-form price text.
type CheckoutRequest struct {
	PriceUSD       *float64       `json:"priceUsd"`
	Price          string         `json:"price"`
	PayTo          string         `json:"payTo"`
	Description    string         `json:"description"`
	PrefillNetwork string         `json:"prefillNetwork"`
	PrefillStable  string         `json:"prefillStable"`
	FlowMode       types.FlowMode `json:"flowMode"`
	BaseURL        string         `json:"baseUrl"`
}

type CheckoutStartResponse struct {
	Status string `json:"status"`
	Window string `json:"window"`
	URL    string `json:"url"`
}

type CheckoutResultResponse struct {
	Status    string                `json:"status"`
	Window    string                `json:"window"`
	// Connected tells whether the checkout page has reached the relay yet.
	Connected bool                  `json:"connected"`
	Result    *types.CheckoutResult `json:"result,omitempty"`
}
