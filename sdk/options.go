package sdk

import (
	"context"
	"net/http"
	"strings"
	"time"

	"gonuorbit/config"
	"gonuorbit/metrics"
	"gonuorbit/types"
)

// Doer sends one HTTP request; *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options configures a Client. Only APIKey is required.
type Options struct {
	APIKey string
	// BaseURL prefixes every route, empty targets relative paths.
	BaseURL string
	// HTTPClient defaults to an *http.Client with config.DefaultRequestTimeout.
	HTTPClient     Doer
	DefaultHeaders map[string]string
	// Routes overrides individual API paths, empty fields keep the defaults.
	Routes                config.Routes
	Chains                []config.ChainConfig
	DirectReceivers       map[string]string
	DefaultProviderCallID string
}

// OptionsFromConfig maps the loaded configuration onto client options.
func OptionsFromConfig(cfg *config.Configuration) Options {
	return Options{
		APIKey:                cfg.SDK.APIKey,
		BaseURL:               cfg.SDK.BaseURL,
		HTTPClient:            &http.Client{Timeout: cfg.SDK.RequestTimeout, Transport: metrics.InstrumentTransport(nil)},
		DefaultHeaders:        cfg.SDK.DefaultHeaders,
		Routes:                cfg.SDK.Routes,
		Chains:                cfg.Chains,
		DirectReceivers:       cfg.DirectReceivers,
		DefaultProviderCallID: cfg.SDK.DefaultProviderCallID,
	}
}

// SessionRequest is the body of the create session call.
type SessionRequest struct {
	Network            string             `json:"network"`
	ChainLabel         string             `json:"chainLabel"`
	ChainID            int64              `json:"chainId"`
	PriceUSD           float64            `json:"priceUsd"`
	PayTo              string             `json:"payTo"`
	Description        string             `json:"description"`
	AssetSymbol        string             `json:"assetSymbol"`
	AssetDecimals      int                `json:"assetDecimals"`
	AssetAddress       string             `json:"assetAddress"`
	ParticipantAddress string             `json:"participantAddress"`
	FlowMode           types.FlowMode     `json:"flowMode,omitempty"`
	ProviderCallID     *string            `json:"providerCallId"`
	StableSymbol       types.StableSymbol `json:"stableSymbol,omitempty"`
}

// SessionResponse is what every session operation returns.
type SessionResponse struct {
	Session      *types.Session `json:"session"`
	SessionToken string         `json:"sessionToken"`
}

// TransferFunc sends the source-chain payment and returns its transaction hash.
type TransferFunc func(ctx context.Context, req types.TransferRequest) (string, error)

type RunFlowOptions struct {
	SessionRequest

	// Transfer is invoked unless TransferTxHash is already known.
	Transfer       TransferFunc
	TransferTxHash string
	// ProviderCallID overrides the client default for cross-chain sessions.
	ProviderCallID string
	Events         EventSink

	// StepDelay and ProofDelay pace the remote calls, zero or negative skips the pause.
	StepDelay  time.Duration
	ProofDelay time.Duration
}

// DefaultRunFlowOptions returns options carrying the default pacing.
func DefaultRunFlowOptions(req SessionRequest) RunFlowOptions {
	return RunFlowOptions{
		SessionRequest: req,
		StepDelay:      config.DefaultStepDelay,
		ProofDelay:     config.DefaultProofDelay,
	}
}

type FlowResult struct {
	Session      *types.Session `json:"session"`
	SessionToken string         `json:"sessionToken"`
	TransferTx   string         `json:"transferTx,omitempty"`
	RegistryTx   string         `json:"registryTx,omitempty"`
}

func normalizeBaseURL(u string) string {
	return strings.TrimRight(u, "/")
}
