package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"gonuorbit/checkout"
	"gonuorbit/config"
	"gonuorbit/relay"
	"gonuorbit/sdk"
	"gonuorbit/types"
)

// Wallet is the server-side payer, nil when no private key is configured.
type Wallet interface {
	Transfer(ctx context.Context, req types.TransferRequest) (string, error)
	Balance(ctx context.Context, chainID int64, stable types.StableSymbol) (decimal.Decimal, error)
}

// Env carries what the handlers share.
type Env struct {
	Client *sdk.Client
	Wallet Wallet
	// Events receives every flow event in addition to the per-request recorder.
	Events sdk.EventSink
	Ping   func() error

	StepDelay  time.Duration
	ProofDelay time.Duration

	// Relay hosts server-launched checkout windows, nil disables them.
	Relay             *relay.Relay
	// CheckoutRetention keeps an uncollected settled checkout result,
	// DefaultCheckoutRetention when zero.
	CheckoutRetention time.Duration

	checkoutsMu sync.Mutex
	checkouts   map[string]*checkout.Handle
}

func NewEnv(cfg *config.Configuration, client *sdk.Client, wallet Wallet, events sdk.EventSink, ping func() error, rl *relay.Relay) *Env {
	return &Env{
		Relay:      rl,
		Client:     client,
		Wallet:     wallet,
		Events:     events,
		Ping:       ping,
		StepDelay:  cfg.SDK.StepDelay,
		ProofDelay: cfg.SDK.ProofDelay,
	}
}
