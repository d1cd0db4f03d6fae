package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gonuorbit/checkout"
	"gonuorbit/config"
	"gonuorbit/relay"
	"gonuorbit/sdk"
	"gonuorbit/types"
)

const payTo = "0x8ba1f109551bD432803012645Ac136ddd64DBA72"

func TestRootCommand(t *testing.T) {
	root := newRootCmd()

	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["chains"])
	assert.True(t, names["run"])
	assert.True(t, names["checkout"])
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))

	run, _, err := root.Find([]string{"run"})
	require.NoError(t, err)
	assert.NotNil(t, run.Flags().Lookup("tx-hash"))
	assert.NotNil(t, run.Flags().Lookup("pay-to"))
}

func TestPrintChains(t *testing.T) {
	cfg := &config.Configuration{Chains: config.EVMChains, DirectReceivers: map[string]string{"10:USDC": payTo}}

	var buf bytes.Buffer
	require.NoError(t, printChains(&buf, cfg, "usdc", "direct-proof"))
	out := buf.String()
	assert.Contains(t, out, "optimism")
	assert.Contains(t, out, payTo)
	assert.NotContains(t, out, "arbitrum")

	buf.Reset()
	require.NoError(t, printChains(&buf, cfg, "USDT", ""))
	assert.Contains(t, buf.String(), "arbitrum")

	assert.Error(t, printChains(&buf, cfg, "DAI", ""))
	assert.Error(t, printChains(&buf, cfg, "USDC", "teleport"))
}

func TestSessionRequest(t *testing.T) {
	cfg := &config.Configuration{Chains: config.EVMChains}

	req, err := sessionRequest(cfg, runFlags{chainID: 56, price: 3, payTo: payTo, stable: "usdt", flow: "cross-chain"})
	require.NoError(t, err)
	assert.Equal(t, "bnb", req.Network)
	assert.Equal(t, "BNB Chain", req.ChainLabel)
	assert.Equal(t, 18, req.AssetDecimals)
	assert.Equal(t, "0x55d398326f99059fF775485246999027B3197955", req.AssetAddress)
	assert.Equal(t, types.FlowCrossChain, req.FlowMode)
	assert.Equal(t, types.StableUSDT, req.StableSymbol)

	_, err = sessionRequest(cfg, runFlags{chainID: 999, stable: "USDC"})
	assert.ErrorContains(t, err, "chain 999")
}

func TestRunFlowPrintsEvents(t *testing.T) {
	statuses := map[string]types.SessionStatus{
		config.DefaultRoutes.Session:     types.StatusAwaitingTransfer,
		config.DefaultRoutes.Transfer:    types.StatusTransferConfirmed,
		config.DefaultRoutes.DirectProof: types.StatusProofReady,
		config.DefaultRoutes.Complete:    types.StatusCompleted,
	}
	chainID := int64(10)
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status, ok := statuses[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(sdk.SessionResponse{
			Session: &types.Session{
				SessionID:     "sess-cli",
				FlowMode:      types.FlowDirectProof,
				Status:        status,
				SourceChainID: &chainID,
				AssetSymbol:   "USDC",
				AssetDecimals: 6,
				AssetAddress:  "0x0b2C639c533813f4Aa9D7837cAf62653d097Ff85",
				AmountAtomic:  "1000000",
				SourceAddress: payTo,
			},
			SessionToken: "tok",
		})
	}))
	defer remote.Close()

	cfg := &config.Configuration{Chains: config.EVMChains}
	cfg.SDK.APIKey = "k"
	cfg.SDK.BaseURL = remote.URL

	var out bytes.Buffer
	err := runFlow(context.Background(), &out, cfg, runFlags{chainID: 10, price: 1, payTo: payTo, stable: "USDC", flow: "direct-proof", txHash: "0xknown"})
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "flow-started")
	assert.Contains(t, text, "mode=direct-proof")
	assert.Contains(t, text, "tx=0xknown")
	assert.Contains(t, text, "flow-completed")
	assert.Contains(t, text, `"transferTx": "0xknown"`)
}

func TestRunCheckout(t *testing.T) {
	opened := make(chan string, 1)
	done := make(chan types.CheckoutResult, 1)
	go func() {
		res, err := runCheckout(context.Background(), checkoutFlags{listen: "127.0.0.1:0", price: "4.5", timeout: 5 * time.Second}, func(u string) error {
			opened <- u
			return nil
		})
		assert.NoError(t, err)
		done <- res
	}()

	var page *url.URL
	select {
	case raw := <-opened:
		var err error
		page, err = url.Parse(raw)
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("checkout page was never opened")
	}
	assert.Equal(t, "4.5", page.Query().Get("price"))

	wsURL := "ws://" + page.Host + "/checkout/relay/" + page.Query().Get(relay.WindowParam)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": {"http://" + page.Host}})
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.WriteJSON(map[string]any{"type": checkout.MessageType, "status": "error", "message": "declined"}))

	select {
	case res := <-done:
		assert.Equal(t, types.CheckoutError, res.Status)
		assert.Equal(t, "declined", res.Message)
	case <-time.After(3 * time.Second):
		t.Fatal("checkout never settled")
	}
}

func TestRunCheckoutTimeout(t *testing.T) {
	_, err := runCheckout(context.Background(), checkoutFlags{listen: "127.0.0.1:0", timeout: 50 * time.Millisecond}, func(string) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	_, err = runCheckout(context.Background(), checkoutFlags{listen: "127.0.0.1:0", flow: "teleport"}, nil)
	assert.Error(t, err)
}
