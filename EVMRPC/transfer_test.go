package EVMRPC

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gonuorbit/config"
	"gonuorbit/types"
)

const (
	tokenAddress = "0x0b2C639c533813f4Aa9D7837cAf62653d097Ff85"
	recipient    = "0x8ba1f109551bD432803012645Ac136ddd64DBA72"
)

type rpcRequest struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Params []any           `json:"params"`
}

// fakeNode answers the handful of JSON-RPC methods a legacy transfer needs.
// The first sendFailures broadcasts are accepted but answered with a 504,
// like a gateway losing the reply. sendError turns every broadcast into a
// JSON-RPC error.
type fakeNode struct {
	mu           sync.Mutex
	methods      []string
	rawTx        string
	rawTxs       []string
	sendFailures int
	sendError    string
}

func (n *fakeNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	n.mu.Lock()
	n.methods = append(n.methods, req.Method)
	n.mu.Unlock()

	var result any
	switch req.Method {
	case "eth_getTransactionCount":
		result = "0x5"
	case "eth_gasPrice":
		result = "0x3b9aca00"
	case "eth_call":
		result = hexutil.Encode(common.LeftPadBytes(big.NewInt(1_234_567).Bytes(), 32))
	case "eth_sendRawTransaction":
		n.mu.Lock()
		n.rawTx, _ = req.Params[0].(string)
		n.rawTxs = append(n.rawTxs, n.rawTx)
		lost := n.sendFailures > 0
		if lost {
			n.sendFailures--
		}
		sendError := n.sendError
		n.mu.Unlock()
		if lost {
			http.Error(w, "gateway timeout", http.StatusGatewayTimeout)
			return
		}
		if sendError != "" {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "error": map[string]any{"code": -32000, "message": sendError}})
			return
		}
		result = common.Hash{}.Hex()
	default:
		http.Error(w, "unexpected method "+req.Method, http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": result})
}

func newKey(t *testing.T) string {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return hex.EncodeToString(crypto.FromECDSA(key))
}

func transferRequest() types.TransferRequest {
	return types.TransferRequest{
		ChainID:      10,
		TokenAddress: tokenAddress,
		Recipient:    recipient,
		AmountAtomic: big.NewInt(1_250_000),
		Decimals:     6,
		Symbol:       "USDC",
	}
}

func TestTransferSignsERC20Transfer(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer down.Close()
	node := &fakeNode{}
	up := httptest.NewServer(node)
	defer up.Close()

	chains := []config.ChainConfig{{ID: "optimism", ChainID: 10, RPCList: []string{down.URL, up.URL}}}
	tr, err := NewTransferer(chains, "0x"+newKey(t), false)
	require.NoError(t, err)

	hash, err := tr.Transfer(context.Background(), transferRequest())
	require.NoError(t, err)

	require.NotEmpty(t, node.rawTx)
	raw, err := hexutil.Decode(node.rawTx)
	require.NoError(t, err)
	var tx ethtypes.Transaction
	require.NoError(t, tx.UnmarshalBinary(raw))

	assert.Equal(t, tx.Hash().Hex(), hash)
	assert.Equal(t, common.HexToAddress(tokenAddress), *tx.To())
	assert.Equal(t, uint64(5), tx.Nonce())
	assert.Equal(t, transferGasLimit, tx.Gas())
	assert.Equal(t, big.NewInt(2_000_000_000), tx.GasPrice())
	assert.Equal(t, 0, tx.Value().Sign())

	expected, err := erc20.Pack("transfer", common.HexToAddress(recipient), big.NewInt(1_250_000))
	require.NoError(t, err)
	assert.Equal(t, expected, tx.Data())

	signer := ethtypes.LatestSignerForChainID(big.NewInt(10))
	from, err := ethtypes.Sender(signer, &tx)
	require.NoError(t, err)
	assert.Equal(t, tr.From(), from)
}

func (n *fakeNode) count(method string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, m := range n.methods {
		if m == method {
			c++
		}
	}
	return c
}

func TestTransferRebroadcastsSameTransaction(t *testing.T) {
	node := &fakeNode{sendFailures: 1}
	up := httptest.NewServer(node)
	defer up.Close()

	chains := []config.ChainConfig{{ID: "optimism", ChainID: 10, RPCList: []string{up.URL}}}
	tr, err := NewTransferer(chains, newKey(t), false)
	require.NoError(t, err)

	hash, err := tr.Transfer(context.Background(), transferRequest())
	require.NoError(t, err)

	require.Len(t, node.rawTxs, 2)
	assert.Equal(t, node.rawTxs[0], node.rawTxs[1])
	assert.Equal(t, 1, node.count("eth_getTransactionCount"))

	raw, err := hexutil.Decode(node.rawTxs[0])
	require.NoError(t, err)
	var tx ethtypes.Transaction
	require.NoError(t, tx.UnmarshalBinary(raw))
	assert.Equal(t, tx.Hash().Hex(), hash)
}

func TestTransferBroadcastFailureIsPermanent(t *testing.T) {
	node := &fakeNode{sendFailures: config.EVM_RETRIES}
	up := httptest.NewServer(node)
	defer up.Close()

	chains := []config.ChainConfig{{ID: "optimism", ChainID: 10, RPCList: []string{up.URL}}}
	tr, err := NewTransferer(chains, newKey(t), false)
	require.NoError(t, err)

	_, err = tr.Transfer(context.Background(), transferRequest())
	assert.ErrorIs(t, err, ErrPermanent)
	assert.Equal(t, 1, node.count("eth_getTransactionCount"))
	require.Len(t, node.rawTxs, config.EVM_RETRIES)
	for _, raw := range node.rawTxs {
		assert.Equal(t, node.rawTxs[0], raw)
	}
}

func TestTransferAlreadyKnownCountsAsSent(t *testing.T) {
	node := &fakeNode{sendError: "already known"}
	up := httptest.NewServer(node)
	defer up.Close()

	chains := []config.ChainConfig{{ID: "optimism", ChainID: 10, RPCList: []string{up.URL}}}
	tr, err := NewTransferer(chains, newKey(t), false)
	require.NoError(t, err)

	hash, err := tr.Transfer(context.Background(), transferRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, hash)
	assert.Len(t, node.rawTxs, 1)
}

func TestTransferValidation(t *testing.T) {
	tr, err := NewTransferer(config.EVMChains, newKey(t), false)
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*types.TransferRequest)
		want   error
	}{
		{"bad recipient", func(r *types.TransferRequest) { r.Recipient = "0x1234" }, ErrInvalidRecipient},
		{"empty recipient", func(r *types.TransferRequest) { r.Recipient = "" }, ErrInvalidRecipient},
		{"bad token", func(r *types.TransferRequest) { r.TokenAddress = "usdc" }, ErrInvalidToken},
		{"nil amount", func(r *types.TransferRequest) { r.AmountAtomic = nil }, ErrInvalidAmount},
		{"zero amount", func(r *types.TransferRequest) { r.AmountAtomic = big.NewInt(0) }, ErrInvalidAmount},
		{"unknown chain", func(r *types.TransferRequest) { r.ChainID = 999999 }, ErrUnknownChain},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := transferRequest()
			tt.mutate(&req)
			_, err := tr.Transfer(context.Background(), req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestNewTransfererKeyErrors(t *testing.T) {
	_, err := NewTransferer(config.EVMChains, "", false)
	assert.ErrorIs(t, err, ErrMissingKey)

	_, err = NewTransferer(config.EVMChains, "not-a-key", false)
	assert.ErrorIs(t, err, ErrPermanent)
}

func TestWithClientRetriesAndStopsOnPermanent(t *testing.T) {
	node := &fakeNode{}
	up := httptest.NewServer(node)
	defer up.Close()
	chains := []config.ChainConfig{{ID: "local", ChainID: 31337, RPCList: []string{up.URL}}}

	calls := 0
	_, err := WithClient(context.Background(), chains, 31337, func(*ethclient.Client) (int, error) {
		calls++
		return 0, errors.New("flaky")
	})
	assert.Error(t, err)
	assert.Equal(t, config.EVM_RETRIES, calls)

	calls = 0
	_, err = WithClient(context.Background(), chains, 31337, func(*ethclient.Client) (int, error) {
		calls++
		return 0, errors.Wrap(ErrPermanent, "reverted")
	})
	assert.ErrorIs(t, err, ErrPermanent)
	assert.Equal(t, 1, calls)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = WithClient(ctx, chains, 31337, func(*ethclient.Client) (int, error) { return 1, nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBalance(t *testing.T) {
	node := &fakeNode{}
	up := httptest.NewServer(node)
	defer up.Close()

	chains := []config.ChainConfig{{
		ID: "optimism", ChainID: 10, RPCList: []string{up.URL},
		Stablecoins: map[types.StableSymbol]config.StablecoinConfig{
			types.StableUSDC: {Symbol: types.StableUSDC, Address: tokenAddress, Decimals: 6},
		},
	}}
	tr, err := NewTransferer(chains, newKey(t), false)
	require.NoError(t, err)

	balance, err := tr.Balance(context.Background(), 10, types.StableUSDC)
	require.NoError(t, err)
	assert.Equal(t, "1.234567", balance.String())

	_, err = tr.Balance(context.Background(), 10, types.StableUSDT)
	assert.ErrorIs(t, err, ErrUnsupportedToken)

	_, err = tr.Balance(context.Background(), 1, types.StableUSDC)
	assert.ErrorIs(t, err, ErrUnknownChain)
}
