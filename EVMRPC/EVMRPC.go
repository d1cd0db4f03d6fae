package EVMRPC

import (
	"context"

	"gonuorbit/config"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var ErrUnknownChain = errors.New("chain is not configured")

// WithClient runs f against the chain's RPC endpoints in order until one call
// succeeds. The list is cycled so a single endpoint is still retried
// config.EVM_RETRIES times.
func WithClient[T any](ctx context.Context, chains []config.ChainConfig, chainID int64, f func(client *ethclient.Client) (T, error)) (res T, err error) {
	chain, ok := config.FindChain(chains, chainID)
	if !ok || len(chain.RPCList) == 0 {
		return res, errors.Wrapf(ErrUnknownChain, "chain id %d", chainID)
	}

	attempts := len(chain.RPCList)
	if attempts < config.EVM_RETRIES {
		attempts = config.EVM_RETRIES
	}

	err = errors.New("no RPC attempt made")
	for i := 0; i < attempts; i++ {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		url := chain.RPCList[i%len(chain.RPCList)]

		var client *ethclient.Client
		client, err = ethclient.DialContext(ctx, url)
		if err != nil {
			log.Warn().Err(err).Str("rpc", url).Msg("Error connecting to RPC")
			continue
		}

		res, err = f(client)
		client.Close()
		if err == nil {
			return
		}
		if errors.Is(err, ErrPermanent) {
			return
		}
		log.Warn().Err(err).Str("rpc", url).Int64("chainId", chainID).Msg("RPC call failed")
	}
	return
}
