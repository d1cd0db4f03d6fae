package config

import (
	"fmt"

	"gonuorbit/types"
)

type StablecoinConfig struct {
	Symbol   types.StableSymbol `yaml:"symbol" json:"symbol"`
	Address  string             `yaml:"address" json:"address"`
	Decimals int                `yaml:"decimals" json:"decimals"`
}

// EVM-chains configs
type ChainConfig struct {
	ID          string                                  `yaml:"id"`
	Label       string                                  `yaml:"label"`
	ChainID     int64                                   `yaml:"chain_id"`
	Testnet     bool                                    `yaml:"testnet"`
	RPCList     []string                                `yaml:"rpc"`
	Stablecoins map[types.StableSymbol]StablecoinConfig `yaml:"stablecoins"`
}

var EVMChains = []ChainConfig{
	{
		ID:      "ethereum",
		Label:   "Ethereum",
		ChainID: 1,
		RPCList: []string{"https://eth.drpc.org", "https://eth.llamarpc.com"},
		Stablecoins: map[types.StableSymbol]StablecoinConfig{
			types.StableUSDC: {Symbol: types.StableUSDC, Address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", Decimals: 6},
			types.StableUSDT: {Symbol: types.StableUSDT, Address: "0xdAC17F958D2ee523a2206206994597C13D831ec7", Decimals: 6},
		},
	},
	{
		ID:      "optimism",
		Label:   "Optimism",
		ChainID: 10,
		RPCList: []string{"https://rpc.ankr.com/optimism", "https://optimism.llamarpc.com", "https://optimism.drpc.org"},
		Stablecoins: map[types.StableSymbol]StablecoinConfig{
			types.StableUSDC: {Symbol: types.StableUSDC, Address: "0x0b2C639c533813f4Aa9D7837cAf62653d097Ff85", Decimals: 6},
			types.StableUSDT: {Symbol: types.StableUSDT, Address: "0x94b008aA00579c1307B0EF2c499aD98a8ce58e58", Decimals: 6},
		},
	},
	{
		ID:      "bnb",
		Label:   "BNB Chain",
		ChainID: 56,
		RPCList: []string{"https://rpc.ankr.com/bsc", "https://bsc.drpc.org", "https://bsc.meowrpc.com"},
		Stablecoins: map[types.StableSymbol]StablecoinConfig{
			types.StableUSDC: {Symbol: types.StableUSDC, Address: "0x8AC76a51cc950d9822D68b83fE1Ad97B32Cd580d", Decimals: 18},
			types.StableUSDT: {Symbol: types.StableUSDT, Address: "0x55d398326f99059fF775485246999027B3197955", Decimals: 18},
		},
	},
	{
		ID:      "arbitrum",
		Label:   "Arbitrum",
		ChainID: 42161,
		RPCList: []string{"https://rpc.ankr.com/arbitrum", "https://arbitrum.llamarpc.com", "https://arbitrum.meowrpc.com"},
		Stablecoins: map[types.StableSymbol]StablecoinConfig{
			types.StableUSDC: {Symbol: types.StableUSDC, Address: "0xaf88d065e77c8cC2239327C5EDb3A432268e5831", Decimals: 6},
			types.StableUSDT: {Symbol: types.StableUSDT, Address: "0xFd086bC7CD5C481DCC9C85ebE478A1C0b69FCbb9", Decimals: 6},
		},
	},
}

// SupportedChain is one chain/stablecoin pair a payer can pay from.
type SupportedChain struct {
	StablecoinConfig
	ID             string `json:"id"`
	ChainID        int64  `json:"chainId"`
	Label          string `json:"label"`
	Testnet        bool   `json:"testnet"`
	DirectReceiver string `json:"directReceiver,omitempty"`
}

type ChainQuery struct {
	Stable          types.StableSymbol
	Flow            types.FlowMode
	DirectReceivers map[string]string
	Chains          []ChainConfig
}

// ListSupportedChains keeps the chains carrying the requested stablecoin; in
// direct-proof mode a chain also needs a direct receiver.
func ListSupportedChains(q ChainQuery) []SupportedChain {
	res := make([]SupportedChain, 0, len(q.Chains))
	for _, chain := range q.Chains {
		stable, ok := chain.Stablecoins[q.Stable]
		if !ok {
			continue
		}
		receiver := q.DirectReceivers[DirectReceiverKey(chain.ChainID, q.Stable)]
		if q.Flow == types.FlowDirectProof && receiver == "" {
			continue
		}
		res = append(res, SupportedChain{
			StablecoinConfig: stable,
			ID:               chain.ID,
			ChainID:          chain.ChainID,
			Label:            chain.Label,
			Testnet:          chain.Testnet,
			DirectReceiver:   receiver,
		})
	}
	return res
}

func DirectReceiverKey(chainID int64, stable types.StableSymbol) string {
	return fmt.Sprintf("%d:%s", chainID, stable)
}

// FindChain looks a chain up by its numeric chain id.
func FindChain(chains []ChainConfig, chainID int64) (ChainConfig, bool) {
	for _, c := range chains {
		if c.ChainID == chainID {
			return c, true
		}
	}
	return ChainConfig{}, false
}
