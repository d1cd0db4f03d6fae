package EVMRPC

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"strings"

	"gonuorbit/config"
	"gonuorbit/types"

	ethav "github.com/KOREAN139/ethereum-address-validator"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const erc20ABI = `[{"constant":true,"inputs":[{"name":"_owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"balance","type":"uint256"}],"payable":false,"stateMutability":"view","type":"function"},{"constant":false,"inputs":[{"name":"_to","type":"address"},{"name":"_value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"payable":false,"stateMutability":"nonpayable","type":"function"}]`

// gas limit for a plain ERC-20 transfer, stablecoins stay well below
const transferGasLimit = uint64(200000)

var (
	ErrPermanent        = errors.New("permanent transfer error")
	ErrInvalidRecipient = errors.Wrap(ErrPermanent, "invalid recipient address")
	ErrInvalidToken     = errors.Wrap(ErrPermanent, "invalid token address")
	ErrInvalidAmount    = errors.Wrap(ErrPermanent, "transfer amount must be positive")
	ErrMissingKey       = errors.Wrap(ErrPermanent, "payer private key is not configured")
	ErrUnsupportedToken = errors.Wrap(ErrPermanent, "stablecoin is not configured on chain")
)

var erc20 abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		panic(err)
	}
	erc20 = parsed
}

// Transferer signs and submits ERC-20 transfers from one payer wallet. Its
// Transfer method satisfies sdk.TransferFunc.
type Transferer struct {
	chains    []config.ChainConfig
	key       *ecdsa.PrivateKey
	from      common.Address
	waitMined bool
}

func NewTransferer(chains []config.ChainConfig, privateKeyHex string, waitMined bool) (*Transferer, error) {
	if privateKeyHex == "" {
		return nil, ErrMissingKey
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, errors.Wrap(ErrPermanent, "error instantiating private key: "+err.Error())
	}
	return &Transferer{
		chains:    chains,
		key:       key,
		from:      crypto.PubkeyToAddress(key.PublicKey),
		waitMined: waitMined,
	}, nil
}

// NewTransfererFromConfig uses the configured chains and EVM wallet.
func NewTransfererFromConfig(cfg *config.Configuration) (*Transferer, error) {
	return NewTransferer(cfg.Chains, cfg.EVM.PrivateKey, cfg.EVM.WaitMined)
}

func (t *Transferer) From() common.Address { return t.from }

// Transfer sends req.AmountAtomic of the token to the recipient and returns
// the transaction hash.
func (t *Transferer) Transfer(ctx context.Context, req types.TransferRequest) (string, error) {
	if err := ethav.Validate(common.HexToAddress(req.Recipient).Hex()); err != nil || !common.IsHexAddress(req.Recipient) {
		return "", errors.Wrapf(ErrInvalidRecipient, "%q", req.Recipient)
	}
	if !common.IsHexAddress(req.TokenAddress) {
		return "", errors.Wrapf(ErrInvalidToken, "%q", req.TokenAddress)
	}
	if req.AmountAtomic == nil || req.AmountAtomic.Sign() <= 0 {
		return "", ErrInvalidAmount
	}

	human := decimal.NewFromBigInt(req.AmountAtomic, -int32(req.Decimals))
	log.Info().
		Int64("chainId", req.ChainID).
		Str("token", req.Symbol).
		Str("recipient", req.Recipient).
		Str("amount", human.String()).
		Msg("Sending stablecoin transfer")

	// signing may be retried freely, nothing has left the process yet
	tx, err := WithClient(ctx, t.chains, req.ChainID, func(client *ethclient.Client) (*ethtypes.Transaction, error) {
		return t.sign(ctx, client, req)
	})
	if err != nil {
		return "", err
	}
	return t.broadcast(ctx, req.ChainID, tx)
}

func (t *Transferer) sign(ctx context.Context, client *ethclient.Client, req types.TransferRequest) (*ethtypes.Transaction, error) {
	nonce, err := client.PendingNonceAt(ctx, t.from)
	if err != nil {
		return nil, errors.Wrap(err, "error getting nonce for wallet")
	}

	gasPrice, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "error getting suggested gas price")
	}

	auth, err := bind.NewKeyedTransactorWithChainID(t.key, big.NewInt(req.ChainID))
	if err != nil {
		return nil, errors.Wrap(ErrPermanent, "error instantiating contract call: "+err.Error())
	}
	auth.Context = ctx
	auth.Nonce = new(big.Int).SetUint64(nonce)
	auth.Value = big.NewInt(0)
	auth.GasLimit = transferGasLimit
	auth.NoSend = true
	if req.ChainID == 1 {
		auth.GasPrice = gasPrice
	} else {
		auth.GasPrice = gasPrice.Mul(gasPrice, big.NewInt(2))
	}

	token := bind.NewBoundContract(common.HexToAddress(req.TokenAddress), erc20, client, client, client)
	tx, err := token.Transact(auth, "transfer", common.HexToAddress(req.Recipient), req.AmountAtomic)
	if err != nil {
		return nil, errors.Wrap(err, "error signing transfer")
	}
	return tx, nil
}

// alreadyKnown reports a node rejecting a rebroadcast of a transaction it already holds.
func alreadyKnown(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already known") || strings.Contains(msg, "known transaction")
}

// broadcast sends the one signed transaction, rebroadcasting only that same
// transaction when an endpoint fails. A failure that survives every endpoint
// is permanent since the node may have accepted the transaction anyway.
func (t *Transferer) broadcast(ctx context.Context, chainID int64, tx *ethtypes.Transaction) (string, error) {
	hash := tx.Hash().Hex()

	_, err := WithClient(ctx, t.chains, chainID, func(client *ethclient.Client) (struct{}, error) {
		err := client.SendTransaction(ctx, tx)
		if err != nil && !alreadyKnown(err) {
			return struct{}{}, err
		}
		return struct{}{}, nil
	})
	if err != nil {
		return "", errors.Wrapf(ErrPermanent, "broadcasting transfer %s: %v", hash, err)
	}
	log.Info().Str("txHash", hash).Uint64("nonce", tx.Nonce()).Msg("Transfer submitted")

	if !t.waitMined {
		return hash, nil
	}
	receipt, err := WithClient(ctx, t.chains, chainID, func(client *ethclient.Client) (*ethtypes.Receipt, error) {
		return bind.WaitMined(ctx, client, tx)
	})
	if err != nil {
		// submitted already, never resend
		return "", errors.Wrapf(ErrPermanent, "waiting for transfer %s: %v", hash, err)
	}
	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		return "", errors.Wrapf(ErrPermanent, "transfer %s reverted", hash)
	}
	return hash, nil
}

// Balance reads the payer wallet's stablecoin balance on one chain, in token
// units.
func (t *Transferer) Balance(ctx context.Context, chainID int64, stable types.StableSymbol) (decimal.Decimal, error) {
	chain, ok := config.FindChain(t.chains, chainID)
	if !ok {
		return decimal.Zero, errors.Wrapf(ErrUnknownChain, "chain id %d", chainID)
	}
	coin, ok := chain.Stablecoins[stable]
	if !ok {
		return decimal.Zero, errors.Wrapf(ErrUnsupportedToken, "%s on %s", stable, chain.ID)
	}

	balance, err := WithClient(ctx, t.chains, chainID, func(client *ethclient.Client) (*big.Int, error) {
		token := bind.NewBoundContract(common.HexToAddress(coin.Address), erc20, client, client, client)
		var out []interface{}
		if err := token.Call(&bind.CallOpts{Context: ctx}, &out, "balanceOf", t.from); err != nil {
			return nil, err
		}
		if len(out) != 1 {
			return nil, errors.Errorf("balanceOf returned %d values", len(out))
		}
		v, ok := out[0].(*big.Int)
		if !ok {
			return nil, errors.Errorf("balanceOf returned %T", out[0])
		}
		return v, nil
	})
	if err != nil {
		log.Error().Err(err).Int64("chainId", chainID).Str("token", string(stable)).Msg("Error getting balance")
		return decimal.Zero, err
	}
	return decimal.NewFromBigInt(balance, -int32(coin.Decimals)), nil
}
