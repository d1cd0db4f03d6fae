package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"gonuorbit/EVMRPC"
	"gonuorbit/config"
	"gonuorbit/metrics"
	"gonuorbit/sdk"
	"gonuorbit/types"
)

type runFlags struct {
	chainID        int64
	price          float64
	payTo          string
	stable         string
	flow           string
	description    string
	participant    string
	providerCallID string
	txHash         string
}

func newRunCmd(cfgPath *string) *cobra.Command {
	var f runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one payment session from creation to completion",
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				log.Fatal().Err(err).Msg("Cannot load configuration")
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := runFlow(ctx, cmd.OutOrStdout(), cfg, f); err != nil {
				log.Fatal().Err(err).Msg("Payment flow failed")
			}
		},
	}

	cmd.Flags().Int64Var(&f.chainID, "chain-id", 10, "Source chain id")
	cmd.Flags().Float64VarP(&f.price, "price", "p", 0, "Price in USD")
	cmd.Flags().StringVar(&f.payTo, "pay-to", "", "Merchant address")
	cmd.Flags().StringVarP(&f.stable, "stable", "s", string(types.StableUSDC), "Stablecoin symbol (USDC or USDT)")
	cmd.Flags().StringVarP(&f.flow, "flow", "f", "", "Flow mode (cross-chain or direct-proof)")
	cmd.Flags().StringVarP(&f.description, "description", "d", "", "Payment description")
	cmd.Flags().StringVar(&f.participant, "participant", "", "Participant address")
	cmd.Flags().StringVar(&f.providerCallID, "provider-call", "", "Provider call id for cross-chain execution")
	cmd.Flags().StringVar(&f.txHash, "tx-hash", "", "Use an already submitted transfer instead of paying from the configured wallet")
	_ = cmd.MarkFlagRequired("price")
	_ = cmd.MarkFlagRequired("pay-to")
	return cmd
}

// sessionRequest resolves the stablecoin of the chosen chain from the configuration.
func sessionRequest(cfg *config.Configuration, f runFlags) (sdk.SessionRequest, error) {
	st, err := parseStable(f.stable)
	if err != nil {
		return sdk.SessionRequest{}, err
	}
	mode, err := parseFlow(f.flow)
	if err != nil {
		return sdk.SessionRequest{}, err
	}
	chain, ok := config.FindChain(cfg.Chains, f.chainID)
	if !ok {
		return sdk.SessionRequest{}, errors.Errorf("chain %d is not configured", f.chainID)
	}
	token, ok := chain.Stablecoins[st]
	if !ok {
		return sdk.SessionRequest{}, errors.Errorf("%s is not available on %s", st, chain.Label)
	}

	return sdk.SessionRequest{
		Network:            chain.ID,
		ChainLabel:         chain.Label,
		ChainID:            chain.ChainID,
		PriceUSD:           f.price,
		PayTo:              f.payTo,
		Description:        f.description,
		AssetSymbol:        string(token.Symbol),
		AssetDecimals:      token.Decimals,
		AssetAddress:       token.Address,
		ParticipantAddress: f.participant,
		FlowMode:           mode,
		StableSymbol:       st,
	}, nil
}

func runFlow(ctx context.Context, out io.Writer, cfg *config.Configuration, f runFlags) error {
	req, err := sessionRequest(cfg, f)
	if err != nil {
		return err
	}

	client, err := sdk.NewClient(sdk.OptionsFromConfig(cfg))
	if err != nil {
		return err
	}

	opts := sdk.RunFlowOptions{
		SessionRequest: req,
		TransferTxHash: f.txHash,
		ProviderCallID: f.providerCallID,
		Events:         sdk.MultiSink{&metrics.FlowSink{}, sdk.EventSinkFunc(func(evt types.FlowEvent) { printEvent(out, evt) })},
		StepDelay:      cfg.SDK.StepDelay,
		ProofDelay:     cfg.SDK.ProofDelay,
	}
	if f.txHash == "" && cfg.EVM.PrivateKey != "" {
		wallet, err := EVMRPC.NewTransfererFromConfig(cfg)
		if err != nil {
			return err
		}
		opts.Transfer = wallet.Transfer
	}

	res, err := client.RunFlow(ctx, opts)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func printEvent(w io.Writer, evt types.FlowEvent) {
	line := fmt.Sprintf("%s %-20s", evt.Timestamp.Format("15:04:05.000"), evt.Type)
	switch evt.Type {
	case types.EventFlowStarted:
		line += " mode=" + string(evt.Mode)
	case types.EventTransferRequested:
		if evt.Transfer != nil {
			line += fmt.Sprintf(" chain=%d amount=%s %s to=%s", evt.Transfer.ChainID, evt.Transfer.AmountAtomic, evt.Transfer.Symbol, evt.Transfer.Recipient)
		}
	case types.EventTransferSubmitted:
		line += " tx=" + evt.TxHash
	case types.EventFlowError:
		if evt.Err != nil {
			line += " error=" + evt.Err.Error()
		}
	}
	if evt.Session != nil {
		line += " status=" + string(evt.Session.Status)
	}
	fmt.Fprintln(w, line)
}
