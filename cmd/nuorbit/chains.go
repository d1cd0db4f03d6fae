package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"gonuorbit/config"
	"gonuorbit/types"
)

func newChainsCmd(cfgPath *string) *cobra.Command {
	var stable, flow string

	cmd := &cobra.Command{
		Use:   "chains",
		Short: "List the chains a payer can pay from",
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				log.Fatal().Err(err).Msg("Cannot load configuration")
			}
			if err := printChains(cmd.OutOrStdout(), cfg, stable, flow); err != nil {
				log.Fatal().Err(err).Msg("Failed to list chains")
			}
		},
	}

	cmd.Flags().StringVarP(&stable, "stable", "s", string(types.StableUSDC), "Stablecoin symbol (USDC or USDT)")
	cmd.Flags().StringVarP(&flow, "flow", "f", "", "Flow mode (cross-chain or direct-proof)")
	return cmd
}

func parseStable(s string) (types.StableSymbol, error) {
	st := types.StableSymbol(strings.ToUpper(s))
	if st != types.StableUSDC && st != types.StableUSDT {
		return "", errors.Errorf("unsupported stablecoin %q", s)
	}
	return st, nil
}

func parseFlow(s string) (types.FlowMode, error) {
	if s == "" {
		return "", nil
	}
	mode, ok := types.ParseFlowMode(s)
	if !ok {
		return "", errors.Errorf("unknown flow mode %q", s)
	}
	return mode, nil
}

func printChains(w io.Writer, cfg *config.Configuration, stable, flow string) error {
	st, err := parseStable(stable)
	if err != nil {
		return err
	}
	mode, err := parseFlow(flow)
	if err != nil {
		return err
	}

	chains := config.ListSupportedChains(config.ChainQuery{
		Stable:          st,
		Flow:            mode,
		DirectReceivers: cfg.DirectReceivers,
		Chains:          cfg.Chains,
	})

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCHAIN\tLABEL\tTOKEN\tDECIMALS\tRECEIVER")
	for _, c := range chains {
		receiver := c.DirectReceiver
		if receiver == "" {
			receiver = "-"
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%d\t%s\n", c.ID, c.ChainID, c.Label, c.Address, c.Decimals, receiver)
	}
	return tw.Flush()
}
