package main

import (
	"io/fs"
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"gonuorbit/config"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath string
	var verbose bool

	cmd := &cobra.Command{
		Use:   "nuorbit",
		Short: "NuOrbit checkout and payment flow tools",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
			if verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
	}
	cmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yml", "Configuration file, NUORBIT_* variables override it")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")

	cmd.AddCommand(newChainsCmd(&cfgPath))
	cmd.AddCommand(newRunCmd(&cfgPath))
	cmd.AddCommand(newCheckoutCmd())
	return cmd
}

// loadConfig falls back to environment-only configuration when the file is missing.
func loadConfig(path string) (*config.Configuration, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Debug().Str("path", path).Msg("No config file, using environment only")
		return config.Load("")
	}
	return cfg, err
}
