package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"gonuorbit/checkout"
	"gonuorbit/relay"
	"gonuorbit/types"
	"gonuorbit/workers"
)

type checkoutFlags struct {
	listen      string
	appDir      string
	baseURL     string
	price       string
	payTo       string
	description string
	network     string
	stable      string
	flow        string
	noBrowser   bool
	timeout     time.Duration
}

func newCheckoutCmd() *cobra.Command {
	var f checkoutFlags

	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Open the checkout page in a browser and wait for its outcome",
		Run: func(cmd *cobra.Command, args []string) {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			opener := openBrowser
			if f.noBrowser {
				opener = func(url string) error {
					_, err := fmt.Fprintln(cmd.ErrOrStderr(), "Open this page to pay:", url)
					return err
				}
			}

			res, err := runCheckout(ctx, f, opener)
			if err != nil {
				log.Fatal().Err(err).Msg("Checkout failed")
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(res); err != nil {
				log.Fatal().Err(err).Msg("Cannot print checkout result")
			}
		},
	}

	cmd.Flags().StringVarP(&f.listen, "listen", "l", "127.0.0.1:0", "Address of the local relay server")
	cmd.Flags().StringVar(&f.appDir, "app", "app", "Directory of the checkout frontend served next to the relay, empty disables it")
	cmd.Flags().StringVar(&f.baseURL, "base-url", "", "Checkout page host, defaults to the relay server")
	cmd.Flags().StringVarP(&f.price, "price", "p", "", "Price in USD")
	cmd.Flags().StringVar(&f.payTo, "pay-to", "", "Merchant address")
	cmd.Flags().StringVarP(&f.description, "description", "d", "", "Payment description")
	cmd.Flags().StringVarP(&f.network, "network", "n", "", "Preselected network")
	cmd.Flags().StringVarP(&f.stable, "stable", "s", "", "Preselected stablecoin (USDC or USDT)")
	cmd.Flags().StringVarP(&f.flow, "flow", "f", "", "Flow mode (cross-chain or direct-proof)")
	cmd.Flags().BoolVar(&f.noBrowser, "no-browser", false, "Print the checkout URL instead of opening a browser")
	cmd.Flags().DurationVarP(&f.timeout, "timeout", "t", 15*time.Minute, "Give up waiting after this long")
	return cmd
}

// runCheckout serves the relay on a local listener, launches the checkout
// through opener and waits for the settled result.
func runCheckout(ctx context.Context, f checkoutFlags, opener relay.Opener) (types.CheckoutResult, error) {
	mode, err := parseFlow(f.flow)
	if err != nil {
		return types.CheckoutResult{}, err
	}

	ln, err := net.Listen("tcp", f.listen)
	if err != nil {
		return types.CheckoutResult{}, errors.Wrap(err, "listen")
	}

	rl := relay.New("http://"+ln.Addr().String(), opener)
	r := chi.NewRouter()
	rl.Routes(r)
	if f.appDir != "" {
		r.Get("/*", workers.StaticApp(f.appDir))
	}

	server := &http.Server{Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("Relay server stopped")
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	h, err := checkout.Launch(rl, checkout.Options{
		BaseURL:        f.baseURL,
		Price:          checkout.PriceText(f.price),
		PayTo:          f.payTo,
		Description:    f.description,
		PrefillNetwork: f.network,
		PrefillStable:  f.stable,
		FlowMode:       mode,
		OnPopupBlocked: func() {
			log.Warn().Msg("Could not open the checkout page, rerun with --no-browser")
		},
	})
	if err != nil {
		return types.CheckoutResult{}, err
	}
	defer h.Close()

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}
	return h.Result(ctx)
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}
