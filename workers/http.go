package workers

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"gonuorbit/config"
	"gonuorbit/metrics"
	"gonuorbit/workers/handlers"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/rs/zerolog/log"
)

// WorkerShutdown tells the background workers to exit.
var WorkerShutdown atomic.Bool

// NewRouter mounts the API, the checkout relay and, when staticDir is set,
// the checkout frontend.
func NewRouter(env *handlers.Env, staticDir string) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Logger)

	r.Options("/*", CORSHeaders)

	r.Get("/state", handlers.State)
	r.Get("/health", env.HealthCheck)
	r.Handle("/metrics", metrics.Handler())

	r.Get("/chains", env.Chains)
	r.Get("/balance/{chainId}/{stable}", env.BalanceEVM)

	r.Post("/flow", env.RunFlow)
	r.Get("/flow/{runId}/events", handlers.GetRunEvents)

	r.Get("/sessions/{status}", handlers.GetSessionsByStatus)
	r.Get("/session/{id}", handlers.GetSession)

	if env.Relay != nil {
		env.Relay.Routes(r)
		r.Post("/checkout", env.StartCheckout)
		r.Get("/checkout/{window}", env.CheckoutResult)
		r.Delete("/checkout/{window}", env.CancelCheckout)
	}

	if staticDir != "" {
		r.Get("/*", StaticApp(staticDir))
	}
	return r
}

// StaticApp serves the single page frontend; unknown paths and directories
// fall back to index.html so there is no directory listing.
func StaticApp(filesDir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filePath := filepath.Join(filesDir, filepath.Clean("/"+r.URL.Path))

		fileInfo, err := os.Stat(filePath)
		if err != nil || fileInfo.IsDir() {
			filePath = filepath.Join(filesDir, "index.html")
			fileInfo, err = os.Stat(filePath)
			if err != nil {
				http.NotFound(w, r)
				return
			}
		}

		file, err := os.Open(filePath)
		if err != nil {
			http.Error(w, "unable to open", http.StatusInternalServerError)
			return
		}
		defer file.Close()

		http.ServeContent(w, r, file.Name(), fileInfo.ModTime(), file)
	}
}

// Worker_HTTP serves handler until SIGINT/SIGTERM, then shuts down gracefully
// and flags the other workers to stop.
func Worker_HTTP(cfg *config.Configuration, handler http.Handler) {
	log.Info().Str("listen", cfg.Server.Listen).Bool("ssl", cfg.Server.UseSSL).Msg("Starting HTTP service")

	server := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if cfg.Server.UseSSL {
		cert, err := tls.LoadX509KeyPair("certchain.pem", "privatekey.pem")
		if err != nil {
			log.Fatal().Err(err).Msg("error loading TLS certificate")
		}
		server.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		var err error
		if cfg.Server.UseSSL {
			err = server.ListenAndServeTLS("", "")
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("error listening")
		}
	}()
	log.Info().Msg("HTTP service started")

	<-done
	log.Info().Msg("HTTP service stopped")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("HTTP service shutdown error")
	}
	log.Info().Msg("HTTP service shutdown normal")

	// send signal to other threads/workers to exit
	WorkerShutdown.Store(true)
}

func CORSHeaders(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, GET, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, Origin, X-Requested-With, "+config.API_KEY_HEADER)
}
