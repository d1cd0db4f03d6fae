package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"gonuorbit/EVMRPC"
	"gonuorbit/config"
	"gonuorbit/redis"
	"gonuorbit/relay"
	"gonuorbit/sdk"
	"gonuorbit/workers"
	"gonuorbit/workers/handlers"
)

func main() {
	f, err := os.OpenFile(fmt.Sprintf("logs/log_%s.txt", time.Now().Format("2006-01-02")), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatal().Err(err).Msg("error opening log file for writing")
	}
	defer f.Close()

	log.Logger = log.Output(io.MultiWriter(f, zerolog.ConsoleWriter{Out: os.Stderr}))
	log.Info().Msg("Starting NuOrbit checkout service")

	config.Init()

	// connect to Redis, without persistence do not continue
	redis.Init(config.Config.Server.RedisHost, config.Config.Server.RedisPort)
	if err := redis.Ping(); err != nil {
		log.Fatal().Err(err).Msg("Redis unreachable")
	}

	client, err := sdk.NewClient(sdk.OptionsFromConfig(&config.Config))
	if err != nil {
		log.Fatal().Err(err).Msg("Error creating NuOrbit client")
	}

	var wallet handlers.Wallet
	if config.Config.EVM.PrivateKey != "" {
		transferer, err := EVMRPC.NewTransfererFromConfig(&config.Config)
		if err != nil {
			log.Fatal().Err(err).Msg("Error loading payer wallet")
		}
		log.Info().Str("address", transferer.From().Hex()).Msg("Payer wallet loaded")
		wallet = transferer
	}

	// the server cannot open browser windows, it hands the URL to the caller
	rl := relay.New(config.Config.Server.PublicOrigin, func(url string) error {
		log.Info().Str("url", url).Msg("Checkout page ready")
		return nil
	})

	env := handlers.NewEnv(&config.Config, client, wallet, redis.NewJournal(), redis.Ping, rl)

	// two worker threads:
	// * journal statistics for the metrics endpoint
	// * static app, relay and API serving HTTP(S) server (main worker thread)
	go workers.Worker_journalStats()

	workers.Worker_HTTP(&config.Config, workers.NewRouter(env, "app"))
}
