package config

import (
	"os"
	"strconv"
	"strings"

	ethav "github.com/KOREAN139/ethereum-address-validator"
	"github.com/ethereum/go-ethereum/common"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	yaml "gopkg.in/yaml.v2"

	"gonuorbit/types"
)

// reading config error is fatal, and exists main thread
func processError(err error) {
	log.Error().Err(err).Msg("Cannot load configuration")
	os.Exit(2)
}

func readFile(path string, cfg *Configuration) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open config file")
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		return errors.Wrapf(err, "decode %s", path)
	}
	return nil
}

func readEnv(cfg *Configuration) error {
	return errors.Wrap(envconfig.Process(ENV_PREFIX, cfg), "read environment")
}

// Load reads the yaml file at path (skipped when path is empty), overlays
// NUORBIT_* environment variables and fills defaults.
func Load(path string) (*Configuration, error) {
	cfg := &Configuration{}
	if path != "" {
		if err := readFile(path, cfg); err != nil {
			return nil, err
		}
	}
	if err := readEnv(cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Init() {
	cfg, err := Load("config.yml")
	if err != nil {
		processError(err)
	}
	Config = *cfg
}

func (c *Configuration) applyDefaults() {
	c.SDK.Routes = c.SDK.Routes.Merge(DefaultRoutes)
	if c.SDK.StepDelay == 0 {
		c.SDK.StepDelay = DefaultStepDelay
	}
	if c.SDK.ProofDelay == 0 {
		c.SDK.ProofDelay = DefaultProofDelay
	}
	if c.SDK.RequestTimeout == 0 {
		c.SDK.RequestTimeout = DefaultRequestTimeout
	}
	if c.Server.Listen == "" {
		if c.Server.UseSSL {
			c.Server.Listen = ":443"
		} else {
			c.Server.Listen = ":8080"
		}
	}
	if c.Server.PublicOrigin == "" {
		scheme := "http://"
		if c.Server.UseSSL {
			scheme = "https://"
		}
		host := c.Server.Listen
		if strings.HasPrefix(host, ":") {
			host = "localhost" + host
		}
		c.Server.PublicOrigin = scheme + host
	}
	if c.Server.RedisPort == 0 {
		c.Server.RedisPort = 6379
	}
	if len(c.Chains) == 0 {
		c.Chains = EVMChains
	}
}

// Validate checks the parts of the configuration that would otherwise only fail mid-flow.
func (c *Configuration) Validate() error {
	for key, receiver := range c.DirectReceivers {
		if _, _, err := ParseDirectReceiverKey(key); err != nil {
			return err
		}
		if err := ethav.Validate(common.HexToAddress(receiver).Hex()); err != nil || !common.IsHexAddress(receiver) {
			return errors.Errorf("direct receiver %s has invalid address %q", key, receiver)
		}
	}

	if c.SDK.DefaultProviderCallID != "" && len(c.ProviderCalls) > 0 {
		if _, ok := FindProviderCall(c.ProviderCalls, c.SDK.DefaultProviderCallID); !ok {
			return errors.Errorf("default provider call %q is not among configured provider calls", c.SDK.DefaultProviderCallID)
		}
	}
	return nil
}

// ParseDirectReceiverKey splits a "<chainId>:<STABLE>" direct receiver key.
func ParseDirectReceiverKey(key string) (int64, types.StableSymbol, error) {
	chainPart, stablePart, ok := strings.Cut(key, ":")
	if !ok {
		return 0, "", errors.Errorf("direct receiver key %q is not <chainId>:<stable>", key)
	}
	chainID, err := strconv.ParseInt(chainPart, 10, 64)
	if err != nil {
		return 0, "", errors.Wrapf(err, "direct receiver key %q", key)
	}
	return chainID, types.StableSymbol(stablePart), nil
}
