package config

import (
	"time"
)

type Configuration struct {
	// NuOrbit API access
	SDK struct {
		APIKey                string            `yaml:"api_key" envconfig:"API_KEY"`
		BaseURL               string            `yaml:"base_url" envconfig:"BASE_URL"`
		DefaultHeaders        map[string]string `yaml:"default_headers" envconfig:"DEFAULT_HEADERS"`
		DefaultProviderCallID string            `yaml:"default_provider_call_id" envconfig:"DEFAULT_PROVIDER_CALL_ID"`
		Routes                Routes            `yaml:"routes"`
		StepDelay             time.Duration     `yaml:"step_delay" envconfig:"STEP_DELAY"`
		ProofDelay            time.Duration     `yaml:"proof_delay" envconfig:"PROOF_DELAY"`
		RequestTimeout        time.Duration     `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT"`
	} `yaml:"sdk"`
	// Server config
	Server struct {
		UseSSL       bool   `yaml:"ssl" envconfig:"SSL"`
		Listen       string `yaml:"listen" envconfig:"LISTEN"`
		PublicOrigin string `yaml:"public_origin" envconfig:"PUBLIC_ORIGIN"`
		RedisPort    int    `yaml:"redis_port" envconfig:"REDIS_PORT"`
		RedisHost    string `yaml:"redis_host" envconfig:"REDIS_HOST"`
	} `yaml:"server"`
	// payer wallet used by the transfer capability
	EVM struct {
		PublicAddress string `yaml:"address" envconfig:"ADDRESS"`
		// important private stuff
		PrivateKey string `yaml:"private_key" envconfig:"PRIVATE_KEY"`
		WaitMined  bool   `yaml:"wait_mined" envconfig:"WAIT_MINED"`
	} `yaml:"EVM"`

	Chains          []ChainConfig          `yaml:"chains" ignored:"true"`
	DirectReceivers map[string]string      `yaml:"direct_receivers" envconfig:"DIRECT_RECEIVERS"`
	ProviderCalls   []ProviderCallTemplate `yaml:"provider_calls" ignored:"true"`
}

var Config Configuration

const ENV_PREFIX = "NUORBIT"

// default pacing between sequential API calls
const (
	DefaultStepDelay      = 400 * time.Millisecond
	DefaultProofDelay     = 900 * time.Millisecond
	DefaultRequestTimeout = 30 * time.Second
)

// maximum number of EVM RPC retries
const EVM_RETRIES = 3

const API_KEY_HEADER = "X-NUORBIT-API-KEY"

// Routes are the remote session API paths, relative to the SDK base URL.
type Routes struct {
	Session     string `yaml:"session" envconfig:"SESSION"`
	Transfer    string `yaml:"transfer" envconfig:"TRANSFER"`
	Execute     string `yaml:"execute" envconfig:"EXECUTE"`
	Proof       string `yaml:"proof" envconfig:"PROOF"`
	DirectProof string `yaml:"direct_proof" envconfig:"DIRECT_PROOF"`
	Complete    string `yaml:"complete" envconfig:"COMPLETE"`
}

var DefaultRoutes = Routes{
	Session:     "/api/demo/nuorbit/session",
	Transfer:    "/api/demo/nuorbit/transfer",
	Execute:     "/api/demo/nuorbit/execute",
	Proof:       "/api/demo/nuorbit/proof",
	DirectProof: "/api/demo/nuorbit/direct-proof",
	Complete:    "/api/demo/nuorbit/complete",
}

// Merge fills every empty route from base.
func (r Routes) Merge(base Routes) Routes {
	pick := func(v, def string) string {
		if v == "" {
			return def
		}
		return v
	}
	return Routes{
		Session:     pick(r.Session, base.Session),
		Transfer:    pick(r.Transfer, base.Transfer),
		Execute:     pick(r.Execute, base.Execute),
		Proof:       pick(r.Proof, base.Proof),
		DirectProof: pick(r.DirectProof, base.DirectProof),
		Complete:    pick(r.Complete, base.Complete),
	}
}

// RedisStatusSets maps each session status to the redis set holding snapshot keys in that status.
var RedisStatusSets = map[string]string{
	"awaiting-transfer":  "nuorbit:awaiting-transfer",
	"transfer-confirmed": "nuorbit:transfer-confirmed",
	"executed":           "nuorbit:executed",
	"proof-ready":        "nuorbit:proof-ready",
	"completed":          "nuorbit:completed",
}
