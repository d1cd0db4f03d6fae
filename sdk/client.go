package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"gonuorbit/config"
	"gonuorbit/metrics"
	"gonuorbit/types"
)

// Client talks to the NuOrbit remote session API and runs payment flows against it.
type Client struct {
	baseURL               string
	httpClient            Doer
	defaultHeaders        map[string]string
	routes                config.Routes
	chains                []config.ChainConfig
	directReceivers       map[string]string
	defaultProviderCallID string
}

func NewClient(opts Options) (*Client, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.DefaultRequestTimeout}
	}

	headers := make(map[string]string, len(opts.DefaultHeaders)+1)
	for k, v := range opts.DefaultHeaders {
		headers[k] = v
	}
	headers[config.API_KEY_HEADER] = apiKey

	receivers := make(map[string]string, len(opts.DirectReceivers))
	for k, v := range opts.DirectReceivers {
		receivers[k] = v
	}

	return &Client{
		baseURL:               normalizeBaseURL(opts.BaseURL),
		httpClient:            httpClient,
		defaultHeaders:        headers,
		routes:                opts.Routes.Merge(config.DefaultRoutes),
		chains:                opts.Chains,
		directReceivers:       receivers,
		defaultProviderCallID: opts.DefaultProviderCallID,
	}, nil
}

// SupportedChains lists the chains a payer can use for the stablecoin and flow mode.
func (c *Client) SupportedChains(stable types.StableSymbol, flow types.FlowMode) []config.SupportedChain {
	return config.ListSupportedChains(config.ChainQuery{
		Stable:          stable,
		Flow:            flow.OrDefault(),
		DirectReceivers: c.directReceivers,
		Chains:          c.chains,
	})
}

func (c *Client) CreateSession(ctx context.Context, req SessionRequest) (*SessionResponse, error) {
	return c.post(ctx, "session", c.routes.Session, req)
}

type tokenRequest struct {
	SessionToken string `json:"sessionToken"`
	TxHash       string `json:"txHash,omitempty"`
}

func (c *Client) ConfirmTransfer(ctx context.Context, sessionToken, txHash string) (*SessionResponse, error) {
	return c.post(ctx, "transfer", c.routes.Transfer, tokenRequest{SessionToken: sessionToken, TxHash: txHash})
}

func (c *Client) ExecuteSession(ctx context.Context, sessionToken string) (*SessionResponse, error) {
	return c.post(ctx, "execute", c.routes.Execute, tokenRequest{SessionToken: sessionToken})
}

func (c *Client) FetchProof(ctx context.Context, sessionToken string) (*SessionResponse, error) {
	return c.post(ctx, "proof", c.routes.Proof, tokenRequest{SessionToken: sessionToken})
}

func (c *Client) FetchDirectProof(ctx context.Context, sessionToken, txHash string) (*SessionResponse, error) {
	return c.post(ctx, "direct-proof", c.routes.DirectProof, tokenRequest{SessionToken: sessionToken, TxHash: txHash})
}

func (c *Client) CompleteSession(ctx context.Context, sessionToken string) (*SessionResponse, error) {
	return c.post(ctx, "complete", c.routes.Complete, tokenRequest{SessionToken: sessionToken})
}

func (c *Client) post(ctx context.Context, op, path string, body any) (res *SessionResponse, err error) {
	started := time.Now()
	defer func() {
		metrics.RecordRemoteCall(op, err, time.Since(started))
	}()

	url := c.resolveURL(path)
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrapf(err, "marshal %s request", op)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrapf(err, "build %s request", op)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.defaultHeaders {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error().Err(err).Str("url", url).Msg("NuOrbit request failed")
		return nil, errors.Wrapf(err, "request to %s", url)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "read response from %s", url)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		data = []byte("{}")
	}
	if !json.Valid(data) {
		return nil, errors.Wrapf(ErrUnparsable, "from %s", url)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{URL: url, StatusCode: resp.StatusCode, Message: errorField(data)}
		log.Error().Str("url", url).Int("status", resp.StatusCode).Msg(apiErr.Error())
		return nil, apiErr
	}

	res = &SessionResponse{}
	if err := json.Unmarshal(data, res); err != nil {
		return nil, errors.Wrapf(err, "decode response from %s", url)
	}
	return res, nil
}

// errorField returns the structured "error" string of a JSON object body, if any.
func errorField(data []byte) string {
	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return ""
	}
	var msg string
	if err := json.Unmarshal(envelope.Error, &msg); err != nil {
		return ""
	}
	return msg
}

func (c *Client) resolveURL(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}
