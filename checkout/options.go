package checkout

import (
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"gonuorbit/types"
)

const (
	DefaultPath         = "/demo/checkout"
	DefaultWindowName   = "nuorbit-checkout"
	DefaultPollInterval = 600 * time.Millisecond
)

var DefaultWindowFeatures = strings.Join([]string{"popup=yes", "resizable=yes", "width=420", "height=720", "noopener=yes"}, ",")

var (
	ErrNoHost         = errors.New("NuOrbit checkout launcher requires a host window")
	ErrInvalidBaseURL = errors.New("invalid baseUrl provided to NuOrbit checkout launcher")
	ErrInvalidPrice   = errors.New("priceUsd must be a finite number")
	ErrPopupBlocked   = errors.New("NuOrbit checkout popup was blocked by the browser")
)

// Price is either a number or verbatim text; the zero value means no price.
type Price struct {
	amount *float64
	text   string
}

func USD(amount float64) Price { return Price{amount: &amount} }

func PriceText(text string) Price { return Price{text: text} }

func (p Price) param() (string, error) {
	if p.amount == nil {
		return p.text, nil
	}
	if math.IsInf(*p.amount, 0) || math.IsNaN(*p.amount) {
		return "", ErrInvalidPrice
	}
	return decimal.NewFromFloat(*p.amount).String(), nil
}

type Options struct {
	// BaseURL hosts the checkout page, defaults to the host's origin.
	// Relative values resolve against the host location.
	BaseURL string
	// Path of the checkout route, defaults to DefaultPath.
	Path           string
	WindowName     string
	WindowFeatures string

	Price          Price
	PayTo          string
	Description    string
	PrefillNetwork string
	// PrefillStable preselects a stablecoin symbol (USDC or USDT).
	PrefillStable string
	FlowMode      types.FlowMode

	// TargetOrigin overrides the expected sender origin, "*" accepts any.
	TargetOrigin   string
	OnPopupBlocked func()

	// PollInterval of the closure check, defaults to DefaultPollInterval.
	PollInterval time.Duration
}

func (o *Options) withDefaults() Options {
	res := *o
	if res.Path == "" {
		res.Path = DefaultPath
	}
	if res.WindowName == "" {
		res.WindowName = DefaultWindowName
	}
	if res.WindowFeatures == "" {
		res.WindowFeatures = DefaultWindowFeatures
	}
	if res.PollInterval <= 0 {
		res.PollInterval = DefaultPollInterval
	}
	return res
}

func resolveBase(location, baseURL string) (*url.URL, error) {
	loc, err := url.Parse(location)
	if err != nil || loc.Scheme == "" || loc.Host == "" {
		return nil, errors.Wrapf(ErrNoHost, "host location %q", location)
	}
	if baseURL == "" {
		return &url.URL{Scheme: loc.Scheme, Host: loc.Host, Path: "/"}, nil
	}

	ref, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidBaseURL, "%s", baseURL)
	}
	base := loc.ResolveReference(ref)
	if base.Scheme == "" || base.Host == "" {
		return nil, errors.Wrapf(ErrInvalidBaseURL, "%s", baseURL)
	}
	return base, nil
}

func origin(u *url.URL) string {
	return u.Scheme + "://" + u.Host
}

// BuildURL resolves the checkout URL for opts against the host location.
// Only the parameters that are set end up in the query.
func BuildURL(location string, opts Options) (*url.URL, error) {
	opts = opts.withDefaults()

	base, err := resolveBase(location, opts.BaseURL)
	if err != nil {
		return nil, err
	}

	path := opts.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	ref, err := url.Parse(path)
	if err != nil {
		return nil, errors.Wrapf(err, "checkout path %q", opts.Path)
	}
	checkoutURL := base.ResolveReference(ref)

	price, err := opts.Price.param()
	if err != nil {
		return nil, err
	}

	q := checkoutURL.Query()
	set := func(key, value string) {
		if value != "" {
			q.Set(key, value)
		}
	}
	set("price", price)
	set("payTo", opts.PayTo)
	set("description", opts.Description)
	set("prefillNetwork", opts.PrefillNetwork)
	set("flowMode", string(opts.FlowMode))
	set("prefillStable", opts.PrefillStable)
	checkoutURL.RawQuery = q.Encode()

	return checkoutURL, nil
}
