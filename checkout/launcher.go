package checkout

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"gonuorbit/metrics"
	"gonuorbit/types"
)

// Handle tracks one opened checkout window. Its result settles exactly once,
// from whichever fires first: an accepted outcome message or the window closing.
type Handle struct {
	window         Window
	expectedOrigin string

	mu         sync.Mutex
	settled    bool
	result     types.CheckoutResult
	stopListen func()
	stopPoll   chan struct{}
	done       chan struct{}
}

// Launch opens the checkout window on host and starts listening for its outcome.
// A blocked popup calls opts.OnPopupBlocked and returns ErrPopupBlocked; no
// result is produced in that case.
func Launch(host Host, opts Options) (*Handle, error) {
	if host == nil {
		return nil, ErrNoHost
	}
	opts = opts.withDefaults()

	checkoutURL, err := BuildURL(host.Location(), opts)
	if err != nil {
		return nil, err
	}

	win, err := host.Open(checkoutURL.String(), opts.WindowName, opts.WindowFeatures)
	if err != nil || win == nil {
		if opts.OnPopupBlocked != nil {
			opts.OnPopupBlocked()
		}
		if err != nil {
			return nil, errors.Wrap(ErrPopupBlocked, err.Error())
		}
		return nil, ErrPopupBlocked
	}
	_ = win.Focus()

	expected := opts.TargetOrigin
	if expected == "" {
		base, _ := resolveBase(host.Location(), opts.BaseURL)
		expected = origin(base)
	}

	h := &Handle{
		window:         win,
		expectedOrigin: expected,
		stopPoll:       make(chan struct{}),
		done:           make(chan struct{}),
	}

	stop := host.Listen(h.onMessage)
	h.mu.Lock()
	if h.settled {
		h.mu.Unlock()
		stop()
	} else {
		h.stopListen = stop
		h.mu.Unlock()
	}

	go h.pollClosed(opts.PollInterval)

	log.Info().Str("url", checkoutURL.String()).Str("window", opts.WindowName).Str("origin", expected).Msg("Opened NuOrbit checkout")
	return h, nil
}

func (h *Handle) onMessage(msg Message) {
	if msg.Source != h.window {
		return
	}
	if h.expectedOrigin != "*" && msg.Origin != h.expectedOrigin {
		return
	}
	res, ok := ParseMessage(msg.Data)
	if !ok {
		return
	}
	h.settle(res)
}

func (h *Handle) pollClosed(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-h.stopPoll:
			return
		case <-ticker.C:
			if h.window.Closed() {
				h.settle(types.NewCancelledResult(types.CheckoutClosedMessage))
				return
			}
		}
	}
}

// settle stores res unless a result is already stored, and deactivates both
// the message listener and the closure poll. It reports whether res won.
func (h *Handle) settle(res types.CheckoutResult) bool {
	h.mu.Lock()
	if h.settled {
		h.mu.Unlock()
		return false
	}
	h.settled = true
	h.result = res
	stop := h.stopListen
	h.stopListen = nil
	close(h.stopPoll)
	h.mu.Unlock()

	if stop != nil {
		stop()
	}
	close(h.done)

	metrics.RecordCheckoutResult(res.Status)
	log.Info().Str("status", string(res.Status)).Str("transferTx", res.TransferTx).Msg("NuOrbit checkout settled")
	return true
}

func (h *Handle) Window() Window { return h.window }

// Done is closed once the result has settled.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Result waits for the settled outcome or for ctx to end.
func (h *Handle) Result(ctx context.Context) (types.CheckoutResult, error) {
	select {
	case <-h.done:
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.result, nil
	case <-ctx.Done():
		return types.CheckoutResult{}, ctx.Err()
	}
}

// Close closes the checkout window; the closure poll then settles the result
// as cancelled unless a message got there first.
func (h *Handle) Close() {
	_ = h.window.Close()
}

func (h *Handle) Focus() {
	_ = h.window.Focus()
}
