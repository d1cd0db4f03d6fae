// Package relay implements checkout.Host outside a browser. The checkout page
// is opened through an Opener and connects back over a websocket; everything
// it sends on that socket is delivered as a checkout message, and the socket
// dropping counts as the payer closing the window.
package relay

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"gonuorbit/checkout"
)

const (
	// RoutePattern is where checkout pages connect back to, by window name.
	RoutePattern = "/checkout/relay/{window}"
	// WindowParam carries the window name to the checkout page.
	WindowParam = "relayWindow"

	DefaultConnectTimeout = 2 * time.Minute

	writeWait = 5 * time.Second
)

var (
	ErrNoOpener         = errors.New("relay has no opener")
	ErrUnknownWindow    = errors.New("unknown relay window")
	ErrNotConnected     = errors.New("checkout page has not connected yet")
	ErrAlreadyConnected = errors.New("relay window already has a connection")
)

// Opener shows url to the payer, typically by launching a browser.
type Opener func(url string) error

type Relay struct {
	origin string
	opener Opener

	// ConnectTimeout bounds how long an opened window may wait for its page
	// to connect before it reads as closed.
	ConnectTimeout time.Duration

	upgrader websocket.Upgrader

	mu        sync.Mutex
	windows   map[string]*window
	listeners map[int]func(checkout.Message)
	nextID    int
}

// New creates a relay reachable at origin (scheme://host[:port]).
func New(origin string, opener Opener) *Relay {
	return &Relay{
		origin:         strings.TrimRight(origin, "/"),
		opener:         opener,
		ConnectTimeout: DefaultConnectTimeout,
		upgrader: websocket.Upgrader{
			// the launcher validates message origins itself
			CheckOrigin: func(*http.Request) bool { return true },
		},
		windows:   map[string]*window{},
		listeners: map[int]func(checkout.Message){},
	}
}

func (rl *Relay) Location() string {
	return rl.origin + "/"
}

// Routes mounts the connect-back endpoint.
func (rl *Relay) Routes(r chi.Router) {
	r.Get(RoutePattern, rl.serveWindow)
}

// Open registers a window under name and hands the page URL to the opener.
// A window already open under the same name is closed first.
func (rl *Relay) Open(rawURL, name, features string) (checkout.Window, error) {
	if rl.opener == nil {
		return nil, ErrNoOpener
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Wrap(err, "relay open")
	}
	q := u.Query()
	q.Set(WindowParam, name)
	u.RawQuery = q.Encode()

	win := &window{
		relay:   rl,
		name:    name,
		url:     u.String(),
		opened:  time.Now(),
		timeout: rl.ConnectTimeout,
		ready:   make(chan struct{}),
	}

	rl.mu.Lock()
	prev := rl.windows[name]
	rl.windows[name] = win
	rl.mu.Unlock()
	if prev != nil {
		_ = prev.Close()
	}

	if err := rl.opener(u.String()); err != nil {
		rl.forget(win)
		return nil, errors.Wrap(err, "relay opener")
	}
	log.Debug().Str("window", name).Str("features", features).Str("url", u.String()).Msg("Relay window opened")
	return win, nil
}

func (rl *Relay) Listen(fn func(checkout.Message)) func() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.nextID++
	id := rl.nextID
	rl.listeners[id] = fn
	return func() {
		rl.mu.Lock()
		defer rl.mu.Unlock()
		delete(rl.listeners, id)
	}
}

func (rl *Relay) dispatch(msg checkout.Message) {
	rl.mu.Lock()
	fns := make([]func(checkout.Message), 0, len(rl.listeners))
	for _, fn := range rl.listeners {
		fns = append(fns, fn)
	}
	rl.mu.Unlock()

	for _, fn := range fns {
		fn(msg)
	}
}

func (rl *Relay) lookup(name string) *window {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.windows[name]
}

func (rl *Relay) forget(win *window) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if rl.windows[win.name] == win {
		delete(rl.windows, win.name)
	}
}

func (rl *Relay) serveWindow(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "window")
	win := rl.lookup(name)
	if win == nil {
		http.Error(w, ErrUnknownWindow.Error(), http.StatusNotFound)
		return
	}

	conn, err := rl.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("window", name).Msg("Relay upgrade failed")
		return
	}
	if err := win.attach(conn); err != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}

	origin := r.Header.Get("Origin")
	log.Info().Str("window", name).Str("origin", origin).Msg("Checkout page connected")

	go rl.readLoop(win, conn, origin)
}

func (rl *Relay) readLoop(win *window, conn *websocket.Conn, origin string) {
	defer func() {
		rl.forget(win)
		win.markClosed()
		conn.Close()
		log.Info().Str("window", win.name).Msg("Checkout page disconnected")
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var data any
		if err := json.Unmarshal(raw, &data); err != nil {
			log.Debug().Err(err).Str("window", win.name).Msg("Dropping non-JSON relay frame")
			continue
		}
		rl.dispatch(checkout.Message{Origin: origin, Source: win, Data: data})
	}
}
