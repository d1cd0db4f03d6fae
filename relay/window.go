package relay

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type controlFrame struct {
	Type string `json:"type"`
}

// window is one checkout page reached through the relay.
type window struct {
	relay   *Relay
	name    string
	url     string
	opened  time.Time
	timeout time.Duration

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
	ready  chan struct{}

	// gorilla connections allow one concurrent writer
	writeMu sync.Mutex
}

// URL is the page address handed to the opener.
func (w *window) URL() string { return w.url }

// Connected is closed once the checkout page has connected.
func (w *window) Connected() <-chan struct{} { return w.ready }

func (w *window) attach(conn *websocket.Conn) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrUnknownWindow
	}
	if w.conn != nil {
		return ErrAlreadyConnected
	}
	w.conn = conn
	close(w.ready)
	return nil
}

func (w *window) markClosed() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
}

func (w *window) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return true
	}
	return w.conn == nil && w.timeout > 0 && time.Since(w.opened) > w.timeout
}

// Close sends a close frame to a connected page and forgets the window.
func (w *window) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	conn := w.conn
	w.mu.Unlock()

	w.relay.forget(w)
	if conn == nil {
		return nil
	}

	w.writeMu.Lock()
	err := conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "checkout closed"),
		time.Now().Add(writeWait))
	w.writeMu.Unlock()
	conn.Close()
	return err
}

// Focus asks the connected page to bring itself forward.
func (w *window) Focus() error {
	w.mu.Lock()
	conn, closed := w.conn, w.closed
	w.mu.Unlock()
	if closed || conn == nil {
		return ErrNotConnected
	}

	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(controlFrame{Type: "focus"})
}
