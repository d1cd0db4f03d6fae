package checkout

// Message is one inbound cross-window message. Data is the decoded, untyped
// payload exactly as the sender posted it. Source is the window that posted
// it, nil when the sender is not a window opened by the host.
type Message struct {
	Origin string
	Source Window
	Data   any
}

// Window is the secondary browsing context opened for the payer.
type Window interface {
	// Closed reports whether the payer (or Close) has closed the context.
	Closed() bool
	Close() error
	Focus() error
}

// Host is the launching context: it knows its own location, can open
// secondary contexts and delivers messages posted back to it.
type Host interface {
	// Location is the absolute URL of the launching page.
	Location() string
	// Open returns a nil Window or an error when the context could not be opened.
	Open(url, name, features string) (Window, error)
	// Listen registers fn for every inbound message until stop is called.
	// stop may be called from inside fn.
	Listen(fn func(Message)) (stop func())
}
