package core

// Frame is a raw wire payload (a JSON-encoded signaling envelope).
type Frame []byte

// SignalConn abstracts a participant's messaging transport.
// Owned by the adapter; the adapter must Close() it.
// TrySend never blocks: a full or closed transport returns an error,
// which callers treat as that participant's disconnect.
type SignalConn interface {
	TrySend(Frame) error
	Close()
}
