package udp

import (
	"context"
	"net/netip"
)

// Network creates UDP sockets for the receive loop
type Network interface {
	// Socket acquires a new unbound UDP/IPv4 socket. It returns a
	// shutdown-class error when ctx is already done.
	Socket(ctx context.Context) (Socket, error)
}

// Socket is one UDP endpoint owned by the receive loop from creation to Close.
// Implementations need not be safe for concurrent use.
type Socket interface {
	// SetReuseAddr enables SO_REUSEADDR so a restarted daemon can rebind
	// while the previous address is still held.
	SetReuseAddr() error

	// Bind attaches the socket to a local IPv4 address and port.
	Bind(ctx context.Context, addr netip.AddrPort) error

	// ReadFrom blocks until one datagram arrives, copying at most len(buf)
	// bytes (longer datagrams are truncated) and returning the sender's IPv4
	// address. It never times out on its own; cancelling ctx unblocks it
	// with a shutdown-class error.
	ReadFrom(ctx context.Context, buf []byte) (int, netip.Addr, error)

	// Close releases the socket. A second call returns ErrAlreadyClosed.
	Close() error
}
