//go:build unix

package udp

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/xdevelnet/udp-logger/errors"
)

// SystemNetwork returns the operating system's IPv4 UDP stack.
// Sockets are created, configured and bound with raw syscalls so each stage
// fails on its own, then handed to the Go runtime poller for receiving.
func SystemNetwork() Network {
	return sysNetwork{}
}

type sysNetwork struct{}

func (sysNetwork) Socket(ctx context.Context) (Socket, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.WrapShutdown(err, "udp", "Socket", "create socket")
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, unix.IPPROTO_UDP)
	if err != nil {
		return nil, os.NewSyscallError("socket", err)
	}
	unix.CloseOnExec(fd)

	return &sysSocket{fd: fd}, nil
}

// sysSocket starts life as a raw descriptor and becomes a *net.UDPConn once
// bound.
type sysSocket struct {
	fd     int
	conn   *net.UDPConn
	closed bool
}

func (s *sysSocket) SetReuseAddr() error {
	if s.closed || s.fd < 0 {
		return errors.ErrAlreadyClosed
	}
	return os.NewSyscallError("setsockopt", unix.SetsockoptInt(s.fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1))
}

func (s *sysSocket) Bind(ctx context.Context, addr netip.AddrPort) error {
	if s.closed || s.fd < 0 {
		return errors.ErrAlreadyClosed
	}
	if err := ctx.Err(); err != nil {
		return errors.WrapShutdown(err, "udp", "Bind", "bind socket")
	}

	ip := addr.Addr().Unmap()
	if !ip.Is4() {
		return errors.WrapInvalid(fmt.Errorf("not an IPv4 address: %s", addr.Addr()),
			"udp", "Bind", "address validation")
	}

	sa := &unix.SockaddrInet4{Port: int(addr.Port()), Addr: ip.As4()}
	if err := unix.Bind(s.fd, sa); err != nil {
		return os.NewSyscallError("bind", err)
	}

	// FilePacketConn duplicates the descriptor; the raw one is released
	// right after, whatever the outcome.
	f := os.NewFile(uintptr(s.fd), "udp4")
	pc, err := net.FilePacketConn(f)
	_ = f.Close()
	s.fd = -1
	if err != nil {
		return errors.Wrap(err, "udp", "Bind", "attach socket to poller")
	}

	conn, ok := pc.(*net.UDPConn)
	if !ok {
		_ = pc.Close()
		return errors.WrapFatal(fmt.Errorf("unexpected packet conn %T", pc), "udp", "Bind", "attach socket to poller")
	}
	s.conn = conn
	return nil
}

func (s *sysSocket) ReadFrom(ctx context.Context, buf []byte) (int, netip.Addr, error) {
	if s.closed {
		return 0, netip.Addr{}, errors.ErrAlreadyClosed
	}
	if s.conn == nil {
		return 0, netip.Addr{}, errors.ErrNotBound
	}
	if err := ctx.Err(); err != nil {
		return 0, netip.Addr{}, errors.WrapShutdown(err, "udp", "ReadFrom", "recvfrom")
	}

	// A deadline in the past wakes the blocked read when ctx is cancelled
	stop := context.AfterFunc(ctx, func() {
		_ = s.conn.SetReadDeadline(time.Unix(1, 0))
	})
	defer stop()

	n, from, err := s.conn.ReadFromUDPAddrPort(buf)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, netip.Addr{}, errors.WrapShutdown(ctxErr, "udp", "ReadFrom", "recvfrom")
		}
		return 0, netip.Addr{}, err
	}

	return n, from.Addr().Unmap(), nil
}

func (s *sysSocket) Close() error {
	if s.closed {
		return errors.ErrAlreadyClosed
	}
	s.closed = true

	if s.conn != nil {
		return s.conn.Close()
	}
	if s.fd >= 0 {
		fd := s.fd
		s.fd = -1
		return os.NewSyscallError("close", unix.Close(fd))
	}
	return nil
}
