package udp

import (
	"context"
	"fmt"
	"log/slog"
	"net/netip"
	"sync/atomic"
	"time"

	"github.com/xdevelnet/udp-logger/errors"
	"github.com/xdevelnet/udp-logger/health"
	"github.com/xdevelnet/udp-logger/metric"
	"github.com/xdevelnet/udp-logger/pkg/retry"
	"github.com/xdevelnet/udp-logger/pkg/timestamp"
)

// Defaults for the receive loop
const (
	DefaultPort            = 8888
	DefaultBind            = "0.0.0.0"
	DefaultMaxDatagramSize = 1000
)

// Fixed packet log messages
const (
	msgSocketInterrupted = "Interrupting from socket() syscall"
	msgBindInterrupted   = "Interrupting from bind() syscall"
	msgRecvInterrupted   = "Interrupting from recvfrom() syscall"

	fmtSocketFailed = "Unable to create a socket: %s. Waiting for %d seconds"
	fmtBindFailed   = "Unable to bind a socket: %s. Waiting for %d seconds"
	fmtNetworkError = "Network error: %s. Waiting for %d seconds"
	fmtReceived     = "Received packet. Payload len: %d. From: %s. Printable data: %s"
)

// State is a step of the receive loop
type State int32

const (
	// StateCreateSocket acquires a fresh socket
	StateCreateSocket State = iota
	// StateConfigure enables address reuse on the socket
	StateConfigure
	// StateBind binds the socket to the listen address
	StateBind
	// StateReceive blocks for the next datagram
	StateReceive
	// StateClosed is terminal
	StateClosed
)

// String returns the string representation of State
func (s State) String() string {
	switch s {
	case StateCreateSocket:
		return "create_socket"
	case StateConfigure:
		return "configure"
	case StateBind:
		return "bind"
	case StateReceive:
		return "receive"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// StopReason tells why Run returned
type StopReason int

const (
	// StopShutdown means a blocking call was interrupted by cancellation
	StopShutdown StopReason = iota
	// StopReceiveError means receiving failed for a reason other than shutdown.
	// The loop does not open a new socket in that case.
	StopReceiveError
)

// String returns the string representation of StopReason
func (r StopReason) String() string {
	switch r {
	case StopShutdown:
		return "shutdown"
	case StopReceiveError:
		return "receive_error"
	default:
		return "unknown"
	}
}

// EntryWriter appends one timestamped line to the packet log
type EntryWriter interface {
	WriteEntry(t time.Time, msg string) error
}

// Config holds the bind parameters and buffer sizing of the receiver
type Config struct {
	Bind            string       // IPv4 address to bind, "0.0.0.0" for all interfaces
	Port            int          // UDP port
	MaxDatagramSize int          // Receive buffer capacity; longer datagrams are truncated
	Backoff         retry.Config // Wait applied after socket or bind failures
}

// DefaultConfig returns 0.0.0.0:8888, a 1000 byte buffer and a fixed 100s backoff
func DefaultConfig() Config {
	return Config{
		Bind:            DefaultBind,
		Port:            DefaultPort,
		MaxDatagramSize: DefaultMaxDatagramSize,
		Backoff:         retry.DefaultConfig(),
	}
}

// Validate checks the configuration for errors
func (c Config) Validate() error {
	if _, err := c.addrPort(); err != nil {
		return err
	}
	if c.MaxDatagramSize <= 0 || c.MaxDatagramSize > 65535 {
		return errors.WrapInvalid(fmt.Errorf("invalid max datagram size %d", c.MaxDatagramSize),
			"Config", "Validate", "buffer size validation")
	}
	if err := c.Backoff.Validate(); err != nil {
		return errors.WrapInvalid(err, "Config", "Validate", "backoff validation")
	}
	return nil
}

func (c Config) addrPort() (netip.AddrPort, error) {
	// 0 is allowed for OS auto-assignment
	if c.Port < 0 || c.Port > 65535 {
		return netip.AddrPort{}, errors.WrapInvalid(fmt.Errorf("invalid port %d", c.Port),
			"Config", "Validate", "port validation")
	}

	bind := c.Bind
	if bind == "" {
		bind = DefaultBind
	}
	ip, err := netip.ParseAddr(bind)
	if err != nil {
		return netip.AddrPort{}, errors.WrapInvalid(err, "Config", "Validate", "bind address parsing")
	}
	if !ip.Unmap().Is4() {
		return netip.AddrPort{}, errors.WrapInvalid(fmt.Errorf("bind address %s is not IPv4", bind),
			"Config", "Validate", "bind address validation")
	}

	return netip.AddrPortFrom(ip.Unmap(), uint16(c.Port)), nil
}

// ReceiverDeps holds runtime dependencies for the receiver
type ReceiverDeps struct {
	Name            string                                           // Instance name
	Config          Config                                           // Bind parameters
	Sink            EntryWriter                                      // Packet log, required
	Network         Network                                          // Defaults to SystemNetwork()
	MetricsRegistry *metric.MetricsRegistry                          // Runtime dependency
	Logger          *slog.Logger                                     // Runtime dependency
	Clock           timestamp.Clock                                  // Defaults to timestamp.Local
	Sleep           func(ctx context.Context, d time.Duration) error // Defaults to retry.Sleep
}

// Receiver runs the UDP receive loop: create a socket, enable address reuse,
// bind, then log every datagram until a shutdown or a receive failure.
// Socket and bind failures are retried forever after a backoff.
type Receiver struct {
	name    string
	addr    netip.AddrPort
	sink    EntryWriter
	network Network
	logger  *slog.Logger
	now     timestamp.Clock
	sleep   func(ctx context.Context, d time.Duration) error
	backoff *retry.Backoff

	// Scratch buffers reused for every datagram
	packet []byte
	text   []byte

	state    atomic.Int32
	stop     StopReason
	running  atomic.Bool
	errCount atomic.Int64

	packetsReceived atomic.Int64
	bytesReceived   atomic.Int64
	lastActivity    atomic.Value // stores time.Time

	metrics     *Metrics
	coreMetrics *metric.Metrics
}

// NewReceiver creates a receiver using idiomatic Go constructor pattern
func NewReceiver(deps ReceiverDeps) (*Receiver, error) {
	if err := deps.Config.Validate(); err != nil {
		return nil, err
	}
	if deps.Sink == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Receiver", "NewReceiver", "log sink validation")
	}

	addr, _ := deps.Config.addrPort()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "udp-receiver", "addr", addr.String())
	}

	network := deps.Network
	if network == nil {
		network = SystemNetwork()
	}

	clock := deps.Clock
	if clock == nil {
		clock = timestamp.Local
	}

	sleep := deps.Sleep
	if sleep == nil {
		sleep = retry.Sleep
	}

	name := deps.Name
	if name == "" {
		name = fmt.Sprintf("udp-receiver-%d", addr.Port())
	}

	r := &Receiver{
		name:    name,
		addr:    addr,
		sink:    deps.Sink,
		network: network,
		logger:  logger,
		now:     clock,
		sleep:   sleep,
		backoff: retry.NewBackoff(deps.Config.Backoff),
		packet:  make([]byte, deps.Config.MaxDatagramSize),
		text:    make([]byte, 0, deps.Config.MaxDatagramSize),
		metrics: newMetrics(deps.MetricsRegistry, int(addr.Port())),
	}
	if deps.MetricsRegistry != nil {
		r.coreMetrics = deps.MetricsRegistry.CoreMetrics()
	}
	r.lastActivity.Store(time.Time{})
	return r, nil
}

// Name returns the instance name
func (r *Receiver) Name() string {
	return r.name
}

// State returns the current loop state. Safe to call from any goroutine.
func (r *Receiver) State() State {
	return State(r.state.Load())
}

// Run drives the loop until it reaches StateClosed. Cancelling ctx is the
// shutdown signal: whichever blocking call is in progress returns, one
// "Interrupting from ..." line is logged and Run returns StopShutdown.
// A second Run while the first is still going returns ErrAlreadyStarted
// and touches neither the socket nor the packet log.
func (r *Receiver) Run(ctx context.Context) (StopReason, error) {
	if !r.running.CompareAndSwap(false, true) {
		return StopShutdown, errors.WrapInvalid(errors.ErrAlreadyStarted, "Receiver", "Run", "start receive loop")
	}
	defer r.running.Store(false)

	r.logger.Info("Receive loop starting", "addr", r.addr.String(), "buffer_size", len(r.packet))

	var sock Socket
	state := StateCreateSocket
	for {
		r.setState(state)

		switch state {
		case StateCreateSocket:
			sock, state = r.createSocket(ctx)
		case StateConfigure:
			state = r.configure(sock)
		case StateBind:
			state = r.bind(ctx, sock)
		case StateReceive:
			state = r.receive(ctx, sock)
		case StateClosed:
			r.logger.Info("Receive loop stopped", "reason", r.stop.String())
			return r.stop, nil
		}
	}
}

func (r *Receiver) createSocket(ctx context.Context) (Socket, State) {
	sock, err := r.network.Socket(ctx)
	if err != nil {
		if errors.IsShutdown(err) {
			r.record(msgSocketInterrupted)
			r.stop = StopShutdown
			return nil, StateClosed
		}

		r.backOff(ctx, "socket", fmtSocketFailed, err)
		return nil, StateCreateSocket
	}

	return sock, StateConfigure
}

func (r *Receiver) configure(sock Socket) State {
	if err := sock.SetReuseAddr(); err != nil {
		// Best effort; a failed bind later is handled on its own
		r.logger.Warn("Could not enable address reuse", "error", err)
	}
	return StateBind
}

func (r *Receiver) bind(ctx context.Context, sock Socket) State {
	if err := sock.Bind(ctx, r.addr); err != nil {
		r.closeSocket(sock)

		if errors.IsShutdown(err) {
			r.record(msgBindInterrupted)
			r.stop = StopShutdown
			return StateClosed
		}

		r.backOff(ctx, "bind", fmtBindFailed, err)
		return StateCreateSocket
	}

	r.backoff.Reset()
	r.logger.Info("UDP socket bound", "addr", r.addr.String())
	return StateReceive
}

func (r *Receiver) receive(ctx context.Context, sock Socket) State {
	n, from, err := sock.ReadFrom(ctx, r.packet)
	now := r.now()
	if err != nil {
		r.closeSocket(sock)

		if errors.IsShutdown(err) {
			r.recordAt(now, msgRecvInterrupted)
			r.stop = StopShutdown
			return StateClosed
		}

		r.backOffAt(ctx, now, "recvfrom", fmtNetworkError, err)
		r.stop = StopReceiveError
		return StateClosed
	}

	r.text = Printable(r.text[:0], r.packet[:n])
	r.recordAt(now, fmt.Sprintf(fmtReceived, n, from.String(), r.text))

	r.packetsReceived.Add(1)
	r.bytesReceived.Add(int64(n))
	r.lastActivity.Store(now)
	if r.metrics != nil {
		r.metrics.packetsReceived.Inc()
		r.metrics.bytesReceived.Add(float64(n))
		r.metrics.printableBytes.Add(float64(len(r.text)))
		r.metrics.lastActivity.Set(float64(now.Unix()))
	}

	return StateReceive
}

// backOff logs a failure line naming the cause and the wait, then sleeps.
// An interrupted sleep is not logged; the next blocking stage observes the
// cancellation and logs it.
func (r *Receiver) backOff(ctx context.Context, stage, format string, err error) {
	r.backOffAt(ctx, r.now(), stage, format, err)
}

func (r *Receiver) backOffAt(ctx context.Context, now time.Time, stage, format string, err error) {
	r.countError(stage, err)

	wait := r.backoff.Next()
	r.recordAt(now, fmt.Sprintf(format, causeText(err), waitSeconds(wait)))

	if r.metrics != nil {
		r.metrics.backoffs.Inc()
	}
	r.logger.Warn("Socket failure, backing off", "stage", stage, "error", err, "wait", wait)

	if sleepErr := r.sleep(ctx, wait); sleepErr != nil {
		r.logger.Debug("Backoff interrupted", "stage", stage, "error", sleepErr)
	}
}

func (r *Receiver) closeSocket(sock Socket) {
	if err := sock.Close(); err != nil {
		r.logger.Warn("Failed to close socket", "error", err)
	}
}

func (r *Receiver) countError(stage string, err error) {
	r.errCount.Add(1)
	if r.metrics != nil {
		r.metrics.socketErrors.WithLabelValues(stage).Inc()
	}
	if r.coreMetrics != nil {
		r.coreMetrics.RecordError("udp-receiver", errors.Classify(err).String())
	}
}

func (r *Receiver) record(msg string) {
	r.recordAt(r.now(), msg)
}

func (r *Receiver) recordAt(t time.Time, msg string) {
	if err := r.sink.WriteEntry(t, msg); err != nil {
		r.logger.Error("Failed to write log entry", "error", err)
	}
}

func (r *Receiver) setState(s State) {
	r.state.Store(int32(s))
	if r.metrics != nil {
		r.metrics.state.Set(float64(s))
	}
}

// Health reports healthy while the loop is waiting for datagrams and
// degraded while it is still acquiring or binding a socket
func (r *Receiver) Health() health.Status {
	packets, _, errs := r.Stats()
	metrics := &health.Metrics{
		ErrorCount:        errs,
		MessagesProcessed: packets,
		LastActivity:      r.LastActivity(),
	}

	if !r.running.Load() {
		return health.NewUnhealthy(r.name, "not running").WithMetrics(metrics)
	}

	switch state := r.State(); state {
	case StateReceive:
		return health.NewHealthy(r.name, "receiving on "+r.addr.String()).WithMetrics(metrics)
	case StateClosed:
		return health.NewUnhealthy(r.name, "stopped").WithMetrics(metrics)
	default:
		return health.NewDegraded(r.name, "waiting in "+state.String()).WithMetrics(metrics)
	}
}

// Stats reports datagrams and bytes received and socket errors seen
func (r *Receiver) Stats() (packets, bytes, errs int64) {
	return r.packetsReceived.Load(), r.bytesReceived.Load(), r.errCount.Load()
}

// LastActivity returns when the last datagram arrived, zero if none yet
func (r *Receiver) LastActivity() time.Time {
	t, _ := r.lastActivity.Load().(time.Time)
	return t
}

// waitSeconds rounds a backoff up to whole seconds so a sub-second wait is
// never reported as 0
func waitSeconds(d time.Duration) int {
	return int((d + time.Second - 1) / time.Second)
}

// causeText returns the innermost error message, the way strerror would
// print it ("address already in use").
func causeText(err error) string {
	if cause := errors.Cause(err); cause != nil {
		return cause.Error()
	}
	return "unknown error"
}
