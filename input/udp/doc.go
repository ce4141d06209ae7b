// Package udp receives UDP/IPv4 datagrams and records each one as a line in
// the packet log.
//
// # Overview
//
// The Receiver is a small state machine. It creates a socket, enables
// SO_REUSEADDR, binds the listen address and then blocks on one datagram at a
// time:
//
//	create_socket -> configure -> bind -> receive -> receive -> ...
//	      ^                        |
//	      +---- backoff (100s) ----+
//
// Socket creation and bind failures are logged with the system error text and
// retried after the backoff, forever. A failed receive is logged, waited out
// once and then ends the loop with StopReceiveError.
//
// # Quick Start
//
//	sink, _ := file.NewSink(file.SinkDeps{Path: "udp_log"})
//	receiver, err := udp.NewReceiver(udp.ReceiverDeps{
//	    Config: udp.DefaultConfig(),
//	    Sink:   sink,
//	})
//	if err != nil {
//	    return err
//	}
//	reason, err := receiver.Run(ctx)
//
// # Packet Log Lines
//
// Each received datagram produces:
//
//	Received packet. Payload len: <n>. From: <ipv4>. Printable data: <text>
//
// where <n> counts the bytes actually received (at most MaxDatagramSize) and
// <text> holds only the bytes in 0x20..0x7E, in their original order.
//
// # Shutdown
//
// Cancelling the context passed to Run is the shutdown signal. Whichever
// stage is blocked returns, exactly one line is written naming it
// ("Interrupting from socket() syscall", "... bind() ...", or
// "... recvfrom() ...") and Run returns StopShutdown. A cancellation that
// lands during a backoff wait is reported by the socket stage that follows.
//
// # Testing
//
// Network and Socket are interfaces so the loop can be driven by fakes; the
// Sleep and Clock dependencies make the 100 second backoff and timestamps
// deterministic.
package udp
