//go:build !unix

package udp

import (
	"context"
	"fmt"
	"runtime"

	"github.com/xdevelnet/udp-logger/errors"
)

// SystemNetwork returns a network that cannot create sockets on this platform
func SystemNetwork() Network {
	return unsupportedNetwork{}
}

type unsupportedNetwork struct{}

func (unsupportedNetwork) Socket(ctx context.Context) (Socket, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.WrapShutdown(err, "udp", "Socket", "create socket")
	}
	return nil, errors.WrapFatal(fmt.Errorf("raw UDP sockets are not supported on %s", runtime.GOOS),
		"udp", "Socket", "create socket")
}
