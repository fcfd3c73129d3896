package toolkit

import (
	"context"
	"net"
	"time"

	"github.com/go-pantheon/fabrica-util/errors"
	"github.com/overlayvr/gazenet/conf"
)

// dial connects to the toolkit's well-known loopback endpoint,
// retrying on a fixed cadence. Exhausting the budget is a construction
// failure for the tracker.
func dial(ctx context.Context, cfg conf.Toolkit) (*net.TCPConn, error) {
	addr, err := net.ResolveTCPAddr("tcp", cfg.Addr)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve addr failed. addr=%s", cfg.Addr)
	}

	var lastErr error

	for i := 0; i < cfg.ConnectRetries; i++ {
		conn, err := net.DialTCP("tcp", nil, addr)
		if err == nil {
			return conn, nil
		}

		lastErr = err

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(cfg.ConnectRetryDelay):
		}
	}

	return nil, errors.Wrapf(lastErr, "connect failed. addr=%s retries=%d", cfg.Addr, cfg.ConnectRetries)
}
