// Package toolkit implements the gaze tracker backed by the local
// toolkit IPC server: a request/response binary protocol polled over a
// loopback TCP connection.
package toolkit

import (
	"context"
	"net"
	"os"
	"sync/atomic"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-pantheon/fabrica-util/errors"
	"github.com/go-pantheon/fabrica-util/xsync"
	"github.com/overlayvr/gazenet/conf"
	"github.com/overlayvr/gazenet/internal/netutil"
	"github.com/overlayvr/gazenet/toolkit/frame"
	"github.com/overlayvr/gazenet/xgaze"
	"golang.org/x/sync/errgroup"
)

var _ xgaze.Tracker = (*Tracker)(nil)

// ErrShortResponse means the read retry budget was exhausted before a
// complete record arrived. A partial buffer is never interpreted.
var ErrShortResponse = errors.New("short response")

type Tracker struct {
	xsync.Stoppable

	conf      conf.Toolkit
	staleness time.Duration
	monitor   xgaze.Monitor

	conn *net.TCPConn
	cell xgaze.Cell

	started atomic.Bool
}

// New connects to the toolkit endpoint and performs the handshake.
// Both steps are retry-bounded; any failure yields
// xgaze.ErrTrackerUnavailable and no instance, so callers can fall
// back to another source.
func New(ctx context.Context, cfg conf.Config, monitor xgaze.Monitor) (*Tracker, error) {
	if monitor == nil {
		monitor = xgaze.NopMonitor()
	}

	t := &Tracker{
		Stoppable: xsync.NewStopper(time.Second * 10),
		conf:      cfg.Toolkit,
		staleness: cfg.Staleness,
		monitor:   monitor,
	}

	conn, err := dial(ctx, t.conf)
	if err != nil {
		monitor.ConnectFailed(xgaze.TrackerToolkitIPC, err)
		return nil, errors.Wrapf(xgaze.ErrTrackerUnavailable, "toolkit connect: %v", err)
	}

	t.conn = conn

	if err := t.handshake(); err != nil {
		monitor.HandshakeFailed(xgaze.TrackerToolkitIPC, err)

		if closeErr := conn.Close(); closeErr != nil {
			log.Debugf("[toolkit.tracker] close after failed handshake: %v", closeErr)
		}

		return nil, errors.Wrapf(xgaze.ErrTrackerUnavailable, "toolkit handshake: %v", err)
	}

	return t, nil
}

func (t *Tracker) handshake() error {
	request := frame.EncodeHandshakeRequest(frame.ProtocolVersion, uint32(os.Getpid()))
	if err := t.send(request); err != nil {
		return err
	}

	buf := make([]byte, frame.HandshakeResultSize)
	if _, err := t.readExact(buf, t.conf.HandshakeRetries, t.conf.HandshakeRetryDelay); err != nil {
		return err
	}

	result, err := frame.DecodeHandshakeResult(buf)
	if err != nil {
		return err
	}

	if result != frame.HandshakeSuccess {
		return errors.Wrapf(frame.ErrUnexpectedType, "handshake result=%d", result)
	}

	return nil
}

// Start spawns the polling loop and returns immediately.
func (t *Tracker) Start(ctx context.Context) error {
	if !t.started.CompareAndSwap(false, true) {
		return xgaze.ErrAlreadyStarted
	}

	netutil.SetDeadlineOnCancel(ctx, t.conn, "toolkit.tracker")

	t.GoAndStop("toolkit.tracker.poll", func() error {
		return t.run(ctx)
	}, func() error {
		return t.Stop(ctx)
	})

	log.Infof("[toolkit.tracker] started. addr=%s", t.conf.Addr)

	return nil
}

func (t *Tracker) run(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		select {
		case <-t.StopTriggered():
			return xsync.ErrStopByTrigger
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	eg.Go(func() error {
		return xsync.Run(func() error {
			return t.pollLoop(ctx)
		})
	})

	return eg.Wait()
}

func (t *Tracker) pollLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		unused, err := t.pollOnce()
		if err != nil {
			if t.OnStopping() {
				return xsync.ErrIsStopped
			}

			log.Debugf("[toolkit.tracker] poll cycle dropped: %v", err)

			// A failed exchange may not have waited on the read
			// budget at all; back off a full cycle instead of
			// hammering a dead socket.
			unused = t.conf.ReadRetries
		}

		// Pacing: the unused read budget is slept off, so cycles that
		// already waited on retries do not add a full delay on top.
		if pace := time.Duration(unused) * t.conf.ReadRetryDelay; pace > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(pace):
			}
		}
	}
}

// pollOnce drives one request/response cycle. A failed cycle keeps the
// previously published value; no error crosses the tracker boundary.
func (t *Tracker) pollOnce() (unused int, err error) {
	if err := t.send(frame.EncodeGazeRequest()); err != nil {
		t.monitor.SampleDropped(xgaze.TrackerToolkitIPC, xgaze.DropReasonShortRead)
		return 0, err
	}

	buf := make([]byte, frame.GazeResultSize)

	unused, err = t.readExact(buf, t.conf.ReadRetries, t.conf.ReadRetryDelay)
	if err != nil {
		t.monitor.SampleDropped(xgaze.TrackerToolkitIPC, xgaze.DropReasonShortRead)
		return unused, err
	}

	result, err := frame.DecodeGazeResult(buf)
	if err != nil {
		t.monitor.SampleDropped(xgaze.TrackerToolkitIPC, xgaze.DropReasonMalformed)
		return unused, err
	}

	// Stamp at receipt, once a complete record is in hand.
	receivedAt := time.Now()

	if !result.Left.Valid || !result.Right.Valid {
		t.monitor.SampleDropped(xgaze.TrackerToolkitIPC, xgaze.DropReasonInvalidEye)
		return unused, nil
	}

	if result.Left.IsNaN() || result.Right.IsNaN() {
		t.monitor.SampleDropped(xgaze.TrackerToolkitIPC, xgaze.DropReasonNaN)
		return unused, nil
	}

	// Folding can still produce NaN from infinite components.
	gaze := fold(result)
	if !gaze.IsValid() {
		t.monitor.SampleDropped(xgaze.TrackerToolkitIPC, xgaze.DropReasonNaN)
		return unused, nil
	}

	t.cell.Publish(gaze, receivedAt)
	t.monitor.SamplePublished(xgaze.TrackerToolkitIPC, gaze)

	return unused, nil
}

// fold averages both eyes and adapts the toolkit's coordinate
// convention to host view space: X and Z flip sign, Y does not.
func fold(r frame.GazeResult) xgaze.Vector {
	return xgaze.Vector{
		X: -(r.Left.X + r.Right.X) / 2,
		Y: (r.Left.Y + r.Right.Y) / 2,
		Z: -(r.Left.Z + r.Right.Z) / 2,
	}
}

func (t *Tracker) send(record []byte) error {
	n, err := t.conn.Write(record)
	if err != nil {
		return errors.Wrap(err, "write record failed")
	}

	if n != len(record) {
		return errors.Wrapf(ErrShortResponse, "short write n=%d", n)
	}

	return nil
}

// readExact assembles exactly len(buf) bytes across partial reads,
// spending at most one retry slot per blocked attempt. It returns the
// unused slots so the caller can shorten its pacing delay.
func (t *Tracker) readExact(buf []byte, retries int, delay time.Duration) (unused int, err error) {
	offset := 0

	for left := retries; left > 0; left-- {
		if err := t.conn.SetReadDeadline(time.Now().Add(delay)); err != nil {
			return left, errors.Wrap(err, "set read deadline failed")
		}

		n, err := t.conn.Read(buf[offset:])
		offset += n

		if offset >= len(buf) {
			return left, nil
		}

		if err != nil {
			if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
				continue
			}

			return left, errors.Wrap(err, "read record failed")
		}
	}

	return 0, ErrShortResponse
}

// Stop signals the loop, joins it, then releases the connection.
// Closing the socket also unblocks a pending read.
func (t *Tracker) Stop(ctx context.Context) (err error) {
	return t.TurnOff(func() error {
		if t.conn != nil {
			if closeErr := t.conn.Close(); closeErr != nil {
				err = errors.Join(err, closeErr)
			}
		}

		log.Infof("[toolkit.tracker] stopped.")

		return err
	})
}

func (t *Tracker) IsGazeAvailable(now time.Time) bool {
	_, ok := t.cell.Load(now, t.staleness)
	return ok
}

func (t *Tracker) Gaze(now time.Time) (xgaze.Vector, bool) {
	return t.cell.Load(now, t.staleness)
}

func (t *Tracker) Type() xgaze.TrackerType {
	return xgaze.TrackerToolkitIPC
}
