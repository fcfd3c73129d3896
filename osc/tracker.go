// Package osc implements the gaze tracker fed by eye-tracking OSC
// datagrams. The listener is passive: any sender may publish, and the
// absence of a peer simply means no gaze is ever reported.
package osc

import (
	"context"
	"math"
	"net"
	"sync/atomic"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-pantheon/fabrica-util/errors"
	"github.com/go-pantheon/fabrica-util/xsync"
	goosc "github.com/hypebeast/go-osc/osc"
	"github.com/overlayvr/gazenet/conf"
	"github.com/overlayvr/gazenet/internal/netutil"
	"github.com/overlayvr/gazenet/xgaze"
	"golang.org/x/sync/errgroup"
)

// AddressPattern is the only OSC address this tracker consumes.
// Datagrams addressed elsewhere are ignored by the dispatcher.
const AddressPattern = "/tracking/eye/LeftRightPitchYaw"

var _ xgaze.Tracker = (*Tracker)(nil)

type Tracker struct {
	xsync.Stoppable

	staleness time.Duration
	monitor   xgaze.Monitor

	conn   net.PacketConn
	server *goosc.Server
	cell   xgaze.Cell

	started atomic.Bool
}

// New binds the UDP listener. Only the bind itself can fail; a silent
// network is not an error.
func New(cfg conf.Config, monitor xgaze.Monitor) (*Tracker, error) {
	if monitor == nil {
		monitor = xgaze.NopMonitor()
	}

	conn, err := net.ListenPacket("udp", cfg.OSC.Addr)
	if err != nil {
		monitor.ConnectFailed(xgaze.TrackerOSC, err)
		return nil, errors.Wrapf(xgaze.ErrTrackerUnavailable, "osc bind %s: %v", cfg.OSC.Addr, err)
	}

	t := &Tracker{
		Stoppable: xsync.NewStopper(time.Second * 10),
		staleness: cfg.Staleness,
		monitor:   monitor,
		conn:      conn,
	}

	dispatcher := goosc.NewStandardDispatcher()
	if err := dispatcher.AddMsgHandler(AddressPattern, t.handle); err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			log.Debugf("[osc.tracker] close after failed dispatch setup: %v", closeErr)
		}

		return nil, errors.Wrapf(xgaze.ErrTrackerUnavailable, "osc dispatcher: %v", err)
	}

	t.server = &goosc.Server{Addr: cfg.OSC.Addr, Dispatcher: dispatcher}

	return t, nil
}

// Start spawns the receive loop and returns immediately.
func (t *Tracker) Start(ctx context.Context) error {
	if !t.started.CompareAndSwap(false, true) {
		return xgaze.ErrAlreadyStarted
	}

	netutil.CloseOnCancel(ctx, t.conn, "osc.tracker")

	t.GoAndStop("osc.tracker.receive", func() error {
		return t.run(ctx)
	}, func() error {
		return t.Stop(ctx)
	})

	log.Infof("[osc.tracker] started. addr=%s", t.conn.LocalAddr())

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
			return t.serve(ctx)
		})
	})

	return eg.Wait()
}

// serve blocks on datagram receipt until the listener is closed. Stop
// closes the conn, which is the explicit break signal for a pending
// receive. A datagram that fails to parse makes Serve return; that is
// a malformed-message drop, not a reason to die, so the loop resumes
// on the still-open conn.
func (t *Tracker) serve(ctx context.Context) error {
	for {
		err := t.server.Serve(t.conn)
		if t.OnStopping() || ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
			return xsync.ErrIsStopped
		}

		t.monitor.SampleDropped(xgaze.TrackerOSC, xgaze.DropReasonMalformed)
		log.Debugf("[osc.tracker] unparseable datagram dropped: %v", err)
	}
}

func (t *Tracker) handle(msg *goosc.Message) {
	t.observe(msg, time.Now())
}

// observe decodes one matched message and publishes the folded gaze.
// Malformed messages are dropped without terminating the listener.
func (t *Tracker) observe(msg *goosc.Message, now time.Time) {
	angles, ok := eyeAngles(msg)
	if !ok {
		t.monitor.SampleDropped(xgaze.TrackerOSC, xgaze.DropReasonMalformed)
		log.Debugf("[osc.tracker] malformed message dropped. args=%d", len(msg.Arguments))

		return
	}

	if angles.isNaN() {
		t.monitor.SampleDropped(xgaze.TrackerOSC, xgaze.DropReasonNaN)
		return
	}

	// Infinite angles fold to NaN through sin/cos.
	gaze := angles.fold()
	if !gaze.IsValid() {
		t.monitor.SampleDropped(xgaze.TrackerOSC, xgaze.DropReasonNaN)
		return
	}

	t.cell.Publish(gaze, now)
	t.monitor.SamplePublished(xgaze.TrackerOSC, gaze)
}

// eyeAngles is the transient per-eye reading: pitch/yaw pairs in
// degrees, in the fixed argument order of the wire message.
type eyePitchYaw struct {
	leftPitch  float32
	leftYaw    float32
	rightPitch float32
	rightYaw   float32
}

func eyeAngles(msg *goosc.Message) (eyePitchYaw, bool) {
	if len(msg.Arguments) != 4 {
		return eyePitchYaw{}, false
	}

	var vals [4]float32

	for i, arg := range msg.Arguments {
		f, ok := arg.(float32)
		if !ok {
			return eyePitchYaw{}, false
		}

		vals[i] = f
	}

	return eyePitchYaw{
		leftPitch:  vals[0],
		leftYaw:    vals[1],
		rightPitch: vals[2],
		rightYaw:   vals[3],
	}, true
}

func (a eyePitchYaw) isNaN() bool {
	return math.IsNaN(float64(a.leftPitch)) || math.IsNaN(float64(a.leftYaw)) ||
		math.IsNaN(float64(a.rightPitch)) || math.IsNaN(float64(a.rightYaw))
}

// fold converts both eyes to direction vectors and averages them.
// Pitch flips sign to adapt the sender's convention to host view
// space.
func (a eyePitchYaw) fold() xgaze.Vector {
	lx, ly, lz := eyeDirection(a.leftPitch, a.leftYaw)
	rx, ry, rz := eyeDirection(a.rightPitch, a.rightYaw)

	return xgaze.Vector{
		X: float32((lx + rx) / 2),
		Y: float32((ly + ry) / 2),
		Z: float32((lz + rz) / 2),
	}
}

func eyeDirection(pitchDeg, yawDeg float32) (x, y, z float64) {
	pitch := float64(pitchDeg) * math.Pi / 180 * -1
	yaw := float64(yawDeg) * math.Pi / 180

	x = math.Sin(yaw) * math.Cos(pitch)
	y = math.Sin(pitch)
	z = -math.Cos(yaw) * math.Cos(pitch)

	return x, y, z
}

// Stop signals the loop, closes the listener to unblock the pending
// receive, and joins the loop.
func (t *Tracker) Stop(ctx context.Context) (err error) {
	return t.TurnOff(func() error {
		if closeErr := t.conn.Close(); closeErr != nil && !errors.Is(closeErr, net.ErrClosed) {
			err = errors.Join(err, closeErr)
		}

		log.Infof("[osc.tracker] stopped.")

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
	return xgaze.TrackerOSC
}
