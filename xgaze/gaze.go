package xgaze

import (
	"context"
	"math"
	"time"

	"github.com/go-pantheon/fabrica-util/errors"
)

// StalenessThreshold is the maximum age after which a published sample
// is no longer reported to the host.
const StalenessThreshold = time.Second

var (
	// ErrTrackerUnavailable means the underlying source could not be
	// reached during construction. Callers should fall back to another
	// tracker rather than treat this as fatal.
	ErrTrackerUnavailable = errors.New("gaze tracker unavailable")

	// ErrAlreadyStarted is returned by Start on a tracker whose
	// ingestion loop is already running.
	ErrAlreadyStarted = errors.New("gaze tracker already started")
)

type TrackerType int

const (
	TrackerNone TrackerType = iota
	// TrackerToolkitIPC polls a local toolkit server over loopback TCP.
	TrackerToolkitIPC
	// TrackerOSC listens for eye-tracking OSC datagrams on UDP.
	TrackerOSC
)

func (t TrackerType) String() string {
	switch t {
	case TrackerToolkitIPC:
		return "toolkit-ipc"
	case TrackerOSC:
		return "osc"
	default:
		return "none"
	}
}

// Vector is a gaze direction in the host's right-handed view space,
// unit-length by convention. This layer rejects invalid vectors rather
// than re-normalizing them.
type Vector struct {
	X float32
	Y float32
	Z float32
}

func (v Vector) IsValid() bool {
	return !(math.IsNaN(float64(v.X)) || math.IsNaN(float64(v.Y)) || math.IsNaN(float64(v.Z)))
}

// Tracker is one gaze source: a transport, a protocol and a background
// ingestion loop behind a uniform polling surface.
//
// Start spawns the ingestion loop and returns immediately. Stop signals
// the loop, unblocks any pending receive, and joins the loop before
// releasing the transport; it must not be called from the loop itself.
// Gaze and IsGazeAvailable never block on the network.
type Tracker interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error

	IsGazeAvailable(now time.Time) bool
	Gaze(now time.Time) (Vector, bool)
	Type() TrackerType
}
