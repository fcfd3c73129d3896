package xgaze

// Monitor receives structured events at the well-defined points of the
// ingestion protocol: construction failures, published samples and
// discarded samples. Implementations must be safe for concurrent use
// and must not block; they are invoked from the ingestion loop.
type Monitor interface {
	ConnectFailed(t TrackerType, err error)
	HandshakeFailed(t TrackerType, err error)
	SamplePublished(t TrackerType, v Vector)
	SampleDropped(t TrackerType, reason string)
}

// Drop reasons reported through Monitor.SampleDropped.
const (
	DropReasonInvalidEye = "invalid_eye"
	DropReasonNaN        = "nan"
	DropReasonShortRead  = "short_read"
	DropReasonMalformed  = "malformed"
)

type nopMonitor struct{}

func (nopMonitor) ConnectFailed(TrackerType, error)    {}
func (nopMonitor) HandshakeFailed(TrackerType, error)  {}
func (nopMonitor) SamplePublished(TrackerType, Vector) {}
func (nopMonitor) SampleDropped(TrackerType, string)   {}

// NopMonitor discards all events.
func NopMonitor() Monitor {
	return nopMonitor{}
}
