// Package tracker selects and constructs a concrete gaze source behind
// the uniform xgaze.Tracker surface. Selection happens once at
// construction; there is no dynamic re-binding at runtime.
package tracker

import (
	"context"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-pantheon/fabrica-util/errors"
	"github.com/overlayvr/gazenet/osc"
	"github.com/overlayvr/gazenet/toolkit"
	"github.com/overlayvr/gazenet/xgaze"
)

// New constructs the tracker variant named by kind. Construction
// performs the transport setup (and handshake where the protocol has
// one); if the source cannot be reached it returns
// xgaze.ErrTrackerUnavailable and no instance, which callers should
// treat as "try another source".
func New(ctx context.Context, kind xgaze.TrackerType, opts ...Option) (xgaze.Tracker, error) {
	o := NewOptions(opts...)

	switch kind {
	case xgaze.TrackerToolkitIPC:
		return toolkit.New(ctx, o.Conf(), o.Monitor())
	case xgaze.TrackerOSC:
		return osc.New(o.Conf(), o.Monitor())
	default:
		return nil, errors.Wrapf(xgaze.ErrTrackerUnavailable, "unknown tracker kind=%d", kind)
	}
}

// FirstAvailable tries the given variants in order and returns the
// first that constructs. It fails with xgaze.ErrTrackerUnavailable
// only when every variant is unavailable, which the host reports as
// "no gaze tracking".
func FirstAvailable(ctx context.Context, kinds []xgaze.TrackerType, opts ...Option) (xgaze.Tracker, error) {
	var err error

	for _, kind := range kinds {
		t, newErr := New(ctx, kind, opts...)
		if newErr == nil {
			log.Infof("[tracker] using gaze source: %s", t.Type())
			return t, nil
		}

		log.Debugf("[tracker] %s unavailable: %v", kind, newErr)
		err = errors.Join(err, newErr)
	}

	return nil, errors.Join(xgaze.ErrTrackerUnavailable, err)
}
