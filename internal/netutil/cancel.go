package netutil

import (
	"context"
	"io"
	"time"

	"github.com/go-kratos/kratos/v2/log"
)

type Deadline interface {
	SetDeadline(t time.Time) error
}

// SetDeadlineOnCancel expires the connection's deadline when the
// context is canceled, turning a blocked read into a retryable error.
func SetDeadlineOnCancel(ctx context.Context, d Deadline, tag string) {
	go func() {
		<-ctx.Done()

		log.Debugf("[netutil.SetDeadlineOnCancel] %s expiring deadline", tag)

		if err := d.SetDeadline(time.Now()); err != nil {
			log.Errorf("[netutil.SetDeadlineOnCancel] %s failed. %+v", tag, err)
		}
	}()
}

// CloseOnCancel closes the resource when the context is canceled. Used
// for listeners whose receive call can only be unblocked by closing.
func CloseOnCancel(ctx context.Context, closer io.Closer, tag string) {
	go func() {
		<-ctx.Done()

		log.Debugf("[netutil.CloseOnCancel] %s closing", tag)

		if err := closer.Close(); err != nil {
			log.Debugf("[netutil.CloseOnCancel] %s close failed: %v", tag, err)
		}
	}()
}
