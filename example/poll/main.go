package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-pantheon/fabrica-util/errors"
	"github.com/go-pantheon/fabrica-util/xsync"
	"github.com/overlayvr/gazenet/http/health"
	"github.com/overlayvr/gazenet/metrics"
	"github.com/overlayvr/gazenet/tracker"
	"github.com/overlayvr/gazenet/xgaze"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

// Stands in for the host runtime: picks the first available gaze
// source, then polls it at frame rate.
func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	monitor := metrics.NewMonitor(prometheus.DefaultRegisterer)

	src, err := tracker.FirstAvailable(ctx,
		[]xgaze.TrackerType{xgaze.TrackerToolkitIPC, xgaze.TrackerOSC},
		tracker.WithMonitor(monitor),
	)
	if err != nil {
		log.Errorf("no gaze tracking available. %+v", err)
		return
	}

	if err := src.Start(ctx); err != nil {
		panic(err)
	}

	defer func() {
		if err := src.Stop(ctx); err != nil {
			log.Errorf("stop tracker failed. %+v", err)
		}
	}()

	healthSrv := health.NewServer("0.0.0.0:8090")

	go func() {
		if err := healthSrv.Start(ctx); err != nil {
			log.Errorf("health server failed. %+v", err)
		}
	}()

	defer func() {
		if err := healthSrv.Stop(ctx); err != nil {
			log.Errorf("stop health server failed. %+v", err)
		}
	}()

	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		ticker := time.NewTicker(time.Second / 90)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case now := <-ticker.C:
				if gaze, ok := src.Gaze(now); ok {
					log.Infof("[%s] gaze=(%.3f, %.3f, %.3f)", src.Type(), gaze.X, gaze.Y, gaze.Z)
				} else {
					log.Debugf("[%s] no gaze", src.Type())
				}
			}
		}
	})

	c := make(chan os.Signal, 1)

	eg.Go(func() error {
		signal.Notify(c, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
		<-c

		return xsync.ErrSignalStop
	})

	if err := eg.Wait(); err != nil &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, xsync.ErrSignalStop) {
		log.Errorf("poller failed. %+v", err)
	} else {
		log.Infof("poller stopped")
	}
}
