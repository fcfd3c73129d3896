package tracker

import (
	"github.com/overlayvr/gazenet/conf"
	"github.com/overlayvr/gazenet/xgaze"
)

type Option func(o *Options)

func WithConf(conf conf.Config) Option {
	return func(o *Options) {
		o.conf = conf
	}
}

func WithMonitor(monitor xgaze.Monitor) Option {
	return func(o *Options) {
		o.monitor = monitor
	}
}

type Options struct {
	conf    conf.Config
	monitor xgaze.Monitor
}

func NewOptions(opts ...Option) *Options {
	o := &Options{
		conf:    conf.Default(),
		monitor: xgaze.NopMonitor(),
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

func (o *Options) Conf() conf.Config {
	return o.conf
}

func (o *Options) Monitor() xgaze.Monitor {
	return o.monitor
}
