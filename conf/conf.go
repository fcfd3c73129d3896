package conf

import (
	"time"
)

type Config struct {
	Toolkit   Toolkit
	OSC       OSC
	Staleness time.Duration
}

// Toolkit tunes the loopback IPC backend. All reads use bounded retry
// counts with fixed inter-attempt delays rather than OS-level
// timeouts; exhausting a budget degrades to "no update this cycle".
type Toolkit struct {
	Addr string

	ConnectRetries    int
	ConnectRetryDelay time.Duration

	HandshakeRetries    int
	HandshakeRetryDelay time.Duration

	ReadRetries    int
	ReadRetryDelay time.Duration
}

type OSC struct {
	Addr string
}

func Default() Config {
	toolkit := Toolkit{
		Addr:                "127.0.0.1:55571",
		ConnectRetries:      15,
		ConnectRetryDelay:   time.Millisecond * 100,
		HandshakeRetries:    5,
		HandshakeRetryDelay: time.Millisecond * 100,
		ReadRetries:         5,
		ReadRetryDelay:      time.Millisecond,
	}

	osc := OSC{
		// VRChat eye tracking operates on port 9000 by convention.
		Addr: ":9000",
	}

	return Config{
		Toolkit:   toolkit,
		OSC:       osc,
		Staleness: time.Second,
	}
}
