package toolkit

import (
	"context"
	"io"
	"math"
	"net"
	"testing"
	"time"

	"github.com/overlayvr/gazenet/conf"
	"github.com/overlayvr/gazenet/toolkit/frame"
	"github.com/overlayvr/gazenet/xgaze"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConf(addr string) conf.Config {
	cfg := conf.Default()
	cfg.Toolkit.Addr = addr
	cfg.Toolkit.ConnectRetries = 3
	cfg.Toolkit.ConnectRetryDelay = time.Millisecond * 10
	cfg.Toolkit.HandshakeRetries = 3
	cfg.Toolkit.HandshakeRetryDelay = time.Millisecond * 20
	cfg.Toolkit.ReadRetries = 5
	cfg.Toolkit.ReadRetryDelay = time.Millisecond * 5

	return cfg
}

// serveToolkit runs a single-connection fake toolkit server.
// handshakeResult < 0 means the handshake is never answered.
func serveToolkit(tb testing.TB, handshakeResult int, result frame.GazeResult) string {
	tb.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(tb, err)

	tb.Cleanup(func() {
		_ = ln.Close()
	})

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}

		defer conn.Close()

		buf := make([]byte, frame.HandshakeRequestSize)
		if _, err := io.ReadFull(conn, buf); err != nil {
			return
		}

		if handshakeResult < 0 {
			// Hold the connection open without answering.
			_, _ = io.Copy(io.Discard, conn)
			return
		}

		if _, err := conn.Write(frame.EncodeHandshakeResult(uint32(handshakeResult))); err != nil {
			return
		}

		req := make([]byte, frame.GazeRequestSize)

		for {
			if _, err := io.ReadFull(conn, req); err != nil {
				return
			}

			if _, err := conn.Write(frame.EncodeGazeResult(result)); err != nil {
				return
			}
		}
	}()

	return ln.Addr().String()
}

func bothEyes(x, y, z float32) frame.GazeResult {
	eye := frame.EyeSample{X: x, Y: y, Z: z, Valid: true}
	return frame.GazeResult{Left: eye, Right: eye}
}

func TestNewUnavailableWhenNoServer(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	tr, err := New(context.Background(), testConf(addr), nil)
	require.Nil(t, tr, "construction failure must not produce an instance")
	assert.ErrorIs(t, err, xgaze.ErrTrackerUnavailable)
}

func TestNewUnavailableWhenHandshakeUnanswered(t *testing.T) {
	t.Parallel()

	addr := serveToolkit(t, -1, frame.GazeResult{})

	tr, err := New(context.Background(), testConf(addr), nil)
	require.Nil(t, tr)
	assert.ErrorIs(t, err, xgaze.ErrTrackerUnavailable)
}

func TestNewUnavailableWhenHandshakeRejected(t *testing.T) {
	t.Parallel()

	addr := serveToolkit(t, 2, frame.GazeResult{})

	tr, err := New(context.Background(), testConf(addr), nil)
	require.Nil(t, tr)
	assert.ErrorIs(t, err, xgaze.ErrTrackerUnavailable)
}

func TestGazePublishPinsSignConvention(t *testing.T) {
	t.Parallel()

	// Raw eye directions average to (0, 0, 1); X and Z flip on
	// publish, so the host sees (0, 0, -1).
	addr := serveToolkit(t, int(frame.HandshakeSuccess), bothEyes(0, 0, 1))

	ctx := context.Background()

	tr, err := New(ctx, testConf(addr), nil)
	require.NoError(t, err)
	require.Equal(t, xgaze.TrackerToolkitIPC, tr.Type())

	require.NoError(t, tr.Start(ctx))

	defer func() {
		require.NoError(t, tr.Stop(ctx))
	}()

	require.Eventually(t, func() bool {
		return tr.IsGazeAvailable(time.Now())
	}, time.Second*2, time.Millisecond*10)

	gaze, ok := tr.Gaze(time.Now())
	require.True(t, ok)
	assert.InDelta(t, 0, gaze.X, 1e-6)
	assert.InDelta(t, 0, gaze.Y, 1e-6)
	assert.InDelta(t, -1, gaze.Z, 1e-6)
}

func TestStartTwiceRejected(t *testing.T) {
	t.Parallel()

	addr := serveToolkit(t, int(frame.HandshakeSuccess), bothEyes(0, 0, 1))

	ctx := context.Background()

	tr, err := New(ctx, testConf(addr), nil)
	require.NoError(t, err)

	require.NoError(t, tr.Start(ctx))

	defer func() {
		require.NoError(t, tr.Stop(ctx))
	}()

	assert.ErrorIs(t, tr.Start(ctx), xgaze.ErrAlreadyStarted)
}

func TestInvalidEyeSamplesAreDropped(t *testing.T) {
	t.Parallel()

	result := bothEyes(0, 0, 1)
	result.Right.Valid = false

	addr := serveToolkit(t, int(frame.HandshakeSuccess), result)

	ctx := context.Background()

	tr, err := New(ctx, testConf(addr), nil)
	require.NoError(t, err)

	require.NoError(t, tr.Start(ctx))

	defer func() {
		require.NoError(t, tr.Stop(ctx))
	}()

	time.Sleep(time.Millisecond * 150)
	assert.False(t, tr.IsGazeAvailable(time.Now()), "an invalid eye must keep the sample out")

	_, ok := tr.Gaze(time.Now())
	assert.False(t, ok)
}

func TestNaNSamplesAreDropped(t *testing.T) {
	t.Parallel()

	addr := serveToolkit(t, int(frame.HandshakeSuccess), bothEyes(0, float32(math.NaN()), 1))

	ctx := context.Background()

	tr, err := New(ctx, testConf(addr), nil)
	require.NoError(t, err)

	require.NoError(t, tr.Start(ctx))

	defer func() {
		require.NoError(t, tr.Stop(ctx))
	}()

	time.Sleep(time.Millisecond * 150)
	assert.False(t, tr.IsGazeAvailable(time.Now()))
}

func TestStopCompletesPromptly(t *testing.T) {
	t.Parallel()

	addr := serveToolkit(t, int(frame.HandshakeSuccess), bothEyes(0, 0, 1))

	ctx := context.Background()

	tr, err := New(ctx, testConf(addr), nil)
	require.NoError(t, err)
	require.NoError(t, tr.Start(ctx))

	started := time.Now()
	require.NoError(t, tr.Stop(ctx))
	assert.Less(t, time.Since(started), time.Second*3)
}

func TestFoldAveragesAndInvertsAxes(t *testing.T) {
	t.Parallel()

	got := fold(frame.GazeResult{
		Left:  frame.EyeSample{X: 0.2, Y: 0.1, Z: -0.9, Valid: true},
		Right: frame.EyeSample{X: 0.4, Y: 0.3, Z: -0.7, Valid: true},
	})

	assert.InDelta(t, -0.3, got.X, 1e-6)
	assert.InDelta(t, 0.2, got.Y, 1e-6)
	assert.InDelta(t, 0.8, got.Z, 1e-6)
}
