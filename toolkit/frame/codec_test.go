package frame

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeHandshakeRequestLayout(t *testing.T) {
	t.Parallel()

	b := EncodeHandshakeRequest(ProtocolVersion, 4242)
	require.Len(t, b, HandshakeRequestSize)

	assert.Equal(t, MsgClientRequestHandshake, binary.LittleEndian.Uint32(b[0:4]))
	assert.Equal(t, uint32(8), binary.LittleEndian.Uint32(b[4:8]))
	assert.Equal(t, ProtocolVersion, binary.LittleEndian.Uint32(b[8:12]))
	assert.Equal(t, uint32(4242), binary.LittleEndian.Uint32(b[12:16]))
}

func TestEncodeGazeRequestLayout(t *testing.T) {
	t.Parallel()

	b := EncodeGazeRequest()
	require.Len(t, b, GazeRequestSize)

	assert.Equal(t, MsgClientRequestGazeData, binary.LittleEndian.Uint32(b[0:4]))
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(b[4:8]), "gaze request carries no payload")
}

func TestDecodeHandshakeResult(t *testing.T) {
	t.Parallel()

	b := make([]byte, HandshakeResultSize)
	binary.LittleEndian.PutUint32(b[0:4], MsgServerHandshakeResult)
	binary.LittleEndian.PutUint32(b[4:8], 4)
	binary.LittleEndian.PutUint32(b[8:12], HandshakeSuccess)

	result, err := DecodeHandshakeResult(b)
	require.NoError(t, err)
	assert.Equal(t, HandshakeSuccess, result)
}

func TestDecodeHandshakeResultRejectsBadRecords(t *testing.T) {
	t.Parallel()

	good := make([]byte, HandshakeResultSize)
	binary.LittleEndian.PutUint32(good[0:4], MsgServerHandshakeResult)
	binary.LittleEndian.PutUint32(good[4:8], 4)
	binary.LittleEndian.PutUint32(good[8:12], HandshakeSuccess)

	_, err := DecodeHandshakeResult(good[:HandshakeResultSize-1])
	assert.ErrorIs(t, err, ErrShortRecord)

	wrongType := append([]byte(nil), good...)
	binary.LittleEndian.PutUint32(wrongType[0:4], MsgServerGazeDataResult)

	_, err = DecodeHandshakeResult(wrongType)
	assert.ErrorIs(t, err, ErrUnexpectedType)

	wrongLen := append([]byte(nil), good...)
	binary.LittleEndian.PutUint32(wrongLen[4:8], 99)

	_, err = DecodeHandshakeResult(wrongLen)
	assert.ErrorIs(t, err, ErrBadDataLen)
}

func TestZeroedBufferIsNotSuccess(t *testing.T) {
	t.Parallel()

	b := make([]byte, HandshakeResultSize)

	_, err := DecodeHandshakeResult(b)
	assert.Error(t, err, "an all-zero record must never pass as a successful handshake")
}

func TestGazeResultRoundTrip(t *testing.T) {
	t.Parallel()

	in := GazeResult{
		Left:  EyeSample{X: 0.1, Y: -0.2, Z: -0.97, Valid: true},
		Right: EyeSample{X: -0.1, Y: 0.2, Z: -0.97, Valid: false},
	}

	b := EncodeGazeResult(in)
	require.Len(t, b, GazeResultSize)

	out, err := DecodeGazeResult(b)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestGazeResultLayout(t *testing.T) {
	t.Parallel()

	b := EncodeGazeResult(GazeResult{
		Left:  EyeSample{X: 1, Y: 2, Z: 3, Valid: true},
		Right: EyeSample{X: 4, Y: 5, Z: 6, Valid: true},
	})

	// Left eye at header end, right eye packed 13 bytes later.
	assert.Equal(t, float32(1), math.Float32frombits(binary.LittleEndian.Uint32(b[8:12])))
	assert.Equal(t, byte(1), b[20], "left validity flag offset")
	assert.Equal(t, float32(4), math.Float32frombits(binary.LittleEndian.Uint32(b[21:25])))
	assert.Equal(t, byte(1), b[33], "right validity flag offset")
}

func TestDecodeGazeResultRejectsTruncatedRecord(t *testing.T) {
	t.Parallel()

	b := EncodeGazeResult(GazeResult{})

	_, err := DecodeGazeResult(b[:GazeResultSize-5])
	assert.ErrorIs(t, err, ErrShortRecord)
}

func TestEyeSampleIsNaN(t *testing.T) {
	t.Parallel()

	nan := float32(math.NaN())

	assert.False(t, EyeSample{Z: -1, Valid: true}.IsNaN())
	assert.True(t, EyeSample{X: nan}.IsNaN())
	assert.True(t, EyeSample{Y: nan}.IsNaN())
	assert.True(t, EyeSample{Z: nan}.IsNaN())
}
