// Package frame implements the little-endian packed record layout of
// the local toolkit IPC protocol. Every record is a fixed-size header
// followed by a fixed-size payload; layouts are byte-exact and decoded
// explicitly, never by overlaying memory.
package frame

import (
	"encoding/binary"
	"math"

	"github.com/go-pantheon/fabrica-util/errors"
)

// ProtocolVersion is sent in the handshake request; the server rejects
// clients it cannot speak to.
const ProtocolVersion uint32 = 1

// Message types carried in the record header.
const (
	MsgClientRequestHandshake uint32 = 1
	MsgServerHandshakeResult  uint32 = 2
	MsgClientRequestGazeData  uint32 = 3
	MsgServerGazeDataResult   uint32 = 4
)

// HandshakeSuccess is the only accepted handshake result code. Zero is
// treated as unset so a zeroed buffer can never pass as success.
const HandshakeSuccess uint32 = 1

// Record sizes in bytes. The header is {type u32 @0, dataLen u32 @4}.
// Eye samples are {dir 3xf32 @0, valid u8 @12}, packed.
const (
	HeaderSize = 8

	handshakeRequestDataSize = 8
	handshakeResultDataSize  = 4
	eyeSampleSize            = 13
	gazeResultDataSize       = 2 * eyeSampleSize

	HandshakeRequestSize = HeaderSize + handshakeRequestDataSize
	HandshakeResultSize  = HeaderSize + handshakeResultDataSize
	GazeRequestSize      = HeaderSize
	GazeResultSize       = HeaderSize + gazeResultDataSize
)

var (
	ErrShortRecord    = errors.New("record shorter than fixed layout")
	ErrUnexpectedType = errors.New("unexpected message type")
	ErrBadDataLen     = errors.New("header data length mismatch")
)

type Header struct {
	Type    uint32
	DataLen uint32
}

// EyeSample is one eye's raw reading: a direction in the source's
// coordinate convention plus a validity flag. It only exists between
// decode and publish.
type EyeSample struct {
	X     float32
	Y     float32
	Z     float32
	Valid bool
}

func (s EyeSample) IsNaN() bool {
	return math.IsNaN(float64(s.X)) || math.IsNaN(float64(s.Y)) || math.IsNaN(float64(s.Z))
}

type GazeResult struct {
	Left  EyeSample
	Right EyeSample
}

func putHeader(b []byte, h Header) {
	binary.LittleEndian.PutUint32(b[0:4], h.Type)
	binary.LittleEndian.PutUint32(b[4:8], h.DataLen)
}

func parseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, ErrShortRecord
	}

	return Header{
		Type:    binary.LittleEndian.Uint32(b[0:4]),
		DataLen: binary.LittleEndian.Uint32(b[4:8]),
	}, nil
}

// EncodeHandshakeRequest builds the handshake record carrying the
// protocol version and the requesting process identity.
func EncodeHandshakeRequest(version uint32, processID uint32) []byte {
	b := make([]byte, HandshakeRequestSize)
	putHeader(b, Header{Type: MsgClientRequestHandshake, DataLen: handshakeRequestDataSize})
	binary.LittleEndian.PutUint32(b[HeaderSize:], version)
	binary.LittleEndian.PutUint32(b[HeaderSize+4:], processID)

	return b
}

// EncodeHandshakeResult builds the server's handshake reply. The
// server side of the protocol lives elsewhere; this encoder exists for
// tests and tooling.
func EncodeHandshakeResult(result uint32) []byte {
	b := make([]byte, HandshakeResultSize)
	putHeader(b, Header{Type: MsgServerHandshakeResult, DataLen: handshakeResultDataSize})
	binary.LittleEndian.PutUint32(b[HeaderSize:], result)

	return b
}

// DecodeHandshakeResult validates the record shape and returns the
// server's result code.
func DecodeHandshakeResult(b []byte) (uint32, error) {
	if len(b) < HandshakeResultSize {
		return 0, ErrShortRecord
	}

	h, err := parseHeader(b)
	if err != nil {
		return 0, err
	}

	if h.Type != MsgServerHandshakeResult {
		return 0, errors.Wrapf(ErrUnexpectedType, "type=%d", h.Type)
	}

	if h.DataLen != handshakeResultDataSize {
		return 0, errors.Wrapf(ErrBadDataLen, "dataLen=%d", h.DataLen)
	}

	return binary.LittleEndian.Uint32(b[HeaderSize:]), nil
}

// EncodeGazeRequest builds the zero-payload gaze polling record.
func EncodeGazeRequest() []byte {
	b := make([]byte, GazeRequestSize)
	putHeader(b, Header{Type: MsgClientRequestGazeData, DataLen: 0})

	return b
}

// EncodeGazeResult builds a gaze data record. The server side of the
// protocol lives elsewhere; this encoder exists for tests and tooling.
func EncodeGazeResult(r GazeResult) []byte {
	b := make([]byte, GazeResultSize)
	putHeader(b, Header{Type: MsgServerGazeDataResult, DataLen: gazeResultDataSize})
	putEye(b[HeaderSize:], r.Left)
	putEye(b[HeaderSize+eyeSampleSize:], r.Right)

	return b
}

// DecodeGazeResult validates the record shape and unpacks both eyes.
func DecodeGazeResult(b []byte) (GazeResult, error) {
	if len(b) < GazeResultSize {
		return GazeResult{}, ErrShortRecord
	}

	h, err := parseHeader(b)
	if err != nil {
		return GazeResult{}, err
	}

	if h.Type != MsgServerGazeDataResult {
		return GazeResult{}, errors.Wrapf(ErrUnexpectedType, "type=%d", h.Type)
	}

	if h.DataLen != gazeResultDataSize {
		return GazeResult{}, errors.Wrapf(ErrBadDataLen, "dataLen=%d", h.DataLen)
	}

	return GazeResult{
		Left:  parseEye(b[HeaderSize:]),
		Right: parseEye(b[HeaderSize+eyeSampleSize:]),
	}, nil
}

func putEye(b []byte, s EyeSample) {
	binary.LittleEndian.PutUint32(b[0:4], math.Float32bits(s.X))
	binary.LittleEndian.PutUint32(b[4:8], math.Float32bits(s.Y))
	binary.LittleEndian.PutUint32(b[8:12], math.Float32bits(s.Z))

	if s.Valid {
		b[12] = 1
	} else {
		b[12] = 0
	}
}

func parseEye(b []byte) EyeSample {
	return EyeSample{
		X:     math.Float32frombits(binary.LittleEndian.Uint32(b[0:4])),
		Y:     math.Float32frombits(binary.LittleEndian.Uint32(b[4:8])),
		Z:     math.Float32frombits(binary.LittleEndian.Uint32(b[8:12])),
		Valid: b[12] != 0,
	}
}
