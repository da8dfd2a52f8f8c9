package jvs

import (
	"encoding/binary"
	"encoding/hex"
)

const (
	Sync byte = 0xE0

	HeaderLen   = 3
	ChecksumLen = 1
	// MaxPayloadLen keeps LEN = payload+1 inside 16 bits.
	MaxPayloadLen = 0xFFFF - 1

	ReportChecksumFailure byte = 0x03
)

// ErrorReportFrame is sent to the peer when a received checksum fails.
// Its SUM byte is a fixed literal expected by peers and is not recomputed.
var ErrorReportFrame = [5]byte{Sync, 0x00, 0x02, ReportChecksumFailure, 0x05}

// Frame is one decoded frame. Payload is owned by the Handler that produced
// it and must not be modified.
type Frame struct {
	Payload []byte
	Length  int
	Status  bool
}

func (f Frame) Hex() string {
	return hex.EncodeToString(f.Payload)
}

// FrameSize is the on-wire size of a frame carrying n payload bytes.
func FrameSize(n int) int {
	return HeaderLen + n + ChecksumLen
}

// Encode assembles a complete frame for payload.
func Encode(payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadLen {
		return nil, ErrPayloadTooLarge
	}
	buf := make([]byte, FrameSize(len(payload)))
	buf[0] = Sync
	binary.BigEndian.PutUint16(buf[1:3], uint16(len(payload)+1))
	copy(buf[HeaderLen:], payload)
	buf[len(buf)-1] = Checksum(payload)
	return buf, nil
}

// lengthField returns LEN as carried on the wire.
func lengthField(b []byte) uint16 {
	return binary.BigEndian.Uint16(b)
}
