package jvs

import (
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Transport is the byte-stream primitive a Handler runs on.
type Transport interface {
	Write(p []byte) (int, error)
	// ReadExact blocks until n bytes are read or the transport fails.
	ReadExact(n int) ([]byte, error)
	// Available reports bytes that can be read without blocking.
	Available() int
}

// LengthCheck selects how a decoded LEN is matched against Available.
type LengthCheck int

const (
	// LengthCheckExact requires Available to equal the full 16-bit LEN.
	LengthCheckExact LengthCheck = iota
	// LengthCheckLowByte compares Available with the low byte of LEN only,
	// matching peripheral firmware that never sends LEN > 255.
	LengthCheckLowByte
	// LengthCheckBlocking skips the check and blocks on the payload read.
	LengthCheckBlocking
)

func (c LengthCheck) String() string {
	switch c {
	case LengthCheckExact:
		return "exact"
	case LengthCheckLowByte:
		return "low_byte"
	case LengthCheckBlocking:
		return "blocking"
	default:
		return fmt.Sprintf("LengthCheck(%d)", int(c))
	}
}

// ParseLengthCheck maps a config value onto a LengthCheck. Empty means exact.
func ParseLengthCheck(raw string) (LengthCheck, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "exact", "full":
		return LengthCheckExact, nil
	case "low_byte", "lowbyte", "compat":
		return LengthCheckLowByte, nil
	case "blocking", "none", "off":
		return LengthCheckBlocking, nil
	default:
		return LengthCheckExact, fmt.Errorf("jvs: unknown length check %q", raw)
	}
}

type Option func(*Handler)

// WithLogger sets the diagnostics sink. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(h *Handler) {
		h.log = logger
	}
}

func WithLengthCheck(check LengthCheck) Option {
	return func(h *Handler) {
		h.check = check
	}
}

// Handler sends and receives frames over one Transport and keeps the most
// recently decoded frame.
type Handler struct {
	t     Transport
	log   zerolog.Logger
	check LengthCheck

	recvMu  sync.Mutex
	writeMu sync.Mutex

	mu    sync.RWMutex
	frame Frame
	sum   byte
}

func NewHandler(t Transport, opts ...Option) *Handler {
	h := &Handler{
		t:     t,
		log:   zerolog.Nop(),
		check: LengthCheckExact,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) LengthCheck() LengthCheck {
	return h.check
}

// Last returns the frame produced by the most recent decode.
func (h *Handler) Last() Frame {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.frame
}

// LastChecksum returns the checksum computed for the most recent decoded payload.
func (h *Handler) LastChecksum() byte {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sum
}

// Send encodes payload and writes the whole frame in a single transport write.
// Any short write is reported as ErrTransmitIncomplete; there is no retry.
func (h *Handler) Send(payload []byte) error {
	buf, err := Encode(payload)
	if err != nil {
		return err
	}
	n, err := h.write(buf)
	if err != nil {
		h.log.Warn().Err(err).Int("wrote", n).Int("size", len(buf)).Msg("jvs: send failed")
		return fmt.Errorf("%w: wrote %d of %d bytes: %w", ErrTransmitIncomplete, n, len(buf), err)
	}
	if n != len(buf) {
		h.log.Warn().Int("wrote", n).Int("size", len(buf)).Msg("jvs: short write")
		return fmt.Errorf("%w: wrote %d of %d bytes", ErrTransmitIncomplete, n, len(buf))
	}
	h.log.Debug().Hex("frame", buf).Msg("jvs: sent frame")
	return nil
}

// Receive reads one frame including its SYNC byte.
func (h *Handler) Receive() (Frame, error) {
	h.recvMu.Lock()
	defer h.recvMu.Unlock()

	header, err := h.t.ReadExact(HeaderLen)
	if err != nil {
		return Frame{}, fmt.Errorf("jvs: read header: %w", err)
	}
	if header[0] != Sync {
		h.log.Debug().Hex("header", header).Msg("jvs: bad sync")
		return Frame{}, fmt.Errorf("%w: got 0x%02X", ErrBadSync, header[0])
	}
	h.log.Debug().Hex("header", header).Msg("jvs: received header")
	return h.decode(header[1:])
}

// ReceiveAfterSync reads one frame whose SYNC byte the caller has already
// consumed, for example through Resync.
func (h *Handler) ReceiveAfterSync() (Frame, error) {
	h.recvMu.Lock()
	defer h.recvMu.Unlock()

	lenBytes, err := h.t.ReadExact(HeaderLen - 1)
	if err != nil {
		return Frame{}, fmt.Errorf("jvs: read length: %w", err)
	}
	h.log.Debug().Hex("length", lenBytes).Msg("jvs: received length")
	return h.decode(lenBytes)
}

// Resync discards bytes up to and including the next SYNC and returns the
// number of bytes dropped before it.
func (h *Handler) Resync() (int, error) {
	h.recvMu.Lock()
	defer h.recvMu.Unlock()

	dropped := 0
	for {
		b, err := h.t.ReadExact(1)
		if err != nil {
			return dropped, fmt.Errorf("jvs: resync: %w", err)
		}
		if b[0] == Sync {
			if dropped > 0 {
				h.log.Debug().Int("dropped", dropped).Msg("jvs: resynchronized")
			}
			return dropped, nil
		}
		dropped++
	}
}

func (h *Handler) decode(lenBytes []byte) (Frame, error) {
	field := lengthField(lenBytes)

	h.mu.Lock()
	h.frame = Frame{}
	h.mu.Unlock()

	if field == 0 {
		return Frame{}, ErrInvalidLength
	}
	length := int(field) - 1

	h.mu.Lock()
	h.frame.Length = length
	h.mu.Unlock()

	if avail, ok := h.lengthAvailable(field); !ok {
		h.log.Debug().Int("available", avail).Uint16("len", field).Str("check", h.check.String()).
			Msg("jvs: length check failed")
		return h.Last(), fmt.Errorf("%w: available=%d len=%d", ErrLengthMismatch, avail, field)
	}

	payload, err := h.t.ReadExact(length)
	if err != nil {
		return h.Last(), fmt.Errorf("jvs: read payload: %w", err)
	}
	h.mu.Lock()
	h.frame.Payload = payload
	h.mu.Unlock()

	sumBytes, err := h.t.ReadExact(ChecksumLen)
	if err != nil {
		return h.Last(), fmt.Errorf("jvs: read checksum: %w", err)
	}
	got := sumBytes[0]
	want := Checksum(payload)

	h.mu.Lock()
	h.sum = want
	h.frame.Status = got == want
	frame := h.frame
	h.mu.Unlock()

	h.log.Debug().
		Int("length", length).
		Hex("payload", payload).
		Hex("checksum", sumBytes).
		Msg("jvs: received frame")

	if !frame.Status {
		h.reportChecksumFailure()
		return frame, fmt.Errorf("%w: want 0x%02X got 0x%02X", ErrChecksumMismatch, want, got)
	}
	return frame, nil
}

func (h *Handler) lengthAvailable(field uint16) (int, bool) {
	switch h.check {
	case LengthCheckBlocking:
		return h.t.Available(), true
	case LengthCheckLowByte:
		avail := h.t.Available()
		return avail, avail == int(field&0xFF)
	default:
		avail := h.t.Available()
		return avail, avail == int(field)
	}
}

func (h *Handler) reportChecksumFailure() {
	n, err := h.write(ErrorReportFrame[:])
	if err != nil || n != len(ErrorReportFrame) {
		h.log.Warn().Err(err).Int("wrote", n).Msg("jvs: error report not delivered")
		return
	}
	h.log.Debug().Hex("frame", ErrorReportFrame[:]).Msg("jvs: sent checksum failure report")
}

func (h *Handler) write(buf []byte) (int, error) {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	return h.t.Write(buf)
}
