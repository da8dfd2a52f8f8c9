package jvs

import "errors"

var (
	ErrPayloadTooLarge    = errors.New("jvs: payload too large")
	ErrTransmitIncomplete = errors.New("jvs: transmit incomplete")
	ErrChecksumMismatch   = errors.New("jvs: checksum mismatch")
	ErrLengthMismatch     = errors.New("jvs: available bytes do not match length")
	ErrInvalidLength      = errors.New("jvs: invalid length field")
	ErrBadSync            = errors.New("jvs: missing sync byte")
)
