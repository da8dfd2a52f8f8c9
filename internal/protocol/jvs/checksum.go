package jvs

// Checksum returns (LEN + sum(payload)) mod 256 where LEN is len(payload)+1.
// Encoder and decoder must agree on covering the on-wire LEN value.
func Checksum(payload []byte) byte {
	sum := uint32(len(payload)) + 1
	for _, b := range payload {
		sum += uint32(b)
	}
	return byte(sum % 256)
}
