// Package jvs owns the JVS-style frame contract.
//
// Ownership boundary:
// - checksum over LEN and payload
// - frame encode (Encode, Handler.Send)
// - frame decode and validation (Handler.Receive, Handler.ReceiveAfterSync)
//
// Wire layout:
//
//	[SYNC 0xE0][LEN u16 BE][PAYLOAD LEN-1 bytes][SUM]
//
// LEN counts the payload plus the SUM byte. SUM is (LEN + sum(payload)) mod 256.
//
// Each Handler method is safe to call concurrently, and Last never waits on a
// read in flight. Frames on one transport are strictly sequential. A Resync
// followed by ReceiveAfterSync is two separate calls, so one goroutine must
// drive that pair with no other receive on the same Handler in between.
package jvs
