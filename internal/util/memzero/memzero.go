package memzero

import "crypto/subtle"

// Zero overwrites b with zeros in a constant-time friendly way.
func Zero(b []byte) {
	if len(b) == 0 {
		return
	}
	zero := make([]byte, len(b))
	subtle.ConstantTimeCopy(1, b, zero)
}

// ZeroAll zeroes every buffer in bufs. Nil entries are skipped.
func ZeroAll(bufs ...[]byte) {
	for _, b := range bufs {
		Zero(b)
	}
}

// Zero32 zeroes a fixed 32-byte array in place, e.g. an X25519 scalar.
func Zero32(k *[32]byte) {
	if k == nil {
		return
	}
	Zero(k[:])
}
