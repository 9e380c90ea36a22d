package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"io"

	"golang.org/x/crypto/hkdf"
)

// KeySize is the size of every derived symmetric key.
const KeySize = 32

const saltPrefix = "momentkey/v1/"

// Derive is HKDF-SHA256 extract-and-expand. The label goes into the salt, so
// two labels yield independent pseudorandom keys from the same secret; extra
// is the expand info.
func Derive(secret []byte, label string, extra []byte) []byte {
	r := hkdf.New(sha256.New, secret, []byte(saltPrefix+label), extra)
	out := make([]byte, KeySize)
	_, _ = io.ReadFull(r, out)
	return out
}

// Hash returns SHA-256 over label followed by each part prefixed with its
// 4-byte big-endian length.
func Hash(label string, parts ...[]byte) [32]byte {
	h := sha256.New()
	writeFramed(h, label, parts)
	var out [32]byte
	h.Sum(out[:0])
	return out
}

// MAC returns HMAC-SHA256 under key over the same framing as Hash.
func MAC(key []byte, label string, parts ...[]byte) []byte {
	m := hmac.New(sha256.New, key)
	writeFramed(m, label, parts)
	return m.Sum(nil)
}

// VerifyMAC checks tag in constant time.
func VerifyMAC(key, tag []byte, label string, parts ...[]byte) bool {
	return hmac.Equal(tag, MAC(key, label, parts...))
}

// Concat joins parts into a fresh buffer.
func Concat(parts ...[]byte) []byte {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]byte, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// Uint64 returns v big-endian.
func Uint64(v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return b[:]
}

func writeFramed(w io.Writer, label string, parts [][]byte) {
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(label)))
	w.Write(n[:])
	io.WriteString(w, label)
	for _, p := range parts {
		binary.BigEndian.PutUint32(n[:], uint32(len(p)))
		w.Write(n[:])
		w.Write(p)
	}
}
