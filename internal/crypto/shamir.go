package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sort"

	"momentkey/internal/domain"
)

// MaxSecretLen is the largest secret Split accepts.
const MaxSecretLen = 65

const maxShares = 255

var (
	p127 = mersenne(127)
	p521 = mersenne(521)
)

// Share is one point of a Shamir split. Every share of a split carries the
// same SetID, parameters and Checksum so Combine can detect mixed sets.
type Share struct {
	SetID     [16]byte `json:"set_id"`
	X         int      `json:"x"`
	Value     []byte   `json:"value"`
	Field     int      `json:"field"` // Mersenne exponent of the prime
	Threshold int      `json:"threshold"`
	Total     int      `json:"total"`
	SecretLen int      `json:"secret_len"`
	Checksum  [32]byte `json:"checksum"`
}

// MarshalBinary encodes the share for transport and storage.
func (s Share) MarshalBinary() ([]byte, error) { return json.Marshal(s) }

// UnmarshalBinary decodes a share produced by MarshalBinary.
func (s *Share) UnmarshalBinary(b []byte) error { return json.Unmarshal(b, s) }

// Split divides secret into n shares, any k of which recover it.
func Split(secret []byte, k, n int) ([]Share, error) {
	if len(secret) == 0 || len(secret) > MaxSecretLen {
		return nil, fmt.Errorf("split: secret length %d out of range", len(secret))
	}
	if k < 2 || n < k || n > maxShares {
		return nil, fmt.Errorf("split: invalid threshold %d of %d", k, n)
	}
	exp := fieldFor(len(secret))
	p := primeFor(exp)

	var setID [16]byte
	if _, err := rand.Read(setID[:]); err != nil {
		return nil, err
	}
	coeffs := make([]*big.Int, k)
	coeffs[0] = new(big.Int).SetBytes(secret)
	for i := 1; i < k; i++ {
		c, err := rand.Int(rand.Reader, p)
		if err != nil {
			return nil, err
		}
		coeffs[i] = c
	}
	sum := shareChecksum(setID, secret)

	width := fieldWidth(exp)
	shares := make([]Share, n)
	for i := 0; i < n; i++ {
		x := big.NewInt(int64(i + 1))
		y := new(big.Int)
		for j := k - 1; j >= 0; j-- {
			y.Mul(y, x)
			y.Add(y, coeffs[j])
			y.Mod(y, p)
		}
		shares[i] = Share{
			SetID:     setID,
			X:         i + 1,
			Value:     y.FillBytes(make([]byte, width)),
			Field:     exp,
			Threshold: k,
			Total:     n,
			SecretLen: len(secret),
			Checksum:  sum,
		}
	}
	for _, c := range coeffs {
		c.SetInt64(0)
	}
	return shares, nil
}

// Combine recovers the secret from at least k distinct shares of one split.
// k below the split's own threshold is raised to it.
//
// Fewer than k distinct shares fail with domain.ErrInsufficientShares. Shares
// from different splits, conflicting duplicates or a checksum mismatch fail
// with domain.ErrInconsistentShares.
func Combine(shares []Share, k int) ([]byte, error) {
	if len(shares) == 0 {
		return nil, fmt.Errorf("%w: no shares", domain.ErrInsufficientShares)
	}
	ref := shares[0]
	if ref.Field != 127 && ref.Field != 521 {
		return nil, fmt.Errorf("%w: unknown field", domain.ErrInconsistentShares)
	}
	if ref.SecretLen <= 0 || ref.SecretLen > MaxSecretLen || ref.Threshold < 2 || ref.Total < ref.Threshold {
		return nil, fmt.Errorf("%w: bad parameters", domain.ErrInconsistentShares)
	}
	if k < ref.Threshold {
		k = ref.Threshold
	}

	byX := make(map[int]Share, len(shares))
	for _, s := range shares {
		if !sameSet(ref, s) {
			return nil, fmt.Errorf("%w: shares from different splits", domain.ErrInconsistentShares)
		}
		if s.X < 1 || s.X > s.Total {
			return nil, fmt.Errorf("%w: share index %d", domain.ErrInconsistentShares, s.X)
		}
		if prev, ok := byX[s.X]; ok {
			if subtle.ConstantTimeCompare(prev.Value, s.Value) != 1 {
				return nil, fmt.Errorf("%w: conflicting share %d", domain.ErrInconsistentShares, s.X)
			}
			continue
		}
		byX[s.X] = s
	}
	if len(byX) < k {
		return nil, fmt.Errorf("%w: have %d of %d", domain.ErrInsufficientShares, len(byX), k)
	}

	xs := make([]int, 0, len(byX))
	for x := range byX {
		xs = append(xs, x)
	}
	sort.Ints(xs)
	xs = xs[:k]

	p := primeFor(ref.Field)
	secret := new(big.Int)
	for i, xi := range xs {
		num, den := big.NewInt(1), big.NewInt(1)
		for j, xj := range xs {
			if i == j {
				continue
			}
			num.Mul(num, big.NewInt(int64(-xj)))
			num.Mod(num, p)
			den.Mul(den, big.NewInt(int64(xi-xj)))
			den.Mod(den, p)
		}
		term := new(big.Int).SetBytes(byX[xi].Value)
		term.Mul(term, num)
		term.Mul(term, den.ModInverse(den, p))
		secret.Add(secret, term)
		secret.Mod(secret, p)
	}
	defer secret.SetInt64(0)

	if secret.BitLen() > 8*ref.SecretLen {
		return nil, fmt.Errorf("%w: checksum mismatch", domain.ErrInconsistentShares)
	}
	out := secret.FillBytes(make([]byte, ref.SecretLen))
	sum := shareChecksum(ref.SetID, out)
	if subtle.ConstantTimeCompare(sum[:], ref.Checksum[:]) != 1 {
		for i := range out {
			out[i] = 0
		}
		return nil, fmt.Errorf("%w: checksum mismatch", domain.ErrInconsistentShares)
	}
	return out, nil
}

// ErrShareEncoding is returned when a share blob cannot be decoded.
var ErrShareEncoding = errors.New("malformed share")

// DecodeShare parses a share produced by MarshalBinary.
func DecodeShare(b []byte) (Share, error) {
	var s Share
	if err := s.UnmarshalBinary(b); err != nil {
		return Share{}, fmt.Errorf("%w: %v", ErrShareEncoding, err)
	}
	if (s.Field != 127 && s.Field != 521) || len(s.Value) != fieldWidth(s.Field) {
		return Share{}, ErrShareEncoding
	}
	return s, nil
}

func sameSet(a, b Share) bool {
	return a.SetID == b.SetID && a.Field == b.Field && a.Threshold == b.Threshold &&
		a.Total == b.Total && a.SecretLen == b.SecretLen && a.Checksum == b.Checksum
}

func shareChecksum(setID [16]byte, secret []byte) [32]byte {
	return Hash("SHARE-SET", setID[:], secret)
}

func fieldFor(n int) int {
	if n <= 15 {
		return 127
	}
	return 521
}

func primeFor(exp int) *big.Int {
	if exp == 127 {
		return p127
	}
	return p521
}

func fieldWidth(exp int) int { return (exp + 7) / 8 }

func mersenne(exp uint) *big.Int {
	p := new(big.Int).Lsh(big.NewInt(1), exp)
	return p.Sub(p, big.NewInt(1))
}
