package crypto_test

import (
	"bytes"
	"errors"
	"testing"

	"momentkey/internal/crypto"
	"momentkey/internal/domain"
)

func mustSplit(t *testing.T, secret []byte, k, n int) []crypto.Share {
	t.Helper()
	shares, err := crypto.Split(secret, k, n)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(shares) != n {
		t.Fatalf("want %d shares, got %d", n, len(shares))
	}
	return shares
}

// subsets returns every size-k index subset of [0,n).
func subsets(n, k int) [][]int {
	var out [][]int
	var rec func(start int, cur []int)
	rec = func(start int, cur []int) {
		if len(cur) == k {
			out = append(out, append([]int(nil), cur...))
			return
		}
		for i := start; i < n; i++ {
			rec(i+1, append(cur, i))
		}
	}
	rec(0, nil)
	return out
}

func pick(shares []crypto.Share, idx []int) []crypto.Share {
	out := make([]crypto.Share, len(idx))
	for i, j := range idx {
		out[i] = shares[j]
	}
	return out
}

func TestSplitCombine_EveryKSubsetRecovers(t *testing.T) {
	for _, size := range []int{1, 15, 16, 32, 65} {
		secret := bytes.Repeat([]byte{0xA5}, size)
		secret[0] = 0xff
		shares := mustSplit(t, secret, 3, 5)
		for _, idx := range subsets(5, 3) {
			got, err := crypto.Combine(pick(shares, idx), 3)
			if err != nil {
				t.Fatalf("size %d subset %v: %v", size, idx, err)
			}
			if !bytes.Equal(got, secret) {
				t.Fatalf("size %d subset %v: secret mismatch", size, idx)
			}
		}
	}
}

func TestCombine_BelowThresholdFails(t *testing.T) {
	secret := bytes.Repeat([]byte{7}, 32)
	shares := mustSplit(t, secret, 3, 5)
	for _, idx := range subsets(5, 2) {
		_, err := crypto.Combine(pick(shares, idx), 3)
		if !errors.Is(err, domain.ErrInsufficientShares) {
			t.Fatalf("subset %v: want ErrInsufficientShares, got %v", idx, err)
		}
	}
}

func TestCombine_DuplicateSharesDoNotCount(t *testing.T) {
	shares := mustSplit(t, []byte("seed"), 2, 3)
	_, err := crypto.Combine([]crypto.Share{shares[0], shares[0]}, 2)
	if !errors.Is(err, domain.ErrInsufficientShares) {
		t.Fatalf("want ErrInsufficientShares, got %v", err)
	}
}

func TestCombine_MixedSetsInconsistent(t *testing.T) {
	a := mustSplit(t, []byte("first secret"), 2, 3)
	b := mustSplit(t, []byte("first secret"), 2, 3)
	_, err := crypto.Combine([]crypto.Share{a[0], b[1]}, 2)
	if !errors.Is(err, domain.ErrInconsistentShares) {
		t.Fatalf("want ErrInconsistentShares, got %v", err)
	}
}

func TestCombine_TamperedValueInconsistent(t *testing.T) {
	shares := mustSplit(t, bytes.Repeat([]byte{1}, 32), 2, 3)
	bad := shares[1]
	bad.Value = append([]byte(nil), bad.Value...)
	bad.Value[len(bad.Value)-1] ^= 1
	_, err := crypto.Combine([]crypto.Share{shares[0], bad}, 2)
	if !errors.Is(err, domain.ErrInconsistentShares) {
		t.Fatalf("want ErrInconsistentShares, got %v", err)
	}
}

func TestSplit_RejectsBadParameters(t *testing.T) {
	cases := []struct {
		name   string
		secret []byte
		k, n   int
	}{
		{"empty", nil, 2, 3},
		{"too long", make([]byte, crypto.MaxSecretLen+1), 2, 3},
		{"k of one", []byte("x"), 1, 3},
		{"k above n", []byte("x"), 4, 3},
	}
	for _, tc := range cases {
		if _, err := crypto.Split(tc.secret, tc.k, tc.n); err == nil {
			t.Fatalf("%s: want error", tc.name)
		}
	}
}

func TestShareEncodingRoundTrip(t *testing.T) {
	shares := mustSplit(t, bytes.Repeat([]byte{9}, 32), 2, 2)
	blob, err := shares[0].MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	got, err := crypto.DecodeShare(blob)
	if err != nil {
		t.Fatalf("DecodeShare: %v", err)
	}
	if _, err := crypto.Combine([]crypto.Share{got, shares[1]}, 2); err != nil {
		t.Fatalf("Combine after decode: %v", err)
	}
	if _, err := crypto.DecodeShare([]byte("{")); !errors.Is(err, crypto.ErrShareEncoding) {
		t.Fatalf("want ErrShareEncoding, got %v", err)
	}
}
