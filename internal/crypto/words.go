package crypto

import "github.com/tyler-smith/go-bip39"

// SafetyWords renders the first 128 bits of a transcript hash as 12 BIP-39
// words so people at a gathering can compare what their devices agreed on.
func SafetyWords(transcript [32]byte) (string, error) {
	return bip39.NewMnemonic(transcript[:16])
}
