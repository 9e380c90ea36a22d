package moment

import (
	"momentkey/internal/crypto"
	"momentkey/internal/domain"
	"momentkey/internal/util/memzero"
)

// ShareStorageLabel selects the token-local key that encrypts stored shares.
const ShareStorageLabel = "ShareStorage"

// ShareStorageAD binds a stored share to its moment and owner.
func ShareStorageAD(id domain.MomentID, token domain.TokenID) []byte {
	return crypto.Concat([]byte("mk-share-store"), id.Slice(), token.Slice())
}

// ShareTransportKey derives the key a token seals a released share under.
// ephDH is DH(token_eph, requester_eph) and ltDH is DH(token_lt,
// requester_eph); both are wiped.
func ShareTransportKey(ephDH, ltDH []byte, id domain.MomentID, token domain.TokenID, requester domain.X25519Public) []byte {
	ikm := crypto.Concat(ephDH, ltDH)
	defer memzero.ZeroAll(ikm, ephDH, ltDH)
	return crypto.Derive(ikm, "ShareTransport", crypto.Concat(id.Slice(), token.Slice(), requester.Slice()))
}

// ShareReleaseAD authenticates the header of a released share.
func ShareReleaseAD(id domain.MomentID, token domain.TokenID, tokenEph domain.X25519Public) []byte {
	return crypto.Concat([]byte("mk-share-release"), id.Slice(), token.Slice(), tokenEph.Slice())
}
