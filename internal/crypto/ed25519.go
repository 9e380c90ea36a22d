package crypto

import (
	"crypto/ed25519"
	"crypto/rand"

	"momentkey/internal/domain"
)

// GenerateEd25519 returns a new Ed25519 signing key pair.
func GenerateEd25519() (priv domain.Ed25519Private, pub domain.Ed25519Public, err error) {
	pk, sk, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return priv, pub, err
	}
	copy(priv[:], sk)
	copy(pub[:], pk)
	return priv, pub, nil
}

// SignEd25519 signs msg with priv and returns the signature.
func SignEd25519(priv domain.Ed25519Private, msg []byte) []byte {
	return ed25519.Sign(ed25519.PrivateKey(priv[:]), msg)
}

// VerifyEd25519 verifies sig over msg with pub.
func VerifyEd25519(pub domain.Ed25519Public, msg, sig []byte) bool {
	return ed25519.Verify(ed25519.PublicKey(pub[:]), msg, sig)
}

// CertificateMessage is the byte string an issuer signs for a token identity.
func CertificateMessage(id domain.TokenID, pub domain.X25519Public) []byte {
	m := Hash("MK-CERT", id.Slice(), pub.Slice())
	return m[:]
}

// IssueCertificate signs (id, pub) with the issuer key.
func IssueCertificate(issuer domain.Ed25519Private, id domain.TokenID, pub domain.X25519Public) []byte {
	return SignEd25519(issuer, CertificateMessage(id, pub))
}

// VerifyCertificate checks a token identity against the issuer public key.
func VerifyCertificate(issuer domain.Ed25519Public, id domain.TokenID, pub domain.X25519Public, cert []byte) bool {
	return VerifyEd25519(issuer, CertificateMessage(id, pub), cert)
}
