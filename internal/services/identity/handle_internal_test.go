package identity

import (
	"testing"

	"momentkey/internal/crypto"
	"momentkey/internal/domain"
)

func TestHandleFor_WipesBothPrivateKeys(t *testing.T) {
	xPriv, xPub, _ := crypto.GenerateX25519()
	edPriv, edPub, _ := crypto.GenerateEd25519()
	id := domain.CoordinatorIdentity{XPub: xPub, XPriv: xPriv, EdPub: edPub, EdPriv: edPriv}

	h, err := handleFor(&id)
	if err != nil {
		t.Fatalf("handleFor: %v", err)
	}
	defer h.Destroy()
	if h.Public() != xPub {
		t.Fatalf("handle holds the wrong key")
	}
	if id.XPriv != (domain.X25519Private{}) {
		t.Fatalf("X25519 private key left in memory")
	}
	if id.EdPriv != (domain.Ed25519Private{}) {
		t.Fatalf("Ed25519 private key left in memory")
	}
}
