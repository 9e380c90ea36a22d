package crypto

import (
	"errors"
	"sync"

	"momentkey/internal/domain"
	"momentkey/internal/util/memzero"
)

var errHandleDestroyed = errors.New("key handle destroyed")

// KeyHandle is an opaque reference to a long-term X25519 key held in secure
// storage. The private scalar never crosses this interface; only derived,
// short-lived secrets do.
type KeyHandle interface {
	Public() domain.X25519Public
	// Agree performs X25519 with the held private key.
	Agree(remote domain.X25519Public) ([]byte, error)
	// DeriveKey returns a key bound to the held private key, label and extra.
	DeriveKey(label string, extra []byte) ([]byte, error)
	// Destroy wipes the key material. Later calls fail.
	Destroy()
}

type softwareHandle struct {
	mu        sync.Mutex
	priv      domain.X25519Private
	pub       domain.X25519Public
	destroyed bool
}

// NewSoftwareKeyHandle wraps priv in an in-process handle. The handle keeps
// its own copy; the caller should wipe priv afterwards.
func NewSoftwareKeyHandle(priv domain.X25519Private) (KeyHandle, error) {
	pub, err := PublicFromPrivate(priv)
	if err != nil {
		return nil, err
	}
	return &softwareHandle{priv: priv, pub: pub}, nil
}

func (h *softwareHandle) Public() domain.X25519Public { return h.pub }

func (h *softwareHandle) Agree(remote domain.X25519Public) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.destroyed {
		return nil, errHandleDestroyed
	}
	return Agree(h.priv, remote)
}

func (h *softwareHandle) DeriveKey(label string, extra []byte) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.destroyed {
		return nil, errHandleDestroyed
	}
	root := Derive(h.priv[:], "HandleRoot", h.pub[:])
	defer memzero.Zero(root)
	return Derive(root, label, extra), nil
}

func (h *softwareHandle) Destroy() {
	h.mu.Lock()
	defer h.mu.Unlock()
	memzero.Zero(h.priv[:])
	h.destroyed = true
}
