package interfaces

import (
	"context"

	domaintypes "momentkey/internal/domain/types"
)

// TokenLink is the coordinator's view of one presence token over the
// short-range link. Every call is a bounded request/response; callers pass a
// context carrying the per-step deadline.
type TokenLink interface {
	Identity() domaintypes.TokenIdentity

	// Announce returns the token's identity and a fresh ephemeral public key.
	Announce(ctx context.Context) (domaintypes.Announcement, error)
	// Agree runs the token's half of the per-pair agreement for a proposal.
	Agree(ctx context.Context, p domaintypes.Proposal) (domaintypes.AgreeResponse, error)
	// Finalize hands over the wrapped group secret (and share) and returns a
	// key confirmation.
	Finalize(ctx context.Context, f domaintypes.Finalize) (domaintypes.FinalizeAck, error)
	// Abort makes the token discard all pending material for a session.
	Abort(ctx context.Context, id domaintypes.SessionID) error
	// ReleaseShare decrypts the token's stored share locally and returns it
	// sealed to the requester.
	ReleaseShare(ctx context.Context, req domaintypes.ShareRequest) (domaintypes.SealedShare, error)
}

// RangingSource samples the local ranging signal used for the proximity hash.
type RangingSource interface {
	Sample(ctx context.Context) ([]byte, error)
}
