package interfaces

import (
	"context"

	domaintypes "momentkey/internal/domain/types"
)

// Ledger accepts commitments only: hashes and coarse, redacted metadata.
type Ledger interface {
	Commit(ctx context.Context, c domaintypes.LedgerCommitment) (domaintypes.Receipt, error)
	Commitments(ctx context.Context, id domaintypes.MomentID) ([]domaintypes.LedgerCommitment, error)
}
