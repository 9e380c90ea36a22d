package types

// Policy is the decryption policy chosen when a moment is created.
type Policy struct {
	Mode      PolicyMode `json:"mode"`
	Threshold int        `json:"threshold"`
	Total     int        `json:"total"`
}

// MomentRecord is the public metadata persisted for a moment. It holds every
// contextual input needed to recompute the MomentKey but no secret.
type MomentRecord struct {
	MomentID       MomentID     `json:"moment_id"`
	Session        Session      `json:"session"`
	Policy         Policy       `json:"policy"`
	CoordinatorKey X25519Public `json:"coordinator_key"`
	// Identities are the certified public identities of the participants,
	// in the same order as Session.Participants.
	Identities []TokenIdentity `json:"identities"`
}

// EncryptedArtifact is one sealed piece of media or text bound to a moment.
type EncryptedArtifact struct {
	MomentID       MomentID     `json:"moment_id"`
	ArtifactID     string       `json:"artifact_id"`
	Type           ArtifactType `json:"type"`
	Sequence       uint64       `json:"sequence"`
	Ciphertext     []byte       `json:"ciphertext"`
	Nonce          []byte       `json:"nonce"`
	AssociatedData []byte       `json:"associated_data"`
}

// ShareRecord is a token's persisted share, encrypted under a key only the
// token's secure element can derive.
type ShareRecord struct {
	MomentID MomentID `json:"moment_id"`
	TokenID  TokenID  `json:"token_id"`
	Sealed   Sealed   `json:"sealed"`
}

// ShareRequest asks a token to release its share to the requester.
type ShareRequest struct {
	MomentID           MomentID     `json:"moment_id"`
	RequesterEphemeral X25519Public `json:"requester_ephemeral"`
}

// SealedShare is a released share encrypted to the requester's ephemeral key.
type SealedShare struct {
	TokenID      TokenID      `json:"token_id"`
	MomentID     MomentID     `json:"moment_id"`
	EphemeralKey X25519Public `json:"ephemeral_key"`
	Sealed       Sealed       `json:"sealed"`
}
