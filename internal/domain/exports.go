package domain

import (
	interfaces "momentkey/internal/domain/interfaces"
	types "momentkey/internal/domain/types"
)

// Type aliases expose domain types from the types subpackage for compact imports.
type (
	TokenID             = types.TokenID
	SessionID           = types.SessionID
	MomentID            = types.MomentID
	ArtifactType        = types.ArtifactType
	PolicyMode          = types.PolicyMode
	X25519Public        = types.X25519Public
	X25519Private       = types.X25519Private
	Ed25519Public       = types.Ed25519Public
	Ed25519Private      = types.Ed25519Private
	TokenIdentity       = types.TokenIdentity
	TokenSecret         = types.TokenSecret
	CoordinatorIdentity = types.CoordinatorIdentity
	IssuerKey           = types.IssuerKey
	SessionState        = types.SessionState
	Session             = types.Session
	Announcement        = types.Announcement
	ParticipantKeys     = types.ParticipantKeys
	Proposal            = types.Proposal
	AgreeResponse       = types.AgreeResponse
	Sealed              = types.Sealed
	Finalize            = types.Finalize
	FinalizeAck         = types.FinalizeAck
	Policy              = types.Policy
	MomentRecord        = types.MomentRecord
	EncryptedArtifact   = types.EncryptedArtifact
	ShareRecord         = types.ShareRecord
	ShareRequest        = types.ShareRequest
	SealedShare         = types.SealedShare
	GeoPoint            = types.GeoPoint
	Location            = types.Location
	ParticipantRef      = types.ParticipantRef
	LedgerCommitment    = types.LedgerCommitment
	Receipt             = types.Receipt
	Observation         = types.Observation
)

// Interface aliases expose domain interfaces from the interfaces subpackage.
type (
	TokenLink     = interfaces.TokenLink
	RangingSource = interfaces.RangingSource
	IdentityStore = interfaces.IdentityStore
	TokenStore    = interfaces.TokenStore
	ShareStore    = interfaces.ShareStore
	ArtifactStore = interfaces.ArtifactStore
	MomentStore   = interfaces.MomentStore
	Ledger        = interfaces.Ledger
)

// Re-exported constants.
const (
	ArtifactMedia   = types.ArtifactMedia
	ArtifactNote    = types.ArtifactNote
	PolicyAll       = types.PolicyAll
	PolicyThreshold = types.PolicyThreshold

	StateDiscovering = types.StateDiscovering
	StateProposed    = types.StateProposed
	StateAgreeing    = types.StateAgreeing
	StateEstablished = types.StateEstablished
	StateClosed      = types.StateClosed
	StateFailed      = types.StateFailed
)

// Re-exported parsers.
var (
	ParseTokenID  = types.ParseTokenID
	ParseMomentID = types.ParseMomentID
)
