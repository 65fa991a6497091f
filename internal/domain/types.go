package domain

import (
	"github.com/ethereum/go-ethereum/common"
)

// Stream identifies a logical event stream with its own durable checkpoint
type Stream string

const (
	// StreamAttestations tracks Attested events from the registry
	StreamAttestations Stream = "latestAttestationBlockNum"
	// StreamRevocations tracks Revoked events from the registry
	StreamRevocations Stream = "latestAttestationRevocationBlockNum"
)

// SchemaSet holds the schema UIDs the projection knows how to handle.
// Attestations against any other schema are ignored.
type SchemaSet struct {
	Post     common.Hash
	Like     common.Hash
	Follow   common.Hash
	Username common.Hash
}

// Attestation is a fully-materialized attestation record as returned by the
// registry's point lookup, annotated with the position of the log that
// announced it.
//
// Invariant: UID is never the zero hash; the resolver retries until the
// registry returns a non-zero record or gives up with ErrResolutionTimeout.
type Attestation struct {
	UID            common.Hash
	SchemaUID      common.Hash
	Time           uint64
	ExpirationTime uint64
	RevocationTime uint64
	RefUID         common.Hash
	Recipient      common.Address
	Attester       common.Address
	Revocable      bool
	Data           []byte

	// Log position, used for batch ordering and checkpoint advancement
	TxHash      string
	BlockNumber uint64
	LogIndex    uint
}

// EventKind distinguishes the two registry event signatures
type EventKind string

const (
	EventAttested EventKind = "attested"
	EventRevoked  EventKind = "revoked"
)

// LogEvent is an ephemeral, parsed reference to a registry log. It carries
// just enough to resolve the full attestation record and is never persisted.
type LogEvent struct {
	Kind        EventKind
	UID         common.Hash
	SchemaUID   common.Hash
	Recipient   common.Address
	Attester    common.Address
	BlockNumber uint64
	TxHash      string
	LogIndex    uint
}

// Decoded is the closed set of typed attestation payloads the decoder can
// produce. The projection dispatcher switches exhaustively over these instead
// of comparing schema identifiers at every branch.
type Decoded interface {
	isDecoded()
}

// PostDecoded is a decoded post-creation payload
type PostDecoded struct {
	Content string
}

// LikeDecoded is a decoded like-creation payload; the target post is carried
// by the attestation's RefUID, not the payload bytes
type LikeDecoded struct{}

// FollowDecoded is a decoded follow-creation payload; the followed party is
// the attestation's recipient
type FollowDecoded struct{}

// UsernameDecoded is a decoded username payload
type UsernameDecoded struct {
	Name string
}

// UnknownDecoded marks an attestation against a schema outside the known set
type UnknownDecoded struct {
	SchemaUID common.Hash
}

func (PostDecoded) isDecoded()     {}
func (LikeDecoded) isDecoded()     {}
func (FollowDecoded) isDecoded()   {}
func (UsernameDecoded) isDecoded() {}
func (UnknownDecoded) isDecoded()  {}
