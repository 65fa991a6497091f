package decoder

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"github.com/attestream/indexer/internal/domain"
)

// Decoder turns an attestation's raw schema data into a typed variant.
// The schema UID selects the codec; data for an unrecognized schema is
// mapped to UnknownDecoded so callers can skip it without failing.
type Decoder interface {
	Decode(attestation *domain.Attestation) (domain.Decoded, error)
}

type decoder struct {
	schemas    domain.SchemaSet
	stringArgs abi.Arguments
}

// NewDecoder creates a Decoder for the given schema set
func NewDecoder(schemas domain.SchemaSet) (Decoder, error) {
	stringType, err := abi.NewType("string", "", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to construct string abi type: %w", err)
	}

	return &decoder{
		schemas:    schemas,
		stringArgs: abi.Arguments{{Name: "content", Type: stringType}},
	}, nil
}

func (d *decoder) Decode(attestation *domain.Attestation) (domain.Decoded, error) {
	switch attestation.SchemaUID {
	case d.schemas.Post:
		return d.decodePost(attestation)
	case d.schemas.Like:
		return domain.LikeDecoded{}, nil
	case d.schemas.Follow:
		return domain.FollowDecoded{}, nil
	case d.schemas.Username:
		return d.decodeUsername(attestation)
	default:
		return domain.UnknownDecoded{SchemaUID: attestation.SchemaUID}, nil
	}
}

func (d *decoder) decodePost(attestation *domain.Attestation) (domain.Decoded, error) {
	values, err := d.stringArgs.Unpack(attestation.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: post %s: %s", domain.ErrDecode, attestation.UID.Hex(), err)
	}

	content, ok := values[0].(string)
	if !ok {
		return nil, fmt.Errorf("%w: post %s: unexpected abi value type", domain.ErrDecode, attestation.UID.Hex())
	}

	return domain.PostDecoded{Content: content}, nil
}

func (d *decoder) decodeUsername(attestation *domain.Attestation) (domain.Decoded, error) {
	// Usernames are stored as a fixed-width bytes32, right-padded with zeros
	if len(attestation.Data) < 32 {
		return nil, fmt.Errorf("%w: username %s: data shorter than 32 bytes", domain.ErrDecode, attestation.UID.Hex())
	}

	name := string(bytes.TrimRight(attestation.Data[:32], "\x00"))
	if name == "" {
		return nil, fmt.Errorf("%w: username %s: empty name", domain.ErrDecode, attestation.UID.Hex())
	}

	return domain.UsernameDecoded{Name: name}, nil
}
