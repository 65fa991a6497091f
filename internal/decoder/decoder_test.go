package decoder

import (
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attestream/indexer/internal/domain"
)

var testSchemas = domain.SchemaSet{
	Post:     common.HexToHash("0x01"),
	Like:     common.HexToHash("0x02"),
	Follow:   common.HexToHash("0x03"),
	Username: common.HexToHash("0x04"),
}

func encodeString(t *testing.T, s string) []byte {
	t.Helper()
	stringType, err := abi.NewType("string", "", nil)
	require.NoError(t, err)
	data, err := abi.Arguments{{Type: stringType}}.Pack(s)
	require.NoError(t, err)
	return data
}

func TestDecode_Post(t *testing.T) {
	d, err := NewDecoder(testSchemas)
	require.NoError(t, err)

	decoded, err := d.Decode(&domain.Attestation{
		UID:       common.HexToHash("0xaa"),
		SchemaUID: testSchemas.Post,
		Data:      encodeString(t, "hello world"),
	})
	require.NoError(t, err)

	post, ok := decoded.(domain.PostDecoded)
	require.True(t, ok)
	assert.Equal(t, "hello world", post.Content)
}

func TestDecode_PostMalformedData(t *testing.T) {
	d, err := NewDecoder(testSchemas)
	require.NoError(t, err)

	_, err = d.Decode(&domain.Attestation{
		UID:       common.HexToHash("0xaa"),
		SchemaUID: testSchemas.Post,
		Data:      []byte{0x01, 0x02},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDecode)
}

func TestDecode_Like(t *testing.T) {
	d, err := NewDecoder(testSchemas)
	require.NoError(t, err)

	decoded, err := d.Decode(&domain.Attestation{
		SchemaUID: testSchemas.Like,
	})
	require.NoError(t, err)
	assert.IsType(t, domain.LikeDecoded{}, decoded)
}

func TestDecode_Follow(t *testing.T) {
	d, err := NewDecoder(testSchemas)
	require.NoError(t, err)

	decoded, err := d.Decode(&domain.Attestation{
		SchemaUID: testSchemas.Follow,
	})
	require.NoError(t, err)
	assert.IsType(t, domain.FollowDecoded{}, decoded)
}

func TestDecode_Username(t *testing.T) {
	d, err := NewDecoder(testSchemas)
	require.NoError(t, err)

	data := make([]byte, 32)
	copy(data, "alice")

	decoded, err := d.Decode(&domain.Attestation{
		SchemaUID: testSchemas.Username,
		Data:      data,
	})
	require.NoError(t, err)

	username, ok := decoded.(domain.UsernameDecoded)
	require.True(t, ok)
	assert.Equal(t, "alice", username.Name)
}

func TestDecode_UsernameEmpty(t *testing.T) {
	d, err := NewDecoder(testSchemas)
	require.NoError(t, err)

	_, err = d.Decode(&domain.Attestation{
		SchemaUID: testSchemas.Username,
		Data:      make([]byte, 32),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDecode)
}

func TestDecode_UsernameShortData(t *testing.T) {
	d, err := NewDecoder(testSchemas)
	require.NoError(t, err)

	_, err = d.Decode(&domain.Attestation{
		SchemaUID: testSchemas.Username,
		Data:      []byte("short"),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDecode)
}

func TestDecode_UnknownSchema(t *testing.T) {
	d, err := NewDecoder(testSchemas)
	require.NoError(t, err)

	other := common.HexToHash("0xff")
	decoded, err := d.Decode(&domain.Attestation{
		SchemaUID: other,
	})
	require.NoError(t, err)

	unknown, ok := decoded.(domain.UnknownDecoded)
	require.True(t, ok)
	assert.Equal(t, other, unknown.SchemaUID)
}
