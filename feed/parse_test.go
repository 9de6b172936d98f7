package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendermint/tendermint/libs/log"
)

func TestParse(t *testing.T) {
	raw := []byte(`[
		{
			"id": 7,
			"created_at": "2019-04-01T10:00:00Z",
			"user": {"login": "alice"},
			"body": "please fund me\naddress: 5abc\nhomework: 00ff"
		},
		{
			"id": 8,
			"created_at": "2019-04-01T11:00:00Z",
			"user": {"login": "bob"},
			"body": "just a comment, no claim"
		},
		{
			"id": 9,
			"created_at": "2019-04-01T12:00:00Z",
			"user": {"login": "carol"},
			"body": "My Address: 5def\nthis line: has: too many separators\nHomework: 1234"
		}
	]`)

	cands, err := Parse(raw, log.NewNopLogger())
	require.NoError(t, err)
	require.Len(t, cands, 3)

	assert.Equal(t, uint64(7), cands[0].ID)
	assert.Equal(t, "alice", cands[0].Login)
	assert.Equal(t, "2019-04-01T10:00:00Z", cands[0].CreatedAt)
	assert.Equal(t, "5abc", cands[0].Address)
	assert.Equal(t, "00ff", cands[0].Proof)

	// A comment without claim lines still yields a candidate. The empty
	// address fails the proof check later, where it is logged.
	assert.Equal(t, uint64(8), cands[1].ID)
	assert.Equal(t, "", cands[1].Address)

	// Keys match case insensitive and malformed lines do not break the
	// rest of the comment.
	assert.Equal(t, uint64(9), cands[2].ID)
	assert.Equal(t, "5def", cands[2].Address)
	assert.Equal(t, "1234", cands[2].Proof)
}

func TestParseRejectsMalformedPayload(t *testing.T) {
	_, err := Parse([]byte("certainly not json"), log.NewNopLogger())
	assert.True(t, ErrFormat.Is(err), "want a format error, got %+v", err)
}

func TestParseMissingProofIsKept(t *testing.T) {
	raw := []byte(`[{"id": 1, "created_at": "2019-04-01T10:00:00Z", "user": {"login": "x"}, "body": "address: 5abc"}]`)
	cands, err := Parse(raw, log.NewNopLogger())
	require.NoError(t, err)
	// The proof check happens later and logs the failure there.
	require.Len(t, cands, 1)
	assert.Equal(t, "", cands[0].Proof)
}

// Parsing is a pure function of its input: the same document must
// always yield the same candidate sequence.
func TestParseIsDeterministic(t *testing.T) {
	raw := []byte(`[
		{
			"id": 7,
			"created_at": "2019-04-01T10:00:00Z",
			"user": {"login": "alice"},
			"body": "address: 5abc\nhomework: 00ff"
		},
		{
			"id": 8,
			"created_at": "2019-04-01T11:00:00Z",
			"user": {"login": "bob"},
			"body": "no claim"
		}
	]`)

	first, err := Parse(raw, log.NewNopLogger())
	require.NoError(t, err)
	second, err := Parse(raw, log.NewNopLogger())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
