package feed

import (
	"bytes"
	"testing"

	"github.com/iov-one/weave"
	"github.com/iov-one/weave-faucet/x/faucet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendermint/tendermint/libs/log"
)

func testRecord(id uint64, createdAt string, fill byte) *faucet.FaucetRecord {
	return &faucet.FaucetRecord{
		ID:        id,
		Login:     []byte("alice"),
		CreatedAt: createdAt,
		Recipient: bytes.Repeat([]byte{fill}, 32),
	}
}

func testState() *State {
	return &State{
		Watermark: &faucet.Watermark{
			Metadata:  &weave.Metadata{Schema: 1},
			ID:        7,
			CreatedAt: "2019-04-01T10:00:00Z",
		},
		Cooldowns:      make(map[string]int64),
		Height:         100,
		CooldownBlocks: 10,
	}
}

func TestFilter(t *testing.T) {
	recs := []*faucet.FaucetRecord{
		// Matches the watermark ID, already processed.
		testRecord(7, "2019-04-01T10:00:00Z", 1),
		// Older than the watermark.
		testRecord(5, "2019-03-01T10:00:00Z", 2),
		// Malformed creation time.
		testRecord(8, "yesterday", 3),
		// Fresh.
		testRecord(9, "2019-04-01T12:00:00Z", 4),
	}

	got := Filter(recs, testState(), log.NewNopLogger())
	require.Len(t, got, 1)
	assert.Equal(t, uint64(9), got[0].ID)
}

func TestFilterDropsRecipientInCooldown(t *testing.T) {
	state := testState()
	cooling := testRecord(9, "2019-04-01T12:00:00Z", 4)
	addr := faucet.RecipientAddress(cooling.Recipient)
	state.Cooldowns[string(addr)] = 95

	got := Filter([]*faucet.FaucetRecord{cooling}, state, log.NewNopLogger())
	assert.Len(t, got, 0)

	// Once the cooldown elapsed the record passes again.
	state.Height = 105
	got = Filter([]*faucet.FaucetRecord{cooling}, state, log.NewNopLogger())
	assert.Len(t, got, 1)
}

func TestFilterBrokenWatermarkDropsEverything(t *testing.T) {
	state := testState()
	state.Watermark.CreatedAt = "broken"

	got := Filter([]*faucet.FaucetRecord{testRecord(9, "2019-04-01T12:00:00Z", 4)}, state, log.NewNopLogger())
	assert.Len(t, got, 0)
}
