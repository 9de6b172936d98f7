package feed

import (
	"time"

	"github.com/iov-one/weave-faucet/x/faucet"
	"github.com/tendermint/tendermint/libs/log"
)

// State is a snapshot of the chain state the filter decides against.
// It may be stale by the time the transaction lands, which is fine: the
// deliver time handler repeats every check.
type State struct {
	// Watermark is the last committed record.
	Watermark *faucet.Watermark
	// Cooldowns maps raw recipient ledger addresses to the block
	// height of their last payout.
	Cooldowns map[string]int64
	// Height is the chain height at snapshot time.
	Height int64
	// CooldownBlocks is the configured cooldown period.
	CooldownBlocks int64
}

// Filter drops records the chain would reject: already committed,
// created before the watermark or addressed to a recipient still in
// cooldown. A record with a malformed creation time is logged and
// skipped here, while at deliver time it would fail the whole batch.
func Filter(recs []*faucet.FaucetRecord, state *State, logger log.Logger) []*faucet.FaucetRecord {
	baseCreatedAt, err := time.Parse(time.RFC3339, state.Watermark.CreatedAt)
	if err != nil {
		logger.Error("watermark has malformed creation time, dropping all records",
			"created_at", state.Watermark.CreatedAt)
		return nil
	}

	out := make([]*faucet.FaucetRecord, 0, len(recs))
	for _, rec := range recs {
		if rec.ID == state.Watermark.ID {
			continue
		}
		createdAt, err := time.Parse(time.RFC3339, rec.CreatedAt)
		if err != nil {
			logger.Info("dropping record with malformed creation time",
				"id", rec.ID, "created_at", rec.CreatedAt)
			continue
		}
		if createdAt.Before(baseCreatedAt) {
			continue
		}
		addr := faucet.RecipientAddress(rec.Recipient)
		if last, ok := state.Cooldowns[string(addr)]; ok {
			if state.Height < last+state.CooldownBlocks {
				logger.Info("dropping record for recipient in cooldown",
					"id", rec.ID, "recipient", addr)
				continue
			}
		}
		out = append(out, rec)
	}
	return out
}
