package feed

import (
	"context"
	"time"

	"github.com/iov-one/weave-faucet/x/faucet"
	"github.com/iov-one/weave/errors"
	dbm "github.com/tendermint/tendermint/libs/db"
	"github.com/tendermint/tendermint/libs/log"
)

// Submitter delivers a batch of verified records to the chain.
type Submitter interface {
	Disburse(ctx context.Context, recs []*faucet.FaucetRecord) error
}

// StateLoader provides the chain state snapshot the filter runs
// against.
type StateLoader interface {
	State(ctx context.Context) (*State, error)
}

// lastPollKey stores the timestamp of the most recent poll attempt.
var lastPollKey = []byte("faucet:last_poll")

// Poller runs the fetch, verify, filter, submit cycle.
type Poller struct {
	Fetcher  *Fetcher
	Chain    StateLoader
	Submit   Submitter
	DB       dbm.DB
	Interval time.Duration
	Logger   log.Logger
	// Now is used for throttling and defaults to time.Now.
	Now func() time.Time
}

// Poll runs one cycle. The attempt timestamp is persisted before the
// feed is contacted, so a poller restarted after a crashing fetch does
// not hammer the feed host.
func (p *Poller) Poll(ctx context.Context) error {
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	if raw := p.DB.Get(lastPollKey); len(raw) != 0 {
		last, err := time.Parse(time.RFC3339, string(raw))
		if err == nil && now().Sub(last) < p.Interval {
			return nil
		}
	}
	p.DB.Set(lastPollKey, []byte(now().UTC().Format(time.RFC3339)))

	raw, err := p.Fetcher.Fetch(ctx)
	if err != nil {
		return errors.Wrap(err, "fetch feed")
	}
	cands, err := Parse(raw, p.Logger)
	if err != nil {
		return errors.Wrap(err, "parse feed")
	}
	recs := VerifyCandidates(cands, p.Logger)
	if len(recs) == 0 {
		return nil
	}

	state, err := p.Chain.State(ctx)
	if err != nil {
		return errors.Wrap(err, "load chain state")
	}
	recs = Filter(recs, state, p.Logger)
	if len(recs) == 0 {
		return nil
	}

	if err := p.Submit.Disburse(ctx, recs); err != nil {
		return errors.Wrap(err, "submit disbursement")
	}
	p.Logger.Info("submitted disbursement", "records", len(recs))
	return nil
}

// Run polls on every tick until the context is cancelled. Cycle errors
// are logged and do not stop the loop.
func (p *Poller) Run(ctx context.Context, tick time.Duration) error {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.Poll(ctx); err != nil {
				p.Logger.Error("poll cycle failed", "err", err)
			}
		}
	}
}
