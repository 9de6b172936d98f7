package faucet

import (
	"bytes"
	"context"
	"testing"

	"github.com/iov-one/weave"
	"github.com/iov-one/weave/app"
	"github.com/iov-one/weave/coin"
	"github.com/iov-one/weave/errors"
	"github.com/iov-one/weave/gconf"
	"github.com/iov-one/weave/migration"
	"github.com/iov-one/weave/store"
	"github.com/iov-one/weave/weavetest"
	"github.com/iov-one/weave/x/cash"
	"github.com/tendermint/tendermint/libs/log"
)

type testEnv struct {
	t    testing.TB
	db   weave.CacheableKVStore
	rt   *app.Router
	auth *weavetest.CtxAuth
	ctrl cash.BaseController
}

func newTestEnv(t testing.TB, conf Configuration) *testEnv {
	t.Helper()

	db := store.MemStore()
	migration.MustInitPkg(db, "cash", "faucet")
	if err := gconf.Save(db, "faucet", &conf); err != nil {
		t.Fatalf("cannot save faucet configuration: %s", err)
	}

	rt := app.NewRouter()
	auth := &weavetest.CtxAuth{Key: "auth"}
	ctrl := cash.NewController(cash.NewBucket())
	RegisterRoutes(rt, auth, ctrl)

	return &testEnv{t: t, db: db, rt: rt, auth: auth, ctrl: ctrl}
}

func (e *testEnv) ctx(height int64, conds ...weave.Condition) weave.Context {
	ctx := weave.WithHeight(context.Background(), height)
	ctx = weave.WithChainID(ctx, "testchain-123")
	ctx = weave.WithLogger(ctx, log.NewNopLogger())
	return e.auth.SetConditions(ctx, conds...)
}

func (e *testEnv) fund(addr weave.Address, c coin.Coin) {
	e.t.Helper()
	if err := e.ctrl.CoinMint(e.db, addr, c); err != nil {
		e.t.Fatalf("cannot issue %q to %s: %s", c, addr, err)
	}
}

func (e *testEnv) balance(addr weave.Address) coin.Coins {
	e.t.Helper()
	coins, err := e.ctrl.Balance(e.db, addr)
	if err != nil && !errors.ErrNotFound.Is(err) {
		e.t.Fatalf("cannot get %s balance: %s", addr, err)
	}
	return coins
}

func (e *testEnv) deliver(ctx weave.Context, msg weave.Msg) (*weave.DeliverResult, error) {
	return e.rt.Deliver(ctx, e.db, &weavetest.Tx{Msg: msg})
}

func (e *testEnv) watermark() *Watermark {
	e.t.Helper()
	w, err := loadWatermark(e.db, NewWatermarkBucket())
	if err != nil {
		e.t.Fatalf("cannot load watermark: %s", err)
	}
	return w
}

func testConf(source weave.Address) Configuration {
	return Configuration{
		Metadata:       &weave.Metadata{Schema: 1},
		Source:         source,
		Amount:         coin.NewCoin(0, 5, "FCT"),
		CooldownBlocks: 10,
	}
}

// payload returns a deterministic 32 byte recipient identifier.
func payload(fill byte) []byte {
	return bytes.Repeat([]byte{fill}, RecipientPayloadSize)
}

func record(id uint64, createdAt string, fill byte) *FaucetRecord {
	return &FaucetRecord{
		ID:        id,
		Login:     []byte("alice"),
		CreatedAt: createdAt,
		Recipient: payload(fill),
	}
}

func disburse(recs ...*FaucetRecord) *DisburseMsg {
	return &DisburseMsg{
		Metadata: &weave.Metadata{Schema: 1},
		Records:  recs,
	}
}

func TestDisburseMovesFundsAndAdvancesWatermark(t *testing.T) {
	source := weavetest.NewCondition().Address()
	env := newTestEnv(t, testConf(source))
	env.fund(source, coin.NewCoin(0, 100, "FCT"))

	res, err := env.deliver(env.ctx(50), disburse(record(7, "2019-04-01T10:00:00Z", 1)))
	if err != nil {
		t.Fatalf("cannot deliver: %+v", err)
	}
	if n := len(res.Tags); n != 1 {
		t.Fatalf("want one tag, got %d", n)
	}

	recipient := RecipientAddress(payload(1))
	if got := env.balance(recipient); !got.Equals(coin.Coins{coin.NewCoinp(0, 5, "FCT")}) {
		t.Fatalf("unexpected recipient balance: %q", got)
	}

	w := env.watermark()
	if w.ID != 7 || w.CreatedAt != "2019-04-01T10:00:00Z" {
		t.Fatalf("unexpected watermark: %+v", w)
	}

	var entry CooldownEntry
	if err := NewCooldownBucket().One(env.db, recipient, &entry); err != nil {
		t.Fatalf("cannot load cooldown entry: %s", err)
	}
	if entry.Height != 50 {
		t.Fatalf("unexpected cooldown height: %d", entry.Height)
	}
}

func TestDisburseSkipsAlreadyProcessedRecord(t *testing.T) {
	source := weavetest.NewCondition().Address()
	env := newTestEnv(t, testConf(source))
	env.fund(source, coin.NewCoin(0, 100, "FCT"))

	msg := disburse(record(7, "2019-04-01T10:00:00Z", 1))
	if _, err := env.deliver(env.ctx(50), msg); err != nil {
		t.Fatalf("cannot deliver: %+v", err)
	}
	// The same record again must be a no-op because its ID matches the
	// stored watermark.
	res, err := env.deliver(env.ctx(51), msg)
	if err != nil {
		t.Fatalf("cannot deliver: %+v", err)
	}
	if len(res.Tags) != 0 {
		t.Fatal("record must not be paid twice")
	}
	recipient := RecipientAddress(payload(1))
	if got := env.balance(recipient); !got.Equals(coin.Coins{coin.NewCoinp(0, 5, "FCT")}) {
		t.Fatalf("unexpected recipient balance: %q", got)
	}
}

func TestDisburseSkipsRecordOlderThanWatermark(t *testing.T) {
	source := weavetest.NewCondition().Address()
	env := newTestEnv(t, testConf(source))
	env.fund(source, coin.NewCoin(0, 100, "FCT"))

	if _, err := env.deliver(env.ctx(50), disburse(record(7, "2019-04-01T10:00:00Z", 1))); err != nil {
		t.Fatalf("cannot deliver: %+v", err)
	}
	// An older record with a different ID arrives late.
	res, err := env.deliver(env.ctx(51), disburse(record(5, "2019-03-01T10:00:00Z", 2)))
	if err != nil {
		t.Fatalf("cannot deliver: %+v", err)
	}
	if len(res.Tags) != 0 {
		t.Fatal("stale record must be skipped")
	}
	if w := env.watermark(); w.ID != 7 {
		t.Fatalf("watermark must not move backwards: %+v", w)
	}
}

func TestDisburseMalformedTimeFailsBatch(t *testing.T) {
	source := weavetest.NewCondition().Address()
	env := newTestEnv(t, testConf(source))
	env.fund(source, coin.NewCoin(0, 100, "FCT"))

	msg := disburse(
		record(7, "2019-04-01T10:00:00Z", 1),
		record(8, "yesterday", 2),
	)
	if _, err := env.deliver(env.ctx(50), msg); !ErrTimeParse.Is(err) {
		t.Fatalf("want a time parse failure, got %+v", err)
	}
}

// The watermark baseline is read once per call. Within one batch the
// records are compared only against that baseline, never against each
// other, so an out of order batch pays all fresh records and the last
// one wins the watermark slot.
func TestDisburseBatchSharesWatermarkBaseline(t *testing.T) {
	source := weavetest.NewCondition().Address()
	env := newTestEnv(t, testConf(source))
	env.fund(source, coin.NewCoin(0, 100, "FCT"))

	msg := disburse(
		record(8, "2019-04-01T12:00:00Z", 1),
		// Older than the previous record, but newer than the epoch
		// baseline, so it is paid as well.
		record(7, "2019-04-01T10:00:00Z", 2),
	)
	res, err := env.deliver(env.ctx(50), msg)
	if err != nil {
		t.Fatalf("cannot deliver: %+v", err)
	}
	if n := len(res.Tags); n != 2 {
		t.Fatalf("want both records paid, got %d tags", n)
	}
	if w := env.watermark(); w.ID != 7 {
		t.Fatalf("last processed record must hold the watermark: %+v", w)
	}
}

func TestDisburseCooldown(t *testing.T) {
	cases := map[string]struct {
		strict bool
		// height of the second disbursement attempt
		height   int64
		wantErr  *errors.Error
		wantPaid bool
	}{
		"active cooldown skips the record": {
			strict:   false,
			height:   55,
			wantPaid: false,
		},
		"active cooldown with strict configuration fails the batch": {
			strict:  true,
			height:  55,
			wantErr: ErrCooldown,
		},
		"cooldown is over at the boundary block": {
			strict:   false,
			height:   60,
			wantPaid: true,
		},
		"strict configuration does not affect an elapsed cooldown": {
			strict:   true,
			height:   60,
			wantPaid: true,
		},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			source := weavetest.NewCondition().Address()
			conf := testConf(source)
			conf.StrictCooldown = tc.strict
			env := newTestEnv(t, conf)
			env.fund(source, coin.NewCoin(0, 100, "FCT"))

			if _, err := env.deliver(env.ctx(50), disburse(record(7, "2019-04-01T10:00:00Z", 1))); err != nil {
				t.Fatalf("cannot deliver: %+v", err)
			}

			res, err := env.deliver(env.ctx(tc.height), disburse(record(8, "2019-04-02T10:00:00Z", 1)))
			if !tc.wantErr.Is(err) {
				t.Fatalf("want %v, got %+v", tc.wantErr, err)
			}
			if tc.wantErr != nil {
				return
			}
			if paid := len(res.Tags) == 1; paid != tc.wantPaid {
				t.Fatalf("want paid=%v, got %d tags", tc.wantPaid, len(res.Tags))
			}
		})
	}
}

func TestDisburseFailedTransferIsNotFatal(t *testing.T) {
	source := weavetest.NewCondition().Address()
	env := newTestEnv(t, testConf(source))
	// The source account is left without funds, so every transfer
	// fails. The record must still be marked as processed.

	res, err := env.deliver(env.ctx(50), disburse(record(7, "2019-04-01T10:00:00Z", 1)))
	if err != nil {
		t.Fatalf("cannot deliver: %+v", err)
	}
	if len(res.Tags) != 1 {
		t.Fatalf("record must count as processed, got %d tags", len(res.Tags))
	}
	if w := env.watermark(); w.ID != 7 {
		t.Fatalf("watermark must advance: %+v", w)
	}
	recipient := RecipientAddress(payload(1))
	if got := env.balance(recipient); len(got) != 0 {
		t.Fatalf("recipient must not be paid: %q", got)
	}
}

func TestDisburseRequiresAdminSignature(t *testing.T) {
	admin := weavetest.NewCondition()
	source := weavetest.NewCondition().Address()
	conf := testConf(source)
	conf.Admin = admin.Address()
	env := newTestEnv(t, conf)
	env.fund(source, coin.NewCoin(0, 100, "FCT"))

	msg := disburse(record(7, "2019-04-01T10:00:00Z", 1))
	if _, err := env.deliver(env.ctx(50), msg); !errors.ErrUnauthorized.Is(err) {
		t.Fatalf("want unauthorized, got %+v", err)
	}
	if _, err := env.deliver(env.ctx(50, admin), msg); err != nil {
		t.Fatalf("cannot deliver as admin: %+v", err)
	}
}

func TestDisbursePaysFromMainSignerWithoutSource(t *testing.T) {
	signer := weavetest.NewCondition()
	conf := testConf(nil)
	env := newTestEnv(t, conf)
	env.fund(signer.Address(), coin.NewCoin(0, 100, "FCT"))

	msg := disburse(record(7, "2019-04-01T10:00:00Z", 1))
	if _, err := env.deliver(env.ctx(50, signer), msg); err != nil {
		t.Fatalf("cannot deliver: %+v", err)
	}
	recipient := RecipientAddress(payload(1))
	if got := env.balance(recipient); !got.Equals(coin.Coins{coin.NewCoinp(0, 5, "FCT")}) {
		t.Fatalf("unexpected recipient balance: %q", got)
	}
	if got := env.balance(signer.Address()); !got.Equals(coin.Coins{coin.NewCoinp(0, 95, "FCT")}) {
		t.Fatalf("unexpected signer balance: %q", got)
	}
}

func TestClaim(t *testing.T) {
	recipient := weavetest.NewCondition().Address()

	claim := &ClaimMsg{
		Metadata:  &weave.Metadata{Schema: 1},
		Recipient: recipient,
	}

	t.Run("pays from the registered pool", func(t *testing.T) {
		source := weavetest.NewCondition().Address()
		pool := weavetest.NewCondition()
		env := newTestEnv(t, testConf(source))
		env.fund(source, coin.NewCoin(0, 100, "FCT"))
		env.fund(pool.Address(), coin.NewCoin(0, 100, "FCT"))

		registerPool := &RegisterPoolMsg{
			Metadata: &weave.Metadata{Schema: 1},
			Pool:     pool.Address(),
		}
		if _, err := env.deliver(env.ctx(10, pool), registerPool); err != nil {
			t.Fatalf("cannot register pool: %+v", err)
		}

		if _, err := env.deliver(env.ctx(11), claim); err != nil {
			t.Fatalf("cannot claim: %+v", err)
		}
		// The pool takes precedence over the configured source.
		if got := env.balance(pool.Address()); !got.Equals(coin.Coins{coin.NewCoinp(0, 95, "FCT")}) {
			t.Fatalf("unexpected pool balance: %q", got)
		}
		if got := env.balance(source); !got.Equals(coin.Coins{coin.NewCoinp(0, 100, "FCT")}) {
			t.Fatalf("source must be untouched: %q", got)
		}
	})

	t.Run("falls back to the configured source", func(t *testing.T) {
		source := weavetest.NewCondition().Address()
		env := newTestEnv(t, testConf(source))
		env.fund(source, coin.NewCoin(0, 100, "FCT"))

		if _, err := env.deliver(env.ctx(11), claim); err != nil {
			t.Fatalf("cannot claim: %+v", err)
		}
		if got := env.balance(recipient); !got.Equals(coin.Coins{coin.NewCoinp(0, 5, "FCT")}) {
			t.Fatalf("unexpected recipient balance: %q", got)
		}
	})

	t.Run("fails without a pool or source", func(t *testing.T) {
		env := newTestEnv(t, testConf(nil))
		if _, err := env.deliver(env.ctx(11), claim); !errors.ErrState.Is(err) {
			t.Fatalf("want state error, got %+v", err)
		}
	})

	t.Run("cooldown is always strict", func(t *testing.T) {
		source := weavetest.NewCondition().Address()
		env := newTestEnv(t, testConf(source))
		env.fund(source, coin.NewCoin(0, 100, "FCT"))

		if _, err := env.deliver(env.ctx(11), claim); err != nil {
			t.Fatalf("cannot claim: %+v", err)
		}
		if _, err := env.deliver(env.ctx(12), claim); !ErrCooldown.Is(err) {
			t.Fatalf("want cooldown error, got %+v", err)
		}
		// One block past the cooldown the claim works again.
		if _, err := env.deliver(env.ctx(21), claim); err != nil {
			t.Fatalf("cannot claim after cooldown: %+v", err)
		}
	})

	t.Run("failed transfer fails the claim", func(t *testing.T) {
		source := weavetest.NewCondition().Address()
		env := newTestEnv(t, testConf(source))
		// source has no funds
		if _, err := env.deliver(env.ctx(11), claim); err == nil {
			t.Fatal("claim from an empty source must fail")
		}
	})
}

func TestRegisterPoolRequiresPoolSignature(t *testing.T) {
	pool := weavetest.NewCondition()
	other := weavetest.NewCondition()
	env := newTestEnv(t, testConf(nil))

	msg := &RegisterPoolMsg{
		Metadata: &weave.Metadata{Schema: 1},
		Pool:     pool.Address(),
	}
	if _, err := env.deliver(env.ctx(10, other), msg); !errors.ErrUnauthorized.Is(err) {
		t.Fatalf("want unauthorized, got %+v", err)
	}
	if _, err := env.deliver(env.ctx(10, pool), msg); err != nil {
		t.Fatalf("cannot register pool: %+v", err)
	}

	var stored PoolAccount
	if err := NewPoolBucket().One(env.db, poolKey, &stored); err != nil {
		t.Fatalf("cannot load pool account: %s", err)
	}
	if !stored.Address.Equals(pool.Address()) {
		t.Fatalf("unexpected pool account: %s", stored.Address)
	}
}
