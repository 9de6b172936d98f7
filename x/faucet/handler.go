package faucet

import (
	"time"

	"github.com/iov-one/weave"
	"github.com/iov-one/weave/coin"
	"github.com/iov-one/weave/errors"
	"github.com/iov-one/weave/gconf"
	"github.com/iov-one/weave/migration"
	"github.com/iov-one/weave/orm"
	"github.com/iov-one/weave/x"
	"github.com/tendermint/tendermint/libs/common"
)

const (
	disburseRecordCost int64 = 100
	claimCost          int64 = 100
	registerPoolCost   int64 = 0
)

const (
	// tagSent marks a payout. The value is the recipient ledger
	// address in its string form.
	tagSent = "faucet:sent"
	// tagPool marks a pool account registration.
	tagPool = "faucet:pool"
)

// CashController is the subset of the x/cash controller functionality
// needed to move funds between accounts.
type CashController interface {
	MoveCoins(weave.KVStore, weave.Address, weave.Address, coin.Coin) error
}

// RegisterQuery registers faucet buckets for querying.
func RegisterQuery(qr weave.QueryRouter) {
	NewWatermarkBucket().Register("faucet/watermark", qr)
	NewCooldownBucket().Register("faucet/cooldown", qr)
	NewPoolBucket().Register("faucet/pool", qr)
}

// RegisterRoutes registers handlers for faucet message processing.
func RegisterRoutes(r weave.Registry, auth x.Authenticator, ctrl CashController) {
	r = migration.SchemaMigratingRegistry("faucet", r)

	r.Handle(&DisburseMsg{}, &disburseHandler{
		auth:      auth,
		ctrl:      ctrl,
		watermark: NewWatermarkBucket(),
		cooldowns: NewCooldownBucket(),
	})
	r.Handle(&ClaimMsg{}, &claimHandler{
		ctrl:      ctrl,
		cooldowns: NewCooldownBucket(),
		pool:      NewPoolBucket(),
	})
	r.Handle(&RegisterPoolMsg{}, &registerPoolHandler{
		auth: auth,
		pool: NewPoolBucket(),
	})
	r.Handle(&UpdateConfigurationMsg{}, NewConfigHandler(auth))
}

// disburseHandler applies a batch of validated feed records. This is
// the consensus critical half of the pipeline: whatever the offchain
// filter decided, every gate is evaluated here again against the
// current state.
type disburseHandler struct {
	auth      x.Authenticator
	ctrl      CashController
	watermark orm.ModelBucket
	cooldowns orm.ModelBucket
}

var _ weave.Handler = (*disburseHandler)(nil)

func (h *disburseHandler) Check(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.CheckResult, error) {
	msg, _, err := h.validate(ctx, db, tx)
	if err != nil {
		return nil, err
	}
	return &weave.CheckResult{
		GasAllocated: disburseRecordCost * int64(len(msg.Records)),
	}, nil
}

func (h *disburseHandler) Deliver(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.DeliverResult, error) {
	msg, conf, err := h.validate(ctx, db, tx)
	if err != nil {
		return nil, err
	}

	source := conf.Source
	if len(source) == 0 {
		source = x.AnySigner(ctx, h.auth).Address()
	}
	height, _ := weave.GetHeight(ctx)

	// The watermark is read once and used as the baseline for every
	// record of the batch. Records are not pairwise ordered against
	// each other, only against this baseline. A batch with several
	// fresh records passes all of them and only the last one remains
	// stored.
	base, err := loadWatermark(db, h.watermark)
	if err != nil {
		return nil, err
	}
	baseCreatedAt, err := time.Parse(time.RFC3339, base.CreatedAt)
	if err != nil {
		return nil, errors.Wrapf(ErrTimeParse, "watermark: %q", base.CreatedAt)
	}

	var res weave.DeliverResult
	for _, rec := range msg.Records {
		if rec.ID == base.ID {
			continue
		}
		createdAt, err := time.Parse(time.RFC3339, rec.CreatedAt)
		if err != nil {
			// At commit time a malformed timestamp on an already
			// admitted record poisons the whole transaction.
			return nil, errors.Wrapf(ErrTimeParse, "record %d: %q", rec.ID, rec.CreatedAt)
		}
		if createdAt.Before(baseCreatedAt) {
			continue
		}

		recipient := RecipientAddress(rec.Recipient)
		switch ok, err := h.passCooldown(db, recipient, height, conf); {
		case err != nil:
			return nil, err
		case !ok:
			continue
		}

		if err := h.ctrl.MoveCoins(db, source, recipient, conf.Amount); err != nil {
			// A failed transfer does not fail the batch. The record
			// still counts as processed so it cannot be replayed.
			weave.GetLogger(ctx).Error("faucet transfer failed",
				"recipient", recipient, "err", err)
		}

		wm := Watermark{
			Metadata:  &weave.Metadata{Schema: 1},
			ID:        rec.ID,
			Login:     rec.Login,
			CreatedAt: rec.CreatedAt,
			Recipient: rec.Recipient,
		}
		if _, err := h.watermark.Put(db, watermarkKey, &wm); err != nil {
			return nil, errors.Wrap(err, "cannot store watermark")
		}
		entry := CooldownEntry{
			Metadata: &weave.Metadata{Schema: 1},
			Height:   height,
		}
		if _, err := h.cooldowns.Put(db, recipient, &entry); err != nil {
			return nil, errors.Wrap(err, "cannot store cooldown entry")
		}
		res.Tags = append(res.Tags, common.KVPair{
			Key:   []byte(tagSent),
			Value: []byte(recipient.String()),
		})
	}
	return &res, nil
}

// passCooldown reports whether the recipient may receive funds at the
// given height. With StrictCooldown configured an active cooldown is
// returned as an error, failing the whole transaction. An elapsed entry
// is removed so it is not carried forward.
func (h *disburseHandler) passCooldown(db weave.KVStore, recipient weave.Address, height int64, conf *Configuration) (bool, error) {
	var entry CooldownEntry
	switch err := h.cooldowns.One(db, recipient, &entry); {
	case errors.ErrNotFound.Is(err):
		return true, nil
	case err != nil:
		return false, errors.Wrap(err, "cannot load cooldown entry")
	}
	if until := entry.Height + conf.CooldownBlocks; height < until {
		if conf.StrictCooldown {
			return false, errors.Wrapf(ErrCooldown, "%q until block %d", recipient, until)
		}
		return false, nil
	}
	if err := h.cooldowns.Delete(db, recipient); err != nil {
		return false, errors.Wrap(err, "cannot clear stale cooldown entry")
	}
	return true, nil
}

func (h *disburseHandler) validate(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*DisburseMsg, *Configuration, error) {
	var msg DisburseMsg
	if err := weave.LoadMsg(tx, &msg); err != nil {
		return nil, nil, errors.Wrap(err, "load msg")
	}
	conf, err := loadConf(db)
	if err != nil {
		return nil, nil, err
	}
	if len(conf.Admin) != 0 && !h.auth.HasAddress(ctx, conf.Admin) {
		return nil, nil, errors.Wrap(errors.ErrUnauthorized, "admin signature required")
	}
	if len(conf.Source) == 0 && x.AnySigner(ctx, h.auth) == nil {
		return nil, nil, errors.Wrap(errors.ErrUnauthorized, "no source account available")
	}
	return &msg, conf, nil
}

// claimHandler pays out a fixed amount from the pool on request,
// subject only to the cooldown. No feed record or proof is involved.
type claimHandler struct {
	ctrl      CashController
	cooldowns orm.ModelBucket
	pool      orm.ModelBucket
}

var _ weave.Handler = (*claimHandler)(nil)

func (h *claimHandler) Check(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.CheckResult, error) {
	if _, _, err := h.validate(ctx, db, tx); err != nil {
		return nil, err
	}
	return &weave.CheckResult{GasAllocated: claimCost}, nil
}

func (h *claimHandler) Deliver(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.DeliverResult, error) {
	msg, conf, err := h.validate(ctx, db, tx)
	if err != nil {
		return nil, err
	}

	source, err := h.source(db, conf)
	if err != nil {
		return nil, err
	}
	height, _ := weave.GetHeight(ctx)

	var entry CooldownEntry
	switch err := h.cooldowns.One(db, msg.Recipient, &entry); {
	case err == nil:
		if until := entry.Height + conf.CooldownBlocks; height < until {
			return nil, errors.Wrapf(ErrCooldown, "%q until block %d", msg.Recipient, until)
		}
		if err := h.cooldowns.Delete(db, msg.Recipient); err != nil {
			return nil, errors.Wrap(err, "cannot clear stale cooldown entry")
		}
	case errors.ErrNotFound.Is(err):
		// First claim for this recipient.
	default:
		return nil, errors.Wrap(err, "cannot load cooldown entry")
	}

	// Unlike a disbursement, a claim that cannot be paid fails loudly:
	// there is a caller to report to.
	if err := h.ctrl.MoveCoins(db, source, msg.Recipient, conf.Amount); err != nil {
		return nil, errors.Wrap(err, "cannot transfer funds")
	}

	newEntry := CooldownEntry{
		Metadata: &weave.Metadata{Schema: 1},
		Height:   height,
	}
	if _, err := h.cooldowns.Put(db, msg.Recipient, &newEntry); err != nil {
		return nil, errors.Wrap(err, "cannot store cooldown entry")
	}
	return &weave.DeliverResult{
		Tags: []common.KVPair{
			{Key: []byte(tagSent), Value: []byte(msg.Recipient.String())},
		},
	}, nil
}

// source returns the account funding claims: the registered pool if
// present, otherwise the configured source.
func (h *claimHandler) source(db weave.KVStore, conf *Configuration) (weave.Address, error) {
	var pool PoolAccount
	switch err := h.pool.One(db, poolKey, &pool); {
	case err == nil:
		return pool.Address, nil
	case errors.ErrNotFound.Is(err):
		if len(conf.Source) == 0 {
			return nil, errors.Wrap(errors.ErrState, "no pool account available")
		}
		return conf.Source, nil
	default:
		return nil, errors.Wrap(err, "cannot load pool account")
	}
}

func (h *claimHandler) validate(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*ClaimMsg, *Configuration, error) {
	var msg ClaimMsg
	if err := weave.LoadMsg(tx, &msg); err != nil {
		return nil, nil, errors.Wrap(err, "load msg")
	}
	conf, err := loadConf(db)
	if err != nil {
		return nil, nil, err
	}
	return &msg, conf, nil
}

// registerPoolHandler stores the account that funds pull style claims.
type registerPoolHandler struct {
	auth x.Authenticator
	pool orm.ModelBucket
}

var _ weave.Handler = (*registerPoolHandler)(nil)

func (h *registerPoolHandler) Check(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.CheckResult, error) {
	if _, err := h.validate(ctx, db, tx); err != nil {
		return nil, err
	}
	return &weave.CheckResult{GasAllocated: registerPoolCost}, nil
}

func (h *registerPoolHandler) Deliver(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.DeliverResult, error) {
	msg, err := h.validate(ctx, db, tx)
	if err != nil {
		return nil, err
	}
	pool := PoolAccount{
		Metadata: &weave.Metadata{Schema: 1},
		Address:  msg.Pool,
	}
	if _, err := h.pool.Put(db, poolKey, &pool); err != nil {
		return nil, errors.Wrap(err, "cannot store pool account")
	}
	return &weave.DeliverResult{
		Tags: []common.KVPair{
			{Key: []byte(tagPool), Value: []byte(msg.Pool.String())},
		},
	}, nil
}

func (h *registerPoolHandler) validate(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*RegisterPoolMsg, error) {
	var msg RegisterPoolMsg
	if err := weave.LoadMsg(tx, &msg); err != nil {
		return nil, errors.Wrap(err, "load msg")
	}
	// Only the pool account itself can volunteer its funds.
	if !h.auth.HasAddress(ctx, msg.Pool) {
		return nil, errors.Wrap(errors.ErrUnauthorized, "pool account signature required")
	}
	return &msg, nil
}

// NewConfigHandler returns the standard gconf patch handler for the
// faucet configuration.
func NewConfigHandler(auth x.Authenticator) weave.Handler {
	var conf Configuration
	return gconf.NewUpdateConfigurationHandler("faucet", &conf, auth, migration.CurrentAdmin)
}
