package faucet

import (
	"github.com/iov-one/weave"
	"github.com/iov-one/weave/errors"
	"github.com/iov-one/weave/migration"
	"github.com/iov-one/weave/orm"
)

func init() {
	migration.MustRegister(1, &Watermark{}, migration.NoModification)
	migration.MustRegister(1, &CooldownEntry{}, migration.NoModification)
	migration.MustRegister(1, &PoolAccount{}, migration.NoModification)
}

// epochCreatedAt is the baseline creation time used when no watermark
// was persisted yet. Any sanely dated feed record is newer.
const epochCreatedAt = "1976-09-24T16:00:00Z"

// RecipientPayloadSize is the length of the canonical recipient
// identifier recovered from the claimed address.
const RecipientPayloadSize = 32

var (
	watermarkKey = []byte("latest")
	poolKey      = []byte("pool")
)

// RecipientAddress maps the 32 byte claimant identifier to its ledger
// address, following the sigs convention of deriving addresses from
// ed25519 public key material.
func RecipientAddress(payload []byte) weave.Address {
	return weave.NewCondition("sigs", "ed25519", payload).Address()
}

var _ orm.CloneableData = (*Watermark)(nil)

func (w *Watermark) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Metadata", w.Metadata.Validate())
	if w.CreatedAt == "" {
		errs = errors.AppendField(errs, "CreatedAt", errors.ErrEmpty)
	}
	if n := len(w.Recipient); n != 0 && n != RecipientPayloadSize {
		errs = errors.AppendField(errs, "Recipient",
			errors.Wrapf(errors.ErrInput, "must be %d bytes", RecipientPayloadSize))
	}
	return errs
}

func (w *Watermark) Copy() orm.CloneableData {
	return &Watermark{
		Metadata:  w.Metadata.Copy(),
		ID:        w.ID,
		Login:     append([]byte(nil), w.Login...),
		CreatedAt: w.CreatedAt,
		Recipient: append([]byte(nil), w.Recipient...),
	}
}

var _ orm.CloneableData = (*CooldownEntry)(nil)

func (e *CooldownEntry) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Metadata", e.Metadata.Validate())
	if e.Height < 0 {
		errs = errors.AppendField(errs, "Height",
			errors.Wrap(errors.ErrState, "negative height"))
	}
	return errs
}

func (e *CooldownEntry) Copy() orm.CloneableData {
	return &CooldownEntry{
		Metadata: e.Metadata.Copy(),
		Height:   e.Height,
	}
}

var _ orm.CloneableData = (*PoolAccount)(nil)

func (p *PoolAccount) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Metadata", p.Metadata.Validate())
	errs = errors.AppendField(errs, "Address", p.Address.Validate())
	return errs
}

func (p *PoolAccount) Copy() orm.CloneableData {
	return &PoolAccount{
		Metadata: p.Metadata.Copy(),
		Address:  p.Address.Clone(),
	}
}

// NewWatermarkBucket returns a bucket holding the watermark singleton
// under the watermarkKey key.
func NewWatermarkBucket() orm.ModelBucket {
	b := orm.NewModelBucket("watermark", &Watermark{})
	return migration.NewModelBucket("faucet", b)
}

// NewCooldownBucket returns a bucket mapping recipient addresses to the
// block height of their last payout.
func NewCooldownBucket() orm.ModelBucket {
	b := orm.NewModelBucket("cooldown", &CooldownEntry{})
	return migration.NewModelBucket("faucet", b)
}

// NewPoolBucket returns a bucket holding the pool account singleton
// under the poolKey key.
func NewPoolBucket() orm.ModelBucket {
	b := orm.NewModelBucket("pool", &PoolAccount{})
	return migration.NewModelBucket("faucet", b)
}

// EpochWatermark returns the baseline watermark used before any record
// was committed.
func EpochWatermark() *Watermark {
	return &Watermark{
		Metadata:  &weave.Metadata{Schema: 1},
		ID:        0,
		CreatedAt: epochCreatedAt,
	}
}

// loadWatermark returns the persisted watermark, or the epoch baseline
// if none was stored yet.
func loadWatermark(db weave.ReadOnlyKVStore, b orm.ModelBucket) (*Watermark, error) {
	var w Watermark
	switch err := b.One(db, watermarkKey, &w); {
	case err == nil:
		return &w, nil
	case errors.ErrNotFound.Is(err):
		return EpochWatermark(), nil
	default:
		return nil, errors.Wrap(err, "cannot load watermark")
	}
}
