package faucet

import (
	"github.com/iov-one/weave/errors"
	"github.com/iov-one/weave/gconf"
	"github.com/iov-one/weave/migration"
)

func init() {
	migration.MustRegister(1, &Configuration{}, migration.NoModification)
}

func (c *Configuration) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Metadata", c.Metadata.Validate())
	// Owner field is optional.
	if len(c.Owner) != 0 {
		errs = errors.AppendField(errs, "Owner", c.Owner.Validate())
	}
	// Admin field is optional. Without it any signer may submit a
	// disbursement, paying out of its own account unless Source is set.
	if len(c.Admin) != 0 {
		errs = errors.AppendField(errs, "Admin", c.Admin.Validate())
	}
	// Source field is optional.
	if len(c.Source) != 0 {
		errs = errors.AppendField(errs, "Source", c.Source.Validate())
	}
	if !c.Amount.IsPositive() {
		errs = errors.AppendField(errs, "Amount",
			errors.Wrap(errors.ErrAmount, "must be positive"))
	} else {
		errs = errors.AppendField(errs, "Amount", c.Amount.Validate())
	}
	if c.CooldownBlocks < 0 {
		errs = errors.AppendField(errs, "CooldownBlocks",
			errors.Wrap(errors.ErrInput, "must not be negative"))
	}
	return errs
}

func loadConf(db gconf.ReadStore) (*Configuration, error) {
	var conf Configuration
	if err := gconf.Load(db, "faucet", &conf); err != nil {
		return nil, errors.Wrap(err, "load configuration")
	}
	return &conf, nil
}
