package faucet

import (
	"github.com/iov-one/weave"
	"github.com/iov-one/weave/errors"
	"github.com/iov-one/weave/migration"
)

func init() {
	migration.MustRegister(1, &DisburseMsg{}, migration.NoModification)
	migration.MustRegister(1, &ClaimMsg{}, migration.NoModification)
	migration.MustRegister(1, &RegisterPoolMsg{}, migration.NoModification)
	migration.MustRegister(1, &UpdateConfigurationMsg{}, migration.NoModification)
}

var _ weave.Msg = (*DisburseMsg)(nil)

func (DisburseMsg) Path() string {
	return "faucet/disburse"
}

func (m *DisburseMsg) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Metadata", m.Metadata.Validate())
	if len(m.Records) == 0 {
		errs = errors.AppendField(errs, "Records", errors.ErrEmpty)
	}
	for i, rec := range m.Records {
		errs = errors.Append(errs,
			errors.Wrapf(rec.Validate(), "record #%d", i))
	}
	return errs
}

// Validate ensures a record carries everything the deliver time checks
// rely on. The recipient must already be the decoded 32 byte payload,
// not the human readable address encoding.
func (rec *FaucetRecord) Validate() error {
	var errs error
	if rec.ID == 0 {
		errs = errors.AppendField(errs, "ID", errors.ErrEmpty)
	}
	if rec.CreatedAt == "" {
		errs = errors.AppendField(errs, "CreatedAt", errors.ErrEmpty)
	}
	if len(rec.Recipient) != RecipientPayloadSize {
		errs = errors.AppendField(errs, "Recipient",
			errors.Wrapf(errors.ErrInput, "must be %d bytes", RecipientPayloadSize))
	}
	return errs
}

var _ weave.Msg = (*ClaimMsg)(nil)

func (ClaimMsg) Path() string {
	return "faucet/claim"
}

func (m *ClaimMsg) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Metadata", m.Metadata.Validate())
	errs = errors.AppendField(errs, "Recipient", m.Recipient.Validate())
	return errs
}

var _ weave.Msg = (*RegisterPoolMsg)(nil)

func (RegisterPoolMsg) Path() string {
	return "faucet/register_pool"
}

func (m *RegisterPoolMsg) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Metadata", m.Metadata.Validate())
	errs = errors.AppendField(errs, "Pool", m.Pool.Validate())
	return errs
}

var _ weave.Msg = (*UpdateConfigurationMsg)(nil)

func (*UpdateConfigurationMsg) Path() string {
	return "faucet/update_configuration"
}

// Validate will skip any zero fields and validate the set ones.
func (m *UpdateConfigurationMsg) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Metadata", m.Metadata.Validate())
	if m.Patch == nil {
		errs = errors.AppendField(errs, "Patch", errors.ErrEmpty)
		return errs
	}
	c := m.Patch
	if len(c.Owner) != 0 {
		errs = errors.AppendField(errs, "Patch.Owner", c.Owner.Validate())
	}
	if len(c.Admin) != 0 {
		errs = errors.AppendField(errs, "Patch.Admin", c.Admin.Validate())
	}
	if len(c.Source) != 0 {
		errs = errors.AppendField(errs, "Patch.Source", c.Source.Validate())
	}
	if !c.Amount.IsZero() {
		errs = errors.AppendField(errs, "Patch.Amount", c.Amount.Validate())
	}
	if c.CooldownBlocks < 0 {
		errs = errors.AppendField(errs, "Patch.CooldownBlocks",
			errors.Wrap(errors.ErrInput, "must not be negative"))
	}
	return errs
}
