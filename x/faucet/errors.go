package faucet

import (
	"github.com/iov-one/weave/errors"
)

var (
	// ErrTimeParse is returned when a record creation time cannot be
	// interpreted as RFC3339. During commit this fails the whole
	// transaction, as partial application of a batch is not acceptable.
	ErrTimeParse = errors.Register(1200, "malformed creation time")

	// ErrCooldown is returned when a recipient asks for funds before
	// the configured number of blocks since the previous payout has
	// passed.
	ErrCooldown = errors.Register(1201, "cooldown period has not passed")
)
