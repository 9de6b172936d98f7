package faucet

import (
	"github.com/iov-one/weave"
	"github.com/iov-one/weave/errors"
	"github.com/iov-one/weave/gconf"
)

// Initializer fulfils the Initializer interface to load data from the
// genesis file
type Initializer struct{}

var _ weave.Initializer = (*Initializer)(nil)

// FromGenesis will parse initial configuration from genesis and save it
// to the database. A pool account may be declared upfront so that claims
// work from the first block.
func (*Initializer) FromGenesis(opts weave.Options, params weave.GenesisParams, kv weave.KVStore) error {
	if err := gconf.InitConfig(kv, opts, "faucet", &Configuration{}); err != nil {
		return errors.Wrap(err, "init config")
	}

	var genesis struct {
		Pool weave.Address `json:"pool"`
	}
	if err := opts.ReadOptions("faucet", &genesis); err != nil {
		return errors.Wrap(err, "cannot load faucet options")
	}
	if len(genesis.Pool) == 0 {
		return nil
	}
	pool := PoolAccount{
		Metadata: &weave.Metadata{Schema: 1},
		Address:  genesis.Pool,
	}
	if err := pool.Validate(); err != nil {
		return errors.Wrap(err, "pool account is invalid")
	}
	bucket := NewPoolBucket()
	if _, err := bucket.Put(kv, poolKey, &pool); err != nil {
		return errors.Wrap(err, "cannot store pool account")
	}
	return nil
}
