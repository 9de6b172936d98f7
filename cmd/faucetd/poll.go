package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"flag"
	"io/ioutil"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/iov-one/weave"
	"github.com/iov-one/weave-faucet/feed"
	"github.com/iov-one/weave-faucet/x/faucet"
	"github.com/iov-one/weave/app"
	weaveclient "github.com/iov-one/weave/client"
	"github.com/iov-one/weave/crypto"
	"github.com/iov-one/weave/errors"
	"github.com/iov-one/weave/x/sigs"
	abci "github.com/tendermint/tendermint/abci/types"
	dbm "github.com/tendermint/tendermint/libs/db"
	"github.com/tendermint/tendermint/libs/log"
	rpcclient "github.com/tendermint/tendermint/rpc/client"
)

// PollCmd runs the offchain worker: fetch the feed, verify the claims
// and submit the qualifying ones as a disbursement transaction.
func PollCmd(logger log.Logger, home string, args []string) error {
	flags := flag.NewFlagSet("poll", flag.ExitOnError)
	var (
		remote   = flags.String("remote", "http://localhost:26657", "tendermint RPC address")
		feedURL  = flags.String("feed", "", "comment feed URL")
		keyPath  = flags.String("key", filepath.Join(home, "faucet.key"), "hex encoded ed25519 private key file")
		chainID  = flags.String("chain-id", "", "chain ID used for signing")
		interval = flags.Duration("interval", 10*time.Minute, "minimal delay between feed downloads")
		tick     = flags.Duration("tick", time.Minute, "how often a poll cycle is attempted")
	)
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *feedURL == "" {
		return errors.Wrap(errors.ErrInput, "feed URL is required")
	}
	if *chainID == "" {
		return errors.Wrap(errors.ErrInput, "chain ID is required")
	}

	signer, err := loadPrivateKey(*keyPath)
	if err != nil {
		return errors.Wrap(err, "load private key")
	}

	chain := &chainClient{
		client:  weaveclient.NewClient(rpcclient.NewHTTP(*remote, "/websocket")),
		signer:  signer,
		chainID: *chainID,
	}
	poller := &feed.Poller{
		Fetcher: &feed.Fetcher{
			Client: &http.Client{Timeout: 30 * time.Second},
			URL:    *feedURL,
		},
		Chain:    chain,
		Submit:   chain,
		DB:       dbm.NewDB("poller", dbm.GoLevelDBBackend, home),
		Interval: *interval,
		Logger:   logger,
	}

	ctx := context.Background()
	if err := poller.Poll(ctx); err != nil {
		logger.Error("poll cycle failed", "err", err)
	}
	return poller.Run(ctx, *tick)
}

// loadPrivateKey reads a hex encoded ed25519 private key.
func loadPrivateKey(path string) (*crypto.PrivateKey, error) {
	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrInput, err.Error())
	}
	data, err := hex.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, errors.Wrap(errors.ErrInput, "key is not hex")
	}
	return &crypto.PrivateKey{
		Priv: &crypto.PrivateKey_Ed25519{Ed25519: data},
	}, nil
}

// chainClient talks to the faucet chain. It implements both
// feed.Submitter and feed.StateLoader.
type chainClient struct {
	client  *weaveclient.Client
	signer  *crypto.PrivateKey
	chainID string
}

var _ feed.Submitter = (*chainClient)(nil)
var _ feed.StateLoader = (*chainClient)(nil)

// Disburse signs and commits a disbursement transaction.
func (c *chainClient) Disburse(ctx context.Context, recs []*faucet.FaucetRecord) error {
	tx := &Tx{
		Sum: &Tx_DisburseMsg{DisburseMsg: &faucet.DisburseMsg{
			Metadata: &weave.Metadata{Schema: 1},
			Records:  recs,
		}},
	}
	seq, err := c.nextSequence(ctx)
	if err != nil {
		return errors.Wrap(err, "next sequence")
	}
	sig, err := sigs.SignTx(c.signer, tx, c.chainID, seq)
	if err != nil {
		return errors.Wrap(err, "sign tx")
	}
	tx.Signatures = append(tx.Signatures, sig)

	res, err := c.client.CommitTx(ctx, tx)
	if err != nil {
		return err
	}
	return res.Err
}

// State loads the snapshot the offchain filter decides against.
func (c *chainClient) State(ctx context.Context) (*feed.State, error) {
	status, err := c.client.Status(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "status")
	}

	state := feed.State{
		Watermark: faucet.EpochWatermark(),
		Cooldowns: make(map[string]int64),
		Height:    status.Height,
	}

	models, err := c.abciQuery("/faucet/watermark", []byte("latest"))
	if err != nil {
		return nil, errors.Wrap(err, "query watermark")
	}
	if len(models) != 0 {
		if err := state.Watermark.Unmarshal(models[0].Value); err != nil {
			return nil, errors.Wrap(err, "unmarshal watermark")
		}
	}

	models, err = c.abciQuery("/faucet/cooldown?prefix", nil)
	if err != nil {
		return nil, errors.Wrap(err, "query cooldowns")
	}
	for _, m := range models {
		var entry faucet.CooldownEntry
		if err := entry.Unmarshal(m.Value); err != nil {
			return nil, errors.Wrap(err, "unmarshal cooldown entry")
		}
		// bucket keys carry the bucket name prefix
		addr := bytes.TrimPrefix(m.Key, []byte("cooldown:"))
		state.Cooldowns[string(addr)] = entry.Height
	}

	models, err = c.abciQuery("/", []byte("_c:faucet"))
	if err != nil {
		return nil, errors.Wrap(err, "query configuration")
	}
	if len(models) == 0 {
		return nil, errors.Wrap(errors.ErrNotFound, "no faucet configuration")
	}
	var conf faucet.Configuration
	if err := conf.Unmarshal(models[0].Value); err != nil {
		return nil, errors.Wrap(err, "unmarshal configuration")
	}
	state.CooldownBlocks = conf.CooldownBlocks

	return &state, nil
}

// nextSequence returns the sequence number to sign the next
// transaction with.
func (c *chainClient) nextSequence(ctx context.Context) (int64, error) {
	addr := c.signer.PublicKey().Address()
	models, err := c.abciQuery("/auth", addr)
	if err != nil {
		return 0, err
	}
	if len(models) == 0 {
		return 0, nil
	}
	var data sigs.UserData
	if err := data.Unmarshal(models[0].Value); err != nil {
		return 0, errors.Wrap(err, "unmarshal user data")
	}
	return data.Sequence, nil
}

// abciQuery runs a single query against the chain and decodes the
// result sets.
func (c *chainClient) abciQuery(path string, data []byte) ([]weave.Model, error) {
	resp := c.client.Query(abci.RequestQuery{Path: path, Data: data})
	if resp.Code != 0 {
		return nil, errors.ABCIError(resp.Code, resp.Log)
	}
	var keys, values app.ResultSet
	if len(resp.Key) != 0 {
		if err := keys.Unmarshal(resp.Key); err != nil {
			return nil, errors.Wrap(err, "unmarshal keys")
		}
	}
	if len(resp.Value) != 0 {
		if err := values.Unmarshal(resp.Value); err != nil {
			return nil, errors.Wrap(err, "unmarshal values")
		}
	}
	return app.JoinResults(&keys, &values)
}
