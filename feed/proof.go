package feed

import (
	"bytes"
	"encoding/hex"

	"github.com/btcsuite/btcutil/base58"
	"github.com/iov-one/weave-faucet/x/faucet"
	"github.com/iov-one/weave/errors"
	"github.com/tendermint/tendermint/libs/log"
)

// encodedAddressSize is the length of a base58 decoded address: one
// version byte, the raw payload and a two byte checksum.
const encodedAddressSize = 1 + faucet.RecipientPayloadSize + 2

// VerifyProof checks that the author of a claim knows the raw bytes
// behind the claimed address. The address is base58 decoded and the
// homework must be the hex encoding of the embedded payload. On success
// the payload is returned.
func VerifyProof(address, proof string) ([]byte, error) {
	raw := base58.Decode(address)
	if len(raw) != encodedAddressSize {
		return nil, errors.Wrapf(ErrProof, "address decodes to %d bytes", len(raw))
	}
	payload := raw[1 : 1+faucet.RecipientPayloadSize]

	claimed, err := hex.DecodeString(proof)
	if err != nil {
		return nil, errors.Wrap(ErrProof, "homework is not hex")
	}
	if !bytes.Equal(payload, claimed) {
		return nil, errors.Wrap(ErrProof, "homework does not match address")
	}
	return payload, nil
}

// VerifyCandidates turns candidates into faucet records, dropping those
// that fail the proof of knowledge check. Failures are logged, not
// returned: one bad claim must not block the rest of the feed.
func VerifyCandidates(cands []*Candidate, logger log.Logger) []*faucet.FaucetRecord {
	recs := make([]*faucet.FaucetRecord, 0, len(cands))
	for _, cand := range cands {
		payload, err := VerifyProof(cand.Address, cand.Proof)
		if err != nil {
			logger.Info("dropping claim with invalid proof",
				"comment", cand.ID, "login", cand.Login, "err", err)
			continue
		}
		recs = append(recs, &faucet.FaucetRecord{
			ID:        cand.ID,
			Login:     []byte(cand.Login),
			CreatedAt: cand.CreatedAt,
			Recipient: payload,
		})
	}
	return recs
}
