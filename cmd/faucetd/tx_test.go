package main

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/iov-one/weave"
	"github.com/iov-one/weave-faucet/x/faucet"
	"github.com/iov-one/weave/crypto"
	"github.com/iov-one/weave/x/sigs"
)

func TestTxSerialization(t *testing.T) {
	tx := Tx{
		Sum: &Tx_DisburseMsg{DisburseMsg: &faucet.DisburseMsg{
			Metadata: &weave.Metadata{Schema: 1},
			Records: []*faucet.FaucetRecord{
				{
					ID:        7,
					Login:     []byte("alice"),
					CreatedAt: "2019-04-01T10:00:00Z",
					Recipient: bytes.Repeat([]byte{1}, 32),
				},
			},
		}},
	}

	raw, err := tx.Marshal()
	if err != nil {
		t.Fatalf("cannot marshal: %s", err)
	}
	decoded, err := TxDecoder(raw)
	if err != nil {
		t.Fatalf("cannot decode: %s", err)
	}
	got, ok := decoded.(*Tx)
	if !ok {
		t.Fatalf("unexpected type: %T", decoded)
	}
	if !reflect.DeepEqual(&tx, got) {
		t.Fatalf("serialization is not symmetric: %+v", got)
	}

	msg, err := got.GetMsg()
	if err != nil {
		t.Fatalf("cannot get message: %s", err)
	}
	if msg.Path() != "faucet/disburse" {
		t.Fatalf("unexpected message path: %s", msg.Path())
	}
}

func TestTxWithoutMessage(t *testing.T) {
	var tx Tx
	if _, err := tx.GetMsg(); err == nil {
		t.Fatal("a transaction without a message must be rejected")
	}
}

func TestSignBytesIgnoreSignatures(t *testing.T) {
	tx := Tx{
		Sum: &Tx_ClaimMsg{ClaimMsg: &faucet.ClaimMsg{
			Metadata:  &weave.Metadata{Schema: 1},
			Recipient: weave.Address(bytes.Repeat([]byte{3}, 20)),
		}},
	}
	unsigned, err := tx.GetSignBytes()
	if err != nil {
		t.Fatalf("cannot get sign bytes: %s", err)
	}

	priv := crypto.GenPrivKeyEd25519()
	sig, err := sigs.SignTx(priv, &tx, "testchain-123", 0)
	if err != nil {
		t.Fatalf("cannot sign: %s", err)
	}
	tx.Signatures = append(tx.Signatures, sig)

	signed, err := tx.GetSignBytes()
	if err != nil {
		t.Fatalf("cannot get sign bytes: %s", err)
	}
	if !bytes.Equal(unsigned, signed) {
		t.Fatal("sign bytes must not cover the signatures")
	}
}
