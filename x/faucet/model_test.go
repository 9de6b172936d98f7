package faucet

import (
	"testing"

	"github.com/iov-one/weave"
	"github.com/iov-one/weave/migration"
	"github.com/iov-one/weave/store"
)

func TestLoadWatermarkDefaultsToEpoch(t *testing.T) {
	db := store.MemStore()
	migration.MustInitPkg(db, "faucet")
	bucket := NewWatermarkBucket()

	w, err := loadWatermark(db, bucket)
	if err != nil {
		t.Fatalf("cannot load watermark: %s", err)
	}
	if w.ID != 0 || w.CreatedAt != epochCreatedAt {
		t.Fatalf("want the epoch baseline, got %+v", w)
	}

	stored := Watermark{
		Metadata:  &weave.Metadata{Schema: 1},
		ID:        42,
		Login:     []byte("bob"),
		CreatedAt: "2019-04-01T10:00:00Z",
		Recipient: payload(3),
	}
	if _, err := bucket.Put(db, watermarkKey, &stored); err != nil {
		t.Fatalf("cannot store watermark: %s", err)
	}

	w, err = loadWatermark(db, bucket)
	if err != nil {
		t.Fatalf("cannot load watermark: %s", err)
	}
	if w.ID != 42 || w.CreatedAt != stored.CreatedAt {
		t.Fatalf("unexpected watermark: %+v", w)
	}
}

func TestRecipientAddressIsDeterministic(t *testing.T) {
	a := RecipientAddress(payload(1))
	b := RecipientAddress(payload(1))
	if !a.Equals(b) {
		t.Fatalf("address derivation must be deterministic: %s != %s", a, b)
	}
	if err := a.Validate(); err != nil {
		t.Fatalf("derived address must be valid: %s", err)
	}
	if other := RecipientAddress(payload(2)); a.Equals(other) {
		t.Fatal("different payloads must map to different addresses")
	}
}

func TestWatermarkValidate(t *testing.T) {
	w := Watermark{
		Metadata:  &weave.Metadata{Schema: 1},
		ID:        1,
		CreatedAt: "2019-04-01T10:00:00Z",
		Recipient: payload(1),
	}
	if err := w.Validate(); err != nil {
		t.Fatalf("valid watermark rejected: %s", err)
	}

	w.Recipient = []byte("short")
	if err := w.Validate(); err == nil {
		t.Fatal("truncated recipient must be rejected")
	}

	w.Recipient = nil
	if err := w.Validate(); err != nil {
		t.Fatalf("the epoch baseline has no recipient: %s", err)
	}
}
