package faucet

import (
	"reflect"
	"testing"

	"github.com/iov-one/weave"
	"github.com/iov-one/weave/coin"
)

func TestDisburseMsgSerialization(t *testing.T) {
	msg := DisburseMsg{
		Metadata: &weave.Metadata{Schema: 1},
		Records: []*FaucetRecord{
			record(1, "2019-04-01T10:00:00Z", 1),
			record(2, "2019-04-01T11:00:00Z", 2),
		},
	}
	raw, err := msg.Marshal()
	if err != nil {
		t.Fatalf("cannot marshal: %s", err)
	}
	var got DisburseMsg
	if err := got.Unmarshal(raw); err != nil {
		t.Fatalf("cannot unmarshal: %s", err)
	}
	if !reflect.DeepEqual(msg, got) {
		t.Fatalf("serialization is not symmetric: %+v", got)
	}
}

func TestConfigurationSerialization(t *testing.T) {
	conf := Configuration{
		Metadata:       &weave.Metadata{Schema: 1},
		Owner:          weave.Address("f427d624ed29c1fae0e2"),
		Source:         weave.Address("aabbccddeeff00112233"),
		Amount:         coin.NewCoin(1, 0, "FCT"),
		CooldownBlocks: 100,
		StrictCooldown: true,
	}
	raw, err := conf.Marshal()
	if err != nil {
		t.Fatalf("cannot marshal: %s", err)
	}
	var got Configuration
	if err := got.Unmarshal(raw); err != nil {
		t.Fatalf("cannot unmarshal: %s", err)
	}
	if !reflect.DeepEqual(conf, got) {
		t.Fatalf("serialization is not symmetric: %+v", got)
	}
}

// A codec must ignore fields it does not know about, so that an old
// binary can process state written by a newer one.
func TestUnknownFieldsAreSkipped(t *testing.T) {
	raw, err := record(1, "2019-04-01T10:00:00Z", 1).Marshal()
	if err != nil {
		t.Fatalf("cannot marshal: %s", err)
	}
	// Field 99, wire type 2, payload "from the future".
	future := "from the future"
	raw = append(raw, 0x9a, 0x6, byte(len(future)))
	raw = append(raw, future...)

	var got FaucetRecord
	if err := got.Unmarshal(raw); err != nil {
		t.Fatalf("cannot unmarshal with unknown field: %s", err)
	}
	if got.ID != 1 || got.CreatedAt != "2019-04-01T10:00:00Z" {
		t.Fatalf("unexpected record: %+v", got)
	}
}

// Zero values are omitted from the serialized form.
func TestZeroValuesAreOmitted(t *testing.T) {
	var rec FaucetRecord
	raw, err := rec.Marshal()
	if err != nil {
		t.Fatalf("cannot marshal: %s", err)
	}
	if len(raw) != 0 {
		t.Fatalf("zero record must serialize to nothing, got %d bytes", len(raw))
	}
}
