package faucet

import (
	"testing"

	"github.com/iov-one/weave"
	"github.com/iov-one/weave/coin"
	"github.com/iov-one/weave/errors"
	"github.com/iov-one/weave/weavetest"
)

func TestDisburseMsgValidate(t *testing.T) {
	cases := map[string]struct {
		msg     DisburseMsg
		wantErr *errors.Error
	}{
		"valid message": {
			msg: DisburseMsg{
				Metadata: &weave.Metadata{Schema: 1},
				Records: []*FaucetRecord{
					record(1, "2019-04-01T10:00:00Z", 1),
				},
			},
			wantErr: nil,
		},
		"at least one record must be given": {
			msg: DisburseMsg{
				Metadata: &weave.Metadata{Schema: 1},
				Records:  nil,
			},
			wantErr: errors.ErrEmpty,
		},
		"record without an ID": {
			msg: DisburseMsg{
				Metadata: &weave.Metadata{Schema: 1},
				Records: []*FaucetRecord{
					{CreatedAt: "2019-04-01T10:00:00Z", Recipient: payload(1)},
				},
			},
			wantErr: errors.ErrEmpty,
		},
		"record without a creation time": {
			msg: DisburseMsg{
				Metadata: &weave.Metadata{Schema: 1},
				Records: []*FaucetRecord{
					{ID: 1, Recipient: payload(1)},
				},
			},
			wantErr: errors.ErrEmpty,
		},
		"record recipient must be the raw payload": {
			msg: DisburseMsg{
				Metadata: &weave.Metadata{Schema: 1},
				Records: []*FaucetRecord{
					{ID: 1, CreatedAt: "2019-04-01T10:00:00Z", Recipient: []byte("too-short")},
				},
			},
			wantErr: errors.ErrInput,
		},
		"missing metadata": {
			msg: DisburseMsg{
				Records: []*FaucetRecord{
					record(1, "2019-04-01T10:00:00Z", 1),
				},
			},
			wantErr: errors.ErrMetadata,
		},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			if err := tc.msg.Validate(); !tc.wantErr.Is(err) {
				t.Fatalf("want %v, got %+v", tc.wantErr, err)
			}
		})
	}
}

func TestClaimMsgValidate(t *testing.T) {
	addr := weavetest.NewCondition().Address()

	msg := ClaimMsg{
		Metadata:  &weave.Metadata{Schema: 1},
		Recipient: addr,
	}
	if err := msg.Validate(); err != nil {
		t.Fatalf("valid message rejected: %+v", err)
	}

	msg.Recipient = []byte("zzz")
	if err := msg.Validate(); !errors.ErrInput.Is(err) {
		t.Fatalf("want input error, got %+v", err)
	}
}

func TestUpdateConfigurationMsgValidate(t *testing.T) {
	cases := map[string]struct {
		msg     UpdateConfigurationMsg
		wantErr *errors.Error
	}{
		"valid patch": {
			msg: UpdateConfigurationMsg{
				Metadata: &weave.Metadata{Schema: 1},
				Patch: &Configuration{
					Amount:         coin.NewCoin(0, 5, "FCT"),
					CooldownBlocks: 10,
				},
			},
			wantErr: nil,
		},
		"patch is required": {
			msg: UpdateConfigurationMsg{
				Metadata: &weave.Metadata{Schema: 1},
			},
			wantErr: errors.ErrEmpty,
		},
		"negative cooldown": {
			msg: UpdateConfigurationMsg{
				Metadata: &weave.Metadata{Schema: 1},
				Patch: &Configuration{
					CooldownBlocks: -1,
				},
			},
			wantErr: errors.ErrInput,
		},
		"invalid source address": {
			msg: UpdateConfigurationMsg{
				Metadata: &weave.Metadata{Schema: 1},
				Patch: &Configuration{
					Source: []byte("zzz"),
				},
			},
			wantErr: errors.ErrInput,
		},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			if err := tc.msg.Validate(); !tc.wantErr.Is(err) {
				t.Fatalf("want %v, got %+v", tc.wantErr, err)
			}
		})
	}
}
