package types

import (
	"encoding/json"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

func TestCallSignAndRecover(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	call, err := NewCall(CallCreateEthEscrow, 3, big.NewInt(100), CreateEthEscrowPayload{
		Vendor:           common.HexToAddress("0x0000000000000000000000000000000000000002"),
		VendorAmountOrID: big.NewInt(25),
		ExpireAt:         1_700_000_000,
	})
	if err != nil {
		t.Fatalf("new call: %v", err)
	}
	if err := call.Sign(key); err != nil {
		t.Fatalf("sign: %v", err)
	}

	wire, err := json.Marshal(call)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var received Call
	if err := json.Unmarshal(wire, &received); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	from, err := received.From()
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if from != crypto.PubkeyToAddress(key.PublicKey) {
		t.Fatalf("recovered %s, want %s", from.Hex(), crypto.PubkeyToAddress(key.PublicKey).Hex())
	}

	var payload CreateEthEscrowPayload
	if err := received.DecodePayload(&payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.VendorAmountOrID.Int64() != 25 || payload.ExpireAt != 1_700_000_000 {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestTamperedCallRecoversDifferentSender(t *testing.T) {
	key, _ := crypto.GenerateKey()
	call, _ := NewCall(CallCancelEscrow, 0, nil, EscrowIDPayload{EscrowID: 1})
	if err := call.Sign(key); err != nil {
		t.Fatalf("sign: %v", err)
	}
	call.Nonce = 1
	call.from = nil
	from, err := call.From()
	if err == nil && from == crypto.PubkeyToAddress(key.PublicKey) {
		t.Fatalf("tampered call still recovers the signer")
	}
}

func TestUnsignedCall(t *testing.T) {
	call, _ := NewCall(CallClientCommit, 0, nil, EscrowIDPayload{})
	if _, err := call.From(); !errors.Is(err, ErrMissingSignature) {
		t.Fatalf("expected ErrMissingSignature, got %v", err)
	}
}

func TestParseCallType(t *testing.T) {
	for callType := range callTypeNames {
		parsed, err := ParseCallType(callType.String())
		if err != nil {
			t.Fatalf("parse %s: %v", callType, err)
		}
		if parsed != callType {
			t.Fatalf("round trip %s -> %s", callType, parsed)
		}
	}
	if _, err := ParseCallType("mint_everything"); err == nil {
		t.Fatalf("expected error for unknown name")
	}
	if !CallFulfillEthEscrow.Payable() || CallCancelEscrow.Payable() {
		t.Fatalf("unexpected payable flags")
	}
}
