package escrow

import (
	"errors"
	"math/big"
	"testing"
)

func bigOne() *big.Int { return big.NewInt(1) }

func TestPledgeMarkersAreWriteOnce(t *testing.T) {
	var p Pledge
	if err := p.markFulfilled(10); err != nil {
		t.Fatalf("first fulfill: %v", err)
	}
	if err := p.markFulfilled(11); !errors.Is(err, ErrAlreadyFulfilled) {
		t.Fatalf("expected ErrAlreadyFulfilled, got %v", err)
	}
	if err := p.markCanceled(12); err != nil {
		t.Fatalf("first cancel: %v", err)
	}
	if err := p.markCanceled(13); !errors.Is(err, ErrAlreadyCanceled) {
		t.Fatalf("expected ErrAlreadyCanceled, got %v", err)
	}
	if err := p.markEnded(14); err != nil {
		t.Fatalf("first end: %v", err)
	}
	if err := p.markEnded(15); !errors.Is(err, ErrAlreadyEnded) {
		t.Fatalf("expected ErrAlreadyEnded, got %v", err)
	}
	if p.FulfilledAt != 10 || p.CanceledAt != 12 || p.EndedAt != 14 {
		t.Fatalf("markers overwritten: %+v", p)
	}
}

func TestEscrowCloneIsDeep(t *testing.T) {
	esc := &Escrow{
		ClientAsset: Pledge{AmountOrID: big.NewInt(7)},
		VendorAsset: Pledge{AmountOrID: big.NewInt(8)},
	}
	clone := esc.Clone()
	clone.ClientAsset.AmountOrID.SetInt64(70)
	clone.VendorAsset.FulfilledAt = 1
	if esc.ClientAsset.AmountOrID.Int64() != 7 || esc.VendorAsset.FulfilledAt != 0 {
		t.Fatalf("clone shares state with original")
	}
}

func TestNewEscrowEventAttributes(t *testing.T) {
	esc := &Escrow{
		ID:          3,
		ClientAsset: Pledge{Owner: newTestAddress(0x01), Kind: AssetNative, AmountOrID: big.NewInt(100)},
		VendorAsset: Pledge{Owner: newTestAddress(0x02), Kind: AssetFungible, TokenContract: newTestAddress(0x10), AmountOrID: big.NewInt(25)},
		ExpireAt:    99,
		State:       StateEnded,
		Disposition: DispositionSwapped,
	}
	evt := NewCommittedEvent(esc)
	if evt.Type != EventTypeEscrowCommitted {
		t.Fatalf("unexpected type %s", evt.Type)
	}
	want := map[string]string{
		AttrEscrowID:       "3",
		"clientKind":       "native",
		"clientAmountOrId": "100",
		"vendorKind":       "fungible",
		"vendorContract":   newTestAddress(0x10).Hex(),
		"vendorAmountOrId": "25",
		"expireAt":         "99",
		"state":            "ended",
		"disposition":      "swapped",
	}
	for key, value := range want {
		if got := evt.Attr(key); got != value {
			t.Fatalf("attribute %s: expected %q, got %q", key, value, got)
		}
	}
	created := NewCreatedEvent(&Escrow{ClientAsset: Pledge{}, VendorAsset: Pledge{}})
	if _, ok := created.Attributes["disposition"]; ok {
		t.Fatalf("open escrow must not carry a disposition")
	}
}
