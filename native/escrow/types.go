package escrow

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// AssetKind tags how a pledged asset is held and moved. The numeric values
// match the registration codes used by clients (1 = ERC-20, 2 = ERC-721).
type AssetKind uint8

const (
	AssetNative      AssetKind = 0
	AssetFungible    AssetKind = 1
	AssetNonFungible AssetKind = 2
)

// Valid reports whether the kind value is within the supported range.
func (k AssetKind) Valid() bool {
	switch k {
	case AssetNative, AssetFungible, AssetNonFungible:
		return true
	default:
		return false
	}
}

func (k AssetKind) String() string {
	switch k {
	case AssetNative:
		return "native"
	case AssetFungible:
		return "fungible"
	case AssetNonFungible:
		return "non-fungible"
	default:
		return fmt.Sprintf("asset-kind(%d)", uint8(k))
	}
}

// State is the lifecycle position of an escrow.
type State uint8

const (
	StateUnfulfilled State = iota
	StateFulfilled
	StateCancelRequested
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateUnfulfilled:
		return "unfulfilled"
	case StateFulfilled:
		return "fulfilled"
	case StateCancelRequested:
		return "cancel_requested"
	case StateEnded:
		return "ended"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Disposition records how an ended escrow was settled.
type Disposition uint8

const (
	DispositionNone Disposition = iota
	// DispositionSwapped: each pledge went to the counterparty.
	DispositionSwapped
	// DispositionRefunded: each custodied pledge went back to its owner.
	DispositionRefunded
)

func (d Disposition) String() string {
	switch d {
	case DispositionNone:
		return "none"
	case DispositionSwapped:
		return "swapped"
	case DispositionRefunded:
		return "refunded"
	default:
		return fmt.Sprintf("disposition(%d)", uint8(d))
	}
}

// Pledge is one side's asset commitment. Timestamps are unix seconds, zero
// meaning "not yet", and each may be set only once.
type Pledge struct {
	Owner         common.Address
	Kind          AssetKind
	TokenContract common.Address
	AmountOrID    *big.Int
	FulfilledAt   uint64
	CanceledAt    uint64
	EndedAt       uint64
}

func (p *Pledge) markFulfilled(now uint64) error {
	if p.FulfilledAt != 0 {
		return ErrAlreadyFulfilled
	}
	p.FulfilledAt = now
	return nil
}

func (p *Pledge) markCanceled(now uint64) error {
	if p.CanceledAt != 0 {
		return ErrAlreadyCanceled
	}
	p.CanceledAt = now
	return nil
}

func (p *Pledge) markEnded(now uint64) error {
	if p.EndedAt != 0 {
		return ErrAlreadyEnded
	}
	p.EndedAt = now
	return nil
}

// Clone returns a deep copy of the pledge.
func (p Pledge) Clone() Pledge {
	clone := p
	if p.AmountOrID != nil {
		clone.AmountOrID = new(big.Int).Set(p.AmountOrID)
	} else {
		clone.AmountOrID = big.NewInt(0)
	}
	return clone
}

// Escrow pairs the client's and the vendor's pledges. IDs are assigned
// sequentially from zero in creation order.
type Escrow struct {
	ID          uint64
	ClientAsset Pledge
	VendorAsset Pledge
	ExpireAt    uint64
	CreatedAt   uint64
	State       State
	Disposition Disposition
}

// Clone returns a deep copy of the escrow object so callers can safely mutate
// the copy without affecting the stored instance.
func (e *Escrow) Clone() *Escrow {
	if e == nil {
		return nil
	}
	clone := *e
	clone.ClientAsset = e.ClientAsset.Clone()
	clone.VendorAsset = e.VendorAsset.Clone()
	return &clone
}

// Ended reports whether the escrow reached a terminal disposition.
func (e *Escrow) Ended() bool { return e.State == StateEnded }

// Call carries the identity of the caller and the native value attached to
// the call.
type Call struct {
	From  common.Address
	Value *big.Int
}

func (c Call) value() *big.Int {
	if c.Value == nil {
		return big.NewInt(0)
	}
	return c.Value
}
