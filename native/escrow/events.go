package escrow

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"github.com/erikrakuscek/escrow-ethereum/core/types"
)

const (
	EventTypeTokenRegistered      = "escrow.token_registered"
	EventTypeEscrowCreated        = "escrow.created"
	EventTypeEscrowFulfilled      = "escrow.fulfilled"
	EventTypeEscrowCommitted      = "escrow.committed"
	EventTypeEscrowCanceled       = "escrow.canceled"
	EventTypeEscrowCancelRequest  = "escrow.cancel_requested"
	EventTypeEscrowCancelApproved = "escrow.cancel_approved"
	EventTypeEscrowCancelDeclined = "escrow.cancel_declined"
	EventTypeEscrowReclaimed      = "escrow.reclaimed"
)

// AttrEscrowID is the attribute every escrow lifecycle event carries.
const AttrEscrowID = "escrowId"

// NewTokenRegisteredEvent is emitted when the administrator accepts a token
// contract.
func NewTokenRegisteredEvent(contract common.Address, kind AssetKind) *types.Event {
	return &types.Event{
		Type: EventTypeTokenRegistered,
		Attributes: map[string]string{
			"contract": contract.Hex(),
			"kind":     kind.String(),
		},
	}
}

// NewCreatedEvent returns the canonical event payload for a newly created
// escrow.
func NewCreatedEvent(e *Escrow) *types.Event { return newEscrowEvent(EventTypeEscrowCreated, e) }

// NewFulfilledEvent is emitted when the vendor pledge enters custody.
func NewFulfilledEvent(e *Escrow) *types.Event { return newEscrowEvent(EventTypeEscrowFulfilled, e) }

func NewCommittedEvent(e *Escrow) *types.Event { return newEscrowEvent(EventTypeEscrowCommitted, e) }

// NewCanceledEvent is emitted when the client cancels before fulfillment.
func NewCanceledEvent(e *Escrow) *types.Event { return newEscrowEvent(EventTypeEscrowCanceled, e) }

func NewCancelRequestedEvent(e *Escrow) *types.Event {
	return newEscrowEvent(EventTypeEscrowCancelRequest, e)
}

func NewCancelApprovedEvent(e *Escrow) *types.Event {
	return newEscrowEvent(EventTypeEscrowCancelApproved, e)
}

func NewCancelDeclinedEvent(e *Escrow) *types.Event {
	return newEscrowEvent(EventTypeEscrowCancelDeclined, e)
}

// NewReclaimedEvent records who triggered the expiry refund.
func NewReclaimedEvent(e *Escrow, caller common.Address) *types.Event {
	evt := newEscrowEvent(EventTypeEscrowReclaimed, e)
	evt.Attributes["caller"] = caller.Hex()
	return evt
}

func newEscrowEvent(eventType string, e *Escrow) *types.Event {
	attrs := make(map[string]string)
	if e == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs[AttrEscrowID] = strconv.FormatUint(e.ID, 10)
	attrs["client"] = e.ClientAsset.Owner.Hex()
	attrs["clientKind"] = e.ClientAsset.Kind.String()
	attrs["clientContract"] = e.ClientAsset.TokenContract.Hex()
	attrs["clientAmountOrId"] = amountString(e.ClientAsset.AmountOrID)
	attrs["vendor"] = e.VendorAsset.Owner.Hex()
	attrs["vendorKind"] = e.VendorAsset.Kind.String()
	attrs["vendorContract"] = e.VendorAsset.TokenContract.Hex()
	attrs["vendorAmountOrId"] = amountString(e.VendorAsset.AmountOrID)
	attrs["expireAt"] = strconv.FormatUint(e.ExpireAt, 10)
	attrs["state"] = e.State.String()
	if e.Disposition != DispositionNone {
		attrs["disposition"] = e.Disposition.String()
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
