package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// NativeTransferPayload sends the call value to To.
type NativeTransferPayload struct {
	To common.Address `json:"to"`
}

type RegisterTokenPayload struct {
	Contract common.Address `json:"contract"`
	Kind     uint8          `json:"kind"`
}

type CreateEthEscrowPayload struct {
	Vendor           common.Address `json:"vendor"`
	VendorAmountOrID *big.Int       `json:"vendorAmountOrId"`
	VendorContract   common.Address `json:"vendorContract"`
	ExpireAt         uint64         `json:"expireAt"`
}

type CreateTokenEscrowPayload struct {
	ClientAmountOrID *big.Int       `json:"clientAmountOrId"`
	ClientContract   common.Address `json:"clientContract"`
	Vendor           common.Address `json:"vendor"`
	VendorAmountOrID *big.Int       `json:"vendorAmountOrId"`
	VendorContract   common.Address `json:"vendorContract"`
	ExpireAt         uint64         `json:"expireAt"`
}

// EscrowIDPayload addresses an existing escrow for fulfill, commit, cancel,
// approve, decline and reclaim calls.
type EscrowIDPayload struct {
	EscrowID uint64 `json:"escrowId"`
}

// DeployTokenPayload deploys a reference contract. Kind is 1 (fungible) or
// 2 (non-fungible).
type DeployTokenPayload struct {
	Kind   uint8  `json:"kind"`
	Symbol string `json:"symbol"`
}

// MintTokenPayload mints Amount fungible units, or the next token id when the
// contract is non-fungible.
type MintTokenPayload struct {
	Contract common.Address `json:"contract"`
	To       common.Address `json:"to"`
	Amount   *big.Int       `json:"amount,omitempty"`
}

type ApproveTokenPayload struct {
	Contract   common.Address `json:"contract"`
	Spender    common.Address `json:"spender"`
	AmountOrID *big.Int       `json:"amountOrId"`
}

type TransferTokenPayload struct {
	Contract   common.Address `json:"contract"`
	To         common.Address `json:"to"`
	AmountOrID *big.Int       `json:"amountOrId"`
}

// SetApprovalForAllPayload toggles an operator over all of the caller's
// tokens on a non-fungible contract.
type SetApprovalForAllPayload struct {
	Contract common.Address `json:"contract"`
	Operator common.Address `json:"operator"`
	Approved bool           `json:"approved"`
}
