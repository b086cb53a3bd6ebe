package modules

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/erikrakuscek/escrow-ethereum/core"
	"github.com/erikrakuscek/escrow-ethereum/native/escrow"
	"github.com/erikrakuscek/escrow-ethereum/storage/eventindex"
)

const maxEventsByType = 1000

// EventHistory lists committed events by escrow or by event type.
type EventHistory interface {
	ListByEscrow(ctx context.Context, id uint64) ([]eventindex.Entry, error)
	ListByType(ctx context.Context, eventType string, limit int) ([]eventindex.Entry, error)
}

// EscrowModule exposes escrow records, the token registry and event history.
type EscrowModule struct {
	node    *core.Node
	history EventHistory
}

// NewEscrowModule constructs an escrow RPC helper module. history may be nil
// when the event index is disabled.
func NewEscrowModule(node *core.Node, history EventHistory) *EscrowModule {
	return &EscrowModule{node: node, history: history}
}

type escrowIDParams struct {
	ID uint64 `json:"id"`
}

type eventTypeParams struct {
	Type  string `json:"type"`
	Limit int    `json:"limit,omitempty"`
}

type contractParams struct {
	Contract common.Address `json:"contract"`
}

// PledgeResult is one side of an escrow as returned over RPC.
type PledgeResult struct {
	Owner       string `json:"owner"`
	Kind        string `json:"kind"`
	Contract    string `json:"contract"`
	AmountOrID  string `json:"amountOrId"`
	FulfilledAt uint64 `json:"fulfilledAt"`
	CanceledAt  uint64 `json:"canceledAt"`
	EndedAt     uint64 `json:"endedAt"`
}

// EscrowResult is the RPC view of an escrow record.
type EscrowResult struct {
	ID          string       `json:"id"`
	ClientAsset PledgeResult `json:"clientAsset"`
	VendorAsset PledgeResult `json:"vendorAsset"`
	ExpireAt    uint64       `json:"expireAt"`
	CreatedAt   uint64       `json:"createdAt"`
	State       string       `json:"state"`
	Disposition string       `json:"disposition,omitempty"`
}

type EscrowCountResult struct {
	Count uint64 `json:"count"`
}

// VaultResult names the account that holds custodied pledges. Token owners
// approve it before creating or fulfilling a token escrow.
type VaultResult struct {
	Vault string `json:"vault"`
}

type RegistryResult struct {
	Contract string `json:"contract"`
	Kind     string `json:"kind"`
	Code     uint8  `json:"code"`
}

func formatPledge(p escrow.Pledge) PledgeResult {
	amount := "0"
	if p.AmountOrID != nil {
		amount = p.AmountOrID.String()
	}
	return PledgeResult{
		Owner:       p.Owner.Hex(),
		Kind:        p.Kind.String(),
		Contract:    p.TokenContract.Hex(),
		AmountOrID:  amount,
		FulfilledAt: p.FulfilledAt,
		CanceledAt:  p.CanceledAt,
		EndedAt:     p.EndedAt,
	}
}

// FormatEscrow converts an escrow record to its RPC view.
func FormatEscrow(esc *escrow.Escrow) EscrowResult {
	result := EscrowResult{
		ID:          strconv.FormatUint(esc.ID, 10),
		ClientAsset: formatPledge(esc.ClientAsset),
		VendorAsset: formatPledge(esc.VendorAsset),
		ExpireAt:    esc.ExpireAt,
		CreatedAt:   esc.CreatedAt,
		State:       esc.State.String(),
	}
	if esc.Disposition != escrow.DispositionNone {
		result.Disposition = esc.Disposition.String()
	}
	return result
}

// Get returns one escrow record.
func (m *EscrowModule) Get(params []json.RawMessage) (*EscrowResult, *ModuleError) {
	var p escrowIDParams
	if modErr := decodeParams(params, &p); modErr != nil {
		return nil, modErr
	}
	esc, err := m.node.GetEscrow(p.ID)
	if err != nil {
		return nil, MapError(err)
	}
	result := FormatEscrow(esc)
	return &result, nil
}

// Count returns the number of escrows created so far.
func (m *EscrowModule) Count() (*EscrowCountResult, *ModuleError) {
	count, err := m.node.EscrowCount()
	if err != nil {
		return nil, serverError(err)
	}
	return &EscrowCountResult{Count: count}, nil
}

// ListEvents returns the committed event history of an escrow, oldest first.
func (m *EscrowModule) ListEvents(ctx context.Context, params []json.RawMessage) ([]eventindex.Entry, *ModuleError) {
	if m.history == nil {
		return nil, &ModuleError{HTTPStatus: http.StatusNotImplemented, Code: codeServerError, Message: "event index disabled"}
	}
	var p escrowIDParams
	if modErr := decodeParams(params, &p); modErr != nil {
		return nil, modErr
	}
	if _, err := m.node.GetEscrow(p.ID); err != nil {
		return nil, MapError(err)
	}
	entries, err := m.history.ListByEscrow(ctx, p.ID)
	if err != nil {
		return nil, serverError(err)
	}
	return entries, nil
}

// ListEventsByType returns the most recent committed events of one type,
// newest first.
func (m *EscrowModule) ListEventsByType(ctx context.Context, params []json.RawMessage) ([]eventindex.Entry, *ModuleError) {
	if m.history == nil {
		return nil, &ModuleError{HTTPStatus: http.StatusNotImplemented, Code: codeServerError, Message: "event index disabled"}
	}
	var p eventTypeParams
	if modErr := decodeParams(params, &p); modErr != nil {
		return nil, modErr
	}
	p.Type = strings.TrimSpace(p.Type)
	if p.Type == "" {
		return nil, invalidParams("type is required")
	}
	if p.Limit < 0 || p.Limit > maxEventsByType {
		return nil, invalidParams(fmt.Sprintf("limit must be between 0 and %d", maxEventsByType))
	}
	entries, err := m.history.ListByType(ctx, p.Type, p.Limit)
	if err != nil {
		return nil, serverError(err)
	}
	return entries, nil
}

// Vault returns the custody address.
func (m *EscrowModule) Vault() *VaultResult {
	return &VaultResult{Vault: escrow.VaultAddress.Hex()}
}

// Resolve returns the asset kind registered for a contract address.
func (m *EscrowModule) Resolve(params []json.RawMessage) (*RegistryResult, *ModuleError) {
	var p contractParams
	if modErr := decodeParams(params, &p); modErr != nil {
		return nil, modErr
	}
	kind, err := m.node.ResolveTokenContract(p.Contract)
	if err != nil {
		return nil, MapError(err)
	}
	return &RegistryResult{Contract: p.Contract.Hex(), Kind: kind.String(), Code: uint8(kind)}, nil
}
