package core

import (
	"fmt"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"github.com/erikrakuscek/escrow-ethereum/core/events"
	"github.com/erikrakuscek/escrow-ethereum/core/types"
	"github.com/erikrakuscek/escrow-ethereum/native/escrow"
	"github.com/erikrakuscek/escrow-ethereum/native/token"
)

const (
	EventTypeTokenDeployed     = "token.deployed"
	EventTypeTokenMinted       = "token.minted"
	EventTypeTokenApproved     = "token.approved"
	EventTypeTokenTransferred  = "token.transferred"
	EventTypeOperatorApproval  = "token.operator_approval"
	EventTypeNativeTransferred = "native.transferred"
)

// tokenContracts exposes a token directory to the escrow engine.
type tokenContracts struct {
	dir *token.Directory
}

func (t tokenContracts) Fungible(addr common.Address) (escrow.FungibleToken, error) {
	erc20, err := t.dir.Fungible(addr)
	if err != nil {
		return nil, err
	}
	return erc20, nil
}

func (t tokenContracts) NonFungible(addr common.Address) (escrow.NonFungibleToken, error) {
	nft, err := t.dir.NonFungible(addr)
	if err != nil {
		return nil, err
	}
	return nft, nil
}

type nodeEvent struct {
	evt *types.Event
}

func (e nodeEvent) EventType() string { return e.evt.Type }

func (e nodeEvent) Event() *types.Event { return e.evt }

func emitNodeEvent(emitter events.Emitter, eventType string, attrs map[string]string) {
	emitter.Emit(nodeEvent{evt: &types.Event{Type: eventType, Attributes: attrs}})
}

func (n *Node) requireAdmin(from common.Address) error {
	if n.admin == (common.Address{}) || from != n.admin {
		return fmt.Errorf("%w: %s is not the administrator", escrow.ErrUnauthorized, from.Hex())
	}
	return nil
}

func (n *Node) deployToken(dir *token.Directory, emitter events.Emitter, from common.Address, call *types.Call, receipt *Receipt) error {
	if err := n.requireAdmin(from); err != nil {
		return err
	}
	var payload types.DeployTokenPayload
	if err := call.DecodePayload(&payload); err != nil {
		return err
	}
	contract, err := dir.Deploy(from, token.Kind(payload.Kind), payload.Symbol)
	if err != nil {
		return err
	}
	addr := contract.Address
	receipt.Contract = &addr
	emitNodeEvent(emitter, EventTypeTokenDeployed, map[string]string{
		"contract": addr.Hex(),
		"kind":     contract.Kind.String(),
		"symbol":   contract.Symbol,
		"deployer": from.Hex(),
	})
	return nil
}

func (n *Node) mintToken(dir *token.Directory, emitter events.Emitter, from common.Address, call *types.Call, receipt *Receipt) error {
	if err := n.requireAdmin(from); err != nil {
		return err
	}
	var payload types.MintTokenPayload
	if err := call.DecodePayload(&payload); err != nil {
		return err
	}
	contract, err := dir.Contract(payload.Contract)
	if err != nil {
		return err
	}
	amountOrID := payload.Amount
	switch contract.Kind {
	case token.KindFungible:
		erc20, err := dir.Fungible(contract.Address)
		if err != nil {
			return err
		}
		if err := erc20.Mint(payload.To, payload.Amount); err != nil {
			return err
		}
	case token.KindNonFungible:
		nft, err := dir.NonFungible(contract.Address)
		if err != nil {
			return err
		}
		id, err := nft.Mint(payload.To)
		if err != nil {
			return err
		}
		receipt.TokenID = id
		amountOrID = id
	}
	addr := contract.Address
	receipt.Contract = &addr
	emitNodeEvent(emitter, EventTypeTokenMinted, map[string]string{
		"contract":   addr.Hex(),
		"to":         payload.To.Hex(),
		"amountOrId": bigString(amountOrID),
	})
	return nil
}

func approveToken(dir *token.Directory, emitter events.Emitter, from common.Address, call *types.Call) error {
	var payload types.ApproveTokenPayload
	if err := call.DecodePayload(&payload); err != nil {
		return err
	}
	contract, err := dir.Contract(payload.Contract)
	if err != nil {
		return err
	}
	switch contract.Kind {
	case token.KindFungible:
		erc20, err := dir.Fungible(contract.Address)
		if err != nil {
			return err
		}
		if err := erc20.Approve(from, payload.Spender, payload.AmountOrID); err != nil {
			return err
		}
	case token.KindNonFungible:
		nft, err := dir.NonFungible(contract.Address)
		if err != nil {
			return err
		}
		if err := nft.Approve(from, payload.Spender, payload.AmountOrID); err != nil {
			return err
		}
	}
	emitNodeEvent(emitter, EventTypeTokenApproved, map[string]string{
		"contract":   contract.Address.Hex(),
		"owner":      from.Hex(),
		"spender":    payload.Spender.Hex(),
		"amountOrId": bigString(payload.AmountOrID),
	})
	return nil
}

func setApprovalForAll(dir *token.Directory, emitter events.Emitter, from common.Address, call *types.Call) error {
	var payload types.SetApprovalForAllPayload
	if err := call.DecodePayload(&payload); err != nil {
		return err
	}
	nft, err := dir.NonFungible(payload.Contract)
	if err != nil {
		return err
	}
	if err := nft.SetApprovalForAll(from, payload.Operator, payload.Approved); err != nil {
		return err
	}
	emitNodeEvent(emitter, EventTypeOperatorApproval, map[string]string{
		"contract": payload.Contract.Hex(),
		"owner":    from.Hex(),
		"operator": payload.Operator.Hex(),
		"approved": strconv.FormatBool(payload.Approved),
	})
	return nil
}

func transferToken(dir *token.Directory, emitter events.Emitter, from common.Address, call *types.Call) error {
	var payload types.TransferTokenPayload
	if err := call.DecodePayload(&payload); err != nil {
		return err
	}
	contract, err := dir.Contract(payload.Contract)
	if err != nil {
		return err
	}
	switch contract.Kind {
	case token.KindFungible:
		erc20, err := dir.Fungible(contract.Address)
		if err != nil {
			return err
		}
		if err := erc20.Transfer(from, payload.To, payload.AmountOrID); err != nil {
			return err
		}
	case token.KindNonFungible:
		nft, err := dir.NonFungible(contract.Address)
		if err != nil {
			return err
		}
		if err := nft.TransferFrom(from, from, payload.To, payload.AmountOrID); err != nil {
			return err
		}
	}
	emitNodeEvent(emitter, EventTypeTokenTransferred, map[string]string{
		"contract":   contract.Address.Hex(),
		"from":       from.Hex(),
		"to":         payload.To.Hex(),
		"amountOrId": bigString(payload.AmountOrID),
	})
	return nil
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
