package token

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ERC721 is a non-fungible token ledger. Token ids are assigned sequentially
// from 1 by Mint.
type ERC721 struct {
	addr  common.Address
	state kvStore
}

func (t *ERC721) Address() common.Address { return t.addr }

func (t *ERC721) ownerKey(id *big.Int) []byte {
	return stateKey("erc721", t.addr.Hex(), "owner", id.String())
}

func (t *ERC721) approvedKey(id *big.Int) []byte {
	return stateKey("erc721", t.addr.Hex(), "approved", id.String())
}

func (t *ERC721) operatorKey(owner, operator common.Address) []byte {
	return stateKey("erc721", t.addr.Hex(), "operator", owner.Hex(), operator.Hex())
}

func (t *ERC721) balanceKey(owner common.Address) []byte {
	return stateKey("erc721", t.addr.Hex(), "balance", owner.Hex())
}

func (t *ERC721) lastIDKey() []byte {
	return stateKey("erc721", t.addr.Hex(), "last-id")
}

// OwnerOf returns the owner of id or ErrNonexistentToken.
func (t *ERC721) OwnerOf(id *big.Int) (common.Address, error) {
	if id == nil || id.Sign() <= 0 {
		return common.Address{}, ErrNonexistentToken
	}
	var owner common.Address
	ok, err := t.state.KVGet(t.ownerKey(id), &owner)
	if err != nil {
		return common.Address{}, err
	}
	if !ok || owner == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%w: %s", ErrNonexistentToken, id)
	}
	return owner, nil
}

// BalanceOf returns how many tokens owner holds.
func (t *ERC721) BalanceOf(owner common.Address) (*big.Int, error) {
	return loadBig(t.state, t.balanceKey(owner))
}

// GetApproved returns the single-token approval for id, if any.
func (t *ERC721) GetApproved(id *big.Int) (common.Address, error) {
	var approved common.Address
	if _, err := t.state.KVGet(t.approvedKey(id), &approved); err != nil {
		return common.Address{}, err
	}
	return approved, nil
}

// IsApprovedForAll reports whether operator may move every token of owner.
func (t *ERC721) IsApprovedForAll(owner, operator common.Address) (bool, error) {
	var approved bool
	if _, err := t.state.KVGet(t.operatorKey(owner, operator), &approved); err != nil {
		return false, err
	}
	return approved, nil
}

// Approve lets to transfer id. Only the owner or an operator may approve.
func (t *ERC721) Approve(caller, to common.Address, id *big.Int) error {
	owner, err := t.OwnerOf(id)
	if err != nil {
		return err
	}
	if caller != owner {
		operator, err := t.IsApprovedForAll(owner, caller)
		if err != nil {
			return err
		}
		if !operator {
			return ErrNotOwner
		}
	}
	return t.state.KVPut(t.approvedKey(id), to)
}

// SetApprovalForAll grants or revokes operator rights over all of owner's tokens.
func (t *ERC721) SetApprovalForAll(owner, operator common.Address, approved bool) error {
	if operator == (common.Address{}) {
		return ErrZeroAddress
	}
	return t.state.KVPut(t.operatorKey(owner, operator), approved)
}

// Mint issues the next token id to the recipient. Test-only issuance.
func (t *ERC721) Mint(to common.Address) (*big.Int, error) {
	if to == (common.Address{}) {
		return nil, ErrZeroAddress
	}
	var last uint64
	if _, err := t.state.KVGet(t.lastIDKey(), &last); err != nil {
		return nil, err
	}
	id := new(big.Int).SetUint64(last + 1)
	if err := t.state.KVPut(t.lastIDKey(), last+1); err != nil {
		return nil, err
	}
	if err := t.state.KVPut(t.ownerKey(id), to); err != nil {
		return nil, err
	}
	if err := t.adjustBalance(to, 1); err != nil {
		return nil, err
	}
	return id, nil
}

// TransferFrom moves id from from to to. spender must be the owner, the
// approved address for id, or an operator of the owner. Any single-token
// approval is cleared.
func (t *ERC721) TransferFrom(spender, from, to common.Address, id *big.Int) error {
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	owner, err := t.OwnerOf(id)
	if err != nil {
		return err
	}
	if owner != from {
		return fmt.Errorf("%w: %s does not own %s", ErrNotOwner, from.Hex(), id)
	}
	if spender != owner {
		approved, err := t.GetApproved(id)
		if err != nil {
			return err
		}
		if approved != spender {
			operator, err := t.IsApprovedForAll(owner, spender)
			if err != nil {
				return err
			}
			if !operator {
				return fmt.Errorf("%w: %s for %s", ErrNotApproved, spender.Hex(), id)
			}
		}
	}
	if err := t.state.KVPut(t.approvedKey(id), common.Address{}); err != nil {
		return err
	}
	if err := t.state.KVPut(t.ownerKey(id), to); err != nil {
		return err
	}
	if err := t.adjustBalance(from, -1); err != nil {
		return err
	}
	return t.adjustBalance(to, 1)
}

func (t *ERC721) adjustBalance(owner common.Address, delta int64) error {
	balance, err := t.BalanceOf(owner)
	if err != nil {
		return err
	}
	balance.Add(balance, big.NewInt(delta))
	if balance.Sign() < 0 {
		return fmt.Errorf("erc721: negative balance for %s", owner.Hex())
	}
	return t.state.KVPut(t.balanceKey(owner), balance)
}
