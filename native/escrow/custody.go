package escrow

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// VaultAddress is the account that holds every custodied asset.
var VaultAddress = common.BytesToAddress(ethcrypto.Keccak256([]byte("escrow/vault"))[12:])

// NativeLedger moves native currency between accounts.
type NativeLedger interface {
	NativeTransfer(from, to common.Address, amount *big.Int) error
}

// FungibleToken is the subset of an ERC-20 style contract the escrow calls.
type FungibleToken interface {
	Transfer(from, to common.Address, amount *big.Int) error
	TransferFrom(spender, from, to common.Address, amount *big.Int) error
}

// NonFungibleToken is the subset of an ERC-721 style contract the escrow calls.
type NonFungibleToken interface {
	TransferFrom(spender, from, to common.Address, id *big.Int) error
}

// TokenContracts resolves contract addresses to callable token contracts.
type TokenContracts interface {
	Fungible(addr common.Address) (FungibleToken, error)
	NonFungible(addr common.Address) (NonFungibleToken, error)
}

// custody pulls pledged assets into the vault and pushes them out again.
// Every failure is reported as ErrTransferFailed wrapping the cause.
type custody struct {
	native NativeLedger
	tokens TokenContracts
	vault  common.Address
}

func (c custody) pull(p *Pledge, from common.Address) error {
	amount := p.AmountOrID
	var err error
	switch p.Kind {
	case AssetNative:
		err = c.native.NativeTransfer(from, c.vault, amount)
	case AssetFungible:
		var token FungibleToken
		token, err = c.tokens.Fungible(p.TokenContract)
		if err == nil {
			err = token.TransferFrom(c.vault, from, c.vault, amount)
		}
	case AssetNonFungible:
		var token NonFungibleToken
		token, err = c.tokens.NonFungible(p.TokenContract)
		if err == nil {
			err = token.TransferFrom(c.vault, from, c.vault, amount)
		}
	default:
		err = fmt.Errorf("%w: %s", ErrInvalidAssetKind, p.Kind)
	}
	if err != nil {
		return fmt.Errorf("%w: pull %s %s from %s: %w", ErrTransferFailed, p.Kind, amount, from.Hex(), err)
	}
	return nil
}

func (c custody) push(p *Pledge, to common.Address) error {
	amount := p.AmountOrID
	var err error
	switch p.Kind {
	case AssetNative:
		err = c.native.NativeTransfer(c.vault, to, amount)
	case AssetFungible:
		var token FungibleToken
		token, err = c.tokens.Fungible(p.TokenContract)
		if err == nil {
			err = token.Transfer(c.vault, to, amount)
		}
	case AssetNonFungible:
		var token NonFungibleToken
		token, err = c.tokens.NonFungible(p.TokenContract)
		if err == nil {
			err = token.TransferFrom(c.vault, c.vault, to, amount)
		}
	default:
		err = fmt.Errorf("%w: %s", ErrInvalidAssetKind, p.Kind)
	}
	if err != nil {
		return fmt.Errorf("%w: push %s %s to %s: %w", ErrTransferFailed, p.Kind, amount, to.Hex(), err)
	}
	return nil
}
