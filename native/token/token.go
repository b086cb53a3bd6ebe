// Package token implements the fungible (ERC-20 style) and non-fungible
// (ERC-721 style) contracts the escrow consumes. Balances live in node state,
// so a discarded call scope also unwinds every token movement it made.
package token

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Kind identifies the contract standard.
type Kind uint8

const (
	KindFungible    Kind = 1
	KindNonFungible Kind = 2
)

func (k Kind) String() string {
	switch k {
	case KindFungible:
		return "fungible"
	case KindNonFungible:
		return "non-fungible"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ParseKind accepts "fungible"/"erc20" and "non-fungible"/"nft"/"erc721".
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fungible", "erc20", "1":
		return KindFungible, nil
	case "non-fungible", "nonfungible", "nft", "erc721", "2":
		return KindNonFungible, nil
	default:
		return 0, fmt.Errorf("token: unknown kind %q", s)
	}
}

var (
	ErrUnknownContract       = errors.New("token: unknown contract")
	ErrWrongKind             = errors.New("token: contract kind mismatch")
	ErrZeroAddress           = errors.New("token: zero address")
	ErrInsufficientBalance   = errors.New("token: insufficient balance")
	ErrInsufficientAllowance = errors.New("token: insufficient allowance")
	ErrNotOwner              = errors.New("token: caller is not the token owner")
	ErrNotApproved           = errors.New("token: caller is not approved for token")
	ErrNonexistentToken      = errors.New("token: nonexistent token")
)

type kvStore interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

// Contract is the deployment record of a token contract.
type Contract struct {
	Address  common.Address
	Kind     Kind
	Symbol   string
	Deployer common.Address
}

// Directory deploys and looks up token contracts held in state.
type Directory struct {
	state kvStore
}

// NewDirectory binds a directory to a state scope.
func NewDirectory(state kvStore) *Directory {
	return &Directory{state: state}
}

func contractKey(addr common.Address) []byte {
	return stateKey("token", "contract", addr.Hex())
}

func deployNonceKey(deployer common.Address) []byte {
	return stateKey("token", "deploy-nonce", deployer.Hex())
}

func stateKey(parts ...string) []byte {
	return []byte(strings.Join(parts, "/"))
}

// Deploy creates a new contract. The address is derived the way the EVM
// derives CREATE addresses: from the deployer and its deployment nonce.
func (d *Directory) Deploy(deployer common.Address, kind Kind, symbol string) (*Contract, error) {
	if kind != KindFungible && kind != KindNonFungible {
		return nil, fmt.Errorf("token: cannot deploy %s", kind)
	}
	var nonce uint64
	if _, err := d.state.KVGet(deployNonceKey(deployer), &nonce); err != nil {
		return nil, err
	}
	contract := &Contract{
		Address:  ethcrypto.CreateAddress(deployer, nonce),
		Kind:     kind,
		Symbol:   strings.TrimSpace(symbol),
		Deployer: deployer,
	}
	if err := d.state.KVPut(contractKey(contract.Address), contract); err != nil {
		return nil, err
	}
	if err := d.state.KVPut(deployNonceKey(deployer), nonce+1); err != nil {
		return nil, err
	}
	return contract, nil
}

// Contract returns the deployment record for addr.
func (d *Directory) Contract(addr common.Address) (*Contract, error) {
	var contract Contract
	ok, err := d.state.KVGet(contractKey(addr), &contract)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownContract, addr.Hex())
	}
	return &contract, nil
}

// Fungible returns the ERC-20 style contract at addr.
func (d *Directory) Fungible(addr common.Address) (*ERC20, error) {
	contract, err := d.Contract(addr)
	if err != nil {
		return nil, err
	}
	if contract.Kind != KindFungible {
		return nil, fmt.Errorf("%w: %s is %s", ErrWrongKind, addr.Hex(), contract.Kind)
	}
	return &ERC20{addr: addr, state: d.state}, nil
}

// NonFungible returns the ERC-721 style contract at addr.
func (d *Directory) NonFungible(addr common.Address) (*ERC721, error) {
	contract, err := d.Contract(addr)
	if err != nil {
		return nil, err
	}
	if contract.Kind != KindNonFungible {
		return nil, fmt.Errorf("%w: %s is %s", ErrWrongKind, addr.Hex(), contract.Kind)
	}
	return &ERC721{addr: addr, state: d.state}, nil
}

func loadBig(state kvStore, key []byte) (*big.Int, error) {
	value := new(big.Int)
	if _, err := state.KVGet(key, value); err != nil {
		return nil, err
	}
	return value, nil
}
