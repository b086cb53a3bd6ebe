package escrow

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

var registryPrefix = []byte("escrow/registry/")

type kvStore interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

func registryKey(contract common.Address) []byte {
	buf := make([]byte, 0, len(registryPrefix)+common.AddressLength)
	buf = append(buf, registryPrefix...)
	return append(buf, contract.Bytes()...)
}

// Registry maps accepted token contract addresses to their asset kind. The
// zero address is the native currency sentinel and is never stored.
type Registry struct {
	state kvStore
	admin common.Address
}

// NewRegistry binds a registry to a state scope. Only admin may register.
func NewRegistry(state kvStore, admin common.Address) *Registry {
	return &Registry{state: state, admin: admin}
}

// Register records contract as an accepted token of the given kind. Calling it
// again for the same contract overwrites the kind.
func (r *Registry) Register(caller, contract common.Address, kind AssetKind) error {
	if r == nil || r.state == nil {
		return errNilState
	}
	if r.admin == (common.Address{}) || caller != r.admin {
		return fmt.Errorf("%w: %s is not the registry administrator", ErrUnauthorized, caller.Hex())
	}
	if contract == (common.Address{}) {
		return fmt.Errorf("%w: zero address is reserved for native currency", ErrUnknownTokenContract)
	}
	if kind != AssetFungible && kind != AssetNonFungible {
		return fmt.Errorf("%w: %s", ErrInvalidAssetKind, kind)
	}
	return r.state.KVPut(registryKey(contract), uint8(kind))
}

// Resolve returns the asset kind of contract. The zero address resolves to
// AssetNative.
func (r *Registry) Resolve(contract common.Address) (AssetKind, error) {
	if contract == (common.Address{}) {
		return AssetNative, nil
	}
	if r == nil || r.state == nil {
		return 0, errNilState
	}
	var raw uint8
	ok, err := r.state.KVGet(registryKey(contract), &raw)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownTokenContract, contract.Hex())
	}
	return AssetKind(raw), nil
}
