package genesis

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/erikrakuscek/escrow-ethereum/core/state"
	"github.com/erikrakuscek/escrow-ethereum/native/escrow"
	"github.com/erikrakuscek/escrow-ethereum/native/token"
)

var appliedKey = []byte("genesis/applied")

// DeployedToken reports where a genesis token contract landed.
type DeployedToken struct {
	Symbol   string
	Kind     token.Kind
	Address  common.Address
	Minted   []*big.Int // non-fungible ids, in mint order
	Register bool
}

// Applied reports whether genesis has already been written to state.
func Applied(manager *state.Manager) (bool, error) {
	return manager.KVHas(appliedKey)
}

// Apply writes the genesis document into state: native allocations first, then token
// deployments in declaration order with their registrations and mints. It
// must run inside a write scope the caller commits or discards as a whole.
func Apply(spec *GenesisSpec, manager *state.Manager, admin common.Address) ([]DeployedToken, error) {
	if spec == nil {
		return nil, fmt.Errorf("genesis spec must not be nil")
	}
	if manager == nil {
		return nil, fmt.Errorf("state manager must not be nil")
	}
	done, err := Applied(manager)
	if err != nil {
		return nil, err
	}
	if done {
		return nil, fmt.Errorf("genesis already applied")
	}

	for _, alloc := range spec.Allocations() {
		if err := manager.NativeCredit(alloc.Address, alloc.Amount); err != nil {
			return nil, fmt.Errorf("alloc %s: %w", alloc.Address.Hex(), err)
		}
	}

	directory := token.NewDirectory(manager)
	registry := escrow.NewRegistry(manager, admin)
	deployed := make([]DeployedToken, 0, len(spec.Tokens))
	for i := range spec.Tokens {
		t := &spec.Tokens[i]
		deployer := admin
		if t.deployer != nil {
			deployer = *t.deployer
		}
		contract, err := directory.Deploy(deployer, t.kind, t.Symbol)
		if err != nil {
			return nil, fmt.Errorf("deploy %s: %w", t.Symbol, err)
		}
		out := DeployedToken{Symbol: t.Symbol, Kind: t.kind, Address: contract.Address, Register: t.Register}
		if t.Register {
			if err := registry.Register(admin, contract.Address, escrow.AssetKind(t.kind)); err != nil {
				return nil, fmt.Errorf("register %s: %w", t.Symbol, err)
			}
		}
		minted, err := mint(directory, contract, t.Mint)
		if err != nil {
			return nil, fmt.Errorf("mint %s: %w", t.Symbol, err)
		}
		out.Minted = minted
		deployed = append(deployed, out)
	}
	if err := manager.KVPut(appliedKey, true); err != nil {
		return nil, err
	}
	return deployed, nil
}

func mint(directory *token.Directory, contract *token.Contract, mints []MintSpec) ([]*big.Int, error) {
	switch contract.Kind {
	case token.KindFungible:
		erc20, err := directory.Fungible(contract.Address)
		if err != nil {
			return nil, err
		}
		for _, m := range mints {
			if err := erc20.Mint(m.to, m.amount); err != nil {
				return nil, err
			}
		}
		return nil, nil
	case token.KindNonFungible:
		nft, err := directory.NonFungible(contract.Address)
		if err != nil {
			return nil, err
		}
		var ids []*big.Int
		for _, m := range mints {
			for n := uint64(0); n < m.Count; n++ {
				id, err := nft.Mint(m.to)
				if err != nil {
					return nil, err
				}
				ids = append(ids, id)
			}
		}
		return ids, nil
	default:
		return nil, fmt.Errorf("unsupported kind %s", contract.Kind)
	}
}
