// core/genesis/spec.go
package genesis

import (
	"bytes"
	"fmt"
	"math/big"
	"os"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"github.com/erikrakuscek/escrow-ethereum/native/token"
)

// GenesisSpec seeds a fresh node: native balances and reference token
// contracts with their initial holders.
type GenesisSpec struct {
	Alloc  map[string]string `yaml:"alloc"` // addr -> native amount
	Tokens []TokenSpec       `yaml:"tokens"`

	alloc map[common.Address]*big.Int
}

// TokenSpec deploys one reference token contract. The deployer defaults to the
// node administrator.
type TokenSpec struct {
	Symbol   string     `yaml:"symbol"`
	Kind     string     `yaml:"kind"`
	Deployer string     `yaml:"deployer,omitempty"`
	Register bool       `yaml:"register"`
	Mint     []MintSpec `yaml:"mint,omitempty"`

	kind     token.Kind
	deployer *common.Address
}

// MintSpec issues Amount fungible units, or Count consecutive token ids for a
// non-fungible contract.
type MintSpec struct {
	To     string `yaml:"to"`
	Amount string `yaml:"amount,omitempty"`
	Count  uint64 `yaml:"count,omitempty"`

	to     common.Address
	amount *big.Int
}

func LoadGenesisSpec(path string) (*GenesisSpec, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("genesis spec path must be provided")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis spec %q: %w", path, err)
	}
	spec, err := ParseGenesisSpec(raw)
	if err != nil {
		return nil, fmt.Errorf("genesis spec %q: %w", path, err)
	}
	return spec, nil
}

// ParseGenesisSpec decodes and validates a YAML genesis document. Unknown
// fields are rejected.
func ParseGenesisSpec(raw []byte) (*GenesisSpec, error) {
	var spec GenesisSpec
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := spec.validate(); err != nil {
		return nil, fmt.Errorf("invalid: %w", err)
	}
	return &spec, nil
}

func (s *GenesisSpec) validate() error {
	s.alloc = make(map[common.Address]*big.Int, len(s.Alloc))
	for rawAddr, rawAmount := range s.Alloc {
		addr, err := parseAddress(rawAddr)
		if err != nil {
			return fmt.Errorf("alloc: %w", err)
		}
		amount, err := parseAmountString(rawAmount)
		if err != nil {
			return fmt.Errorf("alloc %s: %w", rawAddr, err)
		}
		if _, dup := s.alloc[addr]; dup {
			return fmt.Errorf("alloc: duplicate address %s", addr.Hex())
		}
		s.alloc[addr] = amount
	}

	symbols := make(map[string]struct{}, len(s.Tokens))
	for i := range s.Tokens {
		t := &s.Tokens[i]
		if err := t.validate(); err != nil {
			return fmt.Errorf("tokens[%d]: %w", i, err)
		}
		key := strings.ToUpper(t.Symbol)
		if _, exists := symbols[key]; exists {
			return fmt.Errorf("tokens[%d]: duplicate symbol %q", i, t.Symbol)
		}
		symbols[key] = struct{}{}
	}
	return nil
}

func (t *TokenSpec) validate() error {
	t.Symbol = strings.TrimSpace(t.Symbol)
	if t.Symbol == "" {
		return fmt.Errorf("symbol must be provided")
	}
	kind, err := token.ParseKind(t.Kind)
	if err != nil {
		return err
	}
	t.kind = kind
	t.deployer = nil
	if strings.TrimSpace(t.Deployer) != "" {
		addr, err := parseAddress(t.Deployer)
		if err != nil {
			return fmt.Errorf("deployer: %w", err)
		}
		t.deployer = &addr
	}
	for i := range t.Mint {
		m := &t.Mint[i]
		addr, err := parseAddress(m.To)
		if err != nil {
			return fmt.Errorf("mint[%d]: %w", i, err)
		}
		m.to = addr
		switch kind {
		case token.KindFungible:
			if m.Count != 0 {
				return fmt.Errorf("mint[%d]: count is only valid for non-fungible tokens", i)
			}
			amount, err := parseAmountString(m.Amount)
			if err != nil {
				return fmt.Errorf("mint[%d]: %w", i, err)
			}
			if amount.Sign() == 0 {
				return fmt.Errorf("mint[%d]: amount must be positive", i)
			}
			m.amount = amount
		case token.KindNonFungible:
			if strings.TrimSpace(m.Amount) != "" {
				return fmt.Errorf("mint[%d]: amount is only valid for fungible tokens", i)
			}
			if m.Count == 0 {
				m.Count = 1
			}
		}
	}
	return nil
}

// Allocations returns the native allocations sorted by address.
func (s *GenesisSpec) Allocations() []Allocation {
	out := make([]Allocation, 0, len(s.alloc))
	for addr, amount := range s.alloc {
		out = append(out, Allocation{Address: addr, Amount: new(big.Int).Set(amount)})
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].Address[:], out[j].Address[:]) < 0
	})
	return out
}

// Allocation is one validated native balance entry.
type Allocation struct {
	Address common.Address
	Amount  *big.Int
}

func parseAddress(raw string) (common.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, fmt.Errorf("invalid address %q", raw)
	}
	return common.HexToAddress(trimmed), nil
}

func parseAmountString(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("amount must be provided")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount must be non-negative")
	}
	return amount, nil
}
