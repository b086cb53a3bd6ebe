package modules

import (
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/erikrakuscek/escrow-ethereum/core"
)

// AccountsModule serves native balances, nonces and token ledger reads.
type AccountsModule struct {
	node *core.Node
}

func NewAccountsModule(node *core.Node) *AccountsModule {
	return &AccountsModule{node: node}
}

type addressParams struct {
	Address common.Address `json:"address"`
}

type tokenOwnerParams struct {
	Contract common.Address `json:"contract"`
	Owner    common.Address `json:"owner"`
}

type tokenAllowanceParams struct {
	Contract common.Address `json:"contract"`
	Owner    common.Address `json:"owner"`
	Spender  common.Address `json:"spender"`
}

type tokenIDParams struct {
	Contract common.Address `json:"contract"`
	TokenID  string         `json:"tokenId"`
}

type NonceResult struct {
	Address string `json:"address"`
	Nonce   uint64 `json:"nonce"`
}

type BalanceResult struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
	Nonce   uint64 `json:"nonce"`
}

type TokenAmountResult struct {
	Contract string `json:"contract"`
	Amount   string `json:"amount"`
}

type OwnerResult struct {
	Contract string `json:"contract"`
	TokenID  string `json:"tokenId"`
	Owner    string `json:"owner"`
}

func (m *AccountsModule) Nonce(params []json.RawMessage) (*NonceResult, *ModuleError) {
	var p addressParams
	if modErr := decodeParams(params, &p); modErr != nil {
		return nil, modErr
	}
	account, err := m.node.Account(p.Address)
	if err != nil {
		return nil, serverError(err)
	}
	return &NonceResult{Address: p.Address.Hex(), Nonce: account.Nonce}, nil
}

func (m *AccountsModule) Balance(params []json.RawMessage) (*BalanceResult, *ModuleError) {
	var p addressParams
	if modErr := decodeParams(params, &p); modErr != nil {
		return nil, modErr
	}
	account, err := m.node.Account(p.Address)
	if err != nil {
		return nil, serverError(err)
	}
	return &BalanceResult{Address: p.Address.Hex(), Balance: account.Balance.String(), Nonce: account.Nonce}, nil
}

// TokenBalance returns the fungible balance, or the token count held in a
// non-fungible contract.
func (m *AccountsModule) TokenBalance(params []json.RawMessage) (*TokenAmountResult, *ModuleError) {
	var p tokenOwnerParams
	if modErr := decodeParams(params, &p); modErr != nil {
		return nil, modErr
	}
	balance, err := m.node.TokenBalance(p.Contract, p.Owner)
	if err != nil {
		return nil, MapError(err)
	}
	return &TokenAmountResult{Contract: p.Contract.Hex(), Amount: balance.String()}, nil
}

func (m *AccountsModule) TokenAllowance(params []json.RawMessage) (*TokenAmountResult, *ModuleError) {
	var p tokenAllowanceParams
	if modErr := decodeParams(params, &p); modErr != nil {
		return nil, modErr
	}
	allowance, err := m.node.TokenAllowance(p.Contract, p.Owner, p.Spender)
	if err != nil {
		return nil, MapError(err)
	}
	return &TokenAmountResult{Contract: p.Contract.Hex(), Amount: allowance.String()}, nil
}

func (m *AccountsModule) TokenOwnerOf(params []json.RawMessage) (*OwnerResult, *ModuleError) {
	var p tokenIDParams
	if modErr := decodeParams(params, &p); modErr != nil {
		return nil, modErr
	}
	id, ok := new(big.Int).SetString(p.TokenID, 10)
	if !ok || id.Sign() <= 0 {
		return nil, invalidParams("tokenId must be a positive decimal integer")
	}
	owner, err := m.node.TokenOwnerOf(p.Contract, id)
	if err != nil {
		return nil, MapError(err)
	}
	return &OwnerResult{Contract: p.Contract.Hex(), TokenID: id.String(), Owner: owner.Hex()}, nil
}
