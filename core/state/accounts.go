package state

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/erikrakuscek/escrow-ethereum/core/types"
)

// ErrInsufficientBalance is returned when a native debit exceeds the balance.
var ErrInsufficientBalance = errors.New("state: insufficient native balance")

var accountPrefix = []byte("account/")

type storedAccount struct {
	Nonce   uint64
	Balance *big.Int
}

func accountKey(addr common.Address) []byte {
	buf := make([]byte, 0, len(accountPrefix)+common.AddressLength)
	buf = append(buf, accountPrefix...)
	return append(buf, addr.Bytes()...)
}

// GetAccount loads the account for addr, returning a zero account when none
// has been written yet.
func (m *Manager) GetAccount(addr common.Address) (*types.Account, error) {
	var stored storedAccount
	ok, err := m.KVGet(accountKey(addr), &stored)
	if err != nil {
		return nil, err
	}
	if !ok || stored.Balance == nil {
		stored.Balance = big.NewInt(0)
	}
	return &types.Account{Nonce: stored.Nonce, Balance: stored.Balance}, nil
}

// PutAccount persists the provided account state under the supplied address.
func (m *Manager) PutAccount(addr common.Address, account *types.Account) error {
	if account == nil {
		return fmt.Errorf("nil account")
	}
	balance := account.Balance
	if balance == nil {
		balance = big.NewInt(0)
	}
	if balance.Sign() < 0 {
		return fmt.Errorf("negative balance")
	}
	if _, overflow := uint256.FromBig(balance); overflow {
		return fmt.Errorf("balance overflow")
	}
	return m.KVPut(accountKey(addr), &storedAccount{Nonce: account.Nonce, Balance: balance})
}

// NativeBalance returns the spendable native balance of addr.
func (m *Manager) NativeBalance(addr common.Address) (*big.Int, error) {
	acc, err := m.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	return acc.Balance, nil
}

// NativeCredit mints amount into addr. Used by genesis allocation only.
func (m *Manager) NativeCredit(addr common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("native credit: amount must be non-negative")
	}
	acc, err := m.GetAccount(addr)
	if err != nil {
		return err
	}
	sum, overflow := addU256(acc.Balance, amount)
	if overflow {
		return fmt.Errorf("native credit: balance overflow")
	}
	acc.Balance = sum
	return m.PutAccount(addr, acc)
}

// NativeTransfer moves amount of native currency from one address to another.
// A zero amount is a no-op.
func (m *Manager) NativeTransfer(from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("native transfer: negative amount")
	}
	fromAcc, err := m.GetAccount(from)
	if err != nil {
		return err
	}
	if fromAcc.Balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, fromAcc.Balance, amount)
	}
	fromAcc.Balance = new(big.Int).Sub(fromAcc.Balance, amount)
	if err := m.PutAccount(from, fromAcc); err != nil {
		return err
	}
	toAcc, err := m.GetAccount(to)
	if err != nil {
		return err
	}
	sum, overflow := addU256(toAcc.Balance, amount)
	if overflow {
		return fmt.Errorf("native transfer: recipient balance overflow")
	}
	toAcc.Balance = sum
	return m.PutAccount(to, toAcc)
}

// Nonce returns the next expected call nonce for addr.
func (m *Manager) Nonce(addr common.Address) (uint64, error) {
	acc, err := m.GetAccount(addr)
	if err != nil {
		return 0, err
	}
	return acc.Nonce, nil
}

// IncrementNonce bumps the call nonce of addr.
func (m *Manager) IncrementNonce(addr common.Address) error {
	acc, err := m.GetAccount(addr)
	if err != nil {
		return err
	}
	acc.Nonce++
	return m.PutAccount(addr, acc)
}

func addU256(a, b *big.Int) (*big.Int, bool) {
	x, overflow := uint256.FromBig(a)
	if overflow {
		return nil, true
	}
	y, overflow := uint256.FromBig(b)
	if overflow {
		return nil, true
	}
	sum, overflow := new(uint256.Int).AddOverflow(x, y)
	if overflow {
		return nil, true
	}
	return sum.ToBig(), false
}
