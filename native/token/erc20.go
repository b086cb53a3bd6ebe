package token

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// ERC20 is a fungible token ledger: balances, allowances and total supply.
type ERC20 struct {
	addr  common.Address
	state kvStore
}

func (t *ERC20) Address() common.Address { return t.addr }

func (t *ERC20) balanceKey(owner common.Address) []byte {
	return stateKey("erc20", t.addr.Hex(), "balance", owner.Hex())
}

func (t *ERC20) allowanceKey(owner, spender common.Address) []byte {
	return stateKey("erc20", t.addr.Hex(), "allowance", owner.Hex(), spender.Hex())
}

func (t *ERC20) supplyKey() []byte {
	return stateKey("erc20", t.addr.Hex(), "supply")
}

func (t *ERC20) BalanceOf(owner common.Address) (*big.Int, error) {
	return loadBig(t.state, t.balanceKey(owner))
}

func (t *ERC20) Allowance(owner, spender common.Address) (*big.Int, error) {
	return loadBig(t.state, t.allowanceKey(owner, spender))
}

func (t *ERC20) TotalSupply() (*big.Int, error) {
	return loadBig(t.state, t.supplyKey())
}

// Approve sets the amount spender may move out of owner's balance.
func (t *ERC20) Approve(owner, spender common.Address, amount *big.Int) error {
	if spender == (common.Address{}) {
		return ErrZeroAddress
	}
	if err := checkAmount(amount); err != nil {
		return err
	}
	return t.state.KVPut(t.allowanceKey(owner, spender), amount)
}

// Mint issues new tokens to the recipient. Test-only issuance.
func (t *ERC20) Mint(to common.Address, amount *big.Int) error {
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	if err := checkAmount(amount); err != nil {
		return err
	}
	supply, err := t.TotalSupply()
	if err != nil {
		return err
	}
	newSupply, err := checkedAdd(supply, amount)
	if err != nil {
		return err
	}
	if err := t.state.KVPut(t.supplyKey(), newSupply); err != nil {
		return err
	}
	balance, err := t.BalanceOf(to)
	if err != nil {
		return err
	}
	// Balances never exceed supply, so this add cannot overflow.
	return t.state.KVPut(t.balanceKey(to), new(big.Int).Add(balance, amount))
}

// Transfer moves amount from the caller's own balance.
func (t *ERC20) Transfer(from, to common.Address, amount *big.Int) error {
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	if err := checkAmount(amount); err != nil {
		return err
	}
	fromBal, err := t.BalanceOf(from)
	if err != nil {
		return err
	}
	if fromBal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientBalance, from.Hex(), fromBal, amount)
	}
	if err := t.state.KVPut(t.balanceKey(from), new(big.Int).Sub(fromBal, amount)); err != nil {
		return err
	}
	toBal, err := t.BalanceOf(to)
	if err != nil {
		return err
	}
	return t.state.KVPut(t.balanceKey(to), new(big.Int).Add(toBal, amount))
}

// TransferFrom moves amount out of from's balance on behalf of spender,
// consuming spender's allowance.
func (t *ERC20) TransferFrom(spender, from, to common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	allowance, err := t.Allowance(from, spender)
	if err != nil {
		return err
	}
	if allowance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s allowed %s, needs %s", ErrInsufficientAllowance, spender.Hex(), allowance, amount)
	}
	if err := t.Transfer(from, to, amount); err != nil {
		return err
	}
	return t.state.KVPut(t.allowanceKey(from, spender), new(big.Int).Sub(allowance, amount))
}

func checkAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("token: amount must be non-negative")
	}
	if _, overflow := uint256.FromBig(amount); overflow {
		return fmt.Errorf("token: amount exceeds 256 bits")
	}
	return nil
}

func checkedAdd(a, b *big.Int) (*big.Int, error) {
	x, _ := uint256.FromBig(a)
	y, _ := uint256.FromBig(b)
	sum, overflow := new(uint256.Int).AddOverflow(x, y)
	if overflow {
		return nil, fmt.Errorf("token: supply overflow")
	}
	return sum.ToBig(), nil
}
