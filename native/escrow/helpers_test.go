package escrow

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/erikrakuscek/escrow-ethereum/core/events"
	"github.com/erikrakuscek/escrow-ethereum/core/state"
	"github.com/erikrakuscek/escrow-ethereum/native/token"
	"github.com/erikrakuscek/escrow-ethereum/storage"
)

const testNow int64 = 1_700_000_000

type directoryTokens struct {
	dir *token.Directory
}

func (d directoryTokens) Fungible(addr common.Address) (FungibleToken, error) {
	t, err := d.dir.Fungible(addr)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (d directoryTokens) NonFungible(addr common.Address) (NonFungibleToken, error) {
	t, err := d.dir.NonFungible(addr)
	if err != nil {
		return nil, err
	}
	return t, nil
}

type fixture struct {
	t      *testing.T
	state  *state.Manager
	tokens *token.Directory
	engine *Engine
	events *events.Buffer
	now    int64

	admin  common.Address
	client common.Address
	vendor common.Address
	erc20  common.Address
	nft    common.Address
}

func newTestAddress(fill byte) common.Address {
	var addr common.Address
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mgr := state.NewManager(storage.NewMemDB())
	dir := token.NewDirectory(mgr)
	f := &fixture{
		t:      t,
		state:  mgr,
		tokens: dir,
		events: &events.Buffer{},
		now:    testNow,
		admin:  newTestAddress(0xA0),
		client: newTestAddress(0x01),
		vendor: newTestAddress(0x02),
	}
	erc20, err := dir.Deploy(f.admin, token.KindFungible, "TT")
	if err != nil {
		t.Fatalf("deploy erc20: %v", err)
	}
	nft, err := dir.Deploy(f.admin, token.KindNonFungible, "NFT")
	if err != nil {
		t.Fatalf("deploy erc721: %v", err)
	}
	f.erc20, f.nft = erc20.Address, nft.Address

	engine := NewEngine()
	engine.SetState(mgr)
	engine.SetTokens(directoryTokens{dir: dir})
	engine.SetAdmin(f.admin)
	engine.SetEmitter(f.events)
	engine.SetNowFunc(func() int64 { return f.now })
	f.engine = engine

	for _, addr := range []common.Address{f.client, f.vendor} {
		if err := mgr.NativeCredit(addr, big.NewInt(1_000_000)); err != nil {
			t.Fatalf("credit: %v", err)
		}
	}
	if err := engine.RegisterTokenContract(Call{From: f.admin}, f.erc20, AssetFungible); err != nil {
		t.Fatalf("register erc20: %v", err)
	}
	if err := engine.RegisterTokenContract(Call{From: f.admin}, f.nft, AssetNonFungible); err != nil {
		t.Fatalf("register erc721: %v", err)
	}
	f.events.Drain()
	return f
}

func (f *fixture) fungible() *token.ERC20 {
	f.t.Helper()
	erc20, err := f.tokens.Fungible(f.erc20)
	if err != nil {
		f.t.Fatalf("erc20: %v", err)
	}
	return erc20
}

func (f *fixture) nonFungible() *token.ERC721 {
	f.t.Helper()
	nft, err := f.tokens.NonFungible(f.nft)
	if err != nil {
		f.t.Fatalf("erc721: %v", err)
	}
	return nft
}

// fundERC20 mints amount to owner and approves the vault to pull it.
func (f *fixture) fundERC20(owner common.Address, amount int64) {
	f.t.Helper()
	erc20 := f.fungible()
	if err := erc20.Mint(owner, big.NewInt(amount)); err != nil {
		f.t.Fatalf("mint: %v", err)
	}
	if err := erc20.Approve(owner, VaultAddress, big.NewInt(amount)); err != nil {
		f.t.Fatalf("approve: %v", err)
	}
}

// mintNFT mints the next token id to owner and approves the vault for it.
func (f *fixture) mintNFT(owner common.Address) *big.Int {
	f.t.Helper()
	nft := f.nonFungible()
	id, err := nft.Mint(owner)
	if err != nil {
		f.t.Fatalf("mint: %v", err)
	}
	if err := nft.Approve(owner, VaultAddress, id); err != nil {
		f.t.Fatalf("approve: %v", err)
	}
	return id
}

func (f *fixture) erc20Balance(owner common.Address) int64 {
	f.t.Helper()
	balance, err := f.fungible().BalanceOf(owner)
	if err != nil {
		f.t.Fatalf("balanceOf: %v", err)
	}
	return balance.Int64()
}

func (f *fixture) nftOwner(id *big.Int) common.Address {
	f.t.Helper()
	owner, err := f.nonFungible().OwnerOf(id)
	if err != nil {
		f.t.Fatalf("ownerOf: %v", err)
	}
	return owner
}

func (f *fixture) nativeBalance(addr common.Address) int64 {
	f.t.Helper()
	balance, err := f.state.NativeBalance(addr)
	if err != nil {
		f.t.Fatalf("native balance: %v", err)
	}
	return balance.Int64()
}

func (f *fixture) escrow(id uint64) *Escrow {
	f.t.Helper()
	esc, err := f.engine.GetEscrow(id)
	if err != nil {
		f.t.Fatalf("get escrow %d: %v", id, err)
	}
	return esc
}

func (f *fixture) eventTypes() []string {
	drained := f.events.Drain()
	out := make([]string, 0, len(drained))
	for _, evt := range drained {
		out = append(out, evt.EventType())
	}
	return out
}

func call(from common.Address) Call { return Call{From: from} }

func pay(from common.Address, value int64) Call {
	return Call{From: from, Value: big.NewInt(value)}
}
