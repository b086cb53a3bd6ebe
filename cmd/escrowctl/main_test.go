package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/erikrakuscek/escrow-ethereum/core"
	"github.com/erikrakuscek/escrow-ethereum/core/genesis"
	"github.com/erikrakuscek/escrow-ethereum/crypto"
	"github.com/erikrakuscek/escrow-ethereum/native/escrow"
	"github.com/erikrakuscek/escrow-ethereum/rpc"
	"github.com/erikrakuscek/escrow-ethereum/storage"
)

func newTestNode(t *testing.T, funded *crypto.PrivateKey) (*core.Node, *rpcClient) {
	t.Helper()
	node, err := core.NewNode(storage.NewMemDB(), funded.Address(),
		core.WithNowFunc(func() int64 { return 1_700_000_000 }))
	require.NoError(t, err)
	spec, err := genesis.ParseGenesisSpec([]byte(fmt.Sprintf("alloc:\n  %q: \"1000\"\n", funded.Address().Hex())))
	require.NoError(t, err)
	_, _, err = node.ApplyGenesis(spec)
	require.NoError(t, err)

	srv := httptest.NewServer(rpc.NewServer(node, nil, rpc.Config{}).Handler())
	t.Cleanup(srv.Close)
	return node, newRPCClient(srv.URL, "")
}

func TestTransferSignsWithFetchedNonce(t *testing.T) {
	sender, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	recipient, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	node, client := newTestNode(t, sender)

	keyHex := hex.EncodeToString(sender.Bytes())
	for i := 0; i < 2; i++ {
		require.NoError(t, runTransfer(client, []string{
			"--key", keyHex, "--to", recipient.Address().Hex(), "--amount", "150",
		}))
	}

	acct, err := node.Account(recipient.Address())
	require.NoError(t, err)
	require.Equal(t, "300", acct.Balance.String())
	acct, err = node.Account(sender.Address())
	require.NoError(t, err)
	require.Equal(t, uint64(2), acct.Nonce)
}

func TestEscrowActionSurfacesRPCError(t *testing.T) {
	sender, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	_, client := newTestNode(t, sender)

	err = runEscrowAction("commit")(client, []string{"--key", hex.EncodeToString(sender.Bytes()), "--id", "4"})
	var rpcErr *rpcError
	require.True(t, errors.As(err, &rpcErr))
	require.Equal(t, "not_found", rpcErr.Message)
}

func TestRequireAmount(t *testing.T) {
	v, err := requireAmount("amount", " 42 ")
	require.NoError(t, err)
	require.Equal(t, int64(42), v.Int64())

	_, err = requireAmount("amount", "")
	require.Error(t, err)
	_, err = requireAmount("amount", "-1")
	require.Error(t, err)

	addr, err := optionalAddress("vendor-contract", "")
	require.NoError(t, err)
	require.Equal(t, "0x0000000000000000000000000000000000000000", addr.Hex())
	_, err = optionalAddress("vendor", "nope")
	require.Error(t, err)

	addr, err = addressOrVault("spender", " ")
	require.NoError(t, err)
	require.Equal(t, escrow.VaultAddress, addr)
	_, err = addressOrVault("spender", "nope")
	require.Error(t, err)
}

func TestTokenApproveDefaultsToVault(t *testing.T) {
	admin, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	node, client := newTestNode(t, admin)
	keyHex := hex.EncodeToString(admin.Bytes())

	require.NoError(t, runTokenDeploy(client, []string{"--key", keyHex, "--kind", "erc20", "--symbol", "USD"}))
	usd := ethcrypto.CreateAddress(admin.Address(), 0)
	require.NoError(t, runTokenMint(client, []string{"--key", keyHex, "--contract", usd.Hex(), "--to", admin.Address().Hex(), "--amount", "50"}))
	require.NoError(t, runTokenApprove(client, []string{"--key", keyHex, "--contract", usd.Hex(), "--amount", "40"}))

	allowance, err := node.TokenAllowance(usd, admin.Address(), escrow.VaultAddress)
	require.NoError(t, err)
	require.Equal(t, "40", allowance.String())

	require.NoError(t, runTokenDeploy(client, []string{"--key", keyHex, "--kind", "erc721", "--symbol", "ART"}))
	art := ethcrypto.CreateAddress(admin.Address(), 1)
	require.NoError(t, runTokenApproveAll(client, []string{"--key", keyHex, "--contract", art.Hex()}))
	require.NoError(t, runTokenApproveAll(client, []string{"--key", keyHex, "--contract", art.Hex(), "--revoke"}))
	require.NoError(t, runVault(client, nil))
}
