package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/erikrakuscek/escrow-ethereum/cmd/internal/passphrase"
	"github.com/erikrakuscek/escrow-ethereum/crypto"
)

func runKeygen(_ *rpcClient, args []string) error {
	fs := flag.NewFlagSet("keygen", flag.ExitOnError)
	out := fs.String("out", "", "output path for the keystore file")
	passEnv := fs.String("pass-env", defaultPassEnv, "environment variable containing the keystore passphrase")
	force := fs.Bool("force", false, "overwrite an existing keystore file")
	fs.Parse(args)

	path := strings.TrimSpace(*out)
	if path == "" {
		return errors.New("--out is required")
	}
	pass, err := passphrase.NewSource(*passEnv, "new keystore").WithConfirm().Get()
	if err != nil {
		return err
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return err
	}
	var opts []crypto.KeystoreOption
	if *force {
		opts = append(opts, crypto.WithOverwrite())
	}
	if err := crypto.SaveToKeystore(path, key, pass, opts...); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Keystore written to %s\nAddress: %s\n", path, key.Address().Hex())
	return nil
}

func runAddress(_ *rpcClient, args []string) error {
	fs := flag.NewFlagSet("address", flag.ExitOnError)
	sig := addSignerFlags(fs)
	fs.Parse(args)
	key, err := sig.load()
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, key.Address().Hex())
	return nil
}

func query(rpc *rpcClient, method string, params ...interface{}) error {
	result, err := rpc.call(method, params...)
	if err != nil {
		return err
	}
	return printJSON(result)
}

func runGet(rpc *rpcClient, args []string) error {
	fs := flag.NewFlagSet("get", flag.ExitOnError)
	id := fs.Uint64("id", 0, "escrow id")
	fs.Parse(args)
	return query(rpc, "escrow_get", map[string]uint64{"id": *id})
}

func runCount(rpc *rpcClient, _ []string) error {
	return query(rpc, "escrow_count")
}

func runVault(rpc *rpcClient, _ []string) error {
	return query(rpc, "escrow_vault")
}

func runEventsByType(rpc *rpcClient, args []string) error {
	fs := flag.NewFlagSet("events-by-type", flag.ExitOnError)
	eventType := fs.String("type", "", "event type, e.g. escrow.created")
	limit := fs.Int("limit", 0, "maximum number of events (server default when zero)")
	fs.Parse(args)
	if strings.TrimSpace(*eventType) == "" {
		return errors.New("--type is required")
	}
	params := map[string]interface{}{"type": strings.TrimSpace(*eventType)}
	if *limit > 0 {
		params["limit"] = *limit
	}
	return query(rpc, "escrow_listEventsByType", params)
}

func runEvents(rpc *rpcClient, args []string) error {
	fs := flag.NewFlagSet("events", flag.ExitOnError)
	id := fs.Uint64("id", 0, "escrow id")
	fs.Parse(args)
	return query(rpc, "escrow_listEvents", map[string]uint64{"id": *id})
}

func runResolve(rpc *rpcClient, args []string) error {
	fs := flag.NewFlagSet("resolve", flag.ExitOnError)
	contract := fs.String("contract", "", "contract address (zero address for native)")
	fs.Parse(args)
	addr, err := optionalAddress("contract", *contract)
	if err != nil {
		return err
	}
	return query(rpc, "registry_resolve", map[string]string{"contract": addr.Hex()})
}

func runBalance(rpc *rpcClient, args []string) error {
	fs := flag.NewFlagSet("balance", flag.ExitOnError)
	address := fs.String("address", "", "account address")
	fs.Parse(args)
	addr, err := requireAddress("address", *address)
	if err != nil {
		return err
	}
	return query(rpc, "account_balance", map[string]string{"address": addr.Hex()})
}

func runTokenBalance(rpc *rpcClient, args []string) error {
	fs := flag.NewFlagSet("token-balance", flag.ExitOnError)
	contract := fs.String("contract", "", "token contract address")
	owner := fs.String("owner", "", "holder address")
	fs.Parse(args)
	c, err := requireAddress("contract", *contract)
	if err != nil {
		return err
	}
	o, err := requireAddress("owner", *owner)
	if err != nil {
		return err
	}
	return query(rpc, "token_balanceOf", map[string]string{"contract": c.Hex(), "owner": o.Hex()})
}

func runTokenAllowance(rpc *rpcClient, args []string) error {
	fs := flag.NewFlagSet("token-allowance", flag.ExitOnError)
	contract := fs.String("contract", "", "token contract address")
	owner := fs.String("owner", "", "holder address")
	spender := fs.String("spender", "", "spender address")
	fs.Parse(args)
	c, err := requireAddress("contract", *contract)
	if err != nil {
		return err
	}
	o, err := requireAddress("owner", *owner)
	if err != nil {
		return err
	}
	s, err := requireAddress("spender", *spender)
	if err != nil {
		return err
	}
	return query(rpc, "token_allowance", map[string]string{"contract": c.Hex(), "owner": o.Hex(), "spender": s.Hex()})
}

func runTokenOwner(rpc *rpcClient, args []string) error {
	fs := flag.NewFlagSet("token-owner", flag.ExitOnError)
	contract := fs.String("contract", "", "token contract address")
	tokenID := fs.String("token-id", "", "token id")
	fs.Parse(args)
	c, err := requireAddress("contract", *contract)
	if err != nil {
		return err
	}
	id, err := requireAmount("token-id", *tokenID)
	if err != nil {
		return err
	}
	return query(rpc, "token_ownerOf", map[string]string{"contract": c.Hex(), "tokenId": id.String()})
}
