package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/erikrakuscek/escrow-ethereum/cmd/internal/passphrase"
	"github.com/erikrakuscek/escrow-ethereum/core/types"
	"github.com/erikrakuscek/escrow-ethereum/crypto"
	"github.com/erikrakuscek/escrow-ethereum/native/escrow"
	"github.com/erikrakuscek/escrow-ethereum/native/token"
)

// signer collects the flags every state-changing command shares.
type signer struct {
	keystore *string
	passEnv  *string
	rawKey   *string
}

func addSignerFlags(fs *flag.FlagSet) *signer {
	return &signer{
		keystore: fs.String("keystore", "", "keystore file holding the signing key"),
		passEnv:  fs.String("pass-env", defaultPassEnv, "environment variable containing the keystore passphrase"),
		rawKey:   fs.String("key", "", "hex private key (development only; overrides --keystore)"),
	}
}

func (s *signer) load() (*crypto.PrivateKey, error) {
	if raw := strings.TrimSpace(*s.rawKey); raw != "" {
		return crypto.PrivateKeyFromHex(raw)
	}
	path := strings.TrimSpace(*s.keystore)
	if path == "" {
		return nil, errors.New("--keystore or --key is required")
	}
	pass, err := passphrase.NewSource(*s.passEnv, "keystore").Get()
	if err != nil {
		return nil, err
	}
	return crypto.LoadFromKeystore(path, pass)
}

// submit fetches the signer's next nonce, signs the call and prints the
// receipt.
func (s *signer) submit(rpc *rpcClient, callType types.CallType, value *big.Int, payload interface{}) error {
	key, err := s.load()
	if err != nil {
		return err
	}
	raw, err := rpc.call("account_nonce", map[string]string{"address": key.Address().Hex()})
	if err != nil {
		return fmt.Errorf("fetch nonce: %w", err)
	}
	var nonce struct {
		Nonce uint64 `json:"nonce"`
	}
	if err := json.Unmarshal(raw, &nonce); err != nil {
		return fmt.Errorf("decode nonce: %w", err)
	}
	call, err := types.NewCall(callType, nonce.Nonce, value, payload)
	if err != nil {
		return err
	}
	if err := call.Sign(key.PrivateKey); err != nil {
		return err
	}
	receipt, err := rpc.call("escrow_submitCall", call)
	if err != nil {
		return err
	}
	return printJSON(receipt)
}

func runTransfer(rpc *rpcClient, args []string) error {
	fs := flag.NewFlagSet("transfer", flag.ExitOnError)
	sig := addSignerFlags(fs)
	to := fs.String("to", "", "recipient address")
	amount := fs.String("amount", "", "native amount in base units")
	fs.Parse(args)

	recipient, err := requireAddress("to", *to)
	if err != nil {
		return err
	}
	value, err := requireAmount("amount", *amount)
	if err != nil {
		return err
	}
	return sig.submit(rpc, types.CallNativeTransfer, value, types.NativeTransferPayload{To: recipient})
}

func runRegister(rpc *rpcClient, args []string) error {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	sig := addSignerFlags(fs)
	contract := fs.String("contract", "", "token contract address")
	kind := fs.String("kind", "", "erc20 or erc721")
	fs.Parse(args)

	addr, err := requireAddress("contract", *contract)
	if err != nil {
		return err
	}
	parsed, err := token.ParseKind(*kind)
	if err != nil {
		return fmt.Errorf("--kind: %w", err)
	}
	return sig.submit(rpc, types.CallRegisterToken, nil, types.RegisterTokenPayload{Contract: addr, Kind: uint8(parsed)})
}

func runCreateEth(rpc *rpcClient, args []string) error {
	fs := flag.NewFlagSet("create-eth", flag.ExitOnError)
	sig := addSignerFlags(fs)
	amount := fs.String("amount", "", "native amount the client pledges")
	vendor := fs.String("vendor", "", "vendor address")
	vendorAmount := fs.String("vendor-amount", "", "vendor amount or token id")
	vendorContract := fs.String("vendor-contract", "", "vendor token contract (empty for native)")
	expireAt := fs.Uint64("expire-at", 0, "expiry as unix timestamp")
	fs.Parse(args)

	value, err := requireAmount("amount", *amount)
	if err != nil {
		return err
	}
	payload := types.CreateEthEscrowPayload{ExpireAt: *expireAt}
	if payload.Vendor, err = requireAddress("vendor", *vendor); err != nil {
		return err
	}
	if payload.VendorAmountOrID, err = requireAmount("vendor-amount", *vendorAmount); err != nil {
		return err
	}
	if payload.VendorContract, err = optionalAddress("vendor-contract", *vendorContract); err != nil {
		return err
	}
	return sig.submit(rpc, types.CallCreateEthEscrow, value, payload)
}

func runCreateToken(rpc *rpcClient, args []string) error {
	fs := flag.NewFlagSet("create-token", flag.ExitOnError)
	sig := addSignerFlags(fs)
	amount := fs.String("amount", "", "client amount or token id")
	contract := fs.String("contract", "", "client token contract")
	vendor := fs.String("vendor", "", "vendor address")
	vendorAmount := fs.String("vendor-amount", "", "vendor amount or token id")
	vendorContract := fs.String("vendor-contract", "", "vendor token contract (empty for native)")
	expireAt := fs.Uint64("expire-at", 0, "expiry as unix timestamp")
	fs.Parse(args)

	payload := types.CreateTokenEscrowPayload{ExpireAt: *expireAt}
	var err error
	if payload.ClientAmountOrID, err = requireAmount("amount", *amount); err != nil {
		return err
	}
	if payload.ClientContract, err = requireAddress("contract", *contract); err != nil {
		return err
	}
	if payload.Vendor, err = requireAddress("vendor", *vendor); err != nil {
		return err
	}
	if payload.VendorAmountOrID, err = requireAmount("vendor-amount", *vendorAmount); err != nil {
		return err
	}
	if payload.VendorContract, err = optionalAddress("vendor-contract", *vendorContract); err != nil {
		return err
	}
	return sig.submit(rpc, types.CallCreateTokenEscrow, nil, payload)
}

func runFulfill(withToken bool) func(*rpcClient, []string) error {
	return func(rpc *rpcClient, args []string) error {
		name := "fulfill-eth"
		if withToken {
			name = "fulfill-token"
		}
		fs := flag.NewFlagSet(name, flag.ExitOnError)
		sig := addSignerFlags(fs)
		id := fs.Uint64("id", 0, "escrow id")
		amount := fs.String("amount", "", "native amount to pledge (fulfill-eth only)")
		fs.Parse(args)

		if withToken {
			return sig.submit(rpc, types.CallFulfillTokenEscrow, nil, types.EscrowIDPayload{EscrowID: *id})
		}
		value, err := requireAmount("amount", *amount)
		if err != nil {
			return err
		}
		return sig.submit(rpc, types.CallFulfillEthEscrow, value, types.EscrowIDPayload{EscrowID: *id})
	}
}

var escrowActions = map[string]types.CallType{
	"commit":         types.CallClientCommit,
	"cancel":         types.CallCancelEscrow,
	"approve-cancel": types.CallApproveCancelation,
	"decline-cancel": types.CallDeclineCancelation,
	"reclaim":        types.CallReclaimExpired,
}

func runEscrowAction(name string) func(*rpcClient, []string) error {
	return func(rpc *rpcClient, args []string) error {
		fs := flag.NewFlagSet(name, flag.ExitOnError)
		sig := addSignerFlags(fs)
		id := fs.Uint64("id", 0, "escrow id")
		fs.Parse(args)
		return sig.submit(rpc, escrowActions[name], nil, types.EscrowIDPayload{EscrowID: *id})
	}
}

func runTokenDeploy(rpc *rpcClient, args []string) error {
	fs := flag.NewFlagSet("token-deploy", flag.ExitOnError)
	sig := addSignerFlags(fs)
	kind := fs.String("kind", "", "erc20 or erc721")
	symbol := fs.String("symbol", "", "token symbol")
	fs.Parse(args)

	parsed, err := token.ParseKind(*kind)
	if err != nil {
		return fmt.Errorf("--kind: %w", err)
	}
	if strings.TrimSpace(*symbol) == "" {
		return errors.New("--symbol is required")
	}
	return sig.submit(rpc, types.CallDeployToken, nil, types.DeployTokenPayload{Kind: uint8(parsed), Symbol: strings.TrimSpace(*symbol)})
}

func runTokenMint(rpc *rpcClient, args []string) error {
	fs := flag.NewFlagSet("token-mint", flag.ExitOnError)
	sig := addSignerFlags(fs)
	contract := fs.String("contract", "", "token contract address")
	to := fs.String("to", "", "recipient address")
	amount := fs.String("amount", "", "amount to mint (fungible only)")
	fs.Parse(args)

	payload := types.MintTokenPayload{}
	var err error
	if payload.Contract, err = requireAddress("contract", *contract); err != nil {
		return err
	}
	if payload.To, err = requireAddress("to", *to); err != nil {
		return err
	}
	if strings.TrimSpace(*amount) != "" {
		if payload.Amount, err = requireAmount("amount", *amount); err != nil {
			return err
		}
	}
	return sig.submit(rpc, types.CallMintToken, nil, payload)
}

func runTokenApprove(rpc *rpcClient, args []string) error {
	fs := flag.NewFlagSet("token-approve", flag.ExitOnError)
	sig := addSignerFlags(fs)
	contract := fs.String("contract", "", "token contract address")
	spender := fs.String("spender", "", "spender address (defaults to the escrow vault)")
	amount := fs.String("amount", "", "allowance or token id")
	fs.Parse(args)

	payload := types.ApproveTokenPayload{}
	var err error
	if payload.Contract, err = requireAddress("contract", *contract); err != nil {
		return err
	}
	if payload.Spender, err = addressOrVault("spender", *spender); err != nil {
		return err
	}
	if payload.AmountOrID, err = requireAmount("amount", *amount); err != nil {
		return err
	}
	return sig.submit(rpc, types.CallApproveToken, nil, payload)
}

func runTokenApproveAll(rpc *rpcClient, args []string) error {
	fs := flag.NewFlagSet("token-approve-all", flag.ExitOnError)
	sig := addSignerFlags(fs)
	contract := fs.String("contract", "", "non-fungible token contract address")
	operator := fs.String("operator", "", "operator address (defaults to the escrow vault)")
	revoke := fs.Bool("revoke", false, "revoke instead of grant")
	fs.Parse(args)

	payload := types.SetApprovalForAllPayload{Approved: !*revoke}
	var err error
	if payload.Contract, err = requireAddress("contract", *contract); err != nil {
		return err
	}
	if payload.Operator, err = addressOrVault("operator", *operator); err != nil {
		return err
	}
	return sig.submit(rpc, types.CallSetApprovalForAll, nil, payload)
}

func runTokenTransfer(rpc *rpcClient, args []string) error {
	fs := flag.NewFlagSet("token-transfer", flag.ExitOnError)
	sig := addSignerFlags(fs)
	contract := fs.String("contract", "", "token contract address")
	to := fs.String("to", "", "recipient address")
	amount := fs.String("amount", "", "amount or token id")
	fs.Parse(args)

	payload := types.TransferTokenPayload{}
	var err error
	if payload.Contract, err = requireAddress("contract", *contract); err != nil {
		return err
	}
	if payload.To, err = requireAddress("to", *to); err != nil {
		return err
	}
	if payload.AmountOrID, err = requireAmount("amount", *amount); err != nil {
		return err
	}
	return sig.submit(rpc, types.CallTransferToken, nil, payload)
}

func requireAddress(flagName, raw string) (common.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return common.Address{}, fmt.Errorf("--%s is required", flagName)
	}
	return optionalAddress(flagName, trimmed)
}

// addressOrVault parses an optional address flag, falling back to the escrow
// custody address.
func addressOrVault(flagName, raw string) (common.Address, error) {
	if strings.TrimSpace(raw) == "" {
		return escrow.VaultAddress, nil
	}
	return optionalAddress(flagName, raw)
}

func optionalAddress(flagName, raw string) (common.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, fmt.Errorf("--%s: invalid address %q", flagName, trimmed)
	}
	return common.HexToAddress(trimmed), nil
}

func requireAmount(flagName, raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("--%s is required", flagName)
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || value.Sign() < 0 {
		return nil, fmt.Errorf("--%s: invalid amount %q", flagName, trimmed)
	}
	return value, nil
}
