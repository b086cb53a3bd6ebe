package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
)

const (
	defaultPassEnv = "ESCROW_KEYSTORE_PASS"
	defaultRPCURL  = "http://127.0.0.1:8545"
)

type command struct {
	name    string
	summary string
	run     func(rpc *rpcClient, args []string) error
}

func commands() []command {
	return []command{
		{"keygen", "create a keystore with a fresh key", runKeygen},
		{"address", "print the address held by a keystore", runAddress},

		{"transfer", "send native value", runTransfer},
		{"register", "register a token contract with the escrow registry (admin)", runRegister},
		{"create-eth", "open an escrow funded with native value", runCreateEth},
		{"create-token", "open an escrow funded with a token pledge", runCreateToken},
		{"fulfill-eth", "vendor funds an escrow with native value", runFulfill(false)},
		{"fulfill-token", "vendor funds an escrow with a token pledge", runFulfill(true)},
		{"commit", "client releases both pledges", runEscrowAction("commit")},
		{"cancel", "client cancels or requests cancelation", runEscrowAction("cancel")},
		{"approve-cancel", "vendor approves a cancelation request", runEscrowAction("approve-cancel")},
		{"decline-cancel", "vendor declines a cancelation request", runEscrowAction("decline-cancel")},
		{"reclaim", "return pledges of an expired escrow", runEscrowAction("reclaim")},

		{"token-deploy", "deploy a reference token contract (admin)", runTokenDeploy},
		{"token-mint", "mint reference tokens (admin)", runTokenMint},
		{"token-approve", "approve a spender for a token", runTokenApprove},
		{"token-approve-all", "grant or revoke an operator over all non-fungible tokens", runTokenApproveAll},
		{"token-transfer", "transfer a token", runTokenTransfer},

		{"get", "show an escrow", runGet},
		{"count", "show the number of escrows", runCount},
		{"events", "list the recorded events of an escrow", runEvents},
		{"events-by-type", "list recent events of one type", runEventsByType},
		{"vault", "show the escrow custody address", runVault},
		{"resolve", "show the registry entry of a contract", runResolve},
		{"balance", "show an account's native balance and nonce", runBalance},
		{"token-balance", "show a token balance", runTokenBalance},
		{"token-allowance", "show a token allowance", runTokenAllowance},
		{"token-owner", "show the owner of a non-fungible token", runTokenOwner},
	}
}

func main() {
	defaultRPC := strings.TrimSpace(os.Getenv("ESCROW_RPC_URL"))
	if defaultRPC == "" {
		defaultRPC = defaultRPCURL
	}
	root := flag.NewFlagSet("escrowctl", flag.ExitOnError)
	rpcURL := root.String("rpc", defaultRPC, "JSON-RPC endpoint")
	authToken := root.String("auth", os.Getenv("ESCROW_RPC_TOKEN"), "bearer token for call submission")
	root.Usage = func() { fmt.Fprint(os.Stderr, usage()) }
	root.Parse(os.Args[1:])

	args := root.Args()
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage())
		os.Exit(1)
	}
	for _, cmd := range commands() {
		if cmd.name != args[0] {
			continue
		}
		if err := cmd.run(newRPCClient(*rpcURL, *authToken), args[1:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}
	fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
	fmt.Fprint(os.Stderr, usage())
	os.Exit(1)
}

func usage() string {
	var b strings.Builder
	b.WriteString("escrowctl usage:\n  escrowctl [--rpc URL] [--auth TOKEN] <command> [options]\n\nCommands:\n")
	for _, cmd := range commands() {
		fmt.Fprintf(&b, "  %-16s %s\n", cmd.name, cmd.summary)
	}
	return b.String()
}
