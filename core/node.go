package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/erikrakuscek/escrow-ethereum/core/events"
	"github.com/erikrakuscek/escrow-ethereum/core/genesis"
	"github.com/erikrakuscek/escrow-ethereum/core/state"
	"github.com/erikrakuscek/escrow-ethereum/core/types"
	nativecommon "github.com/erikrakuscek/escrow-ethereum/native/common"
	"github.com/erikrakuscek/escrow-ethereum/native/escrow"
	"github.com/erikrakuscek/escrow-ethereum/native/token"
	"github.com/erikrakuscek/escrow-ethereum/observability"
	telemetry "github.com/erikrakuscek/escrow-ethereum/observability/otel"
	"github.com/erikrakuscek/escrow-ethereum/storage"
)

var (
	ErrInvalidNonce    = errors.New("invalid nonce")
	ErrUnknownCallType = errors.New("unknown call type")
	ErrNilCall         = errors.New("nil call")
)

// Receipt describes a committed call.
type Receipt struct {
	Type     types.CallType  `json:"type"`
	From     common.Address  `json:"from"`
	Nonce    uint64          `json:"nonce"`
	EscrowID *uint64         `json:"escrowId,omitempty"`
	Contract *common.Address `json:"contract,omitempty"`
	TokenID  *big.Int        `json:"tokenId,omitempty"`
	Events   []*types.Event  `json:"events"`
}

// Node sequences signed calls against the state database. Every call runs in
// its own overlay and either commits as a whole or leaves no trace.
type Node struct {
	db      storage.Database
	admin   common.Address
	pauses  nativecommon.PauseView
	sink    events.Emitter
	nowFn   func() int64
	logger  *slog.Logger
	metrics *observability.EscrowMetrics
	tracer  trace.Tracer

	stateMu sync.Mutex
}

// Option customises a Node.
type Option func(*Node)

// WithEventSink forwards committed events to sink.
func WithEventSink(sink events.Emitter) Option {
	return func(n *Node) {
		if sink != nil {
			n.sink = sink
		}
	}
}

// WithPauses installs the module pause view.
func WithPauses(p nativecommon.PauseView) Option {
	return func(n *Node) { n.pauses = p }
}

// WithNowFunc overrides the clock used for escrow timestamps.
func WithNowFunc(now func() int64) Option {
	return func(n *Node) {
		if now != nil {
			n.nowFn = now
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(n *Node) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// NewNode creates a node over db. admin owns the token registry and the
// development token operations.
func NewNode(db storage.Database, admin common.Address, opts ...Option) (*Node, error) {
	if db == nil {
		return nil, fmt.Errorf("node: database required")
	}
	n := &Node{
		db:      db,
		admin:   admin,
		sink:    events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
		logger:  slog.Default(),
		metrics: observability.Escrow(),
		tracer:  telemetry.Tracer("escrow/core"),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Admin returns the registry administrator.
func (n *Node) Admin() common.Address { return n.admin }

// ApplyGenesis writes spec into state unless genesis has already been
// applied. It reports whether anything was written.
func (n *Node) ApplyGenesis(spec *genesis.GenesisSpec) ([]genesis.DeployedToken, bool, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	done, err := genesis.Applied(state.NewManager(n.db))
	if err != nil {
		return nil, false, err
	}
	if done {
		return nil, false, nil
	}
	overlay := storage.NewOverlay(n.db)
	deployed, err := genesis.Apply(spec, state.NewManager(overlay), n.admin)
	if err != nil {
		overlay.Discard()
		return nil, false, err
	}
	if err := overlay.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit genesis: %w", err)
	}
	return deployed, true, nil
}

// SubmitCall verifies and applies a signed call. Events are published to the
// sink only after the call's writes are committed.
func (n *Node) SubmitCall(ctx context.Context, call *types.Call) (*Receipt, error) {
	if call == nil {
		return nil, ErrNilCall
	}
	from, err := call.From()
	if err != nil {
		return nil, fmt.Errorf("recover sender: %w", err)
	}
	_, span := n.tracer.Start(ctx, "node.SubmitCall", trace.WithAttributes(
		attribute.String("call.type", call.Type.String()),
		attribute.String("call.from", from.Hex()),
		attribute.Int64("call.nonce", int64(call.Nonce)),
	))
	defer span.End()

	start := time.Now()
	n.stateMu.Lock()
	receipt, committed, err := n.apply(from, call)
	if err == nil {
		for _, evt := range committed {
			n.sink.Emit(evt)
		}
	}
	n.stateMu.Unlock()
	n.metrics.ObserveCall(call.Type.String(), err, time.Since(start))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		n.logger.Warn("call rejected",
			slog.String("type", call.Type.String()),
			slog.String("caller", from.Hex()),
			slog.Uint64("nonce", call.Nonce),
			slog.Any("error", err))
		return nil, err
	}
	attrs := []any{
		slog.String("type", call.Type.String()),
		slog.String("caller", from.Hex()),
		slog.Uint64("nonce", call.Nonce),
	}
	if receipt.EscrowID != nil {
		attrs = append(attrs, slog.Uint64("escrowId", *receipt.EscrowID))
	}
	n.logger.Info("call committed", attrs...)
	return receipt, nil
}

func (n *Node) apply(from common.Address, call *types.Call) (*Receipt, []events.Event, error) {
	overlay := storage.NewOverlay(n.db)
	manager := state.NewManager(overlay)
	buffer := &events.Buffer{}

	receipt, err := n.execute(manager, buffer, from, call)
	if err != nil {
		overlay.Discard()
		return nil, nil, err
	}
	if err := overlay.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit call: %w", err)
	}
	committed := buffer.Drain()
	receipt.Events = make([]*types.Event, 0, len(committed))
	for _, evt := range committed {
		if typed, ok := events.Typed(evt); ok {
			receipt.Events = append(receipt.Events, typed.Clone())
		}
	}
	return receipt, committed, nil
}

func (n *Node) newEscrowEngine(manager *state.Manager, emitter events.Emitter) *escrow.Engine {
	engine := escrow.NewEngine()
	engine.SetState(manager)
	engine.SetTokens(tokenContracts{dir: token.NewDirectory(manager)})
	engine.SetAdmin(n.admin)
	engine.SetPauses(n.pauses)
	engine.SetEmitter(emitter)
	engine.SetNowFunc(n.nowFn)
	return engine
}

func (n *Node) execute(manager *state.Manager, buffer *events.Buffer, from common.Address, call *types.Call) (*Receipt, error) {
	nonce, err := manager.Nonce(from)
	if err != nil {
		return nil, err
	}
	if call.Nonce != nonce {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrInvalidNonce, nonce, call.Nonce)
	}
	if !call.Type.Payable() && call.Value != nil && call.Value.Sign() != 0 {
		return nil, fmt.Errorf("%w: %s does not accept native value", escrow.ErrInvalidAmount, call.Type)
	}
	if err := manager.IncrementNonce(from); err != nil {
		return nil, err
	}

	receipt := &Receipt{Type: call.Type, From: from, Nonce: call.Nonce}
	engine := n.newEscrowEngine(manager, buffer)
	ecall := escrow.Call{From: from, Value: call.Value}

	var esc *escrow.Escrow
	switch call.Type {
	case types.CallNativeTransfer:
		var payload types.NativeTransferPayload
		if err := call.DecodePayload(&payload); err != nil {
			return nil, err
		}
		if call.Value == nil || call.Value.Sign() <= 0 {
			return nil, fmt.Errorf("%w: transfer value must be positive", escrow.ErrInvalidAmount)
		}
		if err := manager.NativeTransfer(from, payload.To, call.Value); err != nil {
			return nil, err
		}
		emitNodeEvent(buffer, EventTypeNativeTransferred, map[string]string{
			"from":   from.Hex(),
			"to":     payload.To.Hex(),
			"amount": call.Value.String(),
		})
	case types.CallRegisterToken:
		var payload types.RegisterTokenPayload
		if err := call.DecodePayload(&payload); err != nil {
			return nil, err
		}
		if err := engine.RegisterTokenContract(ecall, payload.Contract, escrow.AssetKind(payload.Kind)); err != nil {
			return nil, err
		}
		contract := payload.Contract
		receipt.Contract = &contract
	case types.CallCreateEthEscrow:
		var payload types.CreateEthEscrowPayload
		if err := call.DecodePayload(&payload); err != nil {
			return nil, err
		}
		esc, err = engine.CreateEthEscrow(ecall, payload.Vendor, payload.VendorAmountOrID, payload.VendorContract, payload.ExpireAt)
	case types.CallCreateTokenEscrow:
		var payload types.CreateTokenEscrowPayload
		if err := call.DecodePayload(&payload); err != nil {
			return nil, err
		}
		esc, err = engine.CreateTokenEscrow(ecall, payload.ClientAmountOrID, payload.ClientContract,
			payload.Vendor, payload.VendorAmountOrID, payload.VendorContract, payload.ExpireAt)
	case types.CallFulfillEthEscrow, types.CallFulfillTokenEscrow, types.CallClientCommit,
		types.CallCancelEscrow, types.CallApproveCancelation, types.CallDeclineCancelation,
		types.CallReclaimExpired:
		var payload types.EscrowIDPayload
		if err := call.DecodePayload(&payload); err != nil {
			return nil, err
		}
		esc, err = n.transition(engine, call.Type, ecall, payload.EscrowID)
	case types.CallDeployToken:
		err = n.deployToken(token.NewDirectory(manager), buffer, from, call, receipt)
	case types.CallMintToken:
		err = n.mintToken(token.NewDirectory(manager), buffer, from, call, receipt)
	case types.CallApproveToken:
		err = approveToken(token.NewDirectory(manager), buffer, from, call)
	case types.CallTransferToken:
		err = transferToken(token.NewDirectory(manager), buffer, from, call)
	case types.CallSetApprovalForAll:
		err = setApprovalForAll(token.NewDirectory(manager), buffer, from, call)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownCallType, call.Type)
	}
	if err != nil {
		return nil, err
	}
	if esc != nil {
		id := esc.ID
		receipt.EscrowID = &id
	}
	return receipt, nil
}

func (n *Node) transition(engine *escrow.Engine, callType types.CallType, call escrow.Call, id uint64) (*escrow.Escrow, error) {
	switch callType {
	case types.CallFulfillEthEscrow:
		return engine.FulfillEthEscrow(call, id)
	case types.CallFulfillTokenEscrow:
		return engine.FulfillTokenEscrow(call, id)
	case types.CallClientCommit:
		return engine.ClientCommitEscrow(call, id)
	case types.CallCancelEscrow:
		return engine.CancelEscrow(call, id)
	case types.CallApproveCancelation:
		return engine.ApproveCancelationRequest(call, id)
	case types.CallDeclineCancelation:
		return engine.DeclineCancelationRequest(call, id)
	case types.CallReclaimExpired:
		return engine.ReclaimExpiredEscrow(call, id)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownCallType, callType)
	}
}

func (n *Node) reader() *state.Manager { return state.NewManager(n.db) }

// GetEscrow returns the escrow with the given id.
func (n *Node) GetEscrow(id uint64) (*escrow.Escrow, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.newEscrowEngine(n.reader(), nil).GetEscrow(id)
}

// EscrowCount returns the number of escrows ever created.
func (n *Node) EscrowCount() (uint64, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.newEscrowEngine(n.reader(), nil).EscrowCount()
}

// OpenEscrowCount returns the number of escrows that have not ended.
func (n *Node) OpenEscrowCount() (uint64, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	engine := n.newEscrowEngine(n.reader(), nil)
	total, err := engine.EscrowCount()
	if err != nil {
		return 0, err
	}
	var open uint64
	for id := uint64(0); id < total; id++ {
		esc, err := engine.GetEscrow(id)
		if err != nil {
			return 0, fmt.Errorf("load escrow %d: %w", id, err)
		}
		if !esc.Ended() {
			open++
		}
	}
	return open, nil
}

// ResolveTokenContract returns the asset kind registered for contract.
func (n *Node) ResolveTokenContract(contract common.Address) (escrow.AssetKind, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.newEscrowEngine(n.reader(), nil).ResolveTokenContract(contract)
}

// Account returns the native balance and next nonce of addr.
func (n *Node) Account(addr common.Address) (*types.Account, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.reader().GetAccount(addr)
}

// TokenContract returns the deployment record of a token contract.
func (n *Node) TokenContract(addr common.Address) (*token.Contract, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return token.NewDirectory(n.reader()).Contract(addr)
}

// TokenBalance returns the fungible balance, or the number of tokens held for
// a non-fungible contract.
func (n *Node) TokenBalance(contract, owner common.Address) (*big.Int, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	dir := token.NewDirectory(n.reader())
	record, err := dir.Contract(contract)
	if err != nil {
		return nil, err
	}
	if record.Kind == token.KindNonFungible {
		nft, err := dir.NonFungible(contract)
		if err != nil {
			return nil, err
		}
		return nft.BalanceOf(owner)
	}
	erc20, err := dir.Fungible(contract)
	if err != nil {
		return nil, err
	}
	return erc20.BalanceOf(owner)
}

// TokenAllowance returns the fungible allowance owner granted spender.
func (n *Node) TokenAllowance(contract, owner, spender common.Address) (*big.Int, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	erc20, err := token.NewDirectory(n.reader()).Fungible(contract)
	if err != nil {
		return nil, err
	}
	return erc20.Allowance(owner, spender)
}

// TokenOwnerOf returns the owner of a non-fungible token.
func (n *Node) TokenOwnerOf(contract common.Address, id *big.Int) (common.Address, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	nft, err := token.NewDirectory(n.reader()).NonFungible(contract)
	if err != nil {
		return common.Address{}, err
	}
	return nft.OwnerOf(id)
}
