package escrow

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/erikrakuscek/escrow-ethereum/core/events"
	"github.com/erikrakuscek/escrow-ethereum/core/types"
	nativecommon "github.com/erikrakuscek/escrow-ethereum/native/common"
)

// ModuleName is the pause switch that halts every escrow mutation.
const ModuleName = "escrow"

type engineState interface {
	kvStore
	NativeLedger
}

type escrowEvent struct {
	evt *types.Event
}

func (e escrowEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e escrowEvent) Event() *types.Event { return e.evt }

// Engine runs the two-party escrow state machine against a state scope. It
// assumes the caller executes each call in its own write scope and discards
// that scope when a method returns an error.
type Engine struct {
	state   engineState
	tokens  TokenContracts
	admin   common.Address
	pauses  nativecommon.PauseView
	emitter events.Emitter
	nowFn   func() int64
}

// NewEngine creates an escrow engine with a no-op emitter. Callers can override
// the emitter via SetEmitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetTokens configures how token contract addresses are resolved.
func (e *Engine) SetTokens(tokens TokenContracts) { e.tokens = tokens }

// SetAdmin configures the token registry administrator.
func (e *Engine) SetAdmin(admin common.Address) { e.admin = admin }

// SetPauses configures the module pause view consulted before every mutation.
func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(escrowEvent{evt: event})
}

func (e *Engine) now() uint64 {
	var now int64
	if e == nil || e.nowFn == nil {
		now = time.Now().Unix()
	} else {
		now = e.nowFn()
	}
	if now < 0 {
		return 0
	}
	return uint64(now)
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.tokens == nil {
		return errNilTokens
	}
	return nativecommon.Guard(e.pauses, ModuleName)
}

func (e *Engine) registry() *Registry { return NewRegistry(e.state, e.admin) }

func (e *Engine) store() *Store { return NewStore(e.state) }

func (e *Engine) custody() custody {
	return custody{native: e.state, tokens: e.tokens, vault: VaultAddress}
}

func validAmount(v *big.Int) bool {
	return v != nil && v.Sign() > 0 && v.BitLen() <= 256
}

func requireNoValue(call Call) error {
	if call.value().Sign() != 0 {
		return fmt.Errorf("%w: call does not accept native value (got %s)", ErrInvalidAmount, call.value())
	}
	return nil
}

// RegisterTokenContract records contract as an accepted token of kind. Only
// the registry administrator may call it.
func (e *Engine) RegisterTokenContract(call Call, contract common.Address, kind AssetKind) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := requireNoValue(call); err != nil {
		return err
	}
	if err := e.registry().Register(call.From, contract, kind); err != nil {
		return err
	}
	e.emit(NewTokenRegisteredEvent(contract, kind))
	return nil
}

// ResolveTokenContract returns the asset kind of contract.
func (e *Engine) ResolveTokenContract(contract common.Address) (AssetKind, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	return e.registry().Resolve(contract)
}

// CreateEthEscrow opens an escrow whose client pledge is the native value
// attached to the call.
func (e *Engine) CreateEthEscrow(call Call, vendor common.Address, vendorAmountOrID *big.Int, vendorToken common.Address, expireAt uint64) (*Escrow, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	value := call.value()
	if !validAmount(value) {
		return nil, fmt.Errorf("%w: attached value must be positive", ErrInvalidAmount)
	}
	client := Pledge{
		Owner:      call.From,
		Kind:       AssetNative,
		AmountOrID: new(big.Int).Set(value),
	}
	return e.create(call, client, vendor, vendorAmountOrID, vendorToken, expireAt)
}

// CreateTokenEscrow opens an escrow whose client pledge is pulled from the
// caller's balance in a registered token contract.
func (e *Engine) CreateTokenEscrow(call Call, clientAmountOrID *big.Int, clientToken, vendor common.Address, vendorAmountOrID *big.Int, vendorToken common.Address, expireAt uint64) (*Escrow, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := requireNoValue(call); err != nil {
		return nil, err
	}
	if clientToken == (common.Address{}) {
		return nil, fmt.Errorf("%w: native client pledge requires an eth escrow", ErrAssetKindMismatch)
	}
	kind, err := e.registry().Resolve(clientToken)
	if err != nil {
		return nil, err
	}
	if !validAmount(clientAmountOrID) {
		return nil, fmt.Errorf("%w: client amount or id must be positive", ErrInvalidAmount)
	}
	client := Pledge{
		Owner:         call.From,
		Kind:          kind,
		TokenContract: clientToken,
		AmountOrID:    new(big.Int).Set(clientAmountOrID),
	}
	return e.create(call, client, vendor, vendorAmountOrID, vendorToken, expireAt)
}

func (e *Engine) create(call Call, client Pledge, vendor common.Address, vendorAmountOrID *big.Int, vendorToken common.Address, expireAt uint64) (*Escrow, error) {
	if vendor == (common.Address{}) || vendor == call.From {
		return nil, fmt.Errorf("%w: vendor %s", ErrInvalidCounterparty, vendor.Hex())
	}
	if !validAmount(vendorAmountOrID) {
		return nil, fmt.Errorf("%w: vendor amount or id must be positive", ErrInvalidAmount)
	}
	vendorKind, err := e.registry().Resolve(vendorToken)
	if err != nil {
		return nil, err
	}
	now := e.now()
	if expireAt <= now {
		return nil, fmt.Errorf("%w: expire_at %d is not after %d", ErrExpired, expireAt, now)
	}
	if err := client.markFulfilled(now); err != nil {
		return nil, err
	}
	if err := e.custody().pull(&client, call.From); err != nil {
		return nil, err
	}
	esc := &Escrow{
		ClientAsset: client,
		VendorAsset: Pledge{
			Owner:         vendor,
			Kind:          vendorKind,
			TokenContract: vendorToken,
			AmountOrID:    new(big.Int).Set(vendorAmountOrID),
		},
		ExpireAt:  expireAt,
		CreatedAt: now,
		State:     StateUnfulfilled,
	}
	if _, err := e.store().Append(esc); err != nil {
		return nil, err
	}
	e.emit(NewCreatedEvent(esc))
	return esc.Clone(), nil
}

// FulfillEthEscrow deposits the vendor's native pledge, which must equal the
// value attached to the call.
func (e *Engine) FulfillEthEscrow(call Call, id uint64) (*Escrow, error) {
	return e.fulfill(call, id, true)
}

// FulfillTokenEscrow pulls the vendor's token pledge into custody.
func (e *Engine) FulfillTokenEscrow(call Call, id uint64) (*Escrow, error) {
	return e.fulfill(call, id, false)
}

func (e *Engine) fulfill(call Call, id uint64, native bool) (*Escrow, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	esc, err := e.store().Get(id)
	if err != nil {
		return nil, err
	}
	if call.From != esc.VendorAsset.Owner {
		return nil, fmt.Errorf("%w: only the vendor may fulfill escrow %d", ErrUnauthorized, id)
	}
	if esc.Ended() {
		return nil, fmt.Errorf("%w: escrow %d", ErrAlreadyEnded, id)
	}
	if esc.State != StateUnfulfilled || esc.VendorAsset.FulfilledAt != 0 {
		return nil, fmt.Errorf("%w: escrow %d", ErrAlreadyFulfilled, id)
	}
	now := e.now()
	if now > esc.ExpireAt {
		return nil, fmt.Errorf("%w: escrow %d expired at %d", ErrExpired, id, esc.ExpireAt)
	}
	isNative := esc.VendorAsset.Kind == AssetNative
	if native != isNative {
		return nil, fmt.Errorf("%w: vendor pledge is %s", ErrAssetKindMismatch, esc.VendorAsset.Kind)
	}
	if native {
		if call.value().Cmp(esc.VendorAsset.AmountOrID) != 0 {
			return nil, fmt.Errorf("%w: attached %s, pledged %s", ErrInvalidAmount, call.value(), esc.VendorAsset.AmountOrID)
		}
	} else if err := requireNoValue(call); err != nil {
		return nil, err
	}
	if err := esc.VendorAsset.markFulfilled(now); err != nil {
		return nil, err
	}
	if err := e.custody().pull(&esc.VendorAsset, call.From); err != nil {
		return nil, err
	}
	esc.State = StateFulfilled
	if err := e.store().Put(esc); err != nil {
		return nil, err
	}
	e.emit(NewFulfilledEvent(esc))
	return esc.Clone(), nil
}

// ClientCommitEscrow settles a fulfilled escrow by swapping both pledges. A
// pending cancelation request is withdrawn by committing.
func (e *Engine) ClientCommitEscrow(call Call, id uint64) (*Escrow, error) {
	esc, err := e.loadForClient(call, id)
	if err != nil {
		return nil, err
	}
	if esc.State == StateUnfulfilled {
		return nil, fmt.Errorf("%w: escrow %d", ErrNotFulfilled, id)
	}
	if err := e.settle(esc, DispositionSwapped); err != nil {
		return nil, err
	}
	e.emit(NewCommittedEvent(esc))
	return esc.Clone(), nil
}

// CancelEscrow is raised by the client. Before the vendor fulfills, the client
// pledge is refunded and the escrow ends at once; afterwards the escrow waits
// for the vendor to approve or decline.
func (e *Engine) CancelEscrow(call Call, id uint64) (*Escrow, error) {
	esc, err := e.loadForClient(call, id)
	if err != nil {
		return nil, err
	}
	if esc.State == StateCancelRequested {
		return nil, fmt.Errorf("%w: escrow %d", ErrAlreadyCanceled, id)
	}
	now := e.now()
	if err := esc.ClientAsset.markCanceled(now); err != nil {
		return nil, err
	}
	if err := esc.VendorAsset.markCanceled(now); err != nil {
		return nil, err
	}
	if esc.State == StateUnfulfilled {
		if err := e.settle(esc, DispositionRefunded); err != nil {
			return nil, err
		}
		e.emit(NewCanceledEvent(esc))
		return esc.Clone(), nil
	}
	esc.State = StateCancelRequested
	if err := e.store().Put(esc); err != nil {
		return nil, err
	}
	e.emit(NewCancelRequestedEvent(esc))
	return esc.Clone(), nil
}

// ApproveCancelationRequest returns each pledge to its owner.
func (e *Engine) ApproveCancelationRequest(call Call, id uint64) (*Escrow, error) {
	esc, err := e.loadCancelRequest(call, id)
	if err != nil {
		return nil, err
	}
	if err := e.settle(esc, DispositionRefunded); err != nil {
		return nil, err
	}
	e.emit(NewCancelApprovedEvent(esc))
	return esc.Clone(), nil
}

// DeclineCancelationRequest rejects the client's request and completes the
// swap.
func (e *Engine) DeclineCancelationRequest(call Call, id uint64) (*Escrow, error) {
	esc, err := e.loadCancelRequest(call, id)
	if err != nil {
		return nil, err
	}
	if err := e.settle(esc, DispositionSwapped); err != nil {
		return nil, err
	}
	e.emit(NewCancelDeclinedEvent(esc))
	return esc.Clone(), nil
}

// ReclaimExpiredEscrow refunds the client of an escrow the vendor never
// fulfilled before expiry. Only the client may reclaim.
func (e *Engine) ReclaimExpiredEscrow(call Call, id uint64) (*Escrow, error) {
	esc, err := e.loadForClient(call, id)
	if err != nil {
		return nil, err
	}
	if esc.State != StateUnfulfilled {
		return nil, fmt.Errorf("%w: escrow %d", ErrAlreadyFulfilled, id)
	}
	if now := e.now(); now <= esc.ExpireAt {
		return nil, fmt.Errorf("%w: escrow %d expires at %d", ErrNotExpired, id, esc.ExpireAt)
	}
	if err := e.settle(esc, DispositionRefunded); err != nil {
		return nil, err
	}
	e.emit(NewReclaimedEvent(esc, call.From))
	return esc.Clone(), nil
}

// GetEscrow returns the full record for id.
func (e *Engine) GetEscrow(id uint64) (*Escrow, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.store().Get(id)
}

// EscrowCount returns the number of escrows ever created.
func (e *Engine) EscrowCount() (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	return e.store().Count()
}

func (e *Engine) loadForClient(call Call, id uint64) (*Escrow, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := requireNoValue(call); err != nil {
		return nil, err
	}
	esc, err := e.store().Get(id)
	if err != nil {
		return nil, err
	}
	if call.From != esc.ClientAsset.Owner {
		return nil, fmt.Errorf("%w: only the client may act on escrow %d", ErrUnauthorized, id)
	}
	if esc.Ended() {
		return nil, fmt.Errorf("%w: escrow %d", ErrAlreadyEnded, id)
	}
	return esc, nil
}

func (e *Engine) loadCancelRequest(call Call, id uint64) (*Escrow, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := requireNoValue(call); err != nil {
		return nil, err
	}
	esc, err := e.store().Get(id)
	if err != nil {
		return nil, err
	}
	if call.From != esc.VendorAsset.Owner {
		return nil, fmt.Errorf("%w: only the vendor may answer a cancelation of escrow %d", ErrUnauthorized, id)
	}
	if esc.Ended() {
		return nil, fmt.Errorf("%w: escrow %d", ErrAlreadyEnded, id)
	}
	if esc.State != StateCancelRequested {
		return nil, fmt.Errorf("%w: escrow %d", ErrNoCancelationRequest, id)
	}
	return esc, nil
}

// settle moves the custodied pledges out of the vault and ends the escrow.
// A refund skips the vendor pledge when it never entered custody.
func (e *Engine) settle(esc *Escrow, disposition Disposition) error {
	c := e.custody()
	client, vendor := esc.ClientAsset.Owner, esc.VendorAsset.Owner
	switch disposition {
	case DispositionSwapped:
		if err := c.push(&esc.VendorAsset, client); err != nil {
			return err
		}
		if err := c.push(&esc.ClientAsset, vendor); err != nil {
			return err
		}
	case DispositionRefunded:
		if err := c.push(&esc.ClientAsset, client); err != nil {
			return err
		}
		if esc.VendorAsset.FulfilledAt != 0 {
			if err := c.push(&esc.VendorAsset, vendor); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("escrow: cannot settle with disposition %s", disposition)
	}
	now := e.now()
	if err := esc.ClientAsset.markEnded(now); err != nil {
		return err
	}
	if err := esc.VendorAsset.markEnded(now); err != nil {
		return err
	}
	esc.State = StateEnded
	esc.Disposition = disposition
	return e.store().Put(esc)
}
