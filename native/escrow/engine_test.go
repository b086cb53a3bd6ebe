package escrow

import (
	"errors"
	"math/big"
	"reflect"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	nativecommon "github.com/erikrakuscek/escrow-ethereum/native/common"
	"github.com/erikrakuscek/escrow-ethereum/native/token"
)

func TestEthEscrowCommitSwapsAssets(t *testing.T) {
	f := newFixture(t)
	expireAt := uint64(testNow + 3600)

	esc, err := f.engine.CreateEthEscrow(pay(f.client, 100), f.vendor, big.NewInt(25), f.erc20, expireAt)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if esc.ID != 0 {
		t.Fatalf("expected first escrow id 0, got %d", esc.ID)
	}
	if esc.ClientAsset.Owner != f.client || esc.ClientAsset.Kind != AssetNative || esc.ClientAsset.AmountOrID.Int64() != 100 {
		t.Fatalf("unexpected client pledge %+v", esc.ClientAsset)
	}
	if esc.VendorAsset.Owner != f.vendor || esc.VendorAsset.TokenContract != f.erc20 || esc.VendorAsset.AmountOrID.Int64() != 25 {
		t.Fatalf("unexpected vendor pledge %+v", esc.VendorAsset)
	}
	if esc.ClientAsset.FulfilledAt != uint64(testNow) || esc.VendorAsset.FulfilledAt != 0 {
		t.Fatalf("unexpected fulfillment markers %d/%d", esc.ClientAsset.FulfilledAt, esc.VendorAsset.FulfilledAt)
	}
	if esc.ExpireAt != expireAt || esc.State != StateUnfulfilled {
		t.Fatalf("unexpected escrow %+v", esc)
	}
	if got := f.nativeBalance(f.client); got != 999_900 {
		t.Fatalf("expected client native balance 999900, got %d", got)
	}
	if got := f.nativeBalance(VaultAddress); got != 100 {
		t.Fatalf("expected vault native balance 100, got %d", got)
	}

	f.fundERC20(f.vendor, 25)
	f.now += 10
	fulfilled, err := f.engine.FulfillTokenEscrow(call(f.vendor), esc.ID)
	if err != nil {
		t.Fatalf("fulfill: %v", err)
	}
	if fulfilled.VendorAsset.FulfilledAt != uint64(f.now) || fulfilled.State != StateFulfilled {
		t.Fatalf("unexpected fulfilled escrow %+v", fulfilled)
	}
	if got := f.erc20Balance(VaultAddress); got != 25 {
		t.Fatalf("expected vault erc20 balance 25, got %d", got)
	}

	committed, err := f.engine.ClientCommitEscrow(call(f.client), esc.ID)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if committed.State != StateEnded || committed.Disposition != DispositionSwapped {
		t.Fatalf("unexpected terminal state %s/%s", committed.State, committed.Disposition)
	}
	if committed.ClientAsset.EndedAt == 0 || committed.VendorAsset.EndedAt == 0 {
		t.Fatalf("expected ended_at on both pledges")
	}
	if got := f.erc20Balance(f.client); got != 25 {
		t.Fatalf("expected client erc20 balance 25, got %d", got)
	}
	if got := f.nativeBalance(f.vendor); got != 1_000_100 {
		t.Fatalf("expected vendor native balance 1000100, got %d", got)
	}
	if got := f.nativeBalance(VaultAddress); got != 0 {
		t.Fatalf("expected empty vault, got %d", got)
	}

	if _, err := f.engine.ClientCommitEscrow(call(f.client), esc.ID); !errors.Is(err, ErrAlreadyEnded) {
		t.Fatalf("expected ErrAlreadyEnded on second commit, got %v", err)
	}
	want := []string{EventTypeEscrowCreated, EventTypeEscrowFulfilled, EventTypeEscrowCommitted}
	if got := f.eventTypes(); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected events %v", got)
	}
}

func TestTokenEscrowCancelApproveRefundsBoth(t *testing.T) {
	f := newFixture(t)
	f.fundERC20(f.client, 100)
	nftID := f.mintNFT(f.vendor)

	esc, err := f.engine.CreateTokenEscrow(call(f.client), big.NewInt(100), f.erc20, f.vendor, nftID, f.nft, uint64(testNow+60))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.engine.FulfillTokenEscrow(call(f.vendor), esc.ID); err != nil {
		t.Fatalf("fulfill: %v", err)
	}
	if owner := f.nftOwner(nftID); owner != VaultAddress {
		t.Fatalf("expected vault to hold nft, got %s", owner.Hex())
	}

	f.now += 5
	requested, err := f.engine.CancelEscrow(call(f.client), esc.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if requested.State != StateCancelRequested {
		t.Fatalf("expected cancel requested, got %s", requested.State)
	}
	if requested.ClientAsset.CanceledAt != uint64(f.now) || requested.VendorAsset.CanceledAt != uint64(f.now) {
		t.Fatalf("expected canceled_at on both pledges")
	}
	if requested.ClientAsset.EndedAt != 0 {
		t.Fatalf("cancel request must not end the escrow")
	}
	if _, err := f.engine.CancelEscrow(call(f.client), esc.ID); !errors.Is(err, ErrAlreadyCanceled) {
		t.Fatalf("expected ErrAlreadyCanceled, got %v", err)
	}
	if _, err := f.engine.ApproveCancelationRequest(call(f.client), esc.ID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	approved, err := f.engine.ApproveCancelationRequest(call(f.vendor), esc.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.State != StateEnded || approved.Disposition != DispositionRefunded {
		t.Fatalf("unexpected terminal state %s/%s", approved.State, approved.Disposition)
	}
	if got := f.erc20Balance(f.client); got != 100 {
		t.Fatalf("expected client erc20 refund, got %d", got)
	}
	if owner := f.nftOwner(nftID); owner != f.vendor {
		t.Fatalf("expected vendor to get nft back, got %s", owner.Hex())
	}
	if _, err := f.engine.DeclineCancelationRequest(call(f.vendor), esc.ID); !errors.Is(err, ErrAlreadyEnded) {
		t.Fatalf("expected ErrAlreadyEnded, got %v", err)
	}
	if _, err := f.engine.ApproveCancelationRequest(call(f.vendor), esc.ID); !errors.Is(err, ErrAlreadyEnded) {
		t.Fatalf("expected ErrAlreadyEnded, got %v", err)
	}
}

func TestEarlyCancelRefundsClientOnly(t *testing.T) {
	f := newFixture(t)
	f.fundERC20(f.client, 100)
	nftID := f.mintNFT(f.vendor)

	esc, err := f.engine.CreateTokenEscrow(call(f.client), big.NewInt(100), f.erc20, f.vendor, nftID, f.nft, uint64(testNow+60))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	canceled, err := f.engine.CancelEscrow(call(f.client), esc.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if canceled.State != StateEnded || canceled.Disposition != DispositionRefunded {
		t.Fatalf("expected immediate refund, got %s/%s", canceled.State, canceled.Disposition)
	}
	if canceled.ClientAsset.CanceledAt == 0 || canceled.ClientAsset.EndedAt == 0 || canceled.VendorAsset.EndedAt == 0 {
		t.Fatalf("expected canceled and ended markers, got %+v", canceled)
	}
	if got := f.erc20Balance(f.client); got != 100 {
		t.Fatalf("expected client erc20 refund, got %d", got)
	}
	if owner := f.nftOwner(nftID); owner != f.vendor {
		t.Fatalf("vendor nft must not move, owner %s", owner.Hex())
	}
	if _, err := f.engine.FulfillTokenEscrow(call(f.vendor), esc.ID); !errors.Is(err, ErrAlreadyEnded) {
		t.Fatalf("expected ErrAlreadyEnded, got %v", err)
	}
	if _, err := f.engine.CancelEscrow(call(f.client), esc.ID); !errors.Is(err, ErrAlreadyEnded) {
		t.Fatalf("expected ErrAlreadyEnded, got %v", err)
	}
}

func TestEarlyCancelRefundsNativePledge(t *testing.T) {
	f := newFixture(t)
	esc, err := f.engine.CreateEthEscrow(pay(f.client, 500), f.vendor, big.NewInt(25), f.erc20, uint64(testNow+60))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.engine.CancelEscrow(call(f.client), esc.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got := f.nativeBalance(f.client); got != 1_000_000 {
		t.Fatalf("expected native refund, got %d", got)
	}
}

func TestNFTForNativeCancelDeclined(t *testing.T) {
	f := newFixture(t)
	first := f.mintNFT(f.vendor)
	nftID := f.mintNFT(f.client)
	if first.Int64() != 1 || nftID.Int64() != 2 {
		t.Fatalf("unexpected token ids %s, %s", first, nftID)
	}

	esc, err := f.engine.CreateTokenEscrow(call(f.client), nftID, f.nft, f.vendor, big.NewInt(10_000), common.Address{}, uint64(testNow+60))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.engine.FulfillTokenEscrow(call(f.vendor), esc.ID); !errors.Is(err, ErrAssetKindMismatch) {
		t.Fatalf("expected ErrAssetKindMismatch, got %v", err)
	}
	if _, err := f.engine.FulfillEthEscrow(pay(f.vendor, 9_999), esc.ID); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := f.engine.FulfillEthEscrow(pay(f.vendor, 10_000), esc.ID); err != nil {
		t.Fatalf("fulfill: %v", err)
	}
	if _, err := f.engine.CancelEscrow(call(f.client), esc.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	declined, err := f.engine.DeclineCancelationRequest(call(f.vendor), esc.ID)
	if err != nil {
		t.Fatalf("decline: %v", err)
	}
	if declined.Disposition != DispositionSwapped {
		t.Fatalf("expected swap on decline, got %s", declined.Disposition)
	}
	if owner := f.nftOwner(nftID); owner != f.vendor {
		t.Fatalf("expected vendor to own nft, got %s", owner.Hex())
	}
	if got := f.nativeBalance(f.client); got != 1_010_000 {
		t.Fatalf("expected client native 1010000, got %d", got)
	}
	if got := f.nativeBalance(f.vendor); got != 990_000 {
		t.Fatalf("expected vendor native 990000, got %d", got)
	}
}

func TestFulfillGuards(t *testing.T) {
	f := newFixture(t)
	esc, err := f.engine.CreateEthEscrow(pay(f.client, 100), f.vendor, big.NewInt(25), f.erc20, uint64(testNow+60))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	f.fundERC20(f.vendor, 25)

	if _, err := f.engine.FulfillTokenEscrow(call(f.client), esc.ID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := f.engine.FulfillTokenEscrow(pay(f.vendor, 1), esc.ID); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := f.engine.FulfillEthEscrow(pay(f.vendor, 25), esc.ID); !errors.Is(err, ErrAssetKindMismatch) {
		t.Fatalf("expected ErrAssetKindMismatch, got %v", err)
	}
	if _, err := f.engine.FulfillTokenEscrow(call(f.vendor), 7); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	f.now = testNow + 60
	if _, err := f.engine.FulfillTokenEscrow(call(f.vendor), esc.ID); err != nil {
		t.Fatalf("fulfill at expiry instant: %v", err)
	}
	before := f.escrow(esc.ID)
	if _, err := f.engine.FulfillTokenEscrow(call(f.vendor), esc.ID); !errors.Is(err, ErrAlreadyFulfilled) {
		t.Fatalf("expected ErrAlreadyFulfilled, got %v", err)
	}
	if after := f.escrow(esc.ID); !reflect.DeepEqual(before, after) {
		t.Fatalf("failed fulfill changed state: %+v -> %+v", before, after)
	}
}

func TestFulfillAfterExpiry(t *testing.T) {
	f := newFixture(t)
	esc, err := f.engine.CreateEthEscrow(pay(f.client, 100), f.vendor, big.NewInt(25), f.erc20, uint64(testNow+60))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	f.fundERC20(f.vendor, 25)
	f.now = testNow + 61
	if _, err := f.engine.FulfillTokenEscrow(call(f.vendor), esc.ID); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
	if got := f.erc20Balance(f.vendor); got != 25 {
		t.Fatalf("expired fulfill moved tokens, vendor has %d", got)
	}
}

func TestCreateValidation(t *testing.T) {
	unknown := newTestAddress(0x99)
	tests := []struct {
		name   string
		create func(f *fixture) error
		want   error
	}{
		{
			name: "unregistered vendor contract",
			create: func(f *fixture) error {
				_, err := f.engine.CreateEthEscrow(pay(f.client, 100), f.vendor, big.NewInt(1), unknown, uint64(testNow+60))
				return err
			},
			want: ErrUnknownTokenContract,
		},
		{
			name: "no attached value",
			create: func(f *fixture) error {
				_, err := f.engine.CreateEthEscrow(call(f.client), f.vendor, big.NewInt(1), f.erc20, uint64(testNow+60))
				return err
			},
			want: ErrInvalidAmount,
		},
		{
			name: "zero vendor amount",
			create: func(f *fixture) error {
				_, err := f.engine.CreateEthEscrow(pay(f.client, 100), f.vendor, big.NewInt(0), f.erc20, uint64(testNow+60))
				return err
			},
			want: ErrInvalidAmount,
		},
		{
			name: "vendor is caller",
			create: func(f *fixture) error {
				_, err := f.engine.CreateEthEscrow(pay(f.client, 100), f.client, big.NewInt(1), f.erc20, uint64(testNow+60))
				return err
			},
			want: ErrInvalidCounterparty,
		},
		{
			name: "zero vendor",
			create: func(f *fixture) error {
				_, err := f.engine.CreateEthEscrow(pay(f.client, 100), common.Address{}, big.NewInt(1), f.erc20, uint64(testNow+60))
				return err
			},
			want: ErrInvalidCounterparty,
		},
		{
			name: "expire_at not in the future",
			create: func(f *fixture) error {
				_, err := f.engine.CreateEthEscrow(pay(f.client, 100), f.vendor, big.NewInt(1), f.erc20, uint64(testNow))
				return err
			},
			want: ErrExpired,
		},
		{
			name: "native client contract on token escrow",
			create: func(f *fixture) error {
				_, err := f.engine.CreateTokenEscrow(call(f.client), big.NewInt(1), common.Address{}, f.vendor, big.NewInt(1), f.erc20, uint64(testNow+60))
				return err
			},
			want: ErrAssetKindMismatch,
		},
		{
			name: "value attached to token escrow",
			create: func(f *fixture) error {
				_, err := f.engine.CreateTokenEscrow(pay(f.client, 1), big.NewInt(1), f.erc20, f.vendor, big.NewInt(1), f.nft, uint64(testNow+60))
				return err
			},
			want: ErrInvalidAmount,
		},
		{
			name: "unregistered client contract",
			create: func(f *fixture) error {
				_, err := f.engine.CreateTokenEscrow(call(f.client), big.NewInt(1), unknown, f.vendor, big.NewInt(1), f.nft, uint64(testNow+60))
				return err
			},
			want: ErrUnknownTokenContract,
		},
		{
			name: "client pull without allowance",
			create: func(f *fixture) error {
				if err := f.fungible().Mint(f.client, big.NewInt(10)); err != nil {
					return err
				}
				_, err := f.engine.CreateTokenEscrow(call(f.client), big.NewInt(10), f.erc20, f.vendor, big.NewInt(1), f.nft, uint64(testNow+60))
				return err
			},
			want: ErrTransferFailed,
		},
		{
			name: "insufficient native balance",
			create: func(f *fixture) error {
				_, err := f.engine.CreateEthEscrow(pay(f.client, 2_000_000), f.vendor, big.NewInt(1), f.erc20, uint64(testNow+60))
				return err
			},
			want: ErrTransferFailed,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			if err := tc.create(f); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			count, err := f.engine.EscrowCount()
			if err != nil {
				t.Fatalf("count: %v", err)
			}
			if count != 0 {
				t.Fatalf("expected no escrow record, got %d", count)
			}
			if f.events.Len() != 0 {
				t.Fatalf("expected no events, got %d", f.events.Len())
			}
		})
	}
}

func TestTransferFailedWrapsCause(t *testing.T) {
	f := newFixture(t)
	if err := f.fungible().Mint(f.client, big.NewInt(10)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	_, err := f.engine.CreateTokenEscrow(call(f.client), big.NewInt(10), f.erc20, f.vendor, big.NewInt(1), f.nft, uint64(testNow+60))
	if !errors.Is(err, ErrTransferFailed) || !errors.Is(err, token.ErrInsufficientAllowance) {
		t.Fatalf("expected transfer failure wrapping allowance error, got %v", err)
	}
}

func TestCommitAndCancelProtocolGuards(t *testing.T) {
	f := newFixture(t)
	esc, err := f.engine.CreateEthEscrow(pay(f.client, 100), f.vendor, big.NewInt(25), f.erc20, uint64(testNow+60))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.engine.ClientCommitEscrow(call(f.client), esc.ID); !errors.Is(err, ErrNotFulfilled) {
		t.Fatalf("expected ErrNotFulfilled, got %v", err)
	}
	if _, err := f.engine.ClientCommitEscrow(call(f.vendor), esc.ID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := f.engine.CancelEscrow(call(f.vendor), esc.ID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for vendor cancel, got %v", err)
	}
	if _, err := f.engine.ApproveCancelationRequest(call(f.vendor), esc.ID); !errors.Is(err, ErrNoCancelationRequest) {
		t.Fatalf("expected ErrNoCancelationRequest, got %v", err)
	}
	if _, err := f.engine.DeclineCancelationRequest(call(f.vendor), esc.ID); !errors.Is(err, ErrNoCancelationRequest) {
		t.Fatalf("expected ErrNoCancelationRequest, got %v", err)
	}
	if _, err := f.engine.CancelEscrow(pay(f.client, 1), esc.ID); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for payable cancel, got %v", err)
	}
}

func TestCommitWithdrawsPendingCancelation(t *testing.T) {
	f := newFixture(t)
	esc, err := f.engine.CreateEthEscrow(pay(f.client, 100), f.vendor, big.NewInt(25), f.erc20, uint64(testNow+60))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	f.fundERC20(f.vendor, 25)
	if _, err := f.engine.FulfillTokenEscrow(call(f.vendor), esc.ID); err != nil {
		t.Fatalf("fulfill: %v", err)
	}
	if _, err := f.engine.CancelEscrow(call(f.client), esc.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	committed, err := f.engine.ClientCommitEscrow(call(f.client), esc.ID)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if committed.Disposition != DispositionSwapped {
		t.Fatalf("expected swap, got %s", committed.Disposition)
	}
	if _, err := f.engine.ApproveCancelationRequest(call(f.vendor), esc.ID); !errors.Is(err, ErrAlreadyEnded) {
		t.Fatalf("expected ErrAlreadyEnded, got %v", err)
	}
}

func TestReclaimExpiredEscrow(t *testing.T) {
	f := newFixture(t)
	stranger := newTestAddress(0x33)
	esc, err := f.engine.CreateEthEscrow(pay(f.client, 100), f.vendor, big.NewInt(25), f.erc20, uint64(testNow+60))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.engine.ReclaimExpiredEscrow(call(f.client), esc.ID); !errors.Is(err, ErrNotExpired) {
		t.Fatalf("expected ErrNotExpired, got %v", err)
	}
	f.now = testNow + 61
	if _, err := f.engine.ReclaimExpiredEscrow(call(stranger), esc.ID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for a third party, got %v", err)
	}
	if _, err := f.engine.ReclaimExpiredEscrow(call(f.vendor), esc.ID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for the vendor, got %v", err)
	}
	reclaimed, err := f.engine.ReclaimExpiredEscrow(call(f.client), esc.ID)
	if err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	if reclaimed.Disposition != DispositionRefunded || reclaimed.ClientAsset.CanceledAt != 0 {
		t.Fatalf("unexpected reclaimed escrow %+v", reclaimed)
	}
	if got := f.nativeBalance(f.client); got != 1_000_000 {
		t.Fatalf("expected native refund, got %d", got)
	}
	if _, err := f.engine.ReclaimExpiredEscrow(call(f.client), esc.ID); !errors.Is(err, ErrAlreadyEnded) {
		t.Fatalf("expected ErrAlreadyEnded, got %v", err)
	}
}

func TestReclaimRejectsFulfilledEscrow(t *testing.T) {
	f := newFixture(t)
	esc, err := f.engine.CreateEthEscrow(pay(f.client, 100), f.vendor, big.NewInt(25), f.erc20, uint64(testNow+60))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	f.fundERC20(f.vendor, 25)
	if _, err := f.engine.FulfillTokenEscrow(call(f.vendor), esc.ID); err != nil {
		t.Fatalf("fulfill: %v", err)
	}
	f.now = testNow + 120
	if _, err := f.engine.ReclaimExpiredEscrow(call(f.client), esc.ID); !errors.Is(err, ErrAlreadyFulfilled) {
		t.Fatalf("expected ErrAlreadyFulfilled, got %v", err)
	}
}

func TestSequentialIDsAndCount(t *testing.T) {
	f := newFixture(t)
	for i := uint64(0); i < 3; i++ {
		esc, err := f.engine.CreateEthEscrow(pay(f.client, 10), f.vendor, big.NewInt(1), f.erc20, uint64(testNow+60))
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		if esc.ID != i {
			t.Fatalf("expected id %d, got %d", i, esc.ID)
		}
	}
	count, err := f.engine.EscrowCount()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected count 3, got %d", count)
	}
	if _, err := f.engine.GetEscrow(3); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPausedModuleRejectsMutations(t *testing.T) {
	f := newFixture(t)
	f.engine.SetPauses(nativecommon.NewStaticPauses(ModuleName))
	_, err := f.engine.CreateEthEscrow(pay(f.client, 100), f.vendor, big.NewInt(25), f.erc20, uint64(testNow+60))
	if !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
	if err := f.engine.RegisterTokenContract(call(f.admin), newTestAddress(0x44), AssetFungible); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused for register, got %v", err)
	}
	if _, err := f.engine.EscrowCount(); err != nil {
		t.Fatalf("reads must stay available while paused: %v", err)
	}
}
