package escrow

import "errors"

var (
	ErrUnauthorized         = errors.New("escrow: caller not authorized")
	ErrUnknownTokenContract = errors.New("escrow: unknown token contract")
	ErrInvalidAssetKind     = errors.New("escrow: invalid asset kind")
	ErrAssetKindMismatch    = errors.New("escrow: asset kind mismatch")
	ErrAlreadyFulfilled     = errors.New("escrow: already fulfilled")
	ErrAlreadyCanceled      = errors.New("escrow: already canceled")
	ErrAlreadyEnded         = errors.New("escrow: already ended")
	ErrNotFulfilled         = errors.New("escrow: vendor has not fulfilled")
	ErrNoCancelationRequest = errors.New("escrow: no pending cancelation request")
	ErrExpired              = errors.New("escrow: expired")
	ErrNotExpired           = errors.New("escrow: not expired")
	ErrTransferFailed       = errors.New("escrow: asset transfer failed")
	ErrNotFound             = errors.New("escrow: not found")
	ErrInvalidAmount        = errors.New("escrow: invalid amount")
	ErrInvalidCounterparty  = errors.New("escrow: invalid counterparty")
)

var (
	errNilState  = errors.New("escrow engine: state not configured")
	errNilTokens = errors.New("escrow engine: token contracts not configured")
)
