package modules

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/erikrakuscek/escrow-ethereum/core"
	"github.com/erikrakuscek/escrow-ethereum/core/types"
	nativecommon "github.com/erikrakuscek/escrow-ethereum/native/common"
	"github.com/erikrakuscek/escrow-ethereum/native/escrow"
	"github.com/erikrakuscek/escrow-ethereum/native/token"
)

const (
	codeInvalidParams = -32602
	codeServerError   = -32000

	CodeEscrowInvalidParams = -32021
	CodeEscrowNotFound      = -32022
	CodeEscrowForbidden     = -32023
	CodeEscrowConflict      = -32024
	CodeEscrowInternal      = -32025
	CodeModulePaused        = -32026
)

type ModuleError struct {
	HTTPStatus int
	Code       int
	Message    string
	Data       interface{}
}

func (e *ModuleError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func invalidParams(data interface{}) *ModuleError {
	return &ModuleError{HTTPStatus: http.StatusBadRequest, Code: codeInvalidParams, Message: "invalid_params", Data: data}
}

// decodeParams unmarshals the single parameter object of a request.
func decodeParams(params []json.RawMessage, out interface{}) *ModuleError {
	if len(params) != 1 {
		return invalidParams("exactly one parameter object expected")
	}
	dec := json.NewDecoder(strings.NewReader(string(params[0])))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return invalidParams(err.Error())
	}
	return nil
}

// MapError translates node and escrow errors into JSON-RPC errors.
func MapError(err error) *ModuleError {
	if err == nil {
		return nil
	}
	out := &ModuleError{
		HTTPStatus: http.StatusInternalServerError,
		Code:       CodeEscrowInternal,
		Message:    "internal_error",
		Data:       err.Error(),
	}
	switch {
	case errors.Is(err, nativecommon.ErrModulePaused):
		out.HTTPStatus, out.Code, out.Message = http.StatusServiceUnavailable, CodeModulePaused, "module_paused"
	case errors.Is(err, escrow.ErrTransferFailed):
		out.HTTPStatus, out.Code, out.Message = http.StatusConflict, CodeEscrowConflict, "transfer_failed"
	case errors.Is(err, escrow.ErrUnauthorized),
		errors.Is(err, token.ErrNotOwner),
		errors.Is(err, token.ErrNotApproved):
		out.HTTPStatus, out.Code, out.Message = http.StatusForbidden, CodeEscrowForbidden, "forbidden"
	case errors.Is(err, escrow.ErrNotFound),
		errors.Is(err, token.ErrUnknownContract),
		errors.Is(err, token.ErrNonexistentToken):
		out.HTTPStatus, out.Code, out.Message = http.StatusNotFound, CodeEscrowNotFound, "not_found"
	case errors.Is(err, escrow.ErrAlreadyFulfilled),
		errors.Is(err, escrow.ErrAlreadyCanceled),
		errors.Is(err, escrow.ErrAlreadyEnded),
		errors.Is(err, escrow.ErrNotFulfilled),
		errors.Is(err, escrow.ErrNoCancelationRequest),
		errors.Is(err, escrow.ErrExpired),
		errors.Is(err, escrow.ErrNotExpired),
		errors.Is(err, core.ErrInvalidNonce),
		errors.Is(err, token.ErrInsufficientBalance),
		errors.Is(err, token.ErrInsufficientAllowance):
		out.HTTPStatus, out.Code, out.Message = http.StatusConflict, CodeEscrowConflict, "conflict"
	case errors.Is(err, escrow.ErrInvalidAmount),
		errors.Is(err, escrow.ErrInvalidAssetKind),
		errors.Is(err, escrow.ErrAssetKindMismatch),
		errors.Is(err, escrow.ErrUnknownTokenContract),
		errors.Is(err, escrow.ErrInvalidCounterparty),
		errors.Is(err, token.ErrWrongKind),
		errors.Is(err, token.ErrZeroAddress),
		errors.Is(err, core.ErrUnknownCallType),
		errors.Is(err, core.ErrNilCall),
		errors.Is(err, types.ErrMissingSignature):
		out.HTTPStatus, out.Code, out.Message = http.StatusBadRequest, CodeEscrowInvalidParams, "invalid_params"
	}
	return out
}

func serverError(err error) *ModuleError {
	return &ModuleError{HTTPStatus: http.StatusInternalServerError, Code: codeServerError, Message: "internal_error", Data: fmt.Sprint(err)}
}
