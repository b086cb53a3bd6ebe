package types

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// CallType defines the purpose of a signed call.
type CallType byte

const (
	CallNativeTransfer     CallType = 0x01
	CallRegisterToken      CallType = 0x02
	CallCreateEthEscrow    CallType = 0x03
	CallCreateTokenEscrow  CallType = 0x04
	CallFulfillEthEscrow   CallType = 0x05
	CallFulfillTokenEscrow CallType = 0x06
	CallClientCommit       CallType = 0x07
	CallCancelEscrow       CallType = 0x08
	CallApproveCancelation CallType = 0x09
	CallDeclineCancelation CallType = 0x0a
	CallReclaimExpired     CallType = 0x0b

	// Development token operations backing the reference contracts.
	CallDeployToken       CallType = 0x10
	CallMintToken         CallType = 0x11
	CallApproveToken      CallType = 0x12
	CallTransferToken     CallType = 0x13
	CallSetApprovalForAll CallType = 0x14
)

var callTypeNames = map[CallType]string{
	CallNativeTransfer:     "native_transfer",
	CallRegisterToken:      "register_token_contract",
	CallCreateEthEscrow:    "create_eth_escrow",
	CallCreateTokenEscrow:  "create_token_escrow",
	CallFulfillEthEscrow:   "fulfill_eth_escrow",
	CallFulfillTokenEscrow: "fulfill_token_escrow",
	CallClientCommit:       "client_commit_escrow",
	CallCancelEscrow:       "cancel_escrow",
	CallApproveCancelation: "approve_cancelation_request",
	CallDeclineCancelation: "decline_cancelation_request",
	CallReclaimExpired:     "reclaim_expired_escrow",
	CallDeployToken:        "token_deploy",
	CallMintToken:          "token_mint",
	CallApproveToken:       "token_approve",
	CallTransferToken:      "token_transfer",
	CallSetApprovalForAll:  "token_set_approval_for_all",
}

func (t CallType) String() string {
	if name, ok := callTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("call(0x%02x)", byte(t))
}

// ParseCallType maps a call name as printed by String back to its type.
func ParseCallType(name string) (CallType, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	for t, n := range callTypeNames {
		if n == normalized {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown call type %q", name)
}

// Payable reports whether the call type may carry native value.
func (t CallType) Payable() bool {
	switch t {
	case CallNativeTransfer, CallCreateEthEscrow, CallFulfillEthEscrow:
		return true
	default:
		return false
	}
}

var ErrMissingSignature = errors.New("call: missing signature")

// Call is a signed request to mutate node state. Data carries the JSON
// payload matching Type.
type Call struct {
	Type  CallType        `json:"type"`
	Nonce uint64          `json:"nonce"`
	Value *big.Int        `json:"value,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`

	R *big.Int `json:"r"`
	S *big.Int `json:"s"`
	V *big.Int `json:"v"`

	from *common.Address
}

// NewCall builds an unsigned call with payload encoded as its data.
func NewCall(callType CallType, nonce uint64, value *big.Int, payload interface{}) (*Call, error) {
	call := &Call{Type: callType, Nonce: nonce, Value: value}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", callType, err)
		}
		call.Data = data
	}
	return call, nil
}

// DecodePayload unmarshals the call data into out.
func (c *Call) DecodePayload(out interface{}) error {
	if len(c.Data) == 0 {
		return fmt.Errorf("%s: missing payload", c.Type)
	}
	if err := json.Unmarshal(c.Data, out); err != nil {
		return fmt.Errorf("%s: decode payload: %w", c.Type, err)
	}
	return nil
}

// Hash is the SHA-256 of the canonical JSON of the signed fields.
func (c *Call) Hash() ([]byte, error) {
	callData := struct {
		Type  CallType
		Nonce uint64
		Value *big.Int
		Data  json.RawMessage
	}{c.Type, c.Nonce, c.Value, c.Data}

	b, err := json.Marshal(callData)
	if err != nil {
		return nil, err
	}
	hash := sha256.Sum256(b)
	return hash[:], nil
}

// Sign signs the call with privKey.
func (c *Call) Sign(privKey *ecdsa.PrivateKey) error {
	hash, err := c.Hash()
	if err != nil {
		return err
	}
	sig, err := crypto.Sign(hash, privKey)
	if err != nil {
		return err
	}
	c.R = new(big.Int).SetBytes(sig[:32])
	c.S = new(big.Int).SetBytes(sig[32:64])
	c.V = new(big.Int).SetBytes([]byte{sig[64] + 27})
	c.from = nil
	return nil
}

// From recovers the sender address from the signature.
func (c *Call) From() (common.Address, error) {
	if c.from != nil {
		return *c.from, nil
	}
	if c.R == nil || c.S == nil || c.V == nil {
		return common.Address{}, ErrMissingSignature
	}
	if c.R.BitLen() > 256 || c.S.BitLen() > 256 || !c.V.IsUint64() || c.V.Uint64() < 27 || c.V.Uint64() > 28 {
		return common.Address{}, fmt.Errorf("call: malformed signature")
	}
	hash, err := c.Hash()
	if err != nil {
		return common.Address{}, err
	}
	sig := make([]byte, 65)
	c.R.FillBytes(sig[:32])
	c.S.FillBytes(sig[32:64])
	sig[64] = byte(c.V.Uint64() - 27)
	pubKey, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return common.Address{}, err
	}
	from := crypto.PubkeyToAddress(*pubKey)
	c.from = &from
	return from, nil
}
