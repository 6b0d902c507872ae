package types

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ValidatorSignature is one validator endorsement as persisted in the relay ledger
type ValidatorSignature struct {
	ValidatorAddress string    `json:"validator_address"`
	Signature        string    `json:"signature"` // 0x-prefixed hex
	SignedAt         time.Time `json:"signed_at"`
}

func NewValidatorSignature(address string, sig []byte, signedAt time.Time) ValidatorSignature {
	return ValidatorSignature{
		ValidatorAddress: address,
		Signature:        "0x" + hex.EncodeToString(sig),
		SignedAt:         signedAt.UTC(),
	}
}

// Bytes decodes the hex signature
func (s ValidatorSignature) Bytes() ([]byte, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(s.Signature, "0x"))
	if err != nil {
		return nil, fmt.Errorf("decode signature of %s: %w", s.ValidatorAddress, err)
	}
	return raw, nil
}

func EncodeSignatures(sigs []ValidatorSignature) (string, error) {
	data, err := json.Marshal(sigs)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func DecodeSignatures(data string) ([]ValidatorSignature, error) {
	var sigs []ValidatorSignature
	if err := json.Unmarshal([]byte(data), &sigs); err != nil {
		return nil, fmt.Errorf("decode signatures: %w", err)
	}
	return sigs, nil
}
