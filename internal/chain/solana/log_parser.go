package solana

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/goatnetwork/bridge-relayer/internal/types"
	"github.com/goatnetwork/bridge-relayer/internal/vault"
)

const lockEventMarker = "EVENT: TokensLocked"

type lockFields struct {
	user        string
	amount      *uint64
	destChain   *uint8
	destAddress []byte
}

func (f *lockFields) complete() bool {
	return f.user != "" && f.amount != nil && f.destChain != nil && f.destAddress != nil
}

// ParseLockEvent extracts the TokensLocked block from program logs.
// nil is returned when the logs hold no complete block.
func ParseLockEvent(logs []string, txHash string) (*types.BridgeEvent, error) {
	var (
		inEvent bool
		fields  lockFields
	)
	for _, line := range logs {
		line = strings.TrimSpace(strings.TrimPrefix(line, vault.LogPrefix))
		if strings.Contains(line, lockEventMarker) {
			inEvent = true
			fields = lockFields{}
			continue
		}
		if !inEvent {
			continue
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "user":
			fields.user = value
		case "amount":
			if v, err := strconv.ParseUint(value, 10, 64); err == nil {
				fields.amount = &v
			}
		case "destination_chain":
			if v, err := strconv.ParseUint(value, 10, 8); err == nil {
				d := uint8(v)
				fields.destChain = &d
			}
		case "destination_address":
			if b, err := vault.ParseByteList(value); err == nil {
				fields.destAddress = b
			}
		case "nonce":
			nonce, err := strconv.ParseUint(value, 10, 64)
			if err != nil || !fields.complete() {
				inEvent = false
				continue
			}
			return buildLockEvent(fields, nonce, txHash)
		}
	}
	return nil, nil
}

func buildLockEvent(f lockFields, nonce uint64, txHash string) (*types.BridgeEvent, error) {
	toChain, err := types.ChainFromDestination(*f.destChain)
	if err != nil {
		return nil, err
	}
	if len(f.destAddress) != 32 {
		return nil, fmt.Errorf("destination address has %d bytes", len(f.destAddress))
	}
	var dest [32]byte
	copy(dest[:], f.destAddress)

	return &types.BridgeEvent{
		Kind:      types.TokensLocked,
		FromChain: types.ChainSolana,
		ToChain:   toChain,
		Sender:    f.user,
		Recipient: types.FormatRecipient(toChain, dest),
		Amount:    *f.amount,
		Nonce:     nonce,
		TxHash:    txHash,
	}, nil
}
