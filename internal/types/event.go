package types

import (
	"errors"
	"fmt"
	"math"
)

type EventKind string

const (
	// TokensLocked is emitted by the vault, ready to mint on the destination chain
	TokensLocked EventKind = "TokensLocked"
	// TokensBurned is emitted by the EVM bridge, ready to unlock on the vault
	TokensBurned EventKind = "TokensBurned"
)

// ErrInvalidEvent marks an event that can never be recorded, as opposed to a storage failure
var ErrInvalidEvent = errors.New("invalid bridge event")

// MaxLedgerValue bounds nonce and amount, the ledger stores them in signed 64-bit columns
const MaxLedgerValue = math.MaxInt64

// BridgeEvent is the chain independent form of a lock or burn
type BridgeEvent struct {
	Kind      EventKind `json:"kind"`
	FromChain Chain     `json:"from_chain"`
	ToChain   Chain     `json:"to_chain"`
	Sender    string    `json:"sender"`
	Recipient string    `json:"recipient"`
	Amount    uint64    `json:"amount"`
	Nonce     uint64    `json:"nonce"`
	TxHash    string    `json:"tx_hash"`
}

func (e BridgeEvent) Validate() error {
	if e.Kind != TokensLocked && e.Kind != TokensBurned {
		return fmt.Errorf("%w: unknown event kind %q", ErrInvalidEvent, e.Kind)
	}
	if e.FromChain == e.ToChain {
		return fmt.Errorf("%w: event from %s to itself", ErrInvalidEvent, e.FromChain)
	}
	if e.TxHash == "" {
		return fmt.Errorf("%w: event nonce %d has no tx hash", ErrInvalidEvent, e.Nonce)
	}
	if e.Recipient == "" {
		return fmt.Errorf("%w: event nonce %d has no recipient", ErrInvalidEvent, e.Nonce)
	}
	if e.Nonce > MaxLedgerValue {
		return fmt.Errorf("%w: nonce %d exceeds the ledger limit %d", ErrInvalidEvent, e.Nonce, uint64(MaxLedgerValue))
	}
	if e.Amount > MaxLedgerValue {
		return fmt.Errorf("%w: event nonce %d amount %d exceeds the ledger limit %d", ErrInvalidEvent, e.Nonce, e.Amount, uint64(MaxLedgerValue))
	}
	return nil
}

func (e BridgeEvent) String() string {
	return fmt.Sprintf("%s{nonce=%d, amount=%d, %s->%s, tx=%s}", e.Kind, e.Nonce, e.Amount, e.FromChain, e.ToChain, e.TxHash)
}
