package types

import "fmt"

// Chain identifies a ledger the bridge can reach, the string form is what the relay ledger stores
type Chain string

const (
	ChainSolana   Chain = "Solana"
	ChainEthereum Chain = "Ethereum"
	ChainSui      Chain = "Sui"
)

func (c Chain) String() string {
	return string(c)
}

// ParseChain accepts the stored form of a chain
func ParseChain(s string) (Chain, error) {
	switch Chain(s) {
	case ChainSolana, ChainEthereum, ChainSui:
		return Chain(s), nil
	}
	return "", fmt.Errorf("unknown chain %q", s)
}

// ChainFromDestination maps the destination_chain byte of a lock to a chain
func ChainFromDestination(id uint8) (Chain, error) {
	switch id {
	case 1:
		return ChainEthereum, nil
	case 2:
		return ChainSui, nil
	}
	return "", fmt.Errorf("unknown destination chain: %d", id)
}

// DestinationID is the inverse of ChainFromDestination
func DestinationID(c Chain) (uint8, error) {
	switch c {
	case ChainEthereum:
		return 1, nil
	case ChainSui:
		return 2, nil
	}
	return 0, fmt.Errorf("chain %s is not a lock destination", c)
}
