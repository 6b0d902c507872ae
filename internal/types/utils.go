package types

import (
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// EthAddressToBytes32 left pads an EVM address into the 32-byte destination form
func EthAddressToBytes32(addr common.Address) [32]byte {
	var out [32]byte
	copy(out[12:], addr.Bytes())
	return out
}

// Bytes32ToEthAddress takes the low 20 bytes of a destination address
func Bytes32ToEthAddress(b [32]byte) common.Address {
	return common.BytesToAddress(b[12:])
}

// FormatRecipient renders a 32-byte destination address for the given chain
func FormatRecipient(chain Chain, dest [32]byte) string {
	if chain == ChainEthereum {
		return Bytes32ToEthAddress(dest).Hex()
	}
	return hex.EncodeToString(dest[:])
}

// ParseEthRecipient requires a well formed 0x address
func ParseEthRecipient(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid ethereum recipient %q", s)
	}
	return common.HexToAddress(s), nil
}
