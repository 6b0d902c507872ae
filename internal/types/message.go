package types

import (
	"crypto/sha256"
	"encoding/binary"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var unlockPrefix = []byte("unlock:")

// UnlockMessage is the digest validators sign for a vault release:
// sha256("unlock:" || nonce_le_u64 || recipient || amount_le_u64)
func UnlockMessage(nonce uint64, recipient [32]byte, amount uint64) []byte {
	buf := make([]byte, 0, len(unlockPrefix)+8+32+8)
	buf = append(buf, unlockPrefix...)
	buf = binary.LittleEndian.AppendUint64(buf, nonce)
	buf = append(buf, recipient[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, amount)
	sum := sha256.Sum256(buf)
	return sum[:]
}

// MintMessage is the digest validators sign for an EVM mint, matching
// keccak256(abi.encodePacked(recipient, uint256 amount, uint64 nonce, string originSender))
func MintMessage(recipient common.Address, amount *big.Int, nonce uint64, originSender string) []byte {
	buf := make([]byte, 0, 20+32+8+len(originSender))
	buf = append(buf, recipient.Bytes()...)
	buf = append(buf, common.LeftPadBytes(amount.Bytes(), 32)...)
	buf = binary.BigEndian.AppendUint64(buf, nonce)
	buf = append(buf, []byte(originSender)...)
	return crypto.Keccak256(buf)
}
