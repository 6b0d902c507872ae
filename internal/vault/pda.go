package vault

import (
	"encoding/binary"

	"github.com/gagliardetto/solana-go"
)

var (
	VaultSeed      = []byte("vault")
	LockRecordSeed = []byte("bridge")
)

// FindVaultAddress derives the custody authority of a bridge config
func FindVaultAddress(configKey, programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{VaultSeed, configKey.Bytes()}, programID)
}

// FindLockRecordAddress derives the record of the lock made by owner with nonce
func FindLockRecordAddress(owner solana.PublicKey, nonce uint64, programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	nonceLe := binary.LittleEndian.AppendUint64(nil, nonce)
	return solana.FindProgramAddress([][]byte{LockRecordSeed, owner.Bytes(), nonceLe}, programID)
}

// FindTokenAccountAddress is the associated token account of owner for mint
func FindTokenAccountAddress(owner, mint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	return addr, err
}
