package vault

import (
	"bytes"
	"encoding/binary"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

const (
	BridgeConfigLen   = 256
	LockRecordLen     = 131
	TokenAccountLen   = 165
	MaxValidators     = 5
	MaxFeeBasisPoints = 10000
	MaxDestination    = 10
)

type LockStatus uint8

const (
	LockPending LockStatus = iota
	LockCompleted
	LockCancelled
)

func (s LockStatus) String() string {
	switch s {
	case LockPending:
		return "Pending"
	case LockCompleted:
		return "Completed"
	case LockCancelled:
		return "Cancelled"
	}
	return fmt.Sprintf("LockStatus(%d)", uint8(s))
}

// BridgeConfig is the single config account of a deployed vault
type BridgeConfig struct {
	Admin          solana.PublicKey
	VaultBump      uint8
	Relayer        solana.PublicKey
	FeeBasisPoints uint16
	IsPaused       bool
	TotalLocked    uint64
	Nonce          uint64
	Validators     []solana.PublicKey
	Threshold      uint8
}

func (c *BridgeConfig) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := writePublicKey(enc, c.Admin); err != nil {
		return err
	}
	if err := enc.WriteUint8(c.VaultBump); err != nil {
		return err
	}
	if err := writePublicKey(enc, c.Relayer); err != nil {
		return err
	}
	if err := enc.WriteUint16(c.FeeBasisPoints, binary.LittleEndian); err != nil {
		return err
	}
	if err := enc.WriteBool(c.IsPaused); err != nil {
		return err
	}
	if err := enc.WriteUint64(c.TotalLocked, binary.LittleEndian); err != nil {
		return err
	}
	if err := enc.WriteUint64(c.Nonce, binary.LittleEndian); err != nil {
		return err
	}
	if err := enc.WriteUint32(uint32(len(c.Validators)), binary.LittleEndian); err != nil {
		return err
	}
	for _, v := range c.Validators {
		if err := writePublicKey(enc, v); err != nil {
			return err
		}
	}
	return enc.WriteUint8(c.Threshold)
}

func (c *BridgeConfig) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	if c.Admin, err = readPublicKey(dec); err != nil {
		return err
	}
	if c.VaultBump, err = dec.ReadUint8(); err != nil {
		return err
	}
	if c.Relayer, err = readPublicKey(dec); err != nil {
		return err
	}
	if c.FeeBasisPoints, err = dec.ReadUint16(binary.LittleEndian); err != nil {
		return err
	}
	if c.IsPaused, err = dec.ReadBool(); err != nil {
		return err
	}
	if c.TotalLocked, err = dec.ReadUint64(binary.LittleEndian); err != nil {
		return err
	}
	if c.Nonce, err = dec.ReadUint64(binary.LittleEndian); err != nil {
		return err
	}
	count, err := dec.ReadUint32(binary.LittleEndian)
	if err != nil {
		return err
	}
	if count > MaxValidators {
		return fmt.Errorf("validator count %d exceeds %d", count, MaxValidators)
	}
	c.Validators = make([]solana.PublicKey, count)
	for i := range c.Validators {
		if c.Validators[i], err = readPublicKey(dec); err != nil {
			return err
		}
	}
	c.Threshold, err = dec.ReadUint8()
	return err
}

// Pack encodes the config into its fixed size account data
func (c *BridgeConfig) Pack() ([]byte, error) {
	return packPadded(c, BridgeConfigLen)
}

func UnpackBridgeConfig(data []byte) (*BridgeConfig, error) {
	c := new(BridgeConfig)
	if err := c.UnmarshalWithDecoder(bin.NewBorshDecoder(data)); err != nil {
		return nil, fmt.Errorf("decode bridge config: %w", err)
	}
	return c, nil
}

func (c *BridgeConfig) validatorIndex(key solana.PublicKey) int {
	for i, v := range c.Validators {
		if v.Equals(key) {
			return i
		}
	}
	return -1
}

// LockRecord is created per lock at FindLockRecordAddress(owner, nonce)
type LockRecord struct {
	Owner              solana.PublicKey
	LockedAmount       uint64
	TokenMint          solana.PublicKey
	DestinationChain   uint8
	DestinationAddress [32]byte
	Status             LockStatus
	Nonce              uint64
	Timestamp          int64
	Unlocked           bool
}

func (r *LockRecord) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := writePublicKey(enc, r.Owner); err != nil {
		return err
	}
	if err := enc.WriteUint64(r.LockedAmount, binary.LittleEndian); err != nil {
		return err
	}
	if err := writePublicKey(enc, r.TokenMint); err != nil {
		return err
	}
	if err := enc.WriteUint8(r.DestinationChain); err != nil {
		return err
	}
	if err := enc.WriteBytes(r.DestinationAddress[:], false); err != nil {
		return err
	}
	if err := enc.WriteUint8(uint8(r.Status)); err != nil {
		return err
	}
	if err := enc.WriteUint64(r.Nonce, binary.LittleEndian); err != nil {
		return err
	}
	if err := enc.WriteInt64(r.Timestamp, binary.LittleEndian); err != nil {
		return err
	}
	return enc.WriteBool(r.Unlocked)
}

func (r *LockRecord) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	if r.Owner, err = readPublicKey(dec); err != nil {
		return err
	}
	if r.LockedAmount, err = dec.ReadUint64(binary.LittleEndian); err != nil {
		return err
	}
	if r.TokenMint, err = readPublicKey(dec); err != nil {
		return err
	}
	if r.DestinationChain, err = dec.ReadUint8(); err != nil {
		return err
	}
	dest, err := dec.ReadNBytes(32)
	if err != nil {
		return err
	}
	copy(r.DestinationAddress[:], dest)
	status, err := dec.ReadUint8()
	if err != nil {
		return err
	}
	if status > uint8(LockCancelled) {
		return fmt.Errorf("invalid lock status %d", status)
	}
	r.Status = LockStatus(status)
	if r.Nonce, err = dec.ReadUint64(binary.LittleEndian); err != nil {
		return err
	}
	if r.Timestamp, err = dec.ReadInt64(binary.LittleEndian); err != nil {
		return err
	}
	r.Unlocked, err = dec.ReadBool()
	return err
}

func (r *LockRecord) Pack() ([]byte, error) {
	return packPadded(r, LockRecordLen)
}

func UnpackLockRecord(data []byte) (*LockRecord, error) {
	r := new(LockRecord)
	if err := r.UnmarshalWithDecoder(bin.NewBorshDecoder(data)); err != nil {
		return nil, fmt.Errorf("decode lock record: %w", err)
	}
	return r, nil
}

// TokenAccount is the leading part of the spl token account layout
type TokenAccount struct {
	Mint   solana.PublicKey
	Owner  solana.PublicKey
	Amount uint64
}

func (a *TokenAccount) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := writePublicKey(enc, a.Mint); err != nil {
		return err
	}
	if err := writePublicKey(enc, a.Owner); err != nil {
		return err
	}
	return enc.WriteUint64(a.Amount, binary.LittleEndian)
}

func (a *TokenAccount) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	if a.Mint, err = readPublicKey(dec); err != nil {
		return err
	}
	if a.Owner, err = readPublicKey(dec); err != nil {
		return err
	}
	a.Amount, err = dec.ReadUint64(binary.LittleEndian)
	return err
}

func (a *TokenAccount) Pack() ([]byte, error) {
	return packPadded(a, TokenAccountLen)
}

func UnpackTokenAccount(data []byte) (*TokenAccount, error) {
	a := new(TokenAccount)
	if err := a.UnmarshalWithDecoder(bin.NewBorshDecoder(data)); err != nil {
		return nil, fmt.Errorf("decode token account: %w", err)
	}
	return a, nil
}

type marshaler interface {
	MarshalWithEncoder(enc *bin.Encoder) error
}

func packPadded(m marshaler, size int) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := m.MarshalWithEncoder(bin.NewBorshEncoder(buf)); err != nil {
		return nil, err
	}
	if buf.Len() > size {
		return nil, fmt.Errorf("encoded size %d exceeds account size %d", buf.Len(), size)
	}
	data := make([]byte, size)
	copy(data, buf.Bytes())
	return data, nil
}

func writePublicKey(enc *bin.Encoder, key solana.PublicKey) error {
	return enc.WriteBytes(key[:], false)
}

func readPublicKey(dec *bin.Decoder) (solana.PublicKey, error) {
	raw, err := dec.ReadNBytes(solana.PublicKeyLength)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return solana.PublicKeyFromBytes(raw), nil
}
