package vault

import (
	"bytes"
	"encoding/binary"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

type InstructionTag uint8

const (
	InstructionInitialize InstructionTag = iota
	InstructionLockTokens
	InstructionUnlockTokens
	InstructionUpdateConfig
	InstructionPause
	InstructionUnpause
)

var instructionNames = [...]string{"Initialize", "LockTokens", "UnlockTokens", "UpdateConfig", "Pause", "Unpause"}

func (t InstructionTag) String() string {
	if int(t) < len(instructionNames) {
		return instructionNames[t]
	}
	return fmt.Sprintf("InstructionTag(%d)", uint8(t))
}

type InitializeArgs struct {
	Admin          solana.PublicKey
	Relayer        solana.PublicKey
	FeeBasisPoints uint16
	Validators     []solana.PublicKey
	Threshold      uint8
}

type LockArgs struct {
	Amount             uint64
	DestinationChain   uint8
	DestinationAddress [32]byte
}

type UnlockArgs struct {
	Nonce      uint64
	Signatures []solana.Signature
}

type UpdateConfigArgs struct {
	NewAdmin   *solana.PublicKey
	NewRelayer *solana.PublicKey
	NewFee     *uint16
}

// Instruction is the decoded payload, exactly one args field is set for tags that carry one
type Instruction struct {
	Tag          InstructionTag
	Initialize   *InitializeArgs
	Lock         *LockArgs
	Unlock       *UnlockArgs
	UpdateConfig *UpdateConfigArgs
}

func (ix *Instruction) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := enc.WriteUint8(uint8(ix.Tag)); err != nil {
		return err
	}
	switch ix.Tag {
	case InstructionInitialize:
		a := ix.Initialize
		if a == nil {
			return fmt.Errorf("initialize args missing")
		}
		if err := writePublicKey(enc, a.Admin); err != nil {
			return err
		}
		if err := writePublicKey(enc, a.Relayer); err != nil {
			return err
		}
		if err := enc.WriteUint16(a.FeeBasisPoints, binary.LittleEndian); err != nil {
			return err
		}
		if err := enc.WriteUint32(uint32(len(a.Validators)), binary.LittleEndian); err != nil {
			return err
		}
		for _, v := range a.Validators {
			if err := writePublicKey(enc, v); err != nil {
				return err
			}
		}
		return enc.WriteUint8(a.Threshold)
	case InstructionLockTokens:
		a := ix.Lock
		if a == nil {
			return fmt.Errorf("lock args missing")
		}
		if err := enc.WriteUint64(a.Amount, binary.LittleEndian); err != nil {
			return err
		}
		if err := enc.WriteUint8(a.DestinationChain); err != nil {
			return err
		}
		return enc.WriteBytes(a.DestinationAddress[:], false)
	case InstructionUnlockTokens:
		a := ix.Unlock
		if a == nil {
			return fmt.Errorf("unlock args missing")
		}
		if err := enc.WriteUint64(a.Nonce, binary.LittleEndian); err != nil {
			return err
		}
		if err := enc.WriteUint32(uint32(len(a.Signatures)), binary.LittleEndian); err != nil {
			return err
		}
		for _, sig := range a.Signatures {
			if err := enc.WriteBytes(sig[:], false); err != nil {
				return err
			}
		}
		return nil
	case InstructionUpdateConfig:
		a := ix.UpdateConfig
		if a == nil {
			return fmt.Errorf("update config args missing")
		}
		if err := writeOptionalKey(enc, a.NewAdmin); err != nil {
			return err
		}
		if err := writeOptionalKey(enc, a.NewRelayer); err != nil {
			return err
		}
		if a.NewFee == nil {
			return enc.WriteUint8(0)
		}
		if err := enc.WriteUint8(1); err != nil {
			return err
		}
		return enc.WriteUint16(*a.NewFee, binary.LittleEndian)
	case InstructionPause, InstructionUnpause:
		return nil
	}
	return fmt.Errorf("unknown instruction tag %d", ix.Tag)
}

func (ix *Instruction) UnmarshalWithDecoder(dec *bin.Decoder) error {
	tag, err := dec.ReadUint8()
	if err != nil {
		return err
	}
	ix.Tag = InstructionTag(tag)
	switch ix.Tag {
	case InstructionInitialize:
		a := new(InitializeArgs)
		if a.Admin, err = readPublicKey(dec); err != nil {
			return err
		}
		if a.Relayer, err = readPublicKey(dec); err != nil {
			return err
		}
		if a.FeeBasisPoints, err = dec.ReadUint16(binary.LittleEndian); err != nil {
			return err
		}
		count, err := dec.ReadUint32(binary.LittleEndian)
		if err != nil {
			return err
		}
		// count is bounded by the payload, each key is 32 bytes
		if int(count)*solana.PublicKeyLength > dec.Remaining() {
			return fmt.Errorf("validator count %d exceeds payload", count)
		}
		a.Validators = make([]solana.PublicKey, count)
		for i := range a.Validators {
			if a.Validators[i], err = readPublicKey(dec); err != nil {
				return err
			}
		}
		if a.Threshold, err = dec.ReadUint8(); err != nil {
			return err
		}
		ix.Initialize = a
	case InstructionLockTokens:
		a := new(LockArgs)
		if a.Amount, err = dec.ReadUint64(binary.LittleEndian); err != nil {
			return err
		}
		if a.DestinationChain, err = dec.ReadUint8(); err != nil {
			return err
		}
		dest, err := dec.ReadNBytes(32)
		if err != nil {
			return err
		}
		copy(a.DestinationAddress[:], dest)
		ix.Lock = a
	case InstructionUnlockTokens:
		a := new(UnlockArgs)
		if a.Nonce, err = dec.ReadUint64(binary.LittleEndian); err != nil {
			return err
		}
		count, err := dec.ReadUint32(binary.LittleEndian)
		if err != nil {
			return err
		}
		if int(count)*64 > dec.Remaining() {
			return fmt.Errorf("signature count %d exceeds payload", count)
		}
		a.Signatures = make([]solana.Signature, count)
		for i := range a.Signatures {
			raw, err := dec.ReadNBytes(64)
			if err != nil {
				return err
			}
			copy(a.Signatures[i][:], raw)
		}
		ix.Unlock = a
	case InstructionUpdateConfig:
		a := new(UpdateConfigArgs)
		if a.NewAdmin, err = readOptionalKey(dec); err != nil {
			return err
		}
		if a.NewRelayer, err = readOptionalKey(dec); err != nil {
			return err
		}
		some, err := readOptionTag(dec)
		if err != nil {
			return err
		}
		if some {
			fee, err := dec.ReadUint16(binary.LittleEndian)
			if err != nil {
				return err
			}
			a.NewFee = &fee
		}
		ix.UpdateConfig = a
	case InstructionPause, InstructionUnpause:
	default:
		return fmt.Errorf("unknown instruction tag %d", tag)
	}
	return nil
}

func (ix *Instruction) Encode() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := ix.MarshalWithEncoder(bin.NewBorshEncoder(buf)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeInstruction(data []byte) (*Instruction, error) {
	ix := new(Instruction)
	if err := ix.UnmarshalWithDecoder(bin.NewBorshDecoder(data)); err != nil {
		return nil, err
	}
	return ix, nil
}

func writeOptionalKey(enc *bin.Encoder, key *solana.PublicKey) error {
	if key == nil {
		return enc.WriteUint8(0)
	}
	if err := enc.WriteUint8(1); err != nil {
		return err
	}
	return writePublicKey(enc, *key)
}

func readOptionalKey(dec *bin.Decoder) (*solana.PublicKey, error) {
	some, err := readOptionTag(dec)
	if err != nil || !some {
		return nil, err
	}
	key, err := readPublicKey(dec)
	if err != nil {
		return nil, err
	}
	return &key, nil
}

func readOptionTag(dec *bin.Decoder) (bool, error) {
	tag, err := dec.ReadUint8()
	if err != nil {
		return false, err
	}
	switch tag {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, fmt.Errorf("invalid option tag %d", tag)
}

func newInstruction(programID solana.PublicKey, accounts solana.AccountMetaSlice, ix *Instruction) (*solana.GenericInstruction, error) {
	data, err := ix.Encode()
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(programID, accounts, data), nil
}

// NewInitializeInstruction builds Initialize, admin pays for and signs the config creation
func NewInitializeInstruction(programID, configKey solana.PublicKey, args InitializeArgs) (*solana.GenericInstruction, error) {
	vaultPda, _, err := FindVaultAddress(configKey, programID)
	if err != nil {
		return nil, err
	}
	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(args.Admin, true, true),
		solana.NewAccountMeta(configKey, true, false),
		solana.NewAccountMeta(vaultPda, false, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
		solana.NewAccountMeta(solana.SysVarRentPubkey, false, false),
	}
	return newInstruction(programID, accounts, &Instruction{Tag: InstructionInitialize, Initialize: &args})
}

// LockAccounts names the accounts of a lock, Nonce is the config nonce the lock will be assigned
type LockAccounts struct {
	User       solana.PublicKey
	UserToken  solana.PublicKey
	VaultToken solana.PublicKey
	Config     solana.PublicKey
	Mint       solana.PublicKey
	Nonce      uint64
}

func NewLockTokensInstruction(programID solana.PublicKey, acc LockAccounts, args LockArgs) (*solana.GenericInstruction, error) {
	record, _, err := FindLockRecordAddress(acc.User, acc.Nonce, programID)
	if err != nil {
		return nil, err
	}
	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(acc.User, true, true),
		solana.NewAccountMeta(acc.UserToken, true, false),
		solana.NewAccountMeta(acc.VaultToken, true, false),
		solana.NewAccountMeta(record, true, false),
		solana.NewAccountMeta(acc.Config, true, false),
		solana.NewAccountMeta(acc.Mint, false, false),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
		solana.NewAccountMeta(solana.SysVarRentPubkey, false, false),
		solana.NewAccountMeta(solana.SysVarClockPubkey, false, false),
	}
	return newInstruction(programID, accounts, &Instruction{Tag: InstructionLockTokens, Lock: &args})
}

type UnlockAccounts struct {
	Relayer    solana.PublicKey
	User       solana.PublicKey
	UserToken  solana.PublicKey
	VaultToken solana.PublicKey
	Config     solana.PublicKey
}

func NewUnlockTokensInstruction(programID solana.PublicKey, acc UnlockAccounts, args UnlockArgs) (*solana.GenericInstruction, error) {
	vaultPda, _, err := FindVaultAddress(acc.Config, programID)
	if err != nil {
		return nil, err
	}
	record, _, err := FindLockRecordAddress(acc.User, args.Nonce, programID)
	if err != nil {
		return nil, err
	}
	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(acc.Relayer, false, true),
		solana.NewAccountMeta(acc.User, false, false),
		solana.NewAccountMeta(acc.UserToken, true, false),
		solana.NewAccountMeta(acc.VaultToken, true, false),
		solana.NewAccountMeta(vaultPda, false, false),
		solana.NewAccountMeta(record, true, false),
		solana.NewAccountMeta(acc.Config, true, false),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
	}
	return newInstruction(programID, accounts, &Instruction{Tag: InstructionUnlockTokens, Unlock: &args})
}

func NewUpdateConfigInstruction(programID, admin, configKey solana.PublicKey, args UpdateConfigArgs) (*solana.GenericInstruction, error) {
	return newInstruction(programID, adminAccounts(admin, configKey), &Instruction{Tag: InstructionUpdateConfig, UpdateConfig: &args})
}

func NewPauseInstruction(programID, admin, configKey solana.PublicKey) (*solana.GenericInstruction, error) {
	return newInstruction(programID, adminAccounts(admin, configKey), &Instruction{Tag: InstructionPause})
}

func NewUnpauseInstruction(programID, admin, configKey solana.PublicKey) (*solana.GenericInstruction, error) {
	return newInstruction(programID, adminAccounts(admin, configKey), &Instruction{Tag: InstructionUnpause})
}

func adminAccounts(admin, configKey solana.PublicKey) solana.AccountMetaSlice {
	return solana.AccountMetaSlice{
		solana.NewAccountMeta(admin, false, true),
		solana.NewAccountMeta(configKey, true, false),
	}
}
