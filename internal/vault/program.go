package vault

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/goatnetwork/bridge-relayer/internal/types"
	"github.com/kelindar/bitmap"
	log "github.com/sirupsen/logrus"
)

const LogPrefix = "Program log: "

// Event is a typed notification emitted next to the textual log block
type Event interface {
	EventName() string
}

type TokensLocked struct {
	User               solana.PublicKey
	TokenMint          solana.PublicKey
	Amount             uint64
	DestinationChain   uint8
	DestinationAddress [32]byte
	Nonce              uint64
	Timestamp          int64
}

func (TokensLocked) EventName() string { return "TokensLocked" }

type TokensUnlocked struct {
	User   solana.PublicKey
	Amount uint64
	Nonce  uint64
}

func (TokensUnlocked) EventName() string { return "TokensUnlocked" }

type Result struct {
	Logs   []string
	Events []Event
}

type Option func(*Program)

func WithClock(now func() time.Time) Option {
	return func(p *Program) {
		p.now = now
	}
}

// Program executes vault instructions against an AccountStore.
// Instructions run one at a time and commit all of their writes or none.
type Program struct {
	mu        sync.Mutex
	programID solana.PublicKey
	store     AccountStore
	now       func() time.Time
}

func NewProgram(programID solana.PublicKey, store AccountStore, opts ...Option) *Program {
	p := &Program{
		programID: programID,
		store:     store,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Program) ProgramID() solana.PublicKey {
	return p.programID
}

func (p *Program) Process(ix solana.Instruction) (*Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	res := &Result{}
	if !ix.ProgramID().Equals(p.programID) {
		return res, newError(CodeIncorrectOwner, "instruction for program %s", ix.ProgramID())
	}
	data, err := ix.Data()
	if err != nil {
		return res, newError(CodeInvalidInstructionData, "%v", err)
	}
	decoded, err := DecodeInstruction(data)
	if err != nil {
		return res, newError(CodeInvalidInstructionData, "%v", err)
	}

	e := &execution{
		program:  p,
		txn:      newAccountTxn(p.store, ix.Accounts()),
		accounts: ix.Accounts(),
		res:      res,
	}
	e.msg("Instruction: %s", decoded.Tag)

	switch decoded.Tag {
	case InstructionInitialize:
		err = e.initialize(decoded.Initialize)
	case InstructionLockTokens:
		err = e.lockTokens(decoded.Lock)
	case InstructionUnlockTokens:
		err = e.unlockTokens(decoded.Unlock)
	case InstructionUpdateConfig:
		err = e.updateConfig(decoded.UpdateConfig)
	case InstructionPause:
		err = e.setPaused(true)
	case InstructionUnpause:
		err = e.setPaused(false)
	}
	if err != nil {
		res.Events = nil
		log.Debugf("Vault instruction %s failed: %v", decoded.Tag, err)
		return res, err
	}
	if err := e.txn.commit(); err != nil {
		res.Events = nil
		return res, fmt.Errorf("commit accounts: %w", err)
	}
	return res, nil
}

// CreateTokenAccount seeds a token account, used for devnet fixtures and tests
func (p *Program) CreateTokenAccount(key, mint, owner solana.PublicKey, amount uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	data, err := (&TokenAccount{Mint: mint, Owner: owner, Amount: amount}).Pack()
	if err != nil {
		return err
	}
	return p.store.Commit(map[solana.PublicKey]Account{key: {Owner: solana.TokenProgramID, Data: data}})
}

func (p *Program) GetConfig(configKey solana.PublicKey) (*BridgeConfig, error) {
	acc, ok := p.store.GetAccount(configKey)
	if !ok || !acc.Owner.Equals(p.programID) {
		return nil, ErrIncorrectOwner
	}
	return UnpackBridgeConfig(acc.Data)
}

func (p *Program) GetLockRecord(owner solana.PublicKey, nonce uint64) (*LockRecord, error) {
	key, _, err := FindLockRecordAddress(owner, nonce, p.programID)
	if err != nil {
		return nil, err
	}
	acc, ok := p.store.GetAccount(key)
	if !ok || !acc.Owner.Equals(p.programID) {
		return nil, ErrInvalidNonce
	}
	return UnpackLockRecord(acc.Data)
}

func (p *Program) GetTokenAccount(key solana.PublicKey) (*TokenAccount, error) {
	acc, ok := p.store.GetAccount(key)
	if !ok || !acc.Owner.Equals(solana.TokenProgramID) {
		return nil, ErrIncorrectOwner
	}
	return UnpackTokenAccount(acc.Data)
}

type execution struct {
	program  *Program
	txn      *accountTxn
	accounts []*solana.AccountMeta
	res      *Result
}

func (e *execution) msg(format string, args ...interface{}) {
	e.res.Logs = append(e.res.Logs, LogPrefix+fmt.Sprintf(format, args...))
}

func (e *execution) account(i int) (*solana.AccountMeta, error) {
	if i >= len(e.accounts) || e.accounts[i] == nil {
		return nil, newError(CodeInvalidArgument, "missing account %d", i)
	}
	return e.txn.metas[e.accounts[i].PublicKey], nil
}

func (e *execution) requireAccounts(n int) ([]*solana.AccountMeta, error) {
	out := make([]*solana.AccountMeta, n)
	for i := 0; i < n; i++ {
		meta, err := e.account(i)
		if err != nil {
			return nil, err
		}
		out[i] = meta
	}
	return out, nil
}

// loadConfig reads the config owned by this program
func (e *execution) loadConfig(key solana.PublicKey) (*BridgeConfig, error) {
	acc := e.txn.get(key)
	if !acc.Owner.Equals(e.program.programID) {
		e.msg("Bridge config has incorrect owner")
		return nil, ErrIncorrectOwner
	}
	cfg, err := UnpackBridgeConfig(acc.Data)
	if err != nil {
		return nil, newError(CodeInvalidArgument, "%v", err)
	}
	return cfg, nil
}

func (e *execution) storeConfig(key solana.PublicKey, cfg *BridgeConfig) error {
	data, err := cfg.Pack()
	if err != nil {
		return newError(CodeInvalidArgument, "%v", err)
	}
	return e.txn.put(key, Account{Owner: e.program.programID, Data: data})
}

func (e *execution) loadTokenAccount(key solana.PublicKey) (*TokenAccount, error) {
	acc := e.txn.get(key)
	if !acc.Owner.Equals(solana.TokenProgramID) {
		return nil, newError(CodeIncorrectOwner, "token account %s", key)
	}
	tok, err := UnpackTokenAccount(acc.Data)
	if err != nil {
		return nil, newError(CodeInvalidArgument, "%v", err)
	}
	return tok, nil
}

func (e *execution) storeTokenAccount(key solana.PublicKey, tok *TokenAccount) error {
	acc := e.txn.get(key)
	data, err := tok.Pack()
	if err != nil {
		return newError(CodeInvalidArgument, "%v", err)
	}
	// keep the trailing spl fields untouched
	if len(acc.Data) >= TokenAccountLen {
		copy(acc.Data, data[:72])
		data = acc.Data
	}
	return e.txn.put(key, Account{Owner: solana.TokenProgramID, Data: data})
}

// transfer moves amount between two token accounts of the same mint
func (e *execution) transfer(tokenProgram, from, to, authority solana.PublicKey, signed bool, amount uint64) error {
	if !tokenProgram.Equals(solana.TokenProgramID) {
		return newError(CodeIncorrectOwner, "token program %s", tokenProgram)
	}
	if !signed {
		return newError(CodeMissingRequiredSignature, "transfer authority %s", authority)
	}
	src, err := e.loadTokenAccount(from)
	if err != nil {
		return err
	}
	dst, err := e.loadTokenAccount(to)
	if err != nil {
		return err
	}
	if !src.Owner.Equals(authority) {
		return newError(CodeUnauthorized, "token account %s is not owned by %s", from, authority)
	}
	if !src.Mint.Equals(dst.Mint) {
		return newError(CodeInsufficientFunds, "mint mismatch between %s and %s", from, to)
	}
	if src.Amount < amount {
		return newError(CodeInsufficientFunds, "have %d, need %d", src.Amount, amount)
	}
	if from.Equals(to) {
		return nil
	}
	src.Amount -= amount
	if dst.Amount > math.MaxUint64-amount {
		return ErrOverflow
	}
	dst.Amount += amount
	if err := e.storeTokenAccount(from, src); err != nil {
		return err
	}
	return e.storeTokenAccount(to, dst)
}

func (e *execution) initialize(args *InitializeArgs) error {
	metas, err := e.requireAccounts(3)
	if err != nil {
		return err
	}
	admin, configMeta, vaultMeta := metas[0], metas[1], metas[2]

	if !admin.IsSigner {
		e.msg("Admin must sign the initialize transaction")
		return ErrMissingRequiredSignature
	}
	if !admin.PublicKey.Equals(args.Admin) {
		e.msg("Admin account key mismatch")
		return ErrUnauthorized
	}
	if acc := e.txn.get(configMeta.PublicKey); !acc.Owner.Equals(solana.SystemProgramID) {
		e.msg("Bridge config account already initialized")
		return ErrAlreadyInitialized
	}
	if args.FeeBasisPoints > MaxFeeBasisPoints {
		e.msg("Fee basis points must be <= 10000 (100%%)")
		return ErrInvalidFee
	}
	if len(args.Validators) == 0 || len(args.Validators) > MaxValidators {
		e.msg("Invalid number of validators (must be 1-5)")
		return newError(CodeInvalidArgument, "validator count %d", len(args.Validators))
	}
	seen := make(map[solana.PublicKey]struct{}, len(args.Validators))
	for _, v := range args.Validators {
		if _, ok := seen[v]; ok {
			e.msg("Duplicate validator %s", v)
			return newError(CodeInvalidArgument, "duplicate validator %s", v)
		}
		seen[v] = struct{}{}
	}
	if args.Threshold == 0 || int(args.Threshold) > len(args.Validators) {
		e.msg("Invalid validator threshold")
		return newError(CodeInvalidArgument, "threshold %d of %d", args.Threshold, len(args.Validators))
	}

	vaultPda, bump, err := FindVaultAddress(configMeta.PublicKey, e.program.programID)
	if err != nil {
		return newError(CodeInvalidPDA, "%v", err)
	}
	if !vaultMeta.PublicKey.Equals(vaultPda) {
		e.msg("Invalid vault PDA provided")
		return ErrInvalidPDA
	}

	cfg := &BridgeConfig{
		Admin:          args.Admin,
		VaultBump:      bump,
		Relayer:        args.Relayer,
		FeeBasisPoints: args.FeeBasisPoints,
		Validators:     append([]solana.PublicKey(nil), args.Validators...),
		Threshold:      args.Threshold,
	}
	if err := e.storeConfig(configMeta.PublicKey, cfg); err != nil {
		return err
	}

	e.msg("Bridge initialized successfully")
	e.msg("Admin: %s", cfg.Admin)
	e.msg("Relayer: %s", cfg.Relayer)
	e.msg("Vault PDA: %s", vaultPda)
	e.msg("Fee: %d basis points", cfg.FeeBasisPoints)
	return nil
}

// ComputeFee returns floor(amount*feeBps/10000) and the net amount
func ComputeFee(amount uint64, feeBps uint16) (fee uint64, net uint64, err error) {
	hi, lo := bits.Mul64(amount, uint64(feeBps))
	if hi != 0 {
		return 0, 0, ErrOverflow
	}
	fee = lo / MaxFeeBasisPoints
	if fee > amount {
		return 0, 0, ErrOverflow
	}
	return fee, amount - fee, nil
}

func (e *execution) lockTokens(args *LockArgs) error {
	metas, err := e.requireAccounts(7)
	if err != nil {
		return err
	}
	user, userToken, vaultToken, recordMeta, configMeta, mint, tokenProgram :=
		metas[0], metas[1], metas[2], metas[3], metas[4], metas[5], metas[6]

	if !user.IsSigner {
		e.msg("User must sign the lock transaction")
		return ErrMissingRequiredSignature
	}
	cfg, err := e.loadConfig(configMeta.PublicKey)
	if err != nil {
		return err
	}
	if cfg.IsPaused {
		e.msg("Bridge is currently paused")
		return ErrBridgePaused
	}
	if args.Amount == 0 {
		e.msg("Lock amount must be greater than 0")
		return newError(CodeInsufficientFunds, "zero amount")
	}
	if args.DestinationChain == 0 || args.DestinationChain > MaxDestination {
		e.msg("Invalid destination chain: %d", args.DestinationChain)
		return newError(CodeInvalidDestination, "%d", args.DestinationChain)
	}

	fee, net, err := ComputeFee(args.Amount, cfg.FeeBasisPoints)
	if err != nil {
		return err
	}
	e.msg("Lock amount: %d, Fee: %d, Net amount: %d", args.Amount, fee, net)

	userTok, err := e.loadTokenAccount(userToken.PublicKey)
	if err != nil {
		return err
	}
	if userTok.Amount < args.Amount {
		e.msg("Insufficient token balance. Have: %d, Need: %d", userTok.Amount, args.Amount)
		return newError(CodeInsufficientFunds, "have %d, need %d", userTok.Amount, args.Amount)
	}
	if !userTok.Mint.Equals(mint.PublicKey) {
		e.msg("User token account mint mismatch")
		return newError(CodeInsufficientFunds, "mint %s, expected %s", userTok.Mint, mint.PublicKey)
	}

	vaultPda, _, err := FindVaultAddress(configMeta.PublicKey, e.program.programID)
	if err != nil {
		return newError(CodeInvalidPDA, "%v", err)
	}
	vaultTok, err := e.loadTokenAccount(vaultToken.PublicKey)
	if err != nil {
		return err
	}
	if !vaultTok.Owner.Equals(vaultPda) {
		e.msg("Vault token account is not held by the vault PDA")
		return ErrInvalidPDA
	}

	nonce := cfg.Nonce
	if nonce == math.MaxUint64 {
		return ErrOverflow
	}
	cfg.Nonce++

	recordKey, _, err := FindLockRecordAddress(user.PublicKey, nonce, e.program.programID)
	if err != nil {
		return newError(CodeInvalidPDA, "%v", err)
	}
	if !recordMeta.PublicKey.Equals(recordKey) {
		e.msg("Invalid user bridge state PDA")
		return ErrInvalidPDA
	}
	if acc := e.txn.get(recordKey); !acc.Owner.Equals(solana.SystemProgramID) {
		return newError(CodeAlreadyInitialized, "lock record %s", recordKey)
	}

	record := &LockRecord{
		Owner:              user.PublicKey,
		LockedAmount:       net,
		TokenMint:          mint.PublicKey,
		DestinationChain:   args.DestinationChain,
		DestinationAddress: args.DestinationAddress,
		Status:             LockPending,
		Nonce:              nonce,
		Timestamp:          e.program.now().Unix(),
	}
	data, err := record.Pack()
	if err != nil {
		return newError(CodeInvalidArgument, "%v", err)
	}
	if err := e.txn.put(recordKey, Account{Owner: e.program.programID, Data: data}); err != nil {
		return err
	}
	e.msg("User bridge state created with nonce: %d", nonce)

	e.msg("Transferring %d tokens from user to vault", args.Amount)
	if err := e.transfer(tokenProgram.PublicKey, userToken.PublicKey, vaultToken.PublicKey, user.PublicKey, true, args.Amount); err != nil {
		return err
	}

	if cfg.TotalLocked > math.MaxUint64-net {
		return ErrOverflow
	}
	cfg.TotalLocked += net
	if err := e.storeConfig(configMeta.PublicKey, cfg); err != nil {
		return err
	}

	e.msg("EVENT: TokensLocked")
	e.msg("  user: %s", record.Owner)
	e.msg("  token_mint: %s", record.TokenMint)
	e.msg("  amount: %d", record.LockedAmount)
	e.msg("  destination_chain: %d", record.DestinationChain)
	e.msg("  destination_address: %s", FormatByteList(record.DestinationAddress[:]))
	e.msg("  nonce: %d", record.Nonce)
	e.msg("  timestamp: %d", record.Timestamp)
	e.res.Events = append(e.res.Events, TokensLocked{
		User:               record.Owner,
		TokenMint:          record.TokenMint,
		Amount:             record.LockedAmount,
		DestinationChain:   record.DestinationChain,
		DestinationAddress: record.DestinationAddress,
		Nonce:              record.Nonce,
		Timestamp:          record.Timestamp,
	})
	return nil
}

func (e *execution) unlockTokens(args *UnlockArgs) error {
	metas, err := e.requireAccounts(8)
	if err != nil {
		return err
	}
	relayer, user, userToken, vaultToken, vaultMeta, recordMeta, configMeta, tokenProgram :=
		metas[0], metas[1], metas[2], metas[3], metas[4], metas[5], metas[6], metas[7]

	if !relayer.IsSigner {
		e.msg("Relayer must sign the unlock transaction")
		return ErrMissingRequiredSignature
	}
	cfg, err := e.loadConfig(configMeta.PublicKey)
	if err != nil {
		return err
	}
	if !relayer.PublicKey.Equals(cfg.Relayer) {
		e.msg("Relayer is not authorized. Expected: %s, Got: %s", cfg.Relayer, relayer.PublicKey)
		return ErrUnauthorized
	}

	recordAcc := e.txn.get(recordMeta.PublicKey)
	if !recordAcc.Owner.Equals(e.program.programID) {
		e.msg("User bridge state has incorrect owner")
		return ErrIncorrectOwner
	}
	record, err := UnpackLockRecord(recordAcc.Data)
	if err != nil {
		return newError(CodeInvalidArgument, "%v", err)
	}
	if record.Nonce != args.Nonce {
		e.msg("Nonce mismatch. Expected: %d, Got: %d", record.Nonce, args.Nonce)
		return ErrInvalidNonce
	}
	if record.Unlocked {
		e.msg("Tokens have already been unlocked")
		return ErrAlreadyUnlocked
	}
	if record.Status != LockPending {
		e.msg("Invalid bridge status: %s", record.Status)
		return ErrInvalidStatus
	}
	if !user.PublicKey.Equals(record.Owner) {
		e.msg("User account mismatch")
		return ErrUnauthorized
	}

	vaultPda, bump, err := FindVaultAddress(configMeta.PublicKey, e.program.programID)
	if err != nil {
		return newError(CodeInvalidPDA, "%v", err)
	}
	if !vaultMeta.PublicKey.Equals(vaultPda) {
		e.msg("Invalid vault PDA")
		return ErrInvalidPDA
	}
	if bump != cfg.VaultBump {
		e.msg("Vault PDA bump mismatch")
		return ErrInvalidPDA
	}

	if len(args.Signatures) < int(cfg.Threshold) {
		e.msg("Insufficient signatures. Required: %d, Got: %d", cfg.Threshold, len(args.Signatures))
		return ErrThresholdNotMet
	}

	message := types.UnlockMessage(args.Nonce, record.Owner, record.LockedAmount)
	valid := countValidatorSignatures(cfg.Validators, message, args.Signatures, func(idx int, v solana.PublicKey) {
		e.msg("Valid signature %d from validator %s", idx, v)
	})
	if valid < int(cfg.Threshold) {
		e.msg("Signature verification failed. Valid: %d, Required: %d", valid, cfg.Threshold)
		return ErrThresholdNotMet
	}
	e.msg("Signature verification passed: %d/%d valid signatures", valid, len(args.Signatures))

	userTok, err := e.loadTokenAccount(userToken.PublicKey)
	if err != nil {
		return err
	}
	if !userTok.Owner.Equals(record.Owner) {
		e.msg("Destination token account is not held by the user")
		return ErrUnauthorized
	}

	e.msg("Unlocking %d tokens to user", record.LockedAmount)
	if err := e.transfer(tokenProgram.PublicKey, vaultToken.PublicKey, userToken.PublicKey, vaultPda, true, record.LockedAmount); err != nil {
		return err
	}

	record.Unlocked = true
	record.Status = LockCompleted
	data, err := record.Pack()
	if err != nil {
		return newError(CodeInvalidArgument, "%v", err)
	}
	if err := e.txn.put(recordMeta.PublicKey, Account{Owner: e.program.programID, Data: data}); err != nil {
		return err
	}

	if cfg.TotalLocked < record.LockedAmount {
		return ErrOverflow
	}
	cfg.TotalLocked -= record.LockedAmount
	if err := e.storeConfig(configMeta.PublicKey, cfg); err != nil {
		return err
	}

	e.msg("EVENT: TokensUnlocked")
	e.msg("  user: %s", record.Owner)
	e.msg("  amount: %d", record.LockedAmount)
	e.msg("  nonce: %d", record.Nonce)
	e.res.Events = append(e.res.Events, TokensUnlocked{User: record.Owner, Amount: record.LockedAmount, Nonce: record.Nonce})
	return nil
}

// countValidatorSignatures counts distinct validators with a valid signature over message
func countValidatorSignatures(validators []solana.PublicKey, message []byte, sigs []solana.Signature, onMatch func(int, solana.PublicKey)) int {
	var matched bitmap.Bitmap
	for idx, sig := range sigs {
		for i, v := range validators {
			if matched.Contains(uint32(i)) {
				continue
			}
			if sig.Verify(v, message) {
				matched.Set(uint32(i))
				if onMatch != nil {
					onMatch(idx, v)
				}
				break
			}
		}
	}
	return matched.Count()
}

func (e *execution) loadAdminConfig(action string) (solana.PublicKey, *BridgeConfig, error) {
	metas, err := e.requireAccounts(2)
	if err != nil {
		return solana.PublicKey{}, nil, err
	}
	admin, configMeta := metas[0], metas[1]
	if !admin.IsSigner {
		e.msg("Admin must sign the %s transaction", action)
		return solana.PublicKey{}, nil, ErrMissingRequiredSignature
	}
	cfg, err := e.loadConfig(configMeta.PublicKey)
	if err != nil {
		return solana.PublicKey{}, nil, err
	}
	if !admin.PublicKey.Equals(cfg.Admin) {
		e.msg("Only admin can %s. Expected: %s, Got: %s", action, cfg.Admin, admin.PublicKey)
		return solana.PublicKey{}, nil, ErrUnauthorized
	}
	return configMeta.PublicKey, cfg, nil
}

func (e *execution) updateConfig(args *UpdateConfigArgs) error {
	configKey, cfg, err := e.loadAdminConfig("update config")
	if err != nil {
		return err
	}
	if args.NewAdmin != nil {
		e.msg("Updating admin from %s to %s", cfg.Admin, *args.NewAdmin)
		cfg.Admin = *args.NewAdmin
	}
	if args.NewRelayer != nil {
		e.msg("Updating relayer from %s to %s", cfg.Relayer, *args.NewRelayer)
		cfg.Relayer = *args.NewRelayer
	}
	if args.NewFee != nil {
		if *args.NewFee > MaxFeeBasisPoints {
			e.msg("Fee basis points must be <= 10000 (100%%)")
			return ErrInvalidFee
		}
		e.msg("Updating fee from %d to %d basis points", cfg.FeeBasisPoints, *args.NewFee)
		cfg.FeeBasisPoints = *args.NewFee
	}
	if err := e.storeConfig(configKey, cfg); err != nil {
		return err
	}
	e.msg("Bridge config updated successfully")
	return nil
}

func (e *execution) setPaused(paused bool) error {
	action := "unpause"
	if paused {
		action = "pause"
	}
	configKey, cfg, err := e.loadAdminConfig(action)
	if err != nil {
		return err
	}
	if cfg.IsPaused == paused {
		e.msg("Bridge is already %sd", action)
		return nil
	}
	cfg.IsPaused = paused
	if err := e.storeConfig(configKey, cfg); err != nil {
		return err
	}
	if paused {
		e.msg("Bridge has been paused")
		e.msg("Lock operations are now disabled")
		e.msg("Unlock operations continue to work")
	} else {
		e.msg("Bridge has been unpaused")
		e.msg("Lock operations are now enabled")
	}
	return nil
}

// FormatByteList renders bytes as "[1, 2, 3]", the form of the destination_address log line
func FormatByteList(b []byte) string {
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = strconv.Itoa(int(v))
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// ParseByteList is the inverse of FormatByteList
func ParseByteList(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return nil, errors.New("byte list must be bracketed")
	}
	inner := strings.TrimSpace(s[1 : len(s)-1])
	if inner == "" {
		return []byte{}, nil
	}
	parts := strings.Split(inner, ",")
	out := make([]byte, len(parts))
	for i, part := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(part), 10, 8)
		if err != nil {
			return nil, fmt.Errorf("byte %d: %w", i, err)
		}
		out[i] = byte(v)
	}
	return out, nil
}
