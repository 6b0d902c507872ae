package submitter

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	goeth "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gagliardetto/solana-go"
	"github.com/goatnetwork/bridge-relayer/internal/aggregator"
	"github.com/goatnetwork/bridge-relayer/internal/chain"
	"github.com/goatnetwork/bridge-relayer/internal/chain/ethereum"
	solanachain "github.com/goatnetwork/bridge-relayer/internal/chain/solana"
	"github.com/goatnetwork/bridge-relayer/internal/config"
	"github.com/goatnetwork/bridge-relayer/internal/db"
	"github.com/goatnetwork/bridge-relayer/internal/metrics"
	"github.com/goatnetwork/bridge-relayer/internal/monitor"
	"github.com/goatnetwork/bridge-relayer/internal/types"
	"github.com/goatnetwork/bridge-relayer/internal/vault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signingValidator struct {
	name   string
	solKey solana.PrivateKey
	ethKey *ecdsa.PrivateKey
	down   bool
}

func newSigningValidators(t *testing.T, n int) []*signingValidator {
	out := make([]*signingValidator, n)
	for i := range out {
		ethKey, err := crypto.GenerateKey()
		require.NoError(t, err)
		out[i] = &signingValidator{
			name:   string(rune('a' + i)),
			solKey: solana.NewWallet().PrivateKey,
			ethKey: ethKey,
		}
	}
	return out
}

func (v *signingValidator) serve(t *testing.T) config.ValidatorConfig {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if v.down {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var req aggregator.SignRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		msg, err := hexutil.Decode(req.Message)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var sig []byte
		if req.DestinationChain == types.ChainSolana.String() {
			s, signErr := v.solKey.Sign(msg)
			sig, err = s[:], signErr
		} else {
			sig, err = crypto.Sign(msg, v.ethKey)
		}
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(aggregator.Response[aggregator.SignResponse]{
			Status: aggregator.ResponseStatusSuccess,
			Data:   aggregator.SignResponse{ValidatorAddress: v.name, Signature: hexutil.Encode(sig)},
		})
	}))
	t.Cleanup(server.Close)
	return config.ValidatorConfig{
		Name:         v.name,
		EthAddress:   crypto.PubkeyToAddress(v.ethKey.PublicKey).Hex(),
		SolPublicKey: v.solKey.PublicKey().String(),
		Endpoint:     server.URL,
	}
}

// bridgeFixture is a vault with a funded user and a threshold of 2 out of 3 validators
type bridgeFixture struct {
	program    *vault.Program
	programID  solana.PublicKey
	configKey  solana.PublicKey
	mint       solana.PublicKey
	vaultToken solana.PublicKey
	user       solana.PrivateKey
	userToken  solana.PublicKey
	relayer    solana.PrivateKey
	validators []*signingValidator
}

func newBridgeFixture(t *testing.T) *bridgeFixture {
	f := &bridgeFixture{
		programID:  solana.NewWallet().PublicKey(),
		configKey:  solana.NewWallet().PublicKey(),
		mint:       solana.NewWallet().PublicKey(),
		vaultToken: solana.NewWallet().PublicKey(),
		user:       solana.NewWallet().PrivateKey,
		relayer:    solana.NewWallet().PrivateKey,
		validators: newSigningValidators(t, 3),
	}
	f.program = vault.NewProgram(f.programID, vault.NewMemoryStore())
	admin := solana.NewWallet().PublicKey()

	keys := make([]solana.PublicKey, len(f.validators))
	for i, v := range f.validators {
		keys[i] = v.solKey.PublicKey()
	}
	ix, err := vault.NewInitializeInstruction(f.programID, f.configKey, vault.InitializeArgs{
		Admin:          admin,
		Relayer:        f.relayer.PublicKey(),
		FeeBasisPoints: 50,
		Validators:     keys,
		Threshold:      2,
	})
	require.NoError(t, err)
	_, err = f.program.Process(ix)
	require.NoError(t, err)

	vaultPda, _, err := vault.FindVaultAddress(f.configKey, f.programID)
	require.NoError(t, err)
	require.NoError(t, f.program.CreateTokenAccount(f.vaultToken, f.mint, vaultPda, 0))
	f.userToken, err = vault.FindTokenAccountAddress(f.user.PublicKey(), f.mint)
	require.NoError(t, err)
	require.NoError(t, f.program.CreateTokenAccount(f.userToken, f.mint, f.user.PublicKey(), 5_000_000_000))
	return f
}

func (f *bridgeFixture) lock(t *testing.T, nonce uint64, amount uint64, recipient common.Address) *vault.Result {
	ix, err := vault.NewLockTokensInstruction(f.programID, vault.LockAccounts{
		User:       f.user.PublicKey(),
		UserToken:  f.userToken,
		VaultToken: f.vaultToken,
		Config:     f.configKey,
		Mint:       f.mint,
		Nonce:      nonce,
	}, vault.LockArgs{Amount: amount, DestinationChain: 1, DestinationAddress: types.EthAddressToBytes32(recipient)})
	require.NoError(t, err)
	res, err := f.program.Process(ix)
	require.NoError(t, err)
	return res
}

func (f *bridgeFixture) roster(t *testing.T) []config.ValidatorConfig {
	out := make([]config.ValidatorConfig, len(f.validators))
	for i, v := range f.validators {
		out[i] = v.serve(t)
	}
	return out
}

type replayObserver struct {
	events []types.BridgeEvent
	next   chain.Checkpoint
}

func (o *replayObserver) Chain() types.Chain {
	return types.ChainSolana
}

func (o *replayObserver) Poll(_ context.Context, from chain.Checkpoint) ([]types.BridgeEvent, chain.Checkpoint, error) {
	if from == o.next {
		return nil, from, nil
	}
	return o.events, o.next, nil
}

// fakeEthClient mines every sent transaction twenty blocks below head
type fakeEthClient struct {
	mu   sync.Mutex
	head uint64
	sent []*ethtypes.Transaction
}

func (c *fakeEthClient) BlockNumber(context.Context) (uint64, error) {
	return c.head, nil
}

func (c *fakeEthClient) FilterLogs(context.Context, goeth.FilterQuery) ([]ethtypes.Log, error) {
	return nil, nil
}

func (c *fakeEthClient) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (c *fakeEthClient) EstimateGas(context.Context, goeth.CallMsg) (uint64, error) {
	return 210_000, nil
}

func (c *fakeEthClient) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return uint64(len(c.sent)), nil
}

func (c *fakeEthClient) SendTransaction(_ context.Context, tx *ethtypes.Transaction) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, tx)
	return nil
}

func (c *fakeEthClient) TransactionReceipt(_ context.Context, hash common.Hash) (*ethtypes.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, tx := range c.sent {
		if tx.Hash() == hash {
			return &ethtypes.Receipt{Status: ethtypes.ReceiptStatusSuccessful, TxHash: hash, BlockNumber: new(big.Int).SetUint64(c.head - 20)}, nil
		}
	}
	return nil, goeth.NotFound
}

func TestLockToMintEndToEnd(t *testing.T) {
	f := newBridgeFixture(t)
	recipient := common.HexToAddress("0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb0")

	f.lock(t, 0, 1_000_000_000, recipient)
	res := f.lock(t, 1, 1_000_000_000, recipient)
	ev, err := solanachain.ParseLockEvent(res.Logs, solana.Signature{1}.String())
	require.NoError(t, err)
	require.NotNil(t, ev)
	require.Equal(t, uint64(1), ev.Nonce)
	require.Equal(t, uint64(995_000_000), ev.Amount)

	st := newTestState(t)
	m := metrics.New()
	mon := monitor.New(&replayObserver{events: []types.BridgeEvent{*ev}, next: chain.Checkpoint{Height: 10, Cursor: ev.TxHash}}, st, st.EventBus, m, time.Second)
	n, err := mon.Tick(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)
	assert.Equal(t, db.RELAY_STATUS_PENDING, mustRow(t, st, 1).Status)

	f.validators[2].down = true
	roster := f.roster(t)
	agg := aggregator.New(roster, aggregator.NewHTTPSigner(5*time.Second, ""))

	ethClient := &fakeEthClient{head: 100}
	relayerKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	ethReleaser, err := ethereum.NewReleaser(ethClient, ethereum.ReleaserConfig{
		ChainID:            big.NewInt(11155111),
		Contract:           common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3"),
		Confirmations:      12,
		GasPriceMultiplier: 1.2,
	}, relayerKey)
	require.NoError(t, err)

	sub := New(st, st.EventBus, agg, Config{RetryDelay: time.Second, MaxRetries: 3}, m, ethReleaser)
	ctx := context.Background()

	sub.Tick(ctx)
	row := mustRow(t, st, 1)
	require.Equal(t, db.RELAY_STATUS_SIGNATURES_COLLECTED, row.Status)
	sigs, err := types.DecodeSignatures(*row.Signatures)
	require.NoError(t, err)
	require.Len(t, sigs, 2)

	sub.Tick(ctx)
	row = mustRow(t, st, 1)
	require.Equal(t, db.RELAY_STATUS_SUBMITTED, row.Status)
	require.Len(t, ethClient.sent, 1)
	assert.Equal(t, ethClient.sent[0].Hash().Hex(), *row.ToTxHash)

	sub.Tick(ctx)
	row = mustRow(t, st, 1)
	assert.Equal(t, db.RELAY_STATUS_CONFIRMED, row.Status)
	assert.Equal(t, uint64(995_000_000), row.Amount)
	assert.Equal(t, recipient.Hex(), row.Recipient)

	// the minted call carries two distinct validator signatures over the canonical message
	parsed, err := ethereum.ParseBridgeABI()
	require.NoError(t, err)
	values, err := parsed.Methods[ethereum.MintWrappedMethod].Inputs.Unpack(ethClient.sent[0].Data()[4:])
	require.NoError(t, err)
	msg := types.MintMessage(recipient, big.NewInt(995_000_000), 1, f.user.PublicKey().String())
	signers := map[common.Address]bool{}
	for _, sig := range values[4].([][]byte) {
		pub, err := crypto.SigToPub(msg, sig)
		require.NoError(t, err)
		signers[crypto.PubkeyToAddress(*pub)] = true
	}
	assert.Len(t, signers, 2)
	assert.True(t, signers[crypto.PubkeyToAddress(f.validators[0].ethKey.PublicKey)])
	assert.True(t, signers[crypto.PubkeyToAddress(f.validators[1].ethKey.PublicKey)])

	stats, err := st.GetRelayStats()
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Confirmed)
}

// vaultReleaser executes the unlock built by the solana releaser against the in-process vault
type vaultReleaser struct {
	builder *solanachain.Releaser
	program *vault.Program
	results map[string]*vault.Result
}

func (r *vaultReleaser) Chain() types.Chain {
	return types.ChainSolana
}

func (r *vaultReleaser) Release(_ context.Context, tx *db.RelayTransaction, sigs []types.ValidatorSignature) (string, error) {
	ix, err := r.builder.BuildUnlockInstruction(tx, sigs)
	if err != nil {
		return "", err
	}
	res, err := r.program.Process(ix)
	if err != nil {
		return "", err
	}
	hash := solana.Signature{byte(tx.Nonce + 1)}.String()
	r.results[hash] = res
	return hash, nil
}

func (r *vaultReleaser) CheckFinality(_ context.Context, hash string) (chain.Finality, string, error) {
	if _, ok := r.results[hash]; ok {
		return chain.FinalitySuccess, "", nil
	}
	return chain.FinalityPending, "", nil
}

func TestBurnToUnlockEndToEnd(t *testing.T) {
	f := newBridgeFixture(t)
	f.lock(t, 0, 1_000_000_000, common.HexToAddress("0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb0"))

	st := newTestState(t)
	created, err := st.CreateRelayTx(types.BridgeEvent{
		Kind:      types.TokensBurned,
		FromChain: types.ChainEthereum,
		ToChain:   types.ChainSolana,
		Sender:    "0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb0",
		Recipient: f.user.PublicKey().String(),
		Amount:    995_000_000,
		Nonce:     0,
		TxHash:    "0x" + common.Bytes2Hex(crypto.Keccak256([]byte("burn"))),
	})
	require.NoError(t, err)
	require.True(t, created)

	f.validators[0].down = true
	roster := f.roster(t)
	releaser := &vaultReleaser{
		builder: solanachain.NewReleaser(nil, solanachain.ReleaserConfig{
			ProgramID:  f.programID,
			ConfigKey:  f.configKey,
			VaultToken: f.vaultToken,
			TokenMint:  f.mint,
		}, f.relayer),
		program: f.program,
		results: map[string]*vault.Result{},
	}
	sub := New(st, nil, aggregator.New(roster, aggregator.NewHTTPSigner(5*time.Second, "")), Config{MaxRetries: 3}, nil, releaser)

	for i := 0; i < 3; i++ {
		sub.Tick(context.Background())
	}
	row := mustRow(t, st, 0)
	require.Equal(t, db.RELAY_STATUS_CONFIRMED, row.Status)

	record, err := f.program.GetLockRecord(f.user.PublicKey(), 0)
	require.NoError(t, err)
	assert.True(t, record.Unlocked)
	userTok, err := f.program.GetTokenAccount(f.userToken)
	require.NoError(t, err)
	assert.Equal(t, uint64(4_995_000_000), userTok.Amount)

	res := releaser.results[*row.ToTxHash]
	require.NotNil(t, res)
	assert.Equal(t, []vault.Event{vault.TokensUnlocked{User: f.user.PublicKey(), Amount: 995_000_000, Nonce: 0}}, res.Events)
}
