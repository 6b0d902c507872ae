package submitter

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goatnetwork/bridge-relayer/internal/aggregator"
	"github.com/goatnetwork/bridge-relayer/internal/chain"
	"github.com/goatnetwork/bridge-relayer/internal/db"
	"github.com/goatnetwork/bridge-relayer/internal/state"
	"github.com/goatnetwork/bridge-relayer/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockCollector struct {
	mock.Mock
}

func (m *mockCollector) Collect(ctx context.Context, req aggregator.CollectRequest) ([]types.ValidatorSignature, error) {
	args := m.Called(ctx, req)
	sigs, _ := args.Get(0).([]types.ValidatorSignature)
	return sigs, args.Error(1)
}

type mockReleaser struct {
	mock.Mock
	chain types.Chain
}

func (m *mockReleaser) Chain() types.Chain {
	return m.chain
}

func (m *mockReleaser) Release(ctx context.Context, tx *db.RelayTransaction, sigs []types.ValidatorSignature) (string, error) {
	args := m.Called(ctx, tx.Nonce, sigs)
	return args.String(0), args.Error(1)
}

func (m *mockReleaser) CheckFinality(ctx context.Context, txHash string) (chain.Finality, string, error) {
	args := m.Called(ctx, txHash)
	return args.Get(0).(chain.Finality), args.String(1), args.Error(2)
}

func newTestState(t *testing.T) *state.State {
	dbm, err := db.OpenDatabaseManager(t.TempDir(), 1)
	require.NoError(t, err)
	t.Cleanup(dbm.Close)
	return state.InitializeState(dbm)
}

func recordLock(t *testing.T, st *state.State, nonce uint64, to types.Chain) *db.RelayTransaction {
	created, err := st.CreateRelayTx(types.BridgeEvent{
		Kind:      types.TokensLocked,
		FromChain: types.ChainSolana,
		ToChain:   to,
		Sender:    "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin",
		Recipient: "0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb0",
		Amount:    995_000_000,
		Nonce:     nonce,
		TxHash:    "lock-" + time.Now().Format(time.RFC3339Nano),
	})
	require.NoError(t, err)
	require.True(t, created)
	return mustRow(t, st, nonce)
}

func mustRow(t *testing.T, st *state.State, nonce uint64) *db.RelayTransaction {
	row, err := st.GetRelayTxByNonce(nonce)
	require.NoError(t, err)
	require.NotNil(t, row)
	return row
}

func testSigs() []types.ValidatorSignature {
	now := time.Now().UTC().Truncate(time.Second)
	return []types.ValidatorSignature{
		types.NewValidatorSignature("v1", []byte{1, 2, 3}, now),
		types.NewValidatorSignature("v2", []byte{4, 5, 6}, now),
	}
}

func TestBackoff(t *testing.T) {
	delay := 2 * time.Second
	assert.Equal(t, time.Duration(0), Backoff(delay, 0))
	assert.Equal(t, 2*time.Second, Backoff(delay, 1))
	assert.Equal(t, 4*time.Second, Backoff(delay, 2))
	assert.Equal(t, 16*time.Second, Backoff(delay, 4))
	assert.Equal(t, 5*time.Minute, Backoff(delay, 9))
	assert.Equal(t, 5*time.Minute, Backoff(delay, 200))
	assert.Equal(t, time.Duration(0), Backoff(0, 3))
}

func TestProcessHappyPath(t *testing.T) {
	st := newTestState(t)
	collector := new(mockCollector)
	releaser := &mockReleaser{chain: types.ChainEthereum}
	sub := New(st, st.EventBus, collector, Config{RetryDelay: time.Second, MaxRetries: 3}, nil, releaser)
	row := recordLock(t, st, 1, types.ChainEthereum)

	sigs := testSigs()
	collector.On("Collect", mock.Anything, aggregator.CollectRequest{
		Recipient:        row.Recipient,
		Amount:           995_000_000,
		Nonce:            1,
		OriginSender:     row.Sender,
		DestinationChain: types.ChainEthereum,
	}).Return(sigs, nil).Once()
	releaser.On("Release", mock.Anything, uint64(1), mock.MatchedBy(func(got []types.ValidatorSignature) bool {
		return len(got) == 2 && got[0].Signature == sigs[0].Signature && got[1].ValidatorAddress == "v2"
	})).Return("0xabc", nil).Once()
	releaser.On("CheckFinality", mock.Anything, "0xabc").Return(chain.FinalityPending, "", nil).Once()
	releaser.On("CheckFinality", mock.Anything, "0xabc").Return(chain.FinalitySuccess, "", nil).Once()

	require.NoError(t, sub.Process(context.Background(), row))
	row = mustRow(t, st, 1)
	assert.Equal(t, db.RELAY_STATUS_SIGNATURES_COLLECTED, row.Status)
	require.NotNil(t, row.Signatures)

	require.NoError(t, sub.Process(context.Background(), row))
	row = mustRow(t, st, 1)
	assert.Equal(t, db.RELAY_STATUS_SUBMITTED, row.Status)
	assert.Equal(t, "0xabc", *row.ToTxHash)

	require.NoError(t, sub.Process(context.Background(), row))
	assert.Equal(t, db.RELAY_STATUS_SUBMITTED, mustRow(t, st, 1).Status)

	require.NoError(t, sub.Process(context.Background(), row))
	assert.Equal(t, db.RELAY_STATUS_CONFIRMED, mustRow(t, st, 1).Status)

	// terminal rows are left alone
	require.NoError(t, sub.Process(context.Background(), mustRow(t, st, 1)))
	collector.AssertExpectations(t)
	releaser.AssertExpectations(t)
}

func TestProcessUnsupportedChain(t *testing.T) {
	st := newTestState(t)
	collector := new(mockCollector)
	sub := New(st, nil, collector, Config{}, nil, &mockReleaser{chain: types.ChainEthereum})
	row := recordLock(t, st, 2, types.ChainSui)

	require.NoError(t, sub.Process(context.Background(), row))
	row = mustRow(t, st, 2)
	assert.Equal(t, db.RELAY_STATUS_FAILED, row.Status)
	require.NotNil(t, row.ErrorMessage)
	assert.Contains(t, *row.ErrorMessage, ErrUnsupportedChain.Error())
	collector.AssertNotCalled(t, "Collect", mock.Anything, mock.Anything)
}

func TestProcessRetriesThenFails(t *testing.T) {
	st := newTestState(t)
	collector := new(mockCollector)
	sub := New(st, nil, collector, Config{RetryDelay: time.Minute, MaxRetries: 2}, nil, &mockReleaser{chain: types.ChainEthereum})
	row := recordLock(t, st, 3, types.ChainEthereum)
	collector.On("Collect", mock.Anything, mock.Anything).Return(nil, &aggregator.InsufficientSignaturesError{Expected: 3}).Twice()

	require.NoError(t, sub.Process(context.Background(), row))
	row = mustRow(t, st, 3)
	assert.Equal(t, db.RELAY_STATUS_PENDING, row.Status)
	assert.Equal(t, 1, row.Attempts)
	assert.Contains(t, *row.ErrorMessage, "insufficient signatures")

	// inside the backoff window nothing happens
	require.NoError(t, sub.Process(context.Background(), row))
	collector.AssertNumberOfCalls(t, "Collect", 1)

	sub.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	require.NoError(t, sub.Process(context.Background(), row))
	row = mustRow(t, st, 3)
	assert.Equal(t, db.RELAY_STATUS_FAILED, row.Status)
	assert.Contains(t, *row.ErrorMessage, "collect failed after 2 attempts")
}

func TestProcessUnboundedRetries(t *testing.T) {
	st := newTestState(t)
	releaser := &mockReleaser{chain: types.ChainEthereum}
	sub := New(st, nil, new(mockCollector), Config{RetryDelay: time.Millisecond, MaxRetries: 0}, nil, releaser)
	row := recordLock(t, st, 4, types.ChainEthereum)
	sigs, err := types.EncodeSignatures(testSigs())
	require.NoError(t, err)
	require.NoError(t, st.TransitRelayTx(row.ID, db.RELAY_STATUS_PENDING, db.RELAY_STATUS_SIGNATURES_COLLECTED, state.RelayTxUpdate{Signatures: &sigs}))

	releaser.On("Release", mock.Anything, uint64(4), mock.Anything).Return("", errors.New("nonce too low"))
	sub.now = func() time.Time { return time.Now().Add(time.Hour) }
	for i := 0; i < 5; i++ {
		require.NoError(t, sub.Process(context.Background(), mustRow(t, st, 4)))
	}
	row = mustRow(t, st, 4)
	assert.Equal(t, db.RELAY_STATUS_SIGNATURES_COLLECTED, row.Status)
	assert.Equal(t, 5, row.Attempts)
}

func TestProcessFinalityFailed(t *testing.T) {
	st := newTestState(t)
	releaser := &mockReleaser{chain: types.ChainEthereum}
	sub := New(st, nil, new(mockCollector), Config{}, nil, releaser)
	row := recordLock(t, st, 5, types.ChainEthereum)
	sigs, err := types.EncodeSignatures(testSigs())
	require.NoError(t, err)
	hash := "0xdead"
	require.NoError(t, st.TransitRelayTx(row.ID, db.RELAY_STATUS_PENDING, db.RELAY_STATUS_SIGNATURES_COLLECTED, state.RelayTxUpdate{Signatures: &sigs}))
	require.NoError(t, st.TransitRelayTx(row.ID, db.RELAY_STATUS_SIGNATURES_COLLECTED, db.RELAY_STATUS_SUBMITTED, state.RelayTxUpdate{ToTxHash: &hash}))

	releaser.On("CheckFinality", mock.Anything, hash).Return(chain.FinalityFailed, "transaction reverted in block 9", nil).Once()
	require.NoError(t, sub.Process(context.Background(), mustRow(t, st, 5)))
	row = mustRow(t, st, 5)
	assert.Equal(t, db.RELAY_STATUS_FAILED, row.Status)
	assert.Equal(t, "transaction reverted in block 9", *row.ErrorMessage)
}

func TestProcessStaleRow(t *testing.T) {
	st := newTestState(t)
	collector := new(mockCollector)
	sub := New(st, nil, collector, Config{}, nil, &mockReleaser{chain: types.ChainEthereum})
	stale := recordLock(t, st, 6, types.ChainEthereum)
	collector.On("Collect", mock.Anything, mock.Anything).Return(testSigs(), nil)

	require.NoError(t, sub.Process(context.Background(), stale))
	// a second worker holding the old snapshot loses
	err := sub.Process(context.Background(), stale)
	assert.ErrorIs(t, err, state.ErrStaleTransition)
	assert.Equal(t, db.RELAY_STATUS_SIGNATURES_COLLECTED, mustRow(t, st, 6).Status)
}

func TestStartWakesOnObservedEvent(t *testing.T) {
	st := newTestState(t)
	collector := new(mockCollector)
	releaser := &mockReleaser{chain: types.ChainEthereum}
	releaser.On("Release", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("not yet"))
	sub := New(st, st.EventBus, collector, Config{PollInterval: time.Hour}, nil, releaser)
	collected := make(chan struct{}, 1)
	collector.On("Collect", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		select {
		case collected <- struct{}{}:
		default:
		}
	}).Return(testSigs(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		sub.Start(ctx)
		close(done)
	}()

	recordLock(t, st, 7, types.ChainEthereum)
	require.Eventually(t, func() bool {
		st.EventBus.Publish(state.RelayTxObserved, uint64(7))
		select {
		case <-collected:
			return true
		default:
			return false
		}
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("submitter did not stop")
	}
}

func TestStartKeepsWakeupsThroughBurst(t *testing.T) {
	st := newTestState(t)
	collector := new(mockCollector)
	releaser := &mockReleaser{chain: types.ChainEthereum}
	releaser.On("Release", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("not yet"))
	sub := New(st, st.EventBus, collector, Config{PollInterval: time.Hour}, nil, releaser)

	busy := make(chan struct{})
	unblock := make(chan struct{})
	var once sync.Once
	collected := make(chan uint64, 4)
	collector.On("Collect", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		once.Do(func() {
			close(busy)
			<-unblock
		})
		select {
		case collected <- args.Get(1).(aggregator.CollectRequest).Nonce:
		default:
		}
	}).Return(testSigs(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		sub.Start(ctx)
		close(done)
	}()

	recordLock(t, st, 7, types.ChainEthereum)
	require.Eventually(t, func() bool {
		st.EventBus.Publish(state.RelayTxObserved, uint64(7))
		select {
		case <-busy:
			return true
		default:
			return false
		}
	}, 2*time.Second, 20*time.Millisecond)

	// the submitter is stuck in a tick, every event of a large batch still reaches it
	for i := 0; i < 20; i++ {
		assert.Equal(t, 1, st.EventBus.Publish(state.RelayTxObserved, uint64(i)))
	}
	close(unblock)
	assert.Equal(t, uint64(7), <-collected)

	recordLock(t, st, 8, types.ChainEthereum)
	require.Eventually(t, func() bool {
		st.EventBus.Publish(state.RelayTxObserved, uint64(8))
		select {
		case nonce := <-collected:
			return nonce == 8
		default:
			return false
		}
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("submitter did not stop")
	}
}
