package monitor

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/goatnetwork/bridge-relayer/internal/chain"
	"github.com/goatnetwork/bridge-relayer/internal/db"
	"github.com/goatnetwork/bridge-relayer/internal/metrics"
	"github.com/goatnetwork/bridge-relayer/internal/state"
	"github.com/goatnetwork/bridge-relayer/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockObserver struct {
	mock.Mock
}

func (m *mockObserver) Chain() types.Chain {
	return types.ChainSolana
}

func (m *mockObserver) Poll(ctx context.Context, from chain.Checkpoint) ([]types.BridgeEvent, chain.Checkpoint, error) {
	args := m.Called(ctx, from)
	events, _ := args.Get(0).([]types.BridgeEvent)
	return events, args.Get(1).(chain.Checkpoint), args.Error(2)
}

func newTestState(t *testing.T) *state.State {
	dbm, err := db.OpenDatabaseManager(t.TempDir(), 1)
	require.NoError(t, err)
	t.Cleanup(dbm.Close)
	return state.InitializeState(dbm)
}

func lockEvent(nonce uint64, hash string) types.BridgeEvent {
	return types.BridgeEvent{
		Kind:      types.TokensLocked,
		FromChain: types.ChainSolana,
		ToChain:   types.ChainEthereum,
		Sender:    "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin",
		Recipient: "0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb0",
		Amount:    995_000_000,
		Nonce:     nonce,
		TxHash:    hash,
	}
}

func TestTickRecordsEventsAndCheckpoint(t *testing.T) {
	st := newTestState(t)
	observer := new(mockObserver)
	observed := make(chan interface{}, 4)
	st.EventBus.Subscribe(state.RelayTxObserved, observed)
	mon := New(observer, st, st.EventBus, metrics.New(), time.Second)

	first := chain.Checkpoint{Height: 120, Cursor: "sigB"}
	observer.On("Poll", mock.Anything, chain.Checkpoint{}).
		Return([]types.BridgeEvent{lockEvent(0, "sigA"), lockEvent(1, "sigB")}, first, nil).Once()
	// replays are ignored by the ledger
	observer.On("Poll", mock.Anything, first).
		Return([]types.BridgeEvent{lockEvent(1, "sigB")}, first, nil).Once()

	n, err := mon.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, observed, 2)

	status, err := st.GetSyncStatus("Solana")
	require.NoError(t, err)
	assert.Equal(t, uint64(120), status.LastHeight)
	assert.Equal(t, "sigB", status.LastCursor)

	n, err = mon.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Len(t, observed, 2)

	stats, err := st.GetRelayStats()
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Pending)
	observer.AssertExpectations(t)
}

func TestTickSkipsInvalidEvent(t *testing.T) {
	st := newTestState(t)
	observer := new(mockObserver)
	mon := New(observer, st, nil, nil, time.Second)

	bad := lockEvent(5, "")
	observer.On("Poll", mock.Anything, mock.Anything).
		Return([]types.BridgeEvent{bad, lockEvent(6, "sig6")}, chain.Checkpoint{Height: 9, Cursor: "sig6"}, nil).Once()

	n, err := mon.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	missing, err := st.GetRelayTxByNonce(5)
	require.NoError(t, err)
	assert.Nil(t, missing)

	status, err := st.GetSyncStatus("Solana")
	require.NoError(t, err)
	assert.Equal(t, uint64(9), status.LastHeight)
}

// flakyLedger fails CreateRelayTx with a storage error while failures remain
type flakyLedger struct {
	*state.State
	failures int
}

func (l *flakyLedger) CreateRelayTx(ev types.BridgeEvent) (bool, error) {
	if l.failures > 0 {
		l.failures--
		return false, errors.New("database is locked")
	}
	return l.State.CreateRelayTx(ev)
}

func TestTickStorageFailureReplaysRange(t *testing.T) {
	st := newTestState(t)
	require.NoError(t, st.SaveSyncStatus("Solana", 400, "sigPrev"))
	ledger := &flakyLedger{State: st, failures: 1}
	observer := new(mockObserver)
	mon := New(observer, ledger, nil, nil, time.Second)

	from := chain.Checkpoint{Height: 400, Cursor: "sigPrev"}
	next := chain.Checkpoint{Height: 500, Cursor: "sig8"}
	observer.On("Poll", mock.Anything, from).
		Return([]types.BridgeEvent{lockEvent(8, "sig8")}, next, nil).Twice()

	_, err := mon.Tick(context.Background())
	assert.ErrorContains(t, err, "database is locked")

	status, err := st.GetSyncStatus("Solana")
	require.NoError(t, err)
	assert.Equal(t, uint64(400), status.LastHeight)
	assert.Equal(t, "sigPrev", status.LastCursor)

	n, err := mon.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	status, err = st.GetSyncStatus("Solana")
	require.NoError(t, err)
	assert.Equal(t, uint64(500), status.LastHeight)
	row, err := st.GetRelayTxByNonce(8)
	require.NoError(t, err)
	require.NotNil(t, row)
	observer.AssertExpectations(t)
}

func TestTickSkipsValueBeyondLedgerLimit(t *testing.T) {
	st := newTestState(t)
	observer := new(mockObserver)
	mon := New(observer, st, nil, nil, time.Second)

	huge := lockEvent(3, "sig3")
	huge.Amount = math.MaxUint64
	observer.On("Poll", mock.Anything, mock.Anything).
		Return([]types.BridgeEvent{huge}, chain.Checkpoint{Height: 12, Cursor: "sig3"}, nil).Once()

	n, err := mon.Tick(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	row, err := st.GetRelayTxByNonce(3)
	require.NoError(t, err)
	assert.Nil(t, row)
}

func TestTickPollFailureKeepsCheckpoint(t *testing.T) {
	st := newTestState(t)
	require.NoError(t, st.SaveSyncStatus("Solana", 77, "sigX"))
	observer := new(mockObserver)
	mon := New(observer, st, nil, nil, time.Second)

	observer.On("Poll", mock.Anything, chain.Checkpoint{Height: 77, Cursor: "sigX"}).
		Return(nil, chain.Checkpoint{Height: 77, Cursor: "sigX"}, errors.New("rpc unreachable")).Once()

	_, err := mon.Tick(context.Background())
	assert.ErrorContains(t, err, "rpc unreachable")

	status, err := st.GetSyncStatus("Solana")
	require.NoError(t, err)
	assert.Equal(t, uint64(77), status.LastHeight)
	assert.Equal(t, 3*time.Second, mon.abortInterval)
}

func TestStartStopsOnCancel(t *testing.T) {
	st := newTestState(t)
	observer := new(mockObserver)
	mon := New(observer, st, nil, nil, 10*time.Millisecond)
	observer.On("Poll", mock.Anything, mock.Anything).Return(nil, chain.Checkpoint{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		mon.Start(ctx)
		close(done)
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop")
	}
}
