package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goatnetwork/bridge-relayer/internal/chain"
	"github.com/goatnetwork/bridge-relayer/internal/db"
	"github.com/goatnetwork/bridge-relayer/internal/metrics"
	"github.com/goatnetwork/bridge-relayer/internal/state"
	"github.com/goatnetwork/bridge-relayer/internal/types"
	log "github.com/sirupsen/logrus"
)

// Ledger is the state surface a monitor needs
type Ledger interface {
	GetSyncStatus(chain string) (db.SyncStatus, error)
	SaveSyncStatus(chain string, height uint64, cursor string) error
	CreateRelayTx(ev types.BridgeEvent) (bool, error)
}

// Monitor drives one chain observer and records what it finds in the ledger
type Monitor struct {
	observer chain.Observer
	ledger   Ledger
	eventBus *state.EventBus
	metrics  *metrics.Metrics

	requestInterval time.Duration
	abortInterval   time.Duration
}

func New(observer chain.Observer, ledger Ledger, eventBus *state.EventBus, m *metrics.Metrics, requestInterval time.Duration) *Monitor {
	if requestInterval <= 0 {
		requestInterval = 5 * time.Second
	}
	return &Monitor{
		observer:        observer,
		ledger:          ledger,
		eventBus:        eventBus,
		metrics:         m,
		requestInterval: requestInterval,
		abortInterval:   requestInterval + 2*time.Second,
	}
}

func (m *Monitor) Start(ctx context.Context) {
	name := m.observer.Chain()
	log.Infof("%s monitor started, interval %v", name, m.requestInterval)

	for {
		wait := m.requestInterval
		if _, err := m.Tick(ctx); err != nil {
			log.Errorf("%s monitor tick failed: %v", name, err)
			wait = m.abortInterval
		}

		select {
		case <-ctx.Done():
			log.Infof("%s monitor stopping...", name)
			return
		case <-time.After(wait):
		}
	}
}

// Tick runs one poll and returns how many new rows were recorded
func (m *Monitor) Tick(ctx context.Context) (int, error) {
	name := m.observer.Chain().String()
	status, err := m.ledger.GetSyncStatus(name)
	if err != nil {
		return 0, err
	}

	from := chain.Checkpoint{Height: status.LastHeight, Cursor: status.LastCursor}
	events, next, err := m.observer.Poll(ctx, from)
	if err != nil {
		return 0, err
	}

	recorded := 0
	for _, ev := range events {
		created, err := m.ledger.CreateRelayTx(ev)
		if errors.Is(err, types.ErrInvalidEvent) {
			log.WithFields(log.Fields{"chain": name, "nonce": ev.Nonce, "tx": ev.TxHash}).Errorf("Skip unrecordable bridge event: %v", err)
			continue
		}
		if err != nil {
			// checkpoint stays put, the next tick replays the range
			return recorded, fmt.Errorf("record %s: %w", ev, err)
		}
		if !created {
			continue
		}
		recorded++
		m.metrics.EventObserved(name)
		log.WithFields(log.Fields{"chain": name, "nonce": ev.Nonce, "tx": ev.TxHash}).Infof("Recorded %s, amount %d to %s", ev.Kind, ev.Amount, ev.ToChain)
		if m.eventBus != nil {
			m.eventBus.Publish(state.RelayTxObserved, ev)
		}
	}

	if next != from {
		if err := m.ledger.SaveSyncStatus(name, next.Height, next.Cursor); err != nil {
			return recorded, err
		}
		m.metrics.SetSyncHeight(name, next.Height)
	} else {
		log.Debugf("%s monitor idle at %d", name, from.Height)
	}
	return recorded, nil
}
