package state

import (
	"sync"

	"github.com/goatnetwork/bridge-relayer/internal/db"
	log "github.com/sirupsen/logrus"
)

type StateLoader interface {
	GetRelayStats() (RelayStats, error)
	GetSyncStatus(chain string) (db.SyncStatus, error)
}

type State struct {
	EventBus *EventBus

	dbm *db.DatabaseManager

	// Separate mutexes for different sub-modules
	relayMu sync.RWMutex
	syncMu  sync.RWMutex
}

var (
	_ StateLoader = (*State)(nil)
	_ RelayStore  = (*State)(nil)
)

// InitializeState wires the ledger and logs what it holds on startup
func InitializeState(dbm *db.DatabaseManager) *State {
	s := &State{
		EventBus: NewEventBus(),
		dbm:      dbm,
	}

	stats, err := s.GetRelayStats()
	if err != nil {
		log.Warnf("Failed to load relay stats: %v", err)
	} else {
		log.Infof("State init on startup, total: %d, pending: %d, signatures_collected: %d, submitted: %d, confirmed: %d, failed: %d",
			stats.Total, stats.Pending, stats.SignaturesCollected, stats.Submitted, stats.Confirmed, stats.Failed)
	}
	return s
}
