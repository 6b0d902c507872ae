package state

import (
	"errors"
	"fmt"
	"time"

	"github.com/goatnetwork/bridge-relayer/internal/db"
	"github.com/goatnetwork/bridge-relayer/internal/types"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const inspectionLimit = 100

var (
	// ErrStaleTransition means the row left the expected status before the update landed
	ErrStaleTransition = errors.New("relay transaction status changed concurrently")
	// ErrInvalidTransition means the requested move is not forward along the lifecycle
	ErrInvalidTransition = errors.New("invalid relay transaction status transition")
)

// RelayStore is the ledger surface used by the monitor and the submitter
type RelayStore interface {
	CreateRelayTx(ev types.BridgeEvent) (bool, error)
	GetProcessingQueue() ([]*db.RelayTransaction, error)
	GetRelayTxsByStatus(status string) ([]*db.RelayTransaction, error)
	TransitRelayTx(id uint, from, to string, update RelayTxUpdate) error
	RecordRelayAttempt(id uint, status string, reason string) (int, error)
}

type RelayStats struct {
	Total               int64 `json:"total"`
	Pending             int64 `json:"pending"`
	SignaturesCollected int64 `json:"signatures_collected"`
	Submitted           int64 `json:"submitted"`
	Confirmed           int64 `json:"confirmed"`
	Failed              int64 `json:"failed"`
}

// RelayTxUpdate holds the optional columns written with a transition
type RelayTxUpdate struct {
	Signatures   *string
	ToTxHash     *string
	ErrorMessage *string
}

/*
CreateRelayTx
records an observed event as a Pending row, an existing row with the same nonce
or source hash makes it a no-op that returns false
*/
func (s *State) CreateRelayTx(ev types.BridgeEvent) (bool, error) {
	if err := ev.Validate(); err != nil {
		return false, err
	}

	s.relayMu.Lock()
	defer s.relayMu.Unlock()

	var count int64
	err := s.dbm.GetRelayerDB().Model(&db.RelayTransaction{}).
		Where("nonce = ? OR from_tx_hash = ?", ev.Nonce, ev.TxHash).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	if count > 0 {
		log.Debugf("Relay tx already recorded, nonce: %d, tx: %s", ev.Nonce, ev.TxHash)
		return false, nil
	}

	now := time.Now()
	tx := &db.RelayTransaction{
		Nonce:      ev.Nonce,
		FromChain:  ev.FromChain.String(),
		ToChain:    ev.ToChain.String(),
		FromTxHash: ev.TxHash,
		Sender:     ev.Sender,
		Recipient:  ev.Recipient,
		Amount:     ev.Amount,
		Status:     db.RELAY_STATUS_PENDING,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.dbm.GetRelayerDB().Create(tx).Error; err != nil {
		return false, err
	}
	return true, nil
}

// GetRelayTxByNonce returns nil when no row has the nonce
func (s *State) GetRelayTxByNonce(nonce uint64) (*db.RelayTransaction, error) {
	s.relayMu.RLock()
	defer s.relayMu.RUnlock()

	return s.queryRelayTx("nonce = ?", nonce)
}

// GetRelayTxByHash matches the source hash first, then the destination hash
func (s *State) GetRelayTxByHash(hash string) (*db.RelayTransaction, error) {
	s.relayMu.RLock()
	defer s.relayMu.RUnlock()

	tx, err := s.queryRelayTx("from_tx_hash = ?", hash)
	if err != nil || tx != nil {
		return tx, err
	}
	return s.queryRelayTx("to_tx_hash = ?", hash)
}

// GetProcessingQueue returns Pending and SignaturesCollected rows oldest first
func (s *State) GetProcessingQueue() ([]*db.RelayTransaction, error) {
	s.relayMu.RLock()
	defer s.relayMu.RUnlock()

	var txs []*db.RelayTransaction
	err := s.dbm.GetRelayerDB().
		Where("status IN ?", []string{db.RELAY_STATUS_PENDING, db.RELAY_STATUS_SIGNATURES_COLLECTED}).
		Order("created_at ASC, id ASC").
		Find(&txs).Error
	return txs, err
}

// GetRelayTxsByStatus returns the newest rows of a status for inspection
func (s *State) GetRelayTxsByStatus(status string) ([]*db.RelayTransaction, error) {
	s.relayMu.RLock()
	defer s.relayMu.RUnlock()

	var txs []*db.RelayTransaction
	err := s.dbm.GetRelayerDB().
		Where("status = ?", status).
		Order("created_at DESC, id DESC").
		Limit(inspectionLimit).
		Find(&txs).Error
	return txs, err
}

func (s *State) GetRelayTxsBySender(sender string) ([]*db.RelayTransaction, error) {
	s.relayMu.RLock()
	defer s.relayMu.RUnlock()

	var txs []*db.RelayTransaction
	err := s.dbm.GetRelayerDB().
		Where("sender = ?", sender).
		Order("created_at DESC, id DESC").
		Limit(inspectionLimit).
		Find(&txs).Error
	return txs, err
}

func (s *State) GetRelayStats() (RelayStats, error) {
	s.relayMu.RLock()
	defer s.relayMu.RUnlock()

	var rows []struct {
		Status string
		Count  int64
	}
	err := s.dbm.GetRelayerDB().Model(&db.RelayTransaction{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return RelayStats{}, err
	}

	var stats RelayStats
	for _, row := range rows {
		stats.Total += row.Count
		switch row.Status {
		case db.RELAY_STATUS_PENDING:
			stats.Pending = row.Count
		case db.RELAY_STATUS_SIGNATURES_COLLECTED:
			stats.SignaturesCollected = row.Count
		case db.RELAY_STATUS_SUBMITTED:
			stats.Submitted = row.Count
		case db.RELAY_STATUS_CONFIRMED:
			stats.Confirmed = row.Count
		case db.RELAY_STATUS_FAILED:
			stats.Failed = row.Count
		}
	}
	return stats, nil
}

/*
TransitRelayTx
moves a row from one status to the next, the update only applies while the row
is still in status from so a concurrent tick cannot regress it
*/
func (s *State) TransitRelayTx(id uint, from, to string, update RelayTxUpdate) error {
	if !db.CanTransitRelayStatus(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	s.relayMu.Lock()
	defer s.relayMu.Unlock()

	fields := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now(),
	}
	if update.Signatures != nil {
		fields["signatures"] = *update.Signatures
	}
	if update.ToTxHash != nil {
		fields["to_tx_hash"] = *update.ToTxHash
	}
	if update.ErrorMessage != nil {
		fields["error_message"] = *update.ErrorMessage
	}
	// a successful step clears the retry bookkeeping
	if to != db.RELAY_STATUS_FAILED {
		fields["attempts"] = 0
	}

	result := s.dbm.GetRelayerDB().Model(&db.RelayTransaction{}).
		Where("id = ? AND status = ?", id, from).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: id %d is no longer %s", ErrStaleTransition, id, from)
	}
	return nil
}

// RecordRelayAttempt counts a failed step of a row still in status and returns the new attempt count
func (s *State) RecordRelayAttempt(id uint, status string, reason string) (int, error) {
	s.relayMu.Lock()
	defer s.relayMu.Unlock()

	relayerDb := s.dbm.GetRelayerDB()
	var attempts int
	err := relayerDb.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&db.RelayTransaction{}).
			Where("id = ? AND status = ?", id, status).
			Updates(map[string]interface{}{
				"attempts":      gorm.Expr("attempts + 1"),
				"error_message": reason,
				"updated_at":    time.Now(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: id %d is no longer %s", ErrStaleTransition, id, status)
		}
		var row db.RelayTransaction
		if err := tx.Select("attempts").First(&row, id).Error; err != nil {
			return err
		}
		attempts = row.Attempts
		return nil
	})
	return attempts, err
}

func (s *State) queryRelayTx(query string, args ...interface{}) (*db.RelayTransaction, error) {
	var tx db.RelayTransaction
	err := s.dbm.GetRelayerDB().Where(query, args...).First(&tx).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &tx, nil
}
