package state

import (
	"errors"
	"time"

	"github.com/goatnetwork/bridge-relayer/internal/db"
	"gorm.io/gorm"
)

// GetSyncStatus returns the checkpoint of a chain, a never synced chain yields an empty status
func (s *State) GetSyncStatus(chain string) (db.SyncStatus, error) {
	s.syncMu.RLock()
	defer s.syncMu.RUnlock()

	var status db.SyncStatus
	err := s.dbm.GetSyncDB().Where("chain = ?", chain).First(&status).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return db.SyncStatus{Chain: chain}, nil
	}
	return status, err
}

// SaveSyncStatus is idempotent, the row is created on first save
func (s *State) SaveSyncStatus(chain string, height uint64, cursor string) error {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	var status db.SyncStatus
	err := s.dbm.GetSyncDB().Where("chain = ?", chain).First(&status).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	status.Chain = chain
	status.LastHeight = height
	status.LastCursor = cursor
	status.UpdatedAt = time.Now()
	return s.dbm.GetSyncDB().Save(&status).Error
}
