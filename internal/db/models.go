package db

import (
	"time"

	log "github.com/sirupsen/logrus"
)

// SyncStatus model, one row per observed chain
type SyncStatus struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Chain      string    `gorm:"not null;uniqueIndex" json:"chain"`
	LastHeight uint64    `gorm:"not null" json:"last_height"`           // block number or slot
	LastCursor string    `gorm:"not null;default:''" json:"last_cursor"` // last processed signature, solana only
	UpdatedAt  time.Time `gorm:"not null" json:"updated_at"`
}

// RelayTransaction model, the relay ledger row of one cross-chain transfer
type RelayTransaction struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Nonce        uint64    `gorm:"not null;uniqueIndex" json:"nonce"`
	FromChain    string    `gorm:"not null" json:"from_chain"`
	ToChain      string    `gorm:"not null" json:"to_chain"`
	FromTxHash   string    `gorm:"not null;uniqueIndex" json:"from_tx_hash"`
	ToTxHash     *string   `gorm:"index" json:"to_tx_hash"`
	Sender       string    `gorm:"not null;index" json:"sender"`
	Recipient    string    `gorm:"not null" json:"recipient"`
	Amount       uint64    `gorm:"not null" json:"amount"`
	Status       string    `gorm:"not null;index" json:"status"` // "Pending", "SignaturesCollected", "Submitted", "Confirmed", "Failed"
	Signatures   *string   `json:"signatures"`                   // JSON array of validator signatures
	ErrorMessage *string   `json:"error_message"`
	Attempts     int       `gorm:"not null;default:0" json:"attempts"`
	CreatedAt    time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt    time.Time `gorm:"not null" json:"updated_at"`
}

func (RelayTransaction) TableName() string {
	return "relayer_transactions"
}

func (dm *DatabaseManager) autoMigrate() {
	if err := dm.syncDb.AutoMigrate(&SyncStatus{}); err != nil {
		log.Fatalf("Failed to migrate database 1: %v", err)
	}
	if err := dm.relayerDb.AutoMigrate(&RelayTransaction{}); err != nil {
		log.Fatalf("Failed to migrate database 2: %v", err)
	}
}
