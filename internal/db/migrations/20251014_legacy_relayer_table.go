package migrations

import (
	"gorm.io/gorm"
)

const relayerTable = "relayer_transactions"

// RelayerMigrations lists the relayer.db migrations in apply order
func RelayerMigrations() []Step {
	return []Step{
		{Name: "20251014_add_relayer_tx_attempts", Fn: AddRelayerTxAttempts},
		{Name: "20251014_drop_legacy_relayer_indexes", Fn: DropLegacyRelayerIndexes},
	}
}

// AddRelayerTxAttempts adds the attempts column to a relayer_transactions table
// created by the legacy relayer. A fresh database is left to AutoMigrate.
func AddRelayerTxAttempts(tx *gorm.DB) error {
	if !tx.Migrator().HasTable(relayerTable) {
		return nil
	}
	if tx.Migrator().HasColumn(relayerTable, "attempts") {
		return nil
	}
	return tx.Exec("ALTER TABLE relayer_transactions ADD COLUMN attempts INTEGER NOT NULL DEFAULT 0").Error
}

// DropLegacyRelayerIndexes removes the hand-made legacy indexes, the unique
// constraints on nonce and from_tx_hash stay on the table itself.
func DropLegacyRelayerIndexes(tx *gorm.DB) error {
	if !tx.Migrator().HasTable(relayerTable) {
		return nil
	}
	for _, idx := range []string{"idx_nonce", "idx_status", "idx_from_tx_hash", "idx_to_tx_hash"} {
		if err := tx.Exec("DROP INDEX IF EXISTS " + idx).Error; err != nil {
			return err
		}
	}
	return nil
}
