package db

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goatnetwork/bridge-relayer/internal/config"
	"github.com/goatnetwork/bridge-relayer/internal/db/migrations"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type DatabaseManager struct {
	syncDb    *gorm.DB
	relayerDb *gorm.DB
}

func NewDatabaseManager() *DatabaseManager {
	dm, err := OpenDatabaseManager(config.AppConfig.DbDir, config.AppConfig.DbMaxConnections)
	if err != nil {
		log.Fatalf("Failed to open databases: %v", err)
	}
	return dm
}

// OpenDatabaseManager opens (and migrates) the sqlite files under dbDir
func OpenDatabaseManager(dbDir string, maxConnections int) (*DatabaseManager, error) {
	if err := os.MkdirAll(dbDir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dm := &DatabaseManager{}

	syncPath := filepath.Join(dbDir, "chain_sync.db")
	syncDb, err := openSqlite(syncPath, maxConnections)
	if err != nil {
		return nil, fmt.Errorf("connect to database 1: %w", err)
	}
	dm.syncDb = syncDb
	log.Debugf("Database 1 connected successfully, path: %s", syncPath)

	relayerPath := filepath.Join(dbDir, "relayer.db")
	relayerDb, err := openSqlite(relayerPath, maxConnections)
	if err != nil {
		return nil, fmt.Errorf("connect to database 2: %w", err)
	}
	dm.relayerDb = relayerDb
	log.Debugf("Database 2 connected successfully, path: %s", relayerPath)

	if err := dm.runMigrations(); err != nil {
		return nil, err
	}
	dm.autoMigrate()
	log.Debugf("Database migration completed successfully")
	return dm, nil
}

func openSqlite(path string, maxConnections int) (*gorm.DB, error) {
	gdb, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, err
	}
	if maxConnections > 0 {
		sqlDb, err := gdb.DB()
		if err != nil {
			return nil, err
		}
		sqlDb.SetMaxOpenConns(maxConnections)
	}
	return gdb, nil
}

// runMigrations upgrades a relayer.db created by the legacy relayer before AutoMigrate
// adds the unique indexes.
func (dm *DatabaseManager) runMigrations() error {
	mm := migrations.NewMigrationManager(dm.relayerDb)
	if err := mm.EnsureMigrationTable(); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}
	for _, m := range migrations.RelayerMigrations() {
		if err := mm.RunMigration(m.Name, m.Fn); err != nil {
			return err
		}
	}
	return nil
}

func (dm *DatabaseManager) GetSyncDB() *gorm.DB {
	return dm.syncDb
}

func (dm *DatabaseManager) GetRelayerDB() *gorm.DB {
	return dm.relayerDb
}

func (dm *DatabaseManager) Close() {
	for _, gdb := range []*gorm.DB{dm.syncDb, dm.relayerDb} {
		if sqlDb, err := gdb.DB(); err == nil {
			sqlDb.Close()
		}
	}
}
