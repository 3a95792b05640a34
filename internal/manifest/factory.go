package manifest

import (
	"fmt"
	"os"
)

// StorageDriver identifies a concrete manifest store implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// Open selects a manifest store backend using environment variables.
// Defaults to sqlite when unset.
//
//	CELLSEQ_MANIFEST_DRIVER: memory|sqlite|postgres (default sqlite)
//	CELLSEQ_SQLITE_PATH: path to sqlite file (default ./cellseq.db)
//	CELLSEQ_POSTGRES_DSN: postgres DSN when driver=postgres
func Open() (Store, error) {
	driver := os.Getenv("CELLSEQ_MANIFEST_DRIVER")
	if driver == "" {
		driver = string(StorageSQLite)
	}
	switch StorageDriver(driver) {
	case StorageMemory:
		return NewMemoryStore(), nil
	case StorageSQLite:
		return NewSQLiteStore(os.Getenv("CELLSEQ_SQLITE_PATH"))
	case StoragePostgres:
		return NewPostgresStore(os.Getenv("CELLSEQ_POSTGRES_DSN"))
	default:
		return nil, fmt.Errorf("unknown manifest driver %s", driver)
	}
}
