package migrations

import (
	"database/sql"
	"fmt"
)

// Migrate creates the tables the MySQL store needs if they do not exist.
func Migrate(db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("db is not initialized")
	}
	createKV := `
	CREATE TABLE IF NOT EXISTS kv_store (
		k VARCHAR(191) NOT NULL PRIMARY KEY,
		v LONGBLOB NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`
	if _, err := db.Exec(createKV); err != nil {
		return err
	}
	// Columns added after the first release.
	_, _ = db.Exec("ALTER TABLE kv_store ADD COLUMN IF NOT EXISTS updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP")
	return nil
}
