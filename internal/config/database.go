package config

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
)

// SetupDatabase initializes the database connection
func SetupDatabase(cfg *Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.Database.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	// Create tables if they don't exist
	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return db, nil
}

// createTables creates the necessary tables in the database. All child
// tables cascade on account deletion; the deletion sweep relies on that
// instead of deleting dependents itself.
func createTables(db *sqlx.DB) error {
	// Create accounts table
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS accounts (
			id VARCHAR(36) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			subscription_expires_at TIMESTAMP,
			deletion_scheduled_at TIMESTAMP,
			deactivated_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create users table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id VARCHAR(36) PRIMARY KEY,
			account_id VARCHAR(36) NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
			email VARCHAR(255) UNIQUE NOT NULL,
			name VARCHAR(255) NOT NULL,
			password VARCHAR(255) NOT NULL,
			is_primary BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create clients table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS clients (
			id VARCHAR(36) PRIMARY KEY,
			account_id VARCHAR(36) NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
			name VARCHAR(255) NOT NULL,
			priority_required BOOLEAN NOT NULL DEFAULT FALSE,
			is_account_client BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create folders table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS folders (
			id VARCHAR(36) PRIMARY KEY,
			account_id VARCHAR(36) NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
			name VARCHAR(255) NOT NULL,
			created_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create signees table. Email uniqueness is per account and checked in
	// the service layer, so no constraint here.
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS signees (
			id VARCHAR(36) PRIMARY KEY,
			account_id VARCHAR(36) NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
			client_id VARCHAR(36) NOT NULL REFERENCES clients(id) ON DELETE CASCADE,
			name VARCHAR(255) NOT NULL,
			email VARCHAR(255) NOT NULL,
			signing_sequence INTEGER,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create contracts table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS contracts (
			id VARCHAR(36) PRIMARY KEY,
			account_id VARCHAR(36) NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
			client_id VARCHAR(36) NOT NULL REFERENCES clients(id) ON DELETE CASCADE,
			folder_id VARCHAR(36) NOT NULL REFERENCES folders(id) ON DELETE CASCADE,
			title VARCHAR(255) NOT NULL,
			content TEXT NOT NULL,
			signed_content TEXT NOT NULL,
			status VARCHAR(20) NOT NULL,
			created_by VARCHAR(36) NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create contract_signees table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS contract_signees (
			id VARCHAR(36) PRIMARY KEY,
			contract_id VARCHAR(36) NOT NULL REFERENCES contracts(id) ON DELETE CASCADE,
			signee_id VARCHAR(36) NOT NULL,
			name VARCHAR(255) NOT NULL,
			email VARCHAR(255) NOT NULL,
			is_account_signee BOOLEAN NOT NULL DEFAULT FALSE,
			status VARCHAR(20) NOT NULL,
			signee_priority INTEGER,
			position INTEGER NOT NULL,
			signature TEXT NOT NULL DEFAULT '',
			signature_type VARCHAR(10) NOT NULL DEFAULT '',
			signature_key VARCHAR(255) NOT NULL DEFAULT '',
			signed_at BIGINT,
			signed_ip VARCHAR(45) NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create contract_logs table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS contract_logs (
			id VARCHAR(36) PRIMARY KEY,
			contract_id VARCHAR(36) NOT NULL REFERENCES contracts(id) ON DELETE CASCADE,
			actor_name VARCHAR(255) NOT NULL,
			description TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create indexes for better performance
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_contracts_account ON contracts(account_id)",
		"CREATE INDEX IF NOT EXISTS idx_contracts_status ON contracts(status)",
		"CREATE INDEX IF NOT EXISTS idx_contract_signees_contract ON contract_signees(contract_id)",
		"CREATE INDEX IF NOT EXISTS idx_contract_logs_contract ON contract_logs(contract_id)",
		"CREATE INDEX IF NOT EXISTS idx_signees_client ON signees(client_id)",
	}

	for _, idx := range indexes {
		_, err = db.Exec(idx)
		if err != nil {
			log.Printf("Warning: Failed to create index: %v", err)
			// Don't return error here, indexes are not critical
		}
	}

	return nil
}
