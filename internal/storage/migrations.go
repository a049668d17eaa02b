package storage

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Migrate runs all database migrations
func Migrate(db *sqlx.DB) error {
	migrations := []string{
		createNetworksTable,
		createAccountsTable,
		createMessagesTable,
		createIndexes,
	}

	for i, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}

const createNetworksTable = `
CREATE TABLE IF NOT EXISTS networks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	url TEXT NOT NULL UNIQUE,
	tls BOOLEAN NOT NULL DEFAULT 0,
	password TEXT NOT NULL DEFAULT '',
	auto_connect BOOLEAN NOT NULL DEFAULT 0,
	auto_join TEXT NOT NULL DEFAULT '',
	sasl_enabled BOOLEAN NOT NULL DEFAULT 0,
	sasl_mechanism TEXT,
	sasl_username TEXT,
	sasl_password TEXT,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

const createAccountsTable = `
CREATE TABLE IF NOT EXISTS accounts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	nickname TEXT NOT NULL,
	username TEXT NOT NULL,
	realname TEXT NOT NULL,
	quit_message TEXT NOT NULL DEFAULT '',
	part_message TEXT NOT NULL DEFAULT '',
	kick_message TEXT NOT NULL DEFAULT ''
)`

const createMessagesTable = `
CREATE TABLE IF NOT EXISTS messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	server TEXT NOT NULL,
	channel TEXT NOT NULL,
	sender TEXT NOT NULL,
	body TEXT NOT NULL,
	kind TEXT NOT NULL,
	timestamp TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

const createIndexes = `
CREATE INDEX IF NOT EXISTS idx_messages_server_channel ON messages(server, channel);
CREATE INDEX IF NOT EXISTS idx_messages_timestamp ON messages(timestamp)`
