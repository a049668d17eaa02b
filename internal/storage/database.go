package storage

import (
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/chatter-irc/chatter/internal/logger"
)

// Storage handles database operations
type Storage struct {
	db            *sqlx.DB
	writeBuffer   chan Message
	flushInterval time.Duration
	stopCh        chan struct{}
	wg            sync.WaitGroup
	closedMu      sync.RWMutex
	closed        bool
}

// NewStorage creates a new storage instance
func NewStorage(dbPath string, bufferSize int, flushInterval time.Duration) (*Storage, error) {
	// WAL mode for better concurrent writes
	db, err := sqlx.Connect("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with a single connection in WAL mode
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &Storage{
		db:            db,
		writeBuffer:   make(chan Message, bufferSize),
		flushInterval: flushInterval,
		stopCh:        make(chan struct{}),
	}

	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	s.wg.Add(1)
	go s.flushLoop()

	return s, nil
}

// Close flushes remaining messages and closes the database connection.
func (s *Storage) Close() error {
	s.closedMu.Lock()
	if s.closed {
		s.closedMu.Unlock()
		return nil
	}
	s.closed = true
	s.closedMu.Unlock()

	close(s.stopCh)
	s.wg.Wait()
	s.flushBuffer()
	return s.db.Close()
}

func (s *Storage) isClosed() bool {
	s.closedMu.RLock()
	defer s.closedMu.RUnlock()
	return s.closed
}

func (s *Storage) flushLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.flushBuffer()
		case <-s.stopCh:
			return
		}
	}
}

func (s *Storage) flushBuffer() {
	for {
		select {
		case msg := <-s.writeBuffer:
			if err := s.insertMessage(msg); err != nil {
				logger.Log.Error().Err(err).Msg("failed to flush buffered message")
			}
		default:
			return
		}
	}
}

func (s *Storage) insertMessage(msg Message) error {
	_, err := s.db.NamedExec(`
		INSERT INTO messages (server, channel, sender, body, kind, timestamp)
		VALUES (:server, :channel, :sender, :body, :kind, :timestamp)`, msg)
	return err
}

// WriteMessage queues a message for the buffered background writer.
func (s *Storage) WriteMessage(msg Message) error {
	if s.isClosed() {
		return fmt.Errorf("storage is closed")
	}
	select {
	case s.writeBuffer <- msg:
		return nil
	default:
		// Buffer full; write through so nothing is dropped.
		return s.insertMessage(msg)
	}
}

// WriteMessageSync writes a message immediately, bypassing the buffer.
func (s *Storage) WriteMessageSync(msg Message) error {
	if s.isClosed() {
		return fmt.Errorf("storage is closed")
	}
	return s.insertMessage(msg)
}

// GetMessages returns the most recent messages for a channel, oldest first.
func (s *Storage) GetMessages(server, channel string, limit int) ([]Message, error) {
	var messages []Message
	err := s.db.Select(&messages, `
		SELECT * FROM (
			SELECT * FROM messages WHERE server = ? AND channel = ?
			ORDER BY timestamp DESC, id DESC LIMIT ?
		) ORDER BY timestamp ASC, id ASC`, server, channel, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	return messages, nil
}

// CreateNetwork persists a new server settings record.
func (s *Storage) CreateNetwork(settings *ServerSettings) error {
	now := time.Now()
	settings.CreatedAt = now
	settings.UpdatedAt = now
	res, err := s.db.NamedExec(`
		INSERT INTO networks (name, url, tls, password, auto_connect, auto_join,
			sasl_enabled, sasl_mechanism, sasl_username, sasl_password, created_at, updated_at)
		VALUES (:name, :url, :tls, :password, :auto_connect, :auto_join,
			:sasl_enabled, :sasl_mechanism, :sasl_username, :sasl_password, :created_at, :updated_at)`,
		settings)
	if err != nil {
		return fmt.Errorf("failed to create network: %w", err)
	}
	settings.ID, err = res.LastInsertId()
	return err
}

// GetNetworks returns all server settings records.
func (s *Storage) GetNetworks() ([]ServerSettings, error) {
	var networks []ServerSettings
	if err := s.db.Select(&networks, `SELECT * FROM networks ORDER BY id`); err != nil {
		return nil, fmt.Errorf("failed to get networks: %w", err)
	}
	return networks, nil
}

// GetNetworkByURL returns the settings record for one network URL.
func (s *Storage) GetNetworkByURL(url string) (*ServerSettings, error) {
	var settings ServerSettings
	if err := s.db.Get(&settings, `SELECT * FROM networks WHERE url = ?`, url); err != nil {
		return nil, fmt.Errorf("failed to get network %s: %w", url, err)
	}
	return &settings, nil
}

// UpdateNetwork updates an existing server settings record.
func (s *Storage) UpdateNetwork(settings *ServerSettings) error {
	settings.UpdatedAt = time.Now()
	_, err := s.db.NamedExec(`
		UPDATE networks SET name = :name, url = :url, tls = :tls, password = :password,
			auto_connect = :auto_connect, auto_join = :auto_join,
			sasl_enabled = :sasl_enabled, sasl_mechanism = :sasl_mechanism,
			sasl_username = :sasl_username, sasl_password = :sasl_password,
			updated_at = :updated_at
		WHERE id = :id`, settings)
	if err != nil {
		return fmt.Errorf("failed to update network: %w", err)
	}
	return nil
}

// DeleteNetwork removes a server settings record.
func (s *Storage) DeleteNetwork(id int64) error {
	if _, err := s.db.Exec(`DELETE FROM networks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete network: %w", err)
	}
	return nil
}

// GetAccount returns the stored account settings, or the defaults when
// none have been saved yet.
func (s *Storage) GetAccount() (*AccountSettings, error) {
	var account AccountSettings
	err := s.db.Get(&account, `SELECT * FROM accounts ORDER BY id LIMIT 1`)
	if err != nil {
		return DefaultAccountSettings(), nil
	}
	return &account, nil
}

// SaveAccount inserts or replaces the account settings record.
func (s *Storage) SaveAccount(account *AccountSettings) error {
	if account.ID == 0 {
		res, err := s.db.NamedExec(`
			INSERT INTO accounts (nickname, username, realname, quit_message, part_message, kick_message)
			VALUES (:nickname, :username, :realname, :quit_message, :part_message, :kick_message)`,
			account)
		if err != nil {
			return fmt.Errorf("failed to save account: %w", err)
		}
		account.ID, err = res.LastInsertId()
		return err
	}
	_, err := s.db.NamedExec(`
		UPDATE accounts SET nickname = :nickname, username = :username, realname = :realname,
			quit_message = :quit_message, part_message = :part_message, kick_message = :kick_message
		WHERE id = :id`, account)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	return nil
}
