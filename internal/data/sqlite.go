package data

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/flatpee/flatpee-bot/internal/biz/domain"
	"github.com/flatpee/flatpee-bot/internal/biz/repo"

	_ "modernc.org/sqlite"
)

const defaultPurgeInterval = 6 * time.Hour

// sqliteConversationRepo implements the conversation log on SQLite
// The store enforces retention itself with a background purge loop
type sqliteConversationRepo struct {
	db        *sql.DB
	retention time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSQLiteConversationRepo opens or creates the conversation log at dbPath
func NewSQLiteConversationRepo(dbPath string, retention time.Duration) (repo.ConversationRepo, error) {
	return newSQLiteConversationRepo(dbPath, retention, defaultPurgeInterval)
}

func newSQLiteConversationRepo(dbPath string, retention, purgeInterval time.Duration) (*sqliteConversationRepo, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer at a time; concurrent handlers queue on the pool
	db.SetMaxOpenConns(1)

	// Create table
	// seq keeps insertion order for records with the same occurred_at
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS messages (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			conversation_id TEXT NOT NULL,
			text TEXT NOT NULL,
			direction TEXT NOT NULL CHECK (direction IN ('inbound', 'outbound')),
			occurred_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	// Create indexes
	for _, stmt := range []string{
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation_time ON messages(conversation_id, occurred_at DESC, seq DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_occurred_at ON messages(occurred_at)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create index: %w", err)
		}
	}

	r := &sqliteConversationRepo{db: db, retention: retention}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.wg.Add(1)
	go r.purgeLoop(ctx, purgeInterval)

	return r, nil
}

// Append writes one record
func (r *sqliteConversationRepo) Append(ctx context.Context, record *domain.MessageRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, text, direction, occurred_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		record.ID,
		string(record.ConversationID),
		record.Text,
		string(record.Direction),
		record.OccurredAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

// Recent returns the newest records, reversed to oldest first
func (r *sqliteConversationRepo) Recent(ctx context.Context, conversationID domain.ConversationID, limit int) ([]domain.MessageRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, conversation_id, text, direction, occurred_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY occurred_at DESC, seq DESC
		LIMIT ?
	`, string(conversationID), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var records []domain.MessageRecord
	for rows.Next() {
		var rec domain.MessageRecord
		var convID, direction string
		var occurredAt int64
		if err := rows.Scan(&rec.ID, &convID, &rec.Text, &direction, &occurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		rec.ConversationID = domain.ConversationID(convID)
		rec.Direction = domain.Direction(direction)
		rec.OccurredAt = time.Unix(0, occurredAt)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read messages: %w", err)
	}

	// Reverse to oldest first
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records, nil
}

// Ping checks the database is reachable
func (r *sqliteConversationRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Indexes lists the indexes on the messages table
func (r *sqliteConversationRepo) Indexes(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT name FROM sqlite_master
		WHERE type = 'index' AND tbl_name = 'messages'
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list indexes: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan index: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Close stops the purge loop and closes the database
func (r *sqliteConversationRepo) Close() error {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
	return r.db.Close()
}

// purge deletes records that occurred before the cutoff
func (r *sqliteConversationRepo) purge(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE occurred_at < ?`, before.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to purge messages: %w", err)
	}
	return result.RowsAffected()
}

// purgeLoop removes expired records (runs every interval)
func (r *sqliteConversationRepo) purgeLoop(ctx context.Context, interval time.Duration) {
	defer r.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := r.purge(ctx, time.Now().Add(-r.retention))
			if err != nil {
				fmt.Printf("[Store] Purge failed: %v\n", err)
				continue
			}
			if n > 0 {
				fmt.Printf("[Store] Purged %d expired messages\n", n)
			}
		}
	}
}
