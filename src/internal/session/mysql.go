package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/CovenantBits/Covforge/src/internal/logger"
)

var ErrSessionNotFound = errors.New("session not found")

// MySQLStore archives sessions and turns. It layers write-through
// persistence over a MemoryStore so reads never touch the database on the
// hot path; Get falls back to the archive for sessions from earlier runs.
type MySQLStore struct {
	mem *MemoryStore
	db  *sql.DB
}

// OpenMySQL connects, provisions the schema, and returns a ready store.
func OpenMySQL(ctx context.Context, dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("session: open mysql: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("session: mysql ping failed: %w", err)
	}

	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &MySQLStore{mem: NewMemoryStore(), db: db}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	schemas := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
    session_id VARCHAR(64) PRIMARY KEY,
    created_at DATETIME NOT NULL,
    current_code LONGTEXT
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
		`CREATE TABLE IF NOT EXISTS session_turns (
    session_id VARCHAR(64) NOT NULL,
    turn_number INT NOT NULL,
    intent TEXT NOT NULL,
    intent_model JSON,
    code LONGTEXT NOT NULL,
    toll_gate JSON,
    created_at DATETIME NOT NULL,
    PRIMARY KEY (session_id, turn_number),
    INDEX idx_session (session_id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
	}
	for _, schema := range schemas {
		if _, err := db.ExecContext(ctx, schema); err != nil {
			return fmt.Errorf("session: migrate: %w", err)
		}
	}
	return nil
}

func (s *MySQLStore) GetOrCreate(id string) *Session {
	if id != "" {
		if sess, ok := s.Get(id); ok {
			return sess
		}
	}
	sess := s.mem.GetOrCreate(id)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, err := s.db.ExecContext(ctx,
		"INSERT IGNORE INTO sessions (session_id, created_at, current_code) VALUES (?, ?, '')",
		sess.ID, sess.CreatedAt)
	if err != nil {
		logger.Warn("Session archive insert failed for %s: %v", sess.ID, err)
	}
	return sess
}

func (s *MySQLStore) Get(id string) (*Session, bool) {
	if sess, ok := s.mem.Get(id); ok {
		return sess, true
	}
	sess, err := s.load(id)
	if err != nil {
		if !errors.Is(err, ErrSessionNotFound) {
			logger.Warn("Session archive load failed for %s: %v", id, err)
		}
		return nil, false
	}
	// Rehydrate into memory so later turns append in the right place.
	s.mem.mu.Lock()
	s.mem.sessions[id] = sess
	s.mem.mu.Unlock()
	return sess, true
}

func (s *MySQLStore) load(id string) (*Session, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	sess := &Session{ID: id}
	err := s.db.QueryRowContext(ctx,
		"SELECT created_at, current_code FROM sessions WHERE session_id = ?", id).
		Scan(&sess.CreatedAt, &sess.CurrentCode)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT turn_number, intent, intent_model, code, toll_gate, created_at FROM session_turns WHERE session_id = ? ORDER BY turn_number", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			t             Turn
			intentModelJS sql.NullString
			tollGateJS    sql.NullString
		)
		if err := rows.Scan(&t.Number, &t.Intent, &intentModelJS, &t.Code, &tollGateJS, &t.CreatedAt); err != nil {
			return nil, err
		}
		if intentModelJS.Valid {
			if err := json.Unmarshal([]byte(intentModelJS.String), &t.IntentModel); err != nil {
				logger.Warn("Session %s turn %d: bad intent_model json: %v", id, t.Number, err)
			}
		}
		if tollGateJS.Valid {
			if err := json.Unmarshal([]byte(tollGateJS.String), &t.TollGate); err != nil {
				logger.Warn("Session %s turn %d: bad toll_gate json: %v", id, t.Number, err)
			}
		}
		sess.Turns = append(sess.Turns, t)
	}
	return sess, rows.Err()
}

func (s *MySQLStore) StoreTurn(id string, t Turn) error {
	if err := s.mem.StoreTurn(id, t); err != nil {
		return err
	}
	sess, _ := s.mem.Get(id)
	stored := sess.Turns[len(sess.Turns)-1]

	intentModelJS, err := json.Marshal(stored.IntentModel)
	if err != nil {
		return fmt.Errorf("session: marshal intent model: %w", err)
	}
	tollGateJS, err := json.Marshal(stored.TollGate)
	if err != nil {
		return fmt.Errorf("session: marshal toll gate: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO session_turns (session_id, turn_number, intent, intent_model, code, toll_gate, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		id, stored.Number, stored.Intent, string(intentModelJS), stored.Code, string(tollGateJS), stored.CreatedAt)
	if err != nil {
		return fmt.Errorf("session: archive turn: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		"UPDATE sessions SET current_code = ? WHERE session_id = ?", stored.Code, id)
	if err != nil {
		logger.Warn("Session %s: current_code update failed: %v", id, err)
	}
	return nil
}

func (s *MySQLStore) Delete(id string) bool {
	existed := s.mem.Delete(id)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if res, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE session_id = ?", id); err == nil {
		if n, _ := res.RowsAffected(); n > 0 {
			existed = true
		}
	}
	s.db.ExecContext(ctx, "DELETE FROM session_turns WHERE session_id = ?", id)
	return existed
}

func (s *MySQLStore) Close() error {
	return s.db.Close()
}
