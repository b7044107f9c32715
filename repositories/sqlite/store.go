// Package sqlite implements the relay store on SQLite through database/sql.
package sqlite

import (
	"chat-relay/contract"
	"chat-relay/domain"
	chaterrors "chat-relay/errors"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	username   TEXT PRIMARY KEY,
	credential TEXT NOT NULL,
	online     INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS chat_groups (
	name       TEXT PRIMARY KEY,
	admin      TEXT NOT NULL REFERENCES accounts(username),
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS group_members (
	group_name TEXT NOT NULL REFERENCES chat_groups(name),
	username   TEXT NOT NULL REFERENCES accounts(username),
	joined_at  INTEGER NOT NULL,
	PRIMARY KEY (group_name, username)
);

CREATE TABLE IF NOT EXISTS messages (
	id           TEXT PRIMARY KEY,
	conversation TEXT NOT NULL,
	is_group     INTEGER NOT NULL,
	sender       TEXT NOT NULL,
	target       TEXT NOT NULL,
	content      TEXT NOT NULL,
	ts           INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_group_members_username ON group_members(username);
CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(is_group, conversation, ts);
`

// Store implements contract.Store. Every call holds mu so that
// read-check-write sequences such as the admission cap stay atomic.
type Store struct {
	mu  sync.Mutex
	db  *sql.DB
	log *slog.Logger
}

var _ contract.Store = (*Store)(nil)

// Open creates the database file and its schema if needed.
func Open(ctx context.Context, path string, log *slog.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("database opening failed: %w", err)
	}
	if _, err = db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("schema creation failed: %w", err)
	}
	return &Store{db: db, log: log}, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log.Info("Closing SQLite...")
	return s.db.Close()
}

func (s *Store) RegisterAccount(ctx context.Context, username, credential string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (username, credential, online, created_at) VALUES (?, ?, 0, ?)`,
		username, credential, time.Now().UnixNano())
	if isConstraint(err) {
		return fmt.Errorf("%w: %s", chaterrors.ErrUserAlreadyExists, username)
	}
	return err
}

func (s *Store) Credential(ctx context.Context, username string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var credential string
	err := s.db.QueryRowContext(ctx,
		`SELECT credential FROM accounts WHERE username = ?`, username).Scan(&credential)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", chaterrors.ErrUserNotFound, username)
	}
	return credential, err
}

func (s *Store) SetOnline(ctx context.Context, username string, online bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET online = ? WHERE username = ?`, online, username)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", chaterrors.ErrUserNotFound, username)
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return queryStrings(ctx, s.db, `SELECT username FROM accounts ORDER BY username`)
}

func (s *Store) UserExists(ctx context.Context, username string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return rowExists(ctx, s.db, `SELECT 1 FROM accounts WHERE username = ?`, username)
}

func (s *Store) CreateGroup(ctx context.Context, name, admin string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixNano()
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO chat_groups (name, admin, created_at) VALUES (?, ?, ?)`, name, admin, now)
		if isConstraint(err) {
			if found, _ := rowExists(ctx, tx, `SELECT 1 FROM chat_groups WHERE name = ?`, name); found {
				return fmt.Errorf("%w: %s", chaterrors.ErrGroupAlreadyExists, name)
			}
			return fmt.Errorf("%w: %s", chaterrors.ErrUserNotFound, admin)
		}
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO group_members (group_name, username, joined_at) VALUES (?, ?, ?)`, name, admin, now)
		return err
	})
}

func (s *Store) Group(ctx context.Context, name string) (domain.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return getGroup(ctx, s.db, name)
}

func (s *Store) GroupsOf(ctx context.Context, username string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return queryStrings(ctx, s.db,
		`SELECT group_name FROM group_members WHERE username = ? ORDER BY group_name`, username)
}

// AddMember admits username unless the group is at capacity.
// Adding an existing member is a no-op.
func (s *Store) AddMember(ctx context.Context, group, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		g, err := getGroup(ctx, tx, group)
		if err != nil {
			return err
		}
		if g.IsMember(username) {
			return nil
		}
		found, err := rowExists(ctx, tx, `SELECT 1 FROM accounts WHERE username = ?`, username)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: %s", chaterrors.ErrUserNotFound, username)
		}
		if g.IsFull() {
			return fmt.Errorf("%w: %s", chaterrors.ErrGroupFull, group)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO group_members (group_name, username, joined_at) VALUES (?, ?, ?)`,
			group, username, time.Now().UnixNano())
		return err
	})
}

func (s *Store) RemoveMember(ctx context.Context, group, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		g, err := getGroup(ctx, tx, group)
		if err != nil {
			return err
		}
		if g.IsAdmin(username) {
			return fmt.Errorf("%w: %s", chaterrors.ErrAdminCannotLeave, group)
		}
		res, err := tx.ExecContext(ctx,
			`DELETE FROM group_members WHERE group_name = ? AND username = ?`, group, username)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("%w: %s", chaterrors.ErrNotGroupMember, group)
		}
		return nil
	})
}

func (s *Store) Members(ctx context.Context, group string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, err := getGroup(ctx, s.db, group)
	return g.Members, err
}

func (s *Store) IsAdmin(ctx context.Context, group, username string) (bool, error) {
	admin, err := s.AdminOf(ctx, group)
	if err != nil {
		return false, err
	}
	return admin == username, nil
}

func (s *Store) AdminOf(ctx context.Context, group string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var admin string
	err := s.db.QueryRowContext(ctx, `SELECT admin FROM chat_groups WHERE name = ?`, group).Scan(&admin)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", chaterrors.ErrGroupNotFound, group)
	}
	return admin, err
}

func (s *Store) MemberCount(ctx context.Context, group string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, err := getGroup(ctx, s.db, group)
	return len(g.Members), err
}

func (s *Store) AppendDirectMessage(ctx context.Context, record domain.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertRecord(ctx, s.db, domain.ConversationKey(record.Sender, record.Target), false, record)
}

func (s *Store) AppendGroupMessage(ctx context.Context, record domain.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	found, err := rowExists(ctx, s.db, `SELECT 1 FROM chat_groups WHERE name = ?`, record.Target)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %s", chaterrors.ErrGroupNotFound, record.Target)
	}
	return insertRecord(ctx, s.db, record.Target, true, record)
}

func (s *Store) HistoryDirect(ctx context.Context, a, b string, limit int) ([]domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return history(ctx, s.db, domain.ConversationKey(a, b), false, limit)
}

func (s *Store) HistoryGroup(ctx context.Context, group string, limit int) ([]domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return history(ctx, s.db, group, true, limit)
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func getGroup(ctx context.Context, q querier, name string) (domain.Group, error) {
	var (
		group     = domain.Group{Name: name}
		createdAt int64
	)
	err := q.QueryRowContext(ctx,
		`SELECT admin, created_at FROM chat_groups WHERE name = ?`, name).Scan(&group.Admin, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Group{}, fmt.Errorf("%w: %s", chaterrors.ErrGroupNotFound, name)
	}
	if err != nil {
		return domain.Group{}, err
	}
	group.CreatedAt = time.Unix(0, createdAt).UTC()
	group.Members, err = queryStrings(ctx, q,
		`SELECT username FROM group_members WHERE group_name = ? ORDER BY username`, name)
	return group, err
}

func insertRecord(ctx context.Context, q querier, conversation string, isGroup bool, r domain.Record) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO messages (id, conversation, is_group, sender, target, content, ts) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID.String(), conversation, isGroup, r.Sender, r.Target, r.Content, r.Timestamp.UnixNano())
	return err
}

// history selects the newest limit records then flips them to oldest first.
// SQLite treats a negative LIMIT as unbounded.
func history(ctx context.Context, q querier, conversation string, isGroup bool, limit int) ([]domain.Record, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := q.QueryContext(ctx, `
		SELECT id, sender, target, content, ts FROM messages
		WHERE is_group = ? AND conversation = ?
		ORDER BY ts DESC, id DESC
		LIMIT ?`, isGroup, conversation, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.Record
	for rows.Next() {
		var (
			r  domain.Record
			id string
			ts int64
		)
		if err = rows.Scan(&id, &r.Sender, &r.Target, &r.Content, &ts); err != nil {
			return nil, err
		}
		if r.ID, err = uuid.Parse(id); err != nil {
			return nil, err
		}
		r.Timestamp = time.Unix(0, ts).UTC()
		records = append(records, r)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	slices.Reverse(records)
	return records, nil
}

func queryStrings(ctx context.Context, q querier, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err = rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func rowExists(ctx context.Context, q querier, query string, args ...any) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func isConstraint(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint
}
