// Package store persists notifications and mute state in SQLite.
//
// One row per tmux pane: inserting a notification for a pane that already
// has one atomically replaces it. Multiple OS processes (daemon, hook
// adapters, panel) share the database via WAL mode and a busy timeout.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SchemaVersion tracks the current database schema version.
// Bump this when adding migrations.
const SchemaVersion = 1

// StorageError wraps a failed store operation. Callers log it and continue;
// store failures never abort a poll loop.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

// Store wraps a SQLite database holding notifications and mute state.
// Thread-safe for concurrent use from multiple goroutines within one
// process; mutations serialize on an internal writer lock.
type Store struct {
	db      *sql.DB
	writeMu sync.Mutex
}

// Open creates or opens a SQLite database at dbPath with WAL mode and busy
// timeout, and applies migrations.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, storageErr("mkdir", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, storageErr("open", err)
	}

	// WAL allows readers concurrent with the single writer
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, storageErr("wal mode", err)
	}
	// Wait up to 5s if another process holds the write lock
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, storageErr("busy timeout", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, storageErr("foreign keys", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close checkpoints WAL and closes the database.
func (s *Store) Close() error {
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}

// DB returns the underlying sql.DB for advanced use cases (e.g., testing).
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) migrate() error {
	tx, err := s.db.Begin()
	if err != nil {
		return storageErr("begin migrate", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS metadata (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`); err != nil {
		return storageErr("create metadata", err)
	}

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS notifications (
			id                 INTEGER PRIMARY KEY AUTOINCREMENT,
			badge              TEXT NOT NULL DEFAULT '',
			body               TEXT NOT NULL DEFAULT '',
			badge_color        TEXT NOT NULL DEFAULT 'gray',
			icon               TEXT NOT NULL DEFAULT '',
			metadata           TEXT NOT NULL DEFAULT '{}',
			repo               TEXT NOT NULL DEFAULT '',
			tmux_pane          TEXT NOT NULL DEFAULT '',
			terminal_bundle_id TEXT NOT NULL DEFAULT '',
			force_focus        INTEGER NOT NULL DEFAULT 0,
			is_read            INTEGER NOT NULL DEFAULT 0,
			created_at         INTEGER NOT NULL
		)
	`); err != nil {
		return storageErr("create notifications", err)
	}

	if _, err := tx.Exec(`
		CREATE INDEX IF NOT EXISTS idx_notifications_created_at
		ON notifications(created_at DESC)
	`); err != nil {
		return storageErr("create created_at index", err)
	}
	if _, err := tx.Exec(`
		CREATE INDEX IF NOT EXISTS idx_notifications_tmux_pane
		ON notifications(tmux_pane)
	`); err != nil {
		return storageErr("create tmux_pane index", err)
	}

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS mute_state (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`); err != nil {
		return storageErr("create mute_state", err)
	}

	if _, err := tx.Exec(`
		INSERT OR REPLACE INTO metadata (key, value) VALUES ('schema_version', ?)
	`, fmt.Sprintf("%d", SchemaVersion)); err != nil {
		return storageErr("set schema version", err)
	}

	if err := tx.Commit(); err != nil {
		return storageErr("commit migrate", err)
	}
	return nil
}

// Insert stores a notification, assigning its ID and CreatedAt. When the
// input names a tmux pane, any existing row for that pane is deleted in the
// same transaction so at most one row per pane ever exists.
func (s *Store) Insert(in Input) (*Notification, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	metaJSON := "{}"
	if len(in.Metadata) > 0 {
		b, err := json.Marshal(in.Metadata)
		if err != nil {
			return nil, storageErr("encode metadata", err)
		}
		metaJSON = string(b)
	}

	createdAt := time.Now()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, storageErr("begin insert", err)
	}
	defer func() { _ = tx.Rollback() }()

	if in.TmuxPane != "" {
		if _, err := tx.Exec(`DELETE FROM notifications WHERE tmux_pane = ?`, in.TmuxPane); err != nil {
			return nil, storageErr("replace by pane", err)
		}
	}

	res, err := tx.Exec(`
		INSERT INTO notifications (
			badge, body, badge_color, icon, metadata, repo,
			tmux_pane, terminal_bundle_id, force_focus, is_read, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)
	`,
		in.Badge, in.Body, NormalizeColor(in.BadgeColor), in.Icon, metaJSON, in.Repo,
		in.TmuxPane, in.TerminalBundleID, boolToInt(in.ForceFocus), createdAt.UnixMilli(),
	)
	if err != nil {
		return nil, storageErr("insert", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, storageErr("insert id", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, storageErr("commit insert", err)
	}

	n := &Notification{
		ID:               id,
		Badge:            in.Badge,
		Body:             in.Body,
		BadgeColor:       NormalizeColor(in.BadgeColor),
		Icon:             in.Icon,
		Metadata:         in.Metadata,
		Repo:             in.Repo,
		TmuxPane:         in.TmuxPane,
		TerminalBundleID: in.TerminalBundleID,
		ForceFocus:       in.ForceFocus,
		CreatedAt:        time.UnixMilli(createdAt.UnixMilli()),
	}
	return n, nil
}

const notificationColumns = `
	id, badge, body, badge_color, icon, metadata, repo,
	tmux_pane, terminal_bundle_id, force_focus, is_read, created_at`

// List returns up to limit notifications, newest first (created_at DESC,
// ties broken by id DESC). limit <= 0 means no limit.
func (s *Store) List(limit int) ([]Notification, error) {
	query := `SELECT` + notificationColumns + `
		FROM notifications
		ORDER BY created_at DESC, id DESC`
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = s.db.Query(query+` LIMIT ?`, limit)
	} else {
		rows, err = s.db.Query(query)
	}
	if err != nil {
		return nil, storageErr("list", err)
	}
	defer rows.Close()
	return scanNotifications(rows)
}

// ListAfter returns notifications with id greater than afterID, newest
// first. Used by watchers to pick up rows inserted since their cursor.
func (s *Store) ListAfter(afterID int64) ([]Notification, error) {
	rows, err := s.db.Query(`SELECT`+notificationColumns+`
		FROM notifications
		WHERE id > ?
		ORDER BY created_at DESC, id DESC`, afterID)
	if err != nil {
		return nil, storageErr("list after", err)
	}
	defer rows.Close()
	return scanNotifications(rows)
}

// Get returns one notification by id, or ErrNotFound.
func (s *Store) Get(id int64) (*Notification, error) {
	row := s.db.QueryRow(`SELECT`+notificationColumns+`
		FROM notifications WHERE id = ?`, id)
	n, err := scanNotification(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storageErr("get", ErrNotFound)
	}
	if err != nil {
		return nil, storageErr("get", err)
	}
	return n, nil
}

// MaxID returns the largest notification id, or 0 when the table is empty.
func (s *Store) MaxID() (int64, error) {
	var id int64
	err := s.db.QueryRow(`SELECT COALESCE(MAX(id), 0) FROM notifications`).Scan(&id)
	if err != nil {
		return 0, storageErr("max id", err)
	}
	return id, nil
}

// UnreadCount returns the number of unread notifications.
func (s *Store) UnreadCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM notifications WHERE is_read = 0`).Scan(&count)
	if err != nil {
		return 0, storageErr("unread count", err)
	}
	return count, nil
}

// MarkRead marks one notification as read. Idempotent.
func (s *Store) MarkRead(id int64) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err := s.db.Exec(`UPDATE notifications SET is_read = 1 WHERE id = ?`, id)
	return storageErr("mark read", err)
}

// MarkAllRead marks every notification as read.
func (s *Store) MarkAllRead() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err := s.db.Exec(`UPDATE notifications SET is_read = 1`)
	return storageErr("mark all read", err)
}

// Delete removes one notification by id. Idempotent.
func (s *Store) Delete(id int64) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err := s.db.Exec(`DELETE FROM notifications WHERE id = ?`, id)
	return storageErr("delete", err)
}

// DeleteByPane removes the notification for one tmux pane. Idempotent.
func (s *Store) DeleteByPane(pane string) error {
	if pane == "" {
		return nil
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err := s.db.Exec(`DELETE FROM notifications WHERE tmux_pane = ?`, pane)
	return storageErr("delete by pane", err)
}

// DeleteByPanes removes notifications for several panes in one statement.
func (s *Store) DeleteByPanes(panes []string) error {
	if len(panes) == 0 {
		return nil
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	placeholders := strings.Repeat("?,", len(panes))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(panes))
	for i, p := range panes {
		args[i] = p
	}
	_, err := s.db.Exec(`DELETE FROM notifications WHERE tmux_pane IN (`+placeholders+`)`, args...)
	return storageErr("delete by panes", err)
}

// DeleteByGroup removes every notification recorded under one repo group.
func (s *Store) DeleteByGroup(repo string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err := s.db.Exec(`DELETE FROM notifications WHERE repo = ?`, repo)
	return storageErr("delete by group", err)
}

// DeleteAll removes every notification.
func (s *Store) DeleteAll() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err := s.db.Exec(`DELETE FROM notifications`)
	return storageErr("delete all", err)
}

// LoadMuteState reads the persisted mute flags.
func (s *Store) LoadMuteState() (MuteState, error) {
	st := NewMuteState()
	rows, err := s.db.Query(`SELECT key, value FROM mute_state`)
	if err != nil {
		return st, storageErr("load mute state", err)
	}
	defer rows.Close()
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return st, storageErr("scan mute state", err)
		}
		switch {
		case key == "global":
			st.GlobalMuted = value == "1"
		case strings.HasPrefix(key, "repo:"):
			if value == "1" {
				st.MutedRepos[strings.TrimPrefix(key, "repo:")] = true
			}
		}
	}
	return st, storageErr("load mute state", rows.Err())
}

// SetGlobalMute persists the global mute flag.
func (s *Store) SetGlobalMute(muted bool) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err := s.db.Exec(`INSERT OR REPLACE INTO mute_state (key, value) VALUES ('global', ?)`,
		boolToStr(muted))
	return storageErr("set global mute", err)
}

// SetRepoMute persists one repo's mute flag.
func (s *Store) SetRepoMute(repo string, muted bool) error {
	if repo == "" {
		return nil
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if muted {
		_, err := s.db.Exec(`INSERT OR REPLACE INTO mute_state (key, value) VALUES (?, '1')`,
			"repo:"+repo)
		return storageErr("set repo mute", err)
	}
	_, err := s.db.Exec(`DELETE FROM mute_state WHERE key = ?`, "repo:"+repo)
	return storageErr("clear repo mute", err)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNotification(r rowScanner) (*Notification, error) {
	var n Notification
	var metaJSON string
	var forceFocus, isRead int
	var createdMillis int64
	err := r.Scan(
		&n.ID, &n.Badge, &n.Body, &n.BadgeColor, &n.Icon, &metaJSON, &n.Repo,
		&n.TmuxPane, &n.TerminalBundleID, &forceFocus, &isRead, &createdMillis,
	)
	if err != nil {
		return nil, err
	}
	n.ForceFocus = forceFocus != 0
	n.IsRead = isRead != 0
	n.CreatedAt = time.UnixMilli(createdMillis)
	if metaJSON != "" && metaJSON != "{}" {
		if err := json.Unmarshal([]byte(metaJSON), &n.Metadata); err != nil {
			// A corrupt metadata blob should not hide the row itself.
			n.Metadata = nil
		}
	}
	return &n, nil
}

func scanNotifications(rows *sql.Rows) ([]Notification, error) {
	var out []Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, storageErr("scan", err)
		}
		out = append(out, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("rows", err)
	}
	return out, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func boolToStr(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
