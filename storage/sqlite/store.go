// Package sqlite implements storage.Storage on SQLite via the pure-Go
// modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cyp0633/recurcal/event"
	"github.com/cyp0633/recurcal/storage"
)

// timeLayout is fixed-width so stored timestamps sort lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// Store implements storage.Storage on a SQLite database
type Store struct {
	db *sql.DB
}

var _ storage.Storage = (*Store)(nil)

// Open opens (creating if needed) the database at path and bootstraps the schema.
// ":memory:" opens a private in-memory database.
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// Every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}
	if err := InitDB(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// InitDB initializes the database schema.
// PRE: db is a valid database connection
// POST: All tables are created, WAL mode enabled
func InitDB(db *sql.DB) error {
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS account (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE COLLATE NOCASE,
		password_hash TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS profile (
		user_id TEXT PRIMARY KEY,
		email TEXT NOT NULL DEFAULT '',
		display_name TEXT NOT NULL DEFAULT '',
		theme TEXT NOT NULL DEFAULT 'light',
		avatar_url TEXT NOT NULL DEFAULT '',
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS event (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		recurrence TEXT NOT NULL,
		date_range TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_event_user ON event (user_id, created_at);

	CREATE TABLE IF NOT EXISTS avatar (
		user_id TEXT PRIMARY KEY,
		content_type TEXT NOT NULL,
		data BLOB NOT NULL,
		updated_at TEXT NOT NULL
	);`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func notFound(message string) error {
	return &storage.Error{Type: storage.ErrNotFound, Message: message}
}

// Account operations

func (s *Store) CreateAccount(ctx context.Context, account *storage.Account) error {
	if account.ID == "" || account.Email == "" {
		return &storage.Error{Type: storage.ErrInvalidInput, Message: "account id and email are required"}
	}
	createdAt := account.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO account (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		account.ID, strings.TrimSpace(account.Email), account.PasswordHash, formatTime(createdAt),
	)
	if isUniqueViolation(err) {
		return &storage.Error{Type: storage.ErrAlreadyExists, Message: "account already exists", Err: err}
	}
	if err != nil {
		return fmt.Errorf("failed to insert account: %w", err)
	}
	return nil
}

func (s *Store) GetAccountByEmail(ctx context.Context, email string) (*storage.Account, error) {
	var a storage.Account
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, created_at FROM account WHERE email = ?`, strings.TrimSpace(email),
	).Scan(&a.ID, &a.Email, &a.PasswordHash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("account not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query account: %w", err)
	}
	if a.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("invalid account created_at: %w", err)
	}
	return &a, nil
}

// Profile operations

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getProfile(ctx context.Context, q queryer, userID string) (*storage.Profile, error) {
	var p storage.Profile
	var theme, updatedAt string
	err := q.QueryRowContext(ctx,
		`SELECT user_id, email, display_name, theme, avatar_url, updated_at FROM profile WHERE user_id = ?`, userID,
	).Scan(&p.UserID, &p.Email, &p.DisplayName, &theme, &p.AvatarURL, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("profile not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query profile: %w", err)
	}
	p.Theme = storage.Theme(theme)
	if p.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return nil, fmt.Errorf("invalid profile updated_at: %w", err)
	}
	return &p, nil
}

func (s *Store) GetProfile(ctx context.Context, userID string) (*storage.Profile, error) {
	return getProfile(ctx, s.db, userID)
}

func (s *Store) SaveProfile(ctx context.Context, profile *storage.Profile) (*storage.Profile, error) {
	if profile.UserID == "" {
		return nil, &storage.Error{Type: storage.ErrInvalidInput, Message: "profile user id is required"}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	merged, err := mergeProfile(ctx, tx, profile)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit profile: %w", err)
	}
	return merged, nil
}

func mergeProfile(ctx context.Context, tx *sql.Tx, update *storage.Profile) (*storage.Profile, error) {
	current, err := getProfile(ctx, tx, update.UserID)
	if storage.IsNotFound(err) {
		current = storage.DefaultProfile(update.UserID, update.Email)
	} else if err != nil {
		return nil, err
	}
	current.Merge(update)
	current.UpdatedAt = time.Now().UTC()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO profile (user_id, email, display_name, theme, avatar_url, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET email=excluded.email, display_name=excluded.display_name,
		 theme=excluded.theme, avatar_url=excluded.avatar_url, updated_at=excluded.updated_at`,
		current.UserID, current.Email, current.DisplayName, string(current.Theme), current.AvatarURL,
		formatTime(current.UpdatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to save profile: %w", err)
	}
	return current, nil
}

// Event operations

func (s *Store) CreateEvent(ctx context.Context, ev *event.Event) error {
	if ev.ID == "" || ev.UserID == "" {
		return &storage.Error{Type: storage.ErrInvalidInput, Message: "event id and user id are required"}
	}

	pattern, err := json.Marshal(ev.Recurrence)
	if err != nil {
		return &storage.Error{Type: storage.ErrInvalidInput, Message: "invalid recurrence", Err: err}
	}
	rng, err := json.Marshal(ev.DateRange)
	if err != nil {
		return &storage.Error{Type: storage.ErrInvalidInput, Message: "invalid date range", Err: err}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO event (id, user_id, name, description, recurrence, date_range, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.UserID, ev.Name, ev.Description, string(pattern), string(rng), formatTime(ev.CreatedAt),
	)
	if isUniqueViolation(err) {
		return &storage.Error{Type: storage.ErrAlreadyExists, Message: "event already exists", Err: err}
	}
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (*event.Event, error) {
	var ev event.Event
	var pattern, rng, createdAt string
	if err := row.Scan(&ev.ID, &ev.UserID, &ev.Name, &ev.Description, &pattern, &rng, &createdAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(pattern), &ev.Recurrence); err != nil {
		return nil, fmt.Errorf("invalid stored recurrence for event %s: %w", ev.ID, err)
	}
	if err := json.Unmarshal([]byte(rng), &ev.DateRange); err != nil {
		return nil, fmt.Errorf("invalid stored date range for event %s: %w", ev.ID, err)
	}
	var err error
	if ev.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("invalid stored created_at for event %s: %w", ev.ID, err)
	}
	return &ev, nil
}

const eventColumns = `id, user_id, name, description, recurrence, date_range, created_at`

func (s *Store) GetEvent(ctx context.Context, userID, eventID string) (*event.Event, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM event WHERE id = ? AND user_id = ?`, eventID, userID)
	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("event not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query event: %w", err)
	}
	return ev, nil
}

func (s *Store) ListEvents(ctx context.Context, userID string) ([]*event.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM event WHERE user_id = ? ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	events := make([]*event.Event, 0)
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (s *Store) DeleteEvent(ctx context.Context, userID, eventID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM event WHERE id = ? AND user_id = ?`, eventID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	if n == 0 {
		return notFound("event not found")
	}
	return nil
}

// Avatar operations

func (s *Store) PutAvatar(ctx context.Context, userID, contentType string, data []byte) (string, error) {
	if userID == "" || len(data) == 0 {
		return "", &storage.Error{Type: storage.ErrInvalidInput, Message: "user id and avatar data are required"}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO avatar (user_id, content_type, data, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET content_type=excluded.content_type, data=excluded.data,
		 updated_at=excluded.updated_at`,
		userID, contentType, data, formatTime(time.Now()),
	)
	if err != nil {
		return "", fmt.Errorf("failed to save avatar: %w", err)
	}

	path := storage.AvatarPath(userID)
	if _, err := mergeProfile(ctx, tx, &storage.Profile{UserID: userID, AvatarURL: path}); err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit avatar: %w", err)
	}
	return path, nil
}

func (s *Store) GetAvatar(ctx context.Context, userID string) (*storage.Avatar, error) {
	var a storage.Avatar
	var updatedAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, content_type, data, updated_at FROM avatar WHERE user_id = ?`, userID,
	).Scan(&a.UserID, &a.ContentType, &a.Data, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("avatar not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query avatar: %w", err)
	}
	if a.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return nil, fmt.Errorf("invalid avatar updated_at: %w", err)
	}
	return &a, nil
}

// Ping checks that the database is reachable
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}
