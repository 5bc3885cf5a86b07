package progress

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"sqlquest/internal/xdg"
)

const fileName = "progress.db"

type Completion struct {
	LessonID    string
	CompletedAt time.Time
	Query       string
}

// Store keeps the set of lessons a learner has completed.
type Store struct {
	db *sql.DB
}

// DefaultPath is progress.db inside the XDG state directory.
func DefaultPath() (string, error) {
	dir, err := xdg.StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fileName), nil
}

func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA busy_timeout = 5000;`); err != nil {
		_ = db.Close()
		return nil, err
	}

	store := &Store{db: db}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS completed_lessons (
		lesson_id TEXT PRIMARY KEY,
		completed_at_unix INTEGER NOT NULL,
		query TEXT NOT NULL DEFAULT ''
	);`)
	return err
}

// MarkCompleted records lessonID once. It reports whether this call added it;
// a repeat completion keeps the first timestamp and query.
func (s *Store) MarkCompleted(ctx context.Context, lessonID, query string, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(
		ctx,
		`INSERT OR IGNORE INTO completed_lessons (lesson_id, completed_at_unix, query) VALUES (?, ?, ?)`,
		lessonID,
		at.UTC().Unix(),
		query,
	)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *Store) IsCompleted(ctx context.Context, lessonID string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM completed_lessons WHERE lesson_id = ?`, lessonID).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Completed lists completions oldest first.
func (s *Store) Completed(ctx context.Context) ([]Completion, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT lesson_id, completed_at_unix, query FROM completed_lessons ORDER BY completed_at_unix, lesson_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	completions := make([]Completion, 0)
	for rows.Next() {
		var (
			completion Completion
			atUnix     int64
		)
		if err := rows.Scan(&completion.LessonID, &atUnix, &completion.Query); err != nil {
			return nil, err
		}
		completion.CompletedAt = time.Unix(atUnix, 0).UTC()
		completions = append(completions, completion)
	}
	return completions, rows.Err()
}

// CompletedSet is Completed as a lookup set.
func (s *Store) CompletedSet(ctx context.Context) (map[string]bool, error) {
	completions, err := s.Completed(ctx)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(completions))
	for _, completion := range completions {
		set[completion.LessonID] = true
	}
	return set, nil
}

func (s *Store) Reset(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM completed_lessons`)
	return err
}
