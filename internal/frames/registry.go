package frames

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/moonback/photoboot/internal/geometry"
)

const schema = `
CREATE TABLE IF NOT EXISTS frames (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    filename    TEXT NOT NULL UNIQUE,
    position    TEXT NOT NULL DEFAULT 'center',
    x           REAL NOT NULL DEFAULT 0,
    y           REAL NOT NULL DEFAULT 0,
    size        INTEGER NOT NULL DEFAULT 100,
    width       INTEGER NOT NULL DEFAULT 0,
    height      INTEGER NOT NULL DEFAULT 0,
    active      INTEGER NOT NULL DEFAULT 0,
    created_at  TEXT NOT NULL,
    created_by  TEXT NOT NULL DEFAULT ''
);
CREATE UNIQUE INDEX IF NOT EXISTS frames_single_active ON frames(active) WHERE active = 1;
`

const selectColumns = `id, name, description, filename, position, x, y, size, width, height, active, created_at, created_by`

// Registry persists frame descriptors in SQLite. At most one row is active;
// the partial unique index rejects a second one and Activate switches the
// active frame in a single transaction.
type Registry struct {
	db   *sql.DB
	path string
}

// OpenRegistry opens or creates the registry database at path.
func OpenRegistry(path string) (*Registry, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create registry dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// A single connection serialises writers and keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply frames schema: %w", err)
	}

	log.Debug().Str("path", path).Msg("Frame registry opened")
	return &Registry{db: db, path: path}, nil
}

// Path returns the database file path.
func (r *Registry) Path() string { return r.path }

// Close closes the underlying database connection.
func (r *Registry) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// Create inserts a new frame. A missing ID or CreatedAt is filled in. When
// the frame is active every other frame is deactivated first.
func (r *Registry) Create(ctx context.Context, d *Descriptor) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	if d.Position == "" {
		d.Position = geometry.Center
	}
	if err := d.Validate(); err != nil {
		return err
	}

	return r.withTx(ctx, func(tx *sql.Tx) error {
		if d.Active {
			if _, err := tx.ExecContext(ctx, `UPDATE frames SET active = 0 WHERE active = 1`); err != nil {
				return fmt.Errorf("deactivate frames: %w", err)
			}
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO frames (`+selectColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			d.ID, d.Name, d.Description, d.Filename, string(d.Position), d.X, d.Y,
			d.Size, d.Width, d.Height, boolToInt(d.Active),
			d.CreatedAt.UTC().Format(time.RFC3339Nano), d.CreatedBy,
		)
		if err != nil {
			return fmt.Errorf("insert frame: %w", err)
		}
		return nil
	})
}

// Update replaces the editable fields of an existing frame. The active flag
// is not changed; use Activate or Deactivate.
func (r *Registry) Update(ctx context.Context, d *Descriptor) error {
	if err := d.Validate(); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE frames SET name = ?, description = ?, position = ?, x = ?, y = ?, size = ? WHERE id = ?`,
		d.Name, d.Description, string(d.Position), d.X, d.Y, d.Size, d.ID,
	)
	if err != nil {
		return fmt.Errorf("update frame: %w", err)
	}
	return requireRow(res, d.ID)
}

// Get returns the frame with the given id.
func (r *Registry) Get(ctx context.Context, id string) (*Descriptor, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM frames WHERE id = ?`, id)
	d, err := scanDescriptor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return d, err
}

// List returns every frame, oldest first.
func (r *Registry) List(ctx context.Context) ([]*Descriptor, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM frames ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list frames: %w", err)
	}
	defer rows.Close()

	var out []*Descriptor
	for rows.Next() {
		d, err := scanDescriptor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Active returns the active frame, or nil when none is active.
func (r *Registry) Active(ctx context.Context) (*Descriptor, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM frames WHERE active = 1`)
	d, err := scanDescriptor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return d, err
}

// Activate makes id the only active frame.
func (r *Registry) Activate(ctx context.Context, id string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM frames WHERE id = ?`, id).Scan(&exists); err != nil {
			return fmt.Errorf("lookup frame: %w", err)
		}
		if exists == 0 {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE frames SET active = 0 WHERE active = 1`); err != nil {
			return fmt.Errorf("deactivate frames: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE frames SET active = 1 WHERE id = ?`, id); err != nil {
			return fmt.Errorf("activate frame: %w", err)
		}
		log.Info().Str("frame_id", id).Msg("Frame activated")
		return nil
	})
}

// Deactivate clears the active flag of id.
func (r *Registry) Deactivate(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE frames SET active = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deactivate frame: %w", err)
	}
	return requireRow(res, id)
}

// Delete removes id and returns the deleted descriptor so the caller can
// remove its asset file.
func (r *Registry) Delete(ctx context.Context, id string) (*Descriptor, error) {
	d, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM frames WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("delete frame: %w", err)
	}
	return d, nil
}

func (r *Registry) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDescriptor(row rowScanner) (*Descriptor, error) {
	var (
		d         Descriptor
		position  string
		active    int
		createdAt string
	)
	err := row.Scan(&d.ID, &d.Name, &d.Description, &d.Filename, &position, &d.X, &d.Y,
		&d.Size, &d.Width, &d.Height, &active, &createdAt, &d.CreatedBy)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan frame: %w", err)
	}
	d.Position = geometry.Position(position)
	d.Active = active == 1
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		d.CreatedAt = t
	}
	return &d, nil
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
