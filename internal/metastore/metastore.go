package metastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"media-preview/internal/logging"
	"media-preview/internal/metrics"
	"media-preview/internal/probe"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

var log = logging.Component("metastore")

const schema = `
CREATE TABLE IF NOT EXISTS video_metadata (
	path TEXT PRIMARY KEY,
	size INTEGER NOT NULL,
	mod_time INTEGER NOT NULL,
	duration REAL,
	width INTEGER,
	height INTEGER,
	codec TEXT,
	bit_depth INTEGER,
	fps REAL,
	probed_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
);
`

// Store persists probe results in SQLite. An entry is valid only while the
// file's size and modification time match what was probed.
type Store struct {
	db     *sql.DB
	dbPath string
}

// Open opens (creating if needed) the metadata database at dbPath.
// The parent directory is created if missing.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// WAL lets probes read while another request writes.
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(time.Hour)

	start := time.Now()
	_, err = db.ExecContext(ctx, schema)
	recordQuery("initialize_schema", start, err)
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	log.Info("metadata store ready at %s", dbPath)
	return &Store{db: db, dbPath: dbPath}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

// Get returns the stored metadata for path when size and modTime still match.
func (s *Store) Get(ctx context.Context, path string, size int64, modTime time.Time) (*probe.VideoMetadata, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var (
		duration, fps           sql.NullFloat64
		width, height, bitDepth sql.NullInt64
		codec                   sql.NullString
	)

	start := time.Now()
	err := s.db.QueryRowContext(ctx, `
		SELECT duration, width, height, codec, bit_depth, fps
		FROM video_metadata
		WHERE path = ? AND size = ? AND mod_time = ?
	`, path, size, modTime.UnixNano()).Scan(&duration, &width, &height, &codec, &bitDepth, &fps)

	if errors.Is(err, sql.ErrNoRows) {
		recordQuery("get_metadata", start, nil)
		return nil, false, nil
	}
	recordQuery("get_metadata", start, err)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read metadata for %s: %w", path, err)
	}

	md := &probe.VideoMetadata{}
	if duration.Valid {
		md.DurationSeconds = &duration.Float64
	}
	if width.Valid {
		w := int(width.Int64)
		md.Width = &w
	}
	if height.Valid {
		h := int(height.Int64)
		md.Height = &h
	}
	if codec.Valid {
		md.CodecName = &codec.String
	}
	if bitDepth.Valid {
		b := int(bitDepth.Int64)
		md.BitDepth = &b
	}
	if fps.Valid {
		md.FPS = &fps.Float64
	}
	return md, true, nil
}

// Put stores md for path, replacing any previous entry.
func (s *Store) Put(ctx context.Context, path string, size int64, modTime time.Time, md *probe.VideoMetadata) error {
	if md == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	start := time.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO video_metadata (path, size, mod_time, duration, width, height, codec, bit_depth, fps, probed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			size = excluded.size,
			mod_time = excluded.mod_time,
			duration = excluded.duration,
			width = excluded.width,
			height = excluded.height,
			codec = excluded.codec,
			bit_depth = excluded.bit_depth,
			fps = excluded.fps,
			probed_at = excluded.probed_at
	`, path, size, modTime.UnixNano(),
		nullFloat(md.DurationSeconds), nullInt(md.Width), nullInt(md.Height),
		nullString(md.CodecName), nullInt(md.BitDepth), nullFloat(md.FPS),
		time.Now().Unix())
	recordQuery("put_metadata", start, err)
	if err != nil {
		return fmt.Errorf("failed to store metadata for %s: %w", path, err)
	}
	return nil
}

// Delete removes the entry for path, if any.
func (s *Store) Delete(ctx context.Context, path string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	start := time.Now()
	_, err := s.db.ExecContext(ctx, "DELETE FROM video_metadata WHERE path = ?", path)
	recordQuery("delete_metadata", start, err)
	return err
}

// Count returns the number of stored entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var n int
	start := time.Now()
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM video_metadata").Scan(&n)
	recordQuery("count_metadata", start, err)
	return n, err
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

// recordQuery records database query metrics
func recordQuery(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
