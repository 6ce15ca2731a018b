package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/reactorcluster/reactord/internal/branchhistory"
	"github.com/reactorcluster/reactord/internal/region"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// SQLite is a StoreView backed by a local sqlite database, so a node's
// metainfo survives a process restart instead of starting every region from
// scratch and re-backfilling.
//
// Rows are keyed by exact region bounds. SetMetainfo, Read and Write act
// only on the row whose bounds equal r (Write changes nothing when no such
// row exists), and Erase removes only rows lying wholly inside r. Unlike
// Memory, SQLite does not split a stored row that partially overlaps r, so
// such a row is neither superseded by SetMetainfo nor removed by Erase.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens or creates the metainfo database at dbPath. An
// incompatible schema left over from a previous version is deleted and
// recreated, matching the teacher's recover-by-recreating policy for its
// own cache database.
func OpenSQLite(dbPath string) (*SQLite, error) {
	s, err := openSQLite(dbPath)
	if err != nil {
		if strings.Contains(err.Error(), "no such column") ||
			strings.Contains(err.Error(), "no such table") ||
			strings.Contains(err.Error(), "SQL logic error") {
			if removeErr := os.Remove(dbPath); removeErr != nil && !os.IsNotExist(removeErr) {
				return nil, fmt.Errorf("remove incompatible metainfo db: %w", removeErr)
			}
			os.Remove(dbPath + "-wal")
			os.Remove(dbPath + "-shm")
			return openSQLite(dbPath)
		}
		return nil, err
	}
	return s, nil
}

func openSQLite(dbPath string) (*SQLite, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create metainfo directory: %w", err)
		}
	}

	escapedPath := strings.ReplaceAll(dbPath, " ", "%20")
	db, err := sql.Open("sqlite", "file:"+escapedPath+"?_time_format=sqlite")
	if err != nil {
		return nil, fmt.Errorf("open metainfo db: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize metainfo schema: %w", err)
	}
	rows, err := db.Query(`SELECT region_start, region_end, branch, revision, earliest_branch, earliest_revision, coherent, data FROM metainfo LIMIT 0`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("check metainfo schema: %w", err)
	}
	rows.Close()

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) GetMetainfo(ctx context.Context, r region.Region) ([]MetainfoEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT region_start, region_end, branch, revision, earliest_branch, earliest_revision, coherent
		FROM metainfo
		WHERE region_start < ? AND region_end > ?
	`, r.End, r.Start)
	if err != nil {
		return nil, fmt.Errorf("query metainfo: %w", err)
	}
	defer rows.Close()

	var out []MetainfoEntry
	for rows.Next() {
		var e MetainfoEntry
		var start, end uint64
		var coherent int
		if err := rows.Scan(&start, &end, &e.Range.Latest.Branch, &e.Range.Latest.Revision,
			&e.Range.Earliest.Branch, &e.Range.Earliest.Revision, &coherent); err != nil {
			return nil, fmt.Errorf("scan metainfo row: %w", err)
		}
		e.Region = region.New(start, end).Intersect(r)
		e.Range.Coherent = coherent != 0
		if !e.Region.Empty() {
			out = append(out, e)
		}
	}
	return out, rows.Err()
}

func (s *SQLite) SetMetainfo(ctx context.Context, r region.Region, vr branchhistory.VersionRange) error {
	coherent := 0
	if vr.Coherent {
		coherent = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO metainfo (region_start, region_end, branch, revision, earliest_branch, earliest_revision, coherent, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, NULL)
		ON CONFLICT(region_start, region_end) DO UPDATE SET
			branch=excluded.branch, revision=excluded.revision,
			earliest_branch=excluded.earliest_branch, earliest_revision=excluded.earliest_revision,
			coherent=excluded.coherent
	`, r.Start, r.End, vr.Latest.Branch, vr.Latest.Revision, vr.Earliest.Branch, vr.Earliest.Revision, coherent)
	if err != nil {
		return fmt.Errorf("set metainfo: %w", err)
	}
	return nil
}

func (s *SQLite) Erase(ctx context.Context, r region.Region) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM metainfo WHERE region_start >= ? AND region_end <= ?
	`, r.Start, r.End)
	if err != nil {
		return fmt.Errorf("erase metainfo: %w", err)
	}
	return nil
}

func (s *SQLite) Read(ctx context.Context, r region.Region) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT data FROM metainfo WHERE region_start = ? AND region_end = ?
	`, r.Start, r.End).Scan(&data)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("store: no entry covers %v", r)
		}
		return nil, fmt.Errorf("read data: %w", err)
	}
	return data, nil
}

func (s *SQLite) Write(ctx context.Context, r region.Region, data []byte) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE metainfo SET data = ? WHERE region_start = ? AND region_end = ?
	`, data, r.Start, r.End)
	if err != nil {
		return fmt.Errorf("write data: %w", err)
	}
	return nil
}
