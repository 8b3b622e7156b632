// Package store materializes provider JSON snapshots into a local sqlite
// catalog and serves read-only queries over it. The store is rebuilt from
// scratch on every refresh; there is no incremental sync because Xtream
// providers renumber and shuffle streams with no stable change feed.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotBuilt is returned by every query when the store file does not
// exist yet. Callers render it as "database not found, run a refresh" and
// continue with empty results.
var ErrNotBuilt = errors.New("catalog database not found")

// Store is a handle on the catalog database file. Connections are opened
// per call: the file is atomically replaced on rebuild, and a held handle
// would keep reading the replaced inode.
type Store struct {
	Path string
}

func New(path string) *Store {
	return &Store{Path: path}
}

// open stats the path first so a missing store surfaces as ErrNotBuilt
// rather than sqlite creating an empty database on the spot.
func (s *Store) open() (*sql.DB, error) {
	if _, err := os.Stat(s.Path); err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotBuilt
		}
		return nil, err
	}
	db, err := sql.Open("sqlite", s.Path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	return db, nil
}

// LastModified returns the store file's mtime; ok is false when the store
// has never been built.
func (s *Store) LastModified() (time.Time, bool) {
	fi, err := os.Stat(s.Path)
	if err != nil {
		return time.Time{}, false
	}
	return fi.ModTime(), true
}

// Counts returns live and VOD row counts for the status surface.
func (s *Store) Counts() (live, vod int, err error) {
	db, err := s.open()
	if err != nil {
		return 0, 0, err
	}
	defer db.Close()
	if err := db.QueryRow("SELECT COUNT(*) FROM live_streams").Scan(&live); err != nil {
		return 0, 0, err
	}
	if err := db.QueryRow("SELECT COUNT(*) FROM vod_streams").Scan(&vod); err != nil {
		return 0, 0, err
	}
	return live, vod, nil
}

// AccountInfo returns the provider account row, or nil when the account
// snapshot was absent from the last build.
func (s *Store) AccountInfo() (*AccountInfo, error) {
	db, err := s.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()
	row := db.QueryRow("SELECT username, status, exp_date, max_connections FROM account_info LIMIT 1")
	var a AccountInfo
	if err := row.Scan(&a.Username, &a.Status, &a.ExpDate, &a.MaxConnections); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}
