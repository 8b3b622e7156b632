package store

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Snapshot filenames the builder consumes, as written by the provider
// client. Missing snapshots are tolerated; their tables stay empty.
const (
	snapAccountInfo    = "account_info.json"
	snapLiveCategories = "live_categories.json"
	snapLiveStreams    = "live_streams.json"
	snapVodCategories  = "vod_categories.json"
	snapVodStreams     = "vod_streams.json"
)

// BuildStats summarizes one build for logging and metrics.
type BuildStats struct {
	LiveStreams   int
	VodItems      int
	VodCategories int
	HasAccount    bool
}

// Build materializes the snapshot files in snapDir into a fresh catalog.
// The new database is assembled at <path>.tmp and renamed over the old
// store only after commit, so concurrent readers see either the complete
// old catalog or the complete new one, never a half-built file.
func (s *Store) Build(snapDir string, urls URLs) (BuildStats, error) {
	var stats BuildStats

	tmp := s.Path + ".tmp"
	os.Remove(tmp)
	db, err := sql.Open("sqlite", tmp)
	if err != nil {
		return stats, fmt.Errorf("create catalog: %w", err)
	}
	ok := false
	defer func() {
		db.Close()
		if !ok {
			os.Remove(tmp)
		}
	}()

	if err := createSchema(db); err != nil {
		return stats, err
	}

	tx, err := db.Begin()
	if err != nil {
		return stats, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if stats, err = loadSnapshots(tx, snapDir, urls); err != nil {
		return stats, err
	}
	if err := tx.Commit(); err != nil {
		return stats, fmt.Errorf("commit: %w", err)
	}
	if err := db.Close(); err != nil {
		return stats, fmt.Errorf("close: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		return stats, fmt.Errorf("swap catalog: %w", err)
	}
	ok = true
	return stats, nil
}

func createSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE live_streams (
			stream_id      INTEGER PRIMARY KEY,
			name           TEXT,
			category_id    INTEGER,
			stream_url     TEXT,
			category_name  TEXT,
			epg_channel_id TEXT
		)`,
		`CREATE TABLE vod_streams (
			stream_id   INTEGER PRIMARY KEY,
			name        TEXT,
			category_id INTEGER,
			stream_url  TEXT,
			year        TEXT,
			rating      REAL,
			genre       TEXT
		)`,
		`CREATE TABLE vod_categories (
			category_id   INTEGER PRIMARY KEY,
			category_name TEXT,
			parent_id     INTEGER
		)`,
		`CREATE TABLE account_info (
			username        TEXT,
			status          TEXT,
			exp_date        INTEGER,
			max_connections TEXT
		)`,
		`CREATE INDEX idx_live_name ON live_streams(name)`,
		`CREATE INDEX idx_vod_name ON vod_streams(name)`,
		`CREATE INDEX idx_vodcat_name ON vod_categories(category_name)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

func loadSnapshots(tx *sql.Tx, snapDir string, urls URLs) (BuildStats, error) {
	var stats BuildStats

	// Account info: one row from the nested user_info object.
	var account struct {
		UserInfo struct {
			Username       string     `json:"username"`
			Status         string     `json:"status"`
			ExpDate        flexInt    `json:"exp_date"`
			MaxConnections flexString `json:"max_connections"`
		} `json:"user_info"`
	}
	if ok, err := readSnapshot(snapDir, snapAccountInfo, &account); err != nil {
		return stats, err
	} else if ok {
		_, err := tx.Exec("INSERT INTO account_info VALUES (?, ?, ?, ?)",
			account.UserInfo.Username, account.UserInfo.Status,
			account.UserInfo.ExpDate.Int64, string(account.UserInfo.MaxConnections))
		if err != nil {
			return stats, fmt.Errorf("account_info: %w", err)
		}
		stats.HasAccount = true
	}

	// VOD categories go in as-is.
	var vodCats []snapCategory
	if ok, err := readSnapshot(snapDir, snapVodCategories, &vodCats); err != nil {
		return stats, err
	} else if ok {
		for _, c := range vodCats {
			_, err := tx.Exec("INSERT OR REPLACE INTO vod_categories VALUES (?, ?, ?)",
				c.CategoryID.Int64, c.CategoryName, c.ParentID.Int64)
			if err != nil {
				return stats, fmt.Errorf("vod_categories: %w", err)
			}
			stats.VodCategories++
		}
	}

	// Live categories only feed the in-memory id -> name map used to
	// denormalize category names onto live rows.
	liveCatNames := map[int64]string{}
	var liveCats []snapCategory
	if ok, err := readSnapshot(snapDir, snapLiveCategories, &liveCats); err != nil {
		return stats, err
	} else if ok {
		for _, c := range liveCats {
			liveCatNames[c.CategoryID.Int64] = c.CategoryName
		}
	}

	var live []snapLiveStream
	if ok, err := readSnapshot(snapDir, snapLiveStreams, &live); err != nil {
		return stats, err
	} else if ok {
		for _, st := range live {
			catName, found := liveCatNames[st.CategoryID.Int64]
			if !found || catName == "" {
				catName = "Unknown"
			}
			_, err := tx.Exec("INSERT OR REPLACE INTO live_streams VALUES (?, ?, ?, ?, ?, ?)",
				st.StreamID.Int64, st.Name, st.CategoryID.Int64,
				urls.Live(int(st.StreamID.Int64)), catName, string(st.EPGChannelID))
			if err != nil {
				return stats, fmt.Errorf("live_streams: %w", err)
			}
			stats.LiveStreams++
		}
	}

	var vod []snapVodStream
	if ok, err := readSnapshot(snapDir, snapVodStreams, &vod); err != nil {
		return stats, err
	} else if ok {
		for _, st := range vod {
			_, err := tx.Exec("INSERT OR REPLACE INTO vod_streams VALUES (?, ?, ?, ?, ?, ?, ?)",
				st.StreamID.Int64, st.Name, st.CategoryID.Int64,
				urls.Movie(int(st.StreamID.Int64), string(st.ContainerExtension)),
				string(st.Year), st.Rating.value(), st.Genre)
			if err != nil {
				return stats, fmt.Errorf("vod_streams: %w", err)
			}
			stats.VodItems++
		}
	}

	return stats, nil
}

// readSnapshot unmarshals snapDir/name into v. ok is false when the file
// does not exist (partial refreshes leave some snapshots out).
func readSnapshot(snapDir, name string, v any) (ok bool, err error) {
	data, err := os.ReadFile(filepath.Join(snapDir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("snapshot %s: %w", name, err)
	}
	return true, nil
}

type snapCategory struct {
	CategoryID   flexInt `json:"category_id"`
	CategoryName string  `json:"category_name"`
	ParentID     flexInt `json:"parent_id"`
}

type snapLiveStream struct {
	StreamID     flexInt    `json:"stream_id"`
	Name         string     `json:"name"`
	CategoryID   flexInt    `json:"category_id"`
	EPGChannelID flexString `json:"epg_channel_id"`
}

type snapVodStream struct {
	StreamID           flexInt    `json:"stream_id"`
	Name               string     `json:"name"`
	CategoryID         flexInt    `json:"category_id"`
	ContainerExtension flexString `json:"container_extension"`
	Year               flexString `json:"year"`
	Rating             flexFloat  `json:"rating"`
	Genre              string     `json:"genre"`
}

// flexInt tolerates providers sending ids as numbers, numeric strings, or
// null. Unparseable values decode to zero rather than failing the build.
type flexInt struct {
	Int64 int64
}

func (f *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	s := strings.Trim(string(data), `"`)
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err == nil {
		f.Int64 = n
	}
	return nil
}

// flexString tolerates string-or-number fields; numbers render as their
// literal JSON text.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(data)
	return nil
}

// flexFloat is the single normalization point for provider ratings:
// numbers and numeric strings become a value, blanks and junk become NULL.
type flexFloat struct {
	Float64 float64
	Valid   bool
}

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	s := strings.TrimSpace(strings.Trim(string(data), `"`))
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	f.Float64 = v
	f.Valid = true
	return nil
}

// value returns a driver-friendly nullable.
func (f flexFloat) value() any {
	if !f.Valid {
		return nil
	}
	return f.Float64
}
