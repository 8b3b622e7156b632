// Package favorites persists the user's saved channels and movies as a
// JSON file and mirrors every change into an M3U playlist that external
// players can open directly.
package favorites

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Entry types. A live channel and a VOD item may share a stream id, so
// identity is the (StreamID, Type) pair.
const (
	TypeLive = "live"
	TypeVod  = "vod"
)

// Entry is one saved item.
type Entry struct {
	StreamID  int       `json:"stream_id"`
	Name      string    `json:"name"`
	StreamURL string    `json:"stream_url"`
	Category  string    `json:"category"`
	Type      string    `json:"type"`
	Added     time.Time `json:"added"`
}

// Key identifies an entry.
type Key struct {
	StreamID int
	Type     string
}

// List is the favorites file plus its playlist mirror. Both files are
// rewritten atomically on every mutation so a crash mid-save never leaves
// them inconsistent with each other for longer than one operation.
type List struct {
	Path         string
	PlaylistPath string
}

func New(path, playlistPath string) *List {
	return &List{Path: path, PlaylistPath: playlistPath}
}

// Load reads the favorites file. A missing file is an empty list.
func (l *List) Load() ([]Entry, error) {
	data, err := os.ReadFile(l.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("favorites file %s: %w", l.Path, err)
	}
	return entries, nil
}

// Add appends e unless its (StreamID, Type) key is already present.
// Returns the resulting count and whether the entry was actually added,
// so the caller can report "already a favorite" distinctly.
func (l *List) Add(e Entry) (int, bool, error) {
	entries, err := l.Load()
	if err != nil {
		return 0, false, err
	}
	for _, have := range entries {
		if have.StreamID == e.StreamID && have.Type == e.Type {
			return len(entries), false, nil
		}
	}
	if e.Added.IsZero() {
		e.Added = time.Now().UTC()
	}
	entries = append(entries, e)
	if err := l.save(entries); err != nil {
		return 0, false, err
	}
	return len(entries), true, nil
}

// Remove deletes the entry with the given key. Returns the resulting
// count and whether anything was removed.
func (l *List) Remove(k Key) (int, bool, error) {
	entries, err := l.Load()
	if err != nil {
		return 0, false, err
	}
	kept := entries[:0]
	removed := false
	for _, e := range entries {
		if e.StreamID == k.StreamID && e.Type == k.Type {
			removed = true
			continue
		}
		kept = append(kept, e)
	}
	if !removed {
		return len(entries), false, nil
	}
	if err := l.save(kept); err != nil {
		return 0, false, err
	}
	return len(kept), true, nil
}

// KeySet returns the saved keys for O(1) "is this a favorite" lookups
// when rendering search results.
func (l *List) KeySet() (map[Key]bool, error) {
	entries, err := l.Load()
	if err != nil {
		return nil, err
	}
	set := make(map[Key]bool, len(entries))
	for _, e := range entries {
		set[Key{StreamID: e.StreamID, Type: e.Type}] = true
	}
	return set, nil
}

// save writes the JSON file and regenerates the playlist, both atomically.
func (l *List) save(entries []Entry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	if err := writeFileAtomic(l.Path, data); err != nil {
		return fmt.Errorf("favorites: %w", err)
	}
	if err := writeFileAtomic(l.PlaylistPath, []byte(Playlist(entries))); err != nil {
		return fmt.Errorf("playlist: %w", err)
	}
	return nil
}

// Playlist renders entries as extended M3U in stored order, so the
// playlist always mirrors the favorites file line for line. An empty
// list is a bare header.
func Playlist(entries []Entry) string {
	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "#EXTINF:-1 group-title=%q,%s\n%s\n", e.Category, e.Name, e.StreamURL)
	}
	return b.String()
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(filepath.Clean(path))
	tmp, err := os.CreateTemp(dir, ".fav-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil || closeErr != nil {
		os.Remove(tmpName)
		if writeErr != nil {
			return writeErr
		}
		return closeErr
	}
	if err := os.Chmod(tmpName, 0600); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
