package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/iptvdeck/iptvdeck/internal/store"
)

func testStore(t *testing.T) *store.Store {
	t.Helper()
	snapDir := t.TempDir()
	snapshots := map[string]string{
		"live_categories.json": `[{"category_id":1,"category_name":"News"}]`,
		"live_streams.json": `[
			{"stream_id":42,"name":"CNN","category_id":1},
			{"stream_id":7,"name":"Channel 42 Local","category_id":1}
		]`,
	}
	for name, body := range snapshots {
		if err := os.WriteFile(filepath.Join(snapDir, name), []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	s := store.New(filepath.Join(t.TempDir(), "catalog.db"))
	if _, err := s.Build(snapDir, store.URLs{Server: "http://ex.test", Username: "u", Password: "p"}); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestLookupChannelByID(t *testing.T) {
	s := testStore(t)
	// "42" is both a stream id and a substring of another channel's name;
	// the id lookup must win
	ch, found, err := lookupChannel(s, "42")
	if err != nil {
		t.Fatal(err)
	}
	if !found || ch.StreamID != 42 || ch.Name != "CNN" {
		t.Errorf("ch = %+v found = %v", ch, found)
	}
}

func TestLookupChannelByName(t *testing.T) {
	s := testStore(t)
	ch, found, err := lookupChannel(s, "CNN")
	if err != nil {
		t.Fatal(err)
	}
	if !found || ch.StreamID != 42 {
		t.Errorf("ch = %+v found = %v", ch, found)
	}
}

func TestLookupChannelNumericFallsBackToName(t *testing.T) {
	s := testStore(t)
	// unknown id, and no channel name contains it either
	_, found, err := lookupChannel(s, "99999")
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Error("unexpected match for unknown id")
	}
}
