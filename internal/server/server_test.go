package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/iptvdeck/iptvdeck/internal/favorites"
	"github.com/iptvdeck/iptvdeck/internal/refresh"
	"github.com/iptvdeck/iptvdeck/internal/store"
)

func testServer(t *testing.T) (*Server, *favorites.List) {
	t.Helper()
	dir := t.TempDir()
	fav := favorites.New(filepath.Join(dir, "fav.json"), filepath.Join(dir, "fav.m3u"))
	storePath := filepath.Join(dir, "catalog.db")
	return &Server{
		Store:     store.New(storePath),
		Favorites: fav,
		Gate:      refresh.Gate{StorePath: storePath, StaleAfter: time.Hour},
	}, fav
}

func TestPlaylistEndpoint(t *testing.T) {
	s, fav := testServer(t)
	if _, _, err := fav.Add(favorites.Entry{
		StreamID: 42, Name: "CNN", StreamURL: "http://ex.test/live/u/p/42.ts",
		Category: "News", Type: favorites.TypeLive,
	}); err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/playlist.m3u8", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.HasPrefix(body, "#EXTM3U\n") || !strings.Contains(body, "CNN") {
		t.Errorf("body = %q", body)
	}
}

func TestStatusEndpointNoCatalog(t *testing.T) {
	s, _ := testServer(t)
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var st Status
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatal(err)
	}
	if st.CatalogBuilt || !st.Stale {
		t.Errorf("status = %+v", st)
	}
}

func TestPlaylistRejectsPost(t *testing.T) {
	s, _ := testServer(t)
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/playlist.m3u8", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d", rec.Code)
	}
}
