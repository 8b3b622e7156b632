// Package server exposes the optional HTTP surface: the favorites
// playlist for network players, a status document, and the Prometheus
// scrape endpoint. It is read-only; all mutations go through the CLI.
package server

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/iptvdeck/iptvdeck/internal/favorites"
	"github.com/iptvdeck/iptvdeck/internal/metrics"
	"github.com/iptvdeck/iptvdeck/internal/refresh"
	"github.com/iptvdeck/iptvdeck/internal/store"
)

// Server wires the catalog and favorites list into HTTP handlers.
type Server struct {
	Store     *store.Store
	Favorites *favorites.List
	Gate      refresh.Gate
}

// Status is the /status response body.
type Status struct {
	CatalogBuilt bool       `json:"catalog_built"`
	LastRefresh  *time.Time `json:"last_refresh,omitempty"`
	Stale        bool       `json:"stale"`
	LiveStreams  int        `json:"live_streams"`
	VodItems     int        `json:"vod_items"`
	Favorites    int        `json:"favorites"`
	Account      *struct {
		Username       string `json:"username"`
		Status         string `json:"status"`
		ExpDate        int64  `json:"exp_date"`
		MaxConnections string `json:"max_connections"`
	} `json:"account,omitempty"`
}

// Routes builds the router. Everything is GET; mux enforces the methods.
func (s *Server) Routes() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/playlist.m3u8", s.handlePlaylist).Methods(http.MethodGet)
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods(http.MethodGet)
	return r
}

// ListenAndServe blocks serving the routes on addr.
func (s *Server) ListenAndServe(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Printf("http: listening on %s", addr)
	return srv.ListenAndServe()
}

// handlePlaylist renders the favorites list as M3U on every request, so
// players always see the current list without a regenerate step.
func (s *Server) handlePlaylist(w http.ResponseWriter, _ *http.Request) {
	entries, err := s.Favorites.Load()
	if err != nil {
		http.Error(w, "favorites unavailable", http.StatusInternalServerError)
		log.Printf("http: load favorites: %v", err)
		return
	}
	w.Header().Set("Content-Type", "audio/x-mpegurl")
	w.Write([]byte(favorites.Playlist(entries)))
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	var st Status
	st.Stale = s.Gate.IsStale()
	if mtime, ok := s.Store.LastModified(); ok {
		st.CatalogBuilt = true
		st.LastRefresh = &mtime
		live, vod, err := s.Store.Counts()
		if err == nil {
			st.LiveStreams = live
			st.VodItems = vod
		}
		if acct, err := s.Store.AccountInfo(); err == nil && acct != nil {
			st.Account = &struct {
				Username       string `json:"username"`
				Status         string `json:"status"`
				ExpDate        int64  `json:"exp_date"`
				MaxConnections string `json:"max_connections"`
			}{acct.Username, acct.Status, acct.ExpDate, acct.MaxConnections}
		}
	}
	if entries, err := s.Favorites.Load(); err == nil {
		st.Favorites = len(entries)
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(st)
}
