// Package refresh orchestrates the provider sync: fetch snapshots in a
// fixed order, then rebuild the catalog database. A pass is all or
// nothing; a failed fetch aborts before the build so the catalog is never
// assembled from a mixed-age snapshot set.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/iptvdeck/iptvdeck/internal/metrics"
	"github.com/iptvdeck/iptvdeck/internal/store"
	"github.com/iptvdeck/iptvdeck/internal/xtream"
)

// DefaultStaleAfter is how old a catalog may get before a refresh is
// forced on startup.
const DefaultStaleAfter = 14 * 24 * time.Hour

// Gate decides whether the catalog is too old to serve.
type Gate struct {
	StorePath  string
	StaleAfter time.Duration
}

// IsStale reports whether the store is missing or older than StaleAfter.
// A missing store is always stale.
func (g Gate) IsStale() bool {
	fi, err := os.Stat(g.StorePath)
	if err != nil {
		return true
	}
	staleAfter := g.StaleAfter
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return time.Since(fi.ModTime()) > staleAfter
}

// Age returns the catalog's age; ok is false when it has never been built.
func (g Gate) Age() (time.Duration, bool) {
	fi, err := os.Stat(g.StorePath)
	if err != nil {
		return 0, false
	}
	return time.Since(fi.ModTime()), true
}

// Refresher runs refresh passes against one provider account.
type Refresher struct {
	Client *xtream.Client
	Store  *store.Store
	URLs   store.URLs

	// Progress, when set, is called after each snapshot lands so the CLI
	// can show per-step advancement.
	Progress func(xtream.Kind)
}

// Refresh fetches the given resource kinds and rebuilds the catalog.
// Each pass gets an id so its log lines can be correlated.
func (r *Refresher) Refresh(ctx context.Context, kinds []xtream.Kind) (store.BuildStats, error) {
	var stats store.BuildStats
	pass := uuid.NewString()[:8]
	start := time.Now()
	log.Printf("refresh[%s]: starting, %d resources", pass, len(kinds))

	err := r.Client.FetchAll(ctx, kinds, func(k xtream.Kind) {
		metrics.Fetches.WithLabelValues(string(k), "ok").Inc()
		log.Printf("refresh[%s]: fetched %s", pass, k)
		if r.Progress != nil {
			r.Progress(k)
		}
	})
	if err != nil {
		var fe *xtream.FetchError
		if errors.As(err, &fe) {
			metrics.Fetches.WithLabelValues(string(fe.Resource), fe.Fail.String()).Inc()
		}
		metrics.RefreshPasses.WithLabelValues("failed").Inc()
		return stats, fmt.Errorf("refresh aborted: %w", err)
	}

	buildStart := time.Now()
	stats, err = r.Store.Build(r.Client.SnapshotDir, r.URLs)
	if err != nil {
		metrics.RefreshPasses.WithLabelValues("failed").Inc()
		return stats, fmt.Errorf("refresh aborted: %w", err)
	}
	metrics.BuildDuration.Observe(time.Since(buildStart).Seconds())
	metrics.CatalogRows.WithLabelValues("live_streams").Set(float64(stats.LiveStreams))
	metrics.CatalogRows.WithLabelValues("vod_streams").Set(float64(stats.VodItems))
	metrics.CatalogRows.WithLabelValues("vod_categories").Set(float64(stats.VodCategories))
	metrics.RefreshPasses.WithLabelValues("ok").Inc()
	metrics.LastRefresh.SetToCurrentTime()

	log.Printf("refresh[%s]: done in %s (%d live, %d vod)",
		pass, time.Since(start).Round(time.Millisecond), stats.LiveStreams, stats.VodItems)
	return stats, nil
}

// EnsureFresh runs a full refresh when the gate says the catalog is
// stale. Returns whether a refresh ran.
func (r *Refresher) EnsureFresh(ctx context.Context, gate Gate) (bool, error) {
	if !gate.IsStale() {
		return false, nil
	}
	if age, ok := gate.Age(); ok {
		log.Printf("catalog is %s old, refreshing", age.Round(time.Hour))
	} else {
		log.Printf("catalog not built yet, refreshing")
	}
	_, err := r.Refresh(ctx, xtream.FullRefresh)
	return true, err
}
