package epg

import (
	"context"
	"errors"
	"testing"

	"github.com/iptvdeck/iptvdeck/internal/store"
	"github.com/iptvdeck/iptvdeck/internal/xtream"
)

type fakeProvider struct {
	byQuery map[string][]xtream.Listing
	queries []string
	err     error
}

func (f *fakeProvider) ShortEPG(_ context.Context, query string, _ int) ([]xtream.Listing, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	return f.byQuery[query], nil
}

type fakeCatalog struct {
	candidates []store.LiveStream
}

func (f *fakeCatalog) LiveCandidates(string) ([]store.LiveStream, error) {
	return f.candidates, nil
}

func TestResolveOwnStreamID(t *testing.T) {
	p := &fakeProvider{byQuery: map[string][]xtream.Listing{
		"7": {{Title: "TmV3cyBIb3Vy", Start: "2026-01-01 10:00:00"}},
	}}
	r := &Resolver{Provider: p}
	// no EPG channel id and a name that matches nothing; the channel's own
	// stream id must still be queried first
	ps := r.Resolve(context.Background(), store.LiveStream{
		StreamID: 7, Name: "UNIQUE NAME",
	})
	if len(ps) != 1 {
		t.Fatalf("programmes = %+v", ps)
	}
	if ps[0].Title != "News Hour" {
		t.Errorf("title = %q, want decoded base64", ps[0].Title)
	}
	if len(p.queries) != 1 || p.queries[0] != "7" {
		t.Errorf("queries = %v, want the stream id first", p.queries)
	}
}

func TestResolveEPGChannelIDSecond(t *testing.T) {
	p := &fakeProvider{byQuery: map[string][]xtream.Listing{
		"cnn.us": {{Title: "Newsroom"}},
	}}
	r := &Resolver{Provider: p}
	ps := r.Resolve(context.Background(), store.LiveStream{
		StreamID: 1, Name: "CNN HD", EPGChannelID: "cnn.us",
	})
	if len(ps) != 1 || ps[0].Title != "Newsroom" {
		t.Fatalf("programmes = %+v", ps)
	}
	if len(p.queries) != 2 || p.queries[0] != "1" || p.queries[1] != "cnn.us" {
		t.Errorf("queries = %v", p.queries)
	}
}

func TestResolveFallbackChain(t *testing.T) {
	p := &fakeProvider{byQuery: map[string][]xtream.Listing{
		"SUPER CHANNEL": {{Title: "Movie Night"}},
	}}
	r := &Resolver{Provider: p}
	ps := r.Resolve(context.Background(), store.LiveStream{
		StreamID: 7, Name: "SUPER CHANNEL 2 HD", EPGChannelID: "dead.id",
	})
	if len(ps) != 1 || ps[0].Title != "Movie Night" {
		t.Fatalf("programmes = %+v", ps)
	}
	want := []string{"7", "dead.id", "SUPER CHANNEL 2", "SUPER CHANNEL"}
	if len(p.queries) != len(want) {
		t.Fatalf("queries = %v", p.queries)
	}
	for i := range want {
		if p.queries[i] != want[i] {
			t.Errorf("query[%d] = %q, want %q", i, p.queries[i], want[i])
		}
	}
}

func TestResolveSiblingFallback(t *testing.T) {
	p := &fakeProvider{byQuery: map[string][]xtream.Listing{
		"42": {{Title: "Via Sibling"}},
	}}
	c := &fakeCatalog{candidates: []store.LiveStream{
		{StreamID: 7, Name: "SUPER CHANNEL 2"}, // the channel itself, skipped
		{StreamID: 42, Name: "SUPER CHANNEL"},
	}}
	r := &Resolver{Provider: p, Catalog: c}
	ps := r.Resolve(context.Background(), store.LiveStream{
		StreamID: 7, Name: "SUPER CHANNEL 2",
	})
	if len(ps) != 1 || ps[0].Title != "Via Sibling" {
		t.Fatalf("programmes = %+v", ps)
	}
}

func TestResolveSwallowsProviderErrors(t *testing.T) {
	p := &fakeProvider{err: errors.New("provider down")}
	r := &Resolver{Provider: p, Catalog: &fakeCatalog{}}
	ps := r.Resolve(context.Background(), store.LiveStream{
		StreamID: 1, Name: "CNN HD", EPGChannelID: "cnn.us",
	})
	if ps != nil {
		t.Errorf("programmes = %+v, want none", ps)
	}
}

func TestStripQuality(t *testing.T) {
	cases := map[string]string{
		"Super Channel HD":    "Super Channel",
		"Super Channel FHD":   "Super Channel",
		"Super Channel [4K]":  "Super Channel",
		"Super Channel (UHD)": "Super Channel",
		"Super Channel SD HD": "Super Channel",
		"Super Channel":       "Super Channel",
		"HDTV Network":        "HDTV Network",
	}
	for in, want := range cases {
		if got := StripQuality(in); got != want {
			t.Errorf("StripQuality(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStripTrailingNumber(t *testing.T) {
	cases := map[string]string{
		"Super Channel 2": "Super Channel",
		"Super Channel":   "Super Channel",
		"Channel 4 News":  "Channel 4 News",
		"24":              "24",
	}
	for in, want := range cases {
		if got := StripTrailingNumber(in); got != want {
			t.Errorf("StripTrailingNumber(%q) = %q, want %q", in, got, want)
		}
	}
}
