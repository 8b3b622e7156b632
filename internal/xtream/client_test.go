package xtream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := New(srv.URL, "u", "p", t.TempDir(), 0, 0)
	c.Limiter = nil // no pacing in tests
	return c
}

func TestFetchWritesSnapshot(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("username") != "u" || q.Get("password") != "p" {
			t.Errorf("credentials not sent: %s", r.URL.RawQuery)
		}
		if q.Get("action") != "get_live_categories" {
			t.Errorf("action = %q", q.Get("action"))
		}
		w.Write([]byte(`[{"category_id":"1","category_name":"News","parent_id":0}]`))
	})

	if err := c.Fetch(context.Background(), KindLiveCategories); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(c.SnapshotDir, "live_categories.json"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `[{"category_id":"1","category_name":"News","parent_id":0}]` {
		t.Errorf("snapshot = %s", data)
	}
}

func TestFetchAccountInfoWantsObject(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Has("action") {
			t.Errorf("account info must not send an action, got %q", r.URL.Query().Get("action"))
		}
		w.Write([]byte(`{"user_info":{"username":"u","status":"Active"}}`))
	})
	if err := c.Fetch(context.Background(), KindAccountInfo); err != nil {
		t.Fatal(err)
	}
}

func TestFetchClassifiesStatus(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	err := c.Fetch(context.Background(), KindLiveStreams)
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("want *FetchError, got %v", err)
	}
	if fe.Fail != FailStatus || fe.Status != 403 {
		t.Errorf("fail=%s status=%d", fe.Fail, fe.Status)
	}
}

func TestFetchClassifiesParse(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		// error page instead of the expected array
		w.Write([]byte(`{"user_info":{"auth":0}}`))
	})
	err := c.Fetch(context.Background(), KindVodStreams)
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("want *FetchError, got %v", err)
	}
	if fe.Fail != FailParse {
		t.Errorf("fail = %s, want parse", fe.Fail)
	}
	if _, statErr := os.Stat(filepath.Join(c.SnapshotDir, "vod_streams.json")); !os.IsNotExist(statErr) {
		t.Error("failed fetch must not leave a snapshot behind")
	}
}

func TestFetchAllStopsAtFirstFailure(t *testing.T) {
	var actions []string
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		action := r.URL.Query().Get("action")
		actions = append(actions, action)
		if action == "get_live_streams" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		if action == "" {
			w.Write([]byte(`{"user_info":{}}`))
			return
		}
		w.Write([]byte(`[]`))
	})

	err := c.FetchAll(context.Background(), FullRefresh, nil)
	if err == nil {
		t.Fatal("expected failure")
	}
	// account info, live categories, then the failing live streams; VOD
	// kinds never requested.
	if len(actions) != 3 {
		t.Errorf("requests = %v", actions)
	}
}

func TestShortEPG(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("action") != "get_short_epg" {
			t.Errorf("action = %q", q.Get("action"))
		}
		if q.Get("stream_id") != "42" || q.Get("limit") != "3" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{"epg_listings":[{"title":"TmV3cw==","start":"2026-01-01 10:00:00","end":"2026-01-01 11:00:00","description":""}]}`))
	})

	listings, err := c.ShortEPG(context.Background(), "42", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(listings) != 1 || listings[0].Title != "TmV3cw==" {
		t.Errorf("listings = %+v", listings)
	}
}
