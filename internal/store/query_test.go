package store

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
)

func TestSearchLiveCap(t *testing.T) {
	var b strings.Builder
	b.WriteString("[")
	for i := 0; i < 80; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, `{"stream_id":%d,"name":"Channel %03d","category_id":1}`, i+1, i)
	}
	b.WriteString("]")
	s := buildStore(t, map[string]string{snapLiveStreams: b.String()})

	got, err := s.SearchLive("Channel")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 50 {
		t.Errorf("len = %d, want 50", len(got))
	}
	// name order means the first 50 of the zero-padded names survive the cap
	if got[0].Name != "Channel 000" || got[49].Name != "Channel 049" {
		t.Errorf("window = %q .. %q", got[0].Name, got[49].Name)
	}
}

func TestQueriesOnMissingStore(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "nope.db"))
	if _, err := s.SearchLive("x"); !errors.Is(err, ErrNotBuilt) {
		t.Errorf("SearchLive err = %v", err)
	}
	if _, err := s.ListVodCategories(); !errors.Is(err, ErrNotBuilt) {
		t.Errorf("ListVodCategories err = %v", err)
	}
	if _, _, err := s.Counts(); !errors.Is(err, ErrNotBuilt) {
		t.Errorf("Counts err = %v", err)
	}
}

func TestListLiveCategoriesOrder(t *testing.T) {
	s := buildStore(t, map[string]string{
		snapLiveCategories: `[
			{"category_id":1,"category_name":"Sports"},
			{"category_id":2,"category_name":"News"}
		]`,
		snapLiveStreams: `[
			{"stream_id":1,"name":"A","category_id":2},
			{"stream_id":2,"name":"B","category_id":1},
			{"stream_id":3,"name":"C","category_id":2},
			{"stream_id":4,"name":"D","category_id":99}
		]`,
	})
	cats, err := s.ListLiveCategories()
	if err != nil {
		t.Fatal(err)
	}
	if len(cats) != 3 {
		t.Fatalf("cats = %+v", cats)
	}
	if cats[0].Name != "News" || cats[0].Count != 2 {
		t.Errorf("first = %+v", cats[0])
	}
	// ties break alphabetically
	if cats[1].Name != "Sports" || cats[2].Name != "Unknown" {
		t.Errorf("tail = %+v", cats[1:])
	}
}

func TestVodInCategoryJoin(t *testing.T) {
	s := buildStore(t, map[string]string{
		snapVodCategories: `[
			{"category_id":10,"category_name":"EN - Action"},
			{"category_id":11,"category_name":"EN - Drama"}
		]`,
		snapVodStreams: `[
			{"stream_id":1,"name":"Punchfest","category_id":10},
			{"stream_id":2,"name":"Tears","category_id":11}
		]`,
	})
	got, err := s.VodInCategory("EN - Action")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Name != "Punchfest" {
		t.Errorf("got = %+v", got)
	}
}

func TestSmartVodPicks(t *testing.T) {
	s := buildStore(t, map[string]string{
		snapVodCategories: `[
			{"category_id":1,"category_name":"EN - Action"},
			{"category_id":2,"category_name":"FR - Action"},
			{"category_id":3,"category_name":"NETFLIX Originals"},
			{"category_id":4,"category_name":"NF - Series"}
		]`,
		snapVodStreams: `[
			{"stream_id":1,"name":"Hit","category_id":1,"rating":"8.0","year":"2021"},
			{"stream_id":2,"name":"Flop","category_id":1,"rating":"4.0","year":"2022"},
			{"stream_id":3,"name":"Unrated","category_id":1,"rating":"","year":"2023"},
			{"stream_id":4,"name":"French Hit","category_id":2,"rating":"9.2","year":"2020"},
			{"stream_id":5,"name":"Binge","category_id":3,"rating":"7.5","year":"2019"},
			{"stream_id":6,"name":"NF Show","category_id":4,"rating":"6.5","year":"2024"},
			{"stream_id":7,"name":"Old Hit","category_id":1,"rating":"9.0","year":"1999"}
		]`,
	})

	got, err := s.SmartVodPicks(PickFilter{
		Languages:    []string{"EN"},
		MinRating:    7.0,
		SortByRating: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	// Unrated excluded by the NULL comparison, Flop by the threshold,
	// everything non-EN by the category prefix.
	if len(got) != 2 || got[0].Name != "Old Hit" || got[1].Name != "Hit" {
		t.Errorf("got = %+v", got)
	}

	got, err = s.SmartVodPicks(PickFilter{
		Languages:      []string{"EN"},
		IncludeNetflix: true,
		MinRating:      7.0,
		YearAfter:      2000,
	})
	if err != nil {
		t.Fatal(err)
	}
	// year sort: Hit (2021) then Binge (2019); Old Hit cut by YearAfter.
	if len(got) != 2 || got[0].Name != "Hit" || got[1].Name != "Binge" {
		t.Errorf("got = %+v", got)
	}

	got, err = s.SmartVodPicks(PickFilter{IncludeNetflix: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("netflix-only = %+v", got)
	}
}

func TestLiveCandidatesRanking(t *testing.T) {
	s := buildStore(t, map[string]string{
		snapLiveStreams: `[
			{"stream_id":1,"name":"Super CNN","category_id":1},
			{"stream_id":2,"name":"CNN International","category_id":1},
			{"stream_id":3,"name":"CNN","category_id":1}
		]`,
	})
	got, err := s.LiveCandidates("CNN")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("got = %+v", got)
	}
	if got[0].Name != "CNN" || got[1].Name != "CNN International" || got[2].Name != "Super CNN" {
		t.Errorf("order = %q, %q, %q", got[0].Name, got[1].Name, got[2].Name)
	}
}

func TestCounts(t *testing.T) {
	s := buildStore(t, map[string]string{
		snapLiveStreams: `[{"stream_id":1,"name":"A","category_id":1}]`,
		snapVodStreams: `[
			{"stream_id":1,"name":"B","category_id":1},
			{"stream_id":2,"name":"C","category_id":1}
		]`,
	})
	live, vod, err := s.Counts()
	if err != nil {
		t.Fatal(err)
	}
	if live != 1 || vod != 2 {
		t.Errorf("live=%d vod=%d", live, vod)
	}
}
