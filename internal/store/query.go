package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const (
	searchCap     = 50
	categoryCap   = 30
	inCategoryCap = 100
	candidateCap  = 10
)

// SearchLive returns live channels whose name contains query, ordered by
// name, capped at 50. The query string is always bound, never spliced.
func (s *Store) SearchLive(query string) ([]LiveStream, error) {
	db, err := s.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()
	rows, err := db.Query(`
		SELECT stream_id, name, category_id, stream_url, category_name, epg_channel_id
		FROM live_streams
		WHERE name LIKE ?
		ORDER BY name
		LIMIT ?`, "%"+query+"%", searchCap)
	if err != nil {
		return nil, err
	}
	return scanLive(rows)
}

// SearchVod returns VOD items whose name contains query, same shape as
// SearchLive.
func (s *Store) SearchVod(query string) ([]VodItem, error) {
	db, err := s.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()
	rows, err := db.Query(`
		SELECT stream_id, name, category_id, stream_url, year, rating, genre
		FROM vod_streams
		WHERE name LIKE ?
		ORDER BY name
		LIMIT ?`, "%"+query+"%", searchCap)
	if err != nil {
		return nil, err
	}
	return scanVod(rows)
}

// ListLiveCategories groups live channels by denormalized category name,
// busiest first.
func (s *Store) ListLiveCategories() ([]CategoryCount, error) {
	db, err := s.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()
	rows, err := db.Query(`
		SELECT category_name, COUNT(*) AS cnt
		FROM live_streams
		WHERE category_name IS NOT NULL
		GROUP BY category_name
		ORDER BY cnt DESC, category_name
		LIMIT ?`, categoryCap)
	if err != nil {
		return nil, err
	}
	return scanCategoryCounts(rows)
}

// ListVodCategories joins VOD items to their category rows, busiest first.
func (s *Store) ListVodCategories() ([]CategoryCount, error) {
	db, err := s.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()
	rows, err := db.Query(`
		SELECT c.category_name, COUNT(*) AS cnt
		FROM vod_streams v
		JOIN vod_categories c ON v.category_id = c.category_id
		GROUP BY c.category_name
		ORDER BY cnt DESC, c.category_name
		LIMIT ?`, categoryCap)
	if err != nil {
		return nil, err
	}
	return scanCategoryCounts(rows)
}

// ChannelsInCategory returns live channels with the exact category name.
func (s *Store) ChannelsInCategory(categoryName string) ([]LiveStream, error) {
	db, err := s.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()
	rows, err := db.Query(`
		SELECT stream_id, name, category_id, stream_url, category_name, epg_channel_id
		FROM live_streams
		WHERE category_name = ?
		ORDER BY name
		LIMIT ?`, categoryName, inCategoryCap)
	if err != nil {
		return nil, err
	}
	return scanLive(rows)
}

// VodInCategory returns VOD items whose category row has the exact name.
func (s *Store) VodInCategory(categoryName string) ([]VodItem, error) {
	db, err := s.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()
	rows, err := db.Query(`
		SELECT v.stream_id, v.name, v.category_id, v.stream_url, v.year, v.rating, v.genre
		FROM vod_streams v
		JOIN vod_categories c ON v.category_id = c.category_id
		WHERE c.category_name = ?
		ORDER BY v.name
		LIMIT ?`, categoryName, inCategoryCap)
	if err != nil {
		return nil, err
	}
	return scanVod(rows)
}

// PickFilter drives SmartVodPicks. Languages are two/three-letter codes
// matched as category-name prefixes ("EN" matches "EN - ..."). MinRating
// and YearAfter of zero mean "no constraint".
type PickFilter struct {
	Languages      []string
	MinRating      float64
	IncludeNetflix bool
	YearAfter      int
	Limit          int
	SortByRating   bool
}

// SmartVodPicks runs the conjunctive multi-predicate filter over VOD
// items. Ratings were normalized to nullable REAL at build time, so the
// NULL comparison semantics exclude unrated rows for free; years stay
// free-text and non-castable values cast to 0, which the strict > guard
// silently excludes.
func (s *Store) SmartVodPicks(f PickFilter) ([]VodItem, error) {
	db, err := s.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	var sb strings.Builder
	var args []any
	sb.WriteString(`
		SELECT v.stream_id, v.name, v.category_id, v.stream_url, v.year, v.rating, v.genre
		FROM vod_streams v
		JOIN vod_categories c ON v.category_id = c.category_id
		WHERE 1=1`)

	var catPreds []string
	for _, lang := range f.Languages {
		lang = strings.ToUpper(strings.TrimSpace(lang))
		if lang == "" {
			continue
		}
		catPreds = append(catPreds, "c.category_name LIKE ?")
		args = append(args, lang+" -%")
	}
	if f.IncludeNetflix {
		catPreds = append(catPreds, "(c.category_name LIKE ? OR c.category_name LIKE ?)")
		args = append(args, "%NETFLIX%", "NF -%")
	}
	if len(catPreds) > 0 {
		fmt.Fprintf(&sb, " AND (%s)", strings.Join(catPreds, " OR "))
	}
	if f.MinRating > 0 {
		sb.WriteString(" AND v.rating >= ?")
		args = append(args, f.MinRating)
	}
	if f.YearAfter > 0 {
		sb.WriteString(" AND CAST(v.year AS INTEGER) > ?")
		args = append(args, f.YearAfter)
	}
	if f.SortByRating {
		sb.WriteString(" ORDER BY v.rating DESC, CAST(v.year AS INTEGER) DESC")
	} else {
		sb.WriteString(" ORDER BY CAST(v.year AS INTEGER) DESC, v.rating DESC")
	}
	limit := f.Limit
	if limit <= 0 {
		limit = searchCap
	}
	sb.WriteString(" LIMIT ?")
	args = append(args, limit)

	rows, err := db.Query(sb.String(), args...)
	if err != nil {
		return nil, err
	}
	return scanVod(rows)
}

// LiveCandidates finds channels whose name contains base, exact matches
// first, then prefix, then substring. Used by the EPG resolver's last
// fallback rung; capped at 10.
func (s *Store) LiveCandidates(base string) ([]LiveStream, error) {
	db, err := s.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()
	rows, err := db.Query(`
		SELECT stream_id, name, category_id, stream_url, category_name, epg_channel_id
		FROM live_streams
		WHERE name LIKE ?
		ORDER BY CASE
			WHEN name = ? THEN 0
			WHEN name LIKE ? THEN 1
			ELSE 2
		END, name
		LIMIT ?`, "%"+base+"%", base, base+"%", candidateCap)
	if err != nil {
		return nil, err
	}
	return scanLive(rows)
}

// LiveByID returns one live channel by stream id.
func (s *Store) LiveByID(streamID int) (LiveStream, error) {
	db, err := s.open()
	if err != nil {
		return LiveStream{}, err
	}
	defer db.Close()
	row := db.QueryRow(`
		SELECT stream_id, name, category_id, stream_url, category_name, epg_channel_id
		FROM live_streams WHERE stream_id = ?`, streamID)
	var ls LiveStream
	var epg sql.NullString
	if err := row.Scan(&ls.StreamID, &ls.Name, &ls.CategoryID, &ls.StreamURL, &ls.CategoryName, &epg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return LiveStream{}, fmt.Errorf("no live channel with id %d", streamID)
		}
		return LiveStream{}, err
	}
	ls.EPGChannelID = epg.String
	return ls, nil
}

// VodByID returns one VOD item by stream id.
func (s *Store) VodByID(streamID int) (VodItem, error) {
	db, err := s.open()
	if err != nil {
		return VodItem{}, err
	}
	defer db.Close()
	row := db.QueryRow(`
		SELECT stream_id, name, category_id, stream_url, year, rating, genre
		FROM vod_streams WHERE stream_id = ?`, streamID)
	var v VodItem
	var year, genre sql.NullString
	var rating sql.NullFloat64
	if err := row.Scan(&v.StreamID, &v.Name, &v.CategoryID, &v.StreamURL, &year, &rating, &genre); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return VodItem{}, fmt.Errorf("no movie with id %d", streamID)
		}
		return VodItem{}, err
	}
	v.Year = year.String
	v.Genre = genre.String
	if rating.Valid {
		r := rating.Float64
		v.Rating = &r
	}
	return v, nil
}

func scanLive(rows *sql.Rows) ([]LiveStream, error) {
	defer rows.Close()
	var out []LiveStream
	for rows.Next() {
		var ls LiveStream
		var epg sql.NullString
		if err := rows.Scan(&ls.StreamID, &ls.Name, &ls.CategoryID, &ls.StreamURL, &ls.CategoryName, &epg); err != nil {
			return nil, err
		}
		ls.EPGChannelID = epg.String
		out = append(out, ls)
	}
	return out, rows.Err()
}

func scanVod(rows *sql.Rows) ([]VodItem, error) {
	defer rows.Close()
	var out []VodItem
	for rows.Next() {
		var v VodItem
		var year, genre sql.NullString
		var rating sql.NullFloat64
		if err := rows.Scan(&v.StreamID, &v.Name, &v.CategoryID, &v.StreamURL, &year, &rating, &genre); err != nil {
			return nil, err
		}
		v.Year = year.String
		v.Genre = genre.String
		if rating.Valid {
			r := rating.Float64
			v.Rating = &r
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func scanCategoryCounts(rows *sql.Rows) ([]CategoryCount, error) {
	defer rows.Close()
	var out []CategoryCount
	for rows.Next() {
		var c CategoryCount
		if err := rows.Scan(&c.Name, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
