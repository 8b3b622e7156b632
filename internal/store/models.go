package store

import (
	"fmt"
	"net/url"
	"strings"
)

// LiveStream is one live channel row. CategoryName is denormalized at
// build time ("Unknown" when the provider's category id is unmapped).
type LiveStream struct {
	StreamID     int
	Name         string
	CategoryID   int
	CategoryName string
	StreamURL    string
	EPGChannelID string
}

// VodItem is one video-on-demand row. Year stays text because providers
// send numeric and string years interchangeably; Rating is normalized to a
// nullable float once at build time.
type VodItem struct {
	StreamID   int
	Name       string
	CategoryID int
	StreamURL  string
	Year       string
	Rating     *float64
	Genre      string
}

// VodCategory is provider category metadata joinable to VodItem.
type VodCategory struct {
	CategoryID   int
	CategoryName string
	ParentID     int
}

// AccountInfo is the singleton provider account row.
type AccountInfo struct {
	Username       string
	Status         string
	ExpDate        int64 // unix timestamp
	MaxConnections string
}

// CategoryCount pairs a category name with its stream count.
type CategoryCount struct {
	Name  string
	Count int
}

// URLs derives playable stream URLs. The formats are fixed by the Xtream
// protocol and must be reproduced byte for byte.
type URLs struct {
	Server   string
	Username string
	Password string
}

// Live returns {server}/live/{user}/{pass}/{id}.ts.
func (u URLs) Live(streamID int) string {
	return fmt.Sprintf("%s/live/%s/%s/%d.ts",
		strings.TrimSuffix(u.Server, "/"), url.PathEscape(u.Username), url.PathEscape(u.Password), streamID)
}

// Movie returns {server}/movie/{user}/{pass}/{id}.{ext}, defaulting the
// container extension to mp4.
func (u URLs) Movie(streamID int, ext string) string {
	if ext == "" {
		ext = "mp4"
	}
	return fmt.Sprintf("%s/movie/%s/%s/%d.%s",
		strings.TrimSuffix(u.Server, "/"), url.PathEscape(u.Username), url.PathEscape(u.Password), streamID, url.PathEscape(ext))
}
