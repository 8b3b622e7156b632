package xtream

// Kind names one provider resource fetched through player_api.php.
type Kind string

const (
	KindAccountInfo      Kind = "account_info"
	KindLiveCategories   Kind = "live_categories"
	KindLiveStreams      Kind = "live_streams"
	KindVodCategories    Kind = "vod_categories"
	KindVodStreams       Kind = "vod_streams"
	KindSeriesCategories Kind = "series_categories"
)

// FullRefresh is the fixed fetch order for a complete catalog refresh.
// Categories come before streams so category-name resolution always has
// data; account info first mirrors the provider's auth handshake.
var FullRefresh = []Kind{
	KindAccountInfo,
	KindLiveCategories,
	KindLiveStreams,
	KindVodCategories,
	KindVodStreams,
	KindSeriesCategories,
}

// LiveRefresh updates only the live side (quick update).
var LiveRefresh = []Kind{KindLiveCategories, KindLiveStreams}

// VodRefresh updates only the VOD side.
var VodRefresh = []Kind{KindVodCategories, KindVodStreams}

// action returns the player_api.php action parameter; account info is the
// bare authenticated endpoint with no action.
func (k Kind) action() string {
	switch k {
	case KindAccountInfo:
		return ""
	case KindLiveCategories:
		return "get_live_categories"
	case KindLiveStreams:
		return "get_live_streams"
	case KindVodCategories:
		return "get_vod_categories"
	case KindVodStreams:
		return "get_vod_streams"
	case KindSeriesCategories:
		return "get_series_categories"
	}
	return ""
}

// SnapshotFile is the fixed snapshot filename for this resource kind.
func (k Kind) SnapshotFile() string {
	return string(k) + ".json"
}

// large reports whether this resource can run to tens of megabytes and
// needs the long fetch timeout.
func (k Kind) large() bool {
	return k == KindLiveStreams || k == KindVodStreams
}

// wantArray reports whether the response must be a JSON array. Account
// info is the one object-shaped resource.
func (k Kind) wantArray() bool {
	return k != KindAccountInfo
}
