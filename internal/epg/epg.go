// Package epg resolves programme listings for a live channel. Providers
// are wildly inconsistent about EPG coverage: the channel's own id often
// returns nothing while a sibling channel or a cleaned-up name works, so
// resolution walks a fallback chain and treats every rung as optional.
package epg

import (
	"context"
	"encoding/base64"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/iptvdeck/iptvdeck/internal/store"
	"github.com/iptvdeck/iptvdeck/internal/xtream"
)

// Provider is the short-EPG endpoint of the Xtream client.
type Provider interface {
	ShortEPG(ctx context.Context, query string, limit int) ([]xtream.Listing, error)
}

// Catalog supplies sibling channels for the last fallback rung.
type Catalog interface {
	LiveCandidates(base string) ([]store.LiveStream, error)
}

// Programme is one decoded listing.
type Programme struct {
	Title       string
	Start       string
	End         string
	Description string
}

// Resolver walks the fallback chain for one channel:
//
//  1. the channel's own stream id (the normal get_short_epg key), then
//     its EPG channel id when the provider set one
//  2. the name with quality suffixes stripped
//  3. the name with a trailing channel number also stripped
//  4. catalog siblings matching the stripped name, each by stream id
//
// Every provider error is swallowed; an empty result just means the next
// rung gets a turn, and an empty chain means "no guide data".
type Resolver struct {
	Provider Provider
	Catalog  Catalog
	Limit    int // listings per query, default 3
}

// Resolve returns the first non-empty listing set the chain produces.
func (r *Resolver) Resolve(ctx context.Context, ch store.LiveStream) []Programme {
	if ps := r.query(ctx, strconv.Itoa(ch.StreamID)); len(ps) > 0 {
		return ps
	}
	if ch.EPGChannelID != "" {
		if ps := r.query(ctx, ch.EPGChannelID); len(ps) > 0 {
			return ps
		}
	}

	base := StripQuality(ch.Name)
	if base != "" && base != ch.Name {
		if ps := r.query(ctx, base); len(ps) > 0 {
			return ps
		}
	}

	bare := StripTrailingNumber(base)
	if bare != "" && bare != base {
		if ps := r.query(ctx, bare); len(ps) > 0 {
			return ps
		}
	}

	if r.Catalog == nil || bare == "" {
		return nil
	}
	siblings, err := r.Catalog.LiveCandidates(bare)
	if err != nil {
		return nil
	}
	for _, sib := range siblings {
		if sib.StreamID == ch.StreamID {
			continue
		}
		if ps := r.query(ctx, strconv.Itoa(sib.StreamID)); len(ps) > 0 {
			return ps
		}
	}
	return nil
}

func (r *Resolver) query(ctx context.Context, q string) []Programme {
	listings, err := r.Provider.ShortEPG(ctx, q, r.Limit)
	if err != nil {
		return nil
	}
	out := make([]Programme, 0, len(listings))
	for _, l := range listings {
		out = append(out, Programme{
			Title:       decodeMaybeBase64(l.Title),
			Start:       l.Start,
			End:         l.End,
			Description: decodeMaybeBase64(l.Description),
		})
	}
	return out
}

var (
	qualityToken   = regexp.MustCompile(`(?i)^[\[(]?(HD|FHD|SD|4K|UHD)[\])]?$`)
	trailingNumber = regexp.MustCompile(`\s+\d+$`)
)

// StripQuality removes trailing quality tokens from a channel name.
// "Super Channel FHD" and "Super Channel [HD]" both become "Super Channel".
func StripQuality(name string) string {
	fields := strings.Fields(name)
	for len(fields) > 0 && qualityToken.MatchString(fields[len(fields)-1]) {
		fields = fields[:len(fields)-1]
	}
	return strings.Join(fields, " ")
}

// StripTrailingNumber removes a trailing channel number, turning
// "Super Channel 2" into "Super Channel". A purely numeric name is left
// alone.
func StripTrailingNumber(name string) string {
	stripped := trailingNumber.ReplaceAllString(name, "")
	if stripped == "" {
		return name
	}
	return stripped
}

// decodeMaybeBase64 decodes s when it looks like base64 and the result is
// valid UTF-8. Providers mix encoded and plain text freely, so a failed
// decode just means the text was already plain.
func decodeMaybeBase64(s string) string {
	if s == "" || len(s)%4 != 0 {
		return s
	}
	decoded, err := base64.StdEncoding.DecodeString(s)
	if err != nil || !utf8.Valid(decoded) {
		return s
	}
	for _, b := range decoded {
		if b < 0x09 {
			return s
		}
	}
	return string(decoded)
}
