// Command iptvdeck: terminal front end for one Xtream-Codes account.
//
//	refresh    Fetch provider snapshots and rebuild the catalog (-live/-vod for partial, -force to skip the staleness check)
//	status     Show catalog age, row counts and account expiry
//	search     Find live channels or movies by name
//	categories List live or VOD categories by size
//	channels   List live channels in a category
//	vod        List movies in a category
//	picks      Smart VOD picks: language, rating, year and Netflix filters
//	epg        Show now/next programmes for a channel
//	fav        Manage favorites (add/rm/list); the M3U playlist tracks every change
//	playlist   Print the favorites playlist path
//	serve      Run the local HTTP server (playlist, status, metrics)
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/iptvdeck/iptvdeck/internal/config"
	"github.com/iptvdeck/iptvdeck/internal/epg"
	"github.com/iptvdeck/iptvdeck/internal/favorites"
	"github.com/iptvdeck/iptvdeck/internal/refresh"
	"github.com/iptvdeck/iptvdeck/internal/server"
	"github.com/iptvdeck/iptvdeck/internal/store"
	"github.com/iptvdeck/iptvdeck/internal/xtream"
)

// app is the wired-up dependency set every subcommand works from.
type app struct {
	cfg       *config.Config
	client    *xtream.Client
	store     *store.Store
	refresher *refresh.Refresher
	favs      *favorites.List
	gate      refresh.Gate
}

func newApp(cfg *config.Config) *app {
	client := xtream.New(cfg.ServerURL, cfg.Username, cfg.Password,
		cfg.SnapshotDir, cfg.FetchTimeout, cfg.StreamsFetchTimeout)
	client.UserAgent = cfg.UserAgent
	st := store.New(cfg.DBPath)
	return &app{
		cfg:    cfg,
		client: client,
		store:  st,
		refresher: &refresh.Refresher{
			Client: client,
			Store:  st,
			URLs:   store.URLs{Server: cfg.ServerURL, Username: cfg.Username, Password: cfg.Password},
		},
		favs: favorites.New(cfg.FavoritesPath, cfg.PlaylistPath),
		gate: refresh.Gate{StorePath: cfg.DBPath, StaleAfter: cfg.StaleAfter},
	}
}

// ensureFresh refreshes a stale or missing catalog before a read command
// runs, so queries never silently serve two-week-old data.
func (a *app) ensureFresh(ctx context.Context) {
	ran, err := a.refresher.EnsureFresh(ctx, a.gate)
	if err != nil {
		log.Printf("Refresh failed: %v", err)
		if _, ok := a.store.LastModified(); !ok {
			os.Exit(1)
		}
		log.Printf("Continuing with the existing catalog")
		return
	}
	if ran {
		log.Printf("Catalog refreshed")
	}
}

func main() {
	log.SetFlags(log.LstdFlags)
	log.SetPrefix("[iptvdeck] ")

	refreshCmd := flag.NewFlagSet("refresh", flag.ExitOnError)
	refreshLive := refreshCmd.Bool("live", false, "Refresh live channels only")
	refreshVod := refreshCmd.Bool("vod", false, "Refresh VOD only")
	refreshForce := refreshCmd.Bool("force", false, "Refresh even when the catalog is fresh")

	searchCmd := flag.NewFlagSet("search", flag.ExitOnError)
	searchVod := searchCmd.Bool("vod", false, "Search movies instead of live channels")

	categoriesCmd := flag.NewFlagSet("categories", flag.ExitOnError)
	categoriesVod := categoriesCmd.Bool("vod", false, "List VOD categories instead of live")

	picksCmd := flag.NewFlagSet("picks", flag.ExitOnError)
	picksLangs := picksCmd.String("lang", "", "Comma-separated language prefixes (e.g. EN,FR)")
	picksRating := picksCmd.Float64("min-rating", 0, "Minimum rating (unrated items excluded)")
	picksNetflix := picksCmd.Bool("netflix", false, "Include Netflix categories")
	picksYear := picksCmd.Int("year-after", 0, "Only items released after this year")
	picksLimit := picksCmd.Int("limit", 25, "Max results")
	picksByRating := picksCmd.Bool("by-rating", false, "Sort by rating instead of year")

	serveCmd := flag.NewFlagSet("serve", flag.ExitOnError)
	serveAddr := serveCmd.String("addr", "", "Listen address (default: IPTVDECK_HTTP_ADDR or :8474)")

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Printf("Config: %v", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		log.Printf("Config: %v", err)
		os.Exit(1)
	}
	log.Printf("Config: %s", cfg.Redacted())
	for _, dir := range []string{cfg.DataDir, cfg.SnapshotDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Printf("Create %s: %v", dir, err)
			os.Exit(1)
		}
	}
	a := newApp(cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	switch os.Args[1] {
	case "refresh":
		_ = refreshCmd.Parse(os.Args[2:])
		kinds := xtream.FullRefresh
		switch {
		case *refreshLive && *refreshVod:
			log.Printf("-live and -vod are exclusive; use neither for a full refresh")
			os.Exit(1)
		case *refreshLive:
			kinds = xtream.LiveRefresh
		case *refreshVod:
			kinds = xtream.VodRefresh
		}
		if !*refreshForce && !a.gate.IsStale() {
			age, _ := a.gate.Age()
			log.Printf("Catalog is %s old, still fresh; use -force to refresh anyway", age.Round(time.Hour))
			return
		}
		stats, err := a.refresher.Refresh(ctx, kinds)
		if err != nil {
			log.Printf("Refresh failed: %v", err)
			os.Exit(1)
		}
		fmt.Printf("Catalog rebuilt: %d live channels, %d movies, %d VOD categories\n",
			stats.LiveStreams, stats.VodItems, stats.VodCategories)

	case "status":
		cmdStatus(a)

	case "search":
		_ = searchCmd.Parse(os.Args[2:])
		query := strings.Join(searchCmd.Args(), " ")
		if query == "" {
			log.Printf("Usage: search [-vod] <query>")
			os.Exit(1)
		}
		a.ensureFresh(ctx)
		if *searchVod {
			cmdSearchVod(a, query)
		} else {
			cmdSearchLive(a, query)
		}

	case "categories":
		_ = categoriesCmd.Parse(os.Args[2:])
		a.ensureFresh(ctx)
		cmdCategories(a, *categoriesVod)

	case "channels":
		if len(os.Args) < 3 {
			log.Printf("Usage: channels <category>")
			os.Exit(1)
		}
		a.ensureFresh(ctx)
		cmdChannels(a, strings.Join(os.Args[2:], " "))

	case "vod":
		if len(os.Args) < 3 {
			log.Printf("Usage: vod <category>")
			os.Exit(1)
		}
		a.ensureFresh(ctx)
		cmdVodCategory(a, strings.Join(os.Args[2:], " "))

	case "picks":
		_ = picksCmd.Parse(os.Args[2:])
		a.ensureFresh(ctx)
		var langs []string
		if *picksLangs != "" {
			langs = strings.Split(*picksLangs, ",")
		}
		cmdPicks(a, store.PickFilter{
			Languages:      langs,
			MinRating:      *picksRating,
			IncludeNetflix: *picksNetflix,
			YearAfter:      *picksYear,
			Limit:          *picksLimit,
			SortByRating:   *picksByRating,
		})

	case "epg":
		if len(os.Args) < 3 {
			log.Printf("Usage: epg <stream id | channel name>")
			os.Exit(1)
		}
		a.ensureFresh(ctx)
		cmdEPG(ctx, a, strings.Join(os.Args[2:], " "))

	case "fav":
		if len(os.Args) < 3 {
			log.Printf("Usage: fav <add|rm|list> ...")
			os.Exit(1)
		}
		cmdFav(ctx, a, os.Args[2], os.Args[3:])

	case "playlist":
		fmt.Println(a.cfg.PlaylistPath)

	case "serve":
		_ = serveCmd.Parse(os.Args[2:])
		addr := *serveAddr
		if addr == "" {
			addr = a.cfg.HTTPAddr
		}
		if addr == "" {
			addr = ":8474"
		}
		a.ensureFresh(ctx)
		srv := &server.Server{Store: a.store, Favorites: a.favs, Gate: a.gate}
		if err := srv.ListenAndServe(addr); err != nil {
			log.Printf("Server: %v", err)
			os.Exit(1)
		}

	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s <command> [flags]\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  refresh    Fetch provider data and rebuild the catalog (-live/-vod/-force)\n")
	fmt.Fprintf(os.Stderr, "  status     Show catalog age, counts and account expiry\n")
	fmt.Fprintf(os.Stderr, "  search     Find live channels (-vod for movies) by name\n")
	fmt.Fprintf(os.Stderr, "  categories List categories by size (-vod for VOD)\n")
	fmt.Fprintf(os.Stderr, "  channels   List live channels in a category\n")
	fmt.Fprintf(os.Stderr, "  vod        List movies in a category\n")
	fmt.Fprintf(os.Stderr, "  picks      Smart VOD picks (-lang EN,FR -min-rating 7 -netflix -year-after 2015)\n")
	fmt.Fprintf(os.Stderr, "  epg        Show programmes for a channel\n")
	fmt.Fprintf(os.Stderr, "  fav        add <live|vod> <id> | rm <live|vod> <id> | list\n")
	fmt.Fprintf(os.Stderr, "  playlist   Print the favorites playlist path\n")
	fmt.Fprintf(os.Stderr, "  serve      Run the local HTTP server (-addr :8474)\n")
}

func cmdStatus(a *app) {
	mtime, built := a.store.LastModified()
	if !built {
		fmt.Println("Catalog: not built yet, run `iptvdeck refresh`")
		return
	}
	age := time.Since(mtime).Round(time.Minute)
	freshness := "fresh"
	if a.gate.IsStale() {
		freshness = "STALE"
	}
	fmt.Printf("Catalog: built %s ago (%s)\n", age, freshness)
	live, vod, err := a.store.Counts()
	if err != nil {
		log.Printf("Counts: %v", err)
	} else {
		fmt.Printf("Content: %d live channels, %d movies\n", live, vod)
	}
	acct, err := a.store.AccountInfo()
	if err != nil {
		log.Printf("Account: %v", err)
		return
	}
	if acct == nil {
		fmt.Println("Account: no info in catalog")
		return
	}
	exp := "never"
	if acct.ExpDate > 0 {
		exp = time.Unix(acct.ExpDate, 0).Format("2006-01-02")
	}
	fmt.Printf("Account: %s (%s), expires %s, max connections %s\n",
		acct.Username, acct.Status, exp, acct.MaxConnections)
	if entries, err := a.favs.Load(); err == nil {
		fmt.Printf("Favorites: %d (playlist %s)\n", len(entries), a.cfg.PlaylistPath)
	}
}

func cmdSearchLive(a *app, query string) {
	results, err := a.store.SearchLive(query)
	if err != nil {
		exitQueryErr(err)
	}
	if len(results) == 0 {
		fmt.Println("No channels found")
		return
	}
	favs := favKeys(a)
	for _, ch := range results {
		fmt.Printf("%s%7d  %-40s  %s\n", favMark(favs, ch.StreamID, favorites.TypeLive), ch.StreamID, ch.Name, ch.CategoryName)
	}
}

func cmdSearchVod(a *app, query string) {
	results, err := a.store.SearchVod(query)
	if err != nil {
		exitQueryErr(err)
	}
	if len(results) == 0 {
		fmt.Println("No movies found")
		return
	}
	favs := favKeys(a)
	for _, v := range results {
		fmt.Printf("%s%7d  %-40s  %s\n", favMark(favs, v.StreamID, favorites.TypeVod), v.StreamID, v.Name, vodMeta(v))
	}
}

func cmdCategories(a *app, vod bool) {
	var cats []store.CategoryCount
	var err error
	if vod {
		cats, err = a.store.ListVodCategories()
	} else {
		cats, err = a.store.ListLiveCategories()
	}
	if err != nil {
		exitQueryErr(err)
	}
	for _, c := range cats {
		fmt.Printf("%5d  %s\n", c.Count, c.Name)
	}
}

func cmdChannels(a *app, category string) {
	results, err := a.store.ChannelsInCategory(category)
	if err != nil {
		exitQueryErr(err)
	}
	if len(results) == 0 {
		fmt.Println("No channels in that category")
		return
	}
	for _, ch := range results {
		fmt.Printf("%7d  %s\n", ch.StreamID, ch.Name)
	}
}

func cmdVodCategory(a *app, category string) {
	results, err := a.store.VodInCategory(category)
	if err != nil {
		exitQueryErr(err)
	}
	if len(results) == 0 {
		fmt.Println("No movies in that category")
		return
	}
	for _, v := range results {
		fmt.Printf("%7d  %-40s  %s\n", v.StreamID, v.Name, vodMeta(v))
	}
}

func cmdPicks(a *app, f store.PickFilter) {
	results, err := a.store.SmartVodPicks(f)
	if err != nil {
		exitQueryErr(err)
	}
	if len(results) == 0 {
		fmt.Println("Nothing matches those filters")
		return
	}
	for _, v := range results {
		fmt.Printf("%7d  %-40s  %s\n", v.StreamID, v.Name, vodMeta(v))
	}
}

// lookupChannel resolves a stream id or a name to one live channel. A
// numeric argument is looked up by id first and only falls back to name
// search when no channel has that id.
func lookupChannel(st *store.Store, arg string) (store.LiveStream, bool, error) {
	if id, err := strconv.Atoi(arg); err == nil {
		ch, err := st.LiveByID(id)
		if err == nil {
			return ch, true, nil
		}
		if errors.Is(err, store.ErrNotBuilt) {
			return store.LiveStream{}, false, err
		}
	}
	matches, err := st.SearchLive(arg)
	if err != nil {
		return store.LiveStream{}, false, err
	}
	if len(matches) == 0 {
		return store.LiveStream{}, false, nil
	}
	return matches[0], true, nil
}

func cmdEPG(ctx context.Context, a *app, arg string) {
	ch, found, err := lookupChannel(a.store, arg)
	if err != nil {
		exitQueryErr(err)
	}
	if !found {
		fmt.Println("No channel matches that name or id")
		return
	}
	fmt.Printf("Guide for %s\n", ch.Name)
	resolver := &epg.Resolver{Provider: a.client, Catalog: a.store}
	programmes := resolver.Resolve(ctx, ch)
	if len(programmes) == 0 {
		fmt.Println("No guide data available for this channel")
		return
	}
	for _, p := range programmes {
		fmt.Printf("  %s - %s  %s\n", p.Start, p.End, p.Title)
		if p.Description != "" {
			fmt.Printf("      %s\n", p.Description)
		}
	}
}

func cmdFav(ctx context.Context, a *app, verb string, args []string) {
	switch verb {
	case "list":
		entries, err := a.favs.Load()
		if err != nil {
			log.Printf("Favorites: %v", err)
			os.Exit(1)
		}
		if len(entries) == 0 {
			fmt.Println("No favorites yet")
			return
		}
		for _, e := range entries {
			fmt.Printf("%-4s %7d  %-40s  %s\n", e.Type, e.StreamID, e.Name, e.Category)
		}

	case "add", "rm":
		if len(args) != 2 {
			log.Printf("Usage: fav %s <live|vod> <stream id>", verb)
			os.Exit(1)
		}
		typ := args[0]
		if typ != favorites.TypeLive && typ != favorites.TypeVod {
			log.Printf("Type must be live or vod, got %q", typ)
			os.Exit(1)
		}
		id, err := strconv.Atoi(args[1])
		if err != nil {
			log.Printf("Stream id must be a number, got %q", args[1])
			os.Exit(1)
		}
		if verb == "rm" {
			n, removed, err := a.favs.Remove(favorites.Key{StreamID: id, Type: typ})
			if err != nil {
				log.Printf("Favorites: %v", err)
				os.Exit(1)
			}
			if !removed {
				fmt.Printf("Not a favorite: %s %d\n", typ, id)
				return
			}
			fmt.Printf("Removed. %d favorites\n", n)
			return
		}
		a.ensureFresh(ctx)
		entry, err := favEntryFromCatalog(a, typ, id)
		if err != nil {
			log.Printf("Favorites: %v", err)
			os.Exit(1)
		}
		n, added, err := a.favs.Add(entry)
		if err != nil {
			log.Printf("Favorites: %v", err)
			os.Exit(1)
		}
		if !added {
			fmt.Printf("Already a favorite: %s\n", entry.Name)
			return
		}
		fmt.Printf("Added %s. %d favorites, playlist updated\n", entry.Name, n)

	default:
		log.Printf("Usage: fav <add|rm|list> ...")
		os.Exit(1)
	}
}

// favEntryFromCatalog looks the stream up so the saved entry carries its
// name, URL and category rather than just an id.
func favEntryFromCatalog(a *app, typ string, id int) (favorites.Entry, error) {
	if typ == favorites.TypeLive {
		ch, err := a.store.LiveByID(id)
		if err != nil {
			return favorites.Entry{}, err
		}
		return favorites.Entry{
			StreamID: ch.StreamID, Name: ch.Name, StreamURL: ch.StreamURL,
			Category: ch.CategoryName, Type: favorites.TypeLive,
		}, nil
	}
	v, err := a.store.VodByID(id)
	if err != nil {
		return favorites.Entry{}, err
	}
	return favorites.Entry{
		StreamID: v.StreamID, Name: v.Name, StreamURL: v.StreamURL,
		Category: v.Genre, Type: favorites.TypeVod,
	}, nil
}

func favKeys(a *app) map[favorites.Key]bool {
	set, err := a.favs.KeySet()
	if err != nil {
		return nil
	}
	return set
}

func favMark(set map[favorites.Key]bool, id int, typ string) string {
	if set[favorites.Key{StreamID: id, Type: typ}] {
		return "* "
	}
	return "  "
}

func vodMeta(v store.VodItem) string {
	parts := []string{}
	if v.Year != "" {
		parts = append(parts, v.Year)
	}
	if v.Rating != nil {
		parts = append(parts, fmt.Sprintf("%.1f", *v.Rating))
	}
	if v.Genre != "" {
		parts = append(parts, v.Genre)
	}
	return strings.Join(parts, "  ")
}

func exitQueryErr(err error) {
	log.Printf("Query: %v", err)
	os.Exit(1)
}
