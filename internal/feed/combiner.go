package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/fernweh-site/fernweh/internal/cache"
	"github.com/fernweh-site/fernweh/internal/content"
	"github.com/fernweh-site/fernweh/internal/metrics"
	"github.com/fernweh-site/fernweh/internal/model"
	"github.com/fernweh-site/fernweh/internal/region"
	"github.com/fernweh-site/fernweh/internal/relay"
)

// maxFillFetches bounds how many pages one request may pull when
// classification or a region filter leaves the first page sparse.
const maxFillFetches = 3

// Item is one entry of a typed collection.
type Item struct {
	Type     string            `json:"type"`
	Event    model.Event       `json:"event"`
	Metadata *content.Metadata `json:"metadata,omitempty"`
}

// Result is a sorted, deduplicated page of a feed.
type Result struct {
	Items      []Item `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
	HasMore    bool   `json:"has_more"`
}

// Options narrows one feed request.
type Options struct {
	Topics []string
	Region string
	Limit  int
	Until  int64
}

// Config holds the service-level feed settings.
type Config struct {
	// Authors is the configured allow-list; empty means no restriction.
	Authors []string
	// PageSize is the default relay page size.
	PageSize int
	// CacheTTL bounds how long assembled results are served from cache.
	CacheTTL time.Duration
}

// Service runs query pipelines against the relay pool and combines the
// classified results into the collections the site renders. Results are
// immutable once returned; concurrent requests share nothing but the cache.
type Service struct {
	querier relay.Querier
	regions *region.Set
	store   cache.Store
	metrics *metrics.Metrics
	log     *logrus.Logger
	cfg     Config
	sf      singleflight.Group
}

// NewService wires the feed service. regions, store and metrics may be nil;
// the matching, caching and instrumentation they provide degrade to no-ops.
func NewService(querier relay.Querier, regions *region.Set, store cache.Store, m *metrics.Metrics, log *logrus.Logger, cfg Config) *Service {
	if cfg.PageSize <= 0 {
		cfg.PageSize = relay.DefaultPageSize
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Minute
	}
	if log == nil {
		log = logrus.New()
	}
	return &Service{
		querier: querier,
		regions: regions,
		store:   store,
		metrics: m,
		log:     log,
		cfg:     cfg,
	}
}

// Combined returns the notes+articles feed: a single query spanning both
// kinds, merged and sorted by creation time descending.
func (s *Service) Combined(ctx context.Context, opts Options) (*Result, error) {
	keep := keepClasses(content.ClassNote, content.ClassArticle)
	return s.collect(ctx, "combined", []int{model.KindNote, model.KindLongForm}, keep, opts)
}

// Articles returns the long-form article feed.
func (s *Service) Articles(ctx context.Context, opts Options) (*Result, error) {
	return s.collect(ctx, "articles", []int{model.KindLongForm}, keepClasses(content.ClassArticle), opts)
}

// Places returns the points-of-interest feed.
func (s *Service) Places(ctx context.Context, opts Options) (*Result, error) {
	return s.collect(ctx, "places", []int{model.KindLongForm}, keepClasses(content.ClassPlace), opts)
}

// Notes returns the short-note feed.
func (s *Service) Notes(ctx context.Context, opts Options) (*Result, error) {
	return s.collect(ctx, "notes", []int{model.KindNote}, keepClasses(content.ClassNote), opts)
}

// ArticleByIdentifier looks up a single article or place by its stable "d"
// slug. Replaceable events may exist in several versions across relays; the
// newest one wins. Returns (nil, nil) when nothing matches.
func (s *Service) ArticleByIdentifier(ctx context.Context, identifier string) (*Item, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, nil
	}
	key := "article:" + identifier

	if item, ok := s.cachedItem(key); ok {
		return item, nil
	}

	v, err, _ := s.sf.Do(key, func() (interface{}, error) {
		filter := relay.Filter{
			Kinds:       []int{model.KindLongForm},
			Identifiers: []string{identifier},
			Limit:       relay.DefaultPageSize,
		}
		if len(s.cfg.Authors) > 0 {
			filter.Authors = s.cfg.Authors
		}
		events, err := s.query(ctx, filter)
		if err != nil {
			return nil, err
		}

		var best *Item
		for _, ev := range events {
			c := content.Classify(ev)
			s.metrics.IncClass(c.Class.String())
			if c.Class != content.ClassArticle && c.Class != content.ClassPlace {
				continue
			}
			if best == nil || ev.CreatedAt > best.Event.CreatedAt {
				best = s.newItem(c)
			}
		}
		if best != nil {
			s.cacheItem(key, best)
		}
		return best, nil
	})
	if err != nil {
		return nil, err
	}
	item, _ := v.(*Item)
	return item, nil
}

// EventsByID fetches specific events by id and classifies them. Unknown and
// rejected ids are simply absent from the result.
func (s *Service) EventsByID(ctx context.Context, ids ...string) ([]Item, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	events, err := s.query(ctx, relay.Filter{IDs: ids, Limit: len(ids)})
	if err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(events))
	seen := make(map[string]bool, len(events))
	for _, ev := range events {
		c := content.Classify(ev)
		s.metrics.IncClass(c.Class.String())
		if c.Class == content.ClassRejected || seen[ev.ID] {
			continue
		}
		seen[ev.ID] = true
		items = append(items, *s.newItem(c))
	}
	return items, nil
}

// collect runs the builder → transport → classifier pipeline for one page,
// pulling additional pages through a pagination session when filtering
// leaves the first one sparse.
func (s *Service) collect(ctx context.Context, name string, kinds []int, keep KeepFunc, opts Options) (*Result, error) {
	limit := relay.ClampLimit(opts.Limit)
	key := fmt.Sprintf("feed:%s:t=%s:r=%s:l=%d:u=%d",
		name, strings.Join(opts.Topics, ","), strings.ToUpper(opts.Region), limit, opts.Until)

	if res, ok := s.cachedResult(key); ok {
		return res, nil
	}

	v, err, _ := s.sf.Do(key, func() (interface{}, error) {
		res, err := s.assemble(ctx, kinds, keep, opts, limit)
		if err != nil {
			return nil, err
		}
		s.cacheResult(key, res)
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Result), nil
}

func (s *Service) assemble(ctx context.Context, kinds []int, keep KeepFunc, opts Options, limit int) (*Result, error) {
	query := relay.FeedQuery{
		Kinds:   kinds,
		Topics:  opts.Topics,
		Authors: s.cfg.Authors,
		Limit:   limit,
		Until:   opts.Until,
	}
	pag := NewPaginator(s.timedQuerier(), query, keep)
	pag.metrics = s.metrics

	var kept []content.Classified
	for fetch := 0; fetch < maxFillFetches && len(kept) < limit && pag.HasMore(); fetch++ {
		page, err := pag.FetchNext(ctx)
		if err != nil {
			if fetch == 0 {
				return nil, err
			}
			// Later fill fetches degrade to a shorter page.
			s.log.WithError(err).Debug("Fill fetch failed, returning partial feed")
			break
		}
		kept = append(kept, s.filterRegion(page, opts.Region)...)
	}

	items, truncated := s.merge(kept, limit)
	res := &Result{Items: items}
	switch {
	case truncated:
		// Items beyond the page limit were withheld; the cursor must point
		// just past the last delivered item, or the withheld ones would fall
		// outside every later page and be lost.
		if c := items[len(items)-1].Event.CreatedAt - 1; c > 0 {
			res.HasMore = true
			res.NextCursor = EncodeCursor(c)
		}
	case pag.State() == StateHasMore || pag.State() == StateFailed:
		// A failed fill fetch still delivered a partial page; the untouched
		// cursor lets the client resume where it broke off.
		res.HasMore = true
		res.NextCursor = EncodeCursor(pag.Until())
	}
	return res, nil
}

// merge sorts by creation time descending and deduplicates by event id.
// Identity is the event id, never object identity: an event delivered by two
// relays or two overlapping pages appears once. The second return reports
// whether distinct items beyond the limit were withheld.
func (s *Service) merge(kept []content.Classified, limit int) ([]Item, bool) {
	sort.SliceStable(kept, func(i, j int) bool {
		a, b := kept[i].Event, kept[j].Event
		if a.CreatedAt != b.CreatedAt {
			return a.CreatedAt > b.CreatedAt
		}
		return a.ID < b.ID
	})

	items := make([]Item, 0, len(kept))
	seen := make(map[string]bool, len(kept))
	truncated := false
	for _, c := range kept {
		if seen[c.Event.ID] {
			continue
		}
		if len(items) == limit {
			truncated = true
			break
		}
		seen[c.Event.ID] = true
		items = append(items, *s.newItem(c))
	}
	return items, truncated
}

func (s *Service) filterRegion(page []content.Classified, code string) []content.Classified {
	if code == "" || s.regions == nil {
		return page
	}
	matched := make([]content.Classified, 0, len(page))
	for _, c := range page {
		if s.regions.Matches(c.Event, code) {
			s.metrics.IncRegionMatch()
			matched = append(matched, c)
		}
	}
	return matched
}

// newItem attaches display metadata to articles and places; notes render
// their content directly.
func (s *Service) newItem(c content.Classified) *Item {
	item := &Item{Type: c.Class.String(), Event: c.Event}
	if c.Class == content.ClassArticle || c.Class == content.ClassPlace {
		m := content.ExtractMetadata(c.Event)
		item.Metadata = &m
	}
	return item
}

// query wraps the relay pool with duration metrics.
func (s *Service) query(ctx context.Context, filters ...relay.Filter) ([]model.Event, error) {
	start := time.Now()
	events, err := s.querier.Query(ctx, filters...)
	s.metrics.ObserveQuery(time.Since(start), len(events), err)
	return events, err
}

// timedQuerier exposes the instrumented query path as a relay.Querier.
func (s *Service) timedQuerier() relay.Querier {
	return querierFunc(s.query)
}

type querierFunc func(ctx context.Context, filters ...relay.Filter) ([]model.Event, error)

func (f querierFunc) Query(ctx context.Context, filters ...relay.Filter) ([]model.Event, error) {
	return f(ctx, filters...)
}

func keepClasses(classes ...content.Class) KeepFunc {
	return func(c content.Classified) bool {
		for _, class := range classes {
			if c.Class == class {
				return true
			}
		}
		return false
	}
}

// --- cache helpers ---

func (s *Service) cachedResult(key string) (*Result, bool) {
	if s.store == nil {
		return nil, false
	}
	raw, ok := s.store.Get(key)
	s.metrics.IncCache(ok)
	if !ok {
		return nil, false
	}
	var res Result
	if err := json.Unmarshal(raw, &res); err != nil {
		s.store.Delete(key)
		return nil, false
	}
	return &res, true
}

func (s *Service) cacheResult(key string, res *Result) {
	if s.store == nil {
		return
	}
	raw, err := json.Marshal(res)
	if err != nil {
		return
	}
	s.store.Set(key, raw, s.cfg.CacheTTL)
}

func (s *Service) cachedItem(key string) (*Item, bool) {
	if s.store == nil {
		return nil, false
	}
	raw, ok := s.store.Get(key)
	s.metrics.IncCache(ok)
	if !ok {
		return nil, false
	}
	var item Item
	if err := json.Unmarshal(raw, &item); err != nil {
		s.store.Delete(key)
		return nil, false
	}
	return &item, true
}

func (s *Service) cacheItem(key string, item *Item) {
	if s.store == nil {
		return
	}
	raw, err := json.Marshal(item)
	if err != nil {
		return
	}
	s.store.Set(key, raw, s.cfg.CacheTTL)
}
