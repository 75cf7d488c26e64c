package feed

import (
	"context"
	"errors"
	"sync"

	"github.com/fernweh-site/fernweh/internal/content"
	"github.com/fernweh-site/fernweh/internal/metrics"
	"github.com/fernweh-site/fernweh/internal/relay"
)

// State of a pagination session.
type State int

const (
	StateIdle State = iota
	StateFetching
	StateHasMore
	StateExhausted
	StateFailed
)

// String returns the state name for diagnostics.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateHasMore:
		return "has_more"
	case StateExhausted:
		return "exhausted"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ErrFetchInFlight is returned when FetchNext is called while a previous
// fetch for the same session is still outstanding.
var ErrFetchInFlight = errors.New("feed: page fetch already in flight")

// KeepFunc decides which classified events belong to the session's feed.
type KeepFunc func(content.Classified) bool

// KeepTyped keeps everything except rejected events.
func KeepTyped(c content.Classified) bool {
	return c.Class != content.ClassRejected
}

// Paginator drives one infinite-scroll session over a feed query. Pages are
// requested explicitly by the caller, one at a time, each strictly older
// than the last. Pages accumulate in request order; the final merge and sort
// across pages is the combiner's job, not the paginator's.
//
// A page smaller than half the requested size is a possible but not certain
// end-of-stream signal, since relays return partial pages for reasons other
// than exhaustion. Only an empty page (after classification and filtering)
// marks the session exhausted, so a short page still gets one more fetch.
type Paginator struct {
	mu      sync.Mutex
	querier relay.Querier
	query   relay.FeedQuery
	keep    KeepFunc
	metrics *metrics.Metrics

	state   State
	until   int64
	pages   [][]content.Classified
	lastErr error
}

// NewPaginator creates a session for the given base query. A nil keep keeps
// every typed (non-rejected) event. query.Until seeds the first page's
// cursor; zero starts from the newest events.
func NewPaginator(querier relay.Querier, query relay.FeedQuery, keep KeepFunc) *Paginator {
	if keep == nil {
		keep = KeepTyped
	}
	query.Limit = relay.ClampLimit(query.Limit)
	return &Paginator{
		querier: querier,
		query:   query,
		keep:    keep,
		state:   StateIdle,
		until:   query.Until,
	}
}

// FetchNext fetches the next older page and returns the typed events it
// contributed. It returns (nil, nil) once the session is exhausted. On a
// transport error the session stays retryable: the cursor is untouched and
// the next FetchNext repeats the same page.
func (p *Paginator) FetchNext(ctx context.Context) ([]content.Classified, error) {
	p.mu.Lock()
	switch p.state {
	case StateFetching:
		p.mu.Unlock()
		return nil, ErrFetchInFlight
	case StateExhausted:
		p.mu.Unlock()
		return nil, nil
	}
	p.state = StateFetching
	q := p.query
	q.Until = p.until
	p.mu.Unlock()

	events, err := p.querier.Query(ctx, relay.BuildFilter(q))

	p.mu.Lock()
	defer p.mu.Unlock()

	if err != nil {
		p.state = StateFailed
		p.lastErr = err
		return nil, err
	}
	p.lastErr = nil
	p.metrics.IncPage()

	kept := make([]content.Classified, 0, len(events))
	minCreated := int64(0)
	for _, ev := range events {
		c := content.Classify(ev)
		p.metrics.IncClass(c.Class.String())
		if p.keep(c) {
			kept = append(kept, c)
		}
		if minCreated == 0 || ev.CreatedAt < minCreated {
			minCreated = ev.CreatedAt
		}
	}

	if len(kept) == 0 {
		p.state = StateExhausted
		return nil, nil
	}

	// A page whose oldest event carries no usable timestamp cannot yield a
	// strictly older cursor; deliver it and end the session rather than
	// re-requesting the newest page forever.
	if minCreated <= 1 {
		p.pages = append(p.pages, kept)
		p.state = StateExhausted
		return kept, nil
	}

	// The page minimum becomes the next exclusive upper bound; minus one so
	// the boundary event is not fetched again. Cursors strictly decrease
	// across the session.
	p.until = minCreated - 1
	p.pages = append(p.pages, kept)
	p.state = StateHasMore
	return kept, nil
}

// HasMore reports whether another fetch could produce items. It stays true
// after a failure so callers can retry.
func (p *Paginator) HasMore() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state != StateExhausted
}

// IsFetching reports whether a fetch is currently outstanding.
func (p *Paginator) IsFetching() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state == StateFetching
}

// State returns the session state.
func (p *Paginator) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Until returns the cursor the next fetch will use (exclusive upper bound);
// zero until the first page arrived, unless the session was seeded.
func (p *Paginator) Until() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.until
}

// Pages returns the accumulated pages in request order.
func (p *Paginator) Pages() [][]content.Classified {
	p.mu.Lock()
	defer p.mu.Unlock()
	pages := make([][]content.Classified, len(p.pages))
	copy(pages, p.pages)
	return pages
}

// LastErr returns the error of the most recent failed fetch, if any.
func (p *Paginator) LastErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}
