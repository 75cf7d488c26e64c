// Package relay implements the websocket transport used to query the
// replicated event logs this site reads from.
package relay

// Page size bounds for relay queries.
const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// Filter is the criteria object a relay understands. Tag filters use the
// protocol's "#<key>" field names on the wire.
type Filter struct {
	IDs         []string `json:"ids,omitempty"`
	Kinds       []int    `json:"kinds,omitempty"`
	Authors     []string `json:"authors,omitempty"`
	Topics      []string `json:"#t,omitempty"`
	Identifiers []string `json:"#d,omitempty"`
	Until       int64    `json:"until,omitempty"`
	Limit       int      `json:"limit,omitempty"`
}

// FeedQuery describes one feed request before translation into a wire filter.
type FeedQuery struct {
	Kinds   []int
	Topics  []string
	Authors []string // configured allow-list; empty means no restriction
	Limit   int
	Until   int64 // exclusive upper bound; zero means first page
}

// BuildFilter translates a feed request into the wire filter. The author
// filter is omitted entirely when the allow-list is empty, the topic filter
// only appears when at least one topic was requested, and until is attached
// only for non-first pages. A page-size limit is always set.
func BuildFilter(q FeedQuery) Filter {
	f := Filter{
		Kinds: q.Kinds,
		Limit: ClampLimit(q.Limit),
	}
	if len(q.Authors) > 0 {
		f.Authors = q.Authors
	}
	if len(q.Topics) > 0 {
		f.Topics = q.Topics
	}
	if q.Until > 0 {
		f.Until = q.Until
	}
	return f
}

// ClampLimit keeps a requested page size within valid bounds.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultPageSize
	}
	if limit > MaxPageSize {
		return MaxPageSize
	}
	return limit
}
