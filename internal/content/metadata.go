package content

import (
	"strconv"
	"strings"

	"github.com/fernweh-site/fernweh/internal/model"
)

// PlaceholderTitle is used when no title is derivable from tags or content.
const PlaceholderTitle = "untitled"

// Metadata holds the display fields derived from an article or place event.
// It is computed on demand and never mutated; callers that want memoization
// cache it themselves.
type Metadata struct {
	Identifier  string   `json:"identifier"`
	Title       string   `json:"title"`
	Summary     string   `json:"summary"`
	ImageURL    string   `json:"image_url,omitempty"`
	PublishedAt int64    `json:"published_at"`
	TopicTags   []string `json:"topic_tags,omitempty"`
}

// ExtractMetadata derives display metadata from an article or place event.
// The pipeline is deterministic and idempotent: re-running it on the same
// event yields identical results.
func ExtractMetadata(ev model.Event) Metadata {
	identifier, _ := ev.Identifier()
	return Metadata{
		Identifier:  identifier,
		Title:       extractTitle(ev),
		Summary:     extractSummary(ev),
		ImageURL:    firstOr(ev.Tags, "image", ""),
		PublishedAt: publishedAt(ev),
		TopicTags:   topicTags(ev.Tags),
	}
}

// topicTags returns the event's topic tags with duplicates removed, first
// occurrence order preserved.
func topicTags(tags model.Tags) []string {
	all := tags.All("t")
	if len(all) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(all))
	out := make([]string, 0, len(all))
	for _, t := range all {
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func extractTitle(ev model.Event) string {
	if v, ok := ev.Tags.First("title"); ok && strings.TrimSpace(v) != "" {
		return v
	}
	if v, ok := ev.Tags.First("name"); ok && strings.TrimSpace(v) != "" {
		return v
	}
	if h := headingTitle(ev.Content); h != "" {
		return h
	}
	return PlaceholderTitle
}

func extractSummary(ev model.Event) string {
	if v, ok := ev.Tags.First("summary"); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return deriveSummary(ev.Content)
}

// publishedAt prefers the explicit published_at tag; an unparseable or
// missing value falls back to the protocol-level creation time.
func publishedAt(ev model.Event) int64 {
	if v, ok := ev.Tags.First("published_at"); ok {
		if ts, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return ts
		}
	}
	return ev.CreatedAt
}

func firstOr(tags model.Tags, key, fallback string) string {
	if v, ok := tags.First(key); ok {
		return v
	}
	return fallback
}
