// Package content turns raw relay events into the typed items the site
// renders: articles, places and short notes.
package content

import (
	"fmt"
	"strings"

	"github.com/fernweh-site/fernweh/internal/model"
)

// Class identifies which typed collection an event belongs to.
type Class int

const (
	ClassRejected Class = iota
	ClassArticle
	ClassPlace
	ClassNote
)

// String returns the lowercase name used in API responses and logs.
func (c Class) String() string {
	switch c {
	case ClassArticle:
		return "article"
	case ClassPlace:
		return "place"
	case ClassNote:
		return "note"
	default:
		return "rejected"
	}
}

// Classified wraps an event with its classification outcome. Reason records
// the rule that matched, or why the event was rejected; it is diagnostic
// only and never drives control flow.
type Classified struct {
	Event  model.Event `json:"event"`
	Class  Class       `json:"-"`
	Reason string      `json:"-"`
}

// placeIdentifierPrefix marks place records by their "d" slug.
const placeIdentifierPrefix = "place-"

// Topic tag aliases. "artikel" and "notiz" are legacy German labels that
// older events still carry.
var (
	placeTopics = []string{"place", "places"}
	noteTopics  = []string{"note", "notiz"}
)

const articleTopic = "artikel"

// Classify maps one raw event to exactly one Class. It is a pure function of
// the event's kind, tags and content: the same input always yields the same
// outcome. Unsupported or malformed events become ClassRejected, never errors.
func Classify(ev model.Event) Classified {
	switch ev.Kind {
	case model.KindLongForm:
		return classifyLongForm(ev)
	case model.KindNote:
		return classifyNote(ev)
	default:
		return reject(ev, fmt.Sprintf("unsupported kind %d", ev.Kind))
	}
}

func classifyLongForm(ev model.Event) Classified {
	identifier, ok := ev.Identifier()
	if !ok {
		return reject(ev, "long-form event without d identifier")
	}
	if strings.TrimSpace(ev.Content) == "" {
		return reject(ev, "empty content")
	}
	if !hasAnyTitle(ev) {
		return reject(ev, "no title, name or leading heading")
	}

	// Place evidence wins over article evidence: the place check runs first
	// even when a type=article tag is also present.
	if ev.Tags.Has("type", "place") {
		return Classified{Event: ev, Class: ClassPlace, Reason: "type tag place"}
	}
	for _, topic := range placeTopics {
		if hasTopic(ev, topic) {
			return Classified{Event: ev, Class: ClassPlace, Reason: "topic tag " + topic}
		}
	}
	if strings.HasPrefix(identifier, placeIdentifierPrefix) {
		return Classified{Event: ev, Class: ClassPlace, Reason: "identifier prefix " + placeIdentifierPrefix}
	}

	if ev.Tags.Has("type", "article") {
		return Classified{Event: ev, Class: ClassArticle, Reason: "type tag article"}
	}
	if hasTopic(ev, articleTopic) {
		return Classified{Event: ev, Class: ClassArticle, Reason: "topic tag " + articleTopic}
	}

	return reject(ev, "long-form event without place or article evidence")
}

func classifyNote(ev model.Event) Classified {
	for _, topic := range noteTopics {
		if hasTopic(ev, topic) {
			return Classified{Event: ev, Class: ClassNote, Reason: "topic tag " + topic}
		}
	}
	// A bare kind-1 event is valid at the protocol level but belongs to no
	// typed feed.
	return reject(ev, "note without matching topic tag")
}

func reject(ev model.Event, reason string) Classified {
	return Classified{Event: ev, Class: ClassRejected, Reason: reason}
}

func hasTopic(ev model.Event, topic string) bool {
	return ev.Tags.Has("t", topic)
}

// hasAnyTitle reports whether a display title is derivable at all: a title
// tag, a name tag (alias used by place records), or a markdown H1 on the
// content's first line.
func hasAnyTitle(ev model.Event) bool {
	if _, ok := ev.Tags.First("title"); ok {
		return true
	}
	if _, ok := ev.Tags.First("name"); ok {
		return true
	}
	return headingTitle(ev.Content) != ""
}

// headingTitle extracts a markdown H1 from the first line of content,
// or "" if the first line is not a heading.
func headingTitle(content string) string {
	line := content
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSpace(line)
	if rest, ok := strings.CutPrefix(line, "# "); ok {
		return strings.TrimSpace(rest)
	}
	return ""
}
