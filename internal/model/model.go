// Package model defines the shared data structures for relay events.
package model

// Event kinds understood by this application.
const (
	// KindNote is a short plain-text note.
	KindNote = 1
	// KindLongForm is long-form, addressable content (articles and places).
	KindLongForm = 30023
)

// Tag is an ordered key-value(-extra) tuple attached to an event.
// Keys are not unique; for example, multiple "t" tags carry topic labels.
type Tag []string

// Key returns the tag key, or "" for a malformed (empty) tuple.
func (t Tag) Key() string {
	if len(t) > 0 {
		return t[0]
	}
	return ""
}

// Value returns the tag value, or "" if the tuple has no value element.
func (t Tag) Value() string {
	if len(t) > 1 {
		return t[1]
	}
	return ""
}

// Tags is the ordered tag list of an event. Lookups never fail on malformed
// tuples; a tag without a key or value is simply not found.
type Tags []Tag

// First returns the value of the first tag with the given key.
func (ts Tags) First(key string) (string, bool) {
	for _, t := range ts {
		if t.Key() == key && len(t) > 1 {
			return t[1], true
		}
	}
	return "", false
}

// All returns the values of every tag with the given key, in insertion order.
func (ts Tags) All(key string) []string {
	var values []string
	for _, t := range ts {
		if t.Key() == key && len(t) > 1 {
			values = append(values, t[1])
		}
	}
	return values
}

// Has reports whether a tag with the given key and value exists.
func (ts Tags) Has(key, value string) bool {
	for _, t := range ts {
		if t.Key() == key && t.Value() == value {
			return true
		}
	}
	return false
}

// Event is an immutable, author-signed record received from a relay.
// The signature is carried through unverified; signing and verification
// happen outside this service.
type Event struct {
	ID        string `json:"id"`
	PubKey    string `json:"pubkey"`
	CreatedAt int64  `json:"created_at"`
	Kind      int    `json:"kind"`
	Tags      Tags   `json:"tags"`
	Content   string `json:"content"`
	Sig       string `json:"sig,omitempty"`
}

// Identifier returns the value of the "d" tag, the stable slug that makes a
// long-form event addressable.
func (e Event) Identifier() (string, bool) {
	return e.Tags.First("d")
}
