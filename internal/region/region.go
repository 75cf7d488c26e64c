// Package region matches events to geographic regions by keyword. The
// descriptors are read-only matching input maintained outside this service;
// matching is a black-box predicate over event tags and content.
package region

import (
	"strings"
	"sync"

	"github.com/fernweh-site/fernweh/internal/model"
)

// Descriptor holds the matching data for one region.
type Descriptor struct {
	Code     string   `yaml:"code"`
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
	Cities   []string `yaml:"cities"`
	Regions  []string `yaml:"regions"`
	Routes   []string `yaml:"routes"`
}

// terms returns every matchable term, lowercased. A descriptor with no
// lists yields no terms and therefore never matches.
func (d Descriptor) terms() []string {
	var out []string
	for _, list := range [][]string{d.Keywords, d.Cities, d.Regions, d.Routes} {
		for _, t := range list {
			t = strings.ToLower(strings.TrimSpace(t))
			if t != "" {
				out = append(out, t)
			}
		}
	}
	return out
}

// Set is the collection of known regions. It is safe for concurrent use;
// Replace swaps the whole mapping atomically on reload.
type Set struct {
	mu     sync.RWMutex
	byCode map[string]Descriptor
}

// NewSet builds a set from descriptors. Descriptors without a code are
// ignored.
func NewSet(descriptors []Descriptor) *Set {
	s := &Set{}
	s.Replace(descriptors)
	return s
}

// Replace swaps in a new set of descriptors.
func (s *Set) Replace(descriptors []Descriptor) {
	byCode := make(map[string]Descriptor, len(descriptors))
	for _, d := range descriptors {
		code := strings.ToUpper(strings.TrimSpace(d.Code))
		if code == "" {
			continue
		}
		byCode[code] = d
	}
	s.mu.Lock()
	s.byCode = byCode
	s.mu.Unlock()
}

// Codes returns the known region codes.
func (s *Set) Codes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	codes := make([]string, 0, len(s.byCode))
	for code := range s.byCode {
		codes = append(codes, code)
	}
	return codes
}

// Matches reports whether the event belongs to the region. Topic tags are
// compared term-for-term; free text is matched by substring. An unknown code
// or a descriptor with missing keyword lists never matches and never errors.
func (s *Set) Matches(ev model.Event, code string) bool {
	s.mu.RLock()
	d, ok := s.byCode[strings.ToUpper(strings.TrimSpace(code))]
	s.mu.RUnlock()
	if !ok {
		return false
	}

	terms := d.terms()
	if len(terms) == 0 {
		return false
	}

	topics := make([]string, 0, 4)
	for _, t := range ev.Tags.All("t") {
		topics = append(topics, strings.ToLower(t))
	}
	content := strings.ToLower(ev.Content)

	for _, term := range terms {
		for _, topic := range topics {
			if topic == term {
				return true
			}
		}
		if content != "" && strings.Contains(content, term) {
			return true
		}
	}
	return false
}
