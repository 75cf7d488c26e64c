package content

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fernweh-site/fernweh/internal/model"
)

func longForm(tags model.Tags, content string) model.Event {
	return model.Event{
		ID:        "ev1",
		PubKey:    "author1",
		CreatedAt: 1700000000,
		Kind:      model.KindLongForm,
		Tags:      tags,
		Content:   content,
	}
}

func note(tags model.Tags, content string) model.Event {
	ev := longForm(tags, content)
	ev.Kind = model.KindNote
	return ev
}

func TestClassifyRejectsUnsupportedKinds(t *testing.T) {
	for _, kind := range []int{0, 2, 3, 7, 1984, 30024} {
		ev := model.Event{ID: "x", Kind: kind, Content: "whatever"}
		got := Classify(ev)
		assert.Equal(t, ClassRejected, got.Class, "kind %d", kind)
		assert.NotEmpty(t, got.Reason)
	}
}

func TestClassifyLongFormRejections(t *testing.T) {
	tests := []struct {
		name  string
		event model.Event
	}{
		{
			name:  "missing d identifier",
			event: longForm(model.Tags{{"title", "T"}, {"type", "article"}}, "body"),
		},
		{
			name:  "empty content",
			event: longForm(model.Tags{{"d", "a"}, {"title", "T"}, {"type", "article"}}, "   \n\t "),
		},
		{
			name:  "no title name or heading",
			event: longForm(model.Tags{{"d", "a"}, {"type", "article"}}, "plain body"),
		},
		{
			name:  "no place or article evidence",
			event: longForm(model.Tags{{"d", "a"}, {"title", "T"}}, "plain body"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.event)
			assert.Equal(t, ClassRejected, got.Class)
			assert.NotEmpty(t, got.Reason)
		})
	}
}

func TestClassifyArticle(t *testing.T) {
	byType := longForm(model.Tags{{"d", "a"}, {"title", "T"}, {"type", "article"}}, "body")
	assert.Equal(t, ClassArticle, Classify(byType).Class)

	byTopic := longForm(model.Tags{{"d", "a"}, {"title", "T"}, {"t", "artikel"}}, "body")
	assert.Equal(t, ClassArticle, Classify(byTopic).Class)

	// A markdown H1 on the first line satisfies the title requirement.
	byHeading := longForm(model.Tags{{"d", "a"}, {"type", "article"}}, "# Heading\n\nbody")
	assert.Equal(t, ClassArticle, Classify(byHeading).Class)
}

func TestClassifyPlace(t *testing.T) {
	tests := []struct {
		name  string
		event model.Event
	}{
		{
			name:  "type tag",
			event: longForm(model.Tags{{"d", "a"}, {"name", "Alpsee"}, {"type", "place"}}, "body"),
		},
		{
			name:  "topic tag place",
			event: longForm(model.Tags{{"d", "a"}, {"name", "Alpsee"}, {"t", "place"}}, "body"),
		},
		{
			name:  "topic tag places",
			event: longForm(model.Tags{{"d", "a"}, {"name", "Alpsee"}, {"t", "places"}}, "body"),
		},
		{
			name:  "identifier prefix",
			event: longForm(model.Tags{{"d", "place-alpsee"}, {"name", "Alpsee"}}, "body"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, ClassPlace, Classify(tt.event).Class)
		})
	}
}

func TestPlaceEvidenceWinsOverArticleEvidence(t *testing.T) {
	// Identifier prefix place- wins even with an explicit type=article tag.
	ev := longForm(model.Tags{
		{"d", "place-alpsee"},
		{"title", "Alpsee"},
		{"type", "article"},
		{"t", "artikel"},
	}, "body")
	got := Classify(ev)
	assert.Equal(t, ClassPlace, got.Class)
}

func TestClassifyNote(t *testing.T) {
	assert.Equal(t, ClassNote, Classify(note(model.Tags{{"t", "note"}}, "hi")).Class)
	assert.Equal(t, ClassNote, Classify(note(model.Tags{{"t", "notiz"}}, "hi")).Class)

	// A bare kind-1 event with no matching topic belongs to no typed feed.
	got := Classify(note(model.Tags{{"t", "random"}}, "hi"))
	assert.Equal(t, ClassRejected, got.Class)
	got = Classify(note(nil, "hi"))
	assert.Equal(t, ClassRejected, got.Class)
}

func TestClassifyIsDeterministic(t *testing.T) {
	ev := longForm(model.Tags{{"d", "a"}, {"title", "T"}, {"type", "article"}, {"t", "artikel"}}, "body")
	first := Classify(ev)
	second := Classify(ev)
	assert.Equal(t, first, second)
}
