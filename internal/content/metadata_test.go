package content

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fernweh-site/fernweh/internal/model"
)

func TestExtractMetadataTitleFallbacks(t *testing.T) {
	tests := []struct {
		name  string
		tags  model.Tags
		body  string
		title string
	}{
		{"title tag", model.Tags{{"d", "a"}, {"title", "From Tag"}}, "body", "From Tag"},
		{"name tag", model.Tags{{"d", "a"}, {"name", "From Name"}}, "body", "From Name"},
		{"leading heading", model.Tags{{"d", "a"}}, "# From Heading\n\nbody", "From Heading"},
		{"placeholder", model.Tags{{"d", "a"}}, "body", PlaceholderTitle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := longForm(tt.tags, tt.body)
			assert.Equal(t, tt.title, ExtractMetadata(ev).Title)
		})
	}
}

func TestExtractMetadataFields(t *testing.T) {
	ev := longForm(model.Tags{
		{"d", "alpsee-hike"},
		{"title", "Alpsee Hike"},
		{"summary", "An explicit summary."},
		{"image", "https://img.example/alpsee.jpg"},
		{"published_at", "1690000000"},
		{"t", "travel"},
		{"t", "alps"},
	}, "body")

	m := ExtractMetadata(ev)
	assert.Equal(t, "alpsee-hike", m.Identifier)
	assert.Equal(t, "Alpsee Hike", m.Title)
	assert.Equal(t, "An explicit summary.", m.Summary)
	assert.Equal(t, "https://img.example/alpsee.jpg", m.ImageURL)
	assert.Equal(t, int64(1690000000), m.PublishedAt)
	assert.Equal(t, []string{"travel", "alps"}, m.TopicTags)
}

func TestExtractMetadataDeduplicatesTopicTags(t *testing.T) {
	ev := longForm(model.Tags{
		{"d", "a"},
		{"title", "T"},
		{"t", "travel"},
		{"t", "alps"},
		{"t", "travel"},
	}, "body")
	assert.Equal(t, []string{"travel", "alps"}, ExtractMetadata(ev).TopicTags)
}

func TestPublishedAtFallsBackToCreatedAt(t *testing.T) {
	ev := longForm(model.Tags{{"d", "a"}, {"title", "T"}}, "body")
	assert.Equal(t, ev.CreatedAt, ExtractMetadata(ev).PublishedAt)

	// Non-numeric published_at is not an error; it falls back too.
	ev.Tags = append(ev.Tags, model.Tag{"published_at", "next tuesday"})
	assert.Equal(t, ev.CreatedAt, ExtractMetadata(ev).PublishedAt)
}

func TestExtractMetadataIsIdempotent(t *testing.T) {
	ev := longForm(model.Tags{
		{"d", "a"},
		{"title", "T"},
		{"t", "artikel"},
	}, "<h1>T</h1><p>Some real prose that survives the summary pipeline.</p>")

	first := ExtractMetadata(ev)
	second := ExtractMetadata(ev)
	assert.Equal(t, first, second)
}

func TestDeriveSummaryStripsStructuralBlocks(t *testing.T) {
	ev := longForm(model.Tags{{"d", "a"}, {"title", "T"}},
		"<h1>T</h1><p><strong>Kategorie:</strong> x</p><p>Real text.</p>")
	assert.Equal(t, "Real text.", ExtractMetadata(ev).Summary)
}

func TestDeriveSummaryStructuralLabels(t *testing.T) {
	body := "<h2>Alpsee</h2>" +
		"<p><strong>Bewertung:</strong> 4/5</p>" +
		"<p><strong>Koordinaten:</strong> 47.5, 10.2</p>" +
		"<p>Ein stiller See unterhalb der Burg.</p>" +
		"<p><strong>Preis:</strong> frei</p>"
	ev := longForm(model.Tags{{"d", "place-alpsee"}, {"name", "Alpsee"}}, body)
	assert.Equal(t, "Ein stiller See unterhalb der Burg.", ExtractMetadata(ev).Summary)
}

func TestDeriveSummaryLegacyMarkdown(t *testing.T) {
	body := "## Alpsee\n" +
		"**Lage:** Allgäu\n" +
		"![photo](https://img.example/a.jpg)\n" +
		"\n" +
		"Ein stiller See.\n"
	assert.Equal(t, "Ein stiller See.", deriveSummary(body))
}

func TestDeriveSummaryDecodesEntities(t *testing.T) {
	assert.Equal(t, `Fish & chips "to go"`, deriveSummary(`<p>Fish &amp; chips &quot;to go&quot;</p>`))
}

func TestDeriveSummaryTruncates(t *testing.T) {
	long := strings.Repeat("a", 300)
	got := deriveSummary(long)
	assert.Len(t, got, 200)
	assert.Equal(t, strings.Repeat("a", 197)+"...", got)

	// Exactly at the limit nothing is cut.
	exact := strings.Repeat("b", 200)
	assert.Equal(t, exact, deriveSummary(exact))
}

func TestDeriveSummaryCollapsesBlankLines(t *testing.T) {
	got := deriveSummary("First.\n\n\n\nSecond.")
	assert.Equal(t, "First.\nSecond.", got)
}

func TestDeriveSummarySafetyNet(t *testing.T) {
	// Entity decoding can reintroduce markup; the final pass removes it.
	got := deriveSummary("&lt;script&gt;alert(1)&lt;/script&gt;ok")
	assert.NotContains(t, got, "<script>")
	assert.Contains(t, got, "ok")
}
