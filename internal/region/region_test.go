package region

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fernweh-site/fernweh/internal/model"
)

func testSet() *Set {
	return NewSet([]Descriptor{
		{
			Code:     "DE",
			Name:     "Deutschland",
			Keywords: []string{"Allgäu", "Schwarzwald"},
			Cities:   []string{"München", "Berlin"},
		},
		{
			Code: "AT",
			Name: "Österreich",
			// no keyword lists: must never match, must never panic
		},
	})
}

func event(topics []string, content string) model.Event {
	var tags model.Tags
	for _, t := range topics {
		tags = append(tags, model.Tag{"t", t})
	}
	return model.Event{ID: "e", Kind: model.KindLongForm, Tags: tags, Content: content}
}

func TestMatchesByTopicTag(t *testing.T) {
	s := testSet()
	assert.True(t, s.Matches(event([]string{"allgäu"}, ""), "DE"))
	assert.True(t, s.Matches(event([]string{"münchen"}, ""), "de"), "code lookup is case-insensitive")
	assert.False(t, s.Matches(event([]string{"tirol"}, ""), "DE"))
}

func TestMatchesByContentSubstring(t *testing.T) {
	s := testSet()
	assert.True(t, s.Matches(event(nil, "Ein Wochenende im Schwarzwald."), "DE"))
	assert.False(t, s.Matches(event(nil, "Somewhere else entirely."), "DE"))
}

func TestMatchesMissingData(t *testing.T) {
	s := testSet()
	// Unknown region code.
	assert.False(t, s.Matches(event([]string{"allgäu"}, "allgäu"), "XX"))
	// Known region with absent keyword lists.
	assert.False(t, s.Matches(event([]string{"wien"}, "Wien ist schön"), "AT"))
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "regions.yaml")
	data := `regions:
  - code: de
    name: Deutschland
    keywords: [Allgäu]
    cities: [München]
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	descriptors, err := Load(path)
	require.NoError(t, err)
	require.Len(t, descriptors, 1)
	assert.Equal(t, "de", descriptors[0].Code)

	s := NewSet(descriptors)
	assert.Equal(t, []string{"DE"}, s.Codes())
}

func TestLoadBrokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "regions.yaml")
	require.NoError(t, os.WriteFile(path, []byte(":\tnot yaml"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestWatcherReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "regions.yaml")
	require.NoError(t, os.WriteFile(path, []byte("regions:\n  - code: DE\n    keywords: [Allgäu]\n"), 0o644))

	descriptors, err := Load(path)
	require.NoError(t, err)
	set := NewSet(descriptors)

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	w, err := NewWatcher(set, path, log)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte("regions:\n  - code: DE\n    keywords: [Allgäu]\n  - code: FR\n    keywords: [Vogesen]\n"), 0o644))

	assert.Eventually(t, func() bool {
		return len(set.Codes()) == 2
	}, 3*time.Second, 20*time.Millisecond)

	// A broken rewrite keeps the last good mapping.
	require.NoError(t, os.WriteFile(path, []byte(":\tnope"), 0o644))
	time.Sleep(200 * time.Millisecond)
	assert.Len(t, set.Codes(), 2)
}
