package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fernweh-site/fernweh/internal/feed"
	"github.com/fernweh-site/fernweh/internal/model"
)

// fakeFeeds records the options each endpoint was called with and returns
// canned results.
type fakeFeeds struct {
	result  *feed.Result
	item    *feed.Item
	err     error
	lastOp  string
	lastOpt feed.Options
	lastID  string
}

func (f *fakeFeeds) collection(op string) func(context.Context, feed.Options) (*feed.Result, error) {
	return func(_ context.Context, opts feed.Options) (*feed.Result, error) {
		f.lastOp = op
		f.lastOpt = opts
		if f.err != nil {
			return nil, f.err
		}
		return f.result, nil
	}
}

func (f *fakeFeeds) Combined(ctx context.Context, o feed.Options) (*feed.Result, error) {
	return f.collection("combined")(ctx, o)
}
func (f *fakeFeeds) Articles(ctx context.Context, o feed.Options) (*feed.Result, error) {
	return f.collection("articles")(ctx, o)
}
func (f *fakeFeeds) Places(ctx context.Context, o feed.Options) (*feed.Result, error) {
	return f.collection("places")(ctx, o)
}
func (f *fakeFeeds) Notes(ctx context.Context, o feed.Options) (*feed.Result, error) {
	return f.collection("notes")(ctx, o)
}
func (f *fakeFeeds) ArticleByIdentifier(_ context.Context, id string) (*feed.Item, error) {
	f.lastID = id
	if f.err != nil {
		return nil, f.err
	}
	return f.item, nil
}

func newTestServer(feeds FeedProvider) *Server {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return New(feeds, nil, log)
}

func doGet(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestFeedEndpointsRoute(t *testing.T) {
	fakes := &fakeFeeds{result: &feed.Result{Items: []feed.Item{
		{Type: "note", Event: model.Event{ID: "n1", Kind: model.KindNote}},
	}}}
	s := newTestServer(fakes)

	tests := []struct {
		path string
		op   string
	}{
		{"/api/feed", "combined"},
		{"/api/articles", "articles"},
		{"/api/places", "places"},
		{"/api/notes", "notes"},
	}
	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			rec := doGet(t, s, tt.path)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.op, fakes.lastOp)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var res feed.Result
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
			require.Len(t, res.Items, 1)
			assert.Equal(t, "n1", res.Items[0].Event.ID)
		})
	}
}

func TestFeedQueryParams(t *testing.T) {
	fakes := &fakeFeeds{result: &feed.Result{Items: []feed.Item{}}}
	s := newTestServer(fakes)

	cursor := feed.EncodeCursor(999)
	rec := doGet(t, s, "/api/notes?tags=camping,wandern&region=de&limit=20&cursor="+cursor)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, []string{"camping", "wandern"}, fakes.lastOpt.Topics)
	assert.Equal(t, "de", fakes.lastOpt.Region)
	assert.Equal(t, 20, fakes.lastOpt.Limit)
	assert.Equal(t, int64(999), fakes.lastOpt.Until)
}

func TestFeedBadParams(t *testing.T) {
	s := newTestServer(&fakeFeeds{result: &feed.Result{}})

	for _, path := range []string{
		"/api/feed?limit=abc",
		"/api/feed?limit=0",
		"/api/feed?cursor=!!!not-a-cursor",
	} {
		rec := doGet(t, s, path)
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
}

func TestFeedErrorDegradesToEmptyPage(t *testing.T) {
	fakes := &fakeFeeds{err: errors.New("all relays down")}
	s := newTestServer(fakes)

	rec := doGet(t, s, "/api/feed")
	require.Equal(t, http.StatusOK, rec.Code)

	var res feed.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Empty(t, res.Items)
	assert.False(t, res.HasMore)
	assert.Empty(t, res.NextCursor)
}

func TestArticleLookup(t *testing.T) {
	fakes := &fakeFeeds{item: &feed.Item{
		Type:  "article",
		Event: model.Event{ID: "a1", Kind: model.KindLongForm},
	}}
	s := newTestServer(fakes)

	rec := doGet(t, s, "/api/articles/my-article")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "my-article", fakes.lastID)

	var item feed.Item
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &item))
	assert.Equal(t, "a1", item.Event.ID)
}

func TestArticleNotFound(t *testing.T) {
	s := newTestServer(&fakeFeeds{})
	rec := doGet(t, s, "/api/articles/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestArticleUpstreamError(t *testing.T) {
	s := newTestServer(&fakeFeeds{err: errors.New("relay timeout")})
	rec := doGet(t, s, "/api/articles/my-article")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(&fakeFeeds{})

	rec := doGet(t, s, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doGet(t, s, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
}
