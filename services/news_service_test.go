package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSummarizer struct {
	summary string
	err     error
	calls   int
}

func (f *fakeSummarizer) Summarize(ctx context.Context, content string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.summary, nil
}

func rssFeed(itemCount int) string {
	var items strings.Builder
	for i := 0; i < itemCount; i++ {
		items.WriteString(fmt.Sprintf(`
		<item>
			<title>Article %d</title>
			<link>https://example.org/news/%d</link>
			<pubDate>Mon, 02 Jan 2006 15:04:05 GMT</pubDate>
			<description>Description %d</description>
		</item>`, i, i, i))
	}
	return `<?xml version="1.0" encoding="UTF-8"?>
	<rss version="2.0">
	<channel>
		<title>Regulatory News</title>
		<link>https://example.org</link>
		<description>Latest news</description>` + items.String() + `
	</channel>
	</rss>`
}

func newNewsFixture(t *testing.T, itemCount int) (*NewsService, *fakeSummarizer, *int) {
	t.Helper()

	requests := 0
	feedServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, rssFeed(itemCount))
	}))
	t.Cleanup(feedServer.Close)

	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	summarizer := &fakeSummarizer{summary: "A concise summary."}
	return NewNewsService(feedServer.URL, cache, summarizer), summarizer, &requests
}

func TestFetchNewsMapsFeedItems(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newNewsFixture(t, 3)

	articles, err := svc.FetchNews(ctx)
	require.NoError(t, err)
	require.Len(t, articles, 3)
	assert.Equal(t, "Article 0", articles[0].Title)
	assert.Equal(t, "https://example.org/news/0", articles[0].Link)
	assert.Equal(t, "Description 0", articles[0].Summary)
	assert.Equal(t, "Description 0", articles[0].FullContent)
}

func TestFetchNewsCapsAtTwenty(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newNewsFixture(t, 25)

	articles, err := svc.FetchNews(ctx)
	require.NoError(t, err)
	assert.Len(t, articles, 20)
}

func TestFetchNewsUsesCache(t *testing.T) {
	ctx := context.Background()
	svc, _, requests := newNewsFixture(t, 2)

	_, err := svc.FetchNews(ctx)
	require.NoError(t, err)
	_, err = svc.FetchNews(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, *requests, "second fetch should be served from cache")
}

func TestSummarizeArticleCachesResult(t *testing.T) {
	ctx := context.Background()
	svc, summarizer, _ := newNewsFixture(t, 2)

	summary, err := svc.SummarizeArticle(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, "A concise summary.", summary)

	_, err = svc.SummarizeArticle(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, summarizer.calls, "second summary should be served from cache")

	_, err = svc.SummarizeArticle(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, summarizer.calls, "different article misses the cache")
}

func TestSummarizeArticleOutOfRange(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newNewsFixture(t, 2)

	_, err := svc.SummarizeArticle(ctx, 5)
	assert.ErrorIs(t, err, ErrArticleNotFound)

	_, err = svc.SummarizeArticle(ctx, -1)
	assert.ErrorIs(t, err, ErrArticleNotFound)
}

func TestSummarizeArticleSurfacesProviderErrorInline(t *testing.T) {
	ctx := context.Background()
	svc, summarizer, _ := newNewsFixture(t, 1)
	summarizer.err = errors.New("model overloaded")

	summary, err := svc.SummarizeArticle(ctx, 0)
	require.NoError(t, err)
	assert.Contains(t, summary, "Error generating summary")
}
