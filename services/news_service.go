package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/redis/go-redis/v9"

	"finBriefAPI/internal/types/news"
)

const (
	maxFeedArticles = 20

	feedCacheKey = "news:feed"
	feedCacheTTL = 5 * time.Minute

	summaryCachePrefix = "news:summary:"
	summaryCacheTTL    = 24 * time.Hour
)

// ErrArticleNotFound is returned when a summary is requested for an index
// outside the current feed.
var ErrArticleNotFound = fmt.Errorf("article not found")

// NewsService fetches the FCA regulatory news feed and produces AI summaries
// for individual articles. Both the feed and the summaries are cached in
// Redis; cache trouble degrades to a direct fetch, never to a failed request.
type NewsService struct {
	feedURL    string
	parser     *gofeed.Parser
	cache      *redis.Client
	summarizer Summarizer
}

func NewNewsService(feedURL string, cache *redis.Client, summarizer Summarizer) *NewsService {
	return &NewsService{
		feedURL:    feedURL,
		parser:     gofeed.NewParser(),
		cache:      cache,
		summarizer: summarizer,
	}
}

// FetchNews returns the latest articles, newest first, capped at 20.
func (s *NewsService) FetchNews(ctx context.Context) ([]*news.Article, error) {
	if cached, err := s.cache.Get(ctx, feedCacheKey).Bytes(); err == nil {
		var articles []*news.Article
		if err := json.Unmarshal(cached, &articles); err == nil {
			return articles, nil
		}
		log.Printf("Discarding unreadable cached feed: %v", err)
	} else if err != redis.Nil {
		log.Printf("Feed cache read failed, fetching directly: %v", err)
	}

	feed, err := s.parser.ParseURLWithContext(s.feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch news feed: %w", err)
	}

	items := feed.Items
	if len(items) > maxFeedArticles {
		items = items[:maxFeedArticles]
	}

	articles := make([]*news.Article, 0, len(items))
	for _, item := range items {
		fullContent := item.Content
		if fullContent == "" {
			fullContent = item.Description
		}
		articles = append(articles, &news.Article{
			Title:       item.Title,
			Link:        item.Link,
			Published:   item.Published,
			Summary:     item.Description,
			FullContent: fullContent,
		})
	}

	if data, err := json.Marshal(articles); err == nil {
		if err := s.cache.Set(ctx, feedCacheKey, data, feedCacheTTL).Err(); err != nil {
			log.Printf("Feed cache write failed: %v", err)
		}
	}

	return articles, nil
}

// SummarizeArticle returns the AI summary for the article at the given feed
// index, generating and caching it on first request.
func (s *NewsService) SummarizeArticle(ctx context.Context, index int) (string, error) {
	articles, err := s.FetchNews(ctx)
	if err != nil {
		return "", err
	}
	if index < 0 || index >= len(articles) {
		return "", ErrArticleNotFound
	}

	article := articles[index]
	cacheKey := summaryCacheKey(article.Link)

	if summary, err := s.cache.Get(ctx, cacheKey).Result(); err == nil && summary != "" {
		return summary, nil
	} else if err != nil && err != redis.Nil {
		log.Printf("Summary cache read failed: %v", err)
	}

	content := article.FullContent
	if content == "" {
		content = article.Summary
	}

	summary, err := s.summarizer.Summarize(ctx, content)
	if err != nil {
		// Summarizer trouble is reported inline in the summary body, not
		// as a failed request.
		log.Printf("Failed to summarize article %q: %v", article.Title, err)
		return fmt.Sprintf("Error generating summary: %v", err), nil
	}

	if err := s.cache.Set(ctx, cacheKey, summary, summaryCacheTTL).Err(); err != nil {
		log.Printf("Summary cache write failed: %v", err)
	}

	return summary, nil
}

func summaryCacheKey(link string) string {
	sum := sha256.Sum256([]byte(link))
	return summaryCachePrefix + hex.EncodeToString(sum[:])
}
