package analysis

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/iankiku/agentsauthority-chatbot-sub003/types"
	"github.com/mmcdole/gofeed"
)

// DefaultMentionFeed is a news search feed; %s receives the escaped query
const DefaultMentionFeed = "https://news.google.com/rss/search?q=%s"

// Mention is one press item naming the brand
type Mention struct {
	Title     string    `json:"title"`
	Link      string    `json:"link"`
	Source    string    `json:"source,omitempty"`
	Published time.Time `json:"published,omitempty"`
}

// MentionSource finds press mentions of a brand
type MentionSource interface {
	Mentions(ctx context.Context, brand string) ([]Mention, error)
}

// FeedMentionSource implements MentionSource over an RSS or Atom search feed
type FeedMentionSource struct {
	feedTemplate string
	parser       *gofeed.Parser
	limit        int
}

var _ MentionSource = (*FeedMentionSource)(nil)

// NewFeedMentionSource creates a source querying feedTemplate, which must
// contain one %s for the search terms
func NewFeedMentionSource(feedTemplate string, client *http.Client, limit int) *FeedMentionSource {
	if feedTemplate == "" {
		feedTemplate = DefaultMentionFeed
	}
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if limit <= 0 {
		limit = 50
	}

	parser := gofeed.NewParser()
	parser.Client = client
	parser.UserAgent = "BrandVisibilityBot/1.0"

	return &FeedMentionSource{
		feedTemplate: feedTemplate,
		parser:       parser,
		limit:        limit,
	}
}

// Mentions fetches the feed for brand and keeps items whose title or
// description names it
func (f *FeedMentionSource) Mentions(ctx context.Context, brand string) ([]Mention, error) {
	brand = strings.TrimSpace(brand)
	if brand == "" {
		return nil, nil
	}

	feedURL := fmt.Sprintf(f.feedTemplate, url.QueryEscape(`"`+brand+`"`))
	feed, err := f.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, &types.ExternalServiceError{
			Service: "news-feed",
			Message: "could not read press mentions feed",
			Err:     err,
		}
	}

	needle := strings.ToLower(brand)
	seen := make(map[string]struct{})
	var mentions []Mention
	for _, item := range feed.Items {
		title := strings.TrimSpace(item.Title)
		link := strings.TrimSpace(item.Link)
		if title == "" || link == "" {
			continue
		}
		if !strings.Contains(strings.ToLower(title+" "+item.Description), needle) {
			continue
		}
		if _, dup := seen[link]; dup {
			continue
		}
		seen[link] = struct{}{}

		mention := Mention{
			Title:  title,
			Link:   link,
			Source: itemSource(item),
		}
		if item.PublishedParsed != nil {
			mention.Published = item.PublishedParsed.UTC()
		}
		mentions = append(mentions, mention)

		if len(mentions) >= f.limit {
			break
		}
	}
	return mentions, nil
}

func itemSource(item *gofeed.Item) string {
	if item.Author != nil && item.Author.Name != "" {
		return item.Author.Name
	}
	if u, err := url.Parse(item.Link); err == nil {
		return strings.TrimPrefix(u.Hostname(), "www.")
	}
	return ""
}
