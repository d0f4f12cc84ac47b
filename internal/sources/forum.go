package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gazette/internal/config"
	"gazette/internal/core"
)

// ForumDriver fetches posts from a forum's public hot/new listing, one hub
// (subreddit-shaped community) at a time. source_metadata carries the
// upvote score, comment count, and flair a forum post's relevance often
// hinges on.
type ForumDriver struct {
	client    *pacedClient
	baseURL   string
	userAgent string
	hubs      []string
}

// NewForumDriver builds a driver paced by desc's rate_limit/burst, listing
// desc.Hubs by default. baseURL points at a Reddit-shaped public JSON
// listing API (e.g. "https://www.reddit.com").
func NewForumDriver(desc config.SourceDescriptor, baseURL, userAgent string) *ForumDriver {
	if userAgent == "" {
		userAgent = "gazette-ingest/1.0"
	}
	return &ForumDriver{
		client:    newPacedClient(desc, 15*time.Second),
		baseURL:   baseURL,
		userAgent: userAgent,
		hubs:      desc.Hubs,
	}
}

func (d *ForumDriver) SourceKind() core.SourceKind { return core.SourceForumPost }

type forumListing struct {
	Data struct {
		Children []struct {
			Data forumPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type forumPost struct {
	ID             string  `json:"id"`
	Subreddit      string  `json:"subreddit"`
	Title          string  `json:"title"`
	Author         string  `json:"author"`
	URL            string  `json:"url"`
	SelfText       string  `json:"selftext"`
	IsSelf         bool    `json:"is_self"`
	Score          int     `json:"score"`
	NumComments    int     `json:"num_comments"`
	CreatedUTC     float64 `json:"created_utc"`
	LinkFlairText  string  `json:"link_flair_text"`
	Permalink      string  `json:"permalink"`
}

func (d *ForumDriver) Fetch(ctx context.Context, filter map[string]any, maxItems int) (<-chan core.RawItem, <-chan error) {
	items := make(chan core.RawItem)
	errs := make(chan error, 1)

	hubs := stringsFromFilter(filter, "hubs", d.hubs)

	go func() {
		defer close(items)
		defer close(errs)

		sent := 0
		for _, hub := range hubs {
			if sent >= maxItems {
				return
			}
			select {
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			default:
			}

			url := fmt.Sprintf("%s/r/%s/hot.json?limit=%d", d.baseURL, hub, maxItems-sent)
			body, err := d.client.get(ctx, url, d.userAgent)
			if err != nil {
				errs <- err
				return
			}

			var listing forumListing
			if err := json.Unmarshal(body, &listing); err != nil {
				errs <- &FetchError{Op: "decode_listing", Retryable: false, Err: fmt.Errorf("hub %s: %w", hub, err)}
				return
			}

			for _, child := range listing.Data.Children {
				if sent >= maxItems {
					return
				}
				post := child.Data
				published := time.Unix(int64(post.CreatedUTC), 0).UTC()

				body := post.SelfText
				if !post.IsSelf {
					body = post.URL
				}

				item := core.RawItem{
					ID:         fmt.Sprintf("forum_post:%s", post.ID),
					SourceKind: core.SourceForumPost,
					SourceID:   post.ID,
					Title:      post.Title,
					Body:       body,
					URL:        fmt.Sprintf("%s%s", d.baseURL, post.Permalink),
					Author:     post.Author,
					PublishedAt: &published,
					FetchedAt:  time.Now().UTC(),
					SourceMetadata: map[string]any{
						"hub":           post.Subreddit,
						"score":         post.Score,
						"num_comments":  post.NumComments,
						"flair":         post.LinkFlairText,
					},
				}

				select {
				case items <- item:
					sent++
				case <-ctx.Done():
					errs <- ctx.Err()
					return
				}
			}
		}
	}()

	return items, errs
}
