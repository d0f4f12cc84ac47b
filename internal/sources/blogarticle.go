package sources

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"gazette/internal/config"
	"gazette/internal/core"
)

// BlogArticleDriver fetches articles tagged on a publishing platform, one
// tag at a time: a listing pass collects candidate article URLs, then each
// is fetched individually for its full body. source_metadata carries the
// publication tag; this source has no reliable engagement signal beyond
// claps, which it rarely exposes without JavaScript.
type BlogArticleDriver struct {
	client        *pacedClient
	listingBase   string
	readerBase    string
	userAgent     string
	tags          []string
}

// NewBlogArticleDriver builds a driver paced by desc's rate_limit/burst,
// listing desc.Hubs (publication tags) by default. listingBase points at
// the platform's tag-listing host (e.g. "https://medium.com"); readerBase
// points at a reader proxy that serves full article text without a
// paywall (e.g. "https://freedium.cfd").
func NewBlogArticleDriver(desc config.SourceDescriptor, listingBase, readerBase, userAgent string) *BlogArticleDriver {
	if userAgent == "" {
		userAgent = "gazette-ingest/1.0"
	}
	return &BlogArticleDriver{
		client:      newPacedClient(desc, 20*time.Second),
		listingBase: listingBase,
		readerBase:  readerBase,
		userAgent:   userAgent,
		tags:        desc.Hubs,
	}
}

func (d *BlogArticleDriver) SourceKind() core.SourceKind { return core.SourceBlogArticle }

func (d *BlogArticleDriver) Fetch(ctx context.Context, filter map[string]any, maxItems int) (<-chan core.RawItem, <-chan error) {
	items := make(chan core.RawItem)
	errs := make(chan error, 1)

	tags := stringsFromFilter(filter, "tags", d.tags)

	go func() {
		defer close(items)
		defer close(errs)

		sent := 0
		for _, tag := range tags {
			if sent >= maxItems {
				return
			}
			select {
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			default:
			}

			urls, err := d.listTag(ctx, tag, maxItems-sent)
			if err != nil {
				errs <- err
				return
			}

			for _, articleURL := range urls {
				if sent >= maxItems {
					return
				}

				item, err := d.fetchArticle(ctx, tag, articleURL)
				if err != nil {
					errs <- err
					return
				}
				if item == nil {
					continue
				}

				select {
				case items <- *item:
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

func (d *BlogArticleDriver) listTag(ctx context.Context, tag string, limit int) ([]string, error) {
	listURL := fmt.Sprintf("%s/tag/%s", d.listingBase, tag)
	body, err := d.client.get(ctx, listURL, d.userAgent)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, &FetchError{Op: "parse_tag_listing", Retryable: false, Err: fmt.Errorf("tag %s: %w", tag, err)}
	}

	var urls []string
	seen := make(map[string]bool)
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		if len(urls) >= limit {
			return
		}
		href, _ := s.Attr("href")
		if !strings.Contains(href, "medium.com") {
			return
		}
		articleURL := strings.SplitN(href, "?", 2)[0]
		if seen[articleURL] {
			return
		}
		seen[articleURL] = true
		urls = append(urls, articleURL)
	})
	return urls, nil
}

func (d *BlogArticleDriver) fetchArticle(ctx context.Context, tag, articleURL string) (*core.RawItem, error) {
	readerURL := fmt.Sprintf("%s/%s", d.readerBase, articleURL)
	body, err := d.client.get(ctx, readerURL, d.userAgent)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, &FetchError{Op: "parse_article", Retryable: false, Err: fmt.Errorf("%s: %w", articleURL, err)}
	}

	title := strings.TrimSpace(doc.Find("h1").First().Text())
	if title == "" {
		title = "Untitled"
	}

	var text strings.Builder
	doc.Find("article").Find("p, h2, h3, blockquote, li").Each(func(_ int, s *goquery.Selection) {
		text.WriteString(strings.TrimSpace(s.Text()))
		text.WriteString("\n\n")
	})
	if text.Len() == 0 {
		return nil, nil
	}

	return &core.RawItem{
		ID:         fmt.Sprintf("blog_article:%s", articleURL),
		SourceKind: core.SourceBlogArticle,
		SourceID:   articleURL,
		Title:      title,
		Body:       strings.TrimSpace(text.String()),
		URL:        articleURL,
		FetchedAt:  time.Now().UTC(),
		SourceMetadata: map[string]any{
			"tag":   tag,
			"claps": 0,
		},
	}, nil
}
