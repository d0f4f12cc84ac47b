package sources

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"gazette/internal/config"
	"gazette/internal/core"
)

// ChatMessageDriver fetches recent messages from a messaging channel's
// public preview page, one channel at a time. source_metadata carries the
// channel identifier and view count; this source rarely tags messages with
// anything content_type-adjacent.
type ChatMessageDriver struct {
	client    *pacedClient
	baseURL   string
	userAgent string
	channels  []string
}

// NewChatMessageDriver builds a driver paced by desc's rate_limit/burst,
// listing desc.Hubs (channel identifiers) by default. baseURL points at the
// platform's public preview host (e.g. "https://t.me/s").
func NewChatMessageDriver(desc config.SourceDescriptor, baseURL, userAgent string) *ChatMessageDriver {
	if userAgent == "" {
		userAgent = "gazette-ingest/1.0"
	}
	return &ChatMessageDriver{
		client:    newPacedClient(desc, 15*time.Second),
		baseURL:   baseURL,
		userAgent: userAgent,
		channels:  desc.Hubs,
	}
}

func (d *ChatMessageDriver) SourceKind() core.SourceKind { return core.SourceChatMessage }

func (d *ChatMessageDriver) Fetch(ctx context.Context, filter map[string]any, maxItems int) (<-chan core.RawItem, <-chan error) {
	items := make(chan core.RawItem)
	errs := make(chan error, 1)

	channels := stringsFromFilter(filter, "channels", d.channels)

	go func() {
		defer close(items)
		defer close(errs)

		sent := 0
		for _, channel := range channels {
			if sent >= maxItems {
				return
			}
			select {
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			default:
			}

			messages, err := d.fetchChannel(ctx, channel)
			if err != nil {
				errs <- err
				return
			}

			for _, item := range messages {
				if sent >= maxItems {
					return
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

func (d *ChatMessageDriver) fetchChannel(ctx context.Context, channel string) ([]core.RawItem, error) {
	url := fmt.Sprintf("%s/%s", d.baseURL, channel)
	body, err := d.client.get(ctx, url, d.userAgent)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, &FetchError{Op: "parse_channel", Retryable: false, Err: fmt.Errorf("channel %s: %w", channel, err)}
	}

	channelTitle := strings.TrimSpace(doc.Find(".tgme_channel_info_header_title").First().Text())

	var messages []core.RawItem
	doc.Find(".tgme_widget_message").Each(func(_ int, s *goquery.Selection) {
		post, ok := s.Attr("data-post")
		if !ok {
			return
		}
		parts := strings.SplitN(post, "/", 2)
		if len(parts) != 2 {
			return
		}
		messageID := parts[1]

		text := strings.TrimSpace(s.Find(".tgme_widget_message_text").First().Text())
		if text == "" {
			return
		}

		views := 0
		if viewsText := strings.TrimSpace(s.Find(".tgme_widget_message_views").First().Text()); viewsText != "" {
			views = parseApproxCount(viewsText)
		}

		var published *time.Time
		if dt, ok := s.Find("time").First().Attr("datetime"); ok {
			if parsed, err := time.Parse(time.RFC3339, dt); err == nil {
				published = &parsed
			}
		}

		messages = append(messages, core.RawItem{
			ID:          fmt.Sprintf("chat_message:%s", post),
			SourceKind:  core.SourceChatMessage,
			SourceID:    post,
			Title:       firstLine(text),
			Body:        text,
			URL:         fmt.Sprintf("%s/%s/%s", d.baseURL, channel, messageID),
			PublishedAt: published,
			FetchedAt:   time.Now().UTC(),
			SourceMetadata: map[string]any{
				"channel":       channel,
				"channel_title": channelTitle,
				"views":         views,
			},
		})
	})

	return messages, nil
}

// parseApproxCount parses Telegram's abbreviated view counts ("12.3K",
// "1.2M") into an approximate integer.
func parseApproxCount(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	multiplier := 1.0
	switch suffix := s[len(s)-1]; suffix {
	case 'K', 'k':
		multiplier = 1000
		s = s[:len(s)-1]
	case 'M', 'm':
		multiplier = 1_000_000
		s = s[:len(s)-1]
	}
	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int(value * multiplier)
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx]
	}
	const maxLen = 120
	if len(s) > maxLen {
		return s[:maxLen]
	}
	return s
}
