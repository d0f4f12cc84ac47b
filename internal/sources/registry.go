package sources

import (
	"fmt"

	"gazette/internal/config"
	"gazette/internal/core"
)

// Endpoints carries the per-source base URLs a driver needs to talk to its
// upstream, kept separate from config.Sources because the descriptor
// itself (per §3.1 of the spec) carries no credentials or hosts, only the
// hub/tag/channel filter.
type Endpoints struct {
	ForumBaseURL       string
	TechArticleBaseURL string
	ChatMessageBaseURL string
	BlogListingBaseURL string
	BlogReaderBaseURL  string
	UserAgent          string
}

// NewDriver constructs the Driver for kind from cfg's source descriptors
// and the given endpoints.
func NewDriver(kind core.SourceKind, cfg config.Sources, endpoints Endpoints) (Driver, error) {
	switch kind {
	case core.SourceForumPost:
		return NewForumDriver(cfg.ForumPost, endpoints.ForumBaseURL, endpoints.UserAgent), nil
	case core.SourceTechArticle:
		return NewTechArticleDriver(cfg.TechArticle, endpoints.TechArticleBaseURL, endpoints.UserAgent), nil
	case core.SourceChatMessage:
		return NewChatMessageDriver(cfg.ChatMessage, endpoints.ChatMessageBaseURL, endpoints.UserAgent), nil
	case core.SourceBlogArticle:
		return NewBlogArticleDriver(cfg.BlogArticle, endpoints.BlogListingBaseURL, endpoints.BlogReaderBaseURL, endpoints.UserAgent), nil
	default:
		return nil, fmt.Errorf("sources: unknown source_kind %q", kind)
	}
}
