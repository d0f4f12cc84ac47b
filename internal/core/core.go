// Package core defines the storage-neutral domain types shared by every
// component of the ingestion-and-editorial pipeline.
package core

import "time"

// SourceKind names a source family. It selects a dedup collection, a set of
// per-source policy overrides, and a rate-limit bucket.
type SourceKind string

const (
	SourceForumPost   SourceKind = "forum_post"
	SourceTechArticle SourceKind = "tech_article"
	SourceChatMessage SourceKind = "chat_message"
	SourceBlogArticle SourceKind = "blog_article"
)

// Valid reports whether k is one of the four known source kinds.
func (k SourceKind) Valid() bool {
	switch k {
	case SourceForumPost, SourceTechArticle, SourceChatMessage, SourceBlogArticle:
		return true
	default:
		return false
	}
}

// ContentType is the small enumerated editorial classification. The
// editorial service is the single place that reconciles whatever label a
// source or model volunteers into one of these.
type ContentType string

const (
	ContentNews       ContentType = "news"
	ContentResearch   ContentType = "research"
	ContentTutorial   ContentType = "tutorial"
	ContentHumor      ContentType = "humor"
	ContentDiscussion ContentType = "discussion"
	ContentMeme       ContentType = "meme"
)

// RawItem is the normalized output of any source driver. It is created once
// by ingestion and never mutated afterward except to attach VectorID.
type RawItem struct {
	ID             string            `json:"id"`
	SourceKind     SourceKind        `json:"source_kind"`
	SourceID       string            `json:"source_id"` // opaque, unique within SourceKind
	Title          string            `json:"title"`
	Body           string            `json:"body"`
	URL            string            `json:"url"`
	Author         string            `json:"author,omitempty"`
	PublishedAt    *time.Time        `json:"published_at,omitempty"`
	FetchedAt      time.Time         `json:"fetched_at"`
	SourceMetadata map[string]any    `json:"source_metadata,omitempty"`
	VectorID       *string           `json:"vector_id,omitempty"`
}

// ProcessedItem is the editorial product of exactly one RawItem. Its
// re-creation for the same SourceID is forbidden; the record store enforces
// that with a unique constraint, not the orchestrator.
type ProcessedItem struct {
	ID              string      `json:"id"`
	SourceID        string      `json:"source_id"`
	IsRelevant      bool        `json:"is_relevant"`
	RelevanceScore  float64     `json:"relevance_score"`
	RelevanceReason string      `json:"relevance_reason"`
	EditorialTitle  string      `json:"editorial_title,omitempty"`
	EditorialTeaser string      `json:"editorial_teaser,omitempty"`
	EditorialBody   string      `json:"editorial_body,omitempty"`
	ImagePrompt     string      `json:"image_prompt,omitempty"`
	ContentType     ContentType `json:"content_type,omitempty"`
	ModelName       string      `json:"model_name,omitempty"`
	ProcessingMS    int64       `json:"processing_ms"`
	ProcessedAt     time.Time   `json:"processed_at"`
}

// ShortFormItem is a size-bounded rendering of a relevant ProcessedItem,
// suitable for posting to a chat-platform channel.
type ShortFormItem struct {
	ID                 string     `json:"id"`
	SourceID           string     `json:"source_id"`
	Title              string     `json:"title"`
	Body               string     `json:"body"`      // <= 3500 chars
	Hashtags           []string   `json:"hashtags"`  // 3-5 tokens
	Formatted          string     `json:"formatted"` // Body with lightweight markup
	CharCount          int        `json:"char_count"` // must equal len(Formatted)
	CreatedAt          time.Time  `json:"created_at"`
	PublishedAt        *time.Time `json:"published_at,omitempty"`
	PlatformMessageID  *int64     `json:"platform_message_id,omitempty"`
	IsPublished        bool       `json:"is_published"`
}

// VectorRef records the identity of an embedding stored in the vector index.
// It is a side table, not a first-class persisted entity: RawItem carries
// its own VectorID and the vector index owns the rest.
type VectorRef struct {
	VectorID   string     `json:"vector_id"`
	SourceID   string     `json:"source_id"`
	SourceKind SourceKind `json:"source_kind"`
}

// JobState is the lifecycle state of a Job. Transitions are one-directional:
// pending -> running -> (completed | failed).
type JobState string

const (
	JobPending   JobState = "pending"
	JobRunning   JobState = "running"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
)

// JobParams are the validated parameters of one ingestion job request.
type JobParams struct {
	MaxItems             int            `json:"max_items"`
	Filter               map[string]any `json:"filter,omitempty"`
	EnableLLM            bool           `json:"enable_llm"`
	EnableDeduplication  bool           `json:"enable_deduplication"`
}

// JobResult carries the final counters of a completed job.
type JobResult struct {
	Saved              int `json:"saved"`
	Skipped            int `json:"skipped"`
	SemanticDuplicates int `json:"semantic_duplicates"`
	EditorialProcessed int `json:"editorial_processed"`
	Errors             int `json:"errors"`
}

// Job is one unit of orchestrator work, owned exclusively by the job runner.
// Terminal states (completed, failed) are immutable once reached.
type Job struct {
	JobID       string     `json:"job_id"`
	SourceKind  SourceKind `json:"source_kind"`
	Params      JobParams  `json:"params"`
	State       JobState   `json:"state"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Result      *JobResult `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// SessionStatus is the lifecycle of a log/session scope.
type SessionStatus string

const (
	SessionActive SessionStatus = "active"
	SessionClosed SessionStatus = "closed"
)

// Session ties a live-log stream to a running job or CLI invocation.
type Session struct {
	SessionID string        `json:"session_id"`
	CreatedAt time.Time     `json:"created_at"`
	ClosedAt  *time.Time    `json:"closed_at,omitempty"`
	Status    SessionStatus `json:"status"`
}

// LogLevel mirrors the small set of levels the pipeline actually emits.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// LogEntry is one append-only record in a session's log stream.
type LogEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     LogLevel       `json:"level"`
	Message   string         `json:"message"`
	SessionID string         `json:"session_id"`
	Context   map[string]any `json:"context,omitempty"`
}

// ItemOutcome names the terminal reason an item's journey through the
// orchestrator stopped, for counters and for the job result / log trail.
type ItemOutcome string

const (
	OutcomeSaved              ItemOutcome = "saved"
	OutcomeInvalid            ItemOutcome = "invalid"
	OutcomeDuplicateID        ItemOutcome = "duplicate_id"
	OutcomeTooShort           ItemOutcome = "too_short"
	OutcomeDuplicateSemantic  ItemOutcome = "duplicate_semantic"
	OutcomeError              ItemOutcome = "error"
)
