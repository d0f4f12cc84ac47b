package editorial

import (
	"embed"
	"encoding/xml"
	"fmt"
	"sort"
	"strings"
)

//go:embed prompts/*.xml
var promptFiles embed.FS

type promptStep struct {
	Number      string `xml:"number,attr"`
	Name        string `xml:"name"`
	Instruction string `xml:"instruction"`
}

type promptDoc struct {
	XMLName xml.Name `xml:"editorial_prompt"`
	Role    struct {
		Identity string `xml:"identity"`
	} `xml:"system_role"`
	Objective struct {
		Goal string `xml:"goal"`
	} `xml:"objective"`
	Pipeline struct {
		Steps []promptStep `xml:"step"`
	} `xml:"pipeline"`
}

// loadSystemPrompt reads a prompt document once and flattens its
// identity/objective/pipeline sections, in order, into a single system
// prompt. The JSON schema is appended by the caller, since it differs
// between full editorial processing and short-form rendering.
func loadSystemPrompt(name string) (string, error) {
	raw, err := promptFiles.ReadFile("prompts/" + name)
	if err != nil {
		return "", fmt.Errorf("editorial: read prompt %s: %w", name, err)
	}

	var doc promptDoc
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return "", fmt.Errorf("editorial: parse prompt %s: %w", name, err)
	}

	steps := append([]promptStep(nil), doc.Pipeline.Steps...)
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].Number < steps[j].Number })

	var b strings.Builder
	b.WriteString(strings.TrimSpace(doc.Role.Identity))
	b.WriteString("\n\nGOAL: ")
	b.WriteString(strings.TrimSpace(doc.Objective.Goal))
	b.WriteString("\n\nINSTRUCTIONS:\n\n")
	for _, s := range steps {
		b.WriteString(s.Number)
		b.WriteString(". ")
		b.WriteString(strings.TrimSpace(s.Name))
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(s.Instruction))
		b.WriteString("\n\n")
	}

	return strings.TrimSpace(b.String()), nil
}

const relevantSchema = `
OUTPUT FORMAT:
Respond with strict JSON only, nothing before or after the JSON block.

When the post is news:
{
  "is_news": true,
  "relevance_score": 0.0,
  "relevance_reason": "...",
  "original_summary": "...",
  "rewritten_post": "...",
  "title": "...",
  "teaser": "...",
  "image_prompt": "...",
  "content_type": "..."
}

When the post is not news:
{
  "is_news": false,
  "relevance_score": 0.0,
  "relevance_reason": "...",
  "original_summary": "..."
}`

const shortFormSchema = `
OUTPUT FORMAT:
Respond with strict JSON only, nothing before or after the JSON block.

{
  "title": "...",
  "body": "...",
  "hashtags": ["..."],
  "formatted": "...",
  "char_count": 0
}`
