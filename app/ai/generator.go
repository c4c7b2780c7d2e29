package ai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/twincounty/digest/app/database"
)

// DefaultSubject is used whenever subject line generation fails or the
// generator is not configured.
const DefaultSubject = "Your Twin County Weekly Update"

const maxSubjectLength = 60

const topStoryPrompt = `You are writing for a local community newsletter serving Nash, Edgecombe, and Wilson counties in North Carolina.

Write an engaging 200-word highlight piece about this story. Use a professional, upbeat, and community-focused voice.

STORY DETAILS:
Title: %s
Source: %s
Summary: %s
Full Content: %s

GUIDELINES:
- Write exactly 200 words (give or take 20 words)
- Start with an engaging hook that draws readers in
- Highlight the community benefit, impact, or interest
- Include relevant details (who, what, when, where)
- End with a forward-looking statement or soft call to action
- Maintain a warm, neighborly, professional tone
- Do NOT include a headline - just the body text
- Do NOT use phrases like "This week" or "Recently" as the first word

Write the story now (just the body text, no headline):`

const subjectLinePrompt = `Generate a compelling email subject line for a local community newsletter.

Top Story: %s
Number of Events: %d
Counties: Nash, Edgecombe, Wilson (NC)

Requirements:
- Maximum 50 characters
- Include a local/community feel
- Create curiosity or excitement without clickbait
- Don't use ALL CAPS or excessive punctuation
- Don't start with "Newsletter:" or similar

Just return the subject line text, nothing else.`

// Generator produces the digest's top-story prose and subject line. Every
// method degrades to a usable fallback; generation failure never blocks
// digest assembly.
type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

// TopStory writes the highlight piece for the selected item, falling back to
// the item's classification summary.
func (g *Generator) TopStory(ctx context.Context, item database.ContentItem) string {
	fallback := item.Summary
	if fallback == "" {
		fallback = item.Title
	}

	if !g.client.Configured() {
		return fallback
	}

	title := item.Title
	if title == "" {
		title = "Local Story"
	}
	content := truncateRunes(item.Body, maxPromptContentLength)

	prompt := fmt.Sprintf(topStoryPrompt, title, item.SourceName, item.Summary, content)
	story, err := g.client.Complete(ctx, prompt)
	if err != nil {
		slog.Error("Top story generation failed, using summary", "item_id", item.ID, "error", err)
		return fallback
	}

	return story
}

// SubjectLine generates the email subject, falling back to DefaultSubject.
func (g *Generator) SubjectLine(ctx context.Context, topStoryTitle string, eventCount int) string {
	if !g.client.Configured() {
		return DefaultSubject
	}
	if topStoryTitle == "" {
		topStoryTitle = "Community News"
	}

	subject, err := g.client.Complete(ctx, fmt.Sprintf(subjectLinePrompt, topStoryTitle, eventCount))
	if err != nil {
		slog.Error("Subject line generation failed, using default", "error", err)
		return DefaultSubject
	}

	subject = strings.Trim(strings.TrimSpace(subject), `"`)
	if subject == "" {
		return DefaultSubject
	}
	if utf8.RuneCountInString(subject) > maxSubjectLength {
		subject = truncateRunes(subject, maxSubjectLength-3) + "..."
	}

	return subject
}
