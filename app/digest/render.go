package digest

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/twincounty/digest/app/database"
)

//go:embed templates/*.html
var templateFS embed.FS

// Renderer turns a digest layout into the email HTML body.
type Renderer struct {
	tmpl *template.Template
}

func NewRenderer() (*Renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse digest templates: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

type digestView struct {
	Subject       string
	Date          string
	TopStoryTitle string
	TopStoryText  string
	TopStoryURL   string
	Sections      []sectionView
	Events        []eventView
	HasEvents     bool
}

type sectionView struct {
	Name  string
	Items []itemView
}

type itemView struct {
	Title   string
	URL     string
	Summary string
	Source  string
}

type eventView struct {
	Date     string
	Time     string
	Title    string
	URL      string
	Location string
}

func (r *Renderer) RenderHTML(subject, topStoryText string, layout Layout) (string, error) {
	view := digestView{
		Subject:   subject,
		Date:      time.Now().Format("January 2, 2006"),
		HasEvents: len(layout.Events) > 0,
	}

	if layout.TopStory != nil {
		view.TopStoryTitle = layout.TopStory.Title
		view.TopStoryText = topStoryText
		view.TopStoryURL = layout.TopStory.URL
	}

	for _, section := range layout.Sections {
		sv := sectionView{Name: section.Name}
		for _, item := range section.Items {
			sv.Items = append(sv.Items, itemView{
				Title:   itemTitle(item),
				URL:     item.URL,
				Summary: item.Summary,
				Source:  item.SourceName,
			})
		}
		view.Sections = append(view.Sections, sv)
	}

	for _, event := range layout.Events {
		ev := eventView{
			Date:     "TBA",
			Time:     "TBA",
			Title:    itemTitle(event),
			URL:      event.URL,
			Location: "See details",
		}
		if event.EventDate != nil {
			ev.Date = event.EventDate.Format("Mon, Jan 2")
		}
		if event.EventTime != "" {
			ev.Time = event.EventTime
		}
		if event.EventLocation != "" {
			ev.Location = event.EventLocation
		}
		view.Events = append(view.Events, ev)
	}

	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, "digest.html", view); err != nil {
		return "", fmt.Errorf("failed to render digest: %w", err)
	}

	return buf.String(), nil
}

func itemTitle(item database.ContentItem) string {
	if item.Title != "" {
		return item.Title
	}
	summary := item.Summary
	if len(summary) > 60 {
		return summary[:60] + "..."
	}
	if summary != "" {
		return summary
	}
	return "Untitled"
}

// renderPlainText produces the text alternative for email clients that do
// not render HTML.
func renderPlainText(subject, topStoryText string, layout Layout) string {
	var b strings.Builder

	b.WriteString(subject)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", len(subject)))
	b.WriteString("\n\n")

	if layout.TopStory != nil {
		b.WriteString("TOP STORY\n\n")
		if layout.TopStory.Title != "" {
			b.WriteString(layout.TopStory.Title)
			b.WriteString("\n\n")
		}
		b.WriteString(topStoryText)
		b.WriteString("\n")
		b.WriteString("Read more: ")
		b.WriteString(layout.TopStory.URL)
		b.WriteString("\n\n")
	}

	for _, section := range layout.Sections {
		b.WriteString(strings.ToUpper(section.Name))
		b.WriteString("\n\n")
		for _, item := range section.Items {
			b.WriteString("- ")
			b.WriteString(itemTitle(item))
			b.WriteString("\n  ")
			b.WriteString(item.URL)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if len(layout.Events) > 0 {
		b.WriteString("COMMUNITY CALENDAR\n\n")
		for _, event := range layout.Events {
			date := "TBA"
			if event.EventDate != nil {
				date = event.EventDate.Format("Mon, Jan 2")
			}
			b.WriteString(fmt.Sprintf("- %s: %s\n", date, itemTitle(event)))
		}
	}

	return b.String()
}
