package digest

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/twincounty/digest/app/database"
)

const (
	maxItemsPerCounty = 5
	maxCalendarEvents = 10
)

// countyOrder fixes the rendering order of the news sections.
var countyOrder = []string{"nash", "edgecombe", "wilson", "regional"}

var countyNames = map[string]string{
	"nash":      "Nash County",
	"edgecombe": "Edgecombe County",
	"wilson":    "Wilson County",
	"regional":  "Regional News",
}

// categoryPriority ranks item categories for top-story selection. Lower is
// better.
var categoryPriority = map[string]int{
	"event":        0,
	"announcement": 1,
	"news":         2,
	"promotion":    3,
	"government":   4,
	"other":        5,
}

// ContentGenerator produces the digest's generated prose. Both methods
// degrade internally; they never fail assembly.
type ContentGenerator interface {
	TopStory(ctx context.Context, item database.ContentItem) string
	SubjectLine(ctx context.Context, topStoryTitle string, eventCount int) string
}

// Assembler builds a digest from the eligible content pool: approved items
// inside the lookback window not yet used by a prior digest, plus approved
// events inside the event horizon.
type Assembler struct {
	contentRepo      database.ContentRepository
	digestRepo       database.DigestRepository
	generator        ContentGenerator
	renderer         *Renderer
	lookbackDays     int
	eventHorizonDays int
}

func NewAssembler(contentRepo database.ContentRepository, digestRepo database.DigestRepository, generator ContentGenerator, renderer *Renderer, lookbackDays, eventHorizonDays int) *Assembler {
	if lookbackDays <= 0 {
		lookbackDays = 7
	}
	if eventHorizonDays <= 0 {
		eventHorizonDays = 14
	}
	return &Assembler{
		contentRepo:      contentRepo,
		digestRepo:       digestRepo,
		generator:        generator,
		renderer:         renderer,
		lookbackDays:     lookbackDays,
		eventHorizonDays: eventHorizonDays,
	}
}

// Assemble builds and stores a draft digest. It returns 0 when the eligible
// pool is empty; that is a normal outcome, not an error.
func (a *Assembler) Assemble(ctx context.Context) (int64, error) {
	now := time.Now().UTC()

	pool, err := a.contentRepo.GetApprovedUnused(ctx, now.AddDate(0, 0, -a.lookbackDays))
	if err != nil {
		return 0, fmt.Errorf("failed to load eligible content: %w", err)
	}
	if len(pool) == 0 {
		slog.Info("No approved content available for digest")
		return 0, nil
	}

	events, err := a.contentRepo.GetUpcomingEvents(ctx, now, now.AddDate(0, 0, a.eventHorizonDays))
	if err != nil {
		return 0, fmt.Errorf("failed to load upcoming events: %w", err)
	}

	layout := buildLayout(pool, events)

	topStoryHTML := ""
	topStoryTitle := ""
	if layout.TopStory != nil {
		topStoryHTML = a.generator.TopStory(ctx, *layout.TopStory)
		topStoryTitle = layout.TopStory.Title
	}
	subject := a.generator.SubjectLine(ctx, topStoryTitle, len(layout.Events))

	htmlContent, err := a.renderer.RenderHTML(subject, topStoryHTML, layout)
	if err != nil {
		return 0, fmt.Errorf("failed to render digest HTML: %w", err)
	}
	plainText := renderPlainText(subject, topStoryHTML, layout)

	create := database.DigestCreate{
		Subject:        subject,
		TopStoryHTML:   topStoryHTML,
		HTMLContent:    htmlContent,
		PlainText:      plainText,
		TotalItems:     len(pool),
		NashItems:      countByCounty(pool, "nash"),
		EdgecombeItems: countByCounty(pool, "edgecombe"),
		WilsonItems:    countByCounty(pool, "wilson"),
		EventCount:     len(layout.Events),
	}
	if layout.TopStory != nil {
		id := layout.TopStory.ID
		create.TopStoryItemID = &id
	}

	digestID, err := a.digestRepo.Create(ctx, create)
	if err != nil {
		return 0, fmt.Errorf("failed to store digest: %w", err)
	}

	if err := a.linkContent(ctx, digestID, layout); err != nil {
		return 0, err
	}

	slog.Info("Digest assembled",
		"digest_id", digestID,
		"total_items", create.TotalItems,
		"events", create.EventCount,
		"subject", subject)

	return digestID, nil
}

// Layout is the deterministic arrangement of items into digest sections.
type Layout struct {
	TopStory *database.ContentItem
	Sections []CountySection
	Events   []database.ContentItem
}

// CountySection is one rendered group of news links.
type CountySection struct {
	County string
	Name   string
	Items  []database.ContentItem
}

func buildLayout(pool, events []database.ContentItem) Layout {
	layout := Layout{TopStory: selectTopStory(pool)}

	buckets := map[string][]database.ContentItem{}
	for _, item := range pool {
		if layout.TopStory != nil && item.ID == layout.TopStory.ID {
			continue
		}
		county := item.County
		if _, known := countyNames[county]; !known || county == "" {
			county = "regional"
		}
		if len(buckets[county]) < maxItemsPerCounty {
			buckets[county] = append(buckets[county], item)
		}
	}

	for _, county := range countyOrder {
		items := buckets[county]
		if len(items) == 0 {
			continue
		}
		layout.Sections = append(layout.Sections, CountySection{
			County: county,
			Name:   countyNames[county],
			Items:  items,
		})
	}

	sorted := make([]database.ContentItem, 0, len(events))
	for _, e := range events {
		if e.EventDate != nil {
			sorted = append(sorted, e)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].EventDate.Equal(*sorted[j].EventDate) {
			return sorted[i].EventDate.Before(*sorted[j].EventDate)
		}
		return sorted[i].EventTime < sorted[j].EventTime
	})
	if len(sorted) > maxCalendarEvents {
		sorted = sorted[:maxCalendarEvents]
	}
	layout.Events = sorted

	return layout
}

// selectTopStory ranks candidates by (hasTitle, category priority, longer
// content first) and takes the best. Given identical input order the choice
// is deterministic.
func selectTopStory(pool []database.ContentItem) *database.ContentItem {
	if len(pool) == 0 {
		return nil
	}

	best := 0
	for i := 1; i < len(pool); i++ {
		if topStoryLess(pool[i], pool[best]) {
			best = i
		}
	}

	top := pool[best]
	return &top
}

func topStoryLess(a, b database.ContentItem) bool {
	aTitle, bTitle := titleScore(a), titleScore(b)
	if aTitle != bTitle {
		return aTitle < bTitle
	}
	aCat, bCat := categoryScore(a), categoryScore(b)
	if aCat != bCat {
		return aCat < bCat
	}
	return len(a.Body) > len(b.Body)
}

func titleScore(item database.ContentItem) int {
	if item.Title != "" {
		return 0
	}
	return 1
}

func categoryScore(item database.ContentItem) int {
	if score, ok := categoryPriority[item.Category]; ok {
		return score
	}
	return 99
}

// linkContent records one link per rendered item. An item rendered in more
// than one place (an event chosen as top story) is linked once, under its
// most prominent section.
func (a *Assembler) linkContent(ctx context.Context, digestID int64, layout Layout) error {
	linked := map[int64]bool{}
	order := 0

	link := func(item database.ContentItem, section string) error {
		if linked[item.ID] {
			return nil
		}
		if err := a.digestRepo.LinkContent(ctx, digestID, item.ID, section, order); err != nil {
			return fmt.Errorf("failed to link item %d: %w", item.ID, err)
		}
		linked[item.ID] = true
		order++
		return nil
	}

	if layout.TopStory != nil {
		if err := link(*layout.TopStory, database.SectionTopStory); err != nil {
			return err
		}
	}
	for _, section := range layout.Sections {
		for _, item := range section.Items {
			if err := link(item, database.SectionNewsLinks); err != nil {
				return err
			}
		}
	}
	for _, event := range layout.Events {
		if err := link(event, database.SectionCalendar); err != nil {
			return err
		}
	}

	return nil
}

func countByCounty(items []database.ContentItem, county string) int {
	count := 0
	for _, item := range items {
		if item.County == county {
			count++
		}
	}
	return count
}
