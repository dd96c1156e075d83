package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"linkedin-scout/internal/core"
)

// Snapshot is a parsed HTML capture of a profile view. Extraction never
// touches the live page; the pipeline snapshots markup once and every field
// strategy runs against the same document.
type Snapshot struct {
	doc *goquery.Document
}

// Parse builds a snapshot from raw page HTML.
func Parse(html string) (*Snapshot, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page HTML: %w", err)
	}
	return &Snapshot{doc: doc}, nil
}

// TopCard holds the identity fields of the profile header.
type TopCard struct {
	Name     core.Field
	Headline core.Field
	Location core.Field
	Summary  core.Field
}

// TopCard extracts the identity fields. Every field resolves to something;
// misses come back empty at fallback confidence.
func (s *Snapshot) TopCard() TopCard {
	return TopCard{
		Name:     nameStrategy.extract(s.doc),
		Headline: headlineStrategy.extract(s.doc),
		Location: locationStrategy.extract(s.doc),
		Summary:  summaryStrategy.extract(s.doc),
	}
}

// Experience extracts work-history entries. Item selector families are
// tried in order and the first family that yields substantive entries wins;
// families that only match furniture fall through. An empty slice means the
// page shows no parseable experience, it is never nil.
func (s *Snapshot) Experience() []core.WorkEntry {
	for _, sel := range experienceItemSelectors {
		items := s.doc.Find(sel)
		if items.Length() == 0 {
			continue
		}

		entries := make([]core.WorkEntry, 0, items.Length())
		items.Each(func(_ int, item *goquery.Selection) {
			if entry := parseEntry(item); substantive(entry) {
				entries = append(entries, entry)
			}
		})
		if len(entries) > 0 {
			return entries
		}
	}
	return []core.WorkEntry{}
}

func parseEntry(item *goquery.Selection) core.WorkEntry {
	runs := textRuns(item)

	var entry core.WorkEntry
	entry.Title = extractItemField(item, entryTitleSelectors, func() string {
		return titleFromRuns(runs)
	})
	entry.Company = extractItemField(item, entryCompanySelectors, func() string {
		return companyFromRuns(runs, entry.Title.Value)
	})
	if entry.Company.Value != "" {
		entry.Company.Value = trimCompanyQualifier(entry.Company.Value)
	}

	entry.DateRange = extractDateField(item, runs)
	if entry.DateRange.Value != "" {
		entry.StartDate, entry.EndDate, entry.Current = ParseTenure(entry.DateRange.Value)
	}

	entry.Description = extractItemField(item, entryDescriptionSelectors, nil)
	return entry
}

// extractItemField runs an ordered selector chain against one item, then
// the heuristic. Mirrors fieldStrategy.extract but scoped to the item.
func extractItemField(item *goquery.Selection, selectors []string, heuristic func() string) core.Field {
	for _, sel := range selectors {
		if text := cleanText(item.Find(sel).First().Text()); text != "" {
			return core.Field{Value: text, Confidence: core.ConfidencePrimary}
		}
	}
	if heuristic != nil {
		if text := cleanText(heuristic()); text != "" {
			return core.Field{Value: text, Confidence: core.ConfidenceHeuristic}
		}
	}
	return core.Field{Confidence: core.ConfidenceFallback}
}

// extractDateField is the date variant: a selector hit only counts when the
// text is actually date-shaped, since the muted-span styling the selectors
// target is shared with location lines.
func extractDateField(item *goquery.Selection, runs []string) core.Field {
	for _, sel := range entryDateSelectors {
		var hit string
		item.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if t := cleanText(s.Text()); dateLike(t) {
				hit = t
				return false
			}
			return true
		})
		if hit != "" {
			return core.Field{Value: hit, Confidence: core.ConfidencePrimary}
		}
	}
	if t := dateFromRuns(runs); t != "" {
		return core.Field{Value: t, Confidence: core.ConfidenceHeuristic}
	}
	return core.Field{Confidence: core.ConfidenceFallback}
}

// substantive filters out list items that parsed to nothing; the generic
// selector families match navigation and filter chrome on some views.
func substantive(e core.WorkEntry) bool {
	return e.Title.Value != "" || e.Company.Value != "" || e.DateRange.Value != ""
}
