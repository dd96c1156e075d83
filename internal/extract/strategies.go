package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"linkedin-scout/internal/core"
)

// Revision tags the selector set below as one unit. Bump it when LinkedIn
// ships a layout change and the lists are updated; it is logged with every
// job so stored results can be traced back to the selector generation that
// produced them.
const Revision = "2026-06"

// fieldStrategy is an ordered fallback chain for one profile field:
// structure-specific selectors first, most specific to least, then an
// optional heuristic scan. The first hit wins and carries its confidence.
type fieldStrategy struct {
	field     string
	selectors []string
	heuristic func(doc *goquery.Document) string
}

func (fs fieldStrategy) extract(doc *goquery.Document) core.Field {
	for _, sel := range fs.selectors {
		if text := cleanText(doc.Find(sel).First().Text()); text != "" {
			return core.Field{Value: text, Confidence: core.ConfidencePrimary}
		}
	}
	if fs.heuristic != nil {
		if text := cleanText(fs.heuristic(doc)); text != "" {
			return core.Field{Value: text, Confidence: core.ConfidenceHeuristic}
		}
	}
	return core.Field{Confidence: core.ConfidenceFallback}
}

var nameStrategy = fieldStrategy{
	field: "name",
	selectors: []string{
		"main section h1.text-heading-xlarge",
		"h1.text-heading-xlarge",
		"div.pv-text-details__left-panel h1",
		"h1.top-card-layout__title",
	},
	heuristic: firstHeadingText,
}

var headlineStrategy = fieldStrategy{
	field: "headline",
	selectors: []string{
		"main div.text-body-medium.break-words",
		"div.pv-text-details__left-panel div.text-body-medium",
		"h2.top-card-layout__headline",
	},
	heuristic: textNearHeading,
}

var locationStrategy = fieldStrategy{
	field: "location",
	selectors: []string{
		"main span.text-body-small.inline.t-black--light.break-words",
		"div.pv-text-details__left-panel--full-width span.text-body-small",
		"span.top-card__subline-item",
	},
}

var summaryStrategy = fieldStrategy{
	field: "summary",
	selectors: []string{
		"div#about ~ div div.inline-show-more-text span[aria-hidden='true']",
		"section.pv-about-section p",
		"section.summary div.core-section-container__content p",
	},
}

// experienceItemSelectors locate individual work-history items. Anchored
// variants come before the generic ones; on the main profile view the
// generic list classes also match education and skills.
var experienceItemSelectors = []string{
	"section#experience-section > ul > li",
	"div#experience ~ div > ul > li",
	"li.pvs-list__paged-list-item",
	"main section li.artdeco-list__item",
	"div[data-view-name='profile-component-entity']",
}

var entryTitleSelectors = []string{
	"span.mr1.t-bold > span[aria-hidden='true']",
	"div.display-flex.align-items-center span[aria-hidden='true']",
	"h3.t-16.t-black.t-bold",
	"h3",
}

// The company line shares t-14/t-normal with the date line; :not filters
// out the muted date styling.
var entryCompanySelectors = []string{
	"span.t-14.t-normal:not(.t-black--light) > span[aria-hidden='true']",
	"p.pv-entity__secondary-title",
}

var entryDateSelectors = []string{
	"span.t-14.t-normal.t-black--light > span[aria-hidden='true']",
	"h4.pv-entity__date-range span:nth-child(2)",
	"span.date-range",
}

var entryDescriptionSelectors = []string{
	"div.inline-show-more-text > span[aria-hidden='true']",
	"div.pv-entity__description",
}

// firstHeadingText grabs the most prominent heading on the page; whatever
// LinkedIn renames its classes to, the profile name stays an h1.
func firstHeadingText(doc *goquery.Document) string {
	if t := cleanText(doc.Find("main h1").First().Text()); t != "" {
		return t
	}
	return cleanText(doc.Find("h1").First().Text())
}

// textNearHeading scans leaf elements around the name heading for the first
// plausible headline-sized text run.
func textNearHeading(doc *goquery.Document) string {
	heading := doc.Find("h1").First()
	if heading.Length() == 0 {
		return ""
	}
	name := cleanText(heading.Text())

	scope := heading.Closest("section")
	if scope.Length() == 0 {
		scope = doc.Selection
	}

	var out string
	scope.Find("div").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if s.Children().Length() > 0 {
			return true
		}
		t := cleanText(s.Text())
		if t == "" || t == name {
			return true
		}
		if len(t) >= 3 && len(t) <= 220 && !strings.Contains(strings.ToLower(t), "connection") {
			out = t
			return false
		}
		return true
	})
	return out
}

// textRuns collects the visible text runs of an experience item in document
// order. LinkedIn renders each run twice (a visible aria-hidden span paired
// with a visually-hidden copy for screen readers); preferring the
// aria-hidden spans keeps each run single. When a layout drops that pattern
// entirely, fall back to leaf elements and collapse the resulting pairs.
func textRuns(item *goquery.Selection) []string {
	var runs []string
	item.Find("span[aria-hidden='true']").Each(func(_ int, s *goquery.Selection) {
		if t := cleanText(s.Text()); t != "" {
			runs = append(runs, t)
		}
	})

	if len(runs) == 0 {
		item.Find("span, p, div, h3, h4").Each(func(_ int, s *goquery.Selection) {
			if s.Children().Length() > 0 {
				return
			}
			if t := cleanText(s.Text()); t != "" {
				runs = append(runs, t)
			}
		})
	}

	return dedupeRuns(runs)
}

// dedupeRuns collapses consecutive duplicates left by double-rendered text.
func dedupeRuns(runs []string) []string {
	out := runs[:0]
	prev := ""
	for _, r := range runs {
		if r == prev {
			continue
		}
		out = append(out, r)
		prev = r
	}
	return out
}

// titleFromRuns picks the first short non-date text run, the shape a job
// title takes in every layout seen so far.
func titleFromRuns(runs []string) string {
	for _, r := range runs {
		if len(r) >= 2 && len(r) <= 80 && !dateLike(r) {
			return r
		}
	}
	return ""
}

// companyFromRuns picks the first plausible run after the title.
func companyFromRuns(runs []string, title string) string {
	pastTitle := title == ""
	for _, r := range runs {
		if !pastTitle {
			if r == title {
				pastTitle = true
			}
			continue
		}
		if !dateLike(r) && len(r) >= 2 && len(r) <= 100 {
			return trimCompanyQualifier(r)
		}
	}
	return ""
}

// dateFromRuns picks the first date-shaped text run.
func dateFromRuns(runs []string) string {
	for _, r := range runs {
		if dateLike(r) {
			return r
		}
	}
	return ""
}

var (
	monthWordRe = regexp.MustCompile(`(?i)\b(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\b`)
	yearRe      = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	presentRe   = regexp.MustCompile(`(?i)\b(present|current)\b`)
)

// dateLike reports whether a text run looks like a tenure range rather than
// a title or company name.
func dateLike(s string) bool {
	if !yearRe.MatchString(s) {
		return false
	}
	return monthWordRe.MatchString(s) || presentRe.MatchString(s) || strings.ContainsAny(s, "-–—·")
}

// trimCompanyQualifier strips the employment-type suffix LinkedIn appends to
// company lines ("Acme Corp · Full-time").
func trimCompanyQualifier(s string) string {
	if i := strings.Index(s, "·"); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}

// cleanText normalizes whitespace; profile markup is full of layout
// newlines and non-breaking indentation.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
