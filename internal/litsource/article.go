package litsource

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Article page markup contract.
const (
	titleSelector       = "h1.heading-title"
	primaryIDSelector   = "span.identifier.pubmed strong.current-id"
	secondaryIDSelector = "span.identifier.doi a.id-link"
	abstractSelector    = "div.abstract-content p"
	subHeadingSelector  = "strong.sub-title"
	citationSelector    = "span.cit"
)

// Paragraphs 0 and 1 carry fixed roles; later paragraphs are classified by
// their embedded sub-heading label. Unrecognized labels are dropped.
var namedSections = map[string]string{
	"results":     "results",
	"conclusions": "conclusions",
	"conclusion":  "conclusions",
}

var (
	fullDatePattern  = regexp.MustCompile(`(\d{4}) ([A-Z][a-z]{2}) (\d{1,2})`)
	monthDatePattern = regexp.MustCompile(`(\d{4}) ([A-Z][a-z]{2})`)
)

// ParseArticle builds a structured Record from one rendered article page.
// A missing title returns ErrNoTitle: the document is unusable and skipped.
func ParseArticle(body []byte, sourceURL string) (*Record, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse article page: %w", err)
	}

	title := strings.TrimSpace(doc.Find(titleSelector).First().Text())
	if title == "" {
		return nil, ErrNoTitle
	}

	rec := &Record{
		SourceURL:   sourceURL,
		Title:       title,
		PrimaryID:   strings.TrimSpace(doc.Find(primaryIDSelector).First().Text()),
		SecondaryID: strings.TrimSpace(doc.Find(secondaryIDSelector).First().Text()),
		Sections:    parseSections(doc),
		Published:   parsePublished(doc),
	}
	return rec, nil
}

func parseSections(doc *goquery.Document) []Section {
	var sections []Section
	doc.Find(abstractSelector).Each(func(i int, sel *goquery.Selection) {
		label := strings.TrimSpace(sel.Find(subHeadingSelector).First().Text())
		text := paragraphText(sel, label)
		if text == "" {
			return
		}
		switch i {
		case 0:
			sections = append(sections, Section{Name: "background", Text: text})
		case 1:
			sections = append(sections, Section{Name: "methods", Text: text})
		default:
			name, ok := namedSections[normalizeLabel(label)]
			if !ok {
				return
			}
			sections = append(sections, Section{Name: name, Text: text})
		}
	})
	return sections
}

// paragraphText strips the embedded sub-heading label from the paragraph body.
func paragraphText(sel *goquery.Selection, label string) string {
	text := strings.TrimSpace(sel.Text())
	if label != "" {
		text = strings.TrimSpace(strings.TrimPrefix(text, label))
		text = strings.TrimSpace(strings.TrimPrefix(text, ":"))
	}
	return text
}

func normalizeLabel(label string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimSuffix(label, ":")))
}

// parsePublished reads a publication date from the heading citation, trying
// "year month day" then "year month" (day defaults to 1). Absence of both is
// non-fatal; the date is simply nil.
func parsePublished(doc *goquery.Document) *time.Time {
	cit := strings.TrimSpace(doc.Find(citationSelector).First().Text())
	if cit == "" {
		return nil
	}
	if m := fullDatePattern.FindStringSubmatch(cit); m != nil {
		if ts, err := time.Parse("2006 Jan 2", fmt.Sprintf("%s %s %s", m[1], m[2], m[3])); err == nil {
			return &ts
		}
	}
	if m := monthDatePattern.FindStringSubmatch(cit); m != nil {
		if ts, err := time.Parse("2006 Jan", fmt.Sprintf("%s %s", m[1], m[2])); err == nil {
			return &ts
		}
	}
	return nil
}
