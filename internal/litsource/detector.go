package litsource

import (
	"bytes"

	"github.com/PuerkitoBio/goquery"
)

// RenderDetector decides whether a probe-fetched page needs a headless
// re-fetch, using simple HTML signals: a suspiciously small body, or the
// absence of selectors the parser depends on.
type RenderDetector struct {
	minHTMLBytes int
	selectors    []string
}

// NewRenderDetector constructs a detector with the configured thresholds.
func NewRenderDetector(minBytes int, selectors []string) *RenderDetector {
	return &RenderDetector{
		minHTMLBytes: minBytes,
		selectors:    selectors,
	}
}

// NeedsRender inspects the body for signals that JS rendering is required.
func (d *RenderDetector) NeedsRender(body []byte) bool {
	if d == nil {
		return false
	}
	if d.minHTMLBytes > 0 && len(body) < d.minHTMLBytes {
		return true
	}
	return d.missingSelectors(body)
}

func (d *RenderDetector) missingSelectors(body []byte) bool {
	if len(d.selectors) == 0 || len(body) == 0 {
		return false
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return true
	}
	for _, sel := range d.selectors {
		if sel == "" {
			continue
		}
		if doc.Find(sel).Length() == 0 {
			return true
		}
	}
	return false
}
