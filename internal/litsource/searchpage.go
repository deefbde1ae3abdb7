package litsource

import (
	"bytes"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/openpeptides/litcrawler/internal/match"
)

// Search interface markup contract.
const (
	resultLinkSelector = "a.docsum-title"
	nextButtonSelector = "button.next-page-btn"
	pageInputSelector  = "input#page-number-input"
)

// BuildSearchURL composes the results-page URL for a term and page number.
func BuildSearchURL(baseURL, term string, page int) string {
	q := url.Values{}
	q.Set("term", term)
	q.Set("page", strconv.Itoa(page))
	return strings.TrimRight(baseURL, "/") + "/?" + q.Encode()
}

// ParseSearchPage extracts candidate links from one rendered results page.
// Only links whose anchor text mentions term are retained; this is the first
// of two filtering passes (the second runs against the full extracted title).
func ParseSearchPage(body []byte, baseURL, term string) (PageResult, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return PageResult{}, fmt.Errorf("parse search page: %w", err)
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return PageResult{}, fmt.Errorf("parse base url: %w", err)
	}

	var result PageResult
	doc.Find(resultLinkSelector).Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || href == "" {
			return
		}
		anchor := strings.TrimSpace(sel.Text())
		if !match.Mentions(anchor, term) {
			return
		}
		abs, err := base.Parse(href)
		if err != nil {
			return
		}
		result.Links = append(result.Links, Link{URL: abs.String(), Anchor: anchor})
	})

	next := doc.Find(nextButtonSelector)
	if next.Length() > 0 {
		_, disabled := next.First().Attr("disabled")
		result.HasNext = !disabled
	}

	if input := doc.Find(pageInputSelector); input.Length() > 0 {
		if maxAttr, ok := input.First().Attr("max"); ok {
			if maxPages, err := strconv.Atoi(strings.TrimSpace(maxAttr)); err == nil && maxPages > 0 {
				result.MaxPages = maxPages
			}
		}
	}

	return result, nil
}
