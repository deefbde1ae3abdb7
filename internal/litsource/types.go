// Package litsource fetches and parses pages from the remote literature
// search interface.
package litsource

import (
	"errors"
	"time"
)

// ErrNoTitle marks an article page whose mandatory title field is absent.
// Such documents are skipped outright, never retried within a run.
var ErrNoTitle = errors.New("litsource: article has no title")

// Link is one candidate result discovered on a search page, carried with the
// anchor text it was found under. Links are transient working-set values and
// are never persisted directly.
type Link struct {
	URL    string
	Anchor string
}

// PageResult is the outcome of fetching one search results page.
type PageResult struct {
	// Links holds candidates whose anchor text mentioned the search term,
	// in page order. Non-matching candidates are dropped at this stage.
	Links []Link
	// HasNext reports whether the next-page control is present and enabled.
	HasNext bool
	// MaxPages is the page-count upper bound discovered from page markup,
	// or 0 when the page exposes no such bound.
	MaxPages int
}

// Section is one classified passage of an article abstract, in page order.
type Section struct {
	Name string
	Text string
}

// Record is the structured extraction of one article page.
type Record struct {
	SourceURL   string
	Title       string
	PrimaryID   string
	SecondaryID string
	Sections    []Section
	Published   *time.Time
}
