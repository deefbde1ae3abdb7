// Package store persists drug identities and discovered documents.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("store: not found")

// Section is one classified passage of a document's abstract. Order matters,
// so sections are a slice rather than a map.
type Section struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

// Document is one externally-published record, keyed uniquely by its source
// URL. PrimaryID and SecondaryID hold source-assigned identifiers (e.g. an
// accession number and a DOI) and are independently optional.
type Document struct {
	ID          int64
	SourceURL   string
	PrimaryID   string
	SecondaryID string
	Title       string
	Sections    []Section
	Published   *time.Time
	DrugID      int64
}

// Drug is the internal compound identity documents are linked to.
type Drug struct {
	ID   int64
	Name string
}

// DocumentStore is the persistence surface the crawl controller depends on.
type DocumentStore interface {
	// EnsureDrug resolves the drug identity with the given canonical name,
	// creating it if absent. Concurrent callers racing on the same name
	// converge on one row.
	EnsureDrug(ctx context.Context, name string) (int64, error)

	// HasDocument reports whether a document with the given source URL is
	// already stored.
	HasDocument(ctx context.Context, sourceURL string) (bool, error)

	// UpsertDocument inserts the document, or, when the source URL already
	// exists, re-points its drug association. It returns the document id
	// and whether a new row was created. No other stored field is altered
	// on conflict.
	UpsertDocument(ctx context.Context, doc Document) (int64, bool, error)
}
