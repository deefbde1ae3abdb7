package checkpoint

import (
	"fmt"
	"sync"
)

// Tracker owns the in-memory progress map shared by all term crawls. Every
// Record call is a locked read-modify-write followed by a whole-map Save, so
// concurrent terms never lose each other's updates.
type Tracker struct {
	mu    sync.Mutex
	pages map[string]int
	store *FileStore
}

// NewTracker loads existing progress from the store.
func NewTracker(store *FileStore) *Tracker {
	return &Tracker{
		pages: store.Load(),
		store: store,
	}
}

// LastPage returns the last completed page for term, or 0 when the term has
// no recorded progress.
func (t *Tracker) LastPage(term string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pages[term]
}

// NextPage returns the page a crawl of term should fetch next: one past the
// last completed page, or page 1 for a term with no recorded progress.
func (t *Tracker) NextPage(term string) int {
	return t.LastPage(term) + 1
}

// Record sets the last completed page for term and persists the full map.
// Progress is monotonic within a run: a page lower than the recorded one is
// ignored.
func (t *Tracker) Record(term string, page int) error {
	if page < 1 {
		return fmt.Errorf("page must be >= 1, got %d", page)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if current, ok := t.pages[term]; ok && page < current {
		return nil
	}
	t.pages[term] = page
	if err := t.store.Save(t.pages); err != nil {
		return fmt.Errorf("persist progress for %q: %w", term, err)
	}
	return nil
}

// Snapshot returns a copy of the progress map.
func (t *Tracker) Snapshot() map[string]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]int, len(t.pages))
	for term, page := range t.pages {
		out[term] = page
	}
	return out
}
