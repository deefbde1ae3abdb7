package scrape

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openpeptides/litcrawler/internal/checkpoint"
	"github.com/openpeptides/litcrawler/internal/litsource"
	"github.com/openpeptides/litcrawler/internal/metrics"
	"github.com/openpeptides/litcrawler/internal/store"
)

func TestMain(m *testing.M) {
	metrics.Init()
	m.Run()
}

type fakePageFetcher struct {
	mu    sync.Mutex
	pages map[int]litsource.PageResult
	errOn map[int]error
	calls []int
}

func (f *fakePageFetcher) FetchPage(_ context.Context, _ string, page int) (litsource.PageResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, page)
	if err, ok := f.errOn[page]; ok {
		return litsource.PageResult{}, err
	}
	return f.pages[page], nil
}

type fakeExtractor struct {
	mu      sync.Mutex
	records map[string]*litsource.Record
	errs    map[string]error
	calls   []string
}

func (f *fakeExtractor) Extract(_ context.Context, url string) (*litsource.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	if err, ok := f.errs[url]; ok {
		return nil, err
	}
	if rec, ok := f.records[url]; ok {
		return rec, nil
	}
	return nil, litsource.ErrNoTitle
}

type fakeDocStore struct {
	mu       sync.Mutex
	drugs    map[string]int64
	docs     map[string]store.Document
	nextDrug int64
	nextDoc  int64
}

func newFakeDocStore() *fakeDocStore {
	return &fakeDocStore{
		drugs: make(map[string]int64),
		docs:  make(map[string]store.Document),
	}
}

func (f *fakeDocStore) EnsureDrug(_ context.Context, name string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id, ok := f.drugs[name]; ok {
		return id, nil
	}
	f.nextDrug++
	f.drugs[name] = f.nextDrug
	return f.nextDrug, nil
}

func (f *fakeDocStore) HasDocument(_ context.Context, sourceURL string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.docs[sourceURL]
	return ok, nil
}

func (f *fakeDocStore) UpsertDocument(_ context.Context, doc store.Document) (int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.docs[doc.SourceURL]; ok {
		existing.DrugID = doc.DrugID
		f.docs[doc.SourceURL] = existing
		return existing.ID, false, nil
	}
	f.nextDoc++
	doc.ID = f.nextDoc
	f.docs[doc.SourceURL] = doc
	return doc.ID, true, nil
}

type fakeFailureSink struct {
	mu    sync.Mutex
	lines []string
}

func (f *fakeFailureSink) Record(term, link, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lines = append(f.lines, fmt.Sprintf("%s %s %s", term, link, reason))
}

func newTestTracker(t *testing.T) *checkpoint.Tracker {
	t.Helper()
	return checkpoint.NewTracker(checkpoint.NewFileStore(filepath.Join(t.TempDir(), "cp.json")))
}

func newTestController(
	fetcher PageFetcher,
	extractor Extractor,
	docs store.DocumentStore,
	tracker *checkpoint.Tracker,
	sink FailureSink,
) *Controller {
	return NewController(fetcher, extractor, docs, tracker, sink, NopPacer{},
		ControllerConfig{BreakerThreshold: 3}, zap.NewNop())
}

func matchingRecord(url, title string) *litsource.Record {
	return &litsource.Record{SourceURL: url, Title: title}
}

func linkList(urls ...string) []litsource.Link {
	links := make([]litsource.Link, 0, len(urls))
	for _, u := range urls {
		links = append(links, litsource.Link{URL: u, Anchor: u})
	}
	return links
}

// The end-to-end scenario: empty checkpoint, one page with two matching
// links, both extract successfully. Two documents end up linked to one
// newly created drug identity, checkpoint records page 1, failure log is
// empty.
func TestControllerEndToEnd(t *testing.T) {
	t.Parallel()

	fetcher := &fakePageFetcher{
		pages: map[int]litsource.PageResult{
			1: {Links: linkList("https://lit.example/1/", "https://lit.example/2/"), HasNext: false},
		},
	}
	extractor := &fakeExtractor{
		records: map[string]*litsource.Record{
			"https://lit.example/1/": matchingRecord("https://lit.example/1/", "BPC-157 and tendon healing"),
			"https://lit.example/2/": matchingRecord("https://lit.example/2/", "Gastric effects of BPC 157"),
		},
	}
	docs := newFakeDocStore()
	tracker := newTestTracker(t)
	sink := &fakeFailureSink{}

	c := newTestController(fetcher, extractor, docs, tracker, sink)
	require.NoError(t, c.Run(context.Background(), "bpc-157"))

	require.Equal(t, 1, tracker.LastPage("bpc-157"))
	require.Len(t, docs.docs, 2)
	require.Len(t, docs.drugs, 1)
	drugID := docs.drugs["bpc-157"]
	for _, doc := range docs.docs {
		require.Equal(t, drugID, doc.DrugID)
	}
	require.Empty(t, sink.lines)
}

func TestControllerPaginatesUntilNoNext(t *testing.T) {
	t.Parallel()

	fetcher := &fakePageFetcher{
		pages: map[int]litsource.PageResult{
			1: {Links: linkList("https://lit.example/a/"), HasNext: true},
			2: {Links: linkList("https://lit.example/b/", "https://lit.example/a/"), HasNext: true},
			3: {Links: linkList("https://lit.example/c/"), HasNext: false},
		},
	}
	extractor := &fakeExtractor{records: map[string]*litsource.Record{}}
	docs := newFakeDocStore()
	tracker := newTestTracker(t)
	sink := &fakeFailureSink{}

	c := newTestController(fetcher, extractor, docs, tracker, sink)
	links := c.collectLinks(context.Background(), "bpc-157")

	require.Equal(t, []int{1, 2, 3}, fetcher.calls)
	// Duplicate of /a/ on page 2 is ignored; first-seen order preserved.
	require.Equal(t, linkList("https://lit.example/a/", "https://lit.example/b/", "https://lit.example/c/"), links)
	require.Equal(t, 3, tracker.LastPage("bpc-157"))
}

// A discovered page bound stops pagination even while has_next reads true.
func TestControllerStopsAtDiscoveredPageBound(t *testing.T) {
	t.Parallel()

	fetcher := &fakePageFetcher{
		pages: map[int]litsource.PageResult{
			1: {Links: linkList("https://lit.example/a/"), HasNext: true, MaxPages: 2},
			2: {Links: linkList("https://lit.example/b/"), HasNext: true},
		},
	}
	c := newTestController(fetcher, &fakeExtractor{}, newFakeDocStore(), newTestTracker(t), &fakeFailureSink{})

	links := c.collectLinks(context.Background(), "bpc-157")
	require.Equal(t, []int{1, 2}, fetcher.calls)
	require.Len(t, links, 2)
}

// Page fetch failure on page N leaves the checkpoint at N-1 and the next
// run resumes at page N.
func TestControllerCheckpointSurvivesPageFailure(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cp.json")
	tracker := checkpoint.NewTracker(checkpoint.NewFileStore(path))

	fetcher := &fakePageFetcher{
		pages: map[int]litsource.PageResult{
			1: {Links: linkList("https://lit.example/a/"), HasNext: true},
			2: {Links: linkList("https://lit.example/b/"), HasNext: true},
		},
		errOn: map[int]error{3: errors.New("connection reset")},
	}
	c := newTestController(fetcher, &fakeExtractor{}, newFakeDocStore(), tracker, &fakeFailureSink{})

	links := c.collectLinks(context.Background(), "bpc-157")
	require.Len(t, links, 2)
	require.Equal(t, 2, tracker.LastPage("bpc-157"))

	// A fresh run against the persisted file resumes at the failed page.
	restarted := checkpoint.NewTracker(checkpoint.NewFileStore(path))
	require.Equal(t, 3, restarted.NextPage("bpc-157"))
}

// Three consecutive extraction failures trip the breaker; the fourth link is
// never visited.
func TestControllerBreakerTrips(t *testing.T) {
	t.Parallel()

	links := linkList(
		"https://lit.example/1/",
		"https://lit.example/2/",
		"https://lit.example/3/",
		"https://lit.example/4/",
	)
	extractor := &fakeExtractor{
		errs: map[string]error{
			"https://lit.example/1/": errors.New("fetch failed"),
			"https://lit.example/2/": litsource.ErrNoTitle,
			"https://lit.example/3/": errors.New("fetch failed"),
		},
		records: map[string]*litsource.Record{
			"https://lit.example/4/": matchingRecord("https://lit.example/4/", "BPC-157 study"),
		},
	}
	docs := newFakeDocStore()
	sink := &fakeFailureSink{}
	c := newTestController(&fakePageFetcher{}, extractor, docs, newTestTracker(t), sink)

	c.processLinks(context.Background(), "bpc-157", links)

	require.Equal(t, []string{
		"https://lit.example/1/",
		"https://lit.example/2/",
		"https://lit.example/3/",
	}, extractor.calls)
	require.Empty(t, docs.docs)
	require.Len(t, sink.lines, 3)
}

// A single success resets the consecutive-failure counter, so
// fail-fail-success-fail-fail-fail only trips on the second run of three.
func TestControllerBreakerResetsOnSuccess(t *testing.T) {
	t.Parallel()

	urls := []string{
		"https://lit.example/1/",
		"https://lit.example/2/",
		"https://lit.example/3/",
		"https://lit.example/4/",
		"https://lit.example/5/",
		"https://lit.example/6/",
		"https://lit.example/7/",
	}
	extractor := &fakeExtractor{
		errs: map[string]error{
			urls[0]: errors.New("fetch failed"),
			urls[1]: errors.New("fetch failed"),
			urls[3]: errors.New("fetch failed"),
			urls[4]: errors.New("fetch failed"),
			urls[5]: errors.New("fetch failed"),
		},
		records: map[string]*litsource.Record{
			urls[2]: matchingRecord(urls[2], "BPC-157 meta-analysis"),
			urls[6]: matchingRecord(urls[6], "BPC-157 follow-up"),
		},
	}
	docs := newFakeDocStore()
	c := newTestController(&fakePageFetcher{}, extractor, docs, newTestTracker(t), &fakeFailureSink{})

	c.processLinks(context.Background(), "bpc-157", linkList(urls...))

	// Breaker trips after urls[5]; urls[6] is never visited.
	require.Equal(t, urls[:6], extractor.calls)
	require.Len(t, docs.docs, 1)
}

// A title that does not mention the term counts like an extraction failure.
func TestControllerTitleMismatchCountsTowardBreaker(t *testing.T) {
	t.Parallel()

	links := linkList("https://lit.example/1/", "https://lit.example/2/", "https://lit.example/3/", "https://lit.example/4/")
	extractor := &fakeExtractor{
		records: map[string]*litsource.Record{
			"https://lit.example/1/": matchingRecord("https://lit.example/1/", "Unrelated compound study"),
			"https://lit.example/2/": matchingRecord("https://lit.example/2/", "Another unrelated paper"),
			"https://lit.example/3/": matchingRecord("https://lit.example/3/", "Still nothing relevant"),
			"https://lit.example/4/": matchingRecord("https://lit.example/4/", "BPC-157 study"),
		},
	}
	docs := newFakeDocStore()
	sink := &fakeFailureSink{}
	c := newTestController(&fakePageFetcher{}, extractor, docs, newTestTracker(t), sink)

	c.processLinks(context.Background(), "bpc-157", links)

	require.Len(t, extractor.calls, 3)
	require.Empty(t, docs.docs)
	require.Len(t, sink.lines, 3)
}

// Already-stored documents are skipped before extraction: idempotent re-run
// protection.
func TestControllerSkipsStoredDocuments(t *testing.T) {
	t.Parallel()

	docs := newFakeDocStore()
	drugID, err := docs.EnsureDrug(context.Background(), "bpc-157")
	require.NoError(t, err)
	_, _, err = docs.UpsertDocument(context.Background(), store.Document{
		SourceURL: "https://lit.example/known/",
		Title:     "BPC-157 known study",
		DrugID:    drugID,
	})
	require.NoError(t, err)

	extractor := &fakeExtractor{
		records: map[string]*litsource.Record{
			"https://lit.example/new/": matchingRecord("https://lit.example/new/", "New BPC-157 study"),
		},
	}
	c := newTestController(&fakePageFetcher{}, extractor, docs, newTestTracker(t), &fakeFailureSink{})

	c.processLinks(context.Background(), "bpc-157", linkList("https://lit.example/known/", "https://lit.example/new/"))

	require.Equal(t, []string{"https://lit.example/new/"}, extractor.calls)
	require.Len(t, docs.docs, 2)
}

// Links collected before a page failure are still processed.
func TestControllerProcessesPartialCollectionAfterPageFailure(t *testing.T) {
	t.Parallel()

	fetcher := &fakePageFetcher{
		pages: map[int]litsource.PageResult{
			1: {Links: linkList("https://lit.example/1/"), HasNext: true},
		},
		errOn: map[int]error{2: errors.New("timeout")},
	}
	extractor := &fakeExtractor{
		records: map[string]*litsource.Record{
			"https://lit.example/1/": matchingRecord("https://lit.example/1/", "BPC-157 pilot"),
		},
	}
	docs := newFakeDocStore()
	c := newTestController(fetcher, extractor, docs, newTestTracker(t), &fakeFailureSink{})

	require.NoError(t, c.Run(context.Background(), "bpc-157"))
	require.Len(t, docs.docs, 1)
}

func TestControllerHonorsCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fetcher := &fakePageFetcher{
		pages: map[int]litsource.PageResult{1: {Links: linkList("https://lit.example/1/")}},
	}
	c := newTestController(fetcher, &fakeExtractor{}, newFakeDocStore(), newTestTracker(t), &fakeFailureSink{})

	err := c.Run(ctx, "bpc-157")
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, fetcher.calls)
}
