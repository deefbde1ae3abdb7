package scrape

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/openpeptides/litcrawler/internal/metrics"
)

// TermRunner executes one full crawl invocation for a term.
type TermRunner interface {
	Run(ctx context.Context, term string) error
}

// Scheduler runs every term's crawl over a bounded worker pool. All terms
// are submitted up front; a term whose invocation fails or panics is logged
// and simply not completed this run — the next run resumes it from its
// checkpoint. Terms are isolated from each other.
type Scheduler struct {
	runner  TermRunner
	terms   []string
	workers int
	logger  *zap.Logger
}

// NewScheduler constructs a Scheduler with a fixed concurrency ceiling. The
// ceiling bounds simultaneous outbound load against the remote interface; it
// carries no ordering guarantee between terms.
func NewScheduler(runner TermRunner, terms []string, workers int, logger *zap.Logger) *Scheduler {
	if workers <= 0 {
		workers = 3
	}
	return &Scheduler{
		runner:  runner,
		terms:   terms,
		workers: workers,
		logger:  logger,
	}
}

// Run blocks until every submitted term has finished or the context is
// canceled.
func (s *Scheduler) Run(ctx context.Context) {
	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup

	for _, term := range s.terms {
		wg.Add(1)
		go func(term string) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-sem }()
			s.runTerm(ctx, term)
		}(term)
	}
	wg.Wait()
}

func (s *Scheduler) runTerm(ctx context.Context, term string) {
	metrics.IncActiveTerms()
	defer metrics.DecActiveTerms()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("term crawl panicked",
				zap.String("term", term), zap.Any("panic", r))
			metrics.ObserveTerm("panicked")
		}
	}()

	s.logger.Info("term crawl starting", zap.String("term", term))
	if err := s.runner.Run(ctx, term); err != nil {
		s.logger.Error("term crawl failed",
			zap.String("term", term), zap.Error(err))
		metrics.ObserveTerm("failed")
		return
	}
	s.logger.Info("term crawl finished", zap.String("term", term))
	metrics.ObserveTerm("succeeded")
}
