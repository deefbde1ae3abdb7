package litsource

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
)

// ProbeConfig controls the plain-HTTP fast path.
type ProbeConfig struct {
	UserAgent string
	Timeout   time.Duration
}

// ProbeFetcher executes a single plain GET via Colly. It is the cheap first
// attempt; pages that turn out to need JavaScript are re-fetched with the
// renderer.
type ProbeFetcher struct {
	cfg           ProbeConfig
	baseCollector *colly.Collector
}

// NewProbeFetcher builds a ProbeFetcher.
func NewProbeFetcher(cfg ProbeConfig) *ProbeFetcher {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	c := colly.NewCollector(colly.Async(false))
	c.WithTransport(newHTTPTransport())
	return &ProbeFetcher{
		cfg:           cfg,
		baseCollector: c,
	}
}

// Fetch retrieves url and returns the response body.
func (f *ProbeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.SetRequestTimeout(f.cfg.Timeout)

	var (
		body     []byte
		fetchErr error
	)
	collector.OnResponse(func(r *colly.Response) {
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("probe fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return nil, fmt.Errorf("probe visit failed: %w", err)
		}
		if fetchErr != nil {
			return nil, fmt.Errorf("probe response failed: %w", fetchErr)
		}
		return body, nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
