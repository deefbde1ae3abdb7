package litsource

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Renderer produces the fully-rendered DOM for a URL.
type Renderer interface {
	Render(ctx context.Context, url string) ([]byte, error)
}

// Prober executes the plain-HTTP fast path for a URL.
type Prober interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// ClientConfig wires the Client to the remote search interface.
type ClientConfig struct {
	BaseURL string
}

// Client fetches search and article pages, promoting probe fetches to a
// headless render when the fast-path result looks JavaScript-gated.
type Client struct {
	cfg      ClientConfig
	prober   Prober
	renderer Renderer
	detector *RenderDetector
	logger   *zap.Logger
}

// NewClient constructs a Client. renderer may be nil, in which case the
// probe result is used as-is.
func NewClient(
	cfg ClientConfig,
	prober Prober,
	renderer Renderer,
	detector *RenderDetector,
	logger *zap.Logger,
) *Client {
	return &Client{
		cfg:      cfg,
		prober:   prober,
		renderer: renderer,
		detector: detector,
		logger:   logger,
	}
}

// FetchPage retrieves one results page for (term, page) and returns matching
// candidate links, the next-page flag, and any discovered page bound.
func (c *Client) FetchPage(ctx context.Context, term string, page int) (PageResult, error) {
	pageURL := BuildSearchURL(c.cfg.BaseURL, term, page)
	body, err := c.fetchHTML(ctx, pageURL)
	if err != nil {
		return PageResult{}, fmt.Errorf("fetch results page %d for %q: %w", page, term, err)
	}
	return ParseSearchPage(body, c.cfg.BaseURL, term)
}

// Extract retrieves one article page and parses it into a structured record.
func (c *Client) Extract(ctx context.Context, articleURL string) (*Record, error) {
	body, err := c.fetchHTML(ctx, articleURL)
	if err != nil {
		return nil, fmt.Errorf("fetch article %q: %w", articleURL, err)
	}
	return ParseArticle(body, articleURL)
}

// fetchHTML tries the probe first and promotes to the renderer when the
// probe fails or the body looks like it needs JS.
func (c *Client) fetchHTML(ctx context.Context, url string) ([]byte, error) {
	body, probeErr := c.prober.Fetch(ctx, url)
	if probeErr == nil && !c.detector.NeedsRender(body) {
		return body, nil
	}

	if c.renderer == nil {
		if probeErr != nil {
			return nil, probeErr
		}
		return body, nil
	}

	if probeErr != nil {
		c.logger.Debug("probe fetch failed, promoting to renderer",
			zap.String("url", url), zap.Error(probeErr))
	} else {
		c.logger.Debug("probe body needs rendering", zap.String("url", url))
	}

	rendered, err := c.renderer.Render(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("render %q: %w", url, err)
	}
	return rendered, nil
}
