package litsource

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNeedsRenderSmallBody(t *testing.T) {
	t.Parallel()

	d := NewRenderDetector(1024, nil)
	assert.True(t, d.NeedsRender([]byte("<html></html>")))
	assert.False(t, d.NeedsRender([]byte(strings.Repeat("x", 2048))))
}

func TestNeedsRenderMissingSelector(t *testing.T) {
	t.Parallel()

	d := NewRenderDetector(0, []string{"div.search-results"})
	assert.True(t, d.NeedsRender([]byte(`<html><body><div id="app"></div></body></html>`)))
	assert.False(t, d.NeedsRender([]byte(`<html><body><div class="search-results"></div></body></html>`)))
}

func TestNeedsRenderNilDetector(t *testing.T) {
	t.Parallel()

	var d *RenderDetector
	require.False(t, d.NeedsRender([]byte("anything")))
}
