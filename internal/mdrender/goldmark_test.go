package mdrender_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/docflow/docflow/internal/domain"
	"github.com/docflow/docflow/internal/mdrender"
	"github.com/docflow/docflow/internal/render"
)

func TestRenderConvertsMarkdownToHTML(t *testing.T) {
	r := mdrender.New()
	out, err := r.Render(context.Background(), "# hello\n\nworld\n", render.DecisionFull)
	require.NoError(t, err)
	require.Contains(t, out, "<h1>hello</h1>")
	require.Contains(t, out, "<p>world</p>")
}

func TestCacheKeyIncludesSessionAndRevision(t *testing.T) {
	r := mdrender.New()
	key := r.CacheKey(domain.SessionID("s1"), 7)
	require.Equal(t, "s1@7", key)
}
