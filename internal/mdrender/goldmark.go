// Package mdrender implements render.Renderer over goldmark, the
// markdown-to-HTML engine pulled transitively into the teacher's own
// dependency graph (its dashboard UI renders bot-authored markdown).
// No teacher file calls it directly, so there is no call-site to port;
// this package gives that dependency a concrete home in a
// render.Renderer adapter instead of leaving it wired in but unused.
package mdrender

import (
	"bytes"
	"context"
	"fmt"

	"github.com/yuin/goldmark"

	"github.com/docflow/docflow/internal/domain"
	"github.com/docflow/docflow/internal/render"
)

// Renderer converts a document body to an HTML preview via goldmark,
// implementing render.Renderer (spec §6).
type Renderer struct {
	md goldmark.Markdown
}

// New returns a goldmark-backed Renderer with default extensions.
func New() *Renderer {
	return &Renderer{md: goldmark.New()}
}

// Render converts body to HTML. The decision argument is accepted for
// interface conformance; goldmark has no incremental-parse mode, so
// both decisions currently do a full conversion (spec §4.7 treats this
// as a valid renderer behavior: "a renderer may ignore the decision and
// always render fully").
func (r *Renderer) Render(ctx context.Context, body string, decision render.ChangeDecision) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(body), &buf); err != nil {
		return "", domain.NewError(domain.ErrRendererTransient, "markdown conversion failed").WithDetail("cause", err.Error())
	}
	return buf.String(), nil
}

// CacheKey returns a stable per-session, per-revision cache key.
func (r *Renderer) CacheKey(sessionID domain.SessionID, revision uint64) string {
	return fmt.Sprintf("%s@%d", sessionID, revision)
}
