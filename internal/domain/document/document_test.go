package document_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/docflow/docflow/internal/domain"
	"github.com/docflow/docflow/internal/domain/document"
	"github.com/docflow/docflow/internal/frontmatter"
)

func TestParseRoundTrip(t *testing.T) {
	codecs := frontmatter.NewRegistry()
	raw := "---\ntitle: hello\ntags:\n  - a\n  - b\n---\nbody text\n"

	doc, err := document.Parse(raw, codecs)
	require.NoError(t, err)
	require.Equal(t, document.SyntaxYAML, doc.Syntax)
	require.Equal(t, "hello", doc.Header["title"])
	require.Equal(t, "body text\n", doc.Body)

	out, err := document.Serialize(doc, codecs.For(doc.Syntax), document.SerializeOpts{})
	require.NoError(t, err)

	reparsed, err := document.Parse(out, codecs)
	require.NoError(t, err)
	require.Equal(t, doc.Header["title"], reparsed.Header["title"])
	require.Equal(t, doc.Body, reparsed.Body)
}

func TestParseNoFenceIsWholeBody(t *testing.T) {
	codecs := frontmatter.NewRegistry()
	doc, err := document.Parse("just plain text\nno frontmatter here\n", codecs)
	require.NoError(t, err)
	require.Equal(t, document.SyntaxNone, doc.Syntax)
	require.Empty(t, doc.Header)
	require.Equal(t, "just plain text\nno frontmatter here\n", doc.Body)
}

func TestParseUnclosedFenceIsParseError(t *testing.T) {
	codecs := frontmatter.NewRegistry()
	_, err := document.Parse("---\ntitle: hello\nbody without closing fence\n", codecs)
	require.Error(t, err)

	var derr *domain.Error
	require.ErrorAs(t, err, &derr)
	require.Equal(t, domain.ErrParseFailed, derr.Code)
}

func TestCanonicalizeIsFixedPoint(t *testing.T) {
	codecs := frontmatter.NewRegistry()
	raw := "---\nb: 2\na: 1\n---\r\nline one  \r\nline two\r\n"

	doc, err := document.Parse(raw, codecs)
	require.NoError(t, err)

	canon := document.Canonicalize(doc, document.CanonicalizeOpts{LineEndings: document.LineEndingsLF, TrimTrailing: true})
	out1, err := document.Serialize(canon, codecs.For(canon.Syntax), document.SerializeOpts{})
	require.NoError(t, err)

	reparsed, err := document.Parse(out1, codecs)
	require.NoError(t, err)
	canon2 := document.Canonicalize(reparsed, document.CanonicalizeOpts{LineEndings: document.LineEndingsLF, TrimTrailing: true})
	out2, err := document.Serialize(canon2, codecs.For(canon2.Syntax), document.SerializeOpts{})
	require.NoError(t, err)

	require.Equal(t, out1, out2)
}

func TestUpdateBodyNoopPreservesRevision(t *testing.T) {
	doc := document.New("/tmp/x.md")
	doc.Body = "same\n"
	doc.Revision = 5

	updated := document.UpdateBody(doc, "same\n", document.UpdateBodyOpts{})
	require.Equal(t, doc.Revision, updated.Revision)
	require.Equal(t, doc.Body, updated.Body)
}

func TestUpdateHeaderMergeIsShallow(t *testing.T) {
	doc := document.New("/tmp/x.md")
	doc.Header = document.Header{"title": "old", "keep": true}

	merged := document.UpdateHeader(doc, document.Header{"title": "new"}, document.HeaderMerge)
	require.Equal(t, "new", merged.Header["title"])
	require.Equal(t, true, merged.Header["keep"])

	replaced := document.UpdateHeader(doc, document.Header{"title": "new"}, document.HeaderReplace)
	require.Equal(t, "new", replaced.Header["title"])
	require.NotContains(t, replaced.Header, "keep")
}

func TestApplyBodyPatchSearchReplace(t *testing.T) {
	doc := document.New("/tmp/x.md")
	doc.Body = "foo foo bar"

	single, err := document.ApplyBodyPatch(doc, document.BodyPatch{Search: &document.SearchReplace{Search: "foo", Replace: "baz"}}, document.UpdateBodyOpts{})
	require.NoError(t, err)
	require.Equal(t, "baz foo bar", single.Body)

	global, err := document.ApplyBodyPatch(doc, document.BodyPatch{Search: &document.SearchReplace{Search: "foo", Replace: "baz", Global: true}}, document.UpdateBodyOpts{})
	require.NoError(t, err)
	require.Equal(t, "baz baz bar", global.Body)
}

func TestApplyBodyPatchRequiresOneOperation(t *testing.T) {
	doc := document.New("/tmp/x.md")
	_, err := document.ApplyBodyPatch(doc, document.BodyPatch{}, document.UpdateBodyOpts{})
	require.Error(t, err)
}
