package frontmatter_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/docflow/docflow/internal/domain/document"
	"github.com/docflow/docflow/internal/frontmatter"
)

func TestYAMLCodecRoundTrip(t *testing.T) {
	codec := frontmatter.YAMLCodec{}
	header, err := codec.Parse("title: hello\ncount: 3\n")
	require.NoError(t, err)
	require.Equal(t, "hello", header["title"])
	require.EqualValues(t, 3, header["count"])

	out, err := codec.Serialize(header, document.KeyOrderLexicographic)
	require.NoError(t, err)
	require.Contains(t, out, "title: hello")
	require.Contains(t, out, "count: 3")
}

func TestYAMLCodecEmptyHeader(t *testing.T) {
	codec := frontmatter.YAMLCodec{}
	header, err := codec.Parse("")
	require.NoError(t, err)
	require.Empty(t, header)
}

func TestTOMLCodecRoundTrip(t *testing.T) {
	codec := frontmatter.TOMLCodec{}
	header, err := codec.Parse("title = \"hello\"\ncount = 3\n")
	require.NoError(t, err)
	require.Equal(t, "hello", header["title"])

	out, err := codec.Serialize(header, document.KeyOrderLexicographic)
	require.NoError(t, err)
	require.Contains(t, out, "title")
	require.Contains(t, out, "hello")
}

func TestRegistryDefaultsUnknownSyntaxToYAML(t *testing.T) {
	reg := frontmatter.NewRegistry()
	require.IsType(t, frontmatter.YAMLCodec{}, reg.For(document.SyntaxNone))
	require.IsType(t, frontmatter.YAMLCodec{}, reg.For(document.Syntax("bogus")))
	require.IsType(t, frontmatter.TOMLCodec{}, reg.For(document.SyntaxTOML))
	require.IsType(t, frontmatter.YAMLCodec{}, reg.For(document.SyntaxYAML))
}
