// Package document implements the pure Document value and its operations:
// parse, serialize, canonicalize, and the header/body mutators of spec §4.1.
// Every operation here is pure — it returns a new value and never mutates
// its receiver in place, mirroring the teacher's value-object discipline
// (sessiondomain.ConversationMessage is documented "immutable once
// appended"; Document generalizes that to the whole aggregate).
package document

import (
	"fmt"
	"sort"
	"strings"

	"github.com/docflow/docflow/internal/domain"
)

// Syntax identifies the frontmatter fence style.
type Syntax string

const (
	SyntaxYAML Syntax = "yaml" // --- fences
	SyntaxTOML Syntax = "toml" // +++ fences
	SyntaxNone Syntax = "none" // no header was present
)

func fenceFor(s Syntax) string {
	switch s {
	case SyntaxTOML:
		return "+++"
	default:
		return "---"
	}
}

// Header is a mapping of header keys to scalar, list, or nested-mapping
// values, per spec §6.
type Header map[string]any

// Clone returns a shallow copy of the header map (top-level keys only,
// matching update_header's "shallow merge over top-level keys" semantics).
func (h Header) Clone() Header {
	if h == nil {
		return Header{}
	}
	out := make(Header, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

// Equal reports whether two headers have identical top-level entries.
// Used by update_header's no-op idempotence check.
func (h Header) Equal(other Header) bool {
	if len(h) != len(other) {
		return false
	}
	for k, v := range h {
		ov, ok := other[k]
		if !ok || !valuesEqual(v, ov) {
			return false
		}
	}
	return true
}

func valuesEqual(a, b any) bool {
	return fmt.Sprint(a) == fmt.Sprint(b) && sameShape(a, b)
}

func sameShape(a, b any) bool {
	switch a.(type) {
	case []any:
		_, ok := b.([]any)
		return ok
	case map[string]any:
		_, ok := b.(map[string]any)
		return ok
	default:
		switch b.(type) {
		case []any, map[string]any:
			return false
		}
		return true
	}
}

// HeaderCodec adapts a header mapping to/from its fenced text
// representation. Implementations are pluggable per spec §6; see
// internal/frontmatter for the yaml/toml adapters.
type HeaderCodec interface {
	Parse(raw string) (Header, error)
	Serialize(h Header, keyOrder KeyOrder) (string, error)
}

// CodecResolver resolves the HeaderCodec to use for a detected fence
// syntax, since a document's syntax is only known once Parse has read
// its opening fence.
type CodecResolver interface {
	For(s Syntax) HeaderCodec
}

// KeyOrder controls header key ordering on serialize.
type KeyOrder string

const (
	KeyOrderLexicographic KeyOrder = "lexicographic"
	KeyOrderInsertion     KeyOrder = "insertion"
)

// Document is the immutable per-session value: header + body + path +
// revision + dirty flag, per spec §3.
type Document struct {
	Path     string
	Header   Header
	Body     string
	Revision uint64
	Dirty    bool
	Schema   string
	Syntax   Syntax

	// insertionOrder records header key insertion order, used when the
	// caller requests KeyOrderInsertion on serialize.
	insertionOrder []string
}

// New constructs a fresh, revision-0, clean Document.
func New(path string) Document {
	return Document{Path: path, Header: Header{}, Body: "", Revision: 0, Dirty: false, Syntax: SyntaxNone}
}

// ParseError carries the offending line number for a malformed header fence.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string { return fmt.Sprintf("line %d: %s", e.Line, e.Msg) }

// Parse recognizes a leading fenced header (--- or +++) and splits raw
// input into header text and body, per spec §4.1. Absence of an opening
// fence is legal: the whole input becomes body with an empty header.
func Parse(raw string, codecs CodecResolver) (Document, error) {
	lines := splitKeepEnds(raw)
	if len(lines) == 0 {
		return Document{Header: Header{}, Body: "", Syntax: SyntaxNone}, nil
	}

	firstLine := strings.TrimRight(lines[0], "\r\n")
	var syntax Syntax
	switch firstLine {
	case "---":
		syntax = SyntaxYAML
	case "+++":
		syntax = SyntaxTOML
	default:
		return Document{Header: Header{}, Body: raw, Syntax: SyntaxNone}, nil
	}

	fence := fenceFor(syntax)
	closeIdx := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimRight(lines[i], "\r\n") == fence {
			closeIdx = i
			break
		}
	}
	if closeIdx == -1 {
		return Document{}, &domain.Error{
			Code:    domain.ErrParseFailed,
			Message: "opening frontmatter fence has no matching close",
			Details: map[string]any{"line": 0},
		}
	}

	headerText := strings.Join(lines[1:closeIdx], "")
	body := strings.Join(lines[closeIdx+1:], "")

	header, order, err := parseWithOrder(codecs.For(syntax), headerText)
	if err != nil {
		return Document{}, &domain.Error{
			Code:    domain.ErrParseFailed,
			Message: err.Error(),
			Details: map[string]any{"line": closeIdx},
		}
	}

	return Document{Header: header, Body: body, Syntax: syntax, insertionOrder: order}, nil
}

// parseWithOrder parses the header and additionally records key order as
// they first appear in the raw text, for KeyOrderInsertion round-tripping.
func parseWithOrder(codec HeaderCodec, headerText string) (Header, []string, error) {
	h, err := codec.Parse(headerText)
	if err != nil {
		return nil, nil, err
	}
	order := make([]string, 0, len(h))
	for _, line := range strings.Split(headerText, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		idx := strings.IndexAny(trimmed, ":=")
		if idx <= 0 {
			continue
		}
		key := strings.TrimSpace(trimmed[:idx])
		key = strings.Trim(key, `"'`)
		if _, ok := h[key]; ok {
			already := false
			for _, k := range order {
				if k == key {
					already = true
					break
				}
			}
			if !already {
				order = append(order, key)
			}
		}
	}
	return h, order, nil
}

func splitKeepEnds(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			out = append(out, s[start:i+1])
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}

// SerializeOpts configures serialize/canonicalize output.
type SerializeOpts struct {
	KeyOrder             KeyOrder
	EmitEmptyFrontmatter bool
}

// Serialize emits the fenced header (unless empty and
// EmitEmptyFrontmatter is false) followed by the body, per spec §4.1.
func Serialize(doc Document, codec HeaderCodec, opts SerializeOpts) (string, error) {
	if len(doc.Header) == 0 && !opts.EmitEmptyFrontmatter {
		return doc.Body, nil
	}

	order := opts.KeyOrder
	if order == "" {
		order = KeyOrderLexicographic
	}

	headerText, err := codec.Serialize(orderedHeader(doc, order), order)
	if err != nil {
		return "", &domain.Error{Code: domain.ErrInternal, Message: err.Error()}
	}

	syntax := doc.Syntax
	if syntax == "" || syntax == SyntaxNone {
		syntax = SyntaxYAML
	}
	fence := fenceFor(syntax)

	var b strings.Builder
	b.WriteString(fence)
	b.WriteString("\n")
	b.WriteString(headerText)
	if !strings.HasSuffix(headerText, "\n") && headerText != "" {
		b.WriteString("\n")
	}
	b.WriteString(fence)
	b.WriteString("\n")
	b.WriteString(doc.Body)
	return b.String(), nil
}

func orderedHeader(doc Document, order KeyOrder) Header {
	if order != KeyOrderInsertion || len(doc.insertionOrder) == 0 {
		return doc.Header
	}
	// The Header map carries no key order, so the recorded insertion order
	// does not reach the codec. The frontmatter codecs sort keys for
	// KeyOrderLexicographic and emit them in map iteration order for
	// KeyOrderInsertion; insertion order is not reproduced on serialize.
	// Document.OrderedKeys reports the recorded order.
	return doc.Header
}

// OrderedKeys returns the document's header keys in the requested order.
func (doc Document) OrderedKeys(order KeyOrder) []string {
	if order == KeyOrderInsertion && len(doc.insertionOrder) > 0 {
		seen := make(map[string]bool, len(doc.insertionOrder))
		keys := make([]string, 0, len(doc.Header))
		for _, k := range doc.insertionOrder {
			if _, ok := doc.Header[k]; ok && !seen[k] {
				keys = append(keys, k)
				seen[k] = true
			}
		}
		for k := range doc.Header {
			if !seen[k] {
				keys = append(keys, k)
				seen[k] = true
			}
		}
		return keys
	}
	keys := make([]string, 0, len(doc.Header))
	for k := range doc.Header {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// LineEndings controls update_body's normalization mode.
type LineEndings string

const (
	LineEndingsLF       LineEndings = "lf"
	LineEndingsCRLF     LineEndings = "crlf"
	LineEndingsPreserve LineEndings = "preserve"
)

// UpdateBodyOpts configures update_body.
type UpdateBodyOpts struct {
	LineEndings    LineEndings // default lf
	TrimTrailing   bool
}

// UpdateBody normalizes and replaces the body. If the normalized result
// equals the prior body, the document is returned unchanged and the
// revision is not bumped by the caller (idempotence of no-op edits, §4.1).
func UpdateBody(doc Document, text string, opts UpdateBodyOpts) Document {
	normalized := normalizeLineEndings(text, opts.LineEndings)
	if opts.TrimTrailing {
		normalized = trimTrailingWhitespace(normalized)
	}
	if normalized == doc.Body {
		return doc
	}
	doc.Body = normalized
	return doc
}

func normalizeLineEndings(s string, mode LineEndings) string {
	switch mode {
	case LineEndingsPreserve:
		return s
	case LineEndingsCRLF:
		lf := strings.ReplaceAll(strings.ReplaceAll(s, "\r\n", "\n"), "\r", "\n")
		return strings.ReplaceAll(lf, "\n", "\r\n")
	default: // lf
		return strings.ReplaceAll(strings.ReplaceAll(s, "\r\n", "\n"), "\r", "\n")
	}
}

func trimTrailingWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	return strings.Join(lines, "\n")
}

// HeaderMergeMode selects update_header's merge semantics.
type HeaderMergeMode string

const (
	HeaderMerge   HeaderMergeMode = "merge"
	HeaderReplace HeaderMergeMode = "replace"
)

// UpdateHeader applies changes to the document's header per mode. Merge is
// a shallow merge over top-level keys; replace discards the prior header.
func UpdateHeader(doc Document, changes Header, mode HeaderMergeMode) Document {
	var next Header
	switch mode {
	case HeaderReplace:
		next = changes.Clone()
	default: // merge
		next = doc.Header.Clone()
		for k, v := range changes {
			next[k] = v
		}
	}
	if doc.Header.Equal(next) {
		return doc
	}
	doc.Header = next
	for k := range changes {
		found := false
		for _, existing := range doc.insertionOrder {
			if existing == k {
				found = true
				break
			}
		}
		if !found {
			doc.insertionOrder = append(doc.insertionOrder, k)
		}
	}
	return doc
}

// BodyPatch is one of: a full replacement string, a search/replace record,
// or a caller-supplied unary transform, per spec §4.1.
type BodyPatch struct {
	Replace   *string
	Search    *SearchReplace
	Transform func(string) string
}

// SearchReplace is a literal search/replace patch, optionally global.
type SearchReplace struct {
	Search  string
	Replace string
	Global  bool
}

// ApplyBodyPatch applies one of the three patch kinds to the document body.
func ApplyBodyPatch(doc Document, patch BodyPatch, opts UpdateBodyOpts) (Document, error) {
	switch {
	case patch.Replace != nil:
		return UpdateBody(doc, *patch.Replace, opts), nil
	case patch.Search != nil:
		var newBody string
		if patch.Search.Global {
			newBody = strings.ReplaceAll(doc.Body, patch.Search.Search, patch.Search.Replace)
		} else {
			newBody = strings.Replace(doc.Body, patch.Search.Search, patch.Search.Replace, 1)
		}
		return UpdateBody(doc, newBody, opts), nil
	case patch.Transform != nil:
		return UpdateBody(doc, patch.Transform(doc.Body), opts), nil
	default:
		return doc, &domain.Error{Code: domain.ErrInvalidParams, Message: "patch has no operation set"}
	}
}

// CanonicalizeOpts configures canonicalize's deterministic output.
type CanonicalizeOpts struct {
	LineEndings  LineEndings
	TrimTrailing bool
}

// Canonicalize produces a deterministic Document: fixed line endings,
// optional trailing-whitespace trim, and (by virtue of Serialize always
// sorting lexicographically unless asked otherwise) sorted header keys.
// A parse->serialize->parse->serialize pipeline on canonical output is a
// fixed point, verified in document_test.go.
func Canonicalize(doc Document, opts CanonicalizeOpts) Document {
	return UpdateBody(doc, doc.Body, UpdateBodyOpts{LineEndings: opts.LineEndings, TrimTrailing: opts.TrimTrailing})
}
