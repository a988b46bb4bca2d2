package ai

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// ParseFailure is returned when a completion does not carry a JSON object.
// It is an expected outcome, not a fault.
type ParseFailure struct {
	Raw    string
	Reason string
}

func (f *ParseFailure) Error() string { return "parse failure: " + f.Reason }

var markdown = goldmark.New()

// Parse extracts the JSON object embedded in raw and decodes it into T.
// Candidates are fenced ```json blocks first, then balanced {...} spans in
// order of appearance. The first candidate that decodes wins.
func Parse[T any](raw string) (T, error) {
	var out T
	candidates := fencedJSONBlocks(raw)
	candidates = append(candidates, balancedObjects(raw)...)
	if len(candidates) == 0 {
		return out, &ParseFailure{Raw: raw, Reason: "no json object found"}
	}

	var lastErr error
	for _, candidate := range candidates {
		var v T
		if err := json.Unmarshal([]byte(candidate), &v); err != nil {
			lastErr = err
			continue
		}
		return v, nil
	}
	return out, &ParseFailure{Raw: raw, Reason: lastErr.Error()}
}

func fencedJSONBlocks(raw string) []string {
	src := []byte(raw)
	doc := markdown.Parser().Parse(text.NewReader(src))

	var blocks []string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		fence, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}
		lang := strings.ToLower(string(fence.Language(src)))
		if lang != "json" && lang != "" {
			return ast.WalkSkipChildren, nil
		}

		var buf bytes.Buffer
		lines := fence.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			buf.Write(seg.Value(src))
		}
		body := strings.TrimSpace(buf.String())
		if strings.HasPrefix(body, "{") {
			blocks = append(blocks, body)
		}
		return ast.WalkSkipChildren, nil
	})
	return blocks
}

// balancedObjects returns every top-level {...} span whose braces balance,
// ignoring braces inside JSON strings.
func balancedObjects(raw string) []string {
	var spans []string
	for start := strings.IndexByte(raw, '{'); start >= 0; {
		end := matchBrace(raw, start)
		if end < 0 {
			next := strings.IndexByte(raw[start+1:], '{')
			if next < 0 {
				break
			}
			start += next + 1
			continue
		}
		spans = append(spans, raw[start:end+1])
		next := strings.IndexByte(raw[end+1:], '{')
		if next < 0 {
			break
		}
		start = end + 1 + next
	}
	return spans
}

func matchBrace(s string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
