package parsing

import (
	"context"
	"regexp"
	"strings"

	"github.com/codemem/engine/domain/callgraph"
	"github.com/codemem/engine/domain/codeunit"
	"github.com/codemem/engine/domain/parser"
)

// regexSpec is a lightweight function/call extractor for languages
// without a bundled tree-sitter grammar binding (Ruby, Swift, Kotlin,
// SQL). It is deliberately narrower than the tree-sitter Analyzer: one
// unit per matched function signature, calls resolved by a bare-
// identifier-before-parenthesis heuristic within the function's span.
type regexSpec struct {
	language   parser.Language
	extensions []string
	funcRe     *regexp.Regexp
	// nameGroup is the funcRe submatch index holding the function name.
	nameGroup int
	callRe    *regexp.Regexp
}

// RegexAnalyzer implements parser.Analyzer with regexSpec's patterns.
type RegexAnalyzer struct {
	spec regexSpec
}

func (a *RegexAnalyzer) Language() parser.Language { return a.spec.language }

func (a *RegexAnalyzer) Parse(ctx context.Context, project, path string, content []byte) (parser.ParseResult, error) {
	result := parser.ParseResult{Language: a.spec.language}
	text := string(content)
	lines := strings.Split(text, "\n")

	matches := a.spec.funcRe.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		// No recognizable function shapes: emit the whole file as a
		// single module-kind unit so it still contributes a searchable
		// snippet.
		result.Units = append(result.Units, newUnit(project, path, string(a.spec.language), codeunit.KindModule,
			modulePathFor(path), modulePathFor(path), 1, len(lines), text))
		return result, nil
	}

	type span struct {
		name       string
		start, end int // byte offsets
	}
	var spans []span
	for i, m := range matches {
		name := text[m[2*a.spec.nameGroup]:m[2*a.spec.nameGroup+1]]
		start := m[0]
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		spans = append(spans, span{name: name, start: start, end: end})
	}

	for _, sp := range spans {
		qname := qualify(modulePathFor(path), sp.name)
		startLine := strings.Count(text[:sp.start], "\n") + 1
		endLine := strings.Count(text[:sp.end], "\n") + 1
		snippet := strings.TrimSpace(text[sp.start:sp.end])
		result.Units = append(result.Units, newUnit(project, path, string(a.spec.language), codeunit.KindFunction,
			qname, sp.name, startLine, endLine, snippet))

		for _, cm := range a.spec.callRe.FindAllStringSubmatch(snippet, -1) {
			callee := cm[1]
			if callee == sp.name || callee == "" {
				continue
			}
			result.Calls = append(result.Calls, newCallSite(project, qname, callee, path, startLine, callgraph.CallDirect))
		}
	}
	return result, nil
}

// NewRuby returns the Ruby fallback analyzer: `def name` / `def self.name`.
func NewRuby() *RegexAnalyzer {
	return &RegexAnalyzer{spec: regexSpec{
		language:   parser.LangRuby,
		extensions: []string{".rb"},
		funcRe:     regexp.MustCompile(`(?m)^\s*def\s+(?:self\.)?([A-Za-z_][A-Za-z0-9_?!=]*)`),
		nameGroup:  1,
		callRe:     regexp.MustCompile(`\b([a-z_][A-Za-z0-9_]*)\s*\(`),
	}}
}

// NewSwift returns the Swift fallback analyzer: `func name(`.
func NewSwift() *RegexAnalyzer {
	return &RegexAnalyzer{spec: regexSpec{
		language:   parser.LangSwift,
		extensions: []string{".swift"},
		funcRe:     regexp.MustCompile(`(?m)^\s*(?:public\s+|private\s+|internal\s+|final\s+|static\s+)*func\s+([A-Za-z_][A-Za-z0-9_]*)`),
		nameGroup:  1,
		callRe:     regexp.MustCompile(`\b([A-Za-z_][A-Za-z0-9_]*)\s*\(`),
	}}
}

// NewKotlin returns the Kotlin fallback analyzer: `fun name(`.
func NewKotlin() *RegexAnalyzer {
	return &RegexAnalyzer{spec: regexSpec{
		language:   parser.LangKotlin,
		extensions: []string{".kt", ".kts"},
		funcRe:     regexp.MustCompile(`(?m)^\s*(?:public\s+|private\s+|internal\s+|suspend\s+)*fun\s+([A-Za-z_][A-Za-z0-9_]*)`),
		nameGroup:  1,
		callRe:     regexp.MustCompile(`\b([A-Za-z_][A-Za-z0-9_]*)\s*\(`),
	}}
}

// NewSQL returns the SQL fallback analyzer: one unit per
// CREATE [OR REPLACE] {FUNCTION|PROCEDURE} name.
func NewSQL() *RegexAnalyzer {
	return &RegexAnalyzer{spec: regexSpec{
		language:   parser.LangSQL,
		extensions: []string{".sql"},
		funcRe:     regexp.MustCompile(`(?mi)^\s*CREATE\s+(?:OR\s+REPLACE\s+)?(?:FUNCTION|PROCEDURE)\s+([A-Za-z_][A-Za-z0-9_.]*)`),
		nameGroup:  1,
		callRe:     regexp.MustCompile(`\b([A-Za-z_][A-Za-z0-9_]*)\s*\(`),
	}}
}
