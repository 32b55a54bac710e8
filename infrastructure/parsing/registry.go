package parsing

import (
	"context"

	"github.com/codemem/engine/domain/parser"
	"github.com/codemem/engine/errs"
)

// Registry is the process-wide extension -> Analyzer dispatch table.
type Registry struct {
	analyzers    map[string]parser.Analyzer
	maxFileBytes int64
}

// New builds an empty Registry. maxFileBytes enforces
// errs.KindParseTooLarge; pass 0 to disable the check.
func New(maxFileBytes int64) *Registry {
	return &Registry{analyzers: make(map[string]parser.Analyzer), maxFileBytes: maxFileBytes}
}

// NewDefault builds a Registry pre-populated with every analyzer this
// package ships: one tree-sitter Analyzer per TreeSitterSpecs() entry,
// the regex fallback analyzers for Ruby/Swift/Kotlin/SQL, and the opaque
// analyzers for JSON/YAML/TOML.
func NewDefault(maxFileBytes int64) *Registry {
	r := New(maxFileBytes)
	for _, spec := range TreeSitterSpecs() {
		a := NewAnalyzer(spec)
		for _, ext := range spec.Extensions {
			r.Register(ext, a)
		}
	}
	for _, a := range []parser.Analyzer{NewRuby(), NewSwift(), NewKotlin(), NewSQL()} {
		exts := extensionsOf(a)
		for _, ext := range exts {
			r.Register(ext, a)
		}
	}
	for _, a := range []*OpaqueAnalyzer{NewJSON(), NewYAML(), NewTOML()} {
		for _, ext := range a.extensions {
			r.Register(ext, a)
		}
	}
	return r
}

func extensionsOf(a parser.Analyzer) []string {
	if ra, ok := a.(*RegexAnalyzer); ok {
		return ra.spec.extensions
	}
	return nil
}

func (r *Registry) Register(ext string, a parser.Analyzer) {
	r.analyzers[ext] = a
}

func (r *Registry) Analyzer(ext string) (parser.Analyzer, bool) {
	a, ok := r.analyzers[ext]
	return a, ok
}

// Parse dispatches to the registered analyzer for path's extension. See
// parser.Registry for the error-kind contract.
func (r *Registry) Parse(ctx context.Context, project, path string, content []byte) (parser.ParseResult, error) {
	if r.maxFileBytes > 0 && int64(len(content)) > r.maxFileBytes {
		return parser.ParseResult{}, errs.ParseTooLarge(path, int64(len(content)), r.maxFileBytes)
	}
	ext := extOf(path)
	a, ok := r.analyzers[ext]
	if !ok {
		return parser.ParseResult{}, errs.UnsupportedLanguage(ext)
	}
	result, err := a.Parse(ctx, project, path, content)
	if err != nil {
		if errs.Is(err, errs.KindParseError) {
			// Recoverable: an empty ParseResult is returned alongside
			// the error so directory-level indexing can continue.
			return parser.ParseResult{}, err
		}
		return parser.ParseResult{}, errs.Wrap(errs.KindParseError, "parsing.Parse", err)
	}
	return result, nil
}

func extOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		switch path[i] {
		case '.':
			return path[i:]
		case '/', '\\':
			return ""
		}
	}
	return ""
}
