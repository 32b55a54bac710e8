// Package parser defines the parser registry contract: a capability table
// mapping language tags to parser implementations, each implementing a
// small closed set of operations, rather than dynamic dispatch.
package parser

import (
	"context"

	"github.com/codemem/engine/domain/callgraph"
	"github.com/codemem/engine/domain/codeunit"
)

// Language is the closed-ish set of languages the registry may support;
// new values are added by registering an analyzer, not by editing this
// type.
type Language string

const (
	LangPython     Language = "python"
	LangJavaScript Language = "javascript"
	LangTypeScript Language = "typescript"
	LangJava       Language = "java"
	LangGo         Language = "go"
	LangRust       Language = "rust"
	LangC          Language = "c"
	LangCPP        Language = "cpp"
	LangCSharp     Language = "csharp"
	LangSQL        Language = "sql"
	LangRuby       Language = "ruby"
	LangSwift      Language = "swift"
	LangKotlin     Language = "kotlin"
	LangJSON       Language = "json"
	LangYAML       Language = "yaml"
	LangTOML       Language = "toml"
)

// ParseResult is what a single-file parse produces: the detected
// language, the semantic units found (without ids or embeddings; those
// are assigned downstream), and the call sites extracted from them.
type ParseResult struct {
	Language Language
	Units    []codeunit.CodeUnit
	Calls    []callgraph.CallSite
	Impls    []callgraph.InterfaceImplementation
}

// Analyzer is the small, closed set of operations a per-language parser
// implementation provides.
type Analyzer interface {
	// Language reports the language tag this analyzer handles.
	Language() Language

	// Parse produces a ParseResult from file content. project and path
	// are used to build fully-qualified names and file-scoped metadata.
	Parse(ctx context.Context, project, path string, content []byte) (ParseResult, error)
}

// Registry maps file extensions to Analyzers and dispatches Parse calls,
// per the Parser Registry contract.
type Registry interface {
	// Register associates a file extension (including the leading dot,
	// e.g. ".py") with an Analyzer.
	Register(ext string, a Analyzer)

	// Analyzer returns the Analyzer registered for ext, if any.
	Analyzer(ext string) (Analyzer, bool)

	// Parse looks up the analyzer for path's extension and parses
	// content. Returns errs.KindUnsupportedLanguage when no analyzer is
	// registered, errs.KindParseTooLarge when content exceeds the
	// configured byte threshold, and errs.KindParseError (recoverable)
	// when the file is syntactically invalid, in which case an empty
	// ParseResult is returned alongside the error.
	Parse(ctx context.Context, project, path string, content []byte) (ParseResult, error)
}
