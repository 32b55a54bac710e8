package parsing

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/codemem/engine/domain/callgraph"
	"github.com/codemem/engine/domain/codeunit"
	"github.com/codemem/engine/domain/parser"
)

// LanguageSpec is the per-language node-type table the generic Analyzer
// (base.go) walks against. One LanguageSpec is built per supported
// language in languages.go; a single walk engine parameterized by grammar
// differences covers every language while still exercising a real
// per-language grammar for each.
type LanguageSpec struct {
	Language     parser.Language
	Extensions   []string
	Grammar      *sitter.Language

	// FunctionTypes are the node types that denote a function or method
	// definition.
	FunctionTypes []string
	// MethodTypes are the subset of FunctionTypes (or a distinct type)
	// that denote a method rather than a free function; used to pick
	// codeunit.KindMethod over KindFunction.
	MethodTypes []string
	// NameField is the field name holding the identifier within a
	// function/class node (almost always "name").
	NameField string

	// CallTypes are the node types that denote a call expression.
	CallTypes []string
	// CallTargetField is the field name within a call node holding the
	// callee expression.
	CallTargetField string
	// ConstructorCallTypes are call node types that denote object
	// construction (e.g. "object_creation_expression").
	ConstructorCallTypes []string

	// ClassTypes are node types that denote a class/struct/interface-like
	// declaration.
	ClassTypes []string
	// InterfaceLikeTypes are the subset of ClassTypes treated as
	// interface/trait declarations for InterfaceImplementation purposes.
	InterfaceLikeTypes []string
	// BaseListField is the field name holding a class's base/interface
	// list, if the grammar exposes one directly (empty string if the
	// language's grammar does not expose this as a single field).
	BaseListField string

	// CommentType is the comment node type, the argument
	// Walker.PrecedingComment takes. The specs in languages.go leave it
	// empty.
	CommentType string

	// The three visibility/async fields below are recorded per language;
	// the Analyzer in base.go does not read them, so extracted units
	// carry no visibility or async information.
	//
	// PrivatePrefixes: identifiers starting with any of these prefixes
	// count as non-exported (for languages without an explicit visibility
	// keyword, e.g. the Python/Ruby leading underscore convention).
	PrivatePrefixes []string
	// ExportedKeyword: if non-empty, a function is exported only if its
	// source text contains this keyword before the body (e.g. "pub" for
	// Rust, "public" for Java/C#).
	ExportedKeyword string
	// AsyncKeyword marks async functions textually.
	AsyncKeyword string
}

func qualify(modulePath, name string) string {
	if modulePath == "" {
		return name
	}
	return modulePath + "." + name
}

// newCallSite builds a callgraph.CallSite with the given kind.
func newCallSite(project, caller, callee, file string, line int, kind callgraph.CallKind) callgraph.CallSite {
	return callgraph.CallSite{
		Project: project, Caller: caller, Callee: callee,
		CallerFile: file, CallerLine: line, Kind: kind,
	}
}

// newUnit builds a codeunit.CodeUnit from extracted fields.
func newUnit(project, file, lang string, kind codeunit.Kind, qname, name string, startLine, endLine int, snippet string) codeunit.CodeUnit {
	return codeunit.CodeUnit{
		Project: project, FilePath: file, Language: lang, Kind: kind,
		QualifiedName: qname, Name: name, StartLine: startLine, EndLine: endLine, Snippet: snippet,
	}
}
