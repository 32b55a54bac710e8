package parsing

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/codemem/engine/domain/callgraph"
	"github.com/codemem/engine/domain/codeunit"
	"github.com/codemem/engine/domain/parser"
	"github.com/codemem/engine/errs"
)

// Analyzer is the generic, table-driven implementation of
// parser.Analyzer: it parses one file with the language's tree-sitter
// grammar and walks the resulting tree against the LanguageSpec's
// node-type tables to emit CodeUnits, CallSites, and
// InterfaceImplementations.
type Analyzer struct {
	spec   LanguageSpec
	walker Walker
}

// NewAnalyzer builds an Analyzer for the given LanguageSpec.
func NewAnalyzer(spec LanguageSpec) *Analyzer {
	return &Analyzer{spec: spec, walker: NewWalker()}
}

func (a *Analyzer) Language() parser.Language { return a.spec.Language }

// Parse implements parser.Analyzer.
func (a *Analyzer) Parse(ctx context.Context, project, path string, content []byte) (parser.ParseResult, error) {
	result := parser.ParseResult{Language: a.spec.Language}

	p := sitter.NewParser()
	p.SetLanguage(a.spec.Grammar)
	tree, err := p.ParseCtx(ctx, nil, content)
	if err != nil {
		return result, errs.ParseError(path, err)
	}
	if tree == nil || tree.RootNode() == nil {
		return result, errs.ParseError(path, errs.Internal("empty parse tree"))
	}
	root := tree.RootNode()
	if root.HasError() {
		// tree-sitter recovers from syntax errors by inserting ERROR
		// nodes; a tree containing any marks the file as syntactically
		// invalid, reported with an empty result.
		return result, errs.ParseError(path, errs.Internal("syntax error in source"))
	}

	funcNodes := a.walker.CollectNodes(root, a.spec.FunctionTypes)

	// First pass: extract every unit so same-file callees can be
	// qualified (a call to a function defined in the same module is
	// statically resolvable).
	qnames := make([]string, len(funcNodes))
	localQName := make(map[string]string, len(funcNodes))
	for i, fn := range funcNodes {
		unit, qname := a.extractFunction(fn, content, project, path)
		result.Units = append(result.Units, unit)
		qnames[i] = qname
		if unit.Name != "" {
			localQName[unit.Name] = qname
		}
	}

	for i, fn := range funcNodes {
		qname := qnames[i]
		for _, callNode := range a.walker.CollectNodes(fn, a.spec.CallTypes) {
			// Skip calls that belong to a nested function's own body;
			// those are attributed to the nested function as caller.
			if enc := a.walker.EnclosingOfType(callNode, a.spec.FunctionTypes); enc != nil && enc != fn {
				continue
			}
			callee := a.calleeName(callNode, content)
			if callee == "" {
				continue
			}
			kind := callgraph.CallDirect
			for _, ct := range a.spec.ConstructorCallTypes {
				if callNode.Type() == ct {
					kind = callgraph.CallConstructor
				}
			}
			if kind == callgraph.CallDirect && strings.Contains(callee, ".") {
				kind = callgraph.CallMethod
			}
			if !strings.Contains(callee, ".") {
				if q, ok := localQName[callee]; ok {
					callee = q
				}
			}
			line := int(callNode.StartPoint().Row) + 1
			result.Calls = append(result.Calls, newCallSite(project, qname, callee, path, line, kind))
		}
	}

	for _, cls := range a.walker.CollectNodes(root, a.spec.ClassTypes) {
		if impl, ok := a.extractImplementation(cls, content, project); ok {
			result.Impls = append(result.Impls, impl)
		}
	}

	return result, nil
}

func (a *Analyzer) extractFunction(node *sitter.Node, source []byte, project, path string) (codeunit.CodeUnit, string) {
	name := a.fieldText(node, a.spec.NameField, source)
	qname := qualify(modulePathFor(path), name)

	kind := codeunit.KindFunction
	for _, mt := range a.spec.MethodTypes {
		if node.Type() == mt || a.walker.EnclosingOfType(node, a.spec.ClassTypes) != nil {
			kind = codeunit.KindMethod
			break
		}
	}

	startLine := int(node.StartPoint().Row) + 1
	endLine := int(node.EndPoint().Row) + 1
	unit := newUnit(project, path, string(a.spec.Language), kind, qname, name, startLine, endLine, a.walker.NodeText(node, source))
	return unit, qname
}

func (a *Analyzer) calleeName(node *sitter.Node, source []byte) string {
	if a.spec.CallTargetField != "" {
		if target := node.ChildByFieldName(a.spec.CallTargetField); target != nil {
			return lastSegment(a.walker.NodeText(target, source))
		}
	}
	// Fallback: first identifier-shaped child.
	for i := uint32(0); i < node.ChildCount(); i++ {
		child := node.Child(int(i))
		if child != nil && (child.Type() == "identifier" || strings.HasSuffix(child.Type(), "identifier")) {
			return a.walker.NodeText(child, source)
		}
	}
	return ""
}

// lastSegment normalizes a callee expression: arrow and scope accessors
// collapse to dots, keeping the receiver prefix when present. Resolution
// is best-effort; a dynamic receiver stays as written.
func lastSegment(expr string) string {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return ""
	}
	for _, sep := range []string{"->", "::"} {
		expr = strings.ReplaceAll(expr, sep, ".")
	}
	return expr
}

func (a *Analyzer) extractImplementation(node *sitter.Node, source []byte, project string) (callgraph.InterfaceImplementation, bool) {
	if a.spec.BaseListField == "" {
		return callgraph.InterfaceImplementation{}, false
	}
	baseList := node.ChildByFieldName(a.spec.BaseListField)
	if baseList == nil {
		return callgraph.InterfaceImplementation{}, false
	}
	concreteName := a.fieldText(node, a.spec.NameField, source)
	if concreteName == "" {
		return callgraph.InterfaceImplementation{}, false
	}
	interfaceName := strings.TrimSpace(a.walker.NodeText(baseList, source))
	interfaceName = strings.Trim(interfaceName, "(){}:,; \t\n")
	if interfaceName == "" {
		return callgraph.InterfaceImplementation{}, false
	}
	var methods []string
	for _, fn := range a.walker.CollectNodes(node, a.spec.FunctionTypes) {
		if name := a.fieldText(fn, a.spec.NameField, source); name != "" {
			methods = append(methods, name)
		}
	}
	return callgraph.InterfaceImplementation{
		Project: project, InterfaceName: interfaceName, ConcreteName: concreteName, Methods: methods,
	}, true
}

func (a *Analyzer) fieldText(node *sitter.Node, field string, source []byte) string {
	if field == "" {
		return ""
	}
	child := node.ChildByFieldName(field)
	return a.walker.NodeText(child, source)
}

// modulePathFor derives a dotted module path from a file path, stripping
// its extension and replacing path separators with dots.
func modulePathFor(path string) string {
	p := path
	if i := strings.LastIndexByte(p, '.'); i >= 0 {
		p = p[:i]
	}
	p = strings.ReplaceAll(p, "\\", "/")
	p = strings.Trim(p, "/")
	return strings.ReplaceAll(p, "/", ".")
}
