// Package parsing implements the parser registry against
// github.com/smacker/go-tree-sitter: one Analyzer per supported language,
// dispatched by file extension, emitting CodeUnit, CallSite, and
// InterfaceImplementation records.
package parsing

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// Walker provides AST traversal utilities.
type Walker struct{}

// NewWalker creates a new Walker.
func NewWalker() Walker { return Walker{} }

// WalkFunc is called for each node during traversal. Return false to stop.
type WalkFunc func(node *sitter.Node) bool

// Walk performs a breadth-first traversal of the AST rooted at root.
func (w Walker) Walk(root *sitter.Node, fn WalkFunc) {
	if root == nil {
		return
	}
	queue := []*sitter.Node{root}
	visited := make(map[uintptr]struct{})
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		id := current.ID()
		if _, ok := visited[id]; ok {
			continue
		}
		visited[id] = struct{}{}
		if !fn(current) {
			return
		}
		for i := uint32(0); i < current.ChildCount(); i++ {
			if child := current.Child(int(i)); child != nil {
				queue = append(queue, child)
			}
		}
	}
}

// CollectNodes returns every node whose type is in nodeTypes.
func (w Walker) CollectNodes(root *sitter.Node, nodeTypes []string) []*sitter.Node {
	set := make(map[string]struct{}, len(nodeTypes))
	for _, t := range nodeTypes {
		set[t] = struct{}{}
	}
	var nodes []*sitter.Node
	w.Walk(root, func(n *sitter.Node) bool {
		if _, ok := set[n.Type()]; ok {
			nodes = append(nodes, n)
		}
		return true
	})
	return nodes
}

// EnclosingOfType walks up from node and returns the nearest ancestor
// (excluding node itself) whose type is in nodeTypes, if any.
func (w Walker) EnclosingOfType(node *sitter.Node, nodeTypes []string) *sitter.Node {
	if node == nil {
		return nil
	}
	set := make(map[string]struct{}, len(nodeTypes))
	for _, t := range nodeTypes {
		set[t] = struct{}{}
	}
	for p := node.Parent(); p != nil; p = p.Parent() {
		if _, ok := set[p.Type()]; ok {
			return p
		}
	}
	return nil
}

// NodeText extracts the text content of a node from source.
func (w Walker) NodeText(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	start, end := node.StartByte(), node.EndByte()
	if start >= uint32(len(source)) || end > uint32(len(source)) || start >= end {
		return ""
	}
	return string(source[start:end])
}

// PrecedingComment returns the text of a comment-typed previous sibling of
// node, if one immediately precedes it (used for docstring extraction in
// languages that use leading line comments rather than string literals).
func (w Walker) PrecedingComment(node *sitter.Node, source []byte, commentType string) string {
	if node == nil {
		return ""
	}
	sib := node.PrevSibling()
	if sib == nil || sib.Type() != commentType {
		return ""
	}
	return w.NodeText(sib, source)
}
