// Package callgraphstore persists FunctionNode, CallSite, and
// InterfaceImplementation records and rebuilds the forward/reverse
// adjacency (domain/callgraph.Adjacency) from them on load.
package callgraphstore

import "github.com/codemem/engine/domain/callgraph"

type nodeModel struct {
	Project       string `gorm:"column:project;primaryKey;index:idx_nodes_project"`
	QualifiedName string `gorm:"column:qualified_name;primaryKey"`
	Name          string `gorm:"column:name"`
	FilePath      string `gorm:"column:file_path;index"`
	Language      string `gorm:"column:language"`
	StartLine     int    `gorm:"column:start_line"`
	EndLine       int    `gorm:"column:end_line"`
	ParametersCSV string `gorm:"column:parameters_csv"`
	ReturnType    string `gorm:"column:return_type"`
	IsExported    bool   `gorm:"column:is_exported"`
	IsAsync       bool   `gorm:"column:is_async"`
}

func (nodeModel) TableName() string { return "callgraph_nodes" }

type callModel struct {
	Project    string `gorm:"column:project;primaryKey;index:idx_calls_project"`
	Caller     string `gorm:"column:caller;primaryKey;index:idx_calls_caller"`
	Callee     string `gorm:"column:callee;primaryKey;index:idx_calls_callee"`
	CallerFile string `gorm:"column:caller_file;primaryKey;index:idx_calls_caller_file"`
	CallerLine int    `gorm:"column:caller_line;primaryKey"`
	Kind       string `gorm:"column:kind"`
}

func (callModel) TableName() string { return "callgraph_calls" }

type implementationModel struct {
	Project       string `gorm:"column:project;primaryKey;index:idx_impls_project"`
	InterfaceName string `gorm:"column:interface_name;primaryKey"`
	ConcreteName  string `gorm:"column:concrete_name;primaryKey"`
	MethodsCSV    string `gorm:"column:methods_csv"`
}

func (implementationModel) TableName() string { return "callgraph_implementations" }

func toNodeModel(n callgraph.FunctionNode) nodeModel {
	return nodeModel{
		Project: n.Project, QualifiedName: n.QualifiedName, Name: n.Name,
		FilePath: n.FilePath, Language: n.Language, StartLine: n.StartLine, EndLine: n.EndLine,
		ParametersCSV: joinCSV(n.Parameters), ReturnType: n.ReturnType,
		IsExported: n.IsExported, IsAsync: n.IsAsync,
	}
}

func toFunctionNode(m nodeModel) callgraph.FunctionNode {
	return callgraph.FunctionNode{
		Project: m.Project, QualifiedName: m.QualifiedName, Name: m.Name,
		FilePath: m.FilePath, Language: m.Language, StartLine: m.StartLine, EndLine: m.EndLine,
		Parameters: splitCSV(m.ParametersCSV), ReturnType: m.ReturnType,
		IsExported: m.IsExported, IsAsync: m.IsAsync,
	}
}

func toCallModel(c callgraph.CallSite) callModel {
	return callModel{
		Project: c.Project, Caller: c.Caller, Callee: c.Callee,
		CallerFile: c.CallerFile, CallerLine: c.CallerLine, Kind: string(c.Kind),
	}
}

func toCallSite(m callModel) callgraph.CallSite {
	return callgraph.CallSite{
		Project: m.Project, Caller: m.Caller, Callee: m.Callee,
		CallerFile: m.CallerFile, CallerLine: m.CallerLine, Kind: callgraph.CallKind(m.Kind),
	}
}

func toImplementationModel(i callgraph.InterfaceImplementation) implementationModel {
	return implementationModel{
		Project: i.Project, InterfaceName: i.InterfaceName, ConcreteName: i.ConcreteName,
		MethodsCSV: joinCSV(i.Methods),
	}
}

func toInterfaceImplementation(m implementationModel) callgraph.InterfaceImplementation {
	return callgraph.InterfaceImplementation{
		Project: m.Project, InterfaceName: m.InterfaceName, ConcreteName: m.ConcreteName,
		Methods: splitCSV(m.MethodsCSV),
	}
}

func joinCSV(vals []string) string {
	out := ""
	for i, v := range vals {
		if i > 0 {
			out += ","
		}
		out += v
	}
	return out
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	return out
}
