package parsing

import (
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"
	"github.com/smacker/go-tree-sitter/csharp"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/codemem/engine/domain/parser"
)

// TreeSitterSpecs are the LanguageSpecs backed by a real tree-sitter
// grammar binding bundled with smacker/go-tree-sitter.
func TreeSitterSpecs() []LanguageSpec {
	return []LanguageSpec{
		goSpec(), pythonSpec(), javascriptSpec(), typescriptSpec(), tsxSpec(),
		javaSpec(), cSpec(), cppSpec(), csharpSpec(), rustSpec(),
	}
}

func goSpec() LanguageSpec {
	return LanguageSpec{
		Language:        parser.LangGo,
		Extensions:      []string{".go"},
		Grammar:         golang.GetLanguage(),
		FunctionTypes:   []string{"function_declaration", "method_declaration"},
		MethodTypes:     []string{"method_declaration"},
		NameField:       "name",
		CallTypes:       []string{"call_expression"},
		CallTargetField: "function",
		ClassTypes:      []string{"type_declaration"},
		PrivatePrefixes: nil,
		ExportedKeyword: "", // Go exports by identifier case, not by a keyword.
	}
}

func pythonSpec() LanguageSpec {
	return LanguageSpec{
		Language:             parser.LangPython,
		Extensions:           []string{".py"},
		Grammar:              python.GetLanguage(),
		FunctionTypes:        []string{"function_definition"},
		NameField:            "name",
		CallTypes:            []string{"call"},
		CallTargetField:      "function",
		ClassTypes:           []string{"class_definition"},
		InterfaceLikeTypes:   nil,
		BaseListField:        "superclasses",
		PrivatePrefixes:      []string{"_"},
	}
}

func javascriptSpec() LanguageSpec {
	return LanguageSpec{
		Language:             parser.LangJavaScript,
		Extensions:           []string{".js", ".jsx", ".mjs", ".cjs"},
		Grammar:              javascript.GetLanguage(),
		FunctionTypes:        []string{"function_declaration", "method_definition", "arrow_function", "function_expression"},
		MethodTypes:          []string{"method_definition"},
		NameField:            "name",
		CallTypes:            []string{"call_expression"},
		CallTargetField:      "function",
		ConstructorCallTypes: []string{"new_expression"},
		ClassTypes:           []string{"class_declaration"},
		BaseListField:        "superclass",
	}
}

func typescriptSpec() LanguageSpec {
	s := javascriptSpec()
	s.Language = parser.LangTypeScript
	s.Extensions = []string{".ts"}
	s.Grammar = typescript.GetLanguage()
	s.FunctionTypes = append(s.FunctionTypes, "function_signature")
	return s
}

func tsxSpec() LanguageSpec {
	s := typescriptSpec()
	s.Extensions = []string{".tsx"}
	s.Grammar = tsx.GetLanguage()
	return s
}

func javaSpec() LanguageSpec {
	return LanguageSpec{
		Language:             parser.LangJava,
		Extensions:           []string{".java"},
		Grammar:              java.GetLanguage(),
		FunctionTypes:        []string{"method_declaration", "constructor_declaration"},
		MethodTypes:          []string{"method_declaration", "constructor_declaration"},
		NameField:            "name",
		CallTypes:            []string{"method_invocation"},
		CallTargetField:      "name",
		ConstructorCallTypes: []string{"object_creation_expression"},
		ClassTypes:           []string{"class_declaration", "interface_declaration"},
		InterfaceLikeTypes:   []string{"interface_declaration"},
		BaseListField:        "interfaces",
		ExportedKeyword:      "public",
	}
}

func cSpec() LanguageSpec {
	return LanguageSpec{
		Language:        parser.LangC,
		Extensions:      []string{".c", ".h"},
		Grammar:         c.GetLanguage(),
		FunctionTypes:   []string{"function_definition"},
		NameField:       "declarator",
		CallTypes:       []string{"call_expression"},
		CallTargetField: "function",
		ClassTypes:      []string{"struct_specifier", "union_specifier", "enum_specifier"},
	}
}

func cppSpec() LanguageSpec {
	s := cSpec()
	s.Language = parser.LangCPP
	s.Extensions = []string{".cpp", ".cc", ".cxx", ".hpp", ".hh"}
	s.Grammar = cpp.GetLanguage()
	s.ConstructorCallTypes = []string{"new_expression"}
	s.ClassTypes = append(s.ClassTypes, "class_specifier")
	return s
}

func csharpSpec() LanguageSpec {
	return LanguageSpec{
		Language:             parser.LangCSharp,
		Extensions:           []string{".cs"},
		Grammar:              csharp.GetLanguage(),
		FunctionTypes:        []string{"method_declaration", "constructor_declaration"},
		MethodTypes:          []string{"method_declaration", "constructor_declaration"},
		NameField:            "name",
		CallTypes:            []string{"invocation_expression"},
		CallTargetField:      "function",
		ConstructorCallTypes: []string{"object_creation_expression"},
		ClassTypes:           []string{"class_declaration", "struct_declaration", "interface_declaration", "enum_declaration"},
		InterfaceLikeTypes:   []string{"interface_declaration"},
		BaseListField:        "bases",
		ExportedKeyword:      "public",
	}
}

func rustSpec() LanguageSpec {
	return LanguageSpec{
		Language:             parser.LangRust,
		Extensions:           []string{".rs"},
		Grammar:              rust.GetLanguage(),
		FunctionTypes:        []string{"function_item"},
		NameField:            "name",
		CallTypes:            []string{"call_expression"},
		CallTargetField:      "function",
		ConstructorCallTypes: nil,
		ClassTypes:           []string{"struct_item", "enum_item", "trait_item", "impl_item"},
		InterfaceLikeTypes:   []string{"trait_item"},
		BaseListField:        "trait",
		ExportedKeyword:      "pub",
	}
}
