package parsing

import (
	"context"
	"encoding/json"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/codemem/engine/domain/codeunit"
	"github.com/codemem/engine/domain/parser"
	"github.com/codemem/engine/errs"
)

// OpaqueAnalyzer treats an entire structured-config file as one
// module-kind CodeUnit with no call sites. It validates syntax (surfacing
// errs.KindParseError on malformed input) but never decomposes the file
// further.
type OpaqueAnalyzer struct {
	language   parser.Language
	extensions []string
	validate   func([]byte) error
}

func (a *OpaqueAnalyzer) Language() parser.Language { return a.language }

func (a *OpaqueAnalyzer) Parse(ctx context.Context, project, path string, content []byte) (parser.ParseResult, error) {
	result := parser.ParseResult{Language: a.language}
	if a.validate != nil {
		if err := a.validate(content); err != nil {
			return result, errs.ParseError(path, err)
		}
	}
	qname := modulePathFor(path)
	lines := strings.Count(string(content), "\n") + 1
	result.Units = append(result.Units, newUnit(project, path, string(a.language), codeunit.KindModule,
		qname, qname, 1, lines, string(content)))
	return result, nil
}

// NewJSON returns the opaque JSON analyzer, validated via encoding/json.
func NewJSON() *OpaqueAnalyzer {
	return &OpaqueAnalyzer{
		language:   parser.LangJSON,
		extensions: []string{".json"},
		validate: func(b []byte) error {
			var v any
			return json.Unmarshal(b, &v)
		},
	}
}

// NewYAML returns the opaque YAML analyzer, validated via
// gopkg.in/yaml.v3.
func NewYAML() *OpaqueAnalyzer {
	return &OpaqueAnalyzer{
		language:   parser.LangYAML,
		extensions: []string{".yaml", ".yml"},
		validate: func(b []byte) error {
			var v any
			return yaml.Unmarshal(b, &v)
		},
	}
}

// NewTOML returns the opaque TOML analyzer. Validation is a light
// structural scan rather than a full parser: every non-blank, non-comment
// line must be a `[table]`/`[[array]]` header or a `key = value` pair.
func NewTOML() *OpaqueAnalyzer {
	return &OpaqueAnalyzer{
		language:   parser.LangTOML,
		extensions: []string{".toml"},
		validate:   validateTOMLShape,
	}
}

func validateTOMLShape(b []byte) error {
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			continue
		}
		if strings.Contains(line, "=") {
			continue
		}
		return errs.Internal("malformed toml line: " + line)
	}
	return nil
}
