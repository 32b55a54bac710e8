package parsing_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codemem/engine/errs"
	"github.com/codemem/engine/infrastructure/parsing"
)

func TestRegistry_UnsupportedLanguage(t *testing.T) {
	r := parsing.New(0)
	_, err := r.Parse(context.Background(), "demo", "main.xyz", []byte("whatever"))
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindUnsupportedLanguage))
}

func TestRegistry_ParseTooLarge(t *testing.T) {
	r := parsing.New(10)
	_, err := r.Parse(context.Background(), "demo", "main.go", []byte("package main\nfunc main() {}\n"))
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindParseTooLarge))
}

func TestRegistry_GoFunctionAndCall(t *testing.T) {
	r := parsing.NewDefault(0)
	src := `package main

func helper() {}

func main() {
	helper()
}
`
	result, err := r.Parse(context.Background(), "demo", "pkg/main.go", []byte(src))
	require.NoError(t, err)
	require.Len(t, result.Units, 2)

	var names []string
	for _, u := range result.Units {
		names = append(names, u.Name)
	}
	assert.Contains(t, names, "main")
	assert.Contains(t, names, "helper")

	require.NotEmpty(t, result.Calls)
	found := false
	for _, c := range result.Calls {
		if c.Callee == "pkg.main.helper" {
			found = true
		}
	}
	assert.True(t, found, "expected a call site targeting the same-file qualified pkg.main.helper")
}

func TestRegistry_OpaqueJSON(t *testing.T) {
	r := parsing.NewDefault(0)
	result, err := r.Parse(context.Background(), "demo", "config.json", []byte(`{"a": 1}`))
	require.NoError(t, err)
	require.Len(t, result.Units, 1)
	assert.Empty(t, result.Calls)
}

func TestRegistry_OpaqueJSONInvalid(t *testing.T) {
	r := parsing.NewDefault(0)
	_, err := r.Parse(context.Background(), "demo", "config.json", []byte(`{not json`))
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindParseError))
}

func TestRegistry_RubyFallback(t *testing.T) {
	r := parsing.NewDefault(0)
	src := "def greet(name)\n  puts(name)\nend\n"
	result, err := r.Parse(context.Background(), "demo", "greet.rb", []byte(src))
	require.NoError(t, err)
	require.Len(t, result.Units, 1)
	assert.Equal(t, "greet", result.Units[0].Name)
}
