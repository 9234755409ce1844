package chunking

import (
	"log/slog"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/bash"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"
	"github.com/smacker/go-tree-sitter/csharp"
	"github.com/smacker/go-tree-sitter/css"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/kotlin"
	"github.com/smacker/go-tree-sitter/php"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/ruby"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/scala"
	"github.com/smacker/go-tree-sitter/swift"
	"github.com/smacker/go-tree-sitter/toml"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// languageSpec declares a grammar before query compilation.
type languageSpec struct {
	name       string
	extensions []string
	language   *sitter.Language
	query      string
}

// compiledLanguage is a grammar whose capture query compiled successfully.
type compiledLanguage struct {
	name     string
	language *sitter.Language
	query    *sitter.Query
}

// specs is the full extension-to-grammar table.
func specs() []languageSpec {
	return []languageSpec{
		{"go", []string{".go"}, golang.GetLanguage(), goQuery},
		{"typescript", []string{".ts", ".mts", ".cts"}, typescript.GetLanguage(), typescriptQuery},
		{"tsx", []string{".tsx"}, tsx.GetLanguage(), typescriptQuery},
		{"javascript", []string{".js", ".jsx", ".mjs", ".cjs"}, javascript.GetLanguage(), javascriptQuery},
		{"python", []string{".py"}, python.GetLanguage(), pythonQuery},
		{"java", []string{".java"}, java.GetLanguage(), javaQuery},
		{"c", []string{".c", ".h"}, c.GetLanguage(), cQuery},
		{"cpp", []string{".cpp", ".cc", ".cxx", ".hpp", ".hh"}, cpp.GetLanguage(), cppQuery},
		{"csharp", []string{".cs"}, csharp.GetLanguage(), csharpQuery},
		{"rust", []string{".rs"}, rust.GetLanguage(), rustQuery},
		{"ruby", []string{".rb"}, ruby.GetLanguage(), rubyQuery},
		{"php", []string{".php"}, php.GetLanguage(), phpQuery},
		{"kotlin", []string{".kt", ".kts"}, kotlin.GetLanguage(), kotlinQuery},
		{"scala", []string{".scala", ".sc"}, scala.GetLanguage(), scalaQuery},
		{"swift", []string{".swift"}, swift.GetLanguage(), swiftQuery},
		{"bash", []string{".sh", ".bash"}, bash.GetLanguage(), bashQuery},
		{"css", []string{".css"}, css.GetLanguage(), cssQuery},
		{"toml", []string{".toml"}, toml.GetLanguage(), tomlQuery},
	}
}

// Registry maps file extensions to compiled grammars. A grammar whose
// capture query fails to compile disables that language only; the rest of
// the table stays usable.
type Registry struct {
	byExt  map[string]*compiledLanguage
	logger *slog.Logger
}

// NewRegistry compiles all grammar queries and builds the extension table.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}

	r := &Registry{
		byExt:  make(map[string]*compiledLanguage),
		logger: logger,
	}

	for _, spec := range specs() {
		q, err := sitter.NewQuery([]byte(spec.query), spec.language)
		if err != nil {
			logger.Warn("disabling language: capture query failed to compile",
				slog.String("language", spec.name),
				slog.String("error", err.Error()),
			)
			continue
		}

		compiled := &compiledLanguage{
			name:     spec.name,
			language: spec.language,
			query:    q,
		}
		for _, ext := range spec.extensions {
			r.byExt[ext] = compiled
		}
	}

	return r
}

// Lookup returns the grammar for an extension (lowercase, with dot).
func (r *Registry) Lookup(ext string) (*compiledLanguage, bool) {
	l, ok := r.byExt[ext]
	return l, ok
}

// LanguageCount returns how many grammars compiled. Zero means every
// language failed to load, which the worker treats as fatal at startup.
func (r *Registry) LanguageCount() int {
	seen := make(map[*compiledLanguage]struct{})
	for _, l := range r.byExt {
		seen[l] = struct{}{}
	}
	return len(seen)
}

// SupportedExtensions returns the extensions with a usable grammar.
func (r *Registry) SupportedExtensions() []string {
	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	return exts
}
