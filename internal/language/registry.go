// Package language maps files to languages and languages to grammar
// descriptors. The initial table covers every grammar linked into the
// native runtime plus the portable-only catalog.
package language

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/agentic-research/astcore/api"
	"github.com/agentic-research/astcore/coreerr"
)

// grammarReleaseURL is the template for portable grammar artifacts.
// Placeholders: {name}, {ext}.
const grammarReleaseURL = "https://grammars.agentic-research.dev/v1/tree-sitter-{name}{ext}"

// builtins is the fixed initial registry. NativeModule names the
// compiled-in smacker grammar; languages without one are portable-only and
// carry a download descriptor.
var builtins = []api.GrammarDescriptor{
	{Name: "go", Extensions: []string{".go"}, NativeModule: "go", CSymbol: "tree_sitter_go"},
	{Name: "python", Extensions: []string{".py", ".pyi"}, NativeModule: "python", CSymbol: "tree_sitter_python"},
	{Name: "javascript", Extensions: []string{".js", ".jsx", ".mjs", ".cjs"}, NativeModule: "javascript", CSymbol: "tree_sitter_javascript"},
	{Name: "typescript", Extensions: []string{".ts", ".tsx"}, NativeModule: "typescript", CSymbol: "tree_sitter_typescript"},
	{Name: "rust", Extensions: []string{".rs"}, NativeModule: "rust", CSymbol: "tree_sitter_rust"},
	{Name: "java", Extensions: []string{".java"}, NativeModule: "java", CSymbol: "tree_sitter_java"},
	{Name: "cpp", Extensions: []string{".cpp", ".cc", ".cxx", ".hpp", ".hh"}, NativeModule: "cpp", CSymbol: "tree_sitter_cpp"},
	{Name: "c", Extensions: []string{".c", ".h"}, NativeModule: "c", CSymbol: "tree_sitter_c"},
	{Name: "csharp", Extensions: []string{".cs"}, NativeModule: "csharp", CSymbol: "tree_sitter_c_sharp"},
	{Name: "ruby", Extensions: []string{".rb", ".rake"}, NativeModule: "ruby", CSymbol: "tree_sitter_ruby"},
	{Name: "bash", Extensions: []string{".sh", ".bash"}, NativeModule: "bash", CSymbol: "tree_sitter_bash"},
	{Name: "yaml", Extensions: []string{".yaml", ".yml"}, NativeModule: "yaml", CSymbol: "tree_sitter_yaml"},
	{Name: "hcl", Extensions: []string{".hcl", ".tf", ".tfvars"}, NativeModule: "hcl", CSymbol: "tree_sitter_hcl"},
	{Name: "sql", Extensions: []string{".sql"}, NativeModule: "sql", CSymbol: "tree_sitter_sql"},

	// Portable-only: fetched as shared libraries and loaded at runtime.
	{Name: "kotlin", Extensions: []string{".kt", ".kts"}, CSymbol: "tree_sitter_kotlin"},
	{Name: "scala", Extensions: []string{".scala", ".sc"}, CSymbol: "tree_sitter_scala"},
	{Name: "swift", Extensions: []string{".swift"}, CSymbol: "tree_sitter_swift"},
	{Name: "lua", Extensions: []string{".lua"}, CSymbol: "tree_sitter_lua"},
	{Name: "elixir", Extensions: []string{".ex", ".exs"}, CSymbol: "tree_sitter_elixir"},
}

// Registry resolves paths and names to grammar descriptors. Safe for
// concurrent use. Names and extensions are case-insensitive.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]api.GrammarDescriptor
	byExt  map[string]string // extension -> language name
}

// NewRegistry returns a registry pre-populated with the builtin table.
func NewRegistry() *Registry {
	r := &Registry{
		byName: make(map[string]api.GrammarDescriptor),
		byExt:  make(map[string]string),
	}
	for _, d := range builtins {
		// The builtin table has no collisions.
		_ = r.Add(fillDownload(d))
	}
	return r
}

// fillDownload completes the download descriptor for portable loading.
func fillDownload(d api.GrammarDescriptor) api.GrammarDescriptor {
	if d.ArtifactExt == "" {
		d.ArtifactExt = libraryExt()
	}
	if d.SourceURL == "" {
		url := strings.ReplaceAll(grammarReleaseURL, "{name}", d.Name)
		d.SourceURL = strings.ReplaceAll(url, "{ext}", d.ArtifactExt)
	}
	return d
}

// Add registers a descriptor, replacing any existing language of the same
// name. A new extension colliding with a different language fails with a
// ConfigError and leaves the registry unchanged.
func (r *Registry) Add(d api.GrammarDescriptor) error {
	name := strings.ToLower(d.Name)
	if name == "" {
		return &coreerr.ConfigError{Reason: "language descriptor has no name"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	exts := make([]string, 0, len(d.Extensions))
	for _, ext := range d.Extensions {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if owner, taken := r.byExt[ext]; taken && owner != name {
			return &coreerr.ConfigError{
				Reason: "extension " + ext + " already registered to language " + owner,
			}
		}
		exts = append(exts, ext)
	}

	// Replacing a language drops its old extensions first.
	if old, ok := r.byName[name]; ok {
		for _, ext := range old.Extensions {
			delete(r.byExt, ext)
		}
	}

	d.Name = name
	d.Extensions = exts
	r.byName[name] = d
	for _, ext := range exts {
		r.byExt[ext] = name
	}
	return nil
}

// Remove deletes a language and its extension mappings.
func (r *Registry) Remove(name string) bool {
	name = strings.ToLower(name)

	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.byName[name]
	if !ok {
		return false
	}
	for _, ext := range d.Extensions {
		delete(r.byExt, ext)
	}
	delete(r.byName, name)
	return true
}

// Describe returns the descriptor for a language name.
func (r *Registry) Describe(name string) (api.GrammarDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byName[strings.ToLower(name)]
	return d, ok
}

// Names returns all registered language names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	return names
}

// DetectByExtension resolves a path's extension to a language.
func (r *Registry) DetectByExtension(path string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return "", false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.byExt[ext]
	return name, ok
}

// Detect resolves a language from the path's extension, falling back to a
// content heuristic (shebang line, then keyword density) when the
// extension is unknown and content is provided. An extension match is
// never overridden by content.
func (r *Registry) Detect(path string, content []byte) (string, bool) {
	if name, ok := r.DetectByExtension(path); ok {
		return name, true
	}
	if len(content) == 0 {
		return "", false
	}
	if name, ok := detectShebang(content); ok {
		if _, known := r.Describe(name); known {
			return name, true
		}
	}
	if name, ok := detectByKeywords(content); ok {
		if _, known := r.Describe(name); known {
			return name, true
		}
	}
	return "", false
}
