package runtime

import (
	"context"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/bash"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"
	"github.com/smacker/go-tree-sitter/csharp"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/hcl"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/ruby"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/sql"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
	"github.com/smacker/go-tree-sitter/yaml"

	"github.com/agentic-research/astcore/api"
)

// nativeModules maps descriptor module names to the grammars linked into
// this binary.
var nativeModules = map[string]func() *sitter.Language{
	"go":         golang.GetLanguage,
	"python":     python.GetLanguage,
	"javascript": javascript.GetLanguage,
	"typescript": typescript.GetLanguage,
	"rust":       rust.GetLanguage,
	"java":       java.GetLanguage,
	"cpp":        cpp.GetLanguage,
	"c":          c.GetLanguage,
	"csharp":     csharp.GetLanguage,
	"ruby":       ruby.GetLanguage,
	"bash":       bash.GetLanguage,
	"yaml":       yaml.GetLanguage,
	"hcl":        hcl.GetLanguage,
	"sql":        sql.GetLanguage,
}

// nativeRuntime serves grammars compiled into the process. No artifact
// download is ever needed on this path.
type nativeRuntime struct{}

func newNativeRuntime() *nativeRuntime { return &nativeRuntime{} }

func (*nativeRuntime) Name() string { return "native" }

func (*nativeRuntime) Load(_ context.Context, d api.GrammarDescriptor) (*sitter.Language, error) {
	if d.NativeModule == "" {
		return nil, errNoNativeModule(d.Name)
	}
	get, ok := nativeModules[d.NativeModule]
	if !ok {
		return nil, errNoNativeModule(d.Name)
	}
	return get(), nil
}
