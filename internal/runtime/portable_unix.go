//go:build linux || darwin || freebsd

package runtime

import (
	"fmt"
	"unsafe"

	"github.com/ebitengine/purego"
	sitter "github.com/smacker/go-tree-sitter"
)

// openLanguage dlopens the grammar library and calls its exported
// constructor (TSLanguage *tree_sitter_<name>(void)). The handle is
// intentionally never closed: the returned language points into the
// mapped library.
func openLanguage(path, symbol string) (*sitter.Language, error) {
	handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, fmt.Errorf("dlopen %s: %w", path, err)
	}

	var constructor func() uintptr
	purego.RegisterLibFunc(&constructor, handle, symbol)

	ptr := constructor()
	if ptr == 0 {
		return nil, fmt.Errorf("symbol %s in %s returned a nil language", symbol, path)
	}
	return sitter.NewLanguage(unsafe.Pointer(ptr)), nil
}
