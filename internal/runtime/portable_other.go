//go:build !linux && !darwin && !freebsd

package runtime

import (
	"fmt"
	goruntime "runtime"

	sitter "github.com/smacker/go-tree-sitter"
)

func openLanguage(path, symbol string) (*sitter.Language, error) {
	return nil, fmt.Errorf("portable grammar loading is not supported on %s", goruntime.GOOS)
}
