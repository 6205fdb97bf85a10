package language

import (
	"bytes"
	"runtime"
	"strings"
)

// libraryExt returns the shared-library extension for this platform.
func libraryExt() string {
	switch runtime.GOOS {
	case "darwin":
		return ".dylib"
	case "windows":
		return ".dll"
	default:
		return ".so"
	}
}

// shebangInterpreters maps interpreter basenames to language names.
var shebangInterpreters = map[string]string{
	"python":  "python",
	"python3": "python",
	"node":    "javascript",
	"deno":    "javascript",
	"ruby":    "ruby",
	"bash":    "bash",
	"sh":      "bash",
	"zsh":     "bash",
	"lua":     "lua",
	"elixir":  "elixir",
}

// detectShebang inspects a leading "#!" line for a known interpreter.
func detectShebang(content []byte) (string, bool) {
	if !bytes.HasPrefix(content, []byte("#!")) {
		return "", false
	}
	line := content
	if i := bytes.IndexByte(content, '\n'); i >= 0 {
		line = content[:i]
	}
	fields := strings.Fields(string(line[2:]))
	if len(fields) == 0 {
		return "", false
	}
	interp := fields[0]
	// "#!/usr/bin/env python3" names the interpreter in the second field.
	if strings.HasSuffix(interp, "/env") && len(fields) > 1 {
		interp = fields[1]
	}
	if i := strings.LastIndexByte(interp, '/'); i >= 0 {
		interp = interp[i+1:]
	}
	// Strip version suffixes like "python3.12".
	base := strings.TrimRight(interp, "0123456789.")
	if lang, ok := shebangInterpreters[interp]; ok {
		return lang, true
	}
	if lang, ok := shebangInterpreters[base]; ok {
		return lang, true
	}
	return "", false
}

// keywordProfiles are small discriminating token sets per language. The
// highest-scoring language above a minimum density wins; scoring is
// intentionally crude — it only runs when the path's extension is missing
// or not registered.
var keywordProfiles = map[string][]string{
	"go":         {"package ", "func ", ":= ", "chan ", "go func"},
	"python":     {"def ", "import ", "self", "elif ", "None"},
	"javascript": {"function ", "const ", "=> ", "var ", "require("},
	"rust":       {"fn ", "let mut ", "impl ", "pub fn", "::"},
	"ruby":       {"def ", "end\n", "require ", "puts ", "@"},
	"java":       {"public class", "void ", "import java", "extends ", "new "},
}

// minKeywordHits is the score floor below which detection abstains.
const minKeywordHits = 3

func detectByKeywords(content []byte) (string, bool) {
	// Bound the scan to the head of the file.
	sample := content
	if len(sample) > 4096 {
		sample = sample[:4096]
	}
	text := string(sample)

	best, bestScore := "", 0
	for lang, tokens := range keywordProfiles {
		score := 0
		for _, tok := range tokens {
			score += strings.Count(text, tok)
		}
		if score > bestScore {
			best, bestScore = lang, score
		}
	}
	if bestScore < minKeywordHits {
		return "", false
	}
	return best, true
}
