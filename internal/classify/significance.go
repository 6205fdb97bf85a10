package classify

import "github.com/agentic-research/astcore/api"

// baseSignificance is the default level per normalized type before
// modifier overrides.
var baseSignificance = map[api.NodeType]api.Significance{
	api.TypeFile:        api.High,
	api.TypeModule:      api.High,
	api.TypeNamespace:   api.High,
	api.TypeClass:       api.High,
	api.TypeInterface:   api.High,
	api.TypeFunction:    api.High,
	api.TypeMethod:      api.High,
	api.TypeConstructor: api.High,
	api.TypeImport:      api.Medium,
	api.TypeExport:      api.Medium,
	api.TypeProperty:    api.Low,
	api.TypeVariable:    api.Low,
	api.TypeParameter:   api.Low,
	api.TypeBlock:       api.Low,
	api.TypeStatement:   api.Low,
	api.TypeExpression:  api.Minimal,
	api.TypeComment:     api.Minimal,
	api.TypeError:       api.Minimal,
}

// containers are the types promoted to CRITICAL when exported.
var containerTypes = map[api.NodeType]bool{
	api.TypeFile: true, api.TypeModule: true, api.TypeNamespace: true,
	api.TypeClass: true, api.TypeInterface: true,
}

var rankToLevel = []api.Significance{api.Minimal, api.Minimal, api.Low, api.Medium, api.High, api.Critical}

func shift(s api.Significance, delta int) api.Significance {
	r := s.Rank() + delta
	if r < 1 {
		r = 1
	}
	if r > 5 {
		r = 5
	}
	return rankToLevel[r]
}

// Significance computes a node's level from its type and modifiers. It is
// total: every (type, language, modifiers) combination yields a level.
func Significance(t api.NodeType, language string, md *api.NodeMetadata) api.Significance {
	level, ok := baseSignificance[t]
	if !ok {
		level = api.Low
	}

	exported := md != nil && md.HasModifier("exported")
	if exported {
		switch {
		case containerTypes[t]:
			level = api.Critical
		case t == api.TypeProperty || t == api.TypeVariable:
			level = api.Medium
		}
	}

	if md != nil && md.HasModifier("private") {
		level = shift(level, -1)
	}
	if md != nil && md.Docstring != "" && level.Rank() <= api.Low.Rank() {
		level = shift(level, +1)
	}
	return level
}
