package classify

import "github.com/agentic-research/astcore/api"

// A table maps one language's raw grammar kinds onto the normalized node
// types. byParent holds contextual mappings that only apply under a given
// parent kind (e.g. identifiers inside a parameter list). skip lists
// atomic token kinds that never become nodes of their own.
type table struct {
	kinds    map[string]api.NodeType
	byParent map[string]map[string]api.NodeType
	skip     map[string]bool
}

// atomic token kinds shared by the C-family grammars.
var commonSkip = map[string]bool{
	"identifier": true, "field_identifier": true, "property_identifier": true,
	"type_identifier": true, "package_identifier": true, "shorthand_property_identifier": true,
	"statement_identifier": true, "label_name": true,
	"string": true, "string_literal": true, "interpreted_string_literal": true,
	"raw_string_literal": true, "string_fragment": true, "rune_literal": true,
	"number": true, "int_literal": true, "float_literal": true, "integer": true,
	"float": true, "true": true, "false": true, "null": true, "nil": true,
	"none": true, "boolean": true, "escape_sequence": true,
}

var tables = map[string]*table{
	"go": {
		kinds: map[string]api.NodeType{
			"package_clause":            api.TypeModule,
			"import_declaration":        api.TypeImport,
			"import_spec":               api.TypeImport,
			"function_declaration":      api.TypeFunction,
			"method_declaration":        api.TypeMethod,
			"func_literal":              api.TypeFunction,
			"type_declaration":          api.TypeStatement,
			"type_spec":                 api.TypeClass,
			"interface_type":            api.TypeInterface,
			"struct_type":               api.TypeBlock,
			"field_declaration":         api.TypeProperty,
			"const_declaration":         api.TypeVariable,
			"var_declaration":           api.TypeVariable,
			"short_var_declaration":     api.TypeVariable,
			"parameter_declaration":     api.TypeParameter,
			"variadic_parameter_declaration": api.TypeParameter,
			"block":                     api.TypeBlock,
			"comment":                   api.TypeComment,
		},
	},
	"javascript": {
		kinds: map[string]api.NodeType{
			"import_statement":               api.TypeImport,
			"export_statement":               api.TypeExport,
			"class_declaration":              api.TypeClass,
			"class":                          api.TypeClass,
			"function_declaration":           api.TypeFunction,
			"generator_function_declaration": api.TypeFunction,
			"arrow_function":                 api.TypeFunction,
			"function_expression":            api.TypeFunction,
			"method_definition":              api.TypeMethod,
			"field_definition":               api.TypeProperty,
			"variable_declaration":           api.TypeVariable,
			"lexical_declaration":            api.TypeVariable,
			"statement_block":                api.TypeBlock,
			"class_body":                     api.TypeBlock,
			"comment":                        api.TypeComment,
		},
		byParent: map[string]map[string]api.NodeType{
			"formal_parameters": {
				"identifier":         api.TypeParameter,
				"required_parameter": api.TypeParameter,
				"optional_parameter": api.TypeParameter,
				"rest_pattern":       api.TypeParameter,
				"assignment_pattern": api.TypeParameter,
			},
		},
	},
	"typescript": {
		kinds: map[string]api.NodeType{
			"import_statement":               api.TypeImport,
			"export_statement":               api.TypeExport,
			"class_declaration":              api.TypeClass,
			"abstract_class_declaration":     api.TypeClass,
			"interface_declaration":          api.TypeInterface,
			"enum_declaration":               api.TypeClass,
			"type_alias_declaration":         api.TypeClass,
			"internal_module":                api.TypeNamespace,
			"module":                         api.TypeNamespace,
			"function_declaration":           api.TypeFunction,
			"generator_function_declaration": api.TypeFunction,
			"arrow_function":                 api.TypeFunction,
			"function_expression":            api.TypeFunction,
			"method_definition":              api.TypeMethod,
			"public_field_definition":        api.TypeProperty,
			"property_signature":             api.TypeProperty,
			"method_signature":               api.TypeMethod,
			"variable_declaration":           api.TypeVariable,
			"lexical_declaration":            api.TypeVariable,
			"statement_block":                api.TypeBlock,
			"class_body":                     api.TypeBlock,
			"comment":                        api.TypeComment,
		},
		byParent: map[string]map[string]api.NodeType{
			"formal_parameters": {
				"identifier":         api.TypeParameter,
				"required_parameter": api.TypeParameter,
				"optional_parameter": api.TypeParameter,
				"rest_pattern":       api.TypeParameter,
			},
		},
	},
	"python": {
		kinds: map[string]api.NodeType{
			"import_statement":      api.TypeImport,
			"import_from_statement": api.TypeImport,
			"class_definition":      api.TypeClass,
			"function_definition":   api.TypeFunction,
			"decorated_definition":  api.TypeStatement,
			"lambda":                api.TypeFunction,
			"assignment":            api.TypeVariable,
			"global_statement":      api.TypeVariable,
			"block":                 api.TypeBlock,
			"comment":               api.TypeComment,
		},
		byParent: map[string]map[string]api.NodeType{
			"parameters": {
				"identifier":                api.TypeParameter,
				"typed_parameter":           api.TypeParameter,
				"default_parameter":         api.TypeParameter,
				"typed_default_parameter":   api.TypeParameter,
				"list_splat_pattern":        api.TypeParameter,
				"dictionary_splat_pattern":  api.TypeParameter,
				"keyword_separator":         api.TypeParameter,
				"positional_separator":      api.TypeParameter,
			},
			"class_definition": {
				"block": api.TypeBlock,
			},
		},
	},
	"rust": {
		kinds: map[string]api.NodeType{
			"use_declaration":    api.TypeImport,
			"mod_item":           api.TypeModule,
			"struct_item":        api.TypeClass,
			"enum_item":          api.TypeClass,
			"union_item":         api.TypeClass,
			"trait_item":         api.TypeInterface,
			"impl_item":          api.TypeClass,
			"function_item":      api.TypeFunction,
			"closure_expression": api.TypeFunction,
			"const_item":         api.TypeVariable,
			"static_item":        api.TypeVariable,
			"let_declaration":    api.TypeVariable,
			"field_declaration":  api.TypeProperty,
			"parameter":          api.TypeParameter,
			"self_parameter":     api.TypeParameter,
			"block":              api.TypeBlock,
			"declaration_list":   api.TypeBlock,
			"line_comment":       api.TypeComment,
			"block_comment":      api.TypeComment,
		},
	},
	"java": {
		kinds: map[string]api.NodeType{
			"package_declaration":         api.TypeModule,
			"import_declaration":          api.TypeImport,
			"class_declaration":           api.TypeClass,
			"record_declaration":          api.TypeClass,
			"enum_declaration":            api.TypeClass,
			"interface_declaration":       api.TypeInterface,
			"annotation_type_declaration": api.TypeInterface,
			"method_declaration":          api.TypeMethod,
			"constructor_declaration":     api.TypeConstructor,
			"field_declaration":           api.TypeProperty,
			"local_variable_declaration":  api.TypeVariable,
			"formal_parameter":            api.TypeParameter,
			"spread_parameter":            api.TypeParameter,
			"block":                       api.TypeBlock,
			"class_body":                  api.TypeBlock,
			"interface_body":              api.TypeBlock,
			"line_comment":                api.TypeComment,
			"block_comment":               api.TypeComment,
		},
	},
	"cpp": {
		kinds: map[string]api.NodeType{
			"preproc_include":       api.TypeImport,
			"using_declaration":     api.TypeImport,
			"namespace_definition":  api.TypeNamespace,
			"class_specifier":       api.TypeClass,
			"struct_specifier":      api.TypeClass,
			"union_specifier":       api.TypeClass,
			"enum_specifier":        api.TypeClass,
			"function_definition":   api.TypeFunction,
			"lambda_expression":     api.TypeFunction,
			"declaration":           api.TypeVariable,
			"field_declaration":     api.TypeProperty,
			"parameter_declaration": api.TypeParameter,
			"compound_statement":    api.TypeBlock,
			"field_declaration_list": api.TypeBlock,
			"comment":               api.TypeComment,
		},
	},
	"c": {
		kinds: map[string]api.NodeType{
			"preproc_include":        api.TypeImport,
			"struct_specifier":       api.TypeClass,
			"union_specifier":        api.TypeClass,
			"enum_specifier":         api.TypeClass,
			"function_definition":    api.TypeFunction,
			"declaration":            api.TypeVariable,
			"field_declaration":      api.TypeProperty,
			"parameter_declaration":  api.TypeParameter,
			"compound_statement":     api.TypeBlock,
			"field_declaration_list": api.TypeBlock,
			"comment":                api.TypeComment,
		},
	},
	"csharp": {
		kinds: map[string]api.NodeType{
			"using_directive":         api.TypeImport,
			"namespace_declaration":   api.TypeNamespace,
			"class_declaration":       api.TypeClass,
			"struct_declaration":      api.TypeClass,
			"record_declaration":      api.TypeClass,
			"enum_declaration":        api.TypeClass,
			"interface_declaration":   api.TypeInterface,
			"method_declaration":      api.TypeMethod,
			"constructor_declaration": api.TypeConstructor,
			"property_declaration":    api.TypeProperty,
			"field_declaration":       api.TypeProperty,
			"local_declaration_statement": api.TypeVariable,
			"parameter":               api.TypeParameter,
			"block":                   api.TypeBlock,
			"declaration_list":        api.TypeBlock,
			"comment":                 api.TypeComment,
		},
	},
	"ruby": {
		kinds: map[string]api.NodeType{
			"module":            api.TypeModule,
			"class":             api.TypeClass,
			"singleton_class":   api.TypeClass,
			"method":            api.TypeMethod,
			"singleton_method":  api.TypeMethod,
			"lambda":            api.TypeFunction,
			"assignment":        api.TypeVariable,
			"block":             api.TypeBlock,
			"do_block":          api.TypeBlock,
			"body_statement":    api.TypeBlock,
			"comment":           api.TypeComment,
		},
		byParent: map[string]map[string]api.NodeType{
			"method_parameters": {
				"identifier":         api.TypeParameter,
				"optional_parameter": api.TypeParameter,
				"splat_parameter":    api.TypeParameter,
				"keyword_parameter":  api.TypeParameter,
				"block_parameter":    api.TypeParameter,
			},
		},
	},
	"bash": {
		kinds: map[string]api.NodeType{
			"function_definition": api.TypeFunction,
			"variable_assignment": api.TypeVariable,
			"compound_statement":  api.TypeBlock,
			"comment":             api.TypeComment,
		},
	},
	"yaml": {
		kinds: map[string]api.NodeType{
			"document":           api.TypeModule,
			"block_mapping_pair": api.TypeProperty,
			"block_mapping":      api.TypeBlock,
			"block_sequence":     api.TypeBlock,
			"comment":            api.TypeComment,
		},
	},
	"hcl": {
		kinds: map[string]api.NodeType{
			"block":     api.TypeBlock,
			"attribute": api.TypeProperty,
			"body":      api.TypeBlock,
			"comment":   api.TypeComment,
		},
	},
	// Portable-runtime languages get tables too: classification is data,
	// independent of how the grammar was loaded.
	"kotlin": {
		kinds: map[string]api.NodeType{
			"package_header":       api.TypeModule,
			"import_header":        api.TypeImport,
			"class_declaration":    api.TypeClass,
			"object_declaration":   api.TypeClass,
			"interface_declaration": api.TypeInterface,
			"function_declaration": api.TypeFunction,
			"secondary_constructor": api.TypeConstructor,
			"property_declaration": api.TypeProperty,
			"parameter":            api.TypeParameter,
			"class_parameter":      api.TypeParameter,
			"class_body":           api.TypeBlock,
			"function_body":        api.TypeBlock,
			"line_comment":         api.TypeComment,
			"multiline_comment":    api.TypeComment,
		},
	},
	"scala": {
		kinds: map[string]api.NodeType{
			"package_clause":      api.TypeModule,
			"import_declaration":  api.TypeImport,
			"class_definition":    api.TypeClass,
			"object_definition":   api.TypeClass,
			"trait_definition":    api.TypeInterface,
			"function_definition": api.TypeFunction,
			"val_definition":      api.TypeVariable,
			"var_definition":      api.TypeVariable,
			"parameter":           api.TypeParameter,
			"template_body":       api.TypeBlock,
			"block":               api.TypeBlock,
			"comment":             api.TypeComment,
		},
	},
	"swift": {
		kinds: map[string]api.NodeType{
			"import_declaration":   api.TypeImport,
			"class_declaration":    api.TypeClass,
			"protocol_declaration": api.TypeInterface,
			"function_declaration": api.TypeFunction,
			"init_declaration":     api.TypeConstructor,
			"property_declaration": api.TypeProperty,
			"parameter":            api.TypeParameter,
			"class_body":           api.TypeBlock,
			"function_body":        api.TypeBlock,
			"comment":              api.TypeComment,
			"multiline_comment":    api.TypeComment,
		},
	},
	"lua": {
		kinds: map[string]api.NodeType{
			"function_declaration":  api.TypeFunction,
			"function_definition":   api.TypeFunction,
			"local_function":        api.TypeFunction,
			"variable_declaration":  api.TypeVariable,
			"local_variable_declaration": api.TypeVariable,
			"block":                 api.TypeBlock,
			"comment":               api.TypeComment,
		},
	},
	"elixir": {
		kinds: map[string]api.NodeType{
			"call":          api.TypeStatement,
			"do_block":      api.TypeBlock,
			"anonymous_function": api.TypeFunction,
			"comment":       api.TypeComment,
		},
	},
	"sql": {
		kinds: map[string]api.NodeType{
			"create_table":    api.TypeClass,
			"create_view":     api.TypeClass,
			"create_function": api.TypeFunction,
			"column_definition": api.TypeProperty,
			"select":          api.TypeStatement,
			"statement":       api.TypeStatement,
			"comment":         api.TypeComment,
		},
	},
}

// passthroughKinds are structural wrappers that never become nodes of
// their own: their children attach to the nearest emitted ancestor, and
// contextual byParent rules key off the wrapper's kind.
var passthroughKinds = map[string]bool{
	"formal_parameters": true, "parameters": true, "parameter_list": true,
	"method_parameters": true, "lambda_parameters": true, "type_parameters": true,
	"argument_list": true, "arguments": true,
	"type_annotation": true, "predefined_type": true,
}

// statementSuffixes drive the structural fallback for unmapped kinds.
var statementSuffixes = []string{"_statement", "_directive", "_clause", "_definition", "_declaration", "_item"}
