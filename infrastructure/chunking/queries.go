package chunking

// Capture queries per grammar. Each pattern marks a semantic block with
// @block and, when the grammar exposes a name field, its identifier with
// @name. Grammars that name nodes without fields (Kotlin, Scala, Swift)
// use bare block captures; the splitter falls back to scanning for an
// identifier child.

const goQuery = `
(function_declaration name: (identifier) @name) @block
(method_declaration name: (field_identifier) @name) @block
(type_spec name: (type_identifier) @name) @block
`

const javascriptQuery = `
(function_declaration name: (identifier) @name) @block
(generator_function_declaration name: (identifier) @name) @block
(class_declaration name: (identifier) @name) @block
(method_definition name: (property_identifier) @name) @block
`

// TypeScript shares most block shapes with JavaScript but names classes
// with type_identifier, so it cannot reuse javascriptQuery verbatim.
const typescriptQuery = `
(function_declaration name: (identifier) @name) @block
(generator_function_declaration name: (identifier) @name) @block
(class_declaration name: (type_identifier) @name) @block
(method_definition name: (property_identifier) @name) @block
(interface_declaration name: (type_identifier) @name) @block
(enum_declaration name: (identifier) @name) @block
(type_alias_declaration name: (type_identifier) @name) @block
(abstract_class_declaration name: (type_identifier) @name) @block
`

const pythonQuery = `
(function_definition name: (identifier) @name) @block
(class_definition name: (identifier) @name) @block
`

const javaQuery = `
(class_declaration name: (identifier) @name) @block
(interface_declaration name: (identifier) @name) @block
(enum_declaration name: (identifier) @name) @block
(method_declaration name: (identifier) @name) @block
(constructor_declaration name: (identifier) @name) @block
`

const cQuery = `
(function_definition declarator: (function_declarator declarator: (identifier) @name)) @block
(struct_specifier name: (type_identifier) @name body: (field_declaration_list)) @block
(enum_specifier name: (type_identifier) @name body: (enumerator_list)) @block
`

const cppQuery = `
(function_definition declarator: (function_declarator declarator: (identifier) @name)) @block
(class_specifier name: (type_identifier) @name body: (field_declaration_list)) @block
(struct_specifier name: (type_identifier) @name body: (field_declaration_list)) @block
`

const csharpQuery = `
(class_declaration name: (identifier) @name) @block
(interface_declaration name: (identifier) @name) @block
(struct_declaration name: (identifier) @name) @block
(enum_declaration name: (identifier) @name) @block
(method_declaration name: (identifier) @name) @block
(constructor_declaration name: (identifier) @name) @block
`

const rustQuery = `
(function_item name: (identifier) @name) @block
(struct_item name: (type_identifier) @name) @block
(enum_item name: (type_identifier) @name) @block
(trait_item name: (type_identifier) @name) @block
(impl_item) @block
`

const rubyQuery = `
(method name: (identifier) @name) @block
(singleton_method name: (identifier) @name) @block
(class name: (constant) @name) @block
(module name: (constant) @name) @block
`

const phpQuery = `
(function_definition name: (name) @name) @block
(method_declaration name: (name) @name) @block
(class_declaration name: (name) @name) @block
(interface_declaration name: (name) @name) @block
(trait_declaration name: (name) @name) @block
`

const kotlinQuery = `
(class_declaration) @block
(function_declaration) @block
(object_declaration) @block
`

const scalaQuery = `
(class_definition) @block
(object_definition) @block
(trait_definition) @block
(function_definition) @block
`

const swiftQuery = `
(class_declaration) @block
(function_declaration) @block
(protocol_declaration) @block
`

const bashQuery = `
(function_definition name: (word) @name) @block
`

const cssQuery = `
(rule_set) @block
`

const tomlQuery = `
(table) @block
`
