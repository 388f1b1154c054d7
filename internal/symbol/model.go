// Package symbol holds the data model shared by every other package: the
// symbol tree, its positions, and a cache entry shape.
// It mirrors the LSP DocumentSymbol/SymbolKind shapes closely enough that
// adapters can build a Symbol directly off the wire response.
package symbol

// Kind enumerates the 26 LSP SymbolKind values, numbered the same way the
// protocol does (1-based) so a Kind can be written to or read from the wire
// without translation.
type Kind int

const (
	KindFile Kind = iota + 1
	KindModule
	KindNamespace
	KindPackage
	KindClass
	KindMethod
	KindProperty
	KindField
	KindConstructor
	KindEnum
	KindInterface
	KindFunction
	KindVariable
	KindConstant
	KindString
	KindNumber
	KindBoolean
	KindArray
	KindObject
	KindKey
	KindNull
	KindEnumMember
	KindStruct
	KindEvent
	KindOperator
	KindTypeParameter
)

var kindNames = map[Kind]string{
	KindFile: "file", KindModule: "module", KindNamespace: "namespace",
	KindPackage: "package", KindClass: "class", KindMethod: "method",
	KindProperty: "property", KindField: "field", KindConstructor: "constructor",
	KindEnum: "enum", KindInterface: "interface", KindFunction: "function",
	KindVariable: "variable", KindConstant: "constant", KindString: "string",
	KindNumber: "number", KindBoolean: "boolean", KindArray: "array",
	KindObject: "object", KindKey: "key", KindNull: "null",
	KindEnumMember: "enum_member", KindStruct: "struct", KindEvent: "event",
	KindOperator: "operator", KindTypeParameter: "type_parameter",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Position is a zero-based line/column pair, matching LSP's Position.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range is a half-open [Start, End) span within a single file.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Location pins a Range to a file, relative to the project root.
type Location struct {
	RelativePath string `json:"relative_path"`
	Range        Range  `json:"range"`
}

// Symbol is one node of a file's symbol tree, enriched with the name_path
// computed by stamping each node with its slash-joined ancestor chain.
type Symbol struct {
	Name           string   `json:"name"`
	NamePath       string   `json:"name_path"`
	Kind           Kind     `json:"kind"`
	Location       Location `json:"location"`
	SelectionRange Range    `json:"selection_range"`
	Children       []Symbol `json:"children,omitempty"`
	Body           string   `json:"body,omitempty"`
}

// CacheEntry describes a file's full symbol tree as of a given content
// hash, plus the schema version it was written under. internal/symcache
// does not use this type: its rows hold the tree as JSON, keyed by path
// and language.
type CacheEntry struct {
	RelativePath  string   `json:"relative_path"`
	ContentHash   string   `json:"content_hash"`
	SchemaVersion int      `json:"schema_version"`
	Symbols       []Symbol `json:"symbols"`
}
