package ir

// ---------------------------------------------------------------------------
// Trees
// ---------------------------------------------------------------------------
//
// The IR is a small expression-statement tree. Method bodies are single
// trees; a Block sequences statements. Every node is identified by a stable
// serialization tag (see ir/hash) so that content hashes and the wire format
// stay in sync.

// Tree is an IR node. All implementations are pointer types.
type Tree interface {
	isTree()
}

// Skip is the empty statement.
type Skip struct{}

// Block sequences statements; its value is the value of the last one.
type Block struct {
	Stats []Tree
}

// IntLiteral is a 32-bit integer constant.
type IntLiteral struct {
	Value int32
}

// LongLiteral is a 64-bit integer constant.
type LongLiteral struct {
	Value int64
}

// DoubleLiteral is a floating-point constant.
type DoubleLiteral struct {
	Value float64
}

// BooleanLiteral is a boolean constant.
type BooleanLiteral struct {
	Value bool
}

// StringLiteral is a string constant.
type StringLiteral struct {
	Value string
}

// Null is the null reference constant.
type Null struct{}

// This is the receiver reference inside an instance method.
type This struct{}

// VarRef references a local variable or parameter by name.
type VarRef struct {
	Name string
}

// Select reads a field of an object.
type Select struct {
	Qualifier Tree
	Field     string
}

// Assign stores RHS into LHS (a VarRef or Select).
type Assign struct {
	LHS Tree
	RHS Tree
}

// StoreModule publishes the module instance for a module class; emitted at
// the end of a module class constructor.
type StoreModule struct {
	ClassName string
	Value     Tree
}

// LoadModule reads the (lazily initialized) module instance of a module
// class. Elidable is set by the optimizer when the lazy initialization
// check can be omitted by the emitter.
type LoadModule struct {
	ClassName string
	Elidable  bool
}

// Apply is a dynamically dispatched (virtual) method call. ReceiverClass is
// the static type of the receiver, which names the interface type the call
// resolves against.
type Apply struct {
	ReceiverClass string
	Receiver      Tree
	Method        string
	Args          []Tree
}

// ApplyStatically is a statically bound call: super calls, private calls,
// constructor delegation, and all static-namespace calls.
type ApplyStatically struct {
	ClassName string
	Namespace MemberNamespace
	Method    string
	Receiver  Tree // nil for static namespaces
	Args      []Tree
}

// New allocates an instance of ClassName and runs the given constructor.
type New struct {
	ClassName string
	Ctor      string
	Args      []Tree
}

// RecordValue is a synthetic flattened record, produced by record-class
// inlining. Fields are ordered root-to-leaf over the class's parent chain.
type RecordValue struct {
	ClassName string
	Fields    []RecordField
}

// RecordField is one field of a RecordValue.
type RecordField struct {
	Name  string
	Value Tree
}

func (*Skip) isTree()            {}
func (*Block) isTree()           {}
func (*IntLiteral) isTree()      {}
func (*LongLiteral) isTree()     {}
func (*DoubleLiteral) isTree()   {}
func (*BooleanLiteral) isTree()  {}
func (*StringLiteral) isTree()   {}
func (*Null) isTree()            {}
func (*This) isTree()            {}
func (*VarRef) isTree()          {}
func (*Select) isTree()          {}
func (*Assign) isTree()          {}
func (*StoreModule) isTree()     {}
func (*LoadModule) isTree()      {}
func (*Apply) isTree()           {}
func (*ApplyStatically) isTree() {}
func (*New) isTree()             {}
func (*RecordValue) isTree()     {}
