package ir

// ---------------------------------------------------------------------------
// Member definitions
// ---------------------------------------------------------------------------

// TreeHash is the SHA-256 content hash of a method body (see ir/hash).
// The zero value means "no hash available".
type TreeHash [32]byte

// IsZero reports whether no hash is present.
func (h TreeHash) IsZero() bool {
	return h == TreeHash{}
}

// MethodFlags carries the dispatch-relevant flags of a method definition.
type MethodFlags struct {
	Namespace     MemberNamespace
	IsConstructor bool
}

// MethodOptimizerHints are per-method hints emitted by the front end.
type MethodOptimizerHints struct {
	Inline   bool // prefer inlining this method at call sites
	NoInline bool // never inline this method
}

// ClassOptimizerHints are per-class hints emitted by the front end.
type ClassOptimizerHints struct {
	// Inline marks the class as a candidate for record-class inlining:
	// allocations may be replaced by a flattened record value.
	Inline bool
}

// MethodDef is one method of a linked class.
type MethodDef struct {
	EncodedName    string
	Flags          MethodFlags
	Hash           TreeHash // zero when the front end did not hash the body
	OptimizerHints MethodOptimizerHints
	Body           Tree // nil for abstract methods
}

// FieldDef is one field of a linked class.
type FieldDef struct {
	Name   string
	Type   Type
	Static bool
}
