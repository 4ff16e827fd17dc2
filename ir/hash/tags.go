// Package hash computes content hashes of IR method bodies and provides the
// deterministic binary tree serialization the hashes (and the wire format)
// are built on.
package hash

// HashVersion is the first byte of every serialization. Bump it whenever the
// encoding changes so stale hashes can never collide with fresh ones.
const HashVersion byte = 0x01

// Serialization tags, one per tree node kind. Values are part of the
// persisted format; never renumber.
const (
	TagSkip byte = iota + 1
	TagBlock
	TagIntLiteral
	TagLongLiteral
	TagDoubleLiteral
	TagBooleanLiteral
	TagStringLiteral
	TagNull
	TagThis
	TagVarRef
	TagSelect
	TagAssign
	TagStoreModule
	TagLoadModule
	TagApply
	TagApplyStatically
	TagNew
	TagRecordValue
)
