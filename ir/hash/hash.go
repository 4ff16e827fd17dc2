package hash

import (
	"crypto/sha256"

	"github.com/chazu/stitch/ir"
)

// HashTree computes the SHA-256 content hash of a tree.
//
// The hash is computed over the deterministic serialization of Serialize,
// including the format version byte, so a change of encoding can never
// produce a hash that collides with an old one.
func HashTree(tree ir.Tree) ir.TreeHash {
	return sha256.Sum256(Serialize(tree))
}

// HashMethodDef computes the content hash of a method definition: its
// serialized body mixed with the encoded name and flags. Two method definitions with
// equal hashes have the same name, namespace, and body.
func HashMethodDef(m *ir.MethodDef) ir.TreeHash {
	h := sha256.New()
	h.Write([]byte{HashVersion, byte(m.Flags.Namespace)})
	if m.Flags.IsConstructor {
		h.Write([]byte{1})
	} else {
		h.Write([]byte{0})
	}
	h.Write([]byte(m.EncodedName))
	h.Write(Serialize(m.Body))
	var out ir.TreeHash
	h.Sum(out[:0])
	return out
}
