package hash

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/chazu/stitch/ir"
)

// ---------------------------------------------------------------------------
// Deterministic binary serialization of IR trees.
//
// Encoding conventions:
//   - First byte: HashVersion (0x01)
//   - Integers: big-endian fixed-width (int32=4B, int64=8B)
//   - Floats: IEEE 754 big-endian 8B
//   - Strings: uint32 big-endian length + UTF-8 bytes
//   - Booleans: single byte (0/1)
//   - Child lists: uint32 count + children inline (flat)
// ---------------------------------------------------------------------------

// Serialize produces a deterministic byte serialization of a tree. A nil
// tree serializes exactly like Skip (the version byte followed by TagSkip),
// so it deserializes as Skip. The returned bytes are suitable for hashing
// and for the wire format.
func Serialize(tree ir.Tree) []byte {
	s := &serializer{buf: make([]byte, 0, 256)}
	s.writeByte(HashVersion)
	s.serializeNode(tree)
	return s.buf
}

type serializer struct {
	buf []byte
}

func (s *serializer) writeByte(b byte) {
	s.buf = append(s.buf, b)
}

func (s *serializer) writeBool(v bool) {
	if v {
		s.writeByte(1)
	} else {
		s.writeByte(0)
	}
}

func (s *serializer) writeUint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	s.buf = append(s.buf, b[:]...)
}

func (s *serializer) writeInt32(v int32) {
	s.writeUint32(uint32(v))
}

func (s *serializer) writeInt64(v int64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	s.buf = append(s.buf, b[:]...)
}

func (s *serializer) writeFloat64(v float64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], math.Float64bits(v))
	s.buf = append(s.buf, b[:]...)
}

func (s *serializer) writeString(v string) {
	s.writeUint32(uint32(len(v)))
	s.buf = append(s.buf, v...)
}

func (s *serializer) writeTrees(trees []ir.Tree) {
	s.writeUint32(uint32(len(trees)))
	for _, t := range trees {
		s.serializeNode(t)
	}
}

func (s *serializer) serializeNode(tree ir.Tree) {
	switch n := tree.(type) {
	case nil, *ir.Skip:
		s.writeByte(TagSkip)

	case *ir.Block:
		s.writeByte(TagBlock)
		s.writeTrees(n.Stats)

	case *ir.IntLiteral:
		s.writeByte(TagIntLiteral)
		s.writeInt32(n.Value)

	case *ir.LongLiteral:
		s.writeByte(TagLongLiteral)
		s.writeInt64(n.Value)

	case *ir.DoubleLiteral:
		s.writeByte(TagDoubleLiteral)
		s.writeFloat64(n.Value)

	case *ir.BooleanLiteral:
		s.writeByte(TagBooleanLiteral)
		s.writeBool(n.Value)

	case *ir.StringLiteral:
		s.writeByte(TagStringLiteral)
		s.writeString(n.Value)

	case *ir.Null:
		s.writeByte(TagNull)

	case *ir.This:
		s.writeByte(TagThis)

	case *ir.VarRef:
		s.writeByte(TagVarRef)
		s.writeString(n.Name)

	case *ir.Select:
		s.writeByte(TagSelect)
		s.serializeNode(n.Qualifier)
		s.writeString(n.Field)

	case *ir.Assign:
		s.writeByte(TagAssign)
		s.serializeNode(n.LHS)
		s.serializeNode(n.RHS)

	case *ir.StoreModule:
		s.writeByte(TagStoreModule)
		s.writeString(n.ClassName)
		s.serializeNode(n.Value)

	case *ir.LoadModule:
		s.writeByte(TagLoadModule)
		s.writeString(n.ClassName)
		s.writeBool(n.Elidable)

	case *ir.Apply:
		s.writeByte(TagApply)
		s.writeString(n.ReceiverClass)
		s.serializeNode(n.Receiver)
		s.writeString(n.Method)
		s.writeTrees(n.Args)

	case *ir.ApplyStatically:
		s.writeByte(TagApplyStatically)
		s.writeString(n.ClassName)
		s.writeByte(byte(n.Namespace))
		s.writeString(n.Method)
		if n.Receiver == nil {
			s.writeBool(false)
		} else {
			s.writeBool(true)
			s.serializeNode(n.Receiver)
		}
		s.writeTrees(n.Args)

	case *ir.New:
		s.writeByte(TagNew)
		s.writeString(n.ClassName)
		s.writeString(n.Ctor)
		s.writeTrees(n.Args)

	case *ir.RecordValue:
		s.writeByte(TagRecordValue)
		s.writeString(n.ClassName)
		s.writeUint32(uint32(len(n.Fields)))
		for _, f := range n.Fields {
			s.writeString(f.Name)
			s.serializeNode(f.Value)
		}

	default:
		panic(fmt.Sprintf("hash.Serialize: unknown tree node %T", tree))
	}
}
