package hash

import (
	"bytes"
	"testing"

	"github.com/chazu/stitch/ir"
)

func sampleTrees() map[string]ir.Tree {
	return map[string]ir.Tree{
		"skip":    &ir.Skip{},
		"int":     &ir.IntLiteral{Value: -7},
		"long":    &ir.LongLiteral{Value: 1 << 40},
		"double":  &ir.DoubleLiteral{Value: 2.5},
		"bool":    &ir.BooleanLiteral{Value: true},
		"string":  &ir.StringLiteral{Value: "héllo"},
		"null":    &ir.Null{},
		"this":    &ir.This{},
		"var":     &ir.VarRef{Name: "x"},
		"select":  &ir.Select{Qualifier: &ir.This{}, Field: "f"},
		"assign":  &ir.Assign{LHS: &ir.VarRef{Name: "x"}, RHS: &ir.IntLiteral{Value: 1}},
		"store":   &ir.StoreModule{ClassName: "M", Value: &ir.This{}},
		"load":    &ir.LoadModule{ClassName: "M", Elidable: true},
		"apply":   &ir.Apply{ReceiverClass: "A", Receiver: &ir.This{}, Method: "m", Args: []ir.Tree{&ir.IntLiteral{Value: 1}}},
		"applyst": &ir.ApplyStatically{ClassName: "A", Namespace: ir.PrivateStaticNamespace, Method: "m", Args: []ir.Tree{&ir.Null{}}},
		"applyrc": &ir.ApplyStatically{ClassName: "A", Namespace: ir.ConstructorNamespace, Method: "init___", Receiver: &ir.This{}},
		"new":     &ir.New{ClassName: "A", Ctor: "init___", Args: []ir.Tree{&ir.StringLiteral{Value: "s"}}},
		"record": &ir.RecordValue{ClassName: "A", Fields: []ir.RecordField{
			{Name: "x", Value: &ir.IntLiteral{Value: 0}},
			{Name: "y", Value: &ir.Null{}},
		}},
		"block": &ir.Block{Stats: []ir.Tree{
			&ir.Skip{},
			&ir.Assign{LHS: &ir.Select{Qualifier: &ir.This{}, Field: "f"}, RHS: &ir.BooleanLiteral{Value: false}},
		}},
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	for name, tree := range sampleTrees() {
		t.Run(name, func(t *testing.T) {
			data := Serialize(tree)
			back, err := Deserialize(data)
			if err != nil {
				t.Fatalf("Deserialize: %v", err)
			}
			if !bytes.Equal(Serialize(back), data) {
				t.Error("round-tripped tree serializes differently")
			}
		})
	}
}

func TestSerializeIsDeterministic(t *testing.T) {
	tree := &ir.Block{Stats: []ir.Tree{
		&ir.Apply{ReceiverClass: "A", Receiver: &ir.This{}, Method: "m"},
		&ir.StoreModule{ClassName: "M", Value: &ir.This{}},
	}}
	if !bytes.Equal(Serialize(tree), Serialize(tree)) {
		t.Error("identical trees must serialize to identical bytes")
	}
}

func TestHashDistinguishesTrees(t *testing.T) {
	a := HashTree(&ir.IntLiteral{Value: 1})
	b := HashTree(&ir.IntLiteral{Value: 2})
	if a == b {
		t.Error("different trees should not collide")
	}
	if a != HashTree(&ir.IntLiteral{Value: 1}) {
		t.Error("equal trees must hash equal")
	}
}

func TestHashMethodDefMixesIdentity(t *testing.T) {
	body := &ir.Skip{}
	m1 := &ir.MethodDef{EncodedName: "m", Flags: ir.MethodFlags{Namespace: ir.PublicNamespace}, Body: body}
	m2 := &ir.MethodDef{EncodedName: "n", Flags: ir.MethodFlags{Namespace: ir.PublicNamespace}, Body: body}
	m3 := &ir.MethodDef{EncodedName: "m", Flags: ir.MethodFlags{Namespace: ir.PrivateStaticNamespace}, Body: body}

	if HashMethodDef(m1) == HashMethodDef(m2) {
		t.Error("methods with different names must hash differently")
	}
	if HashMethodDef(m1) == HashMethodDef(m3) {
		t.Error("methods in different namespaces must hash differently")
	}
}

func TestDeserializeRejectsGarbage(t *testing.T) {
	cases := map[string][]byte{
		"empty":       {},
		"bad version": {0x7f, TagSkip},
		"unknown tag": {HashVersion, 0xee},
		"truncated":   Serialize(&ir.StringLiteral{Value: "abc"})[:4],
		"trailing":    append(Serialize(&ir.Skip{}), 0x00),
		"bad ordinal": {HashVersion, TagApplyStatically, 0, 0, 0, 1, 'A', 0x7f},
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Deserialize(data); err == nil {
				t.Error("Deserialize should reject malformed input")
			}
		})
	}
}

func TestGoldenEncoding(t *testing.T) {
	// Pin the exact bytes of a representative tree so format drift is
	// caught rather than silently changing every hash.
	got := Serialize(&ir.Assign{
		LHS: &ir.VarRef{Name: "x"},
		RHS: &ir.IntLiteral{Value: 1},
	})
	want := []byte{
		HashVersion,
		TagAssign,
		TagVarRef, 0, 0, 0, 1, 'x',
		TagIntLiteral, 0, 0, 0, 1,
	}
	if !bytes.Equal(got, want) {
		t.Errorf("encoding drifted:\n got %v\nwant %v", got, want)
	}
}
