// Package wire serializes linking units for transport and caching.
//
// The outer structures are encoded as canonical-mode CBOR for deterministic
// bytes; method bodies are embedded as the deterministic binary tree
// serialization of ir/hash, so the wire format and the content hashes can
// never disagree about what a body contains.
package wire

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/stitch/ir"
	irhash "github.com/chazu/stitch/ir/hash"
)

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("wire: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// ---------------------------------------------------------------------------
// Wire representation
// ---------------------------------------------------------------------------

type wireUnit struct {
	ModuleKind         string           `cbor:"module_kind"`
	Classes            []wireClass      `cbor:"classes"`
	ModuleInitializers []wireModuleInit `cbor:"module_initializers"`
}

type wireModuleInit struct {
	ClassName  string `cbor:"class"`
	MethodName string `cbor:"method"`
}

type wireClass struct {
	EncodedName  string       `cbor:"name"`
	Kind         int          `cbor:"kind"`
	SuperClass   string       `cbor:"super,omitempty"`
	Ancestors    []string     `cbor:"ancestors"`
	HasInstances bool         `cbor:"has_instances"`
	Fields       []wireField  `cbor:"fields,omitempty"`
	Methods      []wireMethod `cbor:"methods,omitempty"`
	HintInline   bool         `cbor:"hint_inline,omitempty"`
}

type wireField struct {
	Name      string `cbor:"name"`
	TypeKind  int    `cbor:"type"`
	TypeClass string `cbor:"type_class,omitempty"`
	Static    bool   `cbor:"static,omitempty"`
}

type wireMethod struct {
	EncodedName   string `cbor:"name"`
	Namespace     int    `cbor:"namespace"`
	IsConstructor bool   `cbor:"ctor,omitempty"`
	Version       string `cbor:"version,omitempty"`
	Hash          []byte `cbor:"hash,omitempty"`
	HintInline    bool   `cbor:"hint_inline,omitempty"`
	HintNoInline  bool   `cbor:"hint_noinline,omitempty"`
	Body          []byte `cbor:"body,omitempty"` // ir/hash tree serialization
}

// ---------------------------------------------------------------------------
// Marshalling
// ---------------------------------------------------------------------------

// MarshalUnit serializes a linking unit to canonical CBOR bytes.
func MarshalUnit(unit *ir.LinkingUnit) ([]byte, error) {
	wu := wireUnit{
		ModuleKind: unit.CoreSpec.ModuleKind,
		Classes:    make([]wireClass, len(unit.Classes)),
	}
	for _, init := range unit.ModuleInitializers {
		wu.ModuleInitializers = append(wu.ModuleInitializers, wireModuleInit{
			ClassName:  init.ClassName,
			MethodName: init.MethodName,
		})
	}
	for i, lc := range unit.Classes {
		wc := wireClass{
			EncodedName:  lc.EncodedName,
			Kind:         int(lc.Kind),
			SuperClass:   lc.SuperClass,
			Ancestors:    lc.Ancestors,
			HasInstances: lc.HasInstances,
			HintInline:   lc.OptimizerHints.Inline,
		}
		for _, f := range lc.Fields {
			wc.Fields = append(wc.Fields, wireField{
				Name:      f.Name,
				TypeKind:  int(f.Type.Kind),
				TypeClass: f.Type.ClassName,
				Static:    f.Static,
			})
		}
		for _, vdef := range lc.Methods {
			wc.Methods = append(wc.Methods, marshalMethod(vdef))
		}
		wu.Classes[i] = wc
	}
	data, err := cborEncMode.Marshal(&wu)
	if err != nil {
		return nil, fmt.Errorf("wire: marshal unit: %w", err)
	}
	return data, nil
}

func marshalMethod(vdef ir.Versioned[*ir.MethodDef]) wireMethod {
	def := vdef.Value
	wm := wireMethod{
		EncodedName:   def.EncodedName,
		Namespace:     int(def.Flags.Namespace),
		IsConstructor: def.Flags.IsConstructor,
		Version:       vdef.Version,
		HintInline:    def.OptimizerHints.Inline,
		HintNoInline:  def.OptimizerHints.NoInline,
	}
	if !def.Hash.IsZero() {
		wm.Hash = append([]byte(nil), def.Hash[:]...)
	}
	if def.Body != nil {
		wm.Body = irhash.Serialize(def.Body)
	}
	return wm
}

// ---------------------------------------------------------------------------
// Unmarshalling
// ---------------------------------------------------------------------------

// UnmarshalUnit deserializes a linking unit from CBOR bytes.
func UnmarshalUnit(data []byte) (*ir.LinkingUnit, error) {
	var wu wireUnit
	if err := cbor.Unmarshal(data, &wu); err != nil {
		return nil, fmt.Errorf("wire: unmarshal unit: %w", err)
	}

	unit := &ir.LinkingUnit{
		CoreSpec: ir.CoreSpec{ModuleKind: wu.ModuleKind},
		Classes:  make([]*ir.LinkedClass, len(wu.Classes)),
	}
	for _, init := range wu.ModuleInitializers {
		unit.ModuleInitializers = append(unit.ModuleInitializers, ir.ModuleInitializer{
			ClassName:  init.ClassName,
			MethodName: init.MethodName,
		})
	}
	for i, wc := range wu.Classes {
		lc := &ir.LinkedClass{
			EncodedName:    wc.EncodedName,
			Kind:           ir.ClassKind(wc.Kind),
			SuperClass:     wc.SuperClass,
			Ancestors:      wc.Ancestors,
			HasInstances:   wc.HasInstances,
			OptimizerHints: ir.ClassOptimizerHints{Inline: wc.HintInline},
		}
		for _, f := range wc.Fields {
			lc.Fields = append(lc.Fields, ir.FieldDef{
				Name:   f.Name,
				Type:   ir.Type{Kind: ir.TypeKind(f.TypeKind), ClassName: f.TypeClass},
				Static: f.Static,
			})
		}
		for _, wm := range wc.Methods {
			vdef, err := unmarshalMethod(wm)
			if err != nil {
				return nil, fmt.Errorf("wire: class %s: %w", wc.EncodedName, err)
			}
			lc.Methods = append(lc.Methods, vdef)
		}
		unit.Classes[i] = lc
	}
	return unit, nil
}

func unmarshalMethod(wm wireMethod) (ir.Versioned[*ir.MethodDef], error) {
	def := &ir.MethodDef{
		EncodedName: wm.EncodedName,
		Flags: ir.MethodFlags{
			Namespace:     ir.MemberNamespace(wm.Namespace),
			IsConstructor: wm.IsConstructor,
		},
		OptimizerHints: ir.MethodOptimizerHints{
			Inline:   wm.HintInline,
			NoInline: wm.HintNoInline,
		},
	}
	if len(wm.Hash) == len(def.Hash) {
		copy(def.Hash[:], wm.Hash)
	}
	if wm.Body != nil {
		body, err := irhash.Deserialize(wm.Body)
		if err != nil {
			return ir.Versioned[*ir.MethodDef]{}, fmt.Errorf("method %s: %w", wm.EncodedName, err)
		}
		def.Body = body
	}
	return ir.Versioned[*ir.MethodDef]{Value: def, Version: wm.Version}, nil
}

// MarshalMethodBody serializes a single method body for cache storage.
func MarshalMethodBody(body ir.Tree) []byte {
	return irhash.Serialize(body)
}

// UnmarshalMethodBody deserializes a cached method body.
func UnmarshalMethodBody(data []byte) (ir.Tree, error) {
	return irhash.Deserialize(data)
}
