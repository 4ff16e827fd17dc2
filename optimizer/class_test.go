package optimizer

import (
	"testing"

	"github.com/chazu/stitch/ir"
)

// ---------------------------------------------------------------------------
// Module accessor elidability
// ---------------------------------------------------------------------------

func moduleClass(name string, ctorBody ir.Tree) classSpec {
	return classSpec{
		name: name, kind: ir.KindModuleClass, super: "O",
		ancestors: []string{name, "O"}, hasInstances: true,
		methods: []ir.Versioned[*ir.MethodDef]{
			method(moduleCtorName, ir.ConstructorNamespace, ctorBody),
		},
	}
}

func TestElidableModuleConstructors(t *testing.T) {
	cases := []struct {
		name     string
		ctorBody ir.Tree
		elidable bool
	}{
		{
			name:     "store module only",
			ctorBody: &ir.StoreModule{ClassName: "M", Value: &ir.This{}},
			elidable: true,
		},
		{
			name: "field init block",
			ctorBody: &ir.Block{Stats: []ir.Tree{
				&ir.Assign{
					LHS: &ir.Select{Qualifier: &ir.This{}, Field: "x"},
					RHS: &ir.IntLiteral{Value: 0},
				},
				&ir.StoreModule{ClassName: "M", Value: &ir.This{}},
			}},
			elidable: true,
		},
		{
			name: "field init from computed value",
			ctorBody: &ir.Block{Stats: []ir.Tree{
				&ir.Assign{
					LHS: &ir.Select{Qualifier: &ir.This{}, Field: "x"},
					RHS: &ir.New{ClassName: "P", Ctor: moduleCtorName},
				},
				&ir.StoreModule{ClassName: "M", Value: &ir.This{}},
			}},
			elidable: false,
		},
		{
			name: "unknown call",
			ctorBody: &ir.ApplyStatically{
				ClassName: "Q", Namespace: ir.PublicNamespace,
				Method: "effect", Receiver: &ir.This{},
			},
			elidable: false,
		},
		{
			name:     "assignment to foreign object",
			ctorBody: &ir.Assign{LHS: &ir.Select{Qualifier: &ir.VarRef{Name: "o"}, Field: "x"}, RHS: &ir.This{}},
			elidable: false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			opt := NewIncOptimizer(newRecordingCore(), Config{})
			opt.Update(unitOf(objectSpec(), moduleClass("M", tc.ctorBody)), nil)

			if got := opt.classes["M"].hasElidableModuleAccessor; got != tc.elidable {
				t.Errorf("hasElidableModuleAccessor = %v, want %v", got, tc.elidable)
			}
		})
	}
}

func TestElidableModuleConstructorDelegation(t *testing.T) {
	opt := NewIncOptimizer(newRecordingCore(), Config{})

	// SuperM's constructor is elidable; M delegates to it and stores itself.
	superSpec := classSpec{
		name: "SuperM", kind: ir.KindClass, super: "O", ancestors: []string{"SuperM", "O"},
		methods: []ir.Versioned[*ir.MethodDef]{
			method(moduleCtorName, ir.ConstructorNamespace, &ir.Skip{}),
		},
	}
	mSpec := classSpec{
		name: "M", kind: ir.KindModuleClass, super: "SuperM",
		ancestors: []string{"M", "SuperM", "O"}, hasInstances: true,
		methods: []ir.Versioned[*ir.MethodDef]{
			method(moduleCtorName, ir.ConstructorNamespace, &ir.Block{Stats: []ir.Tree{
				&ir.ApplyStatically{
					ClassName: "SuperM", Namespace: ir.ConstructorNamespace,
					Method: moduleCtorName, Receiver: &ir.This{},
				},
				&ir.StoreModule{ClassName: "M", Value: &ir.This{}},
			}}),
		},
	}
	opt.Update(unitOf(objectSpec(), superSpec, mSpec), nil)

	if !opt.classes["M"].hasElidableModuleAccessor {
		t.Error("delegation to an elidable constructor should stay elidable")
	}
}

func TestElidableModuleMixinConstructor(t *testing.T) {
	opt := NewIncOptimizer(newRecordingCore(), Config{})

	mixinSpec := classSpec{
		name: "Mixin", kind: ir.KindInterface, ancestors: []string{"Mixin"},
		methods: []ir.Versioned[*ir.MethodDef]{
			method("init$", ir.PublicStaticNamespace, &ir.Skip{}),
		},
	}
	mSpec := classSpec{
		name: "M", kind: ir.KindModuleClass, super: "O",
		ancestors: []string{"M", "Mixin", "O"}, hasInstances: true,
		methods: []ir.Versioned[*ir.MethodDef]{
			method(moduleCtorName, ir.ConstructorNamespace, &ir.Block{Stats: []ir.Tree{
				&ir.ApplyStatically{
					ClassName: "Mixin", Namespace: ir.PublicStaticNamespace,
					Method: "init$", Args: []ir.Tree{&ir.This{}},
				},
				&ir.StoreModule{ClassName: "M", Value: &ir.This{}},
			}}),
		},
	}
	opt.Update(unitOf(objectSpec(), mixinSpec, mSpec), nil)

	if !opt.classes["M"].hasElidableModuleAccessor {
		t.Error("mixin constructor with a Skip body should be elidable")
	}
}

func TestAdHocElidableAllowList(t *testing.T) {
	opt := NewIncOptimizer(newRecordingCore(), Config{})
	opt.Update(unitOf(
		objectSpec(),
		classSpec{
			name: "s_Predef$", kind: ir.KindModuleClass, super: "O",
			ancestors: []string{"s_Predef$", "O"}, hasInstances: true,
			methods: []ir.Versioned[*ir.MethodDef]{
				method(moduleCtorName, ir.ConstructorNamespace, &ir.ApplyStatically{
					ClassName: "Q", Namespace: ir.PublicNamespace, Method: "effect", Receiver: &ir.This{},
				}),
			},
		},
	), nil)

	if !opt.classes["s_Predef$"].hasElidableModuleAccessor {
		t.Error("the allow-listed module must be elidable regardless of its constructor")
	}
}

// ---------------------------------------------------------------------------
// Inlineable-record derivation
// ---------------------------------------------------------------------------

func TestTryNewInlineableFieldsRootToLeaf(t *testing.T) {
	opt := NewIncOptimizer(newRecordingCore(), Config{})
	opt.Update(unitOf(
		objectSpec(),
		classSpec{
			name: "P", kind: ir.KindClass, super: "O", ancestors: []string{"P", "O"},
			fields: []ir.FieldDef{
				{Name: "x", Type: ir.Type{Kind: ir.IntType}},
				{Name: "counter", Type: ir.Type{Kind: ir.IntType}, Static: true},
			},
		},
		classSpec{
			name: "C", kind: ir.KindClass, super: "P", ancestors: []string{"C", "P", "O"},
			hasInstances: true,
			hints:        ir.ClassOptimizerHints{Inline: true},
			fields: []ir.FieldDef{
				{Name: "y", Type: ir.ClassTypeOf("S")},
			},
		},
	), nil)

	rv := opt.classes["C"].tryNewInlineable
	if rv == nil {
		t.Fatal("C should have a record zero value")
	}
	if len(rv.Fields) != 2 {
		t.Fatalf("record has %d fields, want 2 (static fields excluded)", len(rv.Fields))
	}
	if rv.Fields[0].Name != "x" || rv.Fields[1].Name != "y" {
		t.Errorf("field order = %s, %s, want root-to-leaf x, y", rv.Fields[0].Name, rv.Fields[1].Name)
	}
	if _, ok := rv.Fields[0].Value.(*ir.IntLiteral); !ok {
		t.Errorf("zero of Int = %T, want IntLiteral", rv.Fields[0].Value)
	}
	if _, ok := rv.Fields[1].Value.(*ir.Null); !ok {
		t.Errorf("zero of a class type = %T, want Null", rv.Fields[1].Value)
	}

	if opt.classes["P"].tryNewInlineable != nil {
		t.Error("P carries no inline hint and should have no record value")
	}
}

func TestInlineabilityChangeTagsConstructorCallers(t *testing.T) {
	core := newRecordingCore()
	core.hooks["k"] = func(lookup MethodLookup) {
		lookup.StaticCall("C", ir.ConstructorNamespace, moduleCtorName)
	}
	opt := NewIncOptimizer(core, Config{})

	cSpec := classSpec{
		name: "C", kind: ir.KindClass, super: "O", ancestors: []string{"C", "O"},
		hasInstances: true,
		methods: []ir.Versioned[*ir.MethodDef]{
			method(moduleCtorName, ir.ConstructorNamespace, &ir.Skip{}),
		},
	}
	xSpec := classSpec{
		name: "X", kind: ir.KindClass, super: "O", ancestors: []string{"X", "O"},
		methods: []ir.Versioned[*ir.MethodDef]{method("k", ir.PublicNamespace, &ir.Skip{})},
	}
	opt.Update(unitOf(objectSpec(), cSpec, xSpec), nil)

	core.reset()
	cSpec.hints = ir.ClassOptimizerHints{Inline: true}
	opt.Update(unitOf(objectSpec(), cSpec, xSpec), nil)

	if core.processedSet()["k"] != 1 {
		t.Errorf("processed = %v, want X.k rescheduled after C became inlineable", core.processedSet())
	}
}

// ---------------------------------------------------------------------------
// Method lookup
// ---------------------------------------------------------------------------

func TestLookupMethodWalksSuperclassChain(t *testing.T) {
	opt := NewIncOptimizer(newRecordingCore(), Config{})
	opt.Update(unitOf(
		objectSpec(),
		classSpec{
			name: "A", kind: ir.KindClass, super: "O", ancestors: []string{"A", "O"},
			methods: []ir.Versioned[*ir.MethodDef]{
				method("m", ir.PublicNamespace, &ir.Skip{}),
				method("n", ir.PublicNamespace, &ir.Skip{}),
			},
		},
		classSpec{
			name: "B", kind: ir.KindClass, super: "A", ancestors: []string{"B", "A", "O"},
			methods: []ir.Versioned[*ir.MethodDef]{
				method("m", ir.PublicNamespace, &ir.IntLiteral{Value: 1}),
			},
		},
	), nil)

	a, b := opt.classes["A"], opt.classes["B"]

	if got := b.lookupMethod("m"); got != b.lookupLocalMethod("m") {
		t.Error("B overrides m; lookup should find the override")
	}
	if got := b.lookupMethod("n"); got != a.lookupLocalMethod("n") {
		t.Error("B inherits n; lookup should walk to A")
	}
	if got := b.lookupMethod("absent"); got != nil {
		t.Errorf("lookup of an unknown method = %v, want nil", got)
	}
}
