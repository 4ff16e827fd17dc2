package optimizer

// ---------------------------------------------------------------------------
// Symbol requirements
// ---------------------------------------------------------------------------

// SymbolRequirement names runtime facilities the optimizer may introduce
// references to, so the linker keeps them reachable even when no user code
// mentions them.
type SymbolRequirement struct {
	ClassName  string
	AllMethods bool   // preserve every method of the class
	CtorName   string // preserve this constructor; the class is instantiated
}

// Encoded names of the runtime facilities the optimizer depends on.
const (
	runtimeLongClass        = "sjsr_RuntimeLong"
	nullPointerExceptionCls = "jl_NullPointerException"
)

// SymbolRequirements returns the facilities this optimizer requires: the
// full RuntimeLong implementation (long arithmetic may be expanded into
// calls on it) and the no-argument NullPointerException constructor (null
// checks may be materialized as throws).
func (o *IncOptimizer) SymbolRequirements() []SymbolRequirement {
	return []SymbolRequirement{
		{ClassName: runtimeLongClass, AllMethods: true},
		{ClassName: nullPointerExceptionCls, CtorName: moduleCtorName},
	}
}
