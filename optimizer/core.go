package optimizer

import (
	"github.com/chazu/stitch/ir"
)

// ---------------------------------------------------------------------------
// Intra-method optimizer
// ---------------------------------------------------------------------------

// OptimizerCore optimizes one method body at a time. Implementations must
// observe the rest of the program exclusively through the lookup, which
// performs dependency registration as a side effect; anything read another
// way is invisible to incremental invalidation.
//
// Optimize must be a pure function of (thisClass, def) and the answers the
// lookup gives; it runs concurrently for distinct methods.
type OptimizerCore interface {
	Optimize(thisClass string, def *ir.MethodDef, lookup MethodLookup) *ir.MethodDef
}

// DefaultCore returns the standard intra-method core. It devirtualizes
// single-target dynamic calls, inlines trivially constant call targets,
// marks elidable module accessors, and replaces allocations of
// record-inlineable classes with flattened record values.
func DefaultCore() OptimizerCore {
	return &defaultCore{}
}

type defaultCore struct{}

func (c *defaultCore) Optimize(thisClass string, def *ir.MethodDef, lookup MethodLookup) *ir.MethodDef {
	out := *def
	if def.Body != nil {
		out.Body = c.rewrite(def.Body, lookup)
	}
	out.Hash = ir.TreeHash{} // optimized bodies are not content-addressed
	return &out
}

func (c *defaultCore) rewriteAll(trees []ir.Tree, lookup MethodLookup) []ir.Tree {
	out := make([]ir.Tree, len(trees))
	for i, t := range trees {
		out[i] = c.rewrite(t, lookup)
	}
	return out
}

func (c *defaultCore) rewrite(tree ir.Tree, lookup MethodLookup) ir.Tree {
	switch n := tree.(type) {
	case *ir.Block:
		return &ir.Block{Stats: c.rewriteAll(n.Stats, lookup)}

	case *ir.Assign:
		return &ir.Assign{LHS: c.rewrite(n.LHS, lookup), RHS: c.rewrite(n.RHS, lookup)}

	case *ir.Select:
		return &ir.Select{Qualifier: c.rewrite(n.Qualifier, lookup), Field: n.Field}

	case *ir.StoreModule:
		return &ir.StoreModule{ClassName: n.ClassName, Value: c.rewrite(n.Value, lookup)}

	case *ir.LoadModule:
		// Resolving the module constructor registers this method as its
		// static caller, which is what keeps the elidability answer fresh.
		lookup.StaticCall(n.ClassName, ir.ConstructorNamespace, moduleCtorName)
		return &ir.LoadModule{
			ClassName: n.ClassName,
			Elidable:  lookup.HasElidableModuleAccessor(n.ClassName),
		}

	case *ir.Apply:
		recv := c.rewrite(n.Receiver, lookup)
		args := c.rewriteAll(n.Args, lookup)
		targets := lookup.DynamicCall(n.ReceiverClass, n.Method)
		if len(targets) != 1 {
			return &ir.Apply{ReceiverClass: n.ReceiverClass, Receiver: recv, Method: n.Method, Args: args}
		}
		target := targets[0]
		direct := &ir.ApplyStatically{
			ClassName: target.OwnerClassName(),
			Namespace: ir.PublicNamespace,
			Method:    n.Method,
			Receiver:  recv,
			Args:      args,
		}
		return c.tryInlineConstant(target, direct, lookup)

	case *ir.ApplyStatically:
		var recv ir.Tree
		if n.Receiver != nil {
			recv = c.rewrite(n.Receiver, lookup)
		}
		call := &ir.ApplyStatically{
			ClassName: n.ClassName,
			Namespace: n.Namespace,
			Method:    n.Method,
			Receiver:  recv,
			Args:      c.rewriteAll(n.Args, lookup),
		}
		target := lookup.StaticCall(n.ClassName, n.Namespace, n.Method)
		if target == nil {
			return call
		}
		return c.tryInlineConstant(target, call, lookup)

	case *ir.New:
		args := c.rewriteAll(n.Args, lookup)
		ctor := lookup.StaticCall(n.ClassName, ir.ConstructorNamespace, n.Ctor)
		if rv := lookup.TryNewInlineableClass(n.ClassName); rv != nil &&
			len(args) == 0 && ctorIsEmpty(ctor, lookup) {
			return rv
		}
		return &ir.New{ClassName: n.ClassName, Ctor: n.Ctor, Args: args}

	default:
		return tree
	}
}

// tryInlineConstant replaces a call with the target's body when the target
// is inlineable, the body is a constant, and no argument evaluation would
// be discarded.
func (c *defaultCore) tryInlineConstant(target *MethodImpl, call *ir.ApplyStatically, lookup MethodLookup) ir.Tree {
	if !target.Inlineable() {
		return call
	}
	body := lookup.MethodBody(target)
	if body == nil || body.Body == nil || !isConstantTree(body.Body) {
		return call
	}
	if call.Receiver != nil && !isTriviallySideEffectFree(call.Receiver) {
		return call
	}
	for _, arg := range call.Args {
		if !isTriviallySideEffectFree(arg) {
			return call
		}
	}
	return body.Body
}

// ctorIsEmpty reports whether the constructor body is Skip (nothing to run
// besides producing the record's zero values).
func ctorIsEmpty(ctor *MethodImpl, lookup MethodLookup) bool {
	if ctor == nil {
		return false
	}
	body := lookup.MethodBody(ctor)
	if body == nil {
		return false
	}
	_, isSkip := body.Body.(*ir.Skip)
	return isSkip
}

func isConstantTree(tree ir.Tree) bool {
	switch tree.(type) {
	case *ir.Skip, *ir.IntLiteral, *ir.LongLiteral, *ir.DoubleLiteral,
		*ir.BooleanLiteral, *ir.StringLiteral, *ir.Null:
		return true
	default:
		return false
	}
}
