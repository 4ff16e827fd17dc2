package optimizer

import (
	"fmt"

	"github.com/chazu/stitch/ir"
)

// ---------------------------------------------------------------------------
// Method containers
// ---------------------------------------------------------------------------
//
// A method container owns the MethodImpls of one (class, namespace) pair.
// There are two owners: the Class itself for the public-instance namespace
// of non-interface classes, and a staticsNamespace for everything else
// (including the default methods of interfaces, which live in the
// public-instance slot of their statics array).

// methodContainer is the shared state and reconciliation logic of both
// container kinds.
type methodContainer struct {
	opt       *IncOptimizer
	className string
	namespace ir.MemberNamespace
	methods   map[string]*MethodImpl
}

func newMethodContainer(opt *IncOptimizer, className string, ns ir.MemberNamespace) methodContainer {
	return methodContainer{
		opt:       opt,
		className: className,
		namespace: ns,
		methods:   make(map[string]*MethodImpl),
	}
}

// receiverClass returns the encoded name of the receiver type for methods in
// this container, or "" for static namespaces.
func (c *methodContainer) receiverClass() string {
	if c.namespace.IsStatic() {
		return ""
	}
	return c.className
}

// lookupLocalMethod returns the method defined in this container, or nil.
func (c *methodContainer) lookupLocalMethod(name string) *MethodImpl {
	return c.methods[name]
}

// updateWith reconciles the container against the methods of the new linked
// class that belong to this namespace. It returns the sets of added,
// attribute-changed, and deleted method names.
//
// Special rule: the public-instance slot of a non-interface class's statics
// array never receives linked methods (the Class owns them); that case is
// enforced by the caller, which skips the slot and asserts it is empty.
func (c *methodContainer) updateWith(linked *ir.LinkedClass) (added, changed, deleted map[string]struct{}) {
	added = make(map[string]struct{})
	changed = make(map[string]struct{})
	deleted = make(map[string]struct{})

	newMethods := make(map[string]ir.Versioned[*ir.MethodDef])
	for _, vdef := range linked.Methods {
		if vdef.Value.Flags.Namespace == c.namespace {
			newMethods[vdef.Value.EncodedName] = vdef
		}
	}

	for name, vdef := range newMethods {
		if m, ok := c.methods[name]; ok {
			if m.updateWith(vdef) {
				changed[name] = struct{}{}
			}
		} else {
			m := newMethodImpl(c, name)
			c.methods[name] = m
			m.updateWith(vdef) // fresh method: tags and schedules itself
			added[name] = struct{}{}
		}
	}

	for name, m := range c.methods {
		if _, ok := newMethods[name]; !ok {
			m.delete()
			delete(c.methods, name)
			deleted[name] = struct{}{}
		}
	}

	return added, changed, deleted
}

// deleteAll marks every method as deleted; used when the owning class
// disappears from the linking unit.
func (c *methodContainer) deleteAll() {
	for name, m := range c.methods {
		m.delete()
		delete(c.methods, name)
	}
}

// ---------------------------------------------------------------------------
// staticsNamespace: one non-instance namespace of one linked class
// ---------------------------------------------------------------------------

// staticsNamespace owns the methods of one static-like namespace of one
// linked class. Lookup is a direct map access; there is no inheritance in
// static-like namespaces.
type staticsNamespace struct {
	methodContainer
}

func newStaticsNamespace(opt *IncOptimizer, className string, ns ir.MemberNamespace) *staticsNamespace {
	return &staticsNamespace{
		methodContainer: newMethodContainer(opt, className, ns),
	}
}

// staticsArray is the dense per-class array of statics namespaces, indexed
// by namespace ordinal. The public-instance slot is allocated for uniform
// indexing even though it stays empty for non-interface classes.
type staticsArray [ir.MemberNamespaceCount]*staticsNamespace

func newStaticsArray(opt *IncOptimizer, className string) *staticsArray {
	var arr staticsArray
	for ns := ir.MemberNamespace(0); ns < ir.MemberNamespaceCount; ns++ {
		arr[ns] = newStaticsNamespace(opt, className, ns)
	}
	return &arr
}

// updateWith reconciles every namespace of the array and reports per-name
// changes for static-caller invalidation. For non-interface classes the
// public-instance slot must remain empty.
func (arr *staticsArray) updateWith(linked *ir.LinkedClass) map[namespacedMethodName]struct{} {
	changedNames := make(map[namespacedMethodName]struct{})
	for ns := ir.MemberNamespace(0); ns < ir.MemberNamespaceCount; ns++ {
		if ns == ir.PublicNamespace && !linked.Kind.IsInterface() {
			if len(arr[ns].methods) != 0 {
				panic(fmt.Sprintf("staticsArray.updateWith: %s has public instance methods in its statics slot",
					linked.EncodedName))
			}
			continue
		}
		_, changed, _ := arr[ns].updateWith(linked)
		for name := range changed {
			changedNames[namespacedMethodName{namespace: ns, name: name}] = struct{}{}
		}
	}
	return changedNames
}

// deleteAll marks every method in every namespace as deleted.
func (arr *staticsArray) deleteAll() {
	for ns := ir.MemberNamespace(0); ns < ir.MemberNamespaceCount; ns++ {
		arr[ns].deleteAll()
	}
}
