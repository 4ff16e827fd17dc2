package optimizer

import (
	"bytes"
	"fmt"

	"github.com/chazu/stitch/ir"
	irhash "github.com/chazu/stitch/ir/hash"
)

// moduleCtorName is the encoded name of the no-argument constructor that
// initializes a module class instance.
const moduleCtorName = "init___"

// adHocElidableModuleAccessors lists module classes whose accessor is known
// to be elidable regardless of what their constructor body looks like.
var adHocElidableModuleAccessors = map[string]bool{
	"s_Predef$": true,
}

// ---------------------------------------------------------------------------
// Class: one node of the class hierarchy
// ---------------------------------------------------------------------------

// Class is the optimizer's record for one instantiable (non-interface)
// class. Classes form a single tree rooted at the class with no superclass;
// every non-root class appears in exactly one parent's subclass set. The
// embedded container owns the class's public instance methods.
type Class struct {
	methodContainer

	superClass         *Class
	parentChain        []*Class // this .. root
	reverseParentChain []*Class // root .. this

	subclasses map[string]*Class

	interfaces map[*InterfaceType]struct{}

	isInstantiated            bool
	isModuleClass             bool
	hasElidableModuleAccessor bool

	fields []ir.FieldDef

	isInlineable     bool
	tryNewInlineable *ir.RecordValue
}

func newClass(opt *IncOptimizer, encodedName string, superClass *Class) *Class {
	c := &Class{
		methodContainer: newMethodContainer(opt, encodedName, ir.PublicNamespace),
		superClass:      superClass,
		subclasses:      make(map[string]*Class),
		interfaces:      make(map[*InterfaceType]struct{}),
	}

	if superClass != nil {
		c.parentChain = make([]*Class, 0, len(superClass.parentChain)+1)
		c.parentChain = append(c.parentChain, c)
		c.parentChain = append(c.parentChain, superClass.parentChain...)
	} else {
		c.parentChain = []*Class{c}
	}
	c.reverseParentChain = make([]*Class, len(c.parentChain))
	for i, p := range c.parentChain {
		c.reverseParentChain[len(c.parentChain)-1-i] = p
	}

	return c
}

// EncodedName returns the class's encoded name.
func (c *Class) EncodedName() string {
	return c.className
}

// updateWithLinked reconciles the public instance container and the class's
// linked attributes (module flag, fields) with the new linked class.
func (c *Class) updateWithLinked(linked *ir.LinkedClass) (added, changed, deleted map[string]struct{}) {
	added, changed, deleted = c.updateWith(linked)
	c.isModuleClass = linked.Kind.IsModuleClass()
	c.fields = linked.Fields
	return added, changed, deleted
}

// lookupMethod resolves a public instance method, walking the superclass
// chain.
func (c *Class) lookupMethod(name string) *MethodImpl {
	for cur := c; cur != nil; cur = cur.superClass {
		if m := cur.methods[name]; m != nil {
			return m
		}
	}
	return nil
}

// allMethodNames returns the names visible on instances of this class:
// the merged public containers of the reverse parent chain, parent methods
// overridden by child. Deliberately not cached; it is consulted only on
// instantiation-state transitions.
func (c *Class) allMethodNames() map[string]struct{} {
	names := make(map[string]struct{})
	for _, p := range c.reverseParentChain {
		for name := range p.methods {
			names[name] = struct{}{}
		}
	}
	return names
}

// ---------------------------------------------------------------------------
// Setup of freshly added classes
// ---------------------------------------------------------------------------

// setupAfterCreation initializes a newly inserted class from its linked
// definition. In incremental mode an instantiated new class invalidates,
// on each of its interfaces, the dynamic callers of every method name
// visible on it: those callers observed an instantiated-subclass set that
// just grew.
func (c *Class) setupAfterCreation(linked *ir.LinkedClass, batchMode bool) {
	c.updateWithLinked(linked) // every method is fresh and schedules itself
	c.interfaces = c.opt.interfaceSetOf(linked.Ancestors)

	c.isInstantiated = linked.HasInstances
	if c.isInstantiated {
		var names map[string]struct{}
		if !batchMode {
			names = c.allMethodNames()
		}
		for intf := range c.interfaces {
			intf.addInstantiatedSubclass(c)
			for name := range names {
				intf.tagDynamicCallersOf(name)
			}
		}
	}

	c.hasElidableModuleAccessor = c.computeElidableModuleAccessor()
	c.updateTryNewInlineable(linked)
}

// ---------------------------------------------------------------------------
// Per-class change processing (retained classes, incremental mode)
// ---------------------------------------------------------------------------

// processChanges reconciles a retained class with its new linked definition
// and returns the method-attribute change set to propagate to subclasses:
// every parent-level change not overridden locally, plus every change here.
func (c *Class) processChanges(linked *ir.LinkedClass, parentChanges map[string]struct{}) map[string]struct{} {
	added, changed, deleted := c.updateWithLinked(linked)

	propagated := make(map[string]struct{})
	for name := range parentChanges {
		if _, overridden := c.methods[name]; !overridden {
			propagated[name] = struct{}{}
		}
	}
	for name := range added {
		propagated[name] = struct{}{}
	}
	for name := range changed {
		propagated[name] = struct{}{}
	}
	for name := range deleted {
		propagated[name] = struct{}{}
	}

	oldInterfaces := c.interfaces
	newInterfaces := c.opt.interfaceSetOf(linked.Ancestors)
	c.interfaces = newInterfaces

	c.transitionInstantiated(linked, oldInterfaces, newInterfaces, propagated)

	myInterface := c.opt.interfaceType(c.className)
	for name := range propagated {
		myInterface.tagStaticCallersOf(ir.PublicNamespace, name)
	}

	oldElidable := c.hasElidableModuleAccessor
	c.hasElidableModuleAccessor = c.computeElidableModuleAccessor()

	oldTryNew := c.tryNewInlineable
	c.updateTryNewInlineable(linked)
	if c.hasElidableModuleAccessor != oldElidable || !recordValuesEqual(oldTryNew, c.tryNewInlineable) {
		for name := range c.opt.staticsOf(c.className)[ir.ConstructorNamespace].methods {
			myInterface.tagStaticCallersOf(ir.ConstructorNamespace, name)
		}
	}

	return propagated
}

// transitionInstantiated applies the instantiation-state transition rules.
// Becoming uninstantiated outside the deletion pass is a bug. Becoming
// instantiated conservatively invalidates dynamic callers of every visible
// method name; staying instantiated invalidates per the change set on
// retained interfaces and conservatively on interfaces entering or leaving
// the set.
func (c *Class) transitionInstantiated(linked *ir.LinkedClass,
	oldInterfaces, newInterfaces map[*InterfaceType]struct{},
	propagated map[string]struct{}) {

	was, now := c.isInstantiated, linked.HasInstances

	if was && !now {
		panic(fmt.Sprintf("Class.transitionInstantiated: %s lost its instances outside the deletion pass",
			c.className))
	}

	if !was && now {
		c.isInstantiated = true
		names := c.allMethodNames()
		for intf := range newInterfaces {
			intf.addInstantiatedSubclass(c)
			for name := range names {
				intf.tagDynamicCallersOf(name)
			}
		}
		return
	}

	if was && now {
		sameSets := interfaceSetsEqual(oldInterfaces, newInterfaces)

		for intf := range oldInterfaces {
			if _, retained := newInterfaces[intf]; retained {
				for name := range propagated {
					intf.tagDynamicCallersOf(name)
				}
			}
		}

		if !sameSets {
			names := c.allMethodNames()
			for intf := range oldInterfaces {
				if _, retained := newInterfaces[intf]; !retained {
					intf.removeInstantiatedSubclass(c)
					for name := range names {
						intf.tagDynamicCallersOf(name)
					}
				}
			}
			for intf := range newInterfaces {
				if _, existed := oldInterfaces[intf]; !existed {
					intf.addInstantiatedSubclass(c)
					for name := range names {
						intf.tagDynamicCallersOf(name)
					}
				}
			}
		}
	}
}

// ---------------------------------------------------------------------------
// Deletion
// ---------------------------------------------------------------------------

// deleteSubtree removes this class and all its descendants: every method is
// marked deleted, the classes leave the class table, and previously
// instantiated classes run the no-longer-instantiated bookkeeping. Visible
// method names are captured before the methods go away so their dynamic
// callers can still be invalidated.
func (c *Class) deleteSubtree() {
	for _, sub := range c.subclasses {
		sub.deleteSubtree()
	}

	names := c.allMethodNames()
	c.deleteAll()
	c.opt.removeClass(c.className)

	if c.isInstantiated {
		c.isInstantiated = false
		for intf := range c.interfaces {
			intf.removeInstantiatedSubclass(c)
			for name := range names {
				intf.tagDynamicCallersOf(name)
			}
		}
	}
}

// ---------------------------------------------------------------------------
// Module accessor elidability
// ---------------------------------------------------------------------------

// computeElidableModuleAccessor decides whether loads of this module can
// skip the lazy initialization check: either the class is on the ad-hoc
// allow list, or it is a module class whose constructor has no observable
// effect beyond storing the module instance.
func (c *Class) computeElidableModuleAccessor() bool {
	if adHocElidableModuleAccessors[c.className] {
		return true
	}
	if !c.isModuleClass {
		return false
	}
	ctor := c.opt.staticsMethod(c.className, ir.ConstructorNamespace, moduleCtorName)
	return ctor != nil && c.opt.isElidableModuleConstructor(ctor)
}

func (o *IncOptimizer) isElidableModuleConstructor(ctor *MethodImpl) bool {
	if ctor.originalDef == nil || ctor.originalDef.Body == nil {
		return false
	}
	return o.isElidableCtorStat(ctor.originalDef.Body)
}

func (o *IncOptimizer) isElidableCtorStat(tree ir.Tree) bool {
	switch t := tree.(type) {
	case *ir.Block:
		for _, stat := range t.Stats {
			if !o.isElidableCtorStat(stat) {
				return false
			}
		}
		return true

	case *ir.Assign:
		sel, ok := t.LHS.(*ir.Select)
		if !ok {
			return false
		}
		if _, onThis := sel.Qualifier.(*ir.This); !onThis {
			return false
		}
		return isTriviallySideEffectFree(t.RHS)

	case *ir.StoreModule:
		return true

	case *ir.ApplyStatically:
		for _, arg := range t.Args {
			if !isTriviallySideEffectFree(arg) {
				return false
			}
		}
		switch t.Namespace {
		case ir.ConstructorNamespace:
			// Delegation to a super- or same-class constructor, itself elidable.
			target := o.staticsMethod(t.ClassName, ir.ConstructorNamespace, t.Method)
			return target != nil && o.isElidableModuleConstructor(target)
		case ir.PublicStaticNamespace:
			// Mixin constructor whose original body is Skip.
			target := o.staticsMethod(t.ClassName, ir.PublicStaticNamespace, t.Method)
			if target == nil || target.originalDef == nil {
				return false
			}
			_, isSkip := target.originalDef.Body.(*ir.Skip)
			return isSkip
		default:
			return false
		}

	default:
		return isTriviallySideEffectFree(tree)
	}
}

func isTriviallySideEffectFree(tree ir.Tree) bool {
	switch tree.(type) {
	case *ir.VarRef, *ir.This, *ir.Skip, *ir.Null,
		*ir.IntLiteral, *ir.LongLiteral, *ir.DoubleLiteral,
		*ir.BooleanLiteral, *ir.StringLiteral:
		return true
	default:
		return false
	}
}

// ---------------------------------------------------------------------------
// Inlineable-record derivation
// ---------------------------------------------------------------------------

// updateTryNewInlineable recomputes the record-inlining state. When the
// linked hints mark the class inlineable, tryNewInlineable is a record
// value carrying every non-static field of the parent chain, root to leaf,
// initialized to its type's zero value.
func (c *Class) updateTryNewInlineable(linked *ir.LinkedClass) {
	c.isInlineable = linked.OptimizerHints.Inline
	if !c.isInlineable {
		c.tryNewInlineable = nil
		return
	}

	var fields []ir.RecordField
	for _, ancestor := range c.reverseParentChain {
		for _, f := range ancestor.fields {
			if !f.Static {
				fields = append(fields, ir.RecordField{Name: f.Name, Value: ir.ZeroOf(f.Type)})
			}
		}
	}
	c.tryNewInlineable = &ir.RecordValue{ClassName: c.className, Fields: fields}
}

func recordValuesEqual(a, b *ir.RecordValue) bool {
	if a == nil || b == nil {
		return a == b
	}
	return bytes.Equal(irhash.Serialize(a), irhash.Serialize(b))
}

func interfaceSetsEqual(a, b map[*InterfaceType]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for intf := range a {
		if _, ok := b[intf]; !ok {
			return false
		}
	}
	return true
}
