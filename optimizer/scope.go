package optimizer

import (
	"sort"

	"github.com/chazu/stitch/ir"
)

// ---------------------------------------------------------------------------
// Hooks exposed to the intra-method optimizer
// ---------------------------------------------------------------------------

// MethodLookup is the query surface the intra-method optimizer uses to
// observe the rest of the program while optimizing one method. Every target
// lookup registers the current method as a dependent of the consulted
// record, so that a later invalidation of that record tags the method.
//
// The two side-table reads (HasElidableModuleAccessor and
// TryNewInlineableClass) register nothing: any change to those tables
// already invalidates the constructors' static callers, and a method only
// consults them while resolving a call that makes it such a caller.
type MethodLookup interface {
	// MethodBody returns the current original definition of a target and
	// subscribes the current method to changes of that body.
	MethodBody(target *MethodImpl) *ir.MethodDef

	// DynamicCall resolves a virtual call on an interface type: the possible
	// targets over all instantiated subclasses, deduplicated and in
	// deterministic order.
	DynamicCall(intfName, methodName string) []*MethodImpl

	// StaticCall resolves a statically bound call, or nil when no such
	// method exists.
	StaticCall(className string, ns ir.MemberNamespace, methodName string) *MethodImpl

	// AncestorsOf returns the ancestor names of an interface type.
	AncestorsOf(intfName string) []string

	// HasElidableModuleAccessor reads the module-accessor side table.
	HasElidableModuleAccessor(className string) bool

	// TryNewInlineableClass reads the record-inlining side table; nil when
	// the class is not inlineable.
	TryNewInlineableClass(className string) *ir.RecordValue
}

// methodScope implements MethodLookup for one method being processed.
type methodScope struct {
	m   *MethodImpl
	opt *IncOptimizer
}

func (s *methodScope) MethodBody(target *MethodImpl) *ir.MethodDef {
	target.registerBodyAsker(s.m)
	return target.originalDef
}

func (s *methodScope) DynamicCall(intfName, methodName string) []*MethodImpl {
	intf := s.opt.interfaceType(intfName)
	intf.registerDynamicCaller(methodName, s.m)

	seen := make(map[*MethodImpl]struct{})
	var targets []*MethodImpl
	for c := range intf.instantiatedSubclasses {
		if m := c.lookupMethod(methodName); m != nil {
			if _, dup := seen[m]; !dup {
				seen[m] = struct{}{}
				targets = append(targets, m)
			}
		}
	}
	sort.Slice(targets, func(i, j int) bool {
		if targets[i].OwnerClassName() != targets[j].OwnerClassName() {
			return targets[i].OwnerClassName() < targets[j].OwnerClassName()
		}
		return targets[i].encodedName < targets[j].encodedName
	})
	return targets
}

func (s *methodScope) StaticCall(className string, ns ir.MemberNamespace, methodName string) *MethodImpl {
	s.opt.interfaceType(className).registerStaticCaller(ns, methodName, s.m)

	if ns == ir.PublicNamespace {
		if c, ok := s.opt.classes[className]; ok {
			return c.lookupMethod(methodName)
		}
	}
	if arr, ok := s.opt.statics[className]; ok {
		return arr[ns].lookupLocalMethod(methodName)
	}
	return nil
}

func (s *methodScope) AncestorsOf(intfName string) []string {
	return s.opt.interfaceType(intfName).registerAskAncestors(s.m)
}

func (s *methodScope) HasElidableModuleAccessor(className string) bool {
	c, ok := s.opt.classes[className]
	return ok && c.hasElidableModuleAccessor
}

func (s *methodScope) TryNewInlineableClass(className string) *ir.RecordValue {
	c, ok := s.opt.classes[className]
	if !ok {
		return nil
	}
	return c.tryNewInlineable
}
