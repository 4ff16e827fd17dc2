package optimizer

import (
	"sync"

	"github.com/chazu/stitch/ir"
)

// ---------------------------------------------------------------------------
// InterfaceType: per-encoded-name dependency record
// ---------------------------------------------------------------------------

// namespacedMethodName keys a static caller table entry.
type namespacedMethodName struct {
	namespace ir.MemberNamespace
	name      string
}

// InterfaceType is the dependency record for one encoded class or interface
// name. One exists for every linked name, created on demand. It carries the
// name's ancestor list, the set of currently instantiated classes that have
// it as an ancestor, and the caller tables that drive invalidation.
//
// Concurrency discipline: ancestors and instantiatedSubclasses are written
// only during UPDATE PASS and read only during PROCESS PASS, so reads need
// no lock (phase separation is the ordering). Additions to
// instantiatedSubclasses take callersMu, since classes may be inserted in
// parallel during UPDATE PASS. The caller tables are mutated by
// registrations in PROCESS PASS and by tagging in UPDATE PASS and are
// guarded by callersMu; the two kinds of mutation never share a phase but
// each is concurrent with itself.
//
// References to classes and methods held here are weak in the ownership
// sense: deletion sweeps must remove them, and nothing here keeps a deleted
// entity reachable by the optimizer.
type InterfaceType struct {
	opt  *IncOptimizer
	name string

	ancestors              []string
	instantiatedSubclasses map[*Class]struct{}

	callersMu      sync.Mutex
	ancestorAskers map[*MethodImpl]struct{}
	dynamicCallers map[string]map[*MethodImpl]struct{}
	staticCallers  map[namespacedMethodName]map[*MethodImpl]struct{}
}

func newInterfaceType(opt *IncOptimizer, name string) *InterfaceType {
	return &InterfaceType{
		opt:                    opt,
		name:                   name,
		ancestors:              []string{name},
		instantiatedSubclasses: make(map[*Class]struct{}),
		ancestorAskers:         make(map[*MethodImpl]struct{}),
		dynamicCallers:         make(map[string]map[*MethodImpl]struct{}),
		staticCallers:          make(map[namespacedMethodName]map[*MethodImpl]struct{}),
	}
}

// ---------------------------------------------------------------------------
// UPDATE PASS side
// ---------------------------------------------------------------------------

// setAncestors overwrites the ancestor list. Methods that observed the old
// list are invalidated when the list actually changed.
func (it *InterfaceType) setAncestors(ancestors []string) {
	if stringSlicesEqual(it.ancestors, ancestors) {
		return
	}
	it.ancestors = ancestors
	it.tagAncestorAskers()
}

func (it *InterfaceType) addInstantiatedSubclass(c *Class) {
	it.callersMu.Lock()
	it.instantiatedSubclasses[c] = struct{}{}
	it.callersMu.Unlock()
}

func (it *InterfaceType) removeInstantiatedSubclass(c *Class) {
	delete(it.instantiatedSubclasses, c)
}

// tagDynamicCallersOf invalidates every method that performed a virtual
// call of methodName against this type.
func (it *InterfaceType) tagDynamicCallersOf(methodName string) {
	it.callersMu.Lock()
	callers := snapshotMethodSet(it.dynamicCallers[methodName])
	it.callersMu.Unlock()

	// Tagging unregisters, which re-acquires callersMu; tag outside the lock.
	for _, m := range callers {
		m.tag()
	}
}

// tagStaticCallersOf invalidates every method that performed a statically
// bound call of (namespace, methodName) against this type.
func (it *InterfaceType) tagStaticCallersOf(ns ir.MemberNamespace, methodName string) {
	it.callersMu.Lock()
	callers := snapshotMethodSet(it.staticCallers[namespacedMethodName{namespace: ns, name: methodName}])
	it.callersMu.Unlock()

	for _, m := range callers {
		m.tag()
	}
}

func (it *InterfaceType) tagAncestorAskers() {
	it.callersMu.Lock()
	askers := snapshotMethodSet(it.ancestorAskers)
	it.callersMu.Unlock()

	for _, m := range askers {
		m.tag()
	}
}

// ---------------------------------------------------------------------------
// PROCESS PASS side
// ---------------------------------------------------------------------------

// registerAskAncestors subscribes asker to changes of the ancestor list and
// returns the current list.
func (it *InterfaceType) registerAskAncestors(asker *MethodImpl) []string {
	it.callersMu.Lock()
	it.ancestorAskers[asker] = struct{}{}
	it.callersMu.Unlock()
	asker.registerTo(it)
	return it.ancestors
}

// registerDynamicCaller records caller as a dynamic caller of methodName.
func (it *InterfaceType) registerDynamicCaller(methodName string, caller *MethodImpl) {
	it.callersMu.Lock()
	set := it.dynamicCallers[methodName]
	if set == nil {
		set = make(map[*MethodImpl]struct{})
		it.dynamicCallers[methodName] = set
	}
	set[caller] = struct{}{}
	it.callersMu.Unlock()
	caller.registerTo(it)
}

// registerStaticCaller records caller as a static caller of the namespaced
// method name.
func (it *InterfaceType) registerStaticCaller(ns ir.MemberNamespace, methodName string, caller *MethodImpl) {
	key := namespacedMethodName{namespace: ns, name: methodName}
	it.callersMu.Lock()
	set := it.staticCallers[key]
	if set == nil {
		set = make(map[*MethodImpl]struct{})
		it.staticCallers[key] = set
	}
	set[caller] = struct{}{}
	it.callersMu.Unlock()
	caller.registerTo(it)
}

// unregisterDependee removes the method from every caller table; called by
// the method's one-shot tag sweep.
func (it *InterfaceType) unregisterDependee(m *MethodImpl) {
	it.callersMu.Lock()
	delete(it.ancestorAskers, m)
	for _, set := range it.dynamicCallers {
		delete(set, m)
	}
	for _, set := range it.staticCallers {
		delete(set, m)
	}
	it.callersMu.Unlock()
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func snapshotMethodSet(set map[*MethodImpl]struct{}) []*MethodImpl {
	if len(set) == 0 {
		return nil
	}
	out := make([]*MethodImpl, 0, len(set))
	for m := range set {
		out = append(out, m)
	}
	return out
}

func stringSlicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
