// Package optimizer implements the incremental method optimizer of the
// stitch linker.
//
// The optimizer accepts a linking unit and returns an equivalent unit in
// which every method body has been replaced by an optimized version. Across
// successive runs it recomputes only the method optimizations whose inputs
// changed: while a method is optimized, every program fact it observes
// (call targets, method bodies, ancestor lists) registers it as a
// dependent, and the next update run tags exactly the dependents of
// whatever it mutated.
//
// A run has two phases. The update pass reconciles the retained class
// hierarchy, statics namespaces, and interface-type index with the new
// unit, tagging invalidated methods. The process pass then reoptimizes the
// tagged methods, in parallel when so configured.
package optimizer

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/tliron/commonlog"

	"github.com/chazu/stitch/ir"
)

// Config selects the execution backend of the two passes.
type Config struct {
	Parallel bool
	Workers  int // 0 means GOMAXPROCS
}

// IncOptimizer is the incremental optimizer. It owns the only long-lived
// mutable state: the class hierarchy, the statics index, and the
// interface-type index. It is not safe for concurrent Update calls.
type IncOptimizer struct {
	core OptimizerCore
	exec executor

	// Held for the duration of one Update run, cleared on all exit paths.
	logger commonlog.Logger

	classesMu   sync.Mutex // guards class-table writes during parallel insertion
	classes     map[string]*Class
	statics     map[string]*staticsArray
	objectClass *Class

	interfacesMu sync.RWMutex
	interfaces   map[string]*InterfaceType

	scheduleMu       sync.Mutex
	methodsToProcess []*MethodImpl
}

// NewIncOptimizer creates an optimizer using the given intra-method core.
// A nil core selects the default core.
func NewIncOptimizer(core OptimizerCore, cfg Config) *IncOptimizer {
	if core == nil {
		core = DefaultCore()
	}
	var exec executor = serialExecutor{}
	if cfg.Parallel {
		exec = newParallelExecutor(cfg.Workers)
	}
	return &IncOptimizer{
		core:       core,
		exec:       exec,
		classes:    make(map[string]*Class),
		statics:    make(map[string]*staticsArray),
		interfaces: make(map[string]*InterfaceType),
	}
}

// Update optimizes a linking unit incrementally against the state retained
// from previous runs. The first call runs in batch mode; subsequent calls
// reoptimize only invalidated methods. The logger is held for the duration
// of the run. Not re-entrant.
func (o *IncOptimizer) Update(unit *ir.LinkingUnit, logger commonlog.Logger) *ir.LinkingUnit {
	if logger == nil {
		logger = commonlog.GetLogger("stitch.optimizer")
	}
	o.logger = logger
	defer func() { o.logger = nil }()

	batchMode := o.objectClass == nil
	if batchMode {
		o.logger.Debug("batch update")
	} else {
		o.logger.Debug("incremental update")
	}

	o.updateAndTagEverything(unit, batchMode)
	o.processScheduledMethods()
	return o.rebuildUnit(unit)
}

// ---------------------------------------------------------------------------
// UPDATE PASS
// ---------------------------------------------------------------------------

func (o *IncOptimizer) updateAndTagEverything(unit *ir.LinkingUnit, batchMode bool) {
	newClasses := make(map[string]*ir.LinkedClass, len(unit.Classes))
	for _, lc := range unit.Classes {
		newClasses[lc.EncodedName] = lc
	}

	// Refresh ancestor lists. Dynamic and static callers are not notified
	// here; methods that asked for ancestors are invalidated by the setter
	// when the list actually changed.
	for _, lc := range unit.Classes {
		o.interfaceType(lc.EncodedName).setAncestors(lc.Ancestors)
	}

	o.updateStatics(unit, newClasses, batchMode)

	if !batchMode {
		rootLinked, ok := newClasses[o.objectClass.className]
		if !ok || rootLinked.Kind.IsInterface() || rootLinked.SuperClass != "" {
			panic(fmt.Sprintf("IncOptimizer.Update: the root class %s was deleted",
				o.objectClass.className))
		}
		o.walkForDeletionsAndChanges(o.objectClass, newClasses, nil)
	}

	o.addNewClasses(unit, batchMode)
}

// updateStatics reconciles the per-class statics arrays: deletions and
// per-method updates for retained names (incremental only), fresh arrays
// for new names. Distinct classes are independent and run in parallel.
func (o *IncOptimizer) updateStatics(unit *ir.LinkingUnit, newClasses map[string]*ir.LinkedClass, batchMode bool) {
	if !batchMode {
		for name, arr := range o.statics {
			if _, stillLinked := newClasses[name]; !stillLinked {
				arr.deleteAll()
				delete(o.statics, name)
			}
		}

		var retained []*ir.LinkedClass
		for _, lc := range unit.Classes {
			if _, ok := o.statics[lc.EncodedName]; ok {
				retained = append(retained, lc)
			}
		}
		o.exec.forEachN(len(retained), func(i int) {
			lc := retained[i]
			changed := o.statics[lc.EncodedName].updateWith(lc)
			intf := o.interfaceType(lc.EncodedName)
			for key := range changed {
				intf.tagStaticCallersOf(key.namespace, key.name)
			}
		})
	}

	var fresh []*ir.LinkedClass
	for _, lc := range unit.Classes {
		if _, ok := o.statics[lc.EncodedName]; !ok {
			fresh = append(fresh, lc)
			o.statics[lc.EncodedName] = newStaticsArray(o, lc.EncodedName)
		}
	}
	o.exec.forEachN(len(fresh), func(i int) {
		o.statics[fresh[i].EncodedName].updateWith(fresh[i])
	})
}

// walkForDeletionsAndChanges walks the retained hierarchy depth-first. A
// node survives only if its class is still linked, still a class, and still
// has the same immediate superclass; otherwise its whole subtree is
// deleted (a re-parented class reappears through the additions walk).
// Surviving nodes process their change set and propagate it downward.
func (o *IncOptimizer) walkForDeletionsAndChanges(c *Class,
	newClasses map[string]*ir.LinkedClass, parentChanges map[string]struct{}) {

	changes := c.processChanges(newClasses[c.className], parentChanges)

	for name, sub := range c.subclasses {
		sublinked, ok := newClasses[name]
		if !ok || sublinked.Kind.IsInterface() || sublinked.SuperClass != c.className {
			sub.deleteSubtree()
			delete(c.subclasses, name)
		} else {
			o.walkForDeletionsAndChanges(sub, newClasses, changes)
		}
	}
}

// addNewClasses inserts hierarchy nodes for linked classes not yet in the
// class table. In batch mode the (single) class without a superclass
// becomes the root and everything is inserted beneath it; in incremental
// mode insertion descends from the existing parents that received new
// children, in parallel across distinct parents.
func (o *IncOptimizer) addNewClasses(unit *ir.LinkingUnit, batchMode bool) {
	byParent := make(map[string][]*ir.LinkedClass)
	var rootLinked *ir.LinkedClass
	addedCount := 0

	for _, lc := range unit.Classes {
		if lc.Kind.IsInterface() {
			continue
		}
		if _, exists := o.classes[lc.EncodedName]; exists {
			continue
		}
		addedCount++
		if lc.SuperClass == "" {
			if rootLinked != nil {
				panic(fmt.Sprintf("IncOptimizer.Update: both %s and %s have no superclass",
					rootLinked.EncodedName, lc.EncodedName))
			}
			rootLinked = lc
		} else {
			byParent[lc.SuperClass] = append(byParent[lc.SuperClass], lc)
		}
	}

	var inserted atomic.Int64

	if batchMode {
		if rootLinked != nil {
			root := newClass(o, rootLinked.EncodedName, nil)
			o.addClass(root)
			o.objectClass = root
			root.setupAfterCreation(rootLinked, batchMode)
			inserted.Add(1)
			inserted.Add(o.insertChildren(root, byParent, batchMode))
		}
	} else {
		if rootLinked != nil {
			panic(fmt.Sprintf("IncOptimizer.Update: new class %s has no superclass in incremental mode",
				rootLinked.EncodedName))
		}
		var roots []*Class
		for parentName := range byParent {
			if parent, ok := o.classes[parentName]; ok {
				roots = append(roots, parent)
			}
		}
		sort.Slice(roots, func(i, j int) bool { return roots[i].className < roots[j].className })
		o.exec.forEachN(len(roots), func(i int) {
			inserted.Add(o.insertChildren(roots[i], byParent, batchMode))
		})
	}

	if int(inserted.Load()) != addedCount {
		panic(fmt.Sprintf("IncOptimizer.Update: %d new classes have unknown parents",
			addedCount-int(inserted.Load())))
	}
}

func (o *IncOptimizer) insertChildren(parent *Class, byParent map[string][]*ir.LinkedClass, batchMode bool) int64 {
	var count int64
	for _, lc := range byParent[parent.className] {
		c := newClass(o, lc.EncodedName, parent)
		o.addClass(c)
		parent.subclasses[lc.EncodedName] = c
		c.setupAfterCreation(lc, batchMode)
		count += 1 + o.insertChildren(c, byParent, batchMode)
	}
	return count
}

// ---------------------------------------------------------------------------
// PROCESS PASS
// ---------------------------------------------------------------------------

func (o *IncOptimizer) scheduleMethod(m *MethodImpl) {
	o.scheduleMu.Lock()
	o.methodsToProcess = append(o.methodsToProcess, m)
	o.scheduleMu.Unlock()
}

func (o *IncOptimizer) processScheduledMethods() {
	o.scheduleMu.Lock()
	methods := append([]*MethodImpl(nil), o.methodsToProcess...)
	o.scheduleMu.Unlock()

	o.logger.Debugf("optimizing %d methods", len(methods))
	o.exec.forEachN(len(methods), func(i int) {
		methods[i].process(o.core)
	})

	// Cleared only on completion: if processing panicked, the still-tagged
	// methods stay queued and the next run picks them up.
	o.scheduleMu.Lock()
	o.methodsToProcess = nil
	o.scheduleMu.Unlock()
}

// ---------------------------------------------------------------------------
// Rebuilding the unit
// ---------------------------------------------------------------------------

// rebuildUnit substitutes the optimized method definitions back into the
// linked classes. Public instance methods come from the Class container;
// everything else, including interface default methods, comes from the
// statics array.
func (o *IncOptimizer) rebuildUnit(unit *ir.LinkingUnit) *ir.LinkingUnit {
	classes := make([]*ir.LinkedClass, len(unit.Classes))
	for i, lc := range unit.Classes {
		methods := make([]ir.Versioned[*ir.MethodDef], len(lc.Methods))
		for j, vdef := range lc.Methods {
			methods[j] = o.optimizedMethodFor(lc, vdef.Value)
		}
		classes[i] = lc.Optimized(methods)
	}
	return &ir.LinkingUnit{
		CoreSpec:           unit.CoreSpec,
		Classes:            classes,
		ModuleInitializers: unit.ModuleInitializers,
	}
}

func (o *IncOptimizer) optimizedMethodFor(lc *ir.LinkedClass, def *ir.MethodDef) ir.Versioned[*ir.MethodDef] {
	ns := def.Flags.Namespace

	var impl *MethodImpl
	if ns == ir.PublicNamespace && !lc.Kind.IsInterface() {
		if c, ok := o.classes[lc.EncodedName]; ok {
			impl = c.lookupLocalMethod(def.EncodedName)
		}
	} else if arr, ok := o.statics[lc.EncodedName]; ok {
		impl = arr[ns].lookupLocalMethod(def.EncodedName)
	}
	if impl == nil {
		panic(fmt.Sprintf("IncOptimizer.rebuildUnit: no implementation for %s.%s (%s)",
			lc.EncodedName, def.EncodedName, ns))
	}
	return impl.OptimizedDef()
}

// ---------------------------------------------------------------------------
// Indexes
// ---------------------------------------------------------------------------

// interfaceType returns the record for an encoded name, creating it on
// demand. Safe for concurrent use; process-pass hooks call this.
func (o *IncOptimizer) interfaceType(name string) *InterfaceType {
	o.interfacesMu.RLock()
	it := o.interfaces[name]
	o.interfacesMu.RUnlock()
	if it != nil {
		return it
	}

	o.interfacesMu.Lock()
	defer o.interfacesMu.Unlock()
	if it = o.interfaces[name]; it == nil {
		it = newInterfaceType(o, name)
		o.interfaces[name] = it
	}
	return it
}

func (o *IncOptimizer) interfaceSetOf(ancestors []string) map[*InterfaceType]struct{} {
	set := make(map[*InterfaceType]struct{}, len(ancestors))
	for _, name := range ancestors {
		set[o.interfaceType(name)] = struct{}{}
	}
	return set
}

func (o *IncOptimizer) staticsOf(className string) *staticsArray {
	arr, ok := o.statics[className]
	if !ok {
		panic(fmt.Sprintf("IncOptimizer.staticsOf: no statics for %s", className))
	}
	return arr
}

// staticsMethod resolves a method in a statics namespace, or nil.
func (o *IncOptimizer) staticsMethod(className string, ns ir.MemberNamespace, name string) *MethodImpl {
	arr, ok := o.statics[className]
	if !ok {
		return nil
	}
	return arr[ns].lookupLocalMethod(name)
}

func (o *IncOptimizer) addClass(c *Class) {
	o.classesMu.Lock()
	o.classes[c.className] = c
	o.classesMu.Unlock()
}

func (o *IncOptimizer) removeClass(name string) {
	o.classesMu.Lock()
	delete(o.classes, name)
	o.classesMu.Unlock()
}
