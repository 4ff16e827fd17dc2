package optimizer

import (
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/chazu/stitch/ir"
)

// ---------------------------------------------------------------------------
// MethodImpl: per-method state of the incremental optimizer
// ---------------------------------------------------------------------------

// dependencyRecord is anything a method can subscribe to for invalidation:
// an interface type (call targets, ancestors) or another method (its body).
// When a method is tagged it removes itself from every record it joined.
type dependencyRecord interface {
	unregisterDependee(m *MethodImpl)
}

// methodAttributes are the properties of a method the intra-method optimizer
// observes on call targets. A change in attributes invalidates callers even
// when the body hash is unchanged upstream.
type methodAttributes struct {
	inlineable  bool
	isForwarder bool
}

// MethodImpl holds the optimizer's state for one method of one container.
// It tracks the current input definition and version, the optimized output,
// the one-shot tag bit, and the dependency records it is registered with.
//
// The tag bit is the linearization point for invalidation: the CAS from
// clear to set is the exclusive critical section, and whoever wins it
// performs the one-shot schedule and unregister. tag is safe to call
// concurrently with itself and with delete on the same instance.
type MethodImpl struct {
	owner       *methodContainer
	encodedName string

	lastInVersion  string // "" when no version has been recorded
	lastOutVersion int64

	optimizerHints ir.MethodOptimizerHints
	originalDef    *ir.MethodDef
	optimizedDef   ir.Versioned[*ir.MethodDef]

	attributes methodAttributes

	tagged  atomic.Bool
	deleted bool

	// Records this method has subscribed to since its last optimization.
	registeredMu sync.Mutex
	registeredTo map[dependencyRecord]struct{}

	// Methods that asked for this method's body during their last
	// optimization. MethodImpl is itself a dependencyRecord for them.
	askersMu   sync.Mutex
	bodyAskers map[*MethodImpl]struct{}
}

func newMethodImpl(owner *methodContainer, encodedName string) *MethodImpl {
	return &MethodImpl{
		owner:        owner,
		encodedName:  encodedName,
		registeredTo: make(map[dependencyRecord]struct{}),
		bodyAskers:   make(map[*MethodImpl]struct{}),
	}
}

// EncodedName returns the method's encoded name.
func (m *MethodImpl) EncodedName() string {
	return m.encodedName
}

// OwnerClassName returns the encoded name of the class or namespace that
// owns this method.
func (m *MethodImpl) OwnerClassName() string {
	return m.owner.className
}

// Namespace returns the member namespace the method lives in.
func (m *MethodImpl) Namespace() ir.MemberNamespace {
	return m.owner.namespace
}

// Inlineable reports whether call sites may inline this method.
func (m *MethodImpl) Inlineable() bool {
	return m.attributes.inlineable
}

// IsForwarder reports whether the body is a single forwarding call.
func (m *MethodImpl) IsForwarder() bool {
	return m.attributes.isForwarder
}

// OptimizedDef returns the current optimized definition with its output
// version. Valid after the method has been processed at least once.
func (m *MethodImpl) OptimizedDef() ir.Versioned[*ir.MethodDef] {
	return m.optimizedDef
}

// ---------------------------------------------------------------------------
// UPDATE PASS operations
// ---------------------------------------------------------------------------

// updateWith reconciles the method with a new versioned definition and
// returns whether the method attributes changed (callers that observed the
// attributes must then be invalidated by the caller of updateWith).
//
// When the incoming version equals the recorded input version the definition
// is not even inspected. Otherwise the body hash decides: an unchanged hash
// is authoritative and leaves the method untouched, a changed hash notifies
// body askers, replaces the definition, and tags the method itself.
func (m *MethodImpl) updateWith(vdef ir.Versioned[*ir.MethodDef]) bool {
	if m.deleted {
		panic(fmt.Sprintf("MethodImpl.updateWith: %s updated after deletion", m.encodedName))
	}

	if vdef.SameVersion(m.lastInVersion) {
		return false
	}
	m.lastInVersion = vdef.Version

	newDef := vdef.Value
	bodyChanged := m.originalDef == nil ||
		m.originalDef.Hash.IsZero() || newDef.Hash.IsZero() ||
		m.originalDef.Hash != newDef.Hash

	if !bodyChanged {
		return false
	}

	m.tagBodyAskers()
	oldAttributes := m.attributes
	m.optimizerHints = newDef.OptimizerHints
	m.originalDef = newDef
	m.attributes = computeAttributes(newDef)
	m.tag()
	return m.attributes != oldAttributes
}

// delete marks the method as removed from its container. Deleting twice is
// a bug in the update pass.
func (m *MethodImpl) delete() {
	if m.deleted {
		panic(fmt.Sprintf("MethodImpl.delete: %s deleted twice", m.encodedName))
	}
	m.deleted = true
	if m.protectTag() {
		m.unregisterFromEverywhere()
	}
}

// tag marks the method for reoptimization. The first tag since the last
// reset schedules the method and removes it from every dependency record;
// later tags in the same run are no-ops.
func (m *MethodImpl) tag() {
	if m.protectTag() {
		m.owner.opt.scheduleMethod(m)
		m.unregisterFromEverywhere()
	}
}

// protectTag transitions the tag bit from clear to set, returning true for
// the caller that won the transition.
func (m *MethodImpl) protectTag() bool {
	return m.tagged.CompareAndSwap(false, true)
}

func (m *MethodImpl) resetTag() {
	m.tagged.Store(false)
}

// registerTo records a subscription so it can be swept on the next tag.
func (m *MethodImpl) registerTo(record dependencyRecord) {
	m.registeredMu.Lock()
	m.registeredTo[record] = struct{}{}
	m.registeredMu.Unlock()
}

func (m *MethodImpl) unregisterFromEverywhere() {
	m.registeredMu.Lock()
	records := m.registeredTo
	m.registeredTo = make(map[dependencyRecord]struct{})
	m.registeredMu.Unlock()

	for record := range records {
		record.unregisterDependee(m)
	}
}

// ---------------------------------------------------------------------------
// MethodImpl as a dependency record (body askers)
// ---------------------------------------------------------------------------

// registerBodyAsker subscribes asker to changes of this method's body.
func (m *MethodImpl) registerBodyAsker(asker *MethodImpl) {
	m.askersMu.Lock()
	m.bodyAskers[asker] = struct{}{}
	m.askersMu.Unlock()
	asker.registerTo(m)
}

func (m *MethodImpl) unregisterDependee(dep *MethodImpl) {
	m.askersMu.Lock()
	delete(m.bodyAskers, dep)
	m.askersMu.Unlock()
}

// tagBodyAskers invalidates every method that consumed this method's body.
func (m *MethodImpl) tagBodyAskers() {
	m.askersMu.Lock()
	askers := make([]*MethodImpl, 0, len(m.bodyAskers))
	for asker := range m.bodyAskers {
		askers = append(askers, asker)
	}
	m.askersMu.Unlock()

	for _, asker := range askers {
		asker.tag()
	}
}

// ---------------------------------------------------------------------------
// PROCESS PASS
// ---------------------------------------------------------------------------

// process runs the intra-method optimizer on the current definition and
// records the result under a fresh output version. Hook lookups performed
// by the core re-register this method with everything it consults.
func (m *MethodImpl) process(core OptimizerCore) {
	if m.deleted {
		return
	}

	scope := &methodScope{m: m, opt: m.owner.opt}
	optimized := core.Optimize(m.owner.receiverClass(), m.originalDef, scope)

	m.lastOutVersion++
	m.optimizedDef = ir.Versioned[*ir.MethodDef]{
		Value:   optimized,
		Version: strconv.FormatInt(m.lastOutVersion, 10),
	}
	m.resetTag()
}

// ---------------------------------------------------------------------------
// Attribute derivation
// ---------------------------------------------------------------------------

func computeAttributes(def *ir.MethodDef) methodAttributes {
	forwarder := isForwarderBody(def.Body)
	inlineable := !def.OptimizerHints.NoInline &&
		(def.OptimizerHints.Inline || forwarder || isTrivialBody(def.Body))
	return methodAttributes{inlineable: inlineable, isForwarder: forwarder}
}

// isForwarderBody recognizes bodies that are a single statically-bound call
// forwarding the receiver and parameters unchanged.
func isForwarderBody(body ir.Tree) bool {
	call, ok := body.(*ir.ApplyStatically)
	if !ok {
		return false
	}
	if call.Receiver != nil {
		if !isParamRef(call.Receiver) {
			return false
		}
	}
	for _, arg := range call.Args {
		if !isParamRef(arg) {
			return false
		}
	}
	return true
}

func isParamRef(tree ir.Tree) bool {
	switch tree.(type) {
	case *ir.This, *ir.VarRef:
		return true
	default:
		return false
	}
}

// isTrivialBody recognizes constant and empty bodies, and bodies that are
// just the receiver (This).
func isTrivialBody(body ir.Tree) bool {
	switch body.(type) {
	case *ir.Skip, *ir.IntLiteral, *ir.LongLiteral, *ir.DoubleLiteral,
		*ir.BooleanLiteral, *ir.StringLiteral, *ir.Null, *ir.This:
		return true
	default:
		return false
	}
}
