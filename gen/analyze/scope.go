// Package analyze implements the static-analysis passes of the pipeline: the
// lexical scope stack, the single-pass type annotator, and the nogil purity
// analyzer. Results are recorded in a side table keyed by node pointer; the
// parsed tree itself is never mutated.
package analyze

import (
	"github.com/broady/pyxgen"
	"github.com/broady/pyxgen/gen/ir"
)

// ErrImbalancedScope is returned when Exit is called on the root scope. This
// is a traversal-ordering bug in the caller, never an input problem, and is
// the pipeline's one fatal condition.
var ErrImbalancedScope = pyxgen.NewError(pyxgen.CodeImbalancedScope, "scope stack popped past its root")

// scope is one lexical environment. The parent link is exclusively owned by
// the child for the nesting lifetime.
type scope struct {
	parent *scope
	vars   map[string]ir.Descriptor
	class  bool
}

// ScopeStack manages the stack of lexical scopes during annotation. Each
// compilation run owns an exclusive instance.
type ScopeStack struct {
	current *scope
}

// NewScopeStack returns a stack holding only the root (module) scope.
func NewScopeStack() *ScopeStack {
	return &ScopeStack{current: &scope{vars: make(map[string]ir.Descriptor)}}
}

// Enter pushes a new scope. isClass marks class bodies, whose bindings are
// attributes rather than locals.
func (s *ScopeStack) Enter(isClass bool) {
	s.current = &scope{
		parent: s.current,
		vars:   make(map[string]ir.Descriptor),
		class:  isClass,
	}
}

// Exit pops the current scope, dropping all its bindings. Popping the root
// scope returns ErrImbalancedScope.
func (s *ScopeStack) Exit() error {
	if s.current.parent == nil {
		return ErrImbalancedScope
	}
	s.current = s.current.parent
	return nil
}

// Bind inserts or overwrites name in the current scope only. Shadowing an
// enclosing binding is legal; inner scopes may rebind a name with a narrower
// type.
func (s *ScopeStack) Bind(name string, d ir.Descriptor) {
	s.current.vars[name] = d
}

// Lookup searches the current scope, then ancestors. Absence is not an error;
// callers treat a missing name as the opaque object type.
func (s *ScopeStack) Lookup(name string) (ir.Descriptor, bool) {
	for sc := s.current; sc != nil; sc = sc.parent {
		if d, ok := sc.vars[name]; ok {
			return d, true
		}
	}
	return ir.Descriptor{}, false
}

// BoundLocally reports whether name is bound in the current scope itself,
// ignoring ancestors. Used to distinguish shadowing from rebinding.
func (s *ScopeStack) BoundLocally(name string) bool {
	_, ok := s.current.vars[name]
	return ok
}

// InClassScope reports whether any enclosing scope is a class body.
func (s *ScopeStack) InClassScope() bool {
	for sc := s.current; sc != nil; sc = sc.parent {
		if sc.class {
			return true
		}
	}
	return false
}
