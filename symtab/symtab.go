// Package symtab implements the compiler's symbol table: a tree of lexically
// nested scopes with parent-chain lookup. Declare resolves variables to the
// nearest enclosing function or global scope rather than the current
// (possibly block) scope, which is what PHP's function-wide variable
// scoping requires.
package symtab

import (
	"fmt"

	"github.com/wudi/phpaot/diag"
	"github.com/wudi/phpaot/types"
)

// Kind is a symbol's namespace. Functions and variables live in separate
// namespaces, per PHP semantics.
type Kind int

const (
	Variable Kind = iota
	Parameter
	Function
	Class
	Constant
)

// ScopeKind classifies a scope node in the scope tree.
type ScopeKind int

const (
	Global ScopeKind = iota
	FunctionScope
	Block
)

// Symbol is a declared name.
type Symbol struct {
	Name        string
	Kind        Kind
	Type        types.Type
	Declaration *diag.Location
	ScopeID     int
	ParamCount  int // Function symbols only: declared parameter count
}

// Scope is one node in the scope tree.
type Scope struct {
	ID       int
	ParentID int // -1 for the global scope
	Kind     ScopeKind
	symbols  map[symbolKey]*Symbol
}

type symbolKey struct {
	name string
	kind Kind
}

// DuplicateSymbol is returned when declaring an already-declared name of
// the same kind in the same target scope.
type DuplicateSymbol struct {
	Name string
	Kind Kind
}

func (e *DuplicateSymbol) Error() string {
	return fmt.Sprintf("duplicate symbol %q", e.Name)
}

// Table owns the scope tree and the current scope cursor.
type Table struct {
	scopes  []*Scope
	current int // index into scopes of the current scope
}

// NewTable creates a table with just the global scope, entered.
func NewTable() *Table {
	t := &Table{}
	t.scopes = append(t.scopes, &Scope{ID: 0, ParentID: -1, Kind: Global, symbols: make(map[symbolKey]*Symbol)})
	t.current = 0
	return t
}

// EnterScope pushes a new child scope of the given kind and makes it
// current, returning its id.
func (t *Table) EnterScope(kind ScopeKind) int {
	id := len(t.scopes)
	t.scopes = append(t.scopes, &Scope{
		ID:       id,
		ParentID: t.scopes[t.current].ID,
		Kind:     kind,
		symbols:  make(map[symbolKey]*Symbol),
	})
	t.current = id
	return id
}

// LeaveScope pops back to the current scope's parent. It is a no-op at the
// global scope.
func (t *Table) LeaveScope() {
	cur := t.scopes[t.current]
	if cur.ParentID < 0 {
		return
	}
	t.current = cur.ParentID
}

// CurrentScopeID returns the id of the scope a declaration would land in if
// made right now (before any variable-hoisting redirection).
func (t *Table) CurrentScopeID() int {
	return t.scopes[t.current].ID
}

// Declare adds name/kind to the appropriate scope: variables and parameters
// hoist to the nearest enclosing function (or global) scope; functions,
// classes, and constants declare in the current scope. Redeclaring the same
// name+kind in the target scope fails with DuplicateSymbol.
func (t *Table) Declare(name string, kind Kind, ty types.Type, loc *diag.Location) (*Symbol, error) {
	target := t.scopes[t.current]
	if kind == Variable || kind == Parameter {
		target = t.hoistScope()
	}

	key := symbolKey{name, kind}
	if existing, ok := target.symbols[key]; ok {
		return existing, &DuplicateSymbol{Name: name, Kind: kind}
	}

	sym := &Symbol{Name: name, Kind: kind, Type: ty, Declaration: loc, ScopeID: target.ID}
	target.symbols[key] = sym
	return sym, nil
}

// hoistScope walks up from the current scope to the nearest function or
// global scope, the landing scope for PHP variable declarations.
func (t *Table) hoistScope() *Scope {
	s := t.scopes[t.current]
	for s.Kind == Block {
		s = t.byID(s.ParentID)
	}
	return s
}

func (t *Table) byID(id int) *Scope {
	return t.scopes[id]
}

// Lookup walks the current scope's parent chain (starting at the current
// scope) looking for name/kind.
func (t *Table) Lookup(name string, kind Kind) (*Symbol, bool) {
	s := t.scopes[t.current]
	for {
		if sym, ok := s.symbols[symbolKey{name, kind}]; ok {
			return sym, true
		}
		if s.ParentID < 0 {
			return nil, false
		}
		s = t.byID(s.ParentID)
	}
}

// LookupLocal looks up name/kind only in the current scope.
func (t *Table) LookupLocal(name string, kind Kind) (*Symbol, bool) {
	sym, ok := t.scopes[t.current].symbols[symbolKey{name, kind}]
	return sym, ok
}

// UpdateType widens sym's inferred type to the union of its current type
// and ty. Idempotent when ty already equals the current type.
func (sym *Symbol) UpdateType(ty types.Type) {
	if sym.Type.Equal(ty) {
		return
	}
	sym.Type = types.Union(sym.Type, ty)
}
