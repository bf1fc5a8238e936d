// Package symbols implements Compiscript's symbol table and scope tree
// (spec.md §3.4). Per the design notes in spec.md §9, symbols and scopes
// are represented as arena-allocated, stable handles (integer IDs) rather
// than Go pointers or by-value copies — every reference to a symbol or
// scope elsewhere in the compiler is a handle into this arena, so identity
// comparison (needed for closure capture deduplication) is just `==` on an
// int.
package symbols

import "compiscript/internal/types"

// SymbolID is a stable handle into an Env's symbol arena.
type SymbolID int

// NoSymbol is the invalid/absent SymbolID.
const NoSymbol SymbolID = -1

// ScopeID is a stable handle into an Env's scope arena.
type ScopeID int

// NoScope is the invalid/absent ScopeID.
const NoScope ScopeID = -1

// Kind identifies what a Symbol denotes.
type Kind int

const (
	VarKind Kind = iota
	ConstKind
	ParamKind
	FieldKind
	FuncKind
	ClassKind
)

// FuncInfo carries the function/method/constructor-specific fields of a
// FuncKind Symbol (spec.md §3.4).
type FuncInfo struct {
	Params     []FuncParam
	Return     types.Type
	IsMethod   bool
	OwnerClass string // set for methods/constructors: the declaring class name
	Captures   []SymbolID
	Label      string // backend label, assigned by the IR builder
	IsBuiltin  bool
}

// FuncParam is a single formal parameter's name and type.
type FuncParam struct {
	Name string
	Type types.Type
}

// ClassInfo carries the class-specific fields of a ClassKind Symbol.
type ClassInfo struct {
	Members  map[string]SymbolID // field/method name -> symbol, insertion order irrelevant
	Ctor     SymbolID            // NoSymbol if no explicit constructor
	BaseName string              // "" if no base class
}

// Symbol is one declared name: a variable, constant, parameter, field,
// function/method/constructor, or class.
type Symbol struct {
	ID     SymbolID
	Name   string
	Kind   Kind
	Type   types.Type
	HasType bool // false means "None" per spec.md §3.4 (type inferred later)
	Inited bool
	Scope  ScopeID // the scope this symbol was declared in

	Func  *FuncInfo  // non-nil iff Kind == FuncKind
	Class *ClassInfo // non-nil iff Kind == ClassKind
}

// ScopeKind identifies what introduced a Scope.
type ScopeKind int

const (
	BlockScope ScopeKind = iota
	FunctionScope
	ClassScope
)

// Scope is one node of the scope tree: a name table plus a parent link.
type Scope struct {
	ID     ScopeID
	Kind   ScopeKind
	Parent ScopeID
	Owner  SymbolID // owning function/class symbol, NoSymbol for plain blocks
	Names  map[string]SymbolID
}

// Env owns the symbol and scope arenas and tracks the current scope
// pointer, per spec.md §3.4/§9.
type Env struct {
	symbols []Symbol
	scopes  []Scope
	current ScopeID
	Root    ScopeID
}

// NewEnv creates an environment with a single root (global) block scope.
func NewEnv() *Env {
	e := &Env{}
	root := e.newScopeNode(BlockScope, NoScope, NoSymbol)
	e.Root = root
	e.current = root
	return e
}

func (e *Env) newScopeNode(kind ScopeKind, parent ScopeID, owner SymbolID) ScopeID {
	id := ScopeID(len(e.scopes))
	e.scopes = append(e.scopes, Scope{ID: id, Kind: kind, Parent: parent, Owner: owner, Names: make(map[string]SymbolID)})
	return id
}

// Current returns the current scope's handle.
func (e *Env) Current() ScopeID { return e.current }

// Scope dereferences a ScopeID. The returned pointer aliases arena storage.
func (e *Env) Scope(id ScopeID) *Scope { return &e.scopes[id] }

// Symbol dereferences a SymbolID. The returned pointer aliases arena
// storage, so in-place mutation (e.g. appending a capture) is visible to
// every other holder of the same ID.
func (e *Env) Symbol(id SymbolID) *Symbol { return &e.symbols[id] }

// AllSymbols returns every declared symbol, in declaration order. Used by
// the IR builder to discover which functions closed over an outer local
// (spec.md §4.1/§4.2's capture-list flattening) without needing its own
// parallel declaration pass.
func (e *Env) AllSymbols() []*Symbol {
	res := make([]*Symbol, len(e.symbols))
	for i := range e.symbols {
		res[i] = &e.symbols[i]
	}
	return res
}

// PushScope creates a new child of the current scope and makes it current,
// returning its handle so the caller can restore afterwards with PopTo.
func (e *Env) PushScope(kind ScopeKind, owner SymbolID) ScopeID {
	id := e.newScopeNode(kind, e.current, owner)
	e.current = id
	return id
}

// PopTo restores the current scope pointer, typically to a scope's parent.
func (e *Env) PopTo(id ScopeID) { e.current = id }

// EnclosingFunction walks up from the current scope to the nearest
// FunctionScope, returning NoScope if none exists (i.e. we are at
// top level).
func (e *Env) EnclosingFunction() ScopeID {
	s := e.current
	for s != NoScope {
		if e.scopes[s].Kind == FunctionScope {
			return s
		}
		s = e.scopes[s].Parent
	}
	return NoScope
}

// IsAncestor reports whether `ancestor` is a strict ancestor of `scope` in
// the scope tree (used by closure-capture detection).
func (e *Env) IsAncestor(ancestor, scope ScopeID) bool {
	s := e.scopes[scope].Parent
	for s != NoScope {
		if s == ancestor {
			return true
		}
		s = e.scopes[s].Parent
	}
	return false
}

// Declare adds a new symbol to the current scope. It returns an error
// (non-nil) if the name is already declared in this exact scope — spec.md
// §3.4: "Declaration forbids redeclaration in the same scope."
func (e *Env) Declare(name string, kind Kind) (SymbolID, bool) {
	cur := &e.scopes[e.current]
	if _, dup := cur.Names[name]; dup {
		return NoSymbol, false
	}
	id := SymbolID(len(e.symbols))
	e.symbols = append(e.symbols, Symbol{ID: id, Name: name, Kind: kind, Scope: e.current, HasType: false})
	cur.Names[name] = id
	return id, true
}

// DeclareIn is like Declare but targets an explicit scope (used by pass 1
// to declare class members into the class's own scope while the current
// scope is still the enclosing one).
func (e *Env) DeclareIn(scopeID ScopeID, name string, kind Kind) (SymbolID, bool) {
	sc := &e.scopes[scopeID]
	if _, dup := sc.Names[name]; dup {
		return NoSymbol, false
	}
	id := SymbolID(len(e.symbols))
	e.symbols = append(e.symbols, Symbol{ID: id, Name: name, Kind: kind, Scope: scopeID, HasType: false})
	sc.Names[name] = id
	return id, true
}

// Resolve walks from the current scope up through parents looking for
// name, per spec.md §3.4: "Resolution walks parents until found."
func (e *Env) Resolve(name string) (SymbolID, bool) {
	return e.ResolveFrom(e.current, name)
}

// ResolveFrom is Resolve starting from an explicit scope.
func (e *Env) ResolveFrom(from ScopeID, name string) (SymbolID, bool) {
	s := from
	for s != NoScope {
		if id, ok := e.scopes[s].Names[name]; ok {
			return id, true
		}
		s = e.scopes[s].Parent
	}
	return NoSymbol, false
}

// AppendCapture deduplicates by identity (SymbolID equality) and appends
// sym to fn's capture list, per spec.md §3.4/§4.1.
func AppendCapture(fn *FuncInfo, sym SymbolID) {
	for _, c := range fn.Captures {
		if c == sym {
			return
		}
	}
	fn.Captures = append(fn.Captures, sym)
}

// ResolveClassMember walks the inheritance chain starting at className,
// looking up memberName, tolerating cycles via a visited set (spec.md
// §3.4: "cycles tolerated via a visited set and treated as unresolved").
// classOf maps a class name to its ClassKind Symbol, supplied by the
// caller (typically a lookup into the root scope).
func ResolveClassMember(env *Env, classOf map[string]SymbolID, className, memberName string) (SymbolID, string, bool) {
	visited := make(map[string]bool)
	cur := className
	for cur != "" && !visited[cur] {
		visited[cur] = true
		classSym, ok := classOf[cur]
		if !ok {
			return NoSymbol, "", false
		}
		ci := env.Symbol(classSym).Class
		if id, ok := ci.Members[memberName]; ok {
			return id, cur, true
		}
		cur = ci.BaseName
	}
	return NoSymbol, "", false
}
