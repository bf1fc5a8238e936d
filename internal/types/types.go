// Package types implements Compiscript's closed type-tag system and its
// assignability/operator rules (spec.md §3.3).
package types

import "fmt"

// Tag identifies a type's shape. Array and Class/Func carry extra data on
// the owning Type value.
type Tag int

const (
	Int Tag = iota
	Float
	Bool
	String
	Void
	Null
	Array
	Class
	Func
	Unknown
)

func (t Tag) String() string {
	switch t {
	case Int:
		return "int"
	case Float:
		return "float"
	case Bool:
		return "bool"
	case String:
		return "string"
	case Void:
		return "void"
	case Null:
		return "null"
	case Array:
		return "array"
	case Class:
		return "class"
	case Func:
		return "func"
	case Unknown:
		return "unknown"
	}
	return "?"
}

// Type is a Compiscript type. Elem is set for Array, Name for Class,
// Params/Ret for Func.
type Type struct {
	Tag    Tag
	Elem   *Type  // Array element type
	Name   string // Class name
	Params []Type // Func parameter types
	Ret    *Type  // Func return type
}

func (t Type) String() string {
	switch t.Tag {
	case Array:
		return fmt.Sprintf("%s[]", t.Elem.String())
	case Class:
		return t.Name
	case Func:
		s := "func("
		for i, p := range t.Params {
			if i > 0 {
				s += ", "
			}
			s += p.String()
		}
		s += ")"
		if t.Ret != nil {
			s += " -> " + t.Ret.String()
		}
		return s
	default:
		return t.Tag.String()
	}
}

func Simple(tag Tag) Type { return Type{Tag: tag} }

func ArrayOf(elem Type) Type {
	e := elem
	return Type{Tag: Array, Elem: &e}
}

func ClassType(name string) Type { return Type{Tag: Class, Name: name} }

func FuncType(params []Type, ret Type) Type {
	r := ret
	return Type{Tag: Func, Params: params, Ret: &r}
}

// IsNumeric reports whether t participates in numeric promotion.
func IsNumeric(t Type) bool { return t.Tag == Int || t.Tag == Float }

// IsReferenceLike reports whether t is a reference-like type that accepts
// null (spec.md §3.3: "null assignable to any reference-like type").
func IsReferenceLike(t Type) bool {
	return t.Tag == Class || t.Tag == Array || t.Tag == String
}

func Equal(a, b Type) bool {
	if a.Tag != b.Tag {
		return false
	}
	switch a.Tag {
	case Array:
		return Equal(*a.Elem, *b.Elem)
	case Class:
		return a.Name == b.Name
	case Func:
		if len(a.Params) != len(b.Params) {
			return false
		}
		for i := range a.Params {
			if !Equal(a.Params[i], b.Params[i]) {
				return false
			}
		}
		return Equal(*a.Ret, *b.Ret)
	}
	return true
}

// Promote returns the numeric promotion of a and b ("int, float -> float"),
// and false if either is non-numeric.
func Promote(a, b Type) (Type, bool) {
	if !IsNumeric(a) || !IsNumeric(b) {
		return Type{}, false
	}
	if a.Tag == Float || b.Tag == Float {
		return Simple(Float), true
	}
	return Simple(Int), true
}

// AssignableTo implements spec.md §3.3's assignability rules:
//   - identical types
//   - widening int -> float
//   - null assignable to any reference-like type
//   - arrays invariant in element type
//   - unknown accepts any argument (parameter position only; callers gate
//     that restriction themselves, AssignableTo treats `to.Tag == Unknown`
//     as always satisfied since the analyzer only calls it that way for
//     parameter checks).
func AssignableTo(from, to Type) bool {
	if to.Tag == Unknown {
		return true
	}
	if Equal(from, to) {
		return true
	}
	if from.Tag == Int && to.Tag == Float {
		return true
	}
	if from.Tag == Null && IsReferenceLike(to) {
		return true
	}
	return false
}

// BinaryResult implements the binary operator result table of spec.md
// §3.3. ok is false if the operator/operand combination is invalid.
func BinaryResult(op string, l, r Type) (Type, bool) {
	switch op {
	case "&&", "||":
		if l.Tag == Bool && r.Tag == Bool {
			return Simple(Bool), true
		}
		return Type{}, false
	case "+":
		if l.Tag == String && r.Tag == String {
			return Simple(String), true
		}
		if l.Tag == String || r.Tag == String {
			// Lowered via __concat at the IR builder; type-checks as string.
			return Simple(String), true
		}
		if p, ok := Promote(l, r); ok {
			return p, true
		}
		return Type{}, false
	case "-", "*", "/", "%":
		if p, ok := Promote(l, r); ok {
			return p, true
		}
		return Type{}, false
	case "<", "<=", ">", ">=":
		if IsNumeric(l) && IsNumeric(r) {
			return Simple(Bool), true
		}
		return Type{}, false
	case "==", "!=":
		if Equal(l, r) {
			return Simple(Bool), true
		}
		if IsNumeric(l) && IsNumeric(r) {
			return Simple(Bool), true
		}
		if l.Tag == Null && IsReferenceLike(r) || r.Tag == Null && IsReferenceLike(l) {
			return Simple(Bool), true
		}
		return Type{}, false
	}
	return Type{}, false
}

// UnaryResult implements the unary operator rules of spec.md §3.3.
func UnaryResult(op string, operand Type) (Type, bool) {
	switch op {
	case "!":
		if operand.Tag == Bool {
			return Simple(Bool), true
		}
	case "-":
		if IsNumeric(operand) {
			return operand, true
		}
	}
	return Type{}, false
}

// TernaryResult unifies two branch types under numeric promotion or
// null-vs-reference (spec.md §3.3).
func TernaryResult(then, els Type) (Type, bool) {
	if Equal(then, els) {
		return then, true
	}
	if p, ok := Promote(then, els); ok {
		return p, true
	}
	if then.Tag == Null && IsReferenceLike(els) {
		return els, true
	}
	if els.Tag == Null && IsReferenceLike(then) {
		return then, true
	}
	return Type{}, false
}

// UnifyArrayElems unifies an array literal's element types (spec.md §3.3):
// unify under numeric promotion, fail on heterogeneous non-numeric
// elements, and an empty literal unifies to Unknown.
func UnifyArrayElems(elems []Type) (Type, bool) {
	if len(elems) == 0 {
		return Simple(Unknown), true
	}
	result := elems[0]
	for _, e := range elems[1:] {
		if Equal(result, e) {
			continue
		}
		if p, ok := Promote(result, e); ok {
			result = p
			continue
		}
		return Type{}, false
	}
	return result, true
}
