// Package value defines the tagged-union runtime value manipulated by the
// compiler's constant pool and the virtual machine's stacks.
package value

import (
	"fmt"
	"strconv"
)

// Kind discriminates the variant held by a Value.
type Kind uint8

const (
	KindNil Kind = iota
	KindBool
	KindNumber
	KindString // Ref is an interned string id
	KindFunc   // Ref is a function table id
	KindClosure
)

// Value is a tagged union over {Nil, Bool, Number, StrRef, FuncRef,
// ClosureRef}. It is small and copied by value throughout the compiler and
// VM.
type Value struct {
	kind Kind
	num  float64 // Number, and Bool (0/1)
	ref  uint32  // StrRef / FuncRef / ClosureRef id
}

// Nil is the sole nil value.
var Nil = Value{kind: KindNil}

// Bool constructs a boolean value.
func Bool(b bool) Value {
	if b {
		return Value{kind: KindBool, num: 1}
	}
	return Value{kind: KindBool}
}

// Number constructs a numeric value.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// StrRef constructs a value referencing interned string id.
func StrRef(id uint32) Value { return Value{kind: KindString, ref: id} }

// FuncRef constructs a value referencing function table id.
func FuncRef(id uint32) Value { return Value{kind: KindFunc, ref: id} }

// ClosureRef constructs a value referencing closure table id.
func ClosureRef(id uint32) Value { return Value{kind: KindClosure, ref: id} }

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsNil() bool { return v.kind == KindNil }

// AsBool returns the boolean held by v. It is only meaningful if Kind() ==
// KindBool.
func (v Value) AsBool() bool { return v.num != 0 }

// AsNumber returns the float64 held by v. It is only meaningful if Kind()
// == KindNumber.
func (v Value) AsNumber() float64 { return v.num }

// AsRef returns the interned id held by v. It is only meaningful if Kind()
// is KindString, KindFunc, or KindClosure.
func (v Value) AsRef() uint32 { return v.ref }

// Truthy implements wenyan's truthiness rule: false is false, every other
// value (including nil, 0, and the empty string) is true.
func (v Value) Truthy() bool {
	return !(v.kind == KindBool && v.num == 0)
}

// Equal reports structural equality for Nil/Bool/Number/StrRef and identity
// equality (same table id) for FuncRef/ClosureRef.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNil:
		return true
	case KindBool, KindNumber:
		return v.num == o.num
	default:
		return v.ref == o.ref
	}
}

// Stringer and Namer are what Format needs to render interned strings and
// callables for PRINT. Stringer is a narrow lookup interface implemented by
// lang/interner.Interner; Namer resolves a function/closure id to its
// display name ("" for the top-level script), implemented by
// lang/object.Namer.
type Stringer interface {
	Lookup(id uint32) string
}

type Namer interface {
	Name(kind Kind, id uint32) string
}

// Format renders v for PRINT output, per spec.md §6: nil -> "undefined",
// bool -> "true"/"false", number -> shortest round-trip decimal, string ->
// raw bytes, function/closure -> "<fn> name" ("<fn> <global context>" if
// name is empty).
func (v Value) Format(strs Stringer, names Namer) string {
	switch v.kind {
	case KindNil:
		return "undefined"
	case KindBool:
		if v.AsBool() {
			return "true"
		}
		return "false"
	case KindNumber:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case KindString:
		return strs.Lookup(v.ref)
	case KindFunc, KindClosure:
		name := names.Name(v.kind, v.ref)
		if name == "" {
			name = "<global context>"
		}
		return fmt.Sprintf("<fn> %s", name)
	default:
		return fmt.Sprintf("<invalid value kind %d>", v.kind)
	}
}
