package jit

import "reflect"

// VariantTag identifies the concrete kind of a dispatched value.
// Equality defines distinct variants.
type VariantTag string

// NilTag is the tag of an untyped nil operand.
const NilTag VariantTag = "<nil>"

// TagOf returns the tag of v's dynamic type. Named types are qualified with
// their full package path so identically named types from different packages
// stay distinct.
func TagOf(v any) VariantTag {
	if v == nil {
		return NilTag
	}
	return TagOfType(reflect.TypeOf(v))
}

// TagOfType returns the tag for a reflect.Type.
func TagOfType(t reflect.Type) VariantTag {
	if t == nil {
		return NilTag
	}
	if t.Name() != "" && t.PkgPath() != "" {
		return VariantTag(t.PkgPath() + "." + t.Name())
	}
	return VariantTag(t.String())
}
