package shaker

import (
	"fmt"
	"reflect"
)

// Equality compares an evaluator result against the expected output.
type Equality func(got, want any) bool

// EqualityByName returns the equality registered under name.
// Known names are "loose" and "strict"; an empty name selects "loose".
func EqualityByName(name string) (Equality, error) {
	switch name {
	case "", "loose":
		return LooseEqual, nil
	case "strict":
		return StrictEqual, nil
	default:
		return nil, NewErrorf("unknown equality %q", name).WithComponent("equality")
	}
}

// StrictEqual requires identical dynamic types and deep-equal values.
func StrictEqual(got, want any) bool {
	return reflect.DeepEqual(got, want)
}

// LooseEqual compares numbers by value regardless of their Go numeric kind,
// so int64(1) equals float64(1). A nil value only equals another nil value.
// Everything else falls back to deep equality; strings are never coerced
// to numbers.
func LooseEqual(got, want any) bool {
	if got == nil || want == nil {
		return got == nil && want == nil
	}

	gn, gok := asFloat(got)
	wn, wok := asFloat(want)
	if gok && wok {
		return gn == wn
	}

	return reflect.DeepEqual(got, want)
}

// asFloat converts any Go numeric value to float64.
func asFloat(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	default:
		return 0, false
	}
}

// describe renders a result for log fields.
func describe(v any) string {
	if v == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%v (%T)", v, v)
}
