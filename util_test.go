package dsval

import (
	"errors"
	"reflect"
	"testing"
)

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func eq[T comparable](t testing.TB, a, e T) {
	if a != e {
		t.Helper()
		t.Errorf("** got %v, wanted %v", a, e)
	}
}

func deepEqual[T any](t testing.TB, a, e T) {
	if !reflect.DeepEqual(a, e) {
		t.Helper()
		t.Errorf("** got %v, wanted %v", a, e)
	}
}

// isErr checks that err is an *Error of the given kind and detail.
func isErr(t testing.TB, err error, kind ErrorKind, detail string) {
	t.Helper()
	var e *Error
	if !errors.As(err, &e) {
		t.Errorf("** got error %v, wanted %v(%q)", err, kind, detail)
		return
	}
	if e.Kind != kind || (detail != "" && e.Detail != detail) {
		t.Errorf("** got %v(%q), wanted %v(%q)", e.Kind, e.Detail, kind, detail)
	}
}

func wireJSON(t testing.TB, v Value) string {
	t.Helper()
	raw, err := MarshalJSON(v)
	if err != nil {
		t.Fatalf("** MarshalJSON(%#v) failed: %v", v, err)
	}
	return string(raw)
}
