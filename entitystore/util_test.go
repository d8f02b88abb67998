package entitystore

import (
	"fmt"
	"path/filepath"
	"reflect"
	"testing"
)

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func ok(t testing.TB, err error) {
	if err != nil {
		t.Helper()
		t.Fatalf("** unexpected error: %v", err)
	}
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

type backend struct {
	name string
	open func(t testing.TB, opt Options) *Store
}

var backends = []backend{
	{"bolt", func(t testing.TB, opt Options) *Store {
		opt.IsTesting = true
		s := must(Open(filepath.Join(t.TempDir(), "test.db"), opt))
		t.Cleanup(func() { s.Close() })
		return s
	}},
	{"mem", func(t testing.TB, opt Options) *Store {
		s := OpenMemory(opt)
		t.Cleanup(func() { s.Close() })
		return s
	}},
}

// eachStore runs f against every backend and encoding.
func eachStore(t *testing.T, f func(t *testing.T, s *Store)) {
	for _, b := range backends {
		for _, enc := range []Encoding{MsgPack, JSON} {
			t.Run(fmt.Sprintf("%s/%v", b.name, enc), func(t *testing.T) {
				f(t, b.open(t, Options{Encoding: enc, Verbose: true}))
			})
		}
	}
}
