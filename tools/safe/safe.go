package safe

import (
	"reflect"

	"FreightLink/logger"

	"FreightLink/tools/errs"
)

// MustNotNil panics if the given value is nil.
// Useful for enforcing required dependencies during struct initialization.
func MustNotNil(v any, name string) {
	if v == nil {
		panic(name + " must not be nil")
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Chan, reflect.Slice, reflect.Func, reflect.Interface:
		if rv.IsNil() {
			panic(name + " must not be nil")
		}
	}
}

// Go starts a goroutine that recovers from panic, so a handler panic
// never takes down the gateway process.
func Go(f func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("[safe.Go] panic recovered: %v", errs.ErrPanic(r))
			}
		}()
		f()
	}()
}
