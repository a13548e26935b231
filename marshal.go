package glesutil

import (
	"math"

	"github.com/dop251/goja"
)

// keyValue marshals a native key code as a one character string. Byte c
// maps to code point c, so codes above 0x7f read as Latin-1.
func keyValue(vm *goja.Runtime, key byte) goja.Value {
	return vm.ToValue(string(rune(key)))
}

// args reads script arguments under the Runtime's ArgumentPolicy.
//
// Under ArgumentsLenient every accessor coerces like the engine's own
// ToString/ToUint32 conversions and ok is false only when arguments are
// missing. Under ArgumentsStrict a missing or mistyped argument throws.
type args struct {
	r    *Runtime
	fn   string
	call goja.FunctionCall
}

func (r *Runtime) args(fn string, call goja.FunctionCall) args {
	return args{r: r, fn: fn, call: call}
}

// require reports whether at least n arguments were passed.
func (a args) require(n int) bool {
	if len(a.call.Arguments) >= n {
		return true
	}
	if a.r.policy == ArgumentsStrict {
		a.r.throwError(&ArgumentError{Kind: TooFewArguments, Func: a.fn, Index: n})
	}
	return false
}

func (a args) wrongType(i int, want string) {
	a.r.throwError(&ArgumentError{Kind: WrongArgumentType, Func: a.fn, Index: i, Want: want})
}

func (a args) string(i int) string {
	v := a.call.Argument(i)
	if a.r.policy == ArgumentsStrict {
		if _, ok := v.Export().(string); !ok {
			a.wrongType(i, "string")
		}
	}
	return v.String()
}

func (a args) uint32(i int) uint32 {
	v := a.call.Argument(i)
	if a.r.policy == ArgumentsStrict && !isNumber(v) {
		a.wrongType(i, "number")
	}
	return toUint32(v)
}

func isNumber(v goja.Value) bool {
	switch v.Export().(type) {
	case int64, float64:
		return true
	}
	return false
}

// toUint32 follows the ECMAScript ToUint32 conversion: NaN and infinities
// become 0, everything else wraps modulo 2^32.
func toUint32(v goja.Value) uint32 {
	f := v.ToFloat()
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	f = math.Mod(math.Trunc(f), 1<<32)
	if f < 0 {
		f += 1 << 32
	}
	return uint32(f)
}
