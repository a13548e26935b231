package glesutil_test

import (
	"io"
	"log/slog"
	"runtime"
	"testing"
	"time"

	"github.com/buke/glesutil-go"
	"github.com/buke/glesutil-go/native/headless"
	"github.com/dop251/goja"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestRuntime returns a goja runtime with the factory installed as the
// Glesutil global, backed by a headless driver.
func newTestRuntime(t *testing.T, hopts headless.Options, opts ...glesutil.Option) (*goja.Runtime, *glesutil.Runtime, *headless.Driver) {
	return newBenchRuntime(t, hopts, opts...)
}

func newBenchRuntime(t testing.TB, hopts headless.Options, opts ...glesutil.Option) (*goja.Runtime, *glesutil.Runtime, *headless.Driver) {
	t.Helper()
	vm := goja.New()
	drv := headless.New(hopts)
	opts = append([]glesutil.Option{glesutil.WithDriver(drv), glesutil.WithLogger(quietLogger())}, opts...)
	r := glesutil.NewRuntime(vm, opts...)
	require.NoError(t, r.Install(glesutil.DefaultGlobalName))
	t.Cleanup(r.Close)
	return vm, r, drv
}

func run(t *testing.T, vm *goja.Runtime, src string) goja.Value {
	t.Helper()
	v, err := vm.RunString(src)
	require.NoError(t, err)
	return v
}

// collect runs the collector until cond holds.
func collect(t *testing.T, r *glesutil.Runtime, cond func() bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		runtime.GC()
		r.ReleasePending()
		return cond()
	}, 5*time.Second, 10*time.Millisecond)
}
