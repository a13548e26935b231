package glesutil_test

import (
	"errors"
	"testing"
	"time"

	"github.com/buke/glesutil-go"
	"github.com/buke/glesutil-go/native/headless"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBridgeDispatch tests argument marshaling for every event and that a
// throwing handler neither stops the loop nor reaches the caller.
func TestBridgeDispatch(t *testing.T) {
	var failures []*glesutil.DispatchError
	vm, r, drv := newTestRuntime(t, headless.Options{
		Frames: 3,
		Delta:  250 * time.Millisecond,
		Keys:   []headless.KeyEvent{{Frame: 1, Key: 65, X: 10, Y: 20}},
	}, glesutil.WithDispatchErrorHandler(func(err *glesutil.DispatchError) {
		failures = append(failures, err)
	}))

	run(t, vm, `
		var es = Glesutil.initContext();
		es.createWindow("dispatch", 8, 8, es.WINDOW_RGB);
		var draws = 0, updates = [], keys = [];
		es.registerUpdateFunc(function (ctx, dt) {
			updates.push(dt);
			if (updates.length === 1) throw new Error("boom");
		});
		es.registerKeyFunc(function (ctx, key, x, y) {
			keys.push([ctx === es, this === es, key, x, y]);
		});
		es.registerDrawFunc(function (ctx) {
			draws++;
			if (draws === 2) throw new TypeError("no frame");
		});
		es.mainLoop();
	`)

	require.EqualValues(t, 3, run(t, vm, `draws`).ToInteger())
	require.Equal(t, `[0.25,0.25,0.25]`, run(t, vm, `JSON.stringify(updates)`).String())
	require.Equal(t, `[[true,true,"A",10,20]]`, run(t, vm, `JSON.stringify(keys)`).String())

	stats := drv.Contexts()[0].Stats()
	require.Equal(t, 3, stats.Updates)
	require.Equal(t, 3, stats.Draws)
	require.Equal(t, 2, stats.Swaps, "a failed draw must not swap")
	require.Equal(t, 1, stats.Keys)

	require.Len(t, failures, 2)
	require.Equal(t, glesutil.EventUpdate, failures[0].Event)
	require.Equal(t, glesutil.EventDraw, failures[1].Event)
	var jsErr *glesutil.Error
	require.True(t, errors.As(failures[0], &jsErr))
	assert.Equal(t, "Error", jsErr.Name)
	assert.Equal(t, "boom", jsErr.Message)
	require.True(t, errors.As(failures[1], &jsErr))
	assert.Equal(t, "TypeError", jsErr.Name)
	assert.EqualValues(t, 2, r.Stats().DispatchErrors)
}

// TestBridgeNoHandlerNoDispatch tests that events without a handler are never
// wired to the native loop, whichever way the handler was removed.
func TestBridgeNoHandlerNoDispatch(t *testing.T) {
	vm, _, drv := newTestRuntime(t, headless.Options{Frames: 4, Keys: []headless.KeyEvent{{Frame: 0, Key: 'x'}}})

	run(t, vm, `
		var es = Glesutil.initContext();
		es.createWindow("idle", 8, 8, es.WINDOW_RGB);
		var calls = 0;
		es.registerDrawFunc(function () { calls++; });
		es.registerDrawFunc();
		es.updateFunc = function () { calls++; };
		es.updateFunc = null;
		es.registerKeyFunc(function () { calls++; });
		es.registerKeyFunc(undefined);
		es.mainLoop();
	`)

	c := drv.Contexts()[0]
	draw, update, key := c.Registered()
	require.False(t, draw)
	require.False(t, update)
	require.False(t, key)
	require.Equal(t, 4, c.Stats().Frames)
	require.Zero(t, c.Stats().Draws+c.Stats().Updates+c.Stats().Keys)
	require.EqualValues(t, 0, run(t, vm, `calls`).ToInteger())
	require.True(t, run(t, vm, `es.drawFunc === undefined && es.keyFunc === undefined`).ToBoolean())
}

// TestBridgeLastRegistrationWins tests that re-registering before the next
// frame replaces the handler and queues nothing.
func TestBridgeLastRegistrationWins(t *testing.T) {
	vm, _, _ := newTestRuntime(t, headless.Options{Frames: 2})

	run(t, vm, `
		var es = Glesutil.initContext();
		es.createWindow("swap", 8, 8, es.WINDOW_RGB);
		var seen = [];
		function first() { seen.push("first"); }
		function second() { seen.push("second"); }
		es.registerDrawFunc(first);
		es.registerDrawFunc(second);
		es.mainLoop();
		var second_is_read_back = es.drawFunc === second;
		es.drawFunc = first;
		es.mainLoop();
	`)
	require.Equal(t, `["second","second","first","first"]`, run(t, vm, `JSON.stringify(seen)`).String())
	require.True(t, run(t, vm, `second_is_read_back`).ToBoolean())
}

// TestBridgeHandlerChangesDuringLoop tests registration from inside a
// running handler.
func TestBridgeHandlerChangesDuringLoop(t *testing.T) {
	vm, _, drv := newTestRuntime(t, headless.Options{Frames: 5})

	run(t, vm, `
		var es = Glesutil.initContext();
		es.createWindow("live", 8, 8, es.WINDOW_RGB);
		var ticks = 0;
		es.registerUpdateFunc(function (ctx) {
			if (++ticks === 2) ctx.registerUpdateFunc(null);
		});
		es.mainLoop();
	`)
	require.EqualValues(t, 2, run(t, vm, `ticks`).ToInteger())
	require.Equal(t, 2, drv.Contexts()[0].Stats().Updates)
}

// TestBridgeLatin1Keys tests that key bytes above 0x7f map to the same code
// point.
func TestBridgeLatin1Keys(t *testing.T) {
	vm, _, _ := newTestRuntime(t, headless.Options{Keys: []headless.KeyEvent{
		{Key: 0xe9, X: -3, Y: 7},
		{Key: 0x1b},
	}})

	run(t, vm, `
		var es = Glesutil.initContext();
		es.createWindow("keys", 8, 8, es.WINDOW_RGB);
		var codes = [];
		es.keyFunc = function (ctx, key, x, y) { codes.push([key.length, key.charCodeAt(0), x, y]); };
		es.mainLoop();
	`)
	require.Equal(t, `[[1,233,-3,7],[1,27,0,0]]`, run(t, vm, `JSON.stringify(codes)`).String())
}

// TestBridgeArgumentPolicy tests non-callable handlers under both policies.
func TestBridgeArgumentPolicy(t *testing.T) {
	t.Run("lenient", func(t *testing.T) {
		var failures []*glesutil.DispatchError
		vm, _, drv := newTestRuntime(t, headless.Options{Frames: 2},
			glesutil.WithDispatchErrorHandler(func(err *glesutil.DispatchError) { failures = append(failures, err) }))

		run(t, vm, `
			var es = Glesutil.initContext();
			es.createWindow("lenient", 8, 8, es.WINDOW_RGB);
			es.registerDrawFunc(42);
			es.mainLoop();
		`)
		stats := drv.Contexts()[0].Stats()
		require.Equal(t, 2, stats.Draws)
		require.Zero(t, stats.Swaps)
		require.Len(t, failures, 2)
		require.EqualValues(t, 42, run(t, vm, `es.drawFunc`).ToInteger())
	})

	t.Run("strict", func(t *testing.T) {
		vm, _, drv := newTestRuntime(t, headless.Options{}, glesutil.WithArgumentPolicy(glesutil.ArgumentsStrict))

		run(t, vm, `var es = Glesutil.initContext();`)
		for _, src := range []string{`es.registerDrawFunc(42)`, `es.updateFunc = "nope"`, `es.registerKeyFunc({})`} {
			_, err := vm.RunString(src)
			require.Error(t, err, src)
			require.Contains(t, err.Error(), "TypeError")
			require.Contains(t, err.Error(), "wrong argument type")
		}
		draw, update, key := drv.Contexts()[0].Registered()
		require.False(t, draw || update || key)

		// removing a handler is always allowed
		run(t, vm, `es.registerDrawFunc(); es.updateFunc = null;`)
	})
}
