package glesutil

import (
	"github.com/buke/glesutil-go/native"
	"github.com/dop251/goja"
)

// wrappedContext is the native record behind a script Context object.
type wrappedContext struct {
	native native.Context
}

// contextTemplate is the script shape of a native drawing context.
var contextTemplate = NewTemplate("Context", KindContext).
	Constant("WINDOW_RGB", uint32(native.WindowRGB)).
	Constant("WINDOW_ALPHA", uint32(native.WindowAlpha)).
	Constant("WINDOW_DEPTH", uint32(native.WindowDepth)).
	Constant("WINDOW_STENCIL", uint32(native.WindowStencil)).
	Constant("WINDOW_MULTISAMPLE", uint32(native.WindowMultisample)).
	Accessor("width", contextWidth, nil).
	Accessor("height", contextHeight, nil).
	Accessor("drawFunc", handlerGetter(EventDraw), handlerSetter(EventDraw)).
	Accessor("updateFunc", handlerGetter(EventUpdate), handlerSetter(EventUpdate)).
	Accessor("keyFunc", handlerGetter(EventKey), handlerSetter(EventKey)).
	Method("createWindow", contextCreateWindow).
	Method("registerDrawFunc", registerFunc(EventDraw)).
	Method("registerUpdateFunc", registerFunc(EventUpdate)).
	Method("registerKeyFunc", registerFunc(EventKey)).
	Method("mainLoop", contextMainLoop)

func nativeContext(c Call) native.Context {
	return c.Value().(*wrappedContext).native
}

func contextWidth(c Call) goja.Value {
	return c.Runtime.vm.ToValue(uint32(nativeContext(c).Width()))
}

func contextHeight(c Call) goja.Value {
	return c.Runtime.vm.ToValue(uint32(nativeContext(c).Height()))
}

// contextCreateWindow implements createWindow(title, width, height, flags).
func contextCreateWindow(c Call) goja.Value {
	r := c.Runtime
	a := r.args("createWindow", c.FunctionCall)
	if !a.require(4) {
		return r.vm.ToValue(false)
	}
	title := a.string(0)
	width := a.uint32(1)
	height := a.uint32(2)
	flags := a.uint32(3)

	ok := nativeContext(c).CreateWindow(title, int(width), int(height), native.Flags(flags))
	r.logger.Debug("glesutil: createWindow", "title", title, "width", width, "height", height, "flags", flags, "ok", ok)
	return r.vm.ToValue(ok)
}

// contextMainLoop blocks in the native loop. Handlers run from inside it on
// this goroutine.
func contextMainLoop(c Call) goja.Value {
	if err := nativeContext(c).MainLoop(); err != nil {
		c.Runtime.throwError(err)
	}
	return goja.Undefined()
}

// initContext implements the factory's initContext().
func (r *Runtime) initContext(goja.FunctionCall) goja.Value {
	r.ReleasePending()
	if r.driver == nil {
		r.throwError(ErrNoDriver)
	}
	nc := r.driver.Init()
	if nc == nil {
		r.throwError(ErrNoContext)
	}
	return r.NewContextObject(nc)
}

// NewContextObject wraps nc for scripts. nc is destroyed once the returned
// object has been collected and its release has run.
func (r *Runtime) NewContextObject(nc native.Context) *goja.Object {
	return r.createWrapped(contextTemplate, &wrappedContext{native: nc}, nc.Destroy)
}
