/*
Package glesutil exposes a native drawing context and an image decoder to
scripts running in a goja runtime.

A Runtime wraps native records in script objects. Each record is released
exactly once, after its object has become unreachable, by a job that runs on
the goroutine owning the goja runtime. Context objects forward native draw,
update and key events to script handlers; image objects expose decoded
pixels without copying them.

	vm := goja.New()
	r := glesutil.NewRuntime(vm, glesutil.WithDriver(driver))
	defer r.Close()
	_ = r.Install(glesutil.DefaultGlobalName)
	_, err := vm.RunString(`
		const es = Glesutil.initContext();
		es.createWindow("demo", 320, 240, es.WINDOW_RGB);
		es.registerDrawFunc(function (ctx) { return true; });
		es.mainLoop();
	`)
*/
package glesutil

import "github.com/dop251/goja"

// Factory returns the object carrying initContext and loadImage. It is
// built once per Runtime.
func (r *Runtime) Factory() *goja.Object {
	if r.factory != nil {
		return r.factory
	}
	f := r.vm.NewObject()
	_ = f.Set("initContext", r.initContext)
	_ = f.Set("loadImage", r.loadImage)
	r.factory = f
	return f
}
