// Package native defines the windowing/rendering context that glesutil wraps.
//
// The API mirrors the small C-style shape of esUtil: init a context, create a
// window on it, register per-event callbacks and run the blocking main loop.
// Drivers live in sub-packages (glfw for a real window, headless for tests).
package native

// Flags selects framebuffer features for CreateWindow. The values are part of
// the script surface (WINDOW_* constants) and must not change.
type Flags uint32

const (
	WindowRGB         Flags = 0
	WindowAlpha       Flags = 1
	WindowDepth       Flags = 2
	WindowStencil     Flags = 4
	WindowMultisample Flags = 8
)

// Has reports whether every bit of f2 is set in f.
func (f Flags) Has(f2 Flags) bool { return f&f2 == f2 }

// DrawFunc is fired once per frame. Returning false means no frame was
// produced and the driver must not swap buffers.
type DrawFunc func() bool

// UpdateFunc is fired once per frame with the elapsed time in seconds.
type UpdateFunc func(deltaTime float32) bool

// KeyFunc is fired for every key press with a single-byte key code and the
// pointer position inside the window.
type KeyFunc func(key byte, x, y int) bool

// Context is one native window/rendering context.
//
// A nil callback passed to a Register method removes it: the main loop must
// not fire that event at all until a non-nil callback is registered again.
// All methods are called from the goroutine that owns the script engine.
type Context interface {
	CreateWindow(title string, width, height int, flags Flags) bool
	RegisterDrawFunc(fn DrawFunc)
	RegisterUpdateFunc(fn UpdateFunc)
	RegisterKeyFunc(fn KeyFunc)
	// MainLoop blocks until the driver decides the loop is over.
	MainLoop() error
	Width() int
	Height() int
	// Destroy releases the window and any native state. It is called exactly
	// once, after the wrapping script object has been collected.
	Destroy()
}

// Driver creates native contexts (esInitContext).
type Driver interface {
	Init() Context
}

// DriverFunc adapts a function to the Driver interface.
type DriverFunc func() Context

func (f DriverFunc) Init() Context { return f() }
