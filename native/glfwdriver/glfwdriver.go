// Package glfwdriver implements native.Driver on top of GLFW with an OpenGL ES 2.0
// context, which is what esUtil provides on EGL platforms.
//
// GLFW must be driven from the main OS thread: the program has to call
// runtime.LockOSThread from an init function (or main before anything else)
// and run the script engine on that same goroutine.
package glfwdriver

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/buke/glesutil-go/native"
	"github.com/go-gl/glfw/v3.3/glfw"
)

var (
	initOnce sync.Once
	initErr  error
)

func initGLFW() error {
	initOnce.Do(func() {
		initErr = glfw.Init()
	})
	return initErr
}

// Terminate shuts GLFW down. Call it once, after the last context is gone.
func Terminate() {
	if initErr == nil {
		glfw.Terminate()
	}
}

// Driver creates GLFW backed contexts. The main loop of every context returns
// when its window is asked to close or when ctx is done.
type Driver struct {
	ctx    context.Context
	logger *slog.Logger
	// SwapInterval is passed to glfwSwapInterval after window creation.
	SwapInterval int
}

// New returns a Driver whose loops stop when ctx is done.
func New(ctx context.Context, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{ctx: ctx, logger: logger, SwapInterval: 1}
}

// Init implements native.Driver.
func (d *Driver) Init() native.Context {
	return &Context{driver: d}
}

type keyPress struct {
	key  byte
	x, y int
}

// Context is a GLFW window with its GL ES context.
type Context struct {
	driver *Driver
	win    *glfw.Window
	width  int
	height int

	draw   native.DrawFunc
	update native.UpdateFunc
	key    native.KeyFunc

	pending []keyPress
}

// hints maps window flags onto framebuffer hints the way esCreateWindow maps
// them onto an EGL config.
func hints(flags native.Flags) {
	glfw.DefaultWindowHints()
	glfw.WindowHint(glfw.ClientAPI, glfw.OpenGLESAPI)
	glfw.WindowHint(glfw.ContextCreationAPI, glfw.EGLContextAPI)
	glfw.WindowHint(glfw.ContextVersionMajor, 2)
	glfw.WindowHint(glfw.ContextVersionMinor, 0)
	glfw.WindowHint(glfw.Resizable, glfw.False)

	bits := func(f native.Flags, n int) int {
		if flags.Has(f) {
			return n
		}
		return 0
	}
	glfw.WindowHint(glfw.AlphaBits, bits(native.WindowAlpha, 8))
	glfw.WindowHint(glfw.DepthBits, bits(native.WindowDepth, 8))
	glfw.WindowHint(glfw.StencilBits, bits(native.WindowStencil, 8))
	glfw.WindowHint(glfw.Samples, bits(native.WindowMultisample, 4))
}

func (c *Context) CreateWindow(title string, width, height int, flags native.Flags) bool {
	if err := initGLFW(); err != nil {
		c.driver.logger.Error("glfw: init failed", "err", err)
		return false
	}
	if c.win != nil {
		c.win.Destroy()
		c.win = nil
	}

	hints(flags)
	win, err := glfw.CreateWindow(width, height, title, nil, nil)
	if err != nil {
		// Some drivers only expose ES through the native context API.
		glfw.WindowHint(glfw.ContextCreationAPI, glfw.NativeContextAPI)
		win, err = glfw.CreateWindow(width, height, title, nil, nil)
	}
	if err != nil {
		c.driver.logger.Error("glfw: create window failed", "title", title, "err", err)
		return false
	}
	win.MakeContextCurrent()
	glfw.SwapInterval(c.driver.SwapInterval)

	c.win = win
	c.width, c.height = win.GetFramebufferSize()
	win.SetCharCallback(c.charEvent)
	win.SetKeyCallback(c.keyEvent)
	win.SetFramebufferSizeCallback(func(_ *glfw.Window, w, h int) {
		c.width, c.height = w, h
	})
	return true
}

func (c *Context) pointer() (int, int) {
	x, y := c.win.GetCursorPos()
	return int(x), int(y)
}

// charEvent queues printable input; only single-byte key codes reach scripts.
func (c *Context) charEvent(_ *glfw.Window, char rune) {
	if char < 0 || char > 0xff {
		return
	}
	x, y := c.pointer()
	c.pending = append(c.pending, keyPress{key: byte(char), x: x, y: y})
}

// keyEvent covers the control keys that produce no char event.
func (c *Context) keyEvent(_ *glfw.Window, k glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
	if action != glfw.Press && action != glfw.Repeat {
		return
	}
	var code byte
	switch k {
	case glfw.KeyEscape:
		code = 0x1b
	case glfw.KeyEnter, glfw.KeyKPEnter:
		code = '\r'
	case glfw.KeyTab:
		code = '\t'
	case glfw.KeyBackspace:
		code = '\b'
	case glfw.KeyDelete:
		code = 0x7f
	default:
		return
	}
	x, y := c.pointer()
	c.pending = append(c.pending, keyPress{key: code, x: x, y: y})
}

func (c *Context) RegisterDrawFunc(fn native.DrawFunc)     { c.draw = fn }
func (c *Context) RegisterUpdateFunc(fn native.UpdateFunc) { c.update = fn }
func (c *Context) RegisterKeyFunc(fn native.KeyFunc)       { c.key = fn }

// MainLoop polls events, fires key, update and draw callbacks and swaps the
// buffers when draw reports a frame.
func (c *Context) MainLoop() error {
	if c.win == nil {
		return fmt.Errorf("glfw: main loop started without a window")
	}
	last := time.Now()
	for !c.win.ShouldClose() {
		if err := c.driver.ctx.Err(); err != nil {
			return nil
		}
		glfw.PollEvents()

		pending := c.pending
		c.pending = nil
		for _, kp := range pending {
			if c.key != nil {
				c.key(kp.key, kp.x, kp.y)
			}
		}

		now := time.Now()
		dt := float32(now.Sub(last).Seconds())
		last = now
		if c.update != nil {
			c.update(dt)
		}
		if c.draw != nil && c.draw() {
			c.win.SwapBuffers()
		}
	}
	return nil
}

func (c *Context) Width() int  { return c.width }
func (c *Context) Height() int { return c.height }

func (c *Context) Destroy() {
	c.draw, c.update, c.key = nil, nil, nil
	if c.win != nil {
		c.win.Destroy()
		c.win = nil
	}
}
