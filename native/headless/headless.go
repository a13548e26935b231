// Package headless provides a deterministic native.Driver without a window
// system. Every main loop runs a fixed number of frames with a fixed delta
// and replays scripted key presses, which makes it the driver used by tests
// and CI runs of the glesutil runner.
package headless

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/buke/glesutil-go/native"
)

// ErrNoWindow is returned by MainLoop when CreateWindow was never called.
var ErrNoWindow = errors.New("headless: main loop started without a window")

// KeyEvent is a key press replayed before the update/draw pair of Frame.
type KeyEvent struct {
	Frame int
	Key   byte
	X, Y  int
}

// Options configures a Driver.
type Options struct {
	Frames int           // frames per MainLoop, default 1
	Delta  time.Duration // delta reported to update, default 1/60s
	Keys   []KeyEvent
	// MaxWidth/MaxHeight make CreateWindow fail above these sizes when > 0.
	MaxWidth, MaxHeight int
	// Tick, when set, runs after every frame.
	Tick func(frame int)
}

// Stats counts what the native side actually fired.
type Stats struct {
	Frames    int
	Draws     int
	Swaps     int
	Updates   int
	Keys      int
	Destroyed bool
}

// Driver hands out headless contexts and remembers them for inspection.
type Driver struct {
	opts Options

	mu       sync.Mutex
	contexts []*Context
	inits    atomic.Int64
}

// New returns a driver using opts.
func New(opts Options) *Driver {
	if opts.Frames <= 0 {
		opts.Frames = 1
	}
	if opts.Delta <= 0 {
		opts.Delta = time.Second / 60
	}
	return &Driver{opts: opts}
}

// Init implements native.Driver.
func (d *Driver) Init() native.Context {
	c := &Context{opts: d.opts}
	d.mu.Lock()
	d.contexts = append(d.contexts, c)
	d.mu.Unlock()
	d.inits.Add(1)
	return c
}

// Contexts returns every context created so far, in creation order.
func (d *Driver) Contexts() []*Context {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*Context, len(d.contexts))
	copy(out, d.contexts)
	return out
}

// Inits returns how many times Init was called.
func (d *Driver) Inits() int { return int(d.inits.Load()) }

// Destroyed returns how many contexts have been destroyed.
func (d *Driver) Destroyed() int {
	n := 0
	for _, c := range d.Contexts() {
		if c.Stats().Destroyed {
			n++
		}
	}
	return n
}

// Context is a headless native.Context.
type Context struct {
	opts Options

	mu      sync.Mutex
	title   string
	width   int
	height  int
	flags   native.Flags
	window  bool
	draw    native.DrawFunc
	update  native.UpdateFunc
	key     native.KeyFunc
	stats   Stats
	destroy int
}

func (c *Context) CreateWindow(title string, width, height int, flags native.Flags) bool {
	if width <= 0 || height <= 0 {
		return false
	}
	if (c.opts.MaxWidth > 0 && width > c.opts.MaxWidth) ||
		(c.opts.MaxHeight > 0 && height > c.opts.MaxHeight) {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.title, c.width, c.height, c.flags = title, width, height, flags
	c.window = true
	return true
}

func (c *Context) RegisterDrawFunc(fn native.DrawFunc) {
	c.mu.Lock()
	c.draw = fn
	c.mu.Unlock()
}

func (c *Context) RegisterUpdateFunc(fn native.UpdateFunc) {
	c.mu.Lock()
	c.update = fn
	c.mu.Unlock()
}

func (c *Context) RegisterKeyFunc(fn native.KeyFunc) {
	c.mu.Lock()
	c.key = fn
	c.mu.Unlock()
}

// MainLoop runs opts.Frames frames. Callbacks are read again before every
// event so that a handler may (un)register others while the loop runs.
func (c *Context) MainLoop() error {
	c.mu.Lock()
	window := c.window
	c.mu.Unlock()
	if !window {
		return ErrNoWindow
	}

	dt := float32(c.opts.Delta.Seconds())
	for frame := 0; frame < c.opts.Frames; frame++ {
		for _, ev := range c.opts.Keys {
			if ev.Frame != frame {
				continue
			}
			if key := c.keyFunc(); key != nil {
				c.count(func(s *Stats) { s.Keys++ })
				key(ev.Key, ev.X, ev.Y)
			}
		}
		if update := c.updateFunc(); update != nil {
			c.count(func(s *Stats) { s.Updates++ })
			update(dt)
		}
		if draw := c.drawFunc(); draw != nil {
			c.count(func(s *Stats) { s.Draws++ })
			if draw() {
				c.count(func(s *Stats) { s.Swaps++ })
			}
		}
		c.count(func(s *Stats) { s.Frames++ })
		if c.opts.Tick != nil {
			c.opts.Tick(frame)
		}
	}
	return nil
}

func (c *Context) Width() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.width
}

func (c *Context) Height() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.height
}

func (c *Context) Destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.destroy++
	c.stats.Destroyed = true
	c.draw, c.update, c.key = nil, nil, nil
}

// DestroyCount reports how many times Destroy was called. Anything but 0 or 1
// is a double free.
func (c *Context) DestroyCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.destroy
}

// Title returns the title passed to CreateWindow.
func (c *Context) Title() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.title
}

// Flags returns the flags passed to CreateWindow.
func (c *Context) Flags() native.Flags {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flags
}

// Registered reports which callbacks are currently wired.
func (c *Context) Registered() (draw, update, key bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draw != nil, c.update != nil, c.key != nil
}

func (c *Context) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *Context) drawFunc() native.DrawFunc {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draw
}

func (c *Context) updateFunc() native.UpdateFunc {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.update
}

func (c *Context) keyFunc() native.KeyFunc {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.key
}

func (c *Context) count(fn func(*Stats)) {
	c.mu.Lock()
	fn(&c.stats)
	c.mu.Unlock()
}
