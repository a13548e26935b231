package glesutil

import (
	"log/slog"
	"runtime"
	"sync/atomic"

	"github.com/buke/glesutil-go/decoder"
	"github.com/buke/glesutil-go/internal/realpath"
	"github.com/buke/glesutil-go/native"
	"github.com/dop251/goja"
)

// ArgumentPolicy selects how malformed calls from scripts are handled.
type ArgumentPolicy uint8

const (
	// ArgumentsLenient makes malformed calls no-ops: createWindow returns
	// false and non-callable handlers are stored but never count as handled.
	ArgumentsLenient ArgumentPolicy = iota
	// ArgumentsStrict throws a TypeError built from an *ArgumentError.
	ArgumentsStrict
)

// ImageDecoder is the image loading collaborator behind loadImage.
type ImageDecoder interface {
	Load(path string, wantChannels int) (*decoder.Image, error)
	Free(img *decoder.Image) bool
}

// PathResolver turns a script supplied path into the path handed to the
// decoder.
type PathResolver func(path string) (string, error)

// Stats counts wrapped records per kind.
type Stats struct {
	ContextsCreated  int64
	ContextsReleased int64
	ImagesCreated    int64
	ImagesReleased   int64
	DispatchErrors   int64
}

type counters struct {
	made     [3]atomic.Int64 // indexed by Kind
	freed    [3]atomic.Int64
	dispatch atomic.Int64
}

func (c *counters) created(k Kind)  { c.made[k].Add(1) }
func (c *counters) released(k Kind) { c.freed[k].Add(1) }

// Runtime binds the native collaborators into one goja runtime. All methods
// except Stats and Live must be called on the goroutine that runs vm.
type Runtime struct {
	vm      *goja.Runtime
	store   *HandleStore
	loop    *Loop
	stats   *counters
	protos  map[*Template]*goja.Object
	slot    *goja.Symbol
	factory *goja.Object

	driver     native.Driver
	decoder    ImageDecoder
	resolve    PathResolver
	logger     *slog.Logger
	policy     ArgumentPolicy
	onDispatch func(*DispatchError)
	closed     bool
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithDriver sets the driver used by initContext.
func WithDriver(d native.Driver) Option {
	return func(r *Runtime) { r.driver = d }
}

// WithDecoder replaces the default decoder.
func WithDecoder(d ImageDecoder) Option {
	return func(r *Runtime) { r.decoder = d }
}

// WithPathResolver replaces realpath.Resolve.
func WithPathResolver(fn PathResolver) Option {
	return func(r *Runtime) { r.resolve = fn }
}

// WithLogger sets the logger, slog.Default() otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runtime) { r.logger = l }
}

// WithArgumentPolicy selects lenient or strict argument checking.
func WithArgumentPolicy(p ArgumentPolicy) Option {
	return func(r *Runtime) { r.policy = p }
}

// WithDispatchErrorHandler is called for every handler failure the bridge
// swallows, after it has been logged.
func WithDispatchErrorHandler(fn func(*DispatchError)) Option {
	return func(r *Runtime) { r.onDispatch = fn }
}

// NewRuntime creates a Runtime bound to vm.
func NewRuntime(vm *goja.Runtime, opts ...Option) *Runtime {
	r := &Runtime{
		vm:      vm,
		store:   newHandleStore(),
		loop:    NewLoop(),
		stats:   &counters{},
		protos:  make(map[*Template]*goja.Object),
		slot:    goja.NewSymbol("glesutil.slot"),
		decoder: decoder.New(),
		resolve: realpath.Resolve,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// VM returns the goja runtime.
func (r *Runtime) VM() *goja.Runtime { return r.vm }

// ReleasePending releases every record whose object has been collected and
// returns how many releases ran.
func (r *Runtime) ReleasePending() int {
	return r.loop.Run()
}

// RunGC forces a collection and releases whatever it found unreachable.
// Cleanups run on their own goroutine, so a record may only be released by
// a later RunGC or ReleasePending.
func (r *Runtime) RunGC() int {
	runtime.GC()
	return r.ReleasePending()
}

// Close releases every remaining record. Wrapped objects still held by
// scripts throw on use afterwards.
func (r *Runtime) Close() {
	if r.closed {
		return
	}
	r.closed = true
	r.loop.Run()
	r.loop.Stop()
	if n := r.store.Clear(); n > 0 {
		r.logger.Debug("glesutil: released live objects at close", "count", n)
	}
}

// Live returns the number of native records not yet released.
func (r *Runtime) Live() int {
	return r.store.Count()
}

// LiveKind returns the number of native records of kind k not yet released.
func (r *Runtime) LiveKind(k Kind) int {
	return r.store.CountKind(k)
}

// Stats returns the create and release counters.
func (r *Runtime) Stats() Stats {
	c := r.stats
	return Stats{
		ContextsCreated:  c.made[KindContext].Load(),
		ContextsReleased: c.freed[KindContext].Load(),
		ImagesCreated:    c.made[KindImage].Load(),
		ImagesReleased:   c.freed[KindImage].Load(),
		DispatchErrors:   c.dispatch.Load(),
	}
}
