package glesutil

import (
	"errors"
	"strconv"

	"github.com/buke/glesutil-go/decoder"
	"github.com/dop251/goja"
)

// imageChannels is the layout of every buffer exposed to scripts.
const imageChannels = 4

var imageFields = []string{"width", "height", "bpp", "length"}

// imageObject exposes a decoded buffer to scripts as a dynamic object with
// read-only metadata and byte-indexed pixels. Reads and writes go straight
// to img.Pix.
type imageObject struct {
	vm  *goja.Runtime
	id  int32
	img *decoder.Image
}

// index parses a canonical array index.
func (o *imageObject) index(key string) (int, bool) {
	if key == "" || (len(key) > 1 && key[0] == '0') {
		return 0, false
	}
	n, err := strconv.ParseUint(key, 10, 31)
	if err != nil {
		return 0, false
	}
	return int(n), true
}

func (o *imageObject) Get(key string) goja.Value {
	switch key {
	case "width":
		return o.vm.ToValue(o.img.Width)
	case "height":
		return o.vm.ToValue(o.img.Height)
	case "bpp":
		// source channels, not the channels of Pix
		return o.vm.ToValue(o.img.Channels * 8)
	case "length":
		return o.vm.ToValue(len(o.img.Pix))
	}
	if i, ok := o.index(key); ok && i < len(o.img.Pix) {
		return o.vm.ToValue(o.img.Pix[i])
	}
	return nil
}

func (o *imageObject) Set(key string, val goja.Value) bool {
	i, ok := o.index(key)
	if !ok || i >= len(o.img.Pix) {
		return false
	}
	o.img.Pix[i] = byte(toUint32(val))
	return true
}

func (o *imageObject) Has(key string) bool {
	for _, f := range imageFields {
		if key == f {
			return true
		}
	}
	i, ok := o.index(key)
	return ok && i < len(o.img.Pix)
}

func (o *imageObject) Delete(key string) bool {
	return !o.Has(key)
}

func (o *imageObject) Keys() []string {
	keys := make([]string, 0, len(o.img.Pix)+len(imageFields))
	for i := range o.img.Pix {
		keys = append(keys, strconv.Itoa(i))
	}
	return append(keys, imageFields...)
}

// loadImage implements the factory's loadImage(path).
func (r *Runtime) loadImage(call goja.FunctionCall) goja.Value {
	r.ReleasePending()
	a := r.args("loadImage", call)
	if !a.require(1) {
		r.throwImageError(&decoder.Error{Reason: "no path given"})
	}
	path := a.string(0)

	resolved, err := r.resolve(path)
	if err != nil {
		r.throwImageError(&decoder.Error{Path: path, Reason: err.Error(), Err: err})
	}
	img, err := r.decoder.Load(resolved, imageChannels)
	if err != nil {
		r.throwImageError(err)
	}
	return r.NewImageObject(img)
}

// NewImageObject wraps img for scripts; img is handed back to the decoder's
// Free once the object has been collected and its release has run.
func (r *Runtime) NewImageObject(img *decoder.Image) *goja.Object {
	o := &imageObject{vm: r.vm, img: img}
	obj := r.vm.NewDynamicObject(o)
	dec := r.decoder
	o.id = r.track(KindImage, img, obj, func() {
		if !dec.Free(img) {
			r.logger.Warn("glesutil: decoder refused image buffer", "id", o.id)
		}
	})
	return obj
}

// throwImageError throws an Error carrying the decoder's failure reason in
// its message and in a reason property.
func (r *Runtime) throwImageError(err error) {
	reason := err.Error()
	var derr *decoder.Error
	if errors.As(err, &derr) {
		reason = derr.Reason
	}
	r.logger.Debug("glesutil: loadImage failed", "err", err)

	exc := r.vm.NewGoError(err)
	_ = exc.Set("reason", reason)
	panic(exc)
}

func (r *Runtime) unwrapImage(v goja.Value) (*decoder.Image, error) {
	obj, ok := v.(*goja.Object)
	if !ok || obj == nil {
		return nil, ErrNotWrapped
	}
	o, ok := obj.Export().(*imageObject)
	if !ok || o.vm != r.vm {
		return nil, ErrNotWrapped
	}
	e, ok := r.store.Load(o.id)
	if !ok {
		return nil, ErrReleased
	}
	if e.kind != KindImage || e.Owner() != obj {
		return nil, ErrNotWrapped
	}
	return o.img, nil
}
