// Package decoder turns image files into raw, tightly packed pixel buffers.
//
// It has the contract of a C image loader: Load returns the pixels converted
// to the requested channel count together with the channel count of the
// source image, FailureReason reports why the last load failed, and buffers
// must be handed back through Free because they come from the decoder's own
// pool.
package decoder

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"os"
	"sync"

	// Standard library codecs.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/h2non/filetype"
	"golang.org/x/image/draw"

	// Extra codecs registered with image.Decode.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// sniffLen is the header size filetype needs to recognise every image type.
const sniffLen = 262

// supported lists the filetype extensions that have a registered codec.
var supported = map[string]bool{
	"png":  true,
	"jpg":  true,
	"gif":  true,
	"bmp":  true,
	"tif":  true,
	"webp": true,
}

// Image is a decoded pixel buffer. Pix is row-major with no padding:
// len(Pix) == Width*Height*Components.
type Image struct {
	Pix        []byte
	Width      int
	Height     int
	Channels   int // channels of the source image
	Components int // channels per pixel in Pix
}

// Error describes a failed Load.
type Error struct {
	Path   string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return "decoder: " + e.Reason
	}
	return fmt.Sprintf("decoder: %s: %s", e.Path, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// ErrBadChannels is returned for a requested channel count outside 0..4.
var ErrBadChannels = errors.New("bad req_comp")

// Decoder loads images. It is safe for concurrent use.
type Decoder struct {
	mu     sync.Mutex
	reason string
	live   map[*byte]int
	pool   map[int][][]byte
	// PoolLimit bounds the number of idle buffers kept per size, default 4.
	PoolLimit int
}

// New returns a ready Decoder.
func New() *Decoder {
	return &Decoder{
		live:      make(map[*byte]int),
		pool:      make(map[int][][]byte),
		PoolLimit: 4,
	}
}

// FailureReason returns the reason of the most recent failed Load, or "" if
// the last Load succeeded.
func (d *Decoder) FailureReason() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reason
}

// Live returns the number of buffers handed out and not yet freed.
func (d *Decoder) Live() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.live)
}

func (d *Decoder) fail(path, reason string, err error) (*Image, error) {
	d.mu.Lock()
	d.reason = reason
	d.mu.Unlock()
	return nil, &Error{Path: path, Reason: reason, Err: err}
}

// Load decodes the file at path. wantChannels selects the layout of Pix:
// 1 grey, 2 grey+alpha, 3 RGB, 4 RGBA, 0 keeps the source channel count.
func (d *Decoder) Load(path string, wantChannels int) (*Image, error) {
	if wantChannels < 0 || wantChannels > 4 {
		return d.fail(path, ErrBadChannels.Error(), ErrBadChannels)
	}

	f, err := os.Open(path)
	if err != nil {
		return d.fail(path, "can't fopen", err)
	}
	defer f.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return d.fail(path, "can't read", err)
	}
	if n == 0 {
		return d.fail(path, "empty file", nil)
	}
	kind, _ := filetype.Match(head[:n])
	switch {
	case kind == filetype.Unknown || !filetype.IsImage(head[:n]):
		return d.fail(path, "unknown image type", nil)
	case !supported[kind.Extension]:
		return d.fail(path, "unsupported image format: "+kind.Extension, nil)
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return d.fail(path, "can't seek", err)
	}
	src, _, err := image.Decode(f)
	if err != nil {
		return d.fail(path, "corrupt "+kind.Extension+": "+err.Error(), err)
	}

	channels := SourceChannels(src)
	if wantChannels == 0 {
		wantChannels = channels
	}
	img := d.convert(src, wantChannels)
	img.Channels = channels

	d.mu.Lock()
	d.reason = ""
	d.mu.Unlock()
	return img, nil
}

// Free returns img's buffer to the decoder. It reports false for buffers the
// decoder does not own or that were already freed.
func (d *Decoder) Free(img *Image) bool {
	if img == nil || len(img.Pix) == 0 {
		return false
	}
	key := &img.Pix[0]

	d.mu.Lock()
	defer d.mu.Unlock()
	size, ok := d.live[key]
	if !ok {
		return false
	}
	delete(d.live, key)
	if idle := d.pool[size]; len(idle) < d.PoolLimit {
		d.pool[size] = append(idle, img.Pix[:size])
	}
	img.Pix = nil
	return true
}

func (d *Decoder) alloc(size int) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	var buf []byte
	if idle := d.pool[size]; len(idle) > 0 {
		buf = idle[len(idle)-1]
		d.pool[size] = idle[:len(idle)-1]
	} else {
		buf = make([]byte, size)
	}
	if size > 0 {
		d.live[&buf[0]] = size
	}
	return buf
}

// SourceChannels reports the channel count of the encoded image, judged from
// the color model its codec produced.
func SourceChannels(img image.Image) int {
	switch m := img.(type) {
	case *image.Gray, *image.Gray16:
		return 1
	case *image.NRGBA, *image.NRGBA64:
		return 4
	case *image.Paletted:
		for _, c := range m.Palette {
			if _, _, _, a := c.RGBA(); a != 0xffff {
				return 4
			}
		}
		return 3
	}
	switch img.ColorModel() {
	case color.GrayModel, color.Gray16Model:
		return 1
	case color.NRGBAModel, color.NRGBA64Model, color.AlphaModel, color.Alpha16Model:
		return 4
	}
	return 3
}

func (d *Decoder) convert(src image.Image, comp int) *Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()

	var rgba *image.NRGBA
	if n, ok := src.(*image.NRGBA); ok && n.Stride == 4*w && b.Min == (image.Point{}) {
		rgba = n
	} else {
		rgba = image.NewNRGBA(image.Rect(0, 0, w, h))
		draw.Draw(rgba, rgba.Bounds(), src, b.Min, draw.Src)
	}

	pix := d.alloc(w * h * comp)
	if comp == 4 {
		copy(pix, rgba.Pix)
		return &Image{Pix: pix, Width: w, Height: h, Components: comp}
	}
	for i, o := 0, 0; i < len(rgba.Pix); i, o = i+4, o+comp {
		r, g, bl, a := rgba.Pix[i], rgba.Pix[i+1], rgba.Pix[i+2], rgba.Pix[i+3]
		switch comp {
		case 1:
			pix[o] = luma(r, g, bl)
		case 2:
			pix[o], pix[o+1] = luma(r, g, bl), a
		case 3:
			pix[o], pix[o+1], pix[o+2] = r, g, bl
		}
	}
	return &Image{Pix: pix, Width: w, Height: h, Components: comp}
}

func luma(r, g, b byte) byte {
	return byte((uint32(r)*77 + uint32(g)*150 + uint32(b)*29) >> 8)
}
