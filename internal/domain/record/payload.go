package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
)

// Kind distinguishes image payload variants.
type Kind string

const (
	// KindNone means the unit carries no image.
	KindNone Kind = "none"
	// KindSingle is one raw pixel buffer.
	KindSingle Kind = "single"
	// KindMulti is a set of named sub-images (e.g. image and mask).
	KindMulti Kind = "multi"
)

// Image is a raw interleaved pixel buffer (1, 3 or 4 channels, 8 bits each).
type Image struct {
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Channels int    `json:"channels"`
	Pix      []byte `json:"pix"`
}

// Validate checks that the buffer matches the declared geometry.
func (im Image) Validate() error {
	switch im.Channels {
	case 1, 3, 4:
	default:
		return fmt.Errorf("unsupported channel count %d", im.Channels)
	}
	if im.Width <= 0 || im.Height <= 0 {
		return fmt.Errorf("invalid image size %dx%d", im.Width, im.Height)
	}
	// Bound each factor by the buffer length so the product cannot overflow.
	if im.Width > len(im.Pix)/im.Channels || im.Height > len(im.Pix)/(im.Channels*im.Width) {
		return fmt.Errorf("image size %dx%dx%d exceeds pixel buffer of %d bytes",
			im.Width, im.Height, im.Channels, len(im.Pix))
	}
	if want := im.Width * im.Height * im.Channels; len(im.Pix) != want {
		return fmt.Errorf("pixel buffer has %d bytes, want %d", len(im.Pix), want)
	}
	return nil
}

// ToImage converts the buffer into an image.Image suitable for encoding.
func (im Image) ToImage() (image.Image, error) {
	if err := im.Validate(); err != nil {
		return nil, err
	}
	rect := image.Rect(0, 0, im.Width, im.Height)
	if im.Channels == 1 {
		g := image.NewGray(rect)
		copy(g.Pix, im.Pix)
		return g, nil
	}
	out := image.NewNRGBA(rect)
	for i := 0; i < im.Width*im.Height; i++ {
		src := im.Pix[i*im.Channels:]
		a := uint8(0xff)
		if im.Channels == 4 {
			a = src[3]
		}
		out.SetNRGBA(i%im.Width, i/im.Width, color.NRGBA{R: src[0], G: src[1], B: src[2], A: a})
	}
	return out, nil
}

// NamedImage is one entry of a multi-image payload.
type NamedImage struct {
	Name  string `json:"name"`
	Image Image  `json:"image"`
}

// Payload is the optional image attached to a control unit.
type Payload struct {
	kind   Kind
	single Image
	multi  []NamedImage
}

// NoImage returns an empty payload.
func NoImage() Payload { return Payload{} }

// SingleImage wraps one pixel buffer.
func SingleImage(im Image) Payload { return Payload{kind: KindSingle, single: im} }

// MultiImage wraps named sub-images in the given order.
func MultiImage(images ...NamedImage) Payload {
	return Payload{kind: KindMulti, multi: images}
}

// Kind returns the payload variant.
func (p Payload) Kind() Kind {
	if p.kind == "" {
		return KindNone
	}
	return p.kind
}

// Single returns the pixel buffer of a single-image payload.
func (p Payload) Single() (Image, bool) {
	return p.single, p.kind == KindSingle
}

// Multi returns the sub-images of a multi-image payload.
func (p Payload) Multi() []NamedImage {
	if p.kind != KindMulti {
		return nil
	}
	return p.multi
}

// Images flattens the payload into its pixel buffers in order.
func (p Payload) Images() []Image {
	switch p.Kind() {
	case KindSingle:
		return []Image{p.single}
	case KindMulti:
		out := make([]Image, len(p.multi))
		for i, n := range p.multi {
			out[i] = n.Image
		}
		return out
	default:
		return nil
	}
}

// Equal reports deep equality.
func (p Payload) Equal(o Payload) bool {
	if p.Kind() != o.Kind() {
		return false
	}
	switch p.Kind() {
	case KindSingle:
		return imagesEqual(p.single, o.single)
	case KindMulti:
		if len(p.multi) != len(o.multi) {
			return false
		}
		for i := range p.multi {
			if p.multi[i].Name != o.multi[i].Name || !imagesEqual(p.multi[i].Image, o.multi[i].Image) {
				return false
			}
		}
	}
	return true
}

func imagesEqual(a, b Image) bool {
	return a.Width == b.Width && a.Height == b.Height && a.Channels == b.Channels && bytes.Equal(a.Pix, b.Pix)
}

type payloadJSON struct {
	Kind   Kind         `json:"kind"`
	Single *Image       `json:"single,omitempty"`
	Multi  []NamedImage `json:"multi,omitempty"`
}

// MarshalJSON encodes the payload as a tagged object.
func (p Payload) MarshalJSON() ([]byte, error) {
	out := payloadJSON{Kind: p.Kind()}
	switch p.Kind() {
	case KindSingle:
		im := p.single
		out.Single = &im
	case KindMulti:
		out.Multi = p.multi
	}
	return json.Marshal(out) //nolint:wrapcheck // plain value encoding
}

// UnmarshalJSON decodes a tagged payload object.
func (p *Payload) UnmarshalJSON(data []byte) error {
	var in payloadJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("unmarshal image payload: %w", err)
	}
	switch in.Kind {
	case "", KindNone:
		*p = NoImage()
	case KindSingle:
		if in.Single == nil {
			return fmt.Errorf("single image payload without image")
		}
		*p = SingleImage(*in.Single)
	case KindMulti:
		*p = MultiImage(in.Multi...)
	default:
		return fmt.Errorf("unknown image payload kind %q", in.Kind)
	}
	return nil
}
