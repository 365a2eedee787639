package record

import (
	"encoding/json"
	"fmt"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// EnabledKey is the attribute telling whether a control unit takes part in generation.
const EnabledKey = "enabled"

// Pair is a single attribute in insertion order.
type Pair struct {
	Key   string
	Value string
}

// Record is one control unit: ordered attributes plus an optional image payload.
type Record struct {
	attrs *orderedmap.OrderedMap[string, string]
	image Payload
}

// New creates a record from ordered attribute pairs.
func New(pairs ...Pair) Record {
	r := Record{attrs: orderedmap.New[string, string](len(pairs))}
	for _, p := range pairs {
		r.attrs.Set(p.Key, p.Value)
	}
	return r
}

// Set stores an attribute, keeping the original position of an existing key.
func (r *Record) Set(key, value string) {
	if r.attrs == nil {
		r.attrs = orderedmap.New[string, string]()
	}
	r.attrs.Set(key, value)
}

// Get returns an attribute value.
func (r Record) Get(key string) (string, bool) {
	if r.attrs == nil {
		return "", false
	}
	return r.attrs.Get(key)
}

// Len returns the number of attributes.
func (r Record) Len() int {
	if r.attrs == nil {
		return 0
	}
	return r.attrs.Len()
}

// Pairs returns the attributes in insertion order.
func (r Record) Pairs() []Pair {
	if r.attrs == nil {
		return nil
	}
	out := make([]Pair, 0, r.attrs.Len())
	for p := r.attrs.Oldest(); p != nil; p = p.Next() {
		out = append(out, Pair{Key: p.Key, Value: p.Value})
	}
	return out
}

// Image returns the image payload.
func (r Record) Image() Payload { return r.image }

// WithImage returns a copy of the record carrying the given payload.
// The attribute map is shared with the receiver.
func (r Record) WithImage(p Payload) Record {
	r.image = p
	return r
}

// Enabled reports whether the unit is switched on.
func (r Record) Enabled() bool {
	v, ok := r.Get(EnabledKey)
	return ok && strings.EqualFold(v, "true")
}

// Split separates the image payload from the attributes.
func (r Record) Split() (Payload, Record) {
	return r.image, New(r.Pairs()...)
}

// Equal reports deep equality including attribute order.
func (r Record) Equal(o Record) bool {
	a, b := r.Pairs(), o.Pairs()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return r.image.Equal(o.image)
}

type recordJSON struct {
	Attributes *orderedmap.OrderedMap[string, string] `json:"attributes"`
	Image      *Payload                               `json:"image,omitempty"`
}

// MarshalJSON encodes attributes as an ordered JSON object.
func (r Record) MarshalJSON() ([]byte, error) {
	attrs := r.attrs
	if attrs == nil {
		attrs = orderedmap.New[string, string]()
	}
	out := recordJSON{Attributes: attrs}
	if r.image.Kind() != KindNone {
		img := r.image
		out.Image = &img
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	return data, nil
}

// UnmarshalJSON decodes a record, keeping attribute order as written.
func (r *Record) UnmarshalJSON(data []byte) error {
	in := recordJSON{Attributes: orderedmap.New[string, string]()}
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("unmarshal record: %w", err)
	}
	r.attrs = in.Attributes
	r.image = Payload{}
	if in.Image != nil {
		r.image = *in.Image
	}
	return nil
}
