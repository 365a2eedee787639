// Package codec embeds a control unit list into a carrier file and extracts it.
//
// Layout:
//
//	<carrier bytes><start marker><gzip(msgpack(records))><end marker>
//
// A sidecar file is the same layout with an empty carrier.
package codec

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	mpack "github.com/ugorji/go/codec"

	"github.com/kailas-cloud/fastload/internal/domain"
	"github.com/kailas-cloud/fastload/internal/domain/record"
)

// Blob delimiters.
var (
	StartMarker = []byte("###START_OF_CONTROLNET_FASTLOAD###")
	EndMarker   = []byte("###END_OF_CONTROLNET_FASTLOAD###")
)

// MaxDecodedSize bounds the decompressed payload.
const MaxDecodedSize = 512 << 20

var msgpack = &mpack.MsgpackHandle{WriteExt: true}

type wireImage struct {
	Width    int    `codec:"w"`
	Height   int    `codec:"h"`
	Channels int    `codec:"c"`
	Pix      []byte `codec:"pix"`
}

type wireNamedImage struct {
	Name  string    `codec:"name"`
	Image wireImage `codec:"image"`
}

type wireRecord struct {
	Attrs  [][2]string      `codec:"attrs"`
	Kind   string           `codec:"kind"`
	Single *wireImage       `codec:"single,omitempty"`
	Multi  []wireNamedImage `codec:"multi,omitempty"`
}

// Encode returns carrier followed by the marked, compressed record list.
// A decodable blob already embedded in carrier is replaced rather than
// stacked. The carrier slice is not modified.
func Encode(records []record.Record, carrier []byte) ([]byte, error) {
	carrier = StripBlob(carrier)

	payload, err := marshal(records)
	if err != nil {
		return nil, err
	}
	compressed, err := compress(payload)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(carrier)+len(StartMarker)+len(compressed)+len(EndMarker))
	out = append(out, carrier...)
	out = append(out, StartMarker...)
	out = append(out, compressed...)
	out = append(out, EndMarker...)
	return out, nil
}

// Decode extracts the record list from data. Every failure caused by the
// content of data is a *domain.DecodeError; Decode never panics.
func Decode(data []byte) ([]record.Record, error) {
	start := bytes.Index(data, StartMarker)
	if start < 0 {
		return nil, domain.NewDecodeError("start marker not found", nil)
	}
	end := bytes.Index(data, EndMarker)
	if end < 0 {
		return nil, domain.NewDecodeError("end marker not found", nil)
	}
	bodyStart := start + len(StartMarker)
	if end < bodyStart {
		return nil, domain.NewDecodeError("end marker precedes start marker", nil)
	}

	payload, err := decompress(data[bodyStart:end])
	if err != nil {
		return nil, domain.NewDecodeError("decompress", err)
	}
	records, err := unmarshal(payload)
	if err != nil {
		return nil, domain.NewDecodeError("deserialize", err)
	}
	return records, nil
}

// StripBlob returns data cut at the start marker when data carries a
// decodable blob, and data unchanged otherwise. An undecodable marker is
// left alone: it may be part of the carrier itself.
func StripBlob(data []byte) []byte {
	start := bytes.Index(data, StartMarker)
	if start < 0 {
		return data
	}
	if _, err := Decode(data); err != nil {
		return data
	}
	return data[:start]
}

func compress(payload []byte) ([]byte, error) {
	var buf bytes.Buffer
	// Zero header fields (no name, no mtime) keep the output deterministic.
	gw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("create gzip writer: %w", err)
	}
	if _, err := gw.Write(payload); err != nil {
		return nil, fmt.Errorf("compress: %w", err)
	}
	if err := gw.Close(); err != nil {
		return nil, fmt.Errorf("close gzip writer: %w", err)
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	gr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open gzip stream: %w", err)
	}
	defer func() { _ = gr.Close() }()

	out, err := io.ReadAll(io.LimitReader(gr, MaxDecodedSize+1))
	if err != nil {
		return nil, fmt.Errorf("read gzip stream: %w", err)
	}
	if len(out) > MaxDecodedSize {
		return nil, errors.New("payload exceeds size limit")
	}
	return out, nil
}

func marshal(records []record.Record) ([]byte, error) {
	wire := make([]wireRecord, len(records))
	for i, r := range records {
		wire[i] = toWire(r)
	}
	var out []byte
	if err := mpack.NewEncoderBytes(&out, msgpack).Encode(wire); err != nil {
		return nil, fmt.Errorf("serialize records: %w", err)
	}
	return out, nil
}

func unmarshal(data []byte) ([]record.Record, error) {
	var wire []wireRecord
	if err := mpack.NewDecoderBytes(data, msgpack).Decode(&wire); err != nil {
		return nil, fmt.Errorf("decode msgpack: %w", err)
	}
	out := make([]record.Record, len(wire))
	for i, w := range wire {
		r, err := fromWire(w)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		out[i] = r
	}
	return out, nil
}

func toWire(r record.Record) wireRecord {
	pairs := r.Pairs()
	w := wireRecord{
		Attrs: make([][2]string, len(pairs)),
		Kind:  string(r.Image().Kind()),
	}
	for i, p := range pairs {
		w.Attrs[i] = [2]string{p.Key, p.Value}
	}
	switch r.Image().Kind() {
	case record.KindSingle:
		im, _ := r.Image().Single()
		wi := imageToWire(im)
		w.Single = &wi
	case record.KindMulti:
		for _, n := range r.Image().Multi() {
			w.Multi = append(w.Multi, wireNamedImage{Name: n.Name, Image: imageToWire(n.Image)})
		}
	}
	return w
}

func fromWire(w wireRecord) (record.Record, error) {
	pairs := make([]record.Pair, len(w.Attrs))
	for i, a := range w.Attrs {
		pairs[i] = record.Pair{Key: a[0], Value: a[1]}
	}
	r := record.New(pairs...)

	switch record.Kind(w.Kind) {
	case "", record.KindNone:
		return r, nil
	case record.KindSingle:
		if w.Single == nil {
			return record.Record{}, errors.New("single image payload without image")
		}
		return r.WithImage(record.SingleImage(imageFromWire(*w.Single))), nil
	case record.KindMulti:
		named := make([]record.NamedImage, len(w.Multi))
		for i, n := range w.Multi {
			named[i] = record.NamedImage{Name: n.Name, Image: imageFromWire(n.Image)}
		}
		return r.WithImage(record.MultiImage(named...)), nil
	default:
		return record.Record{}, fmt.Errorf("unknown image payload kind %q", w.Kind)
	}
}

func imageToWire(im record.Image) wireImage {
	return wireImage{Width: im.Width, Height: im.Height, Channels: im.Channels, Pix: im.Pix}
}

func imageFromWire(w wireImage) record.Image {
	return record.Image{Width: w.Width, Height: w.Height, Channels: w.Channels, Pix: w.Pix}
}
