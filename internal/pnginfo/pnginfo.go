// Package pnginfo reads and writes PNG text chunks (tEXt, zTXt, iTXt),
// where image generators store their generation parameters.
package pnginfo

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"unicode/utf8"

	pngstructure "github.com/dsoprea/go-png-image-structure/v2"
	"github.com/klauspost/compress/zlib"
)

// Signature is the 8-byte PNG file header.
var Signature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// iendChunk is the only valid encoding of the terminating chunk: zero
// length, type, fixed CRC.
var iendChunk = []byte{0, 0, 0, 0, 'I', 'E', 'N', 'D', 0xae, 0x42, 0x60, 0x82}

// maxTextChunk bounds text chunk allocation.
const maxTextChunk = 16 << 20

var (
	// ErrNotPNG signals input without a PNG signature.
	ErrNotPNG = errors.New("pnginfo: not a PNG stream")
	// ErrCorrupt signals a damaged chunk.
	ErrCorrupt = errors.New("pnginfo: corrupt chunk")
)

// ReadText returns every text entry of the PNG stream, later chunks
// overriding earlier ones with the same keyword. Bytes appended after IEND
// are ignored.
func ReadText(r io.Reader) (map[string]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read png: %w", err)
	}
	chunks, _, err := split(data)
	if err != nil {
		return nil, err
	}

	out := make(map[string]string)
	for _, c := range chunks {
		switch c.Type {
		case "tEXt", "zTXt", "iTXt":
		default:
			continue
		}
		if c.Length > maxTextChunk {
			return out, fmt.Errorf("%w: %s chunk of %d bytes", ErrCorrupt, c.Type, c.Length)
		}
		if !c.CheckCrc32() {
			return out, fmt.Errorf("%w: %s checksum mismatch", ErrCorrupt, c.Type)
		}
		key, value, err := decodeText(c.Type, c.Data)
		if err != nil {
			return out, err
		}
		out[key] = value
	}
	return out, nil
}

// ReadFileText reads one text entry from the PNG file at path.
func ReadFileText(path, key string) (string, bool, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return "", false, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	text, err := ReadText(f)
	if err != nil {
		return "", false, err
	}
	v, ok := text[key]
	return v, ok, nil
}

// AddText inserts a text chunk in front of IEND. Values that are not
// Latin-1 are written as iTXt, others as tEXt. Bytes after IEND are kept.
func AddText(png []byte, key, value string) ([]byte, error) {
	chunks, tail, err := split(png)
	if err != nil {
		return nil, err
	}

	var text *pngstructure.Chunk
	if latin1, ok := toLatin1(value); ok {
		text = newChunk("tEXt", append(append([]byte(key), 0), latin1...))
	} else {
		body := append([]byte(key), 0, 0, 0, 0, 0) // keyword, no compression, empty language and translated keyword
		text = newChunk("iTXt", append(body, value...))
	}

	var buf bytes.Buffer
	buf.Grow(len(png) + len(text.Data) + 12)
	buf.Write(Signature)
	for _, c := range chunks {
		if c.Type == "IEND" {
			buf.Write(text.Bytes())
		}
		buf.Write(c.Bytes())
	}
	buf.Write(tail)
	return buf.Bytes(), nil
}

// split parses the chunks of png up to and including IEND and returns them
// with the bytes that follow.
func split(png []byte) ([]*pngstructure.Chunk, []byte, error) {
	if !bytes.HasPrefix(png, Signature) {
		return nil, nil, ErrNotPNG
	}
	end, err := findIEND(png)
	if err != nil {
		return nil, nil, err
	}
	end += len(iendChunk)

	mc, err := pngstructure.NewPngMediaParser().ParseBytes(png[:end])
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	cs, ok := mc.(*pngstructure.ChunkSlice)
	if !ok {
		return nil, nil, fmt.Errorf("%w: unexpected parse result %T", ErrCorrupt, mc)
	}
	return cs.Chunks(), png[end:], nil
}

// findIEND returns the offset of the IEND chunk's length field.
func findIEND(png []byte) (int, error) {
	i := bytes.Index(png[len(Signature):], iendChunk)
	if i < 0 {
		return 0, fmt.Errorf("%w: IEND not found", ErrCorrupt)
	}
	return len(Signature) + i, nil
}

func newChunk(typ string, body []byte) *pngstructure.Chunk {
	c := &pngstructure.Chunk{
		Length: uint32(len(body)), //nolint:gosec // text chunks are far below 4GiB
		Type:   typ,
		Data:   body,
	}
	c.UpdateCrc32()
	return c
}

func decodeText(typ string, body []byte) (string, string, error) {
	key, rest, ok := bytes.Cut(body, []byte{0})
	if !ok {
		return "", "", fmt.Errorf("%w: %s without keyword separator", ErrCorrupt, typ)
	}

	switch typ {
	case "tEXt":
		return string(key), fromLatin1(rest), nil
	case "zTXt":
		if len(rest) < 1 {
			return "", "", fmt.Errorf("%w: zTXt without compression method", ErrCorrupt)
		}
		text, err := inflate(rest[1:])
		if err != nil {
			return "", "", err
		}
		return string(key), fromLatin1(text), nil
	default: // iTXt
		if len(rest) < 2 {
			return "", "", fmt.Errorf("%w: iTXt header too short", ErrCorrupt)
		}
		compressed := rest[0] == 1
		rest = rest[2:]
		// Skip language tag and translated keyword.
		for i := 0; i < 2; i++ {
			var found bool
			_, rest, found = bytes.Cut(rest, []byte{0})
			if !found {
				return "", "", fmt.Errorf("%w: iTXt header truncated", ErrCorrupt)
			}
		}
		if compressed {
			text, err := inflate(rest)
			if err != nil {
				return "", "", err
			}
			rest = text
		}
		return string(key), string(rest), nil
	}
}

func inflate(data []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: inflate: %w", ErrCorrupt, err)
	}
	defer func() { _ = zr.Close() }()
	out, err := io.ReadAll(io.LimitReader(zr, maxTextChunk))
	if err != nil {
		return nil, fmt.Errorf("%w: inflate: %w", ErrCorrupt, err)
	}
	return out, nil
}

// fromLatin1 converts ISO 8859-1 bytes to a UTF-8 string.
func fromLatin1(b []byte) string {
	runes := make([]rune, len(b))
	for i, c := range b {
		runes[i] = rune(c)
	}
	return string(runes)
}

func toLatin1(s string) ([]byte, bool) {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if r > 0xff || r == utf8.RuneError {
			return nil, false
		}
		out = append(out, byte(r))
	}
	return out, true
}
