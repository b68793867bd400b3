package dmap

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrTruncated indicates a header or value running past the end of the buffer.
	ErrTruncated = errors.New("dmap: truncated data")
	// ErrWidth indicates a scalar whose length does not match its declared type.
	ErrWidth = errors.New("dmap: length does not match declared type")
)

// Definitions maps tag codes to their declared types. Codes missing from the
// table decode as TypeRaw.
type Definitions map[string]Type

// Lookup returns the declared type of code.
func (d Definitions) Lookup(code string) Type {
	if t, ok := d[code]; ok {
		return t
	}
	return TypeRaw
}

// Decode parses buf as a sequence of tags. Containers are decoded
// recursively, so the result mirrors the nesting of the input bytes.
func Decode(buf []byte, defs Definitions) ([]Tag, error) {
	var out []Tag
	for offset := 0; offset < len(buf); {
		if len(buf)-offset < headerSize {
			return nil, fmt.Errorf("%w: header at offset %d", ErrTruncated, offset)
		}
		code := string(buf[offset : offset+4])
		length := binary.BigEndian.Uint32(buf[offset+4 : offset+8])
		offset += headerSize

		if uint64(len(buf)-offset) < uint64(length) {
			return nil, fmt.Errorf("%w: %s wants %d bytes, %d left", ErrTruncated, code, length, len(buf)-offset)
		}
		value := buf[offset : offset+int(length)]
		offset += int(length)

		tag, err := decodeTag(code, value, defs)
		if err != nil {
			return nil, err
		}
		out = append(out, tag)
	}
	return out, nil
}

func decodeTag(code string, value []byte, defs Definitions) (Tag, error) {
	typ := defs.Lookup(code)
	tag := Tag{Code: code, Type: typ}

	if w := typ.width(); w > 0 && len(value) != w {
		return Tag{}, fmt.Errorf("%w: %s is %s but has %d bytes", ErrWidth, code, typ, len(value))
	}

	switch typ {
	case TypeContainer:
		children, err := Decode(value, defs)
		if err != nil {
			return Tag{}, fmt.Errorf("decode %s: %w", code, err)
		}
		tag.Children = children
	case TypeUint8:
		tag.Value = value[0]
	case TypeUint16:
		tag.Value = binary.BigEndian.Uint16(value)
	case TypeUint32:
		tag.Value = binary.BigEndian.Uint32(value)
	case TypeUint64:
		tag.Value = binary.BigEndian.Uint64(value)
	case TypeBool:
		tag.Value = value[0] == 1
	case TypeString:
		tag.Value = string(value)
	default:
		tag.Value = append([]byte(nil), value...)
	}
	return tag, nil
}

// First follows path through tags. Each code is matched against the first
// tag with that code in pre-order, searching only inside the container
// matched by the previous code. Every code but the last must name a
// container.
func First(tags []Tag, path ...string) (Tag, bool) {
	if len(path) == 0 {
		return Tag{}, false
	}

	scope := tags
	for i, code := range path {
		last := i == len(path)-1
		match, ok := find(scope, code, !last)
		if !ok {
			return Tag{}, false
		}
		if last {
			return match, true
		}
		scope = match.Children
	}
	return Tag{}, false
}

func find(tags []Tag, code string, container bool) (Tag, bool) {
	for _, tag := range tags {
		if tag.Code == code && (!container || tag.Type == TypeContainer) {
			return tag, true
		}
		if tag.Type == TypeContainer {
			if match, ok := find(tag.Children, code, container); ok {
				return match, true
			}
		}
	}
	return Tag{}, false
}
