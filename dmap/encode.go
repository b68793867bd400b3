package dmap

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const headerSize = 8

var (
	// ErrInvalidCode indicates a tag code that is not exactly 4 bytes.
	ErrInvalidCode = errors.New("dmap: tag code must be 4 bytes")
	// ErrOverflow indicates a numeric value that does not fit its declared width.
	ErrOverflow = errors.New("dmap: value overflows declared width")
	// ErrValueType indicates a Go value that cannot be encoded as the declared type.
	ErrValueType = errors.New("dmap: value does not match declared type")
)

// Encode serializes tags in order into one buffer.
func Encode(tags ...Tag) ([]byte, error) {
	var out []byte
	for _, tag := range tags {
		var err error
		out, err = appendTag(out, tag)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func appendTag(dst []byte, tag Tag) ([]byte, error) {
	if len(tag.Code) != 4 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCode, tag.Code)
	}

	value, err := encodeValue(tag)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", tag.Code, err)
	}
	if uint64(len(value)) > math.MaxUint32 {
		return nil, fmt.Errorf("encode %s: %w", tag.Code, ErrOverflow)
	}

	dst = append(dst, tag.Code...)
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(value)))
	return append(dst, value...), nil
}

func encodeValue(tag Tag) ([]byte, error) {
	switch tag.Type {
	case TypeContainer:
		return Encode(tag.Children...)
	case TypeString:
		s, ok := tag.Value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %T as %s", ErrValueType, tag.Value, tag.Type)
		}
		return []byte(s), nil
	case TypeRaw:
		switch v := tag.Value.(type) {
		case []byte:
			return v, nil
		case nil:
			return nil, nil
		default:
			return nil, fmt.Errorf("%w: %T as %s", ErrValueType, tag.Value, tag.Type)
		}
	case TypeBool:
		b, ok := tag.Value.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: %T as %s", ErrValueType, tag.Value, tag.Type)
		}
		if b {
			return []byte{1}, nil
		}
		return []byte{0}, nil
	case TypeUint8, TypeUint16, TypeUint32, TypeUint64:
		n, err := toUint64(tag.Value)
		if err != nil {
			return nil, err
		}
		width := tag.Type.width()
		if width < 8 && n >= 1<<(8*width) {
			return nil, fmt.Errorf("%w: %d as %s", ErrOverflow, n, tag.Type)
		}
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, n)
		return buf[8-width:], nil
	default:
		return nil, fmt.Errorf("%w: unknown type %s", ErrValueType, tag.Type)
	}
}

func toUint64(v any) (uint64, error) {
	switch n := v.(type) {
	case uint8:
		return uint64(n), nil
	case uint16:
		return uint64(n), nil
	case uint32:
		return uint64(n), nil
	case uint64:
		return n, nil
	case uint:
		return uint64(n), nil
	case int:
		if n < 0 {
			return 0, fmt.Errorf("%w: negative value %d", ErrOverflow, n)
		}
		return uint64(n), nil
	case int32:
		if n < 0 {
			return 0, fmt.Errorf("%w: negative value %d", ErrOverflow, n)
		}
		return uint64(n), nil
	case int64:
		if n < 0 {
			return 0, fmt.Errorf("%w: negative value %d", ErrOverflow, n)
		}
		return uint64(n), nil
	default:
		return 0, fmt.Errorf("%w: %T is not numeric", ErrValueType, v)
	}
}
