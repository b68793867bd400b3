// Package dmap encodes and decodes the DMAP tagged binary format used by
// DAAP and DACP request and response bodies.
//
// Every tag is a 4-byte ASCII code, a 4-byte big-endian length and a value.
// Containers hold the concatenated encodings of their children.
package dmap

import (
	"fmt"
)

// Type is the declared semantic type of a tag code.
type Type uint8

const (
	// TypeRaw is an opaque byte value. Unknown codes decode as raw.
	TypeRaw Type = iota
	TypeUint8
	TypeUint16
	TypeUint32
	TypeUint64
	TypeBool
	TypeString
	TypeContainer
)

func (t Type) String() string {
	switch t {
	case TypeRaw:
		return "raw"
	case TypeUint8:
		return "uint8"
	case TypeUint16:
		return "uint16"
	case TypeUint32:
		return "uint32"
	case TypeUint64:
		return "uint64"
	case TypeBool:
		return "bool"
	case TypeString:
		return "string"
	case TypeContainer:
		return "container"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

// width returns the fixed encoded size of numeric and boolean types, or 0.
func (t Type) width() int {
	switch t {
	case TypeUint8, TypeBool:
		return 1
	case TypeUint16:
		return 2
	case TypeUint32:
		return 4
	case TypeUint64:
		return 8
	default:
		return 0
	}
}

// Tag is one DMAP element.
//
// Value holds uint8, uint16, uint32, uint64, bool, string or []byte matching
// Type. Containers leave Value nil and carry Children instead.
type Tag struct {
	Code     string
	Type     Type
	Value    any
	Children []Tag
}

func Uint8(code string, v uint8) Tag   { return Tag{Code: code, Type: TypeUint8, Value: v} }
func Uint16(code string, v uint16) Tag { return Tag{Code: code, Type: TypeUint16, Value: v} }
func Uint32(code string, v uint32) Tag { return Tag{Code: code, Type: TypeUint32, Value: v} }
func Uint64(code string, v uint64) Tag { return Tag{Code: code, Type: TypeUint64, Value: v} }
func Bool(code string, v bool) Tag     { return Tag{Code: code, Type: TypeBool, Value: v} }
func String(code string, v string) Tag { return Tag{Code: code, Type: TypeString, Value: v} }
func Raw(code string, v []byte) Tag    { return Tag{Code: code, Type: TypeRaw, Value: v} }

// Container builds a container tag from already constructed children.
func Container(code string, children ...Tag) Tag {
	return Tag{Code: code, Type: TypeContainer, Children: children}
}

// AsUint returns the value of any unsigned numeric tag widened to uint64.
func (t Tag) AsUint() (uint64, bool) {
	switch v := t.Value.(type) {
	case uint8:
		return uint64(v), true
	case uint16:
		return uint64(v), true
	case uint32:
		return uint64(v), true
	case uint64:
		return v, true
	default:
		return 0, false
	}
}

// AsString returns the value of a string tag.
func (t Tag) AsString() (string, bool) {
	v, ok := t.Value.(string)
	return v, ok
}

// AsBool returns the value of a boolean tag.
func (t Tag) AsBool() (bool, bool) {
	v, ok := t.Value.(bool)
	return v, ok
}

// AsBytes returns the value of a raw tag.
func (t Tag) AsBytes() ([]byte, bool) {
	v, ok := t.Value.([]byte)
	return v, ok
}
