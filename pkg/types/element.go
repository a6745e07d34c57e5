package types

import "fmt"

// ElementType identifies the semantic type of a dataset column's elements.
// The set is closed: storage mapping is total over it and fails on anything
// outside it rather than guessing.
type ElementType int

const (
	ElementInvalid ElementType = iota
	ElementInt
	ElementInt8
	ElementInt16
	ElementInt32
	ElementInt64
	ElementUint8
	ElementUint16
	ElementUint32
	ElementUint64
	ElementBool
	ElementFloat32
	ElementFloat64
	ElementString
)

// elementNames holds the canonical spelling for each element type.
var elementNames = map[ElementType]string{
	ElementInt:     "int",
	ElementInt8:    "int8",
	ElementInt16:   "int16",
	ElementInt32:   "int32",
	ElementInt64:   "int64",
	ElementUint8:   "uint8",
	ElementUint16:  "uint16",
	ElementUint32:  "uint32",
	ElementUint64:  "uint64",
	ElementBool:    "bool",
	ElementFloat32: "float32",
	ElementFloat64: "float64",
	ElementString:  "string",
}

func (t ElementType) String() string {
	if name, ok := elementNames[t]; ok {
		return name
	}
	return fmt.Sprintf("ElementType(%d)", int(t))
}

// elementSpellings maps accepted type-name spellings to element types,
// including the aliases datasets commonly carry for textual columns.
var elementSpellings = map[string]ElementType{
	"int":     ElementInt,
	"int8":    ElementInt8,
	"int16":   ElementInt16,
	"int32":   ElementInt32,
	"int64":   ElementInt64,
	"uint":    ElementUint64,
	"uint8":   ElementUint8,
	"uint16":  ElementUint16,
	"uint32":  ElementUint32,
	"uint64":  ElementUint64,
	"bool":    ElementBool,
	"float":   ElementFloat64,
	"float32": ElementFloat32,
	"float64": ElementFloat64,
	"str":     ElementString,
	"string":  ElementString,
	"text":    ElementString,
	"object":  ElementString,
}

// ParseElementType resolves a type-name spelling to an ElementType.
// Unrecognized spellings return an UnsupportedTypeError.
func ParseElementType(s string) (ElementType, error) {
	if t, ok := elementSpellings[s]; ok {
		return t, nil
	}
	return ElementInvalid, &UnsupportedTypeError{Type: s}
}

// ElementTypeOf classifies a native Go value. Values outside the closed set
// return an UnsupportedTypeError naming the concrete type.
func ElementTypeOf(v interface{}) (ElementType, error) {
	switch v.(type) {
	case int:
		return ElementInt, nil
	case int8:
		return ElementInt8, nil
	case int16:
		return ElementInt16, nil
	case int32:
		return ElementInt32, nil
	case int64:
		return ElementInt64, nil
	case uint:
		return ElementUint64, nil
	case uint8:
		return ElementUint8, nil
	case uint16:
		return ElementUint16, nil
	case uint32:
		return ElementUint32, nil
	case uint64:
		return ElementUint64, nil
	case bool:
		return ElementBool, nil
	case float32:
		return ElementFloat32, nil
	case float64:
		return ElementFloat64, nil
	case string:
		return ElementString, nil
	default:
		return ElementInvalid, &UnsupportedTypeError{Type: fmt.Sprintf("%T", v)}
	}
}

// Storage type names used in generated DDL.
const (
	StorageInteger = "INTEGER"
	StorageFloat   = "FLOAT"
	StorageText    = "TEXT"
)

// StorageType maps an element type to its database storage type. The mapping
// is total over the closed set; unknown values are an error, never TEXT.
func StorageType(t ElementType) (string, error) {
	switch t {
	case ElementInt, ElementInt8, ElementInt16, ElementInt32, ElementInt64,
		ElementUint8, ElementUint16, ElementUint32, ElementUint64:
		return StorageInteger, nil
	case ElementBool:
		return StorageInteger, nil
	case ElementFloat32, ElementFloat64:
		return StorageFloat, nil
	case ElementString:
		return StorageText, nil
	default:
		return "", &UnsupportedTypeError{Type: t.String()}
	}
}
