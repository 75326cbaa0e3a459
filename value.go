package restarter

import (
	"fmt"
	"strings"
)

// ValueType is the type tag the configuration store keeps next to every raw value.
// The numeric values match the store's on-disk tags and must not be renumbered.
type ValueType uint32

const (
	// TypeNone is an opaque value without a declared type
	TypeNone ValueType = 0
	// TypeString is a NUL-terminated UTF-16 string
	TypeString ValueType = 1
	// TypeExpandString is a UTF-16 string with %VAR% environment references
	TypeExpandString ValueType = 2
	// TypeBinary is opaque binary data
	TypeBinary ValueType = 3
	// TypeDWord is a 32-bit little-endian unsigned integer
	TypeDWord ValueType = 4
	// TypeDWordBigEndian is a 32-bit big-endian unsigned integer
	TypeDWordBigEndian ValueType = 5
	// TypeLink is a UTF-16 symbolic link target
	TypeLink ValueType = 6
	// TypeMultiString is a sequence of NUL-terminated UTF-16 strings ended by an extra NUL
	TypeMultiString ValueType = 7
	// TypeResourceList is an opaque device resource list
	TypeResourceList ValueType = 8
	// TypeFullResourceDescriptor is an opaque hardware resource descriptor
	TypeFullResourceDescriptor ValueType = 9
	// TypeResourceRequirementsList is an opaque resource requirements list
	TypeResourceRequirementsList ValueType = 10
	// TypeQWord is a 64-bit little-endian unsigned integer
	TypeQWord ValueType = 11
)

// ValueType string constants
const (
	typeNoneStr                     = "none"
	typeStringStr                   = "sz"
	typeExpandStringStr             = "expand_sz"
	typeBinaryStr                   = "binary"
	typeDWordStr                    = "dword"
	typeDWordBigEndianStr           = "dword_be"
	typeLinkStr                     = "link"
	typeMultiStringStr              = "multi_sz"
	typeResourceListStr             = "resource_list"
	typeFullResourceDescriptorStr   = "full_resource_descriptor"
	typeResourceRequirementsListStr = "resource_requirements_list"
	typeQWordStr                    = "qword"
)

var valueTypeNames = map[ValueType]string{
	TypeNone:                     typeNoneStr,
	TypeString:                   typeStringStr,
	TypeExpandString:             typeExpandStringStr,
	TypeBinary:                   typeBinaryStr,
	TypeDWord:                    typeDWordStr,
	TypeDWordBigEndian:           typeDWordBigEndianStr,
	TypeLink:                     typeLinkStr,
	TypeMultiString:              typeMultiStringStr,
	TypeResourceList:             typeResourceListStr,
	TypeFullResourceDescriptor:   typeFullResourceDescriptorStr,
	TypeResourceRequirementsList: typeResourceRequirementsListStr,
	TypeQWord:                    typeQWordStr,
}

// String returns the string representation of the value type
func (t ValueType) String() string {
	if s, ok := valueTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("type(0x%X)", uint32(t))
}

// Known reports whether t is one of the twelve defined tags
func (t ValueType) Known() bool {
	_, ok := valueTypeNames[t]
	return ok
}

// ParseValueType maps a type name (as printed by String, case-insensitive,
// with an optional "reg_" prefix) back to its tag.
func ParseValueType(s string) (ValueType, error) {
	name := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "reg_")
	for t, n := range valueTypeNames {
		if n == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownValueType, s)
}

// ValueTypes returns all known tags in numeric order
func ValueTypes() []ValueType {
	types := make([]ValueType, 0, len(valueTypeNames))
	for t := TypeNone; t <= TypeQWord; t++ {
		types = append(types, t)
	}
	return types
}

// Value is one configuration entry. The set of implementations is closed;
// switch on the concrete type to inspect the payload.
type Value interface {
	// Type returns the tag this value is stored under
	Type() ValueType

	isValue()
}

// NoneValue is an untyped opaque payload
type NoneValue []byte

// StringValue is a plain text value
type StringValue string

// ExpandStringValue is a text value with environment references.
// Expanded is computed at decode time and is ignored by Encode.
type ExpandStringValue struct {
	Unexpanded string
	Expanded   string
}

// BinaryValue is an opaque byte payload
type BinaryValue []byte

// DWordValue is a 32-bit integer stored little-endian
type DWordValue uint32

// DWordBigEndianValue is a 32-bit integer stored big-endian
type DWordBigEndianValue uint32

// LinkValue is a symbolic link target
type LinkValue string

// MultiStringValue is an ordered list of non-empty strings
type MultiStringValue []string

// ResourceListValue is passed through uninterpreted
type ResourceListValue []byte

// FullResourceDescriptorValue is passed through uninterpreted
type FullResourceDescriptorValue []byte

// ResourceRequirementsListValue is passed through uninterpreted
type ResourceRequirementsListValue []byte

// QWordValue is a 64-bit integer stored little-endian
type QWordValue uint64

func (NoneValue) Type() ValueType                     { return TypeNone }
func (StringValue) Type() ValueType                   { return TypeString }
func (ExpandStringValue) Type() ValueType             { return TypeExpandString }
func (BinaryValue) Type() ValueType                   { return TypeBinary }
func (DWordValue) Type() ValueType                    { return TypeDWord }
func (DWordBigEndianValue) Type() ValueType           { return TypeDWordBigEndian }
func (LinkValue) Type() ValueType                     { return TypeLink }
func (MultiStringValue) Type() ValueType              { return TypeMultiString }
func (ResourceListValue) Type() ValueType             { return TypeResourceList }
func (FullResourceDescriptorValue) Type() ValueType   { return TypeFullResourceDescriptor }
func (ResourceRequirementsListValue) Type() ValueType { return TypeResourceRequirementsList }
func (QWordValue) Type() ValueType                    { return TypeQWord }

func (NoneValue) isValue()                     {}
func (StringValue) isValue()                   {}
func (ExpandStringValue) isValue()             {}
func (BinaryValue) isValue()                   {}
func (DWordValue) isValue()                    {}
func (DWordBigEndianValue) isValue()           {}
func (LinkValue) isValue()                     {}
func (MultiStringValue) isValue()              {}
func (ResourceListValue) isValue()             {}
func (FullResourceDescriptorValue) isValue()   {}
func (ResourceRequirementsListValue) isValue() {}
func (QWordValue) isValue()                    {}

// IntegerValue extracts an unsigned integer from any of the three integer variants.
// It reports false for every other variant.
func IntegerValue(v Value) (uint64, bool) {
	switch n := v.(type) {
	case DWordValue:
		return uint64(n), true
	case DWordBigEndianValue:
		return uint64(n), true
	case QWordValue:
		return uint64(n), true
	default:
		return 0, false
	}
}

// TextValue extracts the effective text of a string-like value: the plain
// string, the expanded form of an expandable string, or a link target.
func TextValue(v Value) (string, bool) {
	switch s := v.(type) {
	case StringValue:
		return string(s), true
	case ExpandStringValue:
		return s.Expanded, true
	case LinkValue:
		return string(s), true
	default:
		return "", false
	}
}
