package restarter

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
	"unicode/utf16"
)

// Payload unit sizes
const (
	utf16UnitSize = 2
	dwordSize     = 4
	qwordSize     = 8
)

// DecodeOption configures Decode
type DecodeOption func(*decodeOptions)

type decodeOptions struct {
	expander Expander
}

// WithExpander sets the environment expander used for expandable strings.
// The default is the platform expander (see DefaultExpander).
func WithExpander(e Expander) DecodeOption {
	return func(o *decodeOptions) {
		o.expander = e
	}
}

// Decode turns a raw (type tag, payload) pair read from the configuration
// store into a typed Value. Integer payloads must match their width exactly
// and UTF-16 payloads must be a whole number of code units; anything else is
// ErrMalformedValue. Multi-string decoding is permissive: segments are split
// on NUL and the list ends at the first empty segment.
func Decode(t ValueType, data []byte, opts ...DecodeOption) (Value, error) {
	o := decodeOptions{expander: DefaultExpander()}
	for _, opt := range opts {
		opt(&o)
	}

	switch t {
	case TypeNone:
		return NoneValue(bytes.Clone(data)), nil
	case TypeString:
		s, err := decodeString(data)
		if err != nil {
			return nil, err
		}
		return StringValue(s), nil
	case TypeExpandString:
		s, err := decodeString(data)
		if err != nil {
			return nil, err
		}
		return expandValue(s, o.expander)
	case TypeBinary:
		return BinaryValue(bytes.Clone(data)), nil
	case TypeDWord:
		if len(data) != dwordSize {
			return nil, fmt.Errorf("%w: %s payload is %d bytes, want %d", ErrMalformedValue, t, len(data), dwordSize)
		}
		return DWordValue(binary.LittleEndian.Uint32(data)), nil
	case TypeDWordBigEndian:
		if len(data) != dwordSize {
			return nil, fmt.Errorf("%w: %s payload is %d bytes, want %d", ErrMalformedValue, t, len(data), dwordSize)
		}
		return DWordBigEndianValue(binary.BigEndian.Uint32(data)), nil
	case TypeLink:
		s, err := decodeString(data)
		if err != nil {
			return nil, err
		}
		return LinkValue(s), nil
	case TypeMultiString:
		ss, err := decodeMultiString(data)
		if err != nil {
			return nil, err
		}
		return ss, nil
	case TypeResourceList:
		return ResourceListValue(bytes.Clone(data)), nil
	case TypeFullResourceDescriptor:
		return FullResourceDescriptorValue(bytes.Clone(data)), nil
	case TypeResourceRequirementsList:
		return ResourceRequirementsListValue(bytes.Clone(data)), nil
	case TypeQWord:
		if len(data) != qwordSize {
			return nil, fmt.Errorf("%w: %s payload is %d bytes, want %d", ErrMalformedValue, t, len(data), qwordSize)
		}
		return QWordValue(binary.LittleEndian.Uint64(data)), nil
	default:
		return nil, fmt.Errorf("%w: %w 0x%X", ErrMalformedValue, ErrUnknownValueType, uint32(t))
	}
}

// Encode serializes a Value into the payload stored next to its Type tag.
// Multi-string encoding is strict: every element must be non-empty and
// NUL-free, otherwise ErrInvalidListElement is returned.
func Encode(v Value) ([]byte, error) {
	switch x := v.(type) {
	case NoneValue:
		return bytes.Clone(x), nil
	case StringValue:
		return encodeString(string(x)), nil
	case ExpandStringValue:
		return encodeString(x.Unexpanded), nil
	case BinaryValue:
		return bytes.Clone(x), nil
	case DWordValue:
		return binary.LittleEndian.AppendUint32(nil, uint32(x)), nil
	case DWordBigEndianValue:
		return binary.BigEndian.AppendUint32(nil, uint32(x)), nil
	case LinkValue:
		return encodeString(string(x)), nil
	case MultiStringValue:
		return encodeMultiString(x)
	case ResourceListValue:
		return bytes.Clone(x), nil
	case FullResourceDescriptorValue:
		return bytes.Clone(x), nil
	case ResourceRequirementsListValue:
		return bytes.Clone(x), nil
	case QWordValue:
		return binary.LittleEndian.AppendUint64(nil, uint64(x)), nil
	case nil:
		return nil, fmt.Errorf("%w: nil value", ErrUnknownValueType)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownValueType, v)
	}
}

// bytesToUnits reinterprets a payload as little-endian UTF-16 code units
func bytesToUnits(data []byte) ([]uint16, error) {
	if len(data)%utf16UnitSize != 0 {
		return nil, fmt.Errorf("%w: text payload length %d is not a multiple of %d", ErrMalformedValue, len(data), utf16UnitSize)
	}
	units := make([]uint16, len(data)/utf16UnitSize)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(data[i*utf16UnitSize:])
	}
	return units, nil
}

func unitsToBytes(units []uint16) []byte {
	out := make([]byte, 0, len(units)*utf16UnitSize)
	for _, u := range units {
		out = binary.LittleEndian.AppendUint16(out, u)
	}
	return out
}

// decodeString strips exactly one trailing NUL; embedded NULs are kept
func decodeString(data []byte) (string, error) {
	units, err := bytesToUnits(data)
	if err != nil {
		return "", err
	}
	if n := len(units); n > 0 && units[n-1] == 0 {
		units = units[:n-1]
	}
	return string(utf16.Decode(units)), nil
}

func encodeString(s string) []byte {
	units := utf16.Encode([]rune(s))
	units = append(units, 0)
	return unitsToBytes(units)
}

func decodeMultiString(data []byte) (MultiStringValue, error) {
	units, err := bytesToUnits(data)
	if err != nil {
		return nil, err
	}

	list := MultiStringValue{}
	start := 0
	for i := 0; i <= len(units); i++ {
		if i < len(units) && units[i] != 0 {
			continue
		}
		if i == start {
			// empty segment: double NUL or end of payload
			break
		}
		list = append(list, string(utf16.Decode(units[start:i])))
		start = i + 1
	}
	return list, nil
}

func encodeMultiString(list MultiStringValue) ([]byte, error) {
	var units []uint16
	for i, s := range list {
		if s == "" {
			return nil, fmt.Errorf("%w: element %d is empty", ErrInvalidListElement, i)
		}
		if strings.ContainsRune(s, 0) {
			return nil, fmt.Errorf("%w: element %d contains a NUL character", ErrInvalidListElement, i)
		}
		units = append(units, utf16.Encode([]rune(s))...)
		units = append(units, 0)
	}
	units = append(units, 0)
	return unitsToBytes(units), nil
}

func expandValue(s string, e Expander) (Value, error) {
	if s == "" || e == nil {
		return ExpandStringValue{Unexpanded: s, Expanded: s}, nil
	}
	expanded, err := e.Expand(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExpansion, err)
	}
	return ExpandStringValue{Unexpanded: s, Expanded: expanded}, nil
}
