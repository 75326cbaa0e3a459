package restarter

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// FormatValue renders v as a single line of text. Integers are shown in
// decimal and hex, opaque payloads as hex, lists as quoted elements.
func FormatValue(v Value) string {
	switch x := v.(type) {
	case StringValue:
		return strconv.Quote(string(x))
	case ExpandStringValue:
		if x.Expanded == x.Unexpanded {
			return strconv.Quote(x.Unexpanded)
		}
		return fmt.Sprintf("%q -> %q", x.Unexpanded, x.Expanded)
	case LinkValue:
		return strconv.Quote(string(x))
	case DWordValue:
		return fmt.Sprintf("%d (0x%08X)", uint32(x), uint32(x))
	case DWordBigEndianValue:
		return fmt.Sprintf("%d (0x%08X)", uint32(x), uint32(x))
	case QWordValue:
		return fmt.Sprintf("%d (0x%016X)", uint64(x), uint64(x))
	case MultiStringValue:
		quoted := make([]string, len(x))
		for i, s := range x {
			quoted[i] = strconv.Quote(s)
		}
		return "[" + strings.Join(quoted, ", ") + "]"
	case NoneValue:
		return hex.EncodeToString(x)
	case BinaryValue:
		return hex.EncodeToString(x)
	case ResourceListValue:
		return hex.EncodeToString(x)
	case FullResourceDescriptorValue:
		return hex.EncodeToString(x)
	case ResourceRequirementsListValue:
		return hex.EncodeToString(x)
	case nil:
		return "<nil>"
	default:
		return fmt.Sprintf("%v", v)
	}
}

// ParseValue builds a value of type t from command line arguments. Text
// types take exactly one argument, integers accept any strconv base prefix,
// opaque types take one hex string and a multi-string takes one argument per
// element (none at all for an empty list).
func ParseValue(t ValueType, args []string) (Value, error) {
	if t == TypeMultiString {
		list := make(MultiStringValue, len(args))
		copy(list, args)
		if _, err := Encode(list); err != nil {
			return nil, err
		}
		return list, nil
	}

	if len(args) != 1 {
		return nil, fmt.Errorf("%s takes exactly one argument, got %d", t, len(args))
	}
	arg := args[0]

	switch t {
	case TypeString:
		return StringValue(arg), nil
	case TypeExpandString:
		return ExpandStringValue{Unexpanded: arg, Expanded: arg}, nil
	case TypeLink:
		return LinkValue(arg), nil
	case TypeDWord, TypeDWordBigEndian:
		n, err := strconv.ParseUint(arg, 0, 32)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", t, err)
		}
		if t == TypeDWord {
			return DWordValue(n), nil
		}
		return DWordBigEndianValue(n), nil
	case TypeQWord:
		n, err := strconv.ParseUint(arg, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", t, err)
		}
		return QWordValue(n), nil
	case TypeNone, TypeBinary, TypeResourceList, TypeFullResourceDescriptor, TypeResourceRequirementsList:
		b, err := hex.DecodeString(strings.TrimPrefix(arg, "0x"))
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", t, err)
		}
		return Decode(t, b)
	default:
		return nil, fmt.Errorf("%w: 0x%X", ErrUnknownValueType, uint32(t))
	}
}
