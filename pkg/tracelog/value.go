package tracelog

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strconv"
)

// Kind is the serialization tag of a value, written by the dtype directive.
type Kind int

const (
	KindNone Kind = iota
	KindHex
	KindString
	KindFloat
	KindChoice
)

var kindNames = [...]string{
	KindNone:   "none",
	KindHex:    "hex",
	KindString: "string",
	KindFloat:  "float",
	KindChoice: "choice",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// ParseKind returns the Kind for a dtype tag.
func ParseKind(s string) (Kind, error) {
	for k, n := range kindNames {
		if n == s {
			return Kind(k), nil
		}
	}
	return 0, fmt.Errorf("%w: dtype %q", ErrUnsupportedValueType, s)
}

// Choice is an enumerated field value: the numeric code and its display text.
// Only the code is written to the trace.
type Choice struct {
	Code float64
	Text string
}

// KindOf classifies v. Supported shapes are:
//  nil                  none
//  []byte, []int        hex (every int must fit in a byte)
//  string               string
//  float64, float32     float
//  Choice               choice
func KindOf(v interface{}) (Kind, error) {
	switch x := v.(type) {
	case nil:
		return KindNone, nil
	case []byte:
		return KindHex, nil
	case []int:
		for _, b := range x {
			if b < 0 || b > 0xff {
				return 0, fmt.Errorf("%w: byte value %d out of range", ErrUnsupportedValueType, b)
			}
		}
		return KindHex, nil
	case string:
		return KindString, nil
	case float64, float32:
		return KindFloat, nil
	case Choice:
		return KindChoice, nil
	default:
		return 0, fmt.Errorf("%w: %T", ErrUnsupportedValueType, v)
	}
}

// Encode returns the kind of v and its trace representation.
func Encode(v interface{}) (Kind, string, error) {
	k, err := KindOf(v)
	if err != nil {
		return 0, "", err
	}

	switch k {
	case KindNone:
		return k, "", nil
	case KindHex:
		return k, hex.EncodeToString(toBytes(v)), nil
	case KindString:
		return k, v.(string), nil
	case KindFloat:
		if f, ok := v.(float32); ok {
			return k, strconv.FormatFloat(float64(f), 'g', -1, 32), nil
		}
		return k, formatFloat(v.(float64)), nil
	case KindChoice:
		return k, formatFloat(v.(Choice).Code), nil
	}

	// unreachable while KindOf and the switch above cover the same kinds
	return 0, "", fmt.Errorf("%w: %T", ErrUnsupportedValueType, v)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func toBytes(v interface{}) []byte {
	switch x := v.(type) {
	case []byte:
		return x
	case []int:
		b := make([]byte, len(x))
		for i, n := range x {
			b[i] = byte(n)
		}
		return b
	}
	return nil
}

// number returns the numeric reading of v used for threshold comparison.
func number(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case Choice:
		return x.Code, true
	}
	return 0, false
}

// equal reports whether a and b are the same reading. Values of different
// kinds are never equal.
func equal(a, b interface{}) bool {
	ka, errA := KindOf(a)
	kb, errB := KindOf(b)
	if errA != nil || errB != nil || ka != kb {
		return false
	}

	switch ka {
	case KindNone:
		return true
	case KindHex:
		return bytes.Equal(toBytes(a), toBytes(b))
	case KindString:
		return a.(string) == b.(string)
	case KindFloat:
		fa, _ := number(a)
		fb, _ := number(b)
		return fa == fb
	case KindChoice:
		return a.(Choice) == b.(Choice)
	}
	return false
}
