package ir

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode/utf16"
)

// IRValue is a sealed interface for attribute values attached to ops and
// functions. Only the types in this file implement it.
// There is no float attribute: nothing in the runtime calling convention
// carries one, and floats would break canonical fingerprints.
type IRValue interface {
	irValue() // Sealed
}

// IRNull is the unit attribute (present, carries no payload).
type IRNull struct{}

func (IRNull) irValue() {}

// IRString is a string attribute.
type IRString string

func (IRString) irValue() {}

// IRInt is a signless 64-bit integer attribute.
type IRInt int64

func (IRInt) irValue() {}

// IRInt32 is a signless 32-bit integer attribute.
type IRInt32 int32

func (IRInt32) irValue() {}

// IRBool is a boolean attribute.
type IRBool bool

func (IRBool) irValue() {}

// IRArray is an ordered list of attributes.
type IRArray []IRValue

func (IRArray) irValue() {}

// IRObject is a dictionary of named attributes.
// Use SortedKeys() for deterministic iteration.
type IRObject map[string]IRValue

func (IRObject) irValue() {}

// ArgMapping maps a custom call's logical arguments and results onto the
// physical argument slots of the runtime target. Slots that no logical
// argument or result maps to are filled with a placeholder buffer.
type ArgMapping struct {
	NumArgs                int64
	NumResults             int64
	ArgsToTargetArgs       []int64 // logical arg i -> physical arg slot
	ResultsToTargetResults []int64 // logical result i -> physical result slot
}

func (ArgMapping) irValue() {}

// MaxMappedSlots bounds NumArgs+NumResults of an ArgMapping. Runtime
// targets take a handful of buffers; anything near this is a corrupt input.
const MaxMappedSlots = 1 << 16

// CheckArity rejects negative arities and physical layouts wider than
// MaxMappedSlots.
func (m ArgMapping) CheckArity() error {
	if m.NumArgs < 0 || m.NumResults < 0 {
		return fmt.Errorf("negative arity (%d args, %d results)", m.NumArgs, m.NumResults)
	}
	if m.NumArgs > MaxMappedSlots || m.NumResults > MaxMappedSlots-m.NumArgs {
		return fmt.Errorf("arity %d args + %d results exceeds %d slots", m.NumArgs, m.NumResults, MaxMappedSlots)
	}
	return nil
}

// Slots returns the physical slot count, NumArgs+NumResults.
func (m ArgMapping) Slots() int64 { return m.NumArgs + m.NumResults }

// I32Array builds an IRArray of IRInt32 elements.
func I32Array(vals ...int32) IRArray {
	arr := make(IRArray, len(vals))
	for i, v := range vals {
		arr[i] = IRInt32(v)
	}
	return arr
}

// AsInt extracts an integer from IRInt or IRInt32.
func AsInt(v IRValue) (int64, bool) {
	switch val := v.(type) {
	case IRInt:
		return int64(val), true
	case IRInt32:
		return int64(val), true
	default:
		return 0, false
	}
}

// Clone returns a shallow copy of the object (values are immutable).
func (obj IRObject) Clone() IRObject {
	if obj == nil {
		return IRObject{}
	}
	out := make(IRObject, len(obj))
	for k, v := range obj {
		out[k] = v
	}
	return out
}

// SortedKeys returns keys in UTF-16 code unit order (RFC 8785).
// This is also the order in which attributes are printed.
func (obj IRObject) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysUTF16)
	return keys
}

// compareKeysUTF16 orders strings by UTF-16 code units. Go's native string
// comparison works on UTF-8 bytes and disagrees for supplementary planes.
func compareKeysUTF16(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	return slices.Compare(a16, b16)
}

// AttrEqual reports whether two attribute values are structurally equal.
func AttrEqual(a, b IRValue) bool {
	switch av := a.(type) {
	case IRNull:
		_, ok := b.(IRNull)
		return ok
	case IRString:
		bv, ok := b.(IRString)
		return ok && av == bv
	case IRInt:
		bv, ok := b.(IRInt)
		return ok && av == bv
	case IRInt32:
		bv, ok := b.(IRInt32)
		return ok && av == bv
	case IRBool:
		bv, ok := b.(IRBool)
		return ok && av == bv
	case IRArray:
		bv, ok := b.(IRArray)
		return ok && slices.EqualFunc(av, bv, AttrEqual)
	case IRObject:
		bv, ok := b.(IRObject)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			w, found := bv[k]
			if !found || !AttrEqual(v, w) {
				return false
			}
		}
		return true
	case ArgMapping:
		bv, ok := b.(ArgMapping)
		return ok && av.NumArgs == bv.NumArgs && av.NumResults == bv.NumResults &&
			slices.Equal(av.ArgsToTargetArgs, bv.ArgsToTargetArgs) &&
			slices.Equal(av.ResultsToTargetResults, bv.ResultsToTargetResults)
	default:
		return false
	}
}

// FormatAttr renders an attribute value in the textual IR form.
func FormatAttr(v IRValue) string {
	var sb strings.Builder
	writeAttr(&sb, v)
	return sb.String()
}

func writeAttr(sb *strings.Builder, v IRValue) {
	switch val := v.(type) {
	case IRNull:
		sb.WriteString("unit")
	case IRString:
		sb.WriteString(strconv.Quote(string(val)))
	case IRInt:
		fmt.Fprintf(sb, "%d : i64", int64(val))
	case IRInt32:
		fmt.Fprintf(sb, "%d : i32", int32(val))
	case IRBool:
		sb.WriteString(strconv.FormatBool(bool(val)))
	case IRArray:
		sb.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				sb.WriteString(", ")
			}
			writeAttr(sb, elem)
		}
		sb.WriteByte(']')
	case IRObject:
		writeAttrDict(sb, val)
	case ArgMapping:
		fmt.Fprintf(sb, "#lmhlo.custom_call_target_arg_mapping<num_args = %d, num_results = %d, args_to_target_args = %s, results_to_target_results = %s>",
			val.NumArgs, val.NumResults, formatInts(val.ArgsToTargetArgs), formatInts(val.ResultsToTargetResults))
	default:
		fmt.Fprintf(sb, "<unknown %T>", v)
	}
}

// writeAttrDict renders {a = 1 : i64, b = "x"} in sorted key order.
func writeAttrDict(sb *strings.Builder, obj IRObject) {
	sb.WriteByte('{')
	for i, k := range obj.SortedKeys() {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(k)
		sb.WriteString(" = ")
		writeAttr(sb, obj[k])
	}
	sb.WriteByte('}')
}

func formatInts(vals []int64) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.FormatInt(v, 10)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
