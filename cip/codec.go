package cip

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/industrialgo/cipstack/automata"
	"github.com/industrialgo/cipstack/dtree"
)

// fixedDFA returns a DFA that consumes exactly n bytes, appending each into
// a byte slice stored at "<context>.raw", terminal on the nth byte. This is
// the little-endian, fixed-length primitive codec described in §4.3: one
// small composable DFA per width.
func fixedDFA(name string, n int) *automata.DFA {
	states := make([]*automata.State, n+1)
	for i := 0; i <= n; i++ {
		states[i] = automata.NewState(fmt.Sprintf("%s.b%d", name, i))
	}
	states[n].Terminate()
	for i := 0; i < n; i++ {
		idx := i
		states[i].Default(states[i+1])
		states[i+1].Do(func(t *dtree.Tree, ctx string, sym automata.Symbol) error {
			raw, _ := t.Get(dtree.Join(ctx, "raw"))
			buf, _ := raw.([]byte)
			if idx == 0 {
				buf = nil
			}
			buf = append(buf, byte(sym))
			return t.Set(dtree.Join(ctx, "raw"), buf)
		})
	}
	return &automata.DFA{Name: name, Start: states[0], Greedy: false, Terminal: true}
}

// DecodeFixed parses a fixed-width CIP scalar from src at the front of the
// stream, returning the decoded value as one of bool/int8/int16/int32/
// int64/uint8/uint16/uint32/uint64/float32/float64.
func DecodeFixed(t Type, src automata.Source) (any, error) {
	n := FixedLen(t)
	if n == 0 {
		return nil, fmt.Errorf("cip: %s is not fixed-width", Name(t))
	}
	dfa := fixedDFA(Name(t), n)
	tree := dtree.New()
	run := automata.NewRun(dfa, nil)
	ok, err := run.Execute(tree, src)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("cip: truncated %s", Name(t))
	}
	raw, _ := tree.Get("raw")
	buf, _ := raw.([]byte)
	return decodeRaw(t, buf), nil
}

func decodeRaw(t Type, buf []byte) any {
	switch t {
	case TypeBOOL:
		return buf[0] != 0
	case TypeSINT:
		return int8(buf[0])
	case TypeUSINT, TypeBYTE:
		return buf[0]
	case TypeINT:
		return int16(binary.LittleEndian.Uint16(buf))
	case TypeUINT, TypeWORD:
		return binary.LittleEndian.Uint16(buf)
	case TypeDINT:
		return int32(binary.LittleEndian.Uint32(buf))
	case TypeUDINT, TypeDWORD:
		return binary.LittleEndian.Uint32(buf)
	case TypeREAL:
		return math.Float32frombits(binary.LittleEndian.Uint32(buf))
	case TypeLINT:
		return int64(binary.LittleEndian.Uint64(buf))
	case TypeULINT, TypeLWORD:
		return binary.LittleEndian.Uint64(buf)
	case TypeLREAL:
		return math.Float64frombits(binary.LittleEndian.Uint64(buf))
	default:
		return buf
	}
}

// EncodeFixed serializes a decoded scalar value back to its little-endian
// wire form. It is the mirror of DecodeFixed and satisfies the round-trip
// law of §8: decode(encode(v)) == v.
func EncodeFixed(t Type, v any) ([]byte, error) {
	n := FixedLen(t)
	if n == 0 {
		return nil, fmt.Errorf("cip: %s is not fixed-width", Name(t))
	}
	buf := make([]byte, n)
	switch t {
	case TypeBOOL:
		if v.(bool) {
			buf[0] = 0xFF
		}
	case TypeSINT:
		buf[0] = byte(v.(int8))
	case TypeUSINT, TypeBYTE:
		buf[0] = v.(uint8)
	case TypeINT:
		binary.LittleEndian.PutUint16(buf, uint16(v.(int16)))
	case TypeUINT, TypeWORD:
		binary.LittleEndian.PutUint16(buf, v.(uint16))
	case TypeDINT:
		binary.LittleEndian.PutUint32(buf, uint32(v.(int32)))
	case TypeUDINT, TypeDWORD:
		binary.LittleEndian.PutUint32(buf, v.(uint32))
	case TypeREAL:
		binary.LittleEndian.PutUint32(buf, math.Float32bits(v.(float32)))
	case TypeLINT:
		binary.LittleEndian.PutUint64(buf, uint64(v.(int64)))
	case TypeULINT, TypeLWORD:
		binary.LittleEndian.PutUint64(buf, v.(uint64))
	case TypeLREAL:
		binary.LittleEndian.PutUint64(buf, math.Float64bits(v.(float64)))
	default:
		return nil, fmt.Errorf("cip: %s is not a scalar type", Name(t))
	}
	return buf, nil
}

// TypedData is the "typed_data" combinator of §4.3: it decodes count
// elements of type t from src by chaining count fixed-width DFA runs (or,
// for SSTRING/STRING, count length-prefixed runs).
func TypedData(t Type, count int, src automata.Source) ([]any, error) {
	out := make([]any, 0, count)
	for i := 0; i < count; i++ {
		var (
			v   any
			err error
		)
		switch t {
		case TypeSTRING:
			v, err = DecodeSTRING(src)
		case TypeSHORTSTRING:
			v, err = DecodeSSTRING(src)
		default:
			v, err = DecodeFixed(t, src)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// EncodeTypedData is the serializing mirror of TypedData.
func EncodeTypedData(t Type, values []any) ([]byte, error) {
	var out []byte
	for _, v := range values {
		var (
			b   []byte
			err error
		)
		switch t {
		case TypeSTRING:
			b = EncodeSTRING(v.(string))
		case TypeSHORTSTRING:
			b = EncodeSSTRING(v.(string))
		default:
			b, err = EncodeFixed(t, v)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	return out, nil
}

// DecodeSSTRING reads a length(1) + bytes(length) short string. The DFA
// that reads the length byte and the DFA (built dynamically once the
// length is known) that reads the payload are two separate automata.Run
// executions chained by ordinary Go control flow — the length genuinely
// isn't knowable until it's parsed, so the byte-count of the second
// machine cannot be fixed at construction time the way scalar codecs are.
func DecodeSSTRING(src automata.Source) (string, error) {
	lenVal, err := DecodeFixed(TypeUSINT, src)
	if err != nil {
		return "", err
	}
	n := int(lenVal.(uint8))
	return decodeStringBody(src, n)
}

// DecodeSTRING reads a length(2) + bytes(length), with §9's accept-both
// policy on the odd-length pad byte: it consumes a trailing pad byte only
// if present and the payload length is odd, tolerating firmware that omits
// it.
func DecodeSTRING(src automata.Source) (string, error) {
	lenVal, err := DecodeFixed(TypeUINT, src)
	if err != nil {
		return "", err
	}
	n := int(lenVal.(uint16))
	s, err := decodeStringBody(src, n)
	if err != nil {
		return "", err
	}
	if n%2 == 1 {
		if next, has := src.Peek(); has && next == 0 {
			src.Next()
		}
	}
	return s, nil
}

func decodeStringBody(src automata.Source, n int) (string, error) {
	buf := make([]byte, 0, n)
	for i := 0; i < n; i++ {
		sym, ok := src.Next()
		if !ok {
			return "", fmt.Errorf("cip: truncated string body")
		}
		buf = append(buf, byte(sym))
	}
	return string(buf), nil
}

// EncodeSSTRING serializes length(1) + bytes.
func EncodeSSTRING(s string) []byte {
	buf := make([]byte, 0, len(s)+1)
	buf = append(buf, byte(len(s)))
	return append(buf, s...)
}

// EncodeSTRING serializes length(2) + bytes(+ pad to even length), per §9's
// emit-padded policy.
func EncodeSTRING(s string) []byte {
	buf := make([]byte, 2, len(s)+3)
	binary.LittleEndian.PutUint16(buf, uint16(len(s)))
	buf = append(buf, s...)
	if len(s)%2 == 1 {
		buf = append(buf, 0)
	}
	return buf
}
