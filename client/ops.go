package client

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/industrialgo/cipstack/cip"
)

// Operation is a compiled unit of client work (§4.8 "Operation parsing"):
// an addressing path plus, for a write, the values to encode.
type Operation struct {
	Description string
	Path        []cip.Segment
	Type        cip.Type // element type; unset (0) means "let the server decide" for a bare read
	Count       int      // element count; 0 defaults to 1
	Values      []any    // non-nil marks this a write
	symbolic    bool
}

// isWrite reports whether op carries values to write.
func (op *Operation) isWrite() bool { return op.Values != nil }

// ParseOperation compiles one operation-syntax expression (§6 "Operation
// syntax"): `TAG[lo-hi]=(TYPE)v1,v2,…` (symbolic), `@c/i/a[e]=…`
// (numeric), or a JSON object segment form.
func ParseOperation(expr string) (*Operation, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("client: empty operation")
	}
	if strings.HasPrefix(expr, "{") {
		return parseJSONOperation(expr)
	}

	addr, rhs, hasRHS := cutFirst(expr, '=')

	var op Operation
	op.Description = addr

	switch {
	case strings.HasPrefix(addr, "@"):
		if err := parseNumericAddr(addr[1:], &op); err != nil {
			return nil, err
		}
	default:
		if err := parseSymbolicAddr(addr, &op); err != nil {
			return nil, err
		}
	}

	if hasRHS {
		if err := parseValueList(rhs, &op); err != nil {
			return nil, err
		}
	}
	return &op, nil
}

// cutFirst splits s on the first occurrence of sep, reporting whether sep
// was present (a bare read has no '=').
func cutFirst(s string, sep byte) (before, after string, found bool) {
	i := strings.IndexByte(s, sep)
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i+1:], true
}

// parseSymbolicAddr parses `TAG` or `TAG[lo-hi]` or `TAG[idx]` into a
// single symbolic segment plus an optional trailing element segment.
func parseSymbolicAddr(addr string, op *Operation) error {
	name, lo, hi, err := parseBracket(addr)
	if err != nil {
		return err
	}
	op.symbolic = true
	op.Path = []cip.Segment{{Kind: cip.SegSymbolic, Name: name}}
	if lo >= 0 {
		op.Path = append(op.Path, cip.Segment{Kind: cip.SegElement, Value: lo})
		op.Count = hi - lo + 1
	} else {
		op.Count = 1
	}
	return nil
}

// parseNumericAddr parses `class/instance/attribute[element]` into logical
// segments.
func parseNumericAddr(addr string, op *Operation) error {
	last, lo, hi, err := parseBracket(addr)
	if err != nil {
		return err
	}
	parts := strings.Split(last, "/")
	if len(parts) < 2 || len(parts) > 3 {
		return fmt.Errorf("client: numeric address %q must be class/instance[/attribute]", addr)
	}
	kinds := []cip.SegmentKind{cip.SegClass, cip.SegInstance, cip.SegAttribute}
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("client: numeric address segment %q: %w", p, err)
		}
		op.Path = append(op.Path, cip.Segment{Kind: kinds[i], Value: v})
	}
	if lo >= 0 {
		op.Path = append(op.Path, cip.Segment{Kind: cip.SegElement, Value: lo})
		op.Count = hi - lo + 1
	} else {
		op.Count = 1
	}
	return nil
}

// parseBracket splits "NAME[lo-hi]" or "NAME[idx]" or bare "NAME" into the
// name and an inclusive [lo,hi] element range, lo==-1 when absent.
func parseBracket(s string) (name string, lo, hi int, err error) {
	open := strings.IndexByte(s, '[')
	if open < 0 {
		return s, -1, -1, nil
	}
	if !strings.HasSuffix(s, "]") {
		return "", 0, 0, fmt.Errorf("client: unterminated element range in %q", s)
	}
	name = s[:open]
	rng := s[open+1 : len(s)-1]
	if dash := strings.IndexByte(rng, '-'); dash >= 0 {
		lo, err = strconv.Atoi(rng[:dash])
		if err != nil {
			return "", 0, 0, fmt.Errorf("client: bad range low %q: %w", rng, err)
		}
		hi, err = strconv.Atoi(rng[dash+1:])
		if err != nil {
			return "", 0, 0, fmt.Errorf("client: bad range high %q: %w", rng, err)
		}
		return name, lo, hi, nil
	}
	idx, err := strconv.Atoi(rng)
	if err != nil {
		return "", 0, 0, fmt.Errorf("client: bad element index %q: %w", rng, err)
	}
	return name, idx, idx, nil
}

// parseValueList parses "(TYPE)v1,v2,…" into op.Type and op.Values.
func parseValueList(rhs string, op *Operation) error {
	rhs = strings.TrimSpace(rhs)
	if !strings.HasPrefix(rhs, "(") {
		return fmt.Errorf("client: value list %q missing (TYPE) prefix", rhs)
	}
	closeParen := strings.IndexByte(rhs, ')')
	if closeParen < 0 {
		return fmt.Errorf("client: unterminated (TYPE) in %q", rhs)
	}
	typeName := rhs[1:closeParen]
	t, ok := cip.ParseTypeName(strings.ToUpper(typeName))
	if !ok {
		return fmt.Errorf("client: unknown type %q", typeName)
	}
	op.Type = t

	raw := rhs[closeParen+1:]
	if raw == "" {
		return nil
	}
	for _, tok := range strings.Split(raw, ",") {
		v, err := coerceValue(t, strings.TrimSpace(tok))
		if err != nil {
			return err
		}
		op.Values = append(op.Values, v)
	}
	if len(op.Values) > 0 {
		op.Count = len(op.Values)
	}
	return nil
}

// coerceValue converts a decimal literal to the exact Go type
// cip.EncodeFixed/EncodeTypedData expects for t.
func coerceValue(t cip.Type, tok string) (any, error) {
	switch t {
	case cip.TypeBOOL:
		return tok == "1" || strings.EqualFold(tok, "true"), nil
	case cip.TypeSINT:
		v, err := strconv.ParseInt(tok, 10, 8)
		return int8(v), err
	case cip.TypeUSINT, cip.TypeBYTE:
		v, err := strconv.ParseUint(tok, 10, 8)
		return uint8(v), err
	case cip.TypeINT:
		v, err := strconv.ParseInt(tok, 10, 16)
		return int16(v), err
	case cip.TypeUINT, cip.TypeWORD:
		v, err := strconv.ParseUint(tok, 10, 16)
		return uint16(v), err
	case cip.TypeDINT:
		v, err := strconv.ParseInt(tok, 10, 32)
		return int32(v), err
	case cip.TypeUDINT, cip.TypeDWORD:
		v, err := strconv.ParseUint(tok, 10, 32)
		return uint32(v), err
	case cip.TypeLINT:
		v, err := strconv.ParseInt(tok, 10, 64)
		return int64(v), err
	case cip.TypeULINT, cip.TypeLWORD:
		v, err := strconv.ParseUint(tok, 10, 64)
		return uint64(v), err
	case cip.TypeREAL:
		v, err := strconv.ParseFloat(tok, 32)
		return float32(v), err
	case cip.TypeLREAL:
		return strconv.ParseFloat(tok, 64)
	case cip.TypeSTRING, cip.TypeSHORTSTRING:
		return tok, nil
	default:
		return nil, fmt.Errorf("client: type %s has no literal form", cip.Name(t))
	}
}

// parseJSONOperation compiles the JSON-object segment form, e.g.
// `{"connection": 100}` or `{"class": 6, "instance": 1, "attribute": 1}`.
func parseJSONOperation(expr string) (*Operation, error) {
	var raw map[string]json.Number
	if err := json.Unmarshal([]byte(expr), &raw); err != nil {
		return nil, fmt.Errorf("client: malformed JSON segment %q: %w", expr, err)
	}
	op := &Operation{Description: expr}
	order := []struct {
		key  string
		kind cip.SegmentKind
	}{
		{"class", cip.SegClass}, {"instance", cip.SegInstance},
		{"attribute", cip.SegAttribute}, {"element", cip.SegElement},
		{"connection", cip.SegConnection},
	}
	for _, o := range order {
		n, ok := raw[o.key]
		if !ok {
			continue
		}
		v, err := n.Int64()
		if err != nil {
			return nil, fmt.Errorf("client: JSON segment %q: %w", o.key, err)
		}
		op.Path = append(op.Path, cip.Segment{Kind: o.kind, Value: int(v)})
	}
	if len(op.Path) == 0 {
		return nil, fmt.Errorf("client: JSON segment %q named no recognized keys", expr)
	}
	op.Count = 1
	return op, nil
}

// encodeRequest compiles op into a raw CIP request (service byte, path,
// service-specific data), choosing Logix Read/Write Tag for a symbolic
// path and Get/Set-Attribute-Single for a numeric one.
func (op *Operation) encodeRequest() ([]byte, error) {
	count := op.Count
	if count < 1 {
		count = 1
	}
	if op.isWrite() {
		data, err := cip.EncodeTypedData(op.Type, op.Values)
		if err != nil {
			return nil, err
		}
		if op.symbolic {
			hdr := make([]byte, 4)
			hdr[0], hdr[1] = byte(op.Type), byte(op.Type>>8)
			hdr[2], hdr[3] = byte(count), byte(count>>8)
			return cip.EncodeRequest(&cip.Request{Service: cip.SvcWriteTag, Path: op.Path, Data: append(hdr, data...)})
		}
		return cip.EncodeRequest(&cip.Request{Service: cip.SvcSetAttributeSingle, Path: op.Path, Data: data})
	}

	if op.symbolic {
		elems := []byte{byte(count), byte(count >> 8)}
		return cip.EncodeRequest(&cip.Request{Service: cip.SvcReadTag, Path: op.Path, Data: elems})
	}
	return cip.EncodeRequest(&cip.Request{Service: cip.SvcGetAttributeSingle, Path: op.Path})
}
