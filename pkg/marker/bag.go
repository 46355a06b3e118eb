package marker

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"

	"passage/pkg/canonical"
)

// ErrUnsupportedValue is returned when metadata holds anything other than a
// string, an integer or a nested mapping.
var ErrUnsupportedValue = errors.New("unsupported metadata value")

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindString
	KindInt
	KindBag
)

// Value is a metadata value: a string, an integer or a nested Bag.
type Value struct {
	kind Kind
	str  string
	num  int64
	bag  *Bag
}

func String(s string) Value { return Value{kind: KindString, str: s} }

func Int(n int64) Value { return Value{kind: KindInt, num: n} }

func Nested(b *Bag) Value {
	if b == nil {
		b = NewBag()
	}
	return Value{kind: KindBag, bag: b}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) AsString() (string, bool) { return v.str, v.kind == KindString }

func (v Value) AsInt() (int64, bool) { return v.num, v.kind == KindInt }

func (v Value) AsBag() (*Bag, bool) { return v.bag, v.kind == KindBag }

func (v Value) canonical() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindInt:
		return v.num
	case KindBag:
		return v.bag.Canonical()
	}
	return nil
}

func (v Value) appendJSON(buf *bytes.Buffer) error {
	switch v.kind {
	case KindString:
		buf.Write(canonical.String(v.str))
	case KindInt:
		buf.WriteString(strconv.FormatInt(v.num, 10))
	case KindBag:
		return v.bag.appendJSON(buf)
	default:
		return ErrUnsupportedValue
	}
	return nil
}

// Bag is an ordered mapping from string keys to metadata values. JSON output
// keeps insertion order; the canonical form sorts keys. A nil *Bag is empty.
type Bag struct {
	keys   []string
	values map[string]Value
}

func NewBag() *Bag {
	return &Bag{values: make(map[string]Value)}
}

// Set stores v under key and returns the bag. Re-setting a key keeps its
// original position. Set on a nil *Bag returns a new bag holding the entry.
func (b *Bag) Set(key string, v Value) *Bag {
	if b == nil {
		b = NewBag()
	}
	if b.values == nil {
		b.values = make(map[string]Value)
	}
	if _, ok := b.values[key]; !ok {
		b.keys = append(b.keys, key)
	}
	b.values[key] = v
	return b
}

func (b *Bag) SetString(key, s string) *Bag { return b.Set(key, String(s)) }

func (b *Bag) Get(key string) (Value, bool) {
	if b == nil {
		return Value{}, false
	}
	v, ok := b.values[key]
	return v, ok
}

// GetString returns the string stored under key, or "" when the key is
// absent or holds another variant.
func (b *Bag) GetString(key string) string {
	v, _ := b.Get(key)
	s, _ := v.AsString()
	return s
}

// Bag returns the nested bag stored under key.
func (b *Bag) Bag(key string) (*Bag, bool) {
	v, ok := b.Get(key)
	if !ok {
		return nil, false
	}
	return v.AsBag()
}

// Keys returns the keys in insertion order.
func (b *Bag) Keys() []string {
	if b == nil {
		return nil
	}
	return slices.Clone(b.keys)
}

func (b *Bag) Len() int {
	if b == nil {
		return 0
	}
	return len(b.keys)
}

// Clone returns a deep copy.
func (b *Bag) Clone() *Bag {
	out := NewBag()
	if b == nil {
		return out
	}
	for _, k := range b.keys {
		v := b.values[k]
		if v.kind == KindBag {
			v = Nested(v.bag.Clone())
		}
		out.Set(k, v)
	}
	return out
}

// Canonical returns the signable view of the bag.
func (b *Bag) Canonical() canonical.Object {
	obj := canonical.Object{}
	if b == nil {
		return obj
	}
	for _, k := range b.keys {
		obj[k] = b.values[k].canonical()
	}
	return obj
}

func (b *Bag) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := b.appendJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (b *Bag) appendJSON(buf *bytes.Buffer) error {
	buf.WriteByte('{')
	if b != nil {
		for i, k := range b.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.Write(canonical.String(k))
			buf.WriteByte(':')
			if err := b.values[k].appendJSON(buf); err != nil {
				return fmt.Errorf("key %q: %w", k, err)
			}
		}
	}
	buf.WriteByte('}')
	return nil
}

// UnmarshalJSON accepts only objects whose leaves are strings or integers.
// Floats, booleans, nulls, arrays and duplicate keys are rejected.
func (b *Bag) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("%w: expected object", ErrUnsupportedValue)
	}
	parsed, err := decodeBagBody(dec)
	if err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return errors.New("unexpected data after metadata object")
	}
	*b = *parsed
	return nil
}

func decodeBagBody(dec *json.Decoder) (*Bag, error) {
	bag := NewBag()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, errors.New("metadata key must be a string")
		}
		if _, dup := bag.values[key]; dup {
			return nil, fmt.Errorf("duplicate metadata key %q", key)
		}
		v, err := decodeValue(dec)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", key, err)
		}
		bag.Set(key, v)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return bag, nil
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}
	switch t := tok.(type) {
	case string:
		return String(t), nil
	case json.Number:
		n, err := strconv.ParseInt(t.String(), 10, 64)
		if err != nil || strconv.FormatInt(n, 10) != t.String() {
			return Value{}, fmt.Errorf("%w: number %s is not an integer", ErrUnsupportedValue, t)
		}
		return Int(n), nil
	case json.Delim:
		if t != '{' {
			return Value{}, fmt.Errorf("%w: arrays are not supported", ErrUnsupportedValue)
		}
		nested, err := decodeBagBody(dec)
		if err != nil {
			return Value{}, err
		}
		return Nested(nested), nil
	default:
		return Value{}, fmt.Errorf("%w: %T", ErrUnsupportedValue, tok)
	}
}
