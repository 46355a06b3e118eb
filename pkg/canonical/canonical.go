// Package canonical produces the deterministic byte encoding that marker
// signatures cover.
//
// The encoding is JSON with members sorted by key (byte order) at every
// level, no insignificant whitespace, strings escaped without HTML escaping,
// and integers in base 10. Members whose value is nil are omitted so an
// absent optional field and an explicit null encode identically. Floating
// point numbers are rejected: callers encode timestamps as integer Unix
// milliseconds and enumerations by their canonical name.
package canonical

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"time"
)

// Object is the signable view of a document.
type Object map[string]any

// Array is an ordered list of canonical values.
type Array []any

// Millis converts t to the canonical integer timestamp.
func Millis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

// Encode returns the canonical encoding of doc without the excluded
// top-level members.
func Encode(doc Object, exclude ...string) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeObject(&buf, doc, exclude); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeObject(buf *bytes.Buffer, obj Object, exclude []string) error {
	keys := make([]string, 0, len(obj))
	for k, v := range obj {
		if v == nil || slices.Contains(exclude, k) {
			continue
		}
		keys = append(keys, k)
	}
	slices.Sort(keys)

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encodeString(buf, k); err != nil {
			return err
		}
		buf.WriteByte(':')
		if err := encodeValue(buf, obj[k]); err != nil {
			return fmt.Errorf("member %q: %w", k, err)
		}
	}
	buf.WriteByte('}')
	return nil
}

func encodeValue(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case string:
		return encodeString(buf, val)
	case bool:
		buf.WriteString(strconv.FormatBool(val))
	case int:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case int64:
		buf.WriteString(strconv.FormatInt(val, 10))
	case Object:
		return encodeObject(buf, val, nil)
	case map[string]any:
		return encodeObject(buf, Object(val), nil)
	case Array:
		return encodeArray(buf, val)
	case []any:
		return encodeArray(buf, val)
	case []string:
		arr := make(Array, len(val))
		for i, s := range val {
			arr[i] = s
		}
		return encodeArray(buf, arr)
	default:
		return fmt.Errorf("canonical: unsupported value type %T", v)
	}
	return nil
}

func encodeArray(buf *bytes.Buffer, arr []any) error {
	buf.WriteByte('[')
	for i, item := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encodeValue(buf, item); err != nil {
			return fmt.Errorf("index %d: %w", i, err)
		}
	}
	buf.WriteByte(']')
	return nil
}

func encodeString(buf *bytes.Buffer, s string) error {
	buf.Write(String(s))
	return nil
}

// String returns the canonical JSON literal for s: Go's escaping without
// HTML escaping, so <, > and & are written as themselves.
func String(s string) []byte {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// a string always encodes
	_ = enc.Encode(s)
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'})
}
