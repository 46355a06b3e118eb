package marker

import (
	"bytes"
	"encoding/json"

	"passage/pkg/canonical"
)

// Marshal encodes v in wire form. Use it instead of json.Marshal for markers
// and for values embedding them: json.Marshal escapes <, > and & inside the
// output of MarshalJSON, and ParseExit/ParseArrival refuse those spellings.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}

// NewEncoder returns a JSON encoder that keeps marker strings in wire form.
func NewEncoder(w interface{ Write([]byte) (int, error) }) *json.Encoder {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc
}

// canonicalStrings rejects documents in which any string literal, member
// names included, is spelled differently from canonical.String of its value.
// Signatures cover decoded values, so a second spelling of the same value
// would carry a valid proof over different bytes. data must be valid JSON.
func canonicalStrings(data []byte) error {
	for i := 0; i < len(data); i++ {
		if data[i] != '"' {
			continue
		}
		end := i + 1
		for end < len(data) && data[end] != '"' {
			if data[end] == '\\' {
				end++
			}
			end++
		}
		if end >= len(data) {
			return parseErrorf(CodeParseFailure, "unterminated string at offset %d", i)
		}
		lit := data[i : end+1]
		var s string
		if err := json.Unmarshal(lit, &s); err != nil {
			return parseErrorf(CodeParseFailure, "string at offset %d: %w", i, err)
		}
		if !bytes.Equal(lit, canonical.String(s)) {
			return parseErrorf(CodeParseFailure, "string at offset %d is not in canonical form", i)
		}
		i = end
	}
	return nil
}
