package order

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf16"
)

// ErrDuplicateKey is returned for an object that repeats a key. The typed fields
// and the signed message would otherwise disagree on its value.
var ErrDuplicateKey = errors.New("duplicate object key")

// CanonicalJSON re-serializes a JSON value into the form order signers sign:
//
//	{"sender_pk": "0xabc", "buy_amount": 10, "tags": ["a", "b"]}
//
// Object keys keep their submitted order, members are joined by ", ", keys and
// values by ": ", numbers keep their literal text, and control and non-ASCII
// characters are written as lowercase \uXXXX escapes.
func CanonicalJSON(raw []byte) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var b strings.Builder
	if err := writeValue(dec, &b); err != nil {
		return "", fmt.Errorf("failed to canonicalize: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return "", fmt.Errorf("failed to canonicalize: trailing data after value")
	}
	return b.String(), nil
}

func writeValue(dec *json.Decoder, b *strings.Builder) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}

	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '{':
			b.WriteByte('{')
			seen := make(map[string]struct{})
			for i := 0; dec.More(); i++ {
				if i > 0 {
					b.WriteString(", ")
				}
				tok, err := dec.Token()
				if err != nil {
					return err
				}
				key := tok.(string)
				if _, dup := seen[key]; dup {
					return fmt.Errorf("%w: %q", ErrDuplicateKey, key)
				}
				seen[key] = struct{}{}
				writeString(b, key)
				b.WriteString(": ")
				if err := writeValue(dec, b); err != nil {
					return err
				}
			}
			b.WriteByte('}')
		case '[':
			b.WriteByte('[')
			for i := 0; dec.More(); i++ {
				if i > 0 {
					b.WriteString(", ")
				}
				if err := writeValue(dec, b); err != nil {
					return err
				}
			}
			b.WriteByte(']')
		default:
			return fmt.Errorf("unexpected delimiter %q", v)
		}
		// closing delimiter
		if _, err := dec.Token(); err != nil {
			return err
		}
	case string:
		writeString(b, v)
	case json.Number:
		b.WriteString(v.String())
	case bool:
		if v {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case nil:
		b.WriteString("null")
	default:
		return fmt.Errorf("unexpected token %T", tok)
	}
	return nil
}

const hexDigits = "0123456789abcdef"

func writeString(b *strings.Builder, s string) {
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		default:
			switch {
			case r >= 0x20 && r < 0x80:
				b.WriteRune(r)
			case r > 0xffff:
				r1, r2 := utf16.EncodeRune(r)
				writeUnicodeEscape(b, r1)
				writeUnicodeEscape(b, r2)
			default:
				writeUnicodeEscape(b, r)
			}
		}
	}
	b.WriteByte('"')
}

func writeUnicodeEscape(b *strings.Builder, r rune) {
	b.WriteString(`\u`)
	b.WriteByte(hexDigits[(r>>12)&0xf])
	b.WriteByte(hexDigits[(r>>8)&0xf])
	b.WriteByte(hexDigits[(r>>4)&0xf])
	b.WriteByte(hexDigits[r&0xf])
}
